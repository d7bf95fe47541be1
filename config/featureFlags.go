package config

import (
	"os"
	"strings"
)

// RegistryReadOnlyMode disables all internal->registry push routines (package
// creation, growth-phase changes) while leaving pull syncs available. Useful when
// a facility is mid-audit and the registry must not receive new events.
//
// Set via env:
// - REGISTRY_READ_ONLY=true
func RegistryReadOnlyMode() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("REGISTRY_READ_ONLY")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// RegistrySandboxDefault makes newly stored site credentials default to the
// registry's sandbox environment unless the request says otherwise.
//
// Set via env:
// - REGISTRY_SANDBOX_DEFAULT=true
func RegistrySandboxDefault() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("REGISTRY_SANDBOX_DEFAULT")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
