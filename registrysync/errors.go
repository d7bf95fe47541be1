package registrysync

import (
	"errors"
	"fmt"
)

// Error taxonomy. Routines classify failures so the orchestrator and callers
// can tell a bad setup from a bad wire from a bad state without string matching.
var (
	// ErrConfiguration: missing credentials, unlinked site, unknown license.
	// Fail fast, nothing was attempted against the registry.
	ErrConfiguration = errors.New("registry configuration error")

	// ErrUnauthorized: the registry rejected the credentials.
	ErrUnauthorized = errors.New("registry rejected credentials")

	// ErrTransport: network failure, timeout, or a 5xx from the registry.
	ErrTransport = errors.New("registry transport error")

	// ErrConflict: the requested change contradicts existing sync state,
	// such as linking an entity that already has an active mapping.
	ErrConflict = errors.New("sync state conflict")
)

// RegistryError carries the status and body of a non-2xx registry response.
type RegistryError struct {
	StatusCode int
	Body       string
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("registry returned %d: %s", e.StatusCode, e.Body)
}

func (e *RegistryError) Unwrap() error {
	if e.StatusCode == 401 || e.StatusCode == 403 {
		return ErrUnauthorized
	}
	if e.StatusCode >= 500 {
		return ErrTransport
	}
	return nil
}

func configErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

func conflictErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}
