package registrysync

import (
	"github.com/anejaagam/trazo-backend/config"
	"github.com/anejaagam/trazo-backend/models"
)

// newClientForSite is the client factory used by the orchestrator and push
// routines. Package-level so tests can substitute a fake registry.
var newClientForSite = resolveClientForSite

// resolveClientForSite turns a site's stored registry credentials into an API
// client. Sites without credentials fail fast with a configuration error
// before any network call.
func resolveClientForSite(site *models.Site) (RegistryAPI, error) {
	if site == nil {
		return nil, configErr("site is nil")
	}
	if site.RegistryVendorKey == "" || site.RegistryUserKey == "" {
		return nil, configErr("site %d has no registry credentials", site.ID)
	}
	sandbox := config.RegistrySandboxDefault()
	if site.RegistrySandbox != nil {
		sandbox = *site.RegistrySandbox
	}
	return newRegistryClient(site.RegistryVendorKey, site.RegistryUserKey, sandbox)
}

// requireLicense returns the license number a registry list call should be
// scoped to, preferring an explicit request value over the site link.
func requireLicense(site *models.Site, requested string) (string, error) {
	if requested != "" {
		return requested, nil
	}
	if site.RegistryLicenseNumber != "" {
		return site.RegistryLicenseNumber, nil
	}
	return "", configErr("site %d is not linked to a registry facility", site.ID)
}
