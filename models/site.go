package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anejaagam/trazo-backend/config"
	"github.com/anejaagam/trazo-backend/utils"
)

// Site is one physical cultivation facility of an organization. It carries the
// registry API credentials for that facility and, once linked, the registry
// license/facility identifiers.
type Site struct {
	ID             int    `gorm:"primary_key" json:"id"`
	OrganizationId string `gorm:"index;not null" json:"organization_id"`
	Name           string `gorm:"index;size:100;not null" json:"name" binding:"required"`
	Address        string `gorm:"type:text" json:"address"`
	City           string `gorm:"size:100" json:"city"`
	Country        string `gorm:"size:100" json:"country"`

	// Registry credentials. Resolved per site by the credential resolver.
	RegistryVendorKey string `gorm:"size:128" json:"-"`
	RegistryUserKey   string `gorm:"size:128" json:"-"`
	RegistrySandbox   *bool  `gorm:"not null;default:false" json:"registry_sandbox"`

	// Registry facility link, set by the facility<->site link operation.
	RegistryLicenseNumber string     `gorm:"size:64;index" json:"registry_license_number"`
	RegistryFacilityId    *int64     `json:"registry_facility_id"`
	RegistryLinkedAt      *time.Time `json:"registry_linked_at"`

	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s Site) GetOrganizationId() string {
	return s.OrganizationId
}

type NewSite struct {
	Name    string `json:"name" binding:"required"`
	Address string `json:"address"`
	City    string `json:"city"`
	Country string `json:"country"`
}

type NewSiteRegistryCredentials struct {
	SiteId    int    `json:"site_id" binding:"required"`
	VendorKey string `json:"vendor_key" binding:"required"`
	UserKey   string `json:"user_key" binding:"required"`
	Sandbox   *bool  `json:"sandbox"`
}

func CreateSite(ctx context.Context, input *NewSite) (*Site, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	if err := utils.ValidateUnique[Site](ctx, organizationId, "name", input.Name, 0); err != nil {
		return nil, err
	}

	site := Site{
		OrganizationId: organizationId,
		Name:           strings.TrimSpace(input.Name),
		Address:        strings.TrimSpace(input.Address),
		City:           strings.TrimSpace(input.City),
		Country:        strings.TrimSpace(input.Country),
		RegistrySandbox: func() *bool {
			if config.RegistrySandboxDefault() {
				return utils.NewTrue()
			}
			return utils.NewFalse()
		}(),
		IsActive: utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&site).Error; err != nil {
		return nil, err
	}
	return &site, nil
}

// GetSiteById fetches a site scoped to the caller's organization, redis-first.
func GetSiteById(ctx context.Context, organizationId string, siteId int) (*Site, error) {
	return GetResource[Site](utils.SetOrganizationIdInContext(ctx, organizationId), siteId)
}

// SetSiteRegistryCredentials stores registry API credentials on the site row.
func SetSiteRegistryCredentials(ctx context.Context, input *NewSiteRegistryCredentials) (*Site, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	site, err := GetSiteById(ctx, organizationId, input.SiteId)
	if err != nil {
		return nil, err
	}

	sandbox := config.RegistrySandboxDefault()
	if input.Sandbox != nil {
		sandbox = *input.Sandbox
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(site).Updates(map[string]interface{}{
		"registry_vendor_key": strings.TrimSpace(input.VendorKey),
		"registry_user_key":   strings.TrimSpace(input.UserKey),
		"registry_sandbox":    sandbox,
		"updated_at":          time.Now(),
	}).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[Site](input.SiteId); err != nil {
		return nil, err
	}
	return GetSiteById(ctx, organizationId, input.SiteId)
}
