package models

import "time"

// Local mirror tables for registry records. Rows are created/updated only by the
// pull-sync routines, keyed by (organization_id, site_id, registry_id). Rows that
// disappear upstream are marked inactive, never deleted, so link history stays
// valid for audit.

type RegistryItemCache struct {
	ID             int    `gorm:"primary_key" json:"id"`
	OrganizationId string `gorm:"uniqueIndex:idx_registry_item_cache,priority:1;not null" json:"organization_id"`
	SiteId         int    `gorm:"uniqueIndex:idx_registry_item_cache,priority:2;not null" json:"site_id"`
	RegistryId     int64  `gorm:"uniqueIndex:idx_registry_item_cache,priority:3;not null" json:"registry_id"`

	Name            string `gorm:"size:150" json:"name"`
	ProductCategory string `gorm:"size:100" json:"product_category"`
	QuantityType    string `gorm:"size:50" json:"quantity_type"`
	UnitOfMeasure   string `gorm:"size:50" json:"unit_of_measure"`
	StrainName      string `gorm:"size:150" json:"strain_name"`

	IsActive     *bool      `gorm:"not null;default:true" json:"is_active"`
	LastSyncedAt *time.Time `json:"last_synced_at"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c RegistryItemCache) GetOrganizationId() string { return c.OrganizationId }

type RegistryTagCache struct {
	ID             int    `gorm:"primary_key" json:"id"`
	OrganizationId string `gorm:"uniqueIndex:idx_registry_tag_cache,priority:1;not null" json:"organization_id"`
	SiteId         int    `gorm:"uniqueIndex:idx_registry_tag_cache,priority:2;not null" json:"site_id"`
	RegistryId     int64  `gorm:"uniqueIndex:idx_registry_tag_cache,priority:3;not null" json:"registry_id"`

	TagNumber string          `gorm:"index;size:64" json:"tag_number"`
	TagType   RegistryTagType `gorm:"size:20" json:"tag_type"`
	Status    string          `gorm:"size:50" json:"status"`
	IsUsed    *bool           `gorm:"not null;default:false" json:"is_used"`

	IsActive     *bool      `gorm:"not null;default:true" json:"is_active"`
	LastSyncedAt *time.Time `json:"last_synced_at"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c RegistryTagCache) GetOrganizationId() string { return c.OrganizationId }

type RegistryPlantBatchCache struct {
	ID             int    `gorm:"primary_key" json:"id"`
	OrganizationId string `gorm:"uniqueIndex:idx_registry_plant_batch_cache,priority:1;not null" json:"organization_id"`
	SiteId         int    `gorm:"uniqueIndex:idx_registry_plant_batch_cache,priority:2;not null" json:"site_id"`
	RegistryId     int64  `gorm:"uniqueIndex:idx_registry_plant_batch_cache,priority:3;not null" json:"registry_id"`

	Name        string     `gorm:"index;size:150" json:"name"`
	Type        string     `gorm:"size:20" json:"type"` // Clone / Seed
	StrainName  string     `gorm:"size:150" json:"strain_name"`
	Count       int        `gorm:"not null;default:0" json:"count"`
	PlantedDate *time.Time `json:"planted_date"`
	GrowthPhase string     `gorm:"size:50" json:"growth_phase"`

	// Link into the internal model, set by the import operation.
	IsLinked      *bool `gorm:"not null;default:false" json:"is_linked"`
	LinkedBatchId *int  `gorm:"index" json:"linked_batch_id"`

	IsActive     *bool      `gorm:"not null;default:true" json:"is_active"`
	LastSyncedAt *time.Time `json:"last_synced_at"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c RegistryPlantBatchCache) GetOrganizationId() string { return c.OrganizationId }

type RegistryFacilityCache struct {
	ID             int    `gorm:"primary_key" json:"id"`
	OrganizationId string `gorm:"uniqueIndex:idx_registry_facility_cache,priority:1;not null" json:"organization_id"`
	SiteId         int    `gorm:"uniqueIndex:idx_registry_facility_cache,priority:2;not null" json:"site_id"`
	RegistryId     int64  `gorm:"uniqueIndex:idx_registry_facility_cache,priority:3;not null" json:"registry_id"`

	LicenseNumber string `gorm:"index;size:64" json:"license_number"`
	FacilityName  string `gorm:"size:150" json:"facility_name"`
	FacilityType  string `gorm:"size:100" json:"facility_type"`
	CanGrowPlants *bool  `gorm:"not null;default:false" json:"can_grow_plants"`

	// Link to the internal site, set by the facility<->site link operation.
	IsLinked     *bool `gorm:"not null;default:false" json:"is_linked"`
	LinkedSiteId *int  `gorm:"index" json:"linked_site_id"`

	IsActive     *bool      `gorm:"not null;default:true" json:"is_active"`
	LastSyncedAt *time.Time `json:"last_synced_at"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c RegistryFacilityCache) GetOrganizationId() string { return c.OrganizationId }
