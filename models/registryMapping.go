package models

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// RegistryEntityMapping links one internal entity (batch, lot, site) to one
// registry entity. Invariants:
//   - at most one non-released mapping per (organization, entity_type, internal_id)
//   - at most one non-released mapping per (organization, entity_type, registry_id)
//
// Releases flip sync_status to "released" and keep the row, so relinks never
// destroy audit history. Conflicting links fail loudly instead of overwriting.
type RegistryEntityMapping struct {
	ID             int    `gorm:"primary_key" json:"id"`
	OrganizationId string `gorm:"index:idx_registry_mapping_internal;index:idx_registry_mapping_external;not null" json:"organization_id"`
	SiteId         int    `gorm:"index;not null" json:"site_id"`
	EntityType     string `gorm:"index:idx_registry_mapping_internal;index:idx_registry_mapping_external;size:20;not null" json:"entity_type"`
	InternalId     int    `gorm:"index:idx_registry_mapping_internal;not null" json:"internal_id"`
	RegistryId     string `gorm:"index:idx_registry_mapping_external;size:128;not null" json:"registry_id"`
	RegistryName   string `gorm:"size:150" json:"registry_name"`

	SyncStatus   string     `gorm:"size:20;not null;default:pending" json:"sync_status"`
	LastSyncedAt *time.Time `json:"last_synced_at"`
	ReleasedAt   *time.Time `json:"released_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (m RegistryEntityMapping) GetOrganizationId() string { return m.OrganizationId }

func (m RegistryEntityMapping) IsReleased() bool {
	return m.SyncStatus == MappingStatusReleased
}

// FindActiveMappingForInternal returns the non-released mapping for an internal
// entity, or (nil, nil) when none exists.
func FindActiveMappingForInternal(ctx context.Context, db *gorm.DB, organizationId string, entityType string, internalId int) (*RegistryEntityMapping, error) {
	var mapping RegistryEntityMapping
	err := db.WithContext(ctx).
		Where("organization_id = ? AND entity_type = ? AND internal_id = ? AND sync_status <> ?",
			organizationId, entityType, internalId, MappingStatusReleased).
		Take(&mapping).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &mapping, nil
}

// FindActiveMappingForRegistry returns the non-released mapping claiming a
// registry entity, or (nil, nil) when none exists.
func FindActiveMappingForRegistry(ctx context.Context, db *gorm.DB, organizationId string, entityType string, registryId string) (*RegistryEntityMapping, error) {
	var mapping RegistryEntityMapping
	err := db.WithContext(ctx).
		Where("organization_id = ? AND entity_type = ? AND registry_id = ? AND sync_status <> ?",
			organizationId, entityType, registryId, MappingStatusReleased).
		Take(&mapping).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &mapping, nil
}

// CreateMapping inserts an active mapping after verifying neither side already
// holds a live link. Callers establishing a replacement link must release the
// prior mapping first, inside the same transaction.
func CreateMapping(ctx context.Context, db *gorm.DB, mapping *RegistryEntityMapping) error {
	existing, err := FindActiveMappingForInternal(ctx, db, mapping.OrganizationId, mapping.EntityType, mapping.InternalId)
	if err != nil {
		return err
	}
	if existing != nil {
		return errors.New("internal entity already linked to a registry entity")
	}
	existing, err = FindActiveMappingForRegistry(ctx, db, mapping.OrganizationId, mapping.EntityType, mapping.RegistryId)
	if err != nil {
		return err
	}
	if existing != nil {
		return errors.New("registry entity already linked")
	}
	return db.WithContext(ctx).Create(mapping).Error
}

// ReleaseMapping marks a mapping released. The row survives for audit.
func ReleaseMapping(ctx context.Context, db *gorm.DB, mappingId int) error {
	now := time.Now()
	return db.WithContext(ctx).
		Model(&RegistryEntityMapping{}).
		Where("id = ?", mappingId).
		Updates(map[string]interface{}{
			"sync_status": MappingStatusReleased,
			"released_at": now,
		}).Error
}

// TouchMapping records a successful sync of an already-linked entity.
func TouchMapping(ctx context.Context, db *gorm.DB, mappingId int) error {
	now := time.Now()
	return db.WithContext(ctx).
		Model(&RegistryEntityMapping{}).
		Where("id = ?", mappingId).
		Updates(map[string]interface{}{
			"sync_status":    MappingStatusSynced,
			"last_synced_at": now,
		}).Error
}
