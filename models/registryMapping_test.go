package models_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/anejaagam/trazo-backend/config"
	"github.com/anejaagam/trazo-backend/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var mappingDBCounter int64

func newMappingTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	n := atomic.AddInt64(&mappingDBCounter, 1)
	dsn := fmt.Sprintf("file:mapping_test_%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	prev := config.GetDB()
	config.SetDB(db)
	t.Cleanup(func() { config.SetDB(prev) })
	models.MigrateTable()
	return db
}

func TestMappingAtMostOneActivePerInternal(t *testing.T) {
	db := newMappingTestDB(t)
	ctx := context.Background()

	first := &models.RegistryEntityMapping{
		OrganizationId: "org-1",
		SiteId:         1,
		EntityType:     models.MappingEntityBatch,
		InternalId:     42,
		RegistryId:     "7",
		SyncStatus:     models.MappingStatusSynced,
	}
	if err := models.CreateMapping(ctx, db, first); err != nil {
		t.Fatalf("first mapping: %v", err)
	}

	// Same internal entity, different registry entity: rejected.
	err := models.CreateMapping(ctx, db, &models.RegistryEntityMapping{
		OrganizationId: "org-1",
		SiteId:         1,
		EntityType:     models.MappingEntityBatch,
		InternalId:     42,
		RegistryId:     "8",
		SyncStatus:     models.MappingStatusSynced,
	})
	if err == nil {
		t.Fatal("expected conflict for second active mapping on same internal id")
	}

	// Same registry entity, different internal entity: rejected.
	err = models.CreateMapping(ctx, db, &models.RegistryEntityMapping{
		OrganizationId: "org-1",
		SiteId:         1,
		EntityType:     models.MappingEntityBatch,
		InternalId:     43,
		RegistryId:     "7",
		SyncStatus:     models.MappingStatusSynced,
	})
	if err == nil {
		t.Fatal("expected conflict for second active mapping on same registry id")
	}
}

func TestMappingReleaseAllowsRelink(t *testing.T) {
	db := newMappingTestDB(t)
	ctx := context.Background()

	first := &models.RegistryEntityMapping{
		OrganizationId: "org-1",
		SiteId:         1,
		EntityType:     models.MappingEntityBatch,
		InternalId:     42,
		RegistryId:     "7",
		SyncStatus:     models.MappingStatusSynced,
	}
	if err := models.CreateMapping(ctx, db, first); err != nil {
		t.Fatalf("first mapping: %v", err)
	}
	if err := models.ReleaseMapping(ctx, db, first.ID); err != nil {
		t.Fatalf("release: %v", err)
	}

	// Both sides are free again.
	if err := models.CreateMapping(ctx, db, &models.RegistryEntityMapping{
		OrganizationId: "org-1",
		SiteId:         1,
		EntityType:     models.MappingEntityBatch,
		InternalId:     42,
		RegistryId:     "7",
		SyncStatus:     models.MappingStatusSynced,
	}); err != nil {
		t.Fatalf("relink after release: %v", err)
	}

	// The released row is kept for audit.
	var count int64
	db.Model(&models.RegistryEntityMapping{}).Where("organization_id = ?", "org-1").Count(&count)
	if count != 2 {
		t.Fatalf("expected 2 mapping rows, got %d", count)
	}

	var released models.RegistryEntityMapping
	if err := db.Where("id = ?", first.ID).Take(&released).Error; err != nil {
		t.Fatalf("released row: %v", err)
	}
	if released.SyncStatus != models.MappingStatusReleased || released.ReleasedAt == nil {
		t.Fatalf("released row state: %+v", released)
	}
}

func TestFindActiveMappingIgnoresReleasedAndOtherTenants(t *testing.T) {
	db := newMappingTestDB(t)
	ctx := context.Background()

	m := &models.RegistryEntityMapping{
		OrganizationId: "org-1",
		SiteId:         1,
		EntityType:     models.MappingEntityLot,
		InternalId:     5,
		RegistryId:     "900",
		SyncStatus:     models.MappingStatusSynced,
	}
	if err := models.CreateMapping(ctx, db, m); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Another tenant never sees it.
	found, err := models.FindActiveMappingForInternal(ctx, db, "org-2", models.MappingEntityLot, 5)
	if err != nil || found != nil {
		t.Fatalf("cross-tenant lookup: %v %v", found, err)
	}

	if err := models.ReleaseMapping(ctx, db, m.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	found, err = models.FindActiveMappingForRegistry(ctx, db, "org-1", models.MappingEntityLot, "900")
	if err != nil || found != nil {
		t.Fatalf("released mapping should not be found: %v %v", found, err)
	}
}
