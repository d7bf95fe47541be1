package registrysync

import (
	"errors"
	"testing"

	"github.com/anejaagam/trazo-backend/models"
	"github.com/anejaagam/trazo-backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func seedPushFixtures(t *testing.T, db *gorm.DB, orgId string, siteId int) *models.InventoryLot {
	t.Helper()
	item := models.RegistryItemCache{
		OrganizationId: orgId,
		SiteId:         siteId,
		RegistryId:     1,
		Name:           "Flower - OG Kush",
		UnitOfMeasure:  "Grams",
		IsActive:       utils.NewTrue(),
	}
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("seed item cache: %v", err)
	}
	tag := models.RegistryTagCache{
		OrganizationId: orgId,
		SiteId:         siteId,
		RegistryId:     20,
		TagNumber:      "1A4000000000101",
		TagType:        models.TagTypePackage,
		IsUsed:         utils.NewFalse(),
		IsActive:       utils.NewTrue(),
	}
	if err := db.Create(&tag).Error; err != nil {
		t.Fatalf("seed tag cache: %v", err)
	}
	lot := models.InventoryLot{
		OrganizationId: orgId,
		SiteId:         siteId,
		LotNumber:      "LOT-001",
		ProductName:    "Flower - OG Kush",
		Quantity:       decimal.NewFromFloat(453.5),
		UnitOfMeasure:  "Grams",
		IsActive:       utils.NewTrue(),
	}
	if err := db.Create(&lot).Error; err != nil {
		t.Fatalf("seed lot: %v", err)
	}
	return &lot
}

func TestPushInventoryLotCreatesPackage(t *testing.T) {
	db := newTestDB(t)
	orgId, site := seedOrgSite(t, db)
	ctx := testContext(orgId)
	lot := seedPushFixtures(t, db, orgId, site.ID)

	fake := &fakeRegistry{}
	result := newSyncResult()
	if err := pushInventoryLot(ctx, db, site, fake, lot.ID, result); err != nil {
		t.Fatalf("push: %v", err)
	}
	if fake.createPackageCalls != 1 {
		t.Fatalf("create package calls = %d", fake.createPackageCalls)
	}
	if result.LotsCreated != 1 || result.AlreadySynced {
		t.Fatalf("result: %+v", result)
	}

	var updated models.InventoryLot
	db.Where("id = ?", lot.ID).Take(&updated)
	if updated.RegistryPackageTag == nil || *updated.RegistryPackageTag != "1A4000000000101" {
		t.Fatalf("lot tag: %+v", updated.RegistryPackageTag)
	}
	if updated.RegistryPackageId == nil || *updated.RegistryPackageId != 9001 {
		t.Fatalf("lot package id: %+v", updated.RegistryPackageId)
	}
	if updated.PushedAt == nil {
		t.Fatal("pushed_at should be set")
	}

	var tag models.RegistryTagCache
	db.Where("organization_id = ? AND tag_number = ?", orgId, "1A4000000000101").Take(&tag)
	if tag.IsUsed == nil || !*tag.IsUsed {
		t.Fatal("tag should be marked used")
	}

	mapping, err := models.FindActiveMappingForInternal(ctx, db, orgId, models.MappingEntityLot, lot.ID)
	if err != nil || mapping == nil {
		t.Fatalf("mapping: %v %v", mapping, err)
	}
}

func TestPushInventoryLotAlreadySyncedMakesNoCalls(t *testing.T) {
	db := newTestDB(t)
	orgId, site := seedOrgSite(t, db)
	ctx := testContext(orgId)
	lot := seedPushFixtures(t, db, orgId, site.ID)

	fake := &fakeRegistry{}
	if err := pushInventoryLot(ctx, db, site, fake, lot.ID, newSyncResult()); err != nil {
		t.Fatalf("first push: %v", err)
	}
	callsAfterFirst := fake.totalCalls()

	result := newSyncResult()
	if err := pushInventoryLot(ctx, db, site, fake, lot.ID, result); err != nil {
		t.Fatalf("second push: %v", err)
	}
	if !result.AlreadySynced {
		t.Fatalf("second push should short-circuit: %+v", result)
	}
	if fake.totalCalls() != callsAfterFirst {
		t.Fatalf("second push made registry calls: %d -> %d", callsAfterFirst, fake.totalCalls())
	}
}

func TestPushInventoryLotRegistryRejection(t *testing.T) {
	db := newTestDB(t)
	orgId, site := seedOrgSite(t, db)
	ctx := testContext(orgId)
	lot := seedPushFixtures(t, db, orgId, site.ID)

	fake := &fakeRegistry{createPackageErr: &RegistryError{StatusCode: 400, Body: "Tag is not available"}}
	err := pushInventoryLot(ctx, db, site, fake, lot.ID, newSyncResult())
	if err == nil {
		t.Fatal("expected rejection to surface")
	}

	// Nothing local changed, so the next run retries cleanly.
	var updated models.InventoryLot
	db.Where("id = ?", lot.ID).Take(&updated)
	if updated.RegistryPackageTag != nil {
		t.Fatal("failed push must not record a package tag")
	}
	var tag models.RegistryTagCache
	db.Where("organization_id = ? AND tag_number = ?", orgId, "1A4000000000101").Take(&tag)
	if tag.IsUsed != nil && *tag.IsUsed {
		t.Fatal("failed push must not consume the tag")
	}
}

func TestPushInventoryLotRequiresMatchingItem(t *testing.T) {
	db := newTestDB(t)
	orgId, site := seedOrgSite(t, db)
	ctx := testContext(orgId)

	lot := models.InventoryLot{
		OrganizationId: orgId,
		SiteId:         site.ID,
		LotNumber:      "LOT-002",
		ProductName:    "Unknown Product",
		Quantity:       decimal.NewFromInt(10),
		IsActive:       utils.NewTrue(),
	}
	if err := db.Create(&lot).Error; err != nil {
		t.Fatalf("seed lot: %v", err)
	}

	fake := &fakeRegistry{}
	err := pushInventoryLot(ctx, db, site, fake, lot.ID, newSyncResult())
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if fake.totalCalls() != 0 {
		t.Fatal("configuration failure must not reach the network")
	}
}

func TestPushInventoryLotRequiresAvailableTag(t *testing.T) {
	db := newTestDB(t)
	orgId, site := seedOrgSite(t, db)
	ctx := testContext(orgId)

	item := models.RegistryItemCache{
		OrganizationId: orgId,
		SiteId:         site.ID,
		RegistryId:     1,
		Name:           "Flower - OG Kush",
		IsActive:       utils.NewTrue(),
	}
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("seed item: %v", err)
	}
	lot := models.InventoryLot{
		OrganizationId: orgId,
		SiteId:         site.ID,
		LotNumber:      "LOT-003",
		ProductName:    "Flower - OG Kush",
		Quantity:       decimal.NewFromInt(10),
		IsActive:       utils.NewTrue(),
	}
	if err := db.Create(&lot).Error; err != nil {
		t.Fatalf("seed lot: %v", err)
	}

	err := pushInventoryLot(ctx, db, site, &fakeRegistry{}, lot.ID, newSyncResult())
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestPushInventoryLotReadOnlyMode(t *testing.T) {
	db := newTestDB(t)
	orgId, site := seedOrgSite(t, db)
	ctx := testContext(orgId)
	lot := seedPushFixtures(t, db, orgId, site.ID)
	t.Setenv("REGISTRY_READ_ONLY", "true")

	fake := &fakeRegistry{}
	err := pushInventoryLot(ctx, db, site, fake, lot.ID, newSyncResult())
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if fake.totalCalls() != 0 {
		t.Fatal("read-only mode must not reach the network")
	}
}

func TestPushBatchPhaseReportsTransition(t *testing.T) {
	db := newTestDB(t)
	orgId, site := seedOrgSite(t, db)
	ctx := testContext(orgId)

	fake := &fakeRegistry{}
	withFakeClient(t, fake)

	batch := models.Batch{
		OrganizationId:    orgId,
		SiteId:            site.ID,
		Name:              "Veg Run 1",
		Stage:             models.StageVegetative,
		PlantCount:        24,
		TrackingMode:      models.TrackingModeRegistry,
		RegistryBatchName: "PB-7",
		IsActive:          utils.NewTrue(),
	}
	if err := db.Create(&batch).Error; err != nil {
		t.Fatalf("create batch: %v", err)
	}

	result, err := PushBatchPhase(ctx, batch.ID, models.StageVegetative, models.StageFlowering, 1)
	if err != nil {
		t.Fatalf("push phase: %v", err)
	}
	if fake.changePhaseCalls != 1 {
		t.Fatalf("change phase calls = %d", fake.changePhaseCalls)
	}
	if fake.lastGrowthPhase.GrowthPhase != "Flowering" || fake.lastGrowthPhase.Name != "PB-7" || fake.lastGrowthPhase.Count != 24 {
		t.Fatalf("growth phase request: %+v", fake.lastGrowthPhase)
	}
	if result.Synced != 1 {
		t.Fatalf("result: %+v", result)
	}

	// The attempt is audited.
	var logs []models.RegistrySyncLog
	db.Where("organization_id = ? AND operation = ?", orgId, "change_growth_phase").Find(&logs)
	if len(logs) != 1 {
		t.Fatalf("expected 1 sync log, got %d", len(logs))
	}
}

func TestPushBatchPhaseSkipsNonTriggeringTransition(t *testing.T) {
	db := newTestDB(t)
	orgId, _ := seedOrgSite(t, db)
	ctx := testContext(orgId)

	fake := &fakeRegistry{}
	withFakeClient(t, fake)

	result, err := PushBatchPhase(ctx, 1, models.StageFlowering, models.StageHarvest, 1)
	if err != nil {
		t.Fatalf("push phase: %v", err)
	}
	if fake.totalCalls() != 0 {
		t.Fatal("non-triggering transition must not reach the network")
	}
	if result.Synced != 0 {
		t.Fatalf("result: %+v", result)
	}
}

func TestPushBatchPhaseSkipsUntrackedBatch(t *testing.T) {
	db := newTestDB(t)
	orgId, site := seedOrgSite(t, db)
	ctx := testContext(orgId)

	fake := &fakeRegistry{}
	withFakeClient(t, fake)

	batch := models.Batch{
		OrganizationId: orgId,
		SiteId:         site.ID,
		Name:           "Internal Only",
		Stage:          models.StageVegetative,
		TrackingMode:   models.TrackingModeNone,
		IsActive:       utils.NewTrue(),
	}
	if err := db.Create(&batch).Error; err != nil {
		t.Fatalf("create batch: %v", err)
	}

	if _, err := PushBatchPhase(ctx, batch.ID, models.StageVegetative, models.StageFlowering, 1); err != nil {
		t.Fatalf("push phase: %v", err)
	}
	if fake.totalCalls() != 0 {
		t.Fatal("untracked batch must not reach the network")
	}
}
