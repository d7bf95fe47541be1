package registrysync

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anejaagam/trazo-backend/config"
	"github.com/anejaagam/trazo-backend/models"
	"github.com/anejaagam/trazo-backend/utils"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testDBCounter int64

// newTestDB opens a fresh in-memory database, migrates the schema, and points
// the package's shared handle at it for the duration of the test.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	n := atomic.AddInt64(&testDBCounter, 1)
	dsn := fmt.Sprintf("file:registrysync_test_%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
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

// seedOrgSite creates an organization and a credentialed, license-linked site.
func seedOrgSite(t *testing.T, db *gorm.DB) (string, *models.Site) {
	t.Helper()
	org := models.Organization{
		ID:   uuid.New(),
		Name: "Test Grow Co",
	}
	if err := db.Create(&org).Error; err != nil {
		t.Fatalf("create organization: %v", err)
	}
	site := models.Site{
		OrganizationId:        org.ID.String(),
		Name:                  "Main Site",
		RegistryVendorKey:     "vendor-key",
		RegistryUserKey:       "user-key",
		RegistrySandbox:       utils.NewTrue(),
		RegistryLicenseNumber: "LIC-100",
		IsActive:              utils.NewTrue(),
	}
	if err := db.Create(&site).Error; err != nil {
		t.Fatalf("create site: %v", err)
	}
	return org.ID.String(), &site
}

func testContext(organizationId string) context.Context {
	ctx := utils.SetOrganizationIdInContext(context.Background(), organizationId)
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUsernameInContext(ctx, "test@local")
	return ctx
}

// fakeRegistry implements RegistryAPI with canned data and call counters, so
// tests can assert how many network calls a routine made.
type fakeRegistry struct {
	mu sync.Mutex

	facilities   []RegistryFacility
	items        []RegistryItem
	plantTags    []RegistryTag
	packageTags  []RegistryTag
	plantBatches []RegistryPlantBatch

	listErr          error
	createPackageErr error

	listFacilitiesCalls   int
	listItemsCalls        int
	listTagsCalls         int
	listPlantBatchesCalls int
	createPackageCalls    int
	changePhaseCalls      int
	lastGrowthPhase       GrowthPhaseRequest
}

func (f *fakeRegistry) ListFacilities(ctx context.Context) ([]RegistryFacility, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listFacilitiesCalls++
	return f.facilities, f.listErr
}

func (f *fakeRegistry) ListItems(ctx context.Context, licenseNumber string, window TimeWindow) ([]RegistryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listItemsCalls++
	return f.items, f.listErr
}

func (f *fakeRegistry) ListTags(ctx context.Context, licenseNumber string, tagType models.RegistryTagType) ([]RegistryTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listTagsCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	if tagType == models.TagTypePlant {
		return f.plantTags, nil
	}
	return f.packageTags, nil
}

func (f *fakeRegistry) ListPlantBatches(ctx context.Context, licenseNumber string, window TimeWindow) ([]RegistryPlantBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listPlantBatchesCalls++
	return f.plantBatches, f.listErr
}

func (f *fakeRegistry) CreatePackage(ctx context.Context, licenseNumber string, req CreatePackageRequest) (*RegistryPackage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createPackageCalls++
	if f.createPackageErr != nil {
		return nil, f.createPackageErr
	}
	return &RegistryPackage{Id: 9001, Label: req.Tag}, nil
}

func (f *fakeRegistry) ChangePlantBatchGrowthPhase(ctx context.Context, licenseNumber string, req GrowthPhaseRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changePhaseCalls++
	f.lastGrowthPhase = req
	return nil
}

func (f *fakeRegistry) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listFacilitiesCalls + f.listItemsCalls + f.listTagsCalls +
		f.listPlantBatchesCalls + f.createPackageCalls + f.changePhaseCalls
}

// withFakeClient routes every client resolution in the package to the fake for
// the duration of the test.
func withFakeClient(t *testing.T, fake RegistryAPI) {
	t.Helper()
	prev := newClientForSite
	newClientForSite = func(site *models.Site) (RegistryAPI, error) { return fake, nil }
	t.Cleanup(func() { newClientForSite = prev })
}

func seedPlantBatchCache(t *testing.T, db *gorm.DB, orgId string, siteId int, registryId int64, name, batchType, strain string, count int) *models.RegistryPlantBatchCache {
	t.Helper()
	planted := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	cache := models.RegistryPlantBatchCache{
		OrganizationId: orgId,
		SiteId:         siteId,
		RegistryId:     registryId,
		Name:           name,
		Type:           batchType,
		StrainName:     strain,
		Count:          count,
		PlantedDate:    &planted,
		GrowthPhase:    "Vegetative",
		IsLinked:       utils.NewFalse(),
		IsActive:       utils.NewTrue(),
	}
	if err := db.Create(&cache).Error; err != nil {
		t.Fatalf("seed plant batch cache: %v", err)
	}
	return &cache
}

func seedFacilityCache(t *testing.T, db *gorm.DB, orgId string, siteId int, registryId int64, license, name string) *models.RegistryFacilityCache {
	t.Helper()
	cache := models.RegistryFacilityCache{
		OrganizationId: orgId,
		SiteId:         siteId,
		RegistryId:     registryId,
		LicenseNumber:  license,
		FacilityName:   name,
		CanGrowPlants:  utils.NewTrue(),
		IsLinked:       utils.NewFalse(),
		IsActive:       utils.NewTrue(),
	}
	if err := db.Create(&cache).Error; err != nil {
		t.Fatalf("seed facility cache: %v", err)
	}
	return &cache
}
