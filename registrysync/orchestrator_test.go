package registrysync

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/anejaagam/trazo-backend/models"
	"github.com/bsm/redislock"
)

func TestRunSyncWritesExactlyOneLog(t *testing.T) {
	db := newTestDB(t)
	orgId, site := seedOrgSite(t, db)
	ctx := testContext(orgId)

	fake := &fakeRegistry{items: []RegistryItem{{Id: 1, Name: "Flower - OG Kush"}}}
	withFakeClient(t, fake)

	result, err := RunSync(ctx, SyncRequest{
		SyncType:       SyncTypeItems,
		SiteId:         site.ID,
		OrganizationId: orgId,
		UserId:         1,
	})
	if err != nil {
		t.Fatalf("RunSync: %v", err)
	}
	if !result.Success || result.Created != 1 {
		t.Fatalf("result: %+v", result)
	}

	var logs []models.RegistrySyncLog
	db.Where("organization_id = ? AND site_id = ?", orgId, site.ID).Find(&logs)
	if len(logs) != 1 {
		t.Fatalf("expected exactly 1 sync log, got %d", len(logs))
	}
	log := logs[0]
	if log.Status != models.SyncLogStatusCompleted {
		t.Fatalf("status = %s", log.Status)
	}
	if log.SyncType != "items" || log.Direction != "registry_to_internal" || log.Operation != "pull_items" {
		t.Fatalf("log fields: %+v", log)
	}
	if log.InitiatedBy != 1 {
		t.Fatalf("initiated_by = %d", log.InitiatedBy)
	}
	if log.CompletedAt.Before(log.StartedAt) {
		t.Fatalf("timestamps: started=%v completed=%v", log.StartedAt, log.CompletedAt)
	}
	if len(log.ResponsePayload) == 0 {
		t.Fatal("response payload should carry the result")
	}
}

func TestRunSyncLogsConfigurationFailure(t *testing.T) {
	db := newTestDB(t)
	orgId, site := seedOrgSite(t, db)
	ctx := testContext(orgId)

	// Strip credentials so client resolution fails before any network call.
	if err := db.Model(&models.Site{}).Where("id = ?", site.ID).
		Updates(map[string]interface{}{"registry_vendor_key": "", "registry_user_key": ""}).Error; err != nil {
		t.Fatalf("strip credentials: %v", err)
	}

	result, err := RunSync(ctx, SyncRequest{
		SyncType:       SyncTypeItems,
		SiteId:         site.ID,
		OrganizationId: orgId,
	})
	if err != nil {
		t.Fatalf("RunSync: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure result")
	}

	var logs []models.RegistrySyncLog
	db.Where("organization_id = ? AND site_id = ?", orgId, site.ID).Find(&logs)
	if len(logs) != 1 {
		t.Fatalf("a failed attempt still gets its log row, got %d", len(logs))
	}
	if logs[0].Status != models.SyncLogStatusFailed {
		t.Fatalf("status = %s", logs[0].Status)
	}
	if logs[0].ErrorMessage == "" {
		t.Fatal("failed log should carry the error")
	}
}

func TestRunSyncUnknownSiteFailsLoudly(t *testing.T) {
	db := newTestDB(t)
	orgId, _ := seedOrgSite(t, db)
	ctx := testContext(orgId)

	result, err := RunSync(ctx, SyncRequest{
		SyncType:       SyncTypeItems,
		SiteId:         9999,
		OrganizationId: orgId,
	})
	if err != nil {
		t.Fatalf("RunSync: %v", err)
	}
	if result.Success {
		t.Fatal("unknown site should fail")
	}

	var count int64
	db.Model(&models.RegistrySyncLog{}).Where("organization_id = ?", orgId).Count(&count)
	if count != 1 {
		t.Fatalf("expected 1 sync log, got %d", count)
	}
}

func TestRunSyncRejectsInvalidType(t *testing.T) {
	db := newTestDB(t)
	orgId, site := seedOrgSite(t, db)
	ctx := testContext(orgId)

	if _, err := RunSync(ctx, SyncRequest{
		SyncType:       SyncType("harvests"),
		SiteId:         site.ID,
		OrganizationId: orgId,
	}); err == nil {
		t.Fatal("expected invalid sync type error")
	}

	var count int64
	db.Model(&models.RegistrySyncLog{}).Count(&count)
	if count != 0 {
		t.Fatalf("invalid request must not log, got %d rows", count)
	}
}

func TestRunSyncRejectsMissingTenant(t *testing.T) {
	newTestDB(t)
	if _, err := RunSync(testContext(""), SyncRequest{SyncType: SyncTypeItems, SiteId: 1}); err == nil {
		t.Fatal("expected missing organization error")
	}
}

func TestRunSyncSiteLinkEndToEnd(t *testing.T) {
	db := newTestDB(t)
	orgId, site := seedOrgSite(t, db)
	ctx := testContext(orgId)
	seedFacilityCache(t, db, orgId, site.ID, 200, "LIC-200", "South Grow")

	result, err := RunSync(ctx, SyncRequest{
		SyncType:       SyncTypeSiteLink,
		SiteId:         site.ID,
		OrganizationId: orgId,
		LicenseNumber:  "LIC-200",
	})
	if err != nil {
		t.Fatalf("RunSync: %v", err)
	}
	if !result.Success {
		t.Fatalf("result: %+v", result)
	}

	var logs []models.RegistrySyncLog
	db.Where("organization_id = ? AND operation = ?", orgId, "link_facility").Find(&logs)
	if len(logs) != 1 {
		t.Fatalf("expected 1 link log, got %d", len(logs))
	}

	var updated models.Site
	db.Where("id = ?", site.ID).Take(&updated)
	if updated.RegistryLicenseNumber != "LIC-200" {
		t.Fatalf("site license = %s", updated.RegistryLicenseNumber)
	}
}

func TestRunSyncPushLotEndToEnd(t *testing.T) {
	db := newTestDB(t)
	orgId, site := seedOrgSite(t, db)
	ctx := testContext(orgId)
	lot := seedPushFixtures(t, db, orgId, site.ID)

	fake := &fakeRegistry{}
	withFakeClient(t, fake)

	result, err := RunSync(ctx, SyncRequest{
		SyncType:       SyncTypePushLot,
		SiteId:         site.ID,
		OrganizationId: orgId,
		LotId:          lot.ID,
	})
	if err != nil {
		t.Fatalf("RunSync: %v", err)
	}
	if !result.Success || result.LotsCreated != 1 {
		t.Fatalf("result: %+v", result)
	}

	var logs []models.RegistrySyncLog
	db.Where("organization_id = ? AND operation = ?", orgId, "create_package").Find(&logs)
	if len(logs) != 1 {
		t.Fatalf("expected 1 push log, got %d", len(logs))
	}
	if logs[0].Direction != "internal_to_registry" {
		t.Fatalf("direction = %s", logs[0].Direction)
	}
}

func TestFinishRunJoinsAllErrors(t *testing.T) {
	db := newTestDB(t)
	orgId, site := seedOrgSite(t, db)
	ctx := testContext(orgId)

	result := newSyncResult()
	result.Success = false
	result.addError("item 1: boom")
	result.addError("item 2: also boom")
	req := SyncRequest{SyncType: SyncTypeItems, SiteId: site.ID, OrganizationId: orgId, UserId: 1}
	if _, err := finishRun(ctx, req, result, time.Now()); err != nil {
		t.Fatalf("finishRun: %v", err)
	}

	var log models.RegistrySyncLog
	if err := db.Where("organization_id = ? AND site_id = ?", orgId, site.ID).Take(&log).Error; err != nil {
		t.Fatalf("log row: %v", err)
	}
	if log.ErrorMessage != "item 1: boom; item 2: also boom" {
		t.Fatalf("error_message = %q", log.ErrorMessage)
	}
}

func TestRunSyncAuditsLockContention(t *testing.T) {
	db := newTestDB(t)
	orgId, site := seedOrgSite(t, db)
	ctx := testContext(orgId)

	prev := siteLock
	siteLock = func(ctx context.Context, siteId int, lockType string, moduleName string, functionName string) (*redislock.Lock, error) {
		return nil, errors.New("another sync is already running for this site")
	}
	t.Cleanup(func() { siteLock = prev })

	fake := &fakeRegistry{items: []RegistryItem{{Id: 1, Name: "Flower - OG Kush"}}}
	withFakeClient(t, fake)

	result, err := RunSync(ctx, SyncRequest{
		SyncType:       SyncTypeItems,
		SiteId:         site.ID,
		OrganizationId: orgId,
	})
	if err != nil {
		t.Fatalf("RunSync: %v", err)
	}
	if result.Success {
		t.Fatal("contended run must fail")
	}
	if fake.totalCalls() != 0 {
		t.Fatalf("contended run must not reach the registry, made %d calls", fake.totalCalls())
	}

	var logs []models.RegistrySyncLog
	db.Where("organization_id = ? AND site_id = ?", orgId, site.ID).Find(&logs)
	if len(logs) != 1 {
		t.Fatalf("a rejected attempt still gets its log row, got %d", len(logs))
	}
	if logs[0].Status != models.SyncLogStatusFailed {
		t.Fatalf("status = %s", logs[0].Status)
	}
	if !strings.Contains(logs[0].ErrorMessage, "another sync is already running") {
		t.Fatalf("error_message = %q", logs[0].ErrorMessage)
	}
}
