package registrysync

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anejaagam/trazo-backend/config"
	"github.com/anejaagam/trazo-backend/models"
	"github.com/anejaagam/trazo-backend/utils"
	"github.com/sirupsen/logrus"
)

var logger *logrus.Logger = config.GetLogger()

var siteLock = utils.SiteLock

// RunSync is the single entry point for every sync operation. It validates the
// request, resolves the site and its registry client, dispatches to the routine
// for the sync type, and writes exactly one audit log row for the attempt.
// Routine failures come back inside the SyncResult; the error return is only
// non-nil when the attempt could not even be recorded.
func RunSync(ctx context.Context, req SyncRequest) (*SyncResult, error) {
	result := newSyncResult()
	startedAt := time.Now()

	if req.OrganizationId == "" || req.SiteId == 0 {
		return nil, errors.New("organization and site are required")
	}
	if _, err := ParseSyncType(string(req.SyncType)); err != nil {
		return nil, err
	}

	ctx = utils.SetOrganizationIdInContext(ctx, req.OrganizationId)
	ctx = utils.SetSiteIdInContext(ctx, req.SiteId)
	db := config.GetDB().WithContext(ctx)

	// Overlapping runs against the same site trample each other's tombstone
	// window, so serialize per site. Lock acquisition is best effort; a run
	// proceeds unlocked when redis is unavailable. A contended lock is still
	// an attempt, so the rejection gets its audit row like any other failure.
	lock, err := siteLock(ctx, req.SiteId, "registry-sync", "registrysync", "RunSync")
	if err != nil {
		result.Success = false
		result.addError(conflictErr("%s", err.Error()).Error())
		return finishRun(ctx, req, result, startedAt)
	}
	if lock != nil {
		defer lock.Release(ctx)
	}

	site, err := models.GetSiteById(ctx, req.OrganizationId, req.SiteId)
	if err != nil {
		result.Success = false
		result.addError("site not found: " + err.Error())
		return finishRun(ctx, req, result, startedAt)
	}

	var client RegistryAPI
	if req.SyncType != SyncTypeSiteLink {
		client, err = newClientForSite(site)
		if err != nil {
			result.Success = false
			result.addError(err.Error())
			return finishRun(ctx, req, result, startedAt)
		}
	}

	switch req.SyncType {
	case SyncTypeItems:
		err = syncItemsFromRegistry(ctx, db, site, client, req.Window, result)
	case SyncTypeTags:
		err = syncTagsFromRegistry(ctx, db, site, client, req.TagType, result)
	case SyncTypePlantBatches:
		err = syncPlantBatchesFromRegistry(ctx, db, site, client, req.Window, result)
	case SyncTypeFacilities:
		err = syncFacilitiesFromRegistry(ctx, db, site, client, result)
	case SyncTypePushLot:
		err = pushInventoryLot(ctx, db, site, client, req.LotId, result)
	case SyncTypeSiteLink:
		err = linkFacilityToSite(ctx, db, site, req.LicenseNumber, result)
	}
	if err != nil {
		result.Success = false
		result.addError(err.Error())
	}

	return finishRun(ctx, req, result, startedAt)
}

// finishRun writes the one audit row every sync attempt gets, success or not.
func finishRun(ctx context.Context, req SyncRequest, result *SyncResult, startedAt time.Time) (*SyncResult, error) {
	completedAt := time.Now()
	status := models.SyncLogStatusCompleted
	if !result.Success {
		status = models.SyncLogStatusFailed
	}
	errorMessage := strings.Join(result.Errors, "; ")

	entry := &models.RegistrySyncLog{
		OrganizationId:  req.OrganizationId,
		SiteId:          req.SiteId,
		SyncType:        string(req.SyncType),
		Direction:       req.SyncType.Direction(),
		Operation:       operationName(req.SyncType),
		Status:          status,
		StartedAt:       startedAt,
		CompletedAt:     completedAt,
		ResponsePayload: result.payloadJSON(),
		ErrorMessage:    errorMessage,
		InitiatedBy:     req.UserId,
	}
	if err := models.CreateRegistrySyncLog(ctx, config.GetDB().WithContext(ctx), entry); err != nil {
		config.LogError(logger, "registrysync", "finishRun", "create sync log", entry, err)
		return result, err
	}

	logger.WithFields(logrus.Fields{
		"organization_id": req.OrganizationId,
		"site_id":         req.SiteId,
		"sync_type":       req.SyncType,
		"status":          status,
		"synced":          result.Synced,
		"duration_ms":     completedAt.Sub(startedAt).Milliseconds(),
	}).Info("registry sync finished")

	return result, nil
}

func operationName(t SyncType) string {
	switch t {
	case SyncTypePushLot:
		return "create_package"
	case SyncTypeSiteLink:
		return "link_facility"
	default:
		return "pull_" + string(t)
	}
}
