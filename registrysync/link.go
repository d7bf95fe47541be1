package registrysync

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/anejaagam/trazo-backend/config"
	"github.com/anejaagam/trazo-backend/models"
	"github.com/anejaagam/trazo-backend/utils"
	"gorm.io/gorm"
)

// linkFacilityToSite binds a registry facility (by license number) to the site.
// Relinking to a different facility releases the old mapping and creates the
// new one in the same transaction, so the site never holds two live links and
// never transiently holds zero during a switch. A facility claimed by another
// site is a conflict, not an overwrite.
func linkFacilityToSite(ctx context.Context, db *gorm.DB, site *models.Site, licenseNumber string, result *SyncResult) error {
	licenseNumber = strings.TrimSpace(licenseNumber)
	if licenseNumber == "" {
		return configErr("license number is required")
	}

	var facility models.RegistryFacilityCache
	err := db.Where("organization_id = ? AND site_id = ? AND license_number = ? AND is_active = ?",
		site.OrganizationId, site.ID, licenseNumber, true).
		Take(&facility).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return configErr("facility %s not found in cache, run a facilities sync first", licenseNumber)
		}
		return err
	}
	registryId := strconv.FormatInt(facility.RegistryId, 10)

	err = db.Transaction(func(tx *gorm.DB) error {
		prev, err := models.FindActiveMappingForInternal(ctx, tx, site.OrganizationId, models.MappingEntitySite, site.ID)
		if err != nil {
			return err
		}
		if prev != nil {
			if prev.RegistryId == registryId {
				result.addWarning(fmt.Sprintf("site already linked to facility %s", licenseNumber))
				result.Synced++
				return nil
			}
			if err := models.ReleaseMapping(ctx, tx, prev.ID); err != nil {
				return err
			}
			if err := tx.Model(&models.RegistryFacilityCache{}).
				Where("organization_id = ? AND site_id = ? AND registry_id = ?", site.OrganizationId, site.ID, prev.RegistryId).
				Updates(map[string]interface{}{"is_linked": false, "linked_site_id": nil}).Error; err != nil {
				return err
			}
		}

		claimed, err := models.FindActiveMappingForRegistry(ctx, tx, site.OrganizationId, models.MappingEntitySite, registryId)
		if err != nil {
			return err
		}
		if claimed != nil {
			return conflictErr("facility %s is already linked to site %d", licenseNumber, claimed.InternalId)
		}

		now := time.Now()
		mapping := &models.RegistryEntityMapping{
			OrganizationId: site.OrganizationId,
			SiteId:         site.ID,
			EntityType:     models.MappingEntitySite,
			InternalId:     site.ID,
			RegistryId:     registryId,
			RegistryName:   facility.FacilityName,
			SyncStatus:     models.MappingStatusSynced,
			LastSyncedAt:   &now,
		}
		if err := models.CreateMapping(ctx, tx, mapping); err != nil {
			return err
		}

		if err := tx.Model(&models.RegistryFacilityCache{}).
			Where("id = ?", facility.ID).
			Updates(map[string]interface{}{"is_linked": true, "linked_site_id": site.ID}).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.Site{}).
			Where("id = ? AND organization_id = ?", site.ID, site.OrganizationId).
			Updates(map[string]interface{}{
				"registry_license_number": facility.LicenseNumber,
				"registry_facility_id":    facility.RegistryId,
				"registry_linked_at":      now,
			}).Error; err != nil {
			return err
		}

		result.Synced++
		result.Created++
		return nil
	})
	if err != nil {
		return err
	}
	// The site row changed; drop the cached copy so the next read sees the link.
	return utils.RemoveRedisItem[models.Site](site.ID)
}

type ImportPlantBatchRequest struct {
	SiteId            int    `json:"site_id" binding:"required"`
	PlantBatchCacheId int    `json:"plant_batch_cache_id" binding:"required"`
	BatchName         string `json:"batch_name"`
	UserId            int    `json:"-"`
}

// plantBatchStage maps a registry plant batch type onto the internal lifecycle.
var plantBatchStage = map[string]models.BatchStage{
	"Clone": models.StageClone,
	"Seed":  models.StageSeedling,
}

// ImportPlantBatch creates an internal batch from a cached registry plant batch.
// Import happens at most once per registry plant batch; a second attempt is a
// conflict so the caller never ends up with two internal batches claiming the
// same plants.
func ImportPlantBatch(ctx context.Context, req ImportPlantBatchRequest) (*models.Batch, *SyncResult, error) {
	result := newSyncResult()
	startedAt := time.Now()

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, nil, configErr("organization id is required")
	}
	if req.UserId == 0 {
		if userId, ok := utils.GetUserIdFromContext(ctx); ok {
			req.UserId = userId
		}
	}
	site, err := models.GetSiteById(ctx, organizationId, req.SiteId)
	if err != nil {
		return nil, nil, err
	}
	db := config.GetDB().WithContext(ctx)

	var cache models.RegistryPlantBatchCache
	if err := db.Where("organization_id = ? AND site_id = ? AND id = ?", organizationId, site.ID, req.PlantBatchCacheId).
		Take(&cache).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, configErr("plant batch not found in cache, run a plant batch sync first")
		}
		return nil, nil, err
	}
	if cache.IsActive != nil && !*cache.IsActive {
		result.addWarning(fmt.Sprintf("plant batch %s is no longer active in the registry", cache.Name))
	}

	var batch *models.Batch
	importErr := func() error {
		if cache.IsLinked != nil && *cache.IsLinked {
			return conflictErr("plant batch %s already imported", cache.Name)
		}
		registryId := strconv.FormatInt(cache.RegistryId, 10)
		claimed, err := models.FindActiveMappingForRegistry(ctx, db, organizationId, models.MappingEntityBatch, registryId)
		if err != nil {
			return err
		}
		if claimed != nil {
			return conflictErr("plant batch %s already linked to batch %d", cache.Name, claimed.InternalId)
		}

		stage, ok := plantBatchStage[cache.Type]
		if !ok {
			stage = models.StageClone
			result.addWarning(fmt.Sprintf("unknown plant batch type %q, defaulting to clone", cache.Type))
		}

		var cultivarId *int
		if strings.TrimSpace(cache.StrainName) != "" {
			cultivar, err := models.FindCultivarByName(ctx, organizationId, cache.StrainName)
			if err != nil {
				return err
			}
			if cultivar != nil {
				cultivarId = &cultivar.ID
			} else {
				result.addWarning(fmt.Sprintf("no cultivar matches strain %q, batch created without one", cache.StrainName))
			}
		}

		name := strings.TrimSpace(req.BatchName)
		if name == "" {
			name = cache.Name
		}

		return db.Transaction(func(tx *gorm.DB) error {
			registryBatchId := cache.RegistryId
			created := models.Batch{
				OrganizationId:    organizationId,
				SiteId:            site.ID,
				Name:              name,
				Stage:             stage,
				PlantCount:        cache.Count,
				CultivarId:        cultivarId,
				StartedDate:       cache.PlantedDate,
				TrackingMode:      models.TrackingModeRegistry,
				RegistryBatchId:   &registryBatchId,
				RegistryBatchName: cache.Name,
				IsActive:          utils.NewTrue(),
			}
			if err := tx.Create(&created).Error; err != nil {
				return err
			}

			now := time.Now()
			mapping := &models.RegistryEntityMapping{
				OrganizationId: organizationId,
				SiteId:         site.ID,
				EntityType:     models.MappingEntityBatch,
				InternalId:     created.ID,
				RegistryId:     registryId,
				RegistryName:   cache.Name,
				SyncStatus:     models.MappingStatusSynced,
				LastSyncedAt:   &now,
			}
			if err := models.CreateMapping(ctx, tx, mapping); err != nil {
				return err
			}

			if err := tx.Model(&models.RegistryPlantBatchCache{}).
				Where("id = ?", cache.ID).
				Updates(map[string]interface{}{"is_linked": true, "linked_batch_id": created.ID}).Error; err != nil {
				return err
			}

			batch = &created
			result.Synced++
			result.Created++
			return nil
		})
	}()
	if importErr != nil {
		result.Success = false
		result.addError(importErr.Error())
	}

	completedAt := time.Now()
	status := models.SyncLogStatusCompleted
	errorMessage := ""
	if !result.Success {
		status = models.SyncLogStatusFailed
		errorMessage = importErr.Error()
	}
	logEntry := &models.RegistrySyncLog{
		OrganizationId:  organizationId,
		SiteId:          site.ID,
		SyncType:        string(SyncTypePlantBatches),
		Direction:       models.DirectionRegistryToInternal,
		Operation:       "import_plant_batch",
		Status:          status,
		StartedAt:       startedAt,
		CompletedAt:     completedAt,
		ResponsePayload: result.payloadJSON(),
		ErrorMessage:    errorMessage,
		InitiatedBy:     req.UserId,
	}
	if err := models.CreateRegistrySyncLog(ctx, db, logEntry); err != nil {
		config.LogError(logger, "registrysync", "ImportPlantBatch", "create sync log", logEntry, err)
	}

	if importErr != nil {
		return nil, result, importErr
	}
	return batch, result, nil
}
