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

// pushInventoryLot creates a registry package for an inventory lot. A lot that
// already carries a package tag short-circuits as success without touching the
// network, so scheduler redeliveries never create duplicate packages. The
// routine makes at most one create call per run; transient failures surface in
// the result and the next run retries.
func pushInventoryLot(ctx context.Context, db *gorm.DB, site *models.Site, client RegistryAPI, lotId int, result *SyncResult) error {
	if lotId == 0 {
		return configErr("lot id is required")
	}

	lot, err := models.GetInventoryLotById(ctx, site.OrganizationId, lotId)
	if err != nil {
		return err
	}
	if lot.SiteId != site.ID {
		return configErr("lot %d does not belong to site %d", lotId, site.ID)
	}

	if lot.RegistryPackageTag != nil && *lot.RegistryPackageTag != "" {
		result.AlreadySynced = true
		result.Synced++
		result.addWarning(fmt.Sprintf("lot %s already pushed as package %s", lot.LotNumber, *lot.RegistryPackageTag))
		return nil
	}
	mapping, err := models.FindActiveMappingForInternal(ctx, db, site.OrganizationId, models.MappingEntityLot, lot.ID)
	if err != nil {
		return err
	}
	if mapping != nil {
		result.AlreadySynced = true
		result.Synced++
		result.addWarning(fmt.Sprintf("lot %s already mapped to registry package %s", lot.LotNumber, mapping.RegistryId))
		return nil
	}

	if config.RegistryReadOnlyMode() {
		return configErr("registry write operations are disabled")
	}
	license, err := requireLicense(site, "")
	if err != nil {
		return err
	}

	var item models.RegistryItemCache
	err = db.Where("organization_id = ? AND site_id = ? AND LOWER(name) = ? AND is_active = ?",
		site.OrganizationId, site.ID, strings.ToLower(strings.TrimSpace(lot.ProductName)), true).
		Take(&item).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return configErr("product %q has no matching registry item", lot.ProductName)
		}
		return err
	}

	var tag models.RegistryTagCache
	err = db.Where("organization_id = ? AND site_id = ? AND tag_type = ? AND is_used = ? AND is_active = ?",
		site.OrganizationId, site.ID, models.TagTypePackage, false, true).
		Order("tag_number").
		Take(&tag).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return configErr("no available package tags, run a tag sync or order more tags")
		}
		return err
	}

	pkg, err := client.CreatePackage(ctx, license, CreatePackageRequest{
		Tag:           tag.TagNumber,
		ItemName:      item.Name,
		Quantity:      lot.Quantity,
		UnitOfMeasure: lot.UnitOfMeasure,
		ActualDate:    time.Now().Format("2006-01-02"),
		Note:          "Lot " + lot.LotNumber,
	})
	if err != nil {
		return err
	}

	registryId := tag.TagNumber
	var packageId *int64
	if pkg != nil && pkg.Id != 0 {
		registryId = strconv.FormatInt(pkg.Id, 10)
		packageId = &pkg.Id
	}

	now := time.Now()
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.InventoryLot{}).
			Where("id = ? AND organization_id = ?", lot.ID, site.OrganizationId).
			Updates(map[string]interface{}{
				"registry_package_tag": tag.TagNumber,
				"registry_package_id":  packageId,
				"pushed_at":            now,
			}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.RegistryTagCache{}).
			Where("id = ?", tag.ID).
			Updates(map[string]interface{}{"is_used": true}).Error; err != nil {
			return err
		}
		return models.CreateMapping(ctx, tx, &models.RegistryEntityMapping{
			OrganizationId: site.OrganizationId,
			SiteId:         site.ID,
			EntityType:     models.MappingEntityLot,
			InternalId:     lot.ID,
			RegistryId:     registryId,
			RegistryName:   tag.TagNumber,
			SyncStatus:     models.MappingStatusSynced,
			LastSyncedAt:   &now,
		})
	})
	if err != nil {
		// The package exists in the registry but the local link write failed.
		// Surface loudly so an operator reconciles instead of a retry creating
		// a second package.
		return fmt.Errorf("package %s created in registry but local update failed: %w", tag.TagNumber, err)
	}

	result.Synced++
	result.Created++
	result.LotsCreated++
	return nil
}

// PushBatchPhase reports a batch stage transition to the registry when the
// transition is in the trigger table. It is best effort: the internal stage
// change has already committed, so a registry failure is recorded and surfaced
// but never rolls the batch back.
func PushBatchPhase(ctx context.Context, batchId int, from, to models.BatchStage, userId int) (*SyncResult, error) {
	result := newSyncResult()
	if !WillTriggerPhaseSync(from, to) {
		return result, nil
	}

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, configErr("organization id is required")
	}
	startedAt := time.Now()
	db := config.GetDB().WithContext(ctx)

	batch, err := models.GetBatchById(ctx, organizationId, batchId)
	if err != nil {
		return nil, err
	}
	if batch.TrackingMode != models.TrackingModeRegistry || batch.RegistryBatchName == "" {
		return result, nil
	}

	pushErr := func() error {
		if config.RegistryReadOnlyMode() {
			return configErr("registry write operations are disabled")
		}
		site, err := models.GetSiteById(ctx, organizationId, batch.SiteId)
		if err != nil {
			return err
		}
		client, err := newClientForSite(site)
		if err != nil {
			return err
		}
		license, err := requireLicense(site, "")
		if err != nil {
			return err
		}
		phase, ok := GrowthPhaseForStage(to)
		if !ok {
			return configErr("stage %s has no registry growth phase", to)
		}
		if err := client.ChangePlantBatchGrowthPhase(ctx, license, GrowthPhaseRequest{
			Name:        batch.RegistryBatchName,
			Count:       batch.PlantCount,
			GrowthPhase: phase,
			GrowthDate:  time.Now().Format("2006-01-02"),
		}); err != nil {
			return err
		}
		result.Synced++
		return nil
	}()
	if pushErr != nil {
		result.Success = false
		result.addError(pushErr.Error())
	}

	completedAt := time.Now()
	status := models.SyncLogStatusCompleted
	errorMessage := ""
	if !result.Success {
		status = models.SyncLogStatusFailed
		errorMessage = pushErr.Error()
	}
	logEntry := &models.RegistrySyncLog{
		OrganizationId:  organizationId,
		SiteId:          batch.SiteId,
		SyncType:        string(SyncTypePlantBatches),
		Direction:       models.DirectionInternalToRegistry,
		Operation:       "change_growth_phase",
		Status:          status,
		StartedAt:       startedAt,
		CompletedAt:     completedAt,
		ResponsePayload: result.payloadJSON(),
		ErrorMessage:    errorMessage,
		InitiatedBy:     userId,
	}
	if err := models.CreateRegistrySyncLog(ctx, db, logEntry); err != nil {
		config.LogError(logger, "registrysync", "PushBatchPhase", "create sync log", logEntry, err)
	}

	return result, pushErr
}
