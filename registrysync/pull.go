package registrysync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anejaagam/trazo-backend/models"
	"github.com/anejaagam/trazo-backend/utils"
	"gorm.io/gorm"
)

// Each pull routine mirrors one registry collection into its cache table:
// upsert everything the registry returned, then flip is_active off on rows the
// registry stopped returning. Cache rows are never hard deleted so links keep
// pointing at something.

func syncItemsFromRegistry(ctx context.Context, db *gorm.DB, site *models.Site, client RegistryAPI, window TimeWindow, result *SyncResult) error {
	license, err := requireLicense(site, "")
	if err != nil {
		return err
	}
	syncStart := time.Now()

	records, err := client.ListItems(ctx, license, window)
	if err != nil {
		return err
	}

	existing := map[int64]models.RegistryItemCache{}
	var rows []models.RegistryItemCache
	if err := db.Where("organization_id = ? AND site_id = ?", site.OrganizationId, site.ID).Find(&rows).Error; err != nil {
		return err
	}
	for _, row := range rows {
		existing[row.RegistryId] = row
	}

	seen := map[int64]bool{}
	for _, rec := range records {
		if rec.Id == 0 {
			result.addWarning("item record missing registry id, skipped")
			continue
		}
		if seen[rec.Id] {
			result.addWarning(fmt.Sprintf("duplicate item %d in registry response", rec.Id))
		}

		if row, ok := existing[rec.Id]; ok {
			err := db.Model(&models.RegistryItemCache{}).Where("id = ?", row.ID).Updates(map[string]interface{}{
				"name":             strings.TrimSpace(rec.Name),
				"product_category": rec.ProductCategoryName,
				"quantity_type":    rec.QuantityType,
				"unit_of_measure":  rec.UnitOfMeasureName,
				"strain_name":      rec.StrainName,
				"is_active":        true,
				"last_synced_at":   syncStart,
			}).Error
			if err != nil {
				result.addError(fmt.Sprintf("item %d: %s", rec.Id, err.Error()))
				continue
			}
			if !seen[rec.Id] {
				result.Updated++
				result.Synced++
			}
		} else {
			now := syncStart
			cache := models.RegistryItemCache{
				OrganizationId:  site.OrganizationId,
				SiteId:          site.ID,
				RegistryId:      rec.Id,
				Name:            strings.TrimSpace(rec.Name),
				ProductCategory: rec.ProductCategoryName,
				QuantityType:    rec.QuantityType,
				UnitOfMeasure:   rec.UnitOfMeasureName,
				StrainName:      rec.StrainName,
				IsActive:        utils.NewTrue(),
				LastSyncedAt:    &now,
			}
			if err := db.Create(&cache).Error; err != nil {
				result.addError(fmt.Sprintf("item %d: %s", rec.Id, err.Error()))
				continue
			}
			existing[rec.Id] = cache
			result.Created++
			result.Synced++
		}
		seen[rec.Id] = true
	}

	// Incremental pulls only see a slice of the registry; absence from the
	// response says nothing about deletion.
	if !window.isZero() {
		return nil
	}
	return tombstoneStale(db, &models.RegistryItemCache{}, site, syncStart)
}

func syncTagsFromRegistry(ctx context.Context, db *gorm.DB, site *models.Site, client RegistryAPI, tagType string, result *SyncResult) error {
	tagType = strings.TrimSpace(tagType)
	if tagType == "" {
		tagType = "all"
	}

	var types []models.RegistryTagType
	switch {
	case strings.EqualFold(tagType, "all"):
		types = []models.RegistryTagType{models.TagTypePlant, models.TagTypePackage}
	case strings.EqualFold(tagType, string(models.TagTypePlant)):
		types = []models.RegistryTagType{models.TagTypePlant}
	case strings.EqualFold(tagType, string(models.TagTypePackage)):
		types = []models.RegistryTagType{models.TagTypePackage}
	default:
		return fmt.Errorf("invalid tag type %q", tagType)
	}

	license, err := requireLicense(site, "")
	if err != nil {
		return err
	}
	syncStart := time.Now()

	// List calls go out concurrently; cache writes stay sequential on the one
	// db handle.
	type listOutcome struct {
		tagType models.RegistryTagType
		records []RegistryTag
		err     error
	}
	outcomes := make(chan listOutcome, len(types))
	for _, t := range types {
		go func(t models.RegistryTagType) {
			records, err := client.ListTags(ctx, license, t)
			outcomes <- listOutcome{tagType: t, records: records, err: err}
		}(t)
	}
	byType := map[models.RegistryTagType][]RegistryTag{}
	var listErr error
	for range types {
		outcome := <-outcomes
		if outcome.err != nil {
			listErr = outcome.err
			continue
		}
		byType[outcome.tagType] = outcome.records
	}
	if listErr != nil {
		return listErr
	}

	for _, t := range types {
		count, err := upsertTags(db, site, t, byType[t], syncStart, result)
		if err != nil {
			return err
		}
		n := count
		switch t {
		case models.TagTypePlant:
			result.PlantTagsSynced = &n
		case models.TagTypePackage:
			result.PackageTagsSynced = &n
		}
	}

	// Tombstone only within the pulled types; an unpulled type's rows were not
	// observed this run.
	return db.Model(&models.RegistryTagCache{}).
		Where("organization_id = ? AND site_id = ? AND tag_type IN ? AND is_active = ? AND (last_synced_at IS NULL OR last_synced_at < ?)",
			site.OrganizationId, site.ID, types, true, syncStart).
		Updates(map[string]interface{}{"is_active": false}).Error
}

func upsertTags(db *gorm.DB, site *models.Site, tagType models.RegistryTagType, records []RegistryTag, syncStart time.Time, result *SyncResult) (int, error) {
	existing := map[int64]models.RegistryTagCache{}
	var rows []models.RegistryTagCache
	if err := db.Where("organization_id = ? AND site_id = ? AND tag_type = ?", site.OrganizationId, site.ID, tagType).Find(&rows).Error; err != nil {
		return 0, err
	}
	for _, row := range rows {
		existing[row.RegistryId] = row
	}

	count := 0
	seen := map[int64]bool{}
	for _, rec := range records {
		if rec.Id == 0 || strings.TrimSpace(rec.Label) == "" {
			result.addWarning("tag record missing registry id or label, skipped")
			continue
		}
		if seen[rec.Id] {
			result.addWarning(fmt.Sprintf("duplicate tag %d in registry response", rec.Id))
		}

		if row, ok := existing[rec.Id]; ok {
			err := db.Model(&models.RegistryTagCache{}).Where("id = ?", row.ID).Updates(map[string]interface{}{
				"tag_number":     rec.Label,
				"status":         rec.StatusName,
				"is_used":        rec.IsUsed,
				"is_active":      true,
				"last_synced_at": syncStart,
			}).Error
			if err != nil {
				result.addError(fmt.Sprintf("tag %s: %s", rec.Label, err.Error()))
				continue
			}
			if !seen[rec.Id] {
				result.Updated++
			}
		} else {
			now := syncStart
			isUsed := rec.IsUsed
			cache := models.RegistryTagCache{
				OrganizationId: site.OrganizationId,
				SiteId:         site.ID,
				RegistryId:     rec.Id,
				TagNumber:      rec.Label,
				TagType:        tagType,
				Status:         rec.StatusName,
				IsUsed:         &isUsed,
				IsActive:       utils.NewTrue(),
				LastSyncedAt:   &now,
			}
			if err := db.Create(&cache).Error; err != nil {
				result.addError(fmt.Sprintf("tag %s: %s", rec.Label, err.Error()))
				continue
			}
			existing[rec.Id] = cache
			result.Created++
		}
		if !seen[rec.Id] {
			result.Synced++
			count++
		}
		seen[rec.Id] = true
	}
	return count, nil
}

func syncPlantBatchesFromRegistry(ctx context.Context, db *gorm.DB, site *models.Site, client RegistryAPI, window TimeWindow, result *SyncResult) error {
	license, err := requireLicense(site, "")
	if err != nil {
		return err
	}
	syncStart := time.Now()

	records, err := client.ListPlantBatches(ctx, license, window)
	if err != nil {
		return err
	}

	existing := map[int64]models.RegistryPlantBatchCache{}
	var rows []models.RegistryPlantBatchCache
	if err := db.Where("organization_id = ? AND site_id = ?", site.OrganizationId, site.ID).Find(&rows).Error; err != nil {
		return err
	}
	for _, row := range rows {
		existing[row.RegistryId] = row
	}

	seen := map[int64]bool{}
	for _, rec := range records {
		if rec.Id == 0 {
			result.addWarning("plant batch record missing registry id, skipped")
			continue
		}
		if seen[rec.Id] {
			result.addWarning(fmt.Sprintf("duplicate plant batch %d in registry response", rec.Id))
		}
		plantedDate := parseRegistryDate(rec.PlantedDate)

		if row, ok := existing[rec.Id]; ok {
			// Link state is ours, not the registry's. Never overwrite it on a pull.
			err := db.Model(&models.RegistryPlantBatchCache{}).Where("id = ?", row.ID).Updates(map[string]interface{}{
				"name":           rec.Name,
				"type":           rec.Type,
				"strain_name":    rec.StrainName,
				"count":          rec.Count,
				"planted_date":   plantedDate,
				"growth_phase":   rec.GrowthPhase,
				"is_active":      true,
				"last_synced_at": syncStart,
			}).Error
			if err != nil {
				result.addError(fmt.Sprintf("plant batch %s: %s", rec.Name, err.Error()))
				continue
			}
			if !seen[rec.Id] {
				result.Updated++
			}
		} else {
			now := syncStart
			cache := models.RegistryPlantBatchCache{
				OrganizationId: site.OrganizationId,
				SiteId:         site.ID,
				RegistryId:     rec.Id,
				Name:           rec.Name,
				Type:           rec.Type,
				StrainName:     rec.StrainName,
				Count:          rec.Count,
				PlantedDate:    plantedDate,
				GrowthPhase:    rec.GrowthPhase,
				IsLinked:       utils.NewFalse(),
				IsActive:       utils.NewTrue(),
				LastSyncedAt:   &now,
			}
			if err := db.Create(&cache).Error; err != nil {
				result.addError(fmt.Sprintf("plant batch %s: %s", rec.Name, err.Error()))
				continue
			}
			existing[rec.Id] = cache
			result.Created++
		}
		if !seen[rec.Id] {
			result.Synced++
		}
		seen[rec.Id] = true
	}

	if !window.isZero() {
		return nil
	}
	return tombstoneStale(db, &models.RegistryPlantBatchCache{}, site, syncStart)
}

func syncFacilitiesFromRegistry(ctx context.Context, db *gorm.DB, site *models.Site, client RegistryAPI, result *SyncResult) error {
	syncStart := time.Now()

	records, err := client.ListFacilities(ctx)
	if err != nil {
		return err
	}

	existing := map[int64]models.RegistryFacilityCache{}
	var rows []models.RegistryFacilityCache
	if err := db.Where("organization_id = ? AND site_id = ?", site.OrganizationId, site.ID).Find(&rows).Error; err != nil {
		return err
	}
	for _, row := range rows {
		existing[row.RegistryId] = row
	}

	seen := map[int64]bool{}
	for _, rec := range records {
		if rec.Id == 0 || strings.TrimSpace(rec.LicenseNumber) == "" {
			result.addWarning("facility record missing registry id or license, skipped")
			continue
		}
		if seen[rec.Id] {
			result.addWarning(fmt.Sprintf("duplicate facility %d in registry response", rec.Id))
		}

		if row, ok := existing[rec.Id]; ok {
			err := db.Model(&models.RegistryFacilityCache{}).Where("id = ?", row.ID).Updates(map[string]interface{}{
				"license_number":  rec.LicenseNumber,
				"facility_name":   rec.Name,
				"facility_type":   rec.FacilityType,
				"can_grow_plants": rec.CanGrowPlants,
				"is_active":       true,
				"last_synced_at":  syncStart,
			}).Error
			if err != nil {
				result.addError(fmt.Sprintf("facility %s: %s", rec.LicenseNumber, err.Error()))
				continue
			}
			if !seen[rec.Id] {
				result.Updated++
			}
		} else {
			now := syncStart
			canGrow := rec.CanGrowPlants
			cache := models.RegistryFacilityCache{
				OrganizationId: site.OrganizationId,
				SiteId:         site.ID,
				RegistryId:     rec.Id,
				LicenseNumber:  rec.LicenseNumber,
				FacilityName:   rec.Name,
				FacilityType:   rec.FacilityType,
				CanGrowPlants:  &canGrow,
				IsLinked:       utils.NewFalse(),
				IsActive:       utils.NewTrue(),
				LastSyncedAt:   &now,
			}
			if err := db.Create(&cache).Error; err != nil {
				result.addError(fmt.Sprintf("facility %s: %s", rec.LicenseNumber, err.Error()))
				continue
			}
			existing[rec.Id] = cache
			result.Created++
		}
		if !seen[rec.Id] {
			result.Synced++
		}
		seen[rec.Id] = true
	}

	return tombstoneStale(db, &models.RegistryFacilityCache{}, site, syncStart)
}

// tombstoneStale deactivates cache rows the registry stopped returning. Rows
// touched this run carry last_synced_at >= syncStart and are left alone.
func tombstoneStale(db *gorm.DB, model interface{}, site *models.Site, syncStart time.Time) error {
	return db.Model(model).
		Where("organization_id = ? AND site_id = ? AND is_active = ? AND (last_synced_at IS NULL OR last_synced_at < ?)",
			site.OrganizationId, site.ID, true, syncStart).
		Updates(map[string]interface{}{"is_active": false}).Error
}

func parseRegistryDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}
