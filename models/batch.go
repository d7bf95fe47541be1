package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anejaagam/trazo-backend/config"
	"github.com/anejaagam/trazo-backend/utils"
)

// Batch is the authoritative internal record of a group of plants moving through
// the cultivation lifecycle. The registry mirror is derived from it, never the
// reverse, except immediately after an import where the mirror is the seed.
type Batch struct {
	ID             int        `gorm:"primary_key" json:"id"`
	OrganizationId string     `gorm:"index;not null" json:"organization_id"`
	SiteId         int        `gorm:"index;not null" json:"site_id"`
	Name           string     `gorm:"index;size:100;not null" json:"name" binding:"required"`
	Stage          BatchStage `gorm:"size:20;not null" json:"stage"`
	PlantCount     int        `gorm:"not null;default:0" json:"plant_count"`
	CultivarId     *int       `gorm:"index" json:"cultivar_id"`
	StartedDate    *time.Time `json:"started_date"`

	// Registry linkage. Null until the batch is linked/imported.
	TrackingMode      TrackingMode `gorm:"size:20;not null;default:none" json:"tracking_mode"`
	RegistryBatchId   *int64       `gorm:"index" json:"registry_batch_id"`
	RegistryBatchName string       `gorm:"size:150" json:"registry_batch_name"`

	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (b Batch) GetOrganizationId() string {
	return b.OrganizationId
}

type NewBatch struct {
	SiteId      int        `json:"site_id" binding:"required"`
	Name        string     `json:"name" binding:"required"`
	Stage       BatchStage `json:"stage" binding:"required"`
	PlantCount  int        `json:"plant_count"`
	CultivarId  *int       `json:"cultivar_id"`
	StartedDate *time.Time `json:"started_date"`
}

func CreateBatch(ctx context.Context, input *NewBatch) (*Batch, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, errors.New("batch name is required")
	}
	if err := utils.ValidateResourceId[Site](ctx, organizationId, input.SiteId); err != nil {
		return nil, err
	}
	if input.CultivarId != nil {
		if err := utils.ValidateResourceId[Cultivar](ctx, organizationId, *input.CultivarId); err != nil {
			return nil, err
		}
	}

	batch := Batch{
		OrganizationId: organizationId,
		SiteId:         input.SiteId,
		Name:           strings.TrimSpace(input.Name),
		Stage:          input.Stage,
		PlantCount:     input.PlantCount,
		CultivarId:     input.CultivarId,
		StartedDate:    input.StartedDate,
		TrackingMode:   TrackingModeNone,
		IsActive:       utils.NewTrue(),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&batch).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

func GetBatchById(ctx context.Context, organizationId string, batchId int) (*Batch, error) {
	return utils.FetchModel[Batch](ctx, organizationId, batchId)
}
