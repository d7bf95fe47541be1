package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anejaagam/trazo-backend/config"
	"github.com/anejaagam/trazo-backend/utils"
	"github.com/shopspring/decimal"
)

// InventoryLot is a discrete quantity of product tracked as one unit. Once
// pushed to the registry it carries the registry package tag permanently.
type InventoryLot struct {
	ID             int             `gorm:"primary_key" json:"id"`
	OrganizationId string          `gorm:"index;not null" json:"organization_id"`
	SiteId         int             `gorm:"index;not null" json:"site_id"`
	BatchId        *int            `gorm:"index" json:"batch_id"`
	LotNumber      string          `gorm:"index;size:100;not null" json:"lot_number" binding:"required"`
	ProductName    string          `gorm:"size:150" json:"product_name"`
	Quantity       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	UnitOfMeasure  string          `gorm:"size:20" json:"unit_of_measure"`

	// Registry linkage. Null until the lot is pushed as a registry package.
	RegistryPackageTag *string    `gorm:"size:64;index" json:"registry_package_tag"`
	RegistryPackageId  *int64     `json:"registry_package_id"`
	PushedAt           *time.Time `json:"pushed_at"`

	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (l InventoryLot) GetOrganizationId() string {
	return l.OrganizationId
}

type NewInventoryLot struct {
	SiteId        int             `json:"site_id" binding:"required"`
	BatchId       *int            `json:"batch_id"`
	LotNumber     string          `json:"lot_number" binding:"required"`
	ProductName   string          `json:"product_name"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitOfMeasure string          `json:"unit_of_measure"`
}

func CreateInventoryLot(ctx context.Context, input *NewInventoryLot) (*InventoryLot, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	if strings.TrimSpace(input.LotNumber) == "" {
		return nil, errors.New("lot number is required")
	}
	if err := utils.ValidateResourceId[Site](ctx, organizationId, input.SiteId); err != nil {
		return nil, err
	}
	if input.BatchId != nil {
		if err := utils.ValidateResourceId[Batch](ctx, organizationId, *input.BatchId); err != nil {
			return nil, err
		}
	}
	if input.Quantity.IsNegative() {
		return nil, errors.New("quantity cannot be negative")
	}

	lot := InventoryLot{
		OrganizationId: organizationId,
		SiteId:         input.SiteId,
		BatchId:        input.BatchId,
		LotNumber:      strings.TrimSpace(input.LotNumber),
		ProductName:    strings.TrimSpace(input.ProductName),
		Quantity:       input.Quantity,
		UnitOfMeasure:  strings.TrimSpace(input.UnitOfMeasure),
		IsActive:       utils.NewTrue(),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&lot).Error; err != nil {
		return nil, err
	}
	return &lot, nil
}

func GetInventoryLotById(ctx context.Context, organizationId string, lotId int) (*InventoryLot, error) {
	return utils.FetchModel[InventoryLot](ctx, organizationId, lotId)
}
