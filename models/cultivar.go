package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anejaagam/trazo-backend/config"
	"github.com/anejaagam/trazo-backend/utils"
	"gorm.io/gorm"
)

// Cultivar is an internally managed strain/variety.
type Cultivar struct {
	ID             int       `gorm:"primary_key" json:"id"`
	OrganizationId string    `gorm:"index;not null" json:"organization_id"`
	Name           string    `gorm:"index;size:100;not null" json:"name" binding:"required"`
	Species        string    `gorm:"size:100" json:"species"`
	IsActive       *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c Cultivar) GetOrganizationId() string {
	return c.OrganizationId
}

type NewCultivar struct {
	Name    string `json:"name" binding:"required"`
	Species string `json:"species"`
}

func CreateCultivar(ctx context.Context, input *NewCultivar) (*Cultivar, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	if err := utils.ValidateUnique[Cultivar](ctx, organizationId, "name", input.Name, 0); err != nil {
		return nil, err
	}

	cultivar := Cultivar{
		OrganizationId: organizationId,
		Name:           strings.TrimSpace(input.Name),
		Species:        strings.TrimSpace(input.Species),
		IsActive:       utils.NewTrue(),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&cultivar).Error; err != nil {
		return nil, err
	}
	return &cultivar, nil
}

// FindCultivarByName does a case-insensitive lookup. Returns (nil, nil) when no
// cultivar matches.
func FindCultivarByName(ctx context.Context, organizationId string, name string) (*Cultivar, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	var cultivar Cultivar
	db := config.GetDB()
	err := db.WithContext(ctx).
		Where("organization_id = ? AND LOWER(name) = ?", organizationId, strings.ToLower(name)).
		Take(&cultivar).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cultivar, nil
}
