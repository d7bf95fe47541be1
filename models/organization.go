package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anejaagam/trazo-backend/config"
	"github.com/anejaagam/trazo-backend/utils"
	"github.com/google/uuid"
)

// Organization is the tenant. Every other row carries its id.
type Organization struct {
	ID        uuid.UUID `gorm:"primary_key;type:char(36)" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name" binding:"required"`
	Email     string    `gorm:"size:100" json:"email"`
	Country   string    `gorm:"size:100" json:"country"`
	Timezone  string    `gorm:"size:64" json:"timezone"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewOrganization struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email"`
	Country  string `json:"country"`
	Timezone string `json:"timezone"`
}

func CreateOrganization(ctx context.Context, input *NewOrganization) (*Organization, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, errors.New("organization name is required")
	}
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return nil, errors.New("invalid email")
	}

	org := Organization{
		ID:       uuid.New(),
		Name:     strings.TrimSpace(input.Name),
		Email:    strings.TrimSpace(input.Email),
		Country:  strings.TrimSpace(input.Country),
		Timezone: strings.TrimSpace(input.Timezone),
		IsActive: utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&org).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

func GetOrganizationById(ctx context.Context, organizationId string) (*Organization, error) {
	var org Organization
	db := config.GetDB()
	if err := db.WithContext(ctx).Where("id = ?", organizationId).Take(&org).Error; err != nil {
		return nil, err
	}
	return &org, nil
}
