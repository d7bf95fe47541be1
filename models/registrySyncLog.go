package models

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// RegistrySyncLog is the append-only audit record of one orchestrated sync
// attempt. Exactly one row is written per RunSync call, success or failure, and
// rows are never mutated afterwards.
type RegistrySyncLog struct {
	ID             int           `gorm:"primary_key" json:"id"`
	OrganizationId string        `gorm:"index;not null" json:"organization_id"`
	SiteId         int           `gorm:"index;not null" json:"site_id"`
	SyncType       string        `gorm:"index;size:30;not null" json:"sync_type"`
	Direction      SyncDirection `gorm:"size:30;not null" json:"direction"`
	Operation      string        `gorm:"size:64;not null" json:"operation"`
	Status         string        `gorm:"size:20;not null" json:"status"`

	StartedAt   time.Time `gorm:"not null" json:"started_at"`
	CompletedAt time.Time `gorm:"not null" json:"completed_at"`

	ResponsePayload []byte `gorm:"type:json" json:"response_payload"`
	ErrorMessage    string `gorm:"type:text" json:"error_message"`
	InitiatedBy     int    `gorm:"index" json:"initiated_by"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (l RegistrySyncLog) GetOrganizationId() string { return l.OrganizationId }

func CreateRegistrySyncLog(ctx context.Context, db *gorm.DB, entry *RegistrySyncLog) error {
	return db.WithContext(ctx).Create(entry).Error
}

func GetRegistrySyncLogById(ctx context.Context, db *gorm.DB, organizationId string, id int) (*RegistrySyncLog, error) {
	var entry RegistrySyncLog
	err := db.WithContext(ctx).
		Where("organization_id = ? AND id = ?", organizationId, id).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func ListRegistrySyncLogs(ctx context.Context, db *gorm.DB, organizationId string, siteId int, limit int) ([]RegistrySyncLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var logs []RegistrySyncLog
	err := db.WithContext(ctx).
		Where("organization_id = ? AND site_id = ?", organizationId, siteId).
		Order("id desc").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
