package registrysync

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/anejaagam/trazo-backend/models"
	"github.com/shopspring/decimal"
)

// SyncType is the closed set of orchestrated sync operations. Dispatch is an
// exhaustive switch in RunSync; adding a type without a routine is a compile-time
// visible change, not a string typo.
type SyncType string

const (
	SyncTypeItems        SyncType = "items"
	SyncTypeTags         SyncType = "tags"
	SyncTypePlantBatches SyncType = "plant_batches"
	SyncTypeFacilities   SyncType = "facilities"
	SyncTypePushLot      SyncType = "push_lot"
	SyncTypeSiteLink     SyncType = "site_link"
)

func ParseSyncType(s string) (SyncType, error) {
	switch SyncType(strings.ToLower(strings.TrimSpace(s))) {
	case SyncTypeItems:
		return SyncTypeItems, nil
	case SyncTypeTags:
		return SyncTypeTags, nil
	case SyncTypePlantBatches:
		return SyncTypePlantBatches, nil
	case SyncTypeFacilities:
		return SyncTypeFacilities, nil
	case SyncTypePushLot:
		return SyncTypePushLot, nil
	case SyncTypeSiteLink:
		return SyncTypeSiteLink, nil
	}
	return "", errors.New("invalid sync type")
}

func (t SyncType) Direction() models.SyncDirection {
	switch t {
	case SyncTypePushLot:
		return models.DirectionInternalToRegistry
	default:
		return models.DirectionRegistryToInternal
	}
}

// TimeWindow bounds a registry list call by last-modified time. Zero values mean
// unbounded.
type TimeWindow struct {
	LastModifiedStart string `json:"lastModifiedStart,omitempty"`
	LastModifiedEnd   string `json:"lastModifiedEnd,omitempty"`
}

func (w TimeWindow) isZero() bool {
	return w.LastModifiedStart == "" && w.LastModifiedEnd == ""
}

// SyncRequest is one orchestrated sync invocation.
type SyncRequest struct {
	SyncType       SyncType
	SiteId         int
	OrganizationId string
	UserId         int

	// Optional per-type parameters.
	TagType       string     // Plant | Package | all (tags pull)
	LotId         int        // push_lot
	LicenseNumber string     // site_link
	Window        TimeWindow // pulls
}

// SyncResult is the structured outcome of one sync invocation. Per-item failures
// accumulate in Errors/Warnings; Success reflects whether the routine itself ran
// to completion (a completed run with item errors is still Success=true).
type SyncResult struct {
	Success  bool     `json:"success"`
	Synced   int      `json:"synced"`
	Created  int      `json:"created"`
	Updated  int      `json:"updated"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`

	// Tag pulls report the per-type split in addition to the aggregate.
	PlantTagsSynced   *int `json:"plantTagsSynced,omitempty"`
	PackageTagsSynced *int `json:"packageTagsSynced,omitempty"`

	// Push results.
	LotsCreated   int  `json:"lotsCreated,omitempty"`
	AlreadySynced bool `json:"alreadySynced,omitempty"`
}

func newSyncResult() *SyncResult {
	return &SyncResult{
		Success:  true,
		Errors:   []string{},
		Warnings: []string{},
	}
}

func (r *SyncResult) addError(msg string) {
	r.Errors = append(r.Errors, msg)
}

func (r *SyncResult) addWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

func (r *SyncResult) merge(other *SyncResult) {
	r.Synced += other.Synced
	r.Created += other.Created
	r.Updated += other.Updated
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	if !other.Success {
		r.Success = false
	}
}

func (r *SyncResult) payloadJSON() []byte {
	b, _ := json.Marshal(r)
	return b
}

/* registry record shapes */

type RegistryFacility struct {
	Id            int64  `json:"Id"`
	Name          string `json:"Name"`
	LicenseNumber string `json:"LicenseNumber"`
	FacilityType  string `json:"FacilityType"`
	CanGrowPlants bool   `json:"CanGrowPlants"`
}

type RegistryItem struct {
	Id                  int64  `json:"Id"`
	Name                string `json:"Name"`
	ProductCategoryName string `json:"ProductCategoryName"`
	QuantityType        string `json:"QuantityType"`
	UnitOfMeasureName   string `json:"UnitOfMeasureName"`
	StrainName          string `json:"StrainName"`
}

type RegistryTag struct {
	Id          int64  `json:"Id"`
	Label       string `json:"Label"`
	TagTypeName string `json:"TagTypeName"`
	StatusName  string `json:"StatusName"`
	IsUsed      bool   `json:"IsUsed"`
}

type RegistryPlantBatch struct {
	Id          int64  `json:"Id"`
	Name        string `json:"Name"`
	Type        string `json:"Type"` // Clone | Seed
	StrainName  string `json:"StrainName"`
	Count       int    `json:"Count"`
	PlantedDate string `json:"PlantedDate"`
	GrowthPhase string `json:"GrowthPhase"`
}

type RegistryPackage struct {
	Id    int64  `json:"Id"`
	Label string `json:"Label"`
}

type CreatePackageRequest struct {
	Tag           string          `json:"Tag"`
	ItemName      string          `json:"Item"`
	Quantity      decimal.Decimal `json:"Quantity"`
	UnitOfMeasure string          `json:"UnitOfMeasure"`
	ActualDate    string          `json:"ActualDate"`
	Note          string          `json:"Note,omitempty"`
}

type GrowthPhaseRequest struct {
	Name        string `json:"Name"`
	Count       int    `json:"Count"`
	GrowthPhase string `json:"GrowthPhase"`
	GrowthDate  string `json:"GrowthDate"`
}

// RegistryAPI is the minimal client surface the engine depends on. The HTTP
// client implements it; tests substitute fakes.
type RegistryAPI interface {
	ListFacilities(ctx context.Context) ([]RegistryFacility, error)
	ListItems(ctx context.Context, licenseNumber string, window TimeWindow) ([]RegistryItem, error)
	ListTags(ctx context.Context, licenseNumber string, tagType models.RegistryTagType) ([]RegistryTag, error)
	ListPlantBatches(ctx context.Context, licenseNumber string, window TimeWindow) ([]RegistryPlantBatch, error)
	CreatePackage(ctx context.Context, licenseNumber string, req CreatePackageRequest) (*RegistryPackage, error)
	ChangePlantBatchGrowthPhase(ctx context.Context, licenseNumber string, req GrowthPhaseRequest) error
}

/* async trigger payloads */

type PubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
		ID   string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type SyncPubSubPayload struct {
	OrganizationId string   `json:"organization_id"`
	SiteId         int      `json:"site_id"`
	SyncType       SyncType `json:"sync_type"`
	TagType        string   `json:"tag_type,omitempty"`
	UserId         int      `json:"user_id,omitempty"`
}
