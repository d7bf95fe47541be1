package models

import (
	"errors"
	"strings"
)

type UserRole string

const (
	UserRoleAdmin    UserRole = "A"
	UserRoleOwner    UserRole = "O"
	UserRoleOperator UserRole = "C"
)

// BatchStage is the internal lifecycle stage of a cultivation batch. The
// registry only tracks a subset of these as growth phases.
type BatchStage string

const (
	StagePropagation BatchStage = "propagation"
	StageClone       BatchStage = "clone"
	StageSeedling    BatchStage = "seedling"
	StageVegetative  BatchStage = "vegetative"
	StageFlowering   BatchStage = "flowering"
	StageHarvest     BatchStage = "harvest"
	StageDrying      BatchStage = "drying"
	StageClosed      BatchStage = "closed"
)

func ParseBatchStage(s string) (BatchStage, error) {
	switch BatchStage(strings.ToLower(strings.TrimSpace(s))) {
	case StagePropagation:
		return StagePropagation, nil
	case StageClone:
		return StageClone, nil
	case StageSeedling:
		return StageSeedling, nil
	case StageVegetative:
		return StageVegetative, nil
	case StageFlowering:
		return StageFlowering, nil
	case StageHarvest:
		return StageHarvest, nil
	case StageDrying:
		return StageDrying, nil
	case StageClosed:
		return StageClosed, nil
	}
	return "", errors.New("invalid batch stage")
}

// TrackingMode records whether a batch is mirrored into the registry.
type TrackingMode string

const (
	TrackingModeNone     TrackingMode = "none"
	TrackingModeRegistry TrackingMode = "registry"
)

// RegistryTagType partitions registry tags.
type RegistryTagType string

const (
	TagTypePlant   RegistryTagType = "Plant"
	TagTypePackage RegistryTagType = "Package"
)

// SyncDirection of one orchestrated sync attempt.
type SyncDirection string

const (
	DirectionRegistryToInternal SyncDirection = "registry_to_internal"
	DirectionInternalToRegistry SyncDirection = "internal_to_registry"
)

// Sync log statuses.
const (
	SyncLogStatusCompleted = "completed"
	SyncLogStatusFailed    = "failed"
)

// Mapping sync statuses. A mapping counts toward the at-most-one-active-link
// invariant unless it is released.
const (
	MappingStatusSynced   = "synced"
	MappingStatusPending  = "pending"
	MappingStatusError    = "error"
	MappingStatusReleased = "released"
)

// Mapping entity types.
const (
	MappingEntityBatch = "batch"
	MappingEntityLot   = "lot"
	MappingEntitySite  = "site"
)
