package registrysync

import (
	"testing"

	"github.com/anejaagam/trazo-backend/models"
)

func TestWillTriggerPhaseSync(t *testing.T) {
	cases := []struct {
		from     models.BatchStage
		to       models.BatchStage
		expected bool
	}{
		{models.StageClone, models.StageVegetative, true},
		{models.StageSeedling, models.StageVegetative, true},
		{models.StageVegetative, models.StageFlowering, true},

		// Same-stage and backwards moves stay internal.
		{models.StageVegetative, models.StageVegetative, false},
		{models.StageFlowering, models.StageVegetative, false},
		{models.StageVegetative, models.StageClone, false},

		// Transitions outside the growth window stay internal.
		{models.StagePropagation, models.StageClone, false},
		{models.StageClone, models.StageFlowering, false},
		{models.StageFlowering, models.StageHarvest, false},
		{models.StageHarvest, models.StageDrying, false},
		{models.StageDrying, models.StageClosed, false},
	}
	for _, tc := range cases {
		if got := WillTriggerPhaseSync(tc.from, tc.to); got != tc.expected {
			t.Errorf("WillTriggerPhaseSync(%s, %s) = %v, expected %v", tc.from, tc.to, got, tc.expected)
		}
	}
}

func TestGrowthPhaseForStage(t *testing.T) {
	phase, ok := GrowthPhaseForStage(models.StageVegetative)
	if !ok || phase != "Vegetative" {
		t.Fatalf("GrowthPhaseForStage(vegetative) = %q, %v", phase, ok)
	}
	phase, ok = GrowthPhaseForStage(models.StageFlowering)
	if !ok || phase != "Flowering" {
		t.Fatalf("GrowthPhaseForStage(flowering) = %q, %v", phase, ok)
	}
	if _, ok := GrowthPhaseForStage(models.StageHarvest); ok {
		t.Fatal("GrowthPhaseForStage(harvest) should have no registry phase")
	}
}

func TestParseSyncType(t *testing.T) {
	for _, valid := range []string{"items", "tags", "plant_batches", "facilities", "push_lot", "site_link", " Items "} {
		if _, err := ParseSyncType(valid); err != nil {
			t.Errorf("ParseSyncType(%q) unexpected error: %v", valid, err)
		}
	}
	if _, err := ParseSyncType("harvests"); err == nil {
		t.Fatal("ParseSyncType(harvests) expected error")
	}
}

func TestSyncTypeDirection(t *testing.T) {
	if SyncTypePushLot.Direction() != models.DirectionInternalToRegistry {
		t.Fatal("push_lot should be internal_to_registry")
	}
	if SyncTypeItems.Direction() != models.DirectionRegistryToInternal {
		t.Fatal("items should be registry_to_internal")
	}
}
