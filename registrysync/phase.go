package registrysync

import "github.com/anejaagam/trazo-backend/models"

// phaseSyncTriggers enumerates the stage transitions the registry must hear
// about. Anything not listed stays internal: backwards moves, same-stage
// updates, and post-growth transitions like harvest or closing are not
// registry growth phase changes.
var phaseSyncTriggers = map[[2]models.BatchStage]bool{
	{models.StageClone, models.StageVegetative}:     true,
	{models.StageSeedling, models.StageVegetative}:  true,
	{models.StageVegetative, models.StageFlowering}: true,
}

// registryGrowthPhase names the registry growth phase for an internal stage.
var registryGrowthPhase = map[models.BatchStage]string{
	models.StageVegetative: "Vegetative",
	models.StageFlowering:  "Flowering",
}

// WillTriggerPhaseSync reports whether moving a batch between the given stages
// requires a growth phase push to the registry. The default answer is no; only
// transitions in the trigger table sync.
func WillTriggerPhaseSync(from, to models.BatchStage) bool {
	return phaseSyncTriggers[[2]models.BatchStage{from, to}]
}

// GrowthPhaseForStage returns the registry growth phase name for a stage and
// whether the stage has a registry equivalent at all.
func GrowthPhaseForStage(stage models.BatchStage) (string, bool) {
	phase, ok := registryGrowthPhase[stage]
	return phase, ok
}
