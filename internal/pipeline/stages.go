// Package pipeline implements the Kanban stage engine: per-mode stage
// vocabularies, validated stage transitions, and the rule that entering the
// Proposal stage synthesizes a priced proposal exactly once.
package pipeline

import "github.com/odontosync/backend/internal/models"

var clinicStages = []models.PipelineStage{
	models.StageLead,
	models.StageEvaluation,
	models.StageProposal,
	models.StageTreatment,
	models.StageCompleted,
}

var labStages = []models.PipelineStage{
	models.StageLead,
	models.StageDesign,
	models.StageProduction,
	models.StageQualityControl,
	models.StageShipping,
}

// StagesFor returns the ordered stage vocabulary for a business mode.
func StagesFor(mode models.BusinessMode) []models.PipelineStage {
	if mode == models.ModeLaboratory {
		return append([]models.PipelineStage(nil), labStages...)
	}
	return append([]models.PipelineStage(nil), clinicStages...)
}

// ValidStage reports whether stage belongs to the mode's vocabulary.
func ValidStage(mode models.BusinessMode, stage models.PipelineStage) bool {
	for _, s := range StagesFor(mode) {
		if s == stage {
			return true
		}
	}
	return false
}

// FirstStage returns the entry stage of the mode's pipeline.
func FirstStage(mode models.BusinessMode) models.PipelineStage {
	return StagesFor(mode)[0]
}
