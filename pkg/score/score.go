// Package score fuses retrieval similarity, entity overlap and numeric
// comparison into a single confidence plus a numeric verdict. Everything
// here is pure: identical inputs always produce identical outputs.
package score

import (
	"github.com/fieldscope/specmatch/internal/models"
	"github.com/fieldscope/specmatch/internal/types"
)

// Weights are the fusion constants. The magnitudes are product-tunable, so
// they live here with defaults instead of inline at call sites.
type Weights struct {
	// EntityBonus is added once per entity label present in both the
	// infraction and the top-matched chunk.
	EntityBonus float64
	// EntityBonusCap bounds the total entity bonus.
	EntityBonusCap float64
	// DegradedCap bounds confidence when running on the lexical fallback
	// signal. A degraded signal never claims high confidence.
	DegradedCap float64
}

func DefaultWeights() Weights {
	return Weights{
		EntityBonus:    0.03,
		EntityBonusCap: 0.12,
		DegradedCap:    0.75,
	}
}

type Engine struct {
	weights   Weights
	extractor types.EntityExtractor
}

func NewEngine(weights Weights, extractor types.EntityExtractor) *Engine {
	if weights.EntityBonus == 0 {
		weights.EntityBonus = DefaultWeights().EntityBonus
	}
	if weights.EntityBonusCap == 0 {
		weights.EntityBonusCap = DefaultWeights().EntityBonusCap
	}
	if weights.DegradedCap == 0 {
		weights.DegradedCap = DefaultWeights().DegradedCap
	}
	return &Engine{weights: weights, extractor: extractor}
}

// Result carries the fused confidence and the audit trail behind it.
type Result struct {
	Confidence    float64
	Verdict       models.NumericVerdict
	Comparison    models.NumericComparison
	OverlapLabels []models.EntityLabel
}

// Score fuses the signals for one analyzed infraction. entities are the
// infraction's extracted entities; matches come from the index, best
// first; degraded marks the lexical fallback path.
func (e *Engine) Score(entities []models.Entity, matches []models.MatchResult, degraded bool) Result {
	result := Result{
		Verdict:    models.VerdictIndeterminate,
		Comparison: models.NumericComparison{Verdict: models.VerdictIndeterminate},
	}

	if len(matches) == 0 {
		return result
	}

	base := matches[0].Similarity
	chunkEntities := e.extractor.Extract(matches[0].Chunk.Text)

	result.OverlapLabels = overlappingLabels(entities, chunkEntities)
	bonus := float64(len(result.OverlapLabels)) * e.weights.EntityBonus
	if bonus > e.weights.EntityBonusCap {
		bonus = e.weights.EntityBonusCap
	}

	result.Comparison = compareMeasures(entities, chunkEntities, matches[0].Chunk.Text)
	result.Verdict = result.Comparison.Verdict

	confidence := base + bonus
	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}
	if degraded && confidence > e.weights.DegradedCap {
		confidence = e.weights.DegradedCap
	}
	result.Confidence = confidence

	return result
}

// labelOrder fixes the reporting order of overlapping labels.
var labelOrder = []models.EntityLabel{
	models.LabelMaterial,
	models.LabelMeasure,
	models.LabelEquipment,
	models.LabelInstallation,
	models.LabelStandard,
	models.LabelLocation,
	models.LabelSpecification,
}

func overlappingLabels(a, b []models.Entity) []models.EntityLabel {
	inA := make(map[models.EntityLabel]bool)
	for _, e := range a {
		inA[e.Label] = true
	}
	inB := make(map[models.EntityLabel]bool)
	for _, e := range b {
		inB[e.Label] = true
	}

	var overlap []models.EntityLabel
	for _, label := range labelOrder {
		if inA[label] && inB[label] {
			overlap = append(overlap, label)
		}
	}
	return overlap
}
