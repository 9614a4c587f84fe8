package decision_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldscope/specmatch/internal/models"
	"github.com/fieldscope/specmatch/pkg/decision"
)

func TestDecide_ThresholdTable(t *testing.T) {
	d := decision.NewDecider(decision.DefaultThresholds())

	tests := []struct {
		name       string
		confidence float64
		verdict    models.NumericVerdict
		want       models.Status
	}{
		{"high confidence satisfies", 0.90, models.VerdictSatisfies, models.StatusRepealable},
		{"high confidence violates", 0.90, models.VerdictViolates, models.StatusValidInfraction},
		{"high confidence indeterminate", 0.90, models.VerdictIndeterminate, models.StatusRepealable},
		{"exactly at repeal threshold", 0.85, models.VerdictSatisfies, models.StatusRepealable},
		{"mid band", 0.75, models.VerdictSatisfies, models.StatusReviewRequired},
		{"exactly at review threshold", 0.70, models.VerdictViolates, models.StatusReviewRequired},
		{"below review", 0.40, models.VerdictIndeterminate, models.StatusValidInfraction},
		{"zero confidence", 0.0, models.VerdictIndeterminate, models.StatusValidInfraction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, reason := d.Decide(decision.Input{
				Confidence: tt.confidence,
				Verdict:    tt.verdict,
				BestDoc:    "go95.txt",
			})
			assert.Equal(t, tt.want, status)
			assert.NotEmpty(t, reason)
		})
	}
}

func TestDecide_EmptyIndex(t *testing.T) {
	d := decision.NewDecider(decision.DefaultThresholds())

	status, reason := d.Decide(decision.Input{EmptyIndex: true})
	assert.Equal(t, models.StatusReviewRequired, status)
	assert.Equal(t, "no specification data loaded", reason)
}

func TestDecide_ConfidenceFloorRaisesRepealBar(t *testing.T) {
	d := decision.NewDecider(decision.DefaultThresholds())

	// 0.90 clears the default bar but not a floor of 0.95.
	in := decision.Input{
		Confidence: 0.90,
		Verdict:    models.VerdictSatisfies,
		BestDoc:    "go95.txt",
	}

	status, _ := d.Decide(in)
	assert.Equal(t, models.StatusRepealable, status)

	in.ConfidenceFloor = 0.95
	status, _ = d.Decide(in)
	assert.Equal(t, models.StatusReviewRequired, status)
}

func TestDecide_ConfidenceFloorNeverLowersBar(t *testing.T) {
	d := decision.NewDecider(decision.DefaultThresholds())

	status, _ := d.Decide(decision.Input{
		Confidence:      0.75,
		Verdict:         models.VerdictSatisfies,
		ConfidenceFloor: 0.60,
		BestDoc:         "go95.txt",
	})
	assert.Equal(t, models.StatusReviewRequired, status)
}

func TestDecide_IndeterminateWithFloorDefersToReview(t *testing.T) {
	d := decision.NewDecider(decision.DefaultThresholds())

	in := decision.Input{
		Confidence: 0.95,
		Verdict:    models.VerdictIndeterminate,
		BestDoc:    "go95.txt",
	}

	status, _ := d.Decide(in)
	assert.Equal(t, models.StatusRepealable, status)

	in.ConfidenceFloor = 0.90
	status, _ = d.Decide(in)
	assert.Equal(t, models.StatusReviewRequired, status)
}

func TestDecide_LowConfidenceReasoning(t *testing.T) {
	d := decision.NewDecider(decision.DefaultThresholds())

	_, reason := d.Decide(decision.Input{
		Confidence: 0.10,
		Verdict:    models.VerdictIndeterminate,
	})
	assert.Contains(t, reason, "no defense was found")
	assert.Contains(t, reason, "not because a violation was independently confirmed")
	assert.Contains(t, reason, "no matching specification chunk")
}

func TestDecide_ReasoningCitesEvidence(t *testing.T) {
	d := decision.NewDecider(decision.DefaultThresholds())

	_, reason := d.Decide(decision.Input{
		Confidence:     0.89,
		Verdict:        models.VerdictViolates,
		BestDoc:        "go95.txt",
		BestSimilarity: 0.80,
		Comparison: models.NumericComparison{
			Verdict: models.VerdictViolates,
			Detail:  "measured 16 ft against minimum 18 ft",
		},
	})

	assert.Contains(t, reason, `best match "go95.txt" (similarity 0.800)`)
	assert.Contains(t, reason, "numeric comparison: measured 16 ft against minimum 18 ft")
	assert.Contains(t, reason, "confidence 0.890")
}

func TestDecide_DegradedNote(t *testing.T) {
	d := decision.NewDecider(decision.DefaultThresholds())

	_, reason := d.Decide(decision.Input{
		Confidence: 0.75,
		Verdict:    models.VerdictSatisfies,
		BestDoc:    "go95.txt",
		Degraded:   true,
	})
	assert.Contains(t, reason, "lexical fallback mode")
}

func TestDecide_Deterministic(t *testing.T) {
	d := decision.NewDecider(decision.DefaultThresholds())

	in := decision.Input{
		Confidence:     0.77,
		Verdict:        models.VerdictIndeterminate,
		BestDoc:        "go95.txt",
		BestSimilarity: 0.71,
		Degraded:       true,
	}

	firstStatus, firstReason := d.Decide(in)
	for i := 0; i < 20; i++ {
		status, reason := d.Decide(in)
		assert.Equal(t, firstStatus, status)
		assert.Equal(t, firstReason, reason)
	}
}

func TestDecide_StatusMonotoneInConfidence(t *testing.T) {
	d := decision.NewDecider(decision.DefaultThresholds())

	rank := map[models.Status]int{
		models.StatusValidInfraction: 0,
		models.StatusReviewRequired:  1,
		models.StatusRepealable:      2,
	}

	prev := -1
	for c := 0.0; c <= 1.0; c += 0.01 {
		status, _ := d.Decide(decision.Input{
			Confidence: c,
			Verdict:    models.VerdictSatisfies,
			BestDoc:    "go95.txt",
		})
		r, ok := rank[status]
		require.True(t, ok)
		assert.GreaterOrEqual(t, r, prev, "confidence %.2f", c)
		prev = r
	}
}

func TestNewDecider_ZeroFillsDefaults(t *testing.T) {
	d := decision.NewDecider(decision.Thresholds{})

	status, _ := d.Decide(decision.Input{
		Confidence: 0.86,
		Verdict:    models.VerdictSatisfies,
		BestDoc:    "go95.txt",
	})
	assert.Equal(t, models.StatusRepealable, status)

	status, _ = d.Decide(decision.Input{
		Confidence: 0.72,
		Verdict:    models.VerdictSatisfies,
		BestDoc:    "go95.txt",
	})
	assert.Equal(t, models.StatusReviewRequired, status)
}
