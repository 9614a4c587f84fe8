// Package decision maps a fused confidence and numeric verdict to the
// final infraction status plus a reasoning string a human reviewer can
// audit. Stateless: every call is evaluated from scratch.
package decision

import (
	"fmt"
	"strings"

	"github.com/fieldscope/specmatch/internal/models"
)

// Thresholds are the decision cut points. Defaults follow current product
// guidance and are configurable rather than inlined, pending clarification
// of the exact magnitudes.
type Thresholds struct {
	// Repeal is the minimum confidence for an automatic decision
	// (repeal or confirmed violation).
	Repeal float64
	// Review is the minimum confidence for sending to human review;
	// below it the citation stands for lack of evidence.
	Review float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{Repeal: 0.85, Review: 0.70}
}

type Decider struct {
	thresholds Thresholds
}

func NewDecider(thresholds Thresholds) *Decider {
	if thresholds.Repeal == 0 {
		thresholds.Repeal = DefaultThresholds().Repeal
	}
	if thresholds.Review == 0 {
		thresholds.Review = DefaultThresholds().Review
	}
	return &Decider{thresholds: thresholds}
}

// Input carries the decision signals plus the audit facts the reasoning
// string must cite.
type Input struct {
	Confidence float64
	Verdict    models.NumericVerdict

	// ConfidenceFloor is the optional caller-supplied threshold. It can
	// only raise the bar for an automatic repeal, never lower it. Zero
	// means not set.
	ConfidenceFloor float64

	BestDoc        string
	BestSimilarity float64
	Comparison     models.NumericComparison
	Degraded       bool
	EmptyIndex     bool
}

// Decide returns the status and reasoning for one analysis.
func (d *Decider) Decide(in Input) (models.Status, string) {
	if in.EmptyIndex {
		return models.StatusReviewRequired, "no specification data loaded"
	}

	repealBar := d.thresholds.Repeal
	if in.ConfidenceFloor > repealBar {
		repealBar = in.ConfidenceFloor
	}

	var status models.Status
	var verdict string

	switch {
	case in.Confidence >= repealBar:
		switch in.Verdict {
		case models.VerdictSatisfies:
			status = models.StatusRepealable
			verdict = "field measurement satisfies the governing specification"
		case models.VerdictViolates:
			status = models.StatusValidInfraction
			verdict = "field measurement violates the governing specification"
		default:
			// Ambiguous in product guidance: a strong match with no
			// contradicting measurement repeals by default, but a caller
			// that raised the bar gets a human instead.
			if in.ConfidenceFloor > 0 {
				status = models.StatusReviewRequired
				verdict = "strong specification match but no comparable measurement; caller raised the confidence bar, deferring to review"
			} else {
				status = models.StatusRepealable
				verdict = "strong specification match with no contradicting measurement"
			}
		}
	case in.Confidence >= d.thresholds.Review:
		status = models.StatusReviewRequired
		verdict = "confidence in the indeterminate band, deferring to human review"
	default:
		status = models.StatusValidInfraction
		verdict = "no supporting specification found; the citation stands because no defense was found in the loaded specifications, not because a violation was independently confirmed"
	}

	return status, d.reason(in, verdict)
}

// reason builds the audit trail: best document, similarity, any numeric
// comparison, and the degraded-mode flag. Deterministic formatting so
// identical inputs produce byte-identical results.
func (d *Decider) reason(in Input, verdict string) string {
	var parts []string

	if in.BestDoc != "" {
		parts = append(parts, fmt.Sprintf("best match %q (similarity %.3f)", in.BestDoc, in.BestSimilarity))
	} else {
		parts = append(parts, "no matching specification chunk")
	}

	if in.Comparison.Detail != "" {
		parts = append(parts, fmt.Sprintf("numeric comparison: %s", in.Comparison.Detail))
	}

	parts = append(parts, fmt.Sprintf("confidence %.3f", in.Confidence))
	parts = append(parts, verdict)

	if in.Degraded {
		parts = append(parts, "lexical fallback mode: embedding backend unavailable, confidence capped")
	}

	return strings.Join(parts, "; ")
}
