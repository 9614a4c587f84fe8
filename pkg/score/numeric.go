package score

import (
	"fmt"
	"strings"

	"github.com/fieldscope/specmatch/internal/models"
)

// relationWindow is how many characters around a spec measurement are
// scanned for relation keywords like "minimum" or "no more than".
const relationWindow = 80

var floorKeywords = []string{
	"minimum", "min.", "at least", "not less than", "no less than",
	"or more", "or greater", "shall exceed",
}

var ceilingKeywords = []string{
	"maximum", "max.", "at most", "no more than", "not more than",
	"not exceed", "shall not exceed", "or less", "exceeding",
}

// compareMeasures finds a MEASURE in the infraction and a unit-compatible
// MEASURE in the matched spec text, infers the spec's stated relation from
// surrounding keywords, and compares. Anything missing yields
// INDETERMINATE rather than a guess.
func compareMeasures(infraction, spec []models.Entity, specText string) models.NumericComparison {
	indeterminate := func(detail string) models.NumericComparison {
		return models.NumericComparison{
			Verdict: models.VerdictIndeterminate,
			Detail:  detail,
		}
	}

	infMeasure, ok := firstMeasure(infraction)
	if !ok {
		return indeterminate("no measurement in infraction")
	}

	for _, specMeasure := range measures(spec) {
		infValue, specValue, unit, compatible := convert(infMeasure, specMeasure)
		if !compatible {
			continue
		}

		relation := inferRelation(specText, specMeasure.Text)
		cmp := models.NumericComparison{
			InfractionText: infMeasure.Text,
			SpecText:       specMeasure.Text,
			Relation:       relation,
		}

		switch relation {
		case "minimum":
			if infValue >= specValue {
				cmp.Verdict = models.VerdictSatisfies
			} else {
				cmp.Verdict = models.VerdictViolates
			}
		case "maximum":
			if infValue <= specValue {
				cmp.Verdict = models.VerdictSatisfies
			} else {
				cmp.Verdict = models.VerdictViolates
			}
		default:
			cmp.Verdict = models.VerdictIndeterminate
			cmp.Detail = "spec states no minimum/maximum relation for this measurement"
			return cmp
		}

		cmp.Detail = fmt.Sprintf("measured %g %s against %s %g %s",
			infValue, unit, relation, specValue, unit)
		return cmp
	}

	return indeterminate("no unit-compatible measurement in matched specification")
}

func firstMeasure(entities []models.Entity) (models.Entity, bool) {
	for _, e := range entities {
		if e.Label == models.LabelMeasure && e.NumericValue != nil {
			return e, true
		}
	}
	return models.Entity{}, false
}

func measures(entities []models.Entity) []models.Entity {
	var out []models.Entity
	for _, e := range entities {
		if e.Label == models.LabelMeasure && e.NumericValue != nil {
			out = append(out, e)
		}
	}
	return out
}

// convert normalizes two measures into a shared unit. Feet and inches
// convert into feet; every other unit only compares against itself.
func convert(a, b models.Entity) (va, vb float64, unit string, ok bool) {
	va, ua := toBase(*a.NumericValue, a.Unit)
	vb, ub := toBase(*b.NumericValue, b.Unit)
	if ua != ub {
		return 0, 0, "", false
	}
	return va, vb, ua, true
}

func toBase(value float64, unit string) (float64, string) {
	switch unit {
	case "in":
		return value / 12, "ft"
	default:
		return value, unit
	}
}

// inferRelation looks for relation keywords near the measurement's
// occurrence in the spec text. Returns "minimum", "maximum" or "".
func inferRelation(specText, measureText string) string {
	lower := strings.ToLower(specText)
	pos := strings.Index(lower, strings.ToLower(measureText))

	window := lower
	if pos >= 0 {
		start := pos - relationWindow
		if start < 0 {
			start = 0
		}
		end := pos + len(measureText) + relationWindow
		if end > len(lower) {
			end = len(lower)
		}
		window = lower[start:end]
	}

	floor := containsAny(window, floorKeywords)
	ceiling := containsAny(window, ceilingKeywords)
	switch {
	case floor && !ceiling:
		return "minimum"
	case ceiling && !floor:
		return "maximum"
	default:
		// Both or neither: the text is ambiguous, do not guess.
		return ""
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
