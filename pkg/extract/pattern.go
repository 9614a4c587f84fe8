// Package extract tags domain entities in infraction and specification
// text. Two implementations sit behind the EntityExtractor interface: a
// deterministic pattern extractor that is always available, and a
// model-backed extractor that falls back to patterns when the model is
// unreachable. Callers never branch on which is active.
package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/fieldscope/specmatch/internal/models"
)

// measureRe captures a number followed by a recognized unit. The unit list
// mirrors what shows up in overhead-line specs: distances, voltages,
// percentages and wire gauges.
var measureRe = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*((?:ft|feet|in|inches|kv|mm|awg)\b|%)`)

// generalOrderRe matches standard citations like "G.O. 95" or "GO 128".
var generalOrderRe = regexp.MustCompile(`(?i)\bG\.?\s?O\.?\s*\d+(?:\.\d+)?\b`)

// keywordLabels is iterated in this fixed order so extraction output is
// deterministic.
var keywordLabels = []models.EntityLabel{
	models.LabelEquipment,
	models.LabelMaterial,
	models.LabelStandard,
	models.LabelInstallation,
	models.LabelLocation,
	models.LabelSpecification,
}

var keywordPatterns = map[models.EntityLabel]*regexp.Regexp{
	models.LabelEquipment: wordListRe(
		"pole", "poles", "crossarm", "crossarms", "transformer", "transformers",
		"insulator", "insulators", "conductor", "conductors", "conduit", "conduits",
		"anchor", "anchors", "riser", "risers", "cutout", "arrester", "guy",
	),
	models.LabelMaterial: wordListRe(
		"pvc", "acsr", "copper", "aluminum", "steel", "wood", "fiberglass",
		"concrete", "galvanized",
	),
	models.LabelStandard: wordListRe(
		"nesc", "ansi", "ieee", "astm", "osha",
	),
	models.LabelInstallation: wordListRe(
		"clearance", "clearances", "grounding", "bonding", "attachment",
		"attachments", "sag", "burial", "framing", "guying",
	),
	models.LabelLocation: wordListRe(
		"street", "streets", "roadway", "roadways", "highway", "highways",
		"sidewalk", "sidewalks", "driveway", "railroad", "waterway", "alley",
	),
	models.LabelSpecification: wordListRe(
		"minimum", "maximum", "required", "shall", "tolerance", "rated",
	),
}

func wordListRe(words ...string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(words, "|") + `)\b`)
}

// PatternExtractor is the always-available fallback extractor. Extraction
// is deterministic and side-effect-free.
type PatternExtractor struct{}

func NewPatternExtractor() *PatternExtractor {
	return &PatternExtractor{}
}

type span struct {
	start  int
	end    int
	entity models.Entity
}

func (p *PatternExtractor) Extract(text string) []models.Entity {
	var spans []span

	for _, m := range measureRe.FindAllStringSubmatchIndex(text, -1) {
		raw := text[m[0]:m[1]]
		numText := text[m[2]:m[3]]
		unitText := text[m[4]:m[5]]
		value, err := strconv.ParseFloat(numText, 64)
		ent := models.Entity{
			Label: models.LabelMeasure,
			Text:  raw,
			Unit:  NormalizeUnit(unitText),
		}
		if err == nil {
			ent.NumericValue = &value
		}
		spans = append(spans, span{start: m[0], end: m[1], entity: ent})
	}

	for _, m := range generalOrderRe.FindAllStringIndex(text, -1) {
		spans = append(spans, span{start: m[0], end: m[1], entity: models.Entity{
			Label: models.LabelStandard,
			Text:  text[m[0]:m[1]],
		}})
	}

	for _, label := range keywordLabels {
		for _, m := range keywordPatterns[label].FindAllStringIndex(text, -1) {
			spans = append(spans, span{start: m[0], end: m[1], entity: models.Entity{
				Label: label,
				Text:  text[m[0]:m[1]],
			}})
		}
	}

	return dedupSpans(spans)
}

// dedupSpans drops overlapping matches, preferring the longer span. Ties
// are broken by earliest start, then label, so output is deterministic.
func dedupSpans(spans []span) []models.Entity {
	sort.Slice(spans, func(i, j int) bool {
		li, lj := spans[i].end-spans[i].start, spans[j].end-spans[j].start
		if li != lj {
			return li > lj
		}
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].entity.Label < spans[j].entity.Label
	})

	var accepted []span
	for _, s := range spans {
		overlaps := false
		for _, a := range accepted {
			if s.start < a.end && a.start < s.end {
				overlaps = true
				break
			}
		}
		if !overlaps {
			accepted = append(accepted, s)
		}
	}

	sort.Slice(accepted, func(i, j int) bool {
		return accepted[i].start < accepted[j].start
	})

	entities := make([]models.Entity, 0, len(accepted))
	for _, s := range accepted {
		entities = append(entities, s.entity)
	}
	return entities
}

// NormalizeUnit maps unit spellings to their canonical form: feet→ft,
// inches→in, kv→kV, awg→AWG.
func NormalizeUnit(unit string) string {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "ft", "feet":
		return "ft"
	case "in", "inches":
		return "in"
	case "kv":
		return "kV"
	case "awg":
		return "AWG"
	case "mm":
		return "mm"
	case "%":
		return "%"
	default:
		return strings.ToLower(unit)
	}
}
