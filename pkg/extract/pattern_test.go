package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldscope/specmatch/internal/models"
)

func findByLabel(entities []models.Entity, label models.EntityLabel) []models.Entity {
	var out []models.Entity
	for _, e := range entities {
		if e.Label == label {
			out = append(out, e)
		}
	}
	return out
}

func TestPatternExtractor_Measures(t *testing.T) {
	p := NewPatternExtractor()

	entities := p.Extract("Pole clearance measured at 16 feet over street center")

	measures := findByLabel(entities, models.LabelMeasure)
	require.Len(t, measures, 1)
	assert.Equal(t, "16 feet", measures[0].Text)
	assert.Equal(t, "ft", measures[0].Unit)
	require.NotNil(t, measures[0].NumericValue)
	assert.Equal(t, 16.0, *measures[0].NumericValue)
}

func TestPatternExtractor_MeasureUnits(t *testing.T) {
	p := NewPatternExtractor()

	tests := []struct {
		text  string
		unit  string
		value float64
	}{
		{"rated at 12 kV", "kV", 12},
		{"burial depth of 36 inches", "in", 36},
		{"sag tolerance of 3%", "%", 3},
		{"conductor of 4 AWG copper", "AWG", 4},
		{"spacing of 305 mm", "mm", 305},
		{"clearance of 18.5 ft", "ft", 18.5},
	}

	for _, tt := range tests {
		measures := findByLabel(p.Extract(tt.text), models.LabelMeasure)
		require.Len(t, measures, 1, "text: %s", tt.text)
		assert.Equal(t, tt.unit, measures[0].Unit, "text: %s", tt.text)
		require.NotNil(t, measures[0].NumericValue)
		assert.Equal(t, tt.value, *measures[0].NumericValue)
	}
}

func TestPatternExtractor_NoMeasureForBareNumber(t *testing.T) {
	p := NewPatternExtractor()

	entities := p.Extract("section 42 applies to all installations")
	assert.Empty(t, findByLabel(entities, models.LabelMeasure))
}

func TestPatternExtractor_GeneralOrder(t *testing.T) {
	p := NewPatternExtractor()

	for _, text := range []string{
		"per G.O. 95 rule 37",
		"per GO 128",
		"per G.O. 95.1",
	} {
		standards := findByLabel(p.Extract(text), models.LabelStandard)
		require.NotEmpty(t, standards, "text: %s", text)
	}
}

func TestPatternExtractor_KeywordLabels(t *testing.T) {
	p := NewPatternExtractor()

	entities := p.Extract("Wood pole with ACSR conductor requires minimum clearance over the roadway per NESC")

	labels := make(map[models.EntityLabel][]string)
	for _, e := range entities {
		labels[e.Label] = append(labels[e.Label], e.Text)
	}

	assert.Contains(t, labels[models.LabelEquipment], "pole")
	assert.Contains(t, labels[models.LabelEquipment], "conductor")
	assert.Contains(t, labels[models.LabelMaterial], "Wood")
	assert.Contains(t, labels[models.LabelMaterial], "ACSR")
	assert.Contains(t, labels[models.LabelInstallation], "clearance")
	assert.Contains(t, labels[models.LabelLocation], "roadway")
	assert.Contains(t, labels[models.LabelStandard], "NESC")
	assert.Contains(t, labels[models.LabelSpecification], "minimum")
}

func TestPatternExtractor_OverlapPrefersLongerSpan(t *testing.T) {
	p := NewPatternExtractor()

	// "16 feet" (measure) overlaps nothing, but "G.O. 95" must win over
	// any shorter span inside it.
	entities := p.Extract("clearance of 16 ft per G.O. 95")

	for i, a := range entities {
		for _, b := range entities[i+1:] {
			assert.NotEqual(t, a.Text, b.Text, "duplicate entity %q", a.Text)
		}
	}

	standards := findByLabel(entities, models.LabelStandard)
	require.Len(t, standards, 1)
	assert.Equal(t, "G.O. 95", standards[0].Text)
}

func TestPatternExtractor_OutputSortedByPosition(t *testing.T) {
	p := NewPatternExtractor()

	text := "minimum clearance of 18 ft required over streets per G.O. 95"
	entities := p.Extract(text)
	require.NotEmpty(t, entities)

	assert.Equal(t, "minimum", entities[0].Text)
	assert.Equal(t, "G.O. 95", entities[len(entities)-1].Text)
}

func TestPatternExtractor_Deterministic(t *testing.T) {
	p := NewPatternExtractor()
	text := "Pole clearance measured at 16 feet over street center per G.O. 95 with ACSR conductor"

	first := p.Extract(text)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, p.Extract(text))
	}
}

func TestPatternExtractor_EmptyText(t *testing.T) {
	p := NewPatternExtractor()
	assert.Empty(t, p.Extract(""))
}

func TestNormalizeUnit(t *testing.T) {
	tests := map[string]string{
		"feet":   "ft",
		"ft":     "ft",
		"FEET":   "ft",
		"inches": "in",
		"in":     "in",
		"kv":     "kV",
		"KV":     "kV",
		"awg":    "AWG",
		"mm":     "mm",
		"%":      "%",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeUnit(in), "unit %q", in)
	}
}
