package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldscope/specmatch/internal/models"
)

func TestParseModelOutput(t *testing.T) {
	out := `Here are the entities:
[
  {"label":"measure","text":"16 feet","value":16,"unit":"feet"},
  {"label":"EQUIPMENT","text":"pole","value":null,"unit":""},
  {"label":"LOCATION","text":"street","value":null,"unit":""}
]
Done.`

	entities, err := parseModelOutput(out)
	require.NoError(t, err)
	require.Len(t, entities, 3)

	assert.Equal(t, models.LabelMeasure, entities[0].Label)
	assert.Equal(t, "16 feet", entities[0].Text)
	assert.Equal(t, "ft", entities[0].Unit)
	require.NotNil(t, entities[0].NumericValue)
	assert.Equal(t, 16.0, *entities[0].NumericValue)

	assert.Equal(t, models.LabelEquipment, entities[1].Label)
	assert.Nil(t, entities[1].NumericValue)
}

func TestParseModelOutput_DropsInvalidLabels(t *testing.T) {
	out := `[
  {"label":"BANANA","text":"pole"},
  {"label":"EQUIPMENT","text":"pole"},
  {"label":"MEASURE","text":""}
]`

	entities, err := parseModelOutput(out)
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, models.LabelEquipment, entities[0].Label)
}

func TestParseModelOutput_NoArray(t *testing.T) {
	_, err := parseModelOutput("the model rambled and returned no JSON")
	assert.Error(t, err)
}

func TestParseModelOutput_MalformedJSON(t *testing.T) {
	_, err := parseModelOutput(`[{"label": "EQUIPMENT", "text": }]`)
	assert.Error(t, err)
}

func TestValidLabel(t *testing.T) {
	assert.True(t, validLabel(models.LabelMaterial))
	assert.True(t, validLabel(models.LabelSpecification))
	assert.False(t, validLabel(models.EntityLabel("OTHER")))
	assert.False(t, validLabel(models.EntityLabel("")))
}
