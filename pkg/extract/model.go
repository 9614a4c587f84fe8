package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/fieldscope/specmatch/internal/models"
)

const extractPrompt = `Extract domain entities from the following utility field-audit text.
Return ONLY a JSON array, no prose. Each element:
{"label":"MATERIAL|MEASURE|EQUIPMENT|INSTALLATION|STANDARD|LOCATION|SPECIFICATION","text":"<span>","value":<number or null>,"unit":"<unit or empty>"}

Text:
%s`

type ModelExtractorConfig struct {
	Model   string
	BaseURL string
	Timeout time.Duration
}

// ModelExtractor asks an LLM to tag entities. Any failure (backend down,
// timeout, unparseable output) degrades to the pattern extractor so
// extraction never errors.
type ModelExtractor struct {
	config   ModelExtractorConfig
	llm      llms.Model
	fallback *PatternExtractor
}

func NewModelExtractor(config ModelExtractorConfig) (*ModelExtractor, error) {
	if config.Model == "" {
		config.Model = "mistral"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}

	llm, err := ollama.New(ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize extractor model: %w", err)
	}

	return &ModelExtractor{
		config:   config,
		llm:      llm,
		fallback: NewPatternExtractor(),
	}, nil
}

func (m *ModelExtractor) Extract(text string) []models.Entity {
	ctx, cancel := context.WithTimeout(context.Background(), m.config.Timeout)
	defer cancel()

	resp, err := llms.GenerateFromSinglePrompt(ctx, m.llm, fmt.Sprintf(extractPrompt, text))
	if err != nil {
		return m.fallback.Extract(text)
	}

	entities, err := parseModelOutput(resp)
	if err != nil || len(entities) == 0 {
		return m.fallback.Extract(text)
	}
	return entities
}

type modelEntity struct {
	Label string   `json:"label"`
	Text  string   `json:"text"`
	Value *float64 `json:"value"`
	Unit  string   `json:"unit"`
}

func parseModelOutput(out string) ([]models.Entity, error) {
	// Models wrap JSON in fences or prose more often than not; cut down to
	// the outermost array.
	start := strings.Index(out, "[")
	end := strings.LastIndex(out, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in model output")
	}

	var raw []modelEntity
	if err := json.Unmarshal([]byte(out[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse model output: %w", err)
	}

	var entities []models.Entity
	for _, r := range raw {
		label := models.EntityLabel(strings.ToUpper(strings.TrimSpace(r.Label)))
		if !validLabel(label) || strings.TrimSpace(r.Text) == "" {
			continue
		}
		ent := models.Entity{
			Label: label,
			Text:  r.Text,
			Unit:  NormalizeUnit(r.Unit),
		}
		if r.Value != nil {
			v := *r.Value
			ent.NumericValue = &v
		}
		entities = append(entities, ent)
	}
	return entities, nil
}

func validLabel(label models.EntityLabel) bool {
	switch label {
	case models.LabelMaterial, models.LabelMeasure, models.LabelEquipment,
		models.LabelInstallation, models.LabelStandard, models.LabelLocation,
		models.LabelSpecification:
		return true
	}
	return false
}
