package medibot

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Triage risk categories. The analysis schema constrains the model to one of
// these three values.
const (
	CategoryEmergency = "Immediate Care (Emergency)"
	CategoryModerate  = "Monitor Closely (Moderate Risk)"
	CategoryLow       = "Common Ailment (Low Risk)"
)

// AnalysisResult is the structured triage verdict returned by the analyze
// feature.
type AnalysisResult struct {
	Category       string `json:"category"`
	Reasoning      string `json:"reasoning"`
	Recommendation string `json:"recommendation"`
}

// AnalysisSchema returns the JSON schema the upstream structured-output mode
// is constrained to. Passed through to the API unmodified.
func AnalysisSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"category": map[string]any{
				"type": "string",
				"description": "The determined risk category: '" + CategoryEmergency +
					"', '" + CategoryModerate + "', or '" + CategoryLow + "'.",
			},
			"reasoning": map[string]any{
				"type":        "string",
				"description": "A brief justification (1-2 sentences) for the chosen category based on the symptoms.",
			},
			"recommendation": map[string]any{
				"type":        "string",
				"description": "A single, safe, and actionable next step for the user.",
			},
		},
		"required": []string{"category", "reasoning", "recommendation"},
	}
}

// DecodeAnalysis converts the parsed structured response into a typed result.
func DecodeAnalysis(payload map[string]any) (AnalysisResult, error) {
	var result AnalysisResult
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &result,
		TagName: "json",
	})
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("new decoder: %w", err)
	}
	if err := decoder.Decode(payload); err != nil {
		return AnalysisResult{}, fmt.Errorf("decode analysis: %w", err)
	}
	if result.Category == "" || result.Reasoning == "" || result.Recommendation == "" {
		return AnalysisResult{}, fmt.Errorf("analysis missing required fields: %+v", result)
	}
	return result, nil
}

// ValidCategory reports whether the model returned one of the three known
// risk categories.
func ValidCategory(category string) bool {
	switch category {
	case CategoryEmergency, CategoryModerate, CategoryLow:
		return true
	default:
		return false
	}
}
