package summary

import (
	"encoding/json"
	"strings"
)

const promptInstructions = `The data below comes from a team workshop. Each card is a problem or idea that participants placed on a matrix of importance (1-10, higher matters more) against complexity (1-10, higher is harder).

Return:
- keyInsights: exactly 3 observations about priorities and how aligned the team is. Aim for about 7 words each, never more than 10.
- aiSuggestions: exactly 3 concrete next steps for the team. Aim for about 7 words each, never more than 10.
- wordCloud: 5 to 10 recurring topics from the card texts, each with a weight from 1 to 10.

Write in the language the cards are written in, using plain everyday words.`

const systemInstructions = "You analyze prioritization workshop results and answer only with JSON matching the requested schema."

// BuildPrompt renders the user prompt for export.
func BuildPrompt(export Export) (string, error) {
	data, err := json.MarshalIndent(export.Cards, "", "  ")
	if err != nil {
		return "", err
	}
	var builder strings.Builder
	builder.WriteString(promptInstructions)
	builder.WriteString("\n\nWorkshop data:\n")
	builder.Write(data)
	return builder.String(), nil
}

func insightsSchema() map[string]any {
	bullets := func(description string) map[string]any {
		return map[string]any{
			"type":        "array",
			"description": description,
			"items":       map[string]any{"type": "string"},
			"minItems":    requiredInsights,
			"maxItems":    requiredInsights,
		}
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"keyInsights", "aiSuggestions", "wordCloud"},
		"properties": map[string]any{
			"keyInsights":   bullets("3 key insights about voting patterns and priorities"),
			"aiSuggestions": bullets("3 actionable recommendations"),
			"wordCloud": map[string]any{
				"type":     "array",
				"minItems": minTopics,
				"maxItems": maxTopics,
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"topic", "weight"},
					"properties": map[string]any{
						"topic":  map[string]any{"type": "string"},
						"weight": map[string]any{"type": "number", "minimum": minTopicWeight, "maximum": maxTopicWeight},
					},
				},
			},
		},
	}
}
