package ai

import (
	"encoding/json"
	"strings"
)

// insightSystemPrompt describes the insight payload. Keep the field list in
// sync with normalizeInsight in extractor.go.
const insightSystemPrompt = `You are an expert at analyzing diary entries about activities and habits.
Extract key metrics, insights and tags from the entry and return them as a single JSON object.
Always use consistent units and formats. If you are unsure about a value, lower its confidence.

The JSON object must have exactly this structure:
{
    "summary": string,          brief natural language summary of the entry
    "activity": string,         short name of the main activity (e.g. "run", "meditation")
    "metrics": [
        {
            "type": string,     metric type (e.g. "duration", "distance", "reps")
            "value": number | string,
            "unit": string | null,
            "confidence": number between 0 and 1
        }
    ],
    "confidence": number,       overall confidence between 0 and 1
    "tags": string[]            categories for the entry (e.g. "exercise", "nutrition")
}

Confidence guidelines:
- 0.9 and above for explicit, clear information
- 0.5 to 0.8 for derived or implicit information
- below 0.5 for uncertain or estimated information

When the message includes known activities and metrics, reuse those names for the same concepts.`

const intentSystemPrompt = `You classify user input for a personal activity tracking app into one of:

1. log_entry: the user wants to record an activity or event ("ran 5k today", "ate a sandwich for lunch")
2. query_metrics: the user wants to see or analyze their data ("show my activities from last month", "how many times did I run?")
3. modify_ui: the user wants to change how data is displayed ("show more entries", "hide the chart")

Respond with a JSON object:
{
    "type": "log_entry" | "query_metrics" | "modify_ui",
    "confidence": "high" | "medium" | "low",
    "action": "brief description of the intended action",
    "parameters": { optional object }
}`

type insightExample struct {
	Entry  string
	Answer map[string]any
}

var insightExamples = []insightExample{
	{
		Entry: "Ran 5k in 30 minutes this morning",
		Answer: map[string]any{
			"summary":  "Morning 5k run completed in 30 minutes",
			"activity": "run",
			"metrics": []map[string]any{
				{"type": "distance", "value": 5, "unit": "km", "confidence": 0.95},
				{"type": "duration", "value": 30, "unit": "minutes", "confidence": 0.95},
				{"type": "pace", "value": 6, "unit": "min/km", "confidence": 0.9},
			},
			"confidence": 0.95,
			"tags":       []string{"exercise", "cardio", "running"},
		},
	},
	{
		Entry: "Meditated for about 10 minutes before bed, feeling calmer",
		Answer: map[string]any{
			"summary":  "Short evening meditation with a calming effect",
			"activity": "meditation",
			"metrics": []map[string]any{
				{"type": "duration", "value": 10, "unit": "minutes", "confidence": 0.8},
				{"type": "mood_impact", "value": "positive", "unit": nil, "confidence": 0.7},
			},
			"confidence": 0.85,
			"tags":       []string{"mindfulness", "meditation", "evening"},
		},
	},
	{
		Entry: "Did 3 sets of 10 pushups",
		Answer: map[string]any{
			"summary":  "Three sets of ten pushups",
			"activity": "pushups",
			"metrics": []map[string]any{
				{"type": "sets", "value": 3, "unit": "sets", "confidence": 0.95},
				{"type": "reps", "value": 10, "unit": "reps", "confidence": 0.95},
				{"type": "total_reps", "value": 30, "unit": "reps", "confidence": 0.85},
			},
			"confidence": 0.9,
			"tags":       []string{"exercise", "strength"},
		},
	},
}

// buildInsightMessages lays out system instruction, worked examples as
// user/assistant turns, then the entry with the optional taxonomy hint.
func buildInsightMessages(entryText, taxonomyHint string) []ChatMessage {
	messages := make([]ChatMessage, 0, 2+2*len(insightExamples))
	messages = append(messages, ChatMessage{Role: RoleSystem, Content: insightSystemPrompt})
	for _, ex := range insightExamples {
		answer, err := json.Marshal(ex.Answer)
		if err != nil {
			// static data; cannot fail
			continue
		}
		messages = append(messages,
			ChatMessage{Role: RoleUser, Content: entryPrompt(ex.Entry, "")},
			ChatMessage{Role: RoleAssistant, Content: string(answer)},
		)
	}
	messages = append(messages, ChatMessage{Role: RoleUser, Content: entryPrompt(entryText, taxonomyHint)})
	return messages
}

func entryPrompt(entryText, taxonomyHint string) string {
	var b strings.Builder
	b.WriteString("Please analyze this entry:\n")
	b.WriteString(entryText)
	if hint := strings.TrimSpace(taxonomyHint); hint != "" {
		b.WriteString("\n\nKnown names from earlier entries:\n")
		b.WriteString(hint)
	}
	return b.String()
}

func buildIntentMessages(input string) []ChatMessage {
	return []ChatMessage{
		{Role: RoleSystem, Content: intentSystemPrompt},
		{Role: RoleUser, Content: input},
	}
}
