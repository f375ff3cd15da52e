package ai

import (
	"encoding/json"
	"errors"
	"strings"
)

var errNotAnObject = errors.New("payload is not a JSON object")

// parseJSONObject decodes an oracle payload into a generic object. It tolerates
// markdown code fences and prose around the object.
func parseJSONObject(text string) (map[string]any, error) {
	text = stripCodeFence(strings.TrimSpace(text))
	if text == "" {
		return nil, errors.New("empty payload")
	}

	obj, err := decodeObject(text)
	if err == nil {
		return obj, nil
	}
	if errors.Is(err, errNotAnObject) {
		return nil, err
	}

	// Retry on the outermost braces when the model wrapped the object in prose
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start || (start == 0 && end == len(text)-1) {
		return nil, err
	}
	return decodeObject(text[start : end+1])
}

func decodeObject(text string) (map[string]any, error) {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, errNotAnObject
	}
	return obj, nil
}

func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return strings.Trim(text, "`")
	}
	endIdx := len(lines)
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			endIdx = i
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines[1:endIdx], "\n"))
}
