package llm

import (
	"encoding/json"
	"log"
	"strings"
)

// StripCodeFences removes a wrapping markdown code fence (``` or ```json)
// from a model response, leaving the inner text. Text without a fence is
// returned trimmed and unchanged.
func StripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	endIdx := len(lines) - 1
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			endIdx = i
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines[1:endIdx], "\n"))
}

// ParseJSONResponse parses a JSON object response from an LLM, handling
// markdown code blocks. Returns nil if the text doesn't contain valid JSON.
func ParseJSONResponse(text string) map[string]any {
	text = StripCodeFences(text)
	if text == "" {
		return nil
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		log.Printf("Failed to parse LLM response as JSON: %v", err)
		return nil
	}

	return result
}
