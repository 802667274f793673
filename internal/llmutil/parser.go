// File: internal/llmutil/parser.go
package llmutil

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Backticks are written as \x60 because Go raw strings cannot contain them.
var codeFenceRe = regexp.MustCompile("(?s)\x60\x60\x60[a-zA-Z]*\\s*(.*?)\\s*\x60\x60\x60")

// ParseJSONResponse parses an LLM response into T, tolerating the usual
// formatting noise: markdown code fences and conversational text around the
// JSON structure.
func ParseJSONResponse[T any](response string) (*T, error) {
	payload := extractStructure(strings.TrimSpace(response))

	var result T
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal LLM JSON response: %w (extracted: %s)", err, Truncate(payload, 400))
	}
	return &result, nil
}

// extractStructure pulls the outermost JSON object or array out of the
// response, after removing any markdown fencing.
func extractStructure(s string) string {
	if strings.HasPrefix(s, "```") {
		if m := codeFenceRe.FindStringSubmatch(s); len(m) > 1 {
			s = strings.TrimSpace(m[1])
		}
	}

	objStart, objEnd := strings.Index(s, "{"), strings.LastIndex(s, "}")
	arrStart, arrEnd := strings.Index(s, "["), strings.LastIndex(s, "]")

	// Prefer whichever structure opens first.
	if arrStart != -1 && (objStart == -1 || arrStart < objStart) && arrEnd > arrStart {
		return s[arrStart : arrEnd+1]
	}
	if objStart != -1 && objEnd > objStart {
		return s[objStart : objEnd+1]
	}
	return s
}

// CleanCodeOutput strips markdown fencing from generated file content.
func CleanCodeOutput(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		if m := codeFenceRe.FindStringSubmatch(content); len(m) > 1 {
			return strings.TrimSpace(m[1])
		}
	}
	return content
}

// Truncate shortens s to at most maxLen bytes for logging.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
