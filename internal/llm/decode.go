package llm

import (
	"encoding/json"
	"strings"
)

// DecodeJSON parses a model reply into v. Models often wrap JSON in
// markdown code fences, so those are stripped before parsing. The second
// return value reports whether decoding succeeded; callers fall back to
// their own defaults when it is false.
func DecodeJSON(reply string, v any) bool {
	cleaned := StripFences(reply)
	if cleaned == "" {
		return false
	}
	return json.Unmarshal([]byte(cleaned), v) == nil
}

// StripFences removes a surrounding markdown code fence (``` or ```json)
// from s and trims whitespace. Input without a fence is returned trimmed.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop an optional language tag on the opening fence line.
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		first := strings.TrimSpace(s[:idx])
		if first == "json" || first == "" {
			s = s[idx+1:]
		}
	} else {
		s = strings.TrimSpace(strings.TrimPrefix(s, "json"))
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
