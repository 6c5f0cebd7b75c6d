package llm

import (
	"encoding/json"

	"github.com/hirewell/profile-ingest/pkg/anthropic"
)

// ExtractJSONObject locates the first balanced top-level JSON object in
// text and returns its exact substring. Unlike a naive first-'{'-to-
// last-'}' scan (the teacher's internal/discovery.scoreByClaude approach),
// this tracks brace depth and string/escape state so it stops at the
// object's true close even when the reply contains prose or a second JSON
// object after it, e.g. `{"score": 1} (note: low confidence) {"x": 2}`.
func ExtractJSONObject(text string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(text); i++ {
		c := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					return text[start : i+1], true
				}
			}
		}
	}
	return "", false
}

// marshalEnvelope captures the raw provider response for storage as
// ScoringJob.LLMResponse, so later reads can re-derive usage/cost without
// re-calling the provider.
func marshalEnvelope(resp *anthropic.MessageResponse) ([]byte, error) {
	return json.Marshal(resp)
}
