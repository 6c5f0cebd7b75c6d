package scoring

import (
	"encoding/json"

	"github.com/hirewell/profile-ingest/pkg/anthropic"
)

// extractUsage re-derives token usage from a stored raw provider envelope
// without another network call.
func extractUsage(raw []byte) (anthropic.TokenUsage, bool) {
	if len(raw) == 0 {
		return anthropic.TokenUsage{}, false
	}
	var envelope anthropic.MessageResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return anthropic.TokenUsage{}, false
	}
	return envelope.Usage, true
}
