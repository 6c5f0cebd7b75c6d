// Package llm is the scoring engine's thin domain layer over pkg/anthropic:
// prompt assembly, model selection per stage, response JSON extraction, and
// transient/terminal failure classification for internal/scoring's retry
// loop. Grounded on the teacher's internal/discovery.scoreByClaude shape
// (build request, call the model, pull the first JSON object out of the
// reply) but generalized from a fixed homepage-scoring prompt to an
// arbitrary template-expanded profile-scoring prompt.
package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/hirewell/profile-ingest/internal/config"
	"github.com/hirewell/profile-ingest/pkg/anthropic"
)

// CompletionRequest is one scoring call.
type CompletionRequest struct {
	Model  string
	Prompt string
}

// CompletionResult is the outcome of one scoring call: the raw provider
// envelope (stored verbatim as ScoringJob.LLMResponse) and the balanced
// JSON object located within its text, if any.
type CompletionResult struct {
	RawResponse []byte
	ParsedScore []byte
	Usage       anthropic.TokenUsage
}

// Client runs scoring completions against the configured LLM provider.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error)
}

type anthropicClient struct {
	inner   anthropic.Client
	maxTokens int64
}

// NewClient wraps an anthropic.Client for use by the scoring engine.
func NewClient(inner anthropic.Client) Client {
	return &anthropicClient{inner: inner, maxTokens: 4096}
}

const systemPrompt = "You are an executive search research assistant. Respond with a single JSON object and no other text."

// Complete sends req.Prompt as a user message, asks for a single JSON
// object in response, and extracts that object per §4.5 step 3. A reply
// that contains no balanced JSON object is a terminal (non-retryable)
// failure: IsTransient reports an UnparseableResponseError as not transient.
func (c *anthropicClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	resp, err := c.inner.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     req.Model,
		MaxTokens: c.maxTokens,
		System:    []anthropic.SystemBlock{{Text: systemPrompt}},
		Messages:  []anthropic.Message{{Role: "user", Content: req.Prompt}},
	})
	if err != nil {
		return nil, err
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}

	raw, err := marshalEnvelope(resp)
	if err != nil {
		return nil, eris.Wrap(err, "llm: marshal response envelope")
	}

	jsonObj, ok := ExtractJSONObject(text)
	if !ok {
		return &CompletionResult{RawResponse: raw, Usage: resp.Usage}, &UnparseableResponseError{Text: text}
	}

	resp.Usage.LogCost(req.Model, "scoring")

	return &CompletionResult{
		RawResponse: raw,
		ParsedScore: []byte(jsonObj),
		Usage:       resp.Usage,
	}, nil
}

// UnparseableResponseError indicates the model's reply contained no
// balanced JSON object. It is always terminal: retrying an unchanged
// prompt against the same model is not expected to produce a different
// shape of reply.
type UnparseableResponseError struct {
	Text string
}

func (e *UnparseableResponseError) Error() string {
	return "llm: response contained no balanced JSON object"
}

// ModelForStage resolves the model name to use for a scoring call. An
// explicit override always wins; otherwise the stage determines a
// cost-tier default; an unrecognized or absent stage falls back to the
// configured default model.
func ModelForStage(cfg config.LLMConfig, stage, override string) string {
	if override != "" {
		return override
	}
	switch stage {
	case "stage_2_screening":
		return cfg.Stage2Model
	case "stage_3_analysis":
		return cfg.Stage3Model
	default:
		return cfg.DefaultModel
	}
}

// IsTransient classifies a Complete error as safe to retry. The anthropic
// client wraps SDK/network errors with eris but does not expose a typed
// status code (pkg/anthropic.MessageResponse/Error are provider-generic by
// design — see DESIGN.md), so classification matches the lowercased error
// text against a fixed list of substrings (rate limiting, overload, 5xx
// status codes, timeouts and deadline expiry); internal/resilience is not
// consulted. UnparseableResponseError is always terminal and is checked
// first.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var unparseable *UnparseableResponseError
	if errors.As(err, &unparseable) {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"rate_limit", "rate limit", "429",
		"overloaded", "529",
		"internal_server_error", "500",
		"502", "503", "504",
		"timeout", "deadline exceeded",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// CallTimeout returns the per-call timeout configured for LLM requests.
func CallTimeout(cfg config.LLMConfig) time.Duration {
	d := time.Duration(cfg.CallTimeoutSeconds) * time.Second
	if d <= 0 {
		d = 120 * time.Second
	}
	return d
}

// RetryDelay computes the inter-retry delay per §4.8: base*2^retryCount,
// capped at cfg.RetryCapSeconds (default 60s).
func RetryDelay(cfg config.LLMConfig, retryCount int) time.Duration {
	base := cfg.RetryBaseSeconds
	if base <= 0 {
		base = 1
	}
	capSeconds := cfg.RetryCapSeconds
	if capSeconds <= 0 {
		capSeconds = 60
	}
	delay := base
	for i := 0; i < retryCount && delay < capSeconds; i++ {
		delay *= 2
	}
	if delay > capSeconds {
		delay = capSeconds
	}
	return time.Duration(delay) * time.Second
}
