package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobStatus is the scoring job status state machine: pending -> processing
// -> completed|failed, with failed -> pending permitted only via retry.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// IsTerminal reports whether status cannot transition further except via an
// explicit retry.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

const maxJobRetries = 10

// ScoringJob is a single asynchronous role-scoring evaluation.
type ScoringJob struct {
	ID uuid.UUID `json:"id"`

	ProfileID  uuid.UUID  `json:"profile_id"`
	TemplateID *uuid.UUID `json:"template_id,omitempty"`

	// Prompt is the fully-expanded text actually sent to the model. It is
	// set once at creation and never mutated afterward.
	Prompt    string `json:"prompt"`
	ModelName string `json:"model_name"`

	Status     JobStatus `json:"status"`
	RetryCount int       `json:"retry_count"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`

	LLMResponse  json.RawMessage `json:"llm_response,omitempty"`
	ParsedScore  json.RawMessage `json:"parsed_score,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`

	// TokenUsage and EstimatedCostUSD are derived, read-side-only fields
	// populated from the raw LLMResponse envelope's usage block when
	// present; they are not authoritative and never stored as columns.
	TokenUsage       *JobTokenUsage `json:"token_usage,omitempty"`
	EstimatedCostUSD *float64       `json:"estimated_cost_usd,omitempty"`
}

// JobTokenUsage mirrors the provider usage envelope for read-side enrichment.
type JobTokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// NewScoringJob builds a pending ScoringJob with a fresh id.
func NewScoringJob(profileID uuid.UUID, templateID *uuid.UUID, prompt, modelName string) *ScoringJob {
	now := time.Now().UTC()
	return &ScoringJob{
		ID:         uuid.New(),
		ProfileID:  profileID,
		TemplateID: templateID,
		Prompt:     prompt,
		ModelName:  modelName,
		Status:     JobPending,
		RetryCount: 0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// CanRetry reports whether RetryCount is still below the hard ceiling.
func (j *ScoringJob) CanRetry() bool {
	return j.RetryCount < maxJobRetries
}

// MarkProcessing transitions pending -> processing, setting StartedAt on the
// first such transition only.
func (j *ScoringJob) MarkProcessing(now time.Time) {
	j.Status = JobProcessing
	if j.StartedAt == nil {
		j.StartedAt = &now
	}
	j.UpdatedAt = now
}

// MarkCompleted transitions processing -> completed.
func (j *ScoringJob) MarkCompleted(now time.Time, llmResponse, parsedScore json.RawMessage) {
	j.Status = JobCompleted
	j.LLMResponse = llmResponse
	j.ParsedScore = parsedScore
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// MarkFailed transitions to failed (terminal), recording errMsg.
func (j *ScoringJob) MarkFailed(now time.Time, errMsg string) {
	j.Status = JobFailed
	j.ErrorMessage = errMsg
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// ScheduleRetry transitions failed/processing -> pending, incrementing
// RetryCount. RetryCount never decreases.
func (j *ScoringJob) ScheduleRetry(now time.Time, errMsg string) {
	j.Status = JobPending
	j.RetryCount++
	j.ErrorMessage = errMsg
	j.UpdatedAt = now
}

// Cancel transitions a pending or processing job to failed with a fixed
// "canceled" error message. It is a no-op if the job already reached a
// terminal state.
func (j *ScoringJob) Cancel(now time.Time) bool {
	if j.Status.IsTerminal() {
		return false
	}
	j.Status = JobFailed
	j.ErrorMessage = "canceled"
	j.CompletedAt = &now
	j.UpdatedAt = now
	return true
}
