// Package scoring implements the asynchronous LLM scoring job service of
// spec §4.5: job creation (template resolution and prompt expansion frozen
// at creation time), a bounded background worker pool driving the
// pending/processing/completed/failed state machine, and the explicit
// retry/cancel operations. Grounded on the teacher's
// internal/discovery.RunT1/RunT2 "score one thing against the model"
// shape, generalized into a persisted, retryable job rather than a
// fire-and-forget call.
package scoring

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hirewell/profile-ingest/internal/apierr"
	"github.com/hirewell/profile-ingest/internal/config"
	"github.com/hirewell/profile-ingest/internal/llm"
	"github.com/hirewell/profile-ingest/internal/model"
	"github.com/hirewell/profile-ingest/internal/store"
)

// EventPublisher receives a scoring job's row every time its persisted
// state changes, for the SSE stream endpoint to fan out. Implementations
// must not block; internal/api's adapter wraps an *sse.Server.
type EventPublisher interface {
	Publish(job *model.ScoringJob)
}

// CreateJobInput is the validated input to CreateJob. Exactly one of
// TemplateID or Prompt must be set (§4.5/§9 Open Question 2).
type CreateJobInput struct {
	ProfileID  uuid.UUID
	TemplateID *uuid.UUID
	Prompt     string
	ModelName  string
}

// Service creates and drives scoring jobs.
type Service struct {
	store     store.Store
	llm       llm.Client
	cfg       config.LLMConfig
	publisher EventPublisher

	queue chan uuid.UUID
}

// NewService builds a Service. Start must be called to begin draining the
// background worker pool.
func NewService(st store.Store, llmClient llm.Client, cfg config.LLMConfig, publisher EventPublisher) *Service {
	capacity := cfg.JobQueueCapacity
	if capacity <= 0 {
		capacity = 256
	}
	return &Service{
		store:     st,
		llm:       llmClient,
		cfg:       cfg,
		publisher: publisher,
		queue:     make(chan uuid.UUID, capacity),
	}
}

// Start spins up the configured number of worker goroutines, draining the
// job queue until ctx is canceled. It returns immediately.
func (s *Service) Start(ctx context.Context) {
	workers := s.cfg.WorkerCount
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		go s.runWorker(ctx)
	}
}

// CreateJob validates input, resolves and freezes the prompt, persists a
// pending job, and schedules it for processing.
func (s *Service) CreateJob(ctx context.Context, input CreateJobInput) (*model.ScoringJob, error) {
	hasTemplate := input.TemplateID != nil
	hasPrompt := input.Prompt != ""
	if hasTemplate == hasPrompt {
		return nil, apierr.New(apierr.ValidationError, "exactly one of template_id or prompt is required", nil, nil)
	}

	profile, err := s.store.GetProfile(ctx, input.ProfileID)
	if err != nil {
		return nil, err
	}

	var prompt, stage string
	if hasTemplate {
		tpl, err := s.store.GetTemplate(ctx, *input.TemplateID)
		if err != nil {
			return nil, err
		}
		extra := llm.TemplateExtraFields(tpl.Metadata)
		prompt = llm.BuildPrompt(tpl.PromptText, profile, extra)
		stage = tpl.Stage
	} else {
		prompt = llm.BuildPrompt(input.Prompt, profile, nil)
	}

	modelName := llm.ModelForStage(s.cfg, stage, input.ModelName)

	job := model.NewScoringJob(profile.ID, input.TemplateID, prompt, modelName)
	if err := s.store.CreateScoringJob(ctx, job); err != nil {
		return nil, err
	}

	s.enqueue(job.ID)
	return job, nil
}

// GetJob fetches one job by id, translating a not-found row into
// apierr.JobNotFound.
func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (*model.ScoringJob, error) {
	job, err := s.store.GetScoringJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, apierr.New(apierr.JobNotFound, "scoring job not found", nil, nil)
	}
	enrich(job, s.cfg)
	return job, nil
}

// RetryJob forces a failed job back to pending without resetting
// retry_count, then re-enqueues it.
func (s *Service) RetryJob(ctx context.Context, id uuid.UUID) (*model.ScoringJob, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != model.JobFailed {
		return nil, apierr.New(apierr.ValidationError, "only a failed job can be retried", nil, nil)
	}

	job.Status = model.JobPending
	job.ErrorMessage = ""
	job.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateScoringJob(ctx, job); err != nil {
		return nil, err
	}
	s.publish(job)
	s.enqueue(job.ID)
	return job, nil
}

// CancelJob transitions a pending or processing job to failed with
// error_message "canceled". It is a no-op on an already-terminal job —
// cancellation never resurrects a completed or failed job.
func (s *Service) CancelJob(ctx context.Context, id uuid.UUID) (*model.ScoringJob, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Cancel(time.Now().UTC()) {
		if err := s.store.UpdateScoringJob(ctx, job); err != nil {
			return nil, err
		}
		s.publish(job)
	}
	return job, nil
}

// ListJobs passes filter through to the store.
func (s *Service) ListJobs(ctx context.Context, filter store.JobFilter) ([]model.ScoringJob, error) {
	jobs, err := s.store.ListScoringJobs(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range jobs {
		enrich(&jobs[i], s.cfg)
	}
	return jobs, nil
}

func (s *Service) enqueue(id uuid.UUID) {
	select {
	case s.queue <- id:
	default:
		zap.L().Warn("scoring queue full, enqueueing from a goroutine", zap.String("job_id", id.String()))
		go func() { s.queue <- id }()
	}
}

func (s *Service) publish(job *model.ScoringJob) {
	if s.publisher != nil {
		clone := *job
		s.publisher.Publish(&clone)
	}
}

// enrich populates the read-side token-usage/cost fields from the raw
// provider envelope, when present. It never fails the read path.
func enrich(job *model.ScoringJob, cfg config.LLMConfig) {
	usage, ok := extractUsage(job.LLMResponse)
	if !ok {
		return
	}
	job.TokenUsage = &model.JobTokenUsage{InputTokens: usage.InputTokens, OutputTokens: usage.OutputTokens}
	cost := usage.EstimateCost(job.ModelName)
	job.EstimatedCostUSD = &cost
}
