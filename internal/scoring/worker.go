package scoring

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hirewell/profile-ingest/internal/llm"
	"github.com/hirewell/profile-ingest/internal/model"
)

func (s *Service) runWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-s.queue:
			if !ok {
				return
			}
			s.processJob(ctx, id)
		}
	}
}

// processJob drives one pending job through pending -> processing and
// then to completed or failed/rescheduled-pending, per §4.5/§4.8. The
// worker reads status+retry_count, decides, then writes — cancellation
// between the read and the write is caught by re-reading the job
// immediately before the terminal write (see the "still processing"
// check below), making cancellation sticky against a late completion.
func (s *Service) processJob(parent context.Context, id uuid.UUID) {
	job, err := s.store.GetScoringJob(parent, id)
	if err != nil || job == nil {
		zap.L().Warn("scoring worker: job vanished", zap.String("job_id", id.String()), zap.Error(err))
		return
	}
	if job.Status != model.JobPending {
		return
	}

	now := time.Now().UTC()
	job.MarkProcessing(now)
	if err := s.store.UpdateScoringJob(parent, job); err != nil {
		zap.L().Error("scoring worker: mark processing failed", zap.String("job_id", id.String()), zap.Error(err))
		return
	}
	s.publish(job)

	ctx, cancel := context.WithTimeout(parent, llm.CallTimeout(s.cfg))
	result, callErr := s.llm.Complete(ctx, llm.CompletionRequest{Model: job.ModelName, Prompt: job.Prompt})
	cancel()

	// A cancellation may have landed on the row while the call was in
	// flight. The terminal write below is conditioned on the row still
	// being "processing" as last observed; if not, the late reply (success
	// or failure) is discarded and the sticky cancellation stands.
	current, err := s.store.GetScoringJob(parent, id)
	if err != nil || current == nil || current.Status != model.JobProcessing {
		zap.L().Info("scoring worker: discarding late reply for non-processing job", zap.String("job_id", id.String()))
		return
	}

	if callErr != nil {
		s.handleFailure(parent, current, callErr)
		return
	}

	current.MarkCompleted(time.Now().UTC(), result.RawResponse, result.ParsedScore)
	if err := s.store.UpdateScoringJob(parent, current); err != nil {
		zap.L().Error("scoring worker: mark completed failed", zap.String("job_id", id.String()), zap.Error(err))
		return
	}
	s.publish(current)
}

func (s *Service) handleFailure(ctx context.Context, job *model.ScoringJob, callErr error) {
	maxRetries := s.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	if llm.IsTransient(callErr) && job.RetryCount < maxRetries {
		job.ScheduleRetry(time.Now().UTC(), callErr.Error())
		if err := s.store.UpdateScoringJob(ctx, job); err != nil {
			zap.L().Error("scoring worker: schedule retry failed", zap.String("job_id", job.ID.String()), zap.Error(err))
			return
		}
		s.publish(job)

		delay := llm.RetryDelay(s.cfg, job.RetryCount)
		id := job.ID
		go func() {
			t := time.NewTimer(delay)
			defer t.Stop()
			select {
			case <-ctx.Done():
			case <-t.C:
				s.enqueue(id)
			}
		}()
		return
	}

	job.MarkFailed(time.Now().UTC(), callErr.Error())
	if err := s.store.UpdateScoringJob(ctx, job); err != nil {
		zap.L().Error("scoring worker: mark failed failed", zap.String("job_id", job.ID.String()), zap.Error(err))
		return
	}
	s.publish(job)
}
