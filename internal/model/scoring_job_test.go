package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoringJobLifecycle(t *testing.T) {
	job := NewScoringJob(uuid.New(), nil, "evaluate this candidate", "claude-sonnet-4-5-20250929")
	require.Equal(t, JobPending, job.Status)
	require.Nil(t, job.StartedAt)

	t1 := time.Now().UTC()
	job.MarkProcessing(t1)
	assert.Equal(t, JobProcessing, job.Status)
	require.NotNil(t, job.StartedAt)
	assert.Equal(t, t1, *job.StartedAt)

	t2 := t1.Add(2 * time.Second)
	job.MarkCompleted(t2, []byte(`{"raw":true}`), []byte(`{"score":8}`))
	assert.Equal(t, JobCompleted, job.Status)
	require.NotNil(t, job.CompletedAt)
	assert.Equal(t, t2, *job.CompletedAt)

	// StartedAt must not move on a second MarkProcessing call.
	job2 := NewScoringJob(uuid.New(), nil, "p", "m")
	job2.MarkProcessing(t1)
	job2.MarkProcessing(t1.Add(time.Minute))
	assert.Equal(t, t1, *job2.StartedAt)
}

func TestScoringJobRetryCountMonotonic(t *testing.T) {
	job := NewScoringJob(uuid.New(), nil, "p", "m")
	now := time.Now().UTC()
	job.ScheduleRetry(now, "timeout")
	assert.Equal(t, 1, job.RetryCount)
	assert.Equal(t, JobPending, job.Status)
	job.ScheduleRetry(now, "timeout again")
	assert.Equal(t, 2, job.RetryCount)
}

func TestScoringJobCancelIsNoOpAfterTerminal(t *testing.T) {
	job := NewScoringJob(uuid.New(), nil, "p", "m")
	now := time.Now().UTC()
	job.MarkProcessing(now)
	job.MarkCompleted(now, nil, nil)

	ok := job.Cancel(now.Add(time.Second))
	assert.False(t, ok)
	assert.Equal(t, JobCompleted, job.Status)
}

func TestScoringJobCancelPending(t *testing.T) {
	job := NewScoringJob(uuid.New(), nil, "p", "m")
	ok := job.Cancel(time.Now().UTC())
	assert.True(t, ok)
	assert.Equal(t, JobFailed, job.Status)
	assert.Equal(t, "canceled", job.ErrorMessage)
}
