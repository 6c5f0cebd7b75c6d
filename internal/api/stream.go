package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/r3labs/sse/v2"
	"go.uber.org/zap"

	"github.com/hirewell/profile-ingest/internal/model"
)

// heartbeatInterval is the SSE keep-alive cadence of §4.5 "Polling": a
// heartbeat every 15s until the client disconnects. No heartbeat is sent
// for a job that was already terminal when the stream was opened; a job
// that reaches a terminal state later keeps receiving heartbeats.
const heartbeatInterval = 15 * time.Second

// Hub fans out scoring-job state transitions to SSE subscribers, keyed by
// job id. It implements internal/scoring.EventPublisher. Grounded on
// github.com/r3labs/sse/v2's Server, the SSE library present in the
// example pack (goldmine-build-goldmine/go.mod).
type Hub struct {
	srv *sse.Server
}

// NewHub builds a Hub. AutoReplay is disabled: a job's current row is
// always fetched fresh via GET before streaming, so replaying buffered
// events to a new subscriber would only duplicate stale state.
func NewHub() *Hub {
	srv := sse.New()
	srv.AutoReplay = false
	srv.AutoStream = false
	return &Hub{srv: srv}
}

// Publish implements scoring.EventPublisher.
func (h *Hub) Publish(job *model.ScoringJob) {
	id := job.ID.String()
	if !h.srv.StreamExists(id) {
		return
	}
	data, err := json.Marshal(job)
	if err != nil {
		zap.L().Warn("sse: failed to marshal job event", zap.String("job_id", id), zap.Error(err))
		return
	}
	h.srv.Publish(id, &sse.Event{Event: []byte("job_update"), Data: data})
}

// ServeJobStream streams job's state transitions plus a periodic heartbeat
// until the client disconnects. The stream is not closed when the job
// reaches a terminal state. The row itself remains the source of truth;
// this is purely a convenience view (§4.5).
func (h *Hub) ServeJobStream(w http.ResponseWriter, r *http.Request, job *model.ScoringJob) {
	id := job.ID.String()
	if !h.srv.StreamExists(id) {
		h.srv.CreateStream(id)
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go h.heartbeat(ctx, id, job.Status.IsTerminal())

	q := url.Values{"stream": {id}}
	r.URL.RawQuery = q.Encode()
	h.srv.ServeHTTP(w, r)
}

func (h *Hub) heartbeat(ctx context.Context, id string, alreadyTerminal bool) {
	if alreadyTerminal {
		return
	}
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.srv.Publish(id, &sse.Event{Event: []byte("heartbeat"), Data: []byte("{}")})
		}
	}
}
