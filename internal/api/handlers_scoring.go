package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/hirewell/profile-ingest/internal/scoring"
)

// createScoringJobRequest is the body of POST /api/v1/profiles/{id}/score
// (§6.1). Exactly one of TemplateID/Prompt is enforced by
// internal/scoring.Service.CreateJob, not here, since that invariant also
// needs a profile-level apierr code (VALIDATION_ERROR) the validator tag
// set can't express as cleanly as the service's own explicit check.
type createScoringJobRequest struct {
	TemplateID *uuid.UUID `json:"template_id"`
	Prompt     string     `json:"prompt"`
	ModelName  string     `json:"model_name"`
}

func (h *handlers) createScoringJob(w http.ResponseWriter, r *http.Request) {
	profileID, err := parseUUIDParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var req createScoringJobRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	job, err := h.deps.Scoring.CreateJob(r.Context(), scoring.CreateJobInput{
		ProfileID:  profileID,
		TemplateID: req.TemplateID,
		Prompt:     req.Prompt,
		ModelName:  req.ModelName,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (h *handlers) getJob(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	job, err := h.deps.Scoring.GetJob(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *handlers) streamJob(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	job, err := h.deps.Scoring.GetJob(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	h.deps.Hub.ServeJobStream(w, r, job)
}

func (h *handlers) retryJob(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	job, err := h.deps.Scoring.RetryJob(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *handlers) cancelJob(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	job, err := h.deps.Scoring.CancelJob(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}
