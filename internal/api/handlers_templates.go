package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hirewell/profile-ingest/internal/apierr"
	"github.com/hirewell/profile-ingest/internal/store"
	"github.com/hirewell/profile-ingest/internal/template"
)

type createTemplateRequest struct {
	Name        string         `json:"name" validate:"required"`
	Category    string         `json:"category" validate:"required"`
	Stage       string         `json:"stage"`
	PromptText  string         `json:"prompt_text" validate:"required"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata"`
	CreatedBy   string         `json:"created_by"`
}

type updateTemplateRequest struct {
	Name         *string        `json:"name"`
	Category     *string        `json:"category"`
	Stage        *string        `json:"stage"`
	PromptText   *string        `json:"prompt_text"`
	Description  *string        `json:"description"`
	Metadata     map[string]any `json:"metadata"`
	IsActive     *bool          `json:"is_active"`
	VersionLabel *string        `json:"version_label"`
	VersionNotes *string        `json:"version_notes"`
}

func (h *handlers) createTemplate(w http.ResponseWriter, r *http.Request) {
	var req createTemplateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := validateStruct(req); err != nil {
		writeError(w, err)
		return
	}

	t, err := h.deps.Template.Create(r.Context(), template.CreateInput{
		Name:        req.Name,
		Category:    req.Category,
		Stage:       req.Stage,
		PromptText:  req.PromptText,
		Description: req.Description,
		Metadata:    req.Metadata,
		CreatedBy:   req.CreatedBy,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *handlers) listTemplates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.TemplateFilter{
		Category: q.Get("category"),
		Stage:    q.Get("stage"),
	}
	if v, err := strconv.ParseBool(q.Get("is_active")); err == nil {
		filter.IsActive = &v
	}
	applyPagination(r, &filter.Limit, &filter.Offset)

	templates, err := h.deps.Template.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

func (h *handlers) getTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	t, err := h.deps.Template.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handlers) updateTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req updateTemplateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	t, err := h.deps.Template.Update(r.Context(), id, template.UpdateInput{
		Name:         req.Name,
		Category:     req.Category,
		Stage:        req.Stage,
		PromptText:   req.PromptText,
		Description:  req.Description,
		Metadata:     req.Metadata,
		IsActive:     req.IsActive,
		VersionLabel: req.VersionLabel,
		VersionNotes: req.VersionNotes,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handlers) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.deps.Template.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) listVersions(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	versions, err := h.deps.Template.ListVersions(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

func (h *handlers) getVersion(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	n, err := parseVersionParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	v, err := h.deps.Template.GetVersion(r.Context(), id, n)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *handlers) restoreTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	n, err := parseVersionParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	t, err := h.deps.Template.Restore(r.Context(), id, n)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handlers) branchTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	t, err := h.deps.Template.Branch(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *handlers) compareTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	a, err := strconv.Atoi(r.URL.Query().Get("a"))
	if err != nil {
		writeError(w, apierr.New(apierr.ValidationError, "query param a must be an integer version number", err, nil))
		return
	}
	b, err := strconv.Atoi(r.URL.Query().Get("b"))
	if err != nil {
		writeError(w, apierr.New(apierr.ValidationError, "query param b must be an integer version number", err, nil))
		return
	}

	diff, err := h.deps.Template.Compare(r.Context(), id, a, b)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, diff)
}

func parseVersionParam(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "n")
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apierr.New(apierr.ValidationError, "invalid version number", err, map[string]any{"n": raw})
	}
	return n, nil
}
