package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hirewell/profile-ingest/internal/apierr"
	"github.com/hirewell/profile-ingest/internal/ingest"
	"github.com/hirewell/profile-ingest/internal/store"
)

// createProfileRequest is the body of POST /api/v1/profiles (§6.1).
type createProfileRequest struct {
	LinkedinURL      string  `json:"linkedin_url" validate:"required"`
	SuggestedRole    string  `json:"suggested_role" validate:"omitempty,oneof=CTO CIO CISO"`
	Name             string  `json:"name"`
	IncludeCompanies *bool   `json:"include_companies"`
}

type companyProcessedResponse struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Outcome string    `json:"outcome"`
}

type pipelineMetadataResponse struct {
	CompaniesFound   int    `json:"companies_found"`
	CompaniesFetched int    `json:"companies_fetched_from_cassidy"`
	PipelineStatus   string `json:"pipeline_status"`
}

type createProfileResponse struct {
	Profile            any                        `json:"profile"`
	CompaniesProcessed []companyProcessedResponse `json:"companies_processed"`
	PipelineMetadata   pipelineMetadataResponse   `json:"pipeline_metadata"`
}

func (h *handlers) createProfile(w http.ResponseWriter, r *http.Request) {
	var req createProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := validateStruct(req); err != nil {
		writeError(w, err)
		return
	}

	includeCompanies := true
	if req.IncludeCompanies != nil {
		includeCompanies = *req.IncludeCompanies
	}

	result, err := h.deps.Ingest.CreateProfile(r.Context(), ingest.Input{
		LinkedinURL:      req.LinkedinURL,
		SuggestedRole:    req.SuggestedRole,
		NameOverride:     req.Name,
		IncludeCompanies: includeCompanies,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	companies := make([]companyProcessedResponse, 0, len(result.CompaniesProcessed))
	for _, c := range result.CompaniesProcessed {
		companies = append(companies, companyProcessedResponse{ID: c.ID, Name: c.Name, Outcome: string(c.Outcome)})
	}

	writeJSON(w, http.StatusCreated, createProfileResponse{
		Profile:            result.Profile,
		CompaniesProcessed: companies,
		PipelineMetadata: pipelineMetadataResponse{
			CompaniesFound:   result.Metadata.CompaniesFound,
			CompaniesFetched: result.Metadata.CompaniesFetched,
			PipelineStatus:   result.Metadata.PipelineStatus,
		},
	})
}

func (h *handlers) listProfiles(w http.ResponseWriter, r *http.Request) {
	filter := store.ProfileFilter{
		LinkedinURL: r.URL.Query().Get("linkedin_url"),
	}
	applyPagination(r, &filter.Limit, &filter.Offset)

	profiles, err := h.deps.Store.ListProfiles(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (h *handlers) getProfile(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	profile, err := h.deps.Store.GetProfile(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if profile == nil {
		writeError(w, apierr.New(apierr.ProfileNotFound, "profile not found", nil, nil))
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *handlers) deleteProfile(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	profile, err := h.deps.Store.GetProfile(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if profile == nil {
		writeError(w, apierr.New(apierr.ProfileNotFound, "profile not found", nil, nil))
		return
	}
	if err := h.deps.Store.DeleteEdgesByProfile(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	if err := h.deps.Store.DeleteProfile(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseUUIDParam extracts and parses a chi URL param as a uuid.UUID,
// translating a malformed id into a VALIDATION_ERROR rather than a 500.
func parseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apierr.New(apierr.ValidationError, "invalid id", err, map[string]any{name: raw})
	}
	return id, nil
}
