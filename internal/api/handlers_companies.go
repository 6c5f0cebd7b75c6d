package api

import (
	"net/http"
	"strconv"

	"github.com/hirewell/profile-ingest/internal/apierr"
	"github.com/hirewell/profile-ingest/internal/store"
)

func (h *handlers) getCompany(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	company, err := h.deps.Store.GetCompany(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if company == nil {
		writeError(w, apierr.New(apierr.CompanyNotFound, "company not found", nil, nil))
		return
	}
	writeJSON(w, http.StatusOK, company)
}

func (h *handlers) listCompanies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.CompanyFilter{
		Search:        q.Get("search"),
		Industry:      q.Get("industry"),
		EmployeeRange: q.Get("employee_range"),
	}
	applyPagination(r, &filter.Limit, &filter.Offset)

	companies, err := h.deps.Store.ListCompanies(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, companies)
}

func (h *handlers) listCompanyProfiles(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	filter := store.EdgeFilter{}
	applyPagination(r, &filter.Limit, &filter.Offset)
	if v, err := strconv.ParseBool(r.URL.Query().Get("current_only")); err == nil {
		filter.CurrentOnly = v
	}

	profiles, err := h.deps.Store.ListProfilesByCompany(r.Context(), id, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}
