// Package api exposes the service's operations as a chi-routed REST API
// per §4.7/§6.1: constant-time API-key auth, validator-driven request
// validation, and apierr-taxonomy error translation — and no business
// logic of its own beyond that. Grounded on the teacher's pattern of a
// router-construction function taking a struct of already-built
// collaborators (no globals), re-targeted from the teacher's lack of any
// HTTP layer to a chi.Router, since go-chi/chi and go-chi/cors are already
// in the teacher's go.mod.
package api

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/hirewell/profile-ingest/internal/ingest"
	"github.com/hirewell/profile-ingest/internal/scoring"
	"github.com/hirewell/profile-ingest/internal/store"
	"github.com/hirewell/profile-ingest/internal/template"
)

// ScraperPing is a best-effort scraper reachability probe for the health
// endpoint.
type ScraperPing func(ctx context.Context) error

// Deps are the already-constructed collaborators the router dispatches to.
type Deps struct {
	Store       store.Store
	Ingest      *ingest.Controller
	Scoring     *scoring.Service
	Template    *template.Service
	Hub         *Hub
	APIKey      string
	ScraperPing ScraperPing
	HealthCacheTTL time.Duration
}

// NewRouter builds the full route tree.
func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "x-api-key"},
		MaxAge:           300,
	}))

	h := &handlers{deps: deps, health: newHealthProbe(deps)}

	r.Get("/api/v1/health", h.health.serveHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(apiKeyAuth(deps.APIKey))

		r.Route("/profiles", func(r chi.Router) {
			r.Post("/", h.createProfile)
			r.Get("/", h.listProfiles)
			r.Get("/{id}", h.getProfile)
			r.Delete("/{id}", h.deleteProfile)
			r.Post("/{id}/score", h.createScoringJob)
		})

		r.Route("/companies", func(r chi.Router) {
			r.Get("/", h.listCompanies)
			r.Get("/{id}", h.getCompany)
			r.Get("/{id}/profiles", h.listCompanyProfiles)
		})

		r.Route("/scoring-jobs", func(r chi.Router) {
			r.Get("/{id}", h.getJob)
			r.Get("/{id}/stream", h.streamJob)
			r.Post("/{id}/retry", h.retryJob)
			r.Post("/{id}/cancel", h.cancelJob)
		})

		r.Route("/templates", func(r chi.Router) {
			r.Post("/", h.createTemplate)
			r.Get("/", h.listTemplates)
			r.Get("/{id}", h.getTemplate)
			r.Put("/{id}", h.updateTemplate)
			r.Delete("/{id}", h.deleteTemplate)
			r.Get("/{id}/versions", h.listVersions)
			r.Get("/{id}/versions/{n}", h.getVersion)
			r.Post("/{id}/restore/{n}", h.restoreTemplate)
			r.Post("/{id}/branch", h.branchTemplate)
			r.Get("/{id}/compare", h.compareTemplate)
		})
	})

	return r
}

type handlers struct {
	deps   Deps
	health *healthProbe
}
