package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/hirewell/profile-ingest/internal/api"
	"github.com/hirewell/profile-ingest/internal/ingest"
	"github.com/hirewell/profile-ingest/internal/llm"
	"github.com/hirewell/profile-ingest/internal/scoring"
	"github.com/hirewell/profile-ingest/internal/scraper"
	"github.com/hirewell/profile-ingest/internal/store"
	"github.com/hirewell/profile-ingest/internal/template"
	anthropicpkg "github.com/hirewell/profile-ingest/pkg/anthropic"
)

// serveEnv holds every long-lived collaborator the serve command wires
// together, mirroring the teacher's pipelineEnv: one struct built by one
// init function, with a single Close released via defer by the caller.
type serveEnv struct {
	Store    store.Store
	Scraper  *scraper.Client
	Ingest   *ingest.Controller
	Scoring  *scoring.Service
	Template *template.Service
	Hub      *api.Hub
}

func (e *serveEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initServeEnv wires the store, scraper, LLM, scoring, template, and
// ingestion layers from cfg. The caller must call Start on the returned
// env's Scoring service and defer env.Close().
func initServeEnv(ctx context.Context) (*serveEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	scraperClient := scraper.NewClient(scraper.Config{
		ProfileURL:         cfg.Scraper.ProfileURL,
		CompanyURL:         cfg.Scraper.CompanyURL,
		TimeoutSeconds:     cfg.Scraper.TimeoutSeconds,
		MaxRetries:         cfg.Scraper.MaxRetries,
		BackoffFactor:      cfg.Scraper.BackoffFactor,
		RateLimitPerMinute: cfg.Scraper.RateLimitPerMinute,
	})

	anthropicClient := anthropicpkg.NewClient(cfg.LLM.APIKey)
	llmClient := llm.NewClient(anthropicClient)

	hub := api.NewHub()
	scoringSvc := scoring.NewService(st, llmClient, cfg.LLM, hub)
	templateSvc := template.NewService(st)
	ingestCtl := ingest.New(st, scraperClient)

	return &serveEnv{
		Store:    st,
		Scraper:  scraperClient,
		Ingest:   ingestCtl,
		Scoring:  scoringSvc,
		Template: templateSvc,
		Hub:      hub,
	}, nil
}
