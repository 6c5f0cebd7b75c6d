// Package ingest implements the single create-profile workflow of spec
// §4.1: fetch a profile, extract and fetch its referenced companies in
// rate-limited sequence, normalize and persist everything, link employment
// edges, and compose a response — with partial-failure tolerance on every
// per-company step. Grounded on the shape of the teacher's own
// `Pipeline`-style orchestrator (a struct holding its collaborators,
// exposing one entrypoint method that drives them in a fixed order),
// re-targeted from crawl-then-enrich to fetch-then-persist.
package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hirewell/profile-ingest/internal/apierr"
	"github.com/hirewell/profile-ingest/internal/company"
	"github.com/hirewell/profile-ingest/internal/model"
	"github.com/hirewell/profile-ingest/internal/resilience"
	"github.com/hirewell/profile-ingest/internal/scraper"
	"github.com/hirewell/profile-ingest/internal/store"
)

// maxCompanyURLs is the hard rate-limit guard of §4.1 step 4: excess
// referenced company URLs are discarded silently, not an error.
const maxCompanyURLs = 5

// interCompanyDelay is the rate guard of §4.8 between sequential company
// fetches, not a retry delay.
const interCompanyDelay = time.Second

// ScraperClient is the narrow subset of internal/scraper.Client the
// controller needs.
type ScraperClient interface {
	FetchProfile(ctx context.Context, linkedinURL string) (map[string]any, error)
	FetchCompany(ctx context.Context, companyURL string) (map[string]any, error)
}

// Controller drives the ingestion workflow of §4.1 over its collaborators.
type Controller struct {
	store    store.Store
	scraper  ScraperClient
	resolver *company.Resolver
}

// New builds a Controller. st is also used, via a narrow interface
// satisfied structurally, as the company.Resolver's backing store.
func New(st store.Store, scraperClient ScraperClient) *Controller {
	return &Controller{
		store:    st,
		scraper:  scraperClient,
		resolver: company.NewResolver(st),
	}
}

// Input is the validated request body of POST /api/v1/profiles.
type Input struct {
	LinkedinURL      string
	SuggestedRole    string
	NameOverride     string
	IncludeCompanies bool
}

// CompanyProcessed is one entry of the response's companies_processed list.
type CompanyProcessed struct {
	ID      uuid.UUID
	Name    string
	Outcome company.Outcome
}

// PipelineMetadata summarizes the per-ingestion company-fetch fan-out.
type PipelineMetadata struct {
	CompaniesFound          int
	CompaniesFetched        int
	PipelineStatus          string
}

// Result is the composed response of a successful ingestion.
type Result struct {
	Profile           *model.Profile
	CompaniesProcessed []CompanyProcessed
	Metadata          PipelineMetadata
}

// CreateProfile runs the nine-step algorithm of §4.1 in order.
func (c *Controller) CreateProfile(ctx context.Context, input Input) (*Result, error) {
	// Step 1: canonicalize.
	canonicalURL, ok := model.CanonicalizeLinkedinURL(input.LinkedinURL)
	if !ok {
		return nil, apierr.New(apierr.InvalidLinkedinURL, "linkedin_url could not be canonicalized", nil, map[string]any{"linkedin_url": input.LinkedinURL})
	}

	// Step 2: duplicate handling — delete-then-insert at the same canonical URL.
	if err := c.deleteExisting(ctx, canonicalURL); err != nil {
		return nil, err
	}

	// Step 3: fetch profile.
	rawProfile, err := c.scraper.FetchProfile(ctx, canonicalURL)
	if err != nil {
		return nil, translateProfileFetchErr(err)
	}

	profile, err := scraper.AdaptProfile(canonicalURL, rawProfile)
	if err != nil {
		var incomplete *scraper.IncompleteDataError
		if errors.As(err, &incomplete) {
			return nil, apierr.New(apierr.IncompleteData, err.Error(), err, map[string]any{"field": incomplete.FieldPath})
		}
		return nil, apierr.New(apierr.IncompleteData, err.Error(), err, nil)
	}
	if input.SuggestedRole != "" {
		profile.SuggestedRole = model.SuggestedRole(input.SuggestedRole)
	}
	if input.NameOverride != "" {
		profile.FullName = input.NameOverride
	}

	// Step 4: extract referenced company URLs, capped at 5.
	companyURLs := extractCompanyURLs(profile)

	var companiesProcessed []CompanyProcessed
	fetched := 0
	if input.IncludeCompanies && len(companyURLs) > 0 {
		// Step 5: fetch companies sequentially, rate-guarded, partial-failure tolerant.
		rawCompanies := c.fetchCompanies(ctx, companyURLs)
		fetched = len(rawCompanies)

		// Step 6: normalize + batch-resolve.
		companiesProcessed = c.resolveCompanies(ctx, rawCompanies)
	}

	// Step 7: persist profile.
	if err := c.store.CreateProfile(ctx, profile); err != nil {
		return nil, apierr.New(apierr.ProfileCreateFailed, "failed to persist profile", err, nil)
	}

	// Step 8: link edges.
	c.linkEdges(ctx, profile)

	// Step 9: compose response.
	return &Result{
		Profile:            profile,
		CompaniesProcessed: companiesProcessed,
		Metadata: PipelineMetadata{
			CompaniesFound:   len(companyURLs),
			CompaniesFetched: fetched,
			PipelineStatus:   "completed",
		},
	}, nil
}

func (c *Controller) deleteExisting(ctx context.Context, canonicalURL string) error {
	existing, err := c.store.GetProfileByLinkedinURL(ctx, canonicalURL)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	if err := c.store.DeleteEdgesByProfile(ctx, existing.ID); err != nil {
		return err
	}
	return c.store.DeleteProfile(ctx, existing.ID)
}

func translateProfileFetchErr(err error) error {
	var notFound *scraper.NotFoundError
	if errors.As(err, &notFound) {
		return apierr.New(apierr.ProfileNotFound, "profile not found at scraper", err, nil)
	}
	return apierr.New(apierr.ScraperUnavailable, "scraper unavailable", err, nil)
}

// extractCompanyURLs implements §4.1 step 4: current company first, then
// each experience's company URL in declared order, deduplicated preserving
// first-seen order, capped at maxCompanyURLs.
func extractCompanyURLs(p *model.Profile) []string {
	seen := make(map[string]bool)
	var out []string

	add := func(u string) {
		if u == "" || seen[u] || len(out) >= maxCompanyURLs {
			return
		}
		seen[u] = true
		out = append(out, u)
	}

	if p.CurrentCompany != nil {
		add(p.CurrentCompany.LinkedinURL)
	}
	for _, exp := range p.Experiences {
		add(exp.CompanyLinkedinURL)
	}
	return out
}

// fetchCompanies fetches each URL strictly sequentially with a 1s rate
// guard between calls; a per-URL failure is logged and recorded as a dead
// letter and never aborts the remaining fetches (§4.1 step 5).
func (c *Controller) fetchCompanies(ctx context.Context, urls []string) []map[string]any {
	var results []map[string]any
	for i, u := range urls {
		raw, err := c.scraper.FetchCompany(ctx, u)
		if err != nil {
			zap.L().Warn("company fetch failed, skipping", zap.String("url", u), zap.Error(err))
			c.recordCompanyFetchFailure(ctx, u, err)
		} else {
			results = append(results, raw)
		}
		if i < len(urls)-1 {
			select {
			case <-ctx.Done():
				return results
			case <-time.After(interCompanyDelay):
			}
		}
	}
	return results
}

func (c *Controller) recordCompanyFetchFailure(ctx context.Context, url string, fetchErr error) {
	now := time.Now().UTC()
	dl := resilience.DeadLetter{
		Subject:      url,
		Phase:        "company_fetch",
		Error:        fetchErr.Error(),
		ErrorType:    resilience.ClassifyError(fetchErr),
		MaxRetries:   0,
		CreatedAt:    now,
		LastFailedAt: now,
	}
	if err := c.store.RecordDeadLetter(ctx, dl); err != nil {
		zap.L().Warn("failed to record dead letter for company fetch", zap.String("url", url), zap.Error(err))
	}
}

// resolveCompanies normalizes each raw company payload and batch-resolves
// it (§4.1 step 6). A company that fails to adapt is logged and skipped,
// same as a per-item resolve failure.
func (c *Controller) resolveCompanies(ctx context.Context, rawCompanies []map[string]any) []CompanyProcessed {
	inputs := make([]*model.Company, 0, len(rawCompanies))
	for _, raw := range rawCompanies {
		cmp, err := scraper.AdaptCompany(raw)
		if err != nil {
			zap.L().Warn("company adapt failed, skipping", zap.Error(err))
			continue
		}
		inputs = append(inputs, cmp)
	}

	results, err := c.resolver.ResolveBatch(ctx, inputs)
	if err != nil {
		zap.L().Warn("company batch resolve failed", zap.Error(err))
		return nil
	}

	out := make([]CompanyProcessed, 0, len(results))
	for _, r := range results {
		if r.Company == nil {
			continue
		}
		out = append(out, CompanyProcessed{ID: r.Company.ID, Name: r.Company.Name, Outcome: r.Outcome})
	}
	return out
}

// linkEdges resolves each experience's company by LinkedIn URL then
// normalized name and inserts a profile-company edge (§4.1 step 8).
// Resolution or insertion failures are logged per-edge and never fail the
// pipeline — the profile itself is already persisted by this point.
func (c *Controller) linkEdges(ctx context.Context, profile *model.Profile) {
	for _, exp := range profile.Experiences {
		companyID, ok := c.resolveCompanyID(ctx, exp)
		if !ok {
			continue
		}
		edge := model.NewEdge(profile.ID, companyID, exp)
		if err := c.store.CreateEdge(ctx, edge); err != nil {
			zap.L().Warn("edge creation failed, skipping", zap.String("company", exp.CompanyName), zap.Error(err))
		}
	}
}

func (c *Controller) resolveCompanyID(ctx context.Context, exp model.Experience) (uuid.UUID, bool) {
	if exp.CompanyLinkedinURL != "" {
		cmp, err := c.store.FindCompanyByLinkedinURL(ctx, exp.CompanyLinkedinURL)
		if err == nil && cmp != nil {
			return cmp.ID, true
		}
	}
	if exp.CompanyName != "" {
		cmp, err := c.store.FindCompanyByNormalizedName(ctx, model.NormalizedName(exp.CompanyName), "")
		if err == nil && cmp != nil {
			return cmp.ID, true
		}
	}
	return uuid.Nil, false
}
