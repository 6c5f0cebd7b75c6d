// Package store defines the persistence interface for the profile/company
// intelligence service and provides Postgres and SQLite implementations.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hirewell/profile-ingest/internal/model"
	"github.com/hirewell/profile-ingest/internal/resilience"
)

// ProfileFilter narrows ListProfiles lookups.
type ProfileFilter struct {
	LinkedinURL string
	Limit       int
	Offset      int
}

// CompanyFilter narrows ListCompanies lookups.
type CompanyFilter struct {
	Search        string
	Industry      string
	EmployeeRange string
	Limit         int
	Offset        int
}

// EdgeFilter narrows ListProfilesByCompany lookups.
type EdgeFilter struct {
	CurrentOnly bool
	Limit       int
	Offset      int
}

// JobFilter narrows ListScoringJobs lookups.
type JobFilter struct {
	Status    model.JobStatus
	ProfileID *uuid.UUID
	Limit     int
	Offset    int
}

// TemplateFilter narrows ListTemplates lookups.
type TemplateFilter struct {
	Category string
	Stage    string
	IsActive *bool
	Limit    int
	Offset   int
}

// Store is the full persistence surface of the service. Mutation discipline
// per §5: only the ingestion controller writes profile/edge rows, only the
// company service writes company rows, only the scoring job service writes
// job rows, only the template service writes template/version rows. Cross-
// service reads are unrestricted, hence one interface.
type Store interface {
	// Profiles
	CreateProfile(ctx context.Context, p *model.Profile) error
	GetProfile(ctx context.Context, id uuid.UUID) (*model.Profile, error)
	GetProfileByLinkedinURL(ctx context.Context, linkedinURL string) (*model.Profile, error)
	ListProfiles(ctx context.Context, filter ProfileFilter) ([]model.Profile, error)
	DeleteProfile(ctx context.Context, id uuid.UUID) error

	// Companies
	FindCompanyByLinkedinURL(ctx context.Context, linkedinURL string) (*model.Company, error)
	FindCompanyByNormalizedName(ctx context.Context, normalizedName, domain string) (*model.Company, error)
	CreateCompany(ctx context.Context, c *model.Company) error
	UpdateCompany(ctx context.Context, c *model.Company) error
	GetCompany(ctx context.Context, id uuid.UUID) (*model.Company, error)
	ListCompanies(ctx context.Context, filter CompanyFilter) ([]model.Company, error)

	// Profile-company edges
	CreateEdge(ctx context.Context, e *model.ProfileCompanyEdge) error
	DeleteEdgesByProfile(ctx context.Context, profileID uuid.UUID) error
	ListEdgesByProfile(ctx context.Context, profileID uuid.UUID) ([]model.ProfileCompanyEdge, error)
	ListProfilesByCompany(ctx context.Context, companyID uuid.UUID, filter EdgeFilter) ([]model.Profile, error)

	// Scoring jobs
	CreateScoringJob(ctx context.Context, j *model.ScoringJob) error
	GetScoringJob(ctx context.Context, id uuid.UUID) (*model.ScoringJob, error)
	UpdateScoringJob(ctx context.Context, j *model.ScoringJob) error
	ListScoringJobs(ctx context.Context, filter JobFilter) ([]model.ScoringJob, error)

	// Templates
	CreateTemplate(ctx context.Context, t *model.Template) error
	GetTemplate(ctx context.Context, id uuid.UUID) (*model.Template, error)
	ListTemplates(ctx context.Context, filter TemplateFilter) ([]model.Template, error)
	DeleteTemplate(ctx context.Context, id uuid.UUID) error

	// UpdateTemplateWithHistory atomically applies fn's in-place edits to the
	// template, inserts a history row when changed, and commits both or
	// neither (§4.6 failure semantics).
	UpdateTemplateWithHistory(ctx context.Context, id uuid.UUID, fn func(t *model.Template) (changeType model.ChangeType, changeSummary string, err error)) (*model.Template, error)

	GetTemplateVersion(ctx context.Context, templateID uuid.UUID, versionNumber int) (*model.TemplateVersionHistory, error)
	ListTemplateVersions(ctx context.Context, templateID uuid.UUID) ([]model.TemplateVersionHistory, error)

	GetTemplateDiff(ctx context.Context, versionAID, versionBID uuid.UUID) (*model.TemplateVersionDiff, error)
	SaveTemplateDiff(ctx context.Context, d *model.TemplateVersionDiff) error

	// Dead letters (§9 supplement)
	RecordDeadLetter(ctx context.Context, dl resilience.DeadLetter) error
	ListDeadLetters(ctx context.Context, filter resilience.DeadLetterFilter) ([]resilience.DeadLetter, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

func timeNowUTC() time.Time {
	return time.Now().UTC()
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
