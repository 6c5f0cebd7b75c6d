package store

import (
	"context"
	"embed"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/rotisserie/eris"

	"github.com/hirewell/profile-ingest/internal/company"
	"github.com/hirewell/profile-ingest/internal/model"
	"github.com/hirewell/profile-ingest/internal/resilience"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// PostgresStore implements Store using pgx, grounded on the teacher's
// internal/store/postgres.go query style (plain SQL, eris-wrapped errors,
// RETURNING for server-generated columns).
type PostgresStore struct {
	pool    pgxPool
	company *company.PostgresStore
}

// pgxPool is the subset of *pgxpool.Pool the store uses. It is satisfied by
// *pgxpool.Pool and by pgxmock.PgxPoolIface.
type pgxPool interface {
	company.Queryer
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// NewPostgres creates a PostgresStore with a sized connection pool.
func NewPostgres(ctx context.Context, connString string, maxConns, minConns int32) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns > 0 {
		cfg.MinConns = minConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, company: company.NewPostgresStore(pool)}, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return eris.Wrap(err, "postgres: read migrations dir")
	}
	for _, entry := range entries {
		sqlBytes, err := migrationFiles.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return eris.Wrapf(err, "postgres: read migration %s", entry.Name())
		}
		if _, err := s.pool.Exec(ctx, string(sqlBytes)); err != nil {
			return eris.Wrapf(err, "postgres: apply migration %s", entry.Name())
		}
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// --- Profiles ---

func (s *PostgresStore) CreateProfile(ctx context.Context, p *model.Profile) error {
	experiencesJSON, err := json.Marshal(p.Experiences)
	if err != nil {
		return eris.Wrap(err, "profile: marshal experiences")
	}
	educationJSON, err := json.Marshal(p.Education)
	if err != nil {
		return eris.Wrap(err, "profile: marshal education")
	}
	contactURLsJSON, err := json.Marshal(p.ContactURLs)
	if err != nil {
		return eris.Wrap(err, "profile: marshal contact urls")
	}
	rawPayloadJSON, err := json.Marshal(p.RawPayload)
	if err != nil {
		return eris.Wrap(err, "profile: marshal raw_payload")
	}

	var embedding *pgvector.Vector
	if len(p.Embedding) > 0 {
		v := pgvector.NewVector(p.Embedding)
		embedding = &v
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO profiles (
			linkedin_url, full_name, headline, about, current_position_label,
			current_company_label, current_company_id, country, city, profile_image_url,
			suggested_role, experiences, education, certifications, honors, languages,
			skills, contact_urls, embedding, raw_payload
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20
		) RETURNING id, created_at, updated_at`,
		p.LinkedinURL, p.FullName, p.Headline, p.About, p.CurrentPositionLabel,
		p.CurrentCompanyLabel, p.CurrentCompanyID, p.Country, p.City, p.ProfileImageURL,
		string(p.SuggestedRole), experiencesJSON, educationJSON, p.Certifications, p.Honors, p.Languages,
		p.Skills, contactURLsJSON, embedding, rawPayloadJSON,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return eris.Wrap(err, "profile: create")
	}
	return nil
}

const profileColumns = `id, linkedin_url, full_name, headline, about, current_position_label,
	current_company_label, current_company_id, country, city, profile_image_url, suggested_role,
	experiences, education, certifications, honors, languages, skills, contact_urls,
	embedding, raw_payload, created_at, updated_at`

func (s *PostgresStore) scanProfile(row pgx.Row) (*model.Profile, error) {
	var p model.Profile
	var suggestedRole string
	var experiencesJSON, educationJSON, contactURLsJSON, rawPayloadJSON []byte
	var embedding *pgvector.Vector

	err := row.Scan(
		&p.ID, &p.LinkedinURL, &p.FullName, &p.Headline, &p.About, &p.CurrentPositionLabel,
		&p.CurrentCompanyLabel, &p.CurrentCompanyID, &p.Country, &p.City, &p.ProfileImageURL, &suggestedRole,
		&experiencesJSON, &educationJSON, &p.Certifications, &p.Honors, &p.Languages, &p.Skills, &contactURLsJSON,
		&embedding, &rawPayloadJSON, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.SuggestedRole = model.SuggestedRole(suggestedRole)
	if len(experiencesJSON) > 0 {
		if err := json.Unmarshal(experiencesJSON, &p.Experiences); err != nil {
			return nil, eris.Wrap(err, "profile: unmarshal experiences")
		}
	}
	if len(educationJSON) > 0 {
		if err := json.Unmarshal(educationJSON, &p.Education); err != nil {
			return nil, eris.Wrap(err, "profile: unmarshal education")
		}
	}
	if len(contactURLsJSON) > 0 {
		if err := json.Unmarshal(contactURLsJSON, &p.ContactURLs); err != nil {
			return nil, eris.Wrap(err, "profile: unmarshal contact_urls")
		}
	}
	if len(rawPayloadJSON) > 0 {
		if err := json.Unmarshal(rawPayloadJSON, &p.RawPayload); err != nil {
			return nil, eris.Wrap(err, "profile: unmarshal raw_payload")
		}
	}
	if embedding != nil {
		p.Embedding = embedding.Slice()
	}
	return &p, nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
	p, err := s.scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "profile: get %s", id)
	}
	return p, nil
}

func (s *PostgresStore) GetProfileByLinkedinURL(ctx context.Context, linkedinURL string) (*model.Profile, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE linkedin_url = $1`, linkedinURL)
	p, err := s.scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "profile: get by linkedin url %s", linkedinURL)
	}
	return p, nil
}

func (s *PostgresStore) ListProfiles(ctx context.Context, filter ProfileFilter) ([]model.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE true`
	var args []any
	argIdx := 1

	if filter.LinkedinURL != "" {
		query += placeholder("AND linkedin_url = ", &argIdx)
		args = append(args, filter.LinkedinURL)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += placeholder("LIMIT ", &argIdx)
	args = append(args, limit)
	if filter.Offset > 0 {
		query += placeholder("OFFSET ", &argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "profile: list")
	}
	defer rows.Close()

	var profiles []model.Profile
	for rows.Next() {
		p, err := s.scanProfile(rows)
		if err != nil {
			return nil, eris.Wrap(err, "profile: scan")
		}
		profiles = append(profiles, *p)
	}
	return profiles, eris.Wrap(rows.Err(), "profile: list iterate")
}

func (s *PostgresStore) DeleteProfile(ctx context.Context, id uuid.UUID) error {
	if err := s.DeleteEdgesByProfile(ctx, id); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "profile: delete %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("profile not found: %s", id)
	}
	return nil
}

// placeholder appends a numbered positional placeholder and advances argIdx.
func placeholder(prefix string, argIdx *int) string {
	s := prefix + "$" + itoa(*argIdx) + " "
	*argIdx++
	return s
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	digits := []byte{}
	for i > 0 {
		digits = append([]byte{byte('0' + i%10)}, digits...)
		i /= 10
	}
	return string(digits)
}

// --- Companies (delegated to internal/company.PostgresStore for the
// identity-resolution methods §4.4 depends on; GetCompany/ListCompanies are
// store-only read paths not needed by the resolver). ---

func (s *PostgresStore) FindCompanyByLinkedinURL(ctx context.Context, linkedinURL string) (*model.Company, error) {
	return s.company.FindCompanyByLinkedinURL(ctx, linkedinURL)
}

func (s *PostgresStore) FindCompanyByNormalizedName(ctx context.Context, normalizedName, domain string) (*model.Company, error) {
	return s.company.FindCompanyByNormalizedName(ctx, normalizedName, domain)
}

func (s *PostgresStore) CreateCompany(ctx context.Context, c *model.Company) error {
	return s.company.CreateCompany(ctx, c)
}

func (s *PostgresStore) UpdateCompany(ctx context.Context, c *model.Company) error {
	return s.company.UpdateCompany(ctx, c)
}

func (s *PostgresStore) GetCompany(ctx context.Context, id uuid.UUID) (*model.Company, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+companyStoreColumns+` FROM companies WHERE id = $1`, id)
	c, err := scanCompanyRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "company: get %s", id)
	}
	return c, nil
}

func (s *PostgresStore) ListCompanies(ctx context.Context, filter CompanyFilter) ([]model.Company, error) {
	query := `SELECT ` + companyStoreColumns + ` FROM companies WHERE true`
	var args []any
	argIdx := 1

	if filter.Search != "" {
		query += placeholder("AND lower(name) LIKE ", &argIdx)
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.Industry != "" {
		query += placeholder("AND ", &argIdx) + "= ANY(industries) "
		args = append(args, filter.Industry)
	}
	query += ` ORDER BY name`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += placeholder("LIMIT ", &argIdx)
	args = append(args, limit)
	if filter.Offset > 0 {
		query += placeholder("OFFSET ", &argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "company: list")
	}
	defer rows.Close()

	var companies []model.Company
	for rows.Next() {
		c, err := scanCompanyRow(rows)
		if err != nil {
			return nil, eris.Wrap(err, "company: scan")
		}
		companies = append(companies, *c)
	}
	return companies, eris.Wrap(rows.Err(), "company: list iterate")
}

const companyStoreColumns = `id, linkedin_company_url, name, tagline, domain, website_url, logo_url,
	description, specialties, industries, employee_count, employee_range_label,
	follower_count, year_founded, address_line1, address_line2, city, region, country,
	postal_code, email, phone, locations, funding, affiliated_companies, raw_payload,
	created_at, updated_at`

func scanCompanyRow(row pgx.Row) (*model.Company, error) {
	var c model.Company
	var industries, affiliated []string
	var locationsRaw, fundingRaw, rawPayloadRaw []byte

	err := row.Scan(
		&c.ID, &c.LinkedinCompanyURL, &c.Name, &c.Tagline, &c.Domain, &c.WebsiteURL, &c.LogoURL,
		&c.Description, &c.Specialties, &industries, &c.EmployeeCount, &c.EmployeeRangeLabel,
		&c.FollowerCount, &c.YearFounded, &c.AddressLine1, &c.AddressLine2, &c.City, &c.Region, &c.Country,
		&c.PostalCode, &c.Email, &c.Phone, &locationsRaw, &fundingRaw, &affiliated, &rawPayloadRaw,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Industries = industries
	c.AffiliatedCompanies = affiliated
	if len(locationsRaw) > 0 {
		if err := json.Unmarshal(locationsRaw, &c.Locations); err != nil {
			return nil, eris.Wrap(err, "company: unmarshal locations")
		}
	}
	if len(fundingRaw) > 0 {
		c.Funding = &model.CompanyFunding{}
		if err := json.Unmarshal(fundingRaw, c.Funding); err != nil {
			return nil, eris.Wrap(err, "company: unmarshal funding")
		}
	}
	if len(rawPayloadRaw) > 0 {
		if err := json.Unmarshal(rawPayloadRaw, &c.RawPayload); err != nil {
			return nil, eris.Wrap(err, "company: unmarshal raw_payload")
		}
	}
	return &c, nil
}

// --- Profile-company edges ---

func (s *PostgresStore) CreateEdge(ctx context.Context, e *model.ProfileCompanyEdge) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO profile_companies (
			profile_id, company_id, position_title, start_date, end_date,
			duration_text, is_current_role, description
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		e.ProfileID, e.CompanyID, e.PositionTitle, e.StartDate, e.EndDate,
		e.DurationText, e.IsCurrentRole, e.Description,
	).Scan(&e.ID)
	if err != nil {
		return eris.Wrap(err, "edge: create")
	}
	return nil
}

func (s *PostgresStore) DeleteEdgesByProfile(ctx context.Context, profileID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM profile_companies WHERE profile_id = $1`, profileID)
	return eris.Wrapf(err, "edge: delete by profile %s", profileID)
}

const edgeColumns = `id, profile_id, company_id, position_title, start_date, end_date, duration_text, is_current_role, description`

func scanEdge(row pgx.Row) (*model.ProfileCompanyEdge, error) {
	var e model.ProfileCompanyEdge
	err := row.Scan(&e.ID, &e.ProfileID, &e.CompanyID, &e.PositionTitle, &e.StartDate, &e.EndDate, &e.DurationText, &e.IsCurrentRole, &e.Description)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *PostgresStore) ListEdgesByProfile(ctx context.Context, profileID uuid.UUID) ([]model.ProfileCompanyEdge, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+edgeColumns+` FROM profile_companies WHERE profile_id = $1`, profileID)
	if err != nil {
		return nil, eris.Wrap(err, "edge: list by profile")
	}
	defer rows.Close()

	var edges []model.ProfileCompanyEdge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, eris.Wrap(err, "edge: scan")
		}
		edges = append(edges, *e)
	}
	return edges, eris.Wrap(rows.Err(), "edge: list iterate")
}

func (s *PostgresStore) ListProfilesByCompany(ctx context.Context, companyID uuid.UUID, filter EdgeFilter) ([]model.Profile, error) {
	query := `SELECT p.` + profileColumnsQualified() + ` FROM profiles p
		JOIN profile_companies pc ON pc.profile_id = p.id
		WHERE pc.company_id = $1`
	args := []any{companyID}
	argIdx := 2

	if filter.CurrentOnly {
		query += ` AND pc.is_current_role = true`
	}
	query += ` ORDER BY p.created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += placeholder("LIMIT ", &argIdx)
	args = append(args, limit)
	if filter.Offset > 0 {
		query += placeholder("OFFSET ", &argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "edge: list profiles by company")
	}
	defer rows.Close()

	var profiles []model.Profile
	for rows.Next() {
		p, err := s.scanProfile(rows)
		if err != nil {
			return nil, eris.Wrap(err, "profile: scan")
		}
		profiles = append(profiles, *p)
	}
	return profiles, eris.Wrap(rows.Err(), "edge: list profiles by company iterate")
}

func profileColumnsQualified() string {
	return "id, linkedin_url, full_name, headline, about, current_position_label, " +
		"current_company_label, current_company_id, country, city, profile_image_url, suggested_role, " +
		"experiences, education, certifications, honors, languages, skills, contact_urls, " +
		"embedding, raw_payload, created_at, updated_at"
}

// --- Scoring jobs ---

func (s *PostgresStore) CreateScoringJob(ctx context.Context, j *model.ScoringJob) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO scoring_jobs (profile_id, template_id, prompt, model_name, status, retry_count)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		j.ProfileID, j.TemplateID, j.Prompt, j.ModelName, string(j.Status), j.RetryCount,
	).Scan(&j.ID, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return eris.Wrap(err, "scoring job: create")
	}
	return nil
}

const scoringJobColumns = `id, profile_id, template_id, prompt, model_name, status, retry_count,
	created_at, started_at, completed_at, updated_at, llm_response, parsed_score, error_message`

func scanScoringJob(row pgx.Row) (*model.ScoringJob, error) {
	var j model.ScoringJob
	var status string
	var llmResponse, parsedScore []byte

	err := row.Scan(
		&j.ID, &j.ProfileID, &j.TemplateID, &j.Prompt, &j.ModelName, &status, &j.RetryCount,
		&j.CreatedAt, &j.StartedAt, &j.CompletedAt, &j.UpdatedAt, &llmResponse, &parsedScore, &j.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}
	j.Status = model.JobStatus(status)
	j.LLMResponse = llmResponse
	j.ParsedScore = parsedScore
	return &j, nil
}

func (s *PostgresStore) GetScoringJob(ctx context.Context, id uuid.UUID) (*model.ScoringJob, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+scoringJobColumns+` FROM scoring_jobs WHERE id = $1`, id)
	j, err := scanScoringJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "scoring job: get %s", id)
	}
	return j, nil
}

func (s *PostgresStore) UpdateScoringJob(ctx context.Context, j *model.ScoringJob) error {
	j.UpdatedAt = timeNowUTC()
	_, err := s.pool.Exec(ctx, `
		UPDATE scoring_jobs SET
			status=$2, retry_count=$3, started_at=$4, completed_at=$5,
			updated_at=$6, llm_response=$7, parsed_score=$8, error_message=$9
		WHERE id=$1`,
		j.ID, string(j.Status), j.RetryCount, j.StartedAt, j.CompletedAt,
		j.UpdatedAt, []byte(j.LLMResponse), []byte(j.ParsedScore), j.ErrorMessage,
	)
	if err != nil {
		return eris.Wrapf(err, "scoring job: update %s", j.ID)
	}
	return nil
}

func (s *PostgresStore) ListScoringJobs(ctx context.Context, filter JobFilter) ([]model.ScoringJob, error) {
	query := `SELECT ` + scoringJobColumns + ` FROM scoring_jobs WHERE true`
	var args []any
	argIdx := 1

	if filter.Status != "" {
		query += placeholder("AND status = ", &argIdx)
		args = append(args, string(filter.Status))
	}
	if filter.ProfileID != nil {
		query += placeholder("AND profile_id = ", &argIdx)
		args = append(args, *filter.ProfileID)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += placeholder("LIMIT ", &argIdx)
	args = append(args, limit)
	if filter.Offset > 0 {
		query += placeholder("OFFSET ", &argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "scoring job: list")
	}
	defer rows.Close()

	var jobs []model.ScoringJob
	for rows.Next() {
		j, err := scanScoringJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "scoring job: scan")
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "scoring job: list iterate")
}

// --- Templates ---

func (s *PostgresStore) CreateTemplate(ctx context.Context, t *model.Template) error {
	metadataJSON, err := json.Marshal(t.Metadata)
	if err != nil {
		return eris.Wrap(err, "template: marshal metadata")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "template: begin create")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	err = tx.QueryRow(ctx, `
		INSERT INTO prompt_templates (
			name, category, stage, prompt_text, description, version, is_active,
			is_current_version, parent_template_id, version_label, version_notes, metadata, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at`,
		t.Name, t.Category, t.Stage, t.PromptText, t.Description, t.Version, t.IsActive,
		t.IsCurrentVersion, t.ParentTemplateID, t.VersionLabel, t.VersionNotes, metadataJSON, t.CreatedBy,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return eris.Wrap(err, "template: create")
	}

	if err := insertVersionHistory(ctx, tx, t, 1, model.ChangeCreate, "", model.ContentFields, nil); err != nil {
		return err
	}

	return eris.Wrap(tx.Commit(ctx), "template: commit create")
}

func insertVersionHistory(ctx context.Context, tx pgx.Tx, t *model.Template, versionNumber int, changeType model.ChangeType, changeSummary string, changedFields []string, previousVersionID *uuid.UUID) error {
	changedFieldsJSON, err := json.Marshal(changedFields)
	if err != nil {
		return eris.Wrap(err, "template: marshal changed_fields")
	}
	metadataJSON, err := json.Marshal(t.Metadata)
	if err != nil {
		return eris.Wrap(err, "template: marshal metadata")
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO template_version_history (
			template_id, version_number, version_label, previous_version_id, change_type,
			change_summary, changed_fields, name, category, prompt_text, description, metadata, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		t.ID, versionNumber, t.VersionLabel, previousVersionID, string(changeType),
		changeSummary, changedFieldsJSON, t.Name, t.Category, t.PromptText, t.Description, metadataJSON, t.CreatedBy,
	)
	return eris.Wrap(err, "template: insert version history")
}

const templateColumns = `id, name, category, stage, prompt_text, description, version, is_active,
	is_current_version, parent_template_id, version_label, version_notes, metadata, created_by,
	created_at, updated_at`

func scanTemplate(row pgx.Row) (*model.Template, error) {
	var t model.Template
	var metadataJSON []byte
	err := row.Scan(
		&t.ID, &t.Name, &t.Category, &t.Stage, &t.PromptText, &t.Description, &t.Version, &t.IsActive,
		&t.IsCurrentVersion, &t.ParentTemplateID, &t.VersionLabel, &t.VersionNotes, &metadataJSON, &t.CreatedBy,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &t.Metadata); err != nil {
			return nil, eris.Wrap(err, "template: unmarshal metadata")
		}
	}
	return &t, nil
}

func (s *PostgresStore) GetTemplate(ctx context.Context, id uuid.UUID) (*model.Template, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+templateColumns+` FROM prompt_templates WHERE id = $1`, id)
	t, err := scanTemplate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "template: get %s", id)
	}
	return t, nil
}

func (s *PostgresStore) ListTemplates(ctx context.Context, filter TemplateFilter) ([]model.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM prompt_templates WHERE true`
	var args []any
	argIdx := 1

	if filter.Category != "" {
		query += placeholder("AND category = ", &argIdx)
		args = append(args, filter.Category)
	}
	if filter.Stage != "" {
		query += placeholder("AND stage = ", &argIdx)
		args = append(args, filter.Stage)
	}
	if filter.IsActive != nil {
		query += placeholder("AND is_active = ", &argIdx)
		args = append(args, *filter.IsActive)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += placeholder("LIMIT ", &argIdx)
	args = append(args, limit)
	if filter.Offset > 0 {
		query += placeholder("OFFSET ", &argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "template: list")
	}
	defer rows.Close()

	var templates []model.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, eris.Wrap(err, "template: scan")
		}
		templates = append(templates, *t)
	}
	return templates, eris.Wrap(rows.Err(), "template: list iterate")
}

func (s *PostgresStore) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM prompt_templates WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "template: delete %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("template not found: %s", id)
	}
	return nil
}

// UpdateTemplateWithHistory reads the head, applies fn, computes the
// changed-fields set, and — if non-empty — writes the update and a new
// template_version_history row within one transaction (§4.6).
func (s *PostgresStore) UpdateTemplateWithHistory(ctx context.Context, id uuid.UUID, fn func(t *model.Template) (model.ChangeType, string, error)) (*model.Template, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "template: begin update")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	row := tx.QueryRow(ctx, `SELECT `+templateColumns+` FROM prompt_templates WHERE id = $1 FOR UPDATE`, id)
	before, err := scanTemplate(row)
	if err != nil {
		return nil, eris.Wrapf(err, "template: lock head %s", id)
	}
	beforeCopy := *before

	changeType, changeSummary, err := fn(before)
	if err != nil {
		return nil, err
	}

	changed := diffContentFields(beforeCopy, *before)
	if len(changed) == 0 {
		if !headOnlyChanged(beforeCopy, *before) {
			return &beforeCopy, eris.Wrap(tx.Commit(ctx), "template: commit no-op")
		}
		before.UpdatedAt = timeNowUTC()
		metadataJSON, err := json.Marshal(before.Metadata)
		if err != nil {
			return nil, eris.Wrap(err, "template: marshal metadata")
		}
		_, err = tx.Exec(ctx, `
			UPDATE prompt_templates SET
				name=$2, category=$3, stage=$4, prompt_text=$5, description=$6, version=$7,
				is_active=$8, version_label=$9, version_notes=$10, metadata=$11, updated_at=$12
			WHERE id=$1`,
			before.ID, before.Name, before.Category, before.Stage, before.PromptText, before.Description, before.Version,
			before.IsActive, before.VersionLabel, before.VersionNotes, metadataJSON, before.UpdatedAt,
		)
		if err != nil {
			return nil, eris.Wrapf(err, "template: head-only update %s", id)
		}
		return before, eris.Wrap(tx.Commit(ctx), "template: commit head-only update")
	}

	before.Version++
	before.UpdatedAt = timeNowUTC()
	metadataJSON, err := json.Marshal(before.Metadata)
	if err != nil {
		return nil, eris.Wrap(err, "template: marshal metadata")
	}

	_, err = tx.Exec(ctx, `
		UPDATE prompt_templates SET
			name=$2, category=$3, stage=$4, prompt_text=$5, description=$6, version=$7,
			is_active=$8, version_label=$9, version_notes=$10, metadata=$11, updated_at=$12
		WHERE id=$1`,
		before.ID, before.Name, before.Category, before.Stage, before.PromptText, before.Description, before.Version,
		before.IsActive, before.VersionLabel, before.VersionNotes, metadataJSON, before.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "template: update %s", id)
	}

	prevID := beforeCopy.ID
	if err := insertVersionHistory(ctx, tx, before, before.Version, changeType, changeSummary, changed, &prevID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "template: commit update")
	}
	return before, nil
}

// headOnlyChanged reports whether a head-level field outside
// model.ContentFields (is_active, stage, version_label, version_notes)
// differs between before and after. These fields are mutable head state,
// not versioned content — a pure activation toggle, for instance, is not
// itself a content-field change (it isn't even captured in the
// template_version_history snapshot), but it must still persist.
func headOnlyChanged(before, after model.Template) bool {
	return before.IsActive != after.IsActive ||
		before.Stage != after.Stage ||
		before.VersionLabel != after.VersionLabel ||
		before.VersionNotes != after.VersionNotes
}

// diffContentFields returns the subset of model.ContentFields whose value
// differs between before and after.
func diffContentFields(before, after model.Template) []string {
	var changed []string
	if before.Name != after.Name {
		changed = append(changed, "name")
	}
	if before.PromptText != after.PromptText {
		changed = append(changed, "prompt_text")
	}
	if before.Description != after.Description {
		changed = append(changed, "description")
	}
	if before.Category != after.Category {
		changed = append(changed, "category")
	}
	if string(mustJSON(before.Metadata)) != string(mustJSON(after.Metadata)) {
		changed = append(changed, "metadata")
	}
	return changed
}

func mustJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

func (s *PostgresStore) GetTemplateVersion(ctx context.Context, templateID uuid.UUID, versionNumber int) (*model.TemplateVersionHistory, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, template_id, version_number, version_label, previous_version_id, change_type,
			change_summary, changed_fields, name, category, prompt_text, description, metadata,
			created_at, created_by
		FROM template_version_history WHERE template_id = $1 AND version_number = $2`,
		templateID, versionNumber)
	h, err := scanVersionHistory(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "template version: get %s v%d", templateID, versionNumber)
	}
	return h, nil
}

func (s *PostgresStore) ListTemplateVersions(ctx context.Context, templateID uuid.UUID) ([]model.TemplateVersionHistory, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, template_id, version_number, version_label, previous_version_id, change_type,
			change_summary, changed_fields, name, category, prompt_text, description, metadata,
			created_at, created_by
		FROM template_version_history WHERE template_id = $1 ORDER BY version_number`, templateID)
	if err != nil {
		return nil, eris.Wrap(err, "template version: list")
	}
	defer rows.Close()

	var versions []model.TemplateVersionHistory
	for rows.Next() {
		h, err := scanVersionHistory(rows)
		if err != nil {
			return nil, eris.Wrap(err, "template version: scan")
		}
		versions = append(versions, *h)
	}
	return versions, eris.Wrap(rows.Err(), "template version: list iterate")
}

func scanVersionHistory(row pgx.Row) (*model.TemplateVersionHistory, error) {
	var h model.TemplateVersionHistory
	var changeType string
	var changedFieldsJSON, metadataJSON []byte

	err := row.Scan(
		&h.ID, &h.TemplateID, &h.VersionNumber, &h.VersionLabel, &h.PreviousVersionID, &changeType,
		&h.ChangeSummary, &changedFieldsJSON, &h.Name, &h.Category, &h.PromptText, &h.Description, &metadataJSON,
		&h.CreatedAt, &h.CreatedBy,
	)
	if err != nil {
		return nil, err
	}
	h.ChangeType = model.ChangeType(changeType)
	if len(changedFieldsJSON) > 0 {
		if err := json.Unmarshal(changedFieldsJSON, &h.ChangedFields); err != nil {
			return nil, eris.Wrap(err, "template version: unmarshal changed_fields")
		}
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &h.Metadata); err != nil {
			return nil, eris.Wrap(err, "template version: unmarshal metadata")
		}
	}
	return &h, nil
}

// --- Template diffs ---

func (s *PostgresStore) GetTemplateDiff(ctx context.Context, versionAID, versionBID uuid.UUID) (*model.TemplateVersionDiff, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT version_a_id, version_b_id, diff_data, diff_summary
		FROM template_version_diffs WHERE (version_a_id = $1 AND version_b_id = $2) OR (version_a_id = $2 AND version_b_id = $1)`,
		versionAID, versionBID)

	var d model.TemplateVersionDiff
	var diffDataJSON, diffSummaryJSON []byte
	err := row.Scan(&d.VersionAID, &d.VersionBID, &diffDataJSON, &diffSummaryJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "template diff: get")
	}
	if err := json.Unmarshal(diffDataJSON, &d.DiffData); err != nil {
		return nil, eris.Wrap(err, "template diff: unmarshal diff_data")
	}
	if err := json.Unmarshal(diffSummaryJSON, &d.DiffSummary); err != nil {
		return nil, eris.Wrap(err, "template diff: unmarshal diff_summary")
	}
	return &d, nil
}

func (s *PostgresStore) SaveTemplateDiff(ctx context.Context, d *model.TemplateVersionDiff) error {
	diffDataJSON, err := json.Marshal(d.DiffData)
	if err != nil {
		return eris.Wrap(err, "template diff: marshal diff_data")
	}
	diffSummaryJSON, err := json.Marshal(d.DiffSummary)
	if err != nil {
		return eris.Wrap(err, "template diff: marshal diff_summary")
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO template_version_diffs (version_a_id, version_b_id, diff_data, diff_summary)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (version_a_id, version_b_id) DO NOTHING`,
		d.VersionAID, d.VersionBID, diffDataJSON, diffSummaryJSON,
	)
	return eris.Wrap(err, "template diff: save")
}

// --- Dead letters ---

func (s *PostgresStore) RecordDeadLetter(ctx context.Context, dl resilience.DeadLetter) error {
	if dl.ID == "" {
		dl.ID = uuid.New().String()
	}
	if dl.CreatedAt.IsZero() {
		dl.CreatedAt = timeNowUTC()
	}
	if dl.LastFailedAt.IsZero() {
		dl.LastFailedAt = timeNowUTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO dead_letters (id, subject, phase, error, error_type, retry_count, max_retries, created_at, last_failed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		dl.ID, dl.Subject, dl.Phase, dl.Error, dl.ErrorType, dl.RetryCount, dl.MaxRetries, dl.CreatedAt, dl.LastFailedAt,
	)
	return eris.Wrap(err, "dead letter: record")
}

func (s *PostgresStore) ListDeadLetters(ctx context.Context, filter resilience.DeadLetterFilter) ([]resilience.DeadLetter, error) {
	query := `SELECT id, subject, phase, error, error_type, retry_count, max_retries, created_at, last_failed_at FROM dead_letters WHERE true`
	var args []any
	argIdx := 1

	if filter.ErrorType != "" {
		query += placeholder("AND error_type = ", &argIdx)
		args = append(args, filter.ErrorType)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += placeholder("LIMIT ", &argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "dead letter: list")
	}
	defer rows.Close()

	var entries []resilience.DeadLetter
	for rows.Next() {
		var dl resilience.DeadLetter
		if err := rows.Scan(&dl.ID, &dl.Subject, &dl.Phase, &dl.Error, &dl.ErrorType, &dl.RetryCount, &dl.MaxRetries, &dl.CreatedAt, &dl.LastFailedAt); err != nil {
			return nil, eris.Wrap(err, "dead letter: scan")
		}
		entries = append(entries, dl)
	}
	return entries, eris.Wrap(rows.Err(), "dead letter: list iterate")
}
