package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/hirewell/profile-ingest/internal/model"
	"github.com/hirewell/profile-ingest/internal/resilience"
)

//go:embed migrations_sqlite/*.sql
var sqliteMigrationFiles embed.FS

// SQLiteStore implements Store over modernc.org/sqlite for local development
// and tests that don't need a real Postgres. Vector similarity search is not
// supported: Profile.Embedding round-trips as an opaque JSON blob and no
// nearest-neighbor query is exposed (§3 storage representation notes).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) a SQLite database at path. Use ":memory:" for
// ephemeral test databases.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; avoid SQLITE_BUSY under concurrency
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	entries, err := sqliteMigrationFiles.ReadDir("migrations_sqlite")
	if err != nil {
		return eris.Wrap(err, "sqlite: read migrations dir")
	}
	for _, entry := range entries {
		sqlBytes, err := sqliteMigrationFiles.ReadFile("migrations_sqlite/" + entry.Name())
		if err != nil {
			return eris.Wrapf(err, "sqlite: read migration %s", entry.Name())
		}
		if _, err := s.db.ExecContext(ctx, string(sqlBytes)); err != nil {
			return eris.Wrapf(err, "sqlite: apply migration %s", entry.Name())
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Profiles ---

func (s *SQLiteStore) CreateProfile(ctx context.Context, p *model.Profile) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := timeNowUTC()
	p.CreatedAt, p.UpdatedAt = now, now

	experiencesJSON, err := json.Marshal(p.Experiences)
	if err != nil {
		return eris.Wrap(err, "profile: marshal experiences")
	}
	educationJSON, err := json.Marshal(p.Education)
	if err != nil {
		return eris.Wrap(err, "profile: marshal education")
	}
	certificationsJSON, _ := json.Marshal(p.Certifications)
	honorsJSON, _ := json.Marshal(p.Honors)
	languagesJSON, _ := json.Marshal(p.Languages)
	skillsJSON, _ := json.Marshal(p.Skills)
	contactURLsJSON, err := json.Marshal(p.ContactURLs)
	if err != nil {
		return eris.Wrap(err, "profile: marshal contact urls")
	}
	rawPayloadJSON, err := json.Marshal(p.RawPayload)
	if err != nil {
		return eris.Wrap(err, "profile: marshal raw_payload")
	}
	embeddingJSON, err := json.Marshal(p.Embedding)
	if err != nil {
		return eris.Wrap(err, "profile: marshal embedding")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO profiles (
			id, linkedin_url, full_name, headline, about, current_position_label,
			current_company_label, current_company_id, country, city, profile_image_url,
			suggested_role, experiences, education, certifications, honors, languages,
			skills, contact_urls, embedding, raw_payload, created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID.String(), p.LinkedinURL, p.FullName, p.Headline, p.About, p.CurrentPositionLabel,
		p.CurrentCompanyLabel, nullableUUID(p.CurrentCompanyID), p.Country, p.City, p.ProfileImageURL,
		string(p.SuggestedRole), experiencesJSON, educationJSON, certificationsJSON, honorsJSON, languagesJSON,
		skillsJSON, contactURLsJSON, embeddingJSON, rawPayloadJSON, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "profile: create")
	}
	return nil
}

func nullableUUID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

type sqliteRowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanProfile(row sqliteRowScanner) (*model.Profile, error) {
	var p model.Profile
	var idStr string
	var currentCompanyID sql.NullString
	var suggestedRole string
	var experiencesJSON, educationJSON, certificationsJSON, honorsJSON, languagesJSON, skillsJSON, contactURLsJSON, embeddingJSON, rawPayloadJSON []byte

	err := row.Scan(
		&idStr, &p.LinkedinURL, &p.FullName, &p.Headline, &p.About, &p.CurrentPositionLabel,
		&p.CurrentCompanyLabel, &currentCompanyID, &p.Country, &p.City, &p.ProfileImageURL, &suggestedRole,
		&experiencesJSON, &educationJSON, &certificationsJSON, &honorsJSON, &languagesJSON, &skillsJSON, &contactURLsJSON,
		&embeddingJSON, &rawPayloadJSON, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, eris.Wrap(err, "profile: parse id")
	}
	if currentCompanyID.Valid {
		parsed, err := uuid.Parse(currentCompanyID.String)
		if err != nil {
			return nil, eris.Wrap(err, "profile: parse current_company_id")
		}
		p.CurrentCompanyID = &parsed
	}
	p.SuggestedRole = model.SuggestedRole(suggestedRole)

	for _, pair := range []struct {
		raw  []byte
		dest any
	}{
		{experiencesJSON, &p.Experiences},
		{educationJSON, &p.Education},
		{certificationsJSON, &p.Certifications},
		{honorsJSON, &p.Honors},
		{languagesJSON, &p.Languages},
		{skillsJSON, &p.Skills},
		{contactURLsJSON, &p.ContactURLs},
		{embeddingJSON, &p.Embedding},
		{rawPayloadJSON, &p.RawPayload},
	} {
		if len(pair.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(pair.raw, pair.dest); err != nil {
			return nil, eris.Wrap(err, "profile: unmarshal field")
		}
	}
	return &p, nil
}

const sqliteProfileColumns = `id, linkedin_url, full_name, headline, about, current_position_label,
	current_company_label, current_company_id, country, city, profile_image_url, suggested_role,
	experiences, education, certifications, honors, languages, skills, contact_urls,
	embedding, raw_payload, created_at, updated_at`

func (s *SQLiteStore) GetProfile(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteProfileColumns+` FROM profiles WHERE id = ?`, id.String())
	p, err := s.scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "profile: get %s", id)
	}
	return p, nil
}

func (s *SQLiteStore) GetProfileByLinkedinURL(ctx context.Context, linkedinURL string) (*model.Profile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteProfileColumns+` FROM profiles WHERE linkedin_url = ?`, linkedinURL)
	p, err := s.scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "profile: get by linkedin url %s", linkedinURL)
	}
	return p, nil
}

func (s *SQLiteStore) ListProfiles(ctx context.Context, filter ProfileFilter) ([]model.Profile, error) {
	query := `SELECT ` + sqliteProfileColumns + ` FROM profiles WHERE 1=1`
	var args []any

	if filter.LinkedinURL != "" {
		query += ` AND linkedin_url = ?`
		args = append(args, filter.LinkedinURL)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
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

func (s *SQLiteStore) DeleteProfile(ctx context.Context, id uuid.UUID) error {
	if err := s.DeleteEdgesByProfile(ctx, id); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id.String())
	if err != nil {
		return eris.Wrapf(err, "profile: delete %s", id)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return eris.Errorf("profile not found: %s", id)
	}
	return nil
}

// --- Companies ---

const sqliteCompanyColumns = `id, linkedin_company_url, name, tagline, domain, website_url, logo_url,
	description, specialties, industries, employee_count, employee_range_label,
	follower_count, year_founded, address_line1, address_line2, city, region, country,
	postal_code, email, phone, locations, funding, affiliated_companies, raw_payload,
	created_at, updated_at`

func (s *SQLiteStore) scanCompany(row sqliteRowScanner) (*model.Company, error) {
	var c model.Company
	var idStr string
	var linkedinURL sql.NullString
	var employeeCount, followerCount, yearFounded sql.NullInt64
	var industriesJSON, affiliatedJSON, locationsJSON, fundingJSON, rawPayloadJSON []byte

	err := row.Scan(
		&idStr, &linkedinURL, &c.Name, &c.Tagline, &c.Domain, &c.WebsiteURL, &c.LogoURL,
		&c.Description, &c.Specialties, &industriesJSON, &employeeCount, &c.EmployeeRangeLabel,
		&followerCount, &yearFounded, &c.AddressLine1, &c.AddressLine2, &c.City, &c.Region, &c.Country,
		&c.PostalCode, &c.Email, &c.Phone, &locationsJSON, &fundingJSON, &affiliatedJSON, &rawPayloadJSON,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, eris.Wrap(err, "company: parse id")
	}
	if linkedinURL.Valid {
		c.LinkedinCompanyURL = linkedinURL.String
	}
	if employeeCount.Valid {
		n := int(employeeCount.Int64)
		c.EmployeeCount = &n
	}
	if followerCount.Valid {
		n := int(followerCount.Int64)
		c.FollowerCount = &n
	}
	if yearFounded.Valid {
		n := int(yearFounded.Int64)
		c.YearFounded = &n
	}
	if len(industriesJSON) > 0 {
		if err := json.Unmarshal(industriesJSON, &c.Industries); err != nil {
			return nil, eris.Wrap(err, "company: unmarshal industries")
		}
	}
	if len(affiliatedJSON) > 0 {
		if err := json.Unmarshal(affiliatedJSON, &c.AffiliatedCompanies); err != nil {
			return nil, eris.Wrap(err, "company: unmarshal affiliated_companies")
		}
	}
	if len(locationsJSON) > 0 {
		if err := json.Unmarshal(locationsJSON, &c.Locations); err != nil {
			return nil, eris.Wrap(err, "company: unmarshal locations")
		}
	}
	if len(fundingJSON) > 0 {
		c.Funding = &model.CompanyFunding{}
		if err := json.Unmarshal(fundingJSON, c.Funding); err != nil {
			return nil, eris.Wrap(err, "company: unmarshal funding")
		}
	}
	if len(rawPayloadJSON) > 0 {
		if err := json.Unmarshal(rawPayloadJSON, &c.RawPayload); err != nil {
			return nil, eris.Wrap(err, "company: unmarshal raw_payload")
		}
	}
	return &c, nil
}

func (s *SQLiteStore) FindCompanyByLinkedinURL(ctx context.Context, linkedinURL string) (*model.Company, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteCompanyColumns+` FROM companies WHERE linkedin_company_url = ?`, linkedinURL)
	c, err := s.scanCompany(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "company: find by linkedin url %s", linkedinURL)
	}
	return c, nil
}

func (s *SQLiteStore) FindCompanyByNormalizedName(ctx context.Context, normalizedName, domain string) (*model.Company, error) {
	var row *sql.Row
	if domain != "" {
		row = s.db.QueryRowContext(ctx, `
			SELECT `+sqliteCompanyColumns+` FROM companies
			WHERE lower(replace(replace(replace(name, ' ', ''), '-', ''), '.', '')) = ?
			AND (domain = ? OR domain = '')
			LIMIT 1`, normalizedName, domain)
	} else {
		row = s.db.QueryRowContext(ctx, `
			SELECT `+sqliteCompanyColumns+` FROM companies
			WHERE lower(replace(replace(replace(name, ' ', ''), '-', ''), '.', '')) = ?
			LIMIT 1`, normalizedName)
	}
	c, err := s.scanCompany(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "company: find by normalized name %s", normalizedName)
	}
	return c, nil
}

func (s *SQLiteStore) CreateCompany(ctx context.Context, c *model.Company) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := timeNowUTC()
	c.CreatedAt, c.UpdatedAt = now, now

	industriesJSON, _ := json.Marshal(c.Industries)
	affiliatedJSON, _ := json.Marshal(c.AffiliatedCompanies)
	locationsJSON, err := json.Marshal(c.Locations)
	if err != nil {
		return eris.Wrap(err, "company: marshal locations")
	}
	fundingJSON, err := json.Marshal(c.Funding)
	if err != nil {
		return eris.Wrap(err, "company: marshal funding")
	}
	rawPayloadJSON, err := json.Marshal(c.RawPayload)
	if err != nil {
		return eris.Wrap(err, "company: marshal raw_payload")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO companies (
			id, linkedin_company_url, name, tagline, domain, website_url, logo_url,
			description, specialties, industries, employee_count, employee_range_label,
			follower_count, year_founded, address_line1, address_line2, city, region, country,
			postal_code, email, phone, locations, funding, affiliated_companies, raw_payload,
			created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		c.ID.String(), nullableString(c.LinkedinCompanyURL), c.Name, c.Tagline, c.Domain, c.WebsiteURL, c.LogoURL,
		c.Description, c.Specialties, industriesJSON, c.EmployeeCount, c.EmployeeRangeLabel,
		c.FollowerCount, c.YearFounded, c.AddressLine1, c.AddressLine2, c.City, c.Region, c.Country,
		c.PostalCode, c.Email, c.Phone, locationsJSON, fundingJSON, affiliatedJSON, rawPayloadJSON,
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "company: create")
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s *SQLiteStore) UpdateCompany(ctx context.Context, c *model.Company) error {
	c.UpdatedAt = timeNowUTC()

	industriesJSON, _ := json.Marshal(c.Industries)
	affiliatedJSON, _ := json.Marshal(c.AffiliatedCompanies)
	locationsJSON, err := json.Marshal(c.Locations)
	if err != nil {
		return eris.Wrap(err, "company: marshal locations")
	}
	fundingJSON, err := json.Marshal(c.Funding)
	if err != nil {
		return eris.Wrap(err, "company: marshal funding")
	}
	rawPayloadJSON, err := json.Marshal(c.RawPayload)
	if err != nil {
		return eris.Wrap(err, "company: marshal raw_payload")
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE companies SET
			linkedin_company_url=?, name=?, tagline=?, domain=?, website_url=?, logo_url=?,
			description=?, specialties=?, industries=?, employee_count=?, employee_range_label=?,
			follower_count=?, year_founded=?, address_line1=?, address_line2=?, city=?,
			region=?, country=?, postal_code=?, email=?, phone=?, locations=?,
			funding=?, affiliated_companies=?, raw_payload=?, updated_at=?
		WHERE id=?`,
		nullableString(c.LinkedinCompanyURL), c.Name, c.Tagline, c.Domain, c.WebsiteURL, c.LogoURL,
		c.Description, c.Specialties, industriesJSON, c.EmployeeCount, c.EmployeeRangeLabel,
		c.FollowerCount, c.YearFounded, c.AddressLine1, c.AddressLine2, c.City,
		c.Region, c.Country, c.PostalCode, c.Email, c.Phone, locationsJSON,
		fundingJSON, affiliatedJSON, rawPayloadJSON, c.UpdatedAt, c.ID.String(),
	)
	if err != nil {
		return eris.Wrapf(err, "company: update %s", c.ID)
	}
	return nil
}

func (s *SQLiteStore) GetCompany(ctx context.Context, id uuid.UUID) (*model.Company, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteCompanyColumns+` FROM companies WHERE id = ?`, id.String())
	c, err := s.scanCompany(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "company: get %s", id)
	}
	return c, nil
}

func (s *SQLiteStore) ListCompanies(ctx context.Context, filter CompanyFilter) ([]model.Company, error) {
	query := `SELECT ` + sqliteCompanyColumns + ` FROM companies WHERE 1=1`
	var args []any

	if filter.Search != "" {
		query += ` AND lower(name) LIKE ?`
		args = append(args, "%"+filter.Search+"%")
	}
	query += ` ORDER BY name`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "company: list")
	}
	defer rows.Close()

	var companies []model.Company
	for rows.Next() {
		c, err := s.scanCompany(rows)
		if err != nil {
			return nil, eris.Wrap(err, "company: scan")
		}
		companies = append(companies, *c)
	}
	return companies, eris.Wrap(rows.Err(), "company: list iterate")
}

// --- Profile-company edges ---

func (s *SQLiteStore) CreateEdge(ctx context.Context, e *model.ProfileCompanyEdge) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profile_companies (
			id, profile_id, company_id, position_title, start_date, end_date,
			duration_text, is_current_role, description
		) VALUES (?,?,?,?,?,?,?,?,?)`,
		e.ID.String(), e.ProfileID.String(), e.CompanyID.String(), e.PositionTitle, e.StartDate, e.EndDate,
		e.DurationText, e.IsCurrentRole, e.Description,
	)
	return eris.Wrap(err, "edge: create")
}

func (s *SQLiteStore) DeleteEdgesByProfile(ctx context.Context, profileID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM profile_companies WHERE profile_id = ?`, profileID.String())
	return eris.Wrapf(err, "edge: delete by profile %s", profileID)
}

func (s *SQLiteStore) scanEdge(row sqliteRowScanner) (*model.ProfileCompanyEdge, error) {
	var e model.ProfileCompanyEdge
	var idStr, profileIDStr, companyIDStr string
	err := row.Scan(&idStr, &profileIDStr, &companyIDStr, &e.PositionTitle, &e.StartDate, &e.EndDate, &e.DurationText, &e.IsCurrentRole, &e.Description)
	if err != nil {
		return nil, err
	}
	if e.ID, err = uuid.Parse(idStr); err != nil {
		return nil, eris.Wrap(err, "edge: parse id")
	}
	if e.ProfileID, err = uuid.Parse(profileIDStr); err != nil {
		return nil, eris.Wrap(err, "edge: parse profile_id")
	}
	if e.CompanyID, err = uuid.Parse(companyIDStr); err != nil {
		return nil, eris.Wrap(err, "edge: parse company_id")
	}
	return &e, nil
}

const sqliteEdgeColumns = `id, profile_id, company_id, position_title, start_date, end_date, duration_text, is_current_role, description`

func (s *SQLiteStore) ListEdgesByProfile(ctx context.Context, profileID uuid.UUID) ([]model.ProfileCompanyEdge, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteEdgeColumns+` FROM profile_companies WHERE profile_id = ?`, profileID.String())
	if err != nil {
		return nil, eris.Wrap(err, "edge: list by profile")
	}
	defer rows.Close()

	var edges []model.ProfileCompanyEdge
	for rows.Next() {
		e, err := s.scanEdge(rows)
		if err != nil {
			return nil, eris.Wrap(err, "edge: scan")
		}
		edges = append(edges, *e)
	}
	return edges, eris.Wrap(rows.Err(), "edge: list iterate")
}

func (s *SQLiteStore) ListProfilesByCompany(ctx context.Context, companyID uuid.UUID, filter EdgeFilter) ([]model.Profile, error) {
	query := `SELECT p.` + sqliteProfileColumns + ` FROM profiles p
		JOIN profile_companies pc ON pc.profile_id = p.id
		WHERE pc.company_id = ?`
	args := []any{companyID.String()}

	if filter.CurrentOnly {
		query += ` AND pc.is_current_role = 1`
	}
	query += ` ORDER BY p.created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
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

// --- Scoring jobs ---

func (s *SQLiteStore) CreateScoringJob(ctx context.Context, j *model.ScoringJob) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	now := timeNowUTC()
	j.CreatedAt, j.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scoring_jobs (id, profile_id, template_id, prompt, model_name, status, retry_count, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		j.ID.String(), j.ProfileID.String(), nullableUUID(j.TemplateID), j.Prompt, j.ModelName, string(j.Status), j.RetryCount,
		j.CreatedAt, j.UpdatedAt,
	)
	return eris.Wrap(err, "scoring job: create")
}

const sqliteScoringJobColumns = `id, profile_id, template_id, prompt, model_name, status, retry_count,
	created_at, started_at, completed_at, updated_at, llm_response, parsed_score, error_message`

func (s *SQLiteStore) scanScoringJob(row sqliteRowScanner) (*model.ScoringJob, error) {
	var j model.ScoringJob
	var idStr, profileIDStr string
	var templateIDStr sql.NullString
	var status string
	var llmResponse, parsedScore []byte

	err := row.Scan(
		&idStr, &profileIDStr, &templateIDStr, &j.Prompt, &j.ModelName, &status, &j.RetryCount,
		&j.CreatedAt, &j.StartedAt, &j.CompletedAt, &j.UpdatedAt, &llmResponse, &parsedScore, &j.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}
	if j.ID, err = uuid.Parse(idStr); err != nil {
		return nil, eris.Wrap(err, "scoring job: parse id")
	}
	if j.ProfileID, err = uuid.Parse(profileIDStr); err != nil {
		return nil, eris.Wrap(err, "scoring job: parse profile_id")
	}
	if templateIDStr.Valid {
		parsed, err := uuid.Parse(templateIDStr.String)
		if err != nil {
			return nil, eris.Wrap(err, "scoring job: parse template_id")
		}
		j.TemplateID = &parsed
	}
	j.Status = model.JobStatus(status)
	j.LLMResponse = llmResponse
	j.ParsedScore = parsedScore
	return &j, nil
}

func (s *SQLiteStore) GetScoringJob(ctx context.Context, id uuid.UUID) (*model.ScoringJob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteScoringJobColumns+` FROM scoring_jobs WHERE id = ?`, id.String())
	j, err := s.scanScoringJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "scoring job: get %s", id)
	}
	return j, nil
}

func (s *SQLiteStore) UpdateScoringJob(ctx context.Context, j *model.ScoringJob) error {
	j.UpdatedAt = timeNowUTC()
	_, err := s.db.ExecContext(ctx, `
		UPDATE scoring_jobs SET
			status=?, retry_count=?, started_at=?, completed_at=?,
			updated_at=?, llm_response=?, parsed_score=?, error_message=?
		WHERE id=?`,
		string(j.Status), j.RetryCount, j.StartedAt, j.CompletedAt,
		j.UpdatedAt, []byte(j.LLMResponse), []byte(j.ParsedScore), j.ErrorMessage, j.ID.String(),
	)
	return eris.Wrapf(err, "scoring job: update %s", j.ID)
}

func (s *SQLiteStore) ListScoringJobs(ctx context.Context, filter JobFilter) ([]model.ScoringJob, error) {
	query := `SELECT ` + sqliteScoringJobColumns + ` FROM scoring_jobs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.ProfileID != nil {
		query += ` AND profile_id = ?`
		args = append(args, filter.ProfileID.String())
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "scoring job: list")
	}
	defer rows.Close()

	var jobs []model.ScoringJob
	for rows.Next() {
		j, err := s.scanScoringJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "scoring job: scan")
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "scoring job: list iterate")
}

// --- Templates ---

func (s *SQLiteStore) CreateTemplate(ctx context.Context, t *model.Template) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := timeNowUTC()
	t.CreatedAt, t.UpdatedAt = now, now

	metadataJSON, err := json.Marshal(t.Metadata)
	if err != nil {
		return eris.Wrap(err, "template: marshal metadata")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "template: begin create")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO prompt_templates (
			id, name, category, stage, prompt_text, description, version, is_active,
			is_current_version, parent_template_id, version_label, version_notes, metadata, created_by,
			created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID.String(), t.Name, t.Category, t.Stage, t.PromptText, t.Description, t.Version, t.IsActive,
		t.IsCurrentVersion, nullableUUID(t.ParentTemplateID), t.VersionLabel, t.VersionNotes, metadataJSON, t.CreatedBy,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "template: create")
	}

	if err := sqliteInsertVersionHistory(ctx, tx, t, 1, model.ChangeCreate, "", model.ContentFields, nil); err != nil {
		return err
	}

	return eris.Wrap(tx.Commit(), "template: commit create")
}

func sqliteInsertVersionHistory(ctx context.Context, tx *sql.Tx, t *model.Template, versionNumber int, changeType model.ChangeType, changeSummary string, changedFields []string, previousVersionID *uuid.UUID) error {
	changedFieldsJSON, err := json.Marshal(changedFields)
	if err != nil {
		return eris.Wrap(err, "template: marshal changed_fields")
	}
	metadataJSON, err := json.Marshal(t.Metadata)
	if err != nil {
		return eris.Wrap(err, "template: marshal metadata")
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO template_version_history (
			id, template_id, version_number, version_label, previous_version_id, change_type,
			change_summary, changed_fields, name, category, prompt_text, description, metadata, created_by,
			created_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		uuid.New().String(), t.ID.String(), versionNumber, t.VersionLabel, nullableUUID(previousVersionID), string(changeType),
		changeSummary, changedFieldsJSON, t.Name, t.Category, t.PromptText, t.Description, metadataJSON, t.CreatedBy,
		timeNowUTC(),
	)
	return eris.Wrap(err, "template: insert version history")
}

const sqliteTemplateColumns = `id, name, category, stage, prompt_text, description, version, is_active,
	is_current_version, parent_template_id, version_label, version_notes, metadata, created_by,
	created_at, updated_at`

func (s *SQLiteStore) scanTemplate(row sqliteRowScanner) (*model.Template, error) {
	var t model.Template
	var idStr string
	var parentID sql.NullString
	var metadataJSON []byte

	err := row.Scan(
		&idStr, &t.Name, &t.Category, &t.Stage, &t.PromptText, &t.Description, &t.Version, &t.IsActive,
		&t.IsCurrentVersion, &parentID, &t.VersionLabel, &t.VersionNotes, &metadataJSON, &t.CreatedBy,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if t.ID, err = uuid.Parse(idStr); err != nil {
		return nil, eris.Wrap(err, "template: parse id")
	}
	if parentID.Valid {
		parsed, err := uuid.Parse(parentID.String)
		if err != nil {
			return nil, eris.Wrap(err, "template: parse parent_template_id")
		}
		t.ParentTemplateID = &parsed
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &t.Metadata); err != nil {
			return nil, eris.Wrap(err, "template: unmarshal metadata")
		}
	}
	return &t, nil
}

func (s *SQLiteStore) GetTemplate(ctx context.Context, id uuid.UUID) (*model.Template, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteTemplateColumns+` FROM prompt_templates WHERE id = ?`, id.String())
	t, err := s.scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "template: get %s", id)
	}
	return t, nil
}

func (s *SQLiteStore) ListTemplates(ctx context.Context, filter TemplateFilter) ([]model.Template, error) {
	query := `SELECT ` + sqliteTemplateColumns + ` FROM prompt_templates WHERE 1=1`
	var args []any

	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	if filter.Stage != "" {
		query += ` AND stage = ?`
		args = append(args, filter.Stage)
	}
	if filter.IsActive != nil {
		query += ` AND is_active = ?`
		args = append(args, *filter.IsActive)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "template: list")
	}
	defer rows.Close()

	var templates []model.Template
	for rows.Next() {
		t, err := s.scanTemplate(rows)
		if err != nil {
			return nil, eris.Wrap(err, "template: scan")
		}
		templates = append(templates, *t)
	}
	return templates, eris.Wrap(rows.Err(), "template: list iterate")
}

func (s *SQLiteStore) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM prompt_templates WHERE id = ?`, id.String())
	if err != nil {
		return eris.Wrapf(err, "template: delete %s", id)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return eris.Errorf("template not found: %s", id)
	}
	return nil
}

func (s *SQLiteStore) UpdateTemplateWithHistory(ctx context.Context, id uuid.UUID, fn func(t *model.Template) (model.ChangeType, string, error)) (*model.Template, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "template: begin update")
	}
	defer tx.Rollback() //nolint:errcheck

	row := tx.QueryRowContext(ctx, `SELECT `+sqliteTemplateColumns+` FROM prompt_templates WHERE id = ?`, id.String())
	before, err := s.scanTemplate(row)
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
			return &beforeCopy, eris.Wrap(tx.Commit(), "template: commit no-op")
		}
		before.UpdatedAt = timeNowUTC()
		metadataJSON, err := json.Marshal(before.Metadata)
		if err != nil {
			return nil, eris.Wrap(err, "template: marshal metadata")
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE prompt_templates SET
				name=?, category=?, stage=?, prompt_text=?, description=?, version=?,
				is_active=?, version_label=?, version_notes=?, metadata=?, updated_at=?
			WHERE id=?`,
			before.Name, before.Category, before.Stage, before.PromptText, before.Description, before.Version,
			before.IsActive, before.VersionLabel, before.VersionNotes, metadataJSON, before.UpdatedAt, before.ID.String(),
		)
		if err != nil {
			return nil, eris.Wrapf(err, "template: head-only update %s", id)
		}
		return before, eris.Wrap(tx.Commit(), "template: commit head-only update")
	}

	before.Version++
	before.UpdatedAt = timeNowUTC()
	metadataJSON, err := json.Marshal(before.Metadata)
	if err != nil {
		return nil, eris.Wrap(err, "template: marshal metadata")
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE prompt_templates SET
			name=?, category=?, stage=?, prompt_text=?, description=?, version=?,
			is_active=?, version_label=?, version_notes=?, metadata=?, updated_at=?
		WHERE id=?`,
		before.Name, before.Category, before.Stage, before.PromptText, before.Description, before.Version,
		before.IsActive, before.VersionLabel, before.VersionNotes, metadataJSON, before.UpdatedAt, before.ID.String(),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "template: update %s", id)
	}

	prevID := beforeCopy.ID
	if err := sqliteInsertVersionHistory(ctx, tx, before, before.Version, changeType, changeSummary, changed, &prevID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "template: commit update")
	}
	return before, nil
}

func (s *SQLiteStore) GetTemplateVersion(ctx context.Context, templateID uuid.UUID, versionNumber int) (*model.TemplateVersionHistory, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, template_id, version_number, version_label, previous_version_id, change_type,
			change_summary, changed_fields, name, category, prompt_text, description, metadata,
			created_at, created_by
		FROM template_version_history WHERE template_id = ? AND version_number = ?`,
		templateID.String(), versionNumber)
	h, err := scanSQLiteVersionHistory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "template version: get %s v%d", templateID, versionNumber)
	}
	return h, nil
}

func (s *SQLiteStore) ListTemplateVersions(ctx context.Context, templateID uuid.UUID) ([]model.TemplateVersionHistory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, template_id, version_number, version_label, previous_version_id, change_type,
			change_summary, changed_fields, name, category, prompt_text, description, metadata,
			created_at, created_by
		FROM template_version_history WHERE template_id = ? ORDER BY version_number`, templateID.String())
	if err != nil {
		return nil, eris.Wrap(err, "template version: list")
	}
	defer rows.Close()

	var versions []model.TemplateVersionHistory
	for rows.Next() {
		h, err := scanSQLiteVersionHistory(rows)
		if err != nil {
			return nil, eris.Wrap(err, "template version: scan")
		}
		versions = append(versions, *h)
	}
	return versions, eris.Wrap(rows.Err(), "template version: list iterate")
}

func scanSQLiteVersionHistory(row sqliteRowScanner) (*model.TemplateVersionHistory, error) {
	var h model.TemplateVersionHistory
	var idStr, templateIDStr string
	var previousVersionID sql.NullString
	var changeType string
	var changedFieldsJSON, metadataJSON []byte

	err := row.Scan(
		&idStr, &templateIDStr, &h.VersionNumber, &h.VersionLabel, &previousVersionID, &changeType,
		&h.ChangeSummary, &changedFieldsJSON, &h.Name, &h.Category, &h.PromptText, &h.Description, &metadataJSON,
		&h.CreatedAt, &h.CreatedBy,
	)
	if err != nil {
		return nil, err
	}
	if h.ID, err = uuid.Parse(idStr); err != nil {
		return nil, eris.Wrap(err, "template version: parse id")
	}
	if h.TemplateID, err = uuid.Parse(templateIDStr); err != nil {
		return nil, eris.Wrap(err, "template version: parse template_id")
	}
	if previousVersionID.Valid {
		parsed, err := uuid.Parse(previousVersionID.String)
		if err != nil {
			return nil, eris.Wrap(err, "template version: parse previous_version_id")
		}
		h.PreviousVersionID = &parsed
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

func (s *SQLiteStore) GetTemplateDiff(ctx context.Context, versionAID, versionBID uuid.UUID) (*model.TemplateVersionDiff, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT version_a_id, version_b_id, diff_data, diff_summary
		FROM template_version_diffs WHERE (version_a_id = ? AND version_b_id = ?) OR (version_a_id = ? AND version_b_id = ?)`,
		versionAID.String(), versionBID.String(), versionBID.String(), versionAID.String())

	var d model.TemplateVersionDiff
	var aStr, bStr string
	var diffDataJSON, diffSummaryJSON []byte
	err := row.Scan(&aStr, &bStr, &diffDataJSON, &diffSummaryJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "template diff: get")
	}
	if d.VersionAID, err = uuid.Parse(aStr); err != nil {
		return nil, eris.Wrap(err, "template diff: parse version_a_id")
	}
	if d.VersionBID, err = uuid.Parse(bStr); err != nil {
		return nil, eris.Wrap(err, "template diff: parse version_b_id")
	}
	if err := json.Unmarshal(diffDataJSON, &d.DiffData); err != nil {
		return nil, eris.Wrap(err, "template diff: unmarshal diff_data")
	}
	if err := json.Unmarshal(diffSummaryJSON, &d.DiffSummary); err != nil {
		return nil, eris.Wrap(err, "template diff: unmarshal diff_summary")
	}
	return &d, nil
}

func (s *SQLiteStore) SaveTemplateDiff(ctx context.Context, d *model.TemplateVersionDiff) error {
	diffDataJSON, err := json.Marshal(d.DiffData)
	if err != nil {
		return eris.Wrap(err, "template diff: marshal diff_data")
	}
	diffSummaryJSON, err := json.Marshal(d.DiffSummary)
	if err != nil {
		return eris.Wrap(err, "template diff: marshal diff_summary")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO template_version_diffs (version_a_id, version_b_id, diff_data, diff_summary)
		VALUES (?, ?, ?, ?)`,
		d.VersionAID.String(), d.VersionBID.String(), diffDataJSON, diffSummaryJSON,
	)
	return eris.Wrap(err, "template diff: save")
}

// --- Dead letters ---

func (s *SQLiteStore) RecordDeadLetter(ctx context.Context, dl resilience.DeadLetter) error {
	if dl.ID == "" {
		dl.ID = uuid.New().String()
	}
	if dl.CreatedAt.IsZero() {
		dl.CreatedAt = timeNowUTC()
	}
	if dl.LastFailedAt.IsZero() {
		dl.LastFailedAt = timeNowUTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dead_letters (id, subject, phase, error, error_type, retry_count, max_retries, created_at, last_failed_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		dl.ID, dl.Subject, dl.Phase, dl.Error, dl.ErrorType, dl.RetryCount, dl.MaxRetries, dl.CreatedAt, dl.LastFailedAt,
	)
	return eris.Wrap(err, "dead letter: record")
}

func (s *SQLiteStore) ListDeadLetters(ctx context.Context, filter resilience.DeadLetterFilter) ([]resilience.DeadLetter, error) {
	query := `SELECT id, subject, phase, error, error_type, retry_count, max_retries, created_at, last_failed_at FROM dead_letters WHERE 1=1`
	var args []any

	if filter.ErrorType != "" {
		query += ` AND error_type = ?`
		args = append(args, filter.ErrorType)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
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
