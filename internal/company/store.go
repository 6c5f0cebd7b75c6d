package company

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"

	"github.com/hirewell/profile-ingest/internal/model"
)

// Queryer is the narrow subset of *pgxpool.Pool the company store needs.
// It is satisfied by *pgxpool.Pool and by pgxmock.PgxPoolIface, which keeps
// PostgresStore unit-testable without a live database.
type Queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgx, matched on linkedin_company_url
// first and normalized name second per §4.4.
type PostgresStore struct {
	db Queryer
}

// NewPostgresStore builds a PostgresStore over db.
func NewPostgresStore(db Queryer) *PostgresStore {
	return &PostgresStore{db: db}
}

const companyColumns = `id, linkedin_company_url, name, tagline, domain, website_url, logo_url,
	description, specialties, industries, employee_count, employee_range_label,
	follower_count, year_founded, address_line1, address_line2, city, region, country,
	postal_code, email, phone, locations, funding, affiliated_companies, raw_payload,
	created_at, updated_at`

func (s *PostgresStore) scanRow(row pgx.Row) (*model.Company, error) {
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

// FindCompanyByLinkedinURL looks up a company by its canonical LinkedIn URL.
func (s *PostgresStore) FindCompanyByLinkedinURL(ctx context.Context, linkedinURL string) (*model.Company, error) {
	row := s.db.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE linkedin_company_url = $1`, linkedinURL)
	c, err := s.scanRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "company: find by linkedin url %s", linkedinURL)
	}
	return c, nil
}

// FindCompanyByNormalizedName looks up a company by a case/punctuation
// normalized name, optionally narrowed by domain when both records carry one.
func (s *PostgresStore) FindCompanyByNormalizedName(ctx context.Context, normalizedName, domain string) (*model.Company, error) {
	var row pgx.Row
	if domain != "" {
		row = s.db.QueryRow(ctx, `
			SELECT `+companyColumns+` FROM companies
			WHERE lower(regexp_replace(name, '[^a-zA-Z0-9]+', '', 'g')) = $1
			AND (domain = $2 OR domain = '')
			LIMIT 1`, normalizedName, domain)
	} else {
		row = s.db.QueryRow(ctx, `
			SELECT `+companyColumns+` FROM companies
			WHERE lower(regexp_replace(name, '[^a-zA-Z0-9]+', '', 'g')) = $1
			LIMIT 1`, normalizedName)
	}
	c, err := s.scanRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "company: find by normalized name %s", normalizedName)
	}
	return c, nil
}

// CreateCompany inserts a new company and sets its ID and timestamps.
func (s *PostgresStore) CreateCompany(ctx context.Context, c *model.Company) error {
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

	err = s.db.QueryRow(ctx, `
		INSERT INTO companies (
			linkedin_company_url, name, tagline, domain, website_url, logo_url,
			description, specialties, industries, employee_count, employee_range_label,
			follower_count, year_founded, address_line1, address_line2, city, region, country,
			postal_code, email, phone, locations, funding, affiliated_companies, raw_payload
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
			$18, $19, $20, $21, $22, $23, $24, $25
		) RETURNING id, created_at, updated_at`,
		c.LinkedinCompanyURL, c.Name, c.Tagline, c.Domain, c.WebsiteURL, c.LogoURL,
		c.Description, c.Specialties, c.Industries, c.EmployeeCount, c.EmployeeRangeLabel,
		c.FollowerCount, c.YearFounded, c.AddressLine1, c.AddressLine2, c.City, c.Region, c.Country,
		c.PostalCode, c.Email, c.Phone, locationsJSON, fundingJSON, c.AffiliatedCompanies, rawPayloadJSON,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return eris.Wrap(err, "company: create")
	}
	return nil
}

// UpdateCompany persists a merged company record.
func (s *PostgresStore) UpdateCompany(ctx context.Context, c *model.Company) error {
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

	_, err = s.db.Exec(ctx, `
		UPDATE companies SET
			linkedin_company_url=$2, name=$3, tagline=$4, domain=$5, website_url=$6, logo_url=$7,
			description=$8, specialties=$9, industries=$10, employee_count=$11, employee_range_label=$12,
			follower_count=$13, year_founded=$14, address_line1=$15, address_line2=$16, city=$17,
			region=$18, country=$19, postal_code=$20, email=$21, phone=$22, locations=$23,
			funding=$24, affiliated_companies=$25, raw_payload=$26, updated_at=now()
		WHERE id=$1`,
		c.ID, c.LinkedinCompanyURL, c.Name, c.Tagline, c.Domain, c.WebsiteURL, c.LogoURL,
		c.Description, c.Specialties, c.Industries, c.EmployeeCount, c.EmployeeRangeLabel,
		c.FollowerCount, c.YearFounded, c.AddressLine1, c.AddressLine2, c.City,
		c.Region, c.Country, c.PostalCode, c.Email, c.Phone, locationsJSON,
		fundingJSON, c.AffiliatedCompanies, rawPayloadJSON,
	)
	if err != nil {
		return eris.Wrapf(err, "company: update %s", c.ID)
	}
	return nil
}
