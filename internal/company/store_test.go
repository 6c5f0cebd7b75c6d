package company

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirewell/profile-ingest/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return NewPostgresStore(mock), mock
}

func TestFindCompanyByLinkedinURL_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .* FROM companies WHERE linkedin_company_url = \$1`).
		WithArgs("https://linkedin.com/company/ghost").
		WillReturnError(pgx.ErrNoRows)

	c, err := s.FindCompanyByLinkedinURL(context.Background(), "https://linkedin.com/company/ghost")
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindCompanyByLinkedinURL_Found(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()
	id := uuid.New()

	rows := pgxmock.NewRows([]string{
		"id", "linkedin_company_url", "name", "tagline", "domain", "website_url", "logo_url",
		"description", "specialties", "industries", "employee_count", "employee_range_label",
		"follower_count", "year_founded", "address_line1", "address_line2", "city", "region", "country",
		"postal_code", "email", "phone", "locations", "funding", "affiliated_companies", "raw_payload",
		"created_at", "updated_at",
	}).AddRow(
		id, "https://linkedin.com/company/acme", "Acme Inc", "", "acme.com", "", "",
		"", "", []string{}, nil, "",
		nil, nil, "", "", "", "", "",
		"", "", "", nil, nil, []string{}, nil,
		now, now,
	)

	mock.ExpectQuery(`SELECT .* FROM companies WHERE linkedin_company_url = \$1`).
		WithArgs("https://linkedin.com/company/acme").
		WillReturnRows(rows)

	c, err := s.FindCompanyByLinkedinURL(context.Background(), "https://linkedin.com/company/acme")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "Acme Inc", c.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCompany(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()
	id := uuid.New()

	mock.ExpectQuery(`INSERT INTO companies`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(id, now, now))

	c := model.NewCompany()
	c.Name = "Acme Inc"
	err := s.CreateCompany(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, id, c.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateCompany(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE companies SET`).WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	c := model.NewCompany()
	c.ID = uuid.New()
	c.Name = "Acme Inc"
	err := s.UpdateCompany(context.Background(), c)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
