package store

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
	"github.com/hirewell/profile-ingest/internal/resilience"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return &PostgresStore{pool: mock}, mock
}

func TestCreateProfile(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now()
	id := uuid.New()

	mock.ExpectQuery(`INSERT INTO profiles`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(id, now, now))

	p := model.NewProfile("https://linkedin.com/in/jane")
	p.FullName = "Jane Doe"
	err := s.CreateProfile(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, id, p.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProfile_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	id := uuid.New()

	mock.ExpectQuery(`SELECT .* FROM profiles WHERE id = \$1`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	p, err := s.GetProfile(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteProfile_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	id := uuid.New()

	mock.ExpectExec(`DELETE FROM profile_companies WHERE profile_id = \$1`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`DELETE FROM profiles WHERE id = \$1`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := s.DeleteProfile(context.Background(), id)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateScoringJob(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now()
	id := uuid.New()

	mock.ExpectQuery(`INSERT INTO scoring_jobs`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(id, now, now))

	j := model.NewScoringJob(uuid.New(), nil, "score this profile", "claude-opus-4-1-20250805")
	err := s.CreateScoringJob(context.Background(), j)
	require.NoError(t, err)
	assert.Equal(t, id, j.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateScoringJob(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE scoring_jobs SET`).WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	j := model.NewScoringJob(uuid.New(), nil, "score this", "claude-opus-4-1-20250805")
	j.ID = uuid.New()
	j.MarkProcessing(time.Now().UTC())
	err := s.UpdateScoringJob(context.Background(), j)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTemplate_InsertsInitialVersionHistory(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now()
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO prompt_templates`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(id, now, now))
	mock.ExpectExec(`INSERT INTO template_version_history`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	tpl := model.NewTemplate("stage-2 screening", "screening", "Evaluate {{.FullName}} for {{.Role}}")
	err := s.CreateTemplate(context.Background(), tpl)
	require.NoError(t, err)
	assert.Equal(t, id, tpl.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTemplateWithHistory_NoOpWhenUnchanged(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	id := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM prompt_templates WHERE id = \$1 FOR UPDATE`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "category", "stage", "prompt_text", "description", "version", "is_active",
			"is_current_version", "parent_template_id", "version_label", "version_notes", "metadata", "created_by",
			"created_at", "updated_at",
		}).AddRow(
			id, "stage-2 screening", "screening", "stage_2_screening", "Evaluate {{.FullName}}", "", 1, true,
			true, nil, "", "", nil, "",
			now, now,
		))
	mock.ExpectCommit()

	result, err := s.UpdateTemplateWithHistory(context.Background(), id, func(t *model.Template) (model.ChangeType, string, error) {
		return model.ChangeUpdate, "no-op edit", nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTemplateWithHistory_WritesNewVersionWhenChanged(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	id := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM prompt_templates WHERE id = \$1 FOR UPDATE`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "category", "stage", "prompt_text", "description", "version", "is_active",
			"is_current_version", "parent_template_id", "version_label", "version_notes", "metadata", "created_by",
			"created_at", "updated_at",
		}).AddRow(
			id, "stage-2 screening", "screening", "stage_2_screening", "Evaluate {{.FullName}}", "", 1, true,
			true, nil, "", "", nil, "",
			now, now,
		))
	mock.ExpectExec(`UPDATE prompt_templates SET`).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO template_version_history`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	result, err := s.UpdateTemplateWithHistory(context.Background(), id, func(t *model.Template) (model.ChangeType, string, error) {
		t.PromptText = "Evaluate {{.FullName}} for {{.Role}} rigorously"
		return model.ChangeUpdate, "tightened instructions", nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordDeadLetter(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO dead_letters`).WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.RecordDeadLetter(context.Background(), resilience.DeadLetter{
		Subject:   "https://linkedin.com/company/flaky",
		Phase:     "company_resolve",
		Error:     "upstream timeout",
		ErrorType: "transient",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
