package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hirewell/profile-ingest/internal/model"
	"github.com/hirewell/profile-ingest/internal/resilience"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLiteStore_ProfileRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	p := model.NewProfile("https://linkedin.com/in/jane")
	p.FullName = "Jane Doe"
	p.Skills = []string{"Go", "Kubernetes"}
	p.Embedding = []float32{0.1, 0.2, 0.3}
	require.NoError(t, s.CreateProfile(ctx, p))

	got, err := s.GetProfileByLinkedinURL(ctx, "https://linkedin.com/in/jane")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "Jane Doe", got.FullName)
	require.Equal(t, []string{"Go", "Kubernetes"}, got.Skills)
	require.Equal(t, []float32{0.1, 0.2, 0.3}, got.Embedding)
}

func TestSQLiteStore_CompanyResolveOrCreateFallsBackToNormalizedName(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	c := model.NewCompany()
	c.Name = "Acme Inc"
	c.Domain = "acme.com"
	require.NoError(t, s.CreateCompany(ctx, c))

	found, err := s.FindCompanyByNormalizedName(ctx, "acmeinc", "acme.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, c.ID, found.ID)
}

func TestSQLiteStore_ScoringJobLifecycle(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	profile := model.NewProfile("https://linkedin.com/in/exec")
	profile.FullName = "Exec Person"
	require.NoError(t, s.CreateProfile(ctx, profile))

	job := model.NewScoringJob(profile.ID, nil, "score this exec for CTO fit", "claude-opus-4-1-20250805")
	require.NoError(t, s.CreateScoringJob(ctx, job))

	job.MarkCompleted(job.CreatedAt, []byte(`{"raw":true}`), []byte(`{"score":82}`))
	require.NoError(t, s.UpdateScoringJob(ctx, job))

	got, err := s.GetScoringJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobCompleted, got.Status)
	require.JSONEq(t, `{"score":82}`, string(got.ParsedScore))
}

func TestSQLiteStore_UpdateTemplateWithHistory_CapturesVersionLineage(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	tpl := model.NewTemplate("screening v1", "screening", "Evaluate {{.FullName}}")
	require.NoError(t, s.CreateTemplate(ctx, tpl))

	updated, err := s.UpdateTemplateWithHistory(ctx, tpl.ID, func(t *model.Template) (model.ChangeType, string, error) {
		t.PromptText = "Evaluate {{.FullName}} for {{.Role}} rigor"
		return model.ChangeUpdate, "added rigor clause", nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, updated.Version)

	versions, err := s.ListTemplateVersions(ctx, tpl.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	require.Equal(t, model.ChangeCreate, versions[0].ChangeType)
	require.Equal(t, model.ChangeUpdate, versions[1].ChangeType)
	require.Contains(t, versions[1].ChangedFields, "prompt_text")
}

func TestSQLiteStore_DeadLetterRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	err := s.RecordDeadLetter(ctx, resilience.DeadLetter{
		Subject:   "https://linkedin.com/company/flaky",
		Phase:     "company_resolve",
		Error:     "upstream timeout",
		ErrorType: "transient",
	})
	require.NoError(t, err)

	entries, err := s.ListDeadLetters(ctx, resilience.DeadLetterFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "transient", entries[0].ErrorType)
}
