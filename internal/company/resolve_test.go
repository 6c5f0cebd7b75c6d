package company

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirewell/profile-ingest/internal/model"
)

type fakeStore struct {
	byURL   map[string]*model.Company
	byName  map[string]*model.Company
	create  []*model.Company
	update  []*model.Company
	failURL string
}

func newFakeStore() *fakeStore {
	return &fakeStore{byURL: map[string]*model.Company{}, byName: map[string]*model.Company{}}
}

func (f *fakeStore) FindCompanyByLinkedinURL(ctx context.Context, linkedinURL string) (*model.Company, error) {
	return f.byURL[linkedinURL], nil
}

func (f *fakeStore) FindCompanyByNormalizedName(ctx context.Context, normalizedName, domain string) (*model.Company, error) {
	return f.byName[normalizedName], nil
}

func (f *fakeStore) CreateCompany(ctx context.Context, c *model.Company) error {
	if f.failURL != "" && c.LinkedinCompanyURL == f.failURL {
		return errors.New("insert failed")
	}
	f.create = append(f.create, c)
	if c.LinkedinCompanyURL != "" {
		f.byURL[c.LinkedinCompanyURL] = c
	} else {
		f.byName[model.NormalizedName(c.Name)] = c
	}
	return nil
}

func (f *fakeStore) UpdateCompany(ctx context.Context, c *model.Company) error {
	f.update = append(f.update, c)
	if c.LinkedinCompanyURL != "" {
		f.byURL[c.LinkedinCompanyURL] = c
	}
	return nil
}

func TestResolveCreatesOnFirstSighting(t *testing.T) {
	store := newFakeStore()
	r := NewResolver(store)

	c := model.NewCompany()
	c.Name = "Acme Inc"
	c.LinkedinCompanyURL = "https://linkedin.com/company/acme"

	resolved, outcome, err := r.Resolve(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)
	assert.Len(t, store.create, 1)
	assert.Equal(t, "Acme Inc", resolved.Name)
}

func TestResolveUnchangedWhenIdentical(t *testing.T) {
	store := newFakeStore()
	r := NewResolver(store)

	c := model.NewCompany()
	c.Name = "Acme Inc"
	c.LinkedinCompanyURL = "https://linkedin.com/company/acme"
	_, _, err := r.Resolve(context.Background(), c)
	require.NoError(t, err)

	again := model.NewCompany()
	again.Name = "Acme Inc"
	again.LinkedinCompanyURL = "https://linkedin.com/company/acme"
	_, outcome, err := r.Resolve(context.Background(), again)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, outcome)
	assert.Empty(t, store.update)
}

func TestResolveUpdatedWhenFieldDiffers(t *testing.T) {
	store := newFakeStore()
	r := NewResolver(store)

	c := model.NewCompany()
	c.Name = "Acme Inc"
	c.LinkedinCompanyURL = "https://linkedin.com/company/acme"
	_, _, err := r.Resolve(context.Background(), c)
	require.NoError(t, err)

	updated := model.NewCompany()
	updated.Name = "Acme Inc"
	updated.LinkedinCompanyURL = "https://linkedin.com/company/acme"
	updated.Tagline = "We build things"
	_, outcome, err := r.Resolve(context.Background(), updated)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)
	assert.Len(t, store.update, 1)
}

func TestResolveFallsBackToNormalizedName(t *testing.T) {
	store := newFakeStore()
	r := NewResolver(store)

	c := model.NewCompany()
	c.Name = "Acme Inc"
	_, outcome, err := r.Resolve(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)

	again := model.NewCompany()
	again.Name = "Acme Inc"
	_, outcome, err = r.Resolve(context.Background(), again)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, outcome)
}

func TestResolveBatchSkipsPerItemFailures(t *testing.T) {
	store := newFakeStore()
	r := NewResolver(store)

	c1 := model.NewCompany()
	c1.Name = "Acme Inc"
	c1.LinkedinCompanyURL = "https://linkedin.com/company/acme"

	c2 := model.NewCompany()
	c2.Name = "Broken Co"
	c2.LinkedinCompanyURL = "https://linkedin.com/company/broken"
	store.failURL = c2.LinkedinCompanyURL

	c3 := model.NewCompany()
	c3.Name = "Globex"
	c3.LinkedinCompanyURL = "https://linkedin.com/company/globex"

	results, err := r.ResolveBatch(context.Background(), []*model.Company{c1, c2, c3})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, OutcomeCreated, results[0].Outcome)
	assert.Equal(t, OutcomeSkipped, results[1].Outcome)
	assert.Error(t, results[1].Err)
	assert.Equal(t, OutcomeCreated, results[2].Outcome)
}
