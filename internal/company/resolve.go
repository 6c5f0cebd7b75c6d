// Package company deduplicates and resolves canonical company records by
// stable identity: LinkedIn company URL first, normalized name second.
package company

import (
	"context"

	"go.uber.org/zap"

	"github.com/hirewell/profile-ingest/internal/model"
)

// Outcome is the resolution outcome produced per input by Resolve/Batch.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeSkipped   Outcome = "skipped"
)

// Store is the narrow persistence interface the resolver depends on.
type Store interface {
	FindCompanyByLinkedinURL(ctx context.Context, linkedinURL string) (*model.Company, error)
	FindCompanyByNormalizedName(ctx context.Context, normalizedName, domain string) (*model.Company, error)
	CreateCompany(ctx context.Context, c *model.Company) error
	UpdateCompany(ctx context.Context, c *model.Company) error
}

// Result pairs a resolved company with its per-input outcome.
type Result struct {
	Company *model.Company
	Outcome Outcome
	Err     error
}

// Resolver implements the resolve-or-create algorithm of spec §4.4.
type Resolver struct {
	store Store
}

// NewResolver builds a Resolver over store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve applies the resolve-or-create algorithm to one canonical company
// input. It never returns a nil *model.Company on success.
func (r *Resolver) Resolve(ctx context.Context, input *model.Company) (*model.Company, Outcome, error) {
	input.Clean()

	var existing *model.Company
	var err error

	if input.LinkedinCompanyURL != "" {
		existing, err = r.store.FindCompanyByLinkedinURL(ctx, input.LinkedinCompanyURL)
	} else {
		existing, err = r.store.FindCompanyByNormalizedName(ctx, model.NormalizedName(input.Name), input.Domain)
	}
	if err != nil {
		return nil, "", err
	}

	if existing == nil {
		input.CreatedAt = timeNowUTC()
		input.UpdatedAt = input.CreatedAt
		if err := r.store.CreateCompany(ctx, input); err != nil {
			return nil, "", err
		}
		return input, OutcomeCreated, nil
	}

	merged, changed := mergeFields(*existing, *input)
	if !changed {
		return existing, OutcomeUnchanged, nil
	}

	merged.ID = existing.ID
	merged.UpdatedAt = timeNowUTC()
	if err := r.store.UpdateCompany(ctx, &merged); err != nil {
		return nil, "", err
	}
	return &merged, OutcomeUpdated, nil
}

// ResolveBatch processes inputs in order. Every error from Resolve, store
// errors included, is logged and recorded as a "skipped" Result carrying the
// error, and processing continues with the next input: the batch never stops
// early, and the returned error is always nil.
func (r *Resolver) ResolveBatch(ctx context.Context, inputs []*model.Company) ([]Result, error) {
	results := make([]Result, 0, len(inputs))
	for _, in := range inputs {
		c, outcome, err := r.Resolve(ctx, in)
		if err != nil {
			zap.L().Warn("company resolve failed, skipping", zap.String("linkedin_company_url", in.LinkedinCompanyURL), zap.Error(err))
			results = append(results, Result{Outcome: OutcomeSkipped, Err: err})
			continue
		}
		results = append(results, Result{Company: c, Outcome: outcome})
	}
	return results, nil
}
