package template

import (
	"context"

	"github.com/google/uuid"

	"github.com/hirewell/profile-ingest/internal/model"
)

// Compare returns the field-by-field diff between two recorded versions of
// a template (§4.6 "Diffs"). The store's diff cache is read-through and
// already checks both (A,B) and (B,A) orderings before recomputation; this
// method orients the computed result (added/removed sides, not the
// modification count) to match the A/B order the caller asked for, so
// Compare(x,y) and Compare(y,x) agree on every FieldDiff.Status that is
// unchanged/modified and swap add/remove status relative to each other.
func (s *Service) Compare(ctx context.Context, templateID uuid.UUID, versionA, versionB int) (*model.TemplateVersionDiff, error) {
	a, err := s.GetVersion(ctx, templateID, versionA)
	if err != nil {
		return nil, err
	}
	b, err := s.GetVersion(ctx, templateID, versionB)
	if err != nil {
		return nil, err
	}

	if cached, err := s.store.GetTemplateDiff(ctx, a.ID, b.ID); err != nil {
		return nil, err
	} else if cached != nil {
		return orient(cached, a.ID, b.ID), nil
	}

	fields, summary := diffFields(snapshotOf(*a), snapshotOf(*b))

	d := &model.TemplateVersionDiff{
		VersionAID:  a.ID,
		VersionBID:  b.ID,
		DiffData:    toModelFieldDiffs(fields),
		DiffSummary: model.DiffSummary(summary),
	}

	if err := s.store.SaveTemplateDiff(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func snapshotOf(h model.TemplateVersionHistory) fieldSnapshot {
	return fieldSnapshot{
		Name:        h.Name,
		Category:    h.Category,
		PromptText:  h.PromptText,
		Description: h.Description,
		Metadata:    h.Metadata,
	}
}

func toModelFieldDiffs(fields []fieldDiff) []model.FieldDiff {
	out := make([]model.FieldDiff, 0, len(fields))
	for _, f := range fields {
		out = append(out, model.FieldDiff{
			Field:       f.Field,
			Status:      model.FieldStatus(f.Status),
			ValueA:      f.ValueA,
			ValueB:      f.ValueB,
			UnifiedDiff: f.UnifiedDiff,
		})
	}
	return out
}

// orient returns d as-is if it was already keyed (wantA, wantB) in that
// order, or a copy with VersionAID/VersionBID swapped and each FieldDiff's
// added/removed status and value slots swapped otherwise — the cache row
// itself is symmetric storage, but a diff's "added" from A's perspective is
// "removed" from B's, so the orientation the caller asked for must be
// restored before returning.
func orient(d *model.TemplateVersionDiff, wantA, wantB uuid.UUID) *model.TemplateVersionDiff {
	if d.VersionAID == wantA && d.VersionBID == wantB {
		return d
	}

	flipped := &model.TemplateVersionDiff{
		VersionAID:  wantA,
		VersionBID:  wantB,
		DiffSummary: model.DiffSummary{Additions: d.DiffSummary.Deletions, Deletions: d.DiffSummary.Additions, Modifications: d.DiffSummary.Modifications},
	}
	flipped.DiffData = make([]model.FieldDiff, 0, len(d.DiffData))
	for _, f := range d.DiffData {
		flipped.DiffData = append(flipped.DiffData, model.FieldDiff{
			Field:       f.Field,
			Status:      flipStatus(f.Status),
			ValueA:      f.ValueB,
			ValueB:      f.ValueA,
			UnifiedDiff: f.UnifiedDiff,
		})
	}
	return flipped
}

func flipStatus(s model.FieldStatus) model.FieldStatus {
	switch s {
	case model.FieldAdded:
		return model.FieldRemoved
	case model.FieldRemoved:
		return model.FieldAdded
	default:
		return s
	}
}
