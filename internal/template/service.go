// Package template implements the template CRUD and versioning service of
// spec §4.6: automatic version capture on content edits, restore, branch,
// activate, and cached pairwise diffing. Grounded on the shape of
// internal/company's resolver service (a thin struct wrapping a narrow
// store interface) and on internal/store's own transactional
// read-modify-write discipline for the version-capture transaction itself.
package template

import (
	"context"
	"strconv"

	"github.com/google/uuid"

	"github.com/hirewell/profile-ingest/internal/apierr"
	"github.com/hirewell/profile-ingest/internal/model"
	"github.com/hirewell/profile-ingest/internal/store"
)

// Service implements the template operations of spec §4.6 over a
// store.Store. It holds no state of its own; every invariant (atomic
// version capture, no-op suppression, bidirectional diff cache) is enforced
// by the store's UpdateTemplateWithHistory/GetTemplateDiff implementations,
// which this package drives with the right callbacks.
type Service struct {
	store store.Store
}

// NewService builds a Service over st.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// CreateInput is the validated input to Create.
type CreateInput struct {
	Name       string
	Category   string
	Stage      string
	PromptText string
	Description string
	Metadata   map[string]any
	CreatedBy  string
}

// Create persists a new template head. CreateTemplate itself records the
// initial "create" version-history row (§4.6 "Initial version").
func (s *Service) Create(ctx context.Context, input CreateInput) (*model.Template, error) {
	t := model.NewTemplate(input.Name, input.Category, input.PromptText)
	t.Stage = input.Stage
	t.Description = input.Description
	t.Metadata = input.Metadata
	t.CreatedBy = input.CreatedBy
	t.Clean()

	if err := s.store.CreateTemplate(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Get fetches a template head by id, translating a missing row into
// apierr.TemplateNotFound.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Template, error) {
	t, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apierr.New(apierr.TemplateNotFound, "template not found", nil, nil)
	}
	return t, nil
}

// List passes filter through to the store.
func (s *Service) List(ctx context.Context, filter store.TemplateFilter) ([]model.Template, error) {
	return s.store.ListTemplates(ctx, filter)
}

// Delete removes a template head. Its version history and diff cache rows
// are left in place (they key off template_id / version ids, not a foreign
// key that cascades on this path) since nothing in §4.6 calls for deleting
// history alongside the head.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.store.DeleteTemplate(ctx, id)
}

// UpdateInput carries the subset of fields the caller wants changed. A nil
// pointer means "leave as is"; IsActive is the only field that can flip a
// head-only, non-versioned property.
type UpdateInput struct {
	Name        *string
	Category    *string
	Stage       *string
	PromptText  *string
	Description *string
	Metadata    map[string]any
	IsActive    *bool
	VersionLabel *string
	VersionNotes *string
}

// Update applies input to the template's head, atomically recording a new
// version-history row if any content-affecting field changed (§4.6
// "Automatic version capture"). When IsActive flips false->true in the same
// update, that row's change_type is ChangeActivate rather than ChangeUpdate.
// A false->true flip of IsActive with no content change updates the head
// row only (headOnlyChanged in the store); no history row is recorded for it.
func (s *Service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*model.Template, error) {
	// UpdateTemplateWithHistory locks the row with a plain SELECT ... FOR
	// UPDATE and surfaces a missing row as a generic wrapped scan error, not
	// a nil result — existence is checked up front instead, store-agnostically.
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateTemplateWithHistory(ctx, id, func(t *model.Template) (model.ChangeType, string, error) {
		wasActive := t.IsActive

		if input.Name != nil {
			t.Name = *input.Name
		}
		if input.Category != nil {
			t.Category = *input.Category
		}
		if input.Stage != nil {
			t.Stage = *input.Stage
		}
		if input.PromptText != nil {
			t.PromptText = *input.PromptText
		}
		if input.Description != nil {
			t.Description = *input.Description
		}
		if input.Metadata != nil {
			t.Metadata = input.Metadata
		}
		if input.VersionLabel != nil {
			t.VersionLabel = *input.VersionLabel
		}
		if input.VersionNotes != nil {
			t.VersionNotes = *input.VersionNotes
		}
		if input.IsActive != nil {
			t.IsActive = *input.IsActive
		}
		t.Clean()

		changeType := model.ChangeUpdate
		if !wasActive && t.IsActive {
			changeType = model.ChangeActivate
		}
		return changeType, "", nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Activate sets is_active to true. A template already active is a no-op
// (the store suppresses both the version bump and the head-only write when
// nothing actually changes).
func (s *Service) Activate(ctx context.Context, id uuid.UUID) (*model.Template, error) {
	trueVal := true
	return s.Update(ctx, id, UpdateInput{IsActive: &trueVal})
}

// Restore sets the template head's content fields equal to version
// versionNumber's snapshot and records a new "restore" history row (§4.6
// "Restore"). It does not mutate the restored version's own history row.
func (s *Service) Restore(ctx context.Context, id uuid.UUID, versionNumber int) (*model.Template, error) {
	snapshot, err := s.store.GetTemplateVersion(ctx, id, versionNumber)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return nil, apierr.New(apierr.TemplateNotFound, "template version not found", nil, nil)
	}

	updated, err := s.store.UpdateTemplateWithHistory(ctx, id, func(t *model.Template) (model.ChangeType, string, error) {
		t.Name = snapshot.Name
		t.Category = snapshot.Category
		t.PromptText = snapshot.PromptText
		t.Description = snapshot.Description
		t.Metadata = snapshot.Metadata
		t.Clean()
		return model.ChangeRestore, "restored from version " + strconv.Itoa(versionNumber), nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Branch creates a new template whose ParentTemplateID is id and whose
// initial content equals id's current head (§4.6 "Branch"). CreateTemplate
// records the new template's own "create" history row at version 1.
func (s *Service) Branch(ctx context.Context, id uuid.UUID) (*model.Template, error) {
	head, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	branch := model.NewTemplate(head.Name, head.Category, head.PromptText)
	branch.Stage = head.Stage
	branch.Description = head.Description
	branch.Metadata = head.Metadata
	branch.ParentTemplateID = &head.ID
	branch.CreatedBy = head.CreatedBy
	branch.Clean()

	if err := s.store.CreateTemplate(ctx, branch); err != nil {
		return nil, err
	}
	return branch, nil
}

// ListVersions returns every recorded version-history row for a template.
func (s *Service) ListVersions(ctx context.Context, id uuid.UUID) ([]model.TemplateVersionHistory, error) {
	return s.store.ListTemplateVersions(ctx, id)
}

// GetVersion fetches one version-history snapshot.
func (s *Service) GetVersion(ctx context.Context, id uuid.UUID, versionNumber int) (*model.TemplateVersionHistory, error) {
	v, err := s.store.GetTemplateVersion(ctx, id, versionNumber)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, apierr.New(apierr.TemplateNotFound, "template version not found", nil, nil)
	}
	return v, nil
}
