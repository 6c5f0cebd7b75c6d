package model

import (
	"time"

	"github.com/google/uuid"
)

// ChangeType classifies a template_version_history row.
type ChangeType string

const (
	ChangeCreate   ChangeType = "create"
	ChangeUpdate   ChangeType = "update"
	ChangeRestore  ChangeType = "restore"
	ChangeBranch   ChangeType = "branch"
	ChangeActivate ChangeType = "activate"
)

// ContentFields lists the template fields whose change triggers a new
// version-history row, in the fixed order used for create-row seeding.
// Template diffs cover the same fields in their own order (name, category,
// prompt_text, description, metadata).
var ContentFields = []string{"name", "prompt_text", "description", "category", "metadata"}

// Template is the mutable "head" row referenced by scoring jobs.
type Template struct {
	ID uuid.UUID `json:"id"`

	Name       string `json:"name"`
	Category   string `json:"category"`
	Stage      string `json:"stage,omitempty"`
	PromptText string `json:"prompt_text"`
	Description string `json:"description,omitempty"`

	Version           int        `json:"version"`
	IsActive          bool       `json:"is_active"`
	IsCurrentVersion  bool       `json:"is_current_version"`
	ParentTemplateID  *uuid.UUID `json:"parent_template_id,omitempty"`
	VersionLabel      string     `json:"version_label,omitempty"`
	VersionNotes      string     `json:"version_notes,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`

	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTemplate builds the initial head row for a new template.
func NewTemplate(name, category, promptText string) *Template {
	now := time.Now().UTC()
	return &Template{
		ID:               uuid.New(),
		Name:             name,
		Category:         category,
		PromptText:       promptText,
		Version:          1,
		IsActive:         true,
		IsCurrentVersion: true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Clean trims/collapses free-text content fields.
func (t *Template) Clean() {
	t.Name = CleanText(t.Name)
	t.Category = CleanText(t.Category)
	t.Description = CleanText(t.Description)
	t.PromptText = trimOnly(t.PromptText)
}

// trimOnly trims leading/trailing whitespace without collapsing interior
// whitespace, since prompt bodies preserve their internal formatting.
func trimOnly(s string) string {
	for len(s) > 0 && isSpace(s[0]) {
		s = s[1:]
	}
	for len(s) > 0 && isSpace(s[len(s)-1]) {
		s = s[:len(s)-1]
	}
	return s
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// TemplateVersionHistory is one immutable historical snapshot of a
// template's content-affecting fields.
type TemplateVersionHistory struct {
	ID uuid.UUID `json:"id"`

	TemplateID        uuid.UUID  `json:"template_id"`
	VersionNumber     int        `json:"version_number"`
	VersionLabel      string     `json:"version_label,omitempty"`
	PreviousVersionID *uuid.UUID `json:"previous_version_id,omitempty"`
	ChangeType        ChangeType `json:"change_type"`
	ChangeSummary     string     `json:"change_summary,omitempty"`
	ChangedFields     []string   `json:"changed_fields"`

	// Snapshot content, captured so that Restore can reconstruct a prior
	// head without re-deriving it from a diff chain.
	Name        string         `json:"name"`
	Category    string         `json:"category"`
	PromptText  string         `json:"prompt_text"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by,omitempty"`
}

// TemplateVersionDiff is a cached pairwise diff between two version-history
// rows, keyed by (VersionAID, VersionBID) with A before B as requested (the
// cache itself is consulted in both orderings before recomputation).
type TemplateVersionDiff struct {
	VersionAID uuid.UUID `json:"version_a_id"`
	VersionBID uuid.UUID `json:"version_b_id"`

	DiffData    []FieldDiff    `json:"diff_data"`
	DiffSummary DiffSummary    `json:"diff_summary"`
}

// FieldStatus classifies one field's comparison outcome in a diff.
type FieldStatus string

const (
	FieldUnchanged FieldStatus = "unchanged"
	FieldAdded     FieldStatus = "added"
	FieldRemoved   FieldStatus = "removed"
	FieldModified  FieldStatus = "modified"
)

// FieldDiff is one field's comparison result between two versions.
type FieldDiff struct {
	Field      string      `json:"field"`
	Status     FieldStatus `json:"status"`
	ValueA     any         `json:"value_a,omitempty"`
	ValueB     any         `json:"value_b,omitempty"`
	UnifiedDiff string     `json:"unified_diff,omitempty"`
}

// DiffSummary tallies additions/deletions/modifications across line-oriented
// diffs of long text fields.
type DiffSummary struct {
	Additions     int `json:"additions"`
	Deletions     int `json:"deletions"`
	Modifications int `json:"modifications"`
}
