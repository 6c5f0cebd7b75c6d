package template

import (
	"encoding/json"
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
)

// longTextFields are the content fields diffed line-by-line with a unified
// diff in addition to a plain before/after comparison.
var longTextFields = map[string]bool{
	"prompt_text": true,
	"description": true,
}

// fieldSnapshot is the subset of a version-history row's content used for
// comparison; both CreateTemplate and UpdateTemplateWithHistory already
// capture the same set of fields, so either a Template head or a
// TemplateVersionHistory row can be reduced to one.
type fieldSnapshot struct {
	Name        string
	Category    string
	PromptText  string
	Description string
	Metadata    map[string]any
}

// diffFields compares a and b field by field, producing one FieldDiff per
// entry of model.ContentFields plus a unified diff and tallied summary for
// the long-text fields.
func diffFields(a, b fieldSnapshot) ([]fieldDiff, diffSummary) {
	var out []fieldDiff
	var summary diffSummary

	compare := func(field, va, vb string) {
		status := statusFor(va, vb)
		d := fieldDiff{Field: field, Status: status, ValueA: va, ValueB: vb}
		if longTextFields[field] && status == statusModified {
			unified, adds, dels, mods := unifiedDiff(field, va, vb)
			d.UnifiedDiff = unified
			summary.Additions += adds
			summary.Deletions += dels
			summary.Modifications += mods
		}
		out = append(out, d)
	}

	compare("name", a.Name, b.Name)
	compare("category", a.Category, b.Category)
	compare("prompt_text", a.PromptText, b.PromptText)
	compare("description", a.Description, b.Description)

	ma, mb := metadataJSON(a.Metadata), metadataJSON(b.Metadata)
	out = append(out, fieldDiff{Field: "metadata", Status: statusFor(ma, mb), ValueA: ma, ValueB: mb})

	return out, summary
}

type fieldStatus string

const (
	statusUnchanged fieldStatus = "unchanged"
	statusAdded     fieldStatus = "added"
	statusRemoved   fieldStatus = "removed"
	statusModified  fieldStatus = "modified"
)

type fieldDiff struct {
	Field       string
	Status      fieldStatus
	ValueA      string
	ValueB      string
	UnifiedDiff string
}

type diffSummary struct {
	Additions     int
	Deletions     int
	Modifications int
}

// metadataJSON renders metadata as a stable string for comparison and
// display; nil and empty maps both render as "{}" so an absent map never
// registers as a spurious diff against a present-but-empty one.
func metadataJSON(m map[string]any) string {
	if len(m) == 0 {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func statusFor(a, b string) fieldStatus {
	switch {
	case a == b:
		return statusUnchanged
	case a == "":
		return statusAdded
	case b == "":
		return statusRemoved
	default:
		return statusModified
	}
}

// unifiedDiff renders a's -> b's line-oriented unified diff via go-difflib
// (the same SequenceMatcher-based algorithm Python's difflib uses), and
// tallies added/removed/changed line counts for the summary. A line present
// in both the add and remove side of the same opcode group counts as one
// modification rather than one addition plus one removal.
func unifiedDiff(field, a, b string) (string, int, int, int) {
	aLines := difflib.SplitLines(a)
	bLines := difflib.SplitLines(b)

	ud := difflib.UnifiedDiff{
		A:        aLines,
		B:        bLines,
		FromFile: fmt.Sprintf("%s (a)", field),
		ToFile:   fmt.Sprintf("%s (b)", field),
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		text = ""
	}

	matcher := difflib.NewMatcher(aLines, bLines)
	var adds, dels, mods int
	for _, op := range matcher.GetOpCodes() {
		switch op.Tag {
		case 'i':
			adds += op.J2 - op.J1
		case 'd':
			dels += op.I2 - op.I1
		case 'r':
			mods += max(op.I2-op.I1, op.J2-op.J1)
		}
	}
	return text, adds, dels, mods
}
