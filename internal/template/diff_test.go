package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	assert.Equal(t, statusUnchanged, statusFor("a", "a"))
	assert.Equal(t, statusAdded, statusFor("", "a"))
	assert.Equal(t, statusRemoved, statusFor("a", ""))
	assert.Equal(t, statusModified, statusFor("a", "b"))
}

func TestMetadataJSON(t *testing.T) {
	assert.Equal(t, "{}", metadataJSON(nil))
	assert.Equal(t, "{}", metadataJSON(map[string]any{}))
	assert.Equal(t, `{"k":"v"}`, metadataJSON(map[string]any{"k": "v"}))
}

func TestDiffFieldsUnchanged(t *testing.T) {
	snap := fieldSnapshot{Name: "a", Category: "c", PromptText: "p", Description: "d", Metadata: map[string]any{"k": "v"}}
	fields, summary := diffFields(snap, snap)

	require.Len(t, fields, 5)
	for _, f := range fields {
		assert.Equal(t, statusUnchanged, f.Status, f.Field)
	}
	assert.Equal(t, diffSummary{}, summary)
}

func TestDiffFieldsModifiedLongText(t *testing.T) {
	a := fieldSnapshot{Name: "n", PromptText: "line one\nline two\n"}
	b := fieldSnapshot{Name: "n", PromptText: "line one\nline three\n"}

	fields, summary := diffFields(a, b)

	var promptDiff *fieldDiff
	for i := range fields {
		if fields[i].Field == "prompt_text" {
			promptDiff = &fields[i]
		}
	}
	require.NotNil(t, promptDiff)
	assert.Equal(t, statusModified, promptDiff.Status)
	assert.NotEmpty(t, promptDiff.UnifiedDiff)
	assert.Equal(t, 1, summary.Modifications)
	assert.Zero(t, summary.Additions)
	assert.Zero(t, summary.Deletions)
}

func TestDiffFieldsMetadataChange(t *testing.T) {
	a := fieldSnapshot{Metadata: map[string]any{"k": "v"}}
	b := fieldSnapshot{Metadata: map[string]any{"k": "w"}}

	fields, _ := diffFields(a, b)

	var metaDiff *fieldDiff
	for i := range fields {
		if fields[i].Field == "metadata" {
			metaDiff = &fields[i]
		}
	}
	require.NotNil(t, metaDiff)
	assert.Equal(t, statusModified, metaDiff.Status)
	assert.Empty(t, metaDiff.UnifiedDiff, "metadata is not a long-text field")
}
