package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTemplateSeedsVersion1(t *testing.T) {
	tmpl := NewTemplate("CTO Screen", "CTO", "Evaluate this candidate:\n{{PROFILE}}")
	assert.Equal(t, 1, tmpl.Version)
	assert.True(t, tmpl.IsCurrentVersion)
	assert.True(t, tmpl.IsActive)
}

func TestTemplateCleanPreservesPromptInteriorWhitespace(t *testing.T) {
	tmpl := &Template{
		Name:       "  CTO   Screen ",
		PromptText: "  Evaluate this candidate:\n\n{{PROFILE}}  ",
	}
	tmpl.Clean()
	assert.Equal(t, "CTO Screen", tmpl.Name)
	assert.Equal(t, "Evaluate this candidate:\n\n{{PROFILE}}", tmpl.PromptText)
}
