package llm

import (
	"fmt"
	"strings"

	"github.com/hirewell/profile-ingest/internal/model"
)

const profilePlaceholder = "{{PROFILE}}"

// BuildPrompt expands a template body against a profile. If the template's
// prompt text contains the literal placeholder "{{PROFILE}}" the
// serialized profile replaces it in place; otherwise the serialization is
// appended after a blank line. The result is computed once, at job
// creation time, and stored verbatim as ScoringJob.Prompt — never
// recomputed, so later template edits cannot retroactively change an
// already-created job's prompt.
func BuildPrompt(promptText string, profile *model.Profile, extraFields []string) string {
	serialized := SerializeProfile(profile, extraFields)
	if strings.Contains(promptText, profilePlaceholder) {
		return strings.Replace(promptText, profilePlaceholder, serialized, 1)
	}
	return promptText + "\n\n" + serialized
}

// SerializeProfile produces a deterministic, byte-identical-across-reads
// textual projection of a profile: identifying fields, then the skills,
// experience and education lists, then certifications, honors and
// languages, then any fields named in extraFields that
// are present in the profile's raw scraper payload (in the order named,
// not sorted — order is the template author's choice and extraFields
// itself is already deterministic).
func SerializeProfile(p *model.Profile, extraFields []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Name: %s\n", p.FullName)
	if p.Headline != "" {
		fmt.Fprintf(&b, "Headline: %s\n", p.Headline)
	}
	if p.CurrentPositionLabel != "" || p.CurrentCompanyLabel != "" {
		fmt.Fprintf(&b, "Current role: %s at %s\n", p.CurrentPositionLabel, p.CurrentCompanyLabel)
	}
	if p.City != "" || p.Country != "" {
		fmt.Fprintf(&b, "Location: %s, %s\n", p.City, p.Country)
	}
	if p.About != "" {
		fmt.Fprintf(&b, "About: %s\n", p.About)
	}
	if len(p.Skills) > 0 {
		fmt.Fprintf(&b, "Skills: %s\n", strings.Join(p.Skills, ", "))
	}

	if len(p.Experiences) > 0 {
		b.WriteString("Experience:\n")
		for _, e := range p.Experiences {
			fmt.Fprintf(&b, "- %s at %s (%s - %s)", e.PositionTitle, e.CompanyName, e.StartDate, e.EndDate)
			if e.IsCurrentRole {
				b.WriteString(" [current]")
			}
			b.WriteString("\n")
			if e.Description != "" {
				fmt.Fprintf(&b, "  %s\n", e.Description)
			}
		}
	}

	if len(p.Education) > 0 {
		b.WriteString("Education:\n")
		for _, e := range p.Education {
			fmt.Fprintf(&b, "- %s, %s, %s (%s - %s)\n", e.Degree, e.FieldOfStudy, e.SchoolName, e.StartDate, e.EndDate)
		}
	}

	if len(p.Certifications) > 0 {
		fmt.Fprintf(&b, "Certifications: %s\n", strings.Join(p.Certifications, ", "))
	}
	if len(p.Honors) > 0 {
		fmt.Fprintf(&b, "Honors: %s\n", strings.Join(p.Honors, ", "))
	}
	if len(p.Languages) > 0 {
		fmt.Fprintf(&b, "Languages: %s\n", strings.Join(p.Languages, ", "))
	}

	for _, field := range extraFields {
		v, ok := p.RawPayload[field]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%s: %v\n", field, v)
	}

	return b.String()
}

// TemplateExtraFields reads the "relevant_fields" key from a template's
// metadata, if present, as an ordered list of raw-payload field names.
func TemplateExtraFields(metadata map[string]any) []string {
	raw, ok := metadata["relevant_fields"]
	if !ok {
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
