package scraper

import (
	"fmt"

	"github.com/hirewell/profile-ingest/internal/model"
)

// IncompleteDataError indicates a required field was missing or malformed
// in the scraper's payload. It is a domain-level condition, not a
// transport error.
type IncompleteDataError struct {
	FieldPath string
}

func (e *IncompleteDataError) Error() string {
	return fmt.Sprintf("scraper: incomplete data: missing or invalid field %q", e.FieldPath)
}

var currentRoleEndDateMarkers = map[string]bool{
	"":         true,
	"present":  true,
	"current":  true,
}

// AdaptProfile translates the scraper's variable-shape JSON payload into a
// canonical *model.Profile. The only required field is full_name; every
// other field is best-effort. Unknown top-level keys are preserved into
// RawPayload.
func AdaptProfile(canonicalURL string, raw map[string]any) (*model.Profile, error) {
	fullName, _ := raw["full_name"].(string)
	if fullName == "" {
		return nil, &IncompleteDataError{FieldPath: "full_name"}
	}

	p := model.NewProfile(canonicalURL)
	p.FullName = fullName
	p.Headline, _ = raw["headline"].(string)
	p.About, _ = raw["about"].(string)
	p.CurrentPositionLabel, _ = raw["current_position"].(string)
	p.Country, _ = raw["country"].(string)
	p.City, _ = raw["city"].(string)
	p.ProfileImageURL, _ = raw["profile_image_url"].(string)

	if cc, ok := raw["current_company"].(map[string]any); ok {
		link := &model.CurrentCompanyLink{}
		link.Name, _ = cc["name"].(string)
		link.LinkedinURL, _ = cc["linkedin_url"].(string)
		p.CurrentCompany = link
		p.CurrentCompanyLabel = link.Name
	}

	p.Experiences = adaptExperiences(raw["experiences"])
	p.Education = adaptEducation(raw["education"])
	p.Certifications = stringSlice(raw["certifications"])
	p.Honors = stringSlice(raw["honors"])
	p.Languages = stringSlice(raw["languages"])
	p.Skills = stringSlice(raw["skills"])
	p.ContactURLs = stringSlice(raw["contact_urls"])

	p.RawPayload = raw
	p.Clean()
	return p, nil
}

func adaptExperiences(v any) []model.Experience {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]model.Experience, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		exp := model.Experience{}
		exp.CompanyName, _ = m["company_name"].(string)
		exp.CompanyLinkedinURL, _ = m["company_linkedin_url"].(string)
		exp.PositionTitle, _ = m["position_title"].(string)
		exp.StartDate = normalizeYearString(m["start_date"])
		exp.EndDate = normalizeYearString(m["end_date"])
		exp.DurationText, _ = m["duration_text"].(string)
		exp.Description, _ = m["description"].(string)

		if explicit, ok := m["is_current_role"].(bool); ok {
			exp.IsCurrentRole = explicit
		} else {
			// Resolved open question (spec.md §9): infer from absent/
			// present-like end date when the provider omits the field.
			exp.IsCurrentRole = currentRoleEndDateMarkers[lowerOrEmpty(exp.EndDate)]
		}
		out = append(out, exp)
	}
	return out
}

func adaptEducation(v any) []model.Education {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]model.Education, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, model.Education{
			SchoolName:   stringOf(m["school_name"]),
			Degree:       stringOf(m["degree"]),
			FieldOfStudy: stringOf(m["field_of_study"]),
			StartDate:    normalizeYearString(m["start_date"]),
			EndDate:      normalizeYearString(m["end_date"]),
		})
	}
	return out
}

// normalizeYearString passes through well-formed date strings and
// normalizes malformed year-like markers (e.g. "Present") to empty, per
// §4.2.
func normalizeYearString(v any) string {
	s := stringOf(v)
	switch lowerOrEmpty(s) {
	case "present", "current", "n/a", "unknown":
		return ""
	default:
		return s
	}
}

func lowerOrEmpty(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}

func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// AdaptCompany translates the scraper's company payload into a canonical
// *model.Company. The only required field is name.
func AdaptCompany(raw map[string]any) (*model.Company, error) {
	name := stringOf(raw["name"])
	if name == "" {
		return nil, &IncompleteDataError{FieldPath: "name"}
	}

	c := model.NewCompany()
	c.Name = name
	c.LinkedinCompanyURL = stringOf(raw["linkedin_company_url"])
	c.Tagline = stringOf(raw["tagline"])
	c.WebsiteURL = stringOf(raw["website_url"])
	c.LogoURL = stringOf(raw["logo_url"])
	c.Description = stringOf(raw["description"])
	c.Specialties = stringOf(raw["specialties"])
	c.Industries = stringSlice(raw["industries"])
	c.AffiliatedCompanies = stringSlice(raw["affiliated_companies"])
	c.EmployeeRangeLabel = stringOf(raw["employee_range_label"])
	c.AddressLine1 = stringOf(raw["address_line1"])
	c.AddressLine2 = stringOf(raw["address_line2"])
	c.City = stringOf(raw["city"])
	c.Region = stringOf(raw["region"])
	c.Country = stringOf(raw["country"])
	c.PostalCode = stringOf(raw["postal_code"])
	c.Email = stringOf(raw["email"])
	c.Phone = stringOf(raw["phone"])

	if n, ok := model.CoerceIntField(raw["employee_count"]); ok {
		c.EmployeeCount = &n
	}
	if n, ok := model.CoerceIntField(raw["follower_count"]); ok {
		c.FollowerCount = &n
	}
	if n, ok := model.CoerceIntField(raw["year_founded"]); ok && model.ValidYearFounded(n) {
		c.YearFounded = &n
	}

	if funding, ok := raw["funding"].(map[string]any); ok {
		c.Funding = &model.CompanyFunding{
			Stage:       stringOf(funding["stage"]),
			TotalRaised: stringOf(funding["total_raised"]),
			LastRoundAt: stringOf(funding["last_round_at"]),
		}
	}

	if locs, ok := raw["locations"].([]any); ok {
		for _, l := range locs {
			lm, ok := l.(map[string]any)
			if !ok {
				continue
			}
			isHQ, _ := lm["is_hq"].(bool)
			c.Locations = append(c.Locations, model.CompanyLocation{
				AddressLine1: stringOf(lm["address_line1"]),
				AddressLine2: stringOf(lm["address_line2"]),
				City:         stringOf(lm["city"]),
				Region:       stringOf(lm["region"]),
				Country:      stringOf(lm["country"]),
				PostalCode:   stringOf(lm["postal_code"]),
				IsHQ:         isHQ,
			})
		}
	}

	c.RawPayload = raw
	c.Clean()
	return c, nil
}
