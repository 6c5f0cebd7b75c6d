package model

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SuggestedRole is the executive role a profile is being evaluated against.
type SuggestedRole string

const (
	RoleCTO  SuggestedRole = "CTO"
	RoleCIO  SuggestedRole = "CIO"
	RoleCISO SuggestedRole = "CISO"
)

// IsValid reports whether r is one of the recognized role codes.
func (r SuggestedRole) IsValid() bool {
	switch r {
	case RoleCTO, RoleCIO, RoleCISO:
		return true
	default:
		return false
	}
}

// Experience is one employment stint as scraped, prior to being linked to a
// canonical Company row. Dates are kept as free-form strings, exactly as
// emitted by the scraper; normalization into ISO dates is best-effort only.
type Experience struct {
	CompanyName       string `json:"company_name"`
	CompanyLinkedinURL string `json:"company_linkedin_url,omitempty"`
	PositionTitle     string `json:"position_title"`
	StartDate         string `json:"start_date,omitempty"`
	EndDate           string `json:"end_date,omitempty"`
	DurationText      string `json:"duration_text,omitempty"`
	IsCurrentRole     bool   `json:"is_current_role"`
	Description       string `json:"description,omitempty"`
}

// Education is a single education entry.
type Education struct {
	SchoolName  string `json:"school_name"`
	Degree      string `json:"degree,omitempty"`
	FieldOfStudy string `json:"field_of_study,omitempty"`
	StartDate   string `json:"start_date,omitempty"`
	EndDate     string `json:"end_date,omitempty"`
}

// CurrentCompanyLink carries the scraper's best-effort pointer from a
// profile to its current employer, used by the ingestion controller to seed
// the ordered list of company URLs to fetch.
type CurrentCompanyLink struct {
	Name        string `json:"name,omitempty"`
	LinkedinURL string `json:"linkedin_url,omitempty"`
}

// Profile is the canonical, normalized representation of a scraped
// professional profile.
type Profile struct {
	ID          uuid.UUID `json:"id"`
	LinkedinURL string    `json:"linkedin_url"`

	FullName              string        `json:"full_name"`
	Headline              string        `json:"headline,omitempty"`
	About                 string        `json:"about,omitempty"`
	CurrentPositionLabel  string        `json:"current_position_label,omitempty"`
	CurrentCompanyLabel   string        `json:"current_company_label,omitempty"`
	CurrentCompanyID      *uuid.UUID    `json:"current_company_id,omitempty"`
	Country               string        `json:"country,omitempty"`
	City                  string        `json:"city,omitempty"`
	ProfileImageURL       string        `json:"profile_image_url,omitempty"`
	SuggestedRole         SuggestedRole `json:"suggested_role,omitempty"`

	Experiences     []Experience `json:"experiences,omitempty"`
	Education       []Education  `json:"education,omitempty"`
	Certifications  []string     `json:"certifications,omitempty"`
	Honors          []string     `json:"honors,omitempty"`
	Languages       []string     `json:"languages,omitempty"`
	Skills          []string     `json:"skills,omitempty"`
	ContactURLs     []string     `json:"contact_urls,omitempty"`

	// CurrentCompany is the scraper's raw pointer to the current employer,
	// consulted only during ingestion to seed the company-URL worklist; it
	// is not itself persisted as a profile column.
	CurrentCompany *CurrentCompanyLink `json:"current_company,omitempty"`

	// Embedding is an optional fixed-dimension vector computed from a
	// canonical text projection of the profile. Absence never affects the
	// correctness of ingestion or scoring.
	Embedding []float32 `json:"embedding,omitempty"`

	RawPayload map[string]any `json:"raw_payload,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewProfile builds a Profile with a fresh id and the given canonical URL.
// It does not clean any fields; see Clean.
func NewProfile(canonicalURL string) *Profile {
	return &Profile{
		ID:          uuid.New(),
		LinkedinURL: canonicalURL,
	}
}

// Clean trims and whitespace-collapses (NFC-normalizing first) every
// free-text field, and dedupes Skills preserving first-seen order.
func (p *Profile) Clean() {
	p.FullName = CleanText(p.FullName)
	p.Headline = CleanText(p.Headline)
	p.About = CleanText(p.About)
	p.CurrentPositionLabel = CleanText(p.CurrentPositionLabel)
	p.CurrentCompanyLabel = CleanText(p.CurrentCompanyLabel)
	p.Country = CleanText(p.Country)
	p.City = CleanText(p.City)

	for i := range p.Experiences {
		e := &p.Experiences[i]
		e.CompanyName = CleanText(e.CompanyName)
		e.PositionTitle = CleanText(e.PositionTitle)
		e.Description = CleanText(e.Description)
	}
	for i := range p.Education {
		e := &p.Education[i]
		e.SchoolName = CleanText(e.SchoolName)
		e.Degree = CleanText(e.Degree)
		e.FieldOfStudy = CleanText(e.FieldOfStudy)
	}
	p.Skills = dedupePreserveOrder(p.Skills)
}

// CanonicalizeLinkedinURL lowercases the host, strips query/fragment, and
// removes a single trailing slash. It returns an error-indicating empty
// string for input that does not parse as an absolute http(s) URL.
func CanonicalizeLinkedinURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String(), true
}

func dedupePreserveOrder(items []string) []string {
	if len(items) == 0 {
		return items
	}
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
