package model

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SizeCategory buckets a company by employee count.
type SizeCategory string

const (
	SizeStartup    SizeCategory = "Startup"
	SizeSmall      SizeCategory = "Small"
	SizeMedium     SizeCategory = "Medium"
	SizeLarge      SizeCategory = "Large"
	SizeEnterprise SizeCategory = "Enterprise"
	SizeUnknown    SizeCategory = "Unknown"
)

// CompanyLocation is one structured office location.
type CompanyLocation struct {
	AddressLine1 string `json:"address_line1,omitempty"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city,omitempty"`
	Region       string `json:"region,omitempty"`
	Country      string `json:"country,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
	IsHQ         bool   `json:"is_hq,omitempty"`
}

// CompanyFunding is a structured funding summary as scraped.
type CompanyFunding struct {
	Stage        string `json:"stage,omitempty"`
	TotalRaised  string `json:"total_raised,omitempty"`
	LastRoundAt  string `json:"last_round_at,omitempty"`
}

// Company is the canonical, normalized representation of a scraped company.
type Company struct {
	ID                 uuid.UUID `json:"id"`
	LinkedinCompanyURL string    `json:"linkedin_company_url,omitempty"`

	Name          string `json:"name"`
	Tagline       string `json:"tagline,omitempty"`
	Domain        string `json:"domain,omitempty"`
	WebsiteURL    string `json:"website_url,omitempty"`
	LogoURL       string `json:"logo_url,omitempty"`
	Description   string `json:"description,omitempty"`
	Specialties   string `json:"specialties,omitempty"`

	Industries []string `json:"industries,omitempty"`

	EmployeeCount      *int   `json:"employee_count,omitempty"`
	EmployeeRangeLabel string `json:"employee_range_label,omitempty"`
	FollowerCount      *int   `json:"follower_count,omitempty"`
	YearFounded        *int   `json:"year_founded,omitempty"`

	AddressLine1 string `json:"address_line1,omitempty"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city,omitempty"`
	Region       string `json:"region,omitempty"`
	Country      string `json:"country,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`

	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`

	Locations            []CompanyLocation `json:"locations,omitempty"`
	Funding              *CompanyFunding   `json:"funding,omitempty"`
	AffiliatedCompanies  []string          `json:"affiliated_companies,omitempty"`
	RawPayload           map[string]any    `json:"raw_payload,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCompany builds a Company with a fresh id.
func NewCompany() *Company {
	return &Company{ID: uuid.New()}
}

// Clean trims/collapses free-text fields, derives Domain from WebsiteURL when
// absent, lowercases Email, and dedupes Industries preserving order.
func (c *Company) Clean() {
	c.Name = CleanText(c.Name)
	c.Tagline = CleanText(c.Tagline)
	c.Description = CleanText(c.Description)
	c.Specialties = CleanText(c.Specialties)
	c.City = CleanText(c.City)
	c.Region = CleanText(c.Region)
	c.Country = CleanText(c.Country)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))

	if c.Domain == "" && c.WebsiteURL != "" {
		c.Domain = DomainFromURL(c.WebsiteURL)
	}
	c.Industries = dedupePreserveOrder(c.Industries)

	if c.EmployeeCount != nil && *c.EmployeeCount < 0 {
		zero := 0
		c.EmployeeCount = &zero
	}
	if c.FollowerCount != nil && *c.FollowerCount < 0 {
		zero := 0
		c.FollowerCount = &zero
	}
}

// DomainFromURL derives a bare, lowercased, www-stripped host from a
// website URL. Returns "" when the URL does not parse.
func DomainFromURL(website string) string {
	raw := strings.TrimSpace(website)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Host)
	host = strings.TrimPrefix(host, "www.")
	return host
}

// NormalizedName lowercases a company name and drops every character other
// than ASCII letters and digits ("Acme Inc" -> "acmeinc"), for identity
// lookups when no LinkedIn company URL is available.
func NormalizedName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidYearFounded reports whether year falls within the accepted range
// (1600..current year + 1).
func ValidYearFounded(year int) bool {
	return year >= 1600 && year <= time.Now().UTC().Year()+1
}

// DisplayName returns Name, falling back to the domain when Name is empty.
func (c Company) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Domain
}

// AgeYears returns the company's age in years, or -1 if YearFounded is unset.
func (c Company) AgeYears() int {
	if c.YearFounded == nil {
		return -1
	}
	age := time.Now().UTC().Year() - *c.YearFounded
	if age < 0 {
		return 0
	}
	return age
}

// SizeCategoryOf buckets the company by EmployeeCount.
func (c Company) SizeCategoryOf() SizeCategory {
	if c.EmployeeCount == nil {
		return SizeUnknown
	}
	n := *c.EmployeeCount
	switch {
	case n < 10:
		return SizeStartup
	case n < 50:
		return SizeSmall
	case n < 200:
		return SizeMedium
	case n < 1000:
		return SizeLarge
	default:
		return SizeEnterprise
	}
}

// HeadquartersAddress synthesizes a single-line address from the structured
// HQ fields, skipping any that are empty.
func (c Company) HeadquartersAddress() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{c.AddressLine1, c.AddressLine2, c.City, c.Region, c.PostalCode, c.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// SpecialtiesList splits the free-text Specialties field on commas into a
// trimmed, non-empty list.
func (c Company) SpecialtiesList() []string {
	if c.Specialties == "" {
		return nil
	}
	raw := strings.Split(c.Specialties, ",")
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// IsStartup reports whether the company is small and young, and either has
// early-stage funding or is very small and very young.
func (c Company) IsStartup() bool {
	size := c.SizeCategoryOf()
	if size != SizeStartup && size != SizeSmall {
		return false
	}
	age := c.AgeYears()
	if age < 0 || age > 10 {
		return false
	}
	earlyStageFunded := c.Funding != nil && (c.Funding.Stage == "seed" || c.Funding.Stage == "series_a")
	verySmallAndYoung := c.EmployeeCount != nil && *c.EmployeeCount < 25 && age <= 5
	return earlyStageFunded || verySmallAndYoung
}

// coerceInt unambiguously coerces a numeric field that may have arrived as a
// JSON number or a numeric string, as the scraper adapter must when a
// provider emits counts as strings.
func coerceInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(n, ",", ""))
		if s == "" {
			return 0, false
		}
		i, err := strconv.Atoi(s)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

// CoerceIntField is exported for use by the scraper adapter, which needs the
// same unambiguous string-or-number coercion for employee/follower counts
// and year-founded.
func CoerceIntField(v any) (int, bool) {
	return coerceInt(v)
}
