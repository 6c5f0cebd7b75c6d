package company

import (
	"reflect"
	"time"

	"github.com/hirewell/profile-ingest/internal/model"
)

func timeNowUTC() time.Time {
	return time.Now().UTC()
}

// mergeFields overlays incoming's non-empty/non-nil fields onto existing,
// per §4.4: "found and any field differs, produce updated with a merged
// record where incoming non-null fields overwrite". Returns the merged
// record and whether anything actually changed.
func mergeFields(existing, incoming model.Company) (model.Company, bool) {
	merged := existing
	changed := false

	setString := func(dst *string, src string) {
		if src != "" && src != *dst {
			*dst = src
			changed = true
		}
	}

	setString(&merged.Name, incoming.Name)
	setString(&merged.Tagline, incoming.Tagline)
	setString(&merged.Domain, incoming.Domain)
	setString(&merged.WebsiteURL, incoming.WebsiteURL)
	setString(&merged.LogoURL, incoming.LogoURL)
	setString(&merged.Description, incoming.Description)
	setString(&merged.Specialties, incoming.Specialties)
	setString(&merged.EmployeeRangeLabel, incoming.EmployeeRangeLabel)
	setString(&merged.AddressLine1, incoming.AddressLine1)
	setString(&merged.AddressLine2, incoming.AddressLine2)
	setString(&merged.City, incoming.City)
	setString(&merged.Region, incoming.Region)
	setString(&merged.Country, incoming.Country)
	setString(&merged.PostalCode, incoming.PostalCode)
	setString(&merged.Email, incoming.Email)
	setString(&merged.Phone, incoming.Phone)
	setString(&merged.LinkedinCompanyURL, incoming.LinkedinCompanyURL)

	if incoming.EmployeeCount != nil && (merged.EmployeeCount == nil || *merged.EmployeeCount != *incoming.EmployeeCount) {
		merged.EmployeeCount = incoming.EmployeeCount
		changed = true
	}
	if incoming.FollowerCount != nil && (merged.FollowerCount == nil || *merged.FollowerCount != *incoming.FollowerCount) {
		merged.FollowerCount = incoming.FollowerCount
		changed = true
	}
	if incoming.YearFounded != nil && (merged.YearFounded == nil || *merged.YearFounded != *incoming.YearFounded) {
		merged.YearFounded = incoming.YearFounded
		changed = true
	}
	if len(incoming.Industries) > 0 && !equalStrings(merged.Industries, incoming.Industries) {
		merged.Industries = incoming.Industries
		changed = true
	}
	if len(incoming.Locations) > 0 && !reflect.DeepEqual(merged.Locations, incoming.Locations) {
		merged.Locations = incoming.Locations
		changed = true
	}
	if incoming.Funding != nil && !reflect.DeepEqual(merged.Funding, incoming.Funding) {
		merged.Funding = incoming.Funding
		changed = true
	}
	if len(incoming.AffiliatedCompanies) > 0 && !equalStrings(merged.AffiliatedCompanies, incoming.AffiliatedCompanies) {
		merged.AffiliatedCompanies = incoming.AffiliatedCompanies
		changed = true
	}
	if incoming.RawPayload != nil {
		merged.RawPayload = incoming.RawPayload
	}

	return merged, changed
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
