package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainFromURL(t *testing.T) {
	assert.Equal(t, "acme.com", DomainFromURL("https://www.acme.com/about"))
	assert.Equal(t, "acme.com", DomainFromURL("acme.com"))
	assert.Equal(t, "", DomainFromURL(""))
}

func TestCompanySizeCategoryOf(t *testing.T) {
	n := func(v int) *int { return &v }
	tests := []struct {
		name string
		n    *int
		want SizeCategory
	}{
		{"unknown", nil, SizeUnknown},
		{"startup", n(5), SizeStartup},
		{"small", n(40), SizeSmall},
		{"medium", n(150), SizeMedium},
		{"large", n(900), SizeLarge},
		{"enterprise", n(5000), SizeEnterprise},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Company{EmployeeCount: tt.n}
			assert.Equal(t, tt.want, c.SizeCategoryOf())
		})
	}
}

func TestValidYearFounded(t *testing.T) {
	assert.True(t, ValidYearFounded(1999))
	assert.False(t, ValidYearFounded(1599))
	assert.False(t, ValidYearFounded(3000))
}

func TestCompanyClean_DerivesDomain(t *testing.T) {
	c := &Company{Name: "  Acme   Inc ", WebsiteURL: "https://www.acme.com"}
	c.Clean()
	assert.Equal(t, "Acme Inc", c.Name)
	assert.Equal(t, "acme.com", c.Domain)
}

func TestCompanyIsStartup(t *testing.T) {
	n := func(v int) *int { return &v }
	year := 2023
	c := Company{EmployeeCount: n(10), YearFounded: &year}
	assert.True(t, c.IsStartup())

	bigYear := 1990
	big := Company{EmployeeCount: n(5000), YearFounded: &bigYear}
	assert.False(t, big.IsStartup())
}
