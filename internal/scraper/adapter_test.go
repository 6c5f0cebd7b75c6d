package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdaptProfileMissingFullNameIsIncompleteData(t *testing.T) {
	_, err := AdaptProfile("https://www.linkedin.com/in/jsmith", map[string]any{})
	require.Error(t, err)
	var incomplete *IncompleteDataError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, "full_name", incomplete.FieldPath)
}

func TestAdaptProfileInfersCurrentRoleFromAbsentEndDate(t *testing.T) {
	raw := map[string]any{
		"full_name": "Gregory Pascuzzi",
		"experiences": []any{
			map[string]any{"company_name": "PwC", "position_title": "CTO", "end_date": "Present"},
			map[string]any{"company_name": "Acme", "position_title": "VP Eng", "end_date": "2019"},
		},
	}
	p, err := AdaptProfile("https://www.linkedin.com/in/gregorypascuzzi", raw)
	require.NoError(t, err)
	require.Len(t, p.Experiences, 2)
	assert.True(t, p.Experiences[0].IsCurrentRole)
	assert.Empty(t, p.Experiences[0].EndDate)
	assert.False(t, p.Experiences[1].IsCurrentRole)
}

func TestAdaptProfileRespectsExplicitCurrentRoleField(t *testing.T) {
	raw := map[string]any{
		"full_name": "Jane Doe",
		"experiences": []any{
			map[string]any{"company_name": "Acme", "end_date": "2019", "is_current_role": true},
		},
	}
	p, err := AdaptProfile("u", raw)
	require.NoError(t, err)
	assert.True(t, p.Experiences[0].IsCurrentRole)
}

func TestAdaptCompanyMissingNameIsIncompleteData(t *testing.T) {
	_, err := AdaptCompany(map[string]any{})
	require.Error(t, err)
}

func TestAdaptCompanyCoercesStringEmployeeCount(t *testing.T) {
	raw := map[string]any{
		"name":           "Acme Inc",
		"employee_count": "1,250",
		"year_founded":   "1998",
	}
	c, err := AdaptCompany(raw)
	require.NoError(t, err)
	require.NotNil(t, c.EmployeeCount)
	assert.Equal(t, 1250, *c.EmployeeCount)
	require.NotNil(t, c.YearFounded)
	assert.Equal(t, 1998, *c.YearFounded)
}

func TestAdaptCompanyRejectsOutOfRangeYearFounded(t *testing.T) {
	raw := map[string]any{"name": "Acme", "year_founded": "3000"}
	c, err := AdaptCompany(raw)
	require.NoError(t, err)
	assert.Nil(t, c.YearFounded)
}
