package model

import (
	"github.com/google/uuid"
)

// ProfileCompanyEdge records one employment stint linking a profile to a
// company. Multiple stints at the same company are permitted, distinguished
// by (position_title, start_date).
type ProfileCompanyEdge struct {
	ID        uuid.UUID `json:"id"`
	ProfileID uuid.UUID `json:"profile_id"`
	CompanyID uuid.UUID `json:"company_id"`

	PositionTitle string `json:"position_title"`
	StartDate     string `json:"start_date,omitempty"`
	EndDate       string `json:"end_date,omitempty"`
	DurationText  string `json:"duration_text,omitempty"`
	IsCurrentRole bool   `json:"is_current_role"`
	Description   string `json:"description,omitempty"`
}

// NewEdge builds a ProfileCompanyEdge with a fresh id from an Experience
// entry already resolved to a company id.
func NewEdge(profileID, companyID uuid.UUID, exp Experience) *ProfileCompanyEdge {
	return &ProfileCompanyEdge{
		ID:            uuid.New(),
		ProfileID:     profileID,
		CompanyID:     companyID,
		PositionTitle: exp.PositionTitle,
		StartDate:     exp.StartDate,
		EndDate:       exp.EndDate,
		DurationText:  exp.DurationText,
		IsCurrentRole: exp.IsCurrentRole,
		Description:   exp.Description,
	}
}
