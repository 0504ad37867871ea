package submission

import (
	"strings"

	"github.com/diewo77/field-reports/auth"
	"github.com/diewo77/field-reports/internal/models"
	"github.com/diewo77/field-reports/validation"
)

// InterventionInput is the body of POST /interventions.
type InterventionInput struct {
	StartDate       string   `json:"startDate" validate:"required,date"`
	EndDate         string   `json:"endDate" validate:"required,date"`
	EntrepriseName  string   `json:"entrepriseName" validate:"required"`
	Responsable     string   `json:"responsable" validate:"required"`
	TeamMembers     []string `json:"teamMembers" validate:"required,min=1,dive,required"`
	SiteName        string   `json:"siteName" validate:"required"`
	PhotoURL        string   `json:"photoUrl" validate:"omitempty,url"`
	RecipientEmails []string `json:"recipientEmails" validate:"required,min=1,dive,required,email"`
}

// ReclamationInput is the body of POST /reclamations.
type ReclamationInput struct {
	Date            string   `json:"date" validate:"required,date"`
	StationName     string   `json:"stationName" validate:"required"`
	ReclamationType string   `json:"reclamationType" validate:"required,oneof=hydraulic electric mechanic"`
	Description     string   `json:"description" validate:"required"`
	PhotoURL        string   `json:"photoUrl" validate:"omitempty,url"`
	RecipientEmails []string `json:"recipientEmails" validate:"required,min=1,dive,required,email"`
}

func (in *InterventionInput) normalize() {
	in.StartDate = strings.TrimSpace(in.StartDate)
	in.EndDate = strings.TrimSpace(in.EndDate)
	in.EntrepriseName = strings.TrimSpace(in.EntrepriseName)
	in.Responsable = strings.TrimSpace(in.Responsable)
	in.SiteName = strings.TrimSpace(in.SiteName)
	in.PhotoURL = strings.TrimSpace(in.PhotoURL)
	trimAll(in.TeamMembers)
	trimAll(in.RecipientEmails)
}

func (in *ReclamationInput) normalize() {
	in.Date = strings.TrimSpace(in.Date)
	in.StationName = strings.TrimSpace(in.StationName)
	in.ReclamationType = strings.TrimSpace(in.ReclamationType)
	in.Description = strings.TrimSpace(in.Description)
	in.PhotoURL = strings.TrimSpace(in.PhotoURL)
	trimAll(in.RecipientEmails)
}

func trimAll(ss []string) {
	for i := range ss {
		ss[i] = strings.TrimSpace(ss[i])
	}
}

// Validate checks the input and returns *validation.Error on violations.
func (in *InterventionInput) Validate() error {
	v := validation.Violations{}
	if err := validation.Collect(in, v); err != nil {
		return err
	}
	validation.DateNotBefore("endDate", in.EndDate, in.StartDate, v)
	return v.Err()
}

func (in *ReclamationInput) Validate() error {
	return validation.Struct(in)
}

// record builds the row for a validated input.
func (in *InterventionInput) record(p auth.Principal) *models.Intervention {
	start, _ := validation.ParseDate(in.StartDate)
	end, _ := validation.ParseDate(in.EndDate)
	return &models.Intervention{
		Owner:           owner(p),
		StartDate:       start,
		EndDate:         end,
		EntrepriseName:  in.EntrepriseName,
		Responsable:     in.Responsable,
		TeamMembers:     append([]string(nil), in.TeamMembers...),
		SiteName:        in.SiteName,
		PhotoURL:        in.PhotoURL,
		RecipientEmails: append([]string(nil), in.RecipientEmails...),
	}
}

func (in *ReclamationInput) record(p auth.Principal) *models.Reclamation {
	date, _ := validation.ParseDate(in.Date)
	return &models.Reclamation{
		Owner:           owner(p),
		Date:            date,
		StationName:     in.StationName,
		ReclamationType: models.ReclamationType(in.ReclamationType),
		Description:     in.Description,
		PhotoURL:        in.PhotoURL,
		RecipientEmails: append([]string(nil), in.RecipientEmails...),
	}
}

func owner(p auth.Principal) models.Owner {
	return models.Owner{UserID: p.ID, UserEmail: p.Email, UserName: p.Name}
}
