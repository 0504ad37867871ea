package report

import (
	"strings"

	"github.com/diewo77/field-reports/internal/models"
)

const (
	dateLayout      = "2006-01-02"
	defaultPriority = "Medium"
	defaultStatus   = "Pending"
)

// Author identifies the session user a report is filed under.
type Author struct {
	ID   string
	Name string
}

// InterventionData maps an intervention to report data. The responsible person
// is the identity shown and the company gets its own row; company, team and
// period are repeated as bold description lines.
func InterventionData(rec *models.Intervention, by Author) Data {
	lines := []string{
		Bold("Company", rec.EntrepriseName),
		Bold("Responsible", rec.Responsable),
		Bold("Team Members", strings.Join(rec.TeamMembers, ", ")),
		Bold("Period", rec.StartDate.Format(dateLayout)+" to "+rec.EndDate.Format(dateLayout)),
	}
	return Data{
		Title:        []string{"Intervention Report", rec.SiteName},
		IdentityName: rec.Responsable,
		IdentityID:   by.ID,
		Company:      rec.EntrepriseName,
		SiteName:     rec.SiteName,
		StationName:  rec.SiteName,
		TypeLabel:    "Intervention Type",
		TypeValue:    "Maintenance",
		Description:  strings.Join(lines, "\n"),
		Priority:     defaultPriority,
		Status:       defaultStatus,
		PhotoURL:     rec.PhotoURL,
		Recipients:   rec.RecipientEmails,
		CreatedAt:    rec.CreatedAt,
	}
}

// ReclamationData maps a reclamation to report data. The session user is the
// identity shown; station, category and date precede the free-text description.
func ReclamationData(rec *models.Reclamation, by Author) Data {
	name := strings.TrimSpace(by.Name)
	if name == "" {
		name = "N/A"
	}
	lines := []string{
		Bold("Station", rec.StationName),
		Bold("Category", string(rec.ReclamationType)),
		Bold("Date", rec.Date.Format(dateLayout)),
		rec.Description,
	}
	return Data{
		Title:        []string{"Reclamation Report", rec.StationName},
		IdentityName: name,
		IdentityID:   by.ID,
		SiteName:     rec.StationName,
		StationName:  rec.StationName,
		TypeLabel:    "Reclamation Type",
		TypeValue:    string(rec.ReclamationType),
		Description:  strings.Join(lines, "\n"),
		Priority:     defaultPriority,
		Status:       defaultStatus,
		PhotoURL:     rec.PhotoURL,
		Recipients:   rec.RecipientEmails,
		CreatedAt:    rec.CreatedAt,
	}
}
