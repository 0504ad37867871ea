// Package export writes records to an xlsx workbook with one sheet per record
// kind plus a combined sheet.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/diewo77/field-reports/internal/models"
	"github.com/xuri/excelize/v2"
)

const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	SheetInterventions = "Interventions"
	SheetReclamations  = "Reclamations"
	SheetAll           = "All Records"

	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
	missing        = "N/A"
)

var (
	interventionColumns = []string{
		"ID", "Type", "User Email", "User Name", "Start Date", "End Date", "Company Name",
		"Responsible Person", "Team Members", "Site Name", "Photo URL", "Recipient Emails", "Created At",
	}
	reclamationColumns = []string{
		"ID", "Type", "User Email", "User Name", "Date", "Station Name", "Reclamation Type",
		"Description", "Photo URL", "Recipient Emails", "Created At",
	}
	// allColumns is the union of both layouts, intervention columns first.
	allColumns = []string{
		"ID", "Type", "User Email", "User Name", "Start Date", "End Date", "Company Name",
		"Responsible Person", "Team Members", "Site Name", "Photo URL", "Recipient Emails", "Created At",
		"Date", "Station Name", "Reclamation Type", "Description",
	}
)

// Options controls how rows are rendered.
type Options struct {
	// IncludeOwner fills the user email and name columns; otherwise they read N/A.
	IncludeOwner bool
	// Location renders Created At; nil means time.Local.
	Location *time.Location
}

type row map[string]any

// Workbook builds the export. Rows keep the given order; IDs are sequential
// across both kinds, interventions first.
func Workbook(interventions []models.Intervention, reclamations []models.Reclamation, opts Options) (*excelize.File, error) {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	iRows := make([]row, 0, len(interventions))
	for i, rec := range interventions {
		r := ownerCells(rec.Owner, opts)
		r["ID"] = i + 1
		r["Type"] = "Intervention"
		r["Start Date"] = rec.StartDate.Format(dateLayout)
		r["End Date"] = rec.EndDate.Format(dateLayout)
		r["Company Name"] = rec.EntrepriseName
		r["Responsible Person"] = rec.Responsable
		r["Team Members"] = strings.Join(rec.TeamMembers, ", ")
		r["Site Name"] = rec.SiteName
		r["Photo URL"] = orMissing(rec.PhotoURL)
		r["Recipient Emails"] = strings.Join(rec.RecipientEmails, ", ")
		r["Created At"] = rec.CreatedAt.In(opts.Location).Format(dateTimeLayout)
		iRows = append(iRows, r)
	}
	rRows := make([]row, 0, len(reclamations))
	for i, rec := range reclamations {
		r := ownerCells(rec.Owner, opts)
		r["ID"] = len(interventions) + i + 1
		r["Type"] = "Reclamation"
		r["Date"] = rec.Date.Format(dateLayout)
		r["Station Name"] = rec.StationName
		r["Reclamation Type"] = string(rec.ReclamationType)
		r["Description"] = rec.Description
		r["Photo URL"] = orMissing(rec.PhotoURL)
		r["Recipient Emails"] = strings.Join(rec.RecipientEmails, ", ")
		r["Created At"] = rec.CreatedAt.In(opts.Location).Format(dateTimeLayout)
		rRows = append(rRows, r)
	}

	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), SheetInterventions); err != nil {
		return nil, err
	}
	for _, name := range []string{SheetReclamations, SheetAll} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	sheets := []struct {
		name    string
		columns []string
		rows    []row
	}{
		{SheetInterventions, interventionColumns, iRows},
		{SheetReclamations, reclamationColumns, rRows},
		{SheetAll, allColumns, append(append([]row{}, iRows...), rRows...)},
	}
	for _, s := range sheets {
		if err := writeSheet(f, s.name, s.columns, s.rows, header); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("export sheet %q: %w", s.name, err)
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

// Write builds the workbook and streams it to w.
func Write(w io.Writer, interventions []models.Intervention, reclamations []models.Reclamation, opts Options) error {
	f, err := Workbook(interventions, reclamations, opts)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteTo(w)
	return err
}

// Filename names an export after the instant it was produced.
func Filename(now time.Time) string {
	ts := now.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	return "Records_Export_" + strings.NewReplacer(":", "-", ".", "-").Replace(ts) + ".xlsx"
}

func writeSheet(f *excelize.File, sheet string, columns []string, rows []row, headerStyle int) error {
	head := make([]any, len(columns))
	for i, c := range columns {
		head[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &head); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return err
	}
	for i, r := range rows {
		cells := make([]any, len(columns))
		for j, c := range columns {
			if v, ok := r[c]; ok {
				cells[j] = v
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return err
		}
	}
	last, err := excelize.ColumnNumberToName(len(columns))
	if err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", last, 18)
}

func ownerCells(o models.Owner, opts Options) row {
	if !opts.IncludeOwner {
		return row{"User Email": missing, "User Name": missing}
	}
	return row{"User Email": orMissing(o.UserEmail), "User Name": orMissing(o.UserName)}
}

func orMissing(s string) string {
	if strings.TrimSpace(s) == "" {
		return missing
	}
	return s
}
