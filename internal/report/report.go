// Package report turns a submitted record into the Word document mailed to its recipients.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/diewo77/field-reports/internal/assets"
	"github.com/diewo77/field-reports/internal/docx"
	"github.com/diewo77/field-reports/internal/metrics"
	log "github.com/sirupsen/logrus"
)

const (
	photoMaxWidth  = 400
	photoMaxHeight = 300

	labelColumn = 3000
	labelFill   = "D9E2F3"
)

// CreatedLayout formats the "Date Created" row.
const CreatedLayout = "2006-01-02 15:04 MST"

// Data is the normalized input for one report.
type Data struct {
	Title        []string
	IdentityName string
	IdentityID   string
	Company      string
	SiteName     string
	StationName  string
	TypeLabel    string
	TypeValue    string
	Description  string // lines separated by "\n", "**" toggles bold
	Priority     string
	Status       string
	PhotoURL     string
	Recipients   []string
	CreatedAt    time.Time
}

// Rows returns the details table in display order. The Company row is present
// only when a company is set.
func (d Data) Rows() [][2]string {
	rows := [][2]string{
		{"Employee Name", d.IdentityName},
		{"Employee ID", d.IdentityID},
	}
	if d.Company != "" {
		rows = append(rows, [2]string{"Company", d.Company})
	}
	return append(rows, [][2]string{
		{"Site Name", d.SiteName},
		{"Station Name", d.StationName},
		{d.TypeLabel, d.TypeValue},
		{"Priority", d.Priority},
		{"Status", d.Status},
		{"Date Created", d.CreatedAt.Format(CreatedLayout)},
	}...)
}

// Document is a synthesized report.
type Document struct {
	Bytes    []byte
	HasPhoto bool
}

// SynthesisError means the document itself could not be assembled.
type SynthesisError struct {
	Err error
}

func (e *SynthesisError) Error() string { return "synthesize report: " + e.Err.Error() }

func (e *SynthesisError) Unwrap() error { return e.Err }

// Synthesizer builds report documents. It has no HTTP or storage dependencies
// beyond the photo fetcher it is given.
type Synthesizer struct {
	photos PhotoFetcher
}

// NewSynthesizer creates a synthesizer. A nil fetcher disables photos.
func NewSynthesizer(photos PhotoFetcher) *Synthesizer {
	return &Synthesizer{photos: photos}
}

// Build renders d. Only a renderer failure is returned; a missing photo is logged and skipped.
func (s *Synthesizer) Build(ctx context.Context, d Data) (*Document, error) {
	start := time.Now()
	defer func() { metrics.ReportBuildSeconds.Observe(time.Since(start).Seconds()) }()

	doc := docx.New()
	if !d.CreatedAt.IsZero() {
		doc.ModTime = d.CreatedAt
	}

	if err := doc.AddImage(docx.Image{
		Data:   assets.Letterhead,
		Format: "png",
		Width:  assets.LetterheadWidth,
		Height: assets.LetterheadHeight,
	}, docx.AlignCenter); err != nil {
		return nil, &SynthesisError{Err: fmt.Errorf("letterhead: %w", err)}
	}

	for i, line := range d.Title {
		size := 26
		if i == 0 {
			size = 32
		}
		doc.AddParagraph(docx.Paragraph{
			Runs:         []docx.Run{{Text: line, Bold: true, Size: size}},
			Align:        docx.AlignCenter,
			SpacingAfter: 120,
		})
	}
	doc.AddParagraph(docx.Paragraph{})

	table := docx.Table{Widths: []int{labelColumn, docx.ContentWidth - labelColumn}}
	for _, row := range d.Rows() {
		table.Rows = append(table.Rows, []docx.Cell{
			{Runs: []docx.Run{{Text: row[0], Bold: true}}, Fill: labelFill},
			{Runs: []docx.Run{{Text: row[1]}}},
		})
	}
	if err := doc.AddTable(table); err != nil {
		return nil, &SynthesisError{Err: err}
	}

	if strings.TrimSpace(d.Description) != "" {
		heading(doc, "Description:")
		for _, line := range strings.Split(d.Description, "\n") {
			var runs []docx.Run
			for _, span := range ParseLine(line) {
				runs = append(runs, docx.Run{Text: span.Text, Bold: span.Bold})
			}
			doc.AddParagraph(docx.Paragraph{Runs: runs, SpacingAfter: 60})
		}
	}

	hasPhoto := s.addPhoto(ctx, doc, d.PhotoURL)

	heading(doc, "Report Recipients:")
	doc.AddText(strings.Join(d.Recipients, ", "), false, docx.AlignLeft)

	out, err := doc.Bytes()
	if err != nil {
		return nil, &SynthesisError{Err: err}
	}
	return &Document{Bytes: out, HasPhoto: hasPhoto}, nil
}

func (s *Synthesizer) addPhoto(ctx context.Context, doc *docx.Document, url string) bool {
	url = strings.TrimSpace(url)
	if url == "" || s.photos == nil {
		return false
	}
	res := s.photos.Fetch(ctx, url)
	if !res.OK() {
		log.WithFields(log.Fields{"photo_url": url, "err": res.Err}).Warn("photo unavailable, report built without it")
		return false
	}
	w, h := docx.FitWithin(res.Photo.Width, res.Photo.Height, photoMaxWidth, photoMaxHeight)
	img := docx.Image{Data: res.Photo.Data, Format: res.Photo.Format, Width: w, Height: h}
	if err := img.Validate(); err != nil {
		log.WithFields(log.Fields{"photo_url": url, "err": err}).Warn("photo not embeddable, report built without it")
		return false
	}
	heading(doc, "Photo:")
	// Validate passed, so AddImage cannot fail.
	_ = doc.AddImage(img, docx.AlignCenter)
	return true
}

func heading(doc *docx.Document, text string) {
	doc.AddParagraph(docx.Paragraph{
		Runs:         []docx.Run{{Text: text, Bold: true, Size: 24}},
		SpacingAfter: 100,
	})
}
