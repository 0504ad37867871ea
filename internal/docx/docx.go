// Package docx writes minimal WordprocessingML (.docx) documents: paragraphs of
// styled runs, bordered tables and inline images. It covers what the report
// generator needs and nothing more.
package docx

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// ContentType is the MIME type of a .docx file.
const ContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Page geometry in twentieths of a point (A4, one inch margins).
const (
	pageWidth    = 11906
	pageHeight   = 16838
	pageMargin   = 1440
	ContentWidth = pageWidth - 2*pageMargin
)

const emuPerPixel = 9525

// Alignment is a paragraph justification.
type Alignment string

const (
	AlignLeft   Alignment = "left"
	AlignCenter Alignment = "center"
	AlignRight  Alignment = "right"
)

// Run is a span of text sharing one format. Size is in half-points; zero keeps the default.
type Run struct {
	Text string
	Bold bool
	Size int
}

// Paragraph is a block of runs. SpacingAfter is in twips.
type Paragraph struct {
	Runs         []Run
	Align        Alignment
	SpacingAfter int
	image        *imageRef
}

// Cell is a table cell. Fill is an optional hex background colour.
type Cell struct {
	Runs []Run
	Fill string
}

// Table is a bordered grid. Widths are column widths in twips.
type Table struct {
	Widths []int
	Rows   [][]Cell
}

// Image is raw picture data. Format is "png", "jpeg" or "gif".
type Image struct {
	Data          []byte
	Format        string
	Width, Height int // display size in pixels
}

// Validate reports whether img can be embedded.
func (img Image) Validate() error {
	if _, err := extension(img.Format); err != nil {
		return err
	}
	if len(img.Data) == 0 {
		return errors.New("docx: empty image data")
	}
	if img.Width <= 0 || img.Height <= 0 {
		return fmt.Errorf("docx: invalid image size %dx%d", img.Width, img.Height)
	}
	return nil
}

type imageRef struct {
	Image
	relID  string
	target string
	docPr  int
}

type block interface{ writeXML(b *strings.Builder) }

// Document accumulates blocks and renders them to a .docx archive.
// ModTime stamps every zip entry so equal content gives equal bytes.
type Document struct {
	ModTime time.Time
	blocks  []block
	images  []*imageRef
}

// New returns an empty document.
func New() *Document {
	return &Document{ModTime: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// AddParagraph appends a paragraph.
func (d *Document) AddParagraph(p Paragraph) {
	d.blocks = append(d.blocks, p)
}

// AddText appends a single-run paragraph.
func (d *Document) AddText(text string, bold bool, align Alignment) {
	d.AddParagraph(Paragraph{Runs: []Run{{Text: text, Bold: bold}}, Align: align})
}

// AddTable appends a table. Every row must have len(t.Widths) cells.
func (d *Document) AddTable(t Table) error {
	for i, row := range t.Rows {
		if len(row) != len(t.Widths) {
			return fmt.Errorf("docx: table row %d has %d cells, want %d", i, len(row), len(t.Widths))
		}
	}
	d.blocks = append(d.blocks, t)
	return nil
}

// AddImage appends a paragraph holding img inline.
func (d *Document) AddImage(img Image, align Alignment) error {
	if err := img.Validate(); err != nil {
		return err
	}
	ext, _ := extension(img.Format)
	n := len(d.images) + 1
	ref := &imageRef{
		Image:  img,
		relID:  fmt.Sprintf("rIdImg%d", n),
		target: fmt.Sprintf("media/image%d.%s", n, ext),
		docPr:  n,
	}
	d.images = append(d.images, ref)
	d.blocks = append(d.blocks, Paragraph{Align: align, SpacingAfter: 200, image: ref})
	return nil
}

// Images returns the number of embedded pictures.
func (d *Document) Images() int { return len(d.images) }

// Bytes renders the document archive.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := d.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo renders the document archive into w.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	zw := zip.NewWriter(cw)

	parts := []struct {
		name string
		data []byte
	}{
		{"[Content_Types].xml", []byte(d.contentTypesXML())},
		{"_rels/.rels", []byte(rootRelsXML)},
		{"word/document.xml", []byte(d.documentXML())},
		{"word/_rels/document.xml.rels", []byte(d.documentRelsXML())},
	}
	for _, img := range d.images {
		parts = append(parts, struct {
			name string
			data []byte
		}{"word/" + img.target, img.Data})
	}

	for _, p := range parts {
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: p.name, Method: zip.Deflate, Modified: d.ModTime})
		if err != nil {
			return cw.n, fmt.Errorf("docx: create %s: %w", p.name, err)
		}
		if _, err := fw.Write(p.data); err != nil {
			return cw.n, fmt.Errorf("docx: write %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return cw.n, fmt.Errorf("docx: close archive: %w", err)
	}
	return cw.n, nil
}

// FitWithin scales w×h down (never up) to fit inside maxW×maxH, keeping the aspect ratio.
func FitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return maxW, maxH
	}
	if w <= maxW && h <= maxH {
		return w, h
	}
	scale := float64(maxW) / float64(w)
	if s := float64(maxH) / float64(h); s < scale {
		scale = s
	}
	nw, nh := int(float64(w)*scale), int(float64(h)*scale)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh
}

func extension(format string) (string, error) {
	switch strings.ToLower(format) {
	case "png":
		return "png", nil
	case "jpeg", "jpg":
		return "jpeg", nil
	case "gif":
		return "gif", nil
	default:
		return "", fmt.Errorf("docx: unsupported image format %q", format)
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
