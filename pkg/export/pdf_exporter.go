package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Section groups rows under a heading with an optional trailing summary
// line, used for term-by-term transcript output.
type Section struct {
	Heading string
	Rows    []map[string]string
	Summary string
}

// SectionedDataset is a Dataset split into headed sections.
type SectionedDataset struct {
	Headers  []string
	Sections []Section
	Footer   string
}

// PDFExporter renders datasets into a basic tabular PDF.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with an optional title and table body.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := newDocument(title)

	writeTableHeader(pdf, data.Headers)
	writeRows(pdf, data.Headers, data.Rows)

	return output(pdf)
}

// RenderSections creates a PDF with one table per section, each under its
// own heading. Used for transcripts where rows group by term.
func (e *PDFExporter) RenderSections(data SectionedDataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := newDocument(title)

	for _, section := range data.Sections {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(0, 8, section.Heading, "", 1, "L", false, 0, "")
		writeTableHeader(pdf, data.Headers)
		writeRows(pdf, data.Headers, section.Rows)
		if section.Summary != "" {
			pdf.SetFont("Arial", "I", 9)
			pdf.CellFormat(0, 7, section.Summary, "", 1, "R", false, 0, "")
		}
		pdf.Ln(3)
	}

	if data.Footer != "" {
		pdf.Ln(2)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 8, data.Footer, "T", 1, "R", false, 0, "")
	}

	return output(pdf)
}

func newDocument(title string) *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}
	return pdf
}

func writeTableHeader(pdf *gofpdf.Fpdf, headers []string) {
	pdf.SetFont("Arial", "B", 10)
	colWidth := 190.0 / float64(len(headers))
	for _, header := range headers {
		pdf.CellFormat(colWidth, 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
}

func writeRows(pdf *gofpdf.Fpdf, headers []string, rows []map[string]string) {
	pdf.SetFont("Arial", "", 9)
	colWidth := 190.0 / float64(len(headers))
	for _, row := range rows {
		for _, header := range headers {
			pdf.CellFormat(colWidth, 7, row[header], "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}
}

func output(pdf *gofpdf.Fpdf) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
