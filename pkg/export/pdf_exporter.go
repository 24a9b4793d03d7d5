package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const utf8Family = "DocFont"

// Field is a labelled line in a document header.
type Field struct {
	Label string
	Value string
}

// Section is a headed block of free text.
type Section struct {
	Heading string
	Body    string
}

// Document is a titled text document, such as a lecture note.
type Document struct {
	Title    string
	Fields   []Field
	Sections []Section
}

// PDFExporter renders documents into A4 PDFs.
type PDFExporter struct {
	fontPath string
}

// NewPDFExporter constructs a PDF exporter. When fontPath points at a TTF
// file it is embedded so that non-Latin text renders; otherwise the core
// Arial font with cp1252 translation is used.
func NewPDFExporter(fontPath string) *PDFExporter {
	return &PDFExporter{fontPath: fontPath}
}

// ContentType of rendered files.
func (e *PDFExporter) ContentType() string { return "application/pdf" }

// Extension of rendered files.
func (e *PDFExporter) Extension() string { return "pdf" }

// RenderDocument lays out the title, header fields and non-empty sections.
func (e *PDFExporter) RenderDocument(doc Document) ([]byte, error) {
	if doc.Title == "" {
		return nil, fmt.Errorf("pdf document requires a title")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)

	family := "Arial"
	text := func(s string) string { return s }
	if e.fontPath != "" {
		pdf.AddUTF8Font(utf8Family, "", e.fontPath)
		pdf.AddUTF8Font(utf8Family, "B", e.fontPath)
		family = utf8Family
	} else {
		text = pdf.UnicodeTranslatorFromDescriptor("")
	}
	pdf.AddPage()

	pdf.SetFont(family, "B", 16)
	pdf.MultiCell(0, 8, text(doc.Title), "", "L", false)
	pdf.Ln(3)

	for _, field := range doc.Fields {
		if field.Value == "" {
			continue
		}
		pdf.SetFont(family, "B", 10)
		pdf.CellFormat(40, 6, text(field.Label), "", 0, "L", false, 0, "")
		pdf.SetFont(family, "", 10)
		pdf.MultiCell(0, 6, text(field.Value), "", "L", false)
	}

	for _, section := range doc.Sections {
		if section.Body == "" {
			continue
		}
		pdf.Ln(4)
		pdf.SetFont(family, "B", 12)
		pdf.CellFormat(0, 8, text(section.Heading), "B", 1, "L", false, 0, "")
		pdf.Ln(1)
		pdf.SetFont(family, "", 10)
		pdf.MultiCell(0, 5, text(section.Body), "", "L", false)
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("layout pdf: %w", err)
	}
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
