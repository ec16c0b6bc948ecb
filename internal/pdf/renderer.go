package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Line is one row of a rendered document table
type Line struct {
	Label     string
	Quantity  int
	UnitPrice float64
	TaxRate   float64
	Total     float64
}

// Document holds everything needed to render a quote or invoice PDF
type Document struct {
	Kind        string // "QUOTE" or "INVOICE"
	Number      string
	IssuedAt    time.Time
	DueDate     *time.Time
	Currency    string
	AgencyName  string
	ClientName  string
	ClientLines []string // address block
	Lines       []Line
	Notes       string
}

// Renderer produces PDF documents for quotes and invoices
type Renderer struct {
	agencyName string
}

// NewRenderer creates a document renderer
func NewRenderer(agencyName string) *Renderer {
	return &Renderer{agencyName: agencyName}
}

// Render produces the PDF bytes for a document
func (r *Renderer) Render(doc Document) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("%s %s", doc.Kind, doc.Number), false)
	pdf.AddPage()

	// Header
	pdf.SetFont("Helvetica", "B", 18)
	name := doc.AgencyName
	if name == "" {
		name = r.agencyName
	}
	pdf.Cell(120, 10, name)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(70, 10, fmt.Sprintf("%s %s", doc.Kind, doc.Number), "", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(190, 6, "Date: "+doc.IssuedAt.Format("2006-01-02"), "", 1, "R", false, 0, "")
	if doc.DueDate != nil {
		pdf.CellFormat(190, 6, "Due: "+doc.DueDate.Format("2006-01-02"), "", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	// Client block
	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(190, 6, doc.ClientName)
	pdf.Ln(6)
	pdf.SetFont("Helvetica", "", 10)
	for _, line := range doc.ClientLines {
		if line == "" {
			continue
		}
		pdf.Cell(190, 5, line)
		pdf.Ln(5)
	}
	pdf.Ln(6)

	// Table header
	pdf.SetFillColor(235, 235, 235)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(85, 8, "Description", "1", 0, "L", true, 0, "")
	pdf.CellFormat(15, 8, "Qty", "1", 0, "C", true, 0, "")
	pdf.CellFormat(30, 8, "Unit (HT)", "1", 0, "R", true, 0, "")
	pdf.CellFormat(20, 8, "TVA %", "1", 0, "R", true, 0, "")
	pdf.CellFormat(40, 8, "Total (TTC)", "1", 1, "R", true, 0, "")

	// Rows
	pdf.SetFont("Helvetica", "", 10)
	var totalHT, totalTTC float64
	for _, line := range doc.Lines {
		pdf.CellFormat(85, 7, line.Label, "1", 0, "L", false, 0, "")
		pdf.CellFormat(15, 7, fmt.Sprintf("%d", line.Quantity), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%.2f", line.UnitPrice), "1", 0, "R", false, 0, "")
		pdf.CellFormat(20, 7, fmt.Sprintf("%.1f", line.TaxRate), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 7, fmt.Sprintf("%.2f", line.Total), "1", 1, "R", false, 0, "")
		totalHT += float64(line.Quantity) * line.UnitPrice
		totalTTC += line.Total
	}

	// Totals
	pdf.Ln(2)
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(150, 7, "Total HT", "", 0, "R", false, 0, "")
	pdf.CellFormat(40, 7, fmt.Sprintf("%.2f %s", totalHT, doc.Currency), "1", 1, "R", false, 0, "")
	pdf.CellFormat(150, 7, "Total TVA", "", 0, "R", false, 0, "")
	pdf.CellFormat(40, 7, fmt.Sprintf("%.2f %s", totalTTC-totalHT, doc.Currency), "1", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(150, 8, "Total TTC", "", 0, "R", false, 0, "")
	pdf.CellFormat(40, 8, fmt.Sprintf("%.2f %s", totalTTC, doc.Currency), "1", 1, "R", false, 0, "")

	if doc.Notes != "" {
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "I", 9)
		pdf.MultiCell(190, 5, doc.Notes, "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render %s %s: %w", doc.Kind, doc.Number, err)
	}
	return buf.Bytes(), nil
}
