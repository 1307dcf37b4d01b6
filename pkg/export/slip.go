package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// SlipKind selects the slip layout variant.
type SlipKind string

const (
	SlipPickup  SlipKind = "PICKUP"
	SlipReceipt SlipKind = "RECEIPT"
)

// SlipData carries the fields printed on a pickup slip or completion receipt.
type SlipData struct {
	Kind          SlipKind
	RequestNumber string
	StudentName   string
	StudentNumber string
	DocumentName  string
	Copies        int
	Fee           string
	Purpose       string
	RequestedAt   string
	GeneratedAt   string
}

// SlipRenderer produces single-page registrar slips.
type SlipRenderer struct{}

// NewSlipRenderer constructs a SlipRenderer.
func NewSlipRenderer() *SlipRenderer {
	return &SlipRenderer{}
}

// Render builds the slip PDF.
func (r *SlipRenderer) Render(data SlipData) ([]byte, error) {
	if data.RequestNumber == "" {
		return nil, fmt.Errorf("slip requires a request number")
	}

	title := "DOCUMENT PICKUP SLIP"
	footer := "Present this slip together with a valid school ID when claiming your document."
	if data.Kind == SlipReceipt {
		title = "COMPLETION RECEIPT"
		footer = "This receipt confirms the document request was completed and collected."
	}

	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.SetMargins(12, 14, 12)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(0, 8, "WILDDOCS REGISTRAR'S OFFICE", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, title, "", 1, "C", false, 0, "")
	pdf.Ln(4)

	rows := [][2]string{
		{"Request No.", data.RequestNumber},
		{"Student", data.StudentName},
		{"Student No.", data.StudentNumber},
		{"Document", data.DocumentName},
		{"Copies", fmt.Sprintf("%d", data.Copies)},
		{"Fee", data.Fee},
		{"Purpose", data.Purpose},
		{"Requested", data.RequestedAt},
		{"Generated", data.GeneratedAt},
	}

	pdf.SetFont("Arial", "", 9)
	for _, row := range rows {
		pdf.SetFont("Arial", "B", 9)
		pdf.CellFormat(32, 7, row[0], "", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		pdf.MultiCell(0, 7, row[1], "", "", false)
	}

	pdf.Ln(8)
	pdf.CellFormat(60, 7, "", "T", 0, "", false, 0, "")
	pdf.CellFormat(10, 7, "", "", 0, "", false, 0, "")
	pdf.CellFormat(60, 7, "", "T", 1, "", false, 0, "")
	pdf.SetFont("Arial", "", 8)
	pdf.CellFormat(60, 5, "Student Signature", "", 0, "C", false, 0, "")
	pdf.CellFormat(10, 5, "", "", 0, "", false, 0, "")
	pdf.CellFormat(60, 5, "Releasing Officer", "", 1, "C", false, 0, "")

	pdf.Ln(5)
	pdf.SetFont("Arial", "I", 8)
	pdf.MultiCell(0, 4, footer, "", "C", false)

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render slip: %w", err)
	}
	return buf.Bytes(), nil
}
