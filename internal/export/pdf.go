package export

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"

	"github.com/athenslab/athens/internal/conversation"
	"github.com/athenslab/athens/internal/debate"
)

// PDFExporter exports debates to PDF format.
type PDFExporter struct{}

// Export writes the debate as PDF.
func (e *PDFExporter) Export(summary debate.Summary, doc *conversation.Document, w io.Writer) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)

	pdf.AddPage()

	status := summary.Status

	// Title
	pdf.SetFont("Arial", "B", 18)
	pdf.MultiCell(0, 10, status.Topic, "", "C", false)
	pdf.Ln(5)

	// Metadata section
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Debate Information")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	e.addMetadataRow(pdf, "State:", string(status.State))
	if status.TerminationReason != "" {
		e.addMetadataRow(pdf, "Reason:", string(status.TerminationReason))
	}
	e.addMetadataRow(pdf, "Rounds:", fmt.Sprintf("%d of %d", status.CurrentRound, status.MaxRounds))
	e.addMetadataRow(pdf, "Messages:", fmt.Sprintf("%d", status.TotalMessages))
	e.addMetadataRow(pdf, "Started:", status.StartedAt.Format("January 2, 2006 at 3:04 PM"))
	e.addMetadataRow(pdf, "Duration:", formatDuration(status.DurationSeconds))
	pdf.Ln(5)

	// Participants section
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Participants")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	for _, p := range status.Participants {
		count := 0
		if summary.Metrics != nil {
			count = summary.Metrics.MessagesBySender[p]
		}
		pdf.Cell(0, 6, fmt.Sprintf("%s (%d messages)", p, count))
		pdf.Ln(6)
	}
	pdf.Ln(5)

	// Debate content
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Debate")
	pdf.Ln(8)

	if doc != nil {
		for _, m := range doc.Messages {
			pdf.SetFont("Arial", "B", 10)
			pdf.Cell(0, 6, fmt.Sprintf("%s (%s)", m.Sender, m.Category))
			pdf.Ln(6)

			pdf.SetFont("Arial", "", 10)
			pdf.MultiCell(0, 5, m.Content, "", "L", false)
			pdf.Ln(4)
		}
	}

	return pdf.Output(w)
}

func (e *PDFExporter) addMetadataRow(pdf *gofpdf.Fpdf, label, value string) {
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(30, 6, label)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, value)
	pdf.Ln(6)
}

// FileExtension returns the file extension for PDF.
func (e *PDFExporter) FileExtension() string {
	return "pdf"
}
