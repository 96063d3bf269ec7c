// Package export handles exporting debates to various formats.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/athenslab/athens/internal/conversation"
	"github.com/athenslab/athens/internal/debate"
	"github.com/athenslab/athens/internal/storage"
)

// Format represents an export format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatPDF      Format = "pdf"
)

// Exporter defines the interface for exporting debates.
type Exporter interface {
	Export(summary debate.Summary, doc *conversation.Document, w io.Writer) error
	FileExtension() string
}

// GetExporter returns an exporter for the given format.
func GetExporter(format Format) (Exporter, error) {
	switch format {
	case FormatJSON:
		return &JSONExporter{}, nil
	case FormatMarkdown:
		return &MarkdownExporter{}, nil
	case FormatPDF:
		return &PDFExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// SummaryFromRecord reconstructs a debate summary from a stored record so
// that past debates can be exported without a live manager.
func SummaryFromRecord(rec *storage.DebateRecord, conv *conversation.Conversation) debate.Summary {
	status := debate.Status{
		State:             rec.State,
		Topic:             rec.Topic,
		CurrentRound:      len(rec.Rounds),
		TerminationReason: rec.Reason,
		StartedAt:         rec.CreatedAt,
		Participants:      rec.Participants,
	}
	if rec.Metrics != nil {
		status.DurationSeconds = rec.Metrics.Duration().Seconds()
	}

	summary := debate.Summary{
		Status:  status,
		Metrics: rec.Metrics,
		Rounds:  rec.Rounds,
	}
	if conv != nil {
		status.TotalMessages = conv.Len()
		summary.Status = status
		summary.ConversationStats = conv.Stats()
	}
	return summary
}

// GenerateFilename creates a filename for the export.
func GenerateFilename(topic, ext string) string {
	if len(topic) > 50 {
		topic = topic[:50]
	}

	replacer := strings.NewReplacer(
		" ", "_",
		"/", "-",
		"\\", "-",
		":", "-",
		"*", "",
		"?", "",
		"\"", "",
		"<", "",
		">", "",
		"|", "",
	)
	safe := replacer.Replace(topic)
	return fmt.Sprintf("%s_%s.%s", safe, time.Now().Format("20060102_150405"), ext)
}

func formatDuration(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second))
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
}
