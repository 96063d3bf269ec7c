package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/athenslab/athens/internal/conversation"
	"github.com/athenslab/athens/internal/debate"
)

// MarkdownExporter exports debates to Markdown format.
type MarkdownExporter struct{}

// Export writes the debate as Markdown.
func (e *MarkdownExporter) Export(summary debate.Summary, doc *conversation.Document, w io.Writer) error {
	var sb strings.Builder

	status := summary.Status

	// Title
	sb.WriteString(fmt.Sprintf("# %s\n\n", status.Topic))

	// Metadata
	sb.WriteString("## Debate Information\n\n")
	sb.WriteString(fmt.Sprintf("- **State:** %s\n", status.State))
	if status.TerminationReason != "" {
		sb.WriteString(fmt.Sprintf("- **Termination reason:** %s\n", status.TerminationReason))
	}
	sb.WriteString(fmt.Sprintf("- **Rounds:** %d of %d\n", status.CurrentRound, status.MaxRounds))
	sb.WriteString(fmt.Sprintf("- **Messages:** %d\n", status.TotalMessages))
	sb.WriteString(fmt.Sprintf("- **Started:** %s\n", status.StartedAt.Format("January 2, 2006 at 3:04 PM")))
	sb.WriteString(fmt.Sprintf("- **Duration:** %s\n", formatDuration(status.DurationSeconds)))
	sb.WriteString("\n")

	// Participants
	sb.WriteString("## Participants\n\n")
	for _, p := range status.Participants {
		count := 0
		if summary.Metrics != nil {
			count = summary.Metrics.MessagesBySender[p]
		}
		sb.WriteString(fmt.Sprintf("- **%s** (%d messages)\n", p, count))
	}
	sb.WriteString("\n")

	// Conversation content grouped by round
	sb.WriteString("## Debate\n\n")
	if doc == nil || len(doc.Messages) == 0 {
		sb.WriteString("*No messages recorded.*\n\n")
	} else {
		byID := make(map[string]int, len(doc.Messages))
		for _, round := range summary.Rounds {
			for _, id := range round.MessageIDs {
				byID[id] = round.Number
			}
		}

		lastRound := 0
		for _, m := range doc.Messages {
			if r, ok := byID[m.ID]; ok && r != lastRound {
				sb.WriteString(fmt.Sprintf("### Round %d\n\n", r))
				lastRound = r
			}
			sb.WriteString(fmt.Sprintf("**%s** (%s):\n\n%s\n\n", m.Sender, m.Category, m.Content))
		}
	}

	// Metrics
	if summary.Metrics != nil {
		sb.WriteString("## Metrics\n\n")
		sb.WriteString(fmt.Sprintf("- **Average response time:** %.2fs\n", summary.Metrics.AvgResponseTime))
		sb.WriteString(fmt.Sprintf("- **Average quality:** %.2f\n", summary.Metrics.AverageQuality()))
		sb.WriteString(fmt.Sprintf("- **Reply rate:** %.2f\n", summary.ConversationStats.ReplyRate))
		sb.WriteString("\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return "md"
}
