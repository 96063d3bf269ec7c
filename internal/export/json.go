package export

import (
	"encoding/json"
	"io"

	"github.com/athenslab/athens/internal/conversation"
	"github.com/athenslab/athens/internal/debate"
)

// JSONExporter exports debates to JSON format.
type JSONExporter struct{}

// ExportData represents the full export structure.
type ExportData struct {
	Summary      debate.Summary         `json:"summary"`
	Conversation *conversation.Document `json:"conversation"`
}

// Export writes the debate as JSON.
func (e *JSONExporter) Export(summary debate.Summary, doc *conversation.Document, w io.Writer) error {
	data := ExportData{
		Summary:      summary,
		Conversation: doc,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return "json"
}
