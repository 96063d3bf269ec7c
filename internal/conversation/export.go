package conversation

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/athenslab/athens/internal/core"
)

// Document is the full export of a conversation: enough to reconstruct
// the log, reference graph and indices via repeated Append.
type Document struct {
	ConversationID string                 `json:"conversation_id"`
	CreatedAt      time.Time              `json:"created_at"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	Messages       []*core.Message        `json:"messages"`
	Statistics     Statistics             `json:"statistics"`
}

// Export produces the conversation's export document.
func (c *Conversation) Export() *Document {
	return &Document{
		ConversationID: c.ID,
		CreatedAt:      c.CreatedAt,
		Metadata:       c.Metadata,
		Messages:       c.Messages(),
		Statistics:     c.Stats(),
	}
}

// ExportJSON renders the export document as indented JSON.
func (c *Conversation) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(c.Export(), "", "  ")
}

// Import rebuilds a conversation from a document by replaying Append for
// every message in original order, so indices end up identical to the
// exporting side's.
func Import(doc *Document) (*Conversation, error) {
	c := New(doc.ConversationID)
	c.CreatedAt = doc.CreatedAt
	if doc.Metadata != nil {
		c.Metadata = doc.Metadata
	}
	for _, m := range doc.Messages {
		if err := c.Append(m); err != nil {
			return nil, fmt.Errorf("import message %s: %w", m.ID, err)
		}
	}
	return c, nil
}

// ImportJSON parses an export document and rebuilds the conversation.
func ImportJSON(data []byte) (*Conversation, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse conversation document: %w", err)
	}
	return Import(&doc)
}
