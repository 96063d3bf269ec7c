// Package core contains the core domain types for athens.
package core

import (
	"fmt"
	"time"
)

// MessageCategory classifies what role a message plays in the debate.
type MessageCategory string

const (
	CategoryArgument      MessageCategory = "argument"
	CategoryCounter       MessageCategory = "counter"
	CategoryClarification MessageCategory = "clarification"
	CategorySummary       MessageCategory = "summary"
	CategoryUserInput     MessageCategory = "user_input"
	CategorySystem        MessageCategory = "system"
	CategoryGeneral       MessageCategory = "general"
)

// ParseCategory converts a string to a MessageCategory, defaulting to
// CategoryGeneral for unknown values.
func ParseCategory(s string) MessageCategory {
	switch MessageCategory(s) {
	case CategoryArgument, CategoryCounter, CategoryClarification,
		CategorySummary, CategoryUserInput, CategorySystem, CategoryGeneral:
		return MessageCategory(s)
	default:
		return CategoryGeneral
	}
}

// Message is a single utterance in a debate. Content, sender and category
// are fixed at creation; only the Context and Metadata maps may be
// extended afterwards.
type Message struct {
	ID         string                 `json:"id"`
	Content    string                 `json:"content"`
	Sender     string                 `json:"sender"`
	Recipient  string                 `json:"recipient,omitempty"` // empty = broadcast
	Category   MessageCategory        `json:"category"`
	CreatedAt  time.Time              `json:"created_at"`
	References []string               `json:"references,omitempty"`
	Context    map[string]interface{} `json:"context,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// NewMessage creates a message with a fresh ID and timestamp.
func NewMessage(sender, content string, category MessageCategory) *Message {
	return &Message{
		ID:        NewID(),
		Content:   content,
		Sender:    sender,
		Category:  category,
		CreatedAt: time.Now(),
		Context:   make(map[string]interface{}),
		Metadata:  make(map[string]interface{}),
	}
}

// NewArgument creates an argument message addressed to recipient.
func NewArgument(sender, content, recipient string) *Message {
	m := NewMessage(sender, content, CategoryArgument)
	m.Recipient = recipient
	return m
}

// NewCounter creates a counter message replying to replyTo.
func NewCounter(sender, content, replyTo, recipient string) *Message {
	m := NewMessage(sender, content, CategoryCounter)
	m.Recipient = recipient
	if replyTo != "" {
		m.AddReference(replyTo)
	}
	return m
}

// NewUserInput creates a user-input message.
func NewUserInput(sender, content string) *Message {
	if sender == "" {
		sender = "user"
	}
	return NewMessage(sender, content, CategoryUserInput)
}

// NewSummary creates a summary message referencing the given message IDs.
func NewSummary(sender, content string, referenced []string) *Message {
	m := NewMessage(sender, content, CategorySummary)
	for _, id := range referenced {
		m.AddReference(id)
	}
	return m
}

// AddReference records that this message references another. Duplicate
// references are ignored.
func (m *Message) AddReference(messageID string) {
	for _, ref := range m.References {
		if ref == messageID {
			return
		}
	}
	m.References = append(m.References, messageID)
}

// RemoveReference drops a reference if present.
func (m *Message) RemoveReference(messageID string) {
	for i, ref := range m.References {
		if ref == messageID {
			m.References = append(m.References[:i], m.References[i+1:]...)
			return
		}
	}
}

// IsReplyTo reports whether this message references messageID.
func (m *Message) IsReplyTo(messageID string) bool {
	for _, ref := range m.References {
		if ref == messageID {
			return true
		}
	}
	return false
}

// HasReferences reports whether the message references any other message.
func (m *Message) HasReferences() bool {
	return len(m.References) > 0
}

// SetContext stores a context value.
func (m *Message) SetContext(key string, value interface{}) {
	if m.Context == nil {
		m.Context = make(map[string]interface{})
	}
	m.Context[key] = value
}

// GetContext retrieves a context value.
func (m *Message) GetContext(key string) (interface{}, bool) {
	v, ok := m.Context[key]
	return v, ok
}

// SetMetadata stores a metadata value.
func (m *Message) SetMetadata(key string, value interface{}) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]interface{})
	}
	m.Metadata[key] = value
}

// GetMetadata retrieves a metadata value.
func (m *Message) GetMetadata(key string) (interface{}, bool) {
	v, ok := m.Metadata[key]
	return v, ok
}

// Clone returns a copy of the message with a fresh ID and deep-copied maps.
func (m *Message) Clone() *Message {
	c := *m
	c.ID = NewID()
	c.References = append([]string(nil), m.References...)
	c.Context = make(map[string]interface{}, len(m.Context))
	for k, v := range m.Context {
		c.Context[k] = v
	}
	c.Metadata = make(map[string]interface{}, len(m.Metadata))
	for k, v := range m.Metadata {
		c.Metadata[k] = v
	}
	return &c
}

// Preview returns a short display string for listings.
func (m *Message) Preview(maxLen int) string {
	content := m.Content
	if len(content) > maxLen && maxLen > 3 {
		content = content[:maxLen-3] + "..."
	}
	return fmt.Sprintf("[%s][%s]: %s", m.Sender, m.Category, content)
}

func (m *Message) String() string {
	return fmt.Sprintf("[%s]: %s", m.Sender, m.Content)
}
