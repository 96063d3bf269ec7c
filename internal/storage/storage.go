// Package storage provides persistence for debate sessions.
package storage

import (
	"os"
	"path/filepath"
	"time"

	"github.com/athenslab/athens/internal/conversation"
	"github.com/athenslab/athens/internal/core"
)

// DebateRecord is the persisted form of a debate.
type DebateRecord struct {
	ID           string                 `json:"id"`
	Topic        string                 `json:"topic"`
	State        core.DebateState       `json:"state"`
	Reason       core.TerminationReason `json:"termination_reason,omitempty"`
	Participants [2]string              `json:"participants"`
	Rounds       []*core.DebateRound    `json:"rounds,omitempty"`
	Metrics      *core.DebateMetrics    `json:"metrics,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty"`
}

// DebateSummary is a lightweight representation for listings.
type DebateSummary struct {
	ID           string                 `json:"id"`
	Topic        string                 `json:"topic"`
	State        core.DebateState       `json:"state"`
	Reason       core.TerminationReason `json:"termination_reason,omitempty"`
	MessageCount int                    `json:"message_count"`
	CreatedAt    time.Time              `json:"created_at"`
}

// Storage defines the interface for debate persistence.
type Storage interface {
	// Initialize sets up the storage (creates tables, etc.)
	Initialize() error

	// Close closes the storage connection.
	Close() error

	// Debate operations
	SaveDebate(rec *DebateRecord) error
	GetDebate(id string) (*DebateRecord, error)
	ListDebates(limit, offset int) ([]*DebateSummary, error)
	DeleteDebate(id string) error

	// Conversation operations. Load replays Append for every message in
	// original order so indices rebuild identically.
	SaveConversation(debateID string, conv *conversation.Conversation) error
	LoadConversation(debateID string) (*conversation.Conversation, error)
}

// DefaultDBPath returns the default database location.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "athens.db"
	}
	return filepath.Join(home, ".athens", "athens.db")
}
