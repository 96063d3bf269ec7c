package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/athenslab/athens/internal/conversation"
	"github.com/athenslab/athens/internal/core"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &SQLiteStorage{
		db:   db,
		path: dbPath,
	}, nil
}

// Initialize creates the database schema.
func (s *SQLiteStorage) Initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS debates (
		id TEXT PRIMARY KEY,
		topic TEXT NOT NULL,
		state TEXT NOT NULL,
		termination_reason TEXT,
		participants_json TEXT NOT NULL,
		rounds_json TEXT,
		metrics_json TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		completed_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS conversations (
		debate_id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		metadata_json TEXT,
		FOREIGN KEY (debate_id) REFERENCES debates(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		debate_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		sender TEXT NOT NULL,
		recipient TEXT,
		category TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		references_json TEXT,
		context_json TEXT,
		metadata_json TEXT,
		FOREIGN KEY (debate_id) REFERENCES debates(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_messages_debate_id ON messages(debate_id, position);
	CREATE INDEX IF NOT EXISTS idx_debates_state ON debates(state);
	CREATE INDEX IF NOT EXISTS idx_debates_created_at ON debates(created_at DESC);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// SaveDebate inserts or replaces a debate record.
func (s *SQLiteStorage) SaveDebate(rec *DebateRecord) error {
	participants, err := json.Marshal(rec.Participants)
	if err != nil {
		return fmt.Errorf("failed to marshal participants: %w", err)
	}
	rounds, err := json.Marshal(rec.Rounds)
	if err != nil {
		return fmt.Errorf("failed to marshal rounds: %w", err)
	}
	metrics, err := json.Marshal(rec.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	rec.UpdatedAt = time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = rec.UpdatedAt
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO debates
		(id, topic, state, termination_reason, participants_json, rounds_json, metrics_json, created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Topic, string(rec.State), string(rec.Reason),
		string(participants), string(rounds), string(metrics),
		rec.CreatedAt, rec.UpdatedAt, rec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save debate: %w", err)
	}
	return nil
}

// GetDebate retrieves a debate by ID. A missing debate returns nil, nil.
func (s *SQLiteStorage) GetDebate(id string) (*DebateRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, topic, state, termination_reason, participants_json, rounds_json, metrics_json, created_at, updated_at, completed_at
		FROM debates WHERE id = ?`, id)

	var rec DebateRecord
	var reason sql.NullString
	var participants, rounds, metrics sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(&rec.ID, &rec.Topic, (*string)(&rec.State), &reason,
		&participants, &rounds, &metrics,
		&rec.CreatedAt, &rec.UpdatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get debate: %w", err)
	}

	if reason.Valid {
		rec.Reason = core.TerminationReason(reason.String)
	}
	if participants.Valid {
		if err := json.Unmarshal([]byte(participants.String), &rec.Participants); err != nil {
			return nil, fmt.Errorf("failed to unmarshal participants: %w", err)
		}
	}
	if rounds.Valid && rounds.String != "null" {
		if err := json.Unmarshal([]byte(rounds.String), &rec.Rounds); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rounds: %w", err)
		}
	}
	if metrics.Valid && metrics.String != "null" {
		if err := json.Unmarshal([]byte(metrics.String), &rec.Metrics); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
		}
	}
	if completedAt.Valid {
		rec.CompletedAt = &completedAt.Time
	}
	return &rec, nil
}

// ListDebates returns debate summaries, newest first.
func (s *SQLiteStorage) ListDebates(limit, offset int) ([]*DebateSummary, error) {
	rows, err := s.db.Query(`
		SELECT d.id, d.topic, d.state, d.termination_reason, d.created_at,
		       (SELECT COUNT(*) FROM messages m WHERE m.debate_id = d.id) AS message_count
		FROM debates d
		ORDER BY d.created_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list debates: %w", err)
	}
	defer rows.Close()

	var out []*DebateSummary
	for rows.Next() {
		var sum DebateSummary
		var reason sql.NullString
		if err := rows.Scan(&sum.ID, &sum.Topic, (*string)(&sum.State), &reason, &sum.CreatedAt, &sum.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to scan debate row: %w", err)
		}
		if reason.Valid {
			sum.Reason = core.TerminationReason(reason.String)
		}
		out = append(out, &sum)
	}
	return out, rows.Err()
}

// DeleteDebate removes a debate and its messages.
func (s *SQLiteStorage) DeleteDebate(id string) error {
	_, err := s.db.Exec(`DELETE FROM debates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete debate: %w", err)
	}
	return nil
}

// SaveConversation persists the full message log for a debate, replacing
// any previous snapshot.
func (s *SQLiteStorage) SaveConversation(debateID string, conv *conversation.Conversation) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	metadata, err := json.Marshal(conv.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO conversations (debate_id, conversation_id, created_at, metadata_json)
		VALUES (?, ?, ?, ?)`,
		debateID, conv.ID, conv.CreatedAt, string(metadata)); err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM messages WHERE debate_id = ?`, debateID); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO messages
		(id, debate_id, position, sender, recipient, category, content, created_at, references_json, context_json, metadata_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, m := range conv.Messages() {
		refs, err := json.Marshal(m.References)
		if err != nil {
			return fmt.Errorf("failed to marshal references: %w", err)
		}
		mctx, err := json.Marshal(m.Context)
		if err != nil {
			return fmt.Errorf("failed to marshal context: %w", err)
		}
		meta, err := json.Marshal(m.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}

		if _, err := stmt.Exec(m.ID, debateID, i, m.Sender, m.Recipient,
			string(m.Category), m.Content, m.CreatedAt,
			string(refs), string(mctx), string(meta)); err != nil {
			return fmt.Errorf("failed to insert message %s: %w", m.ID, err)
		}
	}

	return tx.Commit()
}

// LoadConversation rebuilds a conversation by replaying Append for every
// stored message in position order.
func (s *SQLiteStorage) LoadConversation(debateID string) (*conversation.Conversation, error) {
	row := s.db.QueryRow(`
		SELECT conversation_id, created_at, metadata_json
		FROM conversations WHERE debate_id = ?`, debateID)

	var convID string
	var createdAt time.Time
	var metadata sql.NullString
	err := row.Scan(&convID, &createdAt, &metadata)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	conv := conversation.New(convID)
	conv.CreatedAt = createdAt
	if metadata.Valid && metadata.String != "null" {
		if err := json.Unmarshal([]byte(metadata.String), &conv.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	rows, err := s.db.Query(`
		SELECT id, sender, recipient, category, content, created_at, references_json, context_json, metadata_json
		FROM messages WHERE debate_id = ?
		ORDER BY position ASC`, debateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m core.Message
		var recipient, refs, mctx, meta sql.NullString
		var category string
		if err := rows.Scan(&m.ID, &m.Sender, &recipient, &category, &m.Content,
			&m.CreatedAt, &refs, &mctx, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		m.Category = core.ParseCategory(category)
		if recipient.Valid {
			m.Recipient = recipient.String
		}
		if refs.Valid && refs.String != "null" {
			if err := json.Unmarshal([]byte(refs.String), &m.References); err != nil {
				return nil, fmt.Errorf("failed to unmarshal references: %w", err)
			}
		}
		if mctx.Valid && mctx.String != "null" {
			if err := json.Unmarshal([]byte(mctx.String), &m.Context); err != nil {
				return nil, fmt.Errorf("failed to unmarshal context: %w", err)
			}
		}
		if meta.Valid && meta.String != "null" {
			if err := json.Unmarshal([]byte(meta.String), &m.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}

		if err := conv.Append(&m); err != nil {
			return nil, fmt.Errorf("failed to replay message %s: %w", m.ID, err)
		}
	}

	return conv, rows.Err()
}
