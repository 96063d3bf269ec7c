// Package conversation stores the ordered message log of a debate and
// maintains secondary indices over it.
package conversation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/athenslab/athens/internal/core"
)

// ErrDuplicateID is returned when appending a message whose ID already
// exists in the conversation.
var ErrDuplicateID = fmt.Errorf("conversation: duplicate message id")

// Conversation is an append-only log of messages with by-sender,
// by-category and reverse-reference indices. Indices are updated
// atomically with the log on every mutation; they are always rebuildable
// from the log alone.
type Conversation struct {
	ID        string
	CreatedAt time.Time
	Metadata  map[string]interface{}

	messages []*core.Message
	byID     map[string]*core.Message
	bySender map[string][]string
	byCat    map[core.MessageCategory][]string
	replies  map[string][]string // referenced id -> ids of messages referencing it
}

// New creates an empty conversation. An empty id gets a timestamped one.
func New(id string) *Conversation {
	if id == "" {
		id = core.NewConversationID()
	}
	return &Conversation{
		ID:        id,
		CreatedAt: time.Now(),
		Metadata:  make(map[string]interface{}),
		byID:      make(map[string]*core.Message),
		bySender:  make(map[string][]string),
		byCat:     make(map[core.MessageCategory][]string),
		replies:   make(map[string][]string),
	}
}

// Append adds a message to the log and updates every index. It fails with
// ErrDuplicateID without touching any state if the ID already exists.
func (c *Conversation) Append(m *core.Message) error {
	if _, exists := c.byID[m.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, m.ID)
	}

	c.messages = append(c.messages, m)
	c.byID[m.ID] = m
	c.bySender[m.Sender] = append(c.bySender[m.Sender], m.ID)
	c.byCat[m.Category] = append(c.byCat[m.Category], m.ID)
	for _, ref := range m.References {
		c.replies[ref] = append(c.replies[ref], m.ID)
	}
	return nil
}

// Get returns the message with the given ID, or nil.
func (c *Conversation) Get(id string) *core.Message {
	return c.byID[id]
}

// Messages returns a copy of the full log in temporal order.
func (c *Conversation) Messages() []*core.Message {
	out := make([]*core.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// BySender returns messages from sender in temporal order. A limit > 0
// keeps only the most recent ones.
func (c *Conversation) BySender(sender string, limit int) []*core.Message {
	return c.resolve(tail(c.bySender[sender], limit))
}

// ByCategory returns messages of the given category in temporal order. A
// limit > 0 keeps only the most recent ones.
func (c *Conversation) ByCategory(cat core.MessageCategory, limit int) []*core.Message {
	return c.resolve(tail(c.byCat[cat], limit))
}

// Recent returns the last n messages.
func (c *Conversation) Recent(n int) []*core.Message {
	if n >= len(c.messages) {
		return c.Messages()
	}
	out := make([]*core.Message, n)
	copy(out, c.messages[len(c.messages)-n:])
	return out
}

// Since returns messages created strictly after t.
func (c *Conversation) Since(t time.Time) []*core.Message {
	var out []*core.Message
	for _, m := range c.messages {
		if m.CreatedAt.After(t) {
			out = append(out, m)
		}
	}
	return out
}

// InTimeframe returns messages with start <= created <= end.
func (c *Conversation) InTimeframe(start, end time.Time) []*core.Message {
	var out []*core.Message
	for _, m := range c.messages {
		if !m.CreatedAt.Before(start) && !m.CreatedAt.After(end) {
			out = append(out, m)
		}
	}
	return out
}

// References returns the messages referenced by the message with the
// given ID. Dangling reference IDs are skipped.
func (c *Conversation) References(id string) []*core.Message {
	m := c.byID[id]
	if m == nil {
		return nil
	}
	var out []*core.Message
	for _, ref := range m.References {
		if target := c.byID[ref]; target != nil {
			out = append(out, target)
		}
	}
	return out
}

// Replies returns the messages that reference the given ID.
func (c *Conversation) Replies(id string) []*core.Message {
	return c.resolve(c.replies[id])
}

// Thread reconstructs the full reply thread containing id by following
// both reference and reverse-reference edges. Each ID is visited at most
// once, so cyclic reference graphs terminate. The result is sorted by
// timestamp.
func (c *Conversation) Thread(id string) []*core.Message {
	visited := make(map[string]bool)
	var thread []*core.Message

	var collect func(string)
	collect = func(msgID string) {
		if visited[msgID] {
			return
		}
		m := c.byID[msgID]
		if m == nil {
			return
		}
		visited[msgID] = true
		thread = append(thread, m)

		for _, ref := range m.References {
			collect(ref)
		}
		for _, reply := range c.replies[msgID] {
			collect(reply)
		}
	}
	collect(id)

	sort.SliceStable(thread, func(i, j int) bool {
		return thread[i].CreatedAt.Before(thread[j].CreatedAt)
	})
	return thread
}

// Search returns messages whose content contains query.
func (c *Conversation) Search(query string, caseSensitive bool) []*core.Message {
	if !caseSensitive {
		query = strings.ToLower(query)
	}
	var out []*core.Message
	for _, m := range c.messages {
		content := m.Content
		if !caseSensitive {
			content = strings.ToLower(content)
		}
		if strings.Contains(content, query) {
			out = append(out, m)
		}
	}
	return out
}

// Filter returns messages for which keep returns true.
func (c *Conversation) Filter(keep func(*core.Message) bool) []*core.Message {
	var out []*core.Message
	for _, m := range c.messages {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}

// Remove deletes a message and prunes every index entry and backlink for
// it. It reports whether the message existed.
func (c *Conversation) Remove(id string) bool {
	m := c.byID[id]
	if m == nil {
		return false
	}

	for i, msg := range c.messages {
		if msg.ID == id {
			c.messages = append(c.messages[:i], c.messages[i+1:]...)
			break
		}
	}
	delete(c.byID, id)
	c.bySender[m.Sender] = removeID(c.bySender[m.Sender], id)
	c.byCat[m.Category] = removeID(c.byCat[m.Category], id)
	for _, ref := range m.References {
		c.replies[ref] = removeID(c.replies[ref], id)
	}
	delete(c.replies, id)
	return true
}

// Clear drops the log and all indices.
func (c *Conversation) Clear() {
	c.messages = nil
	c.byID = make(map[string]*core.Message)
	c.bySender = make(map[string][]string)
	c.byCat = make(map[core.MessageCategory][]string)
	c.replies = make(map[string][]string)
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// IsEmpty reports whether the log holds no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.messages) == 0
}

// RecentExchanges pairs recent messages with their replies, newest
// exchanges last, up to count exchanges.
func (c *Conversation) RecentExchanges(count int) []Exchange {
	var exchanges []Exchange
	processed := make(map[string]bool)

	for i := len(c.messages) - 1; i >= 0 && len(exchanges) < count; i-- {
		m := c.messages[i]
		if processed[m.ID] {
			continue
		}
		replies := c.Replies(m.ID)
		if len(replies) > 0 || !m.HasReferences() {
			exchanges = append(exchanges, Exchange{Message: m, Replies: replies})
			processed[m.ID] = true
			for _, r := range replies {
				processed[r.ID] = true
			}
		}
	}

	// Reverse to oldest-first.
	for i, j := 0, len(exchanges)-1; i < j; i, j = i+1, j-1 {
		exchanges[i], exchanges[j] = exchanges[j], exchanges[i]
	}
	return exchanges
}

// Exchange is a message together with the replies it received.
type Exchange struct {
	Message *core.Message
	Replies []*core.Message
}

// ContextFor gathers messages relevant to an agent: the recent tail, the
// agent's own messages and messages addressed to or mentioning it,
// deduplicated and sorted by timestamp.
func (c *Conversation) ContextFor(agent string, depth int) []*core.Message {
	seen := make(map[string]bool)
	var out []*core.Message

	add := func(msgs []*core.Message) {
		for _, m := range msgs {
			if !seen[m.ID] {
				seen[m.ID] = true
				out = append(out, m)
			}
		}
	}

	add(c.Recent(depth))
	add(c.BySender(agent, depth))
	add(c.Filter(func(m *core.Message) bool {
		return m.Recipient == agent || strings.Contains(m.Content, agent)
	}))

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Statistics summarizes the conversation.
type Statistics struct {
	TotalMessages   int                          `json:"total_messages"`
	BySender        map[string]int               `json:"by_sender,omitempty"`
	ByCategory      map[core.MessageCategory]int `json:"by_category,omitempty"`
	DurationSeconds float64                      `json:"duration_seconds"`
	WithReferences  int                          `json:"messages_with_references"`
	ReplyRate       float64                      `json:"reply_rate"`
	PerHour         float64                      `json:"average_messages_per_hour"`
	FirstMessageAt  *time.Time                   `json:"first_message_at,omitempty"`
	LastMessageAt   *time.Time                   `json:"last_message_at,omitempty"`
}

// Stats computes summary statistics over the log.
func (c *Conversation) Stats() Statistics {
	stats := Statistics{TotalMessages: len(c.messages)}
	if len(c.messages) == 0 {
		return stats
	}

	stats.BySender = make(map[string]int, len(c.bySender))
	for sender, ids := range c.bySender {
		stats.BySender[sender] = len(ids)
	}
	stats.ByCategory = make(map[core.MessageCategory]int, len(c.byCat))
	for cat, ids := range c.byCat {
		stats.ByCategory[cat] = len(ids)
	}

	first := c.messages[0].CreatedAt
	last := c.messages[len(c.messages)-1].CreatedAt
	stats.FirstMessageAt = &first
	stats.LastMessageAt = &last
	stats.DurationSeconds = last.Sub(first).Seconds()

	for _, m := range c.messages {
		if m.HasReferences() {
			stats.WithReferences++
		}
	}
	stats.ReplyRate = float64(stats.WithReferences) / float64(stats.TotalMessages)
	if stats.DurationSeconds > 0 {
		stats.PerHour = float64(stats.TotalMessages) / (stats.DurationSeconds / 3600)
	}
	return stats
}

func (c *Conversation) resolve(ids []string) []*core.Message {
	out := make([]*core.Message, 0, len(ids))
	for _, id := range ids {
		if m := c.byID[id]; m != nil {
			out = append(out, m)
		}
	}
	return out
}

func tail(ids []string, limit int) []string {
	if limit > 0 && len(ids) > limit {
		return ids[len(ids)-limit:]
	}
	return ids
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
