// Package comm routes messages between debate participants through named
// channels, decoupling senders from recipients.
package comm

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/athenslab/athens/internal/conversation"
	"github.com/athenslab/athens/internal/core"
)

// ChannelStatus represents the routing state of a channel.
type ChannelStatus string

const (
	ChannelActive     ChannelStatus = "active"
	ChannelPaused     ChannelStatus = "paused"
	ChannelSuspended  ChannelStatus = "suspended"
	ChannelTerminated ChannelStatus = "terminated"
)

// DeliveryStatus is the per-message delivery lifecycle marker.
type DeliveryStatus string

const (
	DeliveryPending      DeliveryStatus = "pending"
	DeliveryDelivered    DeliveryStatus = "delivered"
	DeliveryAcknowledged DeliveryStatus = "acknowledged"
	DeliveryFailed       DeliveryStatus = "failed"
)

var (
	// ErrChannelInactive is returned when publishing to a non-active channel.
	ErrChannelInactive = fmt.Errorf("comm: channel is not active")
	// ErrNotParticipant is returned when the sender or recipient is not a
	// channel member.
	ErrNotParticipant = fmt.Errorf("comm: not a channel participant")
	// ErrUnknownMessage is returned for delivery transitions on unknown IDs.
	ErrUnknownMessage = fmt.Errorf("comm: unknown message id")
)

// Listener is invoked synchronously for every message published to a
// channel.
type Listener func(*core.Message)

// ChannelStats tracks delivery counters for a channel.
type ChannelStats struct {
	MessagesSent         int       `json:"messages_sent"`
	MessagesDelivered    int       `json:"messages_delivered"`
	MessagesAcknowledged int       `json:"messages_acknowledged"`
	LastActivity         time.Time `json:"last_activity"`
}

// Channel is a named routing scope with a participant set, its own
// conversation and per-message delivery status.
type Channel struct {
	ID           string
	CreatedAt    time.Time
	Metadata     map[string]interface{}
	Conversation *conversation.Conversation

	status       ChannelStatus
	participants map[string]bool
	queue        []*core.Message
	delivery     map[string]DeliveryStatus
	listeners    []Listener
	stats        ChannelStats
	broadcast    bool
}

// NewChannel creates an active channel with the given participants.
func NewChannel(id string, participants []string) *Channel {
	ch := &Channel{
		ID:           id,
		CreatedAt:    time.Now(),
		Metadata:     make(map[string]interface{}),
		Conversation: conversation.New("channel_" + id),
		status:       ChannelActive,
		participants: make(map[string]bool),
		delivery:     make(map[string]DeliveryStatus),
		stats:        ChannelStats{LastActivity: time.Now()},
	}
	for _, p := range participants {
		ch.participants[p] = true
	}
	return ch
}

// Status returns the channel's routing state.
func (ch *Channel) Status() ChannelStatus { return ch.status }

// AddParticipant adds a member to the channel.
func (ch *Channel) AddParticipant(agent string) {
	ch.participants[agent] = true
}

// RemoveParticipant removes a member from the channel.
func (ch *Channel) RemoveParticipant(agent string) {
	delete(ch.participants, agent)
}

// IsParticipant reports channel membership.
func (ch *Channel) IsParticipant(agent string) bool {
	return ch.participants[agent]
}

// Participants returns the member set.
func (ch *Channel) Participants() []string {
	out := make([]string, 0, len(ch.participants))
	for p := range ch.participants {
		out = append(out, p)
	}
	return out
}

// Publish appends the message to the channel conversation, marks it
// pending and notifies every listener in registration order. It rejects
// without any state change when the channel is not active or membership
// rules are violated. A broadcast channel accepts any sender.
func (ch *Channel) Publish(m *core.Message) error {
	if ch.status != ChannelActive {
		return fmt.Errorf("%w: %s is %s", ErrChannelInactive, ch.ID, ch.status)
	}
	if !ch.broadcast && !ch.participants[m.Sender] {
		return fmt.Errorf("%w: sender %s", ErrNotParticipant, m.Sender)
	}
	if m.Recipient != "" && !ch.broadcast && !ch.participants[m.Recipient] {
		return fmt.Errorf("%w: recipient %s", ErrNotParticipant, m.Recipient)
	}

	if err := ch.Conversation.Append(m); err != nil {
		return fmt.Errorf("publish to %s: %w", ch.ID, err)
	}
	ch.queue = append(ch.queue, m)
	ch.delivery[m.ID] = DeliveryPending
	ch.stats.MessagesSent++
	ch.stats.LastActivity = time.Now()

	for _, l := range ch.listeners {
		ch.notify(l, m)
	}
	return nil
}

// notify calls a single listener; a panicking listener must not prevent
// subsequent listeners from running or corrupt channel state.
func (ch *Channel) notify(l Listener, m *core.Message) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("channel listener panicked", "channel", ch.ID, "message", m.ID, "panic", r)
		}
	}()
	l(m)
}

// Pending returns pending messages, optionally filtered to those
// addressed to recipient or to nobody in particular.
func (ch *Channel) Pending(recipient string) []*core.Message {
	var out []*core.Message
	for _, m := range ch.queue {
		if ch.delivery[m.ID] != DeliveryPending {
			continue
		}
		if recipient == "" || m.Recipient == recipient || m.Recipient == "" {
			out = append(out, m)
		}
	}
	return out
}

// MarkDelivered transitions a message to delivered.
func (ch *Channel) MarkDelivered(id string) error {
	return ch.transition(id, DeliveryDelivered)
}

// MarkAcknowledged transitions a message to acknowledged.
func (ch *Channel) MarkAcknowledged(id string) error {
	return ch.transition(id, DeliveryAcknowledged)
}

// MarkFailed transitions a message to failed.
func (ch *Channel) MarkFailed(id string) error {
	return ch.transition(id, DeliveryFailed)
}

func (ch *Channel) transition(id string, to DeliveryStatus) error {
	if _, ok := ch.delivery[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMessage, id)
	}
	ch.delivery[id] = to
	switch to {
	case DeliveryDelivered:
		ch.stats.MessagesDelivered++
	case DeliveryAcknowledged:
		ch.stats.MessagesAcknowledged++
	}
	return nil
}

// DeliveryStatusOf returns the delivery status for a message ID.
func (ch *Channel) DeliveryStatusOf(id string) (DeliveryStatus, bool) {
	s, ok := ch.delivery[id]
	return s, ok
}

// AddListener registers a listener; listeners run in registration order.
func (ch *Channel) AddListener(l Listener) {
	ch.listeners = append(ch.listeners, l)
}

// Pause suspends publishing. Only valid from active.
func (ch *Channel) Pause() {
	if ch.status == ChannelActive {
		ch.status = ChannelPaused
	}
}

// Resume reactivates a paused channel.
func (ch *Channel) Resume() {
	if ch.status == ChannelPaused {
		ch.status = ChannelActive
	}
}

// Terminate irreversibly closes the channel and clears the pending queue.
// The conversation log is preserved.
func (ch *Channel) Terminate() {
	ch.status = ChannelTerminated
	ch.queue = nil
}

// Stats returns delivery counters plus current totals.
func (ch *Channel) Stats() ChannelStats {
	return ch.stats
}

// PendingCount returns the number of messages still pending.
func (ch *Channel) PendingCount() int {
	n := 0
	for _, s := range ch.delivery {
		if s == DeliveryPending {
			n++
		}
	}
	return n
}
