package comm

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/athenslab/athens/internal/conversation"
	"github.com/athenslab/athens/internal/core"
)

// BroadcastChannelID names the always-present broadcast channel.
const BroadcastChannelID = "broadcast"

// ErrChannelExists is returned when creating a channel whose ID is taken.
var ErrChannelExists = fmt.Errorf("comm: channel already exists")

// ErrChannelNotFound is returned when addressing an unknown channel.
var ErrChannelNotFound = fmt.Errorf("comm: channel not found")

// RoutingRule maps a message to a channel ID. An empty return means the
// rule does not apply.
type RoutingRule func(*core.Message) string

// GlobalListener observes every message routed through any channel.
type GlobalListener func(m *core.Message, channelID string)

// Router maintains the channel registry, the broadcast channel and the
// agent-to-channel membership map.
type Router struct {
	channels      map[string]*Channel
	agentChannels map[string]map[string]bool
	rules         []RoutingRule
	global        []GlobalListener
}

// NewRouter creates a router with its broadcast channel in place.
func NewRouter() *Router {
	r := &Router{
		channels:      make(map[string]*Channel),
		agentChannels: make(map[string]map[string]bool),
	}
	broadcast := NewChannel(BroadcastChannelID, nil)
	broadcast.broadcast = true
	r.channels[BroadcastChannelID] = broadcast
	r.attachGlobal(broadcast)
	return r
}

// CreateChannel registers a new channel with the given participants.
func (r *Router) CreateChannel(id string, participants []string) (*Channel, error) {
	if _, exists := r.channels[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrChannelExists, id)
	}
	ch := NewChannel(id, participants)
	r.channels[id] = ch
	for _, p := range participants {
		r.join(p, id)
	}
	r.attachGlobal(ch)
	return ch, nil
}

// Channel returns a channel by ID, or nil.
func (r *Router) Channel(id string) *Channel {
	return r.channels[id]
}

// Broadcast returns the broadcast channel.
func (r *Router) Broadcast() *Channel {
	return r.channels[BroadcastChannelID]
}

// DeleteChannel terminates and removes a channel. The broadcast channel
// cannot be deleted.
func (r *Router) DeleteChannel(id string) bool {
	if id == BroadcastChannelID {
		return false
	}
	ch, ok := r.channels[id]
	if !ok {
		return false
	}
	for p := range ch.participants {
		r.leave(p, id)
	}
	ch.Terminate()
	delete(r.channels, id)
	return true
}

// Join adds an agent to a channel's participant set.
func (r *Router) Join(channelID, agent string) error {
	ch, ok := r.channels[channelID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrChannelNotFound, channelID)
	}
	ch.AddParticipant(agent)
	r.join(agent, channelID)
	return nil
}

// Leave removes an agent from a channel's participant set.
func (r *Router) Leave(channelID, agent string) error {
	ch, ok := r.channels[channelID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrChannelNotFound, channelID)
	}
	ch.RemoveParticipant(agent)
	r.leave(agent, channelID)
	return nil
}

// Send publishes a message to the named channel, or routes it when
// channelID is empty: user rules first (registration order, first match
// wins), then a direct channel for addressed messages (created lazily),
// then the broadcast channel.
func (r *Router) Send(m *core.Message, channelID string) error {
	if channelID == "" {
		channelID = r.route(m)
	}
	ch, ok := r.channels[channelID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrChannelNotFound, channelID)
	}
	return ch.Publish(m)
}

// SendDirect sends a pairwise message through the deterministic direct
// channel for the two agents.
func (r *Router) SendDirect(sender, recipient, content string, cat core.MessageCategory) error {
	m := core.NewMessage(sender, content, cat)
	m.Recipient = recipient
	return r.Send(m, r.ensureDirect(sender, recipient))
}

// SendBroadcast publishes a message to the broadcast channel.
func (r *Router) SendBroadcast(sender, content string, cat core.MessageCategory) error {
	return r.Send(core.NewMessage(sender, content, cat), BroadcastChannelID)
}

// AddRule appends a routing rule; rules run in registration order.
func (r *Router) AddRule(rule RoutingRule) {
	r.rules = append(r.rules, rule)
}

// AddGlobalListener observes messages on every channel, including
// channels created later.
func (r *Router) AddGlobalListener(l GlobalListener) {
	r.global = append(r.global, l)
	for id, ch := range r.channels {
		channelID := id
		ch.AddListener(func(m *core.Message) { l(m, channelID) })
	}
}

// PendingMessage is a pending message together with its channel.
type PendingMessage struct {
	Message   *core.Message
	ChannelID string
}

// PendingFor unions pending messages across every channel the agent
// belongs to, plus broadcast messages from other senders.
func (r *Router) PendingFor(agent string) []PendingMessage {
	var out []PendingMessage
	for channelID := range r.agentChannels[agent] {
		ch, ok := r.channels[channelID]
		if !ok {
			continue
		}
		for _, m := range ch.Pending(agent) {
			out = append(out, PendingMessage{Message: m, ChannelID: channelID})
		}
	}
	for _, m := range r.Broadcast().Pending("") {
		if m.Sender != agent {
			out = append(out, PendingMessage{Message: m, ChannelID: BroadcastChannelID})
		}
	}
	return out
}

// Acknowledge marks a message acknowledged on its channel.
func (r *Router) Acknowledge(messageID, channelID string) error {
	ch, ok := r.channels[channelID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrChannelNotFound, channelID)
	}
	return ch.MarkAcknowledged(messageID)
}

// ChannelsOf returns the IDs of channels the agent belongs to.
func (r *Router) ChannelsOf(agent string) []string {
	out := make([]string, 0, len(r.agentChannels[agent]))
	for id := range r.agentChannels[agent] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// DirectConversation returns the direct-channel conversation between two
// agents, or nil if they never exchanged direct messages.
func (r *Router) DirectConversation(a, b string) *conversation.Conversation {
	ch, ok := r.channels[DirectChannelID(a, b)]
	if !ok {
		return nil
	}
	return ch.Conversation
}

// DirectChannelID returns the deterministic pairwise channel ID for two
// agents, keyed by the sorted pair.
func DirectChannelID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("direct_%s_%s", a, b)
}

// PauseAll pauses every channel.
func (r *Router) PauseAll() {
	for _, ch := range r.channels {
		ch.Pause()
	}
}

// ResumeAll resumes every paused channel.
func (r *Router) ResumeAll() {
	for _, ch := range r.channels {
		ch.Resume()
	}
}

// RouterStats aggregates channel statistics.
type RouterStats struct {
	TotalChannels  int                     `json:"total_channels"`
	ActiveChannels int                     `json:"active_channels"`
	TotalMessages  int                     `json:"total_messages"`
	TotalAgents    int                     `json:"total_agents"`
	ByChannel      map[string]ChannelStats `json:"by_channel"`
}

// Stats summarizes the router and every channel.
func (r *Router) Stats() RouterStats {
	stats := RouterStats{
		TotalChannels: len(r.channels),
		TotalAgents:   len(r.agentChannels),
		ByChannel:     make(map[string]ChannelStats, len(r.channels)),
	}
	for id, ch := range r.channels {
		if ch.status == ChannelActive {
			stats.ActiveChannels++
		}
		stats.TotalMessages += ch.Conversation.Len()
		stats.ByChannel[id] = ch.Stats()
	}
	return stats
}

func (r *Router) route(m *core.Message) string {
	for _, rule := range r.rules {
		id := r.applyRule(rule, m)
		if id != "" {
			return id
		}
	}
	if m.Recipient != "" {
		return r.ensureDirect(m.Sender, m.Recipient)
	}
	return BroadcastChannelID
}

// applyRule isolates rule panics so one bad rule cannot break routing.
func (r *Router) applyRule(rule RoutingRule, m *core.Message) (id string) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Warn("routing rule panicked", "message", m.ID, "panic", rec)
			id = ""
		}
	}()
	return rule(m)
}

func (r *Router) ensureDirect(a, b string) string {
	id := DirectChannelID(a, b)
	if _, ok := r.channels[id]; !ok {
		// CreateChannel cannot fail here: the ID was just checked.
		r.CreateChannel(id, []string{a, b})
	}
	return id
}

func (r *Router) attachGlobal(ch *Channel) {
	channelID := ch.ID
	for _, l := range r.global {
		listener := l
		ch.AddListener(func(m *core.Message) { listener(m, channelID) })
	}
}

func (r *Router) join(agent, channelID string) {
	if r.agentChannels[agent] == nil {
		r.agentChannels[agent] = make(map[string]bool)
	}
	r.agentChannels[agent][channelID] = true
}

func (r *Router) leave(agent, channelID string) {
	if set, ok := r.agentChannels[agent]; ok {
		delete(set, channelID)
	}
}
