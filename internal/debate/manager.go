// Package debate orchestrates a turn-based exchange between two agents,
// tracking state, rounds, metrics and termination conditions.
package debate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/athenslab/athens/internal/agent"
	"github.com/athenslab/athens/internal/comm"
	"github.com/athenslab/athens/internal/conversation"
	"github.com/athenslab/athens/internal/core"
	"github.com/athenslab/athens/internal/window"
)

// ChannelID names the shared debate channel.
const ChannelID = "debate_main"

var (
	// ErrInvalidState is returned when an operation is called in a state
	// that does not allow it.
	ErrInvalidState = fmt.Errorf("debate: invalid state for operation")
	// ErrEmptyTopic is returned when starting a debate without a topic.
	ErrEmptyTopic = fmt.Errorf("debate: topic is required")
)

// Callbacks are observer hooks invoked synchronously at well-defined
// points. Any hook may be nil.
type Callbacks struct {
	OnStateChanged   func(from, to core.DebateState)
	OnRoundStart     func(number int, initiator string)
	OnRoundComplete  func(round *core.DebateRound)
	OnMessageSent    func(m *core.Message)
	OnDebateComplete func(reason core.TerminationReason)
}

// Manager drives alternating turns between two participants. It is a
// single logical thread of control: callers must serialize access to one
// Manager, and independent debates need independent Managers.
type Manager struct {
	first  agent.Agent
	second agent.Agent

	topic    string
	settings core.Settings

	state          core.DebateState
	currentRound   int
	currentSpeaker agent.Agent
	reason         core.TerminationReason

	router    *comm.Router
	conv      *conversation.Conversation
	assembler *window.Assembler

	rounds    []*core.DebateRound
	metrics   *core.DebateMetrics
	callbacks Callbacks
}

// New creates a debate manager in the preparing state.
func New(first, second agent.Agent, topic string, settings core.Settings) *Manager {
	settings.Clamp()

	m := &Manager{
		first:          first,
		second:         second,
		topic:          topic,
		settings:       settings,
		state:          core.StatePreparing,
		currentSpeaker: first,
		router:         comm.NewRouter(),
		conv:           conversation.New(core.NewDebateID()),
		metrics:        core.NewDebateMetrics(),
	}
	m.assembler = window.New(m.conv, settings.ContextTokenBudget)

	m.router.CreateChannel(ChannelID, []string{first.Name(), second.Name()})
	m.router.AddGlobalListener(func(msg *core.Message, channelID string) {
		if channelID != ChannelID {
			return
		}
		// The shared channel feeds the debate conversation.
		if err := m.conv.Append(msg); err != nil {
			slog.Warn("failed to record message", "message", msg.ID, "error", err)
			return
		}
		if m.callbacks.OnMessageSent != nil {
			m.callbacks.OnMessageSent(msg)
		}
	})
	return m
}

// SetCallbacks installs observer hooks.
func (m *Manager) SetCallbacks(cb Callbacks) {
	m.callbacks = cb
}

// State returns the current debate state.
func (m *Manager) State() core.DebateState { return m.state }

// Conversation returns the shared debate conversation.
func (m *Manager) Conversation() *conversation.Conversation { return m.conv }

// Router returns the communication router.
func (m *Manager) Router() *comm.Router { return m.router }

// Reason returns the termination reason, empty while running.
func (m *Manager) Reason() core.TerminationReason { return m.reason }

// Rounds returns the recorded rounds.
func (m *Manager) Rounds() []*core.DebateRound {
	out := make([]*core.DebateRound, len(m.rounds))
	copy(out, m.rounds)
	return out
}

// Metrics returns the running metrics.
func (m *Manager) Metrics() *core.DebateMetrics { return m.metrics }

// changeState applies a transition if the table allows it. Rejected
// transitions are logged and leave state unchanged.
func (m *Manager) changeState(to core.DebateState) bool {
	if !core.IsValidTransition(m.state, to) {
		slog.Warn("rejected state transition", "from", m.state, "to", to)
		return false
	}
	from := m.state
	m.state = to
	slog.Info("debate state changed", "from", from, "to", to)
	if m.callbacks.OnStateChanged != nil {
		m.callbacks.OnStateChanged(from, to)
	}
	return true
}

// Start opens the debate. Valid only from preparing with a non-empty
// topic. With an empty initialStatement the first participant generates
// the opening from a topic-only prompt. On success the current speaker
// becomes the second participant and the state becomes active; any
// failure aborts the debate with a system-error reason.
func (m *Manager) Start(ctx context.Context, initialStatement string) error {
	if m.state != core.StatePreparing {
		return fmt.Errorf("%w: start in %s", ErrInvalidState, m.state)
	}
	if m.topic == "" {
		return ErrEmptyTopic
	}

	m.currentRound = 1
	m.currentSpeaker = m.first
	round := core.NewDebateRound(1, m.first.Name())
	m.rounds = append(m.rounds, round)
	if m.callbacks.OnRoundStart != nil {
		m.callbacks.OnRoundStart(1, m.first.Name())
	}

	content := initialStatement
	category := core.CategoryArgument
	start := time.Now()
	if content == "" {
		reply := m.first.Respond(ctx, fmt.Sprintf("Topic: %s\nPresent your opening argument.", m.topic))
		content = reply.Content
		category = reply.Category
	}

	msg := core.NewMessage(m.first.Name(), content, category)
	msg.Recipient = m.second.Name()

	if err := m.router.Send(msg, ChannelID); err != nil {
		m.abort(fmt.Errorf("send opening message: %w", err))
		return fmt.Errorf("debate: start failed: %w", err)
	}

	round.AddMessage(msg.ID)
	m.metrics.RecordMessage(m.first.Name(), time.Since(start), m.quality(content))
	m.currentSpeaker = m.second

	if !m.changeState(core.StateActive) {
		m.abort(fmt.Errorf("cannot activate from %s", m.state))
		return fmt.Errorf("debate: start failed: invalid transition")
	}
	slog.Info("debate started", "topic", m.topic, "opener", m.first.Name())
	return nil
}

// ProcessRound runs one turn of the current speaker. It returns whether
// the debate should continue. Valid only while active. Invalid responses
// are logged and skipped (soft-fail); unexpected failures abort the
// debate with a system-error reason.
func (m *Manager) ProcessRound(ctx context.Context) (cont bool, err error) {
	if m.state != core.StateActive {
		return false, fmt.Errorf("%w: process round in %s", ErrInvalidState, m.state)
	}

	defer func() {
		if r := recover(); r != nil {
			m.abort(fmt.Errorf("panic during turn: %v", r))
			cont, err = false, fmt.Errorf("debate: turn processing failed: %v", r)
		}
	}()

	speaker := m.currentSpeaker
	other := m.otherSpeaker()
	start := time.Now()

	ctxMessages := m.assembler.Build(speaker.Name(), 0)
	contextText := m.assembler.Format(speaker.Name(), 0)
	prompt := fmt.Sprintf("Topic: %s\n\n%s\n\nGiven the discussion so far, state your position.", m.topic, contextText)

	reply := speaker.Respond(ctx, prompt)

	if !m.isValidResponse(reply.Content) {
		// Soft-fail: keep the debate going, the speaker keeps the turn.
		slog.Warn("invalid response, continuing", "speaker", speaker.Name(), "length", len(reply.Content))
		return true, nil
	}

	msg := core.NewMessage(speaker.Name(), reply.Content, reply.Category)
	msg.Recipient = other.Name()
	if len(ctxMessages) > 0 {
		msg.AddReference(ctxMessages[len(ctxMessages)-1].ID)
	}

	if err := m.router.Send(msg, ChannelID); err != nil {
		m.abort(fmt.Errorf("send turn message: %w", err))
		return false, fmt.Errorf("debate: publish failed: %w", err)
	}

	m.metrics.RecordMessage(speaker.Name(), time.Since(start), m.quality(reply.Content))

	round := m.rounds[len(m.rounds)-1]
	round.AddMessage(msg.ID)
	m.currentSpeaker = other

	if len(round.MessageIDs) >= 2 {
		m.completeRound(round)
		if !m.openNextRound() {
			return false, nil
		}
	}

	if reason, done := m.checkTermination(); done {
		m.terminate(reason)
		return false, nil
	}
	return true, nil
}

// Pause suspends the debate. Valid only while active.
func (m *Manager) Pause() error {
	if m.state != core.StateActive {
		return fmt.Errorf("%w: pause in %s", ErrInvalidState, m.state)
	}
	m.changeState(core.StatePaused)
	return nil
}

// Resume reactivates a paused debate.
func (m *Manager) Resume() error {
	if m.state != core.StatePaused {
		return fmt.Errorf("%w: resume in %s", ErrInvalidState, m.state)
	}
	m.changeState(core.StateActive)
	return nil
}

// End terminates the debate with a user-terminated reason, finalizing the
// current round and metrics. Valid while active or paused.
func (m *Manager) End() error {
	switch m.state {
	case core.StateActive:
	case core.StatePaused:
		// The table has no paused->completed edge; go through active.
		m.changeState(core.StateActive)
	default:
		return fmt.Errorf("%w: end in %s", ErrInvalidState, m.state)
	}
	m.terminate(core.ReasonUserTerminated)
	return nil
}

func (m *Manager) otherSpeaker() agent.Agent {
	if m.currentSpeaker == m.first {
		return m.second
	}
	return m.first
}

func (m *Manager) completeRound(round *core.DebateRound) {
	round.Complete()
	m.metrics.TotalRounds++
	if m.callbacks.OnRoundComplete != nil {
		m.callbacks.OnRoundComplete(round)
	}
}

// openNextRound advances the round counter. It reports false when the
// counter passes the configured maximum, terminating the debate.
func (m *Manager) openNextRound() bool {
	m.currentRound++
	if m.currentRound > m.settings.MaxRounds {
		m.terminate(core.ReasonMaxRoundsReached)
		return false
	}
	round := core.NewDebateRound(m.currentRound, m.currentSpeaker.Name())
	m.rounds = append(m.rounds, round)
	if m.callbacks.OnRoundStart != nil {
		m.callbacks.OnRoundStart(m.currentRound, m.currentSpeaker.Name())
	}
	return true
}

// terminate records the reason, finalizes bookkeeping and moves to the
// matching terminal state.
func (m *Manager) terminate(reason core.TerminationReason) {
	m.reason = reason

	if len(m.rounds) > 0 && m.rounds[len(m.rounds)-1].CompletedAt == nil {
		m.completeRound(m.rounds[len(m.rounds)-1])
	}
	m.metrics.Finish()

	if reason == core.ReasonSystemError {
		m.changeState(core.StateAborted)
	} else {
		m.changeState(core.StateCompleted)
	}
	slog.Info("debate terminated", "reason", reason)

	if m.callbacks.OnDebateComplete != nil {
		m.callbacks.OnDebateComplete(reason)
	}
}

func (m *Manager) abort(cause error) {
	slog.Error("debate aborted", "error", cause)
	m.reason = core.ReasonSystemError
	m.metrics.Finish()
	m.changeState(core.StateAborted)
	if m.callbacks.OnDebateComplete != nil {
		m.callbacks.OnDebateComplete(core.ReasonSystemError)
	}
}

func (m *Manager) isValidResponse(content string) bool {
	if content == "" {
		return false
	}
	if len(content) < m.settings.MinResponseLength {
		return false
	}
	if len(content) > m.settings.MaxResponseLength {
		return false
	}
	return true
}

// Run drives the debate in observation mode: start, then process rounds
// until the state leaves active, pausing briefly between turns. Context
// cancellation ends the debate cooperatively between turns.
func (m *Manager) Run(ctx context.Context) Summary {
	if m.state == core.StatePreparing {
		if err := m.Start(ctx, ""); err != nil {
			slog.Error("failed to start debate", "error", err)
			return m.Summary()
		}
	}

	for m.state == core.StateActive {
		cont, err := m.ProcessRound(ctx)
		if err != nil || !cont {
			break
		}

		select {
		case <-ctx.Done():
			m.End()
		case <-time.After(m.settings.TurnDelay):
		}
	}

	slog.Info("observation mode finished", "state", m.state, "reason", m.reason)
	return m.Summary()
}

// Status is a snapshot of the debate for presentation layers.
type Status struct {
	State             core.DebateState       `json:"state"`
	Topic             string                 `json:"topic"`
	CurrentRound      int                    `json:"current_round"`
	MaxRounds         int                    `json:"max_rounds"`
	CurrentSpeaker    string                 `json:"current_speaker"`
	TotalMessages     int                    `json:"total_messages"`
	TerminationReason core.TerminationReason `json:"termination_reason,omitempty"`
	StartedAt         time.Time              `json:"started_at"`
	DurationSeconds   float64                `json:"duration_seconds"`
	Participants      [2]string              `json:"participants"`
}

// Status returns the current snapshot.
func (m *Manager) Status() Status {
	return Status{
		State:             m.state,
		Topic:             m.topic,
		CurrentRound:      m.currentRound,
		MaxRounds:         m.settings.MaxRounds,
		CurrentSpeaker:    m.currentSpeaker.Name(),
		TotalMessages:     m.conv.Len(),
		TerminationReason: m.reason,
		StartedAt:         m.metrics.StartTime,
		DurationSeconds:   m.metrics.Duration().Seconds(),
		Participants:      [2]string{m.first.Name(), m.second.Name()},
	}
}

// Summary is the full debate report.
type Summary struct {
	Status            Status                  `json:"status"`
	Metrics           *core.DebateMetrics     `json:"metrics"`
	Rounds            []*core.DebateRound     `json:"rounds"`
	ConversationStats conversation.Statistics `json:"conversation_stats"`
}

// Summary returns the full report: status, metrics, rounds and
// conversation statistics.
func (m *Manager) Summary() Summary {
	return Summary{
		Status:            m.Status(),
		Metrics:           m.metrics,
		Rounds:            m.Rounds(),
		ConversationStats: m.conv.Stats(),
	}
}
