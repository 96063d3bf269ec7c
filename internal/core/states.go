package core

import (
	"time"
)

// DebateState represents the lifecycle state of a debate.
type DebateState string

const (
	StatePreparing DebateState = "preparing"
	StateActive    DebateState = "active"
	StatePaused    DebateState = "paused"
	StateCompleted DebateState = "completed"
	StateAborted   DebateState = "aborted"
)

// TerminationReason records why a debate left the active state permanently.
type TerminationReason string

const (
	ReasonMaxRoundsReached   TerminationReason = "max_rounds_reached"
	ReasonConsensusReached   TerminationReason = "consensus_reached"
	ReasonUserTerminated     TerminationReason = "user_terminated"
	ReasonSystemError        TerminationReason = "system_error"
	ReasonContentRepetition  TerminationReason = "content_repetition"
	ReasonQualityDegradation TerminationReason = "quality_degradation"
	ReasonTimeout            TerminationReason = "timeout"
	ReasonServiceUnavailable TerminationReason = "service_unavailable"
)

// validTransitions is the complete state transition table. Completed and
// aborted are terminal.
var validTransitions = map[DebateState][]DebateState{
	StatePreparing: {StateActive, StateAborted},
	StateActive:    {StatePaused, StateCompleted, StateAborted},
	StatePaused:    {StateActive, StateAborted},
	StateCompleted: {},
	StateAborted:   {},
}

// IsValidTransition reports whether the state machine allows from -> to.
func IsValidTransition(from, to DebateState) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a state has no outgoing transitions.
func IsTerminal(s DebateState) bool {
	return len(validTransitions[s]) == 0
}

// Settings holds debate configuration with documented defaults and
// ceilings.
type Settings struct {
	MaxRounds          int           `yaml:"max_rounds" json:"max_rounds"`
	RoundTimeout       time.Duration `yaml:"round_timeout" json:"round_timeout"` // advisory
	MinResponseLength  int           `yaml:"min_response_length" json:"min_response_length"`
	MaxResponseLength  int           `yaml:"max_response_length" json:"max_response_length"`
	SimilarityLimit    float64       `yaml:"similarity_threshold" json:"similarity_threshold"`
	QualityFloor       float64       `yaml:"quality_threshold" json:"quality_threshold"`
	RepetitionWindow   int           `yaml:"repetition_window" json:"repetition_window"`
	TurnDelay          time.Duration `yaml:"turn_delay" json:"turn_delay"`
	ContextTokenBudget int           `yaml:"context_token_budget" json:"context_token_budget"`
}

const (
	DefaultMaxRounds         = 10
	MaxRoundsCeiling         = 50
	DefaultRoundTimeout      = 120 * time.Second
	DefaultMinResponseLength = 10
	DefaultMaxResponseLength = 2000
	DefaultSimilarityLimit   = 0.8
	DefaultQualityFloor      = 0.3
	DefaultRepetitionWindow  = 3
	DefaultTurnDelay         = time.Second
	DefaultContextTokens     = 4096
)

// DefaultSettings returns the documented default configuration.
func DefaultSettings() Settings {
	return Settings{
		MaxRounds:          DefaultMaxRounds,
		RoundTimeout:       DefaultRoundTimeout,
		MinResponseLength:  DefaultMinResponseLength,
		MaxResponseLength:  DefaultMaxResponseLength,
		SimilarityLimit:    DefaultSimilarityLimit,
		QualityFloor:       DefaultQualityFloor,
		RepetitionWindow:   DefaultRepetitionWindow,
		TurnDelay:          DefaultTurnDelay,
		ContextTokenBudget: DefaultContextTokens,
	}
}

// Clamp applies defaults to zero values and enforces hard ceilings.
func (s *Settings) Clamp() {
	def := DefaultSettings()
	if s.MaxRounds <= 0 {
		s.MaxRounds = def.MaxRounds
	}
	if s.MaxRounds > MaxRoundsCeiling {
		s.MaxRounds = MaxRoundsCeiling
	}
	if s.RoundTimeout <= 0 {
		s.RoundTimeout = def.RoundTimeout
	}
	if s.MinResponseLength <= 0 {
		s.MinResponseLength = def.MinResponseLength
	}
	if s.MaxResponseLength <= 0 {
		s.MaxResponseLength = def.MaxResponseLength
	}
	if s.SimilarityLimit <= 0 {
		s.SimilarityLimit = def.SimilarityLimit
	}
	if s.QualityFloor <= 0 {
		s.QualityFloor = def.QualityFloor
	}
	if s.RepetitionWindow <= 0 {
		s.RepetitionWindow = def.RepetitionWindow
	}
	if s.TurnDelay <= 0 {
		s.TurnDelay = def.TurnDelay
	}
	if s.ContextTokenBudget <= 0 {
		s.ContextTokenBudget = def.ContextTokenBudget
	}
}

// DebateRound is one logical exchange unit between the two participants.
type DebateRound struct {
	Number      int        `json:"number"`
	Initiator   string     `json:"initiator"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	MessageIDs  []string   `json:"message_ids"`
}

// NewDebateRound opens a round initiated by the given speaker.
func NewDebateRound(number int, initiator string) *DebateRound {
	return &DebateRound{
		Number:    number,
		Initiator: initiator,
		StartedAt: time.Now(),
	}
}

// AddMessage records a message produced during this round.
func (r *DebateRound) AddMessage(messageID string) {
	r.MessageIDs = append(r.MessageIDs, messageID)
}

// Complete marks the round finished.
func (r *DebateRound) Complete() {
	now := time.Now()
	r.CompletedAt = &now
}

// Duration returns elapsed time since the round started, or the full span
// if completed.
func (r *DebateRound) Duration() time.Duration {
	if r.CompletedAt != nil {
		return r.CompletedAt.Sub(r.StartedAt)
	}
	return time.Since(r.StartedAt)
}

// DebateMetrics tracks running aggregates for a debate.
type DebateMetrics struct {
	StartTime        time.Time      `json:"start_time"`
	EndTime          *time.Time     `json:"end_time,omitempty"`
	TotalRounds      int            `json:"total_rounds"`
	TotalMessages    int            `json:"total_messages"`
	MessagesBySender map[string]int `json:"messages_by_sender"`
	AvgResponseTime  float64        `json:"average_response_time"` // seconds
	QualityScores    []float64      `json:"quality_scores"`
}

// NewDebateMetrics creates metrics anchored at now.
func NewDebateMetrics() *DebateMetrics {
	return &DebateMetrics{
		StartTime:        time.Now(),
		MessagesBySender: make(map[string]int),
	}
}

// RecordMessage updates counts, the running mean response time, and the
// quality score list.
func (m *DebateMetrics) RecordMessage(sender string, responseTime time.Duration, quality float64) {
	m.TotalMessages++
	m.MessagesBySender[sender]++

	total := m.AvgResponseTime*float64(m.TotalMessages-1) + responseTime.Seconds()
	m.AvgResponseTime = total / float64(m.TotalMessages)

	m.QualityScores = append(m.QualityScores, quality)
}

// Finish stamps the end time.
func (m *DebateMetrics) Finish() {
	now := time.Now()
	m.EndTime = &now
}

// Duration returns the debate span so far, or the final span if finished.
func (m *DebateMetrics) Duration() time.Duration {
	if m.EndTime != nil {
		return m.EndTime.Sub(m.StartTime)
	}
	return time.Since(m.StartTime)
}

// AverageQuality returns the mean of all recorded quality scores.
func (m *DebateMetrics) AverageQuality() float64 {
	if len(m.QualityScores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range m.QualityScores {
		sum += s
	}
	return sum / float64(len(m.QualityScores))
}

// TrailingQuality returns the mean of the last n quality scores. It
// returns -1 when fewer than n scores exist.
func (m *DebateMetrics) TrailingQuality(n int) float64 {
	if len(m.QualityScores) < n || n <= 0 {
		return -1
	}
	var sum float64
	for _, s := range m.QualityScores[len(m.QualityScores)-n:] {
		sum += s
	}
	return sum / float64(n)
}
