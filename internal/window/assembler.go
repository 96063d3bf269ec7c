// Package window assembles token-bounded context windows over a
// conversation for a requesting participant.
package window

import (
	"fmt"
	"sort"
	"strings"

	"github.com/athenslab/athens/internal/conversation"
	"github.com/athenslab/athens/internal/core"
)

// ErrNotImplemented marks acknowledged extension points that must fail
// explicitly instead of degrading silently.
var ErrNotImplemented = fmt.Errorf("window: not implemented")

const (
	// DefaultUserInputWeight boosts user-input messages during selection.
	DefaultUserInputWeight = 2.0
	// DefaultReferencedWeight boosts messages other messages reply to.
	DefaultReferencedWeight = 1.5
	// charsPerToken is a cheap token-cost proxy, not a real tokenizer.
	charsPerToken = 4
)

// Assembler selects a relevance-ranked, token-budgeted slice of a
// conversation. Selection order is by importance; the returned window is
// re-sorted chronologically so the prompt reads as a coherent timeline
// while important-but-old messages survive truncation.
type Assembler struct {
	conv             *conversation.Conversation
	maxTokens        int
	userInputWeight  float64
	referencedWeight float64
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithUserInputWeight overrides the user-input importance multiplier.
func WithUserInputWeight(w float64) Option {
	return func(a *Assembler) { a.userInputWeight = w }
}

// WithReferencedWeight overrides the referenced-message multiplier.
func WithReferencedWeight(w float64) Option {
	return func(a *Assembler) { a.referencedWeight = w }
}

// New creates an assembler over a conversation with the given token
// budget.
func New(conv *conversation.Conversation, maxTokens int, opts ...Option) *Assembler {
	if maxTokens <= 0 {
		maxTokens = core.DefaultContextTokens
	}
	a := &Assembler{
		conv:             conv,
		maxTokens:        maxTokens,
		userInputWeight:  DefaultUserInputWeight,
		referencedWeight: DefaultReferencedWeight,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetMaxTokens updates the token budget.
func (a *Assembler) SetMaxTokens(maxTokens int) {
	a.maxTokens = maxTokens
}

// MaxTokens returns the current token budget.
func (a *Assembler) MaxTokens() int {
	return a.maxTokens
}

// EstimateTokens approximates the token cost of a text.
func EstimateTokens(text string) int {
	return len(text) / charsPerToken
}

// Score computes a message's importance: base 1.0, multiplied by the
// user-input weight for user-input messages and by the referenced weight
// when any other message references it.
func (a *Assembler) Score(m *core.Message) float64 {
	score := 1.0
	if m.Category == core.CategoryUserInput {
		score *= a.userInputWeight
	}
	if len(a.conv.Replies(m.ID)) > 0 {
		score *= a.referencedWeight
	}
	return score
}

// Build selects the context window for an agent. maxMessages <= 0 means
// no message-count cap. The token estimate of the result never exceeds
// the budget and the result is in non-decreasing timestamp order.
func (a *Assembler) Build(forAgent string, maxMessages int) []*core.Message {
	all := a.conv.Messages()
	if len(all) == 0 {
		return nil
	}

	type scored struct {
		score float64
		msg   *core.Message
	}
	candidates := make([]scored, 0, len(all))
	for i, m := range all {
		// Positional tie-break: later messages score marginally higher.
		s := a.Score(m) + float64(i)/float64(len(all))
		candidates = append(candidates, scored{score: s, msg: m})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	var selected []*core.Message
	tokens := 0
	for _, c := range candidates {
		cost := EstimateTokens(c.msg.Content)
		if tokens+cost > a.maxTokens {
			continue
		}
		selected = append(selected, c.msg)
		tokens += cost
		if maxMessages > 0 && len(selected) >= maxMessages {
			break
		}
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].CreatedAt.Before(selected[j].CreatedAt)
	})
	return selected
}

// Format renders the selected window as "sender (category): content"
// lines, one per message.
func (a *Assembler) Format(forAgent string, maxMessages int) string {
	msgs := a.Build(forAgent, maxMessages)
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, fmt.Sprintf("%s (%s): %s", m.Sender, m.Category, m.Content))
	}
	return strings.Join(lines, "\n")
}

// Compress is a future extension point for summarizing a set of messages
// into one. It fails explicitly rather than truncating further.
func (a *Assembler) Compress(messages []*core.Message) (*core.Message, error) {
	return nil, fmt.Errorf("%w: context compression", ErrNotImplemented)
}
