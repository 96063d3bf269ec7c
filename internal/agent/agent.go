// Package agent implements the debate participant capability on top of a
// generation provider.
package agent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/athenslab/athens/internal/core"
	"github.com/athenslab/athens/internal/provider"
)

// Reply is a participant's produced response. Category is System when the
// content is a fallback substituted for a failed generation.
type Reply struct {
	Content  string
	Category core.MessageCategory
	Fallback bool
}

// Agent is the participant capability the orchestrator depends on: an
// identity plus the ability to respond to accumulated context.
type Agent interface {
	// Name returns the identity used for attribution and membership.
	Name() string

	// Respond produces a response to the accumulated textual context.
	// Generation failure is recovered locally with a fallback reply,
	// never surfaced as an error.
	Respond(ctx context.Context, contextText string) Reply
}

// roleAgent is the shared implementation behind the concrete roles.
type roleAgent struct {
	name        string
	rolePrompt  string
	category    core.MessageCategory
	fallback    string
	temperature float64
	maxTokens   int
	provider    provider.Provider
}

func (a *roleAgent) Name() string { return a.name }

func (a *roleAgent) Respond(ctx context.Context, contextText string) Reply {
	prompt := a.buildPrompt(contextText)

	text, err := a.provider.Generate(ctx, prompt, provider.GenerateOptions{
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
	})
	if err != nil || strings.TrimSpace(text) == "" {
		slog.Warn("generation failed, using fallback", "agent", a.name, "error", err)
		return Reply{Content: a.fallback, Category: core.CategorySystem, Fallback: true}
	}
	return Reply{Content: text, Category: a.category}
}

func (a *roleAgent) buildPrompt(contextText string) string {
	var sb strings.Builder
	sb.WriteString(a.rolePrompt)
	if contextText != "" {
		sb.WriteString("\n\n## Conversation so far:\n")
		sb.WriteString(contextText)
	}
	sb.WriteString("\n\nRespond in character.")
	return sb.String()
}
