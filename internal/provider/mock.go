package provider

import (
	"context"
	"fmt"
)

// MockProvider generates canned responses for testing and demos. It
// cycles through Responses; with none configured it echoes a stub.
type MockProvider struct {
	ProviderName string
	Responses    []string
	Fail         bool

	calls int
}

// NewMockProvider creates a mock provider with the given responses.
func NewMockProvider(responses ...string) *MockProvider {
	return &MockProvider{ProviderName: "mock", Responses: responses}
}

// Name returns the provider identifier.
func (p *MockProvider) Name() string {
	if p.ProviderName == "" {
		return "mock"
	}
	return p.ProviderName
}

// Available always reports true for the mock provider.
func (p *MockProvider) Available() bool { return true }

// Generate returns the next canned response, or an error when Fail is
// set.
func (p *MockProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.Fail {
		return "", &CLIError{Provider: p.Name(), Message: "simulated failure"}
	}
	if len(p.Responses) == 0 {
		return fmt.Sprintf("Mock response to: %s", truncate(prompt, 50)), nil
	}
	resp := p.Responses[p.calls%len(p.Responses)]
	p.calls++
	return resp, nil
}

// Calls returns how many responses the mock has produced.
func (p *MockProvider) Calls() int { return p.calls }

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
