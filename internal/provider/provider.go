// Package provider contains the text-generation capability consumed by
// debate agents.
package provider

import (
	"context"
	"fmt"
	"sync"
)

// GenerateOptions carries per-request generation parameters.
type GenerateOptions struct {
	Temperature float64
	MaxTokens   int
}

// DefaultOptions returns sensible generation defaults.
func DefaultOptions() GenerateOptions {
	return GenerateOptions{Temperature: 0.7, MaxTokens: 1024}
}

// Provider defines the interface for text-generation backends. Generate
// returns an error on failure; callers treat that as "no response" and
// substitute a fallback, never as a crash.
type Provider interface {
	// Name returns the provider's identifier.
	Name() string

	// Generate sends a prompt and returns the completion.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// Available checks if the provider can be used.
	Available() bool
}

// Registry manages available providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider to the registry.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get retrieves a provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider not found: %s", name)
	}
	return p, nil
}

// List returns all registered providers.
func (r *Registry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		providers = append(providers, p)
	}
	return providers
}

// Available returns all providers that are currently usable.
func (r *Registry) Available() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var available []Provider
	for _, p := range r.providers {
		if p.Available() {
			available = append(available, p)
		}
	}
	return available
}
