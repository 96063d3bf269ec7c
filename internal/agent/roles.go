package agent

import (
	"github.com/athenslab/athens/internal/core"
	"github.com/athenslab/athens/internal/provider"
)

const proponentPrompt = `You are a logical, constructive debater. Build a
clear case for your position with evidence and structured reasoning.
Engage directly with what the other side said.`

const skepticPrompt = `You are a rigorous skeptic. Probe the other side's
assumptions, demand evidence, surface counterexamples and alternative
explanations. Stay sharp but fair.`

const proponentFallback = "I am unable to respond right now; let me regroup my argument."

const skepticFallback = "Let me reconsider the question; there may be an angle we have missed."

// NewProponent creates the supporting-side participant. It runs at a low
// temperature and emits argument-category messages.
func NewProponent(name string, p provider.Provider) Agent {
	if name == "" {
		name = "Proponent"
	}
	return &roleAgent{
		name:        name,
		rolePrompt:  proponentPrompt,
		category:    core.CategoryArgument,
		fallback:    proponentFallback,
		temperature: 0.6,
		maxTokens:   1024,
		provider:    p,
	}
}

// NewSkeptic creates the challenging-side participant. It runs at a
// moderate temperature and emits counter-category messages.
func NewSkeptic(name string, p provider.Provider) Agent {
	if name == "" {
		name = "Skeptic"
	}
	return &roleAgent{
		name:        name,
		rolePrompt:  skepticPrompt,
		category:    core.CategoryCounter,
		fallback:    skepticFallback,
		temperature: 0.8,
		maxTokens:   1024,
		provider:    p,
	}
}

// NewCustom creates a participant with an arbitrary role prompt, category
// and temperature.
func NewCustom(name, rolePrompt string, category core.MessageCategory, temperature float64, p provider.Provider) Agent {
	return &roleAgent{
		name:        name,
		rolePrompt:  rolePrompt,
		category:    category,
		fallback:    proponentFallback,
		temperature: temperature,
		maxTokens:   1024,
		provider:    p,
	}
}
