// Package models contains shared data models used across the ResearchMate codebase.
package models

import "context"

// TextGenerator is the interface every text-completion backend implements.
// Never call specific backends directly; always inject this interface.
type TextGenerator interface {
	// Complete sends prompt to the backend and returns the generated text.
	Complete(ctx context.Context, prompt string, params GenerationParams) (string, error)
	// Name returns the provider identifier (e.g., "llamacpp", "ollama").
	Name() string
}

// GenerationParams are the sampling options recognised by every provider.
// Zero values mean "use the provider default". Temperature is a pointer so an
// explicit 0 (greedy decoding) stays distinct from unset.
type GenerationParams struct {
	MaxTokens   int
	Temperature *float64
	Stop        []string
}

// Float returns a pointer to v, for setting GenerationParams.Temperature.
func Float(v float64) *float64 { return &v }

// WithDefaults fills zero-valued fields from defaults.
func (p GenerationParams) WithDefaults(defaults GenerationParams) GenerationParams {
	if p.MaxTokens <= 0 {
		p.MaxTokens = defaults.MaxTokens
	}
	if p.Temperature == nil && defaults.Temperature != nil {
		p.Temperature = Float(*defaults.Temperature)
	}
	if len(p.Stop) == 0 && len(defaults.Stop) > 0 {
		p.Stop = append([]string(nil), defaults.Stop...)
	}
	return p
}
