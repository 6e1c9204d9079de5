package config

import "time"

// DefaultLLMIterationTimeout bounds a single LLM call within an agent
// iteration loop (spec §4.9 "llm_iteration_timeout") when no override is
// configured.
const DefaultLLMIterationTimeout = 5 * time.Minute

// Defaults holds system-wide configuration defaults, the lowest-precedence
// level of the hierarchical resolver (spec §4.11).
type Defaults struct {
	LLMProvider string `yaml:"llm_provider,omitempty"`

	MaxIterations                  *int  `yaml:"max_iterations,omitempty" validate:"omitempty,min=1"`
	ForceConclusionAtMaxIterations *bool `yaml:"force_conclusion_at_max_iterations,omitempty"`

	// LLMIterationTimeout bounds a single LLM call inside the iteration loop
	// (spec §4.9); the controller cancels and treats the call as a timeout
	// failure past this bound regardless of provider-side behavior.
	LLMIterationTimeout time.Duration `yaml:"llm_iteration_timeout,omitempty"`

	IterationStrategy IterationStrategy `yaml:"iteration_strategy,omitempty"`
	SuccessPolicy     SuccessPolicy     `yaml:"success_policy,omitempty"`

	AlertType string `yaml:"alert_type,omitempty"`
	Runbook   string `yaml:"runbook,omitempty"`

	AlertMasking *AlertMaskingDefaults `yaml:"alert_masking,omitempty"`
}

// AlertMaskingDefaults controls masking of incoming alert payloads before
// they are persisted (spec §4.5, applied at ingress rather than per-server).
type AlertMaskingDefaults struct {
	Enabled      bool   `yaml:"enabled"`
	PatternGroup string `yaml:"pattern_group"`
}
