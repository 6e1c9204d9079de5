package config

// Shared types referenced by more than one registry's YAML shape.

// TransportConfig is one MCP server's wire transport (spec §4.5).
type TransportConfig struct {
	Type TransportType `yaml:"type" validate:"required"`

	// stdio
	Command string   `yaml:"command,omitempty"`
	Args    []string `yaml:"args,omitempty"`

	// http / sse
	URL         string `yaml:"url,omitempty"`
	BearerToken string `yaml:"bearer_token,omitempty"`
	VerifySSL   *bool  `yaml:"verify_ssl,omitempty"`
	Timeout     int    `yaml:"timeout,omitempty"` // seconds
}

// MaskingConfig is one MCP server's data-masking settings (spec §4.5).
// Pattern names and group names are resolved against pkg/masking's builtin
// tables at conversion time, not duplicated here.
type MaskingConfig struct {
	Enabled        bool             `yaml:"enabled"`
	PatternGroups  []string         `yaml:"pattern_groups,omitempty"`
	Patterns       []string         `yaml:"patterns,omitempty"`
	CustomPatterns []MaskingPattern `yaml:"custom_patterns,omitempty"`
}

// MaskingPattern is a server-specific regex masking rule supplied in YAML
// (builtin patterns live in pkg/masking and are referenced by name instead).
type MaskingPattern struct {
	Pattern     string `yaml:"pattern" validate:"required"`
	Replacement string `yaml:"replacement" validate:"required"`
	Description string `yaml:"description,omitempty"`
}

// SummarizationConfig controls when a large MCP tool result is summarized
// instead of returned verbatim (spec §4.5).
type SummarizationConfig struct {
	Enabled              bool `yaml:"enabled"`
	SizeThresholdTokens  int  `yaml:"size_threshold_tokens,omitempty" validate:"omitempty,min=100"`
	SummaryMaxTokenLimit int  `yaml:"summary_max_token_limit,omitempty" validate:"omitempty,min=50"`
}

// StageAgentConfig is one agent entry inside a stage's agents[] array (spec
// §4.8). A stage always uses the array form, even for a single agent;
// parallel execution happens when len(agents) > 1 or Replicas > 1.
type StageAgentConfig struct {
	Name                           string            `yaml:"name" validate:"required"`
	LLMProvider                    string            `yaml:"llm_provider,omitempty"`
	IterationStrategy              IterationStrategy `yaml:"iteration_strategy,omitempty"`
	MaxIterations                  *int              `yaml:"max_iterations,omitempty" validate:"omitempty,min=1"`
	ForceConclusionAtMaxIterations *bool             `yaml:"force_conclusion_at_max_iterations,omitempty"`
	MCPServers                     []string          `yaml:"mcp_servers,omitempty"`
}

// SynthesisConfig configures the synthesis agent for a parallel stage (spec
// §4.7/§4.8).
type SynthesisConfig struct {
	Agent             string            `yaml:"agent,omitempty"`
	IterationStrategy IterationStrategy `yaml:"iteration_strategy,omitempty"`
	LLMProvider       string            `yaml:"llm_provider,omitempty"`
}

// ChatConfig is the legacy chat surface. It is kept only so the
// chat_enabled backward-compatibility rewrite (spec §4.11) has somewhere to
// land; no chat agent ships in this build (see DESIGN.md).
type ChatConfig struct {
	Enabled bool `yaml:"enabled"`
}
