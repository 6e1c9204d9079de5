package config

import (
	"fmt"
	"time"
)

// DefaultMaxIterations forces conclusion when no level of the hierarchy sets
// one explicitly.
const DefaultMaxIterations = 20

// ResolvedAgentConfig is the fully-resolved configuration for one agent
// execution within a stage (spec §4.11): every field has walked the five
// levels (parallel-agent → stage → chain → agent → system) from lowest to
// highest precedence, so the caller never has to ask "what are the other
// four levels".
type ResolvedAgentConfig struct {
	AgentName string
	Type      AgentType

	IterationStrategy              IterationStrategy
	MaxIterations                  int
	ForceConclusionAtMaxIterations bool

	LLMProviderName string
	LLMProvider     *LLMProviderConfig

	// MCPServers is the hierarchy-resolved server list. An alert-level MCP
	// selection (spec §4.11) always wins over this and is applied
	// separately in the agent's tool-fetch path, not here.
	MCPServers []string

	CustomInstructions string

	// IterationTimeout bounds a single LLM call within the iteration loop
	// (spec §4.9 "llm_iteration_timeout"). System-wide only; not part of
	// the per-agent hierarchy.
	IterationTimeout time.Duration
}

// ResolveAgentConfig walks defaults → agent definition → chain → stage →
// stage-agent, each non-null field overriding the accumulator, and returns
// the fully-resolved configuration for stageAgent within stage (spec
// §4.11).
func ResolveAgentConfig(
	cfg *Config,
	chain *ChainConfig,
	stage StageConfig,
	stageAgent StageAgentConfig,
) (*ResolvedAgentConfig, error) {
	if chain == nil {
		return nil, fmt.Errorf("chain configuration cannot be nil")
	}

	defaults := cfg.Defaults
	if defaults == nil {
		defaults = &Defaults{}
	}

	agentDef, err := cfg.GetAgent(stageAgent.Name)
	if err != nil {
		return nil, fmt.Errorf("agent %q not found: %w", stageAgent.Name, err)
	}

	strategy := agentDef.IterationStrategy
	if defaults.IterationStrategy != "" {
		strategy = defaults.IterationStrategy
	}
	if agentDef.IterationStrategy != "" {
		strategy = agentDef.IterationStrategy
	}
	if stageAgent.IterationStrategy != "" {
		strategy = stageAgent.IterationStrategy
	}

	providerName := resolveLastNonEmpty(defaults.LLMProvider, chain.LLMProvider, agentDef.LLMProvider, stageAgent.LLMProvider)
	provider, err := cfg.GetLLMProvider(providerName)
	if err != nil {
		return nil, fmt.Errorf("LLM provider %q not found: %w", providerName, err)
	}

	maxIter := resolveLastNonNilInt(defaults.MaxIterations, agentDef.MaxIterations, chain.MaxIterations, stage.MaxIterations, stageAgent.MaxIterations)
	if maxIter == nil {
		iter := DefaultMaxIterations
		maxIter = &iter
	}

	forceConclusion := resolveLastNonNilBool(
		defaults.ForceConclusionAtMaxIterations,
		agentDef.ForceConclusionAtMaxIterations,
		chain.ForceConclusionAtMaxIterations,
		stage.ForceConclusionAtMaxIterations,
		stageAgent.ForceConclusionAtMaxIterations,
	)

	var mcpServers []string
	for _, candidate := range [][]string{agentDef.MCPServers, chain.MCPServers, stage.MCPServers, stageAgent.MCPServers} {
		if len(candidate) > 0 {
			mcpServers = candidate
		}
	}

	iterationTimeout := defaults.LLMIterationTimeout
	if iterationTimeout <= 0 {
		iterationTimeout = DefaultLLMIterationTimeout
	}

	return &ResolvedAgentConfig{
		AgentName:                      stageAgent.Name,
		Type:                           agentDef.Type,
		IterationStrategy:              strategy,
		MaxIterations:                  *maxIter,
		ForceConclusionAtMaxIterations: forceConclusion,
		LLMProviderName:                providerName,
		LLMProvider:                    provider,
		MCPServers:                     mcpServers,
		CustomInstructions:             agentDef.CustomInstructions,
		IterationTimeout:               iterationTimeout,
	}, nil
}

func resolveLastNonEmpty(values ...string) string {
	var out string
	for _, v := range values {
		if v != "" {
			out = v
		}
	}
	return out
}

func resolveLastNonNilInt(values ...*int) *int {
	var out *int
	for _, v := range values {
		if v != nil {
			out = v
		}
	}
	return out
}

func resolveLastNonNilBool(values ...*bool) bool {
	var out bool
	for _, v := range values {
		if v != nil {
			out = *v
		}
	}
	return out
}
