package config

import (
	"fmt"
	"sync"
)

// AgentConfig is one named agent's static configuration (spec §4.7).
// Instantiation of the runtime Agent value is pkg/agent's job; this is
// metadata only.
type AgentConfig struct {
	Type AgentType `yaml:"type,omitempty"`

	Description string `yaml:"description,omitempty"`

	MCPServers         []string `yaml:"mcp_servers" validate:"omitempty"`
	CustomInstructions string   `yaml:"custom_instructions"`

	IterationStrategy IterationStrategy `yaml:"iteration_strategy,omitempty"`

	MaxIterations                  *int  `yaml:"max_iterations,omitempty" validate:"omitempty,min=1"`
	ForceConclusionAtMaxIterations *bool `yaml:"force_conclusion_at_max_iterations,omitempty"`

	LLMProvider string `yaml:"llm_provider,omitempty"`

	NativeTools map[GoogleNativeTool]bool `yaml:"native_tools,omitempty"`
}

// AgentRegistry is a read-mostly, concurrency-safe lookup of agent configs.
type AgentRegistry struct {
	mu     sync.RWMutex
	agents map[string]*AgentConfig
}

// NewAgentRegistry builds a registry from a name->config map, defensively
// copying so later external mutation of the input can't leak through.
func NewAgentRegistry(agents map[string]*AgentConfig) *AgentRegistry {
	copied := make(map[string]*AgentConfig, len(agents))
	for k, v := range agents {
		copied[k] = v
	}
	return &AgentRegistry{agents: copied}
}

func (r *AgentRegistry) Get(name string) (*AgentConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, name)
	}
	return a, nil
}

func (r *AgentRegistry) GetAll() map[string]*AgentConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*AgentConfig, len(r.agents))
	for k, v := range r.agents {
		out[k] = v
	}
	return out
}

func (r *AgentRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.agents[name]
	return ok
}
