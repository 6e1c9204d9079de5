package config

import (
	"fmt"
	"sync"
)

// ChainConfig is a multi-stage agent chain (spec §4.8).
type ChainConfig struct {
	AlertTypes  []string      `yaml:"alert_types" validate:"required,min=1"`
	Description string        `yaml:"description,omitempty"`
	Stages      []StageConfig `yaml:"stages" validate:"required,min=1,dive"`

	Chat *ChatConfig `yaml:"chat,omitempty"`

	LLMProvider               string `yaml:"llm_provider,omitempty"`
	ExecutiveSummaryProvider  string `yaml:"executive_summary_provider,omitempty"`

	MaxIterations                  *int  `yaml:"max_iterations,omitempty" validate:"omitempty,min=1"`
	ForceConclusionAtMaxIterations *bool `yaml:"force_conclusion_at_max_iterations,omitempty"`

	MCPServers []string `yaml:"mcp_servers,omitempty"`
}

// StageConfig is one stage in a chain (spec §4.8).
type StageConfig struct {
	Name string `yaml:"name" validate:"required"`

	Agents []StageAgentConfig `yaml:"agents" validate:"required,min=1,dive"`

	Replicas      int           `yaml:"replicas,omitempty" validate:"omitempty,min=1"`
	SuccessPolicy SuccessPolicy `yaml:"success_policy,omitempty"`

	MaxIterations                  *int  `yaml:"max_iterations,omitempty" validate:"omitempty,min=1"`
	ForceConclusionAtMaxIterations *bool `yaml:"force_conclusion_at_max_iterations,omitempty"`

	MCPServers []string `yaml:"mcp_servers,omitempty"`

	Synthesis *SynthesisConfig `yaml:"synthesis,omitempty"`
}

// ChainRegistry is a read-mostly, concurrency-safe lookup of chain configs.
type ChainRegistry struct {
	mu     sync.RWMutex
	chains map[string]*ChainConfig
}

func NewChainRegistry(chains map[string]*ChainConfig) *ChainRegistry {
	copied := make(map[string]*ChainConfig, len(chains))
	for k, v := range chains {
		copied[k] = v
	}
	return &ChainRegistry{chains: copied}
}

func (r *ChainRegistry) Get(chainID string) (*ChainConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.chains[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrChainNotFound, chainID)
	}
	return c, nil
}

// GetByAlertType returns the first chain whose AlertTypes contains alertType.
func (r *ChainRegistry) GetByAlertType(alertType string) (*ChainConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, chain := range r.chains {
		for _, at := range chain.AlertTypes {
			if at == alertType {
				return chain, nil
			}
		}
	}
	return nil, fmt.Errorf("%w for alert type: %s", ErrChainNotFound, alertType)
}

// GetIDByAlertType returns the id of the first chain whose AlertTypes
// contains alertType, the way the ingress service resolves chain_id at
// session-creation time (spec §4.13).
func (r *ChainRegistry) GetIDByAlertType(alertType string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, chain := range r.chains {
		for _, at := range chain.AlertTypes {
			if at == alertType {
				return id, nil
			}
		}
	}
	return "", fmt.Errorf("%w for alert type: %s", ErrChainNotFound, alertType)
}

func (r *ChainRegistry) GetAll() map[string]*ChainConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*ChainConfig, len(r.chains))
	for k, v := range r.chains {
		out[k] = v
	}
	return out
}

func (r *ChainRegistry) Has(chainID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.chains[chainID]
	return ok
}
