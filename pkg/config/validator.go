package config

import (
	"fmt"
	"os"

	"github.com/tarsy-project/tarsy-core/pkg/masking"
)

// Validator validates a fully-merged Config with clear, component-scoped
// error messages.
type Validator struct {
	cfg *Config
}

func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll validates in dependency order (queue → agents → MCP servers →
// LLM providers → chains → defaults → slack), fail-fast at the first error.
func (v *Validator) ValidateAll() error {
	if err := v.validateQueue(); err != nil {
		return fmt.Errorf("queue validation failed: %w", err)
	}
	if err := v.validateAgents(); err != nil {
		return fmt.Errorf("agent validation failed: %w", err)
	}
	if err := v.validateMCPServers(); err != nil {
		return fmt.Errorf("MCP server validation failed: %w", err)
	}
	if err := v.validateLLMProviders(); err != nil {
		return fmt.Errorf("LLM provider validation failed: %w", err)
	}
	if err := v.validateChains(); err != nil {
		return fmt.Errorf("chain validation failed: %w", err)
	}
	if err := v.validateDefaults(); err != nil {
		return fmt.Errorf("defaults validation failed: %w", err)
	}
	if err := v.validateSlack(); err != nil {
		return fmt.Errorf("slack validation failed: %w", err)
	}
	return nil
}

func (v *Validator) validateQueue() error {
	q := v.cfg.Queue
	if q == nil {
		return fmt.Errorf("queue configuration is nil")
	}
	if q.WorkerCount < 1 || q.WorkerCount > 50 {
		return fmt.Errorf("worker_count must be between 1 and 50, got %d", q.WorkerCount)
	}
	if q.MaxConcurrentSessions < 1 {
		return fmt.Errorf("max_concurrent_sessions must be at least 1, got %d", q.MaxConcurrentSessions)
	}
	if q.MaxQueueSize < 0 {
		return fmt.Errorf("max_queue_size must be non-negative, got %d", q.MaxQueueSize)
	}
	if q.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %v", q.PollInterval)
	}
	if q.PollIntervalJitter < 0 {
		return fmt.Errorf("poll_interval_jitter must be non-negative, got %v", q.PollIntervalJitter)
	}
	if q.PollIntervalJitter >= q.PollInterval {
		return fmt.Errorf("poll_interval_jitter must be less than poll_interval, got jitter=%v interval=%v", q.PollIntervalJitter, q.PollInterval)
	}
	if q.SessionTimeout <= 0 {
		return fmt.Errorf("session_timeout must be positive, got %v", q.SessionTimeout)
	}
	if q.GracefulShutdownTimeout <= 0 {
		return fmt.Errorf("graceful_shutdown_timeout must be positive, got %v", q.GracefulShutdownTimeout)
	}
	if q.OrphanDetectionInterval <= 0 {
		return fmt.Errorf("orphan_detection_interval must be positive, got %v", q.OrphanDetectionInterval)
	}
	if q.OrphanThreshold <= 0 {
		return fmt.Errorf("orphan_threshold must be positive, got %v", q.OrphanThreshold)
	}
	if q.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat_interval must be positive, got %v", q.HeartbeatInterval)
	}
	if q.HeartbeatInterval >= q.OrphanThreshold {
		return fmt.Errorf("heartbeat_interval must be less than orphan_threshold to prevent false orphan detection, got heartbeat=%v threshold=%v", q.HeartbeatInterval, q.OrphanThreshold)
	}
	return nil
}

func (v *Validator) validateDefaults() error {
	defaults := v.cfg.Defaults
	if defaults == nil {
		return nil
	}

	if defaults.IterationStrategy != "" && !defaults.IterationStrategy.IsValid() {
		return NewValidationError("defaults", "", "iteration_strategy", fmt.Errorf("invalid iteration strategy: %s", defaults.IterationStrategy))
	}
	if defaults.SuccessPolicy != "" && !defaults.SuccessPolicy.IsValid() {
		return NewValidationError("defaults", "", "success_policy", fmt.Errorf("invalid success policy: %s", defaults.SuccessPolicy))
	}
	if defaults.MaxIterations != nil && *defaults.MaxIterations < 1 {
		return NewValidationError("defaults", "", "max_iterations", fmt.Errorf("must be at least 1"))
	}

	if defaults.AlertMasking != nil && defaults.AlertMasking.Enabled {
		groupName := defaults.AlertMasking.PatternGroup
		if groupName == "" {
			return NewValidationError("defaults", "", "alert_masking.pattern_group", fmt.Errorf("pattern_group is required when alert masking is enabled"))
		}
		if _, exists := masking.BuiltinPatternGroups[groupName]; !exists {
			return NewValidationError("defaults", "", "alert_masking.pattern_group", fmt.Errorf("pattern group %q not found in built-in groups", groupName))
		}
	}

	return nil
}

func (v *Validator) validateAgents() error {
	for name, agent := range v.cfg.AgentRegistry.GetAll() {
		for _, serverID := range agent.MCPServers {
			if !v.cfg.MCPServerRegistry.Has(serverID) {
				return NewValidationError("agent", name, "mcp_servers", fmt.Errorf("MCP server %q not found", serverID))
			}
		}
		if agent.Type != "" && !agent.Type.IsValid() {
			return NewValidationError("agent", name, "type", fmt.Errorf("invalid agent type: %s", agent.Type))
		}
		if agent.IterationStrategy != "" && !agent.IterationStrategy.IsValid() {
			return NewValidationError("agent", name, "iteration_strategy", fmt.Errorf("invalid iteration strategy: %s", agent.IterationStrategy))
		}
		if agent.LLMProvider != "" && !v.cfg.LLMProviderRegistry.Has(agent.LLMProvider) {
			return NewValidationError("agent", name, "llm_provider", fmt.Errorf("LLM provider %q not found", agent.LLMProvider))
		}
		if agent.MaxIterations != nil && *agent.MaxIterations < 1 {
			return NewValidationError("agent", name, "max_iterations", fmt.Errorf("must be at least 1"))
		}
		for tool := range agent.NativeTools {
			if !tool.IsValid() {
				return NewValidationError("agent", name, "native_tools", fmt.Errorf("invalid native tool: %s", tool))
			}
		}
	}
	return nil
}

func (v *Validator) validateChains() error {
	alertTypeToChain := make(map[string]string)

	for chainID, chain := range v.cfg.ChainRegistry.GetAll() {
		if len(chain.AlertTypes) == 0 {
			return NewValidationError("chain", chainID, "alert_types", fmt.Errorf("at least one alert type required"))
		}
		for _, alertType := range chain.AlertTypes {
			if existing, exists := alertTypeToChain[alertType]; exists {
				return NewValidationError("chain", chainID, "alert_types", fmt.Errorf("alert type %q is already mapped to chain %q", alertType, existing))
			}
			alertTypeToChain[alertType] = chainID
		}

		if len(chain.Stages) == 0 {
			return NewValidationError("chain", chainID, "stages", fmt.Errorf("at least one stage required"))
		}
		for i, stage := range chain.Stages {
			if err := v.validateStage(chainID, i, &stage); err != nil {
				return err
			}
		}

		if chain.LLMProvider != "" && !v.cfg.LLMProviderRegistry.Has(chain.LLMProvider) {
			return NewValidationError("chain", chainID, "llm_provider", fmt.Errorf("LLM provider %q not found", chain.LLMProvider))
		}
		if chain.ExecutiveSummaryProvider != "" && !v.cfg.LLMProviderRegistry.Has(chain.ExecutiveSummaryProvider) {
			return NewValidationError("chain", chainID, "executive_summary_provider", fmt.Errorf("LLM provider %q not found", chain.ExecutiveSummaryProvider))
		}
		if chain.MaxIterations != nil && *chain.MaxIterations < 1 {
			return NewValidationError("chain", chainID, "max_iterations", fmt.Errorf("must be at least 1"))
		}
		for _, serverID := range chain.MCPServers {
			if !v.cfg.MCPServerRegistry.Has(serverID) {
				return NewValidationError("chain", chainID, "mcp_servers", fmt.Errorf("MCP server %q not found", serverID))
			}
		}
	}

	return nil
}

func (v *Validator) validateStage(chainID string, stageIndex int, stage *StageConfig) error {
	stageRef := fmt.Sprintf("chain %q stage %d", chainID, stageIndex)

	if stage.Name == "" {
		return fmt.Errorf("%s: stage name required", stageRef)
	}
	if len(stage.Agents) == 0 {
		return fmt.Errorf("%s: must specify at least one agent in 'agents' array", stageRef)
	}

	for _, agentConfig := range stage.Agents {
		if !v.cfg.AgentRegistry.Has(agentConfig.Name) {
			return fmt.Errorf("%s: agent %q not found", stageRef, agentConfig.Name)
		}
		if agentConfig.IterationStrategy != "" && !agentConfig.IterationStrategy.IsValid() {
			return fmt.Errorf("%s: agent %q has invalid iteration_strategy: %s", stageRef, agentConfig.Name, agentConfig.IterationStrategy)
		}
		if agentConfig.LLMProvider != "" && !v.cfg.LLMProviderRegistry.Has(agentConfig.LLMProvider) {
			return fmt.Errorf("%s: agent %q specifies LLM provider %q which is not found", stageRef, agentConfig.Name, agentConfig.LLMProvider)
		}
		if agentConfig.MaxIterations != nil && *agentConfig.MaxIterations < 1 {
			return fmt.Errorf("%s: agent %q max_iterations must be at least 1", stageRef, agentConfig.Name)
		}
		for _, serverID := range agentConfig.MCPServers {
			if !v.cfg.MCPServerRegistry.Has(serverID) {
				return fmt.Errorf("%s: agent %q specifies MCP server %q which is not found", stageRef, agentConfig.Name, serverID)
			}
		}
	}

	if stage.Replicas < 0 {
		return fmt.Errorf("%s: replicas must be positive", stageRef)
	}
	if stage.SuccessPolicy != "" && !stage.SuccessPolicy.IsValid() {
		return fmt.Errorf("%s: invalid success_policy: %s", stageRef, stage.SuccessPolicy)
	}
	if stage.MaxIterations != nil && *stage.MaxIterations < 1 {
		return fmt.Errorf("%s: max_iterations must be at least 1", stageRef)
	}

	if stage.Synthesis != nil {
		if stage.Synthesis.Agent != "" && !v.cfg.AgentRegistry.Has(stage.Synthesis.Agent) {
			return fmt.Errorf("%s: synthesis agent %q not found", stageRef, stage.Synthesis.Agent)
		}
		if stage.Synthesis.IterationStrategy != "" && !stage.Synthesis.IterationStrategy.IsValid() {
			return fmt.Errorf("%s: synthesis has invalid iteration_strategy: %s", stageRef, stage.Synthesis.IterationStrategy)
		}
		if stage.Synthesis.LLMProvider != "" && !v.cfg.LLMProviderRegistry.Has(stage.Synthesis.LLMProvider) {
			return fmt.Errorf("%s: synthesis specifies LLM provider %q which is not found", stageRef, stage.Synthesis.LLMProvider)
		}
	}

	return nil
}

func (v *Validator) validateMCPServers() error {
	for serverID, server := range v.cfg.MCPServerRegistry.GetAll() {
		if !server.Transport.Type.IsValid() {
			return NewValidationError("mcp_server", serverID, "transport.type", fmt.Errorf("invalid transport type: %s", server.Transport.Type))
		}

		switch server.Transport.Type {
		case TransportTypeStdio:
			if server.Transport.Command == "" {
				return NewValidationError("mcp_server", serverID, "transport.command", fmt.Errorf("command required for stdio transport"))
			}
		case TransportTypeHTTP, TransportTypeSSE:
			if server.Transport.URL == "" {
				return NewValidationError("mcp_server", serverID, "transport.url", fmt.Errorf("url required for %s transport", server.Transport.Type))
			}
		}

		if server.DataMasking != nil && server.DataMasking.Enabled {
			for _, groupName := range server.DataMasking.PatternGroups {
				if _, exists := masking.BuiltinPatternGroups[groupName]; !exists {
					return NewValidationError("mcp_server", serverID, "data_masking.pattern_groups", fmt.Errorf("pattern group %q not found", groupName))
				}
			}
			for _, patternName := range server.DataMasking.Patterns {
				if _, exists := masking.BuiltinPatterns[patternName]; !exists {
					return NewValidationError("mcp_server", serverID, "data_masking.patterns", fmt.Errorf("pattern %q not found", patternName))
				}
			}
			for i, pattern := range server.DataMasking.CustomPatterns {
				if pattern.Pattern == "" {
					return NewValidationError("mcp_server", serverID, fmt.Sprintf("data_masking.custom_patterns[%d].pattern", i), fmt.Errorf("pattern required"))
				}
				if pattern.Replacement == "" {
					return NewValidationError("mcp_server", serverID, fmt.Sprintf("data_masking.custom_patterns[%d].replacement", i), fmt.Errorf("replacement required"))
				}
			}
		}

		if server.Summarization != nil && server.Summarization.Enabled {
			if server.Summarization.SizeThresholdTokens < 100 {
				return NewValidationError("mcp_server", serverID, "summarization.size_threshold_tokens", fmt.Errorf("must be at least 100"))
			}
			if server.Summarization.SummaryMaxTokenLimit > 0 && server.Summarization.SummaryMaxTokenLimit < 50 {
				return NewValidationError("mcp_server", serverID, "summarization.summary_max_token_limit", fmt.Errorf("must be at least 50 if specified"))
			}
		}
	}
	return nil
}

func (v *Validator) validateLLMProviders() error {
	referenced := v.collectReferencedLLMProviders()

	for name, provider := range v.cfg.LLMProviderRegistry.GetAll() {
		if !provider.Type.IsValid() {
			return NewValidationError("llm_provider", name, "type", fmt.Errorf("invalid provider type: %s", provider.Type))
		}
		if provider.Model == "" {
			return NewValidationError("llm_provider", name, "model", fmt.Errorf("model required"))
		}

		if referenced[name] {
			if provider.APIKeyEnv != "" && os.Getenv(provider.APIKeyEnv) == "" {
				return NewValidationError("llm_provider", name, "api_key_env", fmt.Errorf("environment variable %s is not set", provider.APIKeyEnv))
			}
			if provider.Type == LLMProviderTypeVertexAI {
				if provider.ProjectEnv != "" && os.Getenv(provider.ProjectEnv) == "" {
					return NewValidationError("llm_provider", name, "project_env", fmt.Errorf("environment variable %s is not set", provider.ProjectEnv))
				}
				if provider.LocationEnv != "" && os.Getenv(provider.LocationEnv) == "" {
					return NewValidationError("llm_provider", name, "location_env", fmt.Errorf("environment variable %s is not set", provider.LocationEnv))
				}
			}
		}

		if provider.MaxToolResultTokens < 1000 {
			return NewValidationError("llm_provider", name, "max_tool_result_tokens", fmt.Errorf("must be at least 1000"))
		}

		if provider.Type == LLMProviderTypeGoogle {
			for tool := range provider.NativeTools {
				if !tool.IsValid() {
					return NewValidationError("llm_provider", name, "native_tools", fmt.Errorf("invalid native tool: %s", tool))
				}
			}
		}
	}
	return nil
}

// collectReferencedLLMProviders only checks credentials for providers a
// chain actually uses, so an unused built-in provider doesn't fail startup
// over a key nobody configured.
func (v *Validator) collectReferencedLLMProviders() map[string]bool {
	referenced := make(map[string]bool)
	if v.cfg.ChainRegistry == nil {
		return referenced
	}
	for _, chain := range v.cfg.ChainRegistry.GetAll() {
		if chain.LLMProvider != "" {
			referenced[chain.LLMProvider] = true
		}
		if chain.ExecutiveSummaryProvider != "" {
			referenced[chain.ExecutiveSummaryProvider] = true
		}
		for _, stage := range chain.Stages {
			for _, agent := range stage.Agents {
				if agent.LLMProvider != "" {
					referenced[agent.LLMProvider] = true
				}
			}
			if stage.Synthesis != nil && stage.Synthesis.LLMProvider != "" {
				referenced[stage.Synthesis.LLMProvider] = true
			}
		}
	}
	return referenced
}

func (v *Validator) validateSlack() error {
	s := v.cfg.Slack
	if s == nil || !s.Enabled {
		return nil
	}
	if s.WebhookURLEnv == "" {
		return fmt.Errorf("system.slack.webhook_url_env is required when Slack is enabled")
	}
	if os.Getenv(s.WebhookURLEnv) == "" {
		return fmt.Errorf("system.slack.webhook_url_env: environment variable %s is not set", s.WebhookURLEnv)
	}
	return nil
}
