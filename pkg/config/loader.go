package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// defaultSummarizationThresholdTokens is applied when a server enables
// summarization but doesn't specify its own size threshold.
const defaultSummarizationThresholdTokens = 5000

// tarsyYAMLConfig mirrors tarsy.yaml's top-level shape. AgentChains is
// decoded twice: once into rawAgentChains for the legacy-field rewrite
// (spec §4.11), once by name into AgentChains for the typed result.
type tarsyYAMLConfig struct {
	System      *systemYAMLConfig          `yaml:"system"`
	MCPServers  map[string]MCPServerConfig `yaml:"mcp_servers"`
	Agents      map[string]AgentConfig     `yaml:"agents"`
	AgentChains map[string]ChainConfig     `yaml:"agent_chains"`
	Defaults    *Defaults                  `yaml:"defaults"`
	Queue       *QueueConfig               `yaml:"queue"`
}

type systemYAMLConfig struct {
	Slack     *SlackConfig     `yaml:"slack"`
	Retention *RetentionConfig `yaml:"retention"`
}

type llmProvidersYAMLConfig struct {
	LLMProviders map[string]LLMProviderConfig `yaml:"llm_providers"`
}

// Initialize loads tarsy.yaml and llm-providers.yaml from configDir, merges
// them with the built-in configuration, and validates the result. This is
// the process's single configuration entry point.
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	if err := godotenv.Load(filepath.Join(configDir, ".env")); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to load .env file", "error", err)
	}

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("configuration initialized",
		"agents", stats.Agents,
		"chains", stats.Chains,
		"mcp_servers", stats.MCPServers,
		"llm_providers", stats.LLMProviders)

	return cfg, nil
}

func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{configDir: configDir}

	tarsyConfig, err := loader.loadTarsyYAML()
	if err != nil {
		return nil, NewLoadError("tarsy.yaml", err)
	}

	llmProviders, err := loader.loadLLMProvidersYAML()
	if err != nil {
		return nil, NewLoadError("llm-providers.yaml", err)
	}

	builtin := GetBuiltinConfig()

	agentsMerged := mergeAgents(builtin.Agents, toAgentPtrMap(tarsyConfig.Agents))
	mcpServersMerged := mergeMCPServers(builtin.MCPServers, toMCPServerPtrMap(tarsyConfig.MCPServers))
	chainsMerged := mergeChains(builtin.ChainDefinitions, toChainPtrMap(tarsyConfig.AgentChains))
	llmProvidersMerged := mergeLLMProviders(builtin.LLMProviders, toLLMProviderPtrMap(llmProviders))

	for _, server := range mcpServersMerged {
		if server.Summarization != nil && server.Summarization.Enabled && server.Summarization.SizeThresholdTokens == 0 {
			server.Summarization.SizeThresholdTokens = defaultSummarizationThresholdTokens
		}
	}

	agentRegistry := NewAgentRegistry(agentsMerged)
	mcpServerRegistry := NewMCPServerRegistry(mcpServersMerged)
	chainRegistry := NewChainRegistry(chainsMerged)
	llmProviderRegistry := NewLLMProviderRegistry(llmProvidersMerged)

	defaults := tarsyConfig.Defaults
	if defaults == nil {
		defaults = &Defaults{}
	}
	if defaults.AlertType == "" {
		defaults.AlertType = builtin.DefaultAlertType
	}
	if defaults.Runbook == "" {
		defaults.Runbook = builtin.DefaultRunbook
	}
	if defaults.AlertMasking == nil {
		defaults.AlertMasking = &AlertMaskingDefaults{Enabled: true, PatternGroup: "security"}
	}

	queueConfig := DefaultQueueConfig()
	if tarsyConfig.Queue != nil {
		if err := mergo.Merge(queueConfig, tarsyConfig.Queue, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge queue config: %w", err)
		}
	}

	slackCfg := resolveSlackConfig(tarsyConfig.System)
	retentionCfg := resolveRetentionConfig(tarsyConfig.System)

	return &Config{
		configDir:           configDir,
		Defaults:            defaults,
		Queue:               queueConfig,
		Retention:           retentionCfg,
		Slack:               slackCfg,
		AgentRegistry:       agentRegistry,
		ChainRegistry:       chainRegistry,
		MCPServerRegistry:   mcpServerRegistry,
		LLMProviderRegistry: llmProviderRegistry,
	}, nil
}

func validate(cfg *Config) error {
	return NewValidator(cfg).ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

// loadTarsyYAML loads tarsy.yaml in two passes: a raw map decode first, so
// rewriteLegacyChainFields can run the chat_enabled backward-compatibility
// rewrite (spec §4.11) before the strict, typed decode that follows.
func (l *configLoader) loadTarsyYAML() (*tarsyYAMLConfig, error) {
	path := filepath.Join(l.configDir, "tarsy.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &tarsyYAMLConfig{
				MCPServers:  map[string]MCPServerConfig{},
				Agents:      map[string]AgentConfig{},
				AgentChains: map[string]ChainConfig{},
			}, nil
		}
		return nil, err
	}
	data = ExpandEnv(data)

	var raw struct {
		AgentChains map[string]any `yaml:"agent_chains"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	if raw.AgentChains != nil {
		if err := rewriteLegacyChainFields(raw.AgentChains); err != nil {
			return nil, err
		}
		rewritten, err := yaml.Marshal(raw.AgentChains)
		if err != nil {
			return nil, fmt.Errorf("re-marshaling rewritten agent_chains: %w", err)
		}
		data, err = spliceAgentChains(data, rewritten)
		if err != nil {
			return nil, err
		}
	}

	var config tarsyYAMLConfig
	config.MCPServers = make(map[string]MCPServerConfig)
	config.Agents = make(map[string]AgentConfig)
	config.AgentChains = make(map[string]ChainConfig)
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return &config, nil
}

// spliceAgentChains replaces the document's agent_chains section with its
// rewritten form by re-decoding the whole document as a generic map,
// swapping the section, and re-marshaling. Simpler than textual patching
// and safe because yaml.v3 preserves map key order only loosely, which
// doesn't matter once this reaches the typed decode above.
func spliceAgentChains(original, rewrittenChains []byte) ([]byte, error) {
	var whole map[string]any
	if err := yaml.Unmarshal(original, &whole); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	var chains map[string]any
	if err := yaml.Unmarshal(rewrittenChains, &chains); err != nil {
		return nil, err
	}
	whole["agent_chains"] = chains
	return yaml.Marshal(whole)
}

func (l *configLoader) loadLLMProvidersYAML() (map[string]LLMProviderConfig, error) {
	var config llmProvidersYAMLConfig
	config.LLMProviders = make(map[string]LLMProviderConfig)
	if err := l.loadYAML("llm-providers.yaml", &config); err != nil {
		if errors.Is(err, ErrConfigNotFound) {
			return map[string]LLMProviderConfig{}, nil
		}
		return nil, err
	}
	return config.LLMProviders, nil
}

func resolveSlackConfig(sys *systemYAMLConfig) *SlackConfig {
	if sys == nil || sys.Slack == nil {
		return &SlackConfig{Enabled: false}
	}
	return sys.Slack
}

func resolveRetentionConfig(sys *systemYAMLConfig) *RetentionConfig {
	if sys == nil || sys.Retention == nil {
		return DefaultRetentionConfig()
	}
	cfg := DefaultRetentionConfig()
	r := sys.Retention
	if r.SessionRetentionDays > 0 {
		cfg.SessionRetentionDays = r.SessionRetentionDays
	}
	if r.EventTTL > 0 {
		cfg.EventTTL = r.EventTTL
	}
	if r.CleanupInterval > 0 {
		cfg.CleanupInterval = r.CleanupInterval
	}
	return cfg
}

func toAgentPtrMap(m map[string]AgentConfig) map[string]*AgentConfig {
	out := make(map[string]*AgentConfig, len(m))
	for k, v := range m {
		v := v
		out[k] = &v
	}
	return out
}

func toMCPServerPtrMap(m map[string]MCPServerConfig) map[string]*MCPServerConfig {
	out := make(map[string]*MCPServerConfig, len(m))
	for k, v := range m {
		v := v
		out[k] = &v
	}
	return out
}

func toChainPtrMap(m map[string]ChainConfig) map[string]*ChainConfig {
	out := make(map[string]*ChainConfig, len(m))
	for k, v := range m {
		v := v
		out[k] = &v
	}
	return out
}

func toLLMProviderPtrMap(m map[string]LLMProviderConfig) map[string]*LLMProviderConfig {
	out := make(map[string]*LLMProviderConfig, len(m))
	for k, v := range m {
		v := v
		out[k] = &v
	}
	return out
}
