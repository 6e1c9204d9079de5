package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfigForValidator() *Config {
	return &Config{
		Defaults: &Defaults{
			AlertMasking: &AlertMaskingDefaults{Enabled: true, PatternGroup: "security"},
		},
		Queue: DefaultQueueConfig(),
		AgentRegistry: NewAgentRegistry(map[string]*AgentConfig{
			"KubernetesAgent": {IterationStrategy: IterationStrategyReact, MCPServers: []string{"kubernetes-server"}},
		}),
		MCPServerRegistry: NewMCPServerRegistry(map[string]*MCPServerConfig{
			"kubernetes-server": {Transport: TransportConfig{Type: TransportTypeStdio, Command: "npx"}},
		}),
		LLMProviderRegistry: NewLLMProviderRegistry(map[string]*LLMProviderConfig{
			"google-default": {Type: LLMProviderTypeGoogle, Model: "gemini-2.5-pro", MaxToolResultTokens: 950000},
		}),
		ChainRegistry: NewChainRegistry(map[string]*ChainConfig{
			"kubernetes-agent-chain": {
				AlertTypes: []string{"kubernetes"},
				Stages: []StageConfig{
					{Name: "analysis", Agents: []StageAgentConfig{{Name: "KubernetesAgent"}}},
				},
			},
		}),
		Slack: &SlackConfig{Enabled: false},
	}
}

func TestValidateAll_ValidConfigPasses(t *testing.T) {
	cfg := validConfigForValidator()
	assert.NoError(t, NewValidator(cfg).ValidateAll())
}

func TestValidateQueue_RejectsZeroWorkerCount(t *testing.T) {
	cfg := validConfigForValidator()
	cfg.Queue.WorkerCount = 0
	err := NewValidator(cfg).ValidateAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "worker_count")
}

func TestValidateQueue_RejectsJitterGreaterThanInterval(t *testing.T) {
	cfg := validConfigForValidator()
	cfg.Queue.PollIntervalJitter = cfg.Queue.PollInterval + time.Second
	err := NewValidator(cfg).ValidateAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "poll_interval_jitter")
}

func TestValidateQueue_RejectsHeartbeatGreaterThanOrphanThreshold(t *testing.T) {
	cfg := validConfigForValidator()
	cfg.Queue.HeartbeatInterval = cfg.Queue.OrphanThreshold + time.Second
	err := NewValidator(cfg).ValidateAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "heartbeat_interval")
}

func TestValidateAgents_RejectsUnknownMCPServer(t *testing.T) {
	cfg := validConfigForValidator()
	cfg.AgentRegistry = NewAgentRegistry(map[string]*AgentConfig{
		"KubernetesAgent": {MCPServers: []string{"does-not-exist"}},
	})
	err := NewValidator(cfg).ValidateAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does-not-exist")
}

func TestValidateMCPServers_RejectsStdioWithoutCommand(t *testing.T) {
	cfg := validConfigForValidator()
	cfg.MCPServerRegistry = NewMCPServerRegistry(map[string]*MCPServerConfig{
		"kubernetes-server": {Transport: TransportConfig{Type: TransportTypeStdio}},
	})
	err := NewValidator(cfg).ValidateAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command")
}

func TestValidateMCPServers_RejectsHTTPWithoutURL(t *testing.T) {
	cfg := validConfigForValidator()
	cfg.MCPServerRegistry = NewMCPServerRegistry(map[string]*MCPServerConfig{
		"kubernetes-server": {Transport: TransportConfig{Type: TransportTypeHTTP}},
	})
	err := NewValidator(cfg).ValidateAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url")
}

func TestValidateMCPServers_RejectsUnknownPatternGroup(t *testing.T) {
	cfg := validConfigForValidator()
	cfg.MCPServerRegistry = NewMCPServerRegistry(map[string]*MCPServerConfig{
		"kubernetes-server": {
			Transport:   TransportConfig{Type: TransportTypeStdio, Command: "npx"},
			DataMasking: &MaskingConfig{Enabled: true, PatternGroups: []string{"does-not-exist"}},
		},
	})
	err := NewValidator(cfg).ValidateAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pattern group")
}

func TestValidateLLMProviders_RejectsLowMaxToolResultTokens(t *testing.T) {
	cfg := validConfigForValidator()
	cfg.LLMProviderRegistry = NewLLMProviderRegistry(map[string]*LLMProviderConfig{
		"google-default": {Type: LLMProviderTypeGoogle, Model: "gemini-2.5-pro", MaxToolResultTokens: 10},
	})
	err := NewValidator(cfg).ValidateAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_tool_result_tokens")
}

func TestValidateLLMProviders_RequiresAPIKeyEnvOnlyWhenReferenced(t *testing.T) {
	cfg := validConfigForValidator()
	cfg.LLMProviderRegistry = NewLLMProviderRegistry(map[string]*LLMProviderConfig{
		"google-default":  {Type: LLMProviderTypeGoogle, Model: "gemini-2.5-pro", MaxToolResultTokens: 950000, APIKeyEnv: "UNSET_GOOGLE_KEY"},
		"unused-provider": {Type: LLMProviderTypeOpenAI, Model: "gpt-5", MaxToolResultTokens: 250000, APIKeyEnv: "UNSET_OPENAI_KEY"},
	})
	cfg.ChainRegistry = NewChainRegistry(map[string]*ChainConfig{
		"kubernetes-agent-chain": {
			AlertTypes:  []string{"kubernetes"},
			LLMProvider: "google-default",
			Stages: []StageConfig{
				{Name: "analysis", Agents: []StageAgentConfig{{Name: "KubernetesAgent"}}},
			},
		},
	})
	// google-default is referenced by the chain but its key env var is
	// unset, so validation must fail specifically on it; unused-provider's
	// unset key must not trip validation since nothing references it.
	err := NewValidator(cfg).ValidateAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNSET_GOOGLE_KEY")
}

func TestValidateChains_RejectsDuplicateAlertType(t *testing.T) {
	cfg := validConfigForValidator()
	cfg.ChainRegistry = NewChainRegistry(map[string]*ChainConfig{
		"chain-a": {AlertTypes: []string{"kubernetes"}, Stages: []StageConfig{{Name: "s", Agents: []StageAgentConfig{{Name: "KubernetesAgent"}}}}},
		"chain-b": {AlertTypes: []string{"kubernetes"}, Stages: []StageConfig{{Name: "s", Agents: []StageAgentConfig{{Name: "KubernetesAgent"}}}}},
	})
	err := NewValidator(cfg).ValidateAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already mapped")
}

func TestValidateChains_RejectsEmptyStages(t *testing.T) {
	cfg := validConfigForValidator()
	cfg.ChainRegistry = NewChainRegistry(map[string]*ChainConfig{
		"chain-a": {AlertTypes: []string{"kubernetes"}},
	})
	err := NewValidator(cfg).ValidateAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage")
}

func TestValidateDefaults_RequiresPatternGroupWhenMaskingEnabled(t *testing.T) {
	cfg := validConfigForValidator()
	cfg.Defaults.AlertMasking = &AlertMaskingDefaults{Enabled: true, PatternGroup: ""}
	err := NewValidator(cfg).ValidateAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pattern_group")
}

func TestValidateSlack_RequiresWebhookEnvWhenEnabled(t *testing.T) {
	cfg := validConfigForValidator()
	cfg.Slack = &SlackConfig{Enabled: true}
	err := NewValidator(cfg).ValidateAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook_url_env")
}

func TestValidateSlack_PassesWhenDisabled(t *testing.T) {
	cfg := validConfigForValidator()
	cfg.Slack = &SlackConfig{Enabled: false}
	assert.NoError(t, NewValidator(cfg).ValidateAll())
}
