package config

import "sync"

// BuiltinConfig is the engine's out-of-the-box configuration: the worked
// Kubernetes example from spec §8 (S1), plus every default LLM provider the
// wire client (pkg/llmclient) knows how to address.
type BuiltinConfig struct {
	Agents           map[string]*AgentConfig
	MCPServers       map[string]*MCPServerConfig
	LLMProviders     map[string]*LLMProviderConfig
	ChainDefinitions map[string]*ChainConfig
	DefaultAlertType string
	DefaultRunbook   string
}

var (
	builtinConfig     *BuiltinConfig
	builtinConfigOnce sync.Once
)

// GetBuiltinConfig returns the singleton built-in configuration.
func GetBuiltinConfig() *BuiltinConfig {
	builtinConfigOnce.Do(func() { builtinConfig = buildBuiltinConfig() })
	return builtinConfig
}

func buildBuiltinConfig() *BuiltinConfig {
	return &BuiltinConfig{
		Agents:           builtinAgents(),
		MCPServers:       builtinMCPServers(),
		LLMProviders:     builtinLLMProviders(),
		ChainDefinitions: builtinChains(),
		DefaultAlertType: "kubernetes",
		DefaultRunbook:   defaultRunbookContent,
	}
}

func builtinAgents() map[string]*AgentConfig {
	return map[string]*AgentConfig{
		"KubernetesAgent": {
			Description:       "Kubernetes-specialized investigation agent",
			IterationStrategy: IterationStrategyReact,
			MCPServers:        []string{"kubernetes-server"},
		},
		"SynthesisAgent": {
			Type:              AgentTypeSynthesis,
			Description:       "Synthesizes parallel investigation results",
			IterationStrategy: IterationStrategySynthesis,
			MCPServers:        []string{"kubernetes-server"}, // validator requires at least one server
			CustomInstructions: `You are an Incident Commander synthesizing results from multiple parallel investigations.

1. Critically evaluate each investigation's quality; prefer results with strong evidence.
2. Disregard low-quality results that lack supporting evidence or contain logical errors.
3. Reconcile conflicting information using the most reliable evidence.
4. Produce a single root-cause analysis and actionable recommendations.

Focus on solving the original alert, not on comparing agent performance.`,
		},
	}
}

func builtinMCPServers() map[string]*MCPServerConfig {
	return map[string]*MCPServerConfig{
		"kubernetes-server": {
			Transport: TransportConfig{
				Type:    TransportTypeStdio,
				Command: "npx",
				Args: []string{
					"-y", "kubernetes-mcp-server@0.0.54",
					"--read-only", "--disable-destructive",
					"--kubeconfig", "${KUBECONFIG}",
				},
			},
			Instructions: `For Kubernetes operations:
- In multi-cluster environments, call configuration_contexts_list first to pick the right context.
- Cluster-scoped resources (Namespace, Node, ClusterRole, PersistentVolume) take no namespace parameter.
- Namespace-scoped resources (Pod, Deployment, Service, ConfigMap) require one.
- Prefer namespaced queries over cluster-wide listings in large clusters.`,
			DataMasking: &MaskingConfig{
				Enabled:       true,
				PatternGroups: []string{"kubernetes"},
				Patterns:      []string{"certificate", "token", "email"},
			},
			Summarization: &SummarizationConfig{
				Enabled:              true,
				SizeThresholdTokens:  5000,
				SummaryMaxTokenLimit: 1000,
			},
		},
	}
}

func builtinLLMProviders() map[string]*LLMProviderConfig {
	return map[string]*LLMProviderConfig{
		"google-default": {
			Type:                LLMProviderTypeGoogle,
			Model:               "gemini-2.5-pro",
			APIKeyEnv:           "GOOGLE_API_KEY",
			MaxToolResultTokens: 950000,
			NativeTools: map[GoogleNativeTool]bool{
				GoogleNativeToolGoogleSearch:  true,
				GoogleNativeToolCodeExecution: false,
				GoogleNativeToolURLContext:    true,
			},
		},
		"openai-default": {
			Type:                LLMProviderTypeOpenAI,
			Model:               "gpt-5",
			APIKeyEnv:           "OPENAI_API_KEY",
			MaxToolResultTokens: 250000,
		},
		"anthropic-default": {
			Type:                LLMProviderTypeAnthropic,
			Model:               "claude-sonnet-4-20250514",
			APIKeyEnv:           "ANTHROPIC_API_KEY",
			MaxToolResultTokens: 150000,
		},
		"xai-default": {
			Type:                LLMProviderTypeXAI,
			Model:               "grok-4",
			APIKeyEnv:           "XAI_API_KEY",
			MaxToolResultTokens: 200000,
		},
		"vertexai-default": {
			Type:                LLMProviderTypeVertexAI,
			Model:               "claude-sonnet-4-5@20250929",
			ProjectEnv:          "GOOGLE_CLOUD_PROJECT",
			LocationEnv:         "GOOGLE_CLOUD_LOCATION",
			MaxToolResultTokens: 150000,
		},
	}
}

func builtinChains() map[string]*ChainConfig {
	return map[string]*ChainConfig{
		"kubernetes-agent-chain": {
			AlertTypes:  []string{"kubernetes"},
			Description: "Single-stage Kubernetes analysis",
			Stages: []StageConfig{
				{
					Name:   "analysis",
					Agents: []StageAgentConfig{{Name: "KubernetesAgent"}},
				},
			},
		},
	}
}

const defaultRunbookContent = `# Generic Troubleshooting Guide

1. Analyze the alert and identify the affected system or service.
2. Gather context: check current state and recent changes.
3. Identify the probable root cause given the alert type.
4. Assess scope and severity.
5. Recommend safe investigation or remediation steps, verifying before suggesting changes.
`
