package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeAgents_UserOverridesBuiltin(t *testing.T) {
	builtin := map[string]*AgentConfig{
		"KubernetesAgent": {Description: "builtin"},
	}
	user := map[string]*AgentConfig{
		"KubernetesAgent": {Description: "user override"},
		"CustomAgent":     {Description: "user only"},
	}

	merged := mergeAgents(builtin, user)

	assert.Len(t, merged, 2)
	assert.Equal(t, "user override", merged["KubernetesAgent"].Description)
	assert.Equal(t, "user only", merged["CustomAgent"].Description)
}

func TestMergeMCPServers_UserOverridesBuiltin(t *testing.T) {
	builtin := map[string]*MCPServerConfig{
		"kubernetes-server": {Instructions: "builtin"},
	}
	user := map[string]*MCPServerConfig{
		"kubernetes-server": {Instructions: "user"},
	}

	merged := mergeMCPServers(builtin, user)

	assert.Len(t, merged, 1)
	assert.Equal(t, "user", merged["kubernetes-server"].Instructions)
}

func TestMergeChains_AddsNewWithoutRemovingBuiltin(t *testing.T) {
	builtin := map[string]*ChainConfig{
		"kubernetes-agent-chain": {Description: "builtin"},
	}
	user := map[string]*ChainConfig{
		"custom-chain": {Description: "user"},
	}

	merged := mergeChains(builtin, user)

	assert.Len(t, merged, 2)
	assert.Equal(t, "builtin", merged["kubernetes-agent-chain"].Description)
	assert.Equal(t, "user", merged["custom-chain"].Description)
}

func TestMergeLLMProviders_UserOverridesBuiltin(t *testing.T) {
	builtin := map[string]*LLMProviderConfig{
		"google-default": {Model: "gemini-2.5-pro"},
	}
	user := map[string]*LLMProviderConfig{
		"google-default": {Model: "gemini-3.0-pro"},
	}

	merged := mergeLLMProviders(builtin, user)

	assert.Len(t, merged, 1)
	assert.Equal(t, "gemini-3.0-pro", merged["google-default"].Model)
}
