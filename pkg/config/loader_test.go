package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestInitialize_LoadsBuiltinsWithEmptyUserConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("KUBECONFIG", "/home/test/.kube/config")

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	stats := cfg.Stats()
	assert.GreaterOrEqual(t, stats.Agents, 2)
	assert.GreaterOrEqual(t, stats.MCPServers, 1)
	assert.GreaterOrEqual(t, stats.LLMProviders, 5)
	assert.GreaterOrEqual(t, stats.Chains, 1)

	agent, err := cfg.GetAgent("KubernetesAgent")
	require.NoError(t, err)
	assert.Equal(t, IterationStrategyReact, agent.IterationStrategy)
}

func TestInitialize_UserAgentOverridesBuiltin(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("KUBECONFIG", "/home/test/.kube/config")
	writeConfigFile(t, dir, "tarsy.yaml", `
agents:
  KubernetesAgent:
    description: "customized"
    iteration_strategy: react
    mcp_servers: ["kubernetes-server"]
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	agent, err := cfg.GetAgent("KubernetesAgent")
	require.NoError(t, err)
	assert.Equal(t, "customized", agent.Description)
}

func TestInitialize_RewritesLegacyChatEnabledField(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("KUBECONFIG", "/home/test/.kube/config")
	writeConfigFile(t, dir, "tarsy.yaml", `
agent_chains:
  legacy-chain:
    alert_types: ["legacy-alert"]
    stages:
      - name: analysis
        agents:
          - name: KubernetesAgent
    chat_enabled: true
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	chain, err := cfg.GetChain("legacy-chain")
	require.NoError(t, err)
	require.NotNil(t, chain.Chat)
	assert.True(t, chain.Chat.Enabled)
}

func TestInitialize_RejectsUnknownChainField(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("KUBECONFIG", "/home/test/.kube/config")
	writeConfigFile(t, dir, "tarsy.yaml", `
agent_chains:
  bad-chain:
    alert_types: ["bad-alert"]
    stages: []
    scoring:
      enabled: true
`)

	_, err := Initialize(context.Background(), dir)
	assert.Error(t, err)
}

func TestInitialize_QueueConfigMergesUserOverridesOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("KUBECONFIG", "/home/test/.kube/config")
	writeConfigFile(t, dir, "tarsy.yaml", `
queue:
  worker_count: 8
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Queue.WorkerCount)
	assert.Equal(t, DefaultQueueConfig().OrphanThreshold, cfg.Queue.OrphanThreshold)
}

func TestInitialize_EnvVarExpansionInMCPServerArgs(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("KUBECONFIG", "/custom/kubeconfig/path")

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	server, err := cfg.GetMCPServer("kubernetes-server")
	require.NoError(t, err)
	assert.Contains(t, server.Transport.Args, "/custom/kubeconfig/path")
}

func TestInitialize_MissingTarsyYAMLFallsBackToBuiltinsOnly(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("KUBECONFIG", "/home/test/.kube/config")

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "kubernetes", cfg.Defaults.AlertType)
}

func TestInitialize_UserLLMProviderMergesWithBuiltins(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("KUBECONFIG", "/home/test/.kube/config")
	writeConfigFile(t, dir, "llm-providers.yaml", `
llm_providers:
  custom-provider:
    type: openai
    model: gpt-5-custom
    max_tool_result_tokens: 200000
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	provider, err := cfg.GetLLMProvider("custom-provider")
	require.NoError(t, err)
	assert.Equal(t, "gpt-5-custom", provider.Model)

	_, err = cfg.GetLLMProvider("google-default")
	require.NoError(t, err)
}
