package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMCPRegistry_ConvertsServerShape(t *testing.T) {
	reg := NewMCPServerRegistry(map[string]*MCPServerConfig{
		"kubernetes-server": {
			Transport: TransportConfig{Type: TransportTypeStdio, Command: "npx", Args: []string{"-y", "kubernetes-mcp-server"}},
			DataMasking: &MaskingConfig{
				Enabled:       true,
				PatternGroups: []string{"kubernetes"},
				CustomPatterns: []MaskingPattern{
					{Pattern: "foo", Replacement: "***"},
				},
			},
			Summarization: &SummarizationConfig{Enabled: true, SizeThresholdTokens: 5000, SummaryMaxTokenLimit: 1000},
		},
	})

	out := BuildMCPRegistry(reg)
	server, err := out.Get("kubernetes-server")
	require.NoError(t, err)

	assert.Equal(t, "npx", server.Transport.Command)
	require.NotNil(t, server.DataMasking)
	assert.True(t, server.DataMasking.Enabled)
	assert.Equal(t, []string{"kubernetes"}, server.DataMasking.PatternGroups)
	require.Len(t, server.DataMasking.CustomPatterns, 1)
	assert.Equal(t, "foo", server.DataMasking.CustomPatterns[0].Pattern)
	require.NotNil(t, server.Summarization)
	assert.Equal(t, 5000, server.Summarization.ThresholdTokens)
}

func TestToLLMProviderConfig_VertexAICarriesProjectAndLocation(t *testing.T) {
	provider := &LLMProviderConfig{
		Type:                LLMProviderTypeVertexAI,
		Model:               "claude-sonnet-4-5@20250929",
		ProjectEnv:          "GOOGLE_CLOUD_PROJECT",
		LocationEnv:         "GOOGLE_CLOUD_LOCATION",
		MaxToolResultTokens: 150000,
	}

	out := ToLLMProviderConfig(provider)

	assert.Equal(t, "GOOGLE_CLOUD_PROJECT", out.ProjectEnv)
	assert.Equal(t, "GOOGLE_CLOUD_LOCATION", out.LocationEnv)
}

func TestToLLMProviderConfig_NativeToolsCarried(t *testing.T) {
	provider := &LLMProviderConfig{
		Type:                LLMProviderTypeGoogle,
		Model:               "gemini-2.5-pro",
		MaxToolResultTokens: 950000,
		NativeTools: map[GoogleNativeTool]bool{
			GoogleNativeToolGoogleSearch: true,
		},
	}

	out := ToLLMProviderConfig(provider)

	assert.True(t, out.NativeTools["google_search"])
}

func TestBuildAlertMaskingConfig_NilDefaultsToZeroValue(t *testing.T) {
	out := BuildAlertMaskingConfig(nil)
	assert.False(t, out.Enabled)
	assert.Empty(t, out.PatternGroup)
}
