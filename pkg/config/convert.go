package config

import (
	"github.com/tarsy-project/tarsy-core/pkg/llmclient"
	"github.com/tarsy-project/tarsy-core/pkg/masking"
	"github.com/tarsy-project/tarsy-core/pkg/mcpclient"
)

// BuildMCPRegistry converts every registered MCPServerConfig into the
// wire-ready mcpclient.ServerConfig shape the MCP client actually consumes.
func BuildMCPRegistry(reg *MCPServerRegistry) *mcpclient.Registry {
	all := reg.GetAll()
	servers := make([]*mcpclient.ServerConfig, 0, len(all))
	for id, s := range all {
		servers = append(servers, toMCPServerConfig(id, s))
	}
	return mcpclient.NewRegistry(servers)
}

func toMCPServerConfig(id string, s *MCPServerConfig) *mcpclient.ServerConfig {
	out := &mcpclient.ServerConfig{
		ID:           id,
		Instructions: s.Instructions,
		Transport: mcpclient.TransportConfig{
			Type:        mcpclient.TransportType(s.Transport.Type),
			Command:     s.Transport.Command,
			Args:        s.Transport.Args,
			URL:         s.Transport.URL,
			BearerToken: s.Transport.BearerToken,
			VerifySSL:   s.Transport.VerifySSL,
			Timeout:     s.Transport.Timeout,
		},
	}
	if s.DataMasking != nil {
		out.DataMasking = toDataMaskingConfig(s.DataMasking)
	}
	if s.Summarization != nil {
		out.Summarization = &mcpclient.SummarizationConfig{
			Enabled:          s.Summarization.Enabled,
			ThresholdTokens:  s.Summarization.SizeThresholdTokens,
			SummaryMaxTokens: s.Summarization.SummaryMaxTokenLimit,
		}
	}
	return out
}

func toDataMaskingConfig(m *MaskingConfig) *masking.DataMaskingConfig {
	out := &masking.DataMaskingConfig{
		Enabled:       m.Enabled,
		PatternGroups: m.PatternGroups,
		Patterns:      m.Patterns,
	}
	for _, p := range m.CustomPatterns {
		out.CustomPatterns = append(out.CustomPatterns, masking.PatternDef{
			Pattern:     p.Pattern,
			Replacement: p.Replacement,
			Description: p.Description,
		})
	}
	return out
}

// BuildAlertMaskingConfig converts the system-wide alert masking defaults
// into the shape masking.NewMaskingService expects.
func BuildAlertMaskingConfig(d *AlertMaskingDefaults) masking.AlertMaskingConfig {
	if d == nil {
		return masking.AlertMaskingConfig{}
	}
	return masking.AlertMaskingConfig{Enabled: d.Enabled, PatternGroup: d.PatternGroup}
}

// ToLLMProviderConfig converts a resolved LLMProviderConfig into the
// llmclient wire-request shape.
func ToLLMProviderConfig(p *LLMProviderConfig) *llmclient.ProviderConfig {
	out := &llmclient.ProviderConfig{
		Type:                llmclient.ProviderType(p.Type),
		Model:               p.Model,
		APIKeyEnv:           p.APIKeyEnv,
		BaseURL:             p.BaseURL,
		MaxToolResultTokens: p.MaxToolResultTokens,
	}
	if p.Type == LLMProviderTypeVertexAI {
		out.ProjectEnv = p.ProjectEnv
		out.LocationEnv = p.LocationEnv
	}
	if len(p.NativeTools) > 0 {
		out.NativeTools = make(map[llmclient.NativeTool]bool, len(p.NativeTools))
		for tool, enabled := range p.NativeTools {
			out.NativeTools[llmclient.NativeTool(tool)] = enabled
		}
	}
	return out
}
