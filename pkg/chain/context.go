package chain

import (
	"fmt"
	"strings"

	"github.com/tarsy-project/tarsy-core/pkg/llmclient"
	"github.com/tarsy-project/tarsy-core/pkg/model"
)

// stageFinding is one completed stage's contribution to the next stage's
// context, kept in memory across the chain loop — no DB round-trip needed,
// since the final analysis already flows through agent.ExecutionResult.
type stageFinding struct {
	stageName     string
	finalAnalysis string
}

// buildChainContext renders completed stages' findings for the next
// stage's prompt. Unlike the teacher's BuildStageContext, this does not add
// CHAIN_CONTEXT_START/END markers: prompt.FormatChainContext already owns
// that wrapping one layer up, and adding them here too would double-wrap
// every downstream prompt.
func buildChainContext(findings []stageFinding) string {
	if len(findings) == 0 {
		return ""
	}

	var b strings.Builder
	for i, f := range findings {
		fmt.Fprintf(&b, "### Stage %d: %s\n\n", i+1, f.stageName)
		if f.finalAnalysis != "" {
			b.WriteString(f.finalAnalysis)
		} else {
			b.WriteString("(No final analysis produced)")
		}
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// resolveMCPServers applies the alert-level MCP override (spec §4.11: "the
// alert-level mcp selection always wins") over the hierarchy-resolved
// server list, returning the servers to fetch tools from plus a per-server
// tool filter (nil entry means "all tools").
func resolveMCPServers(hierarchyServers []string, selection *model.MCPSelection) (servers []string, toolFilter map[string][]string) {
	if selection == nil || len(selection.Servers) == 0 {
		return hierarchyServers, nil
	}

	servers = make([]string, 0, len(selection.Servers))
	toolFilter = make(map[string][]string, len(selection.Servers))
	for _, s := range selection.Servers {
		servers = append(servers, s.Name)
		if len(s.Tools) > 0 {
			toolFilter[s.Name] = s.Tools
		}
	}
	return servers, toolFilter
}

// resolveNativeTools translates the alert-level native-tools override
// (spec §4.11) into the llmclient.NativeTool keys GenerateRequest expects.
// Returns nil when the session carries no override, so the provider's own
// configured defaults apply.
func resolveNativeTools(cfg *model.NativeToolsConfig) map[llmclient.NativeTool]bool {
	if cfg == nil {
		return nil
	}
	out := make(map[llmclient.NativeTool]bool, 3)
	if cfg.GoogleSearch != nil {
		out[llmclient.NativeToolGoogleSearch] = *cfg.GoogleSearch
	}
	if cfg.CodeExecution != nil {
		out[llmclient.NativeToolCodeExecution] = *cfg.CodeExecution
	}
	if cfg.URLContext != nil {
		out[llmclient.NativeToolURLContext] = *cfg.URLContext
	}
	return out
}
