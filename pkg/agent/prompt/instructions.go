package prompt

import (
	"fmt"
	"strings"

	"github.com/tarsy-project/tarsy-core/pkg/config"
)

// generalInstructions is Tier 1 of every investigation prompt: baseline SRE
// behavior independent of any agent or MCP server.
const generalInstructions = `You are an expert Site Reliability Engineer investigating a production
incident. You have access to tools that let you inspect the live system.

General principles:
- Investigate before concluding — gather evidence rather than guessing
- Be precise: cite the specific resources, names, and values you observed
- Distinguish symptoms from root cause
- Prefer the least invasive query that answers the question
- If a tool call fails, consider whether the failure itself is informative`

// synthesisGeneralInstructions is Tier 1 for the synthesis strategy: no
// tools are available, so the instructions are about combining existing
// findings rather than investigating further.
const synthesisGeneralInstructions = `You are an expert Incident Commander synthesizing the findings of one or
more investigation agents that have already run. You have no tools — work
only from the investigation output given to you.

General principles:
- Reconcile findings across stages rather than simply concatenating them
- Call out contradictions or gaps between stages explicitly
- Produce a single coherent root cause and remediation plan
- Do not invent details the investigations did not surface`

// ComposeInstructions builds the full Tier 1 + Tier 2 + Tier 3 system
// instructions for an investigation agent (ReAct or NativeThinking).
func ComposeInstructions(cfg *config.Config, mcpServers []string, customInstructions string, failedServers map[string]string, toolSelectionHints string) string {
	var b strings.Builder
	b.WriteString(generalInstructions)

	appendMCPInstructions(&b, cfg, mcpServers)
	appendUnavailableServerWarnings(&b, failedServers)

	if strings.TrimSpace(toolSelectionHints) != "" {
		b.WriteString("\n\n## Tool Selection Guidance\n\n")
		b.WriteString(toolSelectionHints)
	}

	if strings.TrimSpace(customInstructions) != "" {
		b.WriteString("\n\n## Additional Instructions\n\n")
		b.WriteString(customInstructions)
	}

	return b.String()
}

// composeSynthesisInstructions builds the synthesis agent's system
// instructions: Tier 1 synthesis framing plus Tier 3 custom instructions.
// Synthesis agents have no MCP servers, so Tier 2 never applies.
func composeSynthesisInstructions(customInstructions string) string {
	var b strings.Builder
	b.WriteString(synthesisGeneralInstructions)
	if strings.TrimSpace(customInstructions) != "" {
		b.WriteString("\n\n## Additional Instructions\n\n")
		b.WriteString(customInstructions)
	}
	return b.String()
}

// appendMCPInstructions appends Tier 2: each configured MCP server's own
// instructions, pulled from the registry, server-by-server in the order
// given so the rendered prompt is stable.
func appendMCPInstructions(b *strings.Builder, cfg *config.Config, mcpServers []string) {
	if cfg == nil || cfg.MCPServerRegistry == nil {
		return
	}
	for _, serverID := range mcpServers {
		serverConfig, err := cfg.MCPServerRegistry.Get(serverID)
		if err != nil || serverConfig == nil {
			continue
		}
		if strings.TrimSpace(serverConfig.Instructions) == "" {
			continue
		}
		fmt.Fprintf(b, "\n\n## %s Instructions\n\n%s", serverID, serverConfig.Instructions)
	}
}

// appendUnavailableServerWarnings appends a warning for every MCP server
// that failed to initialize for this session, so the LLM doesn't burn
// iterations calling tools that will only ever fail.
func appendUnavailableServerWarnings(b *strings.Builder, failedServers map[string]string) {
	if len(failedServers) == 0 {
		return
	}
	b.WriteString("\n\n## Unavailable Servers\n\n")
	b.WriteString("The following MCP servers are unavailable this session; do not attempt to call their tools:\n")
	for serverID, reason := range failedServers {
		fmt.Fprintf(b, "- %s: %s\n", serverID, reason)
	}
}
