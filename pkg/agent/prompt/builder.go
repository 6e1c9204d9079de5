package prompt

import (
	"fmt"

	"github.com/tarsy-project/tarsy-core/pkg/agent"
	"github.com/tarsy-project/tarsy-core/pkg/config"
	"github.com/tarsy-project/tarsy-core/pkg/mcpclient"
	"github.com/tarsy-project/tarsy-core/pkg/model"
)

// Builder implements agent.PromptBuilder: it composes the tiered system
// instructions and the investigation/synthesis user message for each
// iteration strategy.
type Builder struct {
	cfg *config.Config
}

// NewBuilder constructs a Builder backed by the global resolved
// configuration (needed to look up MCP server instructions by ID).
func NewBuilder(cfg *config.Config) *Builder {
	if cfg == nil {
		panic("prompt.NewBuilder: cfg must not be nil")
	}
	return &Builder{cfg: cfg}
}

func (b *Builder) buildInvestigationUserMessage(execCtx *agent.ExecutionContext, prevStageContext string) string {
	msg := FormatAlertSection(execCtx.AlertType, execCtx.AlertData)
	msg += "\n\n" + FormatRunbookSection(execCtx.RunbookContent)
	if chainCtx := FormatChainContext(prevStageContext); chainCtx != "" {
		msg += "\n\n" + chainCtx
	}
	msg += "\n\n" + analysisTask
	return msg
}

func (b *Builder) buildSynthesisUserMessage(execCtx *agent.ExecutionContext, prevStageContext string) string {
	msg := FormatAlertSection(execCtx.AlertType, execCtx.AlertData)
	if chainCtx := FormatChainContext(prevStageContext); chainCtx != "" {
		msg += "\n\n" + chainCtx
	}
	msg += "\n\n" + synthesisTask
	return msg
}

// BuildReActMessages builds the [system, user] pair for a ReAct
// investigation: Tier 1-3 instructions plus the ReAct format guide and the
// tool reference as the system message, the alert/runbook/chain-context/
// task as the user message.
func (b *Builder) BuildReActMessages(execCtx *agent.ExecutionContext, prevStageContext string, tools []mcpclient.ToolDefinition) []model.Message {
	system := ComposeInstructions(b.cfg, execCtx.Config.MCPServers, execCtx.Config.CustomInstructions, execCtx.FailedServers, execCtx.ToolSelectionHints)
	system += "\n\n" + reactFormatInstructions
	system += "\n\n## Available Tools\n\n" + FormatToolDescriptions(tools)

	return []model.Message{
		{Role: model.RoleSystem, Content: system},
		{Role: model.RoleUser, Content: b.buildInvestigationUserMessage(execCtx, prevStageContext)},
	}
}

// BuildNativeThinkingMessages builds the [system, user] pair for a
// native-function-calling investigation. Tool descriptions are not
// rendered into the system prompt since the provider's native tool-calling
// API carries the tool schema directly.
func (b *Builder) BuildNativeThinkingMessages(execCtx *agent.ExecutionContext, prevStageContext string) []model.Message {
	system := ComposeInstructions(b.cfg, execCtx.Config.MCPServers, execCtx.Config.CustomInstructions, execCtx.FailedServers, execCtx.ToolSelectionHints)

	return []model.Message{
		{Role: model.RoleSystem, Content: system},
		{Role: model.RoleUser, Content: b.buildInvestigationUserMessage(execCtx, prevStageContext)},
	}
}

// BuildSynthesisMessages builds the [system, user] pair for a synthesis
// stage: no MCP instructions (synthesis has no tools), just the synthesis
// framing plus custom instructions, and a user message combining the
// alert and prior-stage findings.
func (b *Builder) BuildSynthesisMessages(execCtx *agent.ExecutionContext, prevStageContext string) []model.Message {
	system := composeSynthesisInstructions(execCtx.Config.CustomInstructions)

	return []model.Message{
		{Role: model.RoleSystem, Content: system},
		{Role: model.RoleUser, Content: b.buildSynthesisUserMessage(execCtx, prevStageContext)},
	}
}

// BuildForcedConclusionPrompt builds the user message appended to force a
// final answer once the iteration budget is exhausted (spec §4.7).
func (b *Builder) BuildForcedConclusionPrompt(iteration int, strategy config.IterationStrategy) string {
	formatGuide := reactForcedConclusionFormat
	if strategy == config.IterationStrategyNativeThinking {
		formatGuide = nativeThinkingForcedConclusionFormat
	}
	return fmt.Sprintf(forcedConclusionTemplate, iteration, formatGuide)
}

// BuildMCPSummarizationSystemPrompt builds the system prompt for the
// best-effort LLM call that shrinks an oversized tool result before it is
// appended to the conversation.
func (b *Builder) BuildMCPSummarizationSystemPrompt(serverName, toolName string, maxSummaryTokens int) string {
	return fmt.Sprintf(mcpSummarizationSystemTemplate, serverName, toolName, maxSummaryTokens)
}

// BuildMCPSummarizationUserPrompt builds the user prompt for the same call.
func (b *Builder) BuildMCPSummarizationUserPrompt(conversationContext, serverName, toolName, resultText string) string {
	return fmt.Sprintf(mcpSummarizationUserTemplate, conversationContext, serverName, toolName, resultText)
}

// BuildExecutiveSummarySystemPrompt returns the system prompt for the
// post-chain executive summary call (spec §4.8).
func (b *Builder) BuildExecutiveSummarySystemPrompt() string {
	return executiveSummarySystemPrompt
}

// BuildExecutiveSummaryUserPrompt builds the user prompt asking for a bounded
// summary of finalAnalysis; the length bound itself is enforced by the
// request's MaxTokens, not by prompt wording.
func (b *Builder) BuildExecutiveSummaryUserPrompt(finalAnalysis string) string {
	return fmt.Sprintf(executiveSummaryUserTemplate, finalAnalysis)
}
