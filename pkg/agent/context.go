package agent

import (
	"github.com/tarsy-project/tarsy-core/pkg/config"
	"github.com/tarsy-project/tarsy-core/pkg/eventbus"
	"github.com/tarsy-project/tarsy-core/pkg/llmclient"
	"github.com/tarsy-project/tarsy-core/pkg/mcpclient"
	"github.com/tarsy-project/tarsy-core/pkg/model"
	"github.com/tarsy-project/tarsy-core/pkg/store"
)

// ExecutionContext is everything one agent execution needs, assembled by
// the chain executor (component 8) before calling Agent.Execute. Unlike the
// teacher's equivalent, this does not duplicate ToolExecutor/LLMClient/
// ConversationMessage types locally — it consumes pkg/mcpclient and
// pkg/llmclient's own types directly, since both already exist in this
// module and a second parallel set of tool-call/LLM abstractions would be
// dead weight.
type ExecutionContext struct {
	SessionID   string
	StageID     string
	ExecutionID string
	AgentName   string
	AgentIndex  int

	AlertType      string
	AlertData      string // masked, prompt-formatted (JSON or key:value text)
	RunbookContent string

	Config *config.ResolvedAgentConfig

	LLMClient    *llmclient.Client
	ToolExecutor mcpclient.ToolExecutor

	Store  store.Store
	Events eventbus.Bus

	// MCPRegistry backs per-server summarization-threshold lookups; nil for
	// a synthesis execution, which never calls tools.
	MCPRegistry *config.MCPServerRegistry

	PromptBuilder PromptBuilder

	// ToolSelectionHints carries the executing Agent's
	// Agent.ToolSelectionHints() into the prompt builder; BaseAgent.Execute
	// sets this before handing off to the controller, so controllers never
	// need a reference to the Agent itself.
	ToolSelectionHints string

	// FailedServers maps an MCP server ID to why it failed to initialize
	// for this session, so the prompt can warn the LLM off using it rather
	// than letting every call to that server fail silently.
	FailedServers map[string]string

	// ParallelMetadata is non-nil only for a fan-out child execution (spec
	// §4.8), threaded straight through to llmclient so the UI can group
	// concurrent stream chunks.
	ParallelMetadata *llmclient.ParallelMetadata

	// NativeToolsOverride carries the alert-level native-tools selection
	// (spec §4.11's mcp_selection sibling), when the chain executor
	// resolved one for this session; nil means "use the provider's
	// configured defaults".
	NativeToolsOverride map[llmclient.NativeTool]bool
}

// PromptBuilder builds every prompt an iteration controller needs.
// Implemented by pkg/agent/prompt.Builder; kept as an interface here so
// controllers and this package's tests don't depend on the concrete prompt
// package.
type PromptBuilder interface {
	BuildReActMessages(execCtx *ExecutionContext, prevStageContext string, tools []mcpclient.ToolDefinition) []model.Message
	BuildNativeThinkingMessages(execCtx *ExecutionContext, prevStageContext string) []model.Message
	BuildSynthesisMessages(execCtx *ExecutionContext, prevStageContext string) []model.Message
	BuildForcedConclusionPrompt(iteration int, strategy config.IterationStrategy) string
	BuildMCPSummarizationSystemPrompt(serverName, toolName string, maxSummaryTokens int) string
	BuildMCPSummarizationUserPrompt(conversationContext, serverName, toolName, resultText string) string
}
