package model

// MessageRole is the role of one message in an LLM conversation.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// ToolCall is an assistant message's request to invoke a tool.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON-encoded arguments
}

// Message is one entry in an LLMInteraction's conversation.
type Message struct {
	Role       MessageRole `json:"role"`
	Content    string      `json:"content"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
	ToolName   string      `json:"tool_name,omitempty"`
}

// InteractionType classifies an LLMInteraction (spec §3).
type InteractionType string

const (
	InteractionInvestigation         InteractionType = "investigation"
	InteractionSummarization         InteractionType = "summarization"
	InteractionFinalAnalysisSummary  InteractionType = "final_analysis_summary"
	InteractionToolSelection         InteractionType = "tool_selection"
	InteractionFinalAnswer           InteractionType = "final_answer"
)

// LLMInteraction is one chat completion (or streamed completion) round-trip
// with a provider (spec §3 "LLMInteraction").
type LLMInteraction struct {
	InteractionID      string
	SessionID          string
	StageExecutionID    string // "" for session-level interactions (e.g. post-chain summary)
	TimestampUs        int64

	Conversation []Message

	ModelName       string
	Provider        string
	InteractionType InteractionType

	ResponseMetadata    []byte // JSON: grounding, token usage, finish reason
	NativeToolsConfig   []byte // JSON
	ThinkingContent     string
	MCPEventID          string // links a summarization interaction to the tool call it summarized

	DurationMs      int64
	StepDescription string
}

// MCPCommunicationType classifies an MCPInteraction (spec §3).
type MCPCommunicationType string

const (
	MCPToolList MCPCommunicationType = "tool_list"
	MCPToolCall MCPCommunicationType = "tool_call"
	MCPResult   MCPCommunicationType = "result"
)

// MCPInteraction is one tool list or tool call round-trip (spec §3
// "MCPInteraction").
type MCPInteraction struct {
	RequestID        string
	SessionID        string
	StageExecutionID string // "" for session-level
	TimestampUs      int64

	ServerName        string
	CommunicationType MCPCommunicationType
	ToolName          string
	ToolArguments     []byte // JSON
	ToolResult        []byte // JSON
	AvailableTools    []byte // JSON, for TOOL_LIST

	DurationMs   int64
	Success      bool
	ErrorMessage string
}
