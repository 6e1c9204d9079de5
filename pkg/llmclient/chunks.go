package llmclient

// Chunk is the interface for all streaming chunk types a provider adapter
// can emit mid-generation.
type Chunk interface {
	chunkType() chunkKind
}

type chunkKind string

const (
	chunkKindText          chunkKind = "text"
	chunkKindThinking      chunkKind = "thinking"
	chunkKindToolCall      chunkKind = "tool_call"
	chunkKindCodeExecution chunkKind = "code_execution"
	chunkKindGrounding     chunkKind = "grounding"
	chunkKindUsage         chunkKind = "usage"
	chunkKindError         chunkKind = "error"
)

// TextChunk is a delta of the LLM's text response.
type TextChunk struct{ Content string }

// ThinkingChunk is a delta of the LLM's native reasoning trace.
type ThinkingChunk struct{ Content string }

// ToolCallChunk signals the LLM wants to call a tool (NativeThinking
// controller only; ReAct tool calls are parsed from TextChunk content).
type ToolCallChunk struct{ CallID, Name, Arguments string }

// CodeExecutionChunk carries a Gemini native code-execution round-trip.
type CodeExecutionChunk struct{ Code, Result string }

// GroundingSource is a web source referenced by the LLM via native search.
type GroundingSource struct {
	URI   string
	Title string
}

// GroundingSupport links a text span to the grounding sources backing it.
type GroundingSupport struct {
	StartIndex            int
	EndIndex               int
	Text                   string
	GroundingChunkIndices []int
}

// GroundingChunk carries native search / URL-context grounding metadata.
type GroundingChunk struct {
	WebSearchQueries      []string
	Sources               []GroundingSource
	Supports              []GroundingSupport
	SearchEntryPointHTML string
}

// UsageChunk reports token consumption for one Generate call.
type UsageChunk struct{ InputTokens, OutputTokens, TotalTokens, ThinkingTokens int }

// ErrorChunk signals a provider-side error. Retryable is informational only
// here — retry policy for LLM calls lives in the agent/controller layer.
type ErrorChunk struct {
	Message   string
	Code      string
	Retryable bool
}

func (c *TextChunk) chunkType() chunkKind          { return chunkKindText }
func (c *ThinkingChunk) chunkType() chunkKind      { return chunkKindThinking }
func (c *ToolCallChunk) chunkType() chunkKind      { return chunkKindToolCall }
func (c *CodeExecutionChunk) chunkType() chunkKind { return chunkKindCodeExecution }
func (c *GroundingChunk) chunkType() chunkKind     { return chunkKindGrounding }
func (c *UsageChunk) chunkType() chunkKind         { return chunkKindUsage }
func (c *ErrorChunk) chunkType() chunkKind         { return chunkKindError }
