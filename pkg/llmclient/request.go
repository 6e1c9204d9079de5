package llmclient

import "github.com/tarsy-project/tarsy-core/pkg/model"

// GenerateRequest is one call to generate_response (spec §4.6): the
// conversation so far plus everything needed to route and label the call.
type GenerateRequest struct {
	Conversation []model.Message

	SessionID        string
	StageExecutionID string

	Provider  *ProviderConfig
	MaxTokens int

	// InteractionType is the caller's default label; Generate promotes it
	// to InteractionFinalAnswer if the response contains "Final Answer:".
	InteractionType model.InteractionType

	NativeToolsOverride map[NativeTool]bool
	MCPEventID          string
	ParallelMetadata    *ParallelMetadata

	Tools []ToolDefinition

	// StreamType labels chunks published for this call (spec §4.6); callers
	// pick THOUGHT/NATIVE_THINKING/SUMMARIZATION per controller, and
	// FINAL_ANSWER once they know the loop is ending.
	StreamType StreamType
}

// GenerateResult is generate_response's output: the conversation's new
// assistant message plus accounting metadata that doesn't belong on the
// message itself.
type GenerateResult struct {
	Message         model.Message
	InteractionType model.InteractionType
	ThinkingContent string
	Usage           *UsageChunk
	Grounding       *GroundingChunk
}

// Conversation returns req.Conversation with result.Message appended,
// matching generate_response's documented return shape (spec §4.6: "the
// returned conversation is the input conversation with one appended
// assistant message").
func (r *GenerateResult) Conversation(req *GenerateRequest) []model.Message {
	out := make([]model.Message, 0, len(req.Conversation)+1)
	out = append(out, req.Conversation...)
	out = append(out, r.Message)
	return out
}
