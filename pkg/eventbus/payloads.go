package eventbus

// Event type discriminators carried in the "type" field of every payload
// published on the event bus (spec §4.3/§4.4/§6).
const (
	EventSessionStatus       = "session.status"
	EventSessionCancelReq    = "session.cancel_requested"
	EventStageStatus         = "stage.status"
	EventInteractionCreated  = "interaction.created"
	EventLLMStreamChunk      = "llm.stream.chunk"
)

// SessionStatusPayload announces a session lifecycle transition on the
// global sessions channel and the session's own detail channel.
type SessionStatusPayload struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"` // RFC3339Nano
}

// SessionCancelRequestedPayload is published on the cancellations channel
// so every replica's cancellation tracker learns about a user-initiated
// cancel (spec §4.9).
type SessionCancelRequestedPayload struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Timestamp string `json:"timestamp"`
}

// StageStatusPayload announces a stage execution lifecycle transition.
type StageStatusPayload struct {
	Type        string `json:"type"`
	SessionID   string `json:"session_id"`
	ExecutionID string `json:"execution_id"`
	StageID     string `json:"stage_id,omitempty"`
	StageIndex  int    `json:"stage_index"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
}

// InteractionCreatedPayload announces a persisted LLM or MCP interaction,
// so a connected dashboard can fetch it.
type InteractionCreatedPayload struct {
	Type          string `json:"type"`
	SessionID     string `json:"session_id"`
	StageExecutionID string `json:"stage_execution_id,omitempty"`
	InteractionID string `json:"interaction_id"`
	Kind          string `json:"kind"` // "llm" or "mcp"
	Timestamp     string `json:"timestamp"`
}

// LLMStreamChunkPayload is a transient (not persisted) chunk of a
// streaming LLM response (spec §4.6/§4.4). Content is the accumulated text
// so far, not a delta: clients replace rather than append on each frame.
type LLMStreamChunkPayload struct {
	Type              string `json:"type"`
	SessionID         string `json:"session_id"`
	ExecutionID       string `json:"execution_id"`
	Content           string `json:"content"`
	StreamType        string `json:"stream_type"` // THOUGHT, FINAL_ANSWER, NATIVE_THINKING, SUMMARIZATION
	ParentExecutionID string `json:"parent_execution_id,omitempty"`
	ParallelIndex     *int   `json:"parallel_index,omitempty"`
	AgentName         string `json:"agent_name,omitempty"`
	Timestamp         string `json:"timestamp"`
}
