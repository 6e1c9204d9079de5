// Package agent implements the agent core and iteration controllers (spec
// §4.7, component 7): one execution is one agent investigating one stage,
// driven by a pluggable iteration strategy (ReAct, NativeThinking,
// Synthesis).
package agent

import "context"

// Agent is the stage-execution contract: investigate (or synthesize) given
// an ExecutionContext and the formatted output of preceding stages, and
// return a terminal ExecutionResult.
type Agent interface {
	Execute(ctx context.Context, execCtx *ExecutionContext, prevStageContext string) (*ExecutionResult, error)

	// ToolSelectionHints contributes agent-specific guidance into the
	// tool-selection prompt beyond what the MCP registry's own per-server
	// instructions provide. Empty string means no extra hints.
	ToolSelectionHints() string
}

// ExecutionStatus is the terminal state of one agent execution.
type ExecutionStatus string

const (
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusTimedOut  ExecutionStatus = "timed_out"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
	ExecutionStatusPaused    ExecutionStatus = "paused"
)

// TokenUsage accumulates token accounting across every LLM call an
// execution made, including forced-conclusion and summarization calls.
type TokenUsage struct {
	InputTokens    int
	OutputTokens   int
	TotalTokens    int
	ThinkingTokens int
}

// Add folds other into u in place.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
	u.ThinkingTokens += other.ThinkingTokens
}

// ExecutionResult is what Agent.Execute returns: either a final analysis
// (Completed) or an error classification (Failed/TimedOut/Cancelled), plus
// token accounting and, for the Paused case, the state needed to resume.
type ExecutionResult struct {
	Status        ExecutionStatus
	FinalAnalysis string
	Error         error
	TokensUsed    TokenUsage

	// Pause is non-nil only when Status is Paused (spec §4.7 max-iterations
	// "pause" behavior): the conversation and iteration count needed to
	// resume this stage later, keyed by its execution_id.
	Pause *PauseState
}

// PauseState captures everything ResumeExecution needs to re-enter a
// controller's loop exactly where it left off (spec §4.7 "Resume").
type PauseState struct {
	Reason           string
	CurrentIteration int
	PausedAtUs       int64
	Conversation     []byte // JSON-encoded []model.Message
}
