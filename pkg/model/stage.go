package model

// StageStatus is the lifecycle state of a StageExecution.
type StageStatus string

const (
	StagePending   StageStatus = "pending"
	StageActive    StageStatus = "active"
	StagePaused    StageStatus = "paused"
	StageCompleted StageStatus = "completed"
	StageFailed    StageStatus = "failed"
	StageCancelled StageStatus = "cancelled"
	StageTimedOut  StageStatus = "timed_out"
	StagePartial   StageStatus = "partial"
)

var stageErrorStatuses = map[StageStatus]bool{
	StageFailed:    true,
	StageCancelled: true,
	StageTimedOut:  true,
}

var stageTerminalStatuses = map[StageStatus]bool{
	StageCompleted: true,
	StageFailed:    true,
	StageCancelled: true,
	StageTimedOut:  true,
	StagePartial:   true,
}

// IsError reports whether status is one of the error statuses
// {FAILED, CANCELLED, TIMED_OUT} (spec §3).
func (s StageStatus) IsError() bool { return stageErrorStatuses[s] }

// IsTerminal reports whether status is terminal (error statuses ∪ {COMPLETED}).
func (s StageStatus) IsTerminal() bool { return stageTerminalStatuses[s] }

// ParallelType classifies how a stage's agents fan out.
type ParallelType string

const (
	ParallelSingle  ParallelType = "single"
	ParallelMulti   ParallelType = "multi_agent"
	ParallelReplica ParallelType = "replica"
)

// StageExecution is one stage within a chain (spec §3 "StageExecution").
type StageExecution struct {
	ExecutionID string
	SessionID   string
	StageID     string
	StageIndex  int
	StageName   string
	Agent       string

	Status StageStatus

	StartedAtUs   *int64
	CompletedAtUs *int64
	PausedAtUs    *int64
	DurationMs    *int64

	CurrentIteration  int
	IterationStrategy string

	StageOutput  []byte // JSON; mutually exclusive with ErrorMessage
	ErrorMessage string

	ParentStageExecutionID string // "" for a root stage
	ParallelIndex          int    // 0 for root, 1..N for children
	ParallelType           ParallelType
}

// Validate enforces the StageExecution invariants from spec §3: at most one
// of stage_output/error_message is set.
func (e *StageExecution) Validate() error {
	if len(e.StageOutput) > 0 && e.ErrorMessage != "" {
		return errInvalid("stage execution %s has both stage_output and error_message", e.ExecutionID)
	}
	return nil
}

// IsRoot reports whether this is a root (non-fan-out-child) stage execution.
func (e *StageExecution) IsRoot() bool { return e.ParentStageExecutionID == "" }
