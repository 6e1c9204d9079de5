package agent

import (
	"context"
	"errors"
	"fmt"
)

// Controller drives one stage's reasoning loop (spec §4.7): alternating
// LLM/tool turns (ReAct), a single extended native-tool-calling turn
// (NativeThinking), or one tool-less synthesis call. BaseAgent adapts any
// Controller to the Agent interface.
type Controller interface {
	Run(ctx context.Context, execCtx *ExecutionContext, prevStageContext string) (*ExecutionResult, error)
}

// BaseAgent is the generic Agent implementation: it has no domain-specific
// behavior of its own, only error classification around whatever its
// Controller returns.
type BaseAgent struct {
	controller Controller
	hints      string
}

// NewBaseAgent wraps controller as an Agent. hints is returned by
// ToolSelectionHints; pass "" for agents with nothing to add.
func NewBaseAgent(controller Controller, hints string) *BaseAgent {
	if controller == nil {
		panic("agent.NewBaseAgent: controller must not be nil")
	}
	return &BaseAgent{controller: controller, hints: hints}
}

// ToolSelectionHints returns the agent's static tool-selection guidance.
func (a *BaseAgent) ToolSelectionHints() string { return a.hints }

// Execute delegates to the controller and classifies any returned error
// into the corresponding terminal status; a non-nil result from the
// controller is passed straight through.
func (a *BaseAgent) Execute(ctx context.Context, execCtx *ExecutionContext, prevStageContext string) (*ExecutionResult, error) {
	execCtx.ToolSelectionHints = a.hints
	result, err := a.controller.Run(ctx, execCtx, prevStageContext)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return &ExecutionResult{Status: ExecutionStatusTimedOut, Error: err}, nil
		case errors.Is(err, context.Canceled):
			return &ExecutionResult{Status: ExecutionStatusCancelled, Error: err}, nil
		default:
			return &ExecutionResult{Status: ExecutionStatusFailed, Error: err}, nil
		}
	}
	if result == nil {
		return &ExecutionResult{Status: ExecutionStatusFailed, Error: fmt.Errorf("controller returned nil result")}, nil
	}
	return result, nil
}
