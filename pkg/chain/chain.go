// Package chain implements the chain executor (spec §4.8): given a
// resolved chain, it runs its stages sequentially, fanning out a parallel
// stage's agents concurrently, aggregating their status, threading prior
// stage output into the next stage's context, and producing a bounded
// executive summary once the chain finishes.
package chain

import (
	"context"

	"github.com/tarsy-project/tarsy-core/pkg/agent"
	"github.com/tarsy-project/tarsy-core/pkg/mcpclient"
	"github.com/tarsy-project/tarsy-core/pkg/model"
)

// Result is what Run returns: a terminal outcome for the whole chain, plus
// whatever the caller (the work queue, component 10) needs to finish
// updating the session row.
type Result struct {
	Status                model.SessionStatus
	FinalAnalysis         string
	ExecutiveSummary      string
	ExecutiveSummaryError string
	Error                 error

	// Pause is non-nil only when Status is SessionPaused: the stage and
	// iteration state needed to resume later (spec §4.7).
	Pause             *agent.PauseState
	PausedStageIndex  int
	PausedStageID     string
	PausedExecutionID string
}

// ToolExecutorFactory builds a mcpclient.ToolExecutor for one agent
// execution and reports which of its requested servers failed to
// initialize. Satisfied by MCPExecutorFactory, which adapts the concrete
// *mcpclient.ClientFactory; kept as an interface here so tests can fake an
// MCP-less session without a real transport.
type ToolExecutorFactory interface {
	Create(ctx context.Context, serverIDs []string, toolFilter map[string][]string) (executor mcpclient.ToolExecutor, failedServers map[string]string, closeFn func() error, err error)
}

// CancellationTracker reports whether a session's termination was a
// user-initiated cancel on this replica, the sole fact that distinguishes
// CANCELLED from TIMED_OUT (spec §4.9). Satisfied by
// *session.CancellationTracker; kept as an interface so this package
// doesn't need to import pkg/session.
type CancellationTracker interface {
	IsUserCancel(sessionID string) bool
}
