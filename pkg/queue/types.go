// Package queue implements the work queue and worker pool (spec §4.10):
// each replica runs a configurable number of workers that claim pending
// sessions, drive them through the chain executor (component 8), and
// recover sessions orphaned by a dead replica.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/tarsy-project/tarsy-core/pkg/chain"
	"github.com/tarsy-project/tarsy-core/pkg/model"
)

// Sentinel errors for one poll-and-process cycle.
var (
	// ErrNoSessionsAvailable indicates claim_next_pending_session found
	// nothing; the worker should sleep and retry.
	ErrNoSessionsAvailable = errors.New("queue: no sessions available")

	// ErrAtCapacity indicates the global concurrent-session limit
	// (spec §4.10) has been reached.
	ErrAtCapacity = errors.New("queue: at capacity")
)

// ChainRunner drives one claimed session's chain to completion or pause.
// Satisfied by *chain.Executor; kept as an interface so the pool's tests
// can script outcomes without a real LLM/MCP backend.
type ChainRunner interface {
	Run(ctx context.Context, session *model.Session) *chain.Result
}

// RunRegistry is the subset of *session.Manager a Worker needs: register a
// session's CancelFunc before running it, and remove the registration once
// the run reaches a terminal or paused state. Kept as an interface instead
// of a direct *session.Manager dependency so pkg/queue's own tests don't
// need the cancellations event-bus wiring that a real Manager carries.
type RunRegistry interface {
	RegisterRun(sessionID string, cancel context.CancelFunc)
	UnregisterRun(sessionID string)
}

// PoolHealth reports the worker pool's aggregate state (spec §6 /healthz).
type PoolHealth struct {
	IsHealthy        bool
	DBReachable      bool
	DBError          string
	PodID            string
	ActiveWorkers    int
	TotalWorkers     int
	ActiveSessions   int
	MaxConcurrent    int
	QueueDepth       int
	WorkerStats      []WorkerHealth
	LastOrphanScan   time.Time
	OrphansRecovered int
}

// WorkerHealth reports one worker's current state.
type WorkerHealth struct {
	ID                string
	Status            string
	CurrentSessionID  string
	SessionsProcessed int
	LastActivity      time.Time
}
