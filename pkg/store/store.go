// Package store implements the repository layer (spec §4.2): type-safe
// persistence for sessions, stage executions, interactions and events, plus
// the few atomic operations the rest of the engine depends on for
// correctness (claim_next_pending_session, update_session_to_canceling).
package store

import (
	"context"

	"github.com/tarsy-project/tarsy-core/pkg/model"
)

// Store is the full repository contract. A single implementation
// (Postgres, backed by pgx) is provided; the interface exists so the chain
// executor, queue and hooks packages can be tested against an in-memory
// fake without a database.
type Store interface {
	// Sessions
	CreateSession(ctx context.Context, s *model.Session) error
	GetSession(ctx context.Context, sessionID string) (*model.Session, error)
	UpdateSession(ctx context.Context, s *model.Session) error
	ClaimNextPendingSession(ctx context.Context, podID string) (*model.Session, error)
	UpdateSessionToCanceling(ctx context.Context, sessionID string) (changed bool, newStatus model.SessionStatus, err error)
	CountPendingSessions(ctx context.Context) (int, error)
	CountSessionsByStatus(ctx context.Context, status model.SessionStatus) (int, error)
	GetActiveSessions(ctx context.Context) ([]*model.Session, error)
	DeleteSessionsOlderThan(ctx context.Context, cutoffUs int64) (int, error)

	// Stage executions
	CreateStageExecution(ctx context.Context, e *model.StageExecution) error
	UpdateStageExecution(ctx context.Context, e *model.StageExecution) error
	GetStageExecutionsForSession(ctx context.Context, sessionID string) ([]*model.StageExecution, error)

	// Interactions (append-only)
	CreateLLMInteraction(ctx context.Context, i *model.LLMInteraction) error
	CreateMCPInteraction(ctx context.Context, i *model.MCPInteraction) error

	// Events
	CreateEvent(ctx context.Context, channel string, payload []byte) (*model.Event, error)
	GetEventsAfter(ctx context.Context, channel string, afterID int64, limit int) ([]*model.Event, error)
	DeleteEventsOlderThan(ctx context.Context, cutoffUs int64) (int, error)
}

// Retrier wraps a Store so every operation that can hit a transient error
// (connection drop, serialization failure) is retried exactly once before
// surfacing ErrStoreUnavailable, per spec §7 ("Transient DB error ...
// retried once at the repository wrapper").
//
// Retrier is NOT used for ClaimNextPendingSession or
// UpdateSessionToCanceling: both are already single-round-trip atomic
// operations, and blindly retrying a conditional update could mask a
// legitimate "no row matched" result as a transient failure. Callers that
// want retry semantics for those two should retry at the call site with
// knowledge of what "no change" means for their caller.
type Retrier struct {
	Store
}

// NewRetrier wraps s so it retries once on a classified-transient error.
func NewRetrier(s Store) *Retrier { return &Retrier{Store: s} }
