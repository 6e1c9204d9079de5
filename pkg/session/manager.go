package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/tarsy-project/tarsy-core/pkg/eventbus"
	"github.com/tarsy-project/tarsy-core/pkg/model"
	"github.com/tarsy-project/tarsy-core/pkg/store"
)

// Manager owns the cancellation tracker plus the registry of in-flight runs
// on this replica, and wires the two together with the cross-replica
// cancellations channel (spec §4.9).
type Manager struct {
	store   store.Store
	events  eventbus.Bus
	tracker *CancellationTracker

	mu   sync.Mutex
	runs map[string]context.CancelFunc
}

// NewManager creates a Manager backed by s and events. events may be nil,
// in which case cancellation is still tracked locally but never propagates
// to other replicas.
func NewManager(s store.Store, events eventbus.Bus) *Manager {
	return &Manager{
		store:   s,
		events:  events,
		tracker: NewCancellationTracker(),
		runs:    make(map[string]context.CancelFunc),
	}
}

// Tracker returns the underlying CancellationTracker, for the chain
// executor's CancelledError classification.
func (m *Manager) Tracker() *CancellationTracker { return m.tracker }

// RegisterRun associates sessionID with cancel, the CancelFunc of the
// context driving that session's chain execution on this replica. The
// chain executor calls this once per session before starting the chain
// loop, and UnregisterRun when the run reaches a terminal or paused state.
func (m *Manager) RegisterRun(sessionID string, cancel context.CancelFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[sessionID] = cancel
}

// UnregisterRun removes sessionID's run registration. Safe to call even if
// the session was never registered (e.g. it was owned by a different
// replica).
func (m *Manager) UnregisterRun(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.runs, sessionID)
}

// RequestCancel implements the three steps spec §4.9 assigns to the cancel
// HTTP endpoint: gate the session's status atomically, mark the tracker,
// and publish session.cancel_requested for cross-replica delivery. Callers
// on the owning replica get their run unwound by Subscribe's own handler,
// same as every other replica — RequestCancel does not special-case "this
// is my session".
func (m *Manager) RequestCancel(ctx context.Context, sessionID string) (changed bool, newStatus model.SessionStatus, err error) {
	changed, newStatus, err = m.store.UpdateSessionToCanceling(ctx, sessionID)
	if err != nil {
		return false, "", err
	}
	if !changed {
		return false, newStatus, nil
	}

	m.tracker.MarkCancelled(sessionID)

	if m.events != nil {
		payload := eventbus.SessionCancelRequestedPayload{
			Type:      eventbus.EventSessionCancelReq,
			SessionID: sessionID,
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		}
		if _, pubErr := m.events.Publish(ctx, model.ChannelCancellations, payload); pubErr != nil {
			slog.Warn("session: failed to publish cancel_requested", "session_id", sessionID, "error", pubErr)
		}
	}
	return true, newStatus, nil
}

// Subscribe registers this Manager's handler on the cancellations channel,
// so every replica's tracker (and any run it owns) learns about a cancel
// regardless of which replica's endpoint received the request.
func (m *Manager) Subscribe(ctx context.Context) (unsubscribe func(), err error) {
	if m.events == nil {
		return func() {}, nil
	}
	return m.events.Subscribe(ctx, model.ChannelCancellations, m.handleCancelRequested)
}

// handleCancelRequested marks the tracker and, if this replica owns an
// in-flight run for the session, cancels its context so the controller
// unwinds on its next timeout/cancellation check.
func (m *Manager) handleCancelRequested(ev *model.Event) {
	var payload eventbus.SessionCancelRequestedPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		slog.Warn("session: malformed cancel_requested event", "error", err)
		return
	}
	if payload.SessionID == "" {
		return
	}

	m.tracker.MarkCancelled(payload.SessionID)

	m.mu.Lock()
	cancel, owned := m.runs[payload.SessionID]
	m.mu.Unlock()
	if owned {
		cancel()
	}
}
