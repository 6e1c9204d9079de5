// Package session implements the session manager and cancellation tracker
// (spec §4.9): the process-wide record of which in-flight sessions this
// replica has been told to cancel, and the request/notify plumbing that
// keeps every replica's tracker in sync.
package session

import "sync"

// CancellationTracker is a process-wide set of session ids that received a
// user-initiated cancel on this replica. All operations are O(1) and safe
// for concurrent use; the chain executor consults IsUserCancel on every
// CancelledError to decide CANCELLED vs TIMED_OUT (spec §4.9: "if tracker
// says yes → CANCELLED; else → TIMED_OUT. Nothing else ever sets CANCELLED;
// nothing else ever sets TIMED_OUT.").
type CancellationTracker struct {
	mu        sync.Mutex
	cancelled map[string]struct{}
}

// NewCancellationTracker creates an empty tracker.
func NewCancellationTracker() *CancellationTracker {
	return &CancellationTracker{cancelled: make(map[string]struct{})}
}

// MarkCancelled records sessionID as user-cancelled on this replica.
func (t *CancellationTracker) MarkCancelled(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelled[sessionID] = struct{}{}
}

// IsUserCancel reports whether sessionID was marked cancelled.
func (t *CancellationTracker) IsUserCancel(sessionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.cancelled[sessionID]
	return ok
}

// Clear removes sessionID from the tracker, once its run has reached a
// terminal state and the entry no longer serves any purpose.
func (t *CancellationTracker) Clear(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.cancelled, sessionID)
}
