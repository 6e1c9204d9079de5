package queue

import (
	"context"
	"testing"
	"time"

	"github.com/tarsy-project/tarsy-core/pkg/ids"
	"github.com/tarsy-project/tarsy-core/pkg/model"
	"github.com/tarsy-project/tarsy-core/pkg/store"
)

func newStaleInProgressSession(t *testing.T, s store.Store, id string, age time.Duration) {
	t.Helper()
	now := ids.NowMicros()
	sess := &model.Session{
		SessionID:           id,
		AlertID:             id + "-alert",
		AlertType:           "kubernetes",
		ChainID:             "kubernetes-chain",
		ChainDefinition:     []byte(`{}`),
		Status:              model.SessionInProgress,
		PodID:               "dead-pod",
		StartedAtUs:         now - age.Microseconds(),
		LastInteractionAtUs: now - age.Microseconds(),
	}
	if err := s.CreateSession(context.Background(), sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
}

func TestDetectAndRecoverOrphans_MarksStaleSessionsFailedNotTimedOut(t *testing.T) {
	s := store.NewMemory()
	newStaleInProgressSession(t, s, "sess-stale", time.Hour)

	cfg := testQueueConfig()
	cfg.OrphanThreshold = 30 * time.Minute

	p := NewWorkerPool("pod-1", s, cfg, nil, nil, nil)

	if err := p.detectAndRecoverOrphans(context.Background()); err != nil {
		t.Fatalf("detectAndRecoverOrphans() error = %v", err)
	}

	sess, err := s.GetSession(context.Background(), "sess-stale")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.Status != model.SessionFailed {
		t.Fatalf("orphaned session status = %v, want failed (not timed_out)", sess.Status)
	}
	if sess.ErrorMessage == "" {
		t.Fatalf("expected a non-empty orphan error message")
	}
	if sess.CompletedAtUs == nil {
		t.Fatalf("CompletedAtUs not set on recovered orphan")
	}
}

func TestDetectAndRecoverOrphans_LeavesFreshSessionsAlone(t *testing.T) {
	s := store.NewMemory()
	newStaleInProgressSession(t, s, "sess-fresh", time.Second)

	cfg := testQueueConfig()
	cfg.OrphanThreshold = 30 * time.Minute
	p := NewWorkerPool("pod-1", s, cfg, nil, nil, nil)

	if err := p.detectAndRecoverOrphans(context.Background()); err != nil {
		t.Fatalf("detectAndRecoverOrphans() error = %v", err)
	}

	sess, err := s.GetSession(context.Background(), "sess-fresh")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.Status != model.SessionInProgress {
		t.Fatalf("fresh session status = %v, want still in_progress", sess.Status)
	}
}

func TestDetectAndRecoverOrphans_LeavesPendingAndPausedAlone(t *testing.T) {
	s := store.NewMemory()
	now := ids.NowMicros()
	pending := &model.Session{
		SessionID:       "sess-pending",
		AlertID:         "sess-pending-alert",
		AlertType:       "kubernetes",
		ChainID:         "kubernetes-chain",
		ChainDefinition: []byte(`{}`),
		Status:          model.SessionPending,
	}
	if err := s.CreateSession(context.Background(), pending); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	paused := &model.Session{
		SessionID:           "sess-paused",
		AlertID:             "sess-paused-alert",
		AlertType:           "kubernetes",
		ChainID:             "kubernetes-chain",
		ChainDefinition:     []byte(`{}`),
		Status:              model.SessionPaused,
		LastInteractionAtUs: now - time.Hour.Microseconds(),
		PauseMetadata:       &model.PauseMetadata{Reason: "max iterations"},
	}
	if err := s.CreateSession(context.Background(), paused); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	cfg := testQueueConfig()
	cfg.OrphanThreshold = 30 * time.Minute
	p := NewWorkerPool("pod-1", s, cfg, nil, nil, nil)

	if err := p.detectAndRecoverOrphans(context.Background()); err != nil {
		t.Fatalf("detectAndRecoverOrphans() error = %v", err)
	}

	got, err := s.GetSession(context.Background(), "sess-pending")
	if err != nil || got.Status != model.SessionPending {
		t.Fatalf("pending session should be untouched: %+v, err=%v", got, err)
	}
	got, err = s.GetSession(context.Background(), "sess-paused")
	if err != nil || got.Status != model.SessionPaused {
		t.Fatalf("paused session should be untouched: %+v, err=%v", got, err)
	}
}

func TestDetectAndRecoverOrphans_RecoversStaleCanceling(t *testing.T) {
	s := store.NewMemory()
	now := ids.NowMicros()
	sess := &model.Session{
		SessionID:           "sess-canceling",
		AlertID:             "sess-canceling-alert",
		AlertType:           "kubernetes",
		ChainID:             "kubernetes-chain",
		ChainDefinition:     []byte(`{}`),
		Status:              model.SessionCanceling,
		LastInteractionAtUs: now - time.Hour.Microseconds(),
	}
	if err := s.CreateSession(context.Background(), sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	cfg := testQueueConfig()
	cfg.OrphanThreshold = 30 * time.Minute
	p := NewWorkerPool("pod-1", s, cfg, nil, nil, nil)

	if err := p.detectAndRecoverOrphans(context.Background()); err != nil {
		t.Fatalf("detectAndRecoverOrphans() error = %v", err)
	}

	got, err := s.GetSession(context.Background(), "sess-canceling")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Status != model.SessionFailed {
		t.Fatalf("stale canceling session status = %v, want failed", got.Status)
	}
}

func TestCleanupStartupOrphans_MarksOwnInProgressSessionsFailed(t *testing.T) {
	s := store.NewMemory()
	newStaleInProgressSession(t, s, "sess-owned", time.Second)

	other := &model.Session{
		SessionID:       "sess-other-pod",
		AlertID:         "sess-other-pod-alert",
		AlertType:       "kubernetes",
		ChainID:         "kubernetes-chain",
		ChainDefinition: []byte(`{}`),
		Status:          model.SessionInProgress,
		PodID:           "some-other-pod",
	}
	if err := s.CreateSession(context.Background(), other); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if err := CleanupStartupOrphans(context.Background(), s, "dead-pod"); err != nil {
		t.Fatalf("CleanupStartupOrphans() error = %v", err)
	}

	owned, err := s.GetSession(context.Background(), "sess-owned")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if owned.Status != model.SessionFailed {
		t.Fatalf("owned in-progress session status = %v, want failed", owned.Status)
	}

	untouched, err := s.GetSession(context.Background(), "sess-other-pod")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if untouched.Status != model.SessionInProgress {
		t.Fatalf("other pod's session should be untouched, status = %v", untouched.Status)
	}
}
