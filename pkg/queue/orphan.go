package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tarsy-project/tarsy-core/pkg/ids"
	"github.com/tarsy-project/tarsy-core/pkg/model"
)

// orphanState tracks orphan-sweep metrics, read by Health.
type orphanState struct {
	mu        sync.Mutex
	lastScan  time.Time
	recovered int
}

// runOrphanSweep periodically scans for sessions abandoned by a dead
// replica. Every replica runs this independently; recovery is idempotent
// (UpdateSession on an already-terminal session is a correctness no-op
// since a second sweep never finds it IN_PROGRESS/CANCELING again).
func (p *WorkerPool) runOrphanSweep(ctx context.Context) {
	ticker := time.NewTicker(p.config.OrphanDetectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			if err := p.detectAndRecoverOrphans(ctx); err != nil {
				slog.Error("queue: orphan sweep failed", "error", err)
			}
		}
	}
}

// detectAndRecoverOrphans finds IN_PROGRESS/CANCELING sessions whose
// last_interaction_at is older than the orphan threshold and transitions
// them to FAILED (spec §4.10: "assumed to belong to a dead replica ...
// transitions them to FAILED with an orphan error message" — unlike the
// teacher, which marks these TIMED_OUT; spec reserves TIMED_OUT exclusively
// for the cancellation tracker's own classification, spec §4.9).
func (p *WorkerPool) detectAndRecoverOrphans(ctx context.Context) error {
	sessions, err := p.store.GetActiveSessions(ctx)
	if err != nil {
		return fmt.Errorf("querying active sessions: %w", err)
	}

	cutoff := ids.NowMicros() - p.config.OrphanThreshold.Microseconds()
	recovered := 0
	for _, s := range sessions {
		if s.Status != model.SessionInProgress && s.Status != model.SessionCanceling {
			continue
		}
		if s.LastInteractionAtUs == 0 || s.LastInteractionAtUs >= cutoff {
			continue
		}
		if err := p.recoverOrphan(ctx, s); err != nil {
			slog.Error("queue: failed to recover orphaned session", "session_id", s.SessionID, "error", err)
			continue
		}
		recovered++
	}

	p.orphans.mu.Lock()
	p.orphans.lastScan = time.Now()
	p.orphans.recovered += recovered
	p.orphans.mu.Unlock()

	if recovered > 0 {
		slog.Warn("queue: recovered orphaned sessions", "count", recovered)
	}
	return nil
}

func (p *WorkerPool) recoverOrphan(ctx context.Context, s *model.Session) error {
	now := ids.NowMicros()
	podID := s.PodID
	if podID == "" {
		podID = "unknown"
	}
	s.Status = model.SessionFailed
	s.ErrorMessage = fmt.Sprintf("orphaned: no heartbeat from pod %s since last_interaction_at=%d", podID, s.LastInteractionAtUs)
	s.CompletedAtUs = &now
	s.PauseMetadata = nil

	if err := p.store.UpdateSession(ctx, s); err != nil {
		return err
	}
	p.notify.PublishSessionStatus(ctx, s.SessionID, s.Status)
	p.notify.NotifyTerminal(ctx, s)
	return nil
}

// CleanupStartupOrphans marks IN_PROGRESS sessions this pod owned before a
// restart as FAILED, before the worker pool begins claiming new work.
func CleanupStartupOrphans(ctx context.Context, st interface {
	GetActiveSessions(ctx context.Context) ([]*model.Session, error)
	UpdateSession(ctx context.Context, s *model.Session) error
}, podID string) error {
	sessions, err := st.GetActiveSessions(ctx)
	if err != nil {
		return fmt.Errorf("querying startup orphans: %w", err)
	}

	now := ids.NowMicros()
	for _, s := range sessions {
		if s.Status != model.SessionInProgress || s.PodID != podID {
			continue
		}
		s.Status = model.SessionFailed
		s.ErrorMessage = fmt.Sprintf("orphaned: pod %s restarted while session was in progress", podID)
		s.CompletedAtUs = &now
		s.PauseMetadata = nil
		if err := st.UpdateSession(ctx, s); err != nil {
			slog.Error("queue: failed to mark startup orphan", "session_id", s.SessionID, "error", err)
			continue
		}
		slog.Info("queue: startup orphan recovered", "session_id", s.SessionID)
	}
	return nil
}
