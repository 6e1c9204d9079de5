package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/tarsy-project/tarsy-core/pkg/chain"
	"github.com/tarsy-project/tarsy-core/pkg/config"
	"github.com/tarsy-project/tarsy-core/pkg/hooks"
	"github.com/tarsy-project/tarsy-core/pkg/ids"
	"github.com/tarsy-project/tarsy-core/pkg/metrics"
	"github.com/tarsy-project/tarsy-core/pkg/model"
	"github.com/tarsy-project/tarsy-core/pkg/store"
)

// WorkerStatus is a worker's current health-reporting state.
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// Worker polls for and processes one session at a time, in a loop, until
// stopped (spec §4.10).
type Worker struct {
	id     string
	podID  string
	store  store.Store
	config *config.QueueConfig
	runner ChainRunner
	runs   RunRegistry
	notify *hooks.Dispatcher
	metrics *metrics.Collector

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu                sync.RWMutex
	status            WorkerStatus
	currentSessionID  string
	sessionsProcessed int
	lastActivity      time.Time
}

// NewWorker builds a Worker. notify may be nil (lifecycle events and Slack
// notifications are skipped for this worker's sessions).
func NewWorker(id, podID string, st store.Store, cfg *config.QueueConfig, runner ChainRunner, runs RunRegistry, notify *hooks.Dispatcher) *Worker {
	return &Worker{
		id:           id,
		podID:        podID,
		store:        st,
		config:       cfg,
		runner:       runner,
		runs:         runs,
		notify:       notify,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// SetMetrics attaches m so this worker reports session-completion
// observations to it. m may be nil (the default), in which case
// observations are skipped.
func (w *Worker) SetMetrics(m *metrics.Collector) { w.metrics = m }

// Start begins the worker's polling loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop after its current session, if any, and
// waits for it to finish.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health reports the worker's current state.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:                w.id,
		Status:            string(w.status),
		CurrentSessionID:  w.currentSessionID,
		SessionsProcessed: w.sessionsProcessed,
		LastActivity:      w.lastActivity,
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	log := slog.With("worker_id", w.id, "pod_id", w.podID)
	log.Info("queue: worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("queue: worker shutting down")
			return
		case <-ctx.Done():
			log.Info("queue: context cancelled, worker shutting down")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, ErrNoSessionsAvailable) || errors.Is(err, ErrAtCapacity) {
					w.sleep(w.pollInterval())
					continue
				}
				log.Error("queue: error processing session", "error", err)
				w.sleep(time.Second)
			}
		}
	}
}

func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// pollAndProcess checks capacity, claims a session, and runs it to
// completion or pause (spec §4.10, step 1-4).
func (w *Worker) pollAndProcess(ctx context.Context) error {
	activeCount, err := w.store.CountSessionsByStatus(ctx, model.SessionInProgress)
	if err != nil {
		return fmt.Errorf("checking active sessions: %w", err)
	}
	if activeCount >= w.config.MaxConcurrentSessions {
		return ErrAtCapacity
	}

	session, err := w.store.ClaimNextPendingSession(ctx, w.podID)
	if err != nil {
		return fmt.Errorf("claiming next session: %w", err)
	}
	if session == nil {
		return ErrNoSessionsAvailable
	}

	log := slog.With("session_id", session.SessionID, "worker_id", w.id)
	log.Info("queue: session claimed")

	w.notify.PublishSessionStatus(ctx, session.SessionID, model.SessionInProgress)
	w.notify.NotifyStarted(ctx, session)

	w.setStatus(WorkerStatusWorking, session.SessionID)
	defer w.setStatus(WorkerStatusIdle, "")

	sessionCtx, cancelSession := context.WithTimeout(ctx, w.config.SessionTimeout)
	defer cancelSession()

	w.runs.RegisterRun(session.SessionID, cancelSession)
	defer w.runs.UnregisterRun(session.SessionID)

	heartbeatCtx, cancelHeartbeat := context.WithCancel(sessionCtx)
	go w.runHeartbeat(heartbeatCtx, session.SessionID)

	runStart := time.Now()
	result := w.runner.Run(sessionCtx, session)
	cancelHeartbeat()

	w.applyResult(session, result)
	w.metrics.ObserveSessionProcessed(string(session.Status), time.Since(runStart).Seconds())

	// use a detached context: sessionCtx may already be cancelled/expired,
	// but the terminal row must still be written.
	writeCtx := context.Background()
	if err := w.store.UpdateSession(writeCtx, session); err != nil {
		log.Error("queue: failed to persist terminal session state", "error", err)
		return err
	}

	w.notify.PublishSessionStatus(writeCtx, session.SessionID, session.Status)
	w.notify.NotifyTerminal(writeCtx, session)

	w.mu.Lock()
	w.sessionsProcessed++
	w.mu.Unlock()

	log.Info("queue: session processing complete", "status", session.Status)
	return nil
}

// applyResult folds a chain.Result into session's row fields, matching the
// terminal status vocabulary the session row understands. It never touches
// CurrentStageIndex/CurrentStageID except on pause, since a non-paused
// terminal result has no resume point to record.
func (w *Worker) applyResult(session *model.Session, result *chain.Result) {
	now := ids.NowMicros()
	session.FinalAnalysis = result.FinalAnalysis

	switch result.Status {
	case model.SessionPaused:
		session.Status = model.SessionPaused
		session.CurrentStageIndex = result.PausedStageIndex
		session.CurrentStageID = result.PausedStageID
		pause := result.Pause
		session.PauseMetadata = &model.PauseMetadata{
			Reason:           pause.Reason,
			StageID:          result.PausedStageID,
			ExecutionID:      result.PausedExecutionID,
			CurrentIteration: pause.CurrentIteration,
			PausedAtUs:       pause.PausedAtUs,
		}
	default:
		session.Status = result.Status
		session.CompletedAtUs = &now
		session.PauseMetadata = nil
		session.FinalAnalysisSummary = result.ExecutiveSummary
		session.ExecutiveSummaryError = result.ExecutiveSummaryError
		if result.Error != nil {
			session.ErrorMessage = result.Error.Error()
		}
	}
}

// runHeartbeat periodically refreshes last_interaction_at so the orphan
// sweeper can tell this session is still owned by a live replica.
func (w *Worker) runHeartbeat(ctx context.Context, sessionID string) {
	ticker := time.NewTicker(w.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.touchLastInteraction(ctx, sessionID); err != nil {
				slog.Warn("queue: heartbeat update failed", "session_id", sessionID, "error", err)
			}
		}
	}
}

func (w *Worker) touchLastInteraction(ctx context.Context, sessionID string) error {
	s, err := w.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	s.LastInteractionAtUs = ids.NowMicros()
	return w.store.UpdateSession(ctx, s)
}

// pollInterval returns the configured poll interval with symmetric jitter.
func (w *Worker) pollInterval() time.Duration {
	base := w.config.PollInterval
	jitter := w.config.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}

func (w *Worker) setStatus(status WorkerStatus, sessionID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentSessionID = sessionID
	w.lastActivity = time.Now()
}
