package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/tarsy-project/tarsy-core/pkg/ids"
	"github.com/tarsy-project/tarsy-core/pkg/model"
)

func nowMicros() int64 { return ids.NowMicros() }

// UpdateSession performs a whole-row update. The caller must have loaded
// the row first (spec §4.2): we key the WHERE clause on session_id only —
// true optimistic-concurrency compare-and-swap on a version column is left
// to callers that need it (session status transitions instead go through
// ClaimNextPendingSession / UpdateSessionToCanceling, which are already
// atomic read-modify-write operations).
func (p *Postgres) UpdateSession(ctx context.Context, s *model.Session) error {
	if err := s.Validate(); err != nil {
		return err
	}
	mcpSel, err := mcpSelectionJSON(s.MCPSelection)
	if err != nil {
		return fmt.Errorf("encode mcp_selection: %w", err)
	}

	const q = `
UPDATE alert_sessions SET
  alert_type=$2, agent_type=$3, chain_id=$4, chain_definition=$5,
  author=$6, runbook_url=$7, mcp_selection=$8, status=$9, pod_id=$10,
  last_interaction_at_us=$11, started_at_us=$12, completed_at_us=$13,
  current_stage_index=$14, current_stage_id=$15, error_message=$16,
  final_analysis=$17, final_analysis_summary=$18, executive_summary_error=$19,
  pause_metadata=$20
WHERE session_id=$1`

	tag, err := p.pool.Exec(ctx, q,
		s.SessionID, s.AlertType, s.AgentType, s.ChainID, s.ChainDefinition,
		s.Author, s.RunbookURL, mcpSel, s.Status, nullStr(s.PodID),
		s.LastInteractionAtUs, s.StartedAtUs, s.CompletedAtUs,
		s.CurrentStageIndex, s.CurrentStageID, s.ErrorMessage,
		s.FinalAnalysis, s.FinalAnalysisSummary, s.ExecutiveSummaryError,
		mustJSON(s.PauseMetadata),
	)
	if err != nil {
		return fmt.Errorf("update session %s: %w", s.SessionID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update session %s: %w", s.SessionID, ErrNotFound)
	}
	return nil
}

// ClaimNextPendingSession is the one operation spec §4.2/§8 property 1
// demands be atomic across replicas: it uses SELECT ... FOR UPDATE SKIP
// LOCKED inside a transaction so two workers (on the same or different
// pods) can never observe the same pending session.
func (p *Postgres) ClaimNextPendingSession(ctx context.Context, podID string) (*model.Session, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("claim session: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const selectQ = `
SELECT session_id, alert_id, alert_type, agent_type, chain_id, chain_definition,
  author, runbook_url, mcp_selection, status, pod_id, last_interaction_at_us,
  started_at_us, completed_at_us, current_stage_index, current_stage_id,
  error_message, final_analysis, final_analysis_summary, executive_summary_error,
  pause_metadata, created_at_us
FROM alert_sessions
WHERE status = $1
ORDER BY created_at_us ASC
LIMIT 1
FOR UPDATE SKIP LOCKED`

	row := tx.QueryRow(ctx, selectQ, model.SessionPending)
	s, err := scanSession(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim session: select: %w", err)
	}

	now := nowMicros()
	const updateQ = `
UPDATE alert_sessions SET status=$2, pod_id=$3, last_interaction_at_us=$4, started_at_us=$4
WHERE session_id=$1`
	if _, err := tx.Exec(ctx, updateQ, s.SessionID, model.SessionInProgress, podID, now); err != nil {
		return nil, fmt.Errorf("claim session: update: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("claim session: commit: %w", err)
	}

	s.Status = model.SessionInProgress
	s.PodID = podID
	s.LastInteractionAtUs = now
	s.StartedAtUs = now
	return s, nil
}

// UpdateSessionToCanceling is the conditional half of cancellation
// (spec §4.9): it only flips status to CANCELING when the current status is
// active, and always reports what the status was left at, so the caller
// (the cancel handler) knows whether it actually initiated the transition.
func (p *Postgres) UpdateSessionToCanceling(ctx context.Context, sessionID string) (bool, model.SessionStatus, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, "", fmt.Errorf("update to canceling: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current model.SessionStatus
	if err := tx.QueryRow(ctx, `SELECT status FROM alert_sessions WHERE session_id=$1 FOR UPDATE`, sessionID).Scan(&current); err != nil {
		if isNoRows(err) {
			return false, "", fmt.Errorf("update to canceling %s: %w", sessionID, ErrNotFound)
		}
		return false, "", fmt.Errorf("update to canceling %s: %w", sessionID, err)
	}

	if !current.IsActive() {
		return false, current, nil
	}

	if _, err := tx.Exec(ctx, `UPDATE alert_sessions SET status=$2 WHERE session_id=$1`, sessionID, model.SessionCanceling); err != nil {
		return false, "", fmt.Errorf("update to canceling %s: %w", sessionID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, "", fmt.Errorf("update to canceling %s: %w", sessionID, err)
	}
	return true, model.SessionCanceling, nil
}

// CountPendingSessions supports admission control (spec §4.10 QueueFull).
func (p *Postgres) CountPendingSessions(ctx context.Context) (int, error) {
	return p.CountSessionsByStatus(ctx, model.SessionPending)
}

// CountSessionsByStatus supports admission control and metrics.
func (p *Postgres) CountSessionsByStatus(ctx context.Context, status model.SessionStatus) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx, `SELECT count(*) FROM alert_sessions WHERE status=$1`, status).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count sessions by status %s: %w", status, err)
	}
	return n, nil
}

// GetActiveSessions supports orphan detection (spec §4.10).
func (p *Postgres) GetActiveSessions(ctx context.Context) ([]*model.Session, error) {
	const q = `
SELECT session_id, alert_id, alert_type, agent_type, chain_id, chain_definition,
  author, runbook_url, mcp_selection, status, pod_id, last_interaction_at_us,
  started_at_us, completed_at_us, current_stage_index, current_stage_id,
  error_message, final_analysis, final_analysis_summary, executive_summary_error,
  pause_metadata, created_at_us
FROM alert_sessions
WHERE status IN ($1,$2,$3,$4)`

	rows, err := p.pool.Query(ctx, q, model.SessionPending, model.SessionInProgress, model.SessionPaused, model.SessionCanceling)
	if err != nil {
		return nil, fmt.Errorf("get active sessions: %w", err)
	}
	defer rows.Close()

	var out []*model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("get active sessions: scan: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteSessionsOlderThan cascades to stages and interactions via foreign
// keys declared ON DELETE CASCADE (spec §3 "Ownership & lifecycle").
func (p *Postgres) DeleteSessionsOlderThan(ctx context.Context, cutoffUs int64) (int, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM alert_sessions WHERE created_at_us < $1`, cutoffUs)
	if err != nil {
		return 0, fmt.Errorf("delete sessions older than %d: %w", cutoffUs, err)
	}
	return int(tag.RowsAffected()), nil
}
