package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tarsy-project/tarsy-core/pkg/ids"
	"github.com/tarsy-project/tarsy-core/pkg/model"
)

// Postgres is the Store implementation backed by pgx. Schema management
// (spec §1 non-goal) is not this package's job: callers are expected to
// have applied schema.sql (or an equivalent) before constructing Postgres.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an already-connected pool. The pool's max-conns governs
// how many concurrent store operations this process can have in flight;
// the chain executor and worker pool share it.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func mcpSelectionJSON(sel *model.MCPSelection) ([]byte, error) {
	if sel == nil {
		return nil, nil
	}
	return json.Marshal(sel)
}

func decodeMCPSelection(raw []byte) (*model.MCPSelection, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var sel model.MCPSelection
	if err := json.Unmarshal(raw, &sel); err != nil {
		return nil, err
	}
	return &sel, nil
}

func pauseMetaJSON(p *model.PauseMetadata) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

func decodePauseMeta(raw []byte) (*model.PauseMetadata, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var p model.PauseMetadata
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateSession inserts a new session row. A unique violation on alert_id
// surfaces ErrDuplicateAlert (spec §4.2).
func (p *Postgres) CreateSession(ctx context.Context, s *model.Session) error {
	if err := s.Validate(); err != nil {
		return err
	}
	mcpSel, err := mcpSelectionJSON(s.MCPSelection)
	if err != nil {
		return fmt.Errorf("encode mcp_selection: %w", err)
	}
	if s.SessionID == "" {
		s.SessionID = ids.New()
	}
	if s.CreatedAtUs == 0 {
		s.CreatedAtUs = ids.NowMicros()
	}

	const q = `
INSERT INTO alert_sessions (
  session_id, alert_id, alert_type, agent_type, chain_id, chain_definition,
  author, runbook_url, mcp_selection, status, pod_id, last_interaction_at_us,
  started_at_us, completed_at_us, current_stage_index, current_stage_id,
  error_message, final_analysis, final_analysis_summary, executive_summary_error,
  pause_metadata, created_at_us
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)`

	_, err = p.pool.Exec(ctx, q,
		s.SessionID, s.AlertID, s.AlertType, s.AgentType, s.ChainID, s.ChainDefinition,
		s.Author, s.RunbookURL, mcpSel, s.Status, nullStr(s.PodID), s.LastInteractionAtUs,
		s.StartedAtUs, s.CompletedAtUs, s.CurrentStageIndex, s.CurrentStageID,
		s.ErrorMessage, s.FinalAnalysis, s.FinalAnalysisSummary, s.ExecutiveSummaryError,
		mustJSON(s.PauseMetadata), s.CreatedAtUs,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "alert_sessions_alert_id_key" {
			return fmt.Errorf("create session: %w", ErrDuplicateAlert)
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func mustJSON(v any) []byte {
	if v == nil {
		return nil
	}
	b, _ := json.Marshal(v)
	return b
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// GetSession loads one session by id.
func (p *Postgres) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	const q = `
SELECT session_id, alert_id, alert_type, agent_type, chain_id, chain_definition,
  author, runbook_url, mcp_selection, status, pod_id, last_interaction_at_us,
  started_at_us, completed_at_us, current_stage_index, current_stage_id,
  error_message, final_analysis, final_analysis_summary, executive_summary_error,
  pause_metadata, created_at_us
FROM alert_sessions WHERE session_id = $1`

	row := p.pool.QueryRow(ctx, q, sessionID)
	s, err := scanSession(row)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("get session %s: %w", sessionID, ErrNotFound)
		}
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	return s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*model.Session, error) {
	var (
		s                    model.Session
		podID                *string
		mcpSelRaw, pauseRaw  []byte
	)
	err := row.Scan(
		&s.SessionID, &s.AlertID, &s.AlertType, &s.AgentType, &s.ChainID, &s.ChainDefinition,
		&s.Author, &s.RunbookURL, &mcpSelRaw, &s.Status, &podID, &s.LastInteractionAtUs,
		&s.StartedAtUs, &s.CompletedAtUs, &s.CurrentStageIndex, &s.CurrentStageID,
		&s.ErrorMessage, &s.FinalAnalysis, &s.FinalAnalysisSummary, &s.ExecutiveSummaryError,
		&pauseRaw, &s.CreatedAtUs,
	)
	if err != nil {
		return nil, err
	}
	if podID != nil {
		s.PodID = *podID
	}
	if s.MCPSelection, err = decodeMCPSelection(mcpSelRaw); err != nil {
		return nil, err
	}
	if s.PauseMetadata, err = decodePauseMeta(pauseRaw); err != nil {
		return nil, err
	}
	return &s, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
