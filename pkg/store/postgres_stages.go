package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tarsy-project/tarsy-core/pkg/ids"
	"github.com/tarsy-project/tarsy-core/pkg/model"
)

// CreateStageExecution inserts a stage execution row. The unique tuple
// (session_id, stage_index, parallel_index) prevents duplicate inserts on
// retry (spec §4.2 invariants).
func (p *Postgres) CreateStageExecution(ctx context.Context, e *model.StageExecution) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.ExecutionID == "" {
		e.ExecutionID = ids.New()
	}

	const q = `
INSERT INTO stage_executions (
  execution_id, session_id, stage_id, stage_index, stage_name, agent, status,
  started_at_us, completed_at_us, paused_at_us, duration_ms, current_iteration,
  iteration_strategy, stage_output, error_message,
  parent_stage_execution_id, parallel_index, parallel_type
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`

	_, err := p.pool.Exec(ctx, q,
		e.ExecutionID, e.SessionID, e.StageID, e.StageIndex, e.StageName, e.Agent, e.Status,
		e.StartedAtUs, e.CompletedAtUs, e.PausedAtUs, e.DurationMs, e.CurrentIteration,
		e.IterationStrategy, e.StageOutput, e.ErrorMessage,
		nullStr(e.ParentStageExecutionID), e.ParallelIndex, e.ParallelType,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return fmt.Errorf("create stage execution: duplicate (session_id, stage_index, parallel_index): %w", err)
			case "23503":
				return fmt.Errorf("create stage execution: %w", ErrNotFound)
			}
		}
		return fmt.Errorf("create stage execution: %w", err)
	}
	return nil
}

// UpdateStageExecution updates a stage execution's mutable fields (status,
// timestamps, output/error, iteration count).
func (p *Postgres) UpdateStageExecution(ctx context.Context, e *model.StageExecution) error {
	if err := e.Validate(); err != nil {
		return err
	}
	const q = `
UPDATE stage_executions SET
  status=$2, started_at_us=$3, completed_at_us=$4, paused_at_us=$5, duration_ms=$6,
  current_iteration=$7, iteration_strategy=$8, stage_output=$9, error_message=$10
WHERE execution_id=$1`

	tag, err := p.pool.Exec(ctx, q,
		e.ExecutionID, e.Status, e.StartedAtUs, e.CompletedAtUs, e.PausedAtUs, e.DurationMs,
		e.CurrentIteration, e.IterationStrategy, e.StageOutput, e.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("update stage execution %s: %w", e.ExecutionID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update stage execution %s: %w", e.ExecutionID, ErrNotFound)
	}
	return nil
}

// GetStageExecutionsForSession returns every stage execution (root and
// parallel children) for a session, ordered by stage_index then
// parallel_index (spec §5 ordering guarantees).
func (p *Postgres) GetStageExecutionsForSession(ctx context.Context, sessionID string) ([]*model.StageExecution, error) {
	const q = `
SELECT execution_id, session_id, stage_id, stage_index, stage_name, agent, status,
  started_at_us, completed_at_us, paused_at_us, duration_ms, current_iteration,
  iteration_strategy, stage_output, error_message,
  parent_stage_execution_id, parallel_index, parallel_type
FROM stage_executions
WHERE session_id=$1
ORDER BY stage_index ASC, parallel_index ASC`

	rows, err := p.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get stage executions for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var out []*model.StageExecution
	for rows.Next() {
		var (
			e       model.StageExecution
			parent  *string
		)
		if err := rows.Scan(
			&e.ExecutionID, &e.SessionID, &e.StageID, &e.StageIndex, &e.StageName, &e.Agent, &e.Status,
			&e.StartedAtUs, &e.CompletedAtUs, &e.PausedAtUs, &e.DurationMs, &e.CurrentIteration,
			&e.IterationStrategy, &e.StageOutput, &e.ErrorMessage,
			&parent, &e.ParallelIndex, &e.ParallelType,
		); err != nil {
			return nil, fmt.Errorf("get stage executions for session %s: scan: %w", sessionID, err)
		}
		if parent != nil {
			e.ParentStageExecutionID = *parent
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
