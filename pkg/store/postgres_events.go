package store

import (
	"context"
	"fmt"

	"github.com/tarsy-project/tarsy-core/pkg/ids"
	"github.com/tarsy-project/tarsy-core/pkg/model"
)

// CreateEvent inserts an event row and returns it with its assigned id.
// The event bus (pkg/eventbus) wraps this in the same transaction as a
// `pg_notify` call; this method only performs the durable-log half
// (spec §4.3).
func (p *Postgres) CreateEvent(ctx context.Context, channel string, payload []byte) (*model.Event, error) {
	now := ids.NowMicros()
	var id int64
	err := p.pool.QueryRow(ctx,
		`INSERT INTO events (channel, payload, created_at_us) VALUES ($1,$2,$3) RETURNING id`,
		channel, payload, now,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("create event on %s: %w", channel, err)
	}
	return &model.Event{ID: id, Channel: channel, Payload: payload, CreatedAt: now}, nil
}

// GetEventsAfter returns events on channel with id > afterID, ascending,
// capped at limit. Used for WebSocket catch-up (spec §4.3/§4.4).
func (p *Postgres) GetEventsAfter(ctx context.Context, channel string, afterID int64, limit int) ([]*model.Event, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, channel, payload, created_at_us FROM events
		 WHERE channel=$1 AND id > $2 ORDER BY id ASC LIMIT $3`,
		channel, afterID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("get events after %d on %s: %w", afterID, channel, err)
	}
	defer rows.Close()

	var out []*model.Event
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.Channel, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("get events after: scan: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// DeleteEventsOlderThan is the cleanup sweep's primitive (spec §4.3
// "Cleanup"); idempotent across replicas since it is a plain DELETE by
// cutoff, not a claim.
func (p *Postgres) DeleteEventsOlderThan(ctx context.Context, cutoffUs int64) (int, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM events WHERE created_at_us < $1`, cutoffUs)
	if err != nil {
		return 0, fmt.Errorf("delete events older than %d: %w", cutoffUs, err)
	}
	return int(tag.RowsAffected()), nil
}
