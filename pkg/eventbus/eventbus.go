// Package eventbus implements the durable per-channel event log with
// real-time notify (spec §4.3, component 3). Publish always appends to the
// events table; delivery to live subscribers is either immediate (Postgres
// LISTEN/NOTIFY) or via a short polling loop when the store has no notify
// mechanism. Both paths give subscribers strictly ascending event_id
// ordering within one channel; nothing is promised across channels.
package eventbus

import (
	"context"
	"encoding/json"

	"github.com/tarsy-project/tarsy-core/pkg/model"
	"github.com/tarsy-project/tarsy-core/pkg/store"
)

// Bus is the subscribe/publish contract every caller depends on
// (pkg/wshub, pkg/hooks, pkg/session cross-replica cancellation).
type Bus interface {
	// Publish durably logs payload on channel and returns the new event.
	Publish(ctx context.Context, channel string, payload any) (*model.Event, error)

	// Subscribe registers fn to be invoked (on an internal goroutine, not the
	// caller's) for every event delivered on channel, from this point
	// forward. It does not replay history — callers that need catch-up call
	// GetEventsAfter directly, as pkg/wshub does on (re)subscribe.
	Subscribe(ctx context.Context, channel string, fn func(*model.Event)) (unsubscribe func(), err error)

	// GetEventsAfter is the durable-log read path, used for WebSocket
	// catch-up and for any cross-replica handler that needs to resume from
	// a last-seen id.
	GetEventsAfter(ctx context.Context, channel string, afterID int64, limit int) ([]*model.Event, error)
}

func marshalPayload(payload any) ([]byte, error) {
	if b, ok := payload.([]byte); ok {
		return b, nil
	}
	return json.Marshal(payload)
}

// publishDurable is the shared first half of Publish for both
// implementations: write the row, return it. Notification (immediate or
// polled) is the second half and differs per implementation.
func publishDurable(ctx context.Context, s store.Store, channel string, payload any) (*model.Event, error) {
	raw, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}
	return s.CreateEvent(ctx, channel, raw)
}
