package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tarsy-project/tarsy-core/pkg/model"
	"github.com/tarsy-project/tarsy-core/pkg/store"
)

// PollingBus is the Bus implementation for stores without a notify
// mechanism (spec §4.3 "Polling store"): publish only inserts, and one
// poll loop per subscribed channel tails events by id at Interval.
// Correctness is identical to NotifyBus — only latency differs.
type PollingBus struct {
	store    store.Store
	Interval time.Duration

	mu     sync.Mutex
	loops  map[string]context.CancelFunc
	subs   map[string]map[int64]func(*model.Event)
	nextID int64
}

// NewPollingBus constructs a poll-based bus. interval is the tail-polling
// period (spec §4.3 recommends ~1-2s).
func NewPollingBus(s store.Store, interval time.Duration) *PollingBus {
	return &PollingBus{
		store:    s,
		Interval: interval,
		loops:    make(map[string]context.CancelFunc),
		subs:     make(map[string]map[int64]func(*model.Event)),
	}
}

func (b *PollingBus) Publish(ctx context.Context, channel string, payload any) (*model.Event, error) {
	return publishDurable(ctx, b.store, channel, payload)
}

func (b *PollingBus) GetEventsAfter(ctx context.Context, channel string, afterID int64, limit int) ([]*model.Event, error) {
	return b.store.GetEventsAfter(ctx, channel, afterID, limit)
}

func (b *PollingBus) Subscribe(ctx context.Context, channel string, fn func(*model.Event)) (func(), error) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	needsLoop := b.subs[channel] == nil
	if needsLoop {
		b.subs[channel] = make(map[int64]func(*model.Event))
	}
	b.subs[channel][id] = fn
	if needsLoop {
		loopCtx, cancel := context.WithCancel(context.Background())
		b.loops[channel] = cancel
		go b.pollLoop(loopCtx, channel)
	}
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		m, ok := b.subs[channel]
		if !ok {
			return
		}
		delete(m, id)
		if len(m) == 0 {
			delete(b.subs, channel)
			if cancel, ok := b.loops[channel]; ok {
				cancel()
				delete(b.loops, channel)
			}
		}
	}
	return unsubscribe, nil
}

func (b *PollingBus) pollLoop(ctx context.Context, channel string) {
	var lastID int64
	ticker := time.NewTicker(b.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		events, err := b.store.GetEventsAfter(ctx, channel, lastID, 500)
		if err != nil {
			slog.Warn("eventbus: poll failed", "channel", channel, "error", err)
			continue
		}
		if len(events) == 0 {
			continue
		}
		lastID = events[len(events)-1].ID

		b.mu.Lock()
		handlers := make([]func(*model.Event), 0, len(b.subs[channel]))
		for _, fn := range b.subs[channel] {
			handlers = append(handlers, fn)
		}
		b.mu.Unlock()

		for _, ev := range events {
			for _, fn := range handlers {
				fn(ev)
			}
		}
	}
}
