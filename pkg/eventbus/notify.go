package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tarsy-project/tarsy-core/pkg/model"
	"github.com/tarsy-project/tarsy-core/pkg/store"
)

// listenCmd represents a LISTEN/UNLISTEN to be executed by the receive
// loop, the sole goroutine allowed to touch the dedicated LISTEN
// connection.
type listenCmd struct {
	sql     string
	channel string
	gen     uint64 // generation captured at Unsubscribe time; 0 for LISTEN
	result  chan error
}

// NotifyBus is the Bus implementation for a notify-capable store (spec
// §4.3 "Notify-capable store"): publish is one transaction that inserts
// the event row and issues pg_notify; a single dedicated connection
// LISTENs and fans out to in-process subscribers.
type NotifyBus struct {
	store      store.Store
	pool       *pgxpool.Pool
	connString string

	conn   *pgx.Conn
	connMu sync.Mutex

	cmdCh chan listenCmd

	listenGen   map[string]uint64
	listenGenMu sync.Mutex

	subs   map[string]map[int64]func(*model.Event)
	subsMu sync.Mutex
	nextID int64

	running    atomic.Bool
	cancelLoop context.CancelFunc
	loopDone   chan struct{}
}

// NewNotifyBus constructs a bus that publishes through pool and listens on
// a dedicated connection opened from connString (LISTEN/NOTIFY requires a
// connection the caller controls directly, not one borrowed from a pool
// mid-transaction).
func NewNotifyBus(s store.Store, pool *pgxpool.Pool, connString string) *NotifyBus {
	return &NotifyBus{
		store:      s,
		pool:       pool,
		connString: connString,
		cmdCh:      make(chan listenCmd, 16),
		listenGen:  make(map[string]uint64),
		subs:       make(map[string]map[int64]func(*model.Event)),
	}
}

// Start opens the LISTEN connection and begins the receive loop. Must be
// called once before Subscribe.
func (b *NotifyBus) Start(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, b.connString)
	if err != nil {
		return fmt.Errorf("eventbus: connect for LISTEN: %w", err)
	}
	b.connMu.Lock()
	b.conn = conn
	b.connMu.Unlock()
	b.running.Store(true)

	loopCtx, cancel := context.WithCancel(ctx)
	b.cancelLoop = cancel
	b.loopDone = make(chan struct{})
	go func() {
		defer close(b.loopDone)
		b.receiveLoop(loopCtx)
	}()
	return nil
}

// Stop drains the receive loop and closes the LISTEN connection.
func (b *NotifyBus) Stop(ctx context.Context) {
	b.running.Store(false)
	if b.cancelLoop != nil {
		b.cancelLoop()
	}
	if b.loopDone != nil {
		<-b.loopDone
	}
	b.connMu.Lock()
	defer b.connMu.Unlock()
	if b.conn != nil {
		_ = b.conn.Close(ctx)
		b.conn = nil
	}
}

// Publish inserts the event row and pg_notify's the channel within the
// same transaction, so a NOTIFY never fires for a row a concurrent reader
// can't yet see (spec §4.3).
func (b *NotifyBus) Publish(ctx context.Context, channel string, payload any) (*model.Event, error) {
	raw, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}

	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("eventbus: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	now := time.Now()
	if err := tx.QueryRow(ctx,
		`INSERT INTO events (channel, payload, created_at_us) VALUES ($1,$2,$3) RETURNING id`,
		channel, raw, now.UnixMicro(),
	).Scan(&id); err != nil {
		return nil, fmt.Errorf("eventbus: insert event: %w", err)
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1,$2)`, channel, raw); err != nil {
		return nil, fmt.Errorf("eventbus: pg_notify: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("eventbus: commit: %w", err)
	}
	return &model.Event{ID: id, Channel: channel, Payload: raw, CreatedAt: now.UnixMicro()}, nil
}

// GetEventsAfter delegates to the store's durable log.
func (b *NotifyBus) GetEventsAfter(ctx context.Context, channel string, afterID int64, limit int) ([]*model.Event, error) {
	return b.store.GetEventsAfter(ctx, channel, afterID, limit)
}

// Subscribe registers fn for channel, issuing LISTEN on first subscriber.
func (b *NotifyBus) Subscribe(ctx context.Context, channel string, fn func(*model.Event)) (func(), error) {
	b.subsMu.Lock()
	id := b.nextID
	b.nextID++
	needsListen := b.subs[channel] == nil
	if needsListen {
		b.subs[channel] = make(map[int64]func(*model.Event))
	}
	b.subs[channel][id] = fn
	b.subsMu.Unlock()

	if needsListen {
		if err := b.listen(ctx, channel); err != nil {
			b.subsMu.Lock()
			delete(b.subs[channel], id)
			b.subsMu.Unlock()
			return nil, err
		}
	}

	unsubscribe := func() {
		b.subsMu.Lock()
		remaining := 0
		if m, ok := b.subs[channel]; ok {
			delete(m, id)
			remaining = len(m)
			if remaining == 0 {
				delete(b.subs, channel)
			}
		}
		b.subsMu.Unlock()
		if remaining == 0 {
			b.unlisten(channel)
		}
	}
	return unsubscribe, nil
}

func (b *NotifyBus) listen(ctx context.Context, channel string) error {
	if !b.running.Load() {
		return fmt.Errorf("eventbus: not started")
	}
	sanitized := pgx.Identifier{channel}.Sanitize()
	cmd := listenCmd{sql: "LISTEN " + sanitized, channel: channel, result: make(chan error, 1)}
	select {
	case b.cmdCh <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *NotifyBus) unlisten(channel string) {
	if !b.running.Load() {
		return
	}
	b.listenGenMu.Lock()
	gen := b.listenGen[channel]
	b.listenGenMu.Unlock()

	sanitized := pgx.Identifier{channel}.Sanitize()
	cmd := listenCmd{sql: "UNLISTEN " + sanitized, channel: channel, gen: gen, result: make(chan error, 1)}
	select {
	case b.cmdCh <- cmd:
	default:
		// Receive loop will pick it up on its next poll of cmdCh; best
		// effort, matching the hub's own best-effort unsubscribe semantics.
	}
}

func (b *NotifyBus) receiveLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		b.processPendingCmds(ctx)

		b.connMu.Lock()
		conn := b.conn
		b.connMu.Unlock()
		if conn == nil {
			b.reconnect(ctx)
			continue
		}

		waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		notification, err := conn.WaitForNotification(waitCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if waitCtx.Err() != nil {
				continue
			}
			slog.Error("eventbus: notify receive error", "error", err)
			b.reconnect(ctx)
			continue
		}

		b.dispatch(notification.Channel, []byte(notification.Payload))
	}
}

func (b *NotifyBus) dispatch(channel string, payload []byte) {
	b.subsMu.Lock()
	handlers := make([]func(*model.Event), 0, len(b.subs[channel]))
	for _, fn := range b.subs[channel] {
		handlers = append(handlers, fn)
	}
	b.subsMu.Unlock()
	if len(handlers) == 0 {
		return
	}
	ev := &model.Event{Channel: channel, Payload: payload}
	for _, fn := range handlers {
		fn(ev)
	}
}

func (b *NotifyBus) processPendingCmds(ctx context.Context) {
	for {
		select {
		case cmd := <-b.cmdCh:
			if cmd.gen > 0 {
				b.listenGenMu.Lock()
				stale := b.listenGen[cmd.channel] != cmd.gen
				b.listenGenMu.Unlock()
				if stale {
					cmd.result <- nil
					continue
				}
			}
			b.connMu.Lock()
			conn := b.conn
			b.connMu.Unlock()
			if conn == nil {
				cmd.result <- fmt.Errorf("eventbus: LISTEN connection not established")
				continue
			}
			_, err := conn.Exec(ctx, cmd.sql)
			if err == nil && cmd.gen == 0 && cmd.channel != "" {
				b.listenGenMu.Lock()
				b.listenGen[cmd.channel]++
				b.listenGenMu.Unlock()
			}
			cmd.result <- err
		default:
			return
		}
	}
}

func (b *NotifyBus) reconnect(ctx context.Context) {
	b.connMu.Lock()
	defer b.connMu.Unlock()
	if b.conn != nil {
		_ = b.conn.Close(ctx)
		b.conn = nil
	}

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		conn, err := pgx.Connect(ctx, b.connString)
		if err != nil {
			slog.Error("eventbus: LISTEN reconnect failed", "error", err, "backoff", backoff)
			backoff = min(backoff*2, 30*time.Second)
			continue
		}
		b.conn = conn

		b.subsMu.Lock()
		channels := make([]string, 0, len(b.subs))
		for ch := range b.subs {
			channels = append(channels, ch)
		}
		b.subsMu.Unlock()
		for _, ch := range channels {
			sanitized := pgx.Identifier{ch}.Sanitize()
			if _, err := conn.Exec(ctx, "LISTEN "+sanitized); err != nil {
				slog.Error("eventbus: re-LISTEN failed", "channel", ch, "error", err)
			}
		}
		slog.Info("eventbus: notify connection reconnected")
		return
	}
}
