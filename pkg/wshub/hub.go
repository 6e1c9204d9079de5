// Package wshub implements the WebSocket hub (spec §4.4, component 4):
// per-connection channel subscriptions, catch-up by last-seen event id,
// and broadcast fan-out from the event bus to subscribed connections.
package wshub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/tarsy-project/tarsy-core/pkg/eventbus"
	"github.com/tarsy-project/tarsy-core/pkg/model"
)

// catchupLimit is the cap on events returned by a single catchup request
// (spec §4.4: "fetches events after N (cap 100)").
const catchupLimit = 100

// listenTimeout bounds how long registering an event-bus callback for a
// new channel may block the client's read loop.
const listenTimeout = 10 * time.Second

// ClientMessage is the JSON structure for client -> hub frames.
type ClientMessage struct {
	Action      string `json:"action"` // "subscribe", "unsubscribe", "catchup", "ping"
	Channel     string `json:"channel,omitempty"`
	LastEventID *int64 `json:"last_event_id,omitempty"`
}

// Connection is a single WebSocket client. subscriptions is read/written
// only from the goroutine running HandleConnection's read loop (and its
// deferred cleanup), so it needs no lock of its own.
type Connection struct {
	ID            string
	conn          *websocket.Conn
	subscriptions map[string]func() // channel -> event-bus unsubscribe callback
	ctx           context.Context
	cancel        context.CancelFunc
	writeTimeout  time.Duration
}

// Hub manages WebSocket connections and their channel subscriptions for
// one replica. It holds no durable state of its own: every channel
// callback is registered with a Bus, and catch-up reads go straight
// through GetEventsAfter.
type Hub struct {
	bus eventbus.Bus

	mu          sync.RWMutex
	connections map[string]*Connection
	channelSubs map[string]map[string]*Connection // channel -> connection id -> conn

	writeTimeout time.Duration
}

// NewHub constructs a Hub backed by bus. writeTimeout bounds how long a
// single send to one connection may block.
func NewHub(bus eventbus.Bus, writeTimeout time.Duration) *Hub {
	return &Hub{
		bus:          bus,
		connections:  make(map[string]*Connection),
		channelSubs:  make(map[string]map[string]*Connection),
		writeTimeout: writeTimeout,
	}
}

// PublishTransient delivers payload directly to every connection currently
// subscribed to channel, bypassing the durable event bus entirely. Used for
// llm.stream.chunk frames (spec §4.6): streaming deltas are best-effort and
// must never be persisted or replayed via catch-up, unlike every other
// event type, which all flow through Bus.Publish.
func (h *Hub) PublishTransient(channel string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("wshub: failed to marshal transient payload", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.channelSubs[channel]))
	for _, c := range h.channelSubs[channel] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := h.sendRaw(c, data); err != nil {
			slog.Warn("wshub: failed to deliver transient event", "connection_id", c.ID, "channel", channel, "error", err)
		}
	}
}

// ActiveConnections reports the number of live WebSocket connections.
func (h *Hub) ActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// HandleConnection manages one WebSocket connection's lifecycle from
// upgrade to close. Blocks until the connection closes; the caller's
// HTTP handler (out of scope here, see spec §6 "WebSocket") is expected
// to run it on its own goroutine per connection.
func (h *Hub) HandleConnection(parentCtx context.Context, conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(parentCtx)
	c := &Connection{
		ID:            uuid.New().String(),
		conn:          conn,
		subscriptions: make(map[string]func()),
		ctx:           ctx,
		cancel:        cancel,
		writeTimeout:  h.writeTimeout,
	}

	h.register(c)
	// On any socket error or disconnect, unregister all channel callbacks
	// before removing the connection (spec §4.4: this ordering is
	// mandatory to prevent dangling callbacks).
	defer h.unregister(c)

	h.sendJSON(c, map[string]string{"type": "connection.established", "connection_id": c.ID})

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("wshub: invalid client message", "connection_id", c.ID, "error", err)
			continue
		}
		h.handleMessage(ctx, c, &msg)
	}
}

func (h *Hub) handleMessage(ctx context.Context, c *Connection, msg *ClientMessage) {
	switch msg.Action {
	case "subscribe":
		if msg.Channel == "" {
			h.sendJSON(c, map[string]string{"type": "error", "message": "channel is required for subscribe"})
			return
		}
		if err := h.subscribe(ctx, c, msg.Channel); err != nil {
			h.sendJSON(c, map[string]string{"type": "subscription.error", "channel": msg.Channel, "message": "failed to subscribe to channel"})
			return
		}
		h.sendJSON(c, map[string]string{"type": "subscription.confirmed", "channel": msg.Channel})
		h.sendCatchup(ctx, c, msg.Channel, 0)

	case "unsubscribe":
		if msg.Channel == "" {
			h.sendJSON(c, map[string]string{"type": "error", "message": "channel is required for unsubscribe"})
			return
		}
		h.unsubscribe(c, msg.Channel)

	case "catchup":
		if msg.Channel == "" {
			h.sendJSON(c, map[string]string{"type": "error", "message": "channel is required for catchup"})
			return
		}
		lastID := int64(0)
		if msg.LastEventID != nil {
			lastID = *msg.LastEventID
		}
		h.sendCatchup(ctx, c, msg.Channel, lastID)

	case "ping":
		h.sendJSON(c, map[string]string{"type": "pong"})
	}
}

// subscribe registers an event-bus callback for channel (one per
// connection-channel pair — the bus itself is the fan-out point, unlike
// the teacher's shared-connection-set design, since Bus already supports
// per-subscriber callbacks directly).
func (h *Hub) subscribe(ctx context.Context, c *Connection, channel string) error {
	if _, already := c.subscriptions[channel]; already {
		return nil
	}
	listenCtx, cancel := context.WithTimeout(ctx, listenTimeout)
	defer cancel()
	unsub, err := h.bus.Subscribe(listenCtx, channel, func(ev *model.Event) {
		h.deliver(c, ev)
	})
	if err != nil {
		return err
	}
	c.subscriptions[channel] = unsub
	h.addChannelSub(channel, c)
	return nil
}

func (h *Hub) unsubscribe(c *Connection, channel string) {
	unsub, ok := c.subscriptions[channel]
	if !ok {
		return
	}
	unsub()
	delete(c.subscriptions, channel)
	h.removeChannelSub(channel, c.ID)
}

func (h *Hub) addChannelSub(channel string, c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.channelSubs[channel] == nil {
		h.channelSubs[channel] = make(map[string]*Connection)
	}
	h.channelSubs[channel][c.ID] = c
}

func (h *Hub) removeChannelSub(channel, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.channelSubs[channel]; ok {
		delete(m, connID)
		if len(m) == 0 {
			delete(h.channelSubs, channel)
		}
	}
}

func (h *Hub) deliver(c *Connection, ev *model.Event) {
	framed := h.injectID(ev)
	if err := h.sendRaw(c, framed); err != nil {
		slog.Warn("wshub: failed to deliver event", "connection_id", c.ID, "channel", ev.Channel, "error", err)
	}
}

// injectID adds the event's id to its payload so clients can dedup and
// track their last-seen position (spec §4.3 "at-least-once ... client-
// side dedup").
func (h *Hub) injectID(ev *model.Event) []byte {
	var m map[string]any
	if err := json.Unmarshal(ev.Payload, &m); err != nil {
		return ev.Payload
	}
	m["id"] = ev.ID
	out, err := json.Marshal(m)
	if err != nil {
		return ev.Payload
	}
	return out
}

// sendCatchup delivers events after lastID on channel (cap 100, spec
// §4.4), each as a full frame with id injected.
func (h *Hub) sendCatchup(ctx context.Context, c *Connection, channel string, lastID int64) {
	events, err := h.bus.GetEventsAfter(ctx, channel, lastID, catchupLimit+1)
	if err != nil {
		slog.Error("wshub: catchup query failed", "channel", channel, "error", err)
		return
	}
	hasMore := len(events) > catchupLimit
	if hasMore {
		events = events[:catchupLimit]
	}
	for _, ev := range events {
		if err := h.sendRaw(c, h.injectID(ev)); err != nil {
			slog.Warn("wshub: failed to send catchup event", "connection_id", c.ID, "error", err)
			return
		}
	}
	if hasMore {
		h.sendJSON(c, map[string]any{"type": "catchup.overflow", "channel": channel, "has_more": true})
	}
}

func (h *Hub) register(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[c.ID] = c
}

func (h *Hub) unregister(c *Connection) {
	for ch := range c.subscriptions {
		h.unsubscribe(c, ch)
	}
	h.mu.Lock()
	delete(h.connections, c.ID)
	h.mu.Unlock()
	c.cancel()
	_ = c.conn.Close(websocket.StatusNormalClosure, "")
}

func (h *Hub) sendJSON(c *Connection, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("wshub: failed to marshal message", "connection_id", c.ID, "error", err)
		return
	}
	if err := h.sendRaw(c, data); err != nil {
		slog.Warn("wshub: failed to send message", "connection_id", c.ID, "error", err)
	}
}

func (h *Hub) sendRaw(c *Connection, data []byte) error {
	ctx, cancel := context.WithTimeout(c.ctx, c.writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, data)
}
