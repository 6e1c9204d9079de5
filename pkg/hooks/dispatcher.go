// Package hooks implements the persistence/event hook pair described in
// spec §4.12: best-effort side effects the queue worker triggers around a
// session's lifecycle, plus the minimal Slack executive-summary poster.
// The LLM/MCP interaction and stage-transition hooks named in the same
// section are wired directly into pkg/chain and pkg/llmclient/pkg/mcpclient
// instead of through this package — those components already own the
// store/event-bus handles a generic dispatcher would just forward, so a
// separate indirection would only add a hop with nothing left to decide.
package hooks

import (
	"context"
	"log/slog"
	"time"

	"github.com/tarsy-project/tarsy-core/pkg/eventbus"
	"github.com/tarsy-project/tarsy-core/pkg/model"
)

// Dispatcher publishes session lifecycle events to both the session's
// detail channel and the global sessions channel (spec §4.12: "global
// sessions channel for session lifecycle: created, started, completed,
// failed, paused, resumed, cancelled"), and fires the Slack notifier, if
// configured, on session start and terminal completion.
type Dispatcher struct {
	events eventbus.Bus
	slack  *SlackNotifier
}

// NewDispatcher builds a Dispatcher. events may be nil (lifecycle events
// are skipped); slack may be nil (no Slack notifications are sent).
func NewDispatcher(events eventbus.Bus, slack *SlackNotifier) *Dispatcher {
	return &Dispatcher{events: events, slack: slack}
}

// PublishSessionStatus is the event hook half of spec §4.12: best-effort,
// never returns an error to the caller, since a publish failure must never
// fail the operation that triggered it.
func (d *Dispatcher) PublishSessionStatus(ctx context.Context, sessionID string, status model.SessionStatus) {
	if d == nil || d.events == nil {
		return
	}
	payload := eventbus.SessionStatusPayload{
		Type:      eventbus.EventSessionStatus,
		SessionID: sessionID,
		Status:    string(status),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if _, err := d.events.Publish(ctx, model.SessionChannel(sessionID), payload); err != nil {
		slog.Warn("hooks: failed to publish session status on detail channel", "session_id", sessionID, "status", status, "error", err)
	}
	if _, err := d.events.Publish(ctx, model.ChannelSessions, payload); err != nil {
		slog.Warn("hooks: failed to publish session status on global channel", "session_id", sessionID, "status", status, "error", err)
	}
}

// NotifyStarted posts a Slack start notification, if configured.
func (d *Dispatcher) NotifyStarted(ctx context.Context, session *model.Session) {
	if d == nil || d.slack == nil {
		return
	}
	d.slack.NotifyStarted(ctx, session)
}

// NotifyTerminal posts a Slack terminal-status notification (including the
// executive summary, when one was produced), if configured.
func (d *Dispatcher) NotifyTerminal(ctx context.Context, session *model.Session) {
	if d == nil || d.slack == nil {
		return
	}
	d.slack.NotifyTerminal(ctx, session)
}
