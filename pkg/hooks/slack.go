package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tarsy-project/tarsy-core/pkg/model"
)

// SlackNotifier posts plain-text session notifications to a Slack incoming
// webhook. Unlike the teacher's bot-token API client (channel history
// search for fingerprint threading, block-kit formatting), this is
// intentionally the minimal shape a webhook needs: one JSON field, no
// threading, no formatting — "Slack notification formatting" is out of
// scope, but the executive summary still needs to reach Slack somehow.
type SlackNotifier struct {
	webhookURL string
	httpClient *http.Client
}

// NewSlackNotifier builds a notifier posting to webhookURL. Returns nil if
// webhookURL is empty, so callers can construct one unconditionally from
// config and get a nil-safe no-op when Slack isn't configured.
func NewSlackNotifier(webhookURL string) *SlackNotifier {
	if webhookURL == "" {
		return nil
	}
	return &SlackNotifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type slackPayload struct {
	Text string `json:"text"`
}

// post sends text to the webhook. Fail-open: errors are logged, never
// returned, matching every other hook effect in spec §4.12.
func (n *SlackNotifier) post(ctx context.Context, text string) {
	if n == nil {
		return
	}
	body, err := json.Marshal(slackPayload{Text: text})
	if err != nil {
		slog.Warn("hooks: failed to marshal slack payload", "error", err)
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		slog.Warn("hooks: failed to build slack request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		slog.Warn("hooks: slack webhook post failed", "error", err)
		return
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		slog.Warn("hooks: slack webhook returned non-2xx", "status", resp.StatusCode)
	}
}

// NotifyStarted posts a one-line "processing started" message.
func (n *SlackNotifier) NotifyStarted(ctx context.Context, session *model.Session) {
	n.post(ctx, fmt.Sprintf("Tarsy: started processing %s alert (session %s)", session.AlertType, session.SessionID))
}

// NotifyTerminal posts the terminal status plus executive summary (or
// error message, for a non-completed terminal status).
func (n *SlackNotifier) NotifyTerminal(ctx context.Context, session *model.Session) {
	switch session.Status {
	case model.SessionCompleted:
		summary := session.FinalAnalysisSummary
		if summary == "" {
			summary = session.FinalAnalysis
		}
		n.post(ctx, fmt.Sprintf("Tarsy: %s alert (session %s) completed\n%s", session.AlertType, session.SessionID, summary))
	default:
		n.post(ctx, fmt.Sprintf("Tarsy: %s alert (session %s) ended with status %s: %s", session.AlertType, session.SessionID, session.Status, session.ErrorMessage))
	}
}
