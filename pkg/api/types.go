// Package api defines the wire contracts for the external interfaces named
// in spec §6: the request/response DTOs for every REST endpoint plus the
// WebSocket frame envelope. It intentionally stops at the contract — no
// router, no handler functions, no framework import. A caller embedding
// pkg/ingress and pkg/wshub behind an HTTP server marshals/unmarshals these
// types at its own boundary; cmd/tarsy never does so itself (spec's module
// layout scopes the router out of this binary).
package api

import "github.com/tarsy-project/tarsy-core/pkg/model"

// AlertRequest is the body of POST /api/v1/alerts. MCP reuses
// model.MCPSelection directly rather than a duplicate wire type, since the
// two shapes are already identical JSON.
type AlertRequest struct {
	AlertType string               `json:"alert_type"`
	Runbook   string               `json:"runbook,omitempty"`
	Severity  string               `json:"severity,omitempty"`
	Timestamp string               `json:"timestamp,omitempty"`
	Data      map[string]any       `json:"data"`
	MCP       *model.MCPSelection  `json:"mcp,omitempty"`
}

// AlertResponse is the 200 response to a successful alert submission.
type AlertResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// ErrorResponse is the generic error body for 400/404/409/500 responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// QueueFullResponse is the 429 body for an admission-control rejection
// (spec §6: "429 {error:\"Queue full\", queue_size, max_queue_size}").
type QueueFullResponse struct {
	Error        string `json:"error"`
	QueueSize    int    `json:"queue_size"`
	MaxQueueSize int    `json:"max_queue_size"`
}

// SessionSummary is one row of GET /api/v1/history/sessions' paginated
// list: enough to render a history table without the full chain
// definition/final analysis payload.
type SessionSummary struct {
	SessionID   string              `json:"session_id"`
	AlertType   string              `json:"alert_type"`
	AgentType   string              `json:"agent_type"`
	Status      model.SessionStatus `json:"status"`
	Author      string              `json:"author"`
	CreatedAtUs int64               `json:"created_at_us"`
	CompletedAtUs *int64            `json:"completed_at_us,omitempty"`
}

// SessionListResponse is the paginated GET /api/v1/history/sessions body.
type SessionListResponse struct {
	Sessions []SessionSummary `json:"sessions"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// SessionDetailResponse is the GET /api/v1/history/sessions/{id} body: the
// full session row plus its stage executions, for the timeline view.
type SessionDetailResponse struct {
	Session *model.Session          `json:"session"`
	Stages  []*model.StageExecution `json:"stages"`
}

// ResumeSessionRequest is the body of
// POST /api/v1/history/sessions/{id}/resume. Empty today — resume takes no
// parameters beyond the path's session id — but kept as a named type
// rather than an empty struct literal at call sites so a future field
// (e.g. an operator note) doesn't change the handler signature.
type ResumeSessionRequest struct{}

// CancelStageResponse confirms a stage cancellation was accepted.
type CancelStageResponse struct {
	SessionID   string `json:"session_id"`
	ExecutionID string `json:"execution_id"`
	Status      string `json:"status"`
}

// SystemWarning is one entry of GET /api/v1/system/warnings: a
// startup-time configuration issue that didn't fail validation outright
// (e.g. a disabled MCP server, an agent referencing an unknown chain).
type SystemWarning struct {
	Component string `json:"component"`
	Message   string `json:"message"`
}

// MCPServerInfo is one entry of GET /api/v1/system/mcp-servers: the
// registry snapshot pkg/background's tool cache backs.
type MCPServerInfo struct {
	ServerID string   `json:"server_id"`
	Tools    []string `json:"tools"`
	Healthy  bool     `json:"healthy"`
	Error    string   `json:"error,omitempty"`
}

// MCPServersResponse is the full GET /api/v1/system/mcp-servers body.
type MCPServersResponse struct {
	Servers   []MCPServerInfo `json:"servers"`
	UpdatedAt string          `json:"updated_at"`
}

// HealthResponse is the GET /health liveness body.
type HealthResponse struct {
	Status string `json:"status"`
}
