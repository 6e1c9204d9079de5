// Package model holds the plain data-model types described by the data
// model section of the specification: Session, StageExecution,
// LLMInteraction, MCPInteraction and Event. These are hand-written structs
// rather than ORM-generated ones (see DESIGN.md for why) so that the store
// package can map them onto plain SQL rows.
package model

// SessionStatus is the lifecycle state of an AlertSession.
type SessionStatus string

const (
	SessionPending    SessionStatus = "pending"
	SessionInProgress SessionStatus = "in_progress"
	SessionPaused     SessionStatus = "paused"
	SessionCanceling  SessionStatus = "canceling"
	SessionCompleted  SessionStatus = "completed"
	SessionFailed     SessionStatus = "failed"
	SessionCancelled  SessionStatus = "cancelled"
	SessionTimedOut   SessionStatus = "timed_out"
)

// activeSessionStatuses and terminalSessionStatuses partition SessionStatus
// exactly as required by spec §3 and testable property 2: every status is in
// exactly one of the two sets.
var activeSessionStatuses = map[SessionStatus]bool{
	SessionPending:    true,
	SessionInProgress: true,
	SessionPaused:     true,
	SessionCanceling:  true,
}

var terminalSessionStatuses = map[SessionStatus]bool{
	SessionCompleted: true,
	SessionFailed:    true,
	SessionCancelled: true,
	SessionTimedOut:  true,
}

// IsActive reports whether s is one of the active (non-terminal) statuses.
func (s SessionStatus) IsActive() bool { return activeSessionStatuses[s] }

// IsTerminal reports whether s is one of the terminal statuses.
func (s SessionStatus) IsTerminal() bool { return terminalSessionStatuses[s] }

// MCPServerSelection overrides the default MCP server list for one alert.
type MCPServerSelection struct {
	Name  string   `json:"name"`
	Tools []string `json:"tools,omitempty"`
}

// NativeToolsConfig toggles provider-native tools (search, code execution,
// URL context) for one alert. Nil means "use the provider default".
type NativeToolsConfig struct {
	GoogleSearch  *bool `json:"google_search,omitempty"`
	CodeExecution *bool `json:"code_execution,omitempty"`
	URLContext    *bool `json:"url_context,omitempty"`
}

// MCPSelection is the per-alert MCP override (spec §2 component 11: "unless
// overridden at the alert level — the alert-level mcp selection always
// wins").
type MCPSelection struct {
	Servers     []MCPServerSelection `json:"servers"`
	NativeTools *NativeToolsConfig    `json:"native_tools,omitempty"`
}

// PauseMetadata records why and where a session paused (spec §4.7 max
// iterations / §4.9 pause-on-cancel interplay).
type PauseMetadata struct {
	Reason          string `json:"reason"`
	StageID         string `json:"stage_id"`
	ExecutionID     string `json:"execution_id"`
	CurrentIteration int   `json:"current_iteration"`
	PausedAtUs      int64  `json:"paused_at_us"`
}

// Session is one alert processing run (spec §3 "Session").
type Session struct {
	SessionID       string
	AlertID         string
	AlertType       string
	AgentType       string
	ChainID         string
	ChainDefinition []byte // JSON snapshot of the resolved chain
	Author          string
	RunbookURL      string
	MCPSelection    *MCPSelection

	Status   SessionStatus
	PodID    string
	LastInteractionAtUs int64

	StartedAtUs   int64
	CompletedAtUs *int64

	CurrentStageIndex int
	CurrentStageID    string

	ErrorMessage            string
	FinalAnalysis           string
	FinalAnalysisSummary    string
	ExecutiveSummaryError   string
	PauseMetadata           *PauseMetadata

	CreatedAtUs int64
}

// Validate checks the invariants from spec §3: exactly one chain
// definition snapshot, completed_at_us set iff terminal, pause_metadata
// non-nil iff status is PAUSED.
func (s *Session) Validate() error {
	if len(s.ChainDefinition) == 0 {
		return errInvalid("session has no chain_definition snapshot")
	}
	if s.Status.IsTerminal() && s.CompletedAtUs == nil {
		return errInvalid("terminal session missing completed_at_us")
	}
	if !s.Status.IsTerminal() && s.CompletedAtUs != nil {
		return errInvalid("non-terminal session has completed_at_us set")
	}
	if s.Status == SessionPaused && s.PauseMetadata == nil {
		return errInvalid("paused session missing pause_metadata")
	}
	if s.Status != SessionPaused && s.PauseMetadata != nil {
		return errInvalid("non-paused session has pause_metadata set")
	}
	return nil
}
