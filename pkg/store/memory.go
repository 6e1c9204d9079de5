package store

import (
	"context"
	"sort"
	"sync"

	"github.com/tarsy-project/tarsy-core/pkg/ids"
	"github.com/tarsy-project/tarsy-core/pkg/model"
)

// Memory is an in-process Store used by tests for the chain executor, queue
// and hooks packages that need a Store but should not require a live
// Postgres instance. It implements the same atomicity guarantees
// (ClaimNextPendingSession, UpdateSessionToCanceling) under a single mutex,
// which is sufficient to exercise the contract even though it can't
// reproduce SKIP LOCKED's cross-connection semantics.
type Memory struct {
	mu sync.Mutex

	sessions map[string]*model.Session
	alertIDs map[string]string // alert_id -> session_id

	stages map[string]*model.StageExecution

	llmInteractions []*model.LLMInteraction
	mcpInteractions []*model.MCPInteraction

	events     []*model.Event
	nextEventID int64
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]*model.Session),
		alertIDs: make(map[string]string),
		stages:   make(map[string]*model.StageExecution),
	}
}

func cloneSession(s *model.Session) *model.Session {
	cp := *s
	return &cp
}

func (m *Memory) CreateSession(_ context.Context, s *model.Session) error {
	if err := s.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.SessionID == "" {
		s.SessionID = ids.New()
	}
	if s.CreatedAtUs == 0 {
		s.CreatedAtUs = ids.NowMicros()
	}
	if _, exists := m.alertIDs[s.AlertID]; exists {
		return ErrDuplicateAlert
	}
	m.sessions[s.SessionID] = cloneSession(s)
	m.alertIDs[s.AlertID] = s.SessionID
	return nil
}

func (m *Memory) GetSession(_ context.Context, sessionID string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(s), nil
}

func (m *Memory) UpdateSession(_ context.Context, s *model.Session) error {
	if err := s.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.SessionID]; !ok {
		return ErrNotFound
	}
	m.sessions[s.SessionID] = cloneSession(s)
	return nil
}

func (m *Memory) ClaimNextPendingSession(_ context.Context, podID string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var oldest *model.Session
	for _, s := range m.sessions {
		if s.Status != model.SessionPending {
			continue
		}
		if oldest == nil || s.CreatedAtUs < oldest.CreatedAtUs {
			oldest = s
		}
	}
	if oldest == nil {
		return nil, nil
	}
	now := ids.NowMicros()
	oldest.Status = model.SessionInProgress
	oldest.PodID = podID
	oldest.LastInteractionAtUs = now
	oldest.StartedAtUs = now
	return cloneSession(oldest), nil
}

func (m *Memory) UpdateSessionToCanceling(_ context.Context, sessionID string) (bool, model.SessionStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return false, "", ErrNotFound
	}
	if !s.Status.IsActive() {
		return false, s.Status, nil
	}
	s.Status = model.SessionCanceling
	return true, model.SessionCanceling, nil
}

func (m *Memory) CountPendingSessions(ctx context.Context) (int, error) {
	return m.CountSessionsByStatus(ctx, model.SessionPending)
}

func (m *Memory) CountSessionsByStatus(_ context.Context, status model.SessionStatus) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sessions {
		if s.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *Memory) GetActiveSessions(_ context.Context) ([]*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Session
	for _, s := range m.sessions {
		if s.Status.IsActive() {
			out = append(out, cloneSession(s))
		}
	}
	return out, nil
}

func (m *Memory) DeleteSessionsOlderThan(_ context.Context, cutoffUs int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if s.CreatedAtUs < cutoffUs {
			delete(m.sessions, id)
			delete(m.alertIDs, s.AlertID)
			n++
		}
	}
	return n, nil
}

func (m *Memory) CreateStageExecution(_ context.Context, e *model.StageExecution) error {
	if err := e.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ExecutionID == "" {
		e.ExecutionID = ids.New()
	}
	cp := *e
	m.stages[e.ExecutionID] = &cp
	return nil
}

func (m *Memory) UpdateStageExecution(_ context.Context, e *model.StageExecution) error {
	if err := e.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.stages[e.ExecutionID]; !ok {
		return ErrNotFound
	}
	cp := *e
	m.stages[e.ExecutionID] = &cp
	return nil
}

func (m *Memory) GetStageExecutionsForSession(_ context.Context, sessionID string) ([]*model.StageExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.StageExecution
	for _, e := range m.stages {
		if e.SessionID == sessionID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StageIndex != out[j].StageIndex {
			return out[i].StageIndex < out[j].StageIndex
		}
		return out[i].ParallelIndex < out[j].ParallelIndex
	})
	return out, nil
}

func (m *Memory) CreateLLMInteraction(_ context.Context, i *model.LLMInteraction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i.InteractionID == "" {
		i.InteractionID = ids.New()
	}
	if i.TimestampUs == 0 {
		i.TimestampUs = ids.NowMicros()
	}
	cp := *i
	m.llmInteractions = append(m.llmInteractions, &cp)
	return nil
}

func (m *Memory) CreateMCPInteraction(_ context.Context, i *model.MCPInteraction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i.RequestID == "" {
		i.RequestID = ids.New()
	}
	if i.TimestampUs == 0 {
		i.TimestampUs = ids.NowMicros()
	}
	cp := *i
	m.mcpInteractions = append(m.mcpInteractions, &cp)
	return nil
}

// LLMInteractions returns a snapshot of all recorded LLM interactions, in
// insertion order. Test-only accessor.
func (m *Memory) LLMInteractions() []*model.LLMInteraction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.LLMInteraction, len(m.llmInteractions))
	copy(out, m.llmInteractions)
	return out
}

// MCPInteractions returns a snapshot of all recorded MCP interactions, in
// insertion order. Test-only accessor.
func (m *Memory) MCPInteractions() []*model.MCPInteraction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.MCPInteraction, len(m.mcpInteractions))
	copy(out, m.mcpInteractions)
	return out
}

func (m *Memory) CreateEvent(_ context.Context, channel string, payload []byte) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextEventID++
	ev := &model.Event{ID: m.nextEventID, Channel: channel, Payload: payload, CreatedAt: ids.NowMicros()}
	m.events = append(m.events, ev)
	return ev, nil
}

func (m *Memory) GetEventsAfter(_ context.Context, channel string, afterID int64, limit int) ([]*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Event
	for _, e := range m.events {
		if e.Channel == channel && e.ID > afterID {
			out = append(out, e)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) DeleteEventsOlderThan(_ context.Context, cutoffUs int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*model.Event
	n := 0
	for _, e := range m.events {
		if e.CreatedAt < cutoffUs {
			n++
			continue
		}
		kept = append(kept, e)
	}
	m.events = kept
	return n, nil
}

var _ Store = (*Memory)(nil)
