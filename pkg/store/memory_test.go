package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarsy-project/tarsy-core/pkg/ids"
	"github.com/tarsy-project/tarsy-core/pkg/model"
)

func memTestSession(alertID string) *model.Session {
	return &model.Session{
		AlertID:         alertID,
		AlertType:       "kubernetes",
		AgentType:       "kubernetes",
		ChainID:         "k8s-analysis",
		ChainDefinition: []byte(`{"stages":[]}`),
		Status:          model.SessionPending,
		CreatedAtUs:     ids.NowMicros(),
	}
}

func TestMemory_CreateSession_DuplicateAlertID(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.CreateSession(ctx, memTestSession("a1")))
	err := m.CreateSession(ctx, memTestSession("a1"))
	assert.ErrorIs(t, err, ErrDuplicateAlert)
}

func TestMemory_ClaimNextPendingSession_OldestFirst(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	older := memTestSession("older")
	older.CreatedAtUs = 100
	newer := memTestSession("newer")
	newer.CreatedAtUs = 200
	require.NoError(t, m.CreateSession(ctx, newer))
	require.NoError(t, m.CreateSession(ctx, older))

	claimed, err := m.ClaimNextPendingSession(ctx, "pod-1")
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, "older", claimed.AlertID)
	assert.Equal(t, model.SessionInProgress, claimed.Status)
	assert.Equal(t, "pod-1", claimed.PodID)
}

func TestMemory_ClaimNextPendingSession_EmptyQueueReturnsNil(t *testing.T) {
	m := NewMemory()
	claimed, err := m.ClaimNextPendingSession(context.Background(), "pod-1")
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

// TestMemory_ClaimNextPendingSession_NoDoubleClaim exercises the same
// atomicity property as the Postgres SKIP LOCKED test, at the Memory
// fake's coarser mutex granularity: N concurrent claimers must never
// observe the same session twice.
func TestMemory_ClaimNextPendingSession_NoDoubleClaim(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	const numSessions = 50
	for i := 0; i < numSessions; i++ {
		s := memTestSession(fmt.Sprintf("alert-%d", i))
		s.CreatedAtUs = int64(i)
		require.NoError(t, m.CreateSession(ctx, s))
	}

	seen := sync.Map{}
	var wg sync.WaitGroup
	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func(podID string) {
			defer wg.Done()
			for {
				s, err := m.ClaimNextPendingSession(ctx, podID)
				require.NoError(t, err)
				if s == nil {
					return
				}
				if _, dup := seen.LoadOrStore(s.SessionID, podID); dup {
					t.Errorf("session %s claimed twice", s.SessionID)
				}
			}
		}(fmt.Sprintf("pod-%d", w))
	}
	wg.Wait()

	count := 0
	seen.Range(func(_, _ any) bool { count++; return true })
	assert.Equal(t, numSessions, count)
}

func TestMemory_UpdateSessionToCanceling(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	s := memTestSession("alert-cancel")
	s.Status = model.SessionInProgress
	require.NoError(t, m.CreateSession(ctx, s))

	changed, newStatus, err := m.UpdateSessionToCanceling(ctx, s.SessionID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, model.SessionCanceling, newStatus)

	done := int64(1)
	terminal := memTestSession("alert-done")
	terminal.Status = model.SessionCompleted
	terminal.CompletedAtUs = &done
	require.NoError(t, m.CreateSession(ctx, terminal))

	changed, newStatus, err = m.UpdateSessionToCanceling(ctx, terminal.SessionID)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, model.SessionCompleted, newStatus)
}

func TestMemory_StageExecutions_OrderedByIndex(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	s := memTestSession("alert-stages")
	require.NoError(t, m.CreateSession(ctx, s))

	for stageIdx := 2; stageIdx >= 0; stageIdx-- {
		e := &model.StageExecution{
			SessionID:  s.SessionID,
			StageID:    fmt.Sprintf("stage-%d", stageIdx),
			StageIndex: stageIdx,
			StageName:  "Stage",
			Agent:      "KubernetesAgent",
			Status:     model.StagePending,
		}
		require.NoError(t, m.CreateStageExecution(ctx, e))
	}

	got, err := m.GetStageExecutionsForSession(ctx, s.SessionID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, e := range got {
		assert.Equal(t, i, e.StageIndex)
	}
}

func TestMemory_Events_AscendingAndCatchUp(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var lastID int64
	for i := 0; i < 5; i++ {
		ev, err := m.CreateEvent(ctx, model.ChannelSessions, []byte(fmt.Sprintf(`{"n":%d}`, i)))
		require.NoError(t, err)
		assert.Greater(t, ev.ID, lastID)
		lastID = ev.ID
	}

	all, err := m.GetEventsAfter(ctx, model.ChannelSessions, 0, 100)
	require.NoError(t, err)
	require.Len(t, all, 5)

	rest, err := m.GetEventsAfter(ctx, model.ChannelSessions, all[2].ID, 100)
	require.NoError(t, err)
	assert.Len(t, rest, 2)
}

func TestMemory_DeleteEventsOlderThan(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.CreateEvent(ctx, model.ChannelSessions, []byte(`{}`))
	require.NoError(t, err)

	deleted, err := m.DeleteEventsOlderThan(ctx, ids.NowMicros()+1_000_000)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	remaining, err := m.GetEventsAfter(ctx, model.ChannelSessions, 0, 100)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}
