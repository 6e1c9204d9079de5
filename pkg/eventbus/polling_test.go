package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarsy-project/tarsy-core/pkg/model"
	"github.com/tarsy-project/tarsy-core/pkg/store"
)

func TestPollingBus_PublishThenSubscribeCatchesUpViaGetEventsAfter(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	bus := NewPollingBus(s, 10*time.Millisecond)

	_, err := bus.Publish(ctx, "sessions", map[string]string{"status": "pending"})
	require.NoError(t, err)

	events, err := bus.GetEventsAfter(ctx, "sessions", 0, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestPollingBus_SubscribeReceivesSubsequentPublishes(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	bus := NewPollingBus(s, 10*time.Millisecond)

	var mu sync.Mutex
	var received []*model.Event

	unsubscribe, err := bus.Subscribe(ctx, "sessions", func(ev *model.Event) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, ev)
	})
	require.NoError(t, err)
	defer unsubscribe()

	for i := 0; i < 3; i++ {
		_, err := bus.Publish(ctx, "sessions", map[string]int{"n": i})
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 3
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(received); i++ {
		assert.Greater(t, received[i].ID, received[i-1].ID)
	}
}

func TestPollingBus_UnsubscribeStopsDelivery(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	bus := NewPollingBus(s, 10*time.Millisecond)

	var mu sync.Mutex
	count := 0
	unsubscribe, err := bus.Subscribe(ctx, "sessions", func(*model.Event) {
		mu.Lock()
		defer mu.Unlock()
		count++
	})
	require.NoError(t, err)

	_, err = bus.Publish(ctx, "sessions", map[string]int{"n": 1})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	}, time.Second, 5*time.Millisecond)

	unsubscribe()
	_, err = bus.Publish(ctx, "sessions", map[string]int{"n": 2})
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count, "no events should be delivered after unsubscribe")
}

func TestPollingBus_ChannelsAreIndependent(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	bus := NewPollingBus(s, 10*time.Millisecond)

	var mu sync.Mutex
	var sessionsCount, cancelCount int
	_, err := bus.Subscribe(ctx, model.ChannelSessions, func(*model.Event) {
		mu.Lock()
		defer mu.Unlock()
		sessionsCount++
	})
	require.NoError(t, err)
	_, err = bus.Subscribe(ctx, model.ChannelCancellations, func(*model.Event) {
		mu.Lock()
		defer mu.Unlock()
		cancelCount++
	})
	require.NoError(t, err)

	_, err = bus.Publish(ctx, model.ChannelSessions, map[string]int{"n": 1})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return sessionsCount == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, cancelCount)
}
