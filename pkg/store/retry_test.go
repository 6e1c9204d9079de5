package store

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarsy-project/tarsy-core/pkg/model"
)

// flakyOnceStore wraps Memory and fails its first CreateSession call with a
// transient-looking error, succeeding on the second. Used to verify Retrier
// retries exactly once (spec §7).
type flakyOnceStore struct {
	*Memory
	createSessionCalls int
	failFirstN         int
	failErr            error
}

func (f *flakyOnceStore) CreateSession(ctx context.Context, s *model.Session) error {
	f.createSessionCalls++
	if f.createSessionCalls <= f.failFirstN {
		return f.failErr
	}
	return f.Memory.CreateSession(ctx, s)
}

func TestRetrier_RetriesOnceOnTransientError(t *testing.T) {
	inner := &flakyOnceStore{Memory: NewMemory(), failFirstN: 1, failErr: io.ErrUnexpectedEOF}
	r := NewRetrier(inner)

	s := memTestSession("retry-alert")
	err := r.CreateSession(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.createSessionCalls)
}

func TestRetrier_SurfacesStoreUnavailableAfterSecondFailure(t *testing.T) {
	inner := &flakyOnceStore{Memory: NewMemory(), failFirstN: 2, failErr: io.ErrUnexpectedEOF}
	r := NewRetrier(inner)

	err := r.CreateSession(context.Background(), memTestSession("retry-alert-2"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, 2, inner.createSessionCalls)
}

func TestRetrier_DoesNotRetryNonTransientError(t *testing.T) {
	nonTransient := errors.New("validation failed")
	inner := &flakyOnceStore{Memory: NewMemory(), failFirstN: 1, failErr: nonTransient}
	r := NewRetrier(inner)

	err := r.CreateSession(context.Background(), memTestSession("retry-alert-3"))
	require.Error(t, err)
	assert.Equal(t, nonTransient, err)
	assert.Equal(t, 1, inner.createSessionCalls, "non-transient errors must not be retried")
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(io.ErrUnexpectedEOF))
	assert.True(t, isTransient(io.EOF))
	assert.False(t, isTransient(errors.New("plain error")))
	assert.False(t, isTransient(nil))
}
