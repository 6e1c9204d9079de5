package store

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tarsy-project/tarsy-core/pkg/model"
)

// isTransient classifies a Postgres/pgx error as retryable: connection
// failures and serialization failures (SQLSTATE class 08 and 40001), the
// two cases spec §7 names explicitly.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "40001": // serialization_failure
			return true
		case strings.HasPrefix(pgErr.Code, "08"): // connection_exception class
			return true
		}
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	return false
}

func withRetryOnce(ctx context.Context, op string, fn func() error) error {
	err := fn()
	if err == nil || !isTransient(err) {
		return err
	}
	select {
	case <-ctx.Done():
		return wrapUnavailable(op, err)
	case <-time.After(10 * time.Millisecond):
	}
	err2 := fn()
	if err2 == nil {
		return nil
	}
	return wrapUnavailable(op, err2)
}

func (r *Retrier) CreateSession(ctx context.Context, s *model.Session) error {
	return withRetryOnce(ctx, "CreateSession", func() error { return r.Store.CreateSession(ctx, s) })
}

func (r *Retrier) UpdateSession(ctx context.Context, s *model.Session) error {
	return withRetryOnce(ctx, "UpdateSession", func() error { return r.Store.UpdateSession(ctx, s) })
}

func (r *Retrier) CreateStageExecution(ctx context.Context, e *model.StageExecution) error {
	return withRetryOnce(ctx, "CreateStageExecution", func() error { return r.Store.CreateStageExecution(ctx, e) })
}

func (r *Retrier) UpdateStageExecution(ctx context.Context, e *model.StageExecution) error {
	return withRetryOnce(ctx, "UpdateStageExecution", func() error { return r.Store.UpdateStageExecution(ctx, e) })
}

func (r *Retrier) CreateLLMInteraction(ctx context.Context, i *model.LLMInteraction) error {
	return withRetryOnce(ctx, "CreateLLMInteraction", func() error { return r.Store.CreateLLMInteraction(ctx, i) })
}

func (r *Retrier) CreateMCPInteraction(ctx context.Context, i *model.MCPInteraction) error {
	return withRetryOnce(ctx, "CreateMCPInteraction", func() error { return r.Store.CreateMCPInteraction(ctx, i) })
}

func (r *Retrier) CreateEvent(ctx context.Context, channel string, payload []byte) (*model.Event, error) {
	var ev *model.Event
	err := withRetryOnce(ctx, "CreateEvent", func() error {
		e, err := r.Store.CreateEvent(ctx, channel, payload)
		if err == nil {
			ev = e
		}
		return err
	})
	return ev, err
}
