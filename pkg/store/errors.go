package store

import (
	"errors"
	"fmt"
)

// Sentinel error kinds surfaced to callers (spec §7 "Error kinds surfaced
// to the core"). Store operations wrap these with fmt.Errorf("...: %w", ...)
// so errors.Is still matches.
var (
	// ErrDuplicateAlert is returned by CreateSession when alert_id already
	// exists (unique constraint).
	ErrDuplicateAlert = errors.New("duplicate alert_id")

	// ErrNotFound is returned when a referenced entity does not exist, or a
	// foreign-key violation surfaces one (spec §4.2 error semantics).
	ErrNotFound = errors.New("not found")

	// ErrStoreUnavailable is returned after a transient error (connection,
	// serialization failure) has already been retried once and is still
	// failing (spec §7).
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrConcurrentUpdate is returned by UpdateSession when the row changed
	// between load and update (optimistic concurrency, spec §4.2).
	ErrConcurrentUpdate = errors.New("concurrent update conflict")
)

func wrapUnavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
