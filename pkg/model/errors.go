package model

import "fmt"

// invariantError signals a violated data-model invariant (spec §3). It is
// deliberately unexported — callers should handle it via Validate()'s
// returned error, not by type-asserting on it.
type invariantError struct{ msg string }

func (e *invariantError) Error() string { return e.msg }

func errInvalid(format string, args ...any) error {
	return &invariantError{msg: fmt.Sprintf(format, args...)}
}
