package ingress

import "errors"

// ErrQueueFull is returned by SubmitAlert when the pending-session queue is
// at config.QueueConfig.MaxQueueSize (spec §4.13 admission control, scenario
// S2: 429 queue full).
var ErrQueueFull = errors.New("ingress: queue full")

// ValidationError signals a rejected alert submission (spec §4.13: missing
// data, unresolvable alert_type). The Field names which input was bad so
// callers can shape a 400 response the way the teacher's validation errors
// do.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Message }

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
