package agent

import "testing"

func TestIterationState_RecordSuccess_ClearsFailureState(t *testing.T) {
	s := &IterationState{LastInteractionFailed: true, LastErrorMessage: "boom", ConsecutiveTimeoutFailures: 1}
	s.RecordSuccess()

	if s.LastInteractionFailed {
		t.Error("expected LastInteractionFailed to be cleared")
	}
	if s.LastErrorMessage != "" {
		t.Errorf("expected LastErrorMessage to be cleared, got %q", s.LastErrorMessage)
	}
	if s.ConsecutiveTimeoutFailures != 0 {
		t.Errorf("expected ConsecutiveTimeoutFailures reset to 0, got %d", s.ConsecutiveTimeoutFailures)
	}
}

func TestIterationState_RecordFailure_Timeout_Increments(t *testing.T) {
	s := &IterationState{}
	s.RecordFailure("timed out", true)
	s.RecordFailure("timed out again", true)

	if s.ConsecutiveTimeoutFailures != 2 {
		t.Fatalf("expected 2 consecutive timeouts, got %d", s.ConsecutiveTimeoutFailures)
	}
	if !s.LastInteractionFailed {
		t.Error("expected LastInteractionFailed to be true")
	}
	if s.LastErrorMessage != "timed out again" {
		t.Errorf("unexpected LastErrorMessage: %q", s.LastErrorMessage)
	}
}

func TestIterationState_RecordFailure_NonTimeout_Resets(t *testing.T) {
	s := &IterationState{ConsecutiveTimeoutFailures: 1}
	s.RecordFailure("bad request", false)

	if s.ConsecutiveTimeoutFailures != 0 {
		t.Fatalf("expected non-timeout failure to reset the counter, got %d", s.ConsecutiveTimeoutFailures)
	}
}

func TestIterationState_ShouldAbortOnTimeouts(t *testing.T) {
	s := &IterationState{}
	for i := 0; i < MaxConsecutiveTimeouts-1; i++ {
		s.RecordFailure("timeout", true)
		if s.ShouldAbortOnTimeouts() {
			t.Fatalf("should not abort before reaching %d consecutive timeouts", MaxConsecutiveTimeouts)
		}
	}
	s.RecordFailure("timeout", true)
	if !s.ShouldAbortOnTimeouts() {
		t.Fatalf("expected abort after %d consecutive timeouts", MaxConsecutiveTimeouts)
	}
}
