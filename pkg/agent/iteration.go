package agent

// MaxConsecutiveTimeouts aborts the iteration loop outright rather than
// burning the remaining budget retrying a provider that is clearly down.
const MaxConsecutiveTimeouts = 2

// IterationState tracks one controller run's progress across iterations:
// which iteration it's on, whether the last LLM/tool call failed, and how
// many consecutive timeouts it has seen.
type IterationState struct {
	CurrentIteration           int
	MaxIterations              int
	LastInteractionFailed      bool
	LastErrorMessage           string
	ConsecutiveTimeoutFailures int
}

// ShouldAbortOnTimeouts reports whether the loop has seen enough
// consecutive timeouts to give up rather than continue burning iterations.
func (s *IterationState) ShouldAbortOnTimeouts() bool {
	return s.ConsecutiveTimeoutFailures >= MaxConsecutiveTimeouts
}

// RecordSuccess clears the failure/timeout tracking after a successful
// iteration.
func (s *IterationState) RecordSuccess() {
	s.LastInteractionFailed = false
	s.LastErrorMessage = ""
	s.ConsecutiveTimeoutFailures = 0
}

// RecordFailure records a failed iteration; isTimeout increments the
// consecutive-timeout counter, any other failure resets it (only
// consecutive timeouts trip the abort threshold).
func (s *IterationState) RecordFailure(errMsg string, isTimeout bool) {
	s.LastInteractionFailed = true
	s.LastErrorMessage = errMsg
	if isTimeout {
		s.ConsecutiveTimeoutFailures++
	} else {
		s.ConsecutiveTimeoutFailures = 0
	}
}
