package chain

import (
	"fmt"
	"strings"

	"github.com/tarsy-project/tarsy-core/pkg/config"
	"github.com/tarsy-project/tarsy-core/pkg/model"
)

// childOutcome is one parallel child's terminal state, enough to drive both
// the fixed aggregation rule and aggregateError's diagnostic message.
type childOutcome struct {
	agentName string
	status    model.StageStatus
	errMsg    string
}

// aggregateStatus derives a parallel stage's (parent StageExecution's)
// status from its children's, per the fixed rule in spec §4.8: COMPLETED
// iff every child COMPLETED; CANCELLED/TIMED_OUT dominate FAILED; FAILED if
// any child FAILED and none cancelled/timed out; PARTIAL if the children
// are a genuine mix of COMPLETED and error statuses; PAUSED if any child
// PAUSED. Unlike the teacher (which has no PARTIAL status at all), this
// rule is fixed — config.SuccessPolicy governs something different: see
// continuesChain.
func aggregateStatus(children []childOutcome) model.StageStatus {
	var completed, failed, cancelled, timedOut, paused int
	for _, c := range children {
		switch c.status {
		case model.StageCompleted:
			completed++
		case model.StageCancelled:
			cancelled++
		case model.StageTimedOut:
			timedOut++
		case model.StagePaused:
			paused++
		default:
			failed++
		}
	}

	switch {
	case paused > 0:
		return model.StagePaused
	case completed == len(children):
		return model.StageCompleted
	case cancelled > 0:
		return model.StageCancelled
	case timedOut > 0:
		return model.StageTimedOut
	case completed == 0:
		return model.StageFailed
	default:
		return model.StagePartial
	}
}

// continuesChain decides whether a PARTIAL-aggregated parallel stage lets
// the chain proceed to its next stage, per the stage's resolved
// config.SuccessPolicy (spec §4.11's success_policy field): ALL requires
// every agent to have completed for the stage to count as a success (so a
// PARTIAL never continues); ANY lets the chain continue as long as at
// least one agent completed. A non-PARTIAL status follows the ordinary
// completed/stop-on-failure rule and never reaches this function.
func continuesChain(policy config.SuccessPolicy, children []childOutcome) bool {
	if policy == config.SuccessPolicyAll {
		return false
	}
	for _, c := range children {
		if c.status == model.StageCompleted {
			return true
		}
	}
	return false
}

// resolveSuccessPolicy returns the stage's configured policy, falling back
// to the chain-wide default (spec §4.11 precedence: stage > defaults),
// then ANY if neither is set.
func resolveSuccessPolicy(stage config.StageConfig, defaults *config.Defaults) config.SuccessPolicy {
	if stage.SuccessPolicy.IsValid() {
		return stage.SuccessPolicy
	}
	if defaults != nil && defaults.SuccessPolicy.IsValid() {
		return defaults.SuccessPolicy
	}
	return config.SuccessPolicyAny
}

// aggregateError builds a descriptive multi-line message listing every
// failed child, for the parent StageExecution's error_message.
func aggregateError(children []childOutcome) string {
	var b strings.Builder
	b.WriteString("one or more parallel agents did not complete:\n")
	for _, c := range children {
		if c.status == model.StageCompleted {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s (%s)\n", c.agentName, c.status, c.errMsg)
	}
	return strings.TrimRight(b.String(), "\n")
}
