package worker

import (
	"strings"

	"judge-core/internal/language"
	"judge-core/internal/sandbox"
	"judge-core/internal/submission"
)

// Classify translates the execute-phase IsolateResult into a verdict,
// exactly per the state machine's classification rules. It is a pure
// function so the table below and the scenarios in the testable
// properties can be exercised without a real sandbox.
func Classify(result sandbox.IsolateResult, limits language.Limits) submission.Status {
	verdict := classifyBase(result)

	// Resource classification wins over a generic runtime verdict: an
	// over-limit run is always reported as the limit it hit, even if the
	// sandbox also reported a signal or nonzero exit. It never overrides
	// INTERNAL_ERROR, since an XX run's resource fields may be garbage or
	// zero from a partially-written meta report and would otherwise
	// mislabel a genuine sandbox-internal fault.
	if verdict == submission.StatusInternalError {
		return verdict
	}
	if result.Memory >= limits.MemLimit*1024 {
		return submission.StatusMemoryLimitExceeded
	}
	if result.Time >= limits.TimeLimit {
		return submission.StatusTimeLimitExceeded
	}
	return verdict
}

func classifyBase(result sandbox.IsolateResult) submission.Status {
	switch result.Status {
	case sandbox.StatusTimeout:
		return submission.StatusTimeLimitExceeded
	case sandbox.StatusSignal:
		if mentionsOOM(result.Message) {
			return submission.StatusMemoryLimitExceeded
		}
		// Ambiguous SIGKILL with no OOM evidence in the telemetry
		// defaults to RUNTIME_ERROR, not MEMORY_LIMIT_EXCEEDED.
		return submission.StatusRuntimeError
	case sandbox.StatusRuntime:
		return submission.StatusRuntimeError
	case sandbox.StatusInternal:
		return submission.StatusInternalError
	default: // "" (OK)
		if result.ExitCode != 0 {
			return submission.StatusRuntimeError
		}
		return submission.StatusAccepted
	}
}

func mentionsOOM(message string) bool {
	m := strings.ToLower(message)
	return strings.Contains(m, "cg-oom") || strings.Contains(m, "memory")
}
