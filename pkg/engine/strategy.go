package engine

import (
	"errors"
	"strings"

	"github.com/flowforge/orchestrator/pkg/auth"
	"github.com/flowforge/orchestrator/pkg/workflow"
)

// errorClass is the §7 error taxonomy, used only to pick a FailureStrategy —
// it is not surfaced to callers directly (the Event error field carries the
// Go error's message).
type errorClass int

const (
	classUnknown errorClass = iota
	classConnection
	classProtocol
	classToolReported
	classTimeout
	classAuth
)

func classifyError(err error) errorClass {
	if err == nil {
		return classUnknown
	}

	var missingAuth *auth.ErrMissingAuth
	if errors.As(err, &missingAuth) {
		return classAuth
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return classTimeout
	case strings.Contains(msg, "not connected"), strings.Contains(msg, "connection closed"),
		strings.Contains(msg, "broken pipe"), strings.Contains(msg, "eof"):
		return classConnection
	case strings.Contains(msg, "permission"), strings.Contains(msg, "unauthorized"),
		strings.Contains(msg, "forbidden"):
		return classAuth
	case strings.Contains(msg, "parse"), strings.Contains(msg, "invalid params"),
		strings.Contains(msg, "unknown tool"), strings.Contains(msg, "not found"):
		return classProtocol
	case strings.Contains(msg, "tool returned an error"), strings.Contains(msg, "tool execution failed"):
		return classToolReported
	default:
		return classUnknown
	}
}

// selectStrategy implements §7's strategy selection table, given the
// failing step's error, the accumulated attempt count for that tool across
// the whole run (FailureRecord.AttemptCount, already including this
// attempt), and whether this is the step's first failure this run.
func selectStrategy(class errorClass, attemptCount int, firstFailureForTool bool) workflow.FailureStrategy {
	switch class {
	case classAuth:
		return workflow.StrategyManualIntervention
	case classConnection:
		return workflow.StrategySkip
	case classTimeout:
		if attemptCount >= 2 {
			return workflow.StrategySkip
		}
		return workflow.StrategyRetry
	case classProtocol:
		return workflow.StrategyAlternative
	case classToolReported:
		if firstFailureForTool {
			return workflow.StrategyRetry
		}
		return workflow.StrategyAlternative
	default:
		if attemptCount >= 5 {
			return workflow.StrategySkip
		}
		if attemptCount >= 2 {
			return workflow.StrategyAlternative
		}
		return workflow.StrategyRetry
	}
}
