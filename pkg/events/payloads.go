package events

// The constructors below build the per-event Data payloads the engine
// emits, keeping field names stable for external consumers per §6
// ("names and required fields are stable; unknown fields must be ignored").

// ExecutionStart is emitted once, first, per run.
func ExecutionStart(taskID, engineIdentity string, complexityClass string, stepBudget int) Event {
	return Event{Name: NameExecutionStart, Data: map[string]any{
		"task_id":          taskID,
		"engine":           engineIdentity,
		"complexity_class": complexityClass,
		"step_budget":      stepBudget,
	}}
}

// StepExecuting precedes any chunk for that step.
func StepExecuting(step int, agentName, toolName string, args map[string]any, reasoning, expectedOutput string) Event {
	return stepEvent(NameStepExecuting, step, agentName, map[string]any{
		"tool_name":       toolName,
		"args":            args,
		"reasoning":       reasoning,
		"expected_output": expectedOutput,
	})
}

// StepResultChunk is one streamed Markdown chunk for an intermediate step.
func StepResultChunk(step int, agentName, delta string) Event {
	return stepEvent(NameStepResultChunk, step, agentName, map[string]any{"delta": delta})
}

// SummaryChunk is one streamed Markdown chunk for the final summary, or —
// per the teacher's streaming-formatter convention — for any step the
// caller chooses to narrate live rather than via step_result_chunk.
func SummaryChunk(step int, agentName, delta string) Event {
	return stepEvent(NameSummaryChunk, step, agentName, map[string]any{"delta": delta})
}

// StepRawResult carries the raw tool output, emitted right after a
// successful call.
func StepRawResult(step int, agentName, toolName, result string) Event {
	return stepEvent(NameStepRawResult, step, agentName, map[string]any{
		"tool_name": toolName,
		"result":    result,
	})
}

// StepFormattedResult carries the Markdown produced by the Formatter.
func StepFormattedResult(step int, agentName, formattedResult string) Event {
	return stepEvent(NameStepFormattedResult, step, agentName, map[string]any{
		"formatted_result": formattedResult,
	})
}

// StepComplete closes out a successful step.
func StepComplete(step int, agentName string, progress string) Event {
	return stepEvent(NameStepComplete, step, agentName, map[string]any{"progress": progress})
}

// StepError closes out a failed step.
func StepError(step int, agentName, errMsg string, toolDetails map[string]any) Event {
	return stepEvent(NameStepError, step, agentName, map[string]any{
		"error":        errMsg,
		"tool_details": toolDetails,
	})
}

// MCPConnectionError signals an auth or connection failure. missing is the
// set of missing credential keys when errType is "missing_auth".
func MCPConnectionError(step int, agentName, errType, service string, missing []string) Event {
	return stepEvent(NameMCPConnectionError, step, agentName, map[string]any{
		"type":    errType,
		"service": service,
		"missing": missing,
	})
}

// WorkflowAdapted announces that the Observer requested a replan and the
// tail of the workflow was replaced.
func WorkflowAdapted(fromStep int, reason string, newStepCount int) Event {
	return Event{Name: NameWorkflowAdapted, Data: map[string]any{
		"from_step":      fromStep,
		"reason":         reason,
		"new_step_count": newStepCount,
	}}
}

// TaskObservation surfaces an Observer verdict for the caller's timeline.
func TaskObservation(step int, completionAnalysis string, confidence float64) Event {
	return stepEvent(NameTaskObservation, step, "observer", map[string]any{
		"completion_analysis": completionAnalysis,
		"confidence_score":    confidence,
	})
}

// TaskExecutionComplete is always last on the success/normal-exit path.
func TaskExecutionComplete(success bool, completed, failed int) Event {
	return Event{Name: NameTaskExecutionComplete, Data: map[string]any{
		"success":   success,
		"completed": completed,
		"failed":    failed,
	}}
}

// TaskExecutionError is always last on the cancelled/setup-failure path.
func TaskExecutionError(reason string) Event {
	return Event{Name: NameTaskExecutionError, Data: map[string]any{"reason": reason}}
}
