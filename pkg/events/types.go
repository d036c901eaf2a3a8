// Package events implements the Event Stream Formatter (§4.G): the typed
// {name, data} envelope emitted by the Workflow Execution Engine, an
// in-process per-run fan-out (Publisher), and the raw-result-to-Markdown
// Formatter. Trimmed from the teacher's pkg/events, which persists every
// event to Postgres and rebroadcasts via LISTEN/NOTIFY for cross-pod
// WebSocket delivery — a single `execute` run has no pods to distribute
// across, so this package keeps the channel fan-out and drops
// persistAndNotify/catchup/listener entirely (see DESIGN.md).
package events

// Name is one of the engine's well-known event names. Ordering per run is
// guaranteed per §4.G: execution_start is first, task_execution_complete
// (or task_execution_error) is last, and within a step
// step_executing < *_chunk < step_raw_result < step_formatted_result <
// step_complete|step_error.
type Name string

const (
	NameExecutionStart        Name = "execution_start"
	NameStepExecuting         Name = "step_executing"
	NameStepRawResult         Name = "step_raw_result"
	NameStepFormattedResult   Name = "step_formatted_result"
	NameStepComplete          Name = "step_complete"
	NameStepError             Name = "step_error"
	NameMCPConnectionError    Name = "mcp_connection_error"
	NameWorkflowAdapted       Name = "workflow_adapted"
	NameTaskObservation       Name = "task_observation"
	NameSummaryChunk          Name = "summary_chunk"
	NameStepResultChunk       Name = "step_result_chunk"
	NameTaskExecutionComplete Name = "task_execution_complete"
	NameTaskExecutionError    Name = "task_execution_error"
)

// Event is the caller-facing envelope named in spec §3 and §6.
type Event struct {
	Name Name           `json:"name"`
	Data map[string]any `json:"data"`
}

// stepEvent builds a step-scoped Event, merging in step + agent_name per
// §4.G's "every step event includes at minimum step, agent_name" rule.
func stepEvent(name Name, step int, agentName string, fields map[string]any) Event {
	data := make(map[string]any, len(fields)+2)
	data["step"] = step
	data["agent_name"] = agentName
	for k, v := range fields {
		data[k] = v
	}
	return Event{Name: name, Data: data}
}
