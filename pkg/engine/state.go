package engine

import (
	"strconv"
	"time"

	"github.com/flowforge/orchestrator/pkg/complexity"
	"github.com/flowforge/orchestrator/pkg/workflow"
)

// State is the engine-local ExecutionState of one run (§3), mutated
// exclusively by Engine.Execute and never observed outside the core until
// it is projected into Event payloads.
type State struct {
	Query    string
	Workflow []workflow.Step

	// next is the index (0-based, into Workflow) of the next pending step.
	next int

	History []workflow.HistoryEntry

	// DataStore holds step_<n>_result and last_result entries, per §3.
	DataStore map[string]string

	CompletedCount int
	FailedCount    int

	// FailureRecords is keyed by tool name — "one record per distinct tool
	// seen to fail", per §3.
	FailureRecords map[string]*workflow.FailureRecord

	Breakdown []workflow.Component

	ComplexityClass complexity.Class

	Iteration    int
	MaxIterations int

	// terminate, once set, ends the main loop after the current step.
	terminate       bool
	terminateReason string

	Errors []string
}

func newState(query string, steps []workflow.Step, breakdown []workflow.Component, class complexity.Class, maxIterations int) *State {
	return &State{
		Query:           query,
		Workflow:        steps,
		DataStore:       make(map[string]string),
		FailureRecords:  make(map[string]*workflow.FailureRecord),
		Breakdown:       breakdown,
		ComplexityClass: class,
		MaxIterations:   maxIterations,
	}
}

// currentStep returns the next pending step and whether one remains.
func (s *State) currentStep() (*workflow.Step, bool) {
	if s.next >= len(s.Workflow) {
		return nil, false
	}
	return &s.Workflow[s.next], true
}

// advance moves the step cursor forward by one.
func (s *State) advance() {
	s.next++
}

// recordHistory appends one append-only history entry.
func (s *State) recordHistory(step int, tool string, success bool, summary string, now time.Time) {
	s.History = append(s.History, workflow.HistoryEntry{
		StepIndex:     step,
		Tool:          tool,
		Success:       success,
		ResultSummary: summary,
		Timestamp:     now,
	})
}

// setResult stores a step's raw result under both its own key and last_result.
func (s *State) setResult(step int, result string) {
	key := stepResultKey(step)
	s.DataStore[key] = result
	s.DataStore["last_result"] = result
}

func stepResultKey(step int) string {
	return "step_" + strconv.Itoa(step) + "_result"
}

// dataStoreKeys returns the data store's keys, for the Observer/Planner
// prompts. Order is not significant to callers.
func (s *State) dataStoreKeys() []string {
	keys := make([]string, 0, len(s.DataStore))
	for k := range s.DataStore {
		keys = append(keys, k)
	}
	return keys
}

// replaceTail replaces Workflow[current+1:] with adapted, renumbered
// densely starting at current+1 — the Open Question §9 adopts "replace,
// not append" for an adapted workflow tail.
func (s *State) replaceTail(adapted []workflow.Step) {
	kept := s.Workflow[:s.next+1]
	renumbered := make([]workflow.Step, len(adapted))
	for i, step := range adapted {
		step.Index = len(kept) + i + 1
		step.Status = workflow.StepPending
		if step.MaxRetries == 0 {
			step.MaxRetries = 2
		}
		renumbered[i] = step
	}
	s.Workflow = append(kept, renumbered...)
}

// pendingCount is len(workflow) - completed - failed, the invariant §8
// checks: completed_count + failed_count + pending_count == len(workflow).
func (s *State) pendingCount() int {
	return len(s.Workflow) - s.CompletedCount - s.FailedCount
}
