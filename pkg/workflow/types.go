// Package workflow defines the data model shared by the Planner, Observer,
// Complexity Analyzer, and Workflow Execution Engine — the types named in
// spec §3, kept in their own package so none of those components import
// the engine itself.
package workflow

import "time"

// StepStatus is a WorkflowStep's lifecycle state.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepExecuting StepStatus = "executing"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// LLMStepName is the sentinel mcp_name denoting an LLM-only step rather
// than an MCP tool call.
const LLMStepName = "llm"

// Step is one element of a Plan. Index is 1-based and dense within the
// Plan at all times.
type Step struct {
	Index      int
	MCPName    string
	Action     string
	InputArgs  map[string]any
	Reasoning  string
	Status     StepStatus
	Attempts   int
	MaxRetries int
	Result     string
	Error      string
}

// ComponentType categorizes a TaskComponent, used to match it against the
// step that advances it.
type ComponentType string

const (
	ComponentDataCollection ComponentType = "data_collection"
	ComponentDataProcessing ComponentType = "data_processing"
	ComponentActionExec     ComponentType = "action_execution"
	ComponentAnalysis       ComponentType = "analysis"
	ComponentOutput         ComponentType = "output"
)

// Component is one named, typed sub-goal derived from the original query
// before the loop starts.
type Component struct {
	ID                   string
	Type                 ComponentType
	Description          string
	Target               string // e.g. the specific user/account this component collects for
	IsCompleted          bool
	CompletedStepIndices []int
	Dependencies         []string
	RequiredData         []string
	ProducedData         []string
}

// FailureStrategy is the engine's response to a step that exhausted its
// retries.
type FailureStrategy string

const (
	StrategyRetry              FailureStrategy = "retry"
	StrategyAlternative        FailureStrategy = "alternative"
	StrategySkip               FailureStrategy = "skip"
	StrategyManualIntervention FailureStrategy = "manual_intervention"
)

// FailureRecord tracks one distinct tool's failure history across a run.
type FailureRecord struct {
	StepIndex     int
	Tool          string
	Error         string
	AttemptCount  int
	LastAttemptAt time.Time
	Strategy      FailureStrategy
	MaxRetries    int
}

// HistoryEntry is one append-only execution-history record.
type HistoryEntry struct {
	StepIndex     int
	Tool          string
	Success       bool
	ResultSummary string
	Timestamp     time.Time
}

// ServiceInfo is the planner/resolver-facing view of one available MCP
// service: its name, description, and declared tool names.
type ServiceInfo struct {
	Name        string
	Description string
	ToolNames   []string
}
