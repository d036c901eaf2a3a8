// Package engine implements the Workflow Execution Engine (§4.F): the
// plan -> act -> observe loop that drives a single `execute` invocation
// from the initial (or preloaded) workflow through to a terminal result,
// streaming events as it goes. Grounded on the teacher's
// pkg/agent/controller iteration loop, generalized to this spec's data
// model (ExecutionState, TaskComponent, FailureRecord) and its explicit
// Open-Question resolutions (§9): the observer runs after every step, an
// adapted tail replaces the original tail's indices, and an llm-only step
// counts toward the same retry cap as an MCP step.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flowforge/orchestrator/pkg/auth"
	"github.com/flowforge/orchestrator/pkg/complexity"
	"github.com/flowforge/orchestrator/pkg/config"
	"github.com/flowforge/orchestrator/pkg/events"
	"github.com/flowforge/orchestrator/pkg/llmclient"
	"github.com/flowforge/orchestrator/pkg/mcp"
	"github.com/flowforge/orchestrator/pkg/masking"
	"github.com/flowforge/orchestrator/pkg/metrics"
	"github.com/flowforge/orchestrator/pkg/observer"
	"github.com/flowforge/orchestrator/pkg/planner"
	"github.com/flowforge/orchestrator/pkg/resolver"
	"github.com/flowforge/orchestrator/pkg/storage"
	"github.com/flowforge/orchestrator/pkg/workflow"
)

// engineAgentName identifies this engine in the agent_name field every
// step event carries, per §4.G.
const engineAgentName = "orchestrator-engine"

// Services is the explicit dependency bundle the Engine is built from, per
// §9's design note ("pass an explicit EngineServices{manager, auth_store,
// llm, registry, sink, clock} struct through the engine; process-wide
// state lives in one place and is injected, not imported").
type Services struct {
	Manager    *mcp.Manager
	Registry   *config.ServiceRegistry
	Planner    *planner.Planner
	Observer   *observer.Observer
	Resolver   *resolver.Resolver
	Complexity *complexity.Classifier
	Formatter  *events.Formatter
	Masking    *masking.Service // optional
	Sink       storage.Sink     // optional; nil disables persistence

	// LLM backs llm-only steps (mcp_name == "llm") directly. Required only
	// if a workflow may contain such a step.
	LLM       llmclient.Client
	LLMConfig *config.LLMProviderConfig

	// Metrics records task/step/iteration counts. nil disables instrumentation.
	Metrics *metrics.Registry

	// Clock lets tests substitute a deterministic time source. Defaults to
	// time.Now.
	Clock func() time.Time
}

// Engine drives one `execute` invocation at a time per call to Execute;
// concurrent runs each own a private *State and share only Services
// (which is itself safe for concurrent use — see §5).
type Engine struct {
	svc     Services
	defaults *config.Defaults
	budgets  *config.ComplexityBudgets
}

// New creates an Engine. defaults/budgets may be nil, in which case
// config.DefaultEngineDefaults/DefaultComplexityBudgets are used.
func New(svc Services, defaults *config.Defaults, budgets *config.ComplexityBudgets) *Engine {
	if defaults == nil {
		defaults = config.DefaultEngineDefaults()
	}
	if budgets == nil {
		budgets = config.DefaultComplexityBudgets()
	}
	if svc.Clock == nil {
		svc.Clock = time.Now
	}
	return &Engine{svc: svc, defaults: defaults, budgets: budgets}
}

// Request is the engine API's execute(task_id, query, options) input,
// per §6.
type Request struct {
	TaskID            string
	UserID            string
	Query             string
	ConversationID    string
	PreloadedWorkflow []workflow.Step
	MaxIterations     int // caller cap; 0 = use Defaults.MaxIterationsCap
}

func (e *Engine) now() time.Time { return e.svc.Clock() }

// Execute runs the plan -> act -> observe loop for req, publishing every
// Event to pub in order (§4.G), and blocks until the run reaches a
// terminal state. It returns the overall success flag per §4.F's success
// definition: completed >= 1 AND the terminate reason is "" or
// "observer-completed".
//
// Execute does not close pub — the caller owns the Publisher's lifecycle
// (so that late subscribers, e.g. an SSE handler attaching mid-run, keep
// working) and should call pub.Close() once Execute returns.
func (e *Engine) Execute(ctx context.Context, req Request) bool {
	pub := req.publisherOrDefault()
	return e.run(ctx, req, pub)
}

// ExecuteWithPublisher is Execute but lets the caller supply its own
// Publisher so it can Subscribe before the run starts (the common case:
// callers need the execution_start event too).
func (e *Engine) ExecuteWithPublisher(ctx context.Context, req Request, pub *events.Publisher) bool {
	return e.run(ctx, req, pub)
}

// publisherOrDefault exists only so Execute (no explicit Publisher) still
// has somewhere to send events; nothing subscribes to it.
func (req Request) publisherOrDefault() *events.Publisher {
	return events.NewPublisher()
}

func (e *Engine) run(ctx context.Context, req Request, pub *events.Publisher) bool {
	start := e.now()
	if e.svc.Sink != nil {
		_ = e.svc.Sink.UpdateTaskStatus(ctx, req.TaskID, "in_progress")
	}

	workflowLen := len(req.PreloadedWorkflow)
	complexityResult := e.svc.Complexity.Classify(ctx, req.Query, workflowLen)
	recommended := e.recommendedSteps(complexityResult)

	maxIterations := recommended
	if req.MaxIterations > 0 && req.MaxIterations < maxIterations {
		maxIterations = req.MaxIterations
	}
	if cap := e.defaults.MaxIterationsCap; cap > 0 && cap < maxIterations {
		maxIterations = cap
	}
	if maxIterations < 1 {
		maxIterations = 1
	}

	startEvt := events.ExecutionStart(req.TaskID, engineAgentName, string(complexityResult.Class), maxIterations)
	startEvt.Data["timestamp"] = e.now().Format(time.RFC3339)
	pub.Publish(startEvt)

	steps, breakdown := e.buildWorkflow(ctx, req)
	state := newState(req.Query, steps, breakdown, complexityResult.Class, maxIterations)

	if err := e.connectServices(ctx, req.UserID, state.Workflow); err != nil {
		e.emitConnectionFailure(pub, err)
		if e.svc.Sink != nil {
			_ = e.svc.Sink.UpdateTaskStatus(ctx, req.TaskID, "failed")
		}
		return false
	}

	for {
		if ctx.Err() != nil {
			pub.Publish(events.TaskExecutionError("cancelled"))
			if e.svc.Sink != nil {
				_ = e.svc.Sink.UpdateTaskStatus(ctx, req.TaskID, "failed")
			}
			return false
		}

		step, ok := state.currentStep()
		if !ok || state.Iteration >= state.MaxIterations || state.terminate {
			break
		}

		e.runStep(ctx, state, step, req, pub)
		state.advance()
		state.Iteration++
	}

	success := state.CompletedCount >= 1 &&
		(state.terminateReason == "" || state.terminateReason == "observer-completed")

	e.svc.Metrics.RecordTask(success, e.now().Sub(start).Seconds())
	e.svc.Metrics.RecordIterations(state.Iteration)

	e.emitFinalSummary(ctx, state, req, pub, success)

	if e.svc.Sink != nil {
		status := "failed"
		if success {
			status = "completed"
		}
		_ = e.svc.Sink.UpdateTaskStatus(ctx, req.TaskID, status)
	}

	return success
}

func (e *Engine) recommendedSteps(result complexity.Result) int {
	if e.budgets == nil {
		return result.RecommendedStep
	}
	switch result.Class {
	case complexity.ClassSimpleQuery:
		if e.budgets.SimpleQuerySteps > 0 {
			return e.budgets.SimpleQuerySteps
		}
	case complexity.ClassMediumTask:
		if e.budgets.MediumTaskSteps > 0 {
			return e.budgets.MediumTaskSteps
		}
	case complexity.ClassComplexWorkflow:
		if e.budgets.ComplexWorkflowSteps > 0 {
			return e.budgets.ComplexWorkflowSteps
		}
	}
	return result.RecommendedStep
}

// buildWorkflow implements §4.F preparation step 3: use the preloaded
// workflow with a synthesized minimal breakdown, or derive a breakdown and
// call the planner for an initial workflow.
func (e *Engine) buildWorkflow(ctx context.Context, req Request) ([]workflow.Step, []workflow.Component) {
	if len(req.PreloadedWorkflow) > 0 {
		steps := make([]workflow.Step, len(req.PreloadedWorkflow))
		copy(steps, req.PreloadedWorkflow)
		for i := range steps {
			if steps[i].MaxRetries == 0 {
				steps[i].MaxRetries = e.defaults.MaxRetries
			}
			steps[i].Status = workflow.StepPending
		}
		breakdown := []workflow.Component{{
			ID:          "main",
			Type:        workflow.ComponentOutput,
			Description: req.Query,
		}}
		return steps, breakdown
	}

	breakdown := e.svc.Planner.Breakdown(ctx, req.Query)
	services := e.buildServiceInfos(ctx, req.UserID)

	steps, err := e.svc.Planner.Plan(ctx, planner.Input{
		Query:          req.Query,
		Breakdown:      breakdown,
		Services:       services,
		CurrentStepIdx: 0,
	})
	if err != nil || len(steps) == 0 {
		steps = []workflow.Step{{
			Index:      1,
			MCPName:    workflow.LLMStepName,
			Action:     "fallback",
			InputArgs:  map[string]any{"query": req.Query},
			Status:     workflow.StepPending,
			MaxRetries: e.defaults.MaxRetries,
		}}
	}
	for i := range steps {
		if steps[i].MaxRetries == 0 {
			steps[i].MaxRetries = e.defaults.MaxRetries
		}
	}
	return steps, breakdown
}

// buildServiceInfos lists every registered MCP service's declared tools,
// for the Planner's prompt. Services that fail to connect (e.g. missing
// per-user credentials) are listed with no tools rather than omitted, so
// the planner still knows the service exists.
func (e *Engine) buildServiceInfos(ctx context.Context, userID string) []workflow.ServiceInfo {
	all := e.svc.Registry.GetAll()
	infos := make([]workflow.ServiceInfo, 0, len(all))
	for name, cfg := range all {
		info := workflow.ServiceInfo{Name: name, Description: cfg.Instructions}
		tools, err := e.svc.Manager.ListToolDescriptors(ctx, userID, name)
		if err == nil {
			for _, t := range tools {
				info.ToolNames = append(info.ToolNames, t.Name)
			}
		}
		infos = append(infos, info)
	}
	return infos
}

// connectServices implements §4.F preparation step 4: ensure a connection
// for every distinct non-"llm" mcp_name the workflow references, before
// any step runs. Any auth failure terminates the run before a single
// step_executing is emitted.
func (e *Engine) connectServices(ctx context.Context, userID string, steps []workflow.Step) error {
	seen := make(map[string]bool)
	for _, s := range steps {
		if s.MCPName == workflow.LLMStepName || seen[s.MCPName] {
			continue
		}
		seen[s.MCPName] = true
		if err := e.svc.Manager.Connect(ctx, userID, s.MCPName); err != nil {
			return fmt.Errorf("connect %s: %w", s.MCPName, err)
		}
	}
	return nil
}

func (e *Engine) emitConnectionFailure(pub *events.Publisher, err error) {
	var missingAuth *auth.ErrMissingAuth
	if errors.As(err, &missingAuth) {
		pub.Publish(events.MCPConnectionError(0, engineAgentName, "missing_auth", missingAuth.Service, missingAuth.MissingKeys))
	} else {
		pub.Publish(events.MCPConnectionError(0, engineAgentName, "connection_error", "", nil))
	}
	pub.Publish(events.TaskExecutionError("mcp_connection_error"))
}
