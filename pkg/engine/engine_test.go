package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/orchestrator/pkg/complexity"
	"github.com/flowforge/orchestrator/pkg/config"
	"github.com/flowforge/orchestrator/pkg/events"
	"github.com/flowforge/orchestrator/pkg/mcp"
	"github.com/flowforge/orchestrator/pkg/observer"
	"github.com/flowforge/orchestrator/pkg/planner"
	"github.com/flowforge/orchestrator/pkg/resolver"
	"github.com/flowforge/orchestrator/pkg/workflow"
)

func testLLMConfig() *config.LLMProviderConfig {
	return &config.LLMProviderConfig{Type: config.LLMProviderTypeAnthropic, Model: "test-model", MaxToolResultTokens: 8000}
}

func newTestEngine(llm *fakeLLM) (*Engine, *config.Defaults) {
	registry := config.NewServiceRegistry(map[string]*config.ServiceConfig{})
	manager := mcp.NewManager(registry, nil)
	cfg := testLLMConfig()

	defaults := config.DefaultEngineDefaults()
	defaults.RetryBackoffUnit = time.Millisecond
	defaults.MaxIterationsCap = 10

	svc := Services{
		Manager:    manager,
		Registry:   registry,
		Planner:    planner.New(llm, cfg),
		Observer:   observer.New(llm, cfg),
		Resolver:   resolver.New(llm, cfg),
		Complexity: complexity.New(llm, cfg),
		Formatter:  events.NewFormatter(llm, cfg),
		LLM:        llm,
		LLMConfig:  cfg,
	}

	return New(svc, defaults, config.DefaultComplexityBudgets()), defaults
}

func drain(ch <-chan events.Event) []events.Event {
	var out []events.Event
	for e := range ch {
		out = append(out, e)
	}
	return out
}

func eventNames(evts []events.Event) []events.Name {
	names := make([]events.Name, len(evts))
	for i, e := range evts {
		names[i] = e.Name
	}
	return names
}

// TestExecuteSingleLLMStepSucceeds runs a one-step, all-LLM preloaded
// workflow to completion and checks the success formula and the basic
// event envelope (execution_start ... task_execution_complete).
func TestExecuteSingleLLMStepSucceeds(t *testing.T) {
	llm := newFakeLLM(`{"should_continue": false, "should_adapt_workflow": false, "completion_analysis": "done", "confidence_score": 0.9}`)
	llm.on("step-1", "the answer is 42")

	eng, _ := newTestEngine(llm)
	pub := events.NewPublisher()
	sub := pub.Subscribe(64)

	req := Request{
		TaskID: "task-1",
		UserID: "user-1",
		Query:  "what is the answer",
		PreloadedWorkflow: []workflow.Step{
			{Index: 1, MCPName: workflow.LLMStepName, Action: "answer", MaxRetries: 1},
		},
	}

	success := eng.ExecuteWithPublisher(context.Background(), req, pub)
	pub.Close()

	require.True(t, success)

	got := eventNames(drain(sub))
	require.NotEmpty(t, got)
	assert.Equal(t, events.NameExecutionStart, got[0])
	assert.Equal(t, events.NameTaskExecutionComplete, got[len(got)-1])
	assert.Contains(t, got, events.NameStepExecuting)
	assert.Contains(t, got, events.NameStepComplete)
	assert.Contains(t, got, events.NameTaskObservation)
}

// TestExecuteStopsAtMaxIterations ensures a workflow that never gets a
// should_continue=false verdict still terminates once MaxIterations is
// exhausted, rather than looping forever.
func TestExecuteStopsAtMaxIterations(t *testing.T) {
	llm := newFakeLLM(`{"should_continue": true, "should_adapt_workflow": false}`)
	llm.on("step-", "partial progress")

	eng, defaults := newTestEngine(llm)
	defaults.MaxIterationsCap = 2

	steps := []workflow.Step{
		{Index: 1, MCPName: workflow.LLMStepName, Action: "a", MaxRetries: 0},
		{Index: 2, MCPName: workflow.LLMStepName, Action: "b", MaxRetries: 0},
		{Index: 3, MCPName: workflow.LLMStepName, Action: "c", MaxRetries: 0},
	}

	req := Request{TaskID: "task-2", UserID: "user-1", Query: "multi step", PreloadedWorkflow: steps}
	pub := events.NewPublisher()
	sub := pub.Subscribe(64)

	success := eng.ExecuteWithPublisher(context.Background(), req, pub)
	pub.Close()

	require.True(t, success)
	evts := drain(sub)
	completeCount := 0
	for _, e := range evts {
		if e.Name == events.NameStepComplete {
			completeCount++
		}
	}
	assert.Equal(t, 2, completeCount, "only MaxIterationsCap steps should run")
}

// TestExecuteCancelledContextFails ensures a context cancelled before
// Execute is called produces a failed run and a task_execution_error, not
// a panic or a hang.
func TestExecuteCancelledContextFails(t *testing.T) {
	llm := newFakeLLM(`{"should_continue": true}`)
	eng, _ := newTestEngine(llm)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := Request{
		TaskID:            "task-3",
		UserID:            "user-1",
		Query:             "cancelled",
		PreloadedWorkflow: []workflow.Step{{Index: 1, MCPName: workflow.LLMStepName, Action: "a"}},
	}
	pub := events.NewPublisher()
	sub := pub.Subscribe(64)

	success := eng.ExecuteWithPublisher(ctx, req, pub)
	pub.Close()

	assert.False(t, success)
	names := eventNames(drain(sub))
	assert.Contains(t, names, events.NameTaskExecutionError)
}
