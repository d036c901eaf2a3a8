// Package planner implements the Planner (LLM) component: producing the
// initial workflow or an adapted tail when the Observer requests a replan.
package planner

import (
	"context"
	"encoding/json"

	"github.com/flowforge/orchestrator/pkg/config"
	"github.com/flowforge/orchestrator/pkg/llmclient"
	"github.com/flowforge/orchestrator/pkg/resolver"
	"github.com/flowforge/orchestrator/pkg/workflow"
)

// Input is everything the planner prompt is built from.
type Input struct {
	Query           string
	Breakdown       []workflow.Component
	Services        []workflow.ServiceInfo
	History         []workflow.HistoryEntry
	DataStoreKeys   []string
	CurrentStepIdx  int
}

// rawStep is the planner's wire format: {step, mcp, action, input, reasoning}.
type rawStep struct {
	Step      int            `json:"step"`
	MCP       string         `json:"mcp"`
	Action    string         `json:"action"`
	Input     map[string]any `json:"input"`
	Reasoning string         `json:"reasoning"`
}

// Planner wraps one buffered LLM client call per invocation.
type Planner struct {
	llm llmclient.Client
	cfg *config.LLMProviderConfig
}

// New creates a Planner.
func New(llm llmclient.Client, cfg *config.LLMProviderConfig) *Planner {
	return &Planner{llm: llm, cfg: cfg}
}

// Plan produces an ordered step sequence starting at input.CurrentStepIdx+1.
// On parse failure it emits a single fallback step against the first
// available service with the original query as input.query, per §4.D.
func (p *Planner) Plan(ctx context.Context, input Input) ([]workflow.Step, error) {
	prompt := buildPlanPrompt(input)

	ch, err := p.llm.Generate(ctx, &llmclient.GenerateInput{
		StepID:   "planner",
		Config:   p.cfg,
		Messages: []llmclient.Message{{Role: llmclient.RoleUser, Content: prompt}},
	})
	if err != nil {
		return fallbackPlan(input), nil
	}

	text, _, err := llmclient.Drain(ch)
	if err != nil {
		return fallbackPlan(input), nil
	}

	raw, ok := resolver.ExtractJSON(text)
	if !ok {
		return fallbackPlan(input), nil
	}

	var steps []rawStep
	if err := json.Unmarshal([]byte(raw), &steps); err != nil || len(steps) == 0 {
		return fallbackPlan(input), nil
	}

	out := make([]workflow.Step, 0, len(steps))
	for i, s := range steps {
		out = append(out, workflow.Step{
			Index:      input.CurrentStepIdx + i + 1,
			MCPName:    s.MCP,
			Action:     s.Action,
			InputArgs:  s.Input,
			Reasoning:  s.Reasoning,
			Status:     workflow.StepPending,
			MaxRetries: 2,
		})
	}
	return out, nil
}

// Breakdown decomposes the original query into TaskComponents, per §4.F
// preparation step 3. On any failure it falls back to a single synthetic
// component covering the whole query.
func (p *Planner) Breakdown(ctx context.Context, query string) []workflow.Component {
	ch, err := p.llm.Generate(ctx, &llmclient.GenerateInput{
		StepID:   "planner-breakdown",
		Config:   p.cfg,
		Messages: []llmclient.Message{{Role: llmclient.RoleUser, Content: buildBreakdownPrompt(query)}},
	})
	if err != nil {
		return syntheticBreakdown(query)
	}

	text, _, err := llmclient.Drain(ch)
	if err != nil {
		return syntheticBreakdown(query)
	}

	return ParseBreakdown(text, query)
}

func fallbackPlan(input Input) []workflow.Step {
	mcp := workflow.LLMStepName
	if len(input.Services) > 0 {
		mcp = input.Services[0].Name
	}
	return []workflow.Step{{
		Index:      input.CurrentStepIdx + 1,
		MCPName:    mcp,
		Action:     "fallback",
		InputArgs:  map[string]any{"query": input.Query},
		Reasoning:  "planner response could not be parsed; falling back to original query",
		Status:     workflow.StepPending,
		MaxRetries: 2,
	}}
}
