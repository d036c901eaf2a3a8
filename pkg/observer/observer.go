// Package observer implements the Observer (LLM) component: after every
// step, decide whether the run should stop, continue, or adapt the
// remaining workflow.
package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/flowforge/orchestrator/pkg/complexity"
	"github.com/flowforge/orchestrator/pkg/config"
	"github.com/flowforge/orchestrator/pkg/llmclient"
	"github.com/flowforge/orchestrator/pkg/resolver"
	"github.com/flowforge/orchestrator/pkg/workflow"
)

// Input is everything the observer prompt is built from.
type Input struct {
	Query           string
	History         []workflow.HistoryEntry
	DataStoreKeys   []string
	Breakdown       []workflow.Component
	Complexity      complexity.Class
	CompletedCount  int
	FailedCount     int
	TargetCount     int // number of explicitly enumerated targets, 0 if none
}

// Verdict is the observer's decision.
type Verdict struct {
	ShouldContinue      bool   `json:"should_continue"`
	ShouldAdaptWorkflow bool   `json:"should_adapt_workflow"`
	AdaptationReason    string `json:"adaptation_reason,omitempty"`
	NewObjective        string `json:"new_objective,omitempty"`
	CompletionAnalysis  string `json:"completion_analysis,omitempty"`
	ConfidenceScore     float64 `json:"confidence_score,omitempty"`
}

// defaultVerdict is returned on any parse failure, per §4.E: "don't stop,
// don't adapt, continue".
func defaultVerdict() Verdict {
	return Verdict{ShouldContinue: true, ShouldAdaptWorkflow: false}
}

// Observer wraps one buffered LLM client call per invocation.
type Observer struct {
	llm llmclient.Client
	cfg *config.LLMProviderConfig
}

// New creates an Observer.
func New(llm llmclient.Client, cfg *config.LLMProviderConfig) *Observer {
	return &Observer{llm: llm, cfg: cfg}
}

// Observe asks the LLM for a Verdict on the current run state.
func (o *Observer) Observe(ctx context.Context, input Input) Verdict {
	prompt := buildObservePrompt(input)

	ch, err := o.llm.Generate(ctx, &llmclient.GenerateInput{
		StepID:   "observer",
		Config:   o.cfg,
		Messages: []llmclient.Message{{Role: llmclient.RoleUser, Content: prompt}},
	})
	if err != nil {
		return defaultVerdict()
	}

	text, _, err := llmclient.Drain(ch)
	if err != nil {
		return defaultVerdict()
	}

	raw, ok := resolver.ExtractJSON(text)
	if !ok {
		return defaultVerdict()
	}

	var v Verdict
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return defaultVerdict()
	}
	return v
}

func buildObservePrompt(input Input) string {
	var b strings.Builder

	b.WriteString("You are the observer in a plan-act-observe loop. Decide whether to " +
		"continue, stop, or adapt the remaining workflow.\n\n")
	fmt.Fprintf(&b, "Original request: %s\n\n", input.Query)

	b.WriteString("Execution history:\n")
	for _, h := range input.History {
		fmt.Fprintf(&b, "- step %d (%s): success=%v %s\n", h.StepIndex, h.Tool, h.Success, h.ResultSummary)
	}
	b.WriteString("\n")

	if len(input.DataStoreKeys) > 0 {
		keysJSON, _ := json.Marshal(input.DataStoreKeys)
		fmt.Fprintf(&b, "Data store keys: %s\n\n", keysJSON)
	}

	if len(input.Breakdown) > 0 {
		b.WriteString("Task breakdown:\n")
		for _, c := range input.Breakdown {
			fmt.Fprintf(&b, "- [%s] %s completed=%v\n", c.ID, c.Description, c.IsCompleted)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Complexity class: %s\n", input.Complexity)
	fmt.Fprintf(&b, "Completed steps: %d, failed steps: %d\n\n", input.CompletedCount, input.FailedCount)

	switch input.Complexity {
	case complexity.ClassSimpleQuery:
		b.WriteString("Guidance: this is a simple query. If the latest step succeeded " +
			"with meaningful data, stop (should_continue=false).\n")
	case complexity.ClassComplexWorkflow:
		b.WriteString("Guidance: this is a complex workflow. Stop only when every " +
			"component in the breakdown above is marked complete.\n")
	default:
		b.WriteString("Guidance: this is a medium task. Stop once the principal " +
			"objective is visible in the results collected so far.\n")
	}
	if input.TargetCount > 0 {
		fmt.Fprintf(&b, "This request explicitly enumerates %d targets — stop only "+
			"once %d distinct successful collections are visible.\n", input.TargetCount, input.TargetCount)
	}

	b.WriteString("\n" + `Respond with JSON only: {"should_continue": bool, ` +
		`"should_adapt_workflow": bool, "adaptation_reason": "...", ` +
		`"new_objective": "...", "completion_analysis": "...", "confidence_score": 0.0}`)

	return b.String()
}
