package planner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/flowforge/orchestrator/pkg/resolver"
	"github.com/flowforge/orchestrator/pkg/workflow"
)

// buildPlanPrompt follows the teacher's convention (pkg/agent/prompt) of
// keeping prompt construction in its own file, separate from the calling
// logic in planner.go.
func buildPlanPrompt(input Input) string {
	var b strings.Builder

	b.WriteString("You are planning the next steps of a tool-using workflow.\n\n")
	fmt.Fprintf(&b, "Original request: %s\n\n", input.Query)

	if len(input.Breakdown) > 0 {
		b.WriteString("Task breakdown:\n")
		for _, c := range input.Breakdown {
			fmt.Fprintf(&b, "- [%s] %s (%s) completed=%v\n", c.ID, c.Description, c.Type, c.IsCompleted)
		}
		b.WriteString("\n")
	}

	b.WriteString("Available services:\n")
	for _, s := range input.Services {
		fmt.Fprintf(&b, "- %s: %s (tools: %s)\n", s.Name, s.Description, strings.Join(s.ToolNames, ", "))
	}
	b.WriteString("\n")

	if len(input.History) > 0 {
		b.WriteString("Execution history so far:\n")
		for _, h := range input.History {
			fmt.Fprintf(&b, "- step %d (%s): success=%v %s\n", h.StepIndex, h.Tool, h.Success, h.ResultSummary)
		}
		b.WriteString("\n")
	}

	if len(input.DataStoreKeys) > 0 {
		keysJSON, _ := json.Marshal(input.DataStoreKeys)
		fmt.Fprintf(&b, "Data already collected (keys only): %s\n\n", keysJSON)
	}

	b.WriteString("Rules:\n" +
		"- Do not re-collect data already present in the data store above.\n" +
		"- For requests naming multiple targets (e.g. users A, B, C), emit one " +
		"data-collection step per target — never a single generic \"collect all\" step.\n" +
		"- `mcp` must be selected exactly from the available services list above.\n" +
		"- Never put a tool name where a service name belongs, or vice versa — " +
		"`mcp` is the service, `action` is the tool or task on that service.\n\n")

	b.WriteString(`Respond with JSON only: a JSON array of ` +
		`{"step": N, "mcp": "...", "action": "...", "input": {...}, "reasoning": "..."}.`)

	return b.String()
}

// buildBreakdownPrompt asks the LLM to decompose the original query into
// TaskComponents before the first Plan call, per §4.F preparation step 3.
func buildBreakdownPrompt(query string) string {
	return "Decompose the following request into a small set of named sub-goals " +
		"(components). Each component has a type — one of data_collection, " +
		"data_processing, action_execution, analysis, output — and, for " +
		"data_collection components that name a specific target (a user, an " +
		"account, a resource), that target string.\n\n" +
		"Request: " + query + "\n\n" +
		`Respond with JSON only: a JSON array of ` +
		`{"id": "...", "type": "...", "description": "...", "target": "..."}.`
}

// ParseBreakdown extracts a []workflow.Component from the decomposition
// prompt's response, using the same extractor as the planner's main call.
// On parse failure, returns a single synthetic component covering the
// whole query — used both for malformed responses and for preloaded
// workflows that need "a minimal breakdown" per §4.F preparation step 3.
func ParseBreakdown(text, query string) []workflow.Component {
	raw, ok := resolver.ExtractJSON(text)
	if !ok {
		return syntheticBreakdown(query)
	}

	var parsed []struct {
		ID          string `json:"id"`
		Type        string `json:"type"`
		Description string `json:"description"`
		Target      string `json:"target"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil || len(parsed) == 0 {
		return syntheticBreakdown(query)
	}

	out := make([]workflow.Component, 0, len(parsed))
	for _, p := range parsed {
		out = append(out, workflow.Component{
			ID:          p.ID,
			Type:        workflow.ComponentType(p.Type),
			Description: p.Description,
			Target:      p.Target,
		})
	}
	return out
}

func syntheticBreakdown(query string) []workflow.Component {
	return []workflow.Component{{
		ID:          "main",
		Type:        workflow.ComponentOutput,
		Description: query,
	}}
}
