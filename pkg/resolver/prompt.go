package resolver

import (
	"encoding/json"
	"fmt"
	"strings"
)

// buildToolSelectionPrompt asks the LLM to pick the concrete tool name for
// an abstract action, given the live tool list for one service.
func buildToolSelectionPrompt(action string, inputArgs map[string]any, tools []ToolInfo) string {
	var b strings.Builder
	b.WriteString("You are selecting the correct tool to call on an MCP service.\n\n")
	fmt.Fprintf(&b, "Requested action: %s\n", action)
	if len(inputArgs) > 0 {
		argsJSON, _ := json.Marshal(inputArgs)
		fmt.Fprintf(&b, "Caller-supplied arguments: %s\n", argsJSON)
	}
	b.WriteString("\nAvailable tools on this service:\n")
	for _, t := range tools {
		fmt.Fprintf(&b, "- %s: %s\n  input_schema: %s\n", t.Name, t.Description, t.InputSchema)
	}
	b.WriteString("\nThe action name may already be a tool name, a description of one, " +
		"or close to one. Select exactly one tool name from the list above — never invent " +
		"a name that isn't listed, and never confuse the service name with the tool name.\n\n" +
		`Respond with JSON only: {"tool_name": "...", "reasoning": "..."}`)
	return b.String()
}

// buildParameterAdaptationPrompt asks the LLM to map caller args onto a
// tool's declared input schema, using the prior step's result as a source
// of real values.
func buildParameterAdaptationPrompt(toolName string, args map[string]any, schema string, priorResult string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are adapting arguments for tool %q.\n\n", toolName)
	fmt.Fprintf(&b, "Tool input schema: %s\n\n", schema)
	argsJSON, _ := json.Marshal(args)
	fmt.Fprintf(&b, "Caller-supplied arguments: %s\n\n", argsJSON)
	if priorResult != "" {
		fmt.Fprintf(&b, "Raw output of the immediately preceding successful step "+
			"(extract actual values from here, not placeholders):\n%s\n\n", truncate(priorResult, 4000))
	}
	b.WriteString("Use the exact property names from the schema. Extract real values where " +
		"possible instead of describing what a value should be.\n\n" +
		`Respond with JSON only: {"tool_name": "...", "input_params": {...}, "reasoning": "..."}`)
	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
