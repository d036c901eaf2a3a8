package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/flowforge/orchestrator/pkg/config"
	"github.com/flowforge/orchestrator/pkg/llmclient"
)

// ToolInfo is the live tool description the resolver matches action names
// and arguments against — one connection's declared_tools.
type ToolInfo struct {
	Name        string
	Description string
	InputSchema string // JSON Schema
}

// Resolver performs tool-name resolution and parameter adaptation, sharing
// one LLM client and one JSON extractor across both passes.
type Resolver struct {
	llm llmclient.Client
	cfg *config.LLMProviderConfig
}

// New creates a Resolver backed by the given LLM client and provider config.
func New(llm llmclient.Client, cfg *config.LLMProviderConfig) *Resolver {
	return &Resolver{llm: llm, cfg: cfg}
}

type toolSelection struct {
	ToolName  string `json:"tool_name"`
	Reasoning string `json:"reasoning"`
}

// ResolveToolName maps an abstract action to a concrete tool name on the
// live connection. If action already matches a declared tool name exactly,
// no LLM call is made.
func (r *Resolver) ResolveToolName(ctx context.Context, action string, inputArgs map[string]any, tools []ToolInfo) (string, error) {
	for _, t := range tools {
		if t.Name == action {
			return t.Name, nil
		}
	}

	prompt := buildToolSelectionPrompt(action, inputArgs, tools)
	text, err := r.complete(ctx, "resolver-tool-name", prompt)
	if err == nil {
		if raw, ok := ExtractJSON(text); ok {
			var sel toolSelection
			if json.Unmarshal([]byte(raw), &sel) == nil {
				if name := validateToolName(sel.ToolName, tools); name != "" {
					return name, nil
				}
			}
		}
	}

	if name := fuzzyMatch(action, tools); name != "" {
		return name, nil
	}

	if len(tools) > 0 {
		return tools[0].Name, nil
	}

	return "", fmt.Errorf("no tools available to resolve action %q", action)
}

type parameterAdaptation struct {
	ToolName    string         `json:"tool_name"`
	InputParams map[string]any `json:"input_params"`
	Reasoning   string         `json:"reasoning"`
}

// AdaptParameters maps caller-supplied args onto the tool's declared input
// schema, using the prior step's raw result (if any) as a source of actual
// values rather than placeholders.
func (r *Resolver) AdaptParameters(ctx context.Context, toolName string, args map[string]any, schema string, priorResult string) (map[string]any, error) {
	prompt := buildParameterAdaptationPrompt(toolName, args, schema, priorResult)
	text, err := r.complete(ctx, "resolver-parameters", prompt)
	if err != nil {
		return renameCamelToSnake(args, schema), nil
	}

	raw, ok := ExtractJSON(text)
	if !ok {
		return renameCamelToSnake(args, schema), nil
	}

	var adapted parameterAdaptation
	if err := json.Unmarshal([]byte(raw), &adapted); err != nil || adapted.InputParams == nil {
		return renameCamelToSnake(args, schema), nil
	}

	return renameCamelToSnake(adapted.InputParams, schema), nil
}

func (r *Resolver) complete(ctx context.Context, stepID, prompt string) (string, error) {
	ch, err := r.llm.Generate(ctx, &llmclient.GenerateInput{
		StepID:   stepID,
		Config:   r.cfg,
		Messages: []llmclient.Message{{Role: llmclient.RoleUser, Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	text, _, err := llmclient.Drain(ch)
	return text, err
}

func validateToolName(name string, tools []ToolInfo) string {
	for _, t := range tools {
		if t.Name == name {
			return name
		}
	}
	return ""
}

// fuzzyMatch looks for a substring relationship between action and a
// declared tool name, in either direction, case-insensitively.
func fuzzyMatch(action string, tools []ToolInfo) string {
	lower := strings.ToLower(action)
	for _, t := range tools {
		tl := strings.ToLower(t.Name)
		if strings.Contains(lower, tl) || strings.Contains(tl, lower) {
			return t.Name
		}
	}
	return ""
}

var camelPattern = regexp.MustCompile(`([a-z0-9])([A-Z])`)

func camelToSnake(s string) string {
	return strings.ToLower(camelPattern.ReplaceAllString(s, "${1}_${2}"))
}

// renameCamelToSnake renames any arg whose camelCase form matches a
// snake_case property declared in schema, per §4.C's post-processing step.
// Args that already match a property, or that match nothing, pass through
// unchanged.
func renameCamelToSnake(args map[string]any, schema string) map[string]any {
	props := schemaPropertyNames(schema)
	if len(props) == 0 {
		return args
	}

	out := make(map[string]any, len(args))
	for k, v := range args {
		if props[k] {
			out[k] = v
			continue
		}
		if snake := camelToSnake(k); snake != k && props[snake] {
			out[snake] = v
			continue
		}
		out[k] = v
	}
	return out
}

func schemaPropertyNames(schema string) map[string]bool {
	if schema == "" {
		return nil
	}
	var parsed struct {
		Properties map[string]any `json:"properties"`
	}
	if err := json.Unmarshal([]byte(schema), &parsed); err != nil {
		return nil
	}
	names := make(map[string]bool, len(parsed.Properties))
	for k := range parsed.Properties {
		names[k] = true
	}
	return names
}
