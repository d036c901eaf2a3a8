package engine

import (
	"strings"

	"github.com/flowforge/orchestrator/pkg/workflow"
)

// errorMarkers are substrings that, if present in a step's result, mean the
// result does not carry "meaningful data" for breakdown-completion purposes
// even though the step itself succeeded (e.g. a tool that returns
// HTTP 200 with an embedded error body).
var errorMarkers = []string{"\"error\"", "error:", "failed:"}

// categoryForComponent maps a TaskComponent's type to the step tool-name
// substrings that plausibly advance it. This is deliberately permissive —
// a false negative only delays early termination, never produces a wrong
// answer, so it is safe to lean on action/tool-name keywords rather than a
// full ontology.
func categoryMatches(componentType workflow.ComponentType, step workflow.Step) bool {
	action := strings.ToLower(step.Action)
	switch componentType {
	case workflow.ComponentDataCollection:
		return containsAny(action, "get", "fetch", "list", "search", "read", "collect")
	case workflow.ComponentDataProcessing:
		return containsAny(action, "process", "transform", "parse", "filter", "aggregate", "summarize", "summarise")
	case workflow.ComponentActionExec:
		return containsAny(action, "post", "send", "create", "update", "delete", "execute", "run")
	case workflow.ComponentAnalysis:
		return containsAny(action, "analy", "compare", "evaluate")
	case workflow.ComponentOutput:
		return containsAny(action, "report", "summary", "output", "format")
	default:
		return false
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// hasMeaningfulData reports whether result is non-empty and carries no
// obvious error marker.
func hasMeaningfulData(result string) bool {
	if strings.TrimSpace(result) == "" {
		return false
	}
	lower := strings.ToLower(result)
	for _, marker := range errorMarkers {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	return true
}

// referencesTarget reports whether a step's args or reasoning mention a
// component's target (e.g. the specific "@handle" a data_collection
// component was derived for).
func referencesTarget(step workflow.Step, target string) bool {
	if target == "" {
		return true
	}
	target = strings.ToLower(target)
	if strings.Contains(strings.ToLower(step.Reasoning), target) {
		return true
	}
	for _, v := range step.InputArgs {
		if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), target) {
			return true
		}
	}
	return false
}

// updateBreakdown marks each incomplete component complete once a step
// satisfies §4.F step 9: the step's tool category aligns with the
// component's type, AND — for data_collection components naming a target —
// the step's args or reasoning reference that target, AND the step's
// result carries meaningful data.
func updateBreakdown(breakdown []workflow.Component, step workflow.Step, result string) {
	if step.Status != workflow.StepCompleted {
		return
	}
	if !hasMeaningfulData(result) {
		return
	}

	for i := range breakdown {
		c := &breakdown[i]
		if c.IsCompleted {
			continue
		}
		if !categoryMatches(c.Type, step) {
			continue
		}
		if c.Type == workflow.ComponentDataCollection && c.Target != "" && !referencesTarget(step, c.Target) {
			continue
		}
		c.IsCompleted = true
		c.CompletedStepIndices = append(c.CompletedStepIndices, step.Index)
	}
}
