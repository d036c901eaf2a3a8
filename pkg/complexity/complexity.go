// Package complexity classifies a user query into a complexity class that
// sizes the Workflow Execution Engine's iteration budget and observation
// depth, per the Complexity Analyzer component.
package complexity

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/flowforge/orchestrator/pkg/config"
	"github.com/flowforge/orchestrator/pkg/llmclient"
)

// Class is one of the three recognized complexity buckets.
type Class string

const (
	ClassSimpleQuery     Class = "simple_query"
	ClassMediumTask      Class = "medium_task"
	ClassComplexWorkflow Class = "complex_workflow"
)

// Observation describes how thoroughly the observer should scrutinize
// progress before declaring early success, driven by Class.
type Observation string

const (
	ObservationFast     Observation = "fast"
	ObservationBalanced Observation = "balanced"
	ObservationThorough Observation = "thorough"
)

// Result is the outcome of classifying a query.
type Result struct {
	Class           Class
	Observation     Observation
	RecommendedStep int
}

var (
	simplePattern  = regexp.MustCompile(`(?i)^(show me|get|fetch|what is|what's|current|latest)\b`)
	mediumVerbs    = regexp.MustCompile(`(?i)\b(compare|aggregate|sum|average|then|next|after)\b`)
	complexVocab   = regexp.MustCompile(`(?i)\b(workflow|pipeline|orchestrate|multi-step|end-to-end)\b`)
	multiSubjectRe = regexp.MustCompile(`(?i)\b(and|,)\b`)
)

// Classifier classifies queries, falling back to an LLM call when the
// regex/keyword buckets (grounded on pkg/mcp/router.go's small,
// well-tested regex-driven classifiers) don't match.
type Classifier struct {
	llm llmclient.Client
	cfg *config.LLMProviderConfig
}

// New creates a Classifier. llm/cfg may be nil — pattern-only classification
// still works, it just defaults to medium_task instead of calling out.
func New(llm llmclient.Client, cfg *config.LLMProviderConfig) *Classifier {
	return &Classifier{llm: llm, cfg: cfg}
}

// Classify implements §4.I: pattern-match first; on no match, consult the
// LLM; on LLM parse failure, default to medium_task.
func (c *Classifier) Classify(ctx context.Context, query string, workflowLen int) Result {
	if r, ok := classifyByPattern(query, workflowLen); ok {
		return r
	}

	if c.llm == nil {
		return Result{Class: ClassMediumTask, Observation: ObservationBalanced, RecommendedStep: 3}
	}

	if r, ok := c.classifyByLLM(ctx, query); ok {
		return r
	}

	return Result{Class: ClassMediumTask, Observation: ObservationBalanced, RecommendedStep: 3}
}

func classifyByPattern(query string, workflowLen int) (Result, bool) {
	switch {
	case simplePattern.MatchString(query) || (workflowLen > 0 && workflowLen <= 2):
		return Result{Class: ClassSimpleQuery, Observation: ObservationFast, RecommendedStep: 1}, true
	case complexVocab.MatchString(query) || len(strings.Fields(query)) > 150 || workflowLen > 5:
		return Result{Class: ClassComplexWorkflow, Observation: ObservationThorough, RecommendedStep: 6}, true
	case mediumVerbs.MatchString(query) || multiSubjectRe.MatchString(query) || (workflowLen >= 3 && workflowLen <= 5):
		return Result{Class: ClassMediumTask, Observation: ObservationBalanced, RecommendedStep: 3}, true
	default:
		return Result{}, false
	}
}

type llmVerdict struct {
	Class Class `json:"class"`
}

func (c *Classifier) classifyByLLM(ctx context.Context, query string) (Result, bool) {
	prompt := "Classify the following user request into exactly one of: " +
		"simple_query, medium_task, complex_workflow. Respond with JSON only: " +
		`{"class": "..."}` + "\n\nRequest: " + query

	ch, err := c.llm.Generate(ctx, &llmclient.GenerateInput{
		StepID:   "complexity-classify",
		Config:   c.cfg,
		Messages: []llmclient.Message{{Role: llmclient.RoleUser, Content: prompt}},
	})
	if err != nil {
		return Result{}, false
	}
	text, _, err := llmclient.Drain(ch)
	if err != nil {
		return Result{}, false
	}

	var verdict llmVerdict
	if json.Unmarshal([]byte(text), &verdict) != nil {
		return Result{}, false
	}

	switch verdict.Class {
	case ClassSimpleQuery:
		return Result{Class: ClassSimpleQuery, Observation: ObservationFast, RecommendedStep: 1}, true
	case ClassComplexWorkflow:
		return Result{Class: ClassComplexWorkflow, Observation: ObservationThorough, RecommendedStep: 6}, true
	case ClassMediumTask:
		return Result{Class: ClassMediumTask, Observation: ObservationBalanced, RecommendedStep: 3}, true
	default:
		return Result{}, false
	}
}
