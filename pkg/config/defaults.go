package config

import "time"

// Defaults contains system-wide default configurations for the engine.
// These values are used when a caller does not override them per `execute` call.
type Defaults struct {
	// LLMProvider names the provider used for Planner/Observer/Resolver calls
	// unless the caller overrides per role.
	LLMProvider string `yaml:"llm_provider,omitempty"`

	// MaxIterationsCap is the caller-visible ceiling on max_iterations; the
	// engine takes min(caller_cap, recommended_steps) from the Complexity
	// Analyzer (§4.F step 1).
	MaxIterationsCap int `yaml:"max_iterations_cap,omitempty" validate:"omitempty,min=1"`

	// MaxRetries is the default per-step retry budget (WorkflowStep.max_retries).
	MaxRetries int `yaml:"max_retries,omitempty" validate:"omitempty,min=0"`

	// StepTimeout is the default per-tool-call timeout before a step is
	// marked failed with error class "timeout".
	StepTimeout time.Duration `yaml:"step_timeout,omitempty"`

	// RetryBackoffUnit is the base backoff unit; actual sleep is
	// RetryBackoffUnit * attempt.
	RetryBackoffUnit time.Duration `yaml:"retry_backoff_unit,omitempty"`
}

// DefaultEngineDefaults returns the built-in engine defaults.
func DefaultEngineDefaults() *Defaults {
	return &Defaults{
		MaxIterationsCap: 20,
		MaxRetries:       2,
		StepTimeout:      30 * time.Second,
		RetryBackoffUnit: 1 * time.Second,
	}
}

// ComplexityBudgets maps each complexity class to its recommended step budget
// and observation depth, grounded on the worked examples in §8 (simple_query
// budget 1; medium_task and complex_workflow scale with breakdown size).
type ComplexityBudgets struct {
	SimpleQuerySteps     int `yaml:"simple_query_steps,omitempty"`
	MediumTaskSteps      int `yaml:"medium_task_steps,omitempty"`
	ComplexWorkflowSteps int `yaml:"complex_workflow_steps,omitempty"`
}

// DefaultComplexityBudgets returns the built-in step budgets per complexity class.
func DefaultComplexityBudgets() *ComplexityBudgets {
	return &ComplexityBudgets{
		SimpleQuerySteps:     1,
		MediumTaskSteps:      6,
		ComplexWorkflowSteps: 20,
	}
}
