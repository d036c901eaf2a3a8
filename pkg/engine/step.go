package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/flowforge/orchestrator/pkg/events"
	"github.com/flowforge/orchestrator/pkg/llmclient"
	"github.com/flowforge/orchestrator/pkg/mcp"
	"github.com/flowforge/orchestrator/pkg/observer"
	"github.com/flowforge/orchestrator/pkg/planner"
	"github.com/flowforge/orchestrator/pkg/resolver"
	"github.com/flowforge/orchestrator/pkg/storage"
	"github.com/flowforge/orchestrator/pkg/workflow"
)

// runStep executes one pending step end to end: resolve/adapt (for MCP
// steps) or prompt directly (for llm steps), retry on failure per the
// step's own max_retries, record the outcome, then always consult the
// Observer and apply its verdict — per §9's resolution that the observer
// runs after every step, success or failure.
func (e *Engine) runStep(ctx context.Context, state *State, step *workflow.Step, req Request, pub *events.Publisher) {
	step.Status = workflow.StepExecuting

	var (
		resolvedTool string
		finalArgs    map[string]any
		result       string
		execErr      error
	)

	if step.MCPName == workflow.LLMStepName {
		resolvedTool = "llm"
		finalArgs = step.InputArgs
	} else {
		tools, err := e.listToolInfos(ctx, req.UserID, step.MCPName)
		if err != nil {
			e.failStep(ctx, state, step, req, pub, fmt.Errorf("list tools for %s: %w", step.MCPName, err))
			return
		}

		seededArgs := step.InputArgs
		if len(seededArgs) == 0 {
			if prior, ok := state.DataStore["last_result"]; ok && prior != "" {
				seededArgs = map[string]any{inferArgKey(step.Action): prior}
			}
		}

		resolvedTool, err = e.svc.Resolver.ResolveToolName(ctx, step.Action, seededArgs, tools)
		if err != nil {
			e.failStep(ctx, state, step, req, pub, fmt.Errorf("resolve tool name: %w", err))
			return
		}

		schema := e.schemaFor(tools, resolvedTool)
		finalArgs, err = e.svc.Resolver.AdaptParameters(ctx, resolvedTool, seededArgs, schema, state.DataStore["last_result"])
		if err != nil {
			finalArgs = seededArgs
		}
	}

	pub.Publish(events.StepExecuting(step.Index, engineAgentName, resolvedTool, finalArgs, step.Reasoning, ""))

	totalAttempts := step.MaxRetries + 1
	for attempt := 1; attempt <= totalAttempts; attempt++ {
		step.Attempts = attempt

		if step.MCPName == workflow.LLMStepName {
			result, execErr = e.callLLMStep(ctx, step, state)
		} else {
			result, execErr = e.callTool(ctx, req.UserID, step.MCPName, resolvedTool, finalArgs)
		}

		if execErr == nil {
			break
		}
		if attempt < totalAttempts {
			select {
			case <-ctx.Done():
				execErr = ctx.Err()
				attempt = totalAttempts
			case <-time.After(e.defaults.RetryBackoffUnit * time.Duration(attempt)):
			}
		}
	}

	stepClass := "mcp"
	if step.MCPName == workflow.LLMStepName {
		stepClass = "llm"
	}

	if execErr != nil {
		e.svc.Metrics.RecordStep(stepClass, false)
		e.failStep(ctx, state, step, req, pub, execErr)
		return
	}

	e.svc.Metrics.RecordStep(stepClass, true)
	e.completeStep(ctx, state, step, req, pub, resolvedTool, result)
}

// listToolInfos converts the service's live ToolDefinitions into the
// resolver's ToolInfo shape.
func (e *Engine) listToolInfos(ctx context.Context, userID, serviceName string) ([]resolver.ToolInfo, error) {
	defs, err := e.svc.Manager.ListToolDescriptors(ctx, userID, serviceName)
	if err != nil {
		return nil, err
	}
	out := make([]resolver.ToolInfo, 0, len(defs))
	for _, d := range defs {
		out = append(out, resolver.ToolInfo{Name: d.Name, Description: d.Description, InputSchema: d.ParametersSchema})
	}
	return out, nil
}

func (e *Engine) schemaFor(tools []resolver.ToolInfo, name string) string {
	for _, t := range tools {
		if t.Name == name {
			return t.InputSchema
		}
	}
	return ""
}

// callTool invokes one MCP tool call and converts the result into a Go
// error when the tool itself reports failure, applying masking before the
// text is seen by anything downstream.
func (e *Engine) callTool(ctx context.Context, userID, serviceName, toolName string, args map[string]any) (string, error) {
	res, err := e.svc.Manager.CallTool(ctx, userID, serviceName, toolName, args)
	if err != nil {
		return "", err
	}
	text := mcp.ExtractTextContent(res)
	if e.svc.Masking != nil {
		text = e.svc.Masking.MaskToolResult(text, serviceName)
	}
	if res.IsError {
		return "", fmt.Errorf("tool returned an error: %s", text)
	}
	return text, nil
}

// callLLMStep runs an llm-only step: a direct, non-tool-calling LLM
// request built from the step's action, its input args, and the prior
// step's result.
func (e *Engine) callLLMStep(ctx context.Context, step *workflow.Step, state *State) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n", step.Action)
	if len(step.InputArgs) > 0 {
		fmt.Fprintf(&b, "Input: %v\n", step.InputArgs)
	}
	if prior, ok := state.DataStore["last_result"]; ok && prior != "" {
		fmt.Fprintf(&b, "Prior result:\n%s\n", prior)
	}
	if step.Reasoning != "" {
		fmt.Fprintf(&b, "Context: %s\n", step.Reasoning)
	}

	ch, err := e.svc.LLM.Generate(ctx, &llmclient.GenerateInput{
		StepID:   fmt.Sprintf("step-%d", step.Index),
		Config:   e.svc.LLMConfig,
		Messages: []llmclient.Message{{Role: llmclient.RoleUser, Content: b.String()}},
	})
	if err != nil {
		return "", err
	}
	text, _, err := llmclient.Drain(ch)
	if err != nil {
		return "", err
	}
	return text, nil
}

// completeStep records a successful step, streams and persists its
// formatted result, updates the task breakdown, and consults the
// Observer.
func (e *Engine) completeStep(ctx context.Context, state *State, step *workflow.Step, req Request, pub *events.Publisher, toolName, result string) {
	step.Status = workflow.StepCompleted
	step.Result = result
	state.CompletedCount++
	state.setResult(step.Index, result)
	state.recordHistory(step.Index, toolName, true, summarize(result), e.now())

	// §8's boundary sequence places (summary_chunk)+ before step_raw_result,
	// not after; §4.F step 7 has the two reversed. §4.G's ordering guarantee
	// and §8's exact testable sequence win over §4.F here, so the streamed
	// chunks for this step's formatted narration go out first, using
	// summary_chunk as §8 names it (step_result_chunk is kept for a future
	// distinct per-step raw-delta stream but is unused by this path).
	formatted := result
	if e.svc.Formatter != nil {
		formatted, _ = e.svc.Formatter.StreamFormatChunks(ctx, result, func(delta string) {
			pub.Publish(events.SummaryChunk(step.Index, engineAgentName, delta))
		})
	}

	pub.Publish(events.StepRawResult(step.Index, engineAgentName, toolName, result))
	if e.svc.Sink != nil {
		_ = e.svc.Sink.SaveStepRaw(ctx, req.TaskID, step.Index, storage.ToolMetadata{MCPName: step.MCPName, ToolName: toolName}, result)
	}

	pub.Publish(events.StepFormattedResult(step.Index, engineAgentName, formatted))
	if e.svc.Sink != nil {
		_ = e.svc.Sink.SaveStepFormatted(ctx, req.TaskID, step.Index, storage.ToolMetadata{MCPName: step.MCPName, ToolName: toolName}, formatted)
	}

	updateBreakdown(state.Breakdown, *step, result)
	pub.Publish(events.StepComplete(step.Index, engineAgentName, progressSummary(state)))

	e.consultObserver(ctx, state, step, req, pub)
}

// failStep classifies the error, records it against the tool's
// FailureRecord, selects a strategy, applies its termination effect, and
// — unless the run is already terminating — still consults the Observer.
func (e *Engine) failStep(ctx context.Context, state *State, step *workflow.Step, req Request, pub *events.Publisher, execErr error) {
	step.Status = workflow.StepFailed
	step.Error = execErr.Error()
	state.FailedCount++
	state.recordHistory(step.Index, step.MCPName, false, execErr.Error(), e.now())

	firstFailure := state.FailureRecords[step.MCPName] == nil
	rec, ok := state.FailureRecords[step.MCPName]
	if !ok {
		rec = &workflow.FailureRecord{Tool: step.MCPName, MaxRetries: step.MaxRetries}
		state.FailureRecords[step.MCPName] = rec
	}
	rec.StepIndex = step.Index
	rec.Error = execErr.Error()
	rec.AttemptCount += step.Attempts
	rec.LastAttemptAt = e.now()

	class := classifyError(execErr)
	strategy := selectStrategy(class, rec.AttemptCount, firstFailure)
	rec.Strategy = strategy

	pub.Publish(events.StepError(step.Index, engineAgentName, execErr.Error(), map[string]any{
		"tool": step.MCPName, "strategy": string(strategy),
	}))

	if class == classConnection || class == classAuth {
		errType := "connection_error"
		if class == classAuth {
			errType = "missing_auth"
		}
		pub.Publish(events.MCPConnectionError(step.Index, engineAgentName, errType, step.MCPName, nil))
	}

	switch strategy {
	case workflow.StrategySkip:
		state.terminate = true
		state.terminateReason = "skip"
	case workflow.StrategyManualIntervention:
		state.terminate = true
		state.terminateReason = "manual_intervention"
	case workflow.StrategyAlternative:
		if rec.AttemptCount >= 3 {
			state.terminate = true
			state.terminateReason = "alternative"
		}
	case workflow.StrategyRetry:
		// no termination; the step itself already exhausted its own
		// per-step retries, so a "retry" strategy here means the *next*
		// occurrence of this tool (if any) gets another chance.
	}

	e.consultObserver(ctx, state, step, req, pub)
}

// consultObserver always runs after a step per §9, applying the verdict's
// stop/adapt decisions unless the run is already terminating for another
// reason.
func (e *Engine) consultObserver(ctx context.Context, state *State, step *workflow.Step, req Request, pub *events.Publisher) {
	verdict := e.svc.Observer.Observe(ctx, observer.Input{
		Query:          state.Query,
		History:        state.History,
		DataStoreKeys:  state.dataStoreKeys(),
		Breakdown:      state.Breakdown,
		Complexity:     state.ComplexityClass,
		CompletedCount: state.CompletedCount,
		FailedCount:    state.FailedCount,
	})

	pub.Publish(events.TaskObservation(step.Index, verdict.CompletionAnalysis, verdict.ConfidenceScore))

	if !verdict.ShouldContinue {
		if !state.terminate {
			state.terminate = true
			state.terminateReason = "observer-completed"
		}
		return
	}

	if state.terminate || !verdict.ShouldAdaptWorkflow {
		return
	}

	e.adapt(ctx, state, step, req, verdict, pub)
}

// adapt re-plans the workflow tail starting after the current step and
// replaces it, per §9's "replace, not append" resolution.
func (e *Engine) adapt(ctx context.Context, state *State, step *workflow.Step, req Request, verdict observer.Verdict, pub *events.Publisher) {
	objective := verdict.NewObjective
	if objective == "" {
		objective = state.Query
	}

	planned, err := e.svc.Planner.Plan(ctx, planner.Input{
		Query:          objective,
		Breakdown:      state.Breakdown,
		Services:       e.buildServiceInfos(ctx, req.UserID),
		History:        state.History,
		DataStoreKeys:  state.dataStoreKeys(),
		CurrentStepIdx: step.Index,
	})
	if err != nil || len(planned) == 0 {
		return
	}

	state.replaceTail(planned)
	pub.Publish(events.WorkflowAdapted(step.Index, verdict.AdaptationReason, len(planned)))
}

// emitFinalSummary streams the run's closing narrative and publishes the
// terminal event.
func (e *Engine) emitFinalSummary(ctx context.Context, state *State, req Request, pub *events.Publisher, success bool) {
	var raw strings.Builder
	fmt.Fprintf(&raw, "Request: %s\n\n", state.Query)
	for _, h := range state.History {
		status := "ok"
		if !h.Success {
			status = "failed"
		}
		fmt.Fprintf(&raw, "- step %d (%s) [%s]: %s\n", h.StepIndex, h.Tool, status, h.ResultSummary)
	}

	summary := raw.String()
	if e.svc.Formatter != nil {
		summary, _ = e.svc.Formatter.StreamFormatChunks(ctx, raw.String(), func(delta string) {
			pub.Publish(events.SummaryChunk(0, engineAgentName, delta))
		})
	}

	if e.svc.Sink != nil {
		_ = e.svc.Sink.SaveFinalResult(ctx, req.TaskID, storage.FinalState{
			CompletedCount:  state.CompletedCount,
			FailedCount:     state.FailedCount,
			TerminalSuccess: success,
		}, summary)
	}

	pub.Publish(events.TaskExecutionComplete(success, state.CompletedCount, state.FailedCount))
}

func summarize(result string) string {
	const max = 200
	result = strings.TrimSpace(result)
	if len(result) <= max {
		return result
	}
	return result[:max] + "..."
}

func progressSummary(state *State) string {
	return fmt.Sprintf("%d completed, %d failed, %d pending", state.CompletedCount, state.FailedCount, state.pendingCount())
}
