package storage

import (
	"context"
	"log/slog"
)

// ToolMetadata accompanies a raw or formatted step result, identifying
// which tool produced it.
type ToolMetadata struct {
	MCPName  string
	ToolName string
}

// Sink is the narrow persistence interface the Workflow Execution Engine
// consumes, per §4.H. Implementations must be idempotent on
// (task_id, step_index, content_type).
type Sink interface {
	SaveStepRaw(ctx context.Context, taskID string, stepIndex int, tool ToolMetadata, rawResult string) error
	SaveStepFormatted(ctx context.Context, taskID string, stepIndex int, tool ToolMetadata, formattedMarkdown string) error
	SaveFinalResult(ctx context.Context, taskID string, state FinalState, summaryMarkdown string) error
	UpdateTaskStatus(ctx context.Context, taskID string, status string) error
}

// FinalState is the subset of ExecutionState the sink persists alongside
// the final summary.
type FinalState struct {
	CompletedCount   int
	FailedCount      int
	TerminalSuccess  bool
}

// PgSink persists steps and final results via pgx, upserting on the
// (task_id, step_index, content_type) key so repeated calls for the same
// content are idempotent. Grounded on the claim-and-update pattern of
// pkg/queue/worker.go (explicit SQL, INSERT ... ON CONFLICT DO UPDATE),
// adapted here from a claim query to a content upsert.
type PgSink struct {
	db     *DB
	logger *slog.Logger
}

// NewPgSink creates a PgSink.
func NewPgSink(db *DB) *PgSink {
	return &PgSink{db: db, logger: slog.Default()}
}

func (s *PgSink) SaveStepRaw(ctx context.Context, taskID string, stepIndex int, tool ToolMetadata, rawResult string) error {
	return s.upsertStep(ctx, taskID, stepIndex, "raw", tool, rawResult)
}

func (s *PgSink) SaveStepFormatted(ctx context.Context, taskID string, stepIndex int, tool ToolMetadata, formattedMarkdown string) error {
	return s.upsertStep(ctx, taskID, stepIndex, "formatted", tool, formattedMarkdown)
}

func (s *PgSink) upsertStep(ctx context.Context, taskID string, stepIndex int, contentType string, tool ToolMetadata, content string) error {
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO task_steps (task_id, step_index, content_type, tool_name, content, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (task_id, step_index, content_type)
		DO UPDATE SET content = EXCLUDED.content, tool_name = EXCLUDED.tool_name, updated_at = now()
	`, taskID, stepIndex, contentType, tool.ToolName, content)
	if err != nil {
		s.logger.Warn("failed to persist step content", "task_id", taskID, "step", stepIndex, "content_type", contentType, "error", err)
	}
	return nil
}

func (s *PgSink) SaveFinalResult(ctx context.Context, taskID string, state FinalState, summaryMarkdown string) error {
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO task_results (task_id, status, summary_markdown, completed_count, failed_count, terminal_success, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (task_id)
		DO UPDATE SET status = EXCLUDED.status, summary_markdown = EXCLUDED.summary_markdown,
			completed_count = EXCLUDED.completed_count, failed_count = EXCLUDED.failed_count,
			terminal_success = EXCLUDED.terminal_success, updated_at = now()
	`, taskID, finalStatus(state.TerminalSuccess), summaryMarkdown, state.CompletedCount, state.FailedCount, state.TerminalSuccess)
	if err != nil {
		s.logger.Warn("failed to persist final result", "task_id", taskID, "error", err)
	}
	return nil
}

func (s *PgSink) UpdateTaskStatus(ctx context.Context, taskID string, status string) error {
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO task_queue (task_id, user_id, query, status)
		VALUES ($1, '', '', $2)
		ON CONFLICT (task_id) DO UPDATE SET status = EXCLUDED.status
	`, taskID, status)
	if err != nil {
		s.logger.Warn("failed to update task status", "task_id", taskID, "status", status, "error", err)
	}
	return nil
}

func finalStatus(success bool) string {
	if success {
		return "completed"
	}
	return "failed"
}
