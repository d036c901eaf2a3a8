// Package llmclient provides a provider-agnostic streaming interface over
// the LLM backends configured in pkg/config (Google Gemini, OpenAI, and
// Anthropic), used by the Planner, Observer, Resolver, and Event Stream
// Formatter.
package llmclient

import (
	"context"

	"github.com/flowforge/orchestrator/pkg/config"
)

// Client is the interface every provider backend implements. Generate always
// streams; buffered callers (Planner, Observer, Resolver) simply drain the
// channel to completion before using the accumulated text, while the
// Formatter consumes chunks as they arrive.
type Client interface {
	// Generate sends a conversation to the LLM and returns a stream of
	// chunks. The returned channel is closed when the stream completes.
	// Mid-stream provider errors are delivered as ErrorChunk values rather
	// than a channel close with no chunks.
	Generate(ctx context.Context, input *GenerateInput) (<-chan Chunk, error)

	// Close releases any underlying connection (HTTP transport pools, etc).
	Close() error
}

// GenerateInput is the provider-agnostic representation of a single
// Generate request.
type GenerateInput struct {
	TaskID string
	StepID string

	Messages []Message
	Config   *config.LLMProviderConfig
	Tools    []ToolDefinition // nil = no tools offered this call
}

// Conversation message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is the provider-agnostic conversation message type.
type Message struct {
	Role       string // RoleSystem, RoleUser, RoleAssistant, RoleTool
	Content    string
	ToolCalls  []ToolCall // for assistant messages
	ToolCallID string     // for tool result messages
	ToolName   string     // for tool result messages
}

// ToolDefinition describes a tool available to the LLM for this call.
type ToolDefinition struct {
	Name             string
	Description      string
	ParametersSchema string // JSON Schema
}

// ToolCall represents the LLM's request to call a tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // JSON
}

// Chunk is the sum type for all streaming chunk variants.
type Chunk interface {
	chunkType() ChunkType
}

// ChunkType identifies the kind of streaming chunk.
type ChunkType string

const (
	ChunkTypeText     ChunkType = "text"
	ChunkTypeThinking ChunkType = "thinking"
	ChunkTypeToolCall ChunkType = "tool_call"
	ChunkTypeUsage    ChunkType = "usage"
	ChunkTypeError    ChunkType = "error"
)

// TextChunk is a chunk of the LLM's visible text response.
type TextChunk struct{ Content string }

// ThinkingChunk is a chunk of the LLM's internal reasoning, when the
// provider exposes one (e.g. Gemini thinking mode).
type ThinkingChunk struct{ Content string }

// ToolCallChunk signals the LLM wants to call a tool.
type ToolCallChunk struct{ CallID, Name, Arguments string }

// UsageChunk reports token consumption for the call.
type UsageChunk struct{ InputTokens, OutputTokens, TotalTokens int }

// ErrorChunk signals an error surfaced mid-stream by the provider.
type ErrorChunk struct {
	Message   string
	Retryable bool
}

func (c *TextChunk) chunkType() ChunkType     { return ChunkTypeText }
func (c *ThinkingChunk) chunkType() ChunkType { return ChunkTypeThinking }
func (c *ToolCallChunk) chunkType() ChunkType { return ChunkTypeToolCall }
func (c *UsageChunk) chunkType() ChunkType    { return ChunkTypeUsage }
func (c *ErrorChunk) chunkType() ChunkType    { return ChunkTypeError }

// Drain consumes a chunk stream to completion and concatenates all TextChunk
// content, for buffered call shapes (Planner, Observer, Resolver) that do
// not need incremental delivery. Returns the first ErrorChunk encountered,
// if any, as a Go error.
func Drain(ch <-chan Chunk) (string, []ToolCallChunk, error) {
	var text string
	var calls []ToolCallChunk
	var firstErr error

	for chunk := range ch {
		switch c := chunk.(type) {
		case *TextChunk:
			text += c.Content
		case *ToolCallChunk:
			calls = append(calls, *c)
		case *ErrorChunk:
			if firstErr == nil {
				firstErr = &ProviderError{Message: c.Message, Retryable: c.Retryable}
			}
		}
	}

	return text, calls, firstErr
}

// ProviderError wraps a mid-stream ErrorChunk as a Go error.
type ProviderError struct {
	Message   string
	Retryable bool
}

func (e *ProviderError) Error() string { return e.Message }
