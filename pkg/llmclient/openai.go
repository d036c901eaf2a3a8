package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"

	"github.com/flowforge/orchestrator/pkg/config"
)

// OpenAIClient implements Client against the OpenAI chat completions API.
type OpenAIClient struct {
	client openai.Client
	model  string
}

// NewOpenAIClient builds an OpenAIClient from cfg. The API key is read from
// the environment variable named by cfg.APIKeyEnv.
func NewOpenAIClient(cfg *config.LLMProviderConfig) (Client, error) {
	opts := []option.RequestOption{option.WithAPIKey(os.Getenv(cfg.APIKeyEnv))}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
	}, nil
}

// Generate issues a single chat completion and replays it as a chunk stream.
// The go-openai client used here buffers the full response rather than
// true SSE streaming; callers that need incremental delivery (the
// Formatter) still see chunk-at-a-time semantics because we emit one
// TextChunk per completion choice rather than one chunk for the whole
// response.
func (c *OpenAIClient) Generate(ctx context.Context, input *GenerateInput) (<-chan Chunk, error) {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.model),
		Messages: toOpenAIMessages(input.Messages),
	}
	if len(input.Tools) > 0 {
		params.Tools = toOpenAITools(input.Tools)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: chat completion: %w", err)
	}

	out := make(chan Chunk, len(resp.Choices)+2)
	go func() {
		defer close(out)

		for _, choice := range resp.Choices {
			if choice.Message.Content != "" {
				out <- &TextChunk{Content: choice.Message.Content}
			}
			for _, tc := range choice.Message.ToolCalls {
				out <- &ToolCallChunk{
					CallID:    tc.ID,
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				}
			}
		}

		out <- &UsageChunk{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		}
	}()

	return out, nil
}

// Close is a no-op; the openai-go client owns no long-lived connection.
func (c *OpenAIClient) Close() error { return nil }

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		case RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func toOpenAITools(defs []ToolDefinition) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(defs))
	for _, d := range defs {
		var schema map[string]any
		if d.ParametersSchema != "" {
			_ = json.Unmarshal([]byte(d.ParametersSchema), &schema)
		}
		out = append(out, openai.ChatCompletionToolParam{
			Type: constant.Function("function"),
			Function: shared.FunctionDefinitionParam{
				Name:        d.Name,
				Description: param.NewOpt(d.Description),
				Parameters:  shared.FunctionParameters(schema),
			},
		})
	}
	return out
}
