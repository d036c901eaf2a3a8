package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/flowforge/orchestrator/pkg/config"
)

// anthropicAPIVersion is the Messages API version header value Anthropic
// requires on every request.
const anthropicAPIVersion = "2023-06-01"

const defaultAnthropicBaseURL = "https://api.anthropic.com"

// AnthropicClient implements Client against the Anthropic Messages API via
// plain net/http. No Anthropic Go SDK appears anywhere in this project's
// dependency stack, so this client talks the REST API directly rather than
// pull in an unrelated third-party HTTP wrapper.
type AnthropicClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// NewAnthropicClient builds an AnthropicClient from cfg. The API key is
// read from the environment variable named by cfg.APIKeyEnv.
func NewAnthropicClient(cfg *config.LLMProviderConfig) (Client, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}

	return &AnthropicClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    baseURL,
		apiKey:     os.Getenv(cfg.APIKeyEnv),
		model:      cfg.Model,
	}, nil
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type anthropicTool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"input_schema,omitempty"`
}

type anthropicRequest struct {
	Model     string              `json:"model"`
	Messages  []anthropicMessage  `json:"messages"`
	System    string              `json:"system,omitempty"`
	MaxTokens int                 `json:"max_tokens"`
	Tools     []anthropicTool     `json:"tools,omitempty"`
}

type anthropicContentBlock struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Input any    `json:"input,omitempty"`
}

type anthropicResponse struct {
	Content []anthropicContentBlock `json:"content"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate sends the conversation to the Messages API and replays the
// response as a chunk stream. Anthropic's system prompt is a top-level
// request field rather than a message, so RoleSystem messages are
// collapsed into anthropicRequest.System.
func (c *AnthropicClient) Generate(ctx context.Context, input *GenerateInput) (<-chan Chunk, error) {
	req := anthropicRequest{
		Model:     c.model,
		MaxTokens: 4096,
	}

	for _, m := range input.Messages {
		if m.Role == RoleSystem {
			if req.System != "" {
				req.System += "\n\n"
			}
			req.System += m.Content
			continue
		}
		req.Messages = append(req.Messages, toAnthropicMessage(m))
	}

	for _, d := range input.Tools {
		var schema any
		if d.ParametersSchema != "" {
			_ = json.Unmarshal([]byte(d.ParametersSchema), &schema)
		}
		req.Tools = append(req.Tools, anthropicTool{Name: d.Name, Description: d.Description, InputSchema: schema})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic: build request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("anthropic: read response: %w", err)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("anthropic: decode response: %w", err)
	}

	out := make(chan Chunk, len(parsed.Content)+2)
	go func() {
		defer close(out)

		if parsed.Error != nil {
			out <- &ErrorChunk{Message: parsed.Error.Message, Retryable: resp.StatusCode == 429 || resp.StatusCode >= 500}
			return
		}

		for _, block := range parsed.Content {
			switch block.Type {
			case "text":
				out <- &TextChunk{Content: block.Text}
			case "thinking":
				out <- &ThinkingChunk{Content: block.Text}
			case "tool_use":
				args, _ := json.Marshal(block.Input)
				out <- &ToolCallChunk{CallID: block.ID, Name: block.Name, Arguments: string(args)}
			}
		}

		out <- &UsageChunk{
			InputTokens:  parsed.Usage.InputTokens,
			OutputTokens: parsed.Usage.OutputTokens,
			TotalTokens:  parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
		}
	}()

	return out, nil
}

// Close is a no-op; the underlying http.Client pools its own connections.
func (c *AnthropicClient) Close() error { return nil }

func toAnthropicMessage(m Message) anthropicMessage {
	switch m.Role {
	case RoleTool:
		return anthropicMessage{
			Role: "user",
			Content: []anthropicContentBlock{{
				Type: "tool_result",
				Text: m.Content,
				ID:   m.ToolCallID,
			}},
		}
	case RoleAssistant:
		return anthropicMessage{Role: "assistant", Content: m.Content}
	default:
		return anthropicMessage{Role: "user", Content: m.Content}
	}
}
