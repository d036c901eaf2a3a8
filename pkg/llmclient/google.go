package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"google.golang.org/genai"

	"github.com/flowforge/orchestrator/pkg/config"
)

// GoogleClient implements Client against the Gemini API.
type GoogleClient struct {
	client *genai.Client
	model  string
}

// NewGoogleClient builds a GoogleClient from cfg. The API key is read from
// the environment variable named by cfg.APIKeyEnv.
func NewGoogleClient(cfg *config.LLMProviderConfig) (Client, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  os.Getenv(cfg.APIKeyEnv),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("google: new client: %w", err)
	}

	return &GoogleClient{client: client, model: cfg.Model}, nil
}

// Generate sends the conversation to Gemini and streams the response back
// as chunks, including function-call parts as ToolCallChunk.
func (c *GoogleClient) Generate(ctx context.Context, input *GenerateInput) (<-chan Chunk, error) {
	contents, systemInstruction := toGeminiContents(input.Messages)

	genConfig := &genai.GenerateContentConfig{SystemInstruction: systemInstruction}
	if len(input.Tools) > 0 {
		genConfig.Tools = []*genai.Tool{toGeminiTool(input.Tools)}
	}

	stream := c.client.Models.GenerateContentStream(ctx, c.model, contents, genConfig)

	out := make(chan Chunk, 8)
	go func() {
		defer close(out)

		for resp, err := range stream {
			if err != nil {
				out <- &ErrorChunk{Message: err.Error(), Retryable: isRetryableGoogleErr(err)}
				return
			}

			for _, cand := range resp.Candidates {
				if cand.Content == nil {
					continue
				}
				for _, part := range cand.Content.Parts {
					switch {
					case part.Text != "" && part.Thought:
						out <- &ThinkingChunk{Content: part.Text}
					case part.Text != "":
						out <- &TextChunk{Content: part.Text}
					case part.FunctionCall != nil:
						args, _ := json.Marshal(part.FunctionCall.Args)
						out <- &ToolCallChunk{
							CallID:    part.FunctionCall.ID,
							Name:      part.FunctionCall.Name,
							Arguments: string(args),
						}
					}
				}
			}

			if resp.UsageMetadata != nil {
				out <- &UsageChunk{
					InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
					OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
					TotalTokens:  int(resp.UsageMetadata.TotalTokenCount),
				}
			}
		}
	}()

	return out, nil
}

// Close is a no-op; the genai client owns no long-lived connection that
// needs draining.
func (c *GoogleClient) Close() error { return nil }

func toGeminiContents(msgs []Message) ([]*genai.Content, *genai.Content) {
	var systemInstruction *genai.Content
	contents := make([]*genai.Content, 0, len(msgs))

	for _, m := range msgs {
		part := genai.NewPartFromText(m.Content)
		switch m.Role {
		case RoleSystem:
			systemInstruction = &genai.Content{Parts: []*genai.Part{part}}
		case RoleAssistant:
			contents = append(contents, &genai.Content{Role: "model", Parts: []*genai.Part{part}})
		case RoleTool:
			var result map[string]any
			_ = json.Unmarshal([]byte(m.Content), &result)
			if result == nil {
				result = map[string]any{"result": m.Content}
			}
			fr := genai.NewPartFromFunctionResponse(m.ToolName, result)
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{fr}})
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{part}})
		}
	}

	return contents, systemInstruction
}

func toGeminiTool(defs []ToolDefinition) *genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, d := range defs {
		var schema *genai.Schema
		if d.ParametersSchema != "" {
			_ = json.Unmarshal([]byte(d.ParametersSchema), &schema)
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  schema,
		})
	}
	return &genai.Tool{FunctionDeclarations: decls}
}

func isRetryableGoogleErr(err error) bool {
	var apiErr genai.APIError
	if ok := asGenaiAPIError(err, &apiErr); ok {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}
	return false
}

func asGenaiAPIError(err error, target *genai.APIError) bool {
	ae, ok := err.(genai.APIError)
	if !ok {
		return false
	}
	*target = ae
	return true
}
