package mcp

import (
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
)

func TestExtractTextContent(t *testing.T) {
	tests := []struct {
		name     string
		result   *mcpsdk.CallToolResult
		expected string
	}{
		{
			name:     "single text block",
			result:   &mcpsdk.CallToolResult{Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: "pod-1, pod-2"}}},
			expected: "pod-1, pod-2",
		},
		{
			name: "multiple text blocks joined with newline",
			result: &mcpsdk.CallToolResult{Content: []mcpsdk.Content{
				&mcpsdk.TextContent{Text: "line one"},
				&mcpsdk.TextContent{Text: "line two"},
			}},
			expected: "line one\nline two",
		},
		{
			name:     "no content returns empty string",
			result:   &mcpsdk.CallToolResult{},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractTextContent(tt.result))
		})
	}
}

func TestMarshalSchema(t *testing.T) {
	t.Run("nil schema returns empty string", func(t *testing.T) {
		assert.Equal(t, "", MarshalSchema(nil))
	})

	t.Run("marshals a schema map", func(t *testing.T) {
		schema := map[string]any{"type": "object", "properties": map[string]any{"namespace": map[string]any{"type": "string"}}}
		got := MarshalSchema(schema)
		assert.Contains(t, got, `"type":"object"`)
		assert.Contains(t, got, `"namespace"`)
	})

	t.Run("unmarshalable value returns empty string", func(t *testing.T) {
		got := MarshalSchema(make(chan int))
		assert.Equal(t, "", got)
	})
}
