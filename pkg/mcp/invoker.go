package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolDefinition describes one callable tool, with its name prefixed by the
// owning service ("kubernetes.get_pods"), for presentation to the Planner,
// Observer, Resolver, and Formatter.
type ToolDefinition struct {
	Name             string
	Description      string
	ParametersSchema string
}

// ExtractTextContent extracts text from an MCP CallToolResult. Concatenates
// all TextContent items; non-text content (images, embedded resources) is
// logged at debug level and skipped.
func ExtractTextContent(result *mcpsdk.CallToolResult) string {
	var parts []string
	for _, c := range result.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			parts = append(parts, tc.Text)
		} else {
			slog.Debug("MCP tool returned non-text content, skipping",
				"content_type", fmt.Sprintf("%T", c))
		}
	}
	return strings.Join(parts, "\n")
}

// MarshalSchema serializes a tool's InputSchema to a JSON string.
func MarshalSchema(schema any) string {
	if schema == nil {
		return ""
	}
	data, err := json.Marshal(schema)
	if err != nil {
		slog.Debug("Failed to marshal tool input schema", "error", err)
		return ""
	}
	return string(data)
}

// ListToolDescriptors returns the live tool list for one (user, service)
// connection as unprefixed ToolDefinitions, for callers — the Tool Resolver
// and Planner — that already track service and tool as separate fields.
func (m *Manager) ListToolDescriptors(ctx context.Context, userID, serviceName string) ([]ToolDefinition, error) {
	tools, err := m.ListTools(ctx, userID, serviceName)
	if err != nil {
		return nil, err
	}
	out := make([]ToolDefinition, 0, len(tools))
	for _, t := range tools {
		out = append(out, ToolDefinition{
			Name:             t.Name,
			Description:      t.Description,
			ParametersSchema: MarshalSchema(t.InputSchema),
		})
	}
	return out, nil
}
