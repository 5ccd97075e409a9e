package tools

import (
	"context"
	"fmt"
	"strings"
)

// Tool is the interface that all tools must implement.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) *ToolResult
}

// ConfirmableTool is implemented by tools with side effects on the host.
// ConfirmAction describes the pending action for the confirm hook and the
// audit log; ok=false skips confirmation for these particular arguments.
type ConfirmableTool interface {
	Tool
	ConfirmAction(args map[string]interface{}) (kind, detail string, ok bool)
}

// ClosableTool is an optional interface for tools that hold runtime resources
// and require explicit teardown when the assistant stops.
type ClosableTool interface {
	Tool
	Close() error
}

func ToolToSchema(tool Tool) map[string]interface{} {
	return map[string]interface{}{
		"type": "function",
		"function": map[string]interface{}{
			"name":        tool.Name(),
			"description": tool.Description(),
			"parameters":  tool.Parameters(),
		},
	}
}

func objectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProperty(description string, enum ...string) map[string]interface{} {
	prop := map[string]interface{}{
		"type":        "string",
		"description": description,
	}
	if len(enum) > 0 {
		prop["enum"] = enum
	}
	return prop
}

// stringArg returns args[key] trimmed. Non-string scalars are formatted.
func stringArg(args map[string]interface{}, key string) string {
	raw, ok := args[key]
	if !ok || raw == nil {
		return ""
	}
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}
