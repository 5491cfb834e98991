// Package tools implements the Tool Registry + Executor (spec §4.5):
// named JSON-schema-declared functions the inference client's
// function-calling surface can invoke, wrapped with a hard timeout and
// an output-length cap. Grounded on the teacher's pkg/tools package
// shape (Tool interface, ToolRegistry, the web.go SSRF-safe HTTP
// client pattern).
package tools

import "context"

// Tool is a named, side-effecting function exposed to the inference
// service's function-calling surface.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) (string, error)
}

// Schema returns the OpenAI-style function-calling declaration for a tool.
func Schema(t Tool) map[string]interface{} {
	return map[string]interface{}{
		"type": "function",
		"function": map[string]interface{}{
			"name":        t.Name(),
			"description": t.Description(),
			"parameters":  t.Parameters(),
		},
	}
}
