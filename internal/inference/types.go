// Package inference implements the Inference Client (spec §4.6): a
// function-calling chat protocol client generalized from the teacher's
// pkg/providers.HTTPProvider — same retry-on-429 and response-parsing
// shape, now used exclusively against the tenant's configured remote
// inference endpoint rather than a swappable multi-provider registry.
package inference

import "github.com/sipeed/picobridge/internal/conversation"

// ToolDefinition is the function-calling schema sent alongside a request.
type ToolDefinition = map[string]interface{}

// ChatResponse is chat_with_tools's result: either content or tool_calls
// (or both, matching the Assistant-message invariant in spec §3).
type ChatResponse struct {
	Content      string
	ToolCalls    []conversation.ToolCall
	FinishReason string
	Usage        *Usage
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Model is one entry returned by list_models.
type Model struct {
	ID string `json:"id"`
}
