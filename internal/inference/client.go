package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sipeed/picobridge/internal/conversation"
	"github.com/sipeed/picobridge/internal/logger"
)

const maxRetries = 3

// Client speaks the function-calling chat protocol of the configured
// remote inference service (spec §4.6).
type Client struct {
	apiBase    string
	apiKey     APIKey
	userAgent  string
	httpClient *http.Client
}

func NewClient(apiBase string, apiKey APIKey) *Client {
	return &Client{
		apiBase:    strings.TrimRight(apiBase, "/"),
		apiKey:     apiKey,
		userAgent:  "picobridge/1.0",
		httpClient: &http.Client{Timeout: 0},
	}
}

type wireMessage struct {
	Role       string                  `json:"role"`
	Content    string                  `json:"content,omitempty"`
	ToolCalls  []wireToolCall          `json:"tool_calls,omitempty"`
	ToolCallID string                  `json:"tool_call_id,omitempty"`
}

type wireToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function wireToolCallFunc `json:"function"`
}

type wireToolCallFunc struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

func toWireMessages(messages []conversation.Message) []wireMessage {
	out := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		wm := wireMessage{Role: string(m.Role), Content: m.Content, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: wireToolCallFunc{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, wm)
	}
	return out
}

// ChatWithTools sends a chat-completion request and returns the first
// choice's content or tool_calls (spec §4.6).
func (c *Client) ChatWithTools(ctx context.Context, messages []conversation.Message, model string, temperature float64, maxTokens int, tools []ToolDefinition) (*ChatResponse, error) {
	if c.apiBase == "" {
		return nil, &Error{Kind: KindTransport, Err: fmt.Errorf("inference API base not configured")}
	}

	requestBody := map[string]interface{}{
		"model":       model,
		"messages":    toWireMessages(messages),
		"temperature": temperature,
	}
	if maxTokens > 0 {
		requestBody["max_tokens"] = maxTokens
	}
	if len(tools) > 0 {
		requestBody["tools"] = tools
		requestBody["tool_choice"] = "auto"
	}

	payload, err := json.Marshal(requestBody)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Err: err}
	}

	var body []byte
	var status int
	for attempt := 0; attempt <= maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return nil, &Error{Kind: KindTransport, Err: err}
		}
		req.Header.Set("Content-Type", "application/json")
		if !c.apiKey.Empty() {
			req.Header.Set("Authorization", "Bearer "+c.apiKey.Reveal())
		}
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, &Error{Kind: KindTransport, Err: err}
		}
		body, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, &Error{Kind: KindTransport, Err: err}
		}
		status = resp.StatusCode

		if status == http.StatusOK {
			return parseChatResponse(body)
		}
		if status == http.StatusUnauthorized {
			return nil, &Error{Kind: KindUnauthorized, Status: status}
		}
		if status == http.StatusTooManyRequests {
			if attempt < maxRetries {
				delay := parseRetryDelay(resp.Header.Get("Retry-After"))
				logger.WarnCF("inference", "rate limited, retrying", map[string]interface{}{"attempt": attempt + 1, "delay_ms": delay.Milliseconds()})
				select {
				case <-ctx.Done():
					return nil, &Error{Kind: KindTransport, Err: ctx.Err()}
				case <-time.After(delay):
					continue
				}
			}
			return nil, &Error{Kind: KindRateLimit, Status: status}
		}
		return nil, &Error{Kind: KindAPI, Status: status, Message: string(body)}
	}

	return nil, &Error{Kind: KindAPI, Status: status, Message: string(body)}
}

func parseRetryDelay(header string) time.Duration {
	if header == "" {
		return time.Second
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second
	}
	return time.Second
}

func parseChatResponse(body []byte) (*ChatResponse, error) {
	var wire struct {
		Choices []struct {
			Message struct {
				Content   string `json:"content"`
				ToolCalls []struct {
					ID       string `json:"id"`
					Function struct {
						Name      string `json:"name"`
						Arguments string `json:"arguments"`
					} `json:"function"`
				} `json:"tool_calls"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage *Usage `json:"usage"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, &Error{Kind: KindTransport, Err: err}
	}
	if len(wire.Choices) == 0 {
		return nil, &Error{Kind: KindEmptyResponse}
	}

	choice := wire.Choices[0]
	calls := make([]conversation.ToolCall, 0, len(choice.Message.ToolCalls))
	for _, tc := range choice.Message.ToolCalls {
		calls = append(calls, conversation.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
	}

	return &ChatResponse{
		Content:      choice.Message.Content,
		ToolCalls:    calls,
		FinishReason: choice.FinishReason,
		Usage:        wire.Usage,
	}, nil
}

// ListModels returns the models the endpoint currently serves.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/models", nil)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Err: err}
	}
	if !c.apiKey.Empty() {
		req.Header.Set("Authorization", "Bearer "+c.apiKey.Reveal())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Err: err}
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, &Error{Kind: KindUnauthorized, Status: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Kind: KindAPI, Status: resp.StatusCode, Message: string(body)}
	}

	var wire struct {
		Data []Model `json:"data"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, &Error{Kind: KindTransport, Err: err}
	}
	return wire.Data, nil
}

// HealthCheck reports whether the inference endpoint is reachable.
func (c *Client) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := c.ListModels(ctx)
	return err == nil
}
