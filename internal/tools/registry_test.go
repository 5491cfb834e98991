package tools

import (
	"context"
	"testing"
	"time"
)

type slowTool struct{ delay time.Duration }

func (s *slowTool) Name() string                            { return "slow" }
func (s *slowTool) Description() string                      { return "sleeps" }
func (s *slowTool) Parameters() map[string]interface{}       { return map[string]interface{}{"type": "object"} }
func (s *slowTool) Execute(ctx context.Context, _ map[string]interface{}) (string, error) {
	select {
	case <-time.After(s.delay):
		return "done", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestExecutorTimeout(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&slowTool{delay: 200 * time.Millisecond})
	exec := NewExecutor(reg, 20*time.Millisecond, 4000)

	result := exec.Execute(context.Background(), "slow", nil)
	if result.Success {
		t.Fatal("expected timeout failure")
	}
	if result.Kind != KindTimeout {
		t.Fatalf("expected KindTimeout, got %v", result.Kind)
	}
}

func TestExecutorNotFound(t *testing.T) {
	exec := NewExecutor(NewRegistry(), time.Second, 4000)
	result := exec.Execute(context.Background(), "nonexistent", nil)
	if result.Success || result.Kind != KindNotFound {
		t.Fatalf("expected not_found failure, got %+v", result)
	}
}

func TestExecutorTruncatesOutput(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&slowTool{delay: 0})
	exec := NewExecutor(reg, time.Second, 2)
	result := exec.Execute(context.Background(), "slow", nil)
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.Content != "do... [truncated, 4 chars total]" {
		t.Fatalf("unexpected truncation: %q", result.Content)
	}
}

func TestDefinitionsSortedByName(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewCalculateTool())
	reg.Register(NewWeatherTool())
	defs := reg.Definitions()
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(defs))
	}
	for i, want := range []string{"calculate", "get_weather"} {
		fn, _ := defs[i]["function"].(map[string]interface{})
		if fn["name"] != want {
			t.Fatalf("definition %d name = %v, want %q", i, fn["name"], want)
		}
	}
}
