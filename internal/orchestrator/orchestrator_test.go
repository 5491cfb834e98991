package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sipeed/picobridge/internal/conversation"
	"github.com/sipeed/picobridge/internal/inference"
	"github.com/sipeed/picobridge/internal/oracle"
	"github.com/sipeed/picobridge/internal/registry"
	"github.com/sipeed/picobridge/internal/transport"
	"github.com/sipeed/picobridge/internal/tools"
)

type fakeRegistry struct{}

func (fakeRegistry) Lookup(phone string) (registry.TenantRecord, bool) { return registry.TenantRecord{}, false }

type fakeSender struct {
	mu      sync.Mutex
	replies []string
}

func (f *fakeSender) Send(ctx context.Context, number, recipient, text string, isGroup bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, text)
	return nil
}

func TestCalculatorToolLoop(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"choices": []map[string]interface{}{
					{
						"message": map[string]interface{}{
							"content": "",
							"tool_calls": []map[string]interface{}{
								{"id": "call_1", "function": map[string]interface{}{"name": "calculate", "arguments": `{"expression":"2^10"}`}},
							},
						},
					},
				},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{"content": "It's 1024."}},
			},
		})
	}))
	defer srv.Close()

	convStore := conversation.New(40)
	toolReg := tools.NewRegistry()
	toolReg.Register(tools.NewCalculateTool())
	executor := tools.NewExecutor(toolReg, 10*time.Second, 4000)
	llm := inference.NewClient(srv.URL, inference.NewAPIKey(""))
	sender := &fakeSender{}

	o := New(Config{BotNumber: "+10000000000", DefaultSystemPrompt: "be helpful", DefaultModel: "test-model"},
		convStore, toolReg, executor, llm, oracle.NewStub(), fakeRegistry{}, sender)

	o.HandleMessage(context.Background(), transport.IncomingMessage{Source: "+15550100", Text: "what is 2^10?"})

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.replies) != 2 {
		t.Fatalf("expected progress + final reply, got %v", sender.replies)
	}
	if sender.replies[0] != "🔧 Using calculate..." {
		t.Fatalf("unexpected progress message: %q", sender.replies[0])
	}
	if sender.replies[1] != "It's 1024." {
		t.Fatalf("unexpected final reply: %q", sender.replies[1])
	}
}

func TestClearCommand(t *testing.T) {
	convStore := conversation.New(40)
	convStore.Append("+15550100", conversation.UserMessage("hi"))

	toolReg := tools.NewRegistry()
	executor := tools.NewExecutor(toolReg, time.Second, 100)
	llm := inference.NewClient("http://unused.invalid", inference.NewAPIKey(""))
	sender := &fakeSender{}

	o := New(Config{BotNumber: "+1", DefaultSystemPrompt: "sys"}, convStore, toolReg, executor, llm, oracle.NewStub(), fakeRegistry{}, sender)
	o.HandleMessage(context.Background(), transport.IncomingMessage{Source: "+15550100", Text: "!clear"})

	if convStore.Len("+15550100") != 0 {
		t.Fatal("expected conversation to be cleared")
	}
	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.replies) != 1 || sender.replies[0] != "Conversation history cleared." {
		t.Fatalf("unexpected reply: %v", sender.replies)
	}
}
