package conversation

import (
	"testing"
	"time"
)

func TestAppendCreatesAndCaps(t *testing.T) {
	s := New(3)
	for i := 0; i < 5; i++ {
		s.Append("c1", UserMessage("hello"))
	}
	if got := s.Len("c1"); got != 3 {
		t.Fatalf("expected cap of 3 messages, got %d", got)
	}
}

func TestTrimPreservesToolPairing(t *testing.T) {
	s := New(2)
	s.Append("c1", UserMessage("what is 2^10?"))
	s.Append("c1", AssistantMessage("", []ToolCall{{ID: "call_1", Name: "calculate", Arguments: "{}"}}))
	s.Append("c1", ToolResultMessage("call_1", "1024"))
	s.Append("c1", AssistantMessage("It's 1024.", nil))

	msgs := s.GetForInference("c1", "system")
	// system + whatever survived; assert no orphaned Tool message.
	seenIDs := map[string]bool{}
	for _, m := range msgs {
		if m.Role == RoleAssistant {
			for _, tc := range m.ToolCalls {
				seenIDs[tc.ID] = true
			}
		}
	}
	for _, m := range msgs {
		if m.Role == RoleTool && !seenIDs[m.ToolCallID] {
			t.Fatalf("found orphaned tool message referencing %q: %+v", m.ToolCallID, msgs)
		}
	}
}

func TestSystemMessagePinned(t *testing.T) {
	s := New(5)
	s.Append("c1", UserMessage("hi"))
	msgs := s.GetForInference("c1", "you are a bot")
	if msgs[0].Role != RoleSystem || msgs[0].Content != "you are a bot" {
		t.Fatalf("expected pinned system message first, got %+v", msgs[0])
	}
}

func TestClear(t *testing.T) {
	s := New(5)
	s.Append("c1", UserMessage("hi"))
	s.Append("c1", UserMessage("hi again"))
	s.Clear("c1")
	if got := s.Len("c1"); got != 0 {
		t.Fatalf("expected 0 messages after clear, got %d", got)
	}
}

func TestExpireIdle(t *testing.T) {
	s := New(5)
	s.Append("stale", UserMessage("hi"))
	s.Append("fresh", UserMessage("hi"))

	stale := s.entries["stale"]
	stale.mu.Lock()
	stale.updatedAt = time.Now().UTC().Add(-2 * time.Hour)
	stale.mu.Unlock()

	removed := s.ExpireIdle(time.Now().UTC(), time.Hour)
	if removed != 1 {
		t.Fatalf("expected to remove 1 stale conversation, got %d", removed)
	}
	if _, ok := s.entries["stale"]; ok {
		t.Fatal("stale conversation should be gone")
	}
	if _, ok := s.entries["fresh"]; !ok {
		t.Fatal("fresh conversation should remain")
	}
}
