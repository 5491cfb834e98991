package conversation

import (
	"sync"
	"time"
)

// entry is one conversation's state, guarded by its own mutex so that
// inter-conversation operations never block each other (spec §4.4
// concurrency note).
type entry struct {
	mu           sync.Mutex
	systemPinned *Message
	messages     []Message
	createdAt    time.Time
	updatedAt    time.Time
}

// Store is the in-memory-only conversation table. There is no disk
// persistence path anywhere in this package, by design.
type Store struct {
	maxMessages int

	mu      sync.RWMutex
	entries map[string]*entry
}

func New(maxMessages int) *Store {
	return &Store{
		maxMessages: maxMessages,
		entries:     make(map[string]*entry),
	}
}

func (s *Store) entryFor(conversationID string) *entry {
	s.mu.RLock()
	e, ok := s.entries[conversationID]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[conversationID]; ok {
		return e
	}
	now := time.Now().UTC()
	e = &entry{createdAt: now, updatedAt: now}
	s.entries[conversationID] = e
	return e
}

// Append adds a message, creating the conversation on first use, and
// enforces the bounded-FIFO cap (spec §3 invariant C1, §4.4).
func (s *Store) Append(conversationID string, msg Message) {
	e := s.entryFor(conversationID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if msg.Role == RoleSystem {
		pinned := msg
		e.systemPinned = &pinned
		e.updatedAt = time.Now().UTC()
		return
	}

	e.messages = append(e.messages, msg)
	e.updatedAt = time.Now().UTC()
	e.messages = trim(e.messages, s.maxMessages)
}

// trim drops from the front until len(messages) <= max, never
// separating an Assistant tool-calls message from the Tool results
// that answer it (spec §4.4 trimming policy, property P5).
func trim(messages []Message, max int) []Message {
	for len(messages) > max {
		head := messages[0]
		dropCount := 1
		if head.Role == RoleAssistant && head.hasToolCalls() {
			ids := make(map[string]bool, len(head.ToolCalls))
			for _, tc := range head.ToolCalls {
				ids[tc.ID] = true
			}
			for dropCount < len(messages) {
				next := messages[dropCount]
				if next.Role == RoleTool && ids[next.ToolCallID] {
					dropCount++
					continue
				}
				break
			}
		}
		messages = messages[dropCount:]
	}
	return messages
}

// GetForInference returns the effective system prompt followed by the
// retained conversation, in order (spec §4.4).
func (s *Store) GetForInference(conversationID string, effectiveSystemPrompt string) []Message {
	e := s.entryFor(conversationID)
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Message, 0, len(e.messages)+1)
	out = append(out, SystemMessage(effectiveSystemPrompt))
	out = append(out, e.messages...)
	return out
}

// Clear removes a conversation entirely.
func (s *Store) Clear(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, conversationID)
}

// Len reports how many non-system messages a conversation currently holds.
func (s *Store) Len(conversationID string) int {
	e := s.entryFor(conversationID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.messages)
}

// ExpireIdle removes conversations whose updatedAt + ttl has passed.
// Called by the periodic sweeper (spec §4.4, §4.9 ambient task list).
func (s *Store) ExpireIdle(now time.Time, ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.entries {
		e.mu.Lock()
		expired := e.updatedAt.Add(ttl).Before(now)
		e.mu.Unlock()
		if expired {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}
