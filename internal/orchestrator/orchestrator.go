// Package orchestrator implements the Bot Orchestrator (spec §4.9):
// per-conversation command dispatch and the LLM tool-use loop. It
// generalizes the teacher's pkg/agent.Loop — same iterate-call-tools-
// append shape — onto the chat-to-inference-proxy semantics: tenant
// lookup, attestation-backed !verify, and a hard per-message deadline.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/sipeed/picobridge/internal/conversation"
	"github.com/sipeed/picobridge/internal/inference"
	"github.com/sipeed/picobridge/internal/logger"
	"github.com/sipeed/picobridge/internal/oracle"
	"github.com/sipeed/picobridge/internal/registry"
	"github.com/sipeed/picobridge/internal/tools"
	"github.com/sipeed/picobridge/internal/transport"
)

// Sender is the subset of transport.Client the orchestrator needs to
// reply to a conversation.
type Sender interface {
	Send(ctx context.Context, number, recipient, text string, isGroup bool) error
}

// Registry is the subset of registry.Registry the orchestrator needs:
// a per-tenant model/system-prompt override lookup.
type Registry interface {
	Lookup(phone string) (registry.TenantRecord, bool)
}

// Config carries the orchestrator's tunable knobs (spec §6 BOT__*).
type Config struct {
	BotNumber           string
	DefaultSystemPrompt string
	DefaultModel        string
	MaxIterations       int
	ToolLoopDeadline    time.Duration
}

type Orchestrator struct {
	cfg          Config
	conversations *conversation.Store
	toolRegistry *tools.Registry
	executor     *tools.Executor
	llm          *inference.Client
	oracle       oracle.Oracle
	registry     Registry
	sender       Sender

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(cfg Config, conversations *conversation.Store, toolRegistry *tools.Registry, executor *tools.Executor, llm *inference.Client, or oracle.Oracle, reg Registry, sender Sender) *Orchestrator {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 8
	}
	if cfg.ToolLoopDeadline <= 0 {
		cfg.ToolLoopDeadline = 120 * time.Second
	}
	return &Orchestrator{
		cfg:           cfg,
		conversations: conversations,
		toolRegistry:  toolRegistry,
		executor:      executor,
		llm:           llm,
		oracle:        or,
		registry:      reg,
		sender:        sender,
		locks:         make(map[string]*sync.Mutex),
	}
}

func (o *Orchestrator) lockFor(conversationID string) *sync.Mutex {
	o.locksMu.Lock()
	defer o.locksMu.Unlock()
	l, ok := o.locks[conversationID]
	if !ok {
		l = &sync.Mutex{}
		o.locks[conversationID] = l
	}
	return l
}

// HandleMessage runs the RECEIVED → DISPATCH state machine for one
// inbound message (spec §4.9). It funnels same-conversation work
// through a per-conversation lock so no two iterations overlap.
func (o *Orchestrator) HandleMessage(ctx context.Context, msg transport.IncomingMessage) {
	conversationID := msg.Source
	if msg.IsGroup {
		conversationID = msg.GroupID
	}

	lock := o.lockFor(conversationID)
	lock.Lock()
	defer lock.Unlock()

	if isCommand(msg.Text) {
		o.dispatchCommand(ctx, conversationID, msg)
		return
	}
	o.runChatLoop(ctx, conversationID, msg)
}

func (o *Orchestrator) reply(ctx context.Context, conversationID, recipient string, isGroup bool, text string) {
	if err := o.sender.Send(ctx, o.cfg.BotNumber, recipient, text, isGroup); err != nil {
		logger.WarnCF("orchestrator", "failed to send reply", map[string]interface{}{"conversation_id": conversationID, "error": err.Error()})
	}
}

// effectiveSystemPrompt returns the tenant's override (if any) or the
// default, with the current timestamp appended every call so the
// model's sense of "today" always advances (spec §4.9).
func (o *Orchestrator) effectiveSystemPrompt(conversationID string) string {
	base := o.cfg.DefaultSystemPrompt
	if rec, ok := o.registry.Lookup(o.cfg.BotNumber); ok && rec.SystemPromptOverride != "" {
		base = rec.SystemPromptOverride
	}
	return base + "\nCurrent date and time: " + time.Now().UTC().Format(time.RFC3339)
}

func (o *Orchestrator) modelFor(conversationID string) string {
	if rec, ok := o.registry.Lookup(o.cfg.BotNumber); ok && rec.ModelID != "" {
		return rec.ModelID
	}
	return o.cfg.DefaultModel
}
