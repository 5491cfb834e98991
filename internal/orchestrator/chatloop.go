package orchestrator

import (
	"context"
	"fmt"

	"github.com/sipeed/picobridge/internal/conversation"
	"github.com/sipeed/picobridge/internal/inference"
	"github.com/sipeed/picobridge/internal/logger"
	"github.com/sipeed/picobridge/internal/transport"
)

// runChatLoop implements CHAT_LOOP (spec §4.9): a bounded iterative
// dialogue that interleaves model calls, tool invocations, and
// progress notifications, replying exactly once per inbound message.
func (o *Orchestrator) runChatLoop(ctx context.Context, conversationID string, msg transport.IncomingMessage) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.ToolLoopDeadline)
	defer cancel()

	o.conversations.Append(conversationID, conversation.UserMessage(msg.Text))
	model := o.modelFor(conversationID)

	for iter := 0; iter < o.cfg.MaxIterations; iter++ {
		if ctx.Err() != nil {
			o.reply(ctx, conversationID, msg.Source, msg.IsGroup, "Sorry, that took too long — please try again.")
			return
		}

		systemPrompt := o.effectiveSystemPrompt(conversationID)
		requestMsgs := o.conversations.GetForInference(conversationID, systemPrompt)

		resp, err := o.llm.ChatWithTools(ctx, requestMsgs, model, 0.7, 0, o.toolRegistry.Definitions())
		if err != nil {
			o.handleChatError(ctx, conversationID, msg, err)
			return
		}

		if len(resp.ToolCalls) == 0 {
			o.conversations.Append(conversationID, conversation.AssistantMessage(resp.Content, nil))
			o.reply(ctx, conversationID, msg.Source, msg.IsGroup, resp.Content)
			return
		}

		o.conversations.Append(conversationID, conversation.AssistantMessage(resp.Content, resp.ToolCalls))
		o.runToolCalls(ctx, conversationID, msg, resp.ToolCalls)
	}

	o.reply(ctx, conversationID, msg.Source, msg.IsGroup, "I've reached the tool-call limit for this message — please rephrase or try again.")
}

// runToolCalls executes each tool call in order, appending a matching
// Tool message for every one (spec §4.9: no concurrent execution in v1).
func (o *Orchestrator) runToolCalls(ctx context.Context, conversationID string, msg transport.IncomingMessage, calls []conversation.ToolCall) {
	for _, call := range calls {
		o.reply(ctx, conversationID, msg.Source, msg.IsGroup, fmt.Sprintf("🔧 Using %s...", call.Name))

		args, err := decodeArguments(call.Arguments)
		if err != nil {
			logger.WarnCF("orchestrator", "failed to decode tool arguments", map[string]interface{}{"tool": call.Name, "error": err.Error()})
		}

		result := o.executor.Execute(ctx, call.Name, args)
		o.conversations.Append(conversationID, conversation.ToolResultMessage(call.ID, result.Content))
	}
}

func (o *Orchestrator) handleChatError(ctx context.Context, conversationID string, msg transport.IncomingMessage, err error) {
	var ierr *inference.Error
	if e, ok := err.(*inference.Error); ok {
		ierr = e
	}
	if ierr == nil {
		logger.ErrorCF("orchestrator", "inference call failed", map[string]interface{}{"conversation_id": conversationID, "error": err.Error()})
		o.reply(ctx, conversationID, msg.Source, msg.IsGroup, "Sorry, something went wrong. Please try again.")
		return
	}

	switch ierr.Kind {
	case inference.KindEmptyResponse:
		o.reply(ctx, conversationID, msg.Source, msg.IsGroup, "I didn't get a usable response — please try rephrasing.")
	case inference.KindRateLimit:
		o.reply(ctx, conversationID, msg.Source, msg.IsGroup, "Too many requests right now — please try again shortly.")
	default:
		logger.ErrorCF("orchestrator", "inference call failed", map[string]interface{}{"conversation_id": conversationID, "kind": string(ierr.Kind), "error": err.Error()})
		o.reply(ctx, conversationID, msg.Source, msg.IsGroup, "Sorry, something went wrong. Please try again.")
	}
}
