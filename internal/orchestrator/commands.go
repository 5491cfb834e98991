package orchestrator

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/sipeed/picobridge/internal/logger"
	"github.com/sipeed/picobridge/internal/oracle"
	"github.com/sipeed/picobridge/internal/transport"
)

func isCommand(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "!")
}

const helpText = `Available commands:
!help - show this message
!clear - forget this conversation's history
!verify <challenge> - get a hardware attestation quote bound to <challenge>
!models - list available inference models`

func (o *Orchestrator) dispatchCommand(ctx context.Context, conversationID string, msg transport.IncomingMessage) {
	fields := strings.Fields(strings.TrimSpace(msg.Text))
	cmd := strings.ToLower(fields[0])
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(msg.Text), fields[0]))

	switch cmd {
	case "!help":
		o.reply(ctx, conversationID, msg.Source, msg.IsGroup, helpText)
	case "!clear":
		o.conversations.Clear(conversationID)
		o.reply(ctx, conversationID, msg.Source, msg.IsGroup, "Conversation history cleared.")
	case "!verify":
		o.handleVerify(ctx, conversationID, msg, rest)
	case "!models":
		o.handleModels(ctx, conversationID, msg)
	default:
		o.reply(ctx, conversationID, msg.Source, msg.IsGroup, fmt.Sprintf("Unknown command %q. Try !help.", cmd))
	}
}

// handleVerify implements !verify (spec §4.9): build report_data the
// same way §4.8's HTTP attestation endpoint does, fetch a quote, and
// explain the result — distinguishing "not in a TEE" (benign) from
// "oracle unreachable" (operational error).
func (o *Orchestrator) handleVerify(ctx context.Context, conversationID string, msg transport.IncomingMessage, challenge string) {
	if challenge == "" {
		o.reply(ctx, conversationID, msg.Source, msg.IsGroup, "Usage: !verify <challenge text>")
		return
	}

	if !o.oracle.InTEE(ctx) {
		o.reply(ctx, conversationID, msg.Source, msg.IsGroup,
			"This instance is not running inside a TDX-attested enclave right now, so no hardware quote is available.")
		return
	}

	reportData := oracle.BuildReportData([]byte(challenge))
	hashed := len(challenge) > 64

	quote, err := o.oracle.GetQuote(ctx, reportData)
	if err != nil {
		logger.ErrorCF("orchestrator", "attestation oracle unreachable", map[string]interface{}{"conversation_id": conversationID, "error": err.Error()})
		o.reply(ctx, conversationID, msg.Source, msg.IsGroup, "The attestation oracle is unreachable right now — this is an operational error, not a verification failure.")
		return
	}

	appInfo, err := o.oracle.GetAppInfo(ctx)
	if err != nil {
		logger.ErrorCF("orchestrator", "attestation oracle unreachable", map[string]interface{}{"conversation_id": conversationID, "error": err.Error()})
		o.reply(ctx, conversationID, msg.Source, msg.IsGroup, "The attestation oracle is unreachable right now — this is an operational error, not a verification failure.")
		return
	}

	reply := fmt.Sprintf(
		"Challenge: %s\nHashed before binding: %v\nreport_data (hex): %s\ncompose_hash: %s\napp_id: %s\nquote (base64): %s\n\nVerify independently by reproducing report_data from the challenge and checking it against the quote at your TDX verification service of choice.",
		challenge, hashed, hex.EncodeToString(reportData[:]), appInfo.ComposeHash, appInfo.AppID,
		base64.StdEncoding.EncodeToString(quote.QuoteBytes),
	)
	o.reply(ctx, conversationID, msg.Source, msg.IsGroup, reply)
}

// handleModels implements !models: list up to 10, marking the active one.
func (o *Orchestrator) handleModels(ctx context.Context, conversationID string, msg transport.IncomingMessage) {
	models, err := o.llm.ListModels(ctx)
	if err != nil {
		logger.WarnCF("orchestrator", "list_models failed", map[string]interface{}{"conversation_id": conversationID, "error": err.Error()})
		o.reply(ctx, conversationID, msg.Source, msg.IsGroup, "Could not fetch the model list right now.")
		return
	}

	active := o.modelFor(conversationID)
	var b strings.Builder
	b.WriteString("Available models:\n")
	for i, m := range models {
		if i >= 10 {
			break
		}
		marker := "  "
		if m.ID == active {
			marker = "* "
		}
		fmt.Fprintf(&b, "%s%s\n", marker, m.ID)
	}
	o.reply(ctx, conversationID, msg.Source, msg.IsGroup, b.String())
}
