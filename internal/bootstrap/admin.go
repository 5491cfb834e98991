package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/sipeed/picobridge/internal/oracle"
	"github.com/sipeed/picobridge/internal/registry"
)

// adminCommand answers one admin console line. It mirrors the surface
// of the chat "!" commands (internal/orchestrator/commands.go) plus
// operations that only make sense for an operator attached locally,
// such as listing every tenant's number and status or removing a claim
// without an ownership check.
func (a *App) adminCommand(ctx context.Context, line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "error: empty command"
	}

	switch fields[0] {
	case "help":
		return "commands: help, status, accounts, verify <challenge>, unregister <number>"

	case "status":
		snap := a.registry.Snapshot()
		verified := 0
		for _, rec := range snap {
			if rec.Status == registry.StatusVerified {
				verified++
			}
		}
		return fmt.Sprintf("tenants=%d verified=%d llm_ok=%v transport_ok=%v",
			len(snap), verified, a.llm.HealthCheck(ctx), a.transport.HealthCheck(ctx))

	case "accounts":
		snap := a.registry.Snapshot()
		if len(snap) == 0 {
			return "no registered numbers"
		}
		var b strings.Builder
		for i, rec := range snap {
			if i > 0 {
				b.WriteString("; ")
			}
			fmt.Fprintf(&b, "%s [%s]", rec.PhoneNumber, rec.Status)
		}
		return b.String()

	case "verify":
		if len(fields) < 2 {
			return "usage: verify <challenge>"
		}
		reportData := oracle.BuildReportData([]byte(fields[1]))
		if !a.oracle.InTEE(ctx) {
			return "not running inside a TDX enclave"
		}
		quote, err := a.oracle.GetQuote(ctx, reportData)
		if err != nil {
			return "error: " + err.Error()
		}
		return fmt.Sprintf("quote bytes=%d report_data=%x", len(quote.QuoteBytes), reportData)

	case "unregister":
		if len(fields) < 2 {
			return "usage: unregister <number>"
		}
		decision, err := a.registry.ForceUnregister(ctx, fields[1])
		if err != nil {
			return "error: " + err.Error()
		}
		return fmt.Sprintf("result=%s", decision.Kind)

	default:
		return "unknown command, try: help"
	}
}
