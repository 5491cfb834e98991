package bootstrap

import (
	"context"
	"time"

	"github.com/adhocore/gronx"

	"github.com/sipeed/picobridge/internal/conversation"
	"github.com/sipeed/picobridge/internal/logger"
)

// runSweeper fires every minute by default (spec §5), removing idle
// conversations past their TTL. An operator-supplied cron expression
// (REGISTRY__SWEEP_CRON) overrides the fixed cadence — evaluated with
// adhocore/gronx, a teacher dependency the original pkg/ tree carried
// but never exercised.
func runSweeper(ctx context.Context, store *conversation.Store, ttl time.Duration, cronExpr string) {
	if cronExpr == "" {
		runFixedSweeper(ctx, store, ttl)
		return
	}
	runCronSweeper(ctx, store, ttl, cronExpr)
}

func runFixedSweeper(ctx context.Context, store *conversation.Store, ttl time.Duration) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepOnce(store, ttl)
		}
	}
}

func runCronSweeper(ctx context.Context, store *conversation.Store, ttl time.Duration, cronExpr string) {
	g := gronx.New()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			due, err := g.IsDue(cronExpr)
			if err != nil {
				logger.ErrorCF("bootstrap", "invalid sweep cron expression", map[string]interface{}{"expr": cronExpr, "error": err.Error()})
				runFixedSweeper(ctx, store, ttl)
				return
			}
			if due {
				sweepOnce(store, ttl)
			}
		}
	}
}

func sweepOnce(store *conversation.Store, ttl time.Duration) {
	removed := store.ExpireIdle(time.Now().UTC(), ttl)
	if removed > 0 {
		logger.InfoCF("bootstrap", "expired idle conversations", map[string]interface{}{"removed": removed})
	}
}
