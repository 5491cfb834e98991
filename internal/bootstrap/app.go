// Package bootstrap implements Process Bootstrap (spec §4.11): load
// configuration, construct every component, health-check what can be
// health-checked without aborting on failure, and supervise the
// long-lived tasks (receive loop, HTTP server, TTL sweeper) with
// golang.org/x/sync/errgroup — the same supervised-goroutine-set shape
// the rest of the pack uses for fan-out, generalized here onto
// top-level process lifetime instead of per-request work.
package bootstrap

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sipeed/picobridge/internal/adminsock"
	"github.com/sipeed/picobridge/internal/config"
	"github.com/sipeed/picobridge/internal/conversation"
	"github.com/sipeed/picobridge/internal/httpapi"
	"github.com/sipeed/picobridge/internal/inference"
	"github.com/sipeed/picobridge/internal/kv"
	"github.com/sipeed/picobridge/internal/logger"
	"github.com/sipeed/picobridge/internal/oracle"
	"github.com/sipeed/picobridge/internal/orchestrator"
	"github.com/sipeed/picobridge/internal/ratelimit"
	"github.com/sipeed/picobridge/internal/registry"
	"github.com/sipeed/picobridge/internal/tools"
	"github.com/sipeed/picobridge/internal/transport"
)

// App holds every constructed component for the process lifetime.
type App struct {
	cfg           *config.Config
	oracle        oracle.Oracle
	registry      *registry.Registry
	conversations *conversation.Store
	toolRegistry  *tools.Registry
	executor      *tools.Executor
	llm           *inference.Client
	transport     *transport.Client
	orchestrator  *orchestrator.Orchestrator
	httpServer    *http.Server
	adminSocket   *adminsock.Server
}

// New constructs every component in dependency order (spec §4.11: C1,
// C2, C3, C4, C5, C6, C7, then C8/C9).
func New(cfg *config.Config) *App {
	var oc oracle.Oracle = oracle.NewClient(cfg.Dstack.SocketPath)

	kvStore := kv.New(cfg.Registry.Path, oc, "app/registry")
	reg := registry.New(kvStore, cfg.Registry.Persist)

	convStore := conversation.New(cfg.Conversation.MaxMessages)

	toolRegistry := buildToolRegistry(cfg)
	executor := tools.NewExecutor(toolRegistry, 10*time.Second, 4000)

	llm := inference.NewClient(cfg.NearAI.BaseURL, inference.NewAPIKey(cfg.NearAI.APIKey))
	tr := transport.NewClient(cfg.Signal.ServiceURL)

	orch := orchestrator.New(
		orchestrator.Config{
			BotNumber:           cfg.Signal.PhoneNumber,
			DefaultSystemPrompt: cfg.Bot.SystemPrompt,
			DefaultModel:        cfg.NearAI.Model,
			MaxIterations:       cfg.Bot.MaxToolIterations,
			ToolLoopDeadline:    time.Duration(cfg.Bot.ToolLoopDeadline) * time.Second,
		},
		convStore, toolRegistry, executor, llm, oc, reg, tr,
	)

	rlGlobal := ratelimit.New(cfg.RateLimit.GlobalPerMinute, time.Minute)
	rlPerNumber := ratelimit.New(cfg.RateLimit.PerNumberPerHour, time.Hour)

	httpServer := httpapi.NewServer(
		httpapi.Config{
			SignalNumber:     cfg.Signal.PhoneNumber,
			CORSAllowOrigins: cfg.Server.CORSAllowOrigins,
			DebugEndpoints:   cfg.Server.DebugEndpoints,
		},
		reg, tr, oc, rlGlobal, rlPerNumber,
	)

	app := &App{
		cfg:           cfg,
		oracle:        oc,
		registry:      reg,
		conversations: convStore,
		toolRegistry:  toolRegistry,
		executor:      executor,
		llm:           llm,
		transport:     tr,
		orchestrator:  orch,
		httpServer: &http.Server{
			Addr:    cfg.Server.ListenAddr + ":" + strconv.Itoa(cfg.Server.Port),
			Handler: httpServer.Handler(),
		},
	}
	if cfg.Server.AdminSocketPath != "" {
		app.adminSocket = adminsock.New(cfg.Server.AdminSocketPath, app.adminCommand)
	}
	return app
}

func buildToolRegistry(cfg *config.Config) *tools.Registry {
	reg := tools.NewRegistry()
	if !cfg.Tools.Enabled {
		return reg
	}
	if cfg.Tools.Calculate.Enabled {
		reg.Register(tools.NewCalculateTool())
	}
	if cfg.Tools.GetWeather.Enabled {
		reg.Register(tools.NewWeatherTool())
	}
	if cfg.Tools.WebSearch.Enabled {
		reg.Register(tools.NewWebSearchTool(cfg.Tools.WebSearch.APIKey, cfg.Tools.WebSearch.MaxResults))
	}
	return reg
}

// Run loads the persisted registry, health-checks C6/C7 without
// aborting on failure, and blocks supervising the long-lived tasks
// until ctx is cancelled, then drains and flushes (spec §4.11).
func (a *App) Run(ctx context.Context) error {
	if err := a.registry.Load(ctx); err != nil {
		logger.ErrorCF("bootstrap", "failed to load registry from disk", map[string]interface{}{"error": err.Error()})
	}

	if !a.llm.HealthCheck(ctx) {
		logger.WarnCF("bootstrap", "inference service health check failed at startup", nil)
	}
	if !a.transport.HealthCheck(ctx) {
		logger.WarnCF("bootstrap", "chat transport health check failed at startup", nil)
	}

	queue := make(chan transport.IncomingMessage, 256)
	receiver := transport.NewReceiver(a.transport, a.cfg.Signal.PhoneNumber, time.Duration(a.cfg.Signal.PollInterval)*time.Second, queue, 200, func() int { return len(queue) })

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		receiver.Run(gctx)
		return nil
	})

	g.Go(func() error {
		// One orchestrator task per inbound message (spec §5): only
		// same-conversation work is serialized, via the orchestrator's
		// own per-conversation mutex, so a slow tool loop for one
		// conversation never blocks dequeuing messages for another.
		for {
			select {
			case <-gctx.Done():
				return nil
			case msg, ok := <-queue:
				if !ok {
					return nil
				}
				go a.orchestrator.HandleMessage(gctx, msg)
			}
		}
	})

	g.Go(func() error {
		runSweeper(gctx, a.conversations, time.Duration(a.cfg.Conversation.TTL)*time.Second, a.cfg.Registry.SweepCron)
		return nil
	})

	if a.adminSocket != nil {
		g.Go(func() error {
			if err := a.adminSocket.Run(gctx); err != nil {
				logger.WarnCF("bootstrap", "admin socket listener exited", map[string]interface{}{"error": err.Error()})
			}
			return nil
		})
	}

	g.Go(func() error {
		errCh := make(chan error, 1)
		go func() { errCh <- a.httpServer.ListenAndServe() }()
		select {
		case <-gctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return a.httpServer.Shutdown(shutdownCtx)
		case err := <-errCh:
			if err == http.ErrServerClosed {
				return nil
			}
			return err
		}
	})

	// The registry persists synchronously after every mutation (spec
	// §4.3), so there is no buffered state to flush here — shutdown
	// only needs to let in-flight mutations finish, which draining the
	// errgroup above already guarantees.
	return g.Wait()
}
