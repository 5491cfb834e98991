// Command picobridge runs the chat-to-inference proxy: it loads
// configuration from the environment, wires every component via
// internal/bootstrap, and blocks until SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sipeed/picobridge/internal/bootstrap"
	"github.com/sipeed/picobridge/internal/config"
	"github.com/sipeed/picobridge/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "picobridge: config error: %v\n", err)
		os.Exit(1)
	}

	logger.SetLevel(logger.ParseLevel(cfg.Bot.LogLevel))

	app := bootstrap.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.InfoCF("main", "starting picobridge", map[string]interface{}{
		"signal_number": cfg.Signal.PhoneNumber,
		"listen_addr":   fmt.Sprintf("%s:%d", cfg.Server.ListenAddr, cfg.Server.Port),
	})

	if err := app.Run(ctx); err != nil {
		logger.ErrorCF("main", "picobridge exited with error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}
