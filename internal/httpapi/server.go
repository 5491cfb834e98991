package httpapi

import (
	"context"
	"net/http"

	"github.com/sipeed/picobridge/internal/oracle"
	"github.com/sipeed/picobridge/internal/ratelimit"
	"github.com/sipeed/picobridge/internal/registry"
	"github.com/sipeed/picobridge/internal/transport"
)

// Transport is the subset of transport.Client the HTTP service needs.
type Transport interface {
	RegisterNumber(ctx context.Context, number string, useVoice bool, captcha string) error
	VerifyCode(ctx context.Context, number, code, pin string) error
	SetProfile(ctx context.Context, number, name, about string) error
	SetUsername(ctx context.Context, number, username string) error
	Accounts(ctx context.Context) ([]transport.Account, error)
	HealthCheck(ctx context.Context) bool
}

type Config struct {
	SignalNumber     string
	CORSAllowOrigins []string
	DebugEndpoints   bool
}

type Server struct {
	cfg        Config
	registry   *registry.Registry
	transport  Transport
	oracle     oracle.Oracle
	rlGlobal   *ratelimit.KeyedLimiter
	rlPerNumber *ratelimit.KeyedLimiter
}

func NewServer(cfg Config, reg *registry.Registry, tr Transport, or oracle.Oracle, rlGlobal, rlPerNumber *ratelimit.KeyedLimiter) *Server {
	return &Server{cfg: cfg, registry: reg, transport: tr, oracle: or, rlGlobal: rlGlobal, rlPerNumber: rlPerNumber}
}

// Handler builds the routed, CORS-wrapped http.Handler for this service.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/register/{number}", s.handleRegister)
	mux.HandleFunc("POST /v1/register/{number}/verify/{code}", s.handleVerifyCode)
	mux.HandleFunc("GET /v1/status/{number}", s.handleStatus)
	mux.HandleFunc("GET /v1/accounts", s.handleAccounts)
	mux.HandleFunc("GET /v1/bots", s.handleBots)
	mux.HandleFunc("DELETE /v1/unregister/{number}", s.handleUnregister)
	mux.HandleFunc("POST /v1/accounts/{number}/username", s.handleSetUsername)
	mux.HandleFunc("PUT /v1/profiles/{number}", s.handleSetProfile)
	mux.HandleFunc("GET /v1/attestation", s.handleAttestation)
	mux.HandleFunc("GET /health", s.handleHealth)

	if s.cfg.DebugEndpoints {
		mux.HandleFunc("POST /v1/debug/force-unregister/{number}", s.handleDebugForceUnregister)
		mux.HandleFunc("GET /v1/debug/signal-accounts", s.handleDebugSignalAccounts)
	}

	return requestIDMiddleware(corsMiddleware(s.cfg.CORSAllowOrigins, mux))
}
