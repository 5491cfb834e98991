// Package config loads picobridge's configuration from the environment,
// using "__" as the nested-section separator (spec §6). It follows the
// teacher's pkg/config.go convention of tagging every field with its
// env var name and supplying defaults via caarlos0/env's envDefault tag,
// but — unlike the teacher — has no on-disk JSON config layer: the
// environment is the only source of truth.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Signal      SignalConfig      `envPrefix:"SIGNAL__"`
	NearAI      NearAIConfig      `envPrefix:"NEAR_AI__"`
	Conversation ConversationConfig `envPrefix:"CONVERSATION__"`
	Bot         BotConfig         `envPrefix:"BOT__"`
	Dstack      DstackConfig      `envPrefix:"DSTACK__"`
	Registry    RegistryConfig    `envPrefix:"REGISTRY__"`
	Server      ServerConfig      `envPrefix:"SERVER__"`
	RateLimit   RateLimitConfig   `envPrefix:"RATE_LIMIT__"`
	Tools       ToolsConfig       `envPrefix:"TOOLS__"`
}

type SignalConfig struct {
	ServiceURL   string `env:"SERVICE_URL" envDefault:"http://127.0.0.1:8080"`
	PhoneNumber  string `env:"PHONE_NUMBER"`
	PollInterval int    `env:"POLL_INTERVAL" envDefault:"2"` // seconds
}

type NearAIConfig struct {
	APIKey     string `env:"API_KEY"`
	BaseURL    string `env:"BASE_URL" envDefault:"https://api.near.ai/v1"`
	Model      string `env:"MODEL" envDefault:"fireworks::llama-v3p1-70b-instruct"`
	Timeout    int    `env:"TIMEOUT" envDefault:"60"` // seconds
	MaxRetries int    `env:"MAX_RETRIES" envDefault:"3"`
}

type ConversationConfig struct {
	TTL         int `env:"TTL" envDefault:"3600"` // seconds
	MaxMessages int `env:"MAX_MESSAGES" envDefault:"40"`
}

type BotConfig struct {
	SystemPrompt      string `env:"SYSTEM_PROMPT" envDefault:"You are a helpful assistant running inside a confidential computing enclave."`
	LogLevel          string `env:"LOG_LEVEL" envDefault:"info"`
	MaxToolIterations int    `env:"MAX_TOOL_ITERATIONS" envDefault:"8"`
	ToolLoopDeadline  int    `env:"TOOL_LOOP_DEADLINE" envDefault:"120"` // seconds, §4.9
}

type DstackConfig struct {
	SocketPath string `env:"SOCKET_PATH" envDefault:"/var/run/dstack.sock"`
}

type RegistryConfig struct {
	Path    string `env:"PATH" envDefault:"/data/registry.enc"`
	Persist bool   `env:"PERSIST" envDefault:"true"`
	// SweepCron optionally overrides the fixed one-minute TTL sweep (§5)
	// with a cron expression, parsed by github.com/adhocore/gronx.
	SweepCron string `env:"SWEEP_CRON"`
}

type ServerConfig struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:"0.0.0.0"`
	Port       int    `env:"PORT" envDefault:"8081"`
	// CORSAllowOrigins is a comma-separated allow-list; "*" disables the check.
	CORSAllowOrigins []string `env:"CORS_ALLOW_ORIGINS" envSeparator:","`
	DebugEndpoints   bool     `env:"DEBUG_ENDPOINTS" envDefault:"false"`
	// AdminSocketPath, if set, starts a local admin console listener
	// (cmd/picobridge-console attaches here) alongside the HTTP server.
	AdminSocketPath string `env:"ADMIN_SOCKET_PATH" envDefault:"/data/picobridge-admin.sock"`
}

type RateLimitConfig struct {
	GlobalPerMinute   int `env:"GLOBAL_PER_MINUTE" envDefault:"30"`
	PerNumberPerHour  int `env:"PER_NUMBER_PER_HOUR" envDefault:"10"`
}

type ToolConfig struct {
	Enabled bool   `env:"ENABLED" envDefault:"true"`
	APIKey  string `env:"API_KEY"`
}

type WebSearchToolConfig struct {
	Enabled    bool   `env:"ENABLED" envDefault:"true"`
	APIKey     string `env:"API_KEY"`
	MaxResults int    `env:"MAX_RESULTS" envDefault:"5"`
}

type ToolsConfig struct {
	Enabled      bool                `env:"ENABLED" envDefault:"true"`
	MaxToolCalls int                 `env:"MAX_TOOL_CALLS" envDefault:"8"`
	Calculate    ToolConfig          `envPrefix:"CALCULATE__"`
	GetWeather   ToolConfig          `envPrefix:"GET_WEATHER__"`
	WebSearch    WebSearchToolConfig `envPrefix:"WEB_SEARCH__"`
}

// Load parses the environment into a Config, applying envDefault tags
// for anything unset. It never reads a file.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	return cfg, nil
}
