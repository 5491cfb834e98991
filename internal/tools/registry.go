package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sipeed/picobridge/internal/logger"
)

// Kind enumerates tool-execution failure categories (§7). Per spec
// §4.5, none of these propagate to the orchestrator as fatal errors —
// Executor always returns a Result, never a Go error.
type Kind string

const (
	KindNotFound Kind = "tool_not_found"
	KindTimeout  Kind = "timeout"
	KindFailed   Kind = "execution_failed"
)

// Result is what the orchestrator turns into a Tool message.
type Result struct {
	Content string
	Success bool
	Kind    Kind
}

// Registry holds the configured set of tools, keyed by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Definitions returns the function-calling schema for every registered
// tool, sorted by name so the request payload sent to the inference
// service is deterministic.
func (r *Registry) Definitions() []map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]map[string]interface{}, 0, len(names))
	for _, name := range names {
		out = append(out, Schema(r.tools[name]))
	}
	return out
}

// Executor wraps each registered tool's Execute with the timeout and
// output-length cap spec §4.5 mandates.
type Executor struct {
	registry  *Registry
	timeout   time.Duration
	maxOutput int
}

func NewExecutor(registry *Registry, timeout time.Duration, maxOutput int) *Executor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxOutput <= 0 {
		maxOutput = 4000
	}
	return &Executor{registry: registry, timeout: timeout, maxOutput: maxOutput}
}

// Execute runs a named tool with the hard timeout and truncates
// oversized output. Every failure mode — not-found, timeout, tool
// error — is surfaced as a Result{Success: false}, never a Go error,
// so the inference step can reason about it (spec §4.5).
func (e *Executor) Execute(ctx context.Context, name string, args map[string]interface{}) Result {
	tool, ok := e.registry.Get(name)
	if !ok {
		return Result{Success: false, Kind: KindNotFound, Content: fmt.Sprintf("tool %q is not available", name)}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type outcome struct {
		content string
		err     error
	}
	done := make(chan outcome, 1)
	start := time.Now()
	go func() {
		content, err := tool.Execute(ctx, args)
		done <- outcome{content: content, err: err}
	}()

	select {
	case <-ctx.Done():
		logger.WarnCF("tool", "tool execution timed out", map[string]interface{}{"tool": name, "timeout_ms": e.timeout.Milliseconds()})
		return Result{Success: false, Kind: KindTimeout, Content: fmt.Sprintf("tool %q timed out after %s", name, e.timeout)}
	case o := <-done:
		duration := time.Since(start)
		if o.err != nil {
			logger.WarnCF("tool", "tool execution failed", map[string]interface{}{"tool": name, "duration_ms": duration.Milliseconds(), "error": o.err.Error()})
			return Result{Success: false, Kind: KindFailed, Content: o.err.Error()}
		}
		logger.InfoCF("tool", "tool execution completed", map[string]interface{}{"tool": name, "duration_ms": duration.Milliseconds(), "result_length": len(o.content)})
		return Result{Success: true, Content: truncate(o.content, e.maxOutput)}
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return fmt.Sprintf("%s... [truncated, %d chars total]", s[:max], len(s))
}
