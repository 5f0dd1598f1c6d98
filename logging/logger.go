// Package logging provides a tiny abstraction over slog so downstream code can
// depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. It also offers a richer OrchestratorLogger with contextual
// helpers (session, step, component) and domain specific logging helpers for
// tools and model calls.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger defines the minimal logging interface used throughout the engine.
// This allows users to provide their own logger implementation or use the
// built-in adapters.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultSlogLogger creates a Logger using slog.Default().
func NewDefaultSlogLogger() Logger {
	return NewSlogAdapter(slog.Default())
}

// Config configures construction of an OrchestratorLogger.
type Config struct {
	Level     slog.Level
	Format    string // json or text
	Output    io.Writer
	AddSource bool
	Component string
	SessionID string
}

// DefaultConfig returns a baseline JSON info level configuration.
func DefaultConfig() *Config {
	return &Config{Level: slog.LevelInfo, Format: "json", Output: os.Stdout}
}

// OrchestratorLogger wraps slog.Logger adding contextual cloning helpers and
// domain convenience methods. It is cheap to copy via the With* methods.
type OrchestratorLogger struct {
	logger    *slog.Logger
	component string
	sessionID string
}

// NewLogger builds an OrchestratorLogger from a config (or defaults if nil).
func NewLogger(cfg *Config) *OrchestratorLogger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	opts := &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(cfg.Output, opts)
	} else {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}
	return &OrchestratorLogger{logger: slog.New(handler), component: cfg.Component, sessionID: cfg.SessionID}
}

// WithComponent sets the logical component (agent, tool, memory, loop, etc.).
func (l *OrchestratorLogger) WithComponent(c string) *OrchestratorLogger {
	nl := *l
	nl.component = c
	return &nl
}

// WithSession attaches a session identifier to every entry.
func (l *OrchestratorLogger) WithSession(sid string) *OrchestratorLogger {
	nl := *l
	nl.sessionID = sid
	return &nl
}

func (l *OrchestratorLogger) attrs(extra []slog.Attr) []slog.Attr {
	out := make([]slog.Attr, 0, len(extra)+2)
	if l.component != "" {
		out = append(out, slog.String("component", l.component))
	}
	if l.sessionID != "" {
		out = append(out, slog.String("session_id", l.sessionID))
	}
	return append(out, extra...)
}

func (l *OrchestratorLogger) log(level slog.Level, msg string, args ...any) {
	l.logger.LogAttrs(context.Background(), level, msg, l.attrs(argsToAttrs(args))...)
}

func argsToAttrs(args []any) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		attrs = append(attrs, slog.Any(key, args[i+1]))
	}
	return attrs
}

// Debug logs at debug level.
func (l *OrchestratorLogger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args...) }

// Info logs at info level.
func (l *OrchestratorLogger) Info(msg string, args ...any) { l.log(slog.LevelInfo, msg, args...) }

// Warn logs at warn level.
func (l *OrchestratorLogger) Warn(msg string, args ...any) { l.log(slog.LevelWarn, msg, args...) }

// Error logs at error level.
func (l *OrchestratorLogger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args...) }

// LogToolCall records execution details for a tool invocation.
func (l *OrchestratorLogger) LogToolCall(tool string, dur time.Duration, success bool) {
	level := slog.LevelInfo
	msg := "tool execution completed"
	if !success {
		level = slog.LevelWarn
		msg = "tool execution failed"
	}
	l.log(level, msg, "tool_name", tool, "duration_ms", dur.Milliseconds(), "success", success)
}

// LogLLMCall records model call latency and success.
func (l *OrchestratorLogger) LogLLMCall(model string, dur time.Duration, err error) {
	if err != nil {
		l.log(slog.LevelError, "llm call failed", "model", model, "duration_ms", dur.Milliseconds(), "error", err.Error())
		return
	}
	l.log(slog.LevelInfo, "llm call completed", "model", model, "duration_ms", dur.Milliseconds())
}

// LogStep records one orchestration loop iteration.
func (l *OrchestratorLogger) LogStep(step int, agent, action string) {
	l.log(slog.LevelDebug, "orchestration step", "step", step, "agent", agent, "action", action)
}

// NoOpLogger discards all log messages. Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}
