// Package logger wraps log/slog the way pkg/logger does across the
// monorepo: a sync.Once-guarded global, a small Config struct, and a
// choice of JSON or text handler. The eviction core logs at Debug only
// when a WAIT-mode hazard spin exhausts its budget and when a root split
// re-drives the new root; individual state transitions and hazard retries
// are not logged. Verbose logging of the algorithm itself is out of scope
// for spec.md (§1), but the ambient logging plumbing around it is still
// carried, same as every other service in the monorepo.
package logger

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

var (
	once sync.Once
	log  *slog.Logger
)

// Config holds logger configuration.
type Config struct {
	Level     string // DEBUG, INFO, WARN, ERROR
	Format    string // json, text
	AddSource bool
}

// Init initializes the global logger. Safe to call multiple times; only
// the first call takes effect.
func Init(cfg Config) {
	once.Do(func() {
		log = build(cfg)
		slog.SetDefault(log)
	})
}

func build(cfg Config) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

// Get returns the global logger, initializing it with defaults if Init was
// never called.
func Get() *slog.Logger {
	once.Do(func() {
		log = build(Config{Level: "INFO", Format: "text"})
		slog.SetDefault(log)
	})
	return log
}

// WithSession returns a logger tagged with the evicting session's id, for
// threading through a single Evict call.
func WithSession(ctx context.Context, sessionID int) *slog.Logger {
	return Get().With("session_id", sessionID)
}
