package core

import (
	"context"
	"time"
)

// ExtractionEvent describes one finished plan extraction.
type ExtractionEvent struct {
	// Provider is the canonical name of the provider that ran.
	Provider string
	// Query is the command text before any EXPLAIN rewrite.
	Query string
	// Args are the command arguments, masked by the engine's sanitizer.
	Args []any
	// Duration covers the connection guard and every diagnostic statement.
	Duration time.Duration
	// PlanSize is the raw plan length in bytes.
	PlanSize int
	// OpenedConnection reports whether the engine had to open the connection.
	OpenedConnection bool
	// Error is nil on success.
	Error error
}

// ExtractionHook is called after every extraction, successful or not.
//
// Example:
//
//	engine := core.NewEngine(core.WithHook(func(ctx context.Context, e core.ExtractionEvent) {
//	    slog.Info("plan", "provider", e.Provider, "duration", e.Duration, "err", e.Error)
//	}))
type ExtractionHook func(ctx context.Context, event ExtractionEvent)
