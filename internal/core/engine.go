// Package core implements the plan extraction engine: provider resolution,
// the connection guard around extraction, and error kinds shared by the
// renderer and the dispatcher.
package core

import (
	"context"
	"fmt"
	"time"

	"github.com/coregx/queryplan/internal/logger"
	"github.com/coregx/queryplan/internal/provider"
	"github.com/coregx/queryplan/internal/session"
	"github.com/coregx/queryplan/internal/tracer"
)

// Engine resolves providers and runs extractions. It holds no per-request
// state and may be shared by concurrent requests on distinct commands.
type Engine struct {
	logger    logger.Logger
	tracer    tracer.Tracer
	sanitizer *logger.Sanitizer
	hook      ExtractionHook
}

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTracer sets the tracer. The default records nothing.
func WithTracer(t tracer.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithHook registers a callback run after each extraction.
func WithHook(h ExtractionHook) Option {
	return func(e *Engine) {
		e.hook = h
	}
}

// WithSanitizer replaces the argument sanitizer used for logs and hooks.
func WithSanitizer(s *logger.Sanitizer) Option {
	return func(e *Engine) {
		if s != nil {
			e.sanitizer = s
		}
	}
}

// NewEngine creates an engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger:    &logger.NoopLogger{},
		tracer:    &tracer.NoopTracer{},
		sanitizer: logger.NewSanitizer(nil),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Resolve returns the provider registered under id.
func (e *Engine) Resolve(id string) (provider.Provider, error) {
	p, err := provider.Lookup(id)
	if err != nil {
		return nil, &Error{
			Kind:    KindUnsupportedProvider,
			Message: fmt.Sprintf("no plan provider for %q", id),
			Err:     err,
		}
	}
	return p, nil
}

// Extract runs p against cmd and returns the raw plan. The connection is
// opened for the extraction when it was closed and closed again afterwards,
// on every exit path. Failures are reported once and never retried.
//
// Providers may rewrite cmd.Text; a command must not be extracted twice.
func (e *Engine) Extract(ctx context.Context, p provider.Provider, cmd *session.Command) (plan string, err error) {
	if cmd == nil || cmd.Conn == nil {
		return "", New(KindExtraction, "command has no connection")
	}

	query := cmd.Text
	args := e.sanitizer.MaskArgs(query, cmd.Args)
	opened := !cmd.Conn.IsOpen()

	ctx, span := e.tracer.StartSpan(ctx, tracer.SpanExtract)
	defer span.End()

	start := time.Now()
	err = session.WithOpenConnection(ctx, cmd.Conn, func() error {
		var extractErr error
		plan, extractErr = p.ExtractPlan(ctx, cmd)
		return extractErr
	})
	duration := time.Since(start)

	switch {
	case err != nil:
		err = Wrap(KindExtraction, p.Name()+" plan extraction failed", err)
	case plan == "":
		err = Wrap(KindExtraction, p.Name()+" plan extraction failed", ErrNoPlan)
	}

	tracer.AddExtractionAttributes(span, &tracer.ExtractionMetadata{
		Provider:  p.Name(),
		Database:  dbSystem(p.Name()),
		Statement: query,
		Duration:  duration,
		PlanSize:  len(plan),
		Error:     err,
	})

	if err != nil {
		e.logger.Error("plan extraction failed",
			"provider", p.Name(),
			"sql", query,
			"args", e.sanitizer.FormatArgs(args),
			"duration_ms", duration.Milliseconds(),
			"error", err,
		)
	} else {
		e.logger.Debug("plan extracted",
			"provider", p.Name(),
			"sql", query,
			"args", e.sanitizer.FormatArgs(args),
			"duration_ms", duration.Milliseconds(),
			"plan_bytes", len(plan),
			"opened_connection", opened,
		)
	}

	if e.hook != nil {
		e.hook(ctx, ExtractionEvent{
			Provider:         p.Name(),
			Query:            query,
			Args:             args,
			Duration:         duration,
			PlanSize:         len(plan),
			OpenedConnection: opened,
			Error:            err,
		})
	}

	if err != nil {
		return "", err
	}
	return plan, nil
}

// dbSystem maps a provider name to the OpenTelemetry db.system value.
func dbSystem(name string) string {
	switch name {
	case "sqlserver":
		return "mssql"
	case "postgres":
		return "postgresql"
	default:
		return name
	}
}
