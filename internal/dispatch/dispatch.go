// Package dispatch is the request boundary: it decodes an operation, routes
// it to query rendering or plan extraction, and encodes exactly one
// response. No error or panic crosses Handle or Transfer.
package dispatch

import (
	"context"
	"fmt"
	"io"

	"github.com/coregx/queryplan/internal/core"
	"github.com/coregx/queryplan/internal/logger"
	"github.com/coregx/queryplan/internal/protocol"
	"github.com/coregx/queryplan/internal/render"
	"github.com/coregx/queryplan/internal/session"
)

// MsgUnknownOperation is the error payload for an unrecognized operation code.
const MsgUnknownOperation = "Unknown operation type"

// Target is the host-owned query a request operates on.
type Target interface {
	// QueryString returns the displayable query text, parameters included.
	QueryString() string
	// Command returns a fresh command bound to the target's connection.
	Command(ctx context.Context) (*session.Command, error)
	// Provider returns the provider identifier for the target's database.
	Provider() string
}

// Sink stores a rendered document and returns the reference sent back to the caller.
type Sink interface {
	Store(dir, document string) (string, error)
}

// Dispatcher handles requests. It keeps no state between calls.
type Dispatcher struct {
	engine   *core.Engine
	renderer *render.Renderer
	sink     Sink
	logger   logger.Logger
}

// Option is a functional option for configuring a Dispatcher.
type Option func(*Dispatcher)

// WithSink stores documents through s; responses then carry the stored
// reference instead of the document.
func WithSink(s Sink) Option {
	return func(d *Dispatcher) {
		d.sink = s
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// New creates a dispatcher.
func New(engine *core.Engine, renderer *render.Renderer, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		engine:   engine,
		renderer: renderer,
		logger:   &logger.NoopLogger{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Transfer decodes one request from in, handles it and writes the response
// to out. Only a failure to write the response is returned.
func (d *Dispatcher) Transfer(ctx context.Context, target Target, in io.Reader, out io.Writer) error {
	req := protocol.DecodeRequest(in)
	resp := d.Handle(ctx, req, target)
	if err := resp.Encode(out); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	return nil
}

// Handle runs req against target and converts every outcome, panics
// included, into a response.
func (d *Dispatcher) Handle(ctx context.Context, req protocol.Request, target Target) (resp protocol.Response) {
	defer func() {
		if r := recover(); r != nil {
			resp = protocol.Failure(panicMessage(r))
		}
		d.logger.Debug("request handled",
			"op", req.Op.String(),
			"is_error", resp.IsError,
			"payload_bytes", len(resp.Payload),
		)
	}()

	if target == nil {
		return protocol.Failure("no query target")
	}

	var (
		payload string
		err     error
	)
	switch req.Op {
	case protocol.OpGetQuery:
		payload, err = d.getQuery(target, req.Color)
	case protocol.OpGetQueryPlan:
		payload, err = d.getQueryPlan(ctx, target, req.Color)
	default:
		return protocol.Failure(MsgUnknownOperation)
	}

	if err != nil {
		return protocol.Failure(err.Error())
	}
	return protocol.Success(payload)
}

// getQuery renders the query text only; the connection is never touched.
func (d *Dispatcher) getQuery(target Target, color protocol.Color) (string, error) {
	doc, err := d.renderer.RenderQuery(target.QueryString(), color)
	if err != nil {
		return "", err
	}
	return d.store(render.CommonDirectory, doc)
}

func (d *Dispatcher) getQueryPlan(ctx context.Context, target Target, color protocol.Color) (string, error) {
	p, err := d.engine.Resolve(target.Provider())
	if err != nil {
		return "", err
	}

	cmd, err := target.Command(ctx)
	if err != nil {
		return "", core.Wrap(core.KindUnexpected, "failed to create command", err)
	}

	query := target.QueryString()
	plan, err := d.engine.Extract(ctx, p, cmd)
	if err != nil {
		return "", err
	}

	doc, err := d.renderer.RenderPlan(p, plan, query, color)
	if err != nil {
		return "", err
	}
	return d.store(p.PlanDirectory(), doc)
}

func (d *Dispatcher) store(dir, doc string) (string, error) {
	if d.sink == nil {
		return doc, nil
	}
	ref, err := d.sink.Store(dir, doc)
	if err != nil {
		return "", core.Wrap(core.KindUnexpected, "failed to store document", err)
	}
	return ref, nil
}

func panicMessage(r any) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(r)
}

// ReadResponse decodes a response written by Transfer.
// Failures are KindDecode.
func ReadResponse(r io.Reader) (protocol.Response, error) {
	resp, err := protocol.DecodeResponse(r)
	if err != nil {
		return protocol.Response{}, core.Wrap(core.KindDecode, "failed to decode response", err)
	}
	return resp, nil
}
