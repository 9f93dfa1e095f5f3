// Package queryplan extracts the execution plan of a live SQL query through
// the database's own diagnostic facility (SQL Server showplan XML,
// PostgreSQL and MySQL EXPLAIN ANALYZE, Oracle DBMS_XPLAN, SQLite EXPLAIN
// QUERY PLAN) and renders it as a self-contained HTML document.
//
// A host hands a Target to a Dispatcher together with a binary request:
//
//	d := queryplan.Default()
//	target := &queryplan.SQLTarget{
//	    Conn:       queryplan.NewSQLConn(db),
//	    Text:       "SELECT * FROM users WHERE id = @p0",
//	    Args:       []any{42},
//	    ProviderID: "sqlserver",
//	}
//	err := d.Transfer(ctx, target, requestStream, responseStream)
//
// The connection is left open or closed as it was found, and session
// settings toggled for extraction are always restored.
package queryplan

import (
	"github.com/coregx/queryplan/internal/core"
	"github.com/coregx/queryplan/internal/dispatch"
	"github.com/coregx/queryplan/internal/logger"
	"github.com/coregx/queryplan/internal/protocol"
	"github.com/coregx/queryplan/internal/provider"
	"github.com/coregx/queryplan/internal/render"
	"github.com/coregx/queryplan/internal/session"
	"github.com/coregx/queryplan/internal/tracer"
	"github.com/coregx/queryplan/resources"
)

type (
	// Engine resolves providers and runs plan extractions.
	Engine = core.Engine
	// EngineOption configures an Engine.
	EngineOption = core.Option
	// Error is a kinded error.
	Error = core.Error
	// ErrorKind categorizes an Error.
	ErrorKind = core.Kind
	// ExtractionEvent is passed to an ExtractionHook after each extraction.
	ExtractionEvent = core.ExtractionEvent
	// ExtractionHook observes extractions.
	ExtractionHook = core.ExtractionHook

	// Dispatcher handles binary requests against a Target.
	Dispatcher = dispatch.Dispatcher
	// DispatchOption configures a Dispatcher.
	DispatchOption = dispatch.Option
	// Target is the host-owned query a request operates on.
	Target = dispatch.Target
	// SQLTarget is a Target over a database/sql connection.
	SQLTarget = dispatch.SQLTarget
	// Sink stores rendered documents.
	Sink = dispatch.Sink
	// FileSink stores rendered documents as files.
	FileSink = dispatch.FileSink

	// Renderer fills document templates.
	Renderer = render.Renderer
	// Templates supplies template markup by directory.
	Templates = render.Templates
	// FSTemplates loads templates from a file system.
	FSTemplates = render.FSTemplates

	// Provider extracts a raw plan for one database engine.
	Provider = provider.Provider
	// Command is a query bound to a connection.
	Command = session.Command
	// Conn is a connection that can be opened and closed.
	Conn = session.Conn
	// SQLConn implements Conn over *sql.DB.
	SQLConn = session.SQLConn

	// Request is a decoded operation request.
	Request = protocol.Request
	// Response is the result of one request.
	Response = protocol.Response
	// Color is an RGB background color.
	Color = protocol.Color

	// Logger is the logging interface.
	Logger = logger.Logger
	// Tracer is the tracing interface.
	Tracer = tracer.Tracer
)

// Error kinds.
const (
	KindUnsupportedProvider = core.KindUnsupportedProvider
	KindExtraction          = core.KindExtraction
	KindTemplateMissing     = core.KindTemplateMissing
	KindDecode              = core.KindDecode
	KindUnexpected          = core.KindUnexpected
)

// Operation codes.
const (
	OpGetQuery     = protocol.OpGetQuery
	OpGetQueryPlan = protocol.OpGetQueryPlan
)

// Re-export constructors and helpers.
var (
	NewEngine     = core.NewEngine
	WithLogger    = core.WithLogger
	WithTracer    = core.WithTracer
	WithHook      = core.WithHook
	WithSanitizer = core.WithSanitizer
	KindOf        = core.KindOf
	ErrNoPlan     = core.ErrNoPlan

	NewDispatcher      = dispatch.New
	WithSink           = dispatch.WithSink
	WithDispatchLogger = dispatch.WithLogger
	ReadResponse       = dispatch.ReadResponse
	DeleteFile         = dispatch.DeleteFile

	NewRenderer   = render.New
	NewSQLConn    = session.NewSQLConn
	Register      = provider.Register
	Lookup        = provider.Lookup
	DecodeRequest = protocol.DecodeRequest
	EncodeRequest = protocol.EncodeRequest

	NewSlogAdapter    = logger.NewSlogAdapter
	NewZerologAdapter = logger.NewZerologAdapter
	NewSanitizer      = logger.NewSanitizer
	NewOtelTracer     = tracer.NewOtelTracer
)

// DefaultTemplates returns the embedded templates.
func DefaultTemplates() FSTemplates {
	return FSTemplates{FS: resources.FS}
}

// Default returns a dispatcher over the embedded templates and an engine
// built from engineOpts.
func Default(engineOpts ...EngineOption) *Dispatcher {
	return dispatch.New(core.NewEngine(engineOpts...), render.New(DefaultTemplates()))
}
