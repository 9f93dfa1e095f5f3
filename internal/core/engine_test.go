package core

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/coregx/queryplan/internal/provider"
	"github.com/coregx/queryplan/internal/session"
	"github.com/coregx/queryplan/internal/testdb"
	"github.com/coregx/queryplan/internal/tracer"
)

// stubProvider returns a fixed plan or error and records the connection state it saw.
type stubProvider struct {
	plan      string
	err       error
	panicWith any
	sawOpen   bool
}

func (s *stubProvider) Name() string { return "stub" }
func (s *stubProvider) PlanDirectory() string { return "Stub" }
func (s *stubProvider) Encode(v string) string { return v }

func (s *stubProvider) ExtractPlan(_ context.Context, cmd *session.Command) (string, error) {
	s.sawOpen = cmd.Conn.IsOpen()
	if s.panicWith != nil {
		panic(s.panicWith)
	}
	return s.plan, s.err
}

func newCommand(t *testing.T, rec *testdb.Recorder, open bool) *session.Command {
	t.Helper()

	conn := session.NewSQLConn(rec.Open(t))
	if open {
		require.NoError(t, conn.Open(context.Background()))
		t.Cleanup(func() { _ = conn.Close() })
	}
	return &session.Command{Text: "SELECT * FROM users WHERE password = ?", Args: []any{"hunter2"}, Conn: conn}
}

func TestEngine_Resolve(t *testing.T) {
	e := NewEngine()

	p, err := e.Resolve("SQLite3")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", p.Name())

	_, err = e.Resolve("Devart.Data.MySql.MySqlCommand")
	require.Error(t, err)
	assert.Equal(t, KindUnsupportedProvider, KindOf(err))
	assert.ErrorIs(t, err, provider.ErrUnsupported)
}

func TestEngine_Extract_ConnectionState(t *testing.T) {
	tests := []struct {
		name      string
		startOpen bool
		plan      string
		err       error
	}{
		{name: "closed_success", startOpen: false, plan: "Seq Scan on users"},
		{name: "closed_failure", startOpen: false, err: errors.New("syntax error")},
		{name: "open_success", startOpen: true, plan: "Seq Scan on users"},
		{name: "open_failure", startOpen: true, err: errors.New("syntax error")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newCommand(t, testdb.New(), tt.startOpen)
			p := &stubProvider{plan: tt.plan, err: tt.err}

			plan, err := NewEngine().Extract(context.Background(), p, cmd)

			assert.True(t, p.sawOpen, "provider must run on an open connection")
			assert.Equal(t, tt.startOpen, cmd.Conn.IsOpen())
			if tt.err != nil {
				require.Error(t, err)
				assert.Equal(t, KindExtraction, KindOf(err))
				assert.ErrorIs(t, err, tt.err)
				assert.Contains(t, err.Error(), "syntax error")
				assert.Empty(t, plan)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.plan, plan)
			}
		})
	}
}

func TestEngine_Extract_ClosesAfterPanic(t *testing.T) {
	cmd := newCommand(t, testdb.New(), false)
	p := &stubProvider{panicWith: "driver bug"}

	assert.PanicsWithValue(t, "driver bug", func() {
		_, _ = NewEngine().Extract(context.Background(), p, cmd)
	})
	assert.False(t, cmd.Conn.IsOpen())
}

func TestEngine_Extract_EmptyPlan(t *testing.T) {
	cmd := newCommand(t, testdb.New(), true)

	_, err := NewEngine().Extract(context.Background(), &stubProvider{}, cmd)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoPlan)
	assert.Equal(t, KindExtraction, KindOf(err))
}

func TestEngine_Extract_NoConnection(t *testing.T) {
	_, err := NewEngine().Extract(context.Background(), &stubProvider{plan: "x"}, &session.Command{Text: "SELECT 1"})

	assert.Equal(t, KindExtraction, KindOf(err))
}

func TestEngine_Extract_Hook(t *testing.T) {
	var events []ExtractionEvent
	e := NewEngine(WithHook(func(_ context.Context, ev ExtractionEvent) {
		events = append(events, ev)
	}))
	cmd := newCommand(t, testdb.New(), false)

	_, err := e.Extract(context.Background(), &stubProvider{plan: "<ShowPlanXML/>"}, cmd)
	require.NoError(t, err)

	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, "stub", ev.Provider)
	assert.Equal(t, "SELECT * FROM users WHERE password = ?", ev.Query)
	assert.Equal(t, []any{"***REDACTED***"}, ev.Args)
	assert.Equal(t, len("<ShowPlanXML/>"), ev.PlanSize)
	assert.True(t, ev.OpenedConnection)
	assert.NoError(t, ev.Error)
}

func TestEngine_Extract_Span(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	e := NewEngine(WithTracer(tracer.NewOtelTracer(tp.Tracer("test"))))

	rec := testdb.New().On("EXPLAIN QUERY PLAN", testdb.ResultSet{
		Columns: []string{"id", "parent", "notused", "detail"},
		Rows:    [][]driver.Value{{int64(2), int64(0), int64(0), "SCAN users"}},
	})
	cmd := newCommand(t, rec, false)
	p, err := e.Resolve("sqlite")
	require.NoError(t, err)

	plan, err := e.Extract(context.Background(), p, cmd)
	require.NoError(t, err)
	assert.Contains(t, plan, "SCAN users")

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, tracer.SpanExtract, spans[0].Name)

	attrs := make(map[string]any)
	for _, a := range spans[0].Attributes {
		attrs[string(a.Key)] = a.Value.AsInterface()
	}
	assert.Equal(t, "sqlite", attrs["db.system"])
	assert.Equal(t, "SELECT * FROM users WHERE password = ?", attrs["db.statement"])
	assert.Equal(t, "SELECT", attrs["db.operation"])
}

func TestDBSystem(t *testing.T) {
	assert.Equal(t, "mssql", dbSystem("sqlserver"))
	assert.Equal(t, "postgresql", dbSystem("postgres"))
	assert.Equal(t, "oracle", dbSystem("oracle"))
}
