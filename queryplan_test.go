package queryplan_test

import (
	"bytes"
	"context"
	"database/sql"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/coregx/queryplan"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE posts (id INTEGER PRIMARY KEY, author TEXT, title TEXT)`)
	require.NoError(t, err)
	return db
}

// TestFacade runs both operations through the public API.
func TestFacade(t *testing.T) {
	db := openSQLite(t)
	var logs bytes.Buffer
	var events []queryplan.ExtractionEvent

	d := queryplan.Default(
		queryplan.WithLogger(queryplan.NewSlogAdapter(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})))),
		queryplan.WithHook(func(_ context.Context, e queryplan.ExtractionEvent) { events = append(events, e) }),
	)
	target := &queryplan.SQLTarget{
		Conn:       queryplan.NewSQLConn(db),
		Text:       "SELECT title FROM posts WHERE author = ?",
		Args:       []any{"ann"},
		ProviderID: "sqlite",
	}

	t.Run("GetQueryPlan", func(t *testing.T) {
		var in, out bytes.Buffer
		require.NoError(t, queryplan.EncodeRequest(&in, queryplan.Request{Op: queryplan.OpGetQueryPlan, Color: queryplan.Color{R: 40, G: 40, B: 40}, HasColor: true}))

		require.NoError(t, d.Transfer(context.Background(), target, &in, &out))

		resp, err := queryplan.ReadResponse(&out)
		require.NoError(t, err)
		require.False(t, resp.IsError, resp.Payload)
		assert.Contains(t, resp.Payload, "SCAN posts")
		assert.Contains(t, resp.Payload, "rgb(40 40 40)")
		assert.False(t, target.Conn.IsOpen())

		require.Len(t, events, 1)
		assert.True(t, events[0].OpenedConnection)
		assert.Contains(t, logs.String(), "plan extracted")
	})

	t.Run("GetQuery", func(t *testing.T) {
		resp := d.Handle(context.Background(), queryplan.Request{Op: queryplan.OpGetQuery, Color: queryplan.Color{}}, target)

		require.False(t, resp.IsError, resp.Payload)
		assert.Contains(t, resp.Payload, "-- @p0=&#39;ann&#39;")
	})
}

func TestFacade_UnsupportedProvider(t *testing.T) {
	d := queryplan.Default()
	target := &queryplan.SQLTarget{Conn: queryplan.NewSQLConn(openSQLite(t)), Text: "SELECT 1", ProviderID: "firebird"}

	resp := d.Handle(context.Background(), queryplan.Request{Op: queryplan.OpGetQueryPlan}, target)

	assert.True(t, resp.IsError)

	_, err := queryplan.NewEngine().Resolve("firebird")
	assert.Equal(t, queryplan.KindUnsupportedProvider, queryplan.KindOf(err))
}
