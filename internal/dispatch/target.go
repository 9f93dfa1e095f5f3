package dispatch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coregx/queryplan/internal/session"
)

// SQLTarget is a Target over a database/sql connection and a query text.
type SQLTarget struct {
	Conn       session.Conn
	Tx         *sql.Tx
	Text       string
	Args       []any
	ProviderID string
}

// QueryString returns one "-- @pN='value'" line per argument, a blank line
// and the query text. Named arguments keep their names.
func (t *SQLTarget) QueryString() string {
	if len(t.Args) == 0 {
		return t.Text
	}

	var b strings.Builder
	for i, arg := range t.Args {
		name := fmt.Sprintf("p%d", i)
		if named, ok := arg.(sql.NamedArg); ok {
			if named.Name != "" {
				name = named.Name
			}
			arg = named.Value
		}
		b.WriteString("-- @")
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(formatArg(arg))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	b.WriteString(t.Text)
	return b.String()
}

// Command returns a new command; the argument slice is copied.
func (t *SQLTarget) Command(_ context.Context) (*session.Command, error) {
	if t.Conn == nil {
		return nil, errors.New("target has no connection")
	}
	return &session.Command{
		Text: t.Text,
		Args: append([]any(nil), t.Args...),
		Conn: t.Conn,
		Tx:   t.Tx,
	}, nil
}

// Provider returns the configured provider identifier.
func (t *SQLTarget) Provider() string {
	return t.ProviderID
}

func formatArg(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	case []byte:
		return fmt.Sprintf("0x%X", x)
	case time.Time:
		return "'" + x.Format("2006-01-02T15:04:05.0000000Z07:00") + "'"
	case bool:
		if x {
			return "'True'"
		}
		return "'False'"
	default:
		return fmt.Sprintf("'%v'", x)
	}
}
