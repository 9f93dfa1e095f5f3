// Package provider implements execution plan extraction for SQL Server,
// PostgreSQL, Oracle, SQLite and MySQL, each issuing its database's own
// diagnostic statements against a live command.
package provider

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/coregx/queryplan/internal/escape"
	"github.com/coregx/queryplan/internal/session"
)

// Provider extracts a raw plan for one database engine.
type Provider interface {
	// Name returns the canonical provider identifier.
	Name() string
	// ExtractPlan runs the diagnostic sequence for cmd and returns the raw plan.
	// The command's connection must already be open.
	ExtractPlan(ctx context.Context, cmd *session.Command) (string, error)
	// PlanDirectory returns the resources sub-directory holding the plan template.
	PlanDirectory() string
	// Encode prepares text for embedding in the plan template.
	Encode(string) string
}

// ErrUnsupported is returned by Lookup for an unknown provider identifier.
var ErrUnsupported = errors.New("unsupported database provider")

var (
	mu        sync.RWMutex
	providers = make(map[string]Provider)
)

// Register registers a provider under id. Identifiers are case-insensitive.
func Register(id string, p Provider) {
	mu.Lock()
	defer mu.Unlock()
	providers[strings.ToLower(id)] = p
}

// Lookup retrieves a registered provider by identifier.
func Lookup(id string) (Provider, error) {
	mu.RLock()
	defer mu.RUnlock()
	if p, ok := providers[strings.ToLower(id)]; ok {
		return p, nil
	}
	return nil, ErrUnsupported
}

// IDs returns every registered identifier in sorted order.
func IDs() []string {
	mu.RLock()
	defer mu.RUnlock()
	ids := make([]string, 0, len(providers))
	for id := range providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// scriptEncoder is embedded by providers whose plan is placed inside an
// inline script string.
type scriptEncoder struct{}

// Encode escapes s for a script string literal.
func (scriptEncoder) Encode(s string) string {
	return escape.Script(s)
}

// joinRows concatenates the first column of every row with newlines.
func joinRows(rows *sql.Rows) (string, error) {
	cols, err := rows.Columns()
	if err != nil {
		return "", err
	}

	var line sql.NullString
	dest := make([]any, max(len(cols), 1))
	dest[0] = &line
	for i := 1; i < len(dest); i++ {
		dest[i] = new(any)
	}

	var lines []string
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return "", err
		}
		lines = append(lines, line.String)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return strings.Join(lines, "\n"), nil
}
