package provider

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/coregx/queryplan/internal/escape"
	"github.com/coregx/queryplan/internal/session"
)

// SQLiteExplainPrefix is prepended to the command text.
const SQLiteExplainPrefix = "EXPLAIN QUERY PLAN "

// PlanItem is one row of SQLite EXPLAIN QUERY PLAN output.
type PlanItem struct {
	ID     int
	Parent int
	Detail string
}

// rootItem is the synthetic root every top-level plan row hangs from.
var rootItem = PlanItem{ID: 0, Parent: -1, Detail: "Query Plan"}

// SQLiteProvider renders EXPLAIN QUERY PLAN rows as a nested list.
// Its plan is markup already, so Encode leaves it untouched.
type SQLiteProvider struct{}

func init() {
	p := &SQLiteProvider{}
	Register("sqlite", p)
	Register("sqlite3", p)
}

// Name returns "sqlite".
func (p *SQLiteProvider) Name() string { return "sqlite" }

// PlanDirectory returns "SQLite".
func (p *SQLiteProvider) PlanDirectory() string { return "SQLite" }

// Encode returns s unchanged; each plan detail is HTML-encoded while the tree is built.
func (p *SQLiteProvider) Encode(s string) string { return s }

// ExtractPlan rewrites the command text in place to EXPLAIN QUERY PLAN and
// returns the plan tree markup.
func (p *SQLiteProvider) ExtractPlan(ctx context.Context, cmd *session.Command) (string, error) {
	cmd.Text = SQLiteExplainPrefix + cmd.Text

	rows, err := cmd.Query(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to execute EXPLAIN QUERY PLAN: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items, err := scanPlanItems(rows)
	if err != nil {
		return "", err
	}
	return BuildPlanTree(items), nil
}

// scanPlanItems reads the id, parent and detail columns by name.
func scanPlanItems(rows *sql.Rows) ([]PlanItem, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var (
		id, parent sql.NullInt64
		detail     sql.NullString
		found      int
	)
	dest := make([]any, len(cols))
	for i, col := range cols {
		switch strings.ToLower(col) {
		case "id":
			dest[i] = &id
			found++
		case "parent":
			dest[i] = &parent
			found++
		case "detail":
			dest[i] = &detail
			found++
		default:
			dest[i] = new(any)
		}
	}
	if found != 3 {
		return nil, fmt.Errorf("unexpected EXPLAIN QUERY PLAN columns: %v", cols)
	}

	items := []PlanItem{rootItem}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan EXPLAIN QUERY PLAN output: %w", err)
		}
		items = append(items, PlanItem{
			ID:     int(id.Int64),
			Parent: int(parent.Int64),
			Detail: detail.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading EXPLAIN QUERY PLAN output: %w", err)
	}
	return items, nil
}

// BuildPlanTree renders items as nested <ul>/<li> markup starting from the
// items whose parent is -1. Children are grouped by parent in a full pass, so
// row order does not matter. Items whose parent never appears are omitted,
// and each item is rendered at most once.
func BuildPlanTree(items []PlanItem) string {
	children := make(map[int][]PlanItem, len(items))
	for _, item := range items {
		children[item.Parent] = append(children[item.Parent], item)
	}

	var b strings.Builder
	visited := make(map[int]bool, len(items))
	writePlanLevel(&b, children, visited, -1)
	return b.String()
}

func writePlanLevel(b *strings.Builder, children map[int][]PlanItem, visited map[int]bool, parent int) {
	var level []PlanItem
	for _, item := range children[parent] {
		if !visited[item.ID] {
			level = append(level, item)
		}
	}
	if len(level) == 0 {
		return
	}

	b.WriteString("<ul>\n")
	for _, item := range level {
		if visited[item.ID] {
			continue
		}
		visited[item.ID] = true

		b.WriteString("<li>\n")
		b.WriteString(`<span class="tf-nc">`)
		b.WriteString(escape.HTML(item.Detail))
		b.WriteString("</span>\n")
		writePlanLevel(b, children, visited, item.ID)
		b.WriteString("</li>\n")
	}
	b.WriteString("</ul>\n")
}
