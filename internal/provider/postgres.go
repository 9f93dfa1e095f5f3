package provider

import (
	"context"
	"fmt"

	"github.com/coregx/queryplan/internal/session"
)

// PostgresExplainPrefix is prepended to the command text.
const PostgresExplainPrefix = "EXPLAIN (ANALYZE, COSTS, VERBOSE, BUFFERS) "

// PostgresProvider extracts the text-format EXPLAIN ANALYZE output from PostgreSQL.
type PostgresProvider struct {
	scriptEncoder
}

func init() {
	p := &PostgresProvider{}
	Register("postgres", p)
	Register("postgresql", p)
	Register("pgx", p)
}

// Name returns "postgres".
func (p *PostgresProvider) Name() string { return "postgres" }

// PlanDirectory returns "Postgres".
func (p *PostgresProvider) PlanDirectory() string { return "Postgres" }

// ExtractPlan rewrites the command text in place to an EXPLAIN ANALYZE and
// joins the returned plan lines. The command is executed by the database.
func (p *PostgresProvider) ExtractPlan(ctx context.Context, cmd *session.Command) (string, error) {
	cmd.Text = PostgresExplainPrefix + cmd.Text

	rows, err := cmd.Query(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to execute EXPLAIN: %w", err)
	}
	defer func() { _ = rows.Close() }()

	plan, err := joinRows(rows)
	if err != nil {
		return "", fmt.Errorf("failed to read EXPLAIN output: %w", err)
	}
	return plan, nil
}
