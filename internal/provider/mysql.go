package provider

import (
	"context"
	"fmt"

	"github.com/coregx/queryplan/internal/session"
)

// MySQLExplainPrefix is prepended to the command text.
// EXPLAIN ANALYZE requires MySQL 8.0.18+; older servers reject it.
const MySQLExplainPrefix = "EXPLAIN ANALYZE "

// MySQLProvider extracts the EXPLAIN ANALYZE tree from MySQL.
type MySQLProvider struct {
	scriptEncoder
}

func init() {
	Register("mysql", &MySQLProvider{})
}

// Name returns "mysql".
func (p *MySQLProvider) Name() string { return "mysql" }

// PlanDirectory returns "MySQL".
func (p *MySQLProvider) PlanDirectory() string { return "MySQL" }

// ExtractPlan rewrites the command text in place and joins the output rows.
func (p *MySQLProvider) ExtractPlan(ctx context.Context, cmd *session.Command) (string, error) {
	cmd.Text = MySQLExplainPrefix + cmd.Text

	rows, err := cmd.Query(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to execute EXPLAIN ANALYZE: %w", err)
	}
	defer func() { _ = rows.Close() }()

	plan, err := joinRows(rows)
	if err != nil {
		return "", fmt.Errorf("failed to read EXPLAIN ANALYZE output: %w", err)
	}
	return plan, nil
}
