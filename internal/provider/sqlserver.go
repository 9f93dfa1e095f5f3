package provider

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/coregx/queryplan/internal/session"
)

// ShowplanColumn is the column name of the result set carrying the XML plan.
const ShowplanColumn = "Microsoft SQL Server 2005 XML Showplan"

var statisticsXML = session.Setting{
	Enable:  "SET STATISTICS XML ON",
	Restore: "SET STATISTICS XML OFF",
}

// SQLServerProvider extracts the actual XML showplan from SQL Server.
type SQLServerProvider struct {
	scriptEncoder
}

func init() {
	p := &SQLServerProvider{}
	Register("sqlserver", p)
	Register("mssql", p)
}

// Name returns "sqlserver".
func (p *SQLServerProvider) Name() string { return "sqlserver" }

// PlanDirectory returns "SqlServer".
func (p *SQLServerProvider) PlanDirectory() string { return "SqlServer" }

// ExtractPlan enables STATISTICS XML, runs the command and returns the
// showplan XML. An empty plan with a nil error means the server produced no
// showplan result set.
func (p *SQLServerProvider) ExtractPlan(ctx context.Context, cmd *session.Command) (string, error) {
	var plan string
	err := session.WithSetting(ctx, cmd.Session(), statisticsXML, func() error {
		rows, err := cmd.Query(ctx)
		if err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
		defer func() { _ = rows.Close() }()

		plan, err = findShowplan(rows)
		return err
	})
	if err != nil {
		return "", err
	}
	return plan, nil
}

// findShowplan walks the result sets until one starts with ShowplanColumn
// and returns its single XML cell.
func findShowplan(rows *sql.Rows) (string, error) {
	for {
		cols, err := rows.Columns()
		if err != nil {
			return "", fmt.Errorf("failed to read columns: %w", err)
		}

		if len(cols) > 0 && cols[0] == ShowplanColumn {
			var xml sql.NullString
			if rows.Next() {
				if err := rows.Scan(&xml); err != nil {
					return "", fmt.Errorf("failed to scan showplan: %w", err)
				}
			}
			return xml.String, rows.Err()
		}

		if !rows.NextResultSet() {
			return "", rows.Err()
		}
	}
}
