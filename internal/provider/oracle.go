package provider

import (
	"context"
	"fmt"

	"github.com/coregx/queryplan/internal/session"
)

// OracleDisplayCursor returns the plan of the last statement run in the session.
const OracleDisplayCursor = "SELECT * FROM TABLE(DBMS_XPLAN.DISPLAY_CURSOR(format=>'ALLSTATS LAST +cost +bytes +outline +PEEKED_BINDS +PROJECTION +ALIAS'))"

var statisticsLevel = session.Setting{
	Enable:  "ALTER SESSION SET statistics_level = ALL",
	Restore: "ALTER SESSION SET statistics_level = TYPICAL",
}

// OracleProvider extracts the last cursor's plan with runtime statistics.
type OracleProvider struct {
	scriptEncoder
}

func init() {
	p := &OracleProvider{}
	Register("oracle", p)
	Register("godror", p)
}

// Name returns "oracle".
func (p *OracleProvider) Name() string { return "oracle" }

// PlanDirectory returns "Oracle".
func (p *OracleProvider) PlanDirectory() string { return "Oracle" }

// ExtractPlan raises statistics_level, runs and drains the command, then
// reads DBMS_XPLAN.DISPLAY_CURSOR for it. statistics_level is reset to
// TYPICAL on every path.
func (p *OracleProvider) ExtractPlan(ctx context.Context, cmd *session.Command) (string, error) {
	var plan string
	err := session.WithSetting(ctx, cmd.Session(), statisticsLevel, func() error {
		// The cursor must be fully fetched, otherwise DISPLAY_CURSOR reports
		// the statistics of an earlier execution.
		if err := drain(ctx, cmd); err != nil {
			return err
		}

		rows, err := cmd.Session().QueryContext(ctx, OracleDisplayCursor)
		if err != nil {
			return fmt.Errorf("failed to query DISPLAY_CURSOR: %w", err)
		}
		defer func() { _ = rows.Close() }()

		plan, err = joinRows(rows)
		if err != nil {
			return fmt.Errorf("failed to read DISPLAY_CURSOR output: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return plan, nil
}

func drain(ctx context.Context, cmd *session.Command) error {
	rows, err := cmd.Query(ctx)
	if err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to fetch query results: %w", err)
	}
	return nil
}
