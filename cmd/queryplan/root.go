package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/coregx/queryplan/internal/config"
	"github.com/coregx/queryplan/internal/core"
	"github.com/coregx/queryplan/internal/dispatch"
	"github.com/coregx/queryplan/internal/logger"
	"github.com/coregx/queryplan/internal/protocol"
	"github.com/coregx/queryplan/internal/render"
	"github.com/coregx/queryplan/internal/session"
	"github.com/coregx/queryplan/internal/tracer"
	"github.com/coregx/queryplan/resources"

	_ "github.com/go-sql-driver/mysql"  // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib"  // pgx driver
	_ "github.com/lib/pq"               // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"     // SQLite driver (cgo)
	_ "github.com/microsoft/go-mssqldb" // SQL Server driver
	_ "github.com/sijms/go-ora/v2"      // Oracle driver
	_ "modernc.org/sqlite"              // Pure Go SQLite driver
)

// options holds the global flags and the configuration they override.
type options struct {
	configPath string
	resources  string
	output     string
	logLevel   string
	logFormat  string
	driver     string
	dsn        string
	provider   string
	query      string
	args       []string
	color      string

	cfg *config.Config
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	o := &options{}

	root := &cobra.Command{
		Use:           "queryplan",
		Short:         "Render the execution plan of a SQL query",
		Long:          `queryplan runs a query through the database's own plan facility (SHOWPLAN XML, EXPLAIN ANALYZE, DBMS_XPLAN, EXPLAIN QUERY PLAN) and renders the result as an HTML document.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return o.complete(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&o.configPath, "config", "", "path to a queryplan.yaml file")
	pf.StringVar(&o.resources, "resources", "", "template directory (default: embedded templates)")
	pf.StringVar(&o.output, "output", "", "write documents to this directory and print their paths")
	pf.StringVar(&o.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&o.logFormat, "log-format", "", "log format: console or json")
	pf.StringVar(&o.driver, "driver", "", "database/sql driver name")
	pf.StringVar(&o.dsn, "dsn", "", "data source name")
	pf.StringVar(&o.provider, "provider", "", "plan provider (default: driver name)")
	pf.StringVar(&o.query, "query", "", "query text")
	pf.StringArrayVar(&o.args, "arg", nil, "query argument, repeatable")
	pf.StringVar(&o.color, "color", "", "background color as r,g,b")

	root.AddCommand(
		newExplainCmd(o),
		newQueryCmd(o),
		newServeCmd(o),
		newProvidersCmd(),
	)
	return root
}

// complete merges the config file and the flags that were set explicitly.
func (o *options) complete(cmd *cobra.Command) error {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	override := func(name string, dst *string, v string) {
		if flags.Changed(name) {
			*dst = v
		}
	}
	override("resources", &cfg.Resources, o.resources)
	override("output", &cfg.Output, o.output)
	override("log-level", &cfg.Log.Level, o.logLevel)
	override("log-format", &cfg.Log.Format, o.logFormat)
	override("driver", &cfg.Database.Driver, o.driver)
	override("dsn", &cfg.Database.DSN, o.dsn)
	override("provider", &cfg.Database.Provider, o.provider)
	override("color", &cfg.Color, o.color)

	if err := cfg.Validate(); err != nil {
		return err
	}
	o.cfg = cfg

	log, err := newZerolog(cmd.ErrOrStderr(), cfg.Log)
	if err != nil {
		return err
	}
	o.log = log
	return nil
}

func newZerolog(w io.Writer, c config.Log) (zerolog.Logger, error) {
	level := zerolog.WarnLevel
	if c.Level != "" {
		parsed, err := zerolog.ParseLevel(c.Level)
		if err != nil {
			return zerolog.Logger{}, fmt.Errorf("invalid log level %q: %w", c.Level, err)
		}
		level = parsed
	}

	if c.Format != "json" {
		w = zerolog.ConsoleWriter{Out: w}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

// templates returns the configured template source.
func (o *options) templates() render.FSTemplates {
	var fsys fs.FS = resources.FS
	if o.cfg.Resources != "" {
		fsys = os.DirFS(o.cfg.Resources)
	}
	return render.FSTemplates{FS: fsys}
}

func (o *options) dispatcher() *dispatch.Dispatcher {
	log := logger.NewZerologAdapter(o.log)

	engine := core.NewEngine(
		core.WithLogger(log),
		core.WithTracer(tracer.NewOtelTracer(otel.Tracer("github.com/coregx/queryplan"))),
		core.WithSanitizer(logger.NewSanitizer(o.cfg.Redact)),
	)

	opts := []dispatch.Option{dispatch.WithLogger(log)}
	if o.cfg.Output != "" {
		opts = append(opts, dispatch.WithSink(dispatch.FileSink{Root: o.cfg.Output}))
	}
	return dispatch.New(engine, render.New(o.templates()), opts...)
}

// target builds the request target. With needDB the configured database is
// opened; the returned close function releases the pool.
func (o *options) target(needDB bool) (*dispatch.SQLTarget, func(), error) {
	if o.query == "" {
		return nil, nil, errors.New("no query: set --query")
	}

	args := make([]any, len(o.args))
	for i, a := range o.args {
		args[i] = a
	}

	db := o.cfg.Database
	t := &dispatch.SQLTarget{
		Text:       o.query,
		Args:       args,
		ProviderID: db.ProviderID(),
	}
	if !needDB {
		return t, func() {}, nil
	}

	if db.Driver == "" {
		return nil, nil, errors.New("no database driver: set --driver or database.driver")
	}
	pool, err := sql.Open(db.Driver, db.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s database: %w", db.Driver, err)
	}
	t.Conn = session.NewSQLConn(pool)

	return t, func() { _ = pool.Close() }, nil
}

func (o *options) request(op protocol.Op) (protocol.Request, error) {
	req := protocol.Request{Op: op, Color: protocol.White}
	if o.cfg.Color != "" {
		c, err := config.ParseColor(o.cfg.Color)
		if err != nil {
			return req, err
		}
		req.Color = c
		req.HasColor = true
	}
	return req, nil
}
