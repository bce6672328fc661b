package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/Skryldev/sql-connector/config"
	"github.com/Skryldev/sql-connector/connector"
	"github.com/Skryldev/sql-connector/connstr"
	"github.com/Skryldev/sql-connector/db"
	"github.com/Skryldev/sql-connector/logging"
	"github.com/Skryldev/sql-connector/observability"
)

var version = "0.1.0"

// app holds everything a subcommand needs.
type app struct {
	log       *zap.Logger
	conn      *connector.Connector
	registry  *prometheus.Registry
	tracer    *sdktrace.TracerProvider
	closeLogs func() error
}

type rootFlags struct {
	configFile  string
	connection  string
	metricsFile string
	trace       bool
	autoMigrate bool
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := execute(context.Background(), os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// execute runs one command line. Resources acquired by start are released
// afterwards whether or not the subcommand failed; cobra skips post-run
// hooks after an error.
func execute(ctx context.Context, args []string) error {
	var (
		flags rootFlags
		a     = &app{}
	)

	root := newRootCmd(a, &flags)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if stopErr := a.stop(ctx, flags); stopErr != nil {
		fmt.Fprintln(os.Stderr, "Error:", stopErr)
		if err == nil {
			err = stopErr
		}
	}
	return err
}

func newRootCmd(a *app, flags *rootFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "connector",
		Short: "Provisioning connector for the HR/IT-roles database",
		Long: `connector drives the provisioning operations an identity-management
orchestrator uses: create users, read and patch their properties, and grant or
revoke IT roles and request rights.

Example:
  connector --connection "ConnectionString='Host=localhost;Port=5432;Database=testDb;Username=u;Password=p;';Provider='PostgreSQL.9.5';" permissions`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.start(cmd.Context(), *flags)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configFile, "config", "c", "", "YAML configuration file")
	pf.StringVar(&flags.connection, "connection", "", "orchestrator configuration string (overrides the config file)")
	pf.StringVar(&flags.metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")
	pf.BoolVar(&flags.trace, "trace", false, "print query spans to stderr")
	pf.BoolVar(&flags.autoMigrate, "auto-migrate", false, "apply the embedded schema migrations on start")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("connector v%s\n", version)
		},
	})
	addCommands(root, a)
	return root
}

func (a *app) start(ctx context.Context, flags rootFlags) error {
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return err
	}
	if flags.connection != "" {
		cfg.Connection = flags.connection
	}
	if flags.autoMigrate {
		cfg.Connector.AutoMigrate = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.log, err = logging.New(cfg.Log)
	if err != nil {
		return err
	}

	var connLogger connector.Logger
	if cfg.Connector.LogFile != "" {
		fl, err := logging.NewFileLogger(cfg.Connector.LogFile, cfg.Connector.Name)
		if err != nil {
			return err
		}
		connLogger, a.closeLogs = fl, fl.Close
	} else {
		connLogger = logging.NewConnectorLogger(a.log, cfg.Connector.Name)
	}

	a.registry = prometheus.NewRegistry()
	dbCfg := cfg.DBConfig()
	dbCfg.Hooks = []db.Hook{
		db.NewLogHook(db.LogHookConfig{
			Logger:             a.log.Named("db"),
			SlowQueryThreshold: cfg.Connector.SlowQueryThreshold,
		}),
		db.NewMetricsHook(observability.NewQueryMetrics(a.registry)),
	}
	if flags.trace {
		a.tracer, err = observability.NewWriterTracerProvider(os.Stderr, cfg.Connector.Name)
		if err != nil {
			return err
		}
		parsed, err := connstr.Parse(cfg.Connection)
		if err != nil {
			return err
		}
		tracer := observability.NewQueryTracer(a.tracer.Tracer("sqlconnector/db"), parsed.Engine.String())
		dbCfg.Hooks = append(dbCfg.Hooks, db.NewTracingHook(tracer))
	}

	opts := []connector.Option{
		connector.WithDBConfig(dbCfg),
		connector.WithRetry(cfg.RetryConfig()),
		connector.WithObserver(observability.NewOperationMetrics(a.registry)),
	}
	if cfg.Connector.AutoMigrate {
		opts = append(opts, connector.WithAutoMigrate())
	}

	a.conn, err = connector.New(connLogger, opts...)
	if err != nil {
		return err
	}
	return a.conn.StartUp(ctx, cfg.Connection)
}

func (a *app) stop(ctx context.Context, flags rootFlags) error {
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.log.Warn("close connector", zap.Error(err))
		}
	}
	if a.tracer != nil {
		_ = a.tracer.Shutdown(ctx)
	}
	if flags.metricsFile != "" && a.registry != nil {
		if err := prometheus.WriteToTextfile(flags.metricsFile, a.registry); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	if a.closeLogs != nil {
		_ = a.closeLogs()
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
	return nil
}
