package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mickamy/forumdb/forum"
	"github.com/mickamy/forumdb/internal/config"
	"github.com/mickamy/forumdb/internal/logging"
	"github.com/mickamy/forumdb/internal/metrics"
	"github.com/mickamy/forumdb/orm"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// CLI flags
var (
	configPath      string
	verbosity       int
	logFile         string
	metricsTextfile string
)

// cfg is loaded once by the root command before any subcommand runs.
var cfg *config.Config

func main() {
	rootCmd := &cobra.Command{
		Use:   "forumdb",
		Short: "forumdb - forum database bootstrap",
		Long:  `forumdb creates the forum schema and seeds its boards on PostgreSQL or MySQL.`,

		PersistentPreRunE: setup,
		SilenceUsage:      true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (optional)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v debug, -vv trace with SQL)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write logs to this rotating file")
	rootCmd.PersistentFlags().StringVar(&metricsTextfile, "metrics-textfile", "", "Write Prometheus metrics to this file on exit")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "create-tables",
			Short: "Create the forum tables and stored function",
			Args:  cobra.NoArgs,
			RunE:  withDB(createTables),
		},
		&cobra.Command{
			Use:   "seed-boards",
			Short: "Create one board per configured name, skipping existing ones",
			Args:  cobra.NoArgs,
			RunE:  withDB(seedBoards),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show version information",
			// version needs no config
			PersistentPreRunE: func(*cobra.Command, []string) error {
				return nil
			},
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("forumdb %s (commit: %s, built: %s)\n", version, commit, date)
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err //nolint:wrapcheck // already descriptive
	}
	cfg = loaded

	switch {
	case verbosity >= 2:
		cfg.Logging.Level = "trace"
	case verbosity == 1:
		cfg.Logging.Level = "debug"
	}
	if logFile != "" {
		cfg.Logging.File = logFile
	}
	logging.Apply(cfg.Logging, os.Stderr)
	return nil
}

// withDB connects to the configured store, runs fn and closes the
// connection. Metrics are written to --metrics-textfile when set.
func withDB(fn func(ctx context.Context, db *orm.DB) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = log.Logger.WithContext(ctx)

		reg := prometheus.NewRegistry()
		db, err := connect(ctx, reg)
		if err != nil {
			log.Error().Err(err).Str("dialect", cfg.Database.Dialect).Str("host", cfg.Database.Host).Msg("Failed to connect to database")
			return err
		}
		defer func() {
			err = errors.Join(err, db.Close(), writeMetrics(reg))
		}()

		if zerolog.GlobalLevel() <= zerolog.TraceLevel {
			db = db.Debug(logging.QueryLogger{Logger: log.Logger})
		}
		return fn(ctx, db)
	}
}

func connect(ctx context.Context, reg *prometheus.Registry) (*orm.DB, error) {
	d, err := cfg.Database.OrmDialect()
	if err != nil {
		return nil, err //nolint:wrapcheck // validated by config.Load
	}
	dsn, err := cfg.Database.DSN()
	if err != nil {
		return nil, err //nolint:wrapcheck // already descriptive
	}

	poolCfg := cfg.Database.Pool()
	poolCfg.DSN = dsn
	poolLogger := log.Logger.With().Str("component", "pool").Logger()
	poolCfg.Logger = &poolLogger

	db, err := orm.Connect(ctx, d, poolCfg,
		orm.WithLogger(log.Logger.With().Str("component", "orm").Logger()),
		orm.WithObserver(metrics.NewQueryObserver(reg)),
		orm.WithQueryTimeout(cfg.Database.QueryTimeout),
	)
	if err != nil {
		return nil, err //nolint:wrapcheck // *pool.ConnectionError
	}
	reg.MustRegister(metrics.NewPoolCollector(db.Pool().Stats))
	return db, nil
}

func writeMetrics(reg *prometheus.Registry) error {
	if metricsTextfile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(metricsTextfile, reg); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}

func createTables(ctx context.Context, db *orm.DB) error {
	if err := forum.CreateTables(ctx, db); err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}
	log.Info().Str("dialect", db.Dialect().Name()).Int("models", len(forum.Models.Models())).Msg("Tables created")
	return nil
}

func seedBoards(ctx context.Context, db *orm.DB) error {
	store := forum.NewStore(db)
	n, err := store.Boards.SeedBoards(ctx, cfg.Forum.Boards)
	if err != nil {
		return fmt.Errorf("seeding boards: %w", err)
	}
	log.Info().Int("created", n).Int("configured", len(cfg.Forum.Boards)).Msg("Boards seeded")
	return nil
}
