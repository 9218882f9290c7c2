package cmd

import (
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/solatis/alkatest/internal/core/config"
	"github.com/solatis/alkatest/internal/core/db"
	"github.com/solatis/alkatest/internal/core/logging"
	"github.com/solatis/alkatest/internal/packs"
	"github.com/solatis/alkatest/internal/runtime"
)

const Version = "0.1.0"

var (
	configFile string
	dbURL      string
	logLevel   string
	logFormat  string
	contentDir string
)

var rootCmd = &cobra.Command{
	Use:          "alkatest",
	Short:        "Content pack tooling for the block engine",
	Long:         `alkatest loads, validates and runs content packs: declarative item, node and event definitions written as block trees.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "pack store URL (sqlite://path or postgres://...)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format (json, text)")
	rootCmd.PersistentFlags().StringVar(&contentDir, "content-dir", "", "content pack directory")
}

func Execute() error {
	return rootCmd.Execute()
}

// setup loads the configuration, applies the persistent flags and builds
// the logger. Flags override environment, file and defaults.
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("db-url") {
		cfg.Database.URL = dbURL
	}
	if cmd.Flags().Changed("content-dir") {
		cfg.Content.Dir = contentDir
		cfg.Content.Source = config.SourceDir
	}

	logger, err := logging.New(cmd.ErrOrStderr(), logLevel, logFormat)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// openStore opens the pack store named by the configuration.
func openStore(cfg *config.Config) (*db.PackStore, *sqlx.DB, error) {
	if cfg.Database.URL == "" {
		return nil, nil, fmt.Errorf("--db-url required")
	}
	database, err := db.Open(cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	store, err := db.NewPackStore(database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to load queries: %w", err)
	}
	return store, database, nil
}

// packLoader returns the loader for the configured pack source and a func
// releasing what it holds.
func packLoader(cfg *config.Config) (runtime.Loader, func(), error) {
	if cfg.Content.Source == config.SourceDB {
		store, database, err := openStore(cfg)
		if err != nil {
			return nil, nil, err
		}
		return store.LoadAll, func() { database.Close() }, nil
	}
	return runtime.DirLoader(cfg.Content.Dir, cfg.Content.Packs), func() {}, nil
}

// newHost builds a runtime host for the configured packs and loads them.
func newHost(cfg *config.Config, logger *slog.Logger, opts ...runtime.Option) (*runtime.Host, *packs.Report, func(), error) {
	load, release, err := packLoader(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	base := []runtime.Option{
		runtime.WithLogger(logger),
		runtime.WithLimits(cfg.Engine.MaxCallDepth, cfg.Engine.MaxRepeatIterations),
		runtime.WithTickInterval(cfg.Runtime.TickInterval),
	}
	host := runtime.New(load, append(base, opts...)...)
	report, err := host.Reload()
	if err != nil {
		release()
		return nil, nil, nil, err
	}
	return host, report, release, nil
}
