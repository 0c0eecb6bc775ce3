package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/koustreak/tabula/internal/app"
	"github.com/koustreak/tabula/internal/config"
	"github.com/koustreak/tabula/internal/logger"
)

var version = "dev"

type rootOptions struct {
	cfgFile  string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "tabula",
		Short:        "Schema-aware CRUD over any SQLite, PostgreSQL or MySQL database",
		Version:      version,
		SilenceUsage: true,
		Long: `Tabula introspects a relational database, caches its structure and
semantic column roles, and serves generic create/read/update/delete
over HTTP with audit columns and soft delete handled automatically.`,
	}

	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default: built-in defaults plus TABULA_* environment)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(opts),
		newTablesCmd(opts),
		newDescribeCmd(opts),
		newRefreshCmd(opts),
	)
	return cmd
}

// load reads the configuration and builds the logger it describes.
func (o *rootOptions) load() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(o.cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if o.logLevel != "" {
		if _, err := logger.ParseLevel(o.logLevel); err != nil {
			return nil, nil, err
		}
		cfg.Log.Level = o.logLevel
	}
	if cfg.Log.Output == nil {
		cfg.Log.Output = os.Stderr
	}
	return cfg, logger.New(&cfg.Log), nil
}

// open loads configuration and opens the application.
func (o *rootOptions) open(ctx context.Context) (*app.App, *config.Config, *logger.Logger, error) {
	cfg, log, err := o.load()
	if err != nil {
		return nil, nil, nil, err
	}
	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		return nil, nil, nil, err
	}
	return a, cfg, log, nil
}
