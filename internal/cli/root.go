// Package cli holds the cobra command tree of the recipe-api binary.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iliyamo/recipe-api/internal/config"
	"github.com/iliyamo/recipe-api/internal/database"
	"github.com/iliyamo/recipe-api/internal/logger"
)

// app is filled by the root command before any subcommand runs.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	load   func() (config.Config, error)
}

// NewRootCmd builds the command tree. load is the configuration source;
// Execute passes config.Load.
func NewRootCmd(load func() (config.Config, error)) *cobra.Command {
	a := &app{load: load}
	root := &cobra.Command{
		Use:   "recipe-api",
		Short: "Recipe API - recipes, tags and ingredients per user",
		Long: `recipe-api serves a JSON API for managing recipes together with the
tags and ingredients attached to them. Every user sees only their own data.

Configuration is read from the environment (and an optional .env file).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logger.New(logger.Config{
				Format:      cfg.Log.Format,
				Environment: cfg.App.Env,
				Level:       cfg.Log.Level,
			})
			slog.SetDefault(a.logger)
			return nil
		},
	}
	root.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newWaitForDBCmd(a),
		newCreateSuperuserCmd(a),
		newConsumeEventsCmd(a),
	)
	return root
}

// Execute runs the root command until it finishes or the process receives
// SIGINT/SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := NewRootCmd(config.Load).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// openDB opens the pool and blocks until MySQL answers or WAIT_TIMEOUT
// elapses.
func (a *app) openDB(ctx context.Context) (*sql.DB, error) {
	db, err := database.Open(a.cfg.DB)
	if err != nil {
		return nil, err
	}
	if err := database.WaitForDB(ctx, db, a.cfg.Wait.Interval, a.cfg.Wait.Timeout, a.logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
