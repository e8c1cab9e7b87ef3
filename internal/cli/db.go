package cli

import (
	"github.com/spf13/cobra"

	"github.com/iliyamo/recipe-api/internal/database"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database schema",
		Long: `Create every table the service needs. The schema only uses
CREATE TABLE IF NOT EXISTS, so running it again is harmless.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := database.Migrate(ctx, db); err != nil {
				return err
			}
			a.logger.Info("schema applied", "statements", len(database.Statements()))
			return nil
		},
	}
}

func newWaitForDBCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "wait-for-db",
		Short: "Block until the database accepts connections",
		Long: `Ping the database every WAIT_INTERVAL until it answers or WAIT_TIMEOUT
elapses. Useful as a container start step before migrate and serve.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			return db.Close()
		},
	}
}
