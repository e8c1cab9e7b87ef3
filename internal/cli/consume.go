package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/iliyamo/recipe-api/internal/queue"
)

func newConsumeEventsCmd(a *app) *cobra.Command {
	var logPath string
	cmd := &cobra.Command{
		Use:   "consume-events",
		Short: "Append recipe events from the broker to a log file",
		Long: `Consume the recipe.events queue and write one line per event to
--log-file. Runs until interrupted and reconnects when the broker drops.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.AMQPURL == "" {
				return errors.New("AMQP_URL is not set")
			}
			c := &queue.Consumer{URL: a.cfg.AMQPURL, LogPath: logPath, Logger: a.logger}
			a.logger.Info("consuming recipe events", "queue", queue.RecipeEventQueue, "log_file", logPath)
			return c.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&logPath, "log-file", "logs/recipe_events.log", "File the events are appended to")
	return cmd
}
