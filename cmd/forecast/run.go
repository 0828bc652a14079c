package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/census-forecast/internal/config"
	"github.com/couchcryptid/census-forecast/internal/observability"
	"github.com/spf13/cobra"
)

func newRunCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one forecast and exit",
		Long: `Loads the historical table and model bundle, synthesizes the configured number
of future years, and hands the result to every enabled sink.

Examples:
  forecast run
  forecast run --years 5 --last-year 2022 --workers 4`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger := observability.NewLogger(cfg)
			a, err := newApp(ctx, cfg, logger, observability.NewMetrics())
			if err != nil {
				return err
			}
			defer a.close()

			f, err := a.forecaster.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "run %s: %d synthetic rows for %d..%d\n",
				f.RunID, len(f.Synthetic()), f.LastYear+1, f.LastYear+f.Years)
			return nil
		},
	}
}
