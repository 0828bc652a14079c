package main

import (
	"fmt"

	"github.com/couchcryptid/census-forecast/internal/config"
	"github.com/spf13/cobra"
)

// overrides holds the flags that take precedence over environment variables.
type overrides struct {
	years    int
	lastYear int
	workers  int
}

func newRootCmd() *cobra.Command {
	cfg := &config.Config{}
	var flags overrides

	rootCmd := &cobra.Command{
		Use:   "forecast",
		Short: "Forecast future wildlife census years",
		Long: `forecast reads a cleaned historical census table, predicts count, latitude and
longitude for each future survey year from per-species lags, and publishes the
synthetic rows to the configured sinks (CSV file, Kafka, PostgreSQL).

Configuration is read from environment variables (and an optional .env file).
Flags override the matching variables:
  --years      FORECAST_YEARS
  --last-year  FORECAST_LAST_YEAR
  --workers    FORECAST_WORKERS`,
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			applyOverrides(cmd, loaded, flags)
			if err := loaded.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			*cfg = *loaded
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.IntVar(&flags.years, "years", 1, "number of future survey years to synthesize")
	pf.IntVar(&flags.lastYear, "last-year", 2022, "last historical survey year")
	pf.IntVar(&flags.workers, "workers", 1, "species groups synthesized concurrently")

	rootCmd.AddCommand(newRunCmd(cfg))
	rootCmd.AddCommand(newServeCmd(cfg))
	return rootCmd
}

// applyOverrides copies explicitly set flags onto cfg.
func applyOverrides(cmd *cobra.Command, cfg *config.Config, o overrides) {
	f := cmd.Flags()
	if f.Changed("years") {
		cfg.Years = o.years
	}
	if f.Changed("last-year") {
		cfg.LastYear = o.lastYear
	}
	if f.Changed("workers") {
		cfg.Workers = o.workers
	}
}
