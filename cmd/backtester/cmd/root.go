package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rustyeddy/backtester/config"
)

var (
	cfgFile string

	// v is rebuilt for every invocation from defaults, the config file,
	// BACKTEST_* variables and the flags the running command binds.
	v *viper.Viper
)

var rootCmd = &cobra.Command{
	Use:   "backtester",
	Short: "A bar-driven strategy backtester",
	Long: `Backtester replays OHLCV bars through a trading strategy and reports
how it would have done.

It provides tools for:
  - Running a strategy over a CSV, parquet or Databento dataset
  - Running one strategy over every symbol of a Databento directory
  - Writing trade logs, equity curves and session files for charting
  - Journaling runs to SQLite or CSV and serving them over HTTP
  - Converting bar data to parquet`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v = config.NewViper()
		if cfgFile != "" {
			if err := config.ReadFile(v, cfgFile); err != nil {
				return err
			}
		}
		return bindFlags(cmd, map[string]string{
			"log.level":  "log-level",
			"log.format": "log-format",
		})
	},
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML or JSON)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")
}

// bindFlags binds flags of cmd to config keys. A flag only overrides the
// file and environment when it is set on the command line.
func bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for key, name := range keys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			return fmt.Errorf("flag --%s is not defined on %s", name, cmd.Name())
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}
