package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/config"
	"github.com/rustyeddy/backtester/internal/telemetry"
	"github.com/rustyeddy/backtester/market/data"
	"github.com/rustyeddy/backtester/report"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a strategy over one bar series",
	Long: `Run a strategy over one dataset and write the summary, trade log,
equity curve, report and session files to the reports directory.

With --databento-dir and no --symbol every symbol in the directory is run,
the same as the all command.`,
	Example: `  backtester run --data data/es_1m.csv --strategy sma_crossover --fast 9 --slow 21
  backtester run --databento-dir data/glbx --symbol esz4 --bar 15m --strategy orb
  backtester run --config backtest.yaml --journal sqlite`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, runFlagKeys)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		if cfg.Data.DatabentoDir != "" && cfg.Data.Symbol == "" {
			return runAll(cmd, cfg, logger)
		}
		return runOne(cmd, cfg, logger)
	},
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func runOne(cmd *cobra.Command, cfg *config.Config, logger *zap.Logger) error {
	out := cmd.OutOrStdout()

	src, err := data.Open(cfg.Source())
	if err != nil {
		return err
	}
	res, err := cfg.Resolution()
	if err != nil {
		return err
	}
	strat, params, err := cfg.NewStrategy()
	if err != nil {
		return err
	}

	metrics := telemetry.New()
	bt := &backtest.Backtester{
		Source:     src,
		Resolution: res,
		Config:     cfg.Sim(),
		Strategy:   strat,
		Logger:     logger.With(zap.String("strategy", cfg.Strategy.Name)),
		Metrics:    metrics,
	}
	session, err := bt.Run(cmd.Context())
	if err != nil {
		return err
	}

	rep := report.FromSession(session, cfg.Strategy.Name, params)
	rep.PrintSummary(out)

	label := cfg.Report.SessionLabel
	if label == "" {
		label = cfg.Source().Label()
	}
	if err := rep.WriteAll(cfg.Report.Dir, label); err != nil {
		return err
	}
	fmt.Fprintf(out, "Reports written to %s/\n", cfg.Report.Dir)

	if cfg.Journal.Type != config.JournalNone {
		j, err := openJournal(cfg)
		if err != nil {
			return err
		}
		runID, err := recordRun(j, cfg, rep, cfg.Data.Symbol)
		closeJournal(j, &err)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Journaled run %s (%s)\n", runID, cfg.Journal.Type)
	}

	return writeMetrics(cfg, metrics)
}
