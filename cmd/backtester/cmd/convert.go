package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/market/data"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert bar data to parquet",
	Long: `Load bars from a CSV file or a Databento directory, optionally aggregate
them to a coarser resolution and write them to a parquet file that run can
read with --parquet.`,
	Example: `  backtester convert --databento-dir data/glbx --symbol esz4 --bar 15m --out data/esz4_15m.parquet`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		out, _ := f.GetString("out")
		bar, _ := f.GetString("bar")
		cfg := data.Config{}
		cfg.Path, _ = f.GetString("data")
		cfg.DatabentoDir, _ = f.GetString("databento-dir")
		cfg.Symbol, _ = f.GetString("symbol")

		if cfg.DatabentoDir != "" && cfg.Symbol == "" {
			return fmt.Errorf("--symbol is required with --databento-dir")
		}
		res, err := market.ParseResolution(bar)
		if err != nil {
			return err
		}
		src, err := data.Open(cfg)
		if err != nil {
			return err
		}
		bars, err := src.Load(cmd.Context())
		if err != nil {
			return err
		}
		bars = market.Aggregate(bars, res)
		if len(bars) == 0 {
			return fmt.Errorf("no bars loaded from %s", cfg.Label())
		}

		if err := data.WriteParquet(out, cfg.Symbol, bars); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %d %s bars to %s\n", len(bars), res, out)
		return nil
	},
}

func init() {
	convertCmd.Flags().String("data", "", "CSV bar file")
	convertCmd.Flags().String("databento-dir", "", "Databento OHLCV directory")
	convertCmd.Flags().String("symbol", "", "symbol to convert")
	convertCmd.Flags().String("bar", "1m", "output resolution: 1m, 15m or 1h")
	convertCmd.Flags().StringP("out", "o", "", "output parquet file")
	convertCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(convertCmd)
}
