package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/backtester/market/data"
	"github.com/rustyeddy/backtester/strategies"
)

var symbolsCmd = &cobra.Command{
	Use:   "symbols <databento-dir>",
	Short: "List the symbols in a Databento directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		symbols, err := data.ListSymbols(args[0])
		if err != nil {
			return err
		}
		if len(symbols) == 0 {
			return errors.New("no symbols found")
		}
		for _, s := range symbols {
			fmt.Fprintln(cmd.OutOrStdout(), strings.ToUpper(s))
		}
		return nil
	},
}

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List the registered strategies",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range strategies.Names() {
			fmt.Fprintf(cmd.OutOrStdout(), "%-16s min bars %d\n", name, strategies.MinBars(name))
		}
	},
}

func init() {
	rootCmd.AddCommand(symbolsCmd)
	rootCmd.AddCommand(strategiesCmd)
}
