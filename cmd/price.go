package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var priceCmd = &cobra.Command{
	Use:   "price <asset>...",
	Short: "Show current prices for one or more assets",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		quotes, err := a.resolver.CurrentPrices(cmd.Context(), args)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(quotes)
		}
		for _, sym := range args {
			sym = strings.ToUpper(sym)
			quote, ok := quotes[sym]
			if !ok {
				fmt.Printf("%-8s no price available\n", sym)
				continue
			}
			fmt.Printf("%-8s %s %s\n", quote.Symbol, quote.Price.StringFixed(2), quote.Currency)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(priceCmd)
}
