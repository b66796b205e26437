package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/txrecon/txrecon/internal/domain"
)

var (
	recipientAddress string
	listOutputs      bool
)

var (
	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}).
		Bold(true)
	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")).
			Bold(true)
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#7571F9", Dark: "#7D56F4"}).
			Width(14)
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#909090", Dark: "#626262"})
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
)

var verifyCmd = &cobra.Command{
	Use:   "verify <chain> <hash>",
	Short: "Verify a transaction and value it in fiat",
	Args:  cobra.ExactArgs(2),
	RunE:  runVerify,
}

func init() {
	verifyCmd.Flags().StringVarP(&recipientAddress, "address", "a", "", "recipient address to single out")
	verifyCmd.Flags().BoolVar(&listOutputs, "outputs", false, "list destination addresses instead of verifying")
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	chain, hash := args[0], args[1]

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()

	if listOutputs {
		outputs, err := a.verifier.ListOutputAddresses(ctx, hash, chain)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(outputs)
		}
		for _, out := range outputs {
			fmt.Printf("%s  %s\n", out.Address, out.Amount.String())
		}
		return nil
	}

	env := a.verifier.Verify(ctx, hash, chain, recipientAddress)
	if jsonOutput {
		if err := printJSON(env); err != nil {
			return err
		}
	} else {
		renderEnvelope(env)
	}
	if code := exitCode(env); code != 0 {
		a.close()
		os.Exit(code)
	}
	return nil
}

// exitCode maps a verification envelope to the process exit status. Both
// output modes report failure the same way, so scripted callers can rely
// on the status alone.
func exitCode(env domain.Envelope) int {
	if env.Success {
		return 0
	}
	return 1
}

func renderEnvelope(env domain.Envelope) {
	if !env.Success {
		fmt.Println(failStyle.Render(fmt.Sprintf("✗ %s", env.Error)))
		fmt.Println(env.Message)
		return
	}

	r := env.Data
	var b strings.Builder

	b.WriteString(okStyle.Render("✓ verified") + "\n")
	row(&b, "Chain", r.ChainSymbol)
	row(&b, "Hash", r.Hash)
	row(&b, "Status", string(r.Confirmation))
	if r.Timestamp != nil {
		row(&b, "Time", r.Timestamp.UTC().Format("2006-01-02 15:04:05 MST"))
	}
	if r.BlockHeight != nil {
		row(&b, "Block", fmt.Sprintf("%d", *r.BlockHeight))
	}
	row(&b, "Amount", fmt.Sprintf("%s %s", r.Quantity.String(), r.AssetSymbol))
	row(&b, "Fee", fmt.Sprintf("%s %s", r.Fee.String(), r.AssetSymbol))

	if r.PriceAtInstant != nil {
		row(&b, "Price", fmt.Sprintf("%s %s (%s)",
			r.PriceAtInstant.StringFixed(2), r.Currency, r.Trace.Calculation.PriceSource))
		row(&b, "Value", fmt.Sprintf("%s %s", r.EstimatedValue.StringFixed(2), r.Currency))
		if r.Trace.Calculation.Total != nil {
			row(&b, "Total", fmt.Sprintf("%s %s incl. fee", r.Trace.Calculation.Total.StringFixed(2), r.Currency))
		}
		b.WriteString(dimStyle.Render(sourcesLine(r.Trace.PriceSources)))
	} else {
		b.WriteString(dimStyle.Render("no price source answered for this instant"))
	}

	fmt.Println(boxStyle.Render(b.String()))
}

func row(b *strings.Builder, label, value string) {
	b.WriteString(labelStyle.Render(label) + value + "\n")
}

func sourcesLine(recon domain.PriceReconciliation) string {
	parts := make([]string, 0, len(recon.Sources))
	for _, name := range []string{domain.SourceCandle, domain.SourceAggregator, domain.SourceRange} {
		price, ok := recon.Sources[name]
		if !ok {
			continue
		}
		parts = append(parts, name+"="+formatPrice(price))
	}
	return "sources: " + strings.Join(parts, "  ")
}

func formatPrice(p *decimal.Decimal) string {
	if p == nil {
		return "-"
	}
	return p.StringFixed(2)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
