package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/txrecon/txrecon/internal/domain"
)

var (
	showAll bool

	addName           string
	addAsset          string
	addKind           string
	addHashPattern    string
	addAddressPattern string
	addAPIURL         string
	addCredentialEnv  string
	addNeedsRecipient bool
)

var chainsCmd = &cobra.Command{
	Use:   "chains",
	Short: "Manage the chain registry",
}

var chainsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered chains",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		chains, err := a.registry.List(cmd.Context(), showAll)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(chains)
		}
		for _, c := range chains {
			state := "active"
			if !c.Active {
				state = "inactive"
			}
			origin := "builtin"
			if c.Custom {
				origin = "custom"
			}
			fmt.Printf("%-8s %-22s %-12s %-8s %s\n", c.Symbol, c.Name, c.Kind, state, origin)
		}
		return nil
	},
}

var chainsAddCmd = &cobra.Command{
	Use:   "add <symbol>",
	Short: "Register a custom chain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		cfg := domain.ChainConfig{
			Symbol:           args[0],
			Name:             addName,
			AssetSymbol:      addAsset,
			Kind:             domain.AdapterKind(addKind),
			HashPattern:      addHashPattern,
			AddressPattern:   addAddressPattern,
			APIURL:           addAPIURL,
			CredentialEnvVar: addCredentialEnv,
			NeedsRecipient:   addNeedsRecipient,
		}
		created, err := a.registry.Create(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(created)
		}
		fmt.Printf("registered %s (%s, %s adapter)\n", created.Symbol, created.Name, created.Kind)
		return nil
	},
}

var chainsRemoveCmd = &cobra.Command{
	Use:   "remove <symbol>",
	Short: "Remove a custom chain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.registry.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("removed %s\n", args[0])
		return nil
	},
}

var chainsToggleCmd = &cobra.Command{
	Use:   "toggle <symbol>",
	Short: "Activate or deactivate a chain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		cfg, err := a.registry.Toggle(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		state := "active"
		if !cfg.Active {
			state = "inactive"
		}
		fmt.Printf("%s is now %s\n", cfg.Symbol, state)
		return nil
	},
}

func init() {
	chainsListCmd.Flags().BoolVar(&showAll, "all", false, "include deactivated chains")

	chainsAddCmd.Flags().StringVar(&addName, "name", "", "display name")
	chainsAddCmd.Flags().StringVar(&addAsset, "asset", "", "priced asset symbol, defaults to the chain symbol")
	chainsAddCmd.Flags().StringVar(&addKind, "kind", string(domain.AdapterUnsupported),
		"adapter kind: utxo, evmLike, balanceDiff or unsupported")
	chainsAddCmd.Flags().StringVar(&addHashPattern, "hash-pattern", "", "transaction hash regexp")
	chainsAddCmd.Flags().StringVar(&addAddressPattern, "address-pattern", "", "address regexp")
	chainsAddCmd.Flags().StringVar(&addAPIURL, "api-url", "", "explorer or RPC base URL")
	chainsAddCmd.Flags().StringVar(&addCredentialEnv, "credential-env", "", "environment variable holding the API key")
	chainsAddCmd.Flags().BoolVar(&addNeedsRecipient, "needs-recipient", false, "require a recipient address on verify")
	chainsAddCmd.MarkFlagRequired("name")

	chainsCmd.AddCommand(chainsListCmd, chainsAddCmd, chainsRemoveCmd, chainsToggleCmd)
	rootCmd.AddCommand(chainsCmd)
}
