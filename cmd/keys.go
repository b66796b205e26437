package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var keyLabel string

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage stored explorer API keys",
}

var keysSetCmd = &cobra.Command{
	Use:   "set <symbol> <key>",
	Short: "Store an API key for a chain",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.registry.SetCredential(cmd.Context(), args[0], args[1], keyLabel); err != nil {
			return err
		}
		fmt.Printf("stored key for %s\n", args[0])
		return nil
	},
}

var keysRemoveCmd = &cobra.Command{
	Use:   "remove <symbol>",
	Short: "Remove a stored API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.registry.RemoveCredential(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("removed key for %s\n", args[0])
		return nil
	},
}

var keysStatusCmd = &cobra.Command{
	Use:   "status <symbol>",
	Short: "Show whether a chain has a usable API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		has, err := a.registry.HasCredential(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if has {
			fmt.Printf("%s: key available\n", args[0])
		} else {
			fmt.Printf("%s: no key configured\n", args[0])
		}
		return nil
	},
}

func init() {
	keysSetCmd.Flags().StringVar(&keyLabel, "label", "", "optional label for the key")
	keysCmd.AddCommand(keysSetCmd, keysRemoveCmd, keysStatusCmd)
	rootCmd.AddCommand(keysCmd)
}
