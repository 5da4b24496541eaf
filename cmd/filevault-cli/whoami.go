package main

import (
	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the account behind the API key",
	Args:  cobra.NoArgs,
	RunE:  runWhoami,
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	account, err := client.Whoami(cmd.Context())
	if err != nil {
		return err
	}

	return getFormatter().FormatAccount(cmd.OutOrStdout(), account)
}
