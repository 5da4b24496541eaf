package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	registerEmail         string
	registerName          string
	registerPasswordStdin bool
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	Long: `Create an account on the server.

The password is prompted for twice unless --password-stdin is given, in
which case the first line of standard input is used.

Examples:
  filevault-cli register --email ada@example.com --name Ada
  echo "$PASSWORD" | filevault-cli register --email ada@example.com --name Ada --password-stdin`,
	Args: cobra.NoArgs,
	RunE: runRegister,
}

func init() {
	registerCmd.Flags().StringVar(&registerEmail, "email", "", "account email")
	registerCmd.Flags().StringVar(&registerName, "name", "", "display name")
	registerCmd.Flags().BoolVar(&registerPasswordStdin, "password-stdin", false, "read the password from stdin")
	_ = registerCmd.MarkFlagRequired("email")
	_ = registerCmd.MarkFlagRequired("name")
}

func runRegister(cmd *cobra.Command, _ []string) error {
	password, err := readPassword(cmd.InOrStdin(), registerPasswordStdin, "Password")
	if err != nil {
		return err
	}
	if !registerPasswordStdin {
		confirm, err := readPassword(cmd.InOrStdin(), false, "Confirm password")
		if err != nil {
			return err
		}
		if confirm != password {
			return errors.New("passwords do not match")
		}
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	user, err := client.Register(cmd.Context(), registerEmail, registerName, password)
	if err != nil {
		return err
	}

	if err := getFormatter().FormatUser(cmd.OutOrStdout(), user); err != nil {
		return err
	}
	if !jsonOutput && !quiet {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Run 'filevault-cli login --user-id %d' to get an API key.\n", user.ID)
	}
	return nil
}
