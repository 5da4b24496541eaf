package main

import (
	"github.com/spf13/cobra"

	"github.com/math-dev-24/filevault/clientcli"
)

var deleteCmd = &cobra.Command{
	Use:     "delete <file-id>...",
	Aliases: []string{"rm"},
	Short:   "Delete files",
	Long: `Delete one or more files by id.

Each id is attempted even if an earlier one fails.

Examples:
  filevault-cli delete 12
  filevault-cli delete 12 13 14`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDelete,
}

func runDelete(cmd *cobra.Command, args []string) error {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := parseFileID(arg)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	results, err := client.Delete(cmd.Context(), clientcli.DeleteOptions{FileIDs: ids})
	if err != nil {
		return err
	}

	if err := getFormatter().FormatDelete(cmd.OutOrStdout(), results); err != nil {
		return err
	}

	if clientcli.HasDeleteErrors(results) {
		return &exitError{code: 1}
	}
	return nil
}
