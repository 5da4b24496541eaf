package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info <file-id>",
	Short: "Show a file's metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	id, err := parseFileID(args[0])
	if err != nil {
		return err
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	info, err := client.Info(cmd.Context(), id)
	if err != nil {
		return err
	}

	return getFormatter().FormatInfo(cmd.OutOrStdout(), info)
}

func parseFileID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid file id %q", s)
	}
	return id, nil
}
