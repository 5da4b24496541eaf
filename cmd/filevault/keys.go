package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/math-dev-24/filevault/config"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage API keys",
}

var keysPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired API keys",
	Long: `Delete every API key whose expiry has passed. Expired keys are already
rejected by the server; pruning only reclaims their rows.

Run this periodically, for example from cron.`,
	Args: cobra.NoArgs,
	RunE: runKeysPrune,
}

func init() {
	keysCmd.AddCommand(keysPruneCmd)
	rootCmd.AddCommand(keysCmd)
}

func runKeysPrune(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	b, err := openBackend(cmd.Context(), cfg, false)
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	pruned, err := b.service.PruneExpiredKeys(cmd.Context())
	if err != nil {
		return fmt.Errorf("prune keys: %w", err)
	}

	slog.Info("expired keys pruned", "count", pruned)
	fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d expired key(s)\n", pruned)
	return nil
}
