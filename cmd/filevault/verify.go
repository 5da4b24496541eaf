package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/math-dev-24/filevault"
	"github.com/math-dev-24/filevault/config"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that file records and stored bytes agree",
	Long: `Compare every file record with the objects in storage.

Records whose bytes are gone are reported as missing. Stored objects with
no record are reported as orphaned; objects younger than --grace are left
out because an upload may still be writing its record.

The command exits non-zero when anything is missing, or when orphans are
found and --remove-orphans was not given.`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

var (
	verifyRemoveOrphans bool
	verifyGrace         time.Duration
	verifyJSON          bool
)

func init() {
	verifyCmd.Flags().BoolVar(&verifyRemoveOrphans, "remove-orphans", false, "delete orphaned objects from storage")
	verifyCmd.Flags().DurationVar(&verifyGrace, "grace", time.Hour, "ignore objects modified more recently than this")
	verifyCmd.Flags().BoolVar(&verifyJSON, "json", false, "print the report as JSON")
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	b, err := openBackend(cmd.Context(), cfg, false)
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	report, err := b.service.Verify(cmd.Context(), verifyGrace)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if verifyJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printReport(out, report)
	}

	if verifyRemoveOrphans && len(report.Orphaned) > 0 {
		removed, err := b.service.RemoveOrphans(cmd.Context(), report.Orphaned)
		slog.Info("orphans removed", "count", removed)
		if err != nil {
			return err
		}
		if !verifyJSON {
			fmt.Fprintf(out, "Removed %d orphaned object(s)\n", removed)
		}
		report.Orphaned = nil
	}

	if !report.Consistent() {
		return fmt.Errorf("%w: %d missing, %d orphaned",
			filevault.ErrInconsistent, len(report.Missing), len(report.Orphaned))
	}
	return nil
}

func printReport(w io.Writer, report filevault.Report) {
	fmt.Fprintf(w, "Checked %d record(s) against %d stored object(s)\n", report.Records, report.Objects)

	for _, f := range report.Missing {
		fmt.Fprintf(w, "missing   file %d (user %d) %s\n", f.ID, f.OwnerID, f.Path)
	}
	for _, o := range report.Orphaned {
		fmt.Fprintf(w, "orphaned  %s (%d bytes, %s)\n", o.Path, o.Size, o.ModTime.Format(time.RFC3339))
	}

	if report.Consistent() {
		fmt.Fprintln(w, "OK")
	}
}
