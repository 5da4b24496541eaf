package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/math-dev-24/filevault/clientcli"
)

var (
	downloadOutput string
	downloadStdout bool
)

var downloadCmd = &cobra.Command{
	Use:   "download <file-id>",
	Short: "Download a file",
	Long: `Download a file by id.

The file is saved under the name it was uploaded with unless -o is given.

Examples:
  filevault-cli download 12
  filevault-cli download 12 -o ./scan.pdf
  filevault-cli download 12 --stdout > scan.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().StringVarP(&downloadOutput, "output", "o", "", "output file path")
	downloadCmd.Flags().BoolVar(&downloadStdout, "stdout", false, "write to stdout")
}

func runDownload(cmd *cobra.Command, args []string) error {
	id, err := parseFileID(args[0])
	if err != nil {
		return err
	}

	localPath := downloadOutput
	if downloadStdout {
		localPath = "-"
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	result, reader, err := client.Download(cmd.Context(), clientcli.DownloadOptions{
		FileID:    id,
		LocalPath: localPath,
	})
	if err != nil {
		return err
	}

	if reader != nil {
		defer func() { _ = reader.Close() }()
		written, err := io.Copy(cmd.OutOrStdout(), reader)
		if err != nil {
			return err
		}
		result.Size = written
		if jsonOutput {
			return getFormatter().FormatDownload(cmd.ErrOrStderr(), result)
		}
		return nil
	}

	return getFormatter().FormatDownload(cmd.OutOrStdout(), result)
}
