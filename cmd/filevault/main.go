package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/math-dev-24/filevault/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "filevault",
	Short:   "Authenticated file hosting server",
	Long: `filevault hosts files for registered users. Each user obtains a
24 hour API key and sends it in the x-api-key header to upload, list,
download and delete their own files.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFiles, _ := cmd.Flags().GetStringSlice("config")

		cfg, err := config.Load(configFiles, cmd.Flags())
		if err != nil {
			return err
		}

		setupLogging(cfg.Log)

		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringSlice("config", nil, "config file paths, later files override earlier ones (default: ./config.yaml)")
	flags.String("db-type", "", "database type: sqlite, postgres (default: sqlite, env: FILEVAULT_DATABASE_TYPE)")
	flags.String("db-dsn", "", "database connection string (default: filevault.db, env: FILEVAULT_DATABASE_DSN)")
	flags.String("storage-type", "", "storage backend: filesystem, s3 (default: filesystem, env: FILEVAULT_STORAGE_TYPE)")
	flags.String("storage-path", "", "storage directory path (default: ./data, env: FILEVAULT_STORAGE_PATH)")
	flags.String("log-level", "", "log level: debug, info, warn, error (env: FILEVAULT_LOG_LEVEL)")
	flags.String("log-format", "", "log format: auto, text, json (env: FILEVAULT_LOG_FORMAT)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
