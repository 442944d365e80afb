package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/ProfileImport/internal/config"
	"github.com/JonMunkholm/ProfileImport/internal/logging"
)

// newRootCmd builds the importer command. Flag defaults come from cfg, so
// flags override environment variables.
func newRootCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "importer [csv-source]",
		Short: "Import user profiles from a CSV file into a document collection",
		Long: `importer reads a CSV of user profiles (username, email, avatar_url, created_at)
from a local path or an http(s) URL and creates one document per row in the
target collection. Rows are uploaded in file order; a failed row is logged and
the import continues with the next one.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				cfg.Source.Location = args[0]
			}

			logger := logging.New(cmd.OutOrStdout(), cfg.Logging.Level, cfg.Logging.Format)
			slog.SetDefault(logger)

			if err := cfg.Validate(); err != nil {
				err = fmt.Errorf("config validation: %w", err)
				logger.Error("failed to load configuration", "error", err)
				return err
			}

			if _, err := run(cmd.Context(), cfg); err != nil {
				logging.FromContext(cmd.Context()).Error("import failed", "error", err)
				return err
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&cfg.Source.Location, "source", "s", cfg.Source.Location, "CSV path, file:// or http(s):// URL")
	f.DurationVar(&cfg.Source.Timeout, "source-timeout", cfg.Source.Timeout, "timeout for downloading a remote CSV")
	f.Int64Var(&cfg.Source.MaxFileSize, "max-file-size", cfg.Source.MaxFileSize, "maximum CSV size in bytes")
	f.StringVarP(&cfg.Store.Backend, "backend", "b", cfg.Store.Backend, "document store: appwrite, postgres, mongo or memory")
	f.StringVar(&cfg.Target.DatabaseID, "database", cfg.Target.DatabaseID, "target database ID")
	f.StringVar(&cfg.Target.CollectionID, "collection", cfg.Target.CollectionID, "target collection ID")
	f.StringVar(&cfg.Appwrite.Endpoint, "appwrite-endpoint", cfg.Appwrite.Endpoint, "Appwrite API endpoint")
	f.StringVar(&cfg.Appwrite.ProjectID, "appwrite-project", cfg.Appwrite.ProjectID, "Appwrite project ID")
	f.BoolVar(&cfg.Database.AutoMigrate, "migrate", cfg.Database.AutoMigrate, "create the documents table before importing (postgres)")
	f.IntVarP(&cfg.Upload.Concurrency, "concurrency", "c", cfg.Upload.Concurrency, "number of create calls in flight")
	f.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "log level: debug, info, warn, error")
	f.StringVar(&cfg.Logging.Format, "log-format", cfg.Logging.Format, "log format: text or json")

	return cmd
}
