package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/zip-ingest/internal/config"
	"github.com/Sternrassler/zip-ingest/pkg/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// app is the state shared by all commands once the root pre-run has loaded it.
type app struct {
	cfg    config.Config
	logger zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	var (
		configFile string
		envFiles   []string
		logLevel   string
		pretty     bool
	)

	root := &cobra.Command{
		Use:   "zip-ingest",
		Short: "ZIP-first Yelp restaurant ingestion",
		Long: `zip-ingest - ZIP-first restaurant ingestion from the Yelp Fusion API.

Searches each ZIP code page by page, keeps only businesses located in the
requested ZIP code, normalizes and stores them, and reports per-ZIP outcomes
under a global API call budget.

Available commands:
  run     - Ingest restaurants for a list of ZIP codes
  sample  - Fetch one search page and describe its structure
  dbcheck - Verify the restaurant table in Postgres

Examples:
  zip-ingest run 94566 94588               # Ingest two ZIP codes
  zip-ingest run --zips-file zips.txt      # ZIP codes from a file
  zip-ingest run 94566 --stub              # Dry run without API calls
  zip-ingest sample --location "Pleasanton, CA"
  zip-ingest dbcheck --ensure`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadEnvFiles(envFiles...); err != nil {
				return err
			}

			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if cmd.Flags().Changed("log-level") {
				level, err := logging.ParseLevel(logLevel)
				if err != nil {
					return err
				}
				cfg.Logging.Level = level
			}
			if cmd.Flags().Changed("pretty") {
				cfg.Logging.Pretty = pretty
			}

			a.cfg = cfg
			a.logger = logging.Setup(logging.Config{
				Level:   cfg.Logging.Level,
				Pretty:  cfg.Logging.Pretty,
				Output:  cmd.ErrOrStderr(),
				Service: "zip-ingest",
			}).With().Str("component", "cli").Logger()
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "Config file (yaml, json or toml)")
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "Env files loaded before the environment is read")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&pretty, "pretty", false, "Human-readable log output")

	root.AddCommand(newRunCmd(a), newSampleCmd(a), newDBCheckCmd(a))
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
