// Package cli implements the catalog command-line tool.
//
// Every subcommand prints the diagnostics of its pass to stdout (warnings,
// then errors, then a one-line summary) and returns ErrReported when the
// pass had fatal issues, so main can exit non-zero without printing them
// twice. Logs go to stderr.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/catalogsync/internal/application"
	"github.com/JonMunkholm/catalogsync/internal/config"
	"github.com/JonMunkholm/catalogsync/internal/diag"
	"github.com/JonMunkholm/catalogsync/internal/logging"
)

// ErrReported is returned after a pass whose issues were already printed.
var ErrReported = errors.New("finished with errors")

// Version is set at build time.
var Version = "dev"

// globalOptions are the persistent flags.
type globalOptions struct {
	envName     string
	envFile     string
	catalogPath string
	logLevel    string
}

type appKey struct{}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Validate, upload and merge product sheets into the catalog",
		Long: `catalog turns product and image spreadsheets into the storefront catalog.

It validates the products sheet, uploads the images named by the images
sheet (skipping files already uploaded), and merges both into the catalog
document. Nothing is written unless every stage succeeds.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			cfg, err := loadConfig(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, cfg))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.envName, "env", os.Getenv("XA_ENV"), "Environment name selecting data/.env.xa.<env>")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "Env file to load before the environment")
	rootCmd.PersistentFlags().StringVar(&opts.catalogPath, "catalog", "", "Catalog document (default: XA_CATALOG_PATH)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (default: LOG_LEVEL)")

	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newImagesCommand())
	rootCmd.AddCommand(newImportCommand())
	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newSyncCommand())
	rootCmd.AddCommand(newExportCommand())

	return rootCmd
}

// Execute runs the root command with args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rootCmd := NewRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, ErrReported) {
			fmt.Fprintf(stderr, "Error: %s\n", describe(err))
		}
		return 1
	}
	return 0
}

// loadConfig applies env files, loads and validates the configuration and
// sets up logging on stderr.
func loadConfig(opts *globalOptions, stderr io.Writer) (*config.Config, error) {
	envPath, err := config.LoadEnvFiles(opts.envFile, opts.envName)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if opts.catalogPath != "" {
		cfg.Sync.CatalogPath = opts.catalogPath
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format, stderr)
	if envPath != "" {
		logger.Debug("loaded env file", "path", envPath)
	}
	return cfg, nil
}

func configFrom(cmd *cobra.Command) *config.Config {
	cfg, _ := cmd.Context().Value(appKey{}).(*config.Config)
	return cfg
}

// buildApp assembles the service for one command.
func buildApp(cmd *cobra.Command, opts application.Options) (*application.App, error) {
	opts.Logger = slog.Default()
	return application.Build(cmd.Context(), configFrom(cmd), opts)
}

// describe renders err with its support code.
func describe(err error) string {
	msg := diag.MapError(err)
	if msg.Code == "ERR000" {
		return err.Error()
	}
	return fmt.Sprintf("%s (Code: %s). %s", err.Error(), msg.Code, msg.Action)
}
