package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/meghashyamc/playfinder/api"
	"github.com/meghashyamc/playfinder/config"
	"github.com/meghashyamc/playfinder/logger"
	"github.com/meghashyamc/playfinder/services/index"
	"github.com/spf13/cobra"
)

var (
	cfg *config.Config
	log logger.Logger
)

var rootCmd = &cobra.Command{
	Use:           "playfinder",
	Short:         "Search and rank soft play listings",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		godotenv.Load()

		c, err := config.Load("")
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		log = logger.New(cfg.GetLogLevel())

		return nil
	},
	RunE: serve,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the search API",
	Args:  cobra.NoArgs,
	RunE:  serve,
}

var replace bool

var importCmd = &cobra.Command{
	Use:   "import <path>",
	Short: "Import listings from a JSON file or a directory of JSON files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolve path: %w", err)
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		deps, err := api.NewDependencies(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer deps.Close()

		summary, err := deps.Import.Run(ctx, index.Request{Path: path, Replace: replace}, uuid.New().String())
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "files: %d, imported: %d, skipped: %d, removed: %d\n", summary.Files, summary.Imported, summary.Skipped, summary.Removed)
		return nil
	},
}

func serve(cmd *cobra.Command, args []string) error {
	return api.Run(cmd.Context(), cfg, log)
}

func init() {
	importCmd.Flags().BoolVar(&replace, "replace", false, "remove stored listings missing from the import")
	rootCmd.AddCommand(serveCmd, importCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}
