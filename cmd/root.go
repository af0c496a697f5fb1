package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/bookcovers/internal/config"
)

func NewRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "bookcovers",
		Short: "Cover image resolution for children's book recommendations",
		Long: `Bookcovers finds the correct front cover image for a recommended book.

It queries bibliographic providers with several strategies, verifies that the
title and author really match, optionally inspects candidate images with a
vision model, and falls back to a themed placeholder when nothing qualifies.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			setupLogging(verbose)
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(newResolveCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newEvalCmd())

	return cmd
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose || strings.EqualFold(os.Getenv("LOG_LEVEL"), "debug") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// loadConfig reads the environment and applies the flags the user set.
func loadConfig(cmd *cobra.Command, visual bool, providerList string) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if cmd.Flags().Changed("visual") {
		cfg.Visual = visual
	}
	if cmd.Flags().Changed("providers") {
		cfg.Providers = nil
		for _, p := range strings.Split(providerList, ",") {
			if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
				cfg.Providers = append(cfg.Providers, p)
			}
		}
	}
	return cfg, cfg.Validate()
}

func addResolverFlags(cmd *cobra.Command, visual *bool, providerList *string) {
	cmd.Flags().BoolVar(visual, "visual", false, "Run the visual confidence check (overrides BOOKCOVERS_VISUAL)")
	cmd.Flags().StringVar(providerList, "providers", "", "Comma separated bibliographic providers (overrides BOOKCOVERS_PROVIDERS)")
}
