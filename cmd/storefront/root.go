package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/mkrupp/storefront/internal/infra/config"
	"github.com/mkrupp/storefront/internal/infra/logging"
)

// ValidFormats defines the allowed output formats of the listing commands.
//
//nolint:gochecknoglobals
var ValidFormats = []string{"text", "json"}

// RootOptions holds global flags and the configuration parsed from them.
type RootOptions struct {
	EnvFile string
	Format  string // "text" | "json"

	Config Config
}

// NewRootCommand creates the root command of the storefront CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Storefront cart and pricing engine",
		Long: `Storefront serves a product catalog, per-identity carts with
stock-clamped quantities and priced totals, and an order log over HTTP.

Configuration is read from STOREFRONT_* environment variables, optionally
loaded from a dotenv file first.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}

			if err := config.LoadDotEnv(opts.EnvFile); err != nil {
				return fmt.Errorf("load env file: %w", err)
			}

			if err := config.Parse(cmd.Context(), &opts.Config, configNamespace); err != nil {
				return fmt.Errorf("parse config: %w", err)
			}

			logging.Configure(cmd.Context(), opts.Config.Log, appName)

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file loaded before configuration is parsed")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewCatalogCommand(opts))
	cmd.AddCommand(NewOrdersCommand(opts))

	return cmd
}
