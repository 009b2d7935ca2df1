package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/outfitter-ai/outfitter/internal/app"
	"github.com/outfitter-ai/outfitter/internal/catalog"
	"github.com/outfitter-ai/outfitter/internal/config"
)

var catalogFile string

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Provision the search index and ingest the product catalog",
	Long: `index creates the search index schema if it does not exist, then
embeds every catalog record and writes it to the index. Both steps are
idempotent: re-running updates existing products in place.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&catalogFile, "file", "assets/products.csv", "catalog CSV file (id,name,description)")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	records, err := catalog.Load(catalogFile)
	if err != nil {
		return err
	}

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.Store.Provision(ctx); err != nil {
		return err
	}

	result, err := a.Ingest.Run(ctx, records)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "indexed %d of %d products into %q\n",
		result.Written, len(records), cfg.IndexName)
	for _, f := range result.Failures {
		fmt.Fprintf(cmd.ErrOrStderr(), "  failed %s: %v\n", f.ID, f.Err)
	}
	if len(result.Failures) > 0 {
		return fmt.Errorf("%d records failed", len(result.Failures))
	}
	return nil
}
