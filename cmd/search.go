package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/outfitter-ai/outfitter/internal/app"
	"github.com/outfitter-ai/outfitter/internal/config"
	"github.com/outfitter-ai/outfitter/internal/provider"
	"github.com/outfitter-ai/outfitter/internal/rag"
)

var searchTopK int

var searchCmd = &cobra.Command{
	Use:   "search [question]",
	Short: "Run one grounded retrieval pass and print the results",
	Long: `search rewrites the question into a standalone search query, runs a
hybrid lexical + vector search, and prints the generated query with the
matching products. Useful for inspecting what 'ask' would be grounded in.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&searchTopK, "top", 0, "retrieval depth (default from config)")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	conversation := []provider.Message{
		{Role: provider.RoleUser, Content: strings.Join(args, " ")},
	}

	var opts []rag.GroundOption
	if searchTopK > 0 {
		opts = append(opts, rag.WithTopK(searchTopK))
	}

	gctx, err := a.Grounder.Ground(ctx, conversation, nil, opts...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, thought := range gctx.Thoughts {
		fmt.Fprintf(out, "%s: %s\n", thought.Title, thought.Description)
	}

	hits := gctx.LatestGrounding()
	if len(hits) == 0 {
		fmt.Fprintln(out, "no matching products")
		return nil
	}
	fmt.Fprintln(out)
	for i, hit := range hits {
		fmt.Fprintf(out, "%d. %s (id %s)\n   %s\n", i+1, hit.Title, hit.ID, hit.Content)
	}
	return nil
}
