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

var (
	askTopK          int
	askShowGrounding bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question grounded in the product catalog",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().IntVar(&askTopK, "top", 0, "retrieval depth (default from config)")
	askCmd.Flags().BoolVar(&askShowGrounding, "show-grounding", false, "print the search query and retrieved products before the answer")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
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
	if askTopK > 0 {
		opts = append(opts, rag.WithTopK(askTopK))
	}

	gctx, err := a.Grounder.Ground(ctx, conversation, nil, opts...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if askShowGrounding {
		for _, thought := range gctx.Thoughts {
			fmt.Fprintf(out, "%s: %s\n", thought.Title, thought.Description)
		}
		for i, hit := range gctx.LatestGrounding() {
			fmt.Fprintf(out, "%d. %s (id %s)\n", i+1, hit.Title, hit.ID)
		}
		fmt.Fprintln(out)
	}

	answer, err := a.Responder.Answer(ctx, conversation, gctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, answer)
	return nil
}
