package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"filmroom/internal/corpus"
	"filmroom/internal/retrieval"
	"filmroom/internal/vectorstore"
)

func newCorpusCommand(ctx *commandContext) *cobra.Command {
	corpusCmd := &cobra.Command{
		Use:   "corpus",
		Short: "Manage the similarity corpus",
	}
	corpusCmd.AddCommand(newCorpusAddCommand(ctx))
	corpusCmd.AddCommand(newCorpusSearchCommand(ctx))
	corpusCmd.AddCommand(newCorpusCountCommand(ctx))
	return corpusCmd
}

func newCorpusAddCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "add <json>...",
		Short: "Embed analysed-play documents and store them in the corpus",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, closeLog, err := ctx.logger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = closeLog() }()
			gateway, err := ctx.openGateway(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			store, err := ctx.openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			ingester := corpus.NewIngester(gateway, store, corpus.OptionsFrom(cfg), logger)
			entries, err := ingester.AddFiles(cmd.Context(), args)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, entries)
			}
			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, []string{entry.ID, strings.Join(entry.Labels, ", "), entry.Source})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"ID", "Labels", "Source"}, rows))
			fmt.Fprintf(out, "Stored %d document(s) in %s\n", len(entries), cfg.VectorStore.Collection)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print stored entries as JSON")
	return cmd
}

func newCorpusSearchCommand(ctx *commandContext) *cobra.Command {
	var topK int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Show the nearest corpus documents for free text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, closeLog, err := ctx.logger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = closeLog() }()
			gateway, err := ctx.openGateway(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			store, err := ctx.openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			retriever := retrieval.New(gateway, store, retrieval.OptionsFrom(cfg), logger)
			k := topK
			if k <= 0 {
				k = retriever.TopK()
			}
			examples, err := retriever.Search(cmd.Context(), strings.Join(args, " "), k)
			if err != nil {
				return err
			}
			candidates := retrieval.ExtractCandidates(examples, cfg.Candidates.Defaults)
			if jsonOutput {
				return writeJSON(cmd, struct {
					Examples   []vectorstore.Example  `json:"examples"`
					Candidates retrieval.CandidateSet `json:"candidates"`
				}{examples, candidates})
			}
			out := cmd.OutOrStdout()
			if len(examples) == 0 {
				fmt.Fprintf(out, "No documents in %s\n", cfg.VectorStore.Collection)
				return nil
			}
			rows := make([][]string, 0, len(examples))
			for i, example := range examples {
				var labels []string
				if i < len(candidates.PerExample) {
					labels = candidates.PerExample[i].Labels
				}
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					example.ID,
					strconv.FormatFloat(example.Distance, 'f', 4, 64),
					strings.Join(labels, ", "),
				})
			}
			fmt.Fprintln(out, renderTable([]string{"#", "ID", "Distance", "Labels"}, rows, 0, 2))
			return nil
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of neighbours (defaults to vector_store.top_k)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print neighbours as JSON")
	return cmd
}

func newCorpusCountCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Report how many documents the collection holds",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			coll, err := store.GetOrCreateCollection(cmd.Context(), cfg.VectorStore.Collection)
			if err != nil {
				return err
			}
			count, err := coll.Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d document(s)\n", coll.Name(), count)
			return nil
		},
	}
}
