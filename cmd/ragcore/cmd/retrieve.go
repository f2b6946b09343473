package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abrahaamv/ifinallywill-sub004/internal/output"
	"github.com/abrahaamv/ifinallywill-sub004/internal/search"
)

type retrieveOptions struct {
	tenant   string
	topK     int
	minScore float64
	fusion   string
	noRerank bool
}

func newRetrieveCmd() *cobra.Command {
	var opts retrieveOptions

	cmd := &cobra.Command{
		Use:   "retrieve <query>",
		Short: "Run the retrieval pipeline without generation",
		Long: `Retrieve runs hybrid search, fusion, hierarchical expansion and
context assembly, printing the passages that would ground an answer.

Examples:
  ragcore retrieve "refund window" --tenant acme
  ragcore retrieve "SKU-1234" --tenant acme --fusion weighted --top-k 3`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRetrieve(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.tenant, "tenant", "t", "", "Tenant to search (required)")
	cmd.Flags().IntVarP(&opts.topK, "top-k", "n", 0, "Passages to return (default from config)")
	cmd.Flags().Float64Var(&opts.minScore, "min-score", 0, "Relevance floor (default from config)")
	cmd.Flags().StringVar(&opts.fusion, "fusion", "", "Fusion algorithm: rrf or weighted")
	cmd.Flags().BoolVar(&opts.noRerank, "no-rerank", false, "Skip the reranker even when configured")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

func runRetrieve(cmd *cobra.Command, query string, opts retrieveOptions) error {
	svcs, err := openServices(cmd.Context())
	if err != nil {
		return err
	}
	defer svcs.close()

	resp, err := svcs.pipeline.RetrieveContext(cmd.Context(), opts.tenant, query, search.Options{
		TopK:          opts.topK,
		MinScore:      opts.minScore,
		Fusion:        opts.fusion,
		DisableRerank: opts.noRerank,
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(resp)
	}

	w := output.New(os.Stdout)
	if resp.TotalChunks == 0 {
		w.Warning("no passages matched")
		return nil
	}
	fmt.Fprintln(os.Stdout, resp.Context)
	w.Newline()
	for i, c := range resp.Chunks {
		w.Detailf("[%d] %s doc=%s score=%.3f %s", i+1, c.ID, c.DocumentID, c.Score, c.Confidence)
	}
	w.Detailf("%d passages in %dms", resp.TotalChunks, resp.ProcessingTimeMs)
	for _, stage := range resp.Degraded {
		w.Warningf("degraded: %s", stage)
	}
	return nil
}
