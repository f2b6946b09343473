package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abrahaamv/ifinallywill-sub004/internal/config"
	"github.com/abrahaamv/ifinallywill-sub004/internal/embed"
	"github.com/abrahaamv/ifinallywill-sub004/internal/output"
	"github.com/abrahaamv/ifinallywill-sub004/internal/preflight"
	"github.com/abrahaamv/ifinallywill-sub004/internal/search"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check configuration and collaborating services",
		Long: `Check verifies the data directory, routing thresholds and the
embedding, rerank and completion endpoints. Optional services being
down is reported as a warning since retrieval degrades gracefully;
only required failures exit non-zero.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd)
		},
	}
}

func runCheck(cmd *cobra.Command) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	opts := []preflight.Option{}
	embedder, err := embed.NewHTTPEmbedder(ctx, embed.HTTPConfig{
		Endpoint:   cfg.Embeddings.Endpoint,
		Model:      cfg.Embeddings.Model,
		Dimensions: cfg.Embeddings.Dimensions,
		Timeout:    cfg.Embeddings.Timeout,
		SkipProbe:  true,
	})
	if err == nil {
		opts = append(opts, preflight.WithEmbedder(embedder))
	}
	if cfg.Rerank.Enabled && cfg.Rerank.Endpoint != "" {
		reranker, err := search.NewHTTPReranker(ctx, search.RerankerConfig{
			Endpoint:  cfg.Rerank.Endpoint,
			APIKey:    cfg.Rerank.APIKey,
			Model:     cfg.Rerank.Model,
			Timeout:   cfg.Rerank.Timeout,
			SkipProbe: true,
		})
		if err == nil {
			opts = append(opts, preflight.WithReranker(reranker))
		}
	}

	results := preflight.New(cfg, opts...).Run(ctx)

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	} else {
		w := output.New(os.Stdout)
		for _, r := range results {
			switch r.Status {
			case preflight.StatusPass:
				w.Successf("%s: %s", r.Name, r.Message)
			case preflight.StatusWarn:
				w.Warningf("%s: %s", r.Name, r.Message)
			default:
				w.Errorf("%s: %s", r.Name, r.Message)
			}
		}
	}

	if preflight.HasCriticalFailures(results) {
		return fmt.Errorf("required checks failed")
	}
	return nil
}
