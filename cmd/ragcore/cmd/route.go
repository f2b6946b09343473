package cmd

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abrahaamv/ifinallywill-sub004/internal/output"
)

type routeOptions struct {
	domain  string
	history []string
}

func newRouteCmd() *cobra.Command {
	var opts routeOptions

	cmd := &cobra.Command{
		Use:   "route <query>",
		Short: "Show the routing decision without calling any model",
		Long: `Route scores the query's complexity, classifies its intent and
prints which tier would serve it, the fallback chain, and the cost and
latency estimates.

Examples:
  ragcore route "Why is my webhook integration timing out?"
  ragcore route "Hello!" --domain technical_support`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoute(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.domain, "domain", "d", "", "Business domain hint")
	cmd.Flags().StringArrayVar(&opts.history, "history", nil, "Prior user turns, oldest first (repeatable)")

	return cmd
}

func runRoute(cmd *cobra.Command, query string, opts routeOptions) error {
	svcs, err := openServices(cmd.Context())
	if err != nil {
		return err
	}
	defer svcs.close()

	decision, err := svcs.router.Route(cmd.Context(), query, opts.history, opts.domain)
	if err != nil {
		return err
	}

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(decision)
	}

	w := output.New(os.Stdout)
	w.Successf("tier %s (%s)", decision.SelectedTier, decision.ModelID)
	w.Detailf("complexity %.2f (confidence %.2f): linguistic %.2f semantic %.2f contextual %.2f technical %.2f",
		decision.Complexity.OverallScore, decision.Complexity.Confidence,
		decision.Complexity.Factors.Linguistic, decision.Complexity.Factors.Semantic,
		decision.Complexity.Factors.Contextual, decision.Complexity.Factors.Technical)
	w.Detailf("intent %s (confidence %.2f, knowledge=%v)",
		decision.Intent.Primary, decision.Intent.Confidence, decision.Intent.RequiresKnowledge)

	chain := make([]string, len(decision.FallbackChain))
	for i, t := range decision.FallbackChain {
		chain[i] = string(t)
	}
	w.Detailf("fallback chain: %s", strings.Join(chain, " -> "))
	w.Detailf("estimated cost $%.5f, latency %.0fms", decision.EstimatedCost, decision.EstimatedMs)
	for _, reason := range decision.Reasoning {
		w.Detail(reason)
	}
	return nil
}
