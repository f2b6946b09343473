package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abrahaamv/ifinallywill-sub004/internal/assistant"
	"github.com/abrahaamv/ifinallywill-sub004/internal/output"
)

type askOptions struct {
	tenant  string
	domain  string
	history []string
}

func newAskCmd() *cobra.Command {
	var opts askOptions

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question grounded in the tenant's knowledge base",
		Long: `Ask routes the question to a model tier by complexity and intent,
retrieves grounding context when the intent calls for it, and walks the
fallback chain until a model answers.

Examples:
  ragcore ask "What is the return policy?" --tenant acme
  ragcore ask "And for enterprise plans?" --tenant acme --history "What plans exist?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.tenant, "tenant", "t", "", "Tenant whose knowledge base grounds the answer (required)")
	cmd.Flags().StringVarP(&opts.domain, "domain", "d", "", "Business domain hint (technical_support, billing, ...)")
	cmd.Flags().StringArrayVar(&opts.history, "history", nil, "Prior user turns, oldest first (repeatable)")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

func runAsk(cmd *cobra.Command, question string, opts askOptions) error {
	svcs, err := openServices(cmd.Context())
	if err != nil {
		return err
	}
	defer svcs.close()

	answer, err := svcs.service.Ask(cmd.Context(), assistant.Request{
		TenantID: opts.tenant,
		Query:    question,
		History:  opts.history,
		Domain:   opts.domain,
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(answer)
	}

	w := output.New(os.Stdout)
	fmt.Fprintln(os.Stdout, answer.Text)
	w.Newline()
	w.Detailf("model: %s (%s tier), fallbacks: %d", answer.UsedModel, answer.UsedTier, answer.FallbackAttempts)
	if answer.Grounded {
		for i, src := range answer.Sources {
			w.Detailf("[%d] %s (score %.2f, %s)", i+1, src.ID, src.Score, src.Confidence)
		}
	} else {
		w.Detail("answered without knowledge-base context")
	}
	for _, stage := range answer.Degraded {
		w.Warningf("degraded: %s", stage)
	}
	return nil
}
