package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/abrahaamv/ifinallywill-sub004/internal/config"
	"github.com/abrahaamv/ifinallywill-sub004/internal/output"
	"github.com/abrahaamv/ifinallywill-sub004/internal/telemetry"
)

type statsOptions struct {
	topTerms    int
	zeroResults int
}

func newStatsCmd() *cobra.Command {
	var opts statsOptions

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show persisted query telemetry",
		Long: `Stats reads the telemetry database and reports query type
distribution, latency buckets, the most frequent query terms and the
latest queries that produced no context.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(opts)
		},
	}

	cmd.Flags().IntVar(&opts.topTerms, "terms", 10, "Number of top query terms to show")
	cmd.Flags().IntVar(&opts.zeroResults, "zero-results", 10, "Number of recent zero-result queries to show")

	return cmd
}

type statsReport struct {
	QueryTypes  map[string]int64                  `json:"query_types"`
	Latencies   map[telemetry.LatencyBucket]int64 `json:"latencies"`
	TopTerms    []telemetry.TermCount             `json:"top_terms"`
	ZeroResults []string                          `json:"zero_result_queries"`
}

func runStats(opts statsOptions) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	store, err := telemetry.NewSQLiteMetricsStore(filepath.Join(cfg.DataDir, "telemetry.db"))
	if err != nil {
		return err
	}
	defer store.Close()

	report := statsReport{}
	if report.QueryTypes, err = store.QueryTypeTotals(); err != nil {
		return err
	}
	if report.Latencies, err = store.LatencyTotals(); err != nil {
		return err
	}
	if report.TopTerms, err = store.TopTerms(opts.topTerms); err != nil {
		return err
	}
	if report.ZeroResults, err = store.RecentZeroResultQueries(opts.zeroResults); err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	w := output.New(os.Stdout)

	var total int64
	for _, n := range report.QueryTypes {
		total += n
	}
	w.Successf("%d queries recorded", total)

	if len(report.QueryTypes) > 0 {
		w.Newline()
		w.Status("by query type:")
		types := make([]string, 0, len(report.QueryTypes))
		for qt := range report.QueryTypes {
			types = append(types, qt)
		}
		sort.Slice(types, func(i, j int) bool {
			if report.QueryTypes[types[i]] != report.QueryTypes[types[j]] {
				return report.QueryTypes[types[i]] > report.QueryTypes[types[j]]
			}
			return types[i] < types[j]
		})
		for _, qt := range types {
			w.Detailf("%-16s %d", qt, report.QueryTypes[qt])
		}
	}

	if len(report.Latencies) > 0 {
		w.Newline()
		w.Status("by latency:")
		for _, b := range []telemetry.LatencyBucket{
			telemetry.BucketP50, telemetry.BucketP200, telemetry.BucketP500,
			telemetry.BucketP2000, telemetry.BucketSlow,
		} {
			if n, ok := report.Latencies[b]; ok {
				w.Detailf("%-16s %d", b, n)
			}
		}
	}

	if len(report.TopTerms) > 0 {
		w.Newline()
		w.Status("top query terms:")
		for _, tc := range report.TopTerms {
			w.Detailf("%-16s %d", tc.Term, tc.Count)
		}
	}

	if len(report.ZeroResults) > 0 {
		w.Newline()
		w.Warningf("%d recent queries found no context:", len(report.ZeroResults))
		for _, q := range report.ZeroResults {
			w.Detail(q)
		}
	}

	return nil
}
