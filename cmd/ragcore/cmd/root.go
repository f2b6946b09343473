// Package cmd provides the CLI commands for ragcore.
package cmd

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/abrahaamv/ifinallywill-sub004/internal/logging"
	"github.com/abrahaamv/ifinallywill-sub004/pkg/version"
)

var (
	configPath     string
	debugMode      bool
	jsonOutput     bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the ragcore CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ragcore",
		Short: "Hybrid retrieval and adaptive model routing for grounded answers",
		Long: `ragcore answers questions over a tenant's knowledge base: hybrid
BM25 + vector retrieval with rank fusion and hierarchical expansion,
plus complexity- and intent-aware routing across model tiers with a
bounded fallback chain.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("ragcore version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "Path to ragcore.yaml")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", !isatty.IsTerminal(os.Stdout.Fd()), "Emit JSON instead of human-readable output")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newRetrieveCmd())
	cmd.AddCommand(newRouteCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func setupLogging(_ *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	cfg.WriteToStderr = false
	if debugMode {
		cfg = logging.DebugConfig()
	}

	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		// Logging must never block the CLI; fall back to stderr.
		return nil
	}
	loggingCleanup = cleanup
	setDefaultLogger(logger)
	return nil
}

func defaultConfigPath() string {
	if v := os.Getenv("RAGCORE_CONFIG"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "ragcore.yaml"
	}
	return home + "/.ragcore/ragcore.yaml"
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
