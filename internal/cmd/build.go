package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/gotune/internal/observability"
	"github.com/3leaps/gotune/pkg/dataset"
)

var (
	buildShardSize int
	buildJSON      bool
)

var buildCmd = &cobra.Command{
	Use:   "build <dataset_name>",
	Short: "Convert, validate and pack a staged dataset",
	Long: `Convert every file in <data-dir>/raw/<dataset_name>/ into conversational
examples, validate the whole batch, and pack it as JSONL under
<data-dir>/processed/. Nothing is written when validation fails.

Examples:
  gotune build support
  gotune build support --shard-size 5000   # support_0.jsonl, support_1.jsonl, ...`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().IntVar(&buildShardSize, "shard-size", -1, "Examples per shard (0 writes one file; default from config)")
	buildCmd.Flags().BoolVar(&buildJSON, "json", false, "Print the build result as JSON")
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := requireConfig(ctx)
	if err != nil {
		return exitError(exitConfigError, "Failed to load configuration", err)
	}

	name := args[0]
	if err := dataset.ValidateName(name); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid dataset name", err)
	}
	shardSize := cfg.Dataset.ShardSize
	if cmd.Flags().Changed("shard-size") {
		if buildShardSize < 0 {
			return exitError(foundry.ExitInvalidArgument, "Invalid --shard-size value", fmt.Errorf("shard size must be >= 0"))
		}
		shardSize = buildShardSize
	}

	builder := newBuilder(cfg, shardSize, observability.CLILogger)
	res, err := builder.Build(ctx, filepath.Join(layoutFor(cfg).RawDir(), name))
	if err != nil {
		observability.CLILogger.Error("Build failed", zap.String("dataset", name), zap.Error(err))
		return fail("Failed to build dataset", err)
	}

	if buildJSON {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Built %s: %d examples from %d file(s)\n", res.Name, res.Examples, res.Files)
	for _, p := range res.Paths {
		_, _ = fmt.Fprintf(out, "  %s\n", p)
	}
	return nil
}
