package cmd

import (
	"errors"
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/gotune/internal/observability"
	"github.com/3leaps/gotune/pkg/dataset"
)

var stageJSON bool

var stageCmd = &cobra.Command{
	Use:   "stage <dataset_name> <source_files...>",
	Short: "Copy raw source files into a dataset's raw directory",
	Long: `Copy raw documents into <data-dir>/raw/<dataset_name>/.

Sources may be local files, local globs (doublestar syntax), or s3:// and
file:// URIs. URI prefixes and globs only pick up supported formats
(.json, .csv, .md, .pdf and common source-code extensions).

Examples:
  gotune stage support ./exports/tickets.csv
  gotune stage support './docs/**/*.md'
  gotune stage support s3://corp-data/support/2026/
  gotune stage support 's3://corp-data/support/**/*.json'`,
	Args: cobra.MinimumNArgs(2),
	RunE: runStage,
}

func init() {
	rootCmd.AddCommand(stageCmd)
	stageCmd.Flags().BoolVar(&stageJSON, "json", false, "Print the staging result as JSON")
}

func runStage(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := requireConfig(ctx)
	if err != nil {
		return exitError(exitConfigError, "Failed to load configuration", err)
	}

	name, sources := args[0], args[1:]
	stager := dataset.NewStager(layoutFor(cfg).RawDir(), providerOpener(cfg), observability.CLILogger)

	res, err := stager.Stage(ctx, name, sources)
	if err != nil {
		observability.CLILogger.Error("Staging failed", zap.String("dataset", name), zap.Error(err))
		return fail("Failed to stage dataset sources", err)
	}
	if len(res.Files) == 0 {
		return exitError(foundry.ExitFileNotFound, "Nothing staged",
			errors.New("no source matched a readable file"))
	}

	if stageJSON {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Staged %d file(s) into %s\n", len(res.Files), res.Dir)
	for _, s := range res.Skipped {
		_, _ = fmt.Fprintf(out, "  skipped: %s\n", s)
	}
	return nil
}
