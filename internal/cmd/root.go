// Package cmd implements the gotune command line.
package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/gotune/internal/config"
	"github.com/3leaps/gotune/internal/observability"
)

var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "unknown",
	BuildDate: "unknown",
}

var (
	cfgFile  string
	verbose  bool
	dataDir  string
	logLevel string

	appConfig *config.Config
	runID     string
)

var rootCmd = &cobra.Command{
	Use:   "gotune",
	Short: "Build LoRA fine-tuning datasets and drive remote SFT jobs",
	Long: `gotune assembles conversational fine-tuning datasets from raw documents,
validates and packs them as JSONL, uploads them to the training provider and
follows the supervised fine-tuning job until it finishes. Completed models are
recorded in a local registry.

Examples:
  gotune stage support ./exports/*.csv s3://corp-data/support/2026/
  gotune build support --shard-size 5000
  gotune train --name support-v1 --dataset_name support \
      --base_model accounts/fireworks/models/llama-v3p1-8b-instruct \
      --output_model support-v1
  gotune list`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initApp,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: <user config dir>/gotune/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory holding raw/, processed/ and the registry")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug|info|warn|error)")
}

// SetVersionInfo records build metadata injected by the linker.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// Execute runs the root command with ctx as the command context.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func initApp(cmd *cobra.Command, args []string) error {
	level := logLevel
	if verbose {
		level = "debug"
	}
	observability.InitCLILogger("gotune", verbose)

	overrides := map[string]any{}
	if dataDir != "" {
		overrides["data_dir"] = dataDir
	}
	if level != "" {
		overrides["logging.level"] = level
	}

	cfg, err := config.LoadFile(cmd.Context(), cfgFile, overrides)
	if err != nil {
		observability.CLILogger.Error("Failed to load configuration", zap.Error(err))
		return exitError(exitConfigError, "Failed to load configuration", err)
	}
	appConfig = cfg

	if !verbose {
		observability.CLILogger = observability.NewLogger("gotune", cfg.Logging.Level, cfg.Logging.Profile)
	}
	runID = uuid.NewString()
	observability.CLILogger = observability.CLILogger.With(zap.String("run_id", runID))
	observability.CLILogger.Debug("Configuration loaded",
		zap.String("data_dir", cfg.DataDir),
		zap.String("registry", cfg.RegistryPath))
	return nil
}

// requireConfig returns the loaded configuration, loading defaults when a
// command runs without the root pre-run (as in tests).
func requireConfig(ctx context.Context) (*config.Config, error) {
	if appConfig != nil {
		return appConfig, nil
	}
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	appConfig = cfg
	return cfg, nil
}
