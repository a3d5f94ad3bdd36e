package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/gotune/internal/observability"
	"github.com/3leaps/gotune/pkg/convert"
	"github.com/3leaps/gotune/pkg/registry"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Check the local environment: Go runtime, gofulmen, data directory,
registry file and the provider CLI.

Examples:
  gotune doctor`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// lookPath is replaced in tests.
var lookPath = exec.LookPath

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig(cmd.Context())
	if err != nil {
		return exitError(exitConfigError, "Failed to load configuration", err)
	}
	log := observability.CLILogger

	log.Info("=== gotune doctor ===")
	allChecks := true
	checkNum := 1
	const totalChecks = 6

	goVersion := runtime.Version()
	log.Info(fmt.Sprintf("[%d/%d] Checking Go version... ✅ %s", checkNum, totalChecks, goVersion),
		zap.String("go_version", goVersion))
	checkNum++

	version := crucible.GetVersion()
	if version.Gofulmen != "" {
		log.Info(fmt.Sprintf("[%d/%d] Checking gofulmen... ✅ v%s", checkNum, totalChecks, version.Gofulmen),
			zap.String("gofulmen_version", version.Gofulmen))
	} else {
		log.Warn(fmt.Sprintf("[%d/%d] Checking gofulmen... ⚠️  version unknown", checkNum, totalChecks))
	}
	checkNum++

	if err := checkWritableDir(cfg.DataDir); err != nil {
		log.Error(fmt.Sprintf("[%d/%d] Checking data directory... ❌ %s", checkNum, totalChecks, cfg.DataDir), zap.Error(err))
		allChecks = false
	} else {
		log.Info(fmt.Sprintf("[%d/%d] Checking data directory... ✅ %s", checkNum, totalChecks, cfg.DataDir))
	}
	checkNum++

	entries, err := registry.NewStore(cfg.RegistryPath).List()
	if err != nil {
		log.Error(fmt.Sprintf("[%d/%d] Checking registry... ❌ %s", checkNum, totalChecks, cfg.RegistryPath), zap.Error(err))
		allChecks = false
	} else {
		log.Info(fmt.Sprintf("[%d/%d] Checking registry... ✅ %d model(s)", checkNum, totalChecks, len(entries)),
			zap.String("path", cfg.RegistryPath))
	}
	checkNum++

	if path, err := lookPath(cfg.Remote.Binary); err != nil {
		log.Error(fmt.Sprintf("[%d/%d] Checking provider CLI... ❌ %s not found on PATH", checkNum, totalChecks, cfg.Remote.Binary))
		log.Info("  Install firectl or set GOTUNE_FIRECTL to its location.")
		allChecks = false
	} else {
		log.Info(fmt.Sprintf("[%d/%d] Checking provider CLI... ✅ %s", checkNum, totalChecks, path))
	}
	checkNum++

	log.Info(fmt.Sprintf("[%d/%d] Supported formats... ✅ %s", checkNum, totalChecks, strings.Join(convert.Extensions(), " ")),
		zap.String("os", runtime.GOOS), zap.String("arch", runtime.GOARCH))

	if !allChecks {
		log.Warn("⚠️  Some checks failed. Review the output above for details.")
		return exitError(foundry.ExitExternalServiceUnavailable, "Diagnostics failed", errors.New("one or more checks failed"))
	}
	log.Info("✅ All checks passed!")
	return nil
}

// checkWritableDir creates dir if needed and probes it with a temp file.
func checkWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}
