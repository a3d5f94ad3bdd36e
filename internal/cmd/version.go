package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var versionJSON bool

var versionCmd = &cobra.Command{
	Use:               "version",
	Short:             "Print version information",
	Args:              cobra.NoArgs,
	PersistentPreRunE: skipInit,
	RunE:              runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Print version information as JSON")
}

// skipInit lets version run with a broken config.
func skipInit(cmd *cobra.Command, args []string) error { return nil }

func runVersion(cmd *cobra.Command, args []string) error {
	info := map[string]string{
		"version":    versionInfo.Version,
		"commit":     versionInfo.Commit,
		"build_date": versionInfo.BuildDate,
		"go_version": runtime.Version(),
		"platform":   runtime.GOOS + "/" + runtime.GOARCH,
	}
	if versionJSON {
		return writeJSON(cmd.OutOrStdout(), info)
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "gotune %s (commit %s, built %s, %s %s)\n",
		info["version"], info["commit"], info["build_date"], info["go_version"], info["platform"])
	return err
}
