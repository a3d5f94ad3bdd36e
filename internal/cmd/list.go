package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/3leaps/gotune/pkg/registry"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List trained models in the registry",
	Long: `Print the model registry as a table with columns Name, Provider,
Base Model and Trained At.

Examples:
  gotune list
  gotune list --json`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print entries as a JSON array")
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig(cmd.Context())
	if err != nil {
		return exitError(exitConfigError, "Failed to load configuration", err)
	}

	entries, err := registry.NewStore(cfg.RegistryPath).List()
	if err != nil {
		return fail("Failed to read registry", err)
	}

	out := cmd.OutOrStdout()
	if listJSON {
		if entries == nil {
			entries = []registry.Entry{}
		}
		return writeJSON(out, entries)
	}
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(out, "No models registered.")
		return nil
	}

	tw := newTable(out)
	_, _ = fmt.Fprintln(tw, "Name\tProvider\tBase Model\tTrained At")
	for _, e := range entries {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Name, e.Provider, e.BaseModel, e.TrainedAt.UTC().Format(time.RFC3339))
	}
	return tw.Flush()
}
