package cmd

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/3leaps/gotune/pkg/dataset"
	"github.com/3leaps/gotune/pkg/example"
	"github.com/3leaps/gotune/pkg/pack"
)

var inspectJSON bool

var inspectCmd = &cobra.Command{
	Use:   "inspect <dataset_name>",
	Short: "Summarize a packed dataset",
	Long: `Read the packed JSONL file(s) for a dataset and report record counts, a
role histogram and per-source record counts.

Examples:
  gotune inspect support
  gotune inspect support --json`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "Print the summary as JSON")
}

// DatasetSummary describes a packed dataset.
type DatasetSummary struct {
	Name       string         `json:"name"`
	Files      []string       `json:"files"`
	Records    int            `json:"records"`
	Messages   int            `json:"messages"`
	Roles      map[string]int `json:"roles"`
	Sources    map[string]int `json:"sources,omitempty"`
	MaxContent int            `json:"max_content_length"`
}

func summarize(name string, files []string) (*DatasetSummary, error) {
	sum := &DatasetSummary{
		Name:    name,
		Files:   files,
		Roles:   make(map[string]int),
		Sources: make(map[string]int),
	}
	for _, f := range files {
		examples, err := pack.Read(f)
		if err != nil {
			return nil, err
		}
		for _, ex := range examples {
			sum.Records++
			sum.Messages += len(ex.Messages)
			for _, m := range ex.Messages {
				sum.Roles[string(m.Role)]++
				if n := len([]rune(m.Content)); n > sum.MaxContent {
					sum.MaxContent = n
				}
			}
			if src := ex.Source(); src != "" {
				sum.Sources[src]++
			}
		}
	}
	return sum, nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig(cmd.Context())
	if err != nil {
		return exitError(exitConfigError, "Failed to load configuration", err)
	}

	name := args[0]
	if err := dataset.ValidateName(name); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid dataset name", err)
	}
	files, err := layoutFor(cfg).PackedFiles(name)
	if err != nil {
		return fail("Packed dataset not found", err)
	}
	sum, err := summarize(name, files)
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to read packed dataset", err)
	}

	out := cmd.OutOrStdout()
	if inspectJSON {
		return writeJSON(out, sum)
	}

	tw := newTable(out)
	_, _ = fmt.Fprintf(tw, "Dataset\t%s\n", sum.Name)
	_, _ = fmt.Fprintf(tw, "Files\t%d\n", len(sum.Files))
	_, _ = fmt.Fprintf(tw, "Records\t%d\n", sum.Records)
	_, _ = fmt.Fprintf(tw, "Messages\t%d\n", sum.Messages)
	_, _ = fmt.Fprintf(tw, "Longest message\t%d\n", sum.MaxContent)
	for _, role := range []example.Role{example.RoleSystem, example.RoleUser, example.RoleAssistant} {
		_, _ = fmt.Fprintf(tw, "Role %s\t%d\n", role, sum.Roles[string(role)])
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(sum.Sources) > 0 {
		_, _ = fmt.Fprintln(out)
		tw = newTable(out)
		_, _ = fmt.Fprintln(tw, "Source\tRecords")
		sources := make([]string, 0, len(sum.Sources))
		for s := range sum.Sources {
			sources = append(sources, s)
		}
		sort.Strings(sources)
		for _, s := range sources {
			_, _ = fmt.Fprintf(tw, "%s\t%d\n", filepath.Base(s), sum.Sources[s])
		}
		return tw.Flush()
	}
	return nil
}
