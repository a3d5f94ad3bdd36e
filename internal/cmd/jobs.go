package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/3leaps/gotune/pkg/jobs"
)

var jobsJSON bool

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List SFT jobs launched from this machine",
	Long: `List locally tracked SFT jobs, newest first. A job whose train command
exited before the job finished is shown as detached; use "gotune status" to
refresh it from the provider.

Examples:
  gotune jobs
  gotune jobs --json`,
	Args: cobra.NoArgs,
	RunE: runJobs,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.Flags().BoolVar(&jobsJSON, "json", false, "Print records as JSON")
}

func runJobs(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig(cmd.Context())
	if err != nil {
		return exitError(exitConfigError, "Failed to load configuration", err)
	}

	records, err := jobStore(cfg).List()
	if err != nil {
		return fail("Failed to list jobs", err)
	}

	out := cmd.OutOrStdout()
	if jobsJSON {
		if records == nil {
			records = []jobs.Record{}
		}
		return writeJSON(out, records)
	}
	if len(records) == 0 {
		_, _ = fmt.Fprintln(out, "No jobs tracked.")
		return nil
	}

	tw := newTable(out)
	_, _ = fmt.Fprintln(tw, "Job\tName\tState\tPolls\tSubmitted")
	for _, r := range records {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			r.JobID, r.Name, r.State, r.Polls, r.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}
