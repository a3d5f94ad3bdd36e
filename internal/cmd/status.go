package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/gotune/internal/observability"
	"github.com/3leaps/gotune/pkg/jobs"
	"github.com/3leaps/gotune/pkg/remote"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status <job_id>",
	Short: "Fetch the current status of a remote SFT job",
	Long: `Fetch a job's status once from the training provider. Use this to follow a
job after an interrupted train command. When the job was launched from this
machine its local record is shown too, and a terminal provider state is
written back to it.

Examples:
  gotune status 8f2c1e
  gotune status 8f2c1e --json`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the full status payload as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := requireConfig(ctx)
	if err != nil {
		return exitError(exitConfigError, "Failed to load configuration", err)
	}

	client := newRemoteClient(cfg, observability.CLILogger)
	st, err := client.GetJobStatus(ctx, args[0])
	if err != nil {
		observability.CLILogger.Error("Status fetch failed", zap.String("job_id", args[0]), zap.Error(err))
		return fail("Failed to fetch job status", err)
	}

	rec := syncJobRecord(jobStore(cfg), st)

	if statusJSON {
		return writeJSON(cmd.OutOrStdout(), st)
	}
	terminal := "no"
	if st.State.Terminal() {
		terminal = "yes"
	}
	tw := newTable(cmd.OutOrStdout())
	_, _ = fmt.Fprintf(tw, "Job\t%s\n", st.JobID)
	_, _ = fmt.Fprintf(tw, "State\t%s\n", st.State)
	_, _ = fmt.Fprintf(tw, "Provider status\t%s\n", st.Raw)
	_, _ = fmt.Fprintf(tw, "Terminal\t%s\n", terminal)
	if rec != nil {
		_, _ = fmt.Fprintf(tw, "Name\t%s\n", rec.Name)
		_, _ = fmt.Fprintf(tw, "Local state\t%s\n", rec.State)
		_, _ = fmt.Fprintf(tw, "Submitted\t%s\n", rec.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

// syncJobRecord returns the local record for st.JobID, if any, after
// folding a terminal provider state into it.
func syncJobRecord(store *jobs.Store, st *remote.JobStatus) *jobs.Record {
	rec, err := store.Get(st.JobID)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			observability.CLILogger.Debug("No local job record", zap.String("job_id", st.JobID), zap.Error(err))
		}
		return nil
	}
	rec.RemoteState = string(st.State)
	if st.State.Terminal() && !rec.State.Terminal() {
		now := time.Now().UTC()
		rec.State = jobs.State(st.State)
		rec.UpdatedAt = now
		rec.EndedAt = &now
		if err := store.Write(rec); err != nil {
			observability.CLILogger.Warn("Failed to update job record", zap.String("job_id", st.JobID), zap.Error(err))
		}
	}
	return rec
}
