package cmd

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/gotune/pkg/jobs"
	"github.com/3leaps/gotune/pkg/output"
	"github.com/3leaps/gotune/pkg/sft"
)

// trainTracker mirrors orchestrator transitions into the local job store
// and, when enabled, the JSONL event stream. Failures here are logged and
// never abort training.
type trainTracker struct {
	store  *jobs.Store
	events output.Writer
	logger *zap.Logger
	now    func() time.Time

	req    *trainRequest
	record *jobs.Record
	start  time.Time
}

func newTrainTracker(store *jobs.Store, events output.Writer, req *trainRequest, logger *zap.Logger) *trainTracker {
	return &trainTracker{
		store:  store,
		events: events,
		logger: logger,
		now:    time.Now,
		req:    req,
		start:  time.Now(),
	}
}

// observe is installed as sft.Config.Observe.
func (t *trainTracker) observe(ctx context.Context, o sft.Outcome) {
	t.update(o, jobs.State(o.State))
	t.emitJob(ctx, o)
}

// detach records that this process stopped polling a live job.
func (t *trainTracker) detach(o *sft.Outcome) {
	if o == nil || o.JobID == "" {
		return
	}
	t.update(*o, jobs.StateDetached)
}

func (t *trainTracker) update(o sft.Outcome, state jobs.State) {
	now := t.now().UTC()
	if t.record == nil {
		t.record = &jobs.Record{
			JobID:       o.JobID,
			Name:        o.Name,
			DatasetName: t.req.DatasetName,
			BaseModel:   t.req.Training.BaseModel,
			OutputModel: t.req.Training.OutputModel,
			RunID:       runID,
			PID:         os.Getpid(),
			CreatedAt:   now,
		}
	}
	r := t.record
	r.State = state
	r.RemoteState = string(o.RemoteState)
	r.Polls = o.Polls
	r.UpdatedAt = now
	if state.Terminal() && r.EndedAt == nil {
		r.EndedAt = &now
	}
	if err := t.store.Write(r); err != nil {
		t.logger.Warn("Failed to persist job record", zap.String("job_id", o.JobID), zap.Error(err))
	}
}

func (t *trainTracker) emitJob(ctx context.Context, o sft.Outcome) {
	if t.events == nil {
		return
	}
	rec := &output.JobRecord{
		JobID:       o.JobID,
		Name:        o.Name,
		State:       string(o.State),
		RemoteState: string(o.RemoteState),
		Polls:       o.Polls,
	}
	if o.Entry != nil {
		rec.ModelID = o.Entry.ModelID
	}
	if err := t.events.WriteJob(ctx, rec); err != nil {
		t.logger.Warn("Failed to write job event", zap.Error(err))
	}
}

// finish writes the closing error and summary records. It runs after the
// command context may already be cancelled.
func (t *trainTracker) finish(ctx context.Context, o *sft.Outcome, runErr error, code string) {
	if t.events == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	sum := &output.SummaryRecord{Name: t.req.Name}
	if o != nil {
		sum.JobID = o.JobID
		sum.State = string(o.State)
		sum.Polls = o.Polls
	}
	if runErr != nil {
		if err := t.events.WriteError(ctx, &output.ErrorRecord{Code: code, Message: runErr.Error(), JobID: sum.JobID}); err != nil {
			t.logger.Warn("Failed to write error event", zap.Error(err))
		}
		if code == output.ErrCodeInterrupted {
			sum.State = string(jobs.StateDetached)
		} else if sum.State == "" || !jobs.State(sum.State).Terminal() {
			sum.State = string(sft.StateFailed)
		}
	}
	sum.Duration = time.Since(t.start)
	sum.DurationHuman = sum.Duration.Round(time.Millisecond).String()
	if err := t.events.WriteSummary(ctx, sum); err != nil {
		t.logger.Warn("Failed to write summary event", zap.Error(err))
	}
	_ = t.events.Close()
}
