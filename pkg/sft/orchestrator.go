// Package sft launches a supervised fine-tuning job, polls it to a terminal
// state and records successful models in the registry.
package sft

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/gotune/pkg/params"
	"github.com/3leaps/gotune/pkg/registry"
	"github.com/3leaps/gotune/pkg/remote"
)

// State is the orchestrator's view of a job.
type State string

const (
	StateSubmitted State = "submitted"
	StatePolling   State = "polling"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

const (
	DefaultPollInterval = 60 * time.Second
	DefaultMaxRetries   = 5
	DefaultRetryBase    = 2 * time.Second
	DefaultRetryMax     = time.Minute
)

// Registry is the subset of registry.Store the orchestrator needs.
type Registry interface {
	Exists(name string) (bool, error)
	Append(ctx context.Context, entry registry.Entry) error
}

// Config tunes polling and retry. Zero fields take defaults.
type Config struct {
	PollInterval time.Duration

	// MaxRetries bounds consecutive failed status fetches. -1 disables
	// retrying.
	MaxRetries int

	RetryBase time.Duration
	RetryMax  time.Duration

	// Provider is recorded on registry entries.
	Provider string

	// Now stamps trained_at. Defaults to time.Now.
	Now func() time.Time

	// Observe, when set, receives a copy of the outcome after launch, after
	// every poll and at the terminal state. It runs on the polling goroutine.
	Observe func(ctx context.Context, o Outcome)
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	switch {
	case c.MaxRetries == 0:
		c.MaxRetries = DefaultMaxRetries
	case c.MaxRetries < 0:
		c.MaxRetries = 0
	}
	if c.RetryBase <= 0 {
		c.RetryBase = DefaultRetryBase
	}
	if c.RetryMax < c.RetryBase {
		c.RetryMax = max(DefaultRetryMax, c.RetryBase)
	}
	if c.Provider == "" {
		c.Provider = remote.ProviderFireworks
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Outcome is the result of one Run.
type Outcome struct {
	Name        string          `json:"name"`
	JobID       string          `json:"job_id"`
	State       State           `json:"state"`
	RemoteState remote.JobState `json:"remote_state,omitempty"`
	Polls       int             `json:"polls"`

	// Entry is set only when the job completed.
	Entry *registry.Entry `json:"entry,omitempty"`
}

// Succeeded reports whether the job completed and was registered.
func (o *Outcome) Succeeded() bool {
	return o != nil && o.State == StateCompleted
}

// Orchestrator drives one job at a time.
type Orchestrator struct {
	cfg    Config
	client remote.Client
	reg    Registry
	logger *zap.Logger
}

// New creates an orchestrator. A nil logger disables logging.
func New(cfg Config, client remote.Client, reg Registry, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{cfg: cfg.withDefaults(), client: client, reg: reg, logger: logger}
}

// CheckName fails with registry.ErrDuplicateName when name is taken.
func (o *Orchestrator) CheckName(name string) error {
	if name == "" {
		return &params.FieldError{Field: "name", Message: "is required"}
	}
	taken, err := o.reg.Exists(name)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: %s", registry.ErrDuplicateName, name)
	}
	return nil
}

// Run launches the job and polls until it reaches a terminal state.
//
// A completed job is appended to the registry exactly once. Failed and
// cancelled jobs return an Outcome with a nil error and leave the registry
// untouched. When ctx is cancelled mid-poll the partial Outcome is returned
// with ctx.Err(); the remote job keeps running.
func (o *Orchestrator) Run(ctx context.Context, name string, tp params.TrainingParams, lp params.LoRAParams) (*Outcome, error) {
	tp = tp.WithDefaults()
	lp = lp.WithDefaults()
	if err := tp.Validate(); err != nil {
		return nil, err
	}
	if err := lp.Validate(); err != nil {
		return nil, err
	}
	if err := o.CheckName(name); err != nil {
		return nil, err
	}

	jobID, err := o.client.LaunchSFT(ctx, tp, lp)
	if err != nil {
		return nil, fmt.Errorf("launch sft job: %w", err)
	}
	out := &Outcome{Name: name, JobID: jobID, State: StateSubmitted}
	log := o.logger.With(zap.String("name", name), zap.String("job_id", jobID))
	log.Info("SFT job launched", zap.String("output_model", tp.OutputModel))
	o.notify(ctx, out)

	for {
		st, err := o.status(ctx, log, jobID)
		if err != nil {
			return out, err
		}
		out.Polls++
		out.RemoteState = st.State
		log.Info("Job status", zap.String("status", st.Raw), zap.Int("poll", out.Polls))

		switch st.State {
		case remote.JobStateCompleted:
			entry := registry.Entry{
				Name:      name,
				Provider:  o.cfg.Provider,
				ModelID:   tp.OutputModel,
				BaseModel: tp.BaseModel,
				TrainedAt: o.cfg.Now().UTC(),
			}
			if err := o.reg.Append(ctx, entry); err != nil {
				return out, fmt.Errorf("register %s: %w", name, err)
			}
			out.State = StateCompleted
			out.Entry = &entry
			log.Info("Job completed; model registered", zap.String("model_id", entry.ModelID))
			o.notify(ctx, out)
			return out, nil

		case remote.JobStateFailed, remote.JobStateCancelled:
			out.State = StateFailed
			if st.State == remote.JobStateCancelled {
				out.State = StateCancelled
			}
			log.Warn("Job did not complete", zap.String("status", st.Raw))
			o.notify(ctx, out)
			return out, nil
		}

		out.State = StatePolling
		o.notify(ctx, out)
		if err := sleep(ctx, o.cfg.PollInterval); err != nil {
			return out, err
		}
	}
}

func (o *Orchestrator) notify(ctx context.Context, out *Outcome) {
	if o.cfg.Observe != nil {
		o.cfg.Observe(ctx, *out)
	}
}

// status fetches the job status, retrying transient failures with doubling
// delays. Malformed payloads are not retried.
func (o *Orchestrator) status(ctx context.Context, log *zap.Logger, jobID string) (*remote.JobStatus, error) {
	delay := o.cfg.RetryBase
	for attempt := 0; ; attempt++ {
		st, err := o.client.GetJobStatus(ctx, jobID)
		if err == nil {
			return st, nil
		}
		if remote.IsMalformedResponse(err) || ctx.Err() != nil || attempt >= o.cfg.MaxRetries {
			return nil, fmt.Errorf("get status of job %s: %w", jobID, err)
		}
		log.Warn("Status fetch failed; retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
		delay = min(delay*2, o.cfg.RetryMax)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
