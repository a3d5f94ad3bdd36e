// Package remote wraps the remote training provider's CLI.
//
// Every operation is one external command invocation. Command failures are
// surfaced as *CommandError with the captured stderr; payloads that cannot be
// decoded are reported as *MalformedResponseError.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/3leaps/gotune/pkg/params"
)

// ProviderFireworks is the provider name recorded for firectl-trained models.
const ProviderFireworks = "fireworks"

// DefaultBinary is the provider CLI invoked when Config.Binary is empty.
const DefaultBinary = "firectl"

// JobState is the normalized remote job state.
type JobState string

const (
	JobStatePending   JobState = "pending"
	JobStateRunning   JobState = "running"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
	JobStateCancelled JobState = "cancelled"
	JobStateUnknown   JobState = "unknown"
)

// Terminal reports whether no further transitions are expected.
func (s JobState) Terminal() bool {
	switch s {
	case JobStateCompleted, JobStateFailed, JobStateCancelled:
		return true
	}
	return false
}

// NormalizeState maps provider spellings ("JOB_STATE_COMPLETED", "Succeeded",
// "canceled", ...) onto JobState. Unrecognized values map to JobStateUnknown,
// which is not terminal.
func NormalizeState(raw string) JobState {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "job_state_")
	s = strings.TrimPrefix(s, "state_")

	switch s {
	case "pending", "queued", "creating", "validating", "created":
		return JobStatePending
	case "running", "in_progress", "training", "writing_results":
		return JobStateRunning
	case "completed", "complete", "succeeded", "success":
		return JobStateCompleted
	case "failed", "failure", "error", "expired":
		return JobStateFailed
	case "cancelled", "canceled":
		return JobStateCancelled
	}
	return JobStateUnknown
}

// JobStatus is one status observation of a remote job.
type JobStatus struct {
	JobID string   `json:"job_id"`
	State JobState `json:"state"`

	// Raw is the provider's own status string.
	Raw string `json:"raw_status"`

	// Fields holds the full decoded payload.
	Fields map[string]any `json:"fields,omitempty"`
}

// Client is the remote training provider surface used by the orchestrator.
type Client interface {
	CreateDataset(ctx context.Context, path, datasetID string) error
	LaunchSFT(ctx context.Context, tp params.TrainingParams, lp params.LoRAParams) (string, error)
	GetJobStatus(ctx context.Context, jobID string) (*JobStatus, error)
}

// Config configures FirectlClient.
type Config struct {
	// Binary is the provider CLI. Empty uses DefaultBinary.
	Binary string

	// AccountID is forwarded as --account-id when set.
	AccountID string

	// RateLimit caps command invocations per second. Zero is unlimited.
	RateLimit float64
}

// FirectlClient drives the Fireworks CLI.
type FirectlClient struct {
	binary    string
	accountID string
	runner    Runner
	limiter   *rate.Limiter
	logger    *zap.Logger
}

var _ Client = (*FirectlClient)(nil)

// NewFirectlClient creates a client. A nil runner uses ExecRunner; a nil
// logger disables logging.
func NewFirectlClient(cfg Config, runner Runner, logger *zap.Logger) *FirectlClient {
	if runner == nil {
		runner = &ExecRunner{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &FirectlClient{
		binary:    cfg.Binary,
		accountID: strings.TrimSpace(cfg.AccountID),
		runner:    runner,
		logger:    logger,
	}
	if c.binary == "" {
		c.binary = DefaultBinary
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return c
}

// CreateDataset uploads a packed dataset file as datasetID.
func (c *FirectlClient) CreateDataset(ctx context.Context, path, datasetID string) error {
	_, err := c.run(ctx, "create", "dataset", datasetID, path)
	return err
}

// LaunchSFT submits a supervised fine-tuning job and returns its id.
func (c *FirectlClient) LaunchSFT(ctx context.Context, tp params.TrainingParams, lp params.LoRAParams) (string, error) {
	out, err := c.run(ctx, LaunchArgs(tp, lp)...)
	if err != nil {
		return "", err
	}

	fields, err := decodeObject("launch", out)
	if err != nil {
		return "", err
	}
	id := jobIDFrom(fields)
	if id == "" {
		return "", &MalformedResponseError{Op: "launch", Payload: string(out), Err: fmt.Errorf("no job id in response")}
	}
	return id, nil
}

// GetJobStatus fetches the current status of jobID.
func (c *FirectlClient) GetJobStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	out, err := c.run(ctx, "get", "sftj", jobID, "--output", "json")
	if err != nil {
		return nil, err
	}
	return ParseStatus(jobID, out)
}

// LaunchArgs builds the "create sftj" argument list (without the binary).
func LaunchArgs(tp params.TrainingParams, lp params.LoRAParams) []string {
	args := []string{
		"create", "sftj",
		"--base-model", tp.BaseModel,
		"--dataset", tp.DatasetID,
		"--output-model", tp.OutputModel,
		"--learning-rate", strconv.FormatFloat(tp.LearningRate, 'g', -1, 64),
		"--epochs", strconv.Itoa(tp.Epochs),
		"--batch-size", tp.BatchSize.String(),
		"--lora-r", strconv.Itoa(lp.R),
		"--lora-alpha", strconv.Itoa(lp.Alpha),
		"--lora-dropout", strconv.FormatFloat(lp.Dropout, 'g', -1, 64),
		"--lora-trainable-modules", strings.Join(lp.TargetModules, ","),
	}
	if tp.EarlyStop {
		args = append(args, "--early-stop")
	}
	if tp.MaxContextLength > 0 {
		args = append(args, "--max-context-length", strconv.Itoa(tp.MaxContextLength))
	}
	if tp.Turbo {
		args = append(args, "--turbo")
	}
	return append(args, "--output", "json")
}

// ParseStatus decodes a status payload. The state is read from "status" or,
// failing that, "state".
func ParseStatus(jobID string, payload []byte) (*JobStatus, error) {
	fields, err := decodeObject("status", payload)
	if err != nil {
		return nil, err
	}

	raw, ok := stringField(fields, "status", "state")
	if !ok {
		return nil, &MalformedResponseError{Op: "status", Payload: string(payload), Err: fmt.Errorf("missing status field")}
	}

	if id := jobIDFrom(fields); id != "" {
		jobID = id
	}
	return &JobStatus{JobID: jobID, State: NormalizeState(raw), Raw: raw, Fields: fields}, nil
}

func (c *FirectlClient) run(ctx context.Context, args ...string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if c.accountID != "" {
		args = append(args, "--account-id", c.accountID)
	}

	c.logger.Debug("Running provider command",
		zap.String("binary", c.binary),
		zap.Strings("args", args))

	out, err := c.runner.Run(ctx, c.binary, args...)
	if err != nil {
		c.logger.Debug("Provider command failed", zap.Strings("args", args), zap.Error(err))
		return nil, err
	}
	return out, nil
}

func decodeObject(op string, payload []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, &MalformedResponseError{Op: op, Payload: string(payload), Err: fmt.Errorf("expected a JSON object")}
	}
	var fields map[string]any
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, &MalformedResponseError{Op: op, Payload: string(payload), Err: err}
	}
	return fields, nil
}

// jobIDFrom reads "id", or the last path segment of a resource "name"
// (accounts/<acct>/supervisedFineTuningJobs/<id>).
func jobIDFrom(fields map[string]any) string {
	if id, ok := stringField(fields, "id", "job_id"); ok && id != "" {
		return id
	}
	if name, ok := stringField(fields, "name"); ok && name != "" {
		if i := strings.LastIndex(name, "/"); i >= 0 {
			return name[i+1:]
		}
		return name
	}
	return ""
}

func stringField(fields map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := fields[k].(string); ok {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}
