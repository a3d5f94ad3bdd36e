// Package output writes the JSONL event stream of a train run.
//
// Each line is a typed envelope with a type-specific payload, so a caller
// can follow a long-running job with a line-oriented reader.
package output

import (
	"encoding/json"
	"errors"
	"time"
)

// Record types follow gotune.<type>.v<version>.
const (
	TypeJob     = "gotune.job.v1"
	TypeError   = "gotune.error.v1"
	TypeSummary = "gotune.summary.v1"
)

// Record is the envelope for every line.
type Record struct {
	Type string    `json:"type"`
	TS   time.Time `json:"ts"`

	// RunID correlates all records of one CLI invocation.
	RunID string `json:"run_id"`

	// Provider is the training provider (e.g. "fireworks").
	Provider string `json:"provider"`

	Data json.RawMessage `json:"data"`
}

// JobRecord is one observed state of an SFT job.
type JobRecord struct {
	JobID       string `json:"job_id"`
	Name        string `json:"name"`
	State       string `json:"state"`
	RemoteState string `json:"remote_state,omitempty"`
	Polls       int    `json:"polls"`
	ModelID     string `json:"model_id,omitempty"`
}

// ErrorRecord reports a failure that ended the run.
type ErrorRecord struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	JobID   string `json:"job_id,omitempty"`
	Details any    `json:"details,omitempty"`
}

// Error codes for ErrorRecord.
const (
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeRemote       = "REMOTE_ERROR"
	ErrCodeInterrupted  = "INTERRUPTED"
	ErrCodeInternal     = "INTERNAL"
)

// SummaryRecord closes the stream.
type SummaryRecord struct {
	Name          string        `json:"name"`
	JobID         string        `json:"job_id,omitempty"`
	State         string        `json:"state"`
	Polls         int           `json:"polls"`
	Duration      time.Duration `json:"duration_ns"`
	DurationHuman string        `json:"duration"`
}

// ErrWriterClosed is returned when writing to a closed writer.
var ErrWriterClosed = errors.New("writer is closed")

// WriteError wraps errors that occur during write operations.
type WriteError struct {
	Op  string // marshal_data, marshal_record or write
	Err error
}

func (e *WriteError) Error() string {
	return "output: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
