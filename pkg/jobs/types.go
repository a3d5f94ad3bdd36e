package jobs

import "time"

// State is the locally tracked lifecycle state of a remote SFT job.
//
// These values are persisted in job.json.
type State string

const (
	StateSubmitted State = "submitted"
	StatePolling   State = "polling"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"

	// StateDetached marks a job whose tracking process stopped polling
	// (interrupt or crash). The remote job may still be running.
	StateDetached State = "detached"
)

// Terminal reports whether the remote job has finished.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

// Record is the persistent record written to job.json.
type Record struct {
	JobID       string `json:"job_id"`
	Name        string `json:"name"`
	DatasetName string `json:"dataset_name,omitempty"`
	BaseModel   string `json:"base_model,omitempty"`
	OutputModel string `json:"output_model,omitempty"`

	State       State  `json:"state"`
	RemoteState string `json:"remote_state,omitempty"`
	Polls       int    `json:"polls"`

	RunID string `json:"run_id,omitempty"`
	PID   int    `json:"pid,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}
