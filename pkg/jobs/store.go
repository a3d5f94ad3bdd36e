// Package jobs tracks submitted SFT jobs on disk so an interrupted train
// command can be followed up with `gotune status`.
package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"
)

// ErrInvalidJobID rejects ids unusable as a directory name.
var ErrInvalidJobID = errors.New("invalid job id")

// Store persists Records under a root directory:
//
//	<root>/<job_id>/job.json
//
// Root is expected to be under the app data dir.
type Store struct {
	root string
}

func NewStore(root string) *Store {
	return &Store{root: strings.TrimSpace(root)}
}

func (s *Store) RootDir() string {
	return s.root
}

func (s *Store) JobPath(jobID string) string {
	return filepath.Join(s.root, jobID, "job.json")
}

func checkID(jobID string) error {
	switch {
	case strings.TrimSpace(jobID) == "":
		return fmt.Errorf("%w: empty", ErrInvalidJobID)
	case jobID == "." || jobID == "..", strings.ContainsAny(jobID, `/\`):
		return fmt.Errorf("%w: %q", ErrInvalidJobID, jobID)
	}
	return nil
}

// Write replaces the record for record.JobID atomically.
func (s *Store) Write(record *Record) error {
	if record == nil {
		return fmt.Errorf("job record is nil")
	}
	if err := checkID(record.JobID); err != nil {
		return err
	}
	if s.root == "" {
		return fmt.Errorf("job store root dir is empty")
	}

	jobDir := filepath.Join(s.root, record.JobID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return fmt.Errorf("create job dir: %w", err)
	}

	b, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal job record: %w", err)
	}
	b = append(b, '\n')

	tmp, err := os.CreateTemp(jobDir, "job.json.tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp job file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp job file: %w", err)
	}
	if err := os.Rename(tmpName, s.JobPath(record.JobID)); err != nil {
		return fmt.Errorf("rename job file: %w", err)
	}
	return nil
}

// Get loads one record. A non-terminal record whose tracking process is gone
// is reported (and persisted) as StateDetached.
func (s *Store) Get(jobID string) (*Record, error) {
	if err := checkID(jobID); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(s.JobPath(jobID))
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(string(b))
	if trimmed == "" {
		return nil, fmt.Errorf("job.json is empty")
	}
	var record Record
	if err := json.Unmarshal([]byte(trimmed), &record); err != nil {
		return nil, fmt.Errorf("parse job.json: %w", err)
	}

	if (record.State == StateSubmitted || record.State == StatePolling) && record.PID > 0 && !isProcessAlive(record.PID) {
		record.State = StateDetached
		record.UpdatedAt = time.Now().UTC()
		_ = s.Write(&record)
	}
	return &record, nil
}

// List returns every readable record, newest first. A missing root is an
// empty list.
func (s *Store) List() ([]Record, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read jobs root: %w", err)
	}

	out := make([]Record, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		r, err := s.Get(entry.Name())
		if err != nil {
			continue
		}
		out = append(out, *r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// signal 0 checks for existence without delivering anything.
	return p.Signal(syscall.Signal(0)) == nil
}
