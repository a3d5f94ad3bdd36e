// Package registry persists the list of trained models.
//
// The registry is a single pretty-printed JSON array. Appends hold an
// exclusive lock on a sibling "<file>.lock" for the whole read-append-write
// sequence, and the new contents are written to a temp file and renamed, so
// concurrent appenders from separate processes neither lose entries nor
// expose a torn file.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// lockRetryDelay is how often a blocked appender retries the file lock.
const lockRetryDelay = 50 * time.Millisecond

var (
	// ErrDuplicateName indicates an entry with the same name is already registered.
	ErrDuplicateName = errors.New("registry entry already exists")

	// ErrEntryNotFound indicates no entry has the requested name.
	ErrEntryNotFound = errors.New("registry entry not found")
)

// Store reads and appends registry entries.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: strings.TrimSpace(path)}
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// List returns every entry in insertion order. A missing file is an empty registry.
func (s *Store) List() ([]Entry, error) {
	if s.path == "" {
		return nil, fmt.Errorf("registry path is empty")
	}
	return s.read()
}

// Get returns the entry with the given name.
func (s *Store) Get(name string) (*Entry, error) {
	entries, err := s.List()
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].Name == name {
			return &entries[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
}

// Exists reports whether an entry with the given name is registered.
func (s *Store) Exists(name string) (bool, error) {
	_, err := s.Get(name)
	if errors.Is(err, ErrEntryNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Append adds entry to the end of the registry.
func (s *Store) Append(ctx context.Context, entry Entry) error {
	if s.path == "" {
		return fmt.Errorf("registry path is empty")
	}
	if strings.TrimSpace(entry.Name) == "" {
		return fmt.Errorf("registry entry name is required")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}

	lock := flock.New(s.path + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock registry: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock registry: not acquired")
	}
	defer func() { _ = lock.Unlock() }()

	entries, err := s.read()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Name == entry.Name {
			return fmt.Errorf("%w: %s", ErrDuplicateName, entry.Name)
		}
	}

	entry.TrainedAt = entry.TrainedAt.UTC()
	entries = append(entries, entry)
	return s.write(entries)
}

func (s *Store) read() ([]Entry, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("read registry: %w", err)
	}

	if len(bytes.TrimSpace(b)) == 0 {
		return []Entry{}, nil
	}

	var entries []Entry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", s.path, err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

func (s *Store) write(entries []Entry) error {
	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}
	b = append(b, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp registry file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp registry file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("rename registry file: %w", err)
	}
	return nil
}
