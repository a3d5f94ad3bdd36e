// Package dataset stages raw documents and builds packed SFT datasets.
//
// A dataset named N has raw inputs under <data>/raw/N/ and is packed to
// <data>/processed/N.jsonl, or N_0.jsonl, N_1.jsonl, ... when sharded.
package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

var (
	// ErrDatasetNotFound indicates a missing raw directory or packed file.
	ErrDatasetNotFound = errors.New("dataset not found")

	// ErrInvalidName indicates a dataset name unusable as a file name.
	ErrInvalidName = errors.New("invalid dataset name")
)

const packedExt = ".jsonl"

// ValidateName rejects names that are empty, contain path separators or
// glob metacharacters, or are dot-prefixed.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: %q starts with a dot", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\*?[]{}`):
		return fmt.Errorf("%w: %q contains a path separator or glob character", ErrInvalidName, name)
	}
	return nil
}

// Layout resolves dataset paths under a data directory.
type Layout struct {
	Root string
}

func (l Layout) RawDir() string       { return filepath.Join(l.Root, "raw") }
func (l Layout) ProcessedDir() string { return filepath.Join(l.Root, "processed") }

// RawPath is the staging directory for name.
func (l Layout) RawPath(name string) string {
	return filepath.Join(l.RawDir(), name)
}

// PackedPath is the unsharded output file for name.
func (l Layout) PackedPath(name string) string {
	return filepath.Join(l.ProcessedDir(), name+packedExt)
}

// PackedFiles returns the packed file for name, or its shards in index
// order. The unsharded file wins when both exist.
func (l Layout) PackedFiles(name string) ([]string, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	files, err := packedIn(l.ProcessedDir(), name, false)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, l.PackedPath(name))
	}
	return files, nil
}

// packedIn lists name's output in dir. With all unset it stops at the
// unsharded file when present; otherwise the unsharded file comes first,
// followed by shards in index order.
func packedIn(dir, name string, all bool) ([]string, error) {
	var out []string
	single := filepath.Join(dir, name+packedExt)
	if st, err := os.Stat(single); err == nil && st.Mode().IsRegular() {
		if !all {
			return []string{single}, nil
		}
		out = append(out, single)
	}

	matches, err := doublestar.FilepathGlob(filepath.Join(dir, name+"_*"+packedExt))
	if err != nil {
		return nil, err
	}
	type shard struct {
		path  string
		index int
	}
	var shards []shard
	for _, m := range matches {
		idx := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), name+"_"), packedExt)
		i, err := strconv.Atoi(idx)
		if err != nil || i < 0 {
			continue
		}
		shards = append(shards, shard{path: m, index: i})
	}
	sort.Slice(shards, func(i, j int) bool { return shards[i].index < shards[j].index })

	for _, s := range shards {
		out = append(out, s.path)
	}
	return out, nil
}
