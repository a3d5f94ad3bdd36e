package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/3leaps/gotune/pkg/example"
	"github.com/3leaps/gotune/pkg/pack"
)

// Converter turns one file into examples.
type Converter interface {
	ConvertFile(path string) ([]example.Example, error)
}

// Validator checks a whole batch before anything is written.
type Validator interface {
	Validate(examples []example.Example) error
}

// Config configures a Builder.
type Config struct {
	// ProcessedDir receives packed output.
	ProcessedDir string

	// ShardSize splits output into files of at most this many examples.
	// Zero writes a single file.
	ShardSize int
}

// BuildResult describes a packed dataset.
type BuildResult struct {
	Name     string   `json:"name"`
	Paths    []string `json:"paths"`
	Examples int      `json:"examples"`
	Files    int      `json:"files"`
}

// Builder converts, validates and packs a directory of raw files.
type Builder struct {
	cfg       Config
	conv      Converter
	validator Validator
	logger    *zap.Logger
}

// NewBuilder creates a builder. A nil logger disables logging.
func NewBuilder(cfg Config, conv Converter, validator Validator, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{cfg: cfg, conv: conv, validator: validator, logger: logger}
}

// Build packs the regular files directly inside dir, in name order, to
// <ProcessedDir>/<base(dir)>.jsonl. Subdirectories and dot-files are skipped.
//
// Conversion and validation errors are returned unchanged. Nothing is
// written unless the whole batch validates. Previous output for the same
// name, sharded or not, is replaced.
func (b *Builder) Build(ctx context.Context, dir string) (*BuildResult, error) {
	files, err := listFiles(dir)
	if err != nil {
		return nil, err
	}
	name := filepath.Base(filepath.Clean(dir))

	var all []example.Example
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		exs, err := b.conv.ConvertFile(path)
		if err != nil {
			return nil, err
		}
		b.logger.Debug("Converted file",
			zap.String("dataset", name),
			zap.String("file", filepath.Base(path)),
			zap.Int("examples", len(exs)))
		all = append(all, exs...)
	}

	if err := b.validator.Validate(all); err != nil {
		return nil, err
	}

	out := filepath.Join(b.cfg.ProcessedDir, name+packedExt)
	removed, err := removePacked(b.cfg.ProcessedDir, name)
	if err != nil {
		return nil, err
	}
	if len(removed) > 0 {
		b.logger.Debug("Removed previous output",
			zap.String("dataset", name),
			zap.Strings("paths", removed))
	}
	paths, err := pack.Write(all, out, b.cfg.ShardSize)
	if err != nil {
		return nil, err
	}

	b.logger.Info("Dataset built",
		zap.String("dataset", name),
		zap.Int("files", len(files)),
		zap.Int("examples", len(all)),
		zap.Strings("paths", paths))

	return &BuildResult{Name: name, Paths: paths, Examples: len(all), Files: len(files)}, nil
}

// removePacked deletes <name>.jsonl and every <name>_<n>.jsonl in dir.
func removePacked(dir, name string) ([]string, error) {
	paths, err := packedIn(dir, name, true)
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("remove %s: %w", p, err)
		}
		removed = append(removed, p)
	}
	return removed, nil
}

func listFiles(dir string) ([]string, error) {
	st, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, dir)
		}
		return nil, err
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrDatasetNotFound, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") || !e.Type().IsRegular() {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
