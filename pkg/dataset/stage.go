package dataset

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/3leaps/gotune/pkg/convert"
	"github.com/3leaps/gotune/pkg/match"
	"github.com/3leaps/gotune/pkg/provider"
)

// OpenProvider returns a provider able to serve uri.
type OpenProvider func(ctx context.Context, uri *provider.ObjectURI) (provider.Provider, error)

// StageResult lists what Stage copied and skipped.
type StageResult struct {
	Name    string   `json:"name"`
	Dir     string   `json:"dir"`
	Files   []string `json:"files"`
	Skipped []string `json:"skipped,omitempty"`
}

// Fetch retry defaults for throttled or unavailable providers.
const (
	DefaultFetchAttempts  = 3
	DefaultFetchRetryBase = 500 * time.Millisecond
)

// Stager copies raw sources into <RawDir>/<name>/.
type Stager struct {
	rawDir string
	open   OpenProvider
	logger *zap.Logger

	// FetchAttempts bounds GetObject calls per object. Values below 1 use
	// DefaultFetchAttempts.
	FetchAttempts int

	// FetchRetryBase is the first backoff delay; it doubles per attempt.
	FetchRetryBase time.Duration
}

// NewStager creates a stager. open may be nil when only local sources are
// used; a nil logger disables logging.
func NewStager(rawDir string, open OpenProvider, logger *zap.Logger) *Stager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stager{
		rawDir:         rawDir,
		open:           open,
		logger:         logger,
		FetchAttempts:  DefaultFetchAttempts,
		FetchRetryBase: DefaultFetchRetryBase,
	}
}

// Stage copies each source into the dataset's raw directory, keeping the
// base name. A source may be a local file, a local doublestar glob, or an
// s3:// or file:// URI. URI prefixes and globs only pick up files the
// converter registry supports.
//
// Missing local sources are logged and skipped. Provider errors are returned.
func (s *Stager) Stage(ctx context.Context, name string, sources []string) (*StageResult, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	dest := filepath.Join(s.rawDir, name)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, fmt.Errorf("create raw dir: %w", err)
	}

	res := &StageResult{Name: name, Dir: dest}
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		var err error
		if provider.IsURI(src) {
			err = s.stageURI(ctx, dest, src, res)
		} else {
			err = s.stageLocal(dest, src, res)
		}
		if err != nil {
			return res, err
		}
	}

	s.logger.Info("Staged dataset sources",
		zap.String("dataset", name),
		zap.String("dir", dest),
		zap.Int("files", len(res.Files)),
		zap.Int("skipped", len(res.Skipped)))
	return res, nil
}

func (s *Stager) stageLocal(dest, src string, res *StageResult) error {
	paths := []string{src}
	if match.IsGlobPattern(src) {
		matches, err := doublestar.FilepathGlob(src, doublestar.WithFilesOnly())
		if err != nil {
			return fmt.Errorf("invalid source pattern %q: %w", src, err)
		}
		if len(matches) == 0 {
			s.skip(res, src, "pattern matched no files")
			return nil
		}
		paths = matches
	}

	for _, p := range paths {
		st, err := os.Stat(p)
		switch {
		case os.IsNotExist(err):
			s.skip(res, p, "source not found")
			continue
		case err != nil:
			return err
		case !st.Mode().IsRegular():
			s.skip(res, p, "not a regular file")
			continue
		}

		f, err := os.Open(p)
		if err != nil {
			return err
		}
		target, err := copyInto(dest, filepath.Base(p), f)
		_ = f.Close()
		if err != nil {
			return err
		}
		res.Files = append(res.Files, target)
	}
	return nil
}

func (s *Stager) stageURI(ctx context.Context, dest, src string, res *StageResult) error {
	uri, err := provider.ParseURI(src)
	if err != nil {
		return err
	}
	if s.open == nil {
		return fmt.Errorf("%w: no provider configured for %s", provider.ErrUnsupportedProvider, uri.Provider)
	}
	prov, err := s.open(ctx, uri)
	if err != nil {
		return err
	}
	defer func() { _ = prov.Close() }()

	if !uri.IsPattern() && !uri.IsPrefix() {
		return s.fetch(ctx, prov, dest, uri.Key, res)
	}

	var pat *match.Pattern
	if uri.IsPattern() {
		if pat, err = match.Compile(uri.Pattern, false); err != nil {
			return err
		}
	}

	var keys []string
	err = provider.Walk(ctx, prov, uri.Key, func(obj provider.ObjectSummary) error {
		switch {
		case pat != nil && !pat.Match(obj.Key):
			return nil
		case pat == nil && match.IsHidden(obj.Key):
			return nil
		}
		if _, ok := convert.FormatFor(obj.Key); !ok {
			s.logger.Debug("Skipping unsupported object", zap.String("key", obj.Key))
			return nil
		}
		keys = append(keys, obj.Key)
		return nil
	})
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		s.skip(res, src, "no supported objects matched")
		return nil
	}

	for _, key := range keys {
		if err := s.fetch(ctx, prov, dest, key, res); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stager) fetch(ctx context.Context, prov provider.Provider, dest, key string, res *StageResult) error {
	body, err := s.getObject(ctx, prov, key)
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()

	target, err := copyInto(dest, path.Base(key), body)
	if err != nil {
		return err
	}
	s.logger.Debug("Fetched object", zap.String("key", key), zap.String("target", target))
	res.Files = append(res.Files, target)
	return nil
}

// getObject retries provider.IsRetryable failures with doubling backoff.
// Other errors return immediately.
func (s *Stager) getObject(ctx context.Context, prov provider.Provider, key string) (io.ReadCloser, error) {
	attempts := s.FetchAttempts
	if attempts < 1 {
		attempts = DefaultFetchAttempts
	}
	delay := s.FetchRetryBase

	for attempt := 1; ; attempt++ {
		body, _, err := prov.GetObject(ctx, key)
		if err == nil {
			return body, nil
		}
		if !provider.IsRetryable(err) || attempt >= attempts {
			return nil, err
		}
		s.logger.Warn("Retrying object fetch",
			zap.String("key", key),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err))

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
		delay *= 2
	}
}

func (s *Stager) skip(res *StageResult, src, reason string) {
	s.logger.Warn("Skipping source", zap.String("source", src), zap.String("reason", reason))
	res.Skipped = append(res.Skipped, src)
}

// copyInto writes r to dir/base through a temp file and rename.
func copyInto(dir, base string, r io.Reader) (string, error) {
	target := filepath.Join(dir, base)
	tmp, err := os.CreateTemp(dir, ".stage-*")
	if err != nil {
		return "", fmt.Errorf("stage %s: %w", base, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("stage %s: %w", base, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("stage %s: %w", base, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return "", fmt.Errorf("stage %s: %w", base, err)
	}
	return target, nil
}
