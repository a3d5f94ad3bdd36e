// Package file implements provider.Provider over a local directory tree so
// file:// sources share the object staging path with S3.
package file

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/3leaps/gotune/pkg/provider"
)

const defaultMaxKeys = 1000

// Provider serves keys as slash-separated paths relative to a base directory.
type Provider struct {
	baseDir string
}

var _ provider.Provider = (*Provider)(nil)

type Config struct {
	BaseDir string
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseDir) == "" {
		return fmt.Errorf("base dir is required")
	}
	return nil
}

func New(cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Provider{baseDir: filepath.Clean(cfg.BaseDir)}, nil
}

func (p *Provider) Close() error { return nil }

// List walks the tree under opts.Prefix. Keys are returned in lexical order;
// the continuation token is the last key of the previous page.
func (p *Provider) List(ctx context.Context, opts provider.ListOptions) (*provider.ListResult, error) {
	maxKeys := opts.MaxKeys
	if maxKeys <= 0 {
		maxKeys = defaultMaxKeys
	}

	objects, err := p.collect(ctx, strings.TrimPrefix(opts.Prefix, "/"))
	if err != nil {
		return nil, p.wrapError("List", opts.Prefix, err)
	}

	start := 0
	if tok := opts.ContinuationToken; tok != "" {
		start = sort.Search(len(objects), func(i int) bool { return objects[i].Key > tok })
	}
	end := min(start+maxKeys, len(objects))

	res := &provider.ListResult{Objects: objects[start:end]}
	if end < len(objects) {
		res.IsTruncated = true
		res.ContinuationToken = objects[end-1].Key
	}
	return res, nil
}

func (p *Provider) GetObject(_ context.Context, key string) (io.ReadCloser, int64, error) {
	full, err := p.fullPath(key)
	if err != nil {
		return nil, 0, p.wrapError("GetObject", key, err)
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, 0, p.wrapError("GetObject", key, err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, p.wrapError("GetObject", key, err)
	}
	if st.IsDir() {
		_ = f.Close()
		return nil, 0, p.wrapError("GetObject", key, provider.ErrNotFound)
	}
	return f, st.Size(), nil
}

// fullPath maps a key under baseDir, rejecting keys that climb out of it.
func (p *Provider) fullPath(key string) (string, error) {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	clean := strings.TrimPrefix(filepath.Clean("/"+key), "/")
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("invalid key path %q", key)
	}
	return filepath.Join(p.baseDir, filepath.FromSlash(clean)), nil
}

// collect returns regular files whose key starts with prefix. The walk starts
// at the deepest directory contained in prefix.
func (p *Provider) collect(ctx context.Context, prefix string) ([]provider.ObjectSummary, error) {
	dir := prefix
	if !strings.HasSuffix(dir, "/") {
		dir = filepath.ToSlash(filepath.Dir(dir))
		if dir == "." {
			dir = ""
		}
	}
	root, err := p.fullPath(dir)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, nil
	}

	var out []provider.ObjectSummary
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(p.baseDir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		out = append(out, provider.ObjectSummary{Key: key, Size: info.Size(), LastModified: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (p *Provider) wrapError(op, key string, err error) error {
	wrapped := &provider.ProviderError{Op: op, Provider: provider.ProviderFile, Bucket: p.baseDir, Key: key, Err: err}
	switch {
	case os.IsNotExist(err):
		wrapped.Err = provider.ErrNotFound
	case os.IsPermission(err):
		wrapped.Err = provider.ErrAccessDenied
	}
	return wrapped
}
