package file

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/gotune/pkg/provider"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, body := range files {
		full := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(body), 0o644))
	}
	return dir
}

func keys(objs []provider.ObjectSummary) []string {
	out := make([]string, 0, len(objs))
	for _, o := range objs {
		out = append(out, o.Key)
	}
	return out
}

func TestNew_RequiresBaseDir(t *testing.T) {
	_, err := New(Config{BaseDir: "  "})
	assert.Error(t, err)
}

func TestList_Prefix(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"raw/a.csv":    "a",
		"raw/sub/b.md": "bb",
		"raw2/c.json":  "c",
		"other/d.csv":  "d",
	})
	p, err := New(Config{BaseDir: dir})
	require.NoError(t, err)
	ctx := context.Background()

	res, err := p.List(ctx, provider.ListOptions{Prefix: "raw/"})
	require.NoError(t, err)
	assert.Equal(t, []string{"raw/a.csv", "raw/sub/b.md"}, keys(res.Objects))
	assert.False(t, res.IsTruncated)
	assert.Equal(t, int64(2), res.Objects[1].Size)

	res, err = p.List(ctx, provider.ListOptions{Prefix: "raw"})
	require.NoError(t, err)
	assert.Equal(t, []string{"raw/a.csv", "raw/sub/b.md", "raw2/c.json"}, keys(res.Objects))

	res, err = p.List(ctx, provider.ListOptions{Prefix: "missing/"})
	require.NoError(t, err)
	assert.Empty(t, res.Objects)
}

func TestList_Pagination(t *testing.T) {
	dir := writeTree(t, map[string]string{"a": "1", "b": "2", "c": "3"})
	p, err := New(Config{BaseDir: dir})
	require.NoError(t, err)

	var got []string
	err = provider.Walk(context.Background(), pageSize{p, 2}, "", func(o provider.ObjectSummary) error {
		got = append(got, o.Key)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

// pageSize forces a small page size so Walk has to follow tokens.
type pageSize struct {
	*Provider
	n int
}

func (s pageSize) List(ctx context.Context, opts provider.ListOptions) (*provider.ListResult, error) {
	opts.MaxKeys = s.n
	return s.Provider.List(ctx, opts)
}

func TestGetObject(t *testing.T) {
	dir := writeTree(t, map[string]string{"raw/a.csv": "user,assistant\n"})
	p, err := New(Config{BaseDir: dir})
	require.NoError(t, err)
	ctx := context.Background()

	rc, size, err := p.GetObject(ctx, "raw/a.csv")
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "user,assistant\n", string(body))
	assert.Equal(t, int64(len(body)), size)

	_, _, err = p.GetObject(ctx, "raw/missing.csv")
	assert.True(t, provider.IsNotFound(err))

	_, _, err = p.GetObject(ctx, "raw")
	assert.True(t, provider.IsNotFound(err))

	_, _, err = p.GetObject(ctx, "../../etc/passwd")
	assert.Error(t, err)
}
