package pack

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/gotune/pkg/example"
)

func sample(n int) []example.Example {
	out := make([]example.Example, n)
	for i := range out {
		out[i] = example.Example{
			Messages: []example.Message{
				example.User(fmt.Sprintf("question %d", i)),
				example.Assistant(fmt.Sprintf("answer %d", i)),
			},
			Meta: map[string]any{"source": fmt.Sprintf("file-%d.csv", i), "lang": "en"},
		}
	}
	return out
}

func TestWrite_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "nested", "processed", "ds.jsonl")
	batch := sample(4)

	paths, err := Write(batch, out, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{out}, paths)

	got, err := Read(out)
	require.NoError(t, err)
	assert.Equal(t, batch, got)

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(string(raw), "\n"))
}

func TestWrite_NumericMetaRoundTrip(t *testing.T) {
	out := filepath.Join(t.TempDir(), "ds.jsonl")
	ex := example.FromSource("doc.md", example.User("chunk text"))
	ex.Meta[example.MetaChunk] = float64(2)
	ex.Meta["score"] = 0.5

	_, err := Write([]example.Example{ex}, out, 0)
	require.NoError(t, err)
	got, err := Read(out)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ex.Meta, got[0].Meta)

	idx, ok := got[0].Chunk()
	require.True(t, ok)
	assert.Equal(t, 2, idx)
}

func TestWrite_Sharded(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "ds.jsonl")
	batch := sample(5)

	paths, err := Write(batch, out, 2)
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "ds_0.jsonl"),
		filepath.Join(dir, "ds_1.jsonl"),
		filepath.Join(dir, "ds_2.jsonl"),
	}, paths)

	var all []example.Example
	for i, want := range []int{2, 2, 1} {
		got, err := Read(paths[i])
		require.NoError(t, err)
		assert.Len(t, got, want, "shard %d", i)
		all = append(all, got...)
	}
	assert.Equal(t, batch, all)

	_, err = os.Stat(out)
	assert.True(t, os.IsNotExist(err), "unsharded file must not be written")
}

func TestWrite_Overwrites(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "ds.jsonl")

	_, err := Write(sample(5), out, 0)
	require.NoError(t, err)
	_, err = Write(sample(3), out, 0)
	require.NoError(t, err)

	got, err := Read(out)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must be cleaned up")
}

func TestShardPath(t *testing.T) {
	assert.Equal(t, filepath.Join("a", "b", "ds_3.jsonl"), ShardPath(filepath.Join("a", "b", "ds.jsonl"), 3))
	assert.Equal(t, "noext_0", ShardPath("noext", 0))
}

func TestDecode(t *testing.T) {
	t.Run("skips blank lines", func(t *testing.T) {
		in := `{"messages":[{"role":"user","content":"a"}]}

{"messages":[{"role":"user","content":"b"}],"meta":{"k":"v"}}
`
		got, err := Decode(strings.NewReader(in))
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "v", got[1].Meta["k"])
	})

	t.Run("reports line of bad record", func(t *testing.T) {
		in := "{\"messages\":[]}\nnot json\n"
		_, err := Decode(strings.NewReader(in))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 2")
	})
}

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sample(2)))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], `{"messages":[`))
}
