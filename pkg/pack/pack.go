// Package pack writes validated example batches as JSONL files.
//
// Each line is one self-contained JSON object holding an example's messages
// and meta. Files are written to a temporary sibling and renamed into place,
// so a reader never observes a partially written dataset.
package pack

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/3leaps/gotune/pkg/example"
)

// maxLineBytes bounds a single JSONL line when reading packed files.
const maxLineBytes = 64 << 20

// WriteError wraps a failure while packing.
type WriteError struct {
	// Op is the step that failed (marshal, create, write, rename, ...).
	Op string

	// Path is the target file.
	Path string

	// Err is the underlying error.
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("pack %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// ShardPath returns the path of shard index for outPath: {stem}_{index}{ext}.
func ShardPath(outPath string, index int) string {
	ext := filepath.Ext(outPath)
	stem := strings.TrimSuffix(filepath.Base(outPath), ext)
	return filepath.Join(filepath.Dir(outPath), fmt.Sprintf("%s_%d%s", stem, index, ext))
}

// Write packs examples to outPath and returns the files written.
//
// When shardSize > 0 the batch is split into consecutive groups of that size,
// each written to ShardPath(outPath, i). Otherwise all examples go to outPath.
// Parent directories are created and existing files are overwritten.
func Write(examples []example.Example, outPath string, shardSize int) ([]string, error) {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return nil, &WriteError{Op: "mkdir", Path: outPath, Err: err}
	}

	if shardSize <= 0 {
		if err := writeFile(examples, outPath); err != nil {
			return nil, err
		}
		return []string{outPath}, nil
	}

	var paths []string
	for i, start := 0, 0; start < len(examples); i, start = i+1, start+shardSize {
		end := start + shardSize
		if end > len(examples) {
			end = len(examples)
		}
		path := ShardPath(outPath, i)
		if err := writeFile(examples[start:end], path); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Encode writes examples to w, one JSON object per line.
func Encode(w io.Writer, examples []example.Example) error {
	bw := bufio.NewWriter(w)
	for i, ex := range examples {
		line, err := json.Marshal(ex)
		if err != nil {
			return fmt.Errorf("marshal example %d: %w", i, err)
		}
		line = append(line, '\n')
		if _, err := bw.Write(line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeFile(examples []example.Example, path string) error {
	var buf bytes.Buffer
	if err := Encode(&buf, examples); err != nil {
		return &WriteError{Op: "marshal", Path: path, Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp.*")
	if err != nil {
		return &WriteError{Op: "create", Path: path, Err: err}
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return &WriteError{Op: "write", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &WriteError{Op: "close", Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return &WriteError{Op: "rename", Path: path, Err: err}
	}
	return nil
}

// Read decodes a packed file back into examples, in file order.
func Read(path string) ([]example.Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return Decode(f)
}

// Decode reads JSONL examples from r. Blank lines are skipped.
func Decode(r io.Reader) ([]example.Example, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var out []example.Example
	for line := 1; sc.Scan(); line++ {
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var ex example.Example
		if err := json.Unmarshal(b, &ex); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, ex)
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, fmt.Errorf("line exceeds %d bytes: %w", maxLineBytes, err)
		}
		return nil, err
	}
	return out, nil
}
