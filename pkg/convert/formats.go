package convert

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/3leaps/gotune/pkg/chunk"
	"github.com/3leaps/gotune/pkg/example"
)

// jsonConverter decodes a top-level array of example objects.
type jsonConverter struct{}

func (jsonConverter) Convert(path string) ([]example.Example, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !json.Valid(data) {
		return nil, malformed("invalid JSON")
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, malformed("JSON file must contain a list of objects")
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, malformed("JSON file must contain a list of objects: %v", err)
	}

	out := make([]example.Example, 0, len(items))
	for i, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) == 0 || item[0] != '{' {
			return nil, malformed("item %d is not an object", i)
		}
		var ex example.Example
		if err := json.Unmarshal(item, &ex); err != nil {
			return nil, malformed("item %d: %v", i, err)
		}
		out = append(out, ex)
	}
	return out, nil
}

// csvConverter turns user/assistant columns into two-message examples.
type csvConverter struct{}

func (csvConverter) Convert(path string) ([]example.Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, malformed("CSV file has no header row")
		}
		return nil, malformed("read CSV header: %v", err)
	}

	userCol, assistantCol := -1, -1
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		switch name {
		case "user":
			userCol = i
		case "assistant":
			assistantCol = i
		}
	}
	if userCol < 0 {
		return nil, malformed("CSV header missing column %q", "user")
	}
	if assistantCol < 0 {
		return nil, malformed("CSV header missing column %q", "assistant")
	}

	source := filepath.Base(path)
	var out []example.Example
	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, malformed("CSV row %d: %v", line, err)
		}
		out = append(out, example.FromSource(source,
			example.User(row[userCol]),
			example.Assistant(row[assistantCol]),
		))
	}
	return out, nil
}

// textConverter extracts raw text and emits one user example per chunk.
type textConverter struct {
	format  Format
	maxLen  int
	extract func(path string) (string, error)
}

func (c *textConverter) Convert(path string) ([]example.Example, error) {
	text, err := c.extract(path)
	if err != nil {
		return nil, err
	}

	source := filepath.Base(path)
	chunks := chunk.Split(text, c.maxLen)
	out := make([]example.Example, 0, len(chunks))
	for i, ch := range chunks {
		ex := example.FromSource(source, example.User(ch))
		ex.Meta[example.MetaChunk] = float64(i)
		out = append(out, ex)
	}
	return out, nil
}

func readText(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// readPDFText concatenates the plain text of every page, one page per line block.
func readPDFText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		if f != nil {
			_ = f.Close()
		}
		return "", malformed("open PDF: %v", err)
	}
	defer func() { _ = f.Close() }()

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract page %d: %w", i, err)
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String(), nil
}
