// Package convert turns raw files into normalized training examples.
//
// Each supported file format has one Converter. The extension table is built
// once at package init; dispatch happens only in Registry.ConvertFile, and an
// unknown extension is rejected with an UnsupportedFormatError rather than
// falling back to another converter.
package convert

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/3leaps/gotune/pkg/example"
)

// DefaultMaxChunkLength bounds text converter chunks when no limit is set.
const DefaultMaxChunkLength = 4096

// Format identifies a converter implementation.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatPDF      Format = "pdf"
	FormatCode     Format = "code"
)

// Converter produces examples from one raw file.
type Converter interface {
	Convert(path string) ([]example.Example, error)
}

// extensions maps a lowercased file extension to its format.
var extensions = map[string]Format{
	".json": FormatJSON,
	".csv":  FormatCSV,
	".md":   FormatMarkdown,
	".pdf":  FormatPDF,
	".py":   FormatCode,
	".cpp":  FormatCode,
	".cc":   FormatCode,
	".c":    FormatCode,
	".h":    FormatCode,
	".hpp":  FormatCode,
	".go":   FormatCode,
	".js":   FormatCode,
	".ts":   FormatCode,
	".java": FormatCode,
	".rs":   FormatCode,
	".rb":   FormatCode,
	".sh":   FormatCode,
}

// Options configures the text converters.
type Options struct {
	// MaxChunkLength bounds the rune length of chunks emitted by the
	// markdown, PDF and code converters. Zero uses DefaultMaxChunkLength.
	MaxChunkLength int
}

// Registry resolves converters by file extension.
type Registry struct {
	converters map[Format]Converter
}

// NewRegistry creates a registry with one converter per supported format.
func NewRegistry(opts Options) *Registry {
	maxLen := opts.MaxChunkLength
	if maxLen <= 0 {
		maxLen = DefaultMaxChunkLength
	}

	return &Registry{
		converters: map[Format]Converter{
			FormatJSON:     jsonConverter{},
			FormatCSV:      csvConverter{},
			FormatMarkdown: &textConverter{format: FormatMarkdown, maxLen: maxLen, extract: readText},
			FormatPDF:      &textConverter{format: FormatPDF, maxLen: maxLen, extract: readPDFText},
			FormatCode:     &textConverter{format: FormatCode, maxLen: maxLen, extract: readText},
		},
	}
}

// FormatFor returns the format registered for path's extension.
func FormatFor(path string) (Format, bool) {
	f, ok := extensions[strings.ToLower(filepath.Ext(path))]
	return f, ok
}

// Extensions returns the supported extensions in sorted order.
func Extensions() []string {
	out := make([]string, 0, len(extensions))
	for ext := range extensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// ConvertFile selects a converter by extension and runs it.
func (r *Registry) ConvertFile(path string) ([]example.Example, error) {
	format, ok := FormatFor(path)
	if !ok {
		return nil, &UnsupportedFormatError{Path: path, Ext: strings.ToLower(filepath.Ext(path))}
	}

	examples, err := r.converters[format].Convert(path)
	if err != nil {
		return nil, &ConvertError{Format: format, Path: path, Err: err}
	}
	return examples, nil
}
