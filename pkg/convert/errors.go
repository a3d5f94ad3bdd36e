package convert

import (
	"errors"
	"fmt"
)

// Sentinel errors for conversion.
var (
	// ErrUnsupportedFormat indicates no converter is registered for an extension.
	ErrUnsupportedFormat = errors.New("unsupported file type")

	// ErrMalformedInput indicates the file content does not have the shape
	// its converter requires.
	ErrMalformedInput = errors.New("malformed input")
)

// UnsupportedFormatError names the extension that had no converter.
type UnsupportedFormatError struct {
	Path string
	Ext  string
}

func (e *UnsupportedFormatError) Error() string {
	ext := e.Ext
	if ext == "" {
		ext = "(none)"
	}
	return fmt.Sprintf("%s: %s", ErrUnsupportedFormat, ext)
}

func (e *UnsupportedFormatError) Unwrap() error {
	return ErrUnsupportedFormat
}

// ConvertError wraps a failure inside a specific converter.
type ConvertError struct {
	// Format is the converter that failed.
	Format Format

	// Path is the input file.
	Path string

	// Err is the underlying error.
	Err error
}

func (e *ConvertError) Error() string {
	return fmt.Sprintf("convert %s %s: %v", e.Format, e.Path, e.Err)
}

func (e *ConvertError) Unwrap() error {
	return e.Err
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedInput, fmt.Sprintf(format, args...))
}

// IsUnsupportedFormat returns true if err is an unsupported-extension error.
func IsUnsupportedFormat(err error) bool {
	return errors.Is(err, ErrUnsupportedFormat)
}

// IsMalformedInput returns true if err reports a structurally invalid file.
func IsMalformedInput(err error) bool {
	return errors.Is(err, ErrMalformedInput)
}
