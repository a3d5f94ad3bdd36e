package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fulmenhq/gofulmen/foundry"

	"github.com/3leaps/gotune/pkg/convert"
	"github.com/3leaps/gotune/pkg/dataset"
	"github.com/3leaps/gotune/pkg/manifest"
	"github.com/3leaps/gotune/pkg/pack"
	"github.com/3leaps/gotune/pkg/params"
	"github.com/3leaps/gotune/pkg/provider"
	"github.com/3leaps/gotune/pkg/registry"
	"github.com/3leaps/gotune/pkg/remote"
	"github.com/3leaps/gotune/pkg/validate"
)

const (
	exitFailure     = 1
	exitConfigError = foundry.ExitInvalidArgument
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s: %v (exit code %d)", e.Message, e.Err, e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// exitError creates an error that will cause the CLI to exit with the given code.
func exitError(code int, message string, err error) error {
	return &ExitError{Code: code, Message: message, Err: err}
}

// ExitCode returns the exit code for an error returned by Execute.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	if errors.Is(err, context.Canceled) {
		return foundry.ExitSignalInt
	}
	return exitFailure
}

// classify maps pipeline errors onto exit codes.
func classify(err error) int {
	var writeErr *pack.WriteError
	switch {
	case errors.Is(err, context.Canceled):
		return foundry.ExitSignalInt
	case errors.Is(err, dataset.ErrDatasetNotFound), errors.Is(err, os.ErrNotExist),
		provider.IsNotFound(err), errors.Is(err, registry.ErrEntryNotFound):
		return foundry.ExitFileNotFound
	case errors.As(err, &writeErr):
		return foundry.ExitFileWriteError
	case validate.IsValidationError(err), convert.IsUnsupportedFormat(err), convert.IsMalformedInput(err),
		errors.Is(err, params.ErrInvalidParams), errors.Is(err, registry.ErrDuplicateName),
		errors.Is(err, dataset.ErrInvalidName), errors.Is(err, manifest.ErrValidationFailed),
		errors.Is(err, provider.ErrInvalidURI), errors.Is(err, provider.ErrUnsupportedProvider):
		return foundry.ExitInvalidArgument
	case remote.IsCommandFailed(err), remote.IsMalformedResponse(err),
		provider.IsAccessDenied(err), provider.IsRetryable(err):
		return foundry.ExitExternalServiceUnavailable
	}
	return exitFailure
}

// fail wraps err with the exit code classify picks for it.
func fail(message string, err error) error {
	return exitError(classify(err), message, err)
}
