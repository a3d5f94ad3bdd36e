package remote

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCommandFailed is wrapped by every CommandError.
	ErrCommandFailed = errors.New("remote command failed")

	// ErrMalformedResponse indicates a provider payload could not be parsed.
	ErrMalformedResponse = errors.New("malformed remote response")
)

// CommandError reports a remote CLI invocation that exited non-zero or could
// not be started.
type CommandError struct {
	// Args is the full command line, binary first.
	Args []string

	// ExitCode is the process exit status, or -1 if it never ran.
	ExitCode int

	// Stderr is the captured diagnostic stream.
	Stderr string

	// Err is the underlying exec error.
	Err error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s: %s (exit %d)", ErrCommandFailed, strings.Join(e.Args, " "), e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *CommandError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrCommandFailed}
	}
	return []error{ErrCommandFailed, e.Err}
}

// MalformedResponseError carries the payload that failed to parse.
type MalformedResponseError struct {
	Op      string
	Payload string
	Err     error
}

func (e *MalformedResponseError) Error() string {
	payload := e.Payload
	if len(payload) > 200 {
		payload = payload[:200] + "..."
	}
	return fmt.Sprintf("%s: %s: %v: %q", ErrMalformedResponse, e.Op, e.Err, payload)
}

func (e *MalformedResponseError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMalformedResponse}
	}
	return []error{ErrMalformedResponse, e.Err}
}

// IsMalformedResponse returns true if err reports an unparseable payload.
func IsMalformedResponse(err error) bool {
	return errors.Is(err, ErrMalformedResponse)
}

// IsCommandFailed returns true if err reports a failed remote invocation.
func IsCommandFailed(err error) bool {
	return errors.Is(err, ErrCommandFailed)
}
