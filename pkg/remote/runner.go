package remote

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
)

// Runner executes an external command and returns its stdout.
//
// A non-zero exit must be reported as a *CommandError carrying stderr.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands as child processes of the current process.
type ExecRunner struct {
	// Env overrides the child environment. Nil inherits os.Environ().
	Env []string
}

var _ Runner = (*ExecRunner)(nil)

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Env = r.Env
	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}

	if err := cmd.Run(); err != nil {
		full := append([]string{name}, args...)
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.Bytes(), &CommandError{Args: full, ExitCode: exitErr.ExitCode(), Stderr: stderr.String(), Err: err}
		}
		return stdout.Bytes(), &CommandError{Args: full, ExitCode: -1, Stderr: stderr.String(), Err: err}
	}
	return stdout.Bytes(), nil
}
