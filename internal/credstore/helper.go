package credstore

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes an external command and returns its standard output.
type Runner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return stdout.Bytes(), fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return stdout.Bytes(), fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// RunHelper obtains a token from a trusted credential helper. A helper that
// is missing, exits non-zero or prints nothing yields ErrNotFound.
func RunHelper(ctx context.Context, runner Runner, name string, args ...string) (string, error) {
	if runner == nil {
		runner = ExecRunner{}
	}
	out, err := runner.Output(ctx, name, args...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	token := strings.TrimSpace(string(out))
	if token == "" {
		return "", fmt.Errorf("%w: %s printed no token", ErrNotFound, name)
	}
	return token, nil
}
