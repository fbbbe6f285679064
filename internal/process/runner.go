// SPDX-License-Identifier: MPL-2.0

package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/syntax"
)

// ErrCommandFailed is the sentinel error wrapped by ExitError.
var ErrCommandFailed = errors.New("command failed")

type (
	// Output holds the captured streams of a finished command.
	Output struct {
		Stdout string
		Stderr string
	}

	// Runner executes a command in dir and captures its output. A non-zero
	// exit status is reported as *ExitError.
	Runner interface {
		Run(ctx context.Context, dir, name string, args ...string) (Output, error)
	}

	// ExecRunner runs commands through os/exec.
	ExecRunner struct {
		// Env is appended to the inherited environment.
		Env    []string
		Logger *log.Logger
	}

	// ExitError reports a command that exited with a non-zero status.
	ExitError struct {
		Command string
		Dir     string
		Code    int
		Stderr  string
	}
)

// NewExecRunner returns an ExecRunner that logs through logger. A nil logger
// discards.
func NewExecRunner(logger *log.Logger, env ...string) *ExecRunner {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &ExecRunner{Env: env, Logger: logger}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (Output, error) {
	line := Line(name, args...)
	logger := r.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	logger.Debug("exec", "cmd", line, "dir", dir)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), r.Env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return out, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return out, fmt.Errorf("%s: %w", line, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return out, &ExitError{Command: line, Dir: dir, Code: exitErr.ExitCode(), Stderr: strings.TrimSpace(out.Stderr)}
	}
	return out, fmt.Errorf("failed to execute %s: %w", line, err)
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Command, e.Code)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// Unwrap returns ErrCommandFailed so callers can use errors.Is for programmatic detection.
func (e *ExitError) Unwrap() error { return ErrCommandFailed }

// Line renders name and args as a single shell-safe command line, for logs
// and error messages. Commands are never executed through a shell.
func Line(name string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	for _, a := range append([]string{name}, args...) {
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	q, err := syntax.Quote(s, syntax.LangBash)
	if err != nil {
		// Only strings with NUL bytes or invalid UTF-8 are rejected.
		return strconv.Quote(s)
	}
	return q
}
