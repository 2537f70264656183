//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/oshokin/eclipse-provisioner/internal/logger"
)

// ErrSubprocessFailure is matched by every error caused by an external command.
var ErrSubprocessFailure = errors.New("subprocess failed")

// maxReportedOutput caps the command output embedded into error messages.
const maxReportedOutput = 2048

// Result is the outcome of a finished command.
type Result struct {
	// Stdout holds the standard output of the command.
	Stdout string
	// ExitCode is the process exit status.
	ExitCode int
}

// Runner starts external commands and waits for them to finish.
// A non-zero exit status is reported as a *CommandError.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (*Result, error)
}

// CommandError describes a command that could not be started or exited with a non-zero status.
type CommandError struct {
	// Command is the rendered command line.
	Command string
	// ExitCode is the exit status, or -1 when the process never ran.
	ExitCode int
	// Output is the combined output captured from the command.
	Output string
	// Err is the underlying error from os/exec, if any.
	Err error
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	var builder strings.Builder

	builder.WriteString("command execution failed: ")
	builder.WriteString(e.Command)
	fmt.Fprintf(&builder, ", exited: %d", e.ExitCode)

	if e.Err != nil {
		builder.WriteString(", error: ")
		builder.WriteString(e.Err.Error())
	}

	if output := strings.TrimSpace(e.Output); output != "" {
		if len(output) > maxReportedOutput {
			output = output[:maxReportedOutput] + "..."
		}

		builder.WriteString(", output: ")
		builder.WriteString(output)
	}

	return builder.String()
}

// Unwrap returns the underlying os/exec error.
func (e *CommandError) Unwrap() error {
	return e.Err
}

// Is makes every CommandError match ErrSubprocessFailure.
func (e *CommandError) Is(target error) bool {
	return target == ErrSubprocessFailure
}

// ExecRunner runs commands on the host through os/exec.
type ExecRunner struct {
	// dir is the working directory of spawned commands.
	dir string
}

// Option configures the runner.
type Option func(*ExecRunner)

// WithDir sets the working directory of spawned commands.
func WithDir(dir string) Option {
	return func(r *ExecRunner) {
		r.dir = dir
	}
}

// NewExecRunner creates a runner that spawns real processes.
func NewExecRunner(opts ...Option) *ExecRunner {
	r := new(ExecRunner)

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run executes the command and captures its output. There is no timeout:
// the call blocks until the process exits or ctx is canceled.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	commandLine := CommandLine(name, args...)
	logger.DebugKV(ctx, "Executing command", "command", commandLine, "dir", r.dir)

	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return &Result{Stdout: stdout.String()}, nil
	}

	cmdErr := &CommandError{
		Command:  commandLine,
		ExitCode: -1,
		Output:   stdout.String() + stderr.String(),
		Err:      err,
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		cmdErr.ExitCode = exitErr.ExitCode()

		return &Result{Stdout: stdout.String(), ExitCode: cmdErr.ExitCode}, cmdErr
	}

	return nil, cmdErr
}

// CommandLine renders a command with its arguments for logs and errors.
func CommandLine(name string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, name)

	for _, arg := range args {
		if arg == "" || strings.ContainsAny(arg, " \t'\"") {
			arg = "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
		}

		parts = append(parts, arg)
	}

	return strings.Join(parts, " ")
}
