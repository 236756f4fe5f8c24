// Package shell runs external processes and bash scripts, capturing their output.
package shell

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/jacobweinstock/wpci/pkg/errs"
	"github.com/pkg/errors"
)

// DefaultBash is the interpreter used for scripts when Runner.Bash is empty.
const DefaultBash = "/bin/bash"

// Output is what a finished process wrote.
type Output struct {
	Stdout string
	Stderr string
}

// Exec runs name with args and waits for it to exit.
// A non-zero exit status is returned as an *errs.ExecutionError.
func Exec(ctx context.Context, name string, args ...string) (Output, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
	return out, asExecutionError(err, append([]string{name}, args...), out.Stderr)
}

// Executor is the Exec function as a value, for callers that take an interface.
type Executor struct{}

// Exec implements the command execution interface by calling Exec.
func (Executor) Exec(ctx context.Context, name string, args ...string) (Output, error) {
	return Exec(ctx, name, args...)
}

// Command is a bash script and the environment to run it in.
type Command struct {
	Script string
	// Dir is the working directory, empty means the current one.
	Dir string
	// Env is appended to the current process environment.
	Env []string
}

// Runner runs bash scripts, streaming combined output to Out.
type Runner struct {
	Out  io.Writer
	Bash string
	// TempDir holds the script files, empty means os.TempDir.
	TempDir string
}

// Run writes c.Script to a temporary file and runs it with
// "bash -eux -o pipefail". Stdout and stderr are accumulated separately
// and both are streamed to r.Out while the script runs.
func (r *Runner) Run(ctx context.Context, c Command) (Output, error) {
	f, err := os.CreateTemp(r.TempDir, "wpci-script-*.sh")
	if err != nil {
		return Output{}, errors.Wrap(err, "unable to create script file")
	}
	defer os.Remove(f.Name()) // nolint
	if _, err := f.WriteString(c.Script); err != nil {
		f.Close()
		return Output{}, errors.Wrap(err, "unable to write script file")
	}
	if err := f.Close(); err != nil {
		return Output{}, errors.Wrap(err, "unable to write script file")
	}

	bash := r.Bash
	if bash == "" {
		bash = DefaultBash
	}
	args := []string{"-eux", "-o", "pipefail", f.Name()}
	cmd := exec.CommandContext(ctx, bash, args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	var stdout, stderr bytes.Buffer
	out := r.Out
	if out == nil {
		out = io.Discard
	}
	stream := &lockedWriter{w: out}
	cmd.Stdout = io.MultiWriter(&stdout, stream)
	cmd.Stderr = io.MultiWriter(&stderr, stream)

	err = cmd.Run()
	result := Output{Stdout: stdout.String(), Stderr: stderr.String()}
	return result, asExecutionError(err, append([]string{bash}, args...), result.Stderr)
}

func asExecutionError(err error, command []string, stderr string) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &errs.ExecutionError{
			Command:  command,
			ExitCode: exitErr.ExitCode(),
			Stderr:   stderr,
			Msg:      "command exited unsuccessfully",
		}
	}
	return errors.Wrapf(err, "unable to run %v", command[0])
}

// lockedWriter serializes writes from the stdout and stderr copy goroutines.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
