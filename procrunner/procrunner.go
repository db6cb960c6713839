// Package procrunner launches external programs (git, the reverse-proxy
// reload command) and captures their combined output under
// a byte cap and an optional timeout. it is the one place in the codebase
// that calls os/exec, mirroring the teacher's "isolate the raw SDK/syscall
// surface behind one small package" instinct already applied to the docker
// package for the Docker Engine SDK.
package procrunner

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"golang.org/x/sys/unix"
)

// defaultMaxOutputBytes bounds how much combined stdout+stderr is retained in
// memory per invocation. build tool output (npm install, pip install) can be
// large; 50MiB keeps a runaway command from growing the process's memory
// without limit while still preserving enough output for the dashboard to be useful.
const defaultMaxOutputBytes = 50 * 1024 * 1024

// ExecError is returned when a command exits non-zero or is killed by a
// timeout. CombinedOutput carries whatever output was captured before
// failure so build errors surface verbatim to the caller.
type ExecError struct {
	Command        string
	Args           []string
	CombinedOutput string
	Err            error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("command %q failed: %v\noutput:\n%s", e.Command, e.Err, e.CombinedOutput)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// Options configures a single Run call. the zero value is valid: no timeout,
// the default 50MiB output cap.
type Options struct {
	// TimeoutMs, if non-zero, bounds how long the command may run before it
	// is sent SIGTERM followed by SIGKILL and treated as a failure.
	TimeoutMs int

	// MaxOutputBytes caps the combined stdout+stderr retained in memory.
	// 0 means the package default (50MiB).
	MaxOutputBytes int64

	// Dir, if set, is the working directory the command runs in.
	Dir string

	// Env, if non-nil, replaces the command's environment entirely
	// (as with exec.Cmd.Env); nil means inherit the current process's environment.
	Env []string
}

// Result is the outcome of a successful (exit code 0) run.
type Result struct {
	CombinedOutput string
	ExitCode       int
}

// limitedBuffer is an io.Writer that silently drops bytes past its cap rather
// than growing without bound. it keeps the first limit bytes written and
// discards everything after them, so output past the cap (including any
// error text at the very end) is not retained.
type limitedBuffer struct {
	buf   bytes.Buffer
	limit int64
}

func (w *limitedBuffer) Write(p []byte) (int, error) {
	remaining := w.limit - int64(w.buf.Len())
	if remaining <= 0 {
		return len(p), nil // report all bytes "consumed" so callers (cmd.Run) don't see a write error
	}
	if int64(len(p)) > remaining {
		w.buf.Write(p[:remaining])
		return len(p), nil
	}
	w.buf.Write(p)
	return len(p), nil
}

// Run executes command with args, passed without shell interpretation (no
// injection surface), and returns the combined stdout+stderr output.
// a non-zero exit or an elapsed timeout both produce an *ExecError carrying
// whatever output was captured.
func Run(ctx context.Context, command string, args []string, opts Options) (*Result, error) {
	maxBytes := opts.MaxOutputBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxOutputBytes
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if opts.TimeoutMs > 0 {
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(opts.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, command, args...)
	if opts.Dir != "" {
		cmd.Dir = opts.Dir
	}
	if opts.Env != nil {
		cmd.Env = opts.Env
	}

	output := &limitedBuffer{limit: maxBytes}
	cmd.Stdout = output
	cmd.Stderr = output

	// Cancel is set explicitly (rather than relying on exec.CommandContext's
	// default SIGKILL-only behavior) so a command that traps SIGTERM for
	// graceful shutdown (git, the proxy reload command) gets the chance to
	// exit cleanly before WaitDelay elapses and it is killed.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(unix.SIGTERM)
	}
	cmd.WaitDelay = 5 * time.Second

	runErr := cmd.Run()

	combined := output.buf.String()

	if runErr != nil {
		return nil, &ExecError{
			Command:        command,
			Args:           args,
			CombinedOutput: combined,
			Err:            runErr,
		}
	}

	return &Result{
		CombinedOutput: combined,
		ExitCode:       0,
	}, nil
}
