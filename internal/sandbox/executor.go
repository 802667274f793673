// File: internal/sandbox/executor.go
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/mendbot/api/schemas"
)

// killGrace bounds how long Wait may linger on the output pipes after the
// process group has been killed.
const killGrace = 3 * time.Second

// Result captures one finished (or force-terminated) child process.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
	Duration time.Duration
}

// CombinedOutput returns stdout followed by stderr, the way test output is
// fed to the error parser.
func (r Result) CombinedOutput() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout + "\n" + r.Stderr
}

// Executor wraps shell invocation of git, package installers and test
// runners. Every call enforces a hard timeout that force-terminates the
// child; a timeout surfaces as schemas.ErrCommandTimeout, distinct from a
// non-zero exit (which is not an error at this layer).
type Executor struct {
	logger         *zap.Logger
	defaultTimeout time.Duration
}

// NewExecutor creates a process executor with the given default timeout.
func NewExecutor(logger *zap.Logger, defaultTimeout time.Duration) *Executor {
	if defaultTimeout <= 0 {
		defaultTimeout = 60 * time.Second
	}
	return &Executor{
		logger:         logger.Named("executor"),
		defaultTimeout: defaultTimeout,
	}
}

// Run executes name with args in cwd, blocking until completion or timeout.
// Extra environment entries are appended to the parent environment. A
// non-zero exit code is reported through Result, not through error.
func (e *Executor) Run(ctx context.Context, cwd string, timeout time.Duration, env []string, name string, args ...string) (Result, error) {
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Dir = cwd
	cmd.Env = append(os.Environ(), env...)

	// The child gets its own process group so a timeout kills the entire
	// tree, not just the direct shell. Shells spawn grandchildren (jest,
	// pytest, gradle daemons) that would otherwise survive the kill and
	// keep the stdout/stderr pipes open indefinitely.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return os.ErrProcessDone
		}
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if errors.Is(err, syscall.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}
	// Should anything outlive the group kill with a pipe still open, Wait
	// abandons the pipes after the grace period instead of blocking.
	cmd.WaitDelay = killGrace

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if runCtx.Err() == context.DeadlineExceeded {
		res.TimedOut = true
		res.ExitCode = -1
		e.logger.Warn("Command hit hard timeout and was terminated.",
			zap.String("command", name),
			zap.Duration("timeout", timeout))
		return res, fmt.Errorf("%w: %s after %s", schemas.ErrCommandTimeout, name, timeout)
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		// The program could not be started at all (missing binary, bad dir).
		res.ExitCode = -1
		return res, fmt.Errorf("failed to run %s: %w", name, err)
	}

	res.ExitCode = 0
	return res, nil
}
