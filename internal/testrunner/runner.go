// File: internal/testrunner/runner.go
package testrunner

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/mendbot/api/schemas"
	"github.com/xkilldash9x/mendbot/internal/config"
	"github.com/xkilldash9x/mendbot/internal/sandbox"
)

// testEnv disables colored output and flags test mode for the child
// process, keeping the captured output parseable.
var testEnv = []string{
	"NO_COLOR=1",
	"FORCE_COLOR=0",
	"CI=true",
	"MENDBOT_TEST_MODE=1",
}

// Runner executes detected install and test commands inside a sandbox.
// It implements schemas.TestRunner.
type Runner struct {
	exec   *sandbox.Executor
	logger *zap.Logger
	cfg    config.RunnerConfig
}

// NewRunner creates a test runner bound to the process executor.
func NewRunner(exec *sandbox.Executor, cfg config.RunnerConfig, logger *zap.Logger) *Runner {
	return &Runner{
		exec:   exec,
		logger: logger.Named("testrunner"),
		cfg:    cfg,
	}
}

// Detect implements schemas.TestRunner.
func (r *Runner) Detect(repoDir string) schemas.TestCommand {
	cmd := Detect(repoDir)
	r.logger.Info("Detected test tooling.",
		zap.String("framework", cmd.Framework),
		zap.String("command", cmd.Command))
	return cmd
}

// Install runs the dependency install once, preferring the lockfile-based
// fast path and falling back to the general install. A returned error is a
// warning: some install failures are lint or peer-dependency noise and the
// test run is attempted regardless.
func (r *Runner) Install(ctx context.Context, repoDir string, cmd schemas.TestCommand) error {
	if cmd.FastInstallCommand != "" {
		if err := r.runInstall(ctx, repoDir, cmd.FastInstallCommand); err == nil {
			return nil
		}
		r.logger.Warn("Lockfile install failed, falling back to general install.",
			zap.String("command", cmd.FastInstallCommand))
	}
	if cmd.InstallCommand == "" {
		return nil
	}
	if err := r.runInstall(ctx, repoDir, cmd.InstallCommand); err != nil {
		return fmt.Errorf("dependency install failed: %w", err)
	}
	return nil
}

func (r *Runner) runInstall(ctx context.Context, repoDir, command string) error {
	res, err := r.exec.Run(ctx, repoDir, r.cfg.InstallTimeout, testEnv, "sh", "-c", command)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("%q exited %d: %s", command, res.ExitCode, tail(res.Stderr, 500))
	}
	return nil
}

// Run executes the test command under its bounded timeout and parses any
// failure output into structured errors. A timeout or runner error is a
// failed result, never a crash.
func (r *Runner) Run(ctx context.Context, repoDir string, cmd schemas.TestCommand) schemas.TestResult {
	res, err := r.exec.Run(ctx, repoDir, r.cfg.TestTimeout, testEnv, "sh", "-c", cmd.Command)

	full := res.CombinedOutput()
	result := schemas.TestResult{
		Passed:     err == nil && res.ExitCode == 0,
		ExitCode:   res.ExitCode,
		Stdout:     res.Stdout,
		Stderr:     res.Stderr,
		FullOutput: full,
		Framework:  cmd.Framework,
		DurationMs: res.Duration.Milliseconds(),
		TimedOut:   res.TimedOut,
	}

	if err != nil && !res.TimedOut {
		// The command could not be started; feed that into the output so
		// the scanner still has context.
		result.FullOutput = strings.TrimSpace(full + "\n" + err.Error())
	}

	if !result.Passed {
		result.Errors = ParseErrors(result.FullOutput, repoDir)
	}

	r.logger.Info("Test run finished.",
		zap.Bool("passed", result.Passed),
		zap.Int("exit_code", result.ExitCode),
		zap.Bool("timed_out", result.TimedOut),
		zap.Int("parsed_errors", len(result.Errors)))
	return result
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
