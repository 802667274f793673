// File: internal/testrunner/runner_test.go
package testrunner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/mendbot/api/schemas"
	"github.com/xkilldash9x/mendbot/internal/config"
	"github.com/xkilldash9x/mendbot/internal/sandbox"
)

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	logger := zaptest.NewLogger(t)
	return NewRunner(
		sandbox.NewExecutor(logger, 10*time.Second),
		config.RunnerConfig{InstallTimeout: 10 * time.Second, TestTimeout: 5 * time.Second},
		logger,
	)
}

func TestRunPassingCommand(t *testing.T) {
	r := newTestRunner(t)

	result := r.Run(context.Background(), t.TempDir(), schemas.TestCommand{
		Command: "echo 'all green'", Framework: "sh",
	})

	assert.True(t, result.Passed)
	assert.Equal(t, 0, result.ExitCode)
	assert.Contains(t, result.FullOutput, "all green")
	assert.Empty(t, result.Errors)
}

func TestRunFailingCommandParsesErrors(t *testing.T) {
	r := newTestRunner(t)

	result := r.Run(context.Background(), t.TempDir(), schemas.TestCommand{
		Command:   `echo "src/app.js:14:7: error: total is not defined"; exit 1`,
		Framework: "sh",
	})

	assert.False(t, result.Passed)
	assert.Equal(t, 1, result.ExitCode)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "src/app.js", result.Errors[0].File)
	assert.Equal(t, 14, result.Errors[0].Line)
}

func TestRunTimeoutIsFailedResultNotCrash(t *testing.T) {
	logger := zaptest.NewLogger(t)
	r := NewRunner(
		sandbox.NewExecutor(logger, 10*time.Second),
		config.RunnerConfig{InstallTimeout: time.Second, TestTimeout: 200 * time.Millisecond},
		logger,
	)

	result := r.Run(context.Background(), t.TempDir(), schemas.TestCommand{
		Command: "sleep 10", Framework: "sh",
	})

	assert.False(t, result.Passed)
	assert.True(t, result.TimedOut)
}

func TestInstallFastPathPreferred(t *testing.T) {
	r := newTestRunner(t)
	dir := t.TempDir()

	err := r.Install(context.Background(), dir, schemas.TestCommand{
		FastInstallCommand: "true",
		InstallCommand:     "exit 1",
	})
	assert.NoError(t, err)
}

func TestInstallFallsBackWhenFastPathFails(t *testing.T) {
	r := newTestRunner(t)
	dir := t.TempDir()

	err := r.Install(context.Background(), dir, schemas.TestCommand{
		FastInstallCommand: "exit 1",
		InstallCommand:     "true",
	})
	assert.NoError(t, err)
}

func TestInstallFailureIsReported(t *testing.T) {
	r := newTestRunner(t)

	err := r.Install(context.Background(), t.TempDir(), schemas.TestCommand{
		InstallCommand: "echo 'resolution failed' >&2; exit 1",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dependency install failed")
}

func TestInstallNoCommandIsNoOp(t *testing.T) {
	r := newTestRunner(t)
	assert.NoError(t, r.Install(context.Background(), t.TempDir(), schemas.TestCommand{}))
}
