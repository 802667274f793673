// File: internal/fixer/fixer_test.go
package fixer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/mendbot/api/schemas"
	"github.com/xkilldash9x/mendbot/internal/mocks"
)

func writeRepoFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFixRewritesFile(t *testing.T) {
	dir := t.TempDir()
	writeRepoFile(t, dir, "src/calc.js", "function add(a,b){return a-b}\n")

	llm := new(mocks.MockLLMClient)
	llm.On("Generate", mock.Anything, mock.MatchedBy(func(req schemas.GenerationRequest) bool {
		return req.Tier == schemas.TierPowerful
	})).Return("function add(a,b){return a+b}\n", nil)

	f := New(llm, zaptest.NewLogger(t))
	report, err := f.Fix(context.Background(), schemas.FixInput{
		RepoDir: dir,
		Bugs: []schemas.Bug{
			{ID: "b1", Category: schemas.CategoryLogic, FilePath: "src/calc.js", Line: 1, Message: "subtracts instead of adding"},
		},
		TestOutput: "expected 4 got 0",
	})

	require.NoError(t, err)
	assert.Equal(t, 1, report.BugsFixed)
	assert.Equal(t, 1, report.FilesChanged)
	require.Len(t, report.Fixes, 1)
	assert.True(t, report.Fixes[0].Applied)
	assert.Equal(t, "b1", report.Fixes[0].BugID)

	patched, err := os.ReadFile(filepath.Join(dir, "src/calc.js"))
	require.NoError(t, err)
	assert.Contains(t, string(patched), "a+b")
}

func TestFixStripsMarkdownFences(t *testing.T) {
	dir := t.TempDir()
	writeRepoFile(t, dir, "app.py", "print('broken'\n")

	llm := new(mocks.MockLLMClient)
	llm.On("Generate", mock.Anything, mock.Anything).
		Return("```python\nprint('fixed')\n```", nil)

	f := New(llm, zaptest.NewLogger(t))
	report, err := f.Fix(context.Background(), schemas.FixInput{
		RepoDir: dir,
		Bugs:    []schemas.Bug{{ID: "b1", FilePath: "app.py", Line: 1, Message: "missing paren", Category: schemas.CategorySyntax}},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, report.BugsFixed)

	patched, err := os.ReadFile(filepath.Join(dir, "app.py"))
	require.NoError(t, err)
	assert.Equal(t, "print('fixed')\n", string(patched))
	assert.NotContains(t, string(patched), "```")
}

func TestFixOneFailureDoesNotStopBatch(t *testing.T) {
	dir := t.TempDir()
	writeRepoFile(t, dir, "good.js", "let x = 1\n")
	// bad.js intentionally absent: reading it fails.

	llm := new(mocks.MockLLMClient)
	llm.On("Generate", mock.Anything, mock.Anything).Return("let x = 2\n", nil)

	f := New(llm, zaptest.NewLogger(t))
	report, err := f.Fix(context.Background(), schemas.FixInput{
		RepoDir: dir,
		Bugs: []schemas.Bug{
			{ID: "b1", FilePath: "bad.js", Line: 1, Message: "gone", Category: schemas.CategoryRuntime},
			{ID: "b2", FilePath: "good.js", Line: 1, Message: "wrong value", Category: schemas.CategoryLogic},
		},
	})

	require.NoError(t, err)
	require.Len(t, report.Fixes, 2)
	assert.False(t, report.Fixes[0].Applied)
	assert.True(t, report.Fixes[1].Applied)
	assert.Equal(t, 1, report.BugsFixed)
}

func TestFixEmptyModelOutputIsNotApplied(t *testing.T) {
	dir := t.TempDir()
	writeRepoFile(t, dir, "a.js", "original\n")

	llm := new(mocks.MockLLMClient)
	llm.On("Generate", mock.Anything, mock.Anything).Return("   \n", nil)

	f := New(llm, zaptest.NewLogger(t))
	report, err := f.Fix(context.Background(), schemas.FixInput{
		RepoDir: dir,
		Bugs:    []schemas.Bug{{ID: "b1", FilePath: "a.js", Line: 1, Message: "m", Category: schemas.CategoryLogic}},
	})

	require.NoError(t, err)
	assert.Equal(t, 0, report.BugsFixed)

	// The original file is untouched.
	content, err := os.ReadFile(filepath.Join(dir, "a.js"))
	require.NoError(t, err)
	assert.Equal(t, "original\n", string(content))
}

func TestFixGenerationErrorIsNotApplied(t *testing.T) {
	dir := t.TempDir()
	writeRepoFile(t, dir, "a.js", "original\n")

	llm := new(mocks.MockLLMClient)
	llm.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("model unavailable"))

	f := New(llm, zaptest.NewLogger(t))
	report, err := f.Fix(context.Background(), schemas.FixInput{
		RepoDir: dir,
		Bugs:    []schemas.Bug{{ID: "b1", FilePath: "a.js", Line: 1, Message: "m", Category: schemas.CategoryLogic}},
	})

	require.NoError(t, err)
	assert.Equal(t, 0, report.BugsFixed)
	require.Len(t, report.Fixes, 1)
	assert.False(t, report.Fixes[0].Applied)
}

func TestFixCountsDistinctFilesOnce(t *testing.T) {
	dir := t.TempDir()
	writeRepoFile(t, dir, "a.js", "x\n")

	llm := new(mocks.MockLLMClient)
	llm.On("Generate", mock.Anything, mock.Anything).Return("y\n", nil)

	f := New(llm, zaptest.NewLogger(t))
	report, err := f.Fix(context.Background(), schemas.FixInput{
		RepoDir: dir,
		Bugs: []schemas.Bug{
			{ID: "b1", FilePath: "a.js", Line: 1, Message: "first", Category: schemas.CategoryLogic},
			{ID: "b2", FilePath: "a.js", Line: 9, Message: "second", Category: schemas.CategoryLogic},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 2, report.BugsFixed)
	assert.Equal(t, 1, report.FilesChanged)
}
