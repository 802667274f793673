// File: internal/scanner/scanner_test.go
package scanner

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

func TestScanParsesModelResponse(t *testing.T) {
	llm := new(mocks.MockLLMClient)
	llm.On("Generate", mock.Anything, mock.MatchedBy(func(req schemas.GenerationRequest) bool {
		return req.Tier == schemas.TierFast && req.Options.ForceJSONFormat
	})).Return(`[
		{"category":"SYNTAX","file":"app.py","line":3,"message":"bad indent","severity":"high"},
		{"category":"TYPE","file":"util.py","line":8,"message":"str + int","severity":"medium"}
	]`, nil)

	s := New(llm, zaptest.NewLogger(t))
	bugs, err := s.Scan(context.Background(), schemas.ScanInput{
		RepoDir:    t.TempDir(),
		TestOutput: "FAILED",
	})

	require.NoError(t, err)
	require.Len(t, bugs, 2)
	assert.Equal(t, schemas.CategorySyntax, bugs[0].Category)
	assert.Equal(t, "app.py", bugs[0].FilePath)
	assert.Equal(t, 3, bugs[0].Line)
	assert.Equal(t, "high", bugs[0].Severity)
	assert.NotEmpty(t, bugs[0].ID)
	assert.NotEqual(t, bugs[0].ID, bugs[1].ID)
}

func TestScanDeduplicatesByLocation(t *testing.T) {
	llm := new(mocks.MockLLMClient)
	llm.On("Generate", mock.Anything, mock.Anything).Return(`[
		{"category":"LOGIC","file":"a.js","line":5,"message":"first"},
		{"category":"LOGIC","file":"a.js","line":5,"message":"duplicate location"}
	]`, nil)

	s := New(llm, zaptest.NewLogger(t))
	bugs, err := s.Scan(context.Background(), schemas.ScanInput{RepoDir: t.TempDir()})

	require.NoError(t, err)
	assert.Len(t, bugs, 1)
}

func TestScanHandlesFencedJSON(t *testing.T) {
	llm := new(mocks.MockLLMClient)
	llm.On("Generate", mock.Anything, mock.Anything).
		Return("```json\n[{\"category\":\"RUNTIME\",\"file\":\"x.js\",\"line\":1,\"message\":\"boom\"}]\n```", nil)

	s := New(llm, zaptest.NewLogger(t))
	bugs, err := s.Scan(context.Background(), schemas.ScanInput{RepoDir: t.TempDir()})

	require.NoError(t, err)
	require.Len(t, bugs, 1)
	assert.Equal(t, schemas.CategoryRuntime, bugs[0].Category)
}

func TestScanNormalizesUnknownCategoryAndSeverity(t *testing.T) {
	llm := new(mocks.MockLLMClient)
	llm.On("Generate", mock.Anything, mock.Anything).
		Return(`[{"category":"weird","file":"a.py","line":1,"message":"m","severity":"catastrophic"}]`, nil)

	s := New(llm, zaptest.NewLogger(t))
	bugs, err := s.Scan(context.Background(), schemas.ScanInput{RepoDir: t.TempDir()})

	require.NoError(t, err)
	require.Len(t, bugs, 1)
	assert.Equal(t, schemas.CategoryLogic, bugs[0].Category)
	assert.Equal(t, "medium", bugs[0].Severity)
}

func TestScanSkipsIncompleteEntries(t *testing.T) {
	llm := new(mocks.MockLLMClient)
	llm.On("Generate", mock.Anything, mock.Anything).Return(`[
		{"category":"LOGIC","file":"","line":1,"message":"no file"},
		{"category":"LOGIC","file":"a.py","line":2,"message":""},
		{"category":"LOGIC","file":"a.py","line":3,"message":"kept"}
	]`, nil)

	s := New(llm, zaptest.NewLogger(t))
	bugs, err := s.Scan(context.Background(), schemas.ScanInput{RepoDir: t.TempDir()})

	require.NoError(t, err)
	require.Len(t, bugs, 1)
	assert.Equal(t, "kept", bugs[0].Message)
}

func TestScanGenerationFailure(t *testing.T) {
	llm := new(mocks.MockLLMClient)
	llm.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("model unavailable"))

	s := New(llm, zaptest.NewLogger(t))
	_, err := s.Scan(context.Background(), schemas.ScanInput{RepoDir: t.TempDir()})
	assert.Error(t, err)
}

func TestScanUnusableResponse(t *testing.T) {
	llm := new(mocks.MockLLMClient)
	llm.On("Generate", mock.Anything, mock.Anything).Return("I could not find any JSON to give you.", nil)

	s := New(llm, zaptest.NewLogger(t))
	_, err := s.Scan(context.Background(), schemas.ScanInput{RepoDir: t.TempDir()})
	assert.Error(t, err)
}

func TestScanPromptIncludesFileContent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "calc.js"), []byte("function add(a,b){return a-b}"), 0o644))

	var prompt string
	llm := new(mocks.MockLLMClient)
	llm.On("Generate", mock.Anything, mock.MatchedBy(func(req schemas.GenerationRequest) bool {
		prompt = req.UserPrompt
		return true
	})).Return(`[]`, nil)

	s := New(llm, zaptest.NewLogger(t))
	_, err := s.Scan(context.Background(), schemas.ScanInput{
		RepoDir: dir,
		Errors: []schemas.ParsedError{
			{File: "src/calc.js", Line: 1, Message: "wrong result", Category: schemas.CategoryLogic},
		},
		TestOutput: "expected 4 got 0",
	})

	require.NoError(t, err)
	assert.Contains(t, prompt, "src/calc.js")
	assert.Contains(t, prompt, "return a-b")
	assert.Contains(t, prompt, "expected 4 got 0")
}
