// File: internal/fixer/fixer.go
// Description: LLM-backed fix engineer. For each unresolved bug it asks the
// powerful model for a full replacement file and rewrites the working tree
// in place. Verification is the next test run's job, not this package's.
package fixer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/mendbot/api/schemas"
	"github.com/xkilldash9x/mendbot/internal/llmutil"
)

const maxOutputBytes = 8 * 1024

const systemPrompt = "You are a senior software engineer fixing a failing repository. " +
	"You return complete, compilable replacement files with no commentary and no markdown."

// Fixer implements schemas.FixEngineer.
type Fixer struct {
	llm    schemas.LLMClient
	logger *zap.Logger
}

// New creates a fix engineer.
func New(llm schemas.LLMClient, logger *zap.Logger) *Fixer {
	return &Fixer{
		llm:    llm,
		logger: logger.Named("fixer"),
	}
}

// Fix processes the batch, one file per bug. A failed generation for one bug
// does not stop the rest of the batch; it is reported as Applied=false.
func (f *Fixer) Fix(ctx context.Context, in schemas.FixInput) (*schemas.FixReport, error) {
	report := &schemas.FixReport{}
	changedFiles := map[string]bool{}

	for _, bug := range in.Bugs {
		fix := schemas.AppliedFix{BugID: bug.ID, FilePath: bug.FilePath}

		patched, desc, err := f.rewriteFile(ctx, in.RepoDir, bug, in.TestOutput)
		if err != nil {
			f.logger.Warn("Fix generation failed for bug.",
				zap.String("file", bug.FilePath),
				zap.Int("line", bug.Line),
				zap.Error(err))
			report.Fixes = append(report.Fixes, fix)
			continue
		}

		target := filepath.Join(in.RepoDir, filepath.FromSlash(bug.FilePath))
		if err := os.WriteFile(target, []byte(patched), 0o644); err != nil {
			f.logger.Warn("Could not write patched file.", zap.String("file", target), zap.Error(err))
			report.Fixes = append(report.Fixes, fix)
			continue
		}

		fix.Applied = true
		fix.Description = desc
		report.Fixes = append(report.Fixes, fix)
		report.BugsFixed++
		changedFiles[bug.FilePath] = true

		f.logger.Info("Applied fix.",
			zap.String("file", bug.FilePath),
			zap.Int("line", bug.Line),
			zap.String("category", string(bug.Category)))
	}

	report.FilesChanged = len(changedFiles)
	return report, nil
}

// rewriteFile asks the model for a complete replacement of the bug's file.
func (f *Fixer) rewriteFile(ctx context.Context, repoDir string, bug schemas.Bug, testOutput string) (content, description string, err error) {
	target := filepath.Join(repoDir, filepath.FromSlash(bug.FilePath))
	original, err := os.ReadFile(target)
	if err != nil {
		return "", "", fmt.Errorf("could not read %s: %w", bug.FilePath, err)
	}

	prompt := f.buildPrompt(bug, string(original), testOutput)
	raw, err := f.llm.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   prompt,
		Tier:         schemas.TierPowerful,
		Options:      schemas.GenerationOptions{Temperature: 0.1},
	})
	if err != nil {
		return "", "", err
	}

	patched := llmutil.CleanCodeOutput(raw)
	if strings.TrimSpace(patched) == "" {
		return "", "", fmt.Errorf("model returned an empty file for %s", bug.FilePath)
	}

	description = fmt.Sprintf("Rewrote %s to fix %s bug at line %d: %s",
		bug.FilePath, strings.ToLower(string(bug.Category)), bug.Line, llmutil.Truncate(bug.Message, 120))
	return patched + ensureTrailingNewline(patched), description, nil
}

func (f *Fixer) buildPrompt(bug schemas.Bug, original, testOutput string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Fix the following bug.\n\nCategory: %s\nFile: %s\nLine: %d\nProblem: %s\n",
		bug.Category, bug.FilePath, bug.Line, bug.Message)
	fmt.Fprintf(&b, "\nTest output for context (truncated):\n%s\n", llmutil.Truncate(testOutput, maxOutputBytes))
	fmt.Fprintf(&b, "\nCurrent content of %s:\n---\n%s\n---\n", bug.FilePath, original)
	b.WriteString("\nReturn the complete corrected file content and nothing else. ")
	b.WriteString("Preserve all behavior unrelated to the bug.")
	return b.String()
}

func ensureTrailingNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return ""
	}
	return "\n"
}
