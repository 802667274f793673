// File: internal/scanner/scanner.go
// Description: LLM-backed bug scanner. Turns structured test failures plus
// the affected file content into categorized bug records.
package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/mendbot/api/schemas"
	"github.com/xkilldash9x/mendbot/internal/llmutil"
)

const (
	maxFilesPerScan = 5
	maxFileBytes    = 16 * 1024
	maxOutputBytes  = 8 * 1024
)

const systemPrompt = "You are a senior software engineer triaging a failing test suite. " +
	"You respond only with the requested JSON."

// scannedBug is the wire shape the model is asked to produce.
type scannedBug struct {
	Category string `json:"category"`
	File     string `json:"file"`
	Line     int    `json:"line"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// Scanner implements schemas.BugScanner on top of the LLM client.
type Scanner struct {
	llm    schemas.LLMClient
	logger *zap.Logger
}

// New creates a bug scanner.
func New(llm schemas.LLMClient, logger *zap.Logger) *Scanner {
	return &Scanner{
		llm:    llm,
		logger: logger.Named("scanner"),
	}
}

// Scan asks the model to locate concrete defects behind the parsed test
// failures. Results are normalized onto the fixed category set and
// deduplicated by (file, line) within the response; the orchestrator
// deduplicates again against the session's accumulated bug list.
func (s *Scanner) Scan(ctx context.Context, in schemas.ScanInput) ([]schemas.Bug, error) {
	prompt := s.buildPrompt(in)

	raw, err := s.llm.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   prompt,
		Tier:         schemas.TierFast,
		Options:      schemas.GenerationOptions{Temperature: 0.1, ForceJSONFormat: true},
	})
	if err != nil {
		return nil, fmt.Errorf("bug scan generation failed: %w", err)
	}

	parsed, err := llmutil.ParseJSONResponse[[]scannedBug](raw)
	if err != nil {
		return nil, fmt.Errorf("bug scan response unusable: %w", err)
	}

	seen := map[string]bool{}
	var bugs []schemas.Bug
	for _, sb := range *parsed {
		if sb.File == "" || sb.Message == "" {
			continue
		}
		key := fmt.Sprintf("%s:%d", sb.File, sb.Line)
		if seen[key] {
			continue
		}
		seen[key] = true
		bugs = append(bugs, schemas.Bug{
			ID:       uuid.NewString(),
			Category: normalizeCategory(sb.Category),
			FilePath: filepath.ToSlash(sb.File),
			Line:     sb.Line,
			Message:  sb.Message,
			Severity: normalizeSeverity(sb.Severity),
		})
	}

	s.logger.Info("Scan complete.", zap.Int("bugs", len(bugs)))
	return bugs, nil
}

func (s *Scanner) buildPrompt(in schemas.ScanInput) string {
	var b strings.Builder

	b.WriteString("The test suite of a repository is failing. Identify the concrete bugs.\n\n")

	b.WriteString("Parsed test failures:\n")
	for _, e := range in.Errors {
		fmt.Fprintf(&b, "- %s:%d [%s] %s\n", e.File, e.Line, e.Category, e.Message)
	}

	if len(in.KnownBugs) > 0 {
		b.WriteString("\nBugs already identified in earlier scans (do not repeat these):\n")
		for _, bug := range in.KnownBugs {
			fmt.Fprintf(&b, "- %s:%d %s (fixed=%t)\n", bug.FilePath, bug.Line, bug.Message, bug.Fixed)
		}
	}

	fmt.Fprintf(&b, "\nRaw test output (truncated):\n%s\n", llmutil.Truncate(in.TestOutput, maxOutputBytes))

	b.WriteString("\nRelevant file contents:\n")
	for i, file := range uniqueFiles(in.Errors) {
		if i >= maxFilesPerScan {
			break
		}
		content, err := readBounded(filepath.Join(in.RepoDir, file))
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "\n--- %s ---\n%s\n", file, content)
	}

	b.WriteString("\nRespond with a JSON array, one element per distinct bug:\n")
	b.WriteString(`[{"category":"SYNTAX|LINTING|RUNTIME|LOGIC|IMPORT|TYPE|DEPENDENCY","file":"relative/path","line":1,"message":"...","severity":"low|medium|high"}]`)
	b.WriteString("\nReport each distinct (file, line) at most once.")
	return b.String()
}

func uniqueFiles(errs []schemas.ParsedError) []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range errs {
		if e.File == "" || seen[e.File] {
			continue
		}
		seen[e.File] = true
		out = append(out, e.File)
	}
	return out
}

func readBounded(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if len(raw) > maxFileBytes {
		raw = raw[:maxFileBytes]
	}
	return string(raw), nil
}

func normalizeCategory(raw string) schemas.BugCategory {
	switch schemas.BugCategory(strings.ToUpper(strings.TrimSpace(raw))) {
	case schemas.CategorySyntax:
		return schemas.CategorySyntax
	case schemas.CategoryLinting:
		return schemas.CategoryLinting
	case schemas.CategoryRuntime:
		return schemas.CategoryRuntime
	case schemas.CategoryImport:
		return schemas.CategoryImport
	case schemas.CategoryType:
		return schemas.CategoryType
	case schemas.CategoryDependency:
		return schemas.CategoryDependency
	default:
		return schemas.CategoryLogic
	}
}

func normalizeSeverity(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "high", "critical":
		return "high"
	case "low":
		return "low"
	default:
		return "medium"
	}
}
