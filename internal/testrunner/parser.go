// File: internal/testrunner/parser.go
// Description: Best-effort, line-oriented extraction of structured error
// records from raw test output. The category mapping is a fixed lookup
// table, not a place to grow new heuristics.
package testrunner

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/xkilldash9x/mendbot/api/schemas"
)

var (
	// Python: File "app/main.py", line 12
	pythonFrameRe = regexp.MustCompile(`^\s*File "([^"]+)", line (\d+)`)
	// Python: ValueError: something broke
	pythonErrorRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_.]*(?:Error|Exception|Warning))\s*:\s*(.*)$`)
	// Compiler diagnostics: Program.cs(12,8): error CS1002: ; expected
	compilerRe = regexp.MustCompile(`^(.+?)\((\d+),(\d+)\):\s*(?:fatal\s+)?error\s+[A-Za-z0-9]*\s*:?\s*(.+)$`)
	// Linter / gcc / go: src/app.js:14:7: error|warning: message, or ./x.go:10:2: undefined: y
	colonRe = regexp.MustCompile(`^(\.?[\w./\\-]+\.[A-Za-z]{1,4}):(\d+)(?::(\d+))?:\s*(.+)$`)
	// Node stack frames: at fn (/srv/app/lib/util.js:3:15)
	nodeFrameRe = regexp.MustCompile(`\(([^()\s]+\.[cm]?[jt]sx?):(\d+):(\d+)\)`)
)

// categoryKeywords maps message substrings to bug categories, checked in
// order. Anything unmatched is LOGIC.
var categoryKeywords = []struct {
	keyword  string
	category schemas.BugCategory
}{
	{"syntaxerror", schemas.CategorySyntax},
	{"syntax error", schemas.CategorySyntax},
	{"unexpected token", schemas.CategorySyntax},
	{"unexpected eof", schemas.CategorySyntax},
	{"indentationerror", schemas.CategorySyntax},
	{"modulenotfounderror", schemas.CategoryImport},
	{"importerror", schemas.CategoryImport},
	{"cannot find module", schemas.CategoryImport},
	{"no module named", schemas.CategoryImport},
	{"cannot find package", schemas.CategoryImport},
	{"undefined:", schemas.CategoryImport},
	{"is not defined", schemas.CategoryRuntime},
	{"typeerror", schemas.CategoryType},
	{"type error", schemas.CategoryType},
	{"mismatched types", schemas.CategoryType},
	{"incompatible type", schemas.CategoryType},
	{"cannot use", schemas.CategoryType},
	{"eslint", schemas.CategoryLinting},
	{"warning", schemas.CategoryLinting},
	{"lint", schemas.CategoryLinting},
	{"npm err", schemas.CategoryDependency},
	{"peer dep", schemas.CategoryDependency},
	{"could not resolve dependency", schemas.CategoryDependency},
	{"package not found", schemas.CategoryDependency},
	{"referenceerror", schemas.CategoryRuntime},
	{"nullpointerexception", schemas.CategoryRuntime},
	{"panic:", schemas.CategoryRuntime},
	{"segmentation fault", schemas.CategoryRuntime},
	{"runtime error", schemas.CategoryRuntime},
}

// Categorize maps a diagnostic message onto the fixed bug taxonomy.
func Categorize(message string) schemas.BugCategory {
	lower := strings.ToLower(message)
	for _, kc := range categoryKeywords {
		if strings.Contains(lower, kc.keyword) {
			return kc.category
		}
	}
	return schemas.CategoryLogic
}

// ParseErrors extracts structured error records from combined test output.
// Paths are made relative to repoDir where possible; vendored trees are
// skipped. Results are deduplicated by (file, line, message).
func ParseErrors(output, repoDir string) []schemas.ParsedError {
	var out []schemas.ParsedError
	seen := map[string]bool{}

	add := func(file string, line, col int, message string) {
		file = normalizePath(file, repoDir)
		if file == "" || message == "" {
			return
		}
		key := file + ":" + strconv.Itoa(line) + ":" + message
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, schemas.ParsedError{
			File:     file,
			Line:     line,
			Column:   col,
			Message:  message,
			Category: Categorize(message),
		})
	}

	lines := strings.Split(output, "\n")
	// pendingFile/pendingLine hold the most recent python stack frame until
	// its exception line arrives.
	pendingFile := ""
	pendingLine := 0

	for _, raw := range lines {
		line := strings.TrimRight(raw, "\r")

		if m := pythonFrameRe.FindStringSubmatch(line); m != nil {
			pendingFile = m[1]
			pendingLine = atoi(m[2])
			continue
		}
		if m := pythonErrorRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil && pendingFile != "" {
			add(pendingFile, pendingLine, 0, m[1]+": "+strings.TrimSpace(m[2]))
			pendingFile = ""
			pendingLine = 0
			continue
		}

		if m := compilerRe.FindStringSubmatch(line); m != nil {
			add(m[1], atoi(m[2]), atoi(m[3]), strings.TrimSpace(m[4]))
			continue
		}

		if m := colonRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			add(m[1], atoi(m[2]), atoi(m[3]), strings.TrimSpace(m[4]))
			continue
		}

		if m := nodeFrameRe.FindStringSubmatch(line); m != nil {
			// The frame itself carries no message; reuse the line's text.
			msg := strings.TrimSpace(line)
			add(m[1], atoi(m[2]), atoi(m[3]), msg)
		}
	}
	return out
}

func normalizePath(file, repoDir string) string {
	if strings.Contains(file, "node_modules") ||
		strings.Contains(file, "site-packages") ||
		strings.Contains(file, "/usr/lib/") {
		return ""
	}
	if repoDir != "" && filepath.IsAbs(file) {
		if rel, err := filepath.Rel(repoDir, file); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(strings.TrimPrefix(file, "./"))
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
