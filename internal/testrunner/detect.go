// File: internal/testrunner/detect.go
package testrunner

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/xkilldash9x/mendbot/api/schemas"
)

// packageManifest is the subset of package.json the detector cares about.
type packageManifest struct {
	Scripts         map[string]string `json:"scripts"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

var nodeTestFrameworks = []string{"jest", "vitest", "mocha", "ava", "tap"}

// Detect classifies a checked-out tree from its marker files, in priority
// order: Node package manifest, Python project markers, Go module, Rust
// manifest, Java build files. It is a pure classification function; nothing
// is executed and nothing is written.
func Detect(repoDir string) schemas.TestCommand {
	if cmd, ok := detectNode(repoDir); ok {
		return cmd
	}
	if cmd, ok := detectPython(repoDir); ok {
		return cmd
	}
	if exists(repoDir, "go.mod") {
		return schemas.TestCommand{
			Command:        "go test ./...",
			InstallCommand: "go mod download",
			Framework:      "go",
		}
	}
	if exists(repoDir, "Cargo.toml") {
		return schemas.TestCommand{
			Command:   "cargo test",
			Framework: "cargo",
		}
	}
	if exists(repoDir, "pom.xml") {
		return schemas.TestCommand{
			Command:   "mvn -B test",
			Framework: "maven",
		}
	}
	if exists(repoDir, "build.gradle") || exists(repoDir, "build.gradle.kts") {
		return schemas.TestCommand{
			Command:   "gradle test",
			Framework: "gradle",
		}
	}

	// Nothing matched; fall back to the generic npm invocation the rest of
	// the pipeline knows how to parse.
	return schemas.TestCommand{
		Command:   "npm test",
		Framework: "unknown",
	}
}

func detectNode(repoDir string) (schemas.TestCommand, bool) {
	raw, err := os.ReadFile(filepath.Join(repoDir, "package.json"))
	if err != nil {
		return schemas.TestCommand{}, false
	}

	var manifest packageManifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		// A present but unparsable manifest is still a Node project.
		return schemas.TestCommand{
			Command:            "npm test",
			InstallCommand:     "npm install",
			FastInstallCommand: fastNodeInstall(repoDir),
			Framework:          "node",
		}, true
	}

	framework := "node"
	for _, fw := range nodeTestFrameworks {
		if _, ok := manifest.DevDependencies[fw]; ok {
			framework = fw
			break
		}
		if _, ok := manifest.Dependencies[fw]; ok {
			framework = fw
			break
		}
	}

	script, hasScript := manifest.Scripts["test"]
	// npm init seeds a placeholder test script that always exits 1.
	if !hasScript || script == "" || script == `echo "Error: no test specified" && exit 1` {
		if framework == "node" {
			return schemas.TestCommand{}, false
		}
	}

	return schemas.TestCommand{
		Command:            "npm test",
		InstallCommand:     "npm install",
		FastInstallCommand: fastNodeInstall(repoDir),
		Framework:          framework,
	}, true
}

func fastNodeInstall(repoDir string) string {
	if exists(repoDir, "package-lock.json") {
		return "npm ci"
	}
	if exists(repoDir, "yarn.lock") {
		return "yarn install --frozen-lockfile"
	}
	return ""
}

func detectPython(repoDir string) (schemas.TestCommand, bool) {
	markers := []string{"pytest.ini", "pyproject.toml", "setup.py", "requirements.txt", "tox.ini"}
	found := false
	for _, m := range markers {
		if exists(repoDir, m) {
			found = true
			break
		}
	}
	if !found {
		return schemas.TestCommand{}, false
	}

	install := ""
	if exists(repoDir, "requirements.txt") {
		install = "pip install -r requirements.txt"
	}
	return schemas.TestCommand{
		Command:        "python -m pytest -x --tb=short -q",
		InstallCommand: install,
		Framework:      "pytest",
	}, true
}

func exists(repoDir, name string) bool {
	_, err := os.Stat(filepath.Join(repoDir, name))
	return err == nil
}
