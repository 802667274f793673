// File: api/schemas/results.go
package schemas

// ForkResult is the narrowed outcome of a fork call against the hosting API.
// Fork failures are reported through Success/Error, never as a Go error, so
// the orchestrator can apply its fallback policy.
type ForkResult struct {
	Owner   string `json:"owner"`
	Repo    string `json:"repo"`
	URL     string `json:"url"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// PullRequestInput carries everything needed to open (or resolve) a healing PR.
type PullRequestInput struct {
	BaseOwner  string
	BaseRepo   string
	BaseBranch string
	HeadOwner  string
	Branch     string
	Title      string
	Body       string
}

// PullRequestResult is the narrowed outcome of PR creation. An already
// existing PR for the same head resolves to Success=true with its URL.
type PullRequestResult struct {
	Success bool   `json:"success"`
	Number  int    `json:"number,omitempty"`
	URL     string `json:"url,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TestCommand describes how to build and test a checked-out tree, as
// classified from its marker files.
type TestCommand struct {
	Command        string `json:"command"`
	InstallCommand string `json:"install_command,omitempty"`
	// FastInstallCommand is a lockfile-based install tried before
	// InstallCommand, e.g. "npm ci".
	FastInstallCommand string `json:"fast_install_command,omitempty"`
	Framework          string `json:"framework"`
}

// ParsedError is a single structured failure extracted from raw test output.
type ParsedError struct {
	File     string      `json:"file"`
	Line     int         `json:"line"`
	Column   int         `json:"column,omitempty"`
	Message  string      `json:"message"`
	Category BugCategory `json:"category"`
}

// TestResult captures one execution of the detected test command.
type TestResult struct {
	Passed     bool          `json:"passed"`
	ExitCode   int           `json:"exit_code"`
	Stdout     string        `json:"stdout"`
	Stderr     string        `json:"stderr"`
	FullOutput string        `json:"full_output"`
	Errors     []ParsedError `json:"errors,omitempty"`
	Framework  string        `json:"framework"`
	DurationMs int64         `json:"duration_ms"`
	TimedOut   bool          `json:"timed_out,omitempty"`
}

// AppliedFix reports the fix engineer's action on a single bug. Applied
// means the working tree was rewritten; only the next test run verifies it.
type AppliedFix struct {
	BugID       string `json:"bug_id"`
	FilePath    string `json:"file_path"`
	Description string `json:"description"`
	Applied     bool   `json:"applied"`
}

// FixReport aggregates one invocation of the fix engineer.
type FixReport struct {
	Fixes        []AppliedFix `json:"fixes"`
	BugsFixed    int          `json:"bugs_fixed"`
	FilesChanged int          `json:"files_changed"`
}

// CloneInput describes which repository to clone into which sandbox. Owner
// and Repo name the clone target (the fork when forking succeeded);
// UpstreamOwner and UpstreamRepo name the original repository, added as a
// secondary remote for reference.
type CloneInput struct {
	Owner         string
	Repo          string
	UpstreamOwner string
	UpstreamRepo  string
	Dir           string
}

// ScanInput is the boundary contract for the bug scanner.
type ScanInput struct {
	RepoDir    string
	Errors     []ParsedError
	TestOutput string
	// KnownBugs is the accumulated session bug list, used by the scanner
	// for context; the orchestrator still deduplicates the result.
	KnownBugs []Bug
}

// FixInput is the boundary contract for the fix engineer.
type FixInput struct {
	RepoDir    string
	Bugs       []Bug
	TestOutput string
}

// FixAttestation is the optional audit record written after a fix attempt.
type FixAttestation struct {
	SessionID        string `json:"session_id"`
	BugCategory      string `json:"bug_category"`
	FilePath         string `json:"file_path"`
	Line             int    `json:"line"`
	ErrorMessage     string `json:"error_message"`
	FixDescription   string `json:"fix_description"`
	TestBeforePassed bool   `json:"test_before_passed"`
	TestAfterPassed  bool   `json:"test_after_passed"`
	CommitSHA        string `json:"commit_sha,omitempty"`
}

// AttestationResult reports the recorder's outcome. It is informational
// only; the healing loop never acts on it.
type AttestationResult struct {
	Success       bool   `json:"success"`
	AttestationID string `json:"attestation_id,omitempty"`
	ExplorerURL   string `json:"explorer_url,omitempty"`
}
