// File: api/schemas/interfaces.go
package schemas

import (
	"context"
	"time"
)

// -- Storage --

// SessionStore persists session documents keyed by id. A single orchestrator
// goroutine owns all writes for its session, so last-write-wins is
// sufficient; implementations need no optimistic concurrency control.
type SessionStore interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, s *Session) error
	Close() error
}

// -- Hosting API --

// RepoHost is the outbound surface to the Git hosting provider. All methods
// return narrowed result records; transport failures surface inside them so
// the orchestrator's policy code stays free of HTTP details.
type RepoHost interface {
	// Fork requests a fork of owner/repo into the bot account and polls
	// until the fork exists or the bounded wait expires. A 403 (missing
	// scope) yields Success=false with a descriptive error, never a panic
	// or Go error.
	Fork(ctx context.Context, owner, repo string) ForkResult

	// CreatePullRequest opens the healing PR, tolerating "already exists"
	// by resolving the open PR for the same head.
	CreatePullRequest(ctx context.Context, in PullRequestInput) PullRequestResult
}

// -- Sandbox --

// SandboxManager owns the session-scoped working directories. Dir is
// deterministic in the session id so concurrent sessions cannot collide.
type SandboxManager interface {
	Dir(sessionID string) string
	// Prepare creates the sandbox root and returns its path.
	Prepare(sessionID string) (string, error)
	// Cleanup removes the directory tree. Idempotent; a missing directory
	// is not an error.
	Cleanup(sessionID string) error
}

// -- Git operations --

// GitClient performs repository operations inside a sandbox.
type GitClient interface {
	// Clone shallow-clones the target repository into in.Dir with the bot
	// token embedded for later pushes and adds the upstream repository as
	// a secondary remote. Returns the repository directory.
	Clone(ctx context.Context, in CloneInput) (string, error)
	// CreateBranch checks out an existing remote branch of that name when
	// one exists, otherwise creates a new local branch.
	CreateBranch(ctx context.Context, repoDir, branch string) error
	// Commit stages everything and commits with the fixed automation
	// prefix. Returns the new commit sha, or "" when nothing changed.
	Commit(ctx context.Context, repoDir, message string) (string, error)
	// Push force-pushes the branch to the clone origin.
	Push(ctx context.Context, repoDir, branch string) error
	// CommitCount counts commits reachable from the branch head.
	CommitCount(repoDir, branch string) (int, error)
	// DefaultBranch resolves the remote default branch, falling back to
	// main then master.
	DefaultBranch(repoDir string) string
}

// -- Test execution --

// TestRunner detects, installs for, and runs a checked-out tree's tests.
type TestRunner interface {
	// Detect classifies the tree from marker files. Pure; no side effects.
	Detect(repoDir string) TestCommand
	// Install runs the dependency install once. Failures are warnings;
	// the caller proceeds to the test run regardless.
	Install(ctx context.Context, repoDir string, cmd TestCommand) error
	// Run executes the test command with a bounded timeout and parses
	// failures into structured errors.
	Run(ctx context.Context, repoDir string, cmd TestCommand) TestResult
}

// -- AI capabilities (external collaborators) --

// BugScanner turns structured test failures plus file content into
// categorized bug records.
type BugScanner interface {
	Scan(ctx context.Context, in ScanInput) ([]Bug, error)
}

// FixEngineer rewrites files in place to address a batch of bugs.
type FixEngineer interface {
	Fix(ctx context.Context, in FixInput) (*FixReport, error)
}

// GenerationTier selects the model class for a generation request.
type GenerationTier string

const (
	TierFast     GenerationTier = "fast"
	TierPowerful GenerationTier = "powerful"
)

// GenerationOptions tunes a single generation request.
type GenerationOptions struct {
	Temperature     float32
	ForceJSONFormat bool
}

// GenerationRequest is one prompt to the configured LLM.
type GenerationRequest struct {
	SystemPrompt string
	UserPrompt   string
	Tier         GenerationTier
	Options      GenerationOptions
}

// LLMClient abstracts the model provider behind a single generate call.
type LLMClient interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// -- Progress --

// ProgressEmitter broadcasts lifecycle events to any attached subscribers.
// Publish must never block the orchestrator: with no subscriber (or a slow
// one) events are dropped silently.
type ProgressEmitter interface {
	Publish(ev Event)
	// CloseAfter tears the session channel down once the grace period has
	// elapsed, so lagging subscribers still receive the final events.
	CloseAfter(sessionID string, grace time.Duration)
}

// -- Attestation --

// AttestationRecorder writes an optional, fire-and-forget audit record of a
// fix. Implementations must be a no-op when the feature is disabled and must
// never let a failure reach the healing loop.
type AttestationRecorder interface {
	RecordFix(ctx context.Context, a FixAttestation) AttestationResult
}
