// File: api/schemas/session.go
package schemas

import "time"

// SessionStatus tracks where a healing session is in its lifecycle.
type SessionStatus string

const (
	StatusPending        SessionStatus = "pending"
	StatusCloning        SessionStatus = "cloning"
	StatusScanning       SessionStatus = "scanning"
	StatusTesting        SessionStatus = "testing"
	StatusFixing         SessionStatus = "fixing"
	StatusPushing        SessionStatus = "pushing"
	StatusCompleted      SessionStatus = "completed"
	StatusPartialSuccess SessionStatus = "partial_success"
	StatusFailed         SessionStatus = "failed"
)

// Terminal reports whether the status is one of the three final states.
// A terminal session is never resumed.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusPartialSuccess || s == StatusFailed
}

// BugCategory classifies a detected defect. The set is fixed; the error
// parser maps raw diagnostics onto it with keyword heuristics.
type BugCategory string

const (
	CategorySyntax     BugCategory = "SYNTAX"
	CategoryLinting    BugCategory = "LINTING"
	CategoryRuntime    BugCategory = "RUNTIME"
	CategoryLogic      BugCategory = "LOGIC"
	CategoryImport     BugCategory = "IMPORT"
	CategoryType       BugCategory = "TYPE"
	CategoryDependency BugCategory = "DEPENDENCY"
)

// Bug is one detected defect. Bugs are deduplicated by (FilePath, Line)
// within a session; once Fixed is set it stays set unless the defect is
// genuinely reintroduced.
type Bug struct {
	ID             string      `json:"id"`
	Category       BugCategory `json:"category"`
	FilePath       string      `json:"file_path"`
	Line           int         `json:"line"`
	Message        string      `json:"message"`
	Severity       string      `json:"severity"`
	Fixed          bool        `json:"fixed"`
	FixedAtAttempt int         `json:"fixed_at_attempt,omitempty"`
}

// AttemptStatus is the outcome of a single loop iteration.
type AttemptStatus string

const (
	AttemptRunning AttemptStatus = "running"
	AttemptPassed  AttemptStatus = "passed"
	AttemptFailed  AttemptStatus = "failed"
)

// Attempt is one scan -> test -> fix -> push cycle. Attempts are immutable
// once appended; the ordered list forms the session's audit trail.
type Attempt struct {
	Number        int           `json:"number"`
	Status        AttemptStatus `json:"status"`
	TestOutput    string        `json:"test_output,omitempty"`
	BugsFound     int           `json:"bugs_found"`
	BugsFixed     int           `json:"bugs_fixed"`
	CommitSHA     string        `json:"commit_sha,omitempty"`
	CommitMessage string        `json:"commit_message,omitempty"`
	DurationMs    int64         `json:"duration_ms"`
	Timestamp     time.Time     `json:"timestamp"`
}

// Score grades the outcome of a session. It is computed exactly once when
// the healing loop terminates and never mutated afterwards.
type Score struct {
	TotalBugs      int     `json:"total_bugs"`
	BugsFixed      int     `json:"bugs_fixed"`
	TestsPassed    bool    `json:"tests_passed"`
	AttemptsUsed   int     `json:"attempts_used"`
	TotalCommits   int     `json:"total_commits"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	SpeedBonus     int     `json:"speed_bonus"`
	CommitPenalty  int     `json:"commit_penalty"`
	Final          int     `json:"final"`
}

// Session is the persisted record of one healing run. The orchestrator owns
// all writes for its session; storage uses last-write-wins semantics.
type Session struct {
	ID          string        `json:"id"`
	RepoURL     string        `json:"repo_url"`
	Owner       string        `json:"owner"`
	Repo        string        `json:"repo"`
	UserID      string        `json:"user_id,omitempty"`
	TeamName    string        `json:"team_name,omitempty"`
	LeaderName  string        `json:"leader_name,omitempty"`
	Status      SessionStatus `json:"status"`
	Attempt     int           `json:"attempt"`
	MaxAttempts int           `json:"max_attempts"`
	Branch      string        `json:"branch,omitempty"`
	ForkOwner   string        `json:"fork_owner,omitempty"`
	ForkRepo    string        `json:"fork_repo,omitempty"`
	PRURL       string        `json:"pr_url,omitempty"`
	PRNumber    int           `json:"pr_number,omitempty"`
	Bugs        []Bug         `json:"bugs,omitempty"`
	Attempts    []Attempt     `json:"attempts,omitempty"`
	Score       *Score        `json:"score,omitempty"`
	Error       string        `json:"error,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// UnresolvedBugs returns the bugs not yet marked fixed.
func (s *Session) UnresolvedBugs() []Bug {
	var out []Bug
	for _, b := range s.Bugs {
		if !b.Fixed {
			out = append(out, b)
		}
	}
	return out
}

// FixedBugCount returns how many bugs have been marked fixed so far.
func (s *Session) FixedBugCount() int {
	n := 0
	for _, b := range s.Bugs {
		if b.Fixed {
			n++
		}
	}
	return n
}
