// File: internal/healer/healer.go
// Description: The healing-loop orchestrator. Sequences fork -> clone ->
// install -> (test -> scan -> fix -> commit/push)* across bounded attempts,
// grades the outcome and finalizes the session. Every external effect goes
// through an injected interface so the loop is testable end to end.
package healer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/mendbot/api/schemas"
	"github.com/xkilldash9x/mendbot/internal/config"
	"github.com/xkilldash9x/mendbot/internal/gitops"
)

// StartRequest begins one healing session.
type StartRequest struct {
	RepoURL    string `json:"repo_url"`
	UserID     string `json:"user_id,omitempty"`
	TeamName   string `json:"team_name,omitempty"`
	LeaderName string `json:"leader_name,omitempty"`
}

// Deps collects every external capability the loop needs. All fields are
// required except Attest, which may be a disabled recorder.
type Deps struct {
	Store   schemas.SessionStore
	Host    schemas.RepoHost
	Sandbox schemas.SandboxManager
	Git     schemas.GitClient
	Runner  schemas.TestRunner
	Scanner schemas.BugScanner
	Fixer   schemas.FixEngineer
	Emitter schemas.ProgressEmitter
	Attest  schemas.AttestationRecorder
}

// Healer runs healing sessions. One goroutine per session; the Healer itself
// holds no per-session state.
type Healer struct {
	cfg    config.HealerConfig
	deps   Deps
	logger *zap.Logger
}

// New creates a Healer.
func New(cfg config.HealerConfig, deps Deps, logger *zap.Logger) *Healer {
	return &Healer{
		cfg:    cfg,
		deps:   deps,
		logger: logger.Named("healer"),
	}
}

// StartHealing validates the request, persists the pending session and
// launches the loop in its own goroutine. It returns as soon as the session
// exists; progress flows through the emitter and the session store.
func (h *Healer) StartHealing(ctx context.Context, req StartRequest) (string, error) {
	owner, repo, err := gitops.ParseRepoURL(req.RepoURL)
	if err != nil {
		return "", err
	}

	team := req.TeamName
	if team == "" {
		team = h.cfg.DefaultTeamName
	}
	leader := req.LeaderName
	if leader == "" {
		leader = h.cfg.DefaultLeaderName
	}

	now := time.Now().UTC()
	sess := &schemas.Session{
		ID:          uuid.NewString(),
		RepoURL:     req.RepoURL,
		Owner:       owner,
		Repo:        repo,
		UserID:      req.UserID,
		TeamName:    team,
		LeaderName:  leader,
		Status:      schemas.StatusPending,
		MaxAttempts: h.cfg.MaxAttempts,
		Branch:      gitops.HealingBranchName(team, leader),
		CreatedAt:   now,
	}
	if err := h.deps.Store.Create(ctx, sess); err != nil {
		return "", fmt.Errorf("could not persist session: %w", err)
	}

	go h.run(sess)
	return sess.ID, nil
}

// run is the whole lifecycle of one session. It owns all writes to the
// session record and never returns an error; outcomes land in the record.
func (h *Healer) run(sess *schemas.Session) {
	logger := h.logger.With(zap.String("session_id", sess.ID), zap.String("repo", sess.Owner+"/"+sess.Repo))
	ctx := context.Background()

	started := time.Now().UTC()
	sess.StartedAt = &started

	sandboxed := false
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Healing loop panicked.", zap.Any("panic", r))
			h.finalize(ctx, sess, schemas.StatusFailed, fmt.Sprintf("internal error: %v", r))
		}
		if sandboxed {
			if err := h.deps.Sandbox.Cleanup(sess.ID); err != nil {
				logger.Warn("Sandbox cleanup failed.", zap.Error(err))
			}
		}
		h.deps.Emitter.CloseAfter(sess.ID, h.cfg.EmitterGrace)
	}()

	// -- Fork --
	h.setStatus(ctx, sess, schemas.StatusCloning, "Forking repository")
	fork := h.deps.Host.Fork(ctx, sess.Owner, sess.Repo)
	cloneOwner, cloneRepo := sess.Owner, sess.Repo
	if fork.Success {
		sess.ForkOwner = fork.Owner
		sess.ForkRepo = fork.Repo
		cloneOwner, cloneRepo = fork.Owner, fork.Repo
	} else {
		if h.cfg.RequireFork {
			logger.Error("Fork failed and forking is required.", zap.String("error", fork.Error))
			h.finalize(ctx, sess, schemas.StatusFailed, "fork failed: "+fork.Error)
			return
		}
		// Fallback policy: work on the original repository. The bot token
		// must carry write scope on it for pushes to land.
		logger.Warn("Fork failed; falling back to the original repository.", zap.String("error", fork.Error))
		h.emitLog(sess, "Fork unavailable, cloning the original repository directly.")
	}

	// -- Sandbox + clone --
	dir, err := h.deps.Sandbox.Prepare(sess.ID)
	if err != nil {
		h.finalize(ctx, sess, schemas.StatusFailed, "could not prepare sandbox: "+err.Error())
		return
	}
	sandboxed = true

	repoDir, err := h.deps.Git.Clone(ctx, schemas.CloneInput{
		Owner:         cloneOwner,
		Repo:          cloneRepo,
		UpstreamOwner: sess.Owner,
		UpstreamRepo:  sess.Repo,
		Dir:           dir,
	})
	if err != nil {
		logger.Error("Clone failed.", zap.Error(err))
		h.finalize(ctx, sess, schemas.StatusFailed, "clone failed: "+err.Error())
		return
	}

	if err := h.deps.Git.CreateBranch(ctx, repoDir, sess.Branch); err != nil {
		logger.Error("Branch creation failed.", zap.Error(err))
		h.finalize(ctx, sess, schemas.StatusFailed, "branch creation failed: "+err.Error())
		return
	}
	h.persist(ctx, sess)

	// -- Install, once --
	cmd := h.deps.Runner.Detect(repoDir)
	h.emitLog(sess, fmt.Sprintf("Detected %s project; test command: %s", cmd.Framework, cmd.Command))
	if err := h.deps.Runner.Install(ctx, repoDir, cmd); err != nil {
		// Install failures are warnings; the test run decides what matters.
		logger.Warn("Dependency install failed.", zap.Error(err))
		h.emitLog(sess, "Dependency install failed, continuing: "+err.Error())
	}

	// -- The loop --
	deadline := started.Add(h.cfg.SessionTimeout)
	var lastResult schemas.TestResult

	for attempt := 1; attempt <= sess.MaxAttempts; attempt++ {
		if time.Now().After(deadline) {
			logger.Info("Session timeout reached; moving to final verification.", zap.Int("attempt", attempt))
			h.emitLog(sess, "Session time budget exhausted, verifying current state.")
			break
		}

		sess.Attempt = attempt
		attemptStart := time.Now()

		h.setStatus(ctx, sess, schemas.StatusTesting, fmt.Sprintf("Running tests (attempt %d/%d)", attempt, sess.MaxAttempts))
		lastResult = h.deps.Runner.Run(ctx, repoDir, cmd)
		h.emitTestResult(sess, lastResult, attempt)

		if lastResult.Passed {
			h.recordAttempt(ctx, sess, attempt, schemas.AttemptPassed, lastResult, 0, 0, "", "", attemptStart)
			h.succeed(ctx, sess, repoDir, started)
			return
		}

		// -- Scan --
		h.setStatus(ctx, sess, schemas.StatusScanning, fmt.Sprintf("Scanning for bugs (attempt %d)", attempt))
		found := h.scan(ctx, sess, repoDir, lastResult)
		newBugs := h.mergeBugs(sess, found)
		for _, b := range newBugs {
			h.deps.Emitter.Publish(schemas.NewEvent(sess.ID, schemas.EventBugFound, schemas.BugFoundPayload{
				Category: b.Category, File: b.FilePath, Line: b.Line, Message: b.Message,
			}))
		}

		unresolved := sess.UnresolvedBugs()
		if len(unresolved) == 0 {
			// Everything previously identified is fixed; treat the red run
			// as transient and finish.
			logger.Info("No unresolved bugs remain; treating as implicit success.")
			h.recordAttempt(ctx, sess, attempt, schemas.AttemptPassed, lastResult, len(newBugs), 0, "", "", attemptStart)
			h.succeed(ctx, sess, repoDir, started)
			return
		}

		// -- Fix --
		h.setStatus(ctx, sess, schemas.StatusFixing, fmt.Sprintf("Fixing %d bug(s) (attempt %d)", len(unresolved), attempt))
		report := h.fix(ctx, sess, repoDir, unresolved, lastResult, attempt)

		// -- Commit + push --
		h.setStatus(ctx, sess, schemas.StatusPushing, "Committing and pushing fixes")
		commitMsg := fmt.Sprintf("Attempt %d: fix %d of %d bug(s)", attempt, report.BugsFixed, len(unresolved))
		sha, err := h.deps.Git.Commit(ctx, repoDir, commitMsg)
		if err != nil {
			logger.Warn("Commit failed.", zap.Error(err))
		}
		if sha != "" {
			if err := h.deps.Git.Push(ctx, repoDir, sess.Branch); err != nil {
				// Push failures do not abort the attempt.
				logger.Warn("Push failed.", zap.Error(err))
				h.emitLog(sess, "Push failed, continuing: "+err.Error())
			}
		}

		h.attestFixes(ctx, sess, report, sha, lastResult)
		h.recordAttempt(ctx, sess, attempt, schemas.AttemptFailed, lastResult, len(newBugs), report.BugsFixed, sha, commitMsg, attemptStart)
	}

	// -- Final verification --
	h.setStatus(ctx, sess, schemas.StatusTesting, "Final verification run")
	lastResult = h.deps.Runner.Run(ctx, repoDir, cmd)
	h.emitTestResult(sess, lastResult, sess.Attempt)

	switch {
	case lastResult.Passed:
		h.succeed(ctx, sess, repoDir, started)
	case sess.FixedBugCount() > 0:
		// A partially fixed branch has value; open the PR anyway.
		h.finishWithScore(ctx, sess, repoDir, started, true, schemas.StatusPartialSuccess, "")
	default:
		h.finishWithScore(ctx, sess, repoDir, started, false, schemas.StatusFailed, "no bugs could be fixed within the attempt budget")
	}
}

// scan runs the bug scanner, suppresses already-fixed locations, and falls
// back to synthesizing bugs from parsed test errors so a red suite always
// yields a fix target.
func (h *Healer) scan(ctx context.Context, sess *schemas.Session, repoDir string, result schemas.TestResult) []schemas.Bug {
	found, err := h.deps.Scanner.Scan(ctx, schemas.ScanInput{
		RepoDir:    repoDir,
		Errors:     result.Errors,
		TestOutput: result.FullOutput,
		KnownBugs:  sess.Bugs,
	})
	if err != nil {
		h.logger.Warn("Bug scan failed; synthesizing from parsed errors.",
			zap.String("session_id", sess.ID), zap.Error(err))
		found = nil
	}

	found = h.filterFixedLocations(sess, found)
	if len(found) == 0 && len(sess.UnresolvedBugs()) == 0 {
		found = h.filterFixedLocations(sess, synthesizeBugs(result.Errors))
	}
	return found
}

// filterFixedLocations drops candidate bugs at locations the session has
// already fixed, so the loop never re-fixes the same (file, line).
func (h *Healer) filterFixedLocations(sess *schemas.Session, candidates []schemas.Bug) []schemas.Bug {
	fixed := map[string]bool{}
	for _, b := range sess.Bugs {
		if b.Fixed {
			fixed[locationKey(b.FilePath, b.Line)] = true
		}
	}
	var out []schemas.Bug
	for _, c := range candidates {
		if !fixed[locationKey(c.FilePath, c.Line)] {
			out = append(out, c)
		}
	}
	return out
}

// mergeBugs appends candidates not already present by (file, line) and
// returns the ones that were actually new.
func (h *Healer) mergeBugs(sess *schemas.Session, candidates []schemas.Bug) []schemas.Bug {
	known := map[string]bool{}
	for _, b := range sess.Bugs {
		known[locationKey(b.FilePath, b.Line)] = true
	}
	var added []schemas.Bug
	for _, c := range candidates {
		key := locationKey(c.FilePath, c.Line)
		if known[key] {
			continue
		}
		known[key] = true
		sess.Bugs = append(sess.Bugs, c)
		added = append(added, c)
	}
	return added
}

// synthesizeBugs promotes parsed test errors to bug records when the scanner
// yields nothing actionable but the suite is red.
func synthesizeBugs(errs []schemas.ParsedError) []schemas.Bug {
	seen := map[string]bool{}
	var bugs []schemas.Bug
	for _, e := range errs {
		if e.File == "" {
			continue
		}
		key := locationKey(e.File, e.Line)
		if seen[key] {
			continue
		}
		seen[key] = true
		bugs = append(bugs, schemas.Bug{
			ID:       uuid.NewString(),
			Category: e.Category,
			FilePath: e.File,
			Line:     e.Line,
			Message:  e.Message,
			Severity: "medium",
		})
	}
	return bugs
}

func locationKey(file string, line int) string {
	return fmt.Sprintf("%s:%d", file, line)
}

// fix invokes the fix engineer on the unresolved set and marks applied bugs
// fixed with the current attempt stamp.
func (h *Healer) fix(ctx context.Context, sess *schemas.Session, repoDir string, bugs []schemas.Bug, result schemas.TestResult, attempt int) *schemas.FixReport {
	report, err := h.deps.Fixer.Fix(ctx, schemas.FixInput{
		RepoDir:    repoDir,
		Bugs:       bugs,
		TestOutput: result.FullOutput,
	})
	if err != nil {
		h.logger.Warn("Fix step failed.", zap.String("session_id", sess.ID), zap.Error(err))
		return &schemas.FixReport{}
	}

	applied := map[string]bool{}
	for _, f := range report.Fixes {
		if f.Applied {
			applied[f.BugID] = true
			h.deps.Emitter.Publish(schemas.NewEvent(sess.ID, schemas.EventFixApplied, schemas.FixAppliedPayload{
				File: f.FilePath, Description: f.Description, BugID: f.BugID,
			}))
		}
	}
	for i := range sess.Bugs {
		if applied[sess.Bugs[i].ID] && !sess.Bugs[i].Fixed {
			sess.Bugs[i].Fixed = true
			sess.Bugs[i].FixedAtAttempt = attempt
		}
	}
	return report
}

// attestFixes records an audit entry per applied fix. Best effort only.
// preFix is the test run that triggered this fix round; the post-fix run
// has not happened yet, so TestAfterPassed stays false and the verified
// outcome lives in the session record.
func (h *Healer) attestFixes(ctx context.Context, sess *schemas.Session, report *schemas.FixReport, commitSHA string, preFix schemas.TestResult) {
	if h.deps.Attest == nil {
		return
	}
	byID := map[string]schemas.Bug{}
	for _, b := range sess.Bugs {
		byID[b.ID] = b
	}
	for _, f := range report.Fixes {
		if !f.Applied {
			continue
		}
		bug := byID[f.BugID]
		h.deps.Attest.RecordFix(ctx, schemas.FixAttestation{
			SessionID:        sess.ID,
			BugCategory:      string(bug.Category),
			FilePath:         f.FilePath,
			Line:             bug.Line,
			ErrorMessage:     bug.Message,
			FixDescription:   f.Description,
			TestBeforePassed: preFix.Passed,
			CommitSHA:        commitSHA,
		})
	}
}

// succeed finalizes a session whose tests pass.
func (h *Healer) succeed(ctx context.Context, sess *schemas.Session, repoDir string, started time.Time) {
	h.finishWithScore(ctx, sess, repoDir, started, true, schemas.StatusCompleted, "")
}

// finishWithScore computes the score, optionally opens the PR, and persists
// the terminal state.
func (h *Healer) finishWithScore(ctx context.Context, sess *schemas.Session, repoDir string, started time.Time, openPR bool, status schemas.SessionStatus, errMsg string) {
	elapsed := time.Since(started).Seconds()

	commits := 0
	if n, err := h.deps.Git.CommitCount(repoDir, sess.Branch); err == nil {
		commits = n
	} else {
		h.logger.Warn("Commit count failed.", zap.String("session_id", sess.ID), zap.Error(err))
	}

	score := ComputeScore(ScoreInput{
		TotalBugs:      len(sess.Bugs),
		BugsFixed:      sess.FixedBugCount(),
		TestsPassed:    status == schemas.StatusCompleted,
		AttemptsUsed:   max(sess.Attempt, 1),
		TotalCommits:   commits,
		ElapsedSeconds: elapsed,
	})
	sess.Score = &score
	h.deps.Emitter.Publish(schemas.NewEvent(sess.ID, schemas.EventScore, score))

	if openPR {
		h.openPullRequest(ctx, sess, repoDir)
	}
	h.finalize(ctx, sess, status, errMsg)
}

// openPullRequest opens (or resolves) the healing PR. Failures leave the PR
// fields empty; the session still finalizes.
func (h *Healer) openPullRequest(ctx context.Context, sess *schemas.Session, repoDir string) {
	headOwner := sess.ForkOwner
	if headOwner == "" {
		headOwner = sess.Owner
	}

	fixed := sess.FixedBugCount()
	title := fmt.Sprintf("[AI-AGENT] Automated fixes for %s/%s", sess.Owner, sess.Repo)
	body := fmt.Sprintf(
		"Automated healing run `%s`.\n\n- Bugs detected: %d\n- Bugs fixed: %d\n- Attempts used: %d\n- Score: %d/100\n",
		sess.ID, len(sess.Bugs), fixed, max(sess.Attempt, 1), sess.Score.Final)

	pr := h.deps.Host.CreatePullRequest(ctx, schemas.PullRequestInput{
		BaseOwner:  sess.Owner,
		BaseRepo:   sess.Repo,
		BaseBranch: h.deps.Git.DefaultBranch(repoDir),
		HeadOwner:  headOwner,
		Branch:     sess.Branch,
		Title:      title,
		Body:       body,
	})
	if !pr.Success {
		h.logger.Warn("Pull request creation failed.",
			zap.String("session_id", sess.ID), zap.String("error", pr.Error))
		h.emitLog(sess, "Pull request creation failed: "+pr.Error)
		return
	}
	sess.PRURL = pr.URL
	sess.PRNumber = pr.Number
}

// finalize writes the terminal state and emits the closing events.
func (h *Healer) finalize(ctx context.Context, sess *schemas.Session, status schemas.SessionStatus, errMsg string) {
	if sess.Status.Terminal() {
		return
	}
	done := time.Now().UTC()
	sess.Status = status
	sess.Error = errMsg
	sess.CompletedAt = &done
	h.persist(ctx, sess)

	if errMsg != "" {
		h.deps.Emitter.Publish(schemas.NewEvent(sess.ID, schemas.EventError, schemas.ErrorPayload{Message: errMsg}))
	}
	h.deps.Emitter.Publish(schemas.NewEvent(sess.ID, schemas.EventStatus, schemas.StatusPayload{
		Phase: status, Message: "Session finished",
	}))
}

// recordAttempt appends an immutable attempt record and persists.
func (h *Healer) recordAttempt(ctx context.Context, sess *schemas.Session, number int, status schemas.AttemptStatus, result schemas.TestResult, bugsFound, bugsFixed int, sha, commitMsg string, start time.Time) {
	duration := time.Since(start).Milliseconds()
	sess.Attempts = append(sess.Attempts, schemas.Attempt{
		Number:        number,
		Status:        status,
		TestOutput:    truncateOutput(result.FullOutput),
		BugsFound:     bugsFound,
		BugsFixed:     bugsFixed,
		CommitSHA:     sha,
		CommitMessage: commitMsg,
		DurationMs:    duration,
		Timestamp:     time.Now().UTC(),
	})
	h.persist(ctx, sess)

	h.deps.Emitter.Publish(schemas.NewEvent(sess.ID, schemas.EventAttemptComplete, schemas.AttemptCompletePayload{
		Attempt: number, Status: status, BugsFound: bugsFound, BugsFixed: bugsFixed, DurationMs: duration,
	}))
}

func (h *Healer) setStatus(ctx context.Context, sess *schemas.Session, status schemas.SessionStatus, message string) {
	sess.Status = status
	h.persist(ctx, sess)
	h.deps.Emitter.Publish(schemas.NewEvent(sess.ID, schemas.EventStatus, schemas.StatusPayload{
		Phase: status, Message: message,
	}))
}

func (h *Healer) persist(ctx context.Context, sess *schemas.Session) {
	if err := h.deps.Store.Update(ctx, sess); err != nil && !errors.Is(err, context.Canceled) {
		h.logger.Warn("Session persist failed.", zap.String("session_id", sess.ID), zap.Error(err))
	}
}

func (h *Healer) emitLog(sess *schemas.Session, text string) {
	h.deps.Emitter.Publish(schemas.NewEvent(sess.ID, schemas.EventLog, schemas.LogPayload{Text: text}))
}

func (h *Healer) emitTestResult(sess *schemas.Session, result schemas.TestResult, attempt int) {
	h.deps.Emitter.Publish(schemas.NewEvent(sess.ID, schemas.EventTestResult, schemas.TestResultPayload{
		Passed:     result.Passed,
		Output:     truncateOutput(result.FullOutput),
		ErrorCount: len(result.Errors),
		Attempt:    attempt,
	}))
}

const maxStoredOutput = 16 * 1024

func truncateOutput(s string) string {
	if len(s) <= maxStoredOutput {
		return s
	}
	return s[:maxStoredOutput] + "\n... (truncated)"
}
