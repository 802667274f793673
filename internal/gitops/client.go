// File: internal/gitops/client.go
// Description: Shell-backed git operations inside a session sandbox, with
// go-git for read-only introspection of the resulting clone.
package gitops

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"

	"github.com/xkilldash9x/mendbot/api/schemas"
	"github.com/xkilldash9x/mendbot/internal/config"
	"github.com/xkilldash9x/mendbot/internal/sandbox"
)

// CommitPrefix is prepended to every automated commit message.
const CommitPrefix = "[AI-AGENT] "

const gitTimeout = 90 * time.Second

// Client performs git operations against sandboxed clones. Mutating
// operations go through the process executor so they share its timeout and
// capture semantics; introspection reads the repository directly.
type Client struct {
	exec   *sandbox.Executor
	logger *zap.Logger
	cfg    config.GitHubConfig
}

// NewClient creates a git client authenticated as the automation account.
func NewClient(exec *sandbox.Executor, cfg config.GitHubConfig, logger *zap.Logger) *Client {
	return &Client{
		exec:   exec,
		logger: logger.Named("gitops"),
		cfg:    cfg,
	}
}

// authenticatedURL embeds the bot token so later pushes are authenticated.
func (c *Client) authenticatedURL(owner, repo string) string {
	if c.cfg.Token == "" {
		return fmt.Sprintf("https://github.com/%s/%s.git", owner, repo)
	}
	user := c.cfg.BotUser
	if user == "" {
		user = "x-access-token"
	}
	return fmt.Sprintf("https://%s:%s@github.com/%s/%s.git", user, c.cfg.Token, owner, repo)
}

// Clone shallow-clones in.Owner/in.Repo into in.Dir and adds the upstream
// repository as a secondary remote for reference. The directory must exist
// and be empty.
func (c *Client) Clone(ctx context.Context, in schemas.CloneInput) (string, error) {
	c.logger.Info("Cloning repository.",
		zap.String("owner", in.Owner),
		zap.String("repo", in.Repo),
		zap.String("dir", in.Dir))

	res, err := c.exec.Run(ctx, filepath.Dir(in.Dir), gitTimeout, nil,
		"git", "clone", "--depth", "1", c.authenticatedURL(in.Owner, in.Repo), in.Dir)
	if err != nil {
		return "", fmt.Errorf("%w: %s", schemas.ErrCloneFailed, err)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("%w: git exited %d: %s", schemas.ErrCloneFailed, res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	if in.UpstreamOwner != "" && (in.UpstreamOwner != in.Owner || in.UpstreamRepo != in.Repo) {
		upstream := fmt.Sprintf("https://github.com/%s/%s.git", in.UpstreamOwner, in.UpstreamRepo)
		if res, err := c.exec.Run(ctx, in.Dir, gitTimeout, nil, "git", "remote", "add", "upstream", upstream); err != nil || res.ExitCode != 0 {
			c.logger.Warn("Could not add upstream remote.", zap.String("upstream", upstream), zap.Error(err))
		}
	}

	if err := c.configureIdentity(ctx, in.Dir); err != nil {
		c.logger.Warn("Could not set committer identity.", zap.Error(err))
	}
	return in.Dir, nil
}

func (c *Client) configureIdentity(ctx context.Context, repoDir string) error {
	name := c.cfg.AuthorName
	if name == "" {
		name = "mendbot"
	}
	email := c.cfg.AuthorEmail
	if email == "" {
		email = "mendbot@users.noreply.github.com"
	}
	if res, err := c.exec.Run(ctx, repoDir, gitTimeout, nil, "git", "config", "user.name", name); err != nil || res.ExitCode != 0 {
		return fmt.Errorf("git config user.name failed: %v", err)
	}
	if res, err := c.exec.Run(ctx, repoDir, gitTimeout, nil, "git", "config", "user.email", email); err != nil || res.ExitCode != 0 {
		return fmt.Errorf("git config user.email failed: %v", err)
	}
	return nil
}

// CreateBranch checks out the healing branch. An existing remote branch of
// the same name is fetched and resumed, so retrying a session with the same
// logical name continues where it left off; otherwise a fresh local branch
// is created.
func (c *Client) CreateBranch(ctx context.Context, repoDir, branch string) error {
	fetch, err := c.exec.Run(ctx, repoDir, gitTimeout, nil, "git", "fetch", "origin", branch)
	if err == nil && fetch.ExitCode == 0 {
		co, err := c.exec.Run(ctx, repoDir, gitTimeout, nil, "git", "checkout", branch)
		if err == nil && co.ExitCode == 0 {
			c.logger.Info("Resumed existing remote branch.", zap.String("branch", branch))
			return nil
		}
	}

	res, err := c.exec.Run(ctx, repoDir, gitTimeout, nil, "git", "checkout", "-b", branch)
	if err != nil {
		return fmt.Errorf("checkout -b %s: %w", branch, err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("checkout -b %s exited %d: %s", branch, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	c.logger.Info("Created healing branch.", zap.String("branch", branch))
	return nil
}

// Commit stages all changes and commits with the automation prefix. When the
// working tree is clean it returns "" and no error; an empty commit is never
// created.
func (c *Client) Commit(ctx context.Context, repoDir, message string) (string, error) {
	if res, err := c.exec.Run(ctx, repoDir, gitTimeout, nil, "git", "add", "-A"); err != nil || res.ExitCode != 0 {
		return "", fmt.Errorf("git add failed: %v: %s", err, strings.TrimSpace(res.Stderr))
	}

	status, err := c.exec.Run(ctx, repoDir, gitTimeout, nil, "git", "status", "--porcelain")
	if err != nil {
		return "", fmt.Errorf("git status failed: %w", err)
	}
	if strings.TrimSpace(status.Stdout) == "" {
		return "", nil
	}

	res, err := c.exec.Run(ctx, repoDir, gitTimeout, nil, "git", "commit", "-m", CommitPrefix+message)
	if err != nil {
		return "", fmt.Errorf("git commit failed: %w", err)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("git commit exited %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	sha, err := c.HeadSHA(repoDir)
	if err != nil {
		return "", fmt.Errorf("could not resolve new commit: %w", err)
	}
	c.logger.Info("Committed changes.", zap.String("sha", sha))
	return sha, nil
}

// Push force-pushes the branch to origin. Failures wrap ErrPushFailed so the
// orchestrator can log and continue the attempt.
func (c *Client) Push(ctx context.Context, repoDir, branch string) error {
	res, err := c.exec.Run(ctx, repoDir, gitTimeout, nil, "git", "push", "--force", "origin", branch)
	if err != nil {
		return fmt.Errorf("%w: %s", schemas.ErrPushFailed, err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("%w: git exited %d: %s", schemas.ErrPushFailed, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return nil
}

// HeadSHA returns the current HEAD commit hash.
func (c *Client) HeadSHA(repoDir string) (string, error) {
	repo, err := git.PlainOpen(repoDir)
	if err != nil {
		return "", err
	}
	head, err := repo.Head()
	if err != nil {
		return "", err
	}
	return head.Hash().String(), nil
}

// CommitCount counts commits reachable from the branch head. Shallow clones
// naturally bound the walk to the fetched history.
func (c *Client) CommitCount(repoDir, branch string) (int, error) {
	repo, err := git.PlainOpen(repoDir)
	if err != nil {
		return 0, err
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		// The branch may only exist as HEAD in a detached or fresh clone.
		ref, err = repo.Head()
		if err != nil {
			return 0, err
		}
	}
	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	count := 0
	// Shallow boundaries surface as missing-parent errors mid-walk; the
	// commits counted so far are still meaningful.
	_ = iter.ForEach(func(*object.Commit) error { count++; return nil })
	return count, nil
}

// DefaultBranch resolves origin's default branch, with conservative
// fallbacks of main then master when the symbolic ref is absent.
func (c *Client) DefaultBranch(repoDir string) string {
	repo, err := git.PlainOpen(repoDir)
	if err != nil {
		return "main"
	}

	if ref, err := repo.Reference(plumbing.ReferenceName("refs/remotes/origin/HEAD"), false); err == nil {
		target := ref.Target().String()
		if name, ok := strings.CutPrefix(target, "refs/remotes/origin/"); ok && name != "" {
			return name
		}
	}

	for _, candidate := range []string{"main", "master"} {
		if _, err := repo.Reference(plumbing.ReferenceName("refs/remotes/origin/"+candidate), true); err == nil {
			return candidate
		}
	}
	return "main"
}
