// File: internal/hosting/github.go
// Description: go-github backed implementation of schemas.RepoHost. All
// outcomes are narrowed into result records; the orchestrator never sees
// transport-level detail.
package hosting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-github/v58/github"
	"go.uber.org/zap"

	"github.com/xkilldash9x/mendbot/api/schemas"
	"github.com/xkilldash9x/mendbot/internal/config"
)

// Forks are created asynchronously by the provider, so Fork polls for the
// repository's existence before declaring success. Hitting the poll deadline
// is tolerated; the session proceeds optimistically.
const (
	forkPollInterval = 2 * time.Second
	forkPollTimeout  = 20 * time.Second
)

// Client talks to the GitHub API as the automation account.
type Client struct {
	gh      *github.Client
	logger  *zap.Logger
	botUser string
}

// NewClient builds the hosting client. APIBaseURL overrides the endpoint for
// tests and GitHub Enterprise deployments.
func NewClient(cfg config.GitHubConfig, logger *zap.Logger) (*Client, error) {
	gh := github.NewClient(nil)
	if cfg.Token != "" {
		gh = gh.WithAuthToken(cfg.Token)
	}
	if cfg.APIBaseURL != "" {
		base, err := url.Parse(strings.TrimSuffix(cfg.APIBaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid api_base_url: %w", err)
		}
		gh.BaseURL = base
	}
	return &Client{
		gh:      gh,
		logger:  logger.Named("hosting"),
		botUser: cfg.BotUser,
	}, nil
}

// botLogin resolves the automation account's login, preferring configuration
// over an API round trip.
func (c *Client) botLogin(ctx context.Context) string {
	if c.botUser != "" {
		return c.botUser
	}
	user, _, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		c.logger.Warn("Could not resolve authenticated user.", zap.Error(err))
		return ""
	}
	c.botUser = user.GetLogin()
	return c.botUser
}

// Fork requests a fork of owner/repo. A 403 means the token lacks fork
// scope: that is a policy outcome, reported through Success=false so the
// caller can fall back to cloning the original. Other failures retry under
// the shared bounded policy.
func (c *Client) Fork(ctx context.Context, owner, repo string) schemas.ForkResult {
	var fork *github.Repository

	err := withRetry(ctx, func() error {
		created, resp, err := c.gh.Repositories.CreateFork(ctx, owner, repo, &github.RepositoryCreateForkOptions{DefaultBranchOnly: false})
		if err == nil {
			fork = created
			return nil
		}

		// 202 Accepted: the fork is being created in the background. The
		// response body still describes the pending fork.
		var accepted *github.AcceptedError
		if errors.As(err, &accepted) {
			pending := new(github.Repository)
			if jsonErr := json.Unmarshal(accepted.Raw, pending); jsonErr == nil {
				fork = pending
			}
			return nil
		}

		if resp != nil && resp.StatusCode == http.StatusForbidden {
			return backoff.Permanent(fmt.Errorf("forbidden: token lacks fork permission for %s/%s", owner, repo))
		}
		if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return backoff.Permanent(fmt.Errorf("fork rejected (%d): %v", resp.StatusCode, err))
		}
		c.logger.Warn("Fork request failed, retrying.", zap.Error(err))
		return err
	})
	if err != nil {
		return schemas.ForkResult{Success: false, Error: err.Error()}
	}

	forkOwner := fork.GetOwner().GetLogin()
	if forkOwner == "" {
		forkOwner = c.botLogin(ctx)
	}
	forkRepo := fork.GetName()
	if forkRepo == "" {
		forkRepo = repo
	}

	c.awaitFork(ctx, forkOwner, forkRepo)

	return schemas.ForkResult{
		Owner:   forkOwner,
		Repo:    forkRepo,
		URL:     fmt.Sprintf("https://github.com/%s/%s", forkOwner, forkRepo),
		Success: true,
	}
}

// awaitFork polls until the fork is visible or the bounded wait expires.
// Expiry is logged and tolerated.
func (c *Client) awaitFork(ctx context.Context, owner, repo string) {
	deadline := time.Now().Add(forkPollTimeout)
	for time.Now().Before(deadline) {
		if _, _, err := c.gh.Repositories.Get(ctx, owner, repo); err == nil {
			c.logger.Info("Fork is ready.", zap.String("fork", owner+"/"+repo))
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(forkPollInterval):
		}
	}
	c.logger.Warn("Fork not visible within poll window, proceeding optimistically.",
		zap.String("fork", owner+"/"+repo))
}

// CreatePullRequest opens the healing PR into the upstream default branch.
// A 422 "already exists" resolves to the open PR for the same head rather
// than an error; transient failures retry under the shared policy.
func (c *Client) CreatePullRequest(ctx context.Context, in schemas.PullRequestInput) schemas.PullRequestResult {
	head := in.Branch
	if in.HeadOwner != "" && in.HeadOwner != in.BaseOwner {
		head = in.HeadOwner + ":" + in.Branch
	}

	var pr *github.PullRequest
	err := withRetry(ctx, func() error {
		created, resp, err := c.gh.PullRequests.Create(ctx, in.BaseOwner, in.BaseRepo, &github.NewPullRequest{
			Title:               github.String(in.Title),
			Head:                github.String(head),
			Base:                github.String(in.BaseBranch),
			Body:                github.String(in.Body),
			MaintainerCanModify: github.Bool(true),
		})
		if err == nil {
			pr = created
			return nil
		}

		if resp != nil && resp.StatusCode == http.StatusUnprocessableEntity && isAlreadyExists(err) {
			existing, findErr := c.findOpenPR(ctx, in.BaseOwner, in.BaseRepo, head)
			if findErr != nil {
				return backoff.Permanent(fmt.Errorf("pull request already exists but lookup failed: %w", findErr))
			}
			pr = existing
			return nil
		}
		if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return backoff.Permanent(fmt.Errorf("pull request rejected (%d): %v", resp.StatusCode, err))
		}
		c.logger.Warn("Pull request creation failed, retrying.", zap.Error(err))
		return err
	})
	if err != nil {
		return schemas.PullRequestResult{Success: false, Error: err.Error()}
	}
	if pr == nil {
		return schemas.PullRequestResult{Success: false, Error: "pull request could not be resolved"}
	}

	return schemas.PullRequestResult{
		Success: true,
		Number:  pr.GetNumber(),
		URL:     pr.GetHTMLURL(),
	}
}

// findOpenPR looks up the open pull request for a head ref.
func (c *Client) findOpenPR(ctx context.Context, owner, repo, head string) (*github.PullRequest, error) {
	prs, _, err := c.gh.PullRequests.List(ctx, owner, repo, &github.PullRequestListOptions{
		State: "open",
		Head:  head,
	})
	if err != nil {
		return nil, err
	}
	if len(prs) == 0 {
		return nil, fmt.Errorf("no open pull request found for head %s", head)
	}
	return prs[0], nil
}

func isAlreadyExists(err error) bool {
	var ghErr *github.ErrorResponse
	if !errors.As(err, &ghErr) {
		return false
	}
	if strings.Contains(strings.ToLower(ghErr.Message), "already exists") {
		return true
	}
	for _, e := range ghErr.Errors {
		if strings.Contains(strings.ToLower(e.Message), "already exists") {
			return true
		}
	}
	return false
}
