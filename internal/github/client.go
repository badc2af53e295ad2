// internal/github/client.go
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	custom_errors "scm-project-sync/internal/errors"
	"scm-project-sync/internal/model"
)

const (
	// maxRetries is the number of attempts made for a single lookup.
	maxRetries = 3
	// maxRateLimitWait caps how long a lookup waits for a rate limit reset.
	maxRateLimitWait = 2 * time.Minute
)

// Client is a wrapper around the go-github client.
type Client struct {
	gh            *github.Client
	token         string
	logger        *slog.Logger
	retryInterval time.Duration
}

// NewClient creates and configures a new Client instance.
// The provided token is used to create an authenticated http.Client. A host
// other than github.com points the client at a GitHub Enterprise instance.
func NewClient(token, host string, logger *slog.Logger) (*Client, error) {
	var hc *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		hc = oauth2.NewClient(context.Background(), ts)
	}

	gh := github.NewClient(hc)
	if base := enterpriseBaseURL(host); base != "" {
		var err error
		gh, err = gh.WithEnterpriseURLs(base, base)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub host %q: %w", host, err)
		}
	}

	return &Client{
		gh:            gh,
		token:         token,
		logger:        logger,
		retryInterval: 500 * time.Millisecond,
	}, nil
}

// RepoMetaData fetches the default branch, clone urls and archived flag of
// the repository named by target.
func (c *Client) RepoMetaData(ctx context.Context, target model.Target) (model.RepoMetaData, error) {
	if target.Owner == "" || target.Name == "" {
		return model.RepoMetaData{}, &custom_errors.ErrInvalidRepoFormat{Repo: target.FullName()}
	}

	repo, err := c.getRepository(ctx, target.Owner, target.Name)
	if err != nil {
		return model.RepoMetaData{}, fmt.Errorf("failed to get metadata for %s: %w", target.FullName(), err)
	}
	return toRepoMetaData(repo, c.token), nil
}

func (c *Client) getRepository(ctx context.Context, owner, name string) (*github.Repository, error) {
	var repo *github.Repository
	op := func() error {
		r, _, err := c.gh.Repositories.Get(ctx, owner, name)
		if err == nil {
			repo = r
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}

		var rateErr *github.RateLimitError
		if errors.As(err, &rateErr) {
			return c.waitForReset(ctx, time.Until(rateErr.Rate.Reset.Time), err)
		}
		var abuseErr *github.AbuseRateLimitError
		if errors.As(err, &abuseErr) && abuseErr.RetryAfter != nil {
			return c.waitForReset(ctx, *abuseErr.RetryAfter, err)
		}
		var respErr *github.ErrorResponse
		if errors.As(err, &respErr) && respErr.Response != nil && respErr.Response.StatusCode < http.StatusInternalServerError {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryInterval
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("Retrying GitHub request", "owner", owner, "repo", name, "wait", wait, "error", err)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(policy, maxRetries-1), ctx), notify); err != nil {
		return nil, err
	}
	return repo, nil
}

// waitForReset sleeps until a rate limit window reopens and returns err so
// the caller retries.
func (c *Client) waitForReset(ctx context.Context, wait time.Duration, err error) error {
	if wait > maxRateLimitWait {
		return backoff.Permanent(err)
	}
	if wait <= 0 {
		return err
	}
	c.logger.Info("GitHub rate limit hit, waiting for reset", "wait", wait)
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return backoff.Permanent(ctx.Err())
	case <-t.C:
		return err
	}
}

// toRepoMetaData translates a github.Repository object to our internal model.RepoMetaData.
func toRepoMetaData(r *github.Repository, token string) model.RepoMetaData {
	return model.RepoMetaData{
		Branch:   r.GetDefaultBranch(),
		CloneURL: r.GetCloneURL(),
		SSHURL:   r.GetSSHURL(),
		Archived: r.GetArchived(),
		Token:    token,
	}
}

func enterpriseBaseURL(host string) string {
	host = strings.TrimSpace(host)
	if host == "" || host == "github.com" || host == "https://github.com" || host == "api.github.com" {
		return ""
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	return strings.TrimRight(host, "/") + "/"
}
