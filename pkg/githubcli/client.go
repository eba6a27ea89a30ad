package githubcli

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/ca-risken/common/pkg/logging"
	"github.com/cenkalti/backoff/v4"
	git "github.com/go-git/go-git/v5"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/google/go-github/v44/github"
	"golang.org/x/oauth2"

	"github.com/fixit-ai/fixit/pkg/model"
)

const RETRY_NUM uint64 = 3

// CandidateFile is one prioritized file with pre-fetched content.
type CandidateFile struct {
	Path    string
	Content string
}

// PullRequestResult identifies a pull request opened for a verified fix.
type PullRequestResult struct {
	Number     int
	URL        string
	BranchName string
}

// GithubServiceClient is the GitHub capability surface consumed by the
// analysis runner (candidate files) and the verification orchestrator
// (branch/commit/PR pipeline).
type GithubServiceClient interface {
	FetchCandidateFiles(ctx context.Context, repo *model.Repository, maxFiles int) ([]*CandidateFile, error)
	CreateFixBranch(ctx context.Context, repo *model.Repository, task *model.Task) (string, error)
	CommitFixAndTest(ctx context.Context, repo *model.Repository, task *model.Task, branchName string) (string, error)
	OpenPullRequest(ctx context.Context, repo *model.Repository, task *model.Task, branchName string) (*PullRequestResult, error)
}

type Config struct {
	Token      string
	BaseURL    string // Default: "https://api.github.com/"
	FetchMode  string // "api" (contents API) or "clone" (go-git worktree walk)
	FilterPath string // optional viper config overriding file filter rules
}

type githubClient struct {
	conf    Config
	filter  *fileFilter
	retryer backoff.BackOff
	logger  logging.Logger
}

func NewGithubClient(conf *Config, l logging.Logger) (*githubClient, error) {
	filter, err := loadFileFilter(conf.FilterPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load file filter config: %w", err)
	}
	return &githubClient{
		conf:    *conf,
		filter:  filter,
		retryer: backoff.WithMaxRetries(backoff.NewExponentialBackOff(), RETRY_NUM),
		logger:  l,
	}, nil
}

func (g *githubClient) newV3Client(ctx context.Context) (*github.Client, error) {
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: g.conf.Token},
	))
	client := github.NewClient(httpClient)
	if g.conf.BaseURL != "" {
		u, err := url.Parse(g.conf.BaseURL)
		if err != nil {
			return nil, err
		}
		client.BaseURL = u
	}
	return client, nil
}

func (g *githubClient) clone(ctx context.Context, cloneURL, dstDir string) error {
	operation := func() error {
		_, err := git.PlainCloneContext(ctx, dstDir, false, &git.CloneOptions{
			URL:   cloneURL,
			Depth: 1,
			Auth: &githttp.BasicAuth{
				Username: "dummy", // anything except an empty string
				Password: g.conf.Token,
			},
		})
		return err
	}

	if err := backoff.RetryNotify(operation, g.retryer, g.newRetryLogger(ctx, "github clone")); err != nil {
		return fmt.Errorf("failed to clone %s to %s: %w", cloneURL, dstDir, err)
	}

	return nil
}

func (g *githubClient) newRetryLogger(ctx context.Context, funcName string) func(error, time.Duration) {
	return func(err error, ti time.Duration) {
		g.logger.Warnf(ctx, "[RetryLogger] %s error: duration=%+v, err=%+v", funcName, ti, err)
	}
}
