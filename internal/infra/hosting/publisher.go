// Package hosting publishes generated applications to GitHub repositories
// served by GitHub Pages.
package hosting

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-github/v66/github"

	"github.com/Amit95688/TDS/internal/delivery/server/ports"
	"github.com/Amit95688/TDS/internal/shared/logging"
)

// Config configures a Publisher.
type Config struct {
	Token    string
	Username string
	// APIBaseURL overrides https://api.github.com/ (enterprise hosts, tests).
	APIBaseURL    string
	Branch        string
	PagesDomain   string
	HTTPClient    *http.Client
	MaxAttempts   int
	RetryBackoff  time.Duration
	LicenseHolder string
}

// Publisher implements ports.Publisher with the GitHub REST API.
type Publisher struct {
	client       *github.Client
	owner        string
	branch       string
	pagesDomain  string
	licenseOwner string
	maxAttempts  int
	retryBackoff time.Duration
	now          func() time.Time
	logger       logging.Logger
}

var _ ports.Publisher = (*Publisher)(nil)

// NewPublisher builds an authenticated client for cfg.Username.
func NewPublisher(cfg Config) (*Publisher, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("github token is required")
	}
	if strings.TrimSpace(cfg.Username) == "" {
		return nil, fmt.Errorf("github username is required")
	}

	client := github.NewClient(cfg.HTTPClient).WithAuthToken(cfg.Token)
	if base := strings.TrimSpace(cfg.APIBaseURL); base != "" {
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		parsed, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parse github api url: %w", err)
		}
		client.BaseURL = parsed
	}

	p := &Publisher{
		client:       client,
		owner:        cfg.Username,
		branch:       cfg.Branch,
		pagesDomain:  cfg.PagesDomain,
		licenseOwner: cfg.LicenseHolder,
		maxAttempts:  cfg.MaxAttempts,
		retryBackoff: cfg.RetryBackoff,
		now:          time.Now,
		logger:       logging.NewComponentLogger("GitHubPublisher"),
	}
	if p.branch == "" {
		p.branch = "main"
	}
	if p.pagesDomain == "" {
		p.pagesDomain = "github.io"
	}
	if p.licenseOwner == "" {
		p.licenseOwner = p.owner
	}
	if p.maxAttempts < 1 {
		p.maxAttempts = 3
	}
	if p.retryBackoff <= 0 {
		p.retryBackoff = time.Second
	}
	return p, nil
}

// RepoURL returns the browser URL of repo.
func (p *Publisher) RepoURL(repo string) string {
	return fmt.Sprintf("https://github.com/%s/%s", p.owner, repo)
}

// PagesURL returns the GitHub Pages URL of repo.
func (p *Publisher) PagesURL(repo string) string {
	return fmt.Sprintf("https://%s.%s/%s/", strings.ToLower(p.owner), p.pagesDomain, repo)
}

// CreateAndPublish creates the repository, commits the generated files and
// enables Pages. An existing repository with the same name is reused.
// index.html is committed last so the returned SHA is the branch head.
func (p *Publisher) CreateAndPublish(ctx context.Context, req ports.PublishRequest) (ports.Artifact, error) {
	logger := logging.FromContext(ctx, p.logger)
	repo := req.RepoName

	if err := p.createRepo(ctx, repo); err != nil {
		return ports.Artifact{}, err
	}

	files := make([]ports.File, 0, len(req.Files)+3)
	files = append(files, ports.File{Path: "README.md", Content: []byte(req.Readme)})
	files = append(files, ports.File{Path: "LICENSE", Content: []byte(mitLicense(p.now().Year(), p.licenseOwner))})
	files = append(files, req.Files...)
	files = append(files, ports.File{Path: "index.html", Content: []byte(req.Source)})

	var commitSHA string
	for _, file := range files {
		sha, err := p.putFile(ctx, repo, file.Path, file.Content, "Add "+file.Path)
		if err != nil {
			return ports.Artifact{}, err
		}
		commitSHA = sha
	}

	if err := p.enablePages(ctx, repo); err != nil {
		return ports.Artifact{}, err
	}

	logger.Info("[GitHubPublisher] published %s/%s at %s (%d files)", p.owner, repo, shortSHA(commitSHA), len(files))
	return ports.Artifact{
		RepoURL:   p.RepoURL(repo),
		CommitSHA: commitSHA,
		PagesURL:  p.PagesURL(repo),
	}, nil
}

// RepoExists returns ports.ErrRepoNotFound when repo is absent.
func (p *Publisher) RepoExists(ctx context.Context, repo string) error {
	return p.retry(ctx, "get repo", func() (*github.Response, error) {
		_, resp, err := p.client.Repositories.Get(ctx, p.owner, repo)
		if isNotFound(resp, err) {
			return resp, backoff.Permanent(fmt.Errorf("%s/%s: %w", p.owner, repo, ports.ErrRepoNotFound))
		}
		return resp, err
	})
}

// GetFile returns the decoded content of path on the default branch.
func (p *Publisher) GetFile(ctx context.Context, repo, path string) (string, error) {
	file, err := p.getContents(ctx, repo, path)
	if err != nil {
		return "", err
	}
	content, err := file.GetContent()
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", path, err)
	}
	return content, nil
}

// ReplaceFile creates or updates path and returns the commit SHA.
func (p *Publisher) ReplaceFile(ctx context.Context, repo, path, content, message string) (string, error) {
	return p.putFile(ctx, repo, path, []byte(content), message)
}

// LatestCommitSHA returns the head of the default branch.
func (p *Publisher) LatestCommitSHA(ctx context.Context, repo string) (string, error) {
	var sha string
	err := p.retry(ctx, "list commits", func() (*github.Response, error) {
		commits, resp, err := p.client.Repositories.ListCommits(ctx, p.owner, repo, &github.CommitsListOptions{
			SHA:         p.branch,
			ListOptions: github.ListOptions{PerPage: 1},
		})
		if isNotFound(resp, err) {
			return resp, backoff.Permanent(fmt.Errorf("%s/%s: %w", p.owner, repo, ports.ErrRepoNotFound))
		}
		if err != nil {
			return resp, err
		}
		if len(commits) == 0 {
			return resp, backoff.Permanent(fmt.Errorf("%s/%s has no commits", p.owner, repo))
		}
		sha = commits[0].GetSHA()
		return resp, nil
	})
	return sha, err
}

func (p *Publisher) createRepo(ctx context.Context, repo string) error {
	logger := logging.FromContext(ctx, p.logger)
	return p.retry(ctx, "create repo", func() (*github.Response, error) {
		_, resp, err := p.client.Repositories.Create(ctx, "", &github.Repository{
			Name:        github.String(repo),
			Description: github.String("Generated application for task " + repo),
			Private:     github.Bool(false),
			HasIssues:   github.Bool(false),
			HasWiki:     github.Bool(false),
		})
		if alreadyExists(resp, err) {
			logger.Warn("[GitHubPublisher] repository %s/%s already exists; reusing it", p.owner, repo)
			return resp, nil
		}
		return resp, err
	})
}

func (p *Publisher) getContents(ctx context.Context, repo, path string) (*github.RepositoryContent, error) {
	var file *github.RepositoryContent
	err := p.retry(ctx, "get "+path, func() (*github.Response, error) {
		fc, _, resp, err := p.client.Repositories.GetContents(ctx, p.owner, repo, path, &github.RepositoryContentGetOptions{Ref: p.branch})
		if isNotFound(resp, err) {
			return resp, backoff.Permanent(fmt.Errorf("%s in %s/%s: %w", path, p.owner, repo, ports.ErrFileNotFound))
		}
		if err != nil {
			return resp, err
		}
		if fc == nil {
			return resp, backoff.Permanent(fmt.Errorf("%s is a directory: %w", path, ports.ErrFileNotFound))
		}
		file = fc
		return resp, nil
	})
	return file, err
}

func (p *Publisher) putFile(ctx context.Context, repo, path string, content []byte, message string) (string, error) {
	opts := &github.RepositoryContentFileOptions{
		Message: github.String(message),
		Content: content,
		Branch:  github.String(p.branch),
	}
	existing, err := p.getContents(ctx, repo, path)
	switch {
	case err == nil:
		opts.SHA = existing.SHA
	case errors.Is(err, ports.ErrFileNotFound):
	default:
		return "", err
	}

	var sha string
	err = p.retry(ctx, "put "+path, func() (*github.Response, error) {
		var (
			res  *github.RepositoryContentResponse
			resp *github.Response
			err  error
		)
		if opts.SHA != nil {
			res, resp, err = p.client.Repositories.UpdateFile(ctx, p.owner, repo, path, opts)
		} else {
			res, resp, err = p.client.Repositories.CreateFile(ctx, p.owner, repo, path, opts)
		}
		if isNotFound(resp, err) {
			return resp, backoff.Permanent(fmt.Errorf("%s/%s: %w", p.owner, repo, ports.ErrRepoNotFound))
		}
		if err != nil {
			return resp, err
		}
		sha = res.Commit.GetSHA()
		return resp, nil
	})
	return sha, err
}

func (p *Publisher) enablePages(ctx context.Context, repo string) error {
	return p.retry(ctx, "enable pages", func() (*github.Response, error) {
		_, resp, err := p.client.Repositories.EnablePages(ctx, p.owner, repo, &github.Pages{
			BuildType: github.String("legacy"),
			Source: &github.PagesSource{
				Branch: github.String(p.branch),
				Path:   github.String("/"),
			},
		})
		if resp != nil && resp.StatusCode == http.StatusConflict {
			return resp, nil
		}
		return resp, err
	})
}

// retry runs fn with exponential backoff. Server errors, rate limits and
// transport failures are retried; other API errors are returned at once.
func (p *Publisher) retry(ctx context.Context, op string, fn func() (*github.Response, error)) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.retryBackoff
	policy.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(p.maxAttempts-1)), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		resp, err := fn()
		if err == nil || !retryable(resp, err) {
			if err != nil {
				var permanent *backoff.PermanentError
				if !errors.As(err, &permanent) {
					return backoff.Permanent(err)
				}
			}
			return err
		}
		p.logger.Warn("[GitHubPublisher] %s attempt %d failed: %v", op, attempt, err)
		return err
	}, b)
	if err != nil {
		return fmt.Errorf("github %s: %w", op, err)
	}
	return nil
}

func retryable(resp *github.Response, err error) bool {
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return false
	}
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return true
	}
	if resp == nil {
		return !errors.Is(err, context.Canceled)
	}
	return resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests
}

func isNotFound(resp *github.Response, err error) bool {
	if err == nil {
		return false
	}
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return true
	}
	var ghErr *github.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
}

func alreadyExists(resp *github.Response, err error) bool {
	if err == nil || resp == nil || resp.StatusCode != http.StatusUnprocessableEntity {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "already exists")
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
