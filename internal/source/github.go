package source

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/prdraft/prdraft/internal/config"
	"github.com/prdraft/prdraft/internal/errors"
	"github.com/prdraft/prdraft/internal/models"
	"github.com/prdraft/prdraft/internal/storage"
)

// GitHubSource fetches commits through the GitHub API with rate limiting
// and bounded concurrency. Fetched commits land in the storage commit
// cache so repeated requests for the same SHAs skip the API entirely.
type GitHubSource struct {
	client     *github.Client
	limiter    *rate.Limiter
	store      storage.Store
	maxWorkers int
	cacheTTL   time.Duration
	logger     *logrus.Logger
}

// NewGitHubSource creates a GitHub-backed commit source.
func NewGitHubSource(cfg config.GitHubConfig, store storage.Store, logger *logrus.Logger) *GitHubSource {
	client := github.NewClient(nil)
	if cfg.Token != "" {
		client = client.WithAuthToken(cfg.Token)
	}

	rps := cfg.RateLimit
	if rps <= 0 {
		rps = 10
	}
	workers := cfg.MaxWorkers
	if workers <= 0 {
		workers = 8
	}
	ttl := cfg.CommitCacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	return &GitHubSource{
		client:     client,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		store:      store,
		maxWorkers: workers,
		cacheTTL:   ttl,
		logger:     logger,
	}
}

// Fetch resolves every requested SHA, serving from the commit cache where
// possible and hitting the API in parallel for the rest. Any SHA that
// cannot be resolved fails the whole fetch.
func (s *GitHubSource) Fetch(ctx context.Context, repoID string, shas []string) ([]*models.Commit, error) {
	owner, name, err := splitRepoID(repoID)
	if err != nil {
		return nil, err
	}

	bySHA := make(map[string]*models.Commit, len(shas))

	if s.store != nil {
		cached, err := s.store.GetCachedCommits(ctx, repoID, shas, s.cacheTTL)
		if err != nil {
			// A broken cache degrades to a full fetch.
			s.logger.WithError(err).Warn("Commit cache lookup failed")
		}
		for _, c := range cached {
			bySHA[c.SHA] = c
		}
	}

	var missing []string
	for _, sha := range shas {
		if _, ok := bySHA[sha]; !ok {
			missing = append(missing, sha)
		}
	}

	if len(missing) > 0 {
		fetched, err := s.fetchFromAPI(ctx, owner, name, missing)
		if err != nil {
			return nil, err
		}
		if s.store != nil {
			if err := s.store.SaveCommits(ctx, fetched); err != nil {
				s.logger.WithError(err).Warn("Failed to cache fetched commits")
			}
		}
		for _, c := range fetched {
			bySHA[c.SHA] = c
		}
	}

	s.logger.WithFields(logrus.Fields{
		"repo_id": repoID,
		"total":   len(shas),
		"fetched": len(missing),
	}).Debug("Commits resolved")

	// Preserve the caller's SHA order.
	out := make([]*models.Commit, 0, len(shas))
	for _, sha := range shas {
		out = append(out, bySHA[sha])
	}
	return out, nil
}

// ListRecent returns the SHAs of the n most recent commits on the
// default branch, newest first, paging through the list endpoint as
// needed.
func (s *GitHubSource) ListRecent(ctx context.Context, repoID string, n int) ([]string, error) {
	owner, name, err := splitRepoID(repoID)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, errors.InvalidRequestf("commit count must be positive, got %d", n)
	}

	perPage := n
	if perPage > 100 {
		perPage = 100
	}
	opts := &github.CommitsListOptions{
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	shas := make([]string, 0, n)
	for len(shas) < n {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, errors.SourceUnavailable(err, "list commits")
		}

		commits, resp, err := s.client.Repositories.ListCommits(ctx, owner, name, opts)
		if err != nil {
			if resp != nil && resp.StatusCode == 404 {
				return nil, errors.InvalidRequestf("repository %s/%s not found", owner, name)
			}
			return nil, errors.SourceUnavailable(err, fmt.Sprintf("list commits for %s/%s", owner, name))
		}

		for _, c := range commits {
			shas = append(shas, c.GetSHA())
			if len(shas) == n {
				break
			}
		}

		if resp.NextPage == 0 || len(commits) == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	if len(shas) == 0 {
		return nil, errors.InvalidRequestf("repository %s/%s has no commits", owner, name)
	}
	return shas, nil
}

// fetchFromAPI resolves SHAs with bounded parallel GetCommit calls. The
// per-commit endpoint is the only one that carries file stats.
func (s *GitHubSource) fetchFromAPI(ctx context.Context, owner, name string, shas []string) ([]*models.Commit, error) {
	var mu sync.Mutex
	commits := make([]*models.Commit, 0, len(shas))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxWorkers)

	for _, sha := range shas {
		sha := sha
		g.Go(func() error {
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}

			commit, resp, err := s.client.Repositories.GetCommit(ctx, owner, name, sha, nil)
			if err != nil {
				if resp != nil && resp.StatusCode == 404 {
					return errors.InvalidRequestf("commit %s not found in %s/%s", sha, owner, name)
				}
				return errors.SourceUnavailable(err, fmt.Sprintf("fetch commit %s", sha))
			}

			mu.Lock()
			commits = append(commits, convertCommit(commit, owner+"/"+name))
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if errors.IsInvalidRequest(err) {
			return nil, err
		}
		return nil, errors.SourceUnavailable(err, "commit fetch failed")
	}
	return commits, nil
}

func convertCommit(commit *github.RepositoryCommit, repoID string) *models.Commit {
	out := &models.Commit{
		SHA:         commit.GetSHA(),
		RepoID:      repoID,
		Author:      commit.GetAuthor().GetLogin(),
		AuthorEmail: commit.GetCommit().GetAuthor().GetEmail(),
		Message:     commit.GetCommit().GetMessage(),
		Timestamp:   commit.GetCommit().GetAuthor().GetDate().Time,
	}
	if out.Author == "" {
		out.Author = commit.GetCommit().GetAuthor().GetName()
	}

	for _, f := range commit.Files {
		out.Files = append(out.Files, models.FileChange{
			Path:      f.GetFilename(),
			Type:      convertStatus(f.GetStatus()),
			Additions: f.GetAdditions(),
			Deletions: f.GetDeletions(),
		})
	}
	return out
}

func convertStatus(status string) models.FileChangeType {
	switch status {
	case "added":
		return models.FileAdded
	case "removed":
		return models.FileDeleted
	case "renamed":
		return models.FileRenamed
	default:
		return models.FileModified
	}
}

func splitRepoID(repoID string) (owner, name string, err error) {
	parts := strings.Split(repoID, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.InvalidRequestf("repository id %q is not in owner/name form", repoID)
	}
	return parts[0], parts[1], nil
}
