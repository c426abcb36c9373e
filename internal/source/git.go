package source

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/prdraft/prdraft/internal/errors"
	"github.com/prdraft/prdraft/internal/models"
)

// LocalGitSource resolves commits from a local working copy by shelling
// out to git. No network, no token, no cache: local lookups are cheap
// enough to run every time.
type LocalGitSource struct {
	repoPath string
	logger   *logrus.Logger
}

// NewLocalGitSource creates a source reading from the repository at path.
func NewLocalGitSource(repoPath string, logger *logrus.Logger) *LocalGitSource {
	return &LocalGitSource{repoPath: repoPath, logger: logger}
}

// Fetch resolves every SHA via git show.
func (s *LocalGitSource) Fetch(ctx context.Context, repoID string, shas []string) ([]*models.Commit, error) {
	commits := make([]*models.Commit, 0, len(shas))
	for _, sha := range shas {
		commit, err := s.show(ctx, repoID, sha)
		if err != nil {
			return nil, err
		}
		commits = append(commits, commit)
	}
	return commits, nil
}

// ListRecent returns the SHAs of the n most recent commits on HEAD,
// newest first.
func (s *LocalGitSource) ListRecent(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return nil, errors.InvalidRequestf("commit count must be positive, got %d", n)
	}

	out, err := s.git(ctx, "HEAD", "rev-list", "--max-count="+strconv.Itoa(n), "HEAD")
	if err != nil {
		return nil, err
	}

	shas := strings.Fields(out)
	if len(shas) == 0 {
		return nil, errors.InvalidRequestf("repository at %s has no commits", s.repoPath)
	}
	return shas, nil
}

// show reads one commit's metadata and file stats.
func (s *LocalGitSource) show(ctx context.Context, repoID, sha string) (*models.Commit, error) {
	// Unit separator between fields so the multi-line message parses
	// unambiguously.
	meta, err := s.git(ctx, sha, "show", "-s", "--format=%H%x1f%an%x1f%ae%x1f%aI%x1f%B", sha)
	if err != nil {
		return nil, err
	}

	fields := strings.Split(meta, "\x1f")
	if len(fields) != 5 {
		return nil, errors.SourceUnavailable(
			fmt.Errorf("got %d fields, want 5", len(fields)),
			fmt.Sprintf("unexpected git show output for %s", sha))
	}

	commit := &models.Commit{
		SHA:         fields[0],
		RepoID:      repoID,
		Author:      fields[1],
		AuthorEmail: fields[2],
		Message:     strings.TrimSpace(fields[4]),
	}
	if ts, err := time.Parse(time.RFC3339, fields[3]); err == nil {
		commit.Timestamp = ts
	}

	files, err := s.fileChanges(ctx, sha)
	if err != nil {
		return nil, err
	}
	commit.Files = files

	return commit, nil
}

// fileChanges merges name-status (change type) with numstat (line counts).
func (s *LocalGitSource) fileChanges(ctx context.Context, sha string) ([]models.FileChange, error) {
	statusOut, err := s.git(ctx, sha, "show", "--name-status", "--format=", sha)
	if err != nil {
		return nil, err
	}
	numstatOut, err := s.git(ctx, sha, "show", "--numstat", "--format=", sha)
	if err != nil {
		return nil, err
	}

	counts := make(map[string][2]int)
	for _, line := range strings.Split(numstatOut, "\n") {
		parts := strings.Split(line, "\t")
		if len(parts) < 3 {
			continue
		}
		// Binary files report "-"; count them as zero churn.
		add, _ := strconv.Atoi(parts[0])
		del, _ := strconv.Atoi(parts[1])
		counts[parts[len(parts)-1]] = [2]int{add, del}
	}

	var files []models.FileChange
	for _, line := range strings.Split(statusOut, "\n") {
		parts := strings.Split(line, "\t")
		if len(parts) < 2 || parts[0] == "" {
			continue
		}

		status := parts[0]
		path := parts[len(parts)-1] // renames list old then new; keep the new path

		fc := models.FileChange{Path: path}
		switch status[0] {
		case 'A':
			fc.Type = models.FileAdded
		case 'D':
			fc.Type = models.FileDeleted
		case 'R':
			fc.Type = models.FileRenamed
		default:
			fc.Type = models.FileModified
		}

		if c, ok := counts[path]; ok {
			fc.Additions = c[0]
			fc.Deletions = c[1]
		}
		files = append(files, fc)
	}

	return files, nil
}

// git runs one git command in the repository and maps failures onto the
// error taxonomy.
func (s *LocalGitSource) git(ctx context.Context, sha string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = s.repoPath

	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			stderr := string(exitErr.Stderr)
			if strings.Contains(stderr, "unknown revision") ||
				strings.Contains(stderr, "bad object") ||
				strings.Contains(stderr, "bad revision") {
				return "", errors.InvalidRequestf("commit %s not found in %s", sha, s.repoPath)
			}
			return "", errors.SourceUnavailable(err,
				fmt.Sprintf("git %s failed: %s", args[0], strings.TrimSpace(stderr)))
		}
		return "", errors.SourceUnavailable(err, "git is not available")
	}

	return string(out), nil
}
