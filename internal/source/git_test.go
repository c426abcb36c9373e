package source

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prdraft/prdraft/internal/errors"
	"github.com/prdraft/prdraft/internal/models"
)

// setupRepo creates a throwaway git repository with two commits and
// returns its path plus the commit SHAs, oldest first.
func setupRepo(t *testing.T) (string, []string) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	dir := t.TempDir()
	run := func(args ...string) string {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
		return strings.TrimSpace(string(out))
	}

	run("init")
	run("config", "user.email", "dev@example.com")
	run("config", "user.name", "Dev One")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0644))
	run("add", "main.go")
	run("commit", "-m", "feat: initial scaffolding")
	first := run("rev-parse", "HEAD")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n\nfunc main() { run() }\n\nfunc run() {}\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "util.go"), []byte("package main\n"), 0644))
	run("add", ".")
	run("commit", "-m", "fix: wire up the runner\n\nExtracted run() so main stays small.")
	second := run("rev-parse", "HEAD")

	return dir, []string{first, second}
}

func TestLocalGitSource_Fetch(t *testing.T) {
	dir, shas := setupRepo(t)
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	src := NewLocalGitSource(dir, logger)
	commits, err := src.Fetch(context.Background(), "local/repo", shas)
	require.NoError(t, err)
	require.Len(t, commits, 2)

	first, second := commits[0], commits[1]

	assert.Equal(t, shas[0], first.SHA)
	assert.Equal(t, "feat: initial scaffolding", first.Message)
	assert.Equal(t, "Dev One", first.Author)
	assert.Equal(t, "dev@example.com", first.AuthorEmail)
	assert.False(t, first.Timestamp.IsZero())
	require.Len(t, first.Files, 1)
	assert.Equal(t, "main.go", first.Files[0].Path)
	assert.Equal(t, models.FileAdded, first.Files[0].Type)
	assert.Equal(t, 3, first.Files[0].Additions)

	assert.Equal(t, "fix: wire up the runner", second.Subject())
	require.Len(t, second.Files, 2)
	byPath := map[string]models.FileChange{}
	for _, f := range second.Files {
		byPath[f.Path] = f
	}
	assert.Equal(t, models.FileModified, byPath["main.go"].Type)
	assert.Equal(t, models.FileAdded, byPath["util.go"].Type)
	assert.Greater(t, byPath["main.go"].Additions, 0)
}

func TestLocalGitSource_ListRecent(t *testing.T) {
	dir, shas := setupRepo(t)
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	src := NewLocalGitSource(dir, logger)

	recent, err := src.ListRecent(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{shas[1]}, recent, "newest commit first")

	// Asking for more commits than exist returns what there is.
	recent, err = src.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{shas[1], shas[0]}, recent)

	_, err = src.ListRecent(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequest(err))
}

func TestLocalGitSource_UnknownSHA(t *testing.T) {
	dir, _ := setupRepo(t)
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	src := NewLocalGitSource(dir, logger)
	_, err := src.Fetch(context.Background(), "local/repo", []string{"deadbeefdeadbeefdeadbeefdeadbeefdeadbeef"})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequest(err), "an unresolvable sha is the caller's mistake")
}

func TestLocalGitSource_NotARepo(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	src := NewLocalGitSource(t.TempDir(), logger)
	_, err := src.Fetch(context.Background(), "local/repo", []string{"abc123"})
	require.Error(t, err)
}
