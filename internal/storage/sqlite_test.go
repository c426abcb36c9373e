package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prdraft/prdraft/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testEntry(id string, generatedAt time.Time) *models.HistoryEntry {
	return &models.HistoryEntry{
		Result: models.GenerationResult{
			ID:     id,
			RepoID: "acme/widgets",
			Title:  "fix: resolve login crashes",
			Body:   "## Changes\n\n- fixed null pointer",
			Sections: []models.Section{
				{Heading: "Changes", Content: "- fixed null pointer"},
			},
			Source:       models.SourceFresh,
			Provenance:   models.ProvenanceGenerated,
			Model:        "gpt-4o-mini",
			TokensUsed:   120,
			ProcessingMS: 850,
			GeneratedAt:  generatedAt,
		},
		UserID:     "dev-42",
		CommitSHAs: []string{"a1b2c3", "d4e5f6"},
		Tone:       models.ToneConcise,
		TemplateID: "default",
	}
}

func TestAppendAndGetHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, store.AppendHistory(ctx, testEntry("gen-1", now.Add(-2*time.Minute))))
	require.NoError(t, store.AppendHistory(ctx, testEntry("gen-2", now.Add(-time.Minute))))
	require.NoError(t, store.AppendHistory(ctx, testEntry("gen-3", now)))

	entries, err := store.GetHistory(ctx, "acme/widgets", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "gen-3", entries[0].Result.ID, "newest first")
	assert.Equal(t, "gen-2", entries[1].Result.ID)

	assert.Equal(t, []string{"a1b2c3", "d4e5f6"}, entries[0].CommitSHAs)
	assert.Equal(t, "dev-42", entries[0].UserID)
	assert.Equal(t, models.ToneConcise, entries[0].Tone)
	require.Len(t, entries[0].Result.Sections, 1)
	assert.Equal(t, "Changes", entries[0].Result.Sections[0].Heading)
}

func TestGetHistory_OtherRepoInvisible(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := testEntry("gen-1", time.Now().UTC())
	entry.Result.RepoID = "other/repo"
	require.NoError(t, store.AppendHistory(ctx, entry))

	entries, err := store.GetHistory(ctx, "acme/widgets", 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGetGeneration(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendHistory(ctx, testEntry("gen-1", time.Now().UTC())))

	entry, err := store.GetGeneration(ctx, "gen-1")
	require.NoError(t, err)
	assert.Equal(t, "fix: resolve login crashes", entry.Result.Title)
	assert.Nil(t, entry.Feedback)

	_, err = store.GetGeneration(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAttachFeedback_AppendOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.AppendHistory(ctx, testEntry("gen-1", time.Now().UTC())))

	fb := &models.Feedback{
		Status:    models.FeedbackAccepted,
		Rating:    5,
		Comment:   "used as-is",
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.AttachFeedback(ctx, "gen-1", fb))

	entry, err := store.GetGeneration(ctx, "gen-1")
	require.NoError(t, err)
	require.NotNil(t, entry.Feedback)
	assert.Equal(t, models.FeedbackAccepted, entry.Feedback.Status)
	assert.Equal(t, 5, entry.Feedback.Rating)

	// Second attachment is rejected and the first survives.
	second := &models.Feedback{Status: models.FeedbackRejected, CreatedAt: time.Now().UTC()}
	err = store.AttachFeedback(ctx, "gen-1", second)
	assert.ErrorIs(t, err, ErrFeedbackExists)

	entry, err = store.GetGeneration(ctx, "gen-1")
	require.NoError(t, err)
	assert.Equal(t, models.FeedbackAccepted, entry.Feedback.Status)
}

func TestAttachFeedback_UnknownGeneration(t *testing.T) {
	store := newTestStore(t)

	err := store.AttachFeedback(context.Background(), "missing", &models.Feedback{
		Status:    models.FeedbackAccepted,
		CreatedAt: time.Now().UTC(),
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCommitCache_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	commits := []*models.Commit{
		{
			SHA:       "a1b2c3",
			RepoID:    "acme/widgets",
			Author:    "Dev One",
			Message:   "fix: null pointer in login",
			Timestamp: time.Now().UTC().Truncate(time.Second),
			Files: []models.FileChange{
				{Path: "internal/auth/login.go", Type: models.FileModified, Additions: 8, Deletions: 2},
			},
		},
		{
			SHA:     "d4e5f6",
			RepoID:  "acme/widgets",
			Message: "fix: typo in error text",
		},
	}
	require.NoError(t, store.SaveCommits(ctx, commits))

	got, err := store.GetCachedCommits(ctx, "acme/widgets",
		[]string{"a1b2c3", "d4e5f6", "unknown"}, time.Hour)
	require.NoError(t, err)
	require.Len(t, got, 2, "unknown shas are simply absent")

	bySHA := map[string]*models.Commit{}
	for _, c := range got {
		bySHA[c.SHA] = c
	}
	require.Contains(t, bySHA, "a1b2c3")
	assert.Equal(t, "fix: null pointer in login", bySHA["a1b2c3"].Message)
	require.Len(t, bySHA["a1b2c3"].Files, 1)
	assert.Equal(t, 8, bySHA["a1b2c3"].Files[0].Additions)
}

func TestCommitCache_StaleEntriesNotServed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveCommits(ctx, []*models.Commit{
		{SHA: "a1b2c3", RepoID: "acme/widgets", Message: "fix: x"},
	}))

	got, err := store.GetCachedCommits(ctx, "acme/widgets", []string{"a1b2c3"}, -time.Second)
	require.NoError(t, err)
	assert.Empty(t, got, "entries older than maxAge are treated as misses")
}

func TestCommitCache_UpsertRefreshes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveCommits(ctx, []*models.Commit{
		{SHA: "a1b2c3", RepoID: "acme/widgets", Message: "first"},
	}))
	require.NoError(t, store.SaveCommits(ctx, []*models.Commit{
		{SHA: "a1b2c3", RepoID: "acme/widgets", Message: "second"},
	}))

	got, err := store.GetCachedCommits(ctx, "acme/widgets", []string{"a1b2c3"}, time.Hour)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "second", got[0].Message)
}
