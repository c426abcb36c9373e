package cache

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prdraft/prdraft/internal/config"
	"github.com/prdraft/prdraft/internal/models"
)

func newTestCache(t *testing.T, ttl time.Duration) *ResultCache {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	c, err := NewResultCache(config.CacheConfig{
		Directory: t.TempDir(),
		TTL:       ttl,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func testResult() *models.GenerationResult {
	return &models.GenerationResult{
		ID:          "res-1",
		RepoID:      "acme/widgets",
		Title:       "fix: resolve login crashes",
		Body:        "## Changes\n\n- fixed null pointer",
		Source:      models.SourceFresh,
		Provenance:  models.ProvenanceGenerated,
		Model:       "gpt-4o-mini",
		TokensUsed:  120,
		GeneratedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestResultCache_PutGet(t *testing.T) {
	c := newTestCache(t, time.Hour)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Put("key1", testResult())
	got, ok := c.Get("key1")
	require.True(t, ok)
	assert.Equal(t, "res-1", got.ID)
	assert.Equal(t, "fix: resolve login crashes", got.Title)
}

func TestResultCache_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	cfg := config.CacheConfig{Directory: dir, TTL: time.Hour}

	c, err := NewResultCache(cfg, logger)
	require.NoError(t, err)
	c.Put("key1", testResult())
	require.NoError(t, c.Close())

	reopened, err := NewResultCache(cfg, logger)
	require.NoError(t, err)
	defer reopened.Close()

	got, ok := reopened.Get("key1")
	require.True(t, ok, "completed results survive process restarts")
	assert.Equal(t, "res-1", got.ID)
}

func TestResultCache_ExpiredEntryNotServed(t *testing.T) {
	c := newTestCache(t, 10*time.Millisecond)

	c.Put("key1", testResult())
	time.Sleep(30 * time.Millisecond)

	_, ok := c.Get("key1")
	assert.False(t, ok, "entries past the validity window are not served")
}

func TestResultCache_GetReturnsCopy(t *testing.T) {
	c := newTestCache(t, time.Hour)
	c.Put("key1", testResult())

	first, ok := c.Get("key1")
	require.True(t, ok)
	first.Title = "mutated"

	second, ok := c.Get("key1")
	require.True(t, ok)
	assert.Equal(t, "fix: resolve login crashes", second.Title,
		"callers must not be able to mutate the cached copy")
}
