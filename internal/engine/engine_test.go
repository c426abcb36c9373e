package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prdraft/prdraft/internal/config"
	"github.com/prdraft/prdraft/internal/errors"
	"github.com/prdraft/prdraft/internal/llm"
	"github.com/prdraft/prdraft/internal/models"
	"github.com/prdraft/prdraft/internal/output"
	"github.com/prdraft/prdraft/internal/prompt"
	"github.com/prdraft/prdraft/internal/storage"
	"github.com/prdraft/prdraft/internal/styles"
)

// fakeSource serves commits from a fixed map.
type fakeSource struct {
	commits map[string]*models.Commit
	err     error
	calls   atomic.Int32
}

func (f *fakeSource) Fetch(ctx context.Context, repoID string, shas []string) ([]*models.Commit, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*models.Commit, 0, len(shas))
	for _, sha := range shas {
		c, ok := f.commits[sha]
		if !ok {
			return nil, errors.InvalidRequestf("commit %s not found", sha)
		}
		out = append(out, c)
	}
	return out, nil
}

// fakeGen returns a fixed response and counts backend calls.
type fakeGen struct {
	text    string
	err     error
	calls   atomic.Int32
	release chan struct{} // when set, Generate blocks until closed
}

func (f *fakeGen) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	f.calls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Text: f.text, Model: "fake-model", TokensUsed: 10}, nil
}

// memResults is an in-memory ResultCache.
type memResults struct {
	mu sync.Mutex
	m  map[string]models.GenerationResult
}

func newMemResults() *memResults {
	return &memResults{m: make(map[string]models.GenerationResult)}
}

func (c *memResults) Get(key string) (*models.GenerationResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.m[key]
	if !ok {
		return nil, false
	}
	out := r
	return &out, true
}

func (c *memResults) Put(key string, result *models.GenerationResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = *result
}

// memStore is an in-memory storage.Store.
type memStore struct {
	mu        sync.Mutex
	entries   map[string]*models.HistoryEntry
	order     []string
	appendErr error
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string]*models.HistoryEntry)}
}

func (s *memStore) AppendHistory(ctx context.Context, entry *models.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	copied := *entry
	s.entries[entry.Result.ID] = &copied
	s.order = append(s.order, entry.Result.ID)
	return nil
}

func (s *memStore) GetHistory(ctx context.Context, repoID string, limit int) ([]*models.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.HistoryEntry
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		e := s.entries[s.order[i]]
		if e.Result.RepoID == repoID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memStore) GetGeneration(ctx context.Context, id string) (*models.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return e, nil
}

func (s *memStore) AttachFeedback(ctx context.Context, id string, fb *models.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return storage.ErrNotFound
	}
	if e.Feedback != nil {
		return storage.ErrFeedbackExists
	}
	e.Feedback = fb
	return nil
}

func (s *memStore) SaveCommits(ctx context.Context, commits []*models.Commit) error { return nil }

func (s *memStore) GetCachedCommits(ctx context.Context, repoID string, shas []string, maxAge time.Duration) ([]*models.Commit, error) {
	return nil, nil
}

func (s *memStore) Close() error { return nil }

const goodResponse = `{"title":"fix: resolve login crashes","body":"## Changes\n\n- fixed null pointer\n- fixed typo"}`

func fixCommits() map[string]*models.Commit {
	return map[string]*models.Commit{
		"a1": {SHA: "a1", Message: "fix: null pointer in login", Files: []models.FileChange{
			{Path: "internal/auth/login.go", Additions: 8, Deletions: 2},
		}},
		"b2": {SHA: "b2", Message: "fix: typo in error text", Files: []models.FileChange{
			{Path: "internal/auth/errors.go", Additions: 1, Deletions: 1},
		}},
	}
}

type testEnv struct {
	engine  *Engine
	source  *fakeSource
	gen     *fakeGen
	results *memResults
	store   *memStore
}

func newTestEnv(t *testing.T, gen *fakeGen) *testEnv {
	t.Helper()
	resolver, err := styles.NewResolver("")
	require.NoError(t, err)

	src := &fakeSource{commits: fixCommits()}
	results := newMemResults()
	store := newMemStore()

	cfg := config.Default()
	eng := New(Deps{
		Source:    src,
		Resolver:  resolver,
		Composer:  prompt.NewComposer(cfg.Prompt),
		Generator: gen,
		Formatter: output.NewFormatter(cfg.Output),
		Results:   results,
		Store:     store,
	})

	return &testEnv{engine: eng, source: src, gen: gen, results: results, store: store}
}

func request() *models.GenerationRequest {
	return &models.GenerationRequest{
		RepoID:     "acme/widgets",
		CommitSHAs: []string{"a1", "b2"},
		Tone:       models.ToneConcise,
	}
}

func TestGenerate_EndToEnd(t *testing.T) {
	env := newTestEnv(t, &fakeGen{text: goodResponse})

	result, err := env.engine.GeneratePRMessage(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, "fix: resolve login crashes", result.Title)
	assert.Contains(t, result.Body, "## Changes")
	assert.Equal(t, models.SourceFresh, result.Source)
	assert.Equal(t, models.ProvenanceGenerated, result.Provenance)
	assert.Equal(t, "fake-model", result.Model)
	assert.NotEmpty(t, result.ID)

	// The generation landed in history.
	entries, err := env.engine.GetHistory(context.Background(), "acme/widgets", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, result.ID, entries[0].Result.ID)
	assert.Equal(t, []string{"a1", "b2"}, entries[0].CommitSHAs)
	assert.Equal(t, models.ToneConcise, entries[0].Tone)
}

func TestGenerate_EmptyCommitSet(t *testing.T) {
	env := newTestEnv(t, &fakeGen{text: goodResponse})

	_, err := env.engine.GeneratePRMessage(context.Background(), &models.GenerationRequest{
		RepoID: "acme/widgets",
	})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequest(err))
	assert.Equal(t, int32(0), env.gen.calls.Load(), "invalid requests never reach the backend")
}

func TestGenerate_MissingRepo(t *testing.T) {
	env := newTestEnv(t, &fakeGen{text: goodResponse})

	_, err := env.engine.GeneratePRMessage(context.Background(), &models.GenerationRequest{
		CommitSHAs: []string{"a1"},
	})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequest(err))
}

func TestGenerate_CacheHit(t *testing.T) {
	env := newTestEnv(t, &fakeGen{text: goodResponse})
	ctx := context.Background()

	first, err := env.engine.GeneratePRMessage(ctx, request())
	require.NoError(t, err)
	assert.Equal(t, models.SourceFresh, first.Source)

	second, err := env.engine.GeneratePRMessage(ctx, request())
	require.NoError(t, err)
	assert.Equal(t, models.SourceCacheHit, second.Source)
	assert.Equal(t, first.ID, second.ID, "cache hit serves the same persisted result")
	assert.Equal(t, first.Title, second.Title)

	assert.Equal(t, int32(1), env.gen.calls.Load(), "a valid cached result skips the backend")
}

// Commit order and duplicates never affect request identity.
func TestGenerate_CanonicalKeyIgnoresOrderAndDuplicates(t *testing.T) {
	env := newTestEnv(t, &fakeGen{text: goodResponse})
	ctx := context.Background()

	_, err := env.engine.GeneratePRMessage(ctx, request())
	require.NoError(t, err)

	reordered := &models.GenerationRequest{
		RepoID:     "acme/widgets",
		CommitSHAs: []string{"b2", "a1", "b2"},
		Tone:       models.ToneConcise,
	}
	result, err := env.engine.GeneratePRMessage(ctx, reordered)
	require.NoError(t, err)
	assert.Equal(t, models.SourceCacheHit, result.Source)
	assert.Equal(t, int32(1), env.gen.calls.Load())
}

func TestGenerate_DistinctTonesAreDistinctRequests(t *testing.T) {
	env := newTestEnv(t, &fakeGen{text: goodResponse})
	ctx := context.Background()

	concise := request()
	_, err := env.engine.GeneratePRMessage(ctx, concise)
	require.NoError(t, err)

	detailed := request()
	detailed.Tone = models.ToneDetailed
	result, err := env.engine.GeneratePRMessage(ctx, detailed)
	require.NoError(t, err)

	assert.Equal(t, models.SourceFresh, result.Source)
	assert.Equal(t, int32(2), env.gen.calls.Load(), "tone is part of request identity")
}

func TestGenerate_DefaultToneMatchesExplicitConcise(t *testing.T) {
	env := newTestEnv(t, &fakeGen{text: goodResponse})
	ctx := context.Background()

	_, err := env.engine.GeneratePRMessage(ctx, request())
	require.NoError(t, err)

	blank := request()
	blank.Tone = ""
	result, err := env.engine.GeneratePRMessage(ctx, blank)
	require.NoError(t, err)
	assert.Equal(t, models.SourceCacheHit, result.Source,
		"empty tone normalizes to the default before keying")
}

func TestGenerate_ConcurrentDuplicatesShareOneBackendCall(t *testing.T) {
	gen := &fakeGen{text: goodResponse, release: make(chan struct{})}
	env := newTestEnv(t, gen)

	const n = 8
	var wg sync.WaitGroup
	results := make([]*models.GenerationResult, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = env.engine.GeneratePRMessage(context.Background(), request())
		}(i)
	}

	time.Sleep(100 * time.Millisecond)
	close(gen.release)
	wg.Wait()

	assert.Equal(t, int32(1), gen.calls.Load(), "identical in-flight requests share one execution")
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].ID, results[i].ID, "every caller receives the same result")
	}

	entries, err := env.engine.GetHistory(context.Background(), "acme/widgets", 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "a deduplicated burst records one history entry")
}

func TestGenerate_UnusableBackendTextFallsBack(t *testing.T) {
	env := newTestEnv(t, &fakeGen{text: "   "})

	result, err := env.engine.GeneratePRMessage(context.Background(), request())
	require.NoError(t, err, "unusable text is not a failure")

	assert.Equal(t, models.ProvenanceFallback, result.Provenance)
	assert.Contains(t, result.Title, "fix:", "fallback title carries the dominant kind")
	assert.Contains(t, result.Body, "## Changes")
}

func TestGenerate_BackendFailureSurfacesAndIsNotCached(t *testing.T) {
	gen := &fakeGen{err: errors.GenerationUnavailable(fmt.Errorf("boom"), "backend down")}
	env := newTestEnv(t, gen)
	ctx := context.Background()

	_, err := env.engine.GeneratePRMessage(ctx, request())
	require.Error(t, err)
	assert.True(t, errors.IsGenerationUnavailable(err))

	entries, _ := env.engine.GetHistory(ctx, "acme/widgets", 10)
	assert.Empty(t, entries, "failed generations are not recorded")

	// A later retry starts fresh and succeeds.
	gen.err = nil
	gen.text = goodResponse
	result, err := env.engine.GeneratePRMessage(ctx, request())
	require.NoError(t, err)
	assert.Equal(t, models.SourceFresh, result.Source)
}

func TestGenerate_SourceFailureSurfaces(t *testing.T) {
	env := newTestEnv(t, &fakeGen{text: goodResponse})
	env.source.err = errors.SourceUnavailable(fmt.Errorf("api down"), "github unreachable")

	_, err := env.engine.GeneratePRMessage(context.Background(), request())
	require.Error(t, err)
	assert.True(t, errors.IsSourceUnavailable(err))
	assert.Equal(t, int32(0), env.gen.calls.Load())
}

func TestGenerate_HistoryFailureSurfaces(t *testing.T) {
	env := newTestEnv(t, &fakeGen{text: goodResponse})
	env.store.appendErr = fmt.Errorf("disk full")

	_, err := env.engine.GeneratePRMessage(context.Background(), request())
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeStorage, errors.GetType(err))

	// The unrecorded result must not serve from cache either.
	env.store.appendErr = nil
	result, err := env.engine.GeneratePRMessage(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, models.SourceFresh, result.Source)
}

func TestGenerate_InvalidTemplate(t *testing.T) {
	env := newTestEnv(t, &fakeGen{text: goodResponse})

	req := request()
	req.TemplateID = "nope"
	_, err := env.engine.GeneratePRMessage(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequest(err))
}

func TestAttachFeedback_Lifecycle(t *testing.T) {
	env := newTestEnv(t, &fakeGen{text: goodResponse})
	ctx := context.Background()

	result, err := env.engine.GeneratePRMessage(ctx, request())
	require.NoError(t, err)

	fb := &models.Feedback{Status: models.FeedbackAccepted, Rating: 4, Comment: "good"}
	require.NoError(t, env.engine.AttachFeedback(ctx, result.ID, fb))

	entry, err := env.engine.GetGeneration(ctx, result.ID)
	require.NoError(t, err)
	require.NotNil(t, entry.Feedback)
	assert.Equal(t, models.FeedbackAccepted, entry.Feedback.Status)
	assert.False(t, entry.Feedback.CreatedAt.IsZero())

	// Append-once.
	err = env.engine.AttachFeedback(ctx, result.ID, &models.Feedback{Status: models.FeedbackRejected})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequest(err))
}

func TestAttachFeedback_Validation(t *testing.T) {
	env := newTestEnv(t, &fakeGen{text: goodResponse})
	ctx := context.Background()

	err := env.engine.AttachFeedback(ctx, "some-id", &models.Feedback{Status: "meh"})
	assert.True(t, errors.IsInvalidRequest(err))

	err = env.engine.AttachFeedback(ctx, "some-id", &models.Feedback{Status: models.FeedbackAccepted, Rating: 9})
	assert.True(t, errors.IsInvalidRequest(err))

	err = env.engine.AttachFeedback(ctx, "", &models.Feedback{Status: models.FeedbackAccepted})
	assert.True(t, errors.IsInvalidRequest(err))

	err = env.engine.AttachFeedback(ctx, "unknown", &models.Feedback{Status: models.FeedbackAccepted})
	assert.True(t, errors.IsInvalidRequest(err))
}
