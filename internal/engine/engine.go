package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/prdraft/prdraft/internal/analysis"
	"github.com/prdraft/prdraft/internal/cache"
	"github.com/prdraft/prdraft/internal/errors"
	"github.com/prdraft/prdraft/internal/llm"
	"github.com/prdraft/prdraft/internal/models"
	"github.com/prdraft/prdraft/internal/output"
	"github.com/prdraft/prdraft/internal/prompt"
	"github.com/prdraft/prdraft/internal/source"
	"github.com/prdraft/prdraft/internal/storage"
	"github.com/prdraft/prdraft/internal/styles"
)

// Generator produces raw message text from a composed prompt.
type Generator interface {
	Generate(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// ResultCache holds completed results for the validity window.
type ResultCache interface {
	Get(key string) (*models.GenerationResult, bool)
	Put(key string, result *models.GenerationResult)
}

// Deps are the engine's collaborators, injected for testability.
type Deps struct {
	Source    source.CommitSource
	Resolver  *styles.Resolver
	Composer  *prompt.Composer
	Generator Generator
	Formatter *output.Formatter
	Results   ResultCache
	Store     storage.Store
}

// Engine runs the full generation pipeline: fetch, classify, aggregate,
// compose, generate, format, persist. Identical concurrent requests share
// one execution through the flight arena, and completed results serve
// from the cache until they expire.
type Engine struct {
	deps       Deps
	classifier *analysis.Classifier
	arena      *cache.Arena
	logger     *slog.Logger
}

// New creates an engine.
func New(deps Deps) *Engine {
	return &Engine{
		deps:       deps,
		classifier: analysis.NewClassifier(),
		arena:      cache.NewArena(),
		logger:     slog.Default().With("component", "engine"),
	}
}

// GeneratePRMessage produces a PR title and body for the requested commit
// set. The request is canonicalized first, so commit order and duplicate
// SHAs never affect caching or deduplication.
func (e *Engine) GeneratePRMessage(ctx context.Context, req *models.GenerationRequest) (*models.GenerationResult, error) {
	if req.RepoID == "" {
		return nil, errors.InvalidRequest("repository id is required")
	}
	shas := req.SortedSHAs()
	if len(shas) == 0 {
		return nil, errors.InvalidRequest("at least one commit is required")
	}

	style, err := e.deps.Resolver.Resolve(req.Tone, req.TemplateID)
	if err != nil {
		return nil, err
	}

	// Normalize defaults into the request so "" and the explicit default
	// produce the same canonical key.
	req.Tone = style.Tone
	if req.TemplateID == "" {
		req.TemplateID = styles.DefaultTemplateID
	}
	key := req.CanonicalKey()
	log := e.logger.With("repo_id", req.RepoID, "key", key[:12])

	if cached, ok := e.deps.Results.Get(key); ok {
		log.Debug("cache hit")
		hit := *cached
		hit.Source = models.SourceCacheHit
		return &hit, nil
	}

	result, err := e.arena.Do(ctx, key, func(runCtx context.Context) (*models.GenerationResult, error) {
		return e.generate(runCtx, req, shas, style, key)
	})
	if err != nil {
		return nil, err
	}

	log.Info("generation complete",
		"source", result.Source,
		"provenance", result.Provenance,
		"processing_ms", result.ProcessingMS)
	return result, nil
}

// generate is the body of one deduplicated execution.
func (e *Engine) generate(ctx context.Context, req *models.GenerationRequest, shas []string, style models.StylePreference, key string) (*models.GenerationResult, error) {
	start := time.Now()

	commits, err := e.deps.Source.Fetch(ctx, req.RepoID, shas)
	if err != nil {
		return nil, err
	}

	classes := make([]models.ChangeClassification, len(commits))
	for i, commit := range commits {
		classes[i] = e.classifier.Classify(commit)
	}

	summary, err := analysis.Aggregate(commits, classes)
	if err != nil {
		return nil, err
	}

	composed := e.deps.Composer.Compose(summary, style)

	resp, err := e.deps.Generator.Generate(ctx, llm.Request{
		System: composed.System,
		User:   composed.User,
	})
	if err != nil {
		return nil, err
	}

	msg := e.deps.Formatter.Format(resp.Text, summary)

	result := &models.GenerationResult{
		ID:           uuid.NewString(),
		RepoID:       req.RepoID,
		Title:        msg.Title,
		Body:         msg.Body,
		Sections:     msg.Sections,
		Source:       models.SourceFresh,
		Provenance:   msg.Provenance,
		Model:        resp.Model,
		TokensUsed:   resp.TokensUsed,
		ProcessingMS: time.Since(start).Milliseconds(),
		GeneratedAt:  time.Now().UTC(),
	}

	// History first: a result that cannot be recorded is not served,
	// so the cache never holds results history knows nothing about.
	entry := &models.HistoryEntry{
		Result:     *result,
		UserID:     req.UserID,
		CommitSHAs: shas,
		Tone:       req.Tone,
		TemplateID: req.TemplateID,
	}
	if err := e.deps.Store.AppendHistory(ctx, entry); err != nil {
		return nil, errors.StorageError(err, "record generation history")
	}

	e.deps.Results.Put(key, result)
	return result, nil
}

// GetHistory returns the most recent generations for a repository.
func (e *Engine) GetHistory(ctx context.Context, repoID string, limit int) ([]*models.HistoryEntry, error) {
	if repoID == "" {
		return nil, errors.InvalidRequest("repository id is required")
	}

	entries, err := e.deps.Store.GetHistory(ctx, repoID, limit)
	if err != nil {
		return nil, errors.StorageError(err, "read generation history")
	}
	return entries, nil
}

// AttachFeedback records the caller's verdict on a generation, once.
func (e *Engine) AttachFeedback(ctx context.Context, generationID string, fb *models.Feedback) error {
	if generationID == "" {
		return errors.InvalidRequest("generation id is required")
	}
	if !models.ValidFeedbackStatus(fb.Status) {
		return errors.InvalidRequestf("unknown feedback status %q", fb.Status)
	}
	if fb.Rating != 0 && (fb.Rating < 1 || fb.Rating > 5) {
		return errors.InvalidRequestf("rating must be between 1 and 5, got %d", fb.Rating)
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}

	switch err := e.deps.Store.AttachFeedback(ctx, generationID, fb); err {
	case nil:
		return nil
	case storage.ErrNotFound:
		return errors.InvalidRequestf("unknown generation id %q", generationID)
	case storage.ErrFeedbackExists:
		return errors.InvalidRequestf("generation %q already has feedback", generationID)
	default:
		return errors.StorageError(err, "attach feedback")
	}
}

// GetGeneration returns one persisted generation by ID.
func (e *Engine) GetGeneration(ctx context.Context, id string) (*models.HistoryEntry, error) {
	entry, err := e.deps.Store.GetGeneration(ctx, id)
	if err == storage.ErrNotFound {
		return nil, errors.InvalidRequestf("unknown generation id %q", id)
	}
	if err != nil {
		return nil, errors.StorageError(err, "read generation")
	}
	return entry, nil
}
