package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/prdraft/prdraft/internal/config"
	"github.com/prdraft/prdraft/internal/models"
)

// Common errors
var (
	ErrNotFound       = errors.New("not found")
	ErrFeedbackExists = errors.New("feedback already attached")
)

// Store persists generation history and the commit lookup cache.
// History is permanent and append-oriented: results are never updated
// after insert, except for the one-shot feedback attachment.
type Store interface {
	// History operations
	AppendHistory(ctx context.Context, entry *models.HistoryEntry) error
	GetHistory(ctx context.Context, repoID string, limit int) ([]*models.HistoryEntry, error)
	GetGeneration(ctx context.Context, id string) (*models.HistoryEntry, error)
	AttachFeedback(ctx context.Context, generationID string, fb *models.Feedback) error

	// Commit lookup cache
	SaveCommits(ctx context.Context, commits []*models.Commit) error
	GetCachedCommits(ctx context.Context, repoID string, shas []string, maxAge time.Duration) ([]*models.Commit, error)

	// Close connection
	Close() error
}

// NewStore creates the configured store implementation.
func NewStore(cfg config.StorageConfig, logger *logrus.Logger) (Store, error) {
	switch cfg.Type {
	case "postgres":
		return NewPostgresStore(cfg.PostgresDSN, logger)
	case "sqlite", "":
		return NewSQLiteStore(cfg.SQLitePath, logger)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// generationRow is the flat database shape of a history entry.
type generationRow struct {
	ID           string         `db:"id"`
	RepoID       string         `db:"repo_id"`
	UserID       string         `db:"user_id"`
	Title        string         `db:"title"`
	Body         string         `db:"body"`
	Sections     string         `db:"sections"`    // JSON
	CommitSHAs   string         `db:"commit_shas"` // JSON
	Tone         string         `db:"tone"`
	TemplateID   string         `db:"template_id"`
	Source       string         `db:"source"`
	Provenance   string         `db:"provenance"`
	Model        string         `db:"model"`
	TokensUsed   int            `db:"tokens_used"`
	ProcessingMS int64          `db:"processing_ms"`
	GeneratedAt  time.Time      `db:"generated_at"`
	FBStatus     sql.NullString `db:"feedback_status"`
	FBRating     sql.NullInt64  `db:"feedback_rating"`
	FBComment    sql.NullString `db:"feedback_comment"`
	FBCreatedAt  sql.NullTime   `db:"feedback_at"`
}

func toGenerationRow(entry *models.HistoryEntry) (*generationRow, error) {
	shas, err := json.Marshal(entry.CommitSHAs)
	if err != nil {
		return nil, fmt.Errorf("encode commit shas: %w", err)
	}
	sections, err := json.Marshal(entry.Result.Sections)
	if err != nil {
		return nil, fmt.Errorf("encode sections: %w", err)
	}

	return &generationRow{
		ID:           entry.Result.ID,
		RepoID:       entry.Result.RepoID,
		UserID:       entry.UserID,
		Title:        entry.Result.Title,
		Body:         entry.Result.Body,
		Sections:     string(sections),
		CommitSHAs:   string(shas),
		Tone:         string(entry.Tone),
		TemplateID:   entry.TemplateID,
		Source:       string(entry.Result.Source),
		Provenance:   string(entry.Result.Provenance),
		Model:        entry.Result.Model,
		TokensUsed:   entry.Result.TokensUsed,
		ProcessingMS: entry.Result.ProcessingMS,
		GeneratedAt:  entry.Result.GeneratedAt,
	}, nil
}

func (r *generationRow) toEntry() (*models.HistoryEntry, error) {
	entry := &models.HistoryEntry{
		Result: models.GenerationResult{
			ID:           r.ID,
			RepoID:       r.RepoID,
			Title:        r.Title,
			Body:         r.Body,
			Source:       models.ResultSource(r.Source),
			Provenance:   models.Provenance(r.Provenance),
			Model:        r.Model,
			TokensUsed:   r.TokensUsed,
			ProcessingMS: r.ProcessingMS,
			GeneratedAt:  r.GeneratedAt,
		},
		UserID:     r.UserID,
		Tone:       models.Tone(r.Tone),
		TemplateID: r.TemplateID,
	}

	if err := json.Unmarshal([]byte(r.CommitSHAs), &entry.CommitSHAs); err != nil {
		return nil, fmt.Errorf("decode commit shas: %w", err)
	}
	if r.Sections != "" {
		if err := json.Unmarshal([]byte(r.Sections), &entry.Result.Sections); err != nil {
			return nil, fmt.Errorf("decode sections: %w", err)
		}
	}

	if r.FBStatus.Valid {
		entry.Feedback = &models.Feedback{
			Status:    models.FeedbackStatus(r.FBStatus.String),
			Rating:    int(r.FBRating.Int64),
			Comment:   r.FBComment.String,
			CreatedAt: r.FBCreatedAt.Time,
		}
	}

	return entry, nil
}

// commitRow is the flat database shape of a cached commit.
type commitRow struct {
	RepoID      string    `db:"repo_id"`
	SHA         string    `db:"sha"`
	Author      string    `db:"author"`
	AuthorEmail string    `db:"author_email"`
	Message     string    `db:"message"`
	Timestamp   time.Time `db:"timestamp"`
	Files       string    `db:"files"` // JSON
	CachedAt    time.Time `db:"cached_at"`
}

func toCommitRow(commit *models.Commit, cachedAt time.Time) (*commitRow, error) {
	files, err := json.Marshal(commit.Files)
	if err != nil {
		return nil, fmt.Errorf("encode files: %w", err)
	}
	return &commitRow{
		RepoID:      commit.RepoID,
		SHA:         commit.SHA,
		Author:      commit.Author,
		AuthorEmail: commit.AuthorEmail,
		Message:     commit.Message,
		Timestamp:   commit.Timestamp,
		Files:       string(files),
		CachedAt:    cachedAt,
	}, nil
}

func (r *commitRow) toCommit() (*models.Commit, error) {
	commit := &models.Commit{
		SHA:         r.SHA,
		RepoID:      r.RepoID,
		Author:      r.Author,
		AuthorEmail: r.AuthorEmail,
		Message:     r.Message,
		Timestamp:   r.Timestamp,
	}
	if r.Files != "" {
		if err := json.Unmarshal([]byte(r.Files), &commit.Files); err != nil {
			return nil, fmt.Errorf("decode files: %w", err)
		}
	}
	return commit, nil
}
