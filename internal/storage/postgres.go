package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/prdraft/prdraft/internal/models"
)

// PostgresStore implements storage using PostgreSQL
type PostgresStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPostgresStore creates a new PostgreSQL storage
func NewPostgresStore(dsn string, logger *logrus.Logger) (*PostgresStore, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store := &PostgresStore{
		db:     db,
		logger: logger,
	}

	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS generations (
		id TEXT PRIMARY KEY,
		repo_id TEXT NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		sections TEXT,
		commit_shas TEXT NOT NULL,
		tone TEXT NOT NULL,
		template_id TEXT,
		source TEXT,
		provenance TEXT,
		model TEXT,
		tokens_used INTEGER,
		processing_ms BIGINT,
		generated_at TIMESTAMPTZ,
		feedback_status TEXT,
		feedback_rating INTEGER,
		feedback_comment TEXT,
		feedback_at TIMESTAMPTZ
	);

	CREATE INDEX IF NOT EXISTS idx_generations_repo
		ON generations(repo_id, generated_at DESC);

	CREATE TABLE IF NOT EXISTS commit_history (
		repo_id TEXT NOT NULL,
		sha TEXT NOT NULL,
		author TEXT,
		author_email TEXT,
		message TEXT,
		timestamp TIMESTAMPTZ,
		files TEXT,
		cached_at TIMESTAMPTZ,
		PRIMARY KEY (repo_id, sha)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// AppendHistory inserts one finished generation.
func (s *PostgresStore) AppendHistory(ctx context.Context, entry *models.HistoryEntry) error {
	row, err := toGenerationRow(entry)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO generations (id, repo_id, user_id, title, body, sections,
			commit_shas, tone, template_id, source, provenance, model,
			tokens_used, processing_ms, generated_at)
		VALUES (:id, :repo_id, :user_id, :title, :body, :sections,
			:commit_shas, :tone, :template_id, :source, :provenance, :model,
			:tokens_used, :processing_ms, :generated_at)
	`

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("append history: %w", err)
	}

	return nil
}

// GetHistory returns the most recent generations for a repository.
func (s *PostgresStore) GetHistory(ctx context.Context, repoID string, limit int) ([]*models.HistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT * FROM generations
		WHERE repo_id = $1
		ORDER BY generated_at DESC
		LIMIT $2
	`

	var rows []generationRow
	if err := s.db.SelectContext(ctx, &rows, query, repoID, limit); err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}

	entries := make([]*models.HistoryEntry, 0, len(rows))
	for i := range rows {
		entry, err := rows[i].toEntry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// GetGeneration returns one generation by ID.
func (s *PostgresStore) GetGeneration(ctx context.Context, id string) (*models.HistoryEntry, error) {
	var row generationRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM generations WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get generation: %w", err)
	}
	return row.toEntry()
}

// AttachFeedback records caller feedback on a generation, once.
func (s *PostgresStore) AttachFeedback(ctx context.Context, generationID string, fb *models.Feedback) error {
	query := `
		UPDATE generations
		SET feedback_status = $1, feedback_rating = $2, feedback_comment = $3, feedback_at = $4
		WHERE id = $5 AND feedback_status IS NULL
	`

	res, err := s.db.ExecContext(ctx, query,
		string(fb.Status), fb.Rating, fb.Comment, fb.CreatedAt, generationID)
	if err != nil {
		return fmt.Errorf("attach feedback: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("attach feedback: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := s.db.GetContext(ctx, &exists,
			`SELECT COUNT(*) > 0 FROM generations WHERE id = $1`, generationID); err != nil {
			return fmt.Errorf("attach feedback: %w", err)
		}
		if exists {
			return ErrFeedbackExists
		}
		return ErrNotFound
	}

	return nil
}

// SaveCommits upserts fetched commits into the lookup cache.
func (s *PostgresStore) SaveCommits(ctx context.Context, commits []*models.Commit) error {
	query := `
		INSERT INTO commit_history
			(repo_id, sha, author, author_email, message, timestamp, files, cached_at)
		VALUES (:repo_id, :sha, :author, :author_email, :message, :timestamp, :files, :cached_at)
		ON CONFLICT (repo_id, sha) DO UPDATE SET
			author = EXCLUDED.author,
			author_email = EXCLUDED.author_email,
			message = EXCLUDED.message,
			timestamp = EXCLUDED.timestamp,
			files = EXCLUDED.files,
			cached_at = EXCLUDED.cached_at
	`

	now := time.Now().UTC()
	for _, commit := range commits {
		row, err := toCommitRow(commit, now)
		if err != nil {
			return err
		}
		if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
			return fmt.Errorf("save commit %s: %w", commit.SHA, err)
		}
	}

	return nil
}

// GetCachedCommits returns the cached commits among shas still within maxAge.
func (s *PostgresStore) GetCachedCommits(ctx context.Context, repoID string, shas []string, maxAge time.Duration) ([]*models.Commit, error) {
	if len(shas) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		SELECT * FROM commit_history
		WHERE repo_id = ? AND sha IN (?) AND cached_at > ?
	`, repoID, shas, time.Now().UTC().Add(-maxAge))
	if err != nil {
		return nil, fmt.Errorf("get cached commits: %w", err)
	}

	var rows []commitRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("get cached commits: %w", err)
	}

	commits := make([]*models.Commit, 0, len(rows))
	for i := range rows {
		commit, err := rows[i].toCommit()
		if err != nil {
			return nil, err
		}
		commits = append(commits, commit)
	}
	return commits, nil
}
