package source

import (
	"context"

	"github.com/prdraft/prdraft/internal/models"
)

// CommitSource resolves commit SHAs into full commits with file stats.
// The commit set is read-only input: implementations never mutate what
// they return between calls for the same SHA.
type CommitSource interface {
	Fetch(ctx context.Context, repoID string, shas []string) ([]*models.Commit, error)
}
