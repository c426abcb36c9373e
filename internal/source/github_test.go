package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prdraft/prdraft/internal/errors"
	"github.com/prdraft/prdraft/internal/models"
)

func TestSplitRepoID(t *testing.T) {
	tests := []struct {
		repoID  string
		owner   string
		name    string
		wantErr bool
	}{
		{"acme/widgets", "acme", "widgets", false},
		{"acme", "", "", true},
		{"acme/widgets/extra", "", "", true},
		{"/widgets", "", "", true},
		{"acme/", "", "", true},
		{"", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.repoID, func(t *testing.T) {
			owner, name, err := splitRepoID(tt.repoID)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsInvalidRequest(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.owner, owner)
			assert.Equal(t, tt.name, name)
		})
	}
}

func TestConvertStatus(t *testing.T) {
	tests := []struct {
		status string
		want   models.FileChangeType
	}{
		{"added", models.FileAdded},
		{"removed", models.FileDeleted},
		{"renamed", models.FileRenamed},
		{"modified", models.FileModified},
		{"changed", models.FileModified},
		{"", models.FileModified},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, convertStatus(tt.status), "status %q", tt.status)
	}
}
