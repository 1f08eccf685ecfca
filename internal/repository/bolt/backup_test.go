package bolt

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Rrens/filechat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupRepository(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "meta", "backups.bolt")

	repo, err := Open(path)
	require.NoError(t, err)

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	base := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, h := range []string{"aaa", "bbb", "ccc"} {
		require.NoError(t, repo.Record(ctx, domain.BackupRecord{Hash: h, CreatedAt: base.Add(time.Duration(i) * time.Minute)}))
	}

	latest, err = repo.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "ccc", latest.Hash)
	assert.True(t, latest.CreatedAt.Equal(base.Add(2*time.Minute)))

	records, err := repo.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "ccc", records[0].Hash)
	assert.Equal(t, "bbb", records[1].Hash)

	// Records survive a reopen
	require.NoError(t, repo.Close())
	repo, err = Open(path)
	require.NoError(t, err)
	defer repo.Close()

	all, err := repo.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
