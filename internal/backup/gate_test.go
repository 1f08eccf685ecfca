package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Rrens/filechat/internal/config"
	"github.com/Rrens/filechat/internal/domain"
	"github.com/Rrens/filechat/internal/repository/bolt"
	"github.com/Rrens/filechat/internal/repository/sqldb"
	"github.com/Rrens/filechat/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fileDB is a bare file standing in for the database
type fileDB struct {
	path string
	mu   sync.Mutex
}

func (f *fileDB) Path() string { return f.path }

func (f *fileDB) Lock() func() {
	f.mu.Lock()
	return f.mu.Unlock
}

func (f *fileDB) Replace(_ context.Context, swap func(string) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return swap(f.path)
}

// failingStore fails every Put
type failingStore struct{}

func (failingStore) Put(context.Context, string, []byte) error { return errors.New("bucket unavailable") }
func (failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("bucket unavailable")
}

func newTestGate(t *testing.T, store BlobStore) (*Gate, *fileDB, *bolt.BackupRepository) {
	t.Helper()
	dir := t.TempDir()

	records, err := bolt.Open(filepath.Join(dir, "backups.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() { records.Close() })

	if store == nil {
		store, err = NewLocalStore(filepath.Join(dir, "bucket"))
		require.NoError(t, err)
	}

	db := &fileDB{path: filepath.Join(dir, "chat_history.db")}
	gate := NewGate(db, store, records)
	gate.now = func() time.Time { return time.Date(2025, 6, 7, 8, 9, 10, 0, time.UTC) }
	return gate, db, records
}

func TestGate_MissingFile(t *testing.T) {
	gate, _, _ := newTestGate(t, nil)
	ctx := context.Background()

	_, ok, err := gate.CurrentHash()
	require.NoError(t, err)
	assert.False(t, ok)

	changed, err := gate.HasChanged(ctx)
	require.NoError(t, err)
	assert.False(t, changed)

	res, err := gate.Sync(ctx)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
}

func TestGate_SyncThenUnchanged(t *testing.T) {
	gate, db, records := newTestGate(t, nil)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(db.path, []byte("version one"), 0o600))

	changed, err := gate.HasChanged(ctx)
	require.NoError(t, err)
	assert.True(t, changed, "no prior record means changed")

	res, err := gate.Sync(ctx)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, []string{"chat_history.db", "backups/chat_history_20250607_080910.db"}, res.Objects)

	changed, err = gate.HasChanged(ctx)
	require.NoError(t, err)
	assert.False(t, changed)

	again, err := gate.Sync(ctx)
	require.NoError(t, err)
	assert.True(t, again.Skipped)

	all, err := records.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, os.WriteFile(db.path, []byte("version two"), 0o600))
	changed, err = gate.HasChanged(ctx)
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestGate_FailedUploadLeavesRecordsUntouched(t *testing.T) {
	gate, db, records := newTestGate(t, failingStore{})
	ctx := context.Background()
	require.NoError(t, os.WriteFile(db.path, []byte("data"), 0o600))

	_, err := gate.Sync(ctx)
	require.Error(t, err)

	latest, err := records.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	changed, err := gate.HasChanged(ctx)
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestGate_Status(t *testing.T) {
	gate, db, _ := newTestGate(t, nil)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(db.path, []byte("data"), 0o600))

	st, err := gate.Status(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, st.CurrentHash)
	assert.Empty(t, st.LastBackupHash)
	assert.Nil(t, st.LastBackupTimestamp)
	assert.True(t, st.HasChanges)

	_, err = gate.Sync(ctx)
	require.NoError(t, err)

	st, err = gate.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, st.CurrentHash, st.LastBackupHash)
	require.NotNil(t, st.LastBackupTimestamp)
	assert.False(t, st.HasChanges)
}

func TestGate_RestoreNotFound(t *testing.T) {
	gate, _, _ := newTestGate(t, nil)

	restored, err := gate.Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, restored)
}

func TestGate_RestoreOverwritesFile(t *testing.T) {
	gate, db, _ := newTestGate(t, nil)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(db.path, []byte("backed up"), 0o600))
	_, err := gate.Sync(ctx)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(db.path, []byte("local edits"), 0o600))
	require.NoError(t, os.WriteFile(db.path+"-journal", []byte("stale"), 0o600))

	restored, err := gate.Restore(ctx)
	require.NoError(t, err)
	assert.True(t, restored)

	data, err := os.ReadFile(db.path)
	require.NoError(t, err)
	assert.Equal(t, "backed up", string(data))
	assert.NoFileExists(t, db.path+"-journal")

	changed, err := gate.HasChanged(ctx)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestEncryptedStore(t *testing.T) {
	local, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	enc, err := security.NewEncryptorFromSecret("backup passphrase")
	require.NoError(t, err)

	store := NewEncryptedStore(local, enc)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "chat_history.db", []byte("SQLite format 3")))

	raw, err := local.Get(ctx, "chat_history.db")
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "SQLite")

	plain, err := store.Get(ctx, "chat_history.db")
	require.NoError(t, err)
	assert.Equal(t, "SQLite format 3", string(plain))

	_, err = store.Get(ctx, "missing.db")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGate_SQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	db, err := sqldb.Open(ctx, config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   filepath.Join(dir, "chat_history.db"),
	})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate())

	turns := sqldb.NewTurnRepository(db)
	records, err := bolt.Open(filepath.Join(dir, "backups.bolt"))
	require.NoError(t, err)
	defer records.Close()
	store, err := NewLocalStore(filepath.Join(dir, "bucket"))
	require.NoError(t, err)

	gate := NewGate(db, store, records)

	require.NoError(t, turns.Append(ctx, domain.NewTurn{SessionID: "s1", Role: domain.RoleUser, Content: domain.Plain("keep me")}))
	_, err = gate.Sync(ctx)
	require.NoError(t, err)

	changed, err := gate.HasChanged(ctx)
	require.NoError(t, err)
	assert.False(t, changed, "recording the backup must not touch the database file")

	require.NoError(t, turns.Append(ctx, domain.NewTurn{SessionID: "s1", Role: domain.RoleUser, Content: domain.Plain("lose me")}))
	changed, err = gate.HasChanged(ctx)
	require.NoError(t, err)
	assert.True(t, changed)

	restored, err := gate.Restore(ctx)
	require.NoError(t, err)
	require.True(t, restored)

	history, err := turns.History(ctx, "s1", 50)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "keep me", history[0].Content.Text())
}
