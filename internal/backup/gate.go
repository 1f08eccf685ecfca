// Package backup mirrors the SQLite database file to blob storage and only
// uploads when the file content changed since the last successful sync.
package backup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Rrens/filechat/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	// CanonicalObject is overwritten on every sync and read on restore
	CanonicalObject = "chat_history.db"

	archivePrefix = "backups/chat_history_"
	archiveLayout = "20060102_150405"
)

// ArchiveObject names the timestamped copy uploaded next to the canonical one
func ArchiveObject(t time.Time) string {
	return archivePrefix + t.Format(archiveLayout) + ".db"
}

// Database is the file-backed store the gate protects
type Database interface {
	// Path returns the database file location
	Path() string
	// Lock blocks writers until the returned func is called
	Lock() func()
	// Replace closes the database, runs swap on its path, then reopens it
	Replace(ctx context.Context, swap func(path string) error) error
}

// SyncResult describes what a Sync call did
type SyncResult struct {
	Skipped bool     `json:"skipped"`
	Hash    string   `json:"hash,omitempty"`
	Objects []string `json:"objects,omitempty"`
}

// Status is the admin view of the gate
type Status struct {
	CurrentHash         string     `json:"current_hash"`
	LastBackupHash      string     `json:"last_backup_hash"`
	LastBackupTimestamp *time.Time `json:"last_backup_timestamp"`
	HasChanges          bool       `json:"has_changes"`
}

// Gate coordinates hashing, uploading and restoring the database file
type Gate struct {
	db      Database
	store   BlobStore
	records domain.BackupRepository

	mu  sync.Mutex
	now func() time.Time
}

// NewGate creates a new backup gate
func NewGate(db Database, store BlobStore, records domain.BackupRepository) *Gate {
	return &Gate{
		db:      db,
		store:   store,
		records: records,
		now:     time.Now,
	}
}

// snapshot reads the whole database file under the write lock so the bytes
// that get hashed are the bytes that get uploaded
func (g *Gate) snapshot() (data []byte, hash string, ok bool, err error) {
	unlock := g.db.Lock()
	defer unlock()

	data, err = os.ReadFile(g.db.Path())
	if errors.Is(err, os.ErrNotExist) {
		return nil, "", false, nil
	}
	if err != nil {
		return nil, "", false, fmt.Errorf("failed to read database file: %w", err)
	}

	sum := sha256.Sum256(data)
	return data, hex.EncodeToString(sum[:]), true, nil
}

// CurrentHash returns the SHA-256 of the database file. ok is false when
// the file does not exist.
func (g *Gate) CurrentHash() (string, bool, error) {
	_, hash, ok, err := g.snapshot()
	return hash, ok, err
}

// HasChanged reports whether the file differs from the last synced hash.
// A missing file reports no change.
func (g *Gate) HasChanged(ctx context.Context) (bool, error) {
	hash, ok, err := g.CurrentHash()
	if err != nil || !ok {
		return false, err
	}
	return g.differs(ctx, hash)
}

func (g *Gate) differs(ctx context.Context, hash string) (bool, error) {
	last, err := g.records.Latest(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load last backup: %w", err)
	}
	return last == nil || last.Hash != hash, nil
}

// Sync uploads the database when it changed. Records are only appended
// after both uploads succeed.
func (g *Gate) Sync(ctx context.Context) (SyncResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	data, hash, ok, err := g.snapshot()
	if err != nil {
		return SyncResult{}, err
	}
	if !ok {
		log.Debug().Str("path", g.db.Path()).Msg("No database file, skipping backup")
		return SyncResult{Skipped: true}, nil
	}

	changed, err := g.differs(ctx, hash)
	if err != nil {
		return SyncResult{}, err
	}
	if !changed {
		log.Debug().Str("hash", hash).Msg("Database unchanged, skipping backup")
		return SyncResult{Skipped: true, Hash: hash}, nil
	}

	now := g.now().UTC()
	objects := []string{CanonicalObject, ArchiveObject(now)}
	for _, name := range objects {
		if err := g.store.Put(ctx, name, data); err != nil {
			return SyncResult{}, fmt.Errorf("failed to upload %s: %w", name, err)
		}
	}

	if err := g.records.Record(ctx, domain.BackupRecord{Hash: hash, CreatedAt: now}); err != nil {
		return SyncResult{}, fmt.Errorf("failed to record backup: %w", err)
	}

	log.Info().
		Str("hash", hash).
		Int("bytes", len(data)).
		Strs("objects", objects).
		Msg("Database backed up")

	return SyncResult{Hash: hash, Objects: objects}, nil
}

// Restore replaces the database file with the canonical blob. It returns
// false without error when no backup exists yet.
func (g *Gate) Restore(ctx context.Context) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	data, err := g.store.Get(ctx, CanonicalObject)
	if errors.Is(err, ErrNotFound) {
		log.Info().Msg("No backup found, starting fresh")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to download backup: %w", err)
	}

	err = g.db.Replace(ctx, func(path string) error {
		// A stale rollback journal would be replayed over the restored file
		if err := os.Remove(path + "-journal"); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove journal: %w", err)
		}
		if err := writeFileAtomic(path, data); err != nil {
			return fmt.Errorf("failed to replace database file: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	log.Info().Int("bytes", len(data)).Msg("Database restored from backup")
	return true, nil
}

// Status reports the current and last synced hashes
func (g *Gate) Status(ctx context.Context) (Status, error) {
	var st Status

	hash, ok, err := g.CurrentHash()
	if err != nil {
		return st, err
	}
	st.CurrentHash = hash

	last, err := g.records.Latest(ctx)
	if err != nil {
		return st, fmt.Errorf("failed to load last backup: %w", err)
	}
	if last != nil {
		st.LastBackupHash = last.Hash
		ts := last.CreatedAt
		st.LastBackupTimestamp = &ts
	}

	st.HasChanges = ok && (last == nil || last.Hash != hash)
	return st, nil
}

// Run syncs every interval until ctx is cancelled. Failures are logged and
// retried on the next tick.
func (g *Gate) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("Backup loop started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Backup loop stopped")
			return
		case <-ticker.C:
			if _, err := g.Sync(ctx); err != nil {
				log.Error().Err(err).Msg("Periodic backup failed")
			}
		}
	}
}
