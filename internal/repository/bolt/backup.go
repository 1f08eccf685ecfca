// Package bolt keeps the backup log in a bbolt file next to the chat
// database, so recording a backup never changes the bytes being hashed.
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Rrens/filechat/internal/domain"
	bolt "go.etcd.io/bbolt"
)

var backupBucket = []byte("backup_records")

// BackupRepository implements domain.BackupRepository
type BackupRepository struct {
	db *bolt.DB
}

// Open opens or creates the backup log at path
func Open(path string) (*BackupRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup log dir: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open backup log: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(backupBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create backup bucket: %w", err)
	}

	return &BackupRepository{db: db}, nil
}

// Close closes the log file
func (r *BackupRepository) Close() error {
	return r.db.Close()
}

// Record appends a record under the next sequence number
func (r *BackupRepository) Record(_ context.Context, record domain.BackupRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal backup record: %w", err)
	}

	err = r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(backupBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(itob(seq), data)
	})
	if err != nil {
		return fmt.Errorf("failed to record backup: %w", err)
	}
	return nil
}

// Latest returns the most recent record, or nil when none exist
func (r *BackupRepository) Latest(ctx context.Context) (*domain.BackupRecord, error) {
	records, err := r.List(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// List returns up to limit records, newest first
func (r *BackupRepository) List(_ context.Context, limit int) ([]domain.BackupRecord, error) {
	var records []domain.BackupRecord

	err := r.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(backupBucket).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(records) >= limit {
				break
			}
			var rec domain.BackupRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("failed to unmarshal backup record %d: %w", binary.BigEndian.Uint64(k), err)
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	return records, nil
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
