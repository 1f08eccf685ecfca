package domain

import (
	"context"
	"time"
)

// BackupRecord notes the hash of a database snapshot that was synced
type BackupRecord struct {
	Hash      string    `json:"hash"`
	CreatedAt time.Time `json:"created_at"`
}

// BackupRepository keeps the append-only backup log. Only the latest record
// matters for change detection; older ones are kept for audit.
type BackupRepository interface {
	Record(ctx context.Context, record BackupRecord) error
	Latest(ctx context.Context) (*BackupRecord, error)
	List(ctx context.Context, limit int) ([]BackupRecord, error)
}
