package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/Rrens/filechat/internal/security"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"
)

// ErrNotFound is returned by BlobStore.Get for a missing object
var ErrNotFound = errors.New("blob not found")

// BlobStore is the remote side of a backup
type BlobStore interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
}

// LocalStore keeps blobs in a directory
type LocalStore struct {
	dir string
}

// NewLocalStore creates the directory if needed
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup dir: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

func (s *LocalStore) Put(_ context.Context, name string, data []byte) error {
	path := filepath.Join(s.dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create blob dir: %w", err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("failed to write blob %s: %w", name, err)
	}
	return nil
}

func (s *LocalStore) Get(_ context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, filepath.FromSlash(name)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", name, err)
	}
	return data, nil
}

// GCSStore keeps blobs in a Google Cloud Storage bucket
type GCSStore struct {
	svc    *storage.Service
	bucket string
}

// NewGCSStore creates a client from a service account file, or from
// application default credentials when credentialsFile is empty
func NewGCSStore(ctx context.Context, bucket, credentialsFile string) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("backup bucket is not configured")
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &GCSStore{svc: svc, bucket: bucket}, nil
}

func (s *GCSStore) Put(ctx context.Context, name string, data []byte) error {
	obj := &storage.Object{
		Name:        name,
		ContentType: "application/x-sqlite3",
	}
	_, err := s.svc.Objects.Insert(s.bucket, obj).
		Media(bytes.NewReader(data)).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to upload gs://%s/%s: %w", s.bucket, name, err)
	}
	return nil
}

func (s *GCSStore) Get(ctx context.Context, name string) ([]byte, error) {
	resp, err := s.svc.Objects.Get(s.bucket, name).Context(ctx).Download()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to download gs://%s/%s: %w", s.bucket, name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", s.bucket, name, err)
	}
	return data, nil
}

// EncryptedStore seals blobs before handing them to the wrapped store
type EncryptedStore struct {
	next BlobStore
	enc  *security.Encryptor
}

// NewEncryptedStore wraps next with client-side encryption
func NewEncryptedStore(next BlobStore, enc *security.Encryptor) *EncryptedStore {
	return &EncryptedStore{next: next, enc: enc}
}

func (s *EncryptedStore) Put(ctx context.Context, name string, data []byte) error {
	sealed, err := s.enc.Encrypt(data)
	if err != nil {
		return fmt.Errorf("failed to encrypt blob: %w", err)
	}
	return s.next.Put(ctx, name, sealed)
}

func (s *EncryptedStore) Get(ctx context.Context, name string) ([]byte, error) {
	sealed, err := s.next.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	data, err := s.enc.Decrypt(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt blob %s: %w", name, err)
	}
	return data, nil
}

// writeFileAtomic writes to a temp file in the same directory, syncs it
// and renames it over path
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
