package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// BlobStore writes submitted source to disk under a directory the service
// owns. Filenames are freshly minted uuids so writers never collide.
type BlobStore struct {
	dir string
}

// NewBlobStore ensures the blob directory exists.
func NewBlobStore(dir string) (*BlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create submissions directory: %w", err)
	}
	return &BlobStore{dir: dir}, nil
}

// Save writes source under a new unique name with the given extension and
// returns the path.
func (b *BlobStore) Save(ext, source string) (string, error) {
	path := filepath.Join(b.dir, uuid.New().String()+ext)
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		return "", fmt.Errorf("write code blob: %w", err)
	}
	return path, nil
}

// Read returns the stored bytes at path.
func (b *BlobStore) Read(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Remove unlinks a blob. Used best-effort when the submission row insert
// fails: a leaked blob is acceptable, a dangling row is not.
func (b *BlobStore) Remove(path string) error {
	return os.Remove(path)
}
