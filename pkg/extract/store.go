package extract

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ContentStore persists extracted or uploaded content and returns a locator
// the record layer can store.
type ContentStore interface {
	Put(name string, data []byte) (string, error)
}

// DirContentStore stores content as files under a base directory.
type DirContentStore struct {
	dir string
}

// NewDirContentStore creates the base directory if needed.
func NewDirContentStore(dir string) (*DirContentStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create content directory: %w", err)
	}
	return &DirContentStore{dir: dir}, nil
}

// Put writes the content and returns its path.
func (s *DirContentStore) Put(name string, data []byte) (string, error) {
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write content file: %w", err)
	}
	return path, nil
}

// StoreUpload persists a raw uploaded document under a unique name that keeps
// the original extension, and returns its locator.
func StoreUpload(store ContentStore, data []byte, originalFilename string) (string, error) {
	name := uuid.New().String() + filepath.Ext(originalFilename)
	return store.Put(name, data)
}
