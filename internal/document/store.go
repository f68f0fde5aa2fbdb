// Package document implements the shared markdown documents agents append to
// (constitution, findings, architecture and progress logs). Every append is a
// whole-file read, an in-memory append and a whole-file write. Without a
// serialization policy two agents appending to the same document in one level
// race and the last writer wins.
package document

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Store reads and writes whole documents addressed by slash-separated paths
// relative to the project directory.
type Store interface {
	// Read returns the document content; ok is false when it does not exist.
	Read(rel string) (content string, ok bool, err error)
	Write(rel, content string) error
}

// FileStore is a Store rooted at a project directory.
type FileStore struct {
	root string
}

// NewFileStore returns a store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{root: dir}
}

// Root returns the project directory backing the store.
func (s *FileStore) Root() string {
	return s.root
}

// Path resolves rel against the store root.
func (s *FileStore) Path(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

func (s *FileStore) Read(rel string) (string, bool, error) {
	data, err := os.ReadFile(s.Path(rel))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("document: read %s: %w", rel, err)
	}
	return string(data), true, nil
}

func (s *FileStore) Write(rel, content string) error {
	path := s.Path(rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("document: ensure dir for %s: %w", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("document: write %s: %w", rel, err)
	}
	return nil
}
