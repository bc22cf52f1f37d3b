// Copyright (c) 2026 Ace Job Agency. All rights reserved.
// Author: platform@acejobs.sg

// Package blob stores uploaded files on the local filesystem.
//
// Stored names are always server-generated. The original client filename is
// kept only as metadata by the caller, never used as a path component, so
// traversal payloads in upload names are inert.
package blob

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Store persists uploaded blobs and hands back a storage key.
type Store interface {
	Save(key string, reader io.Reader) error
	Open(key string) (io.ReadCloser, error)
	Remove(key string) error
}

// DiskStore writes blobs under a single base directory.
type DiskStore struct {
	baseDir string
}

// NewDiskStore ensures the base directory exists and returns a store rooted there.
func NewDiskStore(baseDir string) (*DiskStore, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("blob: creating base directory %s: %w", baseDir, err)
	}
	return &DiskStore{baseDir: baseDir}, nil
}

// Save writes the blob to disk under the given key. The key must be a bare
// server-generated name with no path separators.
func (store *DiskStore) Save(key string, reader io.Reader) error {
	path, err := store.resolve(key)
	if err != nil {
		return err
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return fmt.Errorf("blob: creating %s: %w", key, err)
	}

	if _, err := io.Copy(file, reader); err != nil {
		file.Close()
		os.Remove(path)
		return fmt.Errorf("blob: writing %s: %w", key, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("blob: closing %s: %w", key, err)
	}
	return nil
}

// Open returns a reader for the stored blob.
func (store *DiskStore) Open(key string) (io.ReadCloser, error) {
	path, err := store.resolve(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("blob: opening %s: %w", key, err)
	}
	return file, nil
}

// Remove deletes the stored blob. Removing a missing blob is not an error.
func (store *DiskStore) Remove(key string) error {
	path, err := store.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("blob: removing %s: %w", key, err)
	}
	return nil
}

// resolve validates the key and maps it to an absolute path inside baseDir.
func (store *DiskStore) resolve(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key != filepath.Base(key) {
		return "", fmt.Errorf("blob: invalid key %q", key)
	}
	return filepath.Join(store.baseDir, key), nil
}
