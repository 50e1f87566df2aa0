package snapshot

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"fim-go/internal/fim"
)

// FileStore keeps the baseline as a single JSON file.
type FileStore struct {
	fs   afero.Fs
	path string
}

// NewFileStore creates a store for the baseline at path on fs.
func NewFileStore(afs afero.Fs, path string) *FileStore {
	return &FileStore{fs: afs, path: path}
}

// NewOSFileStore creates a store backed by the real filesystem.
func NewOSFileStore(path string) *FileStore {
	return NewFileStore(afero.NewOsFs(), path)
}

// Save encodes b and atomically replaces the stored baseline.
func (s *FileStore) Save(b *fim.Baseline) error {
	var buf bytes.Buffer
	if err := fim.EncodeBaseline(&buf, b); err != nil {
		return &fim.PersistError{Location: s.path, Err: err}
	}
	if err := s.writeFile(&buf); err != nil {
		return &fim.PersistError{Location: s.path, Err: err}
	}
	return nil
}

// Load reads the stored baseline. A missing file is fim.ErrNotFound.
func (s *FileStore) Load() (*fim.Baseline, error) {
	f, err := s.fs.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fim.ErrNotFound
		}
		return nil, fmt.Errorf("opening baseline: %w", err)
	}
	defer f.Close()

	b, err := fim.DecodeBaseline(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}
	return b, nil
}

// Location returns the baseline file path.
func (s *FileStore) Location() string {
	return s.path
}

// writeFile writes r next to the destination and renames it into place,
// so readers only ever see the old or the new baseline.
func (s *FileStore) writeFile(r io.Reader) error {
	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create baseline directory: %w", err)
	}

	tmpFile, err := afero.TempFile(s.fs, dir, ".baseline-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			s.fs.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmpFile, r); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := s.fs.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Compile-time check that FileStore implements fim.SnapshotStore interface
var _ fim.SnapshotStore = (*FileStore)(nil)
