package mirror

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"fim-go/internal/fim"
)

// FileSystemMirror keeps baseline copies in a directory, typically on a
// mounted offsite or read-only-by-default volume:
//
//	<root>/
//	  <hostID>/
//	    <name>          (object data)
//	    <name>.version  (version marker)
type FileSystemMirror struct {
	fs   afero.Fs
	root string
}

// NewFileSystemMirror creates a mirror rooted at root, creating the
// directory if needed.
func NewFileSystemMirror(afs afero.Fs, root string) (*FileSystemMirror, error) {
	if err := afs.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create mirror directory: %w", err)
	}
	return &FileSystemMirror{fs: afs, root: root}, nil
}

// Put stores a named object for a host along with its version.
// Data is written before the version marker.
func (m *FileSystemMirror) Put(hostID string, name string, r io.Reader, size int64, version int64) error {
	dir := filepath.Join(m.root, hostID)
	if err := m.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create host directory: %w", err)
	}

	if err := m.writeFile(filepath.Join(dir, name), r, size); err != nil {
		return err
	}

	versionData := strconv.FormatInt(version, 10)
	return m.writeFile(filepath.Join(dir, name+".version"), strings.NewReader(versionData), int64(len(versionData)))
}

// Get writes the named object for a host to w.
func (m *FileSystemMirror) Get(hostID string, name string, w io.Writer) error {
	f, err := m.fs.Open(filepath.Join(m.root, hostID, name))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s not found for host: %s", name, hostID)
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	return nil
}

// Version returns the stored version, or 0 if the object was never put.
func (m *FileSystemMirror) Version(hostID string, name string) (int64, error) {
	data, err := afero.ReadFile(m.fs, filepath.Join(m.root, hostID, name+".version"))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading version file: %w", err)
	}

	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// ValidateSetup verifies that the mirror root is an accessible directory.
func (m *FileSystemMirror) ValidateSetup() error {
	info, err := m.fs.Stat(m.root)
	if err != nil {
		return fmt.Errorf("mirror root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("mirror root is not a directory: %s", m.root)
	}
	return nil
}

// writeFile writes data from r to destPath using atomic write (temp file + rename).
func (m *FileSystemMirror) writeFile(destPath string, r io.Reader, expectedSize int64) error {
	tmpFile, err := afero.TempFile(m.fs, filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			m.fs.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := m.fs.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Compile-time check that FileSystemMirror implements fim.Mirror interface
var _ fim.Mirror = (*FileSystemMirror)(nil)
