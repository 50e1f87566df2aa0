// Package hasher streams files through the digests supported by fim.
package hasher

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/spf13/afero"

	"fim-go/internal/fim"
)

// ChunkSize is the read size used when streaming a file.
const ChunkSize = 4096

// FileHasher implements fim.Hasher on top of an afero filesystem.
type FileHasher struct {
	fs afero.Fs
}

// NewFileHasher creates a hasher that reads files from fs.
func NewFileHasher(fs afero.Fs) *FileHasher {
	return &FileHasher{fs: fs}
}

// NewOSFileHasher creates a hasher that reads from the real filesystem.
func NewOSFileHasher() *FileHasher {
	return NewFileHasher(afero.NewOsFs())
}

// New returns a fresh hash.Hash for algo.
func New(algo fim.Algorithm) (hash.Hash, error) {
	switch algo {
	case fim.AlgorithmSHA1:
		return sha1.New(), nil
	case fim.AlgorithmSHA256:
		return sha256.New(), nil
	case fim.AlgorithmSHA512:
		return sha512.New(), nil
	}
	return nil, fmt.Errorf("unsupported hash algorithm %q", algo)
}

// Hash streams the file at path through algo in ChunkSize reads.
func (h *FileHasher) Hash(path string, algo fim.Algorithm) (string, error) {
	digest, err := New(algo)
	if err != nil {
		return "", err
	}

	f, err := h.fs.Open(path)
	if err != nil {
		return "", &fim.FileError{Path: path, Op: "hash", Err: err}
	}
	defer f.Close()

	buf := make([]byte, ChunkSize)
	if _, err := io.CopyBuffer(digest, onlyReader{f}, buf); err != nil {
		return "", &fim.FileError{Path: path, Op: "hash", Err: err}
	}

	return hex.EncodeToString(digest.Sum(nil)), nil
}

// HashReader digests everything read from r.
func HashReader(r io.Reader, algo fim.Algorithm) (string, error) {
	digest, err := New(algo)
	if err != nil {
		return "", err
	}
	if _, err := io.CopyBuffer(digest, onlyReader{r}, make([]byte, ChunkSize)); err != nil {
		return "", err
	}
	return hex.EncodeToString(digest.Sum(nil)), nil
}

// onlyReader hides WriterTo/ReaderFrom so io.CopyBuffer honours the buffer size.
type onlyReader struct {
	io.Reader
}

// Compile-time check that FileHasher implements fim.Hasher interface
var _ fim.Hasher = (*FileHasher)(nil)
