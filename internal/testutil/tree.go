package testutil

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"fim-go/internal/fim"
	fimfs "fim-go/internal/fs"
	"fim-go/internal/hasher"
)

// BaseTime is the mtime given to files written by Tree unless a test picks another.
var BaseTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// Tree is a directory tree on an in-memory filesystem with full control
// over file mtimes.
type Tree struct {
	t    *testing.T
	Fs   afero.Fs
	Root string
}

// NewTree creates an empty tree rooted at /data.
func NewTree(t *testing.T) *Tree {
	t.Helper()
	afs := afero.NewMemMapFs()
	if err := afs.MkdirAll("/data", 0755); err != nil {
		t.Fatalf("creating tree root: %v", err)
	}
	return &Tree{t: t, Fs: afs, Root: "/data"}
}

// Path returns the full path of rel inside the tree.
func (tr *Tree) Path(rel string) string {
	return filepath.Join(tr.Root, filepath.FromSlash(rel))
}

// Write creates or replaces rel with content and sets its mtime.
func (tr *Tree) Write(rel, content string, mtime time.Time) {
	tr.t.Helper()
	p := tr.Path(rel)
	if err := tr.Fs.MkdirAll(filepath.Dir(p), 0755); err != nil {
		tr.t.Fatalf("mkdir for %s: %v", rel, err)
	}
	if err := afero.WriteFile(tr.Fs, p, []byte(content), 0644); err != nil {
		tr.t.Fatalf("writing %s: %v", rel, err)
	}
	tr.Touch(rel, mtime)
}

// Touch sets the mtime of rel without changing its content.
func (tr *Tree) Touch(rel string, mtime time.Time) {
	tr.t.Helper()
	if err := tr.Fs.Chtimes(tr.Path(rel), mtime, mtime); err != nil {
		tr.t.Fatalf("chtimes %s: %v", rel, err)
	}
}

// Remove deletes rel.
func (tr *Tree) Remove(rel string) {
	tr.t.Helper()
	if err := tr.Fs.Remove(tr.Path(rel)); err != nil {
		tr.t.Fatalf("removing %s: %v", rel, err)
	}
}

// Scanner returns a scanner over the tree. exclude lists full paths to skip.
func (tr *Tree) Scanner(ignore []string, exclude ...string) *fimfs.TreeScanner {
	return fimfs.NewTreeScanner(tr.Fs, ignore, exclude...)
}

// Hasher returns a counting hasher reading from the tree.
func (tr *Tree) Hasher() *CountingHasher {
	return NewCountingHasher(hasher.NewFileHasher(tr.Fs))
}

// Digest returns the hex digest of content under algo.
func Digest(t *testing.T, algo fim.Algorithm, content string) string {
	t.Helper()
	sum, err := hasher.HashReader(strings.NewReader(content), algo)
	if err != nil {
		t.Fatalf("hashing: %v", err)
	}
	return sum
}
