package fs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"golang.org/x/text/unicode/norm"

	"fim-go/internal/fim"
)

// IgnoreFileName is read from the scan root when present.
const IgnoreFileName = ".fimignore"

// TreeScanner is the afero-backed implementation of fim.Scanner.
//
// Symlink policy: a symlink to a regular file is followed and recorded with
// the target's size and mtime; a symlink to a directory is never descended,
// which also rules out walk loops. Sockets, devices and pipes are skipped.
type TreeScanner struct {
	fs      afero.Fs
	ignore  []string
	exclude map[string]struct{}
}

// NewTreeScanner creates a scanner over fs. ignore holds extra ignore
// patterns; exclude lists paths (typically the baseline file) that are
// never reported.
func NewTreeScanner(afs afero.Fs, ignore []string, exclude ...string) *TreeScanner {
	s := &TreeScanner{
		fs:      afs,
		ignore:  ignore,
		exclude: make(map[string]struct{}, len(exclude)),
	}
	for _, p := range exclude {
		if p == "" {
			continue
		}
		s.exclude[absClean(p)] = struct{}{}
	}
	return s
}

// NewOSTreeScanner creates a scanner over the real filesystem.
func NewOSTreeScanner(ignore []string, exclude ...string) *TreeScanner {
	return NewTreeScanner(afero.NewOsFs(), ignore, exclude...)
}

// Scan walks root in lexical order and returns every regular file in it.
func (s *TreeScanner) Scan(root string) (*fim.ScanResult, error) {
	info, err := s.fs.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", root)
	}

	// A root that is itself a symlink is walked through its target.
	walkRoot := root
	if lst, ok := s.fs.(afero.Lstater); ok {
		if li, _, err := lst.LstatIfPossible(root); err == nil && li.Mode()&os.ModeSymlink != 0 {
			walkRoot = root + string(filepath.Separator)
		}
	}

	filePatterns, err := ParseIgnoreFile(s.fs, filepath.Join(root, IgnoreFileName))
	if err != nil {
		return nil, err
	}
	// The ignore file itself is monitored like any other file.
	matcher := NewIgnoreMatcher(append(append([]string{}, s.ignore...), filePatterns...))

	result := &fim.ScanResult{Root: root}
	seen := make(map[string]struct{})

	err = afero.Walk(s.fs, walkRoot, func(p string, info fs.FileInfo, err error) error {
		rel, relErr := filepath.Rel(walkRoot, p)
		if relErr != nil {
			return fmt.Errorf("computing relative path: %w", relErr)
		}
		key := pathKey(rel)

		if err != nil {
			if rel == "." {
				return err
			}
			result.Errors = append(result.Errors, &fim.FileError{Path: key, Op: "scan", Err: err})
			return nil
		}

		if info.IsDir() {
			if rel == "." {
				return nil
			}
			if matcher.Match(rel, true) {
				return filepath.SkipDir
			}
			result.Dirs = append(result.Dirs, key)
			return nil
		}

		if _, skip := s.exclude[absClean(p)]; skip {
			return nil
		}
		if matcher.Match(rel, false) {
			return nil
		}

		if info.Mode()&os.ModeSymlink != 0 {
			target, err := s.fs.Stat(p)
			if err != nil {
				result.Errors = append(result.Errors, &fim.FileError{Path: key, Op: "scan", Err: err})
				return nil
			}
			if !target.Mode().IsRegular() {
				return nil
			}
			info = target
		} else if !info.Mode().IsRegular() {
			return nil
		}

		if _, dup := seen[key]; dup {
			result.Errors = append(result.Errors, &fim.FileError{
				Path: key,
				Op:   "scan",
				Err:  fmt.Errorf("duplicate path after unicode normalization: %s", p),
			})
			return nil
		}
		seen[key] = struct{}{}

		result.Entries = append(result.Entries, fim.ScanEntry{
			Path:     key,
			FullPath: p,
			Size:     info.Size(),
			Mtime:    fim.MtimeOf(info.ModTime()),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return result, nil
}

// Stat returns fresh size and mtime for a file, following symlinks.
func (s *TreeScanner) Stat(fullPath string) (int64, float64, error) {
	info, err := s.fs.Stat(fullPath)
	if err != nil {
		return 0, 0, err
	}
	return info.Size(), fim.MtimeOf(info.ModTime()), nil
}

// pathKey turns a root-relative path into the stable key stored in
// baselines: slash separated and NFC normalized, so the same tree yields
// the same keys on every platform.
func pathKey(rel string) string {
	return norm.NFC.String(filepath.ToSlash(rel))
}

func absClean(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// Compile-time check that TreeScanner implements fim.Scanner interface
var _ fim.Scanner = (*TreeScanner)(nil)
