package fs

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/afero"

	"fim-go/internal/fim"
)

func writeMem(t *testing.T, afs afero.Fs, path, content string) {
	t.Helper()
	if err := afs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := afero.WriteFile(afs, path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func entryPaths(r *fim.ScanResult) []string {
	var paths []string
	for _, e := range r.Entries {
		paths = append(paths, e.Path)
	}
	return paths
}

func TestTreeScanner_Scan(t *testing.T) {
	t.Run("lists files in lexical order with relative keys", func(t *testing.T) {
		t.Parallel()
		afs := afero.NewMemMapFs()
		writeMem(t, afs, "/data/b.txt", "b")
		writeMem(t, afs, "/data/a.txt", "aa")
		writeMem(t, afs, "/data/sub/c.txt", "ccc")

		result, err := NewTreeScanner(afs, nil).Scan("/data")
		if err != nil {
			t.Fatalf("Scan: %v", err)
		}

		want := []string{"a.txt", "b.txt", "sub/c.txt"}
		if got := entryPaths(result); !reflect.DeepEqual(got, want) {
			t.Errorf("entries = %v, want %v", got, want)
		}
		if !reflect.DeepEqual(result.Dirs, []string{"sub"}) {
			t.Errorf("dirs = %v, want [sub]", result.Dirs)
		}
		if result.Entries[2].Size != 3 {
			t.Errorf("size = %d, want 3", result.Entries[2].Size)
		}
		if result.Entries[2].FullPath != filepath.Join("/data", "sub", "c.txt") {
			t.Errorf("full path = %s", result.Entries[2].FullPath)
		}
		if len(result.Errors) != 0 {
			t.Errorf("unexpected errors: %v", result.Errors)
		}
	})

	t.Run("records mtime as float seconds", func(t *testing.T) {
		t.Parallel()
		afs := afero.NewMemMapFs()
		writeMem(t, afs, "/data/a.txt", "a")
		mt := time.Unix(1700000000, 500000000)
		if err := afs.Chtimes("/data/a.txt", mt, mt); err != nil {
			t.Fatalf("chtimes: %v", err)
		}

		result, err := NewTreeScanner(afs, nil).Scan("/data")
		if err != nil {
			t.Fatalf("Scan: %v", err)
		}
		if result.Entries[0].Mtime != 1700000000.5 {
			t.Errorf("mtime = %v, want 1700000000.5", result.Entries[0].Mtime)
		}
	})

	t.Run("applies ignore file and configured patterns", func(t *testing.T) {
		t.Parallel()
		afs := afero.NewMemMapFs()
		writeMem(t, afs, "/data/.fimignore", "*.log\n")
		writeMem(t, afs, "/data/app.log", "x")
		writeMem(t, afs, "/data/keep.txt", "x")
		writeMem(t, afs, "/data/cache/blob", "x")
		writeMem(t, afs, "/data/tmp.swp", "x")

		result, err := NewTreeScanner(afs, []string{"cache", "*.swp"}).Scan("/data")
		if err != nil {
			t.Fatalf("Scan: %v", err)
		}
		if got := entryPaths(result); !reflect.DeepEqual(got, []string{".fimignore", "keep.txt"}) {
			t.Errorf("entries = %v, want [.fimignore keep.txt]", got)
		}
		if len(result.Dirs) != 0 {
			t.Errorf("ignored directory listed: %v", result.Dirs)
		}
	})

	t.Run("records the ignore file like any other file", func(t *testing.T) {
		t.Parallel()
		afs := afero.NewMemMapFs()
		writeMem(t, afs, "/data/.fimignore", "# nothing ignored\n")
		writeMem(t, afs, "/data/sub/.fimignore", "*\n")
		writeMem(t, afs, "/data/sub/a.txt", "a")

		result, err := NewTreeScanner(afs, nil).Scan("/data")
		if err != nil {
			t.Fatalf("Scan: %v", err)
		}
		want := []string{".fimignore", "sub/.fimignore", "sub/a.txt"}
		if got := entryPaths(result); !reflect.DeepEqual(got, want) {
			t.Errorf("entries = %v, want %v", got, want)
		}
	})

	t.Run("excludes the baseline file", func(t *testing.T) {
		t.Parallel()
		afs := afero.NewMemMapFs()
		writeMem(t, afs, "/data/a.txt", "a")
		writeMem(t, afs, "/data/.baseline.json", "{}")

		result, err := NewTreeScanner(afs, nil, "/data/.baseline.json").Scan("/data")
		if err != nil {
			t.Fatalf("Scan: %v", err)
		}
		if got := entryPaths(result); !reflect.DeepEqual(got, []string{"a.txt"}) {
			t.Errorf("entries = %v, want [a.txt]", got)
		}
	})

	t.Run("normalizes keys to NFC", func(t *testing.T) {
		t.Parallel()
		afs := afero.NewMemMapFs()
		writeMem(t, afs, "/data/cafe\u0301.txt", "x")

		result, err := NewTreeScanner(afs, nil).Scan("/data")
		if err != nil {
			t.Fatalf("Scan: %v", err)
		}
		if result.Entries[0].Path != "caf\u00e9.txt" {
			t.Errorf("key = %q, want NFC form", result.Entries[0].Path)
		}
		if result.Entries[0].FullPath != filepath.Join("/data", "cafe\u0301.txt") {
			t.Errorf("full path must keep on-disk name, got %q", result.Entries[0].FullPath)
		}
	})

	t.Run("empty directory yields no entries", func(t *testing.T) {
		t.Parallel()
		afs := afero.NewMemMapFs()
		if err := afs.MkdirAll("/data", 0755); err != nil {
			t.Fatal(err)
		}
		result, err := NewTreeScanner(afs, nil).Scan("/data")
		if err != nil {
			t.Fatalf("Scan: %v", err)
		}
		if len(result.Entries) != 0 {
			t.Errorf("expected no entries, got %v", entryPaths(result))
		}
	})

	t.Run("missing root is an error", func(t *testing.T) {
		t.Parallel()
		if _, err := NewTreeScanner(afero.NewMemMapFs(), nil).Scan("/nope"); err == nil {
			t.Fatal("expected error for missing root")
		}
	})

	t.Run("root that is a file is an error", func(t *testing.T) {
		t.Parallel()
		afs := afero.NewMemMapFs()
		writeMem(t, afs, "/data/a.txt", "a")
		if _, err := NewTreeScanner(afs, nil).Scan("/data/a.txt"); err == nil {
			t.Fatal("expected error for file root")
		}
	})
}

func TestTreeScanner_Symlinks(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	outside := t.TempDir()

	if err := os.WriteFile(filepath.Join(root, "real.txt"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(outside, "target.txt"), []byte("target!"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(outside, "target.txt"), filepath.Join(root, "link.txt")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if err := os.Symlink(outside, filepath.Join(root, "linkdir")); err != nil {
		t.Fatal(err)
	}
	// Loop back to the root; must not be walked.
	if err := os.Symlink(root, filepath.Join(root, "loop")); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(root, "missing"), filepath.Join(root, "broken.txt")); err != nil {
		t.Fatal(err)
	}

	result, err := NewOSTreeScanner(nil).Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	want := []string{"link.txt", "real.txt"}
	if got := entryPaths(result); !reflect.DeepEqual(got, want) {
		t.Errorf("entries = %v, want %v", got, want)
	}
	if result.Entries[0].Size != int64(len("target!")) {
		t.Errorf("symlinked file should report target size, got %d", result.Entries[0].Size)
	}

	if len(result.Errors) != 1 || result.Errors[0].Path != "broken.txt" || result.Errors[0].Op != "scan" {
		t.Errorf("expected one scan error for broken.txt, got %v", result.Errors)
	}
}

func TestTreeScanner_Stat(t *testing.T) {
	t.Parallel()
	afs := afero.NewMemMapFs()
	writeMem(t, afs, "/data/a.txt", "abc")
	mt := time.Unix(1600000000, 0)
	if err := afs.Chtimes("/data/a.txt", mt, mt); err != nil {
		t.Fatal(err)
	}

	size, mtime, err := NewTreeScanner(afs, nil).Stat("/data/a.txt")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if size != 3 || mtime != 1600000000 {
		t.Errorf("Stat = (%d, %v), want (3, 1600000000)", size, mtime)
	}

	if _, _, err := NewTreeScanner(afs, nil).Stat("/data/none"); err == nil {
		t.Error("expected error for missing file")
	}
}
