package fim_test

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"fim-go/internal/fim"
	fimfs "fim-go/internal/fs"
	"fim-go/internal/testutil"
)

// fixture is a tree plus a baseline recorded from it.
type fixture struct {
	tree     *testutil.Tree
	hasher   *testutil.CountingHasher
	baseline *fim.Baseline
	algo     fim.Algorithm
}

// newFixture writes files (path -> content) at BaseTime and records a
// baseline for them directly, without going through the service.
func newFixture(t *testing.T, algo fim.Algorithm, files map[string]string) *fixture {
	t.Helper()
	tree := testutil.NewTree(t)
	b := &fim.Baseline{
		Algorithm: algo,
		CreatedAt: "2026-01-01T12:00:00Z",
		Version:   fim.BaselineVersion,
		Root:      tree.Root,
		Files:     make(map[string]*fim.FileRecord),
	}
	for path, content := range files {
		tree.Write(path, content, testutil.BaseTime)
		b.Files[path] = &fim.FileRecord{
			Path:  path,
			Hash:  testutil.Digest(t, algo, content),
			Size:  int64(len(content)),
			Mtime: fim.MtimeOf(testutil.BaseTime),
		}
	}
	return &fixture{tree: tree, hasher: tree.Hasher(), baseline: b, algo: algo}
}

func (f *fixture) compare(t *testing.T, workers int) *fim.CheckResult {
	t.Helper()
	scan, err := f.tree.Scanner(nil).Scan(f.tree.Root)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	result, err := fim.NewEngine(f.hasher, fim.NewNopLogger(), workers).Compare(f.baseline, scan, f.algo)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	return result
}

func eventStrings(events []fim.ChangeEvent) []string {
	var out []string
	for _, e := range events {
		out = append(out, fmt.Sprintf("%s:%s", e.Status, e.Path))
	}
	return out
}

func TestEngine_Compare(t *testing.T) {
	later := testutil.BaseTime.Add(time.Hour)

	t.Run("unchanged files are never hashed", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, fim.AlgorithmSHA1, map[string]string{"a.txt": "alpha", "sub/b.txt": "beta"})

		result := f.compare(t, 4)
		if result.HasChanges() {
			t.Errorf("unexpected events %v", eventStrings(result.Events))
		}
		if result.Unchanged != 2 || result.Scanned != 2 {
			t.Errorf("Unchanged = %d, Scanned = %d, want 2, 2", result.Unchanged, result.Scanned)
		}
		if f.hasher.Calls() != 0 || result.Hashed != 0 {
			t.Errorf("hash calls = %d, Hashed = %d, want 0", f.hasher.Calls(), result.Hashed)
		}
	})

	t.Run("touched file with same content is a false positive", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, fim.AlgorithmSHA256, map[string]string{"a.txt": "alpha"})
		f.tree.Touch("a.txt", later)

		result := f.compare(t, 1)
		if result.HasChanges() {
			t.Errorf("false positive reported as change: %v", eventStrings(result.Events))
		}
		if !reflect.DeepEqual(result.FalsePositives, []string{"a.txt"}) {
			t.Errorf("FalsePositives = %v, want [a.txt]", result.FalsePositives)
		}
		if f.hasher.Calls() != 1 || result.Hashed != 1 {
			t.Errorf("hash calls = %d, Hashed = %d, want 1", f.hasher.Calls(), result.Hashed)
		}
	})

	t.Run("content change with same size is modified", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, fim.AlgorithmSHA1, map[string]string{"a.txt": "alpha"})
		f.tree.Write("a.txt", "ALPHA", later)

		result := f.compare(t, 2)
		if len(result.Events) != 1 {
			t.Fatalf("events = %v, want one modified", eventStrings(result.Events))
		}
		ev := result.Events[0]
		oldHash := testutil.Digest(t, fim.AlgorithmSHA1, "alpha")
		newHash := testutil.Digest(t, fim.AlgorithmSHA1, "ALPHA")
		if ev.Status != fim.StatusModified || ev.Path != "a.txt" {
			t.Errorf("event = %+v", ev)
		}
		if ev.OldHash != oldHash || ev.NewHash != newHash {
			t.Errorf("hashes = %s -> %s, want full digests %s -> %s", ev.OldHash, ev.NewHash, oldHash, newHash)
		}
		if ev.ShortOldHash() != oldHash[:8] || ev.ShortNewHash() != newHash[:8] {
			t.Errorf("short hashes = %s -> %s", ev.ShortOldHash(), ev.ShortNewHash())
		}
	})

	t.Run("size change is modified", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, fim.AlgorithmSHA512, map[string]string{"a.txt": "alpha"})
		f.tree.Write("a.txt", "alpha, now longer", testutil.BaseTime)

		result := f.compare(t, 2)
		if got := eventStrings(result.Events); !reflect.DeepEqual(got, []string{"modified:a.txt"}) {
			t.Errorf("events = %v", got)
		}
		if len(result.Events[0].NewHash) != 128 {
			t.Errorf("new hash should use the baseline algorithm, got length %d", len(result.Events[0].NewHash))
		}
	})

	t.Run("new file is reported without hashing", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, fim.AlgorithmSHA1, map[string]string{"a.txt": "alpha"})
		f.tree.Write("z.txt", "zulu", later)

		result := f.compare(t, 2)
		if got := eventStrings(result.Events); !reflect.DeepEqual(got, []string{"new:z.txt"}) {
			t.Errorf("events = %v", got)
		}
		if f.hasher.Calls() != 0 {
			t.Errorf("hash calls = %d, want 0", f.hasher.Calls())
		}
	})

	t.Run("deleted file yields exactly one deleted event", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, fim.AlgorithmSHA1, map[string]string{"a.txt": "alpha", "b.txt": "beta", "c.txt": "gamma"})
		f.tree.Remove("b.txt")

		result := f.compare(t, 2)
		if got := eventStrings(result.Events); !reflect.DeepEqual(got, []string{"deleted:b.txt"}) {
			t.Errorf("events = %v, want [deleted:b.txt]", got)
		}
		if result.Unchanged != 2 {
			t.Errorf("Unchanged = %d, want 2", result.Unchanged)
		}
		if ev := result.Events[0]; ev.OldHash != "" || ev.NewHash != "" {
			t.Errorf("deleted event should carry no hashes: %+v", ev)
		}
	})

	t.Run("empty tree against baseline deletes everything", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, fim.AlgorithmSHA1, map[string]string{"b.txt": "beta", "a.txt": "alpha"})
		f.tree.Remove("a.txt")
		f.tree.Remove("b.txt")

		result := f.compare(t, 2)
		if got := eventStrings(result.Events); !reflect.DeepEqual(got, []string{"deleted:a.txt", "deleted:b.txt"}) {
			t.Errorf("events = %v", got)
		}
	})

	t.Run("events are ordered by scan then deletions", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, fim.AlgorithmSHA1, map[string]string{
			"a.txt": "alpha", "c.txt": "gamma", "e.txt": "echo", "g.txt": "golf",
		})
		f.tree.Write("b.txt", "new", later)
		f.tree.Write("e.txt", "ECHO!", later)
		f.tree.Remove("g.txt")
		f.tree.Remove("c.txt")

		result := f.compare(t, 3)
		want := []string{"new:b.txt", "modified:e.txt", "deleted:c.txt", "deleted:g.txt"}
		if got := eventStrings(result.Events); !reflect.DeepEqual(got, want) {
			t.Errorf("events = %v, want %v", got, want)
		}
		if result.Count(fim.StatusDeleted) != 2 || result.Count(fim.StatusNew) != 1 || result.Count(fim.StatusModified) != 1 {
			t.Errorf("counts wrong: %v", eventStrings(result.Events))
		}
	})

	t.Run("recreated file with identical metadata is unchanged", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, fim.AlgorithmSHA1, map[string]string{"a.txt": "alpha"})
		f.tree.Remove("a.txt")
		f.tree.Write("a.txt", "alpha", testutil.BaseTime)

		result := f.compare(t, 1)
		if result.HasChanges() || result.Unchanged != 1 {
			t.Errorf("events = %v, unchanged = %d", eventStrings(result.Events), result.Unchanged)
		}
	})

	t.Run("hash failure is a per-file error, not a change", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, fim.AlgorithmSHA1, map[string]string{"a.txt": "alpha", "b.txt": "beta"})
		f.tree.Write("a.txt", "ALPHA", later)
		f.tree.Write("b.txt", "BETA", later)
		f.hasher.FailOn(f.tree.Path("a.txt"), errors.New("permission denied"))

		result := f.compare(t, 2)
		if got := eventStrings(result.Events); !reflect.DeepEqual(got, []string{"modified:b.txt"}) {
			t.Errorf("events = %v, want only b.txt modified", got)
		}
		if len(result.Errors) != 1 {
			t.Fatalf("errors = %v, want 1", result.Errors)
		}
		if fe := result.Errors[0]; fe.Path != "a.txt" || fe.Op != "hash" {
			t.Errorf("error = %+v, want hash error keyed by a.txt", fe)
		}
	})
}

func TestEngine_ScanErrorsAreNotDeletions(t *testing.T) {
	t.Parallel()
	f := newFixture(t, fim.AlgorithmSHA1, map[string]string{"a.txt": "alpha", "locked.txt": "secret"})

	scan, err := f.tree.Scanner(nil).Scan(f.tree.Root)
	if err != nil {
		t.Fatal(err)
	}
	// Simulate a file that was listed but could not be examined.
	var kept []fim.ScanEntry
	for _, e := range scan.Entries {
		if e.Path != "locked.txt" {
			kept = append(kept, e)
		}
	}
	scan.Entries = kept
	scan.Errors = append(scan.Errors, &fim.FileError{Path: "locked.txt", Op: "scan", Err: errors.New("permission denied")})

	result, err := fim.NewEngine(f.hasher, fim.NewNopLogger(), 2).Compare(f.baseline, scan, f.algo)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if result.HasChanges() {
		t.Errorf("unreadable file reported as change: %v", eventStrings(result.Events))
	}
	if len(result.Errors) != 1 || result.Errors[0].Path != "locked.txt" {
		t.Errorf("errors = %v", result.Errors)
	}
}

// unreadableDirFs fails to open one directory, as a permission error would.
type unreadableDirFs struct {
	afero.Fs
	dir string
}

func (f unreadableDirFs) Open(name string) (afero.File, error) {
	if name == f.dir {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrPermission}
	}
	return f.Fs.Open(name)
}

func TestEngine_UnreadableDirectoryIsNotDeleted(t *testing.T) {
	t.Parallel()
	f := newFixture(t, fim.AlgorithmSHA1, map[string]string{
		"a.txt":         "alpha",
		"secret/x.txt":  "x",
		"secret/y.txt":  "y",
		"secretive.txt": "not inside",
	})
	f.tree.Remove("secretive.txt")

	scanner := fimfs.NewTreeScanner(unreadableDirFs{Fs: f.tree.Fs, dir: f.tree.Path("secret")}, nil)
	scan, err := scanner.Scan(f.tree.Root)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	result, err := fim.NewEngine(f.hasher, fim.NewNopLogger(), 2).Compare(f.baseline, scan, f.algo)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	want := []string{"deleted:secretive.txt"}
	if got := eventStrings(result.Events); !reflect.DeepEqual(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
	if len(result.Errors) != 1 || result.Errors[0].Path != "secret" {
		t.Errorf("errors = %v, want one error for secret", result.Errors)
	}
}

func TestEngine_AlgorithmMismatch(t *testing.T) {
	t.Parallel()
	f := newFixture(t, fim.AlgorithmSHA256, map[string]string{"a.txt": "alpha"})
	f.tree.Write("a.txt", "changed", testutil.BaseTime.Add(time.Minute))

	scan, err := f.tree.Scanner(nil).Scan(f.tree.Root)
	if err != nil {
		t.Fatal(err)
	}
	_, err = fim.NewEngine(f.hasher, fim.NewNopLogger(), 2).Compare(f.baseline, scan, fim.AlgorithmSHA1)

	var mismatch *fim.AlgorithmMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Compare() error = %v, want *AlgorithmMismatchError", err)
	}
	if mismatch.Baseline != fim.AlgorithmSHA256 || mismatch.Requested != fim.AlgorithmSHA1 {
		t.Errorf("mismatch = %+v", mismatch)
	}
	if !strings.Contains(err.Error(), "SHA256") || !strings.Contains(err.Error(), "SHA1") {
		t.Errorf("message should name both algorithms: %s", err)
	}
	if f.hasher.Calls() != 0 {
		t.Errorf("hash calls = %d, want 0", f.hasher.Calls())
	}
}

func TestEngine_WorkerCountDoesNotChangeResult(t *testing.T) {
	t.Parallel()

	files := make(map[string]string)
	for i := 0; i < 60; i++ {
		files[fmt.Sprintf("dir%d/file%02d.txt", i%5, i)] = fmt.Sprintf("content %d", i)
	}

	var reference []string
	for _, workers := range []int{1, 2, 8, 32} {
		f := newFixture(t, fim.AlgorithmSHA256, files)
		for i := 0; i < 60; i += 3 {
			path := fmt.Sprintf("dir%d/file%02d.txt", i%5, i)
			switch i % 9 {
			case 0:
				f.tree.Write(path, fmt.Sprintf("CONTENT %d", i), testutil.BaseTime.Add(time.Second))
			case 3:
				f.tree.Touch(path, testutil.BaseTime.Add(time.Second))
			default:
				f.tree.Remove(path)
			}
		}

		result := f.compare(t, workers)
		got := append(eventStrings(result.Events), fmt.Sprintf("fp=%v", result.FalsePositives))
		if reference == nil {
			reference = got
			continue
		}
		if !reflect.DeepEqual(got, reference) {
			t.Errorf("workers=%d produced %v, want %v", workers, got, reference)
		}
	}
}
