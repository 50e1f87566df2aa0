package fim

import (
	"errors"
	"runtime"
	"strings"

	"github.com/sourcegraph/conc/pool"
)

// Engine classifies a scan against a baseline.
//
// Files whose size and mtime both match the baseline are trusted as
// unchanged and never read. Any metadata difference triggers a re-hash with
// the baseline's algorithm; a matching hash is reported as a false positive,
// not as a modification. Deletions are computed only after the whole scan
// has been examined.
type Engine struct {
	hasher  Hasher
	logger  Logger
	workers int
}

// NewEngine creates an Engine. workers bounds concurrent hashing;
// values below 1 mean runtime.NumCPU().
func NewEngine(hasher Hasher, logger Logger, workers int) *Engine {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	return &Engine{hasher: hasher, logger: logger, workers: workers}
}

// comparison is the per-path outcome of step 2. Exactly one of event,
// falsePositive, unchanged or err is meaningful.
type comparison struct {
	event         *ChangeEvent
	unchanged     bool
	falsePositive bool
	hashed        bool
	err           *FileError
}

// Compare runs a check of scan against baseline using algo.
// It fails with *AlgorithmMismatchError, before reading any file, when algo
// is not the baseline's algorithm.
func (e *Engine) Compare(baseline *Baseline, scan *ScanResult, algo Algorithm) (*CheckResult, error) {
	if algo != baseline.Algorithm {
		return nil, &AlgorithmMismatchError{Baseline: baseline.Algorithm, Requested: algo}
	}

	result := &CheckResult{
		Algorithm: algo,
		Scanned:   len(scan.Entries),
	}

	// Paths that were listed but could not be examined still exist, so they
	// must not be reported as deleted.
	observed := make(map[string]struct{}, len(scan.Entries)+len(scan.Errors))
	for _, fe := range scan.Errors {
		observed[fe.Path] = struct{}{}
		result.Errors = append(result.Errors, fe)
	}

	outcomes := make([]comparison, len(scan.Entries))
	var pending []int

	for i, entry := range scan.Entries {
		observed[entry.Path] = struct{}{}

		rec, ok := baseline.Files[entry.Path]
		if !ok {
			outcomes[i].event = &ChangeEvent{Path: entry.Path, Status: StatusNew}
			continue
		}
		if entry.Size == rec.Size && entry.Mtime == rec.Mtime {
			outcomes[i].unchanged = true
			continue
		}
		pending = append(pending, i)
	}

	forEach(e.workers, len(pending), func(j int) {
		i := pending[j]
		entry := scan.Entries[i]
		outcomes[i] = e.rehash(entry, baseline.Files[entry.Path], algo)
	})

	for i, out := range outcomes {
		path := scan.Entries[i].Path
		if out.hashed {
			result.Hashed++
		}
		switch {
		case out.err != nil:
			e.logger.Warn("error checking file", "path", path, "error", out.err.Err)
			result.Errors = append(result.Errors, out.err)
		case out.unchanged:
			e.logger.Debug("unchanged", "path", path)
			result.Unchanged++
		case out.falsePositive:
			e.logger.Info("false alarm: size or mtime changed but content is identical", "path", path)
			result.FalsePositives = append(result.FalsePositives, path)
		case out.event != nil:
			result.Events = append(result.Events, *out.event)
		}
	}

	for _, path := range baseline.Paths() {
		if _, ok := observed[path]; ok || underFailedPath(path, scan.Errors) {
			continue
		}
		result.Events = append(result.Events, ChangeEvent{Path: path, Status: StatusDeleted})
	}

	return result, nil
}

// rehash handles a path whose size or mtime differs from the baseline.
func (e *Engine) rehash(entry ScanEntry, rec *FileRecord, algo Algorithm) comparison {
	e.logger.Debug("size/mtime changed, hashing", "path", entry.Path)

	sum, err := e.hasher.Hash(entry.FullPath, algo)
	if err != nil {
		return comparison{err: asFileError(entry.Path, "hash", err)}
	}
	if sum == rec.Hash {
		return comparison{falsePositive: true, hashed: true}
	}
	return comparison{
		hashed: true,
		event: &ChangeEvent{
			Path:    entry.Path,
			Status:  StatusModified,
			OldHash: rec.Hash,
			NewHash: sum,
		},
	}
}

// forEach calls fn for 0..n-1 on at most workers goroutines and waits for
// all calls to return. fn must only write to state owned by its index.
func forEach(workers, n int, fn func(i int)) {
	if n == 0 {
		return
	}
	if workers < 1 {
		workers = 1
	}
	p := pool.New().WithMaxGoroutines(workers)
	for i := 0; i < n; i++ {
		i := i
		p.Go(func() { fn(i) })
	}
	p.Wait()
}

// underFailedPath reports whether path lies inside a directory the scan
// could not read. Its contents are unknown, not deleted.
func underFailedPath(path string, errs []*FileError) bool {
	for _, fe := range errs {
		if strings.HasPrefix(path, fe.Path+"/") {
			return true
		}
	}
	return false
}

// asFileError normalises err into a *FileError keyed by the scan path.
func asFileError(path, op string, err error) *FileError {
	var fe *FileError
	if errors.As(err, &fe) {
		return &FileError{Path: path, Op: fe.Op, Err: fe.Err}
	}
	return &FileError{Path: path, Op: op, Err: err}
}
