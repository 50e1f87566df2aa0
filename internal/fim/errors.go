package fim

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by SnapshotStore.Load when no baseline exists.
var ErrNotFound = errors.New("no baseline found")

// AlgorithmMismatchError aborts a check whose requested algorithm differs
// from the one the baseline was created with.
type AlgorithmMismatchError struct {
	Baseline  Algorithm
	Requested Algorithm
}

func (e *AlgorithmMismatchError) Error() string {
	return fmt.Sprintf("hash algorithm mismatch: baseline uses %s, check requested %s (recreate the baseline with %s or check with %s)",
		e.Baseline.Display(), e.Requested.Display(), e.Requested, e.Baseline)
}

// PersistError reports that a baseline could not be written.
// The previously stored baseline, if any, is left untouched.
type PersistError struct {
	Location string
	Err      error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persisting baseline to %s: %v", e.Location, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// FileError is a per-file failure during a scan or hash. It is collected
// and reported; it never aborts the surrounding operation.
type FileError struct {
	Path string
	Op   string // "scan", "hash" or "stat"
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }
