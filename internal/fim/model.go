package fim

import (
	"fmt"
	"sort"
	"time"
)

// BaselineVersion is the schema version written into new baselines.
const BaselineVersion = "1.0"

// ShortHashLen is how many hex characters of a digest are shown in reports.
const ShortHashLen = 8

// FileRecord is the recorded state of one file at baseline time.
type FileRecord struct {
	Path  string  `json:"-"` // key in Baseline.Files
	Hash  string  `json:"hash"`
	Size  int64   `json:"size"`
	Mtime float64 `json:"mtime"` // seconds since the epoch; compared for equality only
}

// Baseline is a complete snapshot of a directory tree.
// It is created wholesale and never partially mutated.
type Baseline struct {
	Algorithm Algorithm
	CreatedAt string // kept verbatim so a load/save cycle is lossless
	Version   string
	Root      string
	Files     map[string]*FileRecord

	// Legacy is set when the baseline was read from the pre-metadata format
	// and its algorithm was assumed to be sha1.
	Legacy bool
}

// Validate checks that every record's hash length matches the algorithm.
func (b *Baseline) Validate() error {
	if !b.Algorithm.Valid() {
		return fmt.Errorf("invalid baseline algorithm %q", b.Algorithm)
	}
	want := b.Algorithm.HexLen()
	for path, rec := range b.Files {
		if len(rec.Hash) != want {
			return fmt.Errorf("record %s: hash length %d does not match %s (%d)", path, len(rec.Hash), b.Algorithm, want)
		}
		if rec.Size < 0 {
			return fmt.Errorf("record %s: negative size %d", path, rec.Size)
		}
	}
	return nil
}

// Paths returns the recorded paths in sorted order.
func (b *Baseline) Paths() []string {
	paths := make([]string, 0, len(b.Files))
	for p := range b.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// CreatedTime parses CreatedAt. Baselines written by other tools may carry
// a free-form timestamp, in which case ok is false.
func (b *Baseline) CreatedTime() (t time.Time, ok bool) {
	t, err := time.Parse(time.RFC3339Nano, b.CreatedAt)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// TotalSize returns the sum of all recorded file sizes.
func (b *Baseline) TotalSize() int64 {
	var total int64
	for _, rec := range b.Files {
		total += rec.Size
	}
	return total
}

// MtimeOf converts a modification time to the float representation stored
// in baselines. The same conversion is applied to scanned files, so equal
// times always produce equal floats.
func MtimeOf(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// ScanEntry is one regular file found by a Scanner.
type ScanEntry struct {
	Path     string // stable key, relative to the scan root
	FullPath string // path used to open the file
	Size     int64
	Mtime    float64
}

// ScanResult is the complete enumeration of a tree.
type ScanResult struct {
	Root    string
	Entries []ScanEntry
	Dirs    []string // relative directory paths, root excluded
	Errors  []*FileError
}

// ChangeStatus classifies a path in a check.
type ChangeStatus string

const (
	StatusUnchanged ChangeStatus = "unchanged"
	StatusModified  ChangeStatus = "modified"
	StatusNew       ChangeStatus = "new"
	StatusDeleted   ChangeStatus = "deleted"
)

// ChangeEvent is one entry in a check's change set.
// Full hashes are kept; only rendering truncates them.
type ChangeEvent struct {
	Path    string       `json:"path"`
	Status  ChangeStatus `json:"status"`
	OldHash string       `json:"old_hash,omitempty"`
	NewHash string       `json:"new_hash,omitempty"`
}

// ShortOldHash returns the display prefix of the baseline hash.
func (e ChangeEvent) ShortOldHash() string { return shortHash(e.OldHash) }

// ShortNewHash returns the display prefix of the current hash.
func (e ChangeEvent) ShortNewHash() string { return shortHash(e.NewHash) }

func shortHash(h string) string {
	if len(h) <= ShortHashLen {
		return h
	}
	return h[:ShortHashLen]
}

// CheckResult is the outcome of comparing a scan against a baseline.
type CheckResult struct {
	Algorithm Algorithm
	Events    []ChangeEvent // new, modified and deleted only

	Scanned        int      // files seen by the scan
	Unchanged      int      // matched on size and mtime, not hashed
	FalsePositives []string // metadata drifted but content is identical
	Hashed         int      // number of files hashed
	Errors         []*FileError
}

// HasChanges reports whether any new, modified or deleted event was found.
func (r *CheckResult) HasChanges() bool {
	return len(r.Events) > 0
}

// Count returns the number of events with the given status.
func (r *CheckResult) Count(status ChangeStatus) int {
	n := 0
	for _, e := range r.Events {
		if e.Status == status {
			n++
		}
	}
	return n
}

// BaselineInfo summarises a stored baseline.
type BaselineInfo struct {
	Algorithm Algorithm
	CreatedAt string
	Version   string
	Root      string
	FileCount int
	TotalSize int64
	Legacy    bool
	Location  string
}

// BaselineResult is returned by CreateBaseline.
type BaselineResult struct {
	Baseline *Baseline
	Errors   []*FileError
}
