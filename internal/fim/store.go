package fim

// SnapshotStore persists the single live baseline.
type SnapshotStore interface {
	// Save replaces the stored baseline. On failure it returns a
	// *PersistError and the previous baseline is left intact.
	Save(b *Baseline) error

	// Load returns the stored baseline, or ErrNotFound.
	// Legacy baselines load with Algorithm sha1 and Legacy set.
	Load() (*Baseline, error)

	// Location describes where the baseline lives, for messages and for
	// excluding the baseline file from scans.
	Location() string
}
