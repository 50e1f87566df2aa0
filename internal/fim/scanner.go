package fim

// Scanner enumerates the regular files of a directory tree.
// It abstracts file access to enable testing without touching the real filesystem.
type Scanner interface {
	// Scan walks root recursively. Failures on individual entries are
	// collected in ScanResult.Errors; only a failure to read root itself
	// is returned as an error.
	Scan(root string) (*ScanResult, error)

	// Stat returns fresh size and mtime for a file found by Scan.
	Stat(fullPath string) (size int64, mtime float64, err error)
}
