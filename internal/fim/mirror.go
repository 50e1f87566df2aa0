package fim

import "io"

// Mirror stores an offsite copy of the baseline so that tampering with the
// local copy can be detected.
// All operations use io.Reader/io.Writer for streaming.
type Mirror interface {
	// Put stores a named object for a host, replacing any previous copy.
	// size is the number of bytes that will be read from r.
	Put(hostID string, name string, r io.Reader, size int64, version int64) error

	// Get writes the named object for a host to w.
	Get(hostID string, name string, w io.Writer) error

	// Version returns the version stored with the named object, or 0 if absent.
	Version(hostID string, name string) (int64, error)

	// ValidateSetup verifies that the mirror is accessible and properly configured.
	ValidateSetup() error
}
