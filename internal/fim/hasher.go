package fim

// Hasher computes file digests.
type Hasher interface {
	// Hash streams the file at path through algo and returns the lowercase
	// hex digest. Open and read failures are returned as *FileError.
	Hash(path string, algo Algorithm) (string, error)
}
