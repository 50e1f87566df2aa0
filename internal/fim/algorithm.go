package fim

import (
	"fmt"
	"strings"
)

// Algorithm identifies the digest used for every hash in a baseline.
// Only the values declared below are valid.
type Algorithm string

const (
	AlgorithmSHA1   Algorithm = "sha1"
	AlgorithmSHA256 Algorithm = "sha256"
	AlgorithmSHA512 Algorithm = "sha512"

	// AlgorithmUnknown is returned by DetectAlgorithmFromLength when the
	// length matches none of the supported digests.
	AlgorithmUnknown Algorithm = "unknown"
)

// DefaultAlgorithm is used when neither the user nor the config picks one.
const DefaultAlgorithm = AlgorithmSHA1

// SupportedAlgorithms returns the valid algorithms in display order.
func SupportedAlgorithms() []Algorithm {
	return []Algorithm{AlgorithmSHA1, AlgorithmSHA256, AlgorithmSHA512}
}

// ParseAlgorithm converts a user-supplied name into an Algorithm.
// Matching is case-insensitive; anything outside the supported set is an error.
func ParseAlgorithm(name string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(name)))
	if !a.Valid() {
		return "", fmt.Errorf("invalid hash algorithm %q (valid: sha1, sha256, sha512)", name)
	}
	return a, nil
}

// Valid reports whether a is one of the supported algorithms.
func (a Algorithm) Valid() bool {
	switch a {
	case AlgorithmSHA1, AlgorithmSHA256, AlgorithmSHA512:
		return true
	}
	return false
}

// HexLen returns the length of a hex-encoded digest for a, or 0 if a is not valid.
func (a Algorithm) HexLen() int {
	switch a {
	case AlgorithmSHA1:
		return 40
	case AlgorithmSHA256:
		return 64
	case AlgorithmSHA512:
		return 128
	}
	return 0
}

// Display returns the upper-case name used in user-facing messages.
func (a Algorithm) Display() string {
	return strings.ToUpper(string(a))
}

func (a Algorithm) String() string { return string(a) }

// DetectAlgorithmFromLength guesses the algorithm of a hex digest from its length.
// It is a diagnostic for legacy data only; comparisons always use the
// baseline's declared algorithm.
func DetectAlgorithmFromLength(hash string) Algorithm {
	switch len(hash) {
	case 40:
		return AlgorithmSHA1
	case 64:
		return AlgorithmSHA256
	case 128:
		return AlgorithmSHA512
	}
	return AlgorithmUnknown
}
