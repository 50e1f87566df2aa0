package testutil

import (
	"fim-go/internal/encryption"
	"fim-go/internal/mirror"
)

// NewTestEncryptor creates a configured test encryptor that accepts any passphrase.
func NewTestEncryptor() *encryption.TestEncryptor {
	return encryption.NewTestEncryptor()
}

// NewTestMirror creates a new in-memory mirror for testing.
func NewTestMirror() *mirror.MemoryMirror {
	return mirror.NewMemoryMirror()
}
