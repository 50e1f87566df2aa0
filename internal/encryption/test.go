package encryption

import (
	"bytes"
	"fmt"
	"io"

	"fim-go/internal/fim"
)

// testHeader marks data "encrypted" by TestEncryptor.
var testHeader = []byte("FIMENC\x00\x00")

// TestEncryptor is a deterministic stand-in for AgeEncryptor. It prepends
// a fixed header on encryption and strips it on decryption, so ciphertext
// differs from plaintext without any key material.
type TestEncryptor struct {
	configured bool
	passphrase string
}

var _ fim.Encryptor = (*TestEncryptor)(nil)

// NewTestEncryptor creates a TestEncryptor that is already configured and
// accepts any passphrase.
func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{configured: true}
}

// NewUnconfiguredTestEncryptor creates a TestEncryptor that needs Setup
// first and then only unlocks with the same passphrase.
func NewUnconfiguredTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	if e.configured && e.passphrase != "" {
		return ErrKeysExist
	}
	e.configured = true
	e.passphrase = passphrase
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if !e.configured {
		return fmt.Errorf("encryption keys not configured")
	}
	if _, err := w.Write(testHeader); err != nil {
		return fmt.Errorf("writing test header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (fim.DecryptionContext, error) {
	if !e.configured {
		return nil, fmt.Errorf("encryption keys not configured")
	}
	if e.passphrase != "" && passphrase != e.passphrase {
		return nil, fmt.Errorf("incorrect passphrase")
	}
	return &TestDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool {
	return e.configured
}

// TestDecryptionContext strips the header added by TestEncryptor.
type TestDecryptionContext struct{}

var _ fim.DecryptionContext = (*TestDecryptionContext)(nil)

func (c *TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(header, testHeader) {
		return fmt.Errorf("invalid test encryption header")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
