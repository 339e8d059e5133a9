package encryption

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"reorder-go/internal/reorder"
)

var testMagic = []byte("RORDENC\x00")

// TestEncryptor is a fast, insecure stand-in for AgeEncryptor. Output is a
// magic header, a tag derived from the passphrase, then the plaintext.
type TestEncryptor struct {
	tag [8]byte
}

var _ reorder.Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor(passphrase string) *TestEncryptor {
	sum := sha256.Sum256([]byte(passphrase))
	e := &TestEncryptor{}
	copy(e.tag[:], sum[:])
	return e
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	header := append(append([]byte{}, testMagic...), e.tag[:]...)
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testMagic)+len(e.tag))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	if !bytes.Equal(header[:len(testMagic)], testMagic) {
		return errors.New("not sealed by the test cipher")
	}
	if !bytes.Equal(header[len(testMagic):], e.tag[:]) {
		return ErrWrongPassphrase
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
