package encryption

import (
	"errors"
	"fmt"
	"io"

	"filippo.io/age"
	"filippo.io/age/armor"

	"reorder-go/internal/reorder"
)

// DefaultWorkFactor is the scrypt log2 cost used when none is configured.
// age's own default is 18; sync files are rewritten often, so it is lower.
const DefaultWorkFactor = 15

// ErrWrongPassphrase is returned by Decrypt when the passphrase does not open
// the file.
var ErrWrongPassphrase = errors.New("wrong passphrase")

// AgeEncryptor seals data with an age scrypt passphrase recipient and ASCII
// armor, so encrypted sync files stay text.
type AgeEncryptor struct {
	passphrase string
	workFactor int
}

var _ reorder.Encryptor = (*AgeEncryptor)(nil)

// NewAgeEncryptor creates an AgeEncryptor. A workFactor of zero or less uses
// DefaultWorkFactor.
func NewAgeEncryptor(passphrase string, workFactor int) (*AgeEncryptor, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase must not be empty")
	}
	if workFactor <= 0 {
		workFactor = DefaultWorkFactor
	}
	if workFactor > 30 {
		return nil, fmt.Errorf("work factor %d out of range", workFactor)
	}
	return &AgeEncryptor{passphrase: passphrase, workFactor: workFactor}, nil
}

// Encrypt reads plaintext from r and writes armored ciphertext to w.
func (e *AgeEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	recipient, err := age.NewScryptRecipient(e.passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt recipient: %w", err)
	}
	recipient.SetWorkFactor(e.workFactor)

	armorWriter := armor.NewWriter(w)
	encWriter, err := age.Encrypt(armorWriter, recipient)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.Copy(encWriter, r); err != nil {
		return fmt.Errorf("encrypting data: %w", err)
	}
	if err := encWriter.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}
	if err := armorWriter.Close(); err != nil {
		return fmt.Errorf("finalizing armor: %w", err)
	}
	return nil
}

// Decrypt reads armored ciphertext from r and writes plaintext to w.
func (e *AgeEncryptor) Decrypt(r io.Reader, w io.Writer) error {
	identity, err := age.NewScryptIdentity(e.passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt identity: %w", err)
	}
	identity.SetMaxWorkFactor(max(e.workFactor, 22))

	decReader, err := age.Decrypt(armor.NewReader(r), identity)
	if errors.Is(err, age.ErrIncorrectIdentity) {
		return ErrWrongPassphrase
	}
	if err != nil {
		return fmt.Errorf("creating decrypted reader: %w", err)
	}
	if _, err := io.Copy(w, decReader); err != nil {
		return fmt.Errorf("decrypting data: %w", err)
	}
	return nil
}
