package encryption

import (
	"fmt"

	"reorder-go/internal/config"
	"reorder-go/internal/reorder"
)

// NewEncryptorFromConfig creates the Encryptor selected by cfg.Cipher.
func NewEncryptorFromConfig(cfg config.SyncConfig, passphrase string) (reorder.Encryptor, error) {
	switch cfg.Cipher {
	case "age", "":
		return NewAgeEncryptor(passphrase, cfg.WorkFactor)
	case "test":
		return NewTestEncryptor(passphrase), nil
	default:
		return nil, fmt.Errorf("unknown cipher: %q", cfg.Cipher)
	}
}
