package linkfile

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"reorder-go/internal/reorder"
)

// EncryptedPrefix marks refs whose contents are encrypted at rest.
const EncryptedPrefix = "age+"

// EncryptedFile encrypts everything written to an underlying linked file and
// decrypts what it reads. An empty underlying file reads as empty.
type EncryptedFile struct {
	inner reorder.LinkedFile
	enc   reorder.Encryptor
}

var _ reorder.LinkedFile = (*EncryptedFile)(nil)

func NewEncryptedFile(inner reorder.LinkedFile, enc reorder.Encryptor) *EncryptedFile {
	return &EncryptedFile{inner: inner, enc: enc}
}

func (f *EncryptedFile) Ref() string  { return EncryptedPrefix + f.inner.Ref() }
func (f *EncryptedFile) Name() string { return f.inner.Name() }

func (f *EncryptedFile) Read(ctx context.Context) (string, error) {
	sealed, err := f.inner.Read(ctx)
	if err != nil || strings.TrimSpace(sealed) == "" {
		return sealed, err
	}
	var plain bytes.Buffer
	if err := f.enc.Decrypt(strings.NewReader(sealed), &plain); err != nil {
		return "", fmt.Errorf("decrypting %s: %w", f.inner.Name(), err)
	}
	return plain.String(), nil
}

func (f *EncryptedFile) Write(ctx context.Context, data string) error {
	var sealed bytes.Buffer
	if err := f.enc.Encrypt(strings.NewReader(data), &sealed); err != nil {
		return fmt.Errorf("encrypting %s: %w", f.inner.Name(), err)
	}
	return f.inner.Write(ctx, sealed.String())
}

func (f *EncryptedFile) QueryPermission(ctx context.Context) (reorder.Permission, error) {
	return f.inner.QueryPermission(ctx)
}

func (f *EncryptedFile) RequestPermission(ctx context.Context) (reorder.Permission, error) {
	return f.inner.RequestPermission(ctx)
}
