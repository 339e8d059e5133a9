package encryption

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// Low work factor keeps scrypt fast in tests.
const testWorkFactor = 10

func newTestAgeEncryptor(t *testing.T, passphrase string) *AgeEncryptor {
	t.Helper()
	e, err := NewAgeEncryptor(passphrase, testWorkFactor)
	if err != nil {
		t.Fatalf("NewAgeEncryptor() error = %v", err)
	}
	return e
}

func TestNewAgeEncryptor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		passphrase string
		workFactor int
		wantErr    bool
		wantFactor int
	}{
		{name: "default work factor", passphrase: "pw", workFactor: 0, wantFactor: DefaultWorkFactor},
		{name: "explicit work factor", passphrase: "pw", workFactor: 12, wantFactor: 12},
		{name: "empty passphrase", passphrase: "", wantErr: true},
		{name: "work factor too large", passphrase: "pw", workFactor: 31, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, err := NewAgeEncryptor(tt.passphrase, tt.workFactor)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewAgeEncryptor() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && e.workFactor != tt.wantFactor {
				t.Errorf("workFactor = %d, want %d", e.workFactor, tt.wantFactor)
			}
		})
	}
}

func TestAgeEncryptor_EncryptDecrypt(t *testing.T) {
	t.Parallel()
	e := newTestAgeEncryptor(t, "correct horse battery staple")
	plaintext := []byte(`{"schemaVersion":1,"state":{"items":[]}}`)

	var sealed bytes.Buffer
	if err := e.Encrypt(bytes.NewReader(plaintext), &sealed); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if !strings.HasPrefix(sealed.String(), "-----BEGIN AGE ENCRYPTED FILE-----") {
		t.Errorf("ciphertext is not armored: %q", sealed.String()[:min(40, sealed.Len())])
	}
	if bytes.Contains(sealed.Bytes(), []byte("schemaVersion")) {
		t.Error("ciphertext contains plaintext")
	}

	var opened bytes.Buffer
	if err := e.Decrypt(&sealed, &opened); err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if !bytes.Equal(opened.Bytes(), plaintext) {
		t.Errorf("Decrypt() = %q, want %q", opened.Bytes(), plaintext)
	}
}

func TestAgeEncryptor_WrongPassphrase(t *testing.T) {
	t.Parallel()
	sealer := newTestAgeEncryptor(t, "right")
	opener := newTestAgeEncryptor(t, "wrong")

	var sealed bytes.Buffer
	if err := sealer.Encrypt(strings.NewReader("secret"), &sealed); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	var out bytes.Buffer
	err := opener.Decrypt(&sealed, &out)
	if !errors.Is(err, ErrWrongPassphrase) {
		t.Errorf("Decrypt() error = %v, want ErrWrongPassphrase", err)
	}
}

func TestAgeEncryptor_DecryptGarbage(t *testing.T) {
	t.Parallel()
	e := newTestAgeEncryptor(t, "pw")

	var out bytes.Buffer
	if err := e.Decrypt(strings.NewReader(`{"items":[]}`), &out); err == nil {
		t.Error("Decrypt() of plaintext JSON expected error")
	}
}
