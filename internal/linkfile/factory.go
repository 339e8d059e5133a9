package linkfile

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"

	"reorder-go/internal/config"
	"reorder-go/internal/encryption"
	"reorder-go/internal/reorder"
)

// Opener turns persisted refs back into linked files. Supported refs:
//
//	file:///abs/path.json   (or a bare path)
//	s3://bucket/key.json
//	mem://name              (process-local)
//
// Any of them may carry the "age+" prefix for encryption at rest.
type Opener struct {
	sync    config.SyncConfig
	secrets func() (string, error)

	mu       sync.Mutex
	memory   map[string]*MemoryFile
	s3       S3API
	uploader Uploader
	enc      reorder.Encryptor
}

var _ reorder.Opener = (*Opener)(nil)

// OpenerOption configures an Opener.
type OpenerOption func(*Opener)

// WithS3Client injects the S3 client and uploader instead of building them
// from config on first use.
func WithS3Client(client S3API, uploader Uploader) OpenerOption {
	return func(o *Opener) {
		o.s3 = client
		o.uploader = uploader
	}
}

// WithEncryptor injects the encryptor used for "age+" refs.
func WithEncryptor(enc reorder.Encryptor) OpenerOption {
	return func(o *Opener) { o.enc = enc }
}

// NewOpenerFromConfig creates an Opener. passphrase is only consulted the
// first time an encrypted file is read or written.
func NewOpenerFromConfig(cfg config.SyncConfig, passphrase func() (string, error), opts ...OpenerOption) *Opener {
	o := &Opener{
		sync:    cfg,
		secrets: passphrase,
		memory:  make(map[string]*MemoryFile),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Open resolves ref.
func (o *Opener) Open(ref string) (reorder.LinkedFile, error) {
	if inner, ok := strings.CutPrefix(ref, EncryptedPrefix); ok {
		file, err := o.openPlain(inner)
		if err != nil {
			return nil, err
		}
		return NewEncryptedFile(file, lazyEncryptor{o}), nil
	}
	return o.openPlain(ref)
}

func (o *Opener) openPlain(ref string) (reorder.LinkedFile, error) {
	switch {
	case ref == "":
		return nil, fmt.Errorf("empty link ref")
	case strings.HasPrefix(ref, "mem://"):
		return o.Memory(strings.TrimPrefix(ref, "mem://")), nil
	case strings.HasPrefix(ref, "s3://"):
		bucket, key, err := ParseS3Ref(ref)
		if err != nil {
			return nil, err
		}
		client, uploader, err := o.s3Client()
		if err != nil {
			return nil, err
		}
		return NewS3File(client, uploader, bucket, key), nil
	case strings.HasPrefix(ref, "file://"):
		return NewLocalFile(strings.TrimPrefix(ref, "file://"))
	case strings.Contains(ref, "://"):
		return nil, fmt.Errorf("unsupported link ref: %q", ref)
	default:
		return NewLocalFile(ref)
	}
}

// Memory returns the process-local file registered under name, creating it
// on first use.
func (o *Opener) Memory(name string) *MemoryFile {
	o.mu.Lock()
	defer o.mu.Unlock()
	f, ok := o.memory[name]
	if !ok {
		f = NewMemoryFile(name)
		o.memory[name] = f
	}
	return f
}

func (o *Opener) s3Client() (S3API, Uploader, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.s3 != nil {
		return o.s3, o.uploader, nil
	}
	client, err := NewS3Client(context.Background(), o.sync)
	if err != nil {
		return nil, nil, err
	}
	o.s3 = client
	o.uploader = manager.NewUploader(client)
	return o.s3, o.uploader, nil
}

func (o *Opener) encryptor() (reorder.Encryptor, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.enc != nil {
		return o.enc, nil
	}
	if o.secrets == nil {
		return nil, fmt.Errorf("encrypted link needs a passphrase")
	}
	passphrase, err := o.secrets()
	if err != nil {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}
	enc, err := encryption.NewEncryptorFromConfig(o.sync, passphrase)
	if err != nil {
		return nil, err
	}
	o.enc = enc
	return enc, nil
}

// lazyEncryptor defers building the encryptor, and so asking for the
// passphrase, until contents are actually sealed or opened.
type lazyEncryptor struct{ o *Opener }

func (l lazyEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	enc, err := l.o.encryptor()
	if err != nil {
		return err
	}
	return enc.Encrypt(r, w)
}

func (l lazyEncryptor) Decrypt(r io.Reader, w io.Writer) error {
	enc, err := l.o.encryptor()
	if err != nil {
		return err
	}
	return enc.Decrypt(r, w)
}

// Picker links a fixed ref, as chosen on the command line. An empty ref
// counts as a cancelled pick.
type Picker struct {
	Opener  *Opener
	Ref     string
	Encrypt bool
}

var _ reorder.Picker = Picker{}

func (p Picker) Pick(ctx context.Context) (reorder.LinkedFile, error) {
	ref := strings.TrimSpace(p.Ref)
	if ref == "" {
		return nil, reorder.ErrCancelled
	}
	if p.Encrypt && !strings.HasPrefix(ref, EncryptedPrefix) {
		ref = EncryptedPrefix + ref
	}
	return p.Opener.Open(ref)
}
