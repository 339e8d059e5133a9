package linkfile

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"

	"reorder-go/internal/fs"
	"reorder-go/internal/reorder"
)

// LocalFile is a linked file on a local or mounted filesystem, such as a
// folder kept in sync by a cloud drive client.
type LocalFile struct {
	path string
}

var _ reorder.LinkedFile = (*LocalFile)(nil)

// NewLocalFile links the file at path. The file need not exist yet.
func NewLocalFile(path string) (*LocalFile, error) {
	abs, err := fs.ResolveFile(path)
	if err != nil {
		return nil, err
	}
	return &LocalFile{path: abs}, nil
}

func (f *LocalFile) Ref() string  { return "file://" + filepath.ToSlash(f.path) }
func (f *LocalFile) Name() string { return filepath.Base(f.path) }

// Path returns the absolute path of the file.
func (f *LocalFile) Path() string { return f.path }

func (f *LocalFile) Read(ctx context.Context) (string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, iofs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", classify("reading "+f.path, err)
	}
	return string(data), nil
}

func (f *LocalFile) Write(ctx context.Context, data string) error {
	if err := fs.WriteFileAtomic(f.path, []byte(data), 0o600); err != nil {
		return classify("writing "+f.path, err)
	}
	return nil
}

// QueryPermission probes read access to the file and write access to its
// directory.
func (f *LocalFile) QueryPermission(ctx context.Context) (reorder.Permission, error) {
	if file, err := os.Open(f.path); err == nil {
		file.Close()
	} else if errors.Is(err, iofs.ErrPermission) {
		return reorder.PermissionDenied, nil
	} else if !errors.Is(err, iofs.ErrNotExist) {
		return "", fmt.Errorf("probing %s: %w", f.path, err)
	}

	probe, err := os.CreateTemp(filepath.Dir(f.path), fs.TempPattern)
	if errors.Is(err, iofs.ErrPermission) {
		return reorder.PermissionDenied, nil
	}
	if err != nil {
		return "", fmt.Errorf("probing %s: %w", filepath.Dir(f.path), err)
	}
	probe.Close()
	os.Remove(probe.Name())
	return reorder.PermissionGranted, nil
}

// RequestPermission cannot grant anything for a local file; it re-checks.
func (f *LocalFile) RequestPermission(ctx context.Context) (reorder.Permission, error) {
	return f.QueryPermission(ctx)
}

func classify(op string, err error) error {
	if errors.Is(err, iofs.ErrPermission) {
		return fmt.Errorf("%s: %w: %v", op, reorder.ErrPermissionDenied, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
