// Package fs holds the small file primitives shared by the directory store
// and local linked files.
package fs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// TempPattern names the scratch files created by WriteFileAtomic.
const TempPattern = ".tmp-*"

// ResolveFile turns a raw path into an absolute path usable as a data file.
// The file itself may not exist yet, but its parent directory must. Existing
// directories, devices, pipes and sockets are rejected.
func ResolveFile(rawPath string) (string, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return "", fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Stat(absPath)
	if errors.Is(err, fs.ErrNotExist) {
		parent, perr := os.Stat(filepath.Dir(absPath))
		if perr != nil {
			return "", fmt.Errorf("stat parent directory: %w", perr)
		}
		if !parent.IsDir() {
			return "", fmt.Errorf("parent is not a directory: %s", filepath.Dir(absPath))
		}
		return absPath, nil
	}
	if err != nil {
		return "", fmt.Errorf("stat path: %w", err)
	}

	mode := info.Mode()
	switch {
	case mode.IsDir():
		return "", fmt.Errorf("path is a directory: %s", absPath)
	case mode&os.ModeDevice != 0:
		return "", fmt.Errorf("device files not supported: %s", absPath)
	case mode&os.ModeNamedPipe != 0:
		return "", fmt.Errorf("named pipes not supported: %s", absPath)
	case mode&os.ModeSocket != 0:
		return "", fmt.Errorf("sockets not supported: %s", absPath)
	}
	return absPath, nil
}

// WriteFileAtomic replaces path with data using a temp file in the same
// directory and a rename, so readers never see a partial file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), TempPattern)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Chmod(perm); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
