// Package filex holds the small file-system helpers the agent needs for its
// image directory: directory creation, crash-safe writes with a checksum
// computed over the final bytes, and idempotent removal.
package filex

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// EnsureDir creates dir (and parents) if needed and returns its absolute path.
func EnsureDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("abs %s: %w", dir, err)
	}

	if err := os.MkdirAll(abs, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", abs, err)
	}

	return abs, nil
}

// WrittenFile describes a file produced by WriteFileAtomic.
type WrittenFile struct {
	Path     string
	Checksum string // lowercase hex SHA-256 of the bytes on disk
	Size     int64
}

// WriteFileAtomic streams r into path through a temporary file in the same
// directory, fsyncs it and renames it into place. The checksum is computed
// over exactly the bytes that were persisted. On error nothing is left
// behind at path.
func WriteFileAtomic(path string, r io.Reader) (WrittenFile, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o770); err != nil {
		return WrittenFile{}, fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return WrittenFile{}, fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), r)
	if err != nil {
		return WrittenFile{}, fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		return WrittenFile{}, fmt.Errorf("fsync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return WrittenFile{}, fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return WrittenFile{}, fmt.Errorf("rename %s: %w", path, err)
	}
	committed = true

	return WrittenFile{Path: path, Checksum: hex.EncodeToString(h.Sum(nil)), Size: n}, nil
}

// RemoveIfExists deletes path. A missing file is not an error, so a purge
// interrupted after the unlink can simply be repeated.
func RemoveIfExists(path string) (removed bool, err error) {
	err = os.Remove(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("remove %s: %w", path, err)
	}
}

// ChecksumFile returns the hex SHA-256 of the file at path.
func ChecksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
