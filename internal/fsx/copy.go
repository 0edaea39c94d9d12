package fsx

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// UnsupportedTypeError is returned for symlinks, devices, sockets and pipes.
type UnsupportedTypeError struct {
	Path string
	Mode os.FileMode
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported file type %s at %q", e.Mode.Type(), e.Path)
}

// CopyTree copies src (a file or directory) to dst, which must not exist.
// Modes are preserved and file contents are synced. Symlinks and special
// files are rejected rather than followed.
func CopyTree(src, dst string) error {
	fi, err := os.Lstat(src)
	if err != nil {
		return err
	}

	switch {
	case fi.Mode().IsRegular():
		return copyFile(src, dst, fi.Mode().Perm())
	case fi.IsDir():
		if err := os.Mkdir(dst, fi.Mode().Perm()|0o700); err != nil {
			return fmt.Errorf("failed to create directory %q: %w", dst, err)
		}
		entries, err := os.ReadDir(src)
		if err != nil {
			return fmt.Errorf("failed to read directory %q: %w", src, err)
		}
		for _, entry := range entries {
			if err := CopyTree(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
				return err
			}
		}
		return nil
	default:
		return &UnsupportedTypeError{Path: src, Mode: fi.Mode()}
	}
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %q: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return fmt.Errorf("failed to create %q: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy %q: %w", src, err)
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// HashFile returns the SHA-256 digest of the file at path.
func HashFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// VerifyTree checks that dst has the same shape as src and that every file
// matches in size and SHA-256 digest.
func VerifyTree(src, dst string) error {
	sfi, err := os.Lstat(src)
	if err != nil {
		return err
	}
	dfi, err := os.Lstat(dst)
	if err != nil {
		return fmt.Errorf("copy missing at %q: %w", dst, err)
	}

	if sfi.IsDir() {
		if !dfi.IsDir() {
			return fmt.Errorf("copy of directory %q is not a directory", src)
		}
		entries, err := os.ReadDir(src)
		if err != nil {
			return err
		}
		copied, err := os.ReadDir(dst)
		if err != nil {
			return err
		}
		if len(copied) != len(entries) {
			return fmt.Errorf("copy of %q has %d entries, want %d", src, len(copied), len(entries))
		}
		for _, entry := range entries {
			if err := VerifyTree(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
				return err
			}
		}
		return nil
	}

	if !dfi.Mode().IsRegular() {
		return fmt.Errorf("copy of file %q is not a regular file", src)
	}
	if sfi.Size() != dfi.Size() {
		return fmt.Errorf("size mismatch for %q: %d != %d", src, dfi.Size(), sfi.Size())
	}
	want, err := HashFile(src)
	if err != nil {
		return err
	}
	got, err := HashFile(dst)
	if err != nil {
		return err
	}
	if !bytes.Equal(want, got) {
		return fmt.Errorf("checksum mismatch for %q", src)
	}
	return nil
}
