// Package fsutil holds the filesystem helpers shared by the cache store,
// response cache and output writers. Everything goes through afero.Fs so
// callers can swap the real filesystem for an in-memory one.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// File permissions.
const (
	// DirPerm is the permission mode for directories.
	DirPerm = 0o755

	// FilePerm is the permission mode for regular files.
	FilePerm = 0o644
)

// OS returns the real filesystem.
func OS() afero.Fs { return afero.NewOsFs() }

// AtomicWriteFile writes data to a file atomically using a temp file and rename.
// If the target file already exists, its permissions are preserved; otherwise perm is used.
// Concurrent readers see either the old content or the new content, never a mix.
func AtomicWriteFile(fs afero.Fs, path string, data []byte, perm os.FileMode) error {
	if info, err := fs.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}

	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, DirPerm); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := afero.TempFile(fs, dir, ".ap-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		fs.Remove(tmpPath)
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		fs.Remove(tmpPath)
		return fmt.Errorf("close temp: %w", err)
	}

	if err := fs.Chmod(tmpPath, perm); err != nil {
		fs.Remove(tmpPath)
		return fmt.Errorf("chmod temp: %w", err)
	}

	if err := fs.Rename(tmpPath, path); err != nil {
		fs.Remove(tmpPath)
		return fmt.Errorf("rename: %w", err)
	}

	return nil
}

// Exists reports whether path exists. Stat errors other than not-exist count as present.
func Exists(fs afero.Fs, path string) bool {
	_, err := fs.Stat(path)
	return err == nil || !os.IsNotExist(err)
}
