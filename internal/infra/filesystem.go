// Package infra implements infrastructure concerns (browser, filesystem, processes, logs).
package infra

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/eliteGoblin/focusd/wallmon/internal/domain"
)

// FileSystemManagerImpl implements domain.FileSystemManager.
type FileSystemManagerImpl struct {
	homeDir string
}

// NewFileSystemManager creates a new filesystem manager.
func NewFileSystemManager() domain.FileSystemManager {
	home, _ := os.UserHomeDir()
	return &FileSystemManagerImpl{homeDir: home}
}

// NewFileSystemManagerWithHome creates a filesystem manager with custom home (for testing).
func NewFileSystemManagerWithHome(home string) domain.FileSystemManager {
	return &FileSystemManagerImpl{homeDir: home}
}

// Exists checks if a path exists.
func (fm *FileSystemManagerImpl) Exists(path string) bool {
	_, err := os.Stat(fm.ExpandHome(path))
	return err == nil
}

// EnsureDir creates the directory tree. Calling it on an existing directory is a no-op.
func (fm *FileSystemManagerImpl) EnsureDir(path string) error {
	return os.MkdirAll(fm.ExpandHome(path), 0755)
}

// WriteFileAtomic writes data to path using atomic write pattern.
// Writes to temp file first, syncs, chmods, then renames to avoid corruption.
func (fm *FileSystemManagerImpl) WriteFileAtomic(path string, data []byte, perm uint32) error {
	return WriteFileAtomic(fm.ExpandHome(path), data, os.FileMode(perm))
}

// ExpandHome expands ~ to the user's home directory.
func (fm *FileSystemManagerImpl) ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(fm.homeDir, path[2:])
	}
	if path == "~" {
		return fm.homeDir
	}
	return path
}

// WriteFileAtomic replaces path with data. A reader sees either the old file or the
// complete new one; on any error the old file is left untouched.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	// Create temp file in same directory for atomic rename
	tmpFile, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	// Clean up temp file on any error
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err = tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return err
	}

	// Sync to disk before rename
	if err = tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return err
	}
	if err = tmpFile.Close(); err != nil {
		return err
	}

	if err = os.Chmod(tmpPath, perm); err != nil {
		return err
	}

	if err = os.Rename(tmpPath, path); err != nil {
		return err
	}

	success = true
	return nil
}

// Ensure FileSystemManagerImpl implements domain.FileSystemManager.
var _ domain.FileSystemManager = (*FileSystemManagerImpl)(nil)
