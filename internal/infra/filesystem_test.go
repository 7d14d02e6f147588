package infra

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSystemManager_ExpandHome(t *testing.T) {
	fm := NewFileSystemManagerWithHome("/home/tester")

	assert.Equal(t, "/home/tester/.config/wallmon", fm.ExpandHome("~/.config/wallmon"))
	assert.Equal(t, "/home/tester", fm.ExpandHome("~"))
	assert.Equal(t, "/etc/wallmon", fm.ExpandHome("/etc/wallmon"))
}

func TestFileSystemManager_EnsureDirTwice(t *testing.T) {
	home := t.TempDir()
	fm := NewFileSystemManagerWithHome(home)

	require.NoError(t, fm.EnsureDir("~/a/b/c"))
	require.NoError(t, fm.EnsureDir("~/a/b/c"))

	assert.True(t, fm.Exists("~/a/b/c"))
	entries, err := os.ReadDir(filepath.Join(home, "a", "b"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteFileAtomic_Replaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "current.png")

	require.NoError(t, WriteFileAtomic(path, []byte("first"), 0644))
	require.NoError(t, WriteFileAtomic(path, []byte("second"), 0644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	// No temp files left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteFileAtomic_MissingDirKeepsNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "current.png")

	err := WriteFileAtomic(path, []byte("data"), 0644)
	assert.Error(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
