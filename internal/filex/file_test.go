package filex

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureParentDir_CreatesDirectory(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "state", "nested", "uploads.db")

	got, err := EnsureParentDir(path)
	require.NoError(t, err)
	require.Equal(t, path, got)

	fi, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	require.True(t, fi.IsDir())
}

func TestEnsureParentDir_BareFileName(t *testing.T) {
	got, err := EnsureParentDir("uploads.db")
	require.NoError(t, err)
	assert.Equal(t, "uploads.db", got)
}

func TestEnsureParentDir_ParentIsFile(t *testing.T) {
	tmp := t.TempDir()
	blocker := filepath.Join(tmp, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	_, err := EnsureParentDir(filepath.Join(blocker, "uploads.db"))
	require.Error(t, err)
}

func TestRegularFile(t *testing.T) {
	tmp := t.TempDir()
	f := filepath.Join(tmp, "a.jpg")
	require.NoError(t, os.WriteFile(f, []byte("abc"), 0o600))

	fi, err := RegularFile(f)
	require.NoError(t, err)
	assert.EqualValues(t, 3, fi.Size())

	_, err = RegularFile(tmp)
	assert.True(t, errors.Is(err, fs.ErrInvalid))

	_, err = RegularFile(filepath.Join(tmp, "missing.jpg"))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestHidden(t *testing.T) {
	assert.True(t, Hidden("/in/.partial.jpg"))
	assert.False(t, Hidden("/in/photo.jpg"))
}

func TestRemoteName(t *testing.T) {
	assert.Equal(t, "albums/2024/photo.jpg", RemoteName("albums/2024", "/tmp/in/photo.jpg"))
	assert.Equal(t, "albums/photo.jpg", RemoteName("albums/", "photo.jpg"))
	assert.Equal(t, "photo.jpg", RemoteName("", "/tmp/photo.jpg"))
}
