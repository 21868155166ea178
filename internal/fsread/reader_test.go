package fsread

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead_Success(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	r, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(r.Data))
	assert.NotZero(t, r.LastModified)
}

func TestRead_Empty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	r, err := Read(path)
	require.NoError(t, err)
	assert.Empty(t, r.Data)
}

func TestRead_NotFound(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "nope.txt"))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRead_DirectoryIsNotFound(t *testing.T) {
	dir := t.TempDir()
	_, err := Read(dir)
	assert.True(t, errors.Is(err, ErrNotFound))
}
