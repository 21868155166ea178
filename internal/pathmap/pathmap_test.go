package pathmap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestMap_ExistingFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "hello")

	r := Map(root, "/a.txt")
	require.True(t, r.OK)
	assert.True(t, r.Exists)
	assert.Equal(t, "/a.txt", r.CacheKey)
}

func TestMap_EmptyPathBecomesIndex(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "index.html", "<html/>")

	r := Map(root, "/")
	require.True(t, r.OK)
	assert.Equal(t, "/index.html", r.CacheKey)
	assert.True(t, r.Exists)
}

func TestMap_TraversalRejected(t *testing.T) {
	root := t.TempDir()

	r := Map(root, "/../etc/passwd")
	require.True(t, r.OK == false)
	assert.Equal(t, "Path traversal", r.Error)
}

func TestMap_MissingFile(t *testing.T) {
	root := t.TempDir()

	r := Map(root, "/nope.txt")
	require.True(t, r.OK)
	assert.False(t, r.Exists)
}

func TestMap_QueryAndFragmentStripped(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "hi")

	r := Map(root, "/a.txt?x=1#frag")
	require.True(t, r.OK)
	assert.Equal(t, "/a.txt", r.CacheKey)
}

func TestMap_DotDotWithinBoundsStaysUnderRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "sub/a.txt", "hi")

	r := Map(root, "/sub/child/../a.txt")
	require.True(t, r.OK)
	assert.Equal(t, "/sub/a.txt", r.CacheKey)
	assert.True(t, r.Exists)
}
