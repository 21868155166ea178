package httpx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kodecache/webcached/internal/cache"
	"github.com/kodecache/webcached/internal/metrics"
)

func newTestDeps(t *testing.T) (*Deps, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))
	return &Deps{
		DocRoot: root,
		Cache:   cache.New(1 << 20),
		Group:   cache.NewGroup(),
		Metrics: metrics.New(),
	}, root
}

func TestDispatch_MetricsEndpoint(t *testing.T) {
	deps, _ := newTestDeps(t)
	req := &Request{Method: "GET", Target: "/metrics", Version: "HTTP/1.1", KeepAlive: true, Headers: map[string]string{}}

	resp := dispatch(deps, req)
	assert.Contains(t, string(resp.head), "200 OK")
	assert.Contains(t, string(resp.body), "requests_total 0\n")
	assert.Contains(t, string(resp.body), "responses_2xx 0\n")
}

func TestDispatch_CacheMissThenHit(t *testing.T) {
	deps, _ := newTestDeps(t)
	req := &Request{Method: "GET", Target: "/a.txt", Version: "HTTP/1.1", KeepAlive: true, Headers: map[string]string{}}

	first := dispatch(deps, req)
	assert.Equal(t, "hello", string(first.body))
	assert.Equal(t, uint64(0), deps.Metrics.CacheHits.Load())
	assert.Equal(t, uint64(1), deps.Metrics.CacheMisses.Load())

	second := dispatch(deps, req)
	assert.Equal(t, "hello", string(second.body))
	assert.Equal(t, uint64(1), deps.Metrics.CacheHits.Load())
	assert.Equal(t, uint64(10), deps.Metrics.BytesServed.Load())
}

func TestDispatch_NotFound(t *testing.T) {
	deps, _ := newTestDeps(t)
	req := &Request{Method: "GET", Target: "/missing.txt", Version: "HTTP/1.1", KeepAlive: true, Headers: map[string]string{}}

	resp := dispatch(deps, req)
	assert.Contains(t, string(resp.head), "404")
}

func TestDispatch_TraversalBlocked(t *testing.T) {
	deps, _ := newTestDeps(t)
	req := &Request{Method: "GET", Target: "/../etc/passwd", Version: "HTTP/1.1", KeepAlive: true, Headers: map[string]string{}}

	resp := dispatch(deps, req)
	assert.Contains(t, string(resp.head), "400")
	assert.Contains(t, string(resp.body), "Path traversal")
	assert.True(t, resp.keepAlive)
}

func TestDispatch_MethodNotAllowed(t *testing.T) {
	deps, _ := newTestDeps(t)
	req := &Request{Method: "POST", Target: "/a.txt", Version: "HTTP/1.1", KeepAlive: true, Headers: map[string]string{}}

	resp := dispatch(deps, req)
	assert.Contains(t, string(resp.head), "405")
}

func TestDispatch_HeadHasNoBody(t *testing.T) {
	deps, _ := newTestDeps(t)
	req := &Request{Method: "HEAD", Target: "/a.txt", Version: "HTTP/1.1", KeepAlive: true, Headers: map[string]string{}}

	resp := dispatch(deps, req)
	assert.Empty(t, resp.body)
	assert.Contains(t, string(resp.head), "Content-Length: 5")
}
