package metrics

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderText_FreshCountersAreZero(t *testing.T) {
	m := New()
	text := m.RenderText()
	assert.True(t, strings.HasPrefix(text, "requests_total 0\nresponses_2xx 0\n"))
}

func TestRenderText_ReflectsUpdates(t *testing.T) {
	m := New()
	m.RequestsTotal.Add(3)
	m.CacheHits.Add(1)

	text := m.RenderText()
	assert.Contains(t, text, "requests_total 3\n")
	assert.Contains(t, text, "cache_hits 1\n")
}

func TestReset_ZeroesEverything(t *testing.T) {
	m := New()
	m.RequestsTotal.Add(5)
	m.RDMABytes.Add(100)
	m.Reset()

	assert.Equal(t, uint64(0), m.RequestsTotal.Load())
	assert.Equal(t, uint64(0), m.RDMABytes.Load())
}
