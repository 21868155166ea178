// Package metrics holds the process-wide atomic counters. Counters are
// updated with relaxed atomics and are never locked, mirroring the
// Metrics singleton from the source this server was modeled on.
package metrics

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// M is the process-wide singleton, created once and never torn down.
var M = New()

// Metrics is a flat set of monotonic counters, two of them byte totals
// (BytesServed and RDMABytes).
type Metrics struct {
	// RequestsTotal is never incremented; it stays 0 and is rendered as
	// such, matching the source's own dead counter.
	RequestsTotal  atomic.Uint64
	Responses2xx   atomic.Uint64
	Responses4xx   atomic.Uint64
	Responses5xx   atomic.Uint64
	CacheHits      atomic.Uint64
	CacheMisses    atomic.Uint64
	BytesServed    atomic.Uint64

	RDMARequests atomic.Uint64
	RDMAOK       atomic.Uint64
	RDMAErr      atomic.Uint64
	RDMABytes    atomic.Uint64
}

// New builds a fresh, zeroed Metrics.
func New() *Metrics {
	return &Metrics{}
}

// Reset zeroes every counter.
func (m *Metrics) Reset() {
	m.RequestsTotal.Store(0)
	m.Responses2xx.Store(0)
	m.Responses4xx.Store(0)
	m.Responses5xx.Store(0)
	m.CacheHits.Store(0)
	m.CacheMisses.Store(0)
	m.BytesServed.Store(0)
	m.RDMARequests.Store(0)
	m.RDMAOK.Store(0)
	m.RDMAErr.Store(0)
	m.RDMABytes.Store(0)
}

// counterLine pairs a rendered name with the atomic backing it, in a
// fixed, stable order.
type counterLine struct {
	name  string
	value *atomic.Uint64
}

func (m *Metrics) lines() []counterLine {
	return []counterLine{
		{"requests_total", &m.RequestsTotal},
		{"responses_2xx", &m.Responses2xx},
		{"responses_4xx", &m.Responses4xx},
		{"responses_5xx", &m.Responses5xx},
		{"cache_hits", &m.CacheHits},
		{"cache_misses", &m.CacheMisses},
		{"bytes_served", &m.BytesServed},
		{"rdma_requests", &m.RDMARequests},
		{"rdma_ok", &m.RDMAOK},
		{"rdma_err", &m.RDMAErr},
		{"rdma_bytes", &m.RDMABytes},
	}
}

// RenderText emits one "name value\n" line per counter, in a fixed order.
func (m *Metrics) RenderText() string {
	var b strings.Builder
	for _, l := range m.lines() {
		fmt.Fprintf(&b, "%s %d\n", l.name, l.value.Load())
	}
	return b.String()
}
