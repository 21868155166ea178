package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector mirrors Metrics onto a prometheus.Collector, so the same
// counters can additionally be scraped in Prometheus exposition format
// without disturbing the plain-text /metrics endpoint, which is
// rendered directly by RenderText, not through this registry.
type Collector struct {
	m    *Metrics
	desc map[string]*prometheus.Desc
}

// NewCollector builds a Collector over m.
func NewCollector(m *Metrics) *Collector {
	mk := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("webcached_"+name, help, nil, nil)
	}
	return &Collector{
		m: m,
		desc: map[string]*prometheus.Desc{
			"requests_total": mk("requests_total", "Requests counter; never incremented, always 0."),
			"responses_2xx":  mk("responses_2xx_total", "Total 2xx responses."),
			"responses_4xx":  mk("responses_4xx_total", "Total 4xx responses."),
			"responses_5xx":  mk("responses_5xx_total", "Total 5xx responses."),
			"cache_hits":     mk("cache_hits_total", "Total LRU cache hits."),
			"cache_misses":   mk("cache_misses_total", "Total LRU cache misses."),
			"bytes_served":   mk("bytes_served_total", "Total response body bytes served."),
			"rdma_requests":  mk("rdma_requests_total", "Total RDMA requests received."),
			"rdma_ok":        mk("rdma_ok_total", "Total RDMA requests served successfully."),
			"rdma_err":       mk("rdma_err_total", "Total RDMA requests that failed."),
			"rdma_bytes":     mk("rdma_bytes_total", "Total RDMA response body bytes served."),
		},
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.desc {
		ch <- d
	}
}

// Collect implements prometheus.Collector, reading the atomics at
// scrape time; readers are not guaranteed a globally consistent
// snapshot across counters.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, l := range c.m.lines() {
		ch <- prometheus.MustNewConstMetric(c.desc[l.name], prometheus.CounterValue, float64(l.value.Load()))
	}
}
