package httpx

import (
	"fmt"
	"net/http"

	"github.com/kodecache/webcached/internal/cache"
	"github.com/kodecache/webcached/internal/fsread"
	"github.com/kodecache/webcached/internal/metrics"
	mimepkg "github.com/kodecache/webcached/internal/mime"
	"github.com/kodecache/webcached/internal/pathmap"
)

// served is one dispatched response: the serialized header block plus
// the body to send after it. Both are handed to the session's writer
// as a single scatter-gather write.
type served struct {
	head      []byte
	body      []byte
	keepAlive bool
}

// Deps bundles the collaborators every session on a listener shares:
// the document root, the LRU cache and its singleflight group, the
// metrics singleton, and (optionally) a handler for the supplemental
// Prometheus scrape endpoint.
type Deps struct {
	DocRoot     string
	Cache       *cache.LRU
	Group       *cache.Group
	Metrics     *metrics.Metrics
	PromHandler http.Handler
}

func connectionValue(keepAlive bool) string {
	if keepAlive {
		return "keep-alive"
	}
	return "close"
}

func bumpStatusMetric(m *metrics.Metrics, status int) {
	switch {
	case status >= 500:
		m.Responses5xx.Add(1)
	case status >= 400:
		m.Responses4xx.Add(1)
	default:
		m.Responses2xx.Add(1)
	}
}

func etagFor(size, lastModified int64) string {
	return fmt.Sprintf("W/\"%d-%d\"", size, lastModified)
}

// dispatch services one parsed request and returns the response to
// write. It never blocks on anything but local file I/O, so it is
// safe to call inline from the session's read loop.
func dispatch(d *Deps, req *Request) served {
	if req.Method != "GET" && req.Method != "HEAD" {
		return errorResponse(d, req, 405, "Method Not Allowed")
	}

	switch req.Target {
	case "/metrics":
		return servePlainMetrics(d, req)
	case "/debug/prom":
		return servePromMetrics(d, req)
	}

	pm := pathmap.Map(d.DocRoot, req.Target)
	if !pm.OK {
		return errorResponse(d, req, 400, pm.Error)
	}
	if !pm.Exists {
		return errorResponse(d, req, 404, "Not Found")
	}

	entry, hit := cache.Entry{}, false
	if !bypassesCache(req) {
		entry, hit = d.Cache.Get(pm.CacheKey)
	}

	if hit {
		d.Metrics.CacheHits.Add(1)
	} else {
		d.Metrics.CacheMisses.Add(1)
		var err error
		entry, err = d.Group.Do(pm.CacheKey, func() (cache.Entry, error) {
			r, readErr := fsread.Read(pm.FSPath)
			if readErr != nil {
				return cache.Entry{}, readErr
			}
			e := cache.Entry{
				Body:         r.Data,
				Size:         int64(len(r.Data)),
				LastModified: r.LastModified,
				ETag:         etagFor(int64(len(r.Data)), r.LastModified),
			}
			d.Cache.Put(pm.CacheKey, e)
			return e, nil
		})
		if err != nil {
			return errorResponse(d, req, 500, err.Error())
		}
	}

	resp := NewResponse(200)
	resp.Set("Content-Type", mimepkg.TypeFor(pm.FSPath))
	resp.SetContentLength(int(entry.Size))
	resp.Set("Connection", connectionValue(req.KeepAlive))
	resp.Set("Last-Modified", HTTPDate(entry.LastModified))
	resp.Set("ETag", entry.ETag)
	d.Metrics.Responses2xx.Add(1)

	body := entry.Body
	if req.Method == "HEAD" {
		body = nil
	} else {
		d.Metrics.BytesServed.Add(uint64(len(body)))
	}

	return served{head: []byte(resp.Serialize()), body: body, keepAlive: req.KeepAlive}
}

func errorResponse(d *Deps, req *Request, status int, msg string) served {
	resp := NewResponse(status)
	resp.Set("Content-Type", "text/plain; charset=utf-8")
	resp.SetContentLength(len(msg))
	resp.Set("Connection", connectionValue(req.KeepAlive))
	bumpStatusMetric(d.Metrics, status)
	return served{head: []byte(resp.Serialize()), body: []byte(msg), keepAlive: req.KeepAlive}
}

func servePlainMetrics(d *Deps, req *Request) served {
	text := d.Metrics.RenderText()
	resp := NewResponse(200)
	resp.Set("Content-Type", "text/plain; charset=utf-8")
	resp.SetContentLength(len(text))
	resp.Set("Connection", connectionValue(req.KeepAlive))
	d.Metrics.Responses2xx.Add(1)

	body := []byte(text)
	if req.Method == "HEAD" {
		body = nil
	} else {
		d.Metrics.BytesServed.Add(uint64(len(body)))
	}
	return served{head: []byte(resp.Serialize()), body: body, keepAlive: req.KeepAlive}
}

// servePromMetrics bridges promhttp's handler into the scatter-gather
// write path by driving it against a buffering capture, so it can run
// without a real net/http server on either side.
func servePromMetrics(d *Deps, req *Request) served {
	if d.PromHandler == nil {
		return errorResponse(d, req, 404, "Not Found")
	}

	rw := newResponseCapture()
	httpReq, err := http.NewRequest(http.MethodGet, "/debug/prom", nil)
	if err != nil {
		return errorResponse(d, req, 500, err.Error())
	}
	d.PromHandler.ServeHTTP(rw, httpReq)

	resp := NewResponse(rw.status)
	ct := rw.header.Get("Content-Type")
	if ct == "" {
		ct = "text/plain; charset=utf-8"
	}
	resp.Set("Content-Type", ct)
	body := rw.buffer.Bytes()
	resp.SetContentLength(len(body))
	resp.Set("Connection", connectionValue(req.KeepAlive))
	bumpStatusMetric(d.Metrics, rw.status)

	if req.Method == "HEAD" {
		body = nil
	} else {
		d.Metrics.BytesServed.Add(uint64(len(body)))
	}
	return served{head: []byte(resp.Serialize()), body: body, keepAlive: req.KeepAlive}
}
