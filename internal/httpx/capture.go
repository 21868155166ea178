package httpx

import (
	"bytes"
	"net/http"
)

// responseCapture is a minimal http.ResponseWriter that buffers a
// handler's output instead of writing it to a socket. It lets
// promhttp's handler be driven for /debug/prom without standing up a
// second net/http server.
type responseCapture struct {
	header http.Header
	buffer bytes.Buffer
	status int
}

func newResponseCapture() *responseCapture {
	return &responseCapture{header: make(http.Header), status: http.StatusOK}
}

func (w *responseCapture) Header() http.Header { return w.header }

func (w *responseCapture) Write(p []byte) (int, error) { return w.buffer.Write(p) }

func (w *responseCapture) WriteHeader(status int) { w.status = status }
