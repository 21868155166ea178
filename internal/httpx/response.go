package httpx

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type headerField struct {
	name  string
	value string
}

// Response is a status line plus an ordered header block. Bodies are
// carried separately (as a shared byte slice) by the caller, so they
// can be written scatter-gather style without copying.
type Response struct {
	Status  int
	Reason  string
	headers []headerField
}

// NewResponse builds a Response with the standard reason phrase for
// status, via the stdlib's status-text table.
func NewResponse(status int) *Response {
	return &Response{Status: status, Reason: http.StatusText(status)}
}

// Set appends a header field. Headers are emitted in the order set.
func (r *Response) Set(name, value string) {
	r.headers = append(r.headers, headerField{name, value})
}

// SetContentLength sets Content-Length from n.
func (r *Response) SetContentLength(n int) {
	r.Set("Content-Length", strconv.Itoa(n))
}

// HTTPDate formats unixSeconds as an HTTP-date (RFC 1123, GMT), using the
// stdlib's own canonical format string rather than hand-rolling one.
func HTTPDate(unixSeconds int64) string {
	return time.Unix(unixSeconds, 0).UTC().Format(http.TimeFormat)
}

// Serialize renders the status line and header block, terminated by
// the blank line that separates headers from body. A Date header is
// synthesized if one wasn't already set.
func (r *Response) Serialize() string {
	var b strings.Builder
	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", r.Status, r.Reason)

	hasDate := false
	for _, h := range r.headers {
		if strings.EqualFold(h.name, "Date") {
			hasDate = true
			break
		}
	}
	if !hasDate {
		fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(http.TimeFormat))
	}
	for _, h := range r.headers {
		fmt.Fprintf(&b, "%s: %s\r\n", h.name, h.value)
	}
	b.WriteString("\r\n")
	return b.String()
}
