package httpx

import "strings"

// Request is a parsed HTTP/1.1 request line plus headers. Only the
// request line and headers are parsed; no body is ever consumed since
// this server only answers GET and HEAD.
type Request struct {
	Method    string
	Target    string
	Version   string
	Headers   map[string]string // keys already folded to lowercase
	KeepAlive bool
}

// Header looks up a header by name, case-insensitively.
func (r *Request) Header(name string) string {
	return r.Headers[strings.ToLower(name)]
}
