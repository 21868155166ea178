package httpx

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResponse_Serialize(t *testing.T) {
	r := NewResponse(200)
	r.Set("Content-Type", "text/plain; charset=utf-8")
	r.SetContentLength(5)

	out := r.Serialize()
	assert.True(t, strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n"))
	assert.Contains(t, out, "Content-Type: text/plain; charset=utf-8\r\n")
	assert.Contains(t, out, "Content-Length: 5\r\n")
	assert.Contains(t, out, "Date: ")
	assert.True(t, strings.HasSuffix(out, "\r\n\r\n"))
}

func TestResponse_ExplicitDateNotDuplicated(t *testing.T) {
	r := NewResponse(200)
	r.Set("Date", "Mon, 01 Jan 2001 00:00:00 GMT")

	out := r.Serialize()
	assert.Equal(t, 1, strings.Count(out, "Date:"))
}
