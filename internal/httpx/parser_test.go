package httpx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_SimpleRequest(t *testing.T) {
	p := NewParser(8192, 32768)
	state, req := p.Parse([]byte("GET /a.txt HTTP/1.1\r\nHost: x\r\n\r\n"))
	require.Equal(t, Done, state)
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "/a.txt", req.Target)
	assert.Equal(t, "HTTP/1.1", req.Version)
	assert.Equal(t, "x", req.Header("Host"))
	assert.True(t, req.KeepAlive)
}

func TestParser_IncompletePrefix(t *testing.T) {
	full := "GET /a.txt HTTP/1.1\r\nHost: x\r\n\r\n"
	for i := 1; i < len(full); i++ {
		p := NewParser(8192, 32768)
		state, _ := p.Parse([]byte(full[:i]))
		assert.Equal(t, Incomplete, state, "prefix length %d", i)
	}
}

func TestParser_Pipelining(t *testing.T) {
	p := NewParser(8192, 32768)
	both := "GET /a HTTP/1.1\r\n\r\nGET /b HTTP/1.1\r\n\r\n"

	state, req := p.Parse([]byte(both))
	require.Equal(t, Done, state)
	assert.Equal(t, "/a", req.Target)

	state, req = p.Parse(nil)
	require.Equal(t, Done, state)
	assert.Equal(t, "/b", req.Target)
}

func TestParser_PipeliningArbitrarySplits(t *testing.T) {
	both := "GET /a HTTP/1.1\r\n\r\nGET /b HTTP/1.1\r\n\r\n"
	for split := 1; split < len(both); split++ {
		p := NewParser(8192, 32768)
		var done []string

		state, req := p.Parse([]byte(both[:split]))
		if state == Done {
			done = append(done, req.Target)
		}
		state, req = p.Parse([]byte(both[split:]))
		if state == Done {
			done = append(done, req.Target)
			for {
				state, req = p.Parse(nil)
				if state != Done {
					break
				}
				done = append(done, req.Target)
			}
		}
		require.Equal(t, []string{"/a", "/b"}, done, "split at %d", split)
	}
}

func TestParser_ConnectionCloseCaseInsensitive(t *testing.T) {
	p := NewParser(8192, 32768)
	_, req := p.Parse([]byte("GET / HTTP/1.1\r\nConnection: CLOSE\r\n\r\n"))
	assert.False(t, req.KeepAlive)
}

func TestParser_HTTP10DefaultsNotKeepAlive(t *testing.T) {
	p := NewParser(8192, 32768)
	_, req := p.Parse([]byte("GET / HTTP/1.0\r\n\r\n"))
	assert.False(t, req.KeepAlive)

	p2 := NewParser(8192, 32768)
	_, req2 := p2.Parse([]byte("GET / HTTP/1.0\r\nConnection: Keep-Alive\r\n\r\n"))
	assert.True(t, req2.KeepAlive)
}

func TestParser_MaxRequestLineExceeded(t *testing.T) {
	p := NewParser(8, 32768)
	state, _ := p.Parse([]byte("GET /this-is-a-very-long-path HTTP/1.1\r\n\r\n"))
	assert.Equal(t, BadRequest, state)
}

func TestParser_BadStartLine(t *testing.T) {
	p := NewParser(8192, 32768)
	state, _ := p.Parse([]byte("NOTHTTP\r\n\r\n"))
	assert.Equal(t, BadRequest, state)
}
