package httpx

import (
	"bytes"
	"strings"
)

// State is the outcome of one parse attempt.
type State int

const (
	Incomplete State = iota
	Done
	BadRequest
)

// Parser incrementally parses HTTP/1.1 requests out of a growing byte
// buffer. On Done, whatever follows the terminating CRLFCRLF is kept
// for the next call, which is what makes pipelining work: a second
// request already buffered behind the first is parsed out by calling
// Parse(nil) again with no new bytes.
type Parser struct {
	buf            []byte
	maxRequestLine int
	maxHeaderBytes int
}

// NewParser builds a Parser enforcing the given size limits.
func NewParser(maxRequestLine, maxHeaderBytes int) *Parser {
	return &Parser{
		maxRequestLine: maxRequestLine,
		maxHeaderBytes: maxHeaderBytes,
	}
}

var crlfcrlf = []byte("\r\n\r\n")

// Parse appends data (which may be empty) to the internal buffer and
// attempts to parse one request out of it.
func (p *Parser) Parse(data []byte) (State, Request) {
	if len(data) > 0 {
		p.buf = append(p.buf, data...)
	}

	limit := p.maxRequestLine + p.maxHeaderBytes + 4
	idx := bytes.Index(p.buf, crlfcrlf)
	if idx < 0 {
		if len(p.buf) > limit {
			return BadRequest, Request{}
		}
		return Incomplete, Request{}
	}

	head := p.buf[:idx]
	rest := p.buf[idx+4:]

	req, ok := p.parseHead(head)
	if !ok {
		p.buf = rest
		return BadRequest, Request{}
	}
	p.buf = rest
	return Done, req
}

func (p *Parser) parseHead(head []byte) (Request, bool) {
	lines := strings.Split(string(head), "\r\n")
	if len(lines) == 0 {
		return Request{}, false
	}

	startLine := lines[0]
	if len(startLine) > p.maxRequestLine {
		return Request{}, false
	}

	req, ok := parseStartLine(startLine)
	if !ok {
		return Request{}, false
	}

	headers := make(map[string]string)
	totalBytes := 0
	for _, line := range lines[1:] {
		totalBytes += len(line)
		if totalBytes > p.maxHeaderBytes {
			return Request{}, false
		}
		if line == "" {
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			return Request{}, false
		}
		name := strings.ToLower(strings.TrimSpace(line[:colon]))
		value := strings.TrimSpace(line[colon+1:])
		headers[name] = value
	}
	req.Headers = headers

	conn := headers["connection"]
	if req.Version == "HTTP/1.1" {
		req.KeepAlive = !strings.EqualFold(conn, "close")
	} else {
		req.KeepAlive = strings.EqualFold(conn, "keep-alive")
	}

	return req, true
}

// parseStartLine splits "METHOD TARGET VERSION" on single spaces and
// validates the method token and version prefix.
func parseStartLine(line string) (Request, bool) {
	s1 := strings.IndexByte(line, ' ')
	if s1 < 0 {
		return Request{}, false
	}
	s2 := strings.IndexByte(line[s1+1:], ' ')
	if s2 < 0 {
		return Request{}, false
	}
	s2 += s1 + 1

	method := line[:s1]
	target := line[s1+1 : s2]
	version := line[s2+1:]

	if method == "" || target == "" || !strings.HasPrefix(version, "HTTP/") {
		return Request{}, false
	}
	for i := 0; i < len(method); i++ {
		if !isTokenChar(method[i]) {
			return Request{}, false
		}
	}

	return Request{Method: method, Target: target, Version: version}, true
}

const tspecials = "()<>@,;:\\\"/[]?={} \t"

// isTokenChar reports whether b is a valid HTTP token character: no
// CTLs, no separators.
func isTokenChar(b byte) bool {
	if b <= 31 || b >= 127 {
		return false
	}
	return !strings.ContainsRune(tspecials, rune(b))
}
