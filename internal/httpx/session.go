package httpx

import (
	"net"
	"time"
)

// Session drives one accepted TCP connection through read, parse,
// dispatch and write, honoring HTTP/1.1 pipelining: responses are
// never written out of order, and response N+1's write never starts
// before response N's has completed. Each session is pinned to the
// one goroutine that runs it for its whole lifetime, which gives write
// ordering for free with no extra synchronization needed around a
// shared reactor or per-handler locking.
type Session struct {
	conn   net.Conn
	deps   *Deps
	parser *Parser

	readTimeout      time.Duration
	writeTimeout     time.Duration
	keepaliveTimeout time.Duration

	queue []served
}

// NewSession builds a Session for an accepted connection.
func NewSession(conn net.Conn, deps *Deps, maxRequestLine, maxHeaderBytes, readMS, writeMS, keepaliveMS int) *Session {
	return &Session{
		conn:             conn,
		deps:             deps,
		parser:           NewParser(maxRequestLine, maxHeaderBytes),
		readTimeout:      time.Duration(readMS) * time.Millisecond,
		writeTimeout:     time.Duration(writeMS) * time.Millisecond,
		keepaliveTimeout: time.Duration(keepaliveMS) * time.Millisecond,
	}
}

// Run drives the session until the connection closes, for any reason:
// a timeout, a peer close, a malformed request, or a non-keep-alive
// response finishing its write. It never returns an error; every
// failure mode here ends in a silent close.
func (s *Session) Run() {
	defer s.conn.Close()

	idleDeadline := time.Now().Add(s.keepaliveTimeout)
	buf := make([]byte, 64*1024)

	for {
		readDeadline := time.Now().Add(s.readTimeout)
		effective := readDeadline
		if idleDeadline.Before(effective) {
			effective = idleDeadline
		}
		if err := s.conn.SetReadDeadline(effective); err != nil {
			return
		}

		n, err := s.conn.Read(buf)
		if n > 0 {
			idleDeadline = time.Now().Add(s.keepaliveTimeout)
			s.onBytes(buf[:n])
			if !s.drainQueue() {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// onBytes feeds newly read bytes to the parser and queues the
// response for every request it completes. A parser-level failure
// queues a 400 and stops further parsing of whatever else is
// buffered, since the connection closes once that response is sent.
func (s *Session) onBytes(data []byte) {
	pending := data
	for {
		state, req := s.parser.Parse(pending)
		pending = nil

		switch state {
		case Incomplete:
			return
		case BadRequest:
			bumpStatusMetric(s.deps.Metrics, 400)
			const msg = "Bad Request"
			resp := NewResponse(400)
			resp.Set("Content-Type", "text/plain; charset=utf-8")
			resp.Set("Connection", "close")
			resp.SetContentLength(len(msg))
			s.queue = append(s.queue, served{head: []byte(resp.Serialize()), body: []byte(msg), keepAlive: false})
			return
		case Done:
			s.queue = append(s.queue, dispatch(s.deps, &req))
			if !req.KeepAlive {
				return
			}
		}
	}
}

// drainQueue writes every queued response in order. It stops (and
// tells the caller to close the connection) as soon as a write fails
// or a response is non-keep-alive.
func (s *Session) drainQueue() bool {
	for len(s.queue) > 0 {
		resp := s.queue[0]
		s.queue = s.queue[1:]

		if err := s.write(resp); err != nil {
			return false
		}
		if !resp.keepAlive {
			return false
		}
	}
	return true
}

// write sends one response's header block and body as a single
// scatter-gather write under the write timeout.
func (s *Session) write(resp served) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return err
	}
	bufs := net.Buffers{resp.head}
	if len(resp.body) > 0 {
		bufs = append(bufs, resp.body)
	}
	_, err := bufs.WriteTo(s.conn)
	return err
}
