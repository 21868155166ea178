// Package rdma implements the verbs-based transport: wire framing in
// this file, and (when built with the rdma tag on linux) a cgo
// connection manager and completion-queue poller in the platform
// files. Framing is kept free of build tags and cgo so it can be unit
// tested on any platform.
package rdma

import (
	"encoding/binary"

	"github.com/kodecache/webcached/internal/cache"
	"github.com/kodecache/webcached/internal/metrics"
)

// Deps bundles the collaborators the RDMA transport shares with the
// HTTP transport: the same document root, the same cache instance and
// singleflight group, and the same metrics counters. Defined without a
// build tag so both the stub and the real implementation agree on it.
type Deps struct {
	DocRoot string
	Cache   *cache.LRU
	Group   *cache.Group
	Metrics *metrics.Metrics
}

// Server is a running RDMA transport instance.
type Server interface {
	Stop()
}

// Op identifies an RDMA request's operation.
type Op uint8

const (
	OpGet  Op = 1
	OpPing Op = 2
)

// requestHeaderSize is the wire size of the fixed request header:
// op (u8) + path_len (u16).
const requestHeaderSize = 3

// responseHeaderSize is the wire size of the fixed response header:
// status (u16) + content_len (u64) + chunk_size (u32).
const responseHeaderSize = 2 + 8 + 4

// Request is a parsed RDMA request: an operation plus, for GET, the
// URL path that followed the fixed header on the wire.
type Request struct {
	Op   Op
	Path string
}

// Response is the fixed response header. Body bytes (if any) follow
// as separate SENDs and are not part of this struct.
type Response struct {
	Status     uint16
	ContentLen uint64
	ChunkSize  uint32
}

// ParseRequest decodes a single SEND payload into a Request. It
// returns false on any framing error: too short for the fixed header,
// or path_len claims more bytes than were actually sent.
func ParseRequest(data []byte) (Request, bool) {
	if len(data) < requestHeaderSize {
		return Request{}, false
	}
	op := Op(data[0])
	pathLen := binary.LittleEndian.Uint16(data[1:3])
	if int(requestHeaderSize)+int(pathLen) > len(data) {
		return Request{}, false
	}
	req := Request{Op: op}
	if pathLen > 0 {
		req.Path = string(data[requestHeaderSize : requestHeaderSize+int(pathLen)])
	}
	return req, true
}

// EncodeRequest is the inverse of ParseRequest, used by tests (and a
// future RDMA client) to build request wire bytes.
func EncodeRequest(req Request) []byte {
	path := []byte(req.Path)
	buf := make([]byte, requestHeaderSize+len(path))
	buf[0] = byte(req.Op)
	binary.LittleEndian.PutUint16(buf[1:3], uint16(len(path)))
	copy(buf[requestHeaderSize:], path)
	return buf
}

// EncodeResponseHeader renders the fixed response header as wire bytes.
func EncodeResponseHeader(r Response) []byte {
	buf := make([]byte, responseHeaderSize)
	binary.LittleEndian.PutUint16(buf[0:2], r.Status)
	binary.LittleEndian.PutUint64(buf[2:10], r.ContentLen)
	binary.LittleEndian.PutUint32(buf[10:14], r.ChunkSize)
	return buf
}

// ParseResponseHeader is the inverse of EncodeResponseHeader, used by
// tests to assert on what a connection sent.
func ParseResponseHeader(data []byte) (Response, bool) {
	if len(data) < responseHeaderSize {
		return Response{}, false
	}
	return Response{
		Status:     binary.LittleEndian.Uint16(data[0:2]),
		ContentLen: binary.LittleEndian.Uint64(data[2:10]),
		ChunkSize:  binary.LittleEndian.Uint32(data[10:14]),
	}, true
}

// ClampChunk returns the SEND chunk size for a body of contentLen
// bytes given the configured chunk cap: clamp(configured, 1, contentLen).
func ClampChunk(configured int, contentLen int64) uint32 {
	c := int64(configured)
	if c < 1 {
		c = 1
	}
	if c > contentLen {
		c = contentLen
	}
	return uint32(c)
}

// ChunkBounds splits an n-byte body into chunks of at most chunkSize
// bytes each, returning the (offset, length) pairs in send order.
func ChunkBounds(n int64, chunkSize uint32) [][2]int64 {
	if n == 0 {
		return nil
	}
	var bounds [][2]int64
	cs := int64(chunkSize)
	if cs < 1 {
		cs = n
	}
	for off := int64(0); off < n; off += cs {
		l := cs
		if off+l > n {
			l = n - off
		}
		bounds = append(bounds, [2]int64{off, l})
	}
	return bounds
}
