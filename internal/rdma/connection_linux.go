//go:build linux && rdma

package rdma

/*
#include <stdlib.h>
#include <string.h>
#include <infiniband/verbs.h>
#include <rdma/rdma_cma.h>

static struct ibv_recv_wr *alloc_recv_wr(void) { return calloc(1, sizeof(struct ibv_recv_wr)); }
static struct ibv_send_wr *alloc_send_wr(void) { return calloc(1, sizeof(struct ibv_send_wr)); }
*/
import "C"

import (
	"fmt"
	"runtime/cgo"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/AdguardTeam/golibs/log"

	"github.com/kodecache/webcached/internal/cache"
	"github.com/kodecache/webcached/internal/fsread"
	"github.com/kodecache/webcached/internal/pathmap"
)

// workKind tags what a completion's work item was posted for.
type workKind int

const (
	workRecv workKind = iota
	workSend
)

// workItem tags one posted WR. It holds a strong reference to its
// connection (via the connection's own refcount, bumped in postRecv
// and postSendBytes) so a completion arriving after Close begins is still
// safe to process.
type workItem struct {
	kind workKind
	conn *Connection
	buf  *Buffer
}

// Connection is one accepted QP: its posted-RECV pool, its in-flight
// and deferred SEND bookkeeping, and the shared deps needed to answer
// a request. All mutable state lives behind mu, since completions for
// one connection may be delivered concurrently by different pollers.
type Connection struct {
	id *C.struct_rdma_cm_id
	qp *C.struct_ibv_qp
	pd *C.struct_ibv_pd

	deps *Deps
	cfg  connConfig

	mu            sync.Mutex
	recvPool      []*Buffer
	recvInflight  int
	sendQueue     [][]byte
	sendsInflight int
	closed        bool

	// refs counts outstanding work items holding a strong reference to
	// this connection (the cgo.Handle itself is what actually keeps c
	// reachable across the C call; this counter is for teardown
	// accounting).
	refs int32
}

type connConfig struct {
	recvBufs       int
	recvBufSize    int
	sendChunk      int
	maxOutstanding int
}

func newConnection(id *C.struct_rdma_cm_id, qp *C.struct_ibv_qp, pd *C.struct_ibv_pd, deps *Deps, cfg connConfig) *Connection {
	return &Connection{id: id, qp: qp, pd: pd, deps: deps, cfg: cfg}
}

// setup allocates and posts the initial RECV pool, right after QP
// creation on a CONNECT_REQUEST.
func (c *Connection) setup() error {
	for i := 0; i < c.cfg.recvBufs; i++ {
		buf, err := newBuffer(c.pd, c.cfg.recvBufSize, C.IBV_ACCESS_LOCAL_WRITE)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.recvPool = append(c.recvPool, buf)
		c.mu.Unlock()
		if err := c.postRecv(buf); err != nil {
			return err
		}
	}
	return nil
}

func wrErr(op string, rc C.int) error {
	return fmt.Errorf("rdma: %s failed: errno %d", op, int(rc))
}

// addRef records one more outstanding work item referencing c.
func (c *Connection) addRef() { atomic.AddInt32(&c.refs, 1) }

// release drops one outstanding work item's reference to c, recorded
// when its WR was posted in postRecv/postSendBytes.
func (c *Connection) release() { atomic.AddInt32(&c.refs, -1) }

// drain blocks until every work item posted for c has completed. The
// server calls this after close() and before destroying the QP, so a
// completion that lands after DISCONNECT can never reach ibv_post_recv
// or ibv_post_send on a QP that has already been torn down.
func (c *Connection) drain() {
	for atomic.LoadInt32(&c.refs) > 0 {
		time.Sleep(time.Millisecond)
	}
}

var errConnClosed = fmt.Errorf("rdma: connection closed")

// postRecv posts buf as a fresh RECV, tagged with a work item holding
// a reference to c.
func (c *Connection) postRecv(buf *Buffer) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return errConnClosed
	}

	c.addRef()
	h := cgo.NewHandle(&workItem{kind: workRecv, conn: c, buf: buf})

	var sge C.struct_ibv_sge
	sge.addr = C.uint64_t(uintptr(unsafe.Pointer(&buf.mem[0])))
	sge.length = C.uint32_t(len(buf.mem))
	sge.lkey = buf.mr.lkey

	wr := C.alloc_recv_wr()
	defer C.free(unsafe.Pointer(wr))
	wr.wr_id = C.uint64_t(h)
	wr.sg_list = &sge
	wr.num_sge = 1

	var bad *C.struct_ibv_recv_wr
	if rc := C.ibv_post_recv(c.qp, wr, &bad); rc != 0 {
		h.Delete()
		c.release()
		return wrErr("ibv_post_recv", rc)
	}

	c.mu.Lock()
	c.recvInflight++
	c.mu.Unlock()
	return nil
}

// postSendBytes posts data as a single signaled SEND from a freshly
// registered buffer that is freed on completion.
func (c *Connection) postSendBytes(data []byte) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return errConnClosed
	}

	buf, err := newBuffer(c.pd, len(data), C.IBV_ACCESS_LOCAL_WRITE)
	if err != nil {
		return err
	}
	copy(buf.mem, data)

	c.addRef()
	h := cgo.NewHandle(&workItem{kind: workSend, conn: c, buf: buf})

	var sge C.struct_ibv_sge
	sge.addr = C.uint64_t(uintptr(unsafe.Pointer(&buf.mem[0])))
	sge.length = C.uint32_t(len(buf.mem))
	sge.lkey = buf.mr.lkey

	wr := C.alloc_send_wr()
	defer C.free(unsafe.Pointer(wr))
	wr.wr_id = C.uint64_t(h)
	wr.sg_list = &sge
	wr.num_sge = 1
	wr.opcode = C.IBV_WR_SEND
	wr.send_flags = C.IBV_SEND_SIGNALED

	var bad *C.struct_ibv_send_wr
	if rc := C.ibv_post_send(c.qp, wr, &bad); rc != 0 {
		h.Delete()
		buf.Free()
		c.release()
		return wrErr("ibv_post_send", rc)
	}

	c.mu.Lock()
	c.sendsInflight++
	c.mu.Unlock()
	return nil
}

// queueSend posts data now if under the outstanding-sends ceiling, or
// defers it to sendQueue otherwise. Deferred chunks resume posting
// from onSendComplete.
func (c *Connection) queueSend(data []byte) error {
	c.mu.Lock()
	if c.sendsInflight >= c.cfg.maxOutstanding {
		c.sendQueue = append(c.sendQueue, data)
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	return c.postSendBytes(data)
}

// onRecvComplete handles one completed RECV: parses the request,
// dispatches it, replies, and reposts the buffer to maintain the
// receive credit.
func (c *Connection) onRecvComplete(item *workItem, byteLen int) {
	defer c.repost(item.buf)

	c.mu.Lock()
	c.recvInflight--
	c.mu.Unlock()

	req, ok := ParseRequest(item.buf.mem[:byteLen])
	if !ok {
		c.deps.Metrics.RDMAErr.Add(1)
		c.sendHeader(Response{Status: 400})
		return
	}
	c.deps.Metrics.RDMARequests.Add(1)

	switch req.Op {
	case OpPing:
		c.sendHeader(Response{Status: 200, ContentLen: 0})
		c.deps.Metrics.RDMAOK.Add(1)
	case OpGet:
		c.handleGet(req.Path)
	default:
		c.deps.Metrics.RDMAErr.Add(1)
		c.sendHeader(Response{Status: 400})
	}
}

func (c *Connection) handleGet(path string) {
	pm := pathmap.Map(c.deps.DocRoot, path)
	if !pm.OK {
		c.deps.Metrics.RDMAErr.Add(1)
		c.sendHeader(Response{Status: 400})
		return
	}
	if !pm.Exists {
		c.deps.Metrics.RDMAErr.Add(1)
		c.sendHeader(Response{Status: 404})
		return
	}

	body, err := c.readBody(pm)
	if err != nil {
		c.deps.Metrics.RDMAErr.Add(1)
		c.sendHeader(Response{Status: 500})
		return
	}

	n := int64(len(body))
	chunk := ClampChunk(c.cfg.sendChunk, maxInt64(n, 1))
	if err := c.postSendBytes(EncodeResponseHeader(Response{Status: 200, ContentLen: uint64(n), ChunkSize: chunk})); err != nil {
		return
	}
	for _, b := range ChunkBounds(n, chunk) {
		off, l := b[0], b[1]
		if err := c.queueSend(body[off : off+l]); err != nil {
			return
		}
	}
	c.deps.Metrics.RDMAOK.Add(1)
	c.deps.Metrics.RDMABytes.Add(uint64(n))
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func (c *Connection) sendHeader(r Response) {
	_ = c.postSendBytes(EncodeResponseHeader(r))
}

// repost returns buf to posted-RECV duty unless the connection is
// already closed, keeping the receive credit maintained.
func (c *Connection) repost(buf *Buffer) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}
	if err := c.postRecv(buf); err != nil {
		log.Error("rdma: repost failed: %v", err)
	}
}

// onSendComplete releases the completed SEND's buffer and, if any
// chunk is waiting in sendQueue, posts the next one now that a credit
// is free.
func (c *Connection) onSendComplete(item *workItem) {
	item.buf.Free()

	c.mu.Lock()
	c.sendsInflight--
	var next []byte
	if len(c.sendQueue) > 0 && c.sendsInflight < c.cfg.maxOutstanding {
		next = c.sendQueue[0]
		c.sendQueue = c.sendQueue[1:]
	}
	c.mu.Unlock()

	if next != nil {
		if err := c.postSendBytes(next); err != nil {
			log.Error("rdma: deferred send failed: %v", err)
		}
	}
}

// close marks the connection closed and frees every buffer still held
// in the recv pool. Buffers tied to in-flight WRs are freed by their
// own completion handlers once those land.
func (c *Connection) close() {
	c.mu.Lock()
	c.closed = true
	pool := c.recvPool
	c.recvPool = nil
	c.mu.Unlock()

	for _, b := range pool {
		b.Free()
	}
}

// readBody reads the mapped file through the shared cache and
// singleflight group, the same path the HTTP transport uses, so both
// transports observe one cache.
func (c *Connection) readBody(pm pathmap.Result) ([]byte, error) {
	if entry, ok := c.deps.Cache.Get(pm.CacheKey); ok {
		c.deps.Metrics.CacheHits.Add(1)
		return entry.Body, nil
	}
	c.deps.Metrics.CacheMisses.Add(1)

	entry, err := c.deps.Group.Do(pm.CacheKey, func() (cache.Entry, error) {
		r, readErr := fsread.Read(pm.FSPath)
		if readErr != nil {
			return cache.Entry{}, readErr
		}
		e := cache.Entry{
			Body:         r.Data,
			Size:         int64(len(r.Data)),
			LastModified: r.LastModified,
			ETag:         fmt.Sprintf("W/\"%d-%d\"", len(r.Data), r.LastModified),
		}
		c.deps.Cache.Put(pm.CacheKey, e)
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return entry.Body, nil
}
