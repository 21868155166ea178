//go:build linux && rdma

package rdma

/*
#cgo LDFLAGS: -libverbs -lrdmacm
#include <stdlib.h>
#include <string.h>
#include <arpa/inet.h>
#include <netinet/in.h>
#include <infiniband/verbs.h>
#include <rdma/rdma_cma.h>

static struct ibv_qp_init_attr *alloc_qp_attr(void) { return calloc(1, sizeof(struct ibv_qp_init_attr)); }
static struct rdma_conn_param *alloc_conn_param(void) { return calloc(1, sizeof(struct rdma_conn_param)); }
*/
import "C"

import (
	"fmt"
	"net"
	"runtime/cgo"
	"sync"
	"unsafe"

	"github.com/AdguardTeam/golibs/log"

	"github.com/kodecache/webcached/internal/config"
)

const listenBacklog = 64

// server is the running RDMA transport: the CM event channel, the
// lazily-allocated per-device PD/CQ/completion-channel shared by every
// QP, and the live-connection set keyed by qp_num.
type server struct {
	cfg  connConfig
	cqDepth int
	deps *Deps

	ec       *C.struct_rdma_event_channel
	listenID *C.struct_rdma_cm_id

	pdOnce sync.Once
	pd     *C.struct_ibv_pd
	ch     *C.struct_ibv_comp_channel
	cq     *C.struct_ibv_cq

	mu    sync.Mutex
	conns map[uint32]*Connection

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// Start brings up the RDMA transport: binds and listens on
// cfg.RDMABind:cfg.RDMAPort, then spawns the CM thread and
// cfg.RDMAPollers completion pollers.
func Start(cfg *config.Config, deps Deps) (Server, error) {
	ec := C.rdma_create_event_channel()
	if ec == nil {
		return nil, fmt.Errorf("rdma: rdma_create_event_channel failed")
	}

	var id *C.struct_rdma_cm_id
	if rc := C.rdma_create_id(ec, &id, nil, C.RDMA_PS_TCP); rc != 0 {
		C.rdma_destroy_event_channel(ec)
		return nil, fmt.Errorf("rdma: rdma_create_id failed")
	}

	ip := net.ParseIP(cfg.RDMABind)
	var sin C.struct_sockaddr_in
	sin.sin_family = C.AF_INET
	sin.sin_port = C.htons(C.uint16_t(cfg.RDMAPort))
	if ip == nil || ip.To4() == nil {
		sin.sin_addr.s_addr = C.INADDR_ANY
	} else {
		v4 := ip.To4()
		cstr := C.CString(v4.String())
		defer C.free(unsafe.Pointer(cstr))
		C.inet_pton(C.AF_INET, cstr, unsafe.Pointer(&sin.sin_addr))
	}

	if rc := C.rdma_bind_addr(id, (*C.struct_sockaddr)(unsafe.Pointer(&sin))); rc != 0 {
		C.rdma_destroy_id(id)
		C.rdma_destroy_event_channel(ec)
		return nil, fmt.Errorf("rdma: rdma_bind_addr failed")
	}
	if rc := C.rdma_listen(id, C.int(listenBacklog)); rc != 0 {
		C.rdma_destroy_id(id)
		C.rdma_destroy_event_channel(ec)
		return nil, fmt.Errorf("rdma: rdma_listen failed")
	}

	s := &server{
		cfg: connConfig{
			recvBufs:       cfg.RDMARecvBufsPerConn,
			recvBufSize:    int(cfg.RDMARecvBufSize),
			sendChunk:      int(cfg.RDMASendChunk),
			maxOutstanding: cfg.RDMAMaxOutstandingSends,
		},
		cqDepth: cfg.RDMACQDepth,
		deps:     &deps,
		ec:       ec,
		listenID: id,
		conns:    make(map[uint32]*Connection),
		stopCh:   make(chan struct{}),
	}

	pollers := cfg.RDMAPollers
	if pollers < 1 {
		pollers = 1
	}

	s.wg.Add(1)
	go s.cmLoop()
	for i := 0; i < pollers; i++ {
		s.wg.Add(1)
		go s.pollLoop()
	}

	log.Info("rdma: listening on %s:%d", cfg.RDMABind, cfg.RDMAPort)
	return s, nil
}

// ensurePD lazily allocates the shared PD, completion channel and CQ
// on the first CONNECT_REQUEST, then arms CQ notifications.
func (s *server) ensurePD(verbsCtx *C.struct_ibv_context) error {
	var err error
	s.pdOnce.Do(func() {
		s.pd = C.ibv_alloc_pd(verbsCtx)
		if s.pd == nil {
			err = fmt.Errorf("rdma: ibv_alloc_pd failed")
			return
		}
		s.ch = C.ibv_create_comp_channel(verbsCtx)
		if s.ch == nil {
			err = fmt.Errorf("rdma: ibv_create_comp_channel failed")
			return
		}
		s.cq = C.ibv_create_cq(verbsCtx, C.int(s.cqDepth), nil, s.ch, 0)
		if s.cq == nil {
			err = fmt.Errorf("rdma: ibv_create_cq failed")
			return
		}
		if rc := C.ibv_req_notify_cq(s.cq, 0); rc != 0 {
			err = fmt.Errorf("rdma: ibv_req_notify_cq failed")
		}
	})
	return err
}

// cmLoop blocks on rdma_get_cm_event and handles CONNECT_REQUEST and
// DISCONNECTED.
func (s *server) cmLoop() {
	defer s.wg.Done()
	for {
		var ev *C.struct_rdma_cm_event
		if rc := C.rdma_get_cm_event(s.ec, &ev); rc != 0 {
			return
		}

		switch ev.event {
		case C.RDMA_CM_EVENT_CONNECT_REQUEST:
			s.onConnectRequest(ev.id)
		case C.RDMA_CM_EVENT_DISCONNECTED:
			s.onDisconnect(ev.id)
		}
		C.rdma_ack_cm_event(ev)

		select {
		case <-s.stopCh:
			return
		default:
		}
	}
}

func (s *server) onConnectRequest(id *C.struct_rdma_cm_id) {
	verbsCtx := id.verbs
	if err := s.ensurePD(verbsCtx); err != nil {
		log.Error("rdma: %v", err)
		C.rdma_reject(id, nil, 0)
		return
	}

	attr := C.alloc_qp_attr()
	defer C.free(unsafe.Pointer(attr))
	attr.send_cq = s.cq
	attr.recv_cq = s.cq
	attr.qp_type = C.IBV_QPT_RC
	attr.cap.max_send_wr = 1024
	attr.cap.max_recv_wr = 1024
	attr.cap.max_send_sge = 1
	attr.cap.max_recv_sge = 1

	if rc := C.rdma_create_qp(id, s.pd, attr); rc != 0 {
		log.Error("rdma: rdma_create_qp failed")
		C.rdma_reject(id, nil, 0)
		return
	}

	conn := newConnection(id, id.qp, s.pd, s.deps, s.cfg)
	if err := conn.setup(); err != nil {
		log.Error("rdma: connection setup failed: %v", err)
		C.rdma_reject(id, nil, 0)
		return
	}

	param := C.alloc_conn_param()
	defer C.free(unsafe.Pointer(param))
	param.initiator_depth = 1
	param.responder_resources = 1
	param.rnr_retry_count = 7

	if rc := C.rdma_accept(id, param); rc != 0 {
		log.Error("rdma: rdma_accept failed")
		conn.close()
		return
	}

	s.mu.Lock()
	s.conns[uint32(id.qp.qp_num)] = conn
	s.mu.Unlock()
	log.Info("rdma: connection accepted, qp_num=%d", uint32(id.qp.qp_num))
}

func (s *server) onDisconnect(id *C.struct_rdma_cm_id) {
	qpNum := uint32(id.qp.qp_num)
	s.mu.Lock()
	conn, ok := s.conns[qpNum]
	delete(s.conns, qpNum)
	s.mu.Unlock()
	if !ok {
		return
	}
	conn.close()
	conn.drain()
	C.rdma_destroy_qp(id)
	C.rdma_destroy_id(id)
	log.Info("rdma: connection closed, qp_num=%d", qpNum)
}

// pollLoop blocks on ibv_get_cq_event, acks it, re-arms notification
// and polls up to 32 completions per drain.
func (s *server) pollLoop() {
	defer s.wg.Done()
	wcs := make([]C.struct_ibv_wc, 32)

	for {
		var evCQ *C.struct_ibv_cq
		var ctx unsafe.Pointer
		if rc := C.ibv_get_cq_event(s.ch, &evCQ, &ctx); rc != 0 {
			select {
			case <-s.stopCh:
				return
			default:
				continue
			}
		}
		C.ibv_ack_cq_events(evCQ, 1)
		if rc := C.ibv_req_notify_cq(evCQ, 0); rc != 0 {
			log.Error("rdma: ibv_req_notify_cq failed")
		}

		for {
			n := C.ibv_poll_cq(evCQ, 32, &wcs[0])
			if n <= 0 {
				break
			}
			for i := 0; i < int(n); i++ {
				s.handleCompletion(&wcs[i])
			}
			if n < 32 {
				break
			}
		}

		select {
		case <-s.stopCh:
			return
		default:
		}
	}
}

func (s *server) handleCompletion(wc *C.struct_ibv_wc) {
	h := cgo.Handle(wc.wr_id)
	v := h.Value()
	h.Delete()
	item, ok := v.(*workItem)
	if !ok {
		return
	}

	if wc.status != C.IBV_WC_SUCCESS {
		log.Error("rdma: completion failed: status=%d wr_id=%d", int(wc.status), uint64(wc.wr_id))
		if item.kind == workSend {
			item.buf.Free()
		}
		item.conn.release()
		return
	}

	switch item.kind {
	case workRecv:
		item.conn.onRecvComplete(item, int(wc.byte_len))
	case workSend:
		item.conn.onSendComplete(item)
	}
	item.conn.release()
}

// Stop drives an orderly shutdown: stop accepting new work, join the
// CM and poller threads, drop every live connection, then tear down
// CQ, completion channel, PD, listen id and event channel in order.
func (s *server) Stop() {
	close(s.stopCh)
	s.wg.Wait()

	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()
	for _, c := range conns {
		c.close()
	}

	if s.cq != nil {
		C.ibv_destroy_cq(s.cq)
	}
	if s.ch != nil {
		C.ibv_destroy_comp_channel(s.ch)
	}
	if s.pd != nil {
		C.ibv_dealloc_pd(s.pd)
	}
	C.rdma_destroy_id(s.listenID)
	C.rdma_destroy_event_channel(s.ec)
}
