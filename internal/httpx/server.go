package httpx

import (
	"fmt"
	"net"
	"runtime"
	"sync"

	"github.com/AdguardTeam/golibs/log"

	"github.com/kodecache/webcached/internal/config"
)

// Server is the HTTP acceptor: it owns the listening socket and a
// fixed pool of worker goroutines, each of which independently calls
// Accept and then drives one session at a time to completion before
// accepting its next connection. net.Listener.Accept is safe to call
// concurrently from multiple goroutines, so pinning each worker to one
// session at a time is enough to get the effect of several reactor
// threads sharing the listen socket, without any shared-reactor
// locking.
type Server struct {
	ln   net.Listener
	cfg  *config.Config
	deps *Deps
	wg   sync.WaitGroup
}

// Listen opens the HTTP listening socket for cfg.Port.
func Listen(cfg *config.Config, deps *Deps) (*Server, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return nil, err
	}
	return &Server{ln: ln, cfg: cfg, deps: deps}, nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Serve starts the worker pool. It returns immediately; workers run
// until the listener is closed.
func (s *Server) Serve() {
	workers := int(s.cfg.Threads)
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.acceptLoop()
	}
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		log.Info("http: accepted %s", conn.RemoteAddr())
		sess := NewSession(conn, s.deps,
			s.cfg.MaxRequestLine, s.cfg.MaxHeaderBytes,
			s.cfg.ReadTimeoutMS, s.cfg.WriteTimeoutMS, s.cfg.KeepaliveTimeoutMS)
		sess.Run()
	}
}

// Close stops accepting new connections and waits for every worker's
// accept loop to exit. A worker runs its session inline, so Close also
// waits for any in-flight session to end.
func (s *Server) Close() error {
	err := s.ln.Close()
	s.wg.Wait()
	return err
}
