// Command webcached serves a document root over HTTP/1.1 and,
// optionally, RDMA verbs, sharing one byte-bounded LRU cache between
// both transports.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/AdguardTeam/golibs/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kodecache/webcached/internal/cache"
	"github.com/kodecache/webcached/internal/config"
	"github.com/kodecache/webcached/internal/httpx"
	"github.com/kodecache/webcached/internal/metrics"
	"github.com/kodecache/webcached/internal/rdma"
)

// usageBanner is a short, fixed option summary shown for --help/-h
// before any environment parsing happens (caarlos0/env has no such
// banner of its own).
const usageBanner = `webcached — static file server over HTTP and RDMA verbs

Configuration is read from the environment. Common options:

  PORT                  HTTP listen port (default 8080)
  THREADS               HTTP reactor worker count, 0 = hardware concurrency
  DOC_ROOT              document root directory (default ./public)
  CACHE_MEM_MB          LRU capacity in MiB (default 128)
  RDMA_ENABLE           start the RDMA transport (default false)
  RDMA_BIND / RDMA_PORT RDMA listen address (default 0.0.0.0:7471)

Flags:
  -h, --help   print this message and exit
`

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "-h" || arg == "--help" {
			fmt.Print(usageBanner)
			os.Exit(0)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	cfg.Print()

	if info, statErr := os.Stat(cfg.DocRoot); statErr != nil || !info.IsDir() {
		log.Fatal(fmt.Errorf("document root not found: %s", cfg.DocRoot))
	}

	lru := cache.New(cfg.CacheCapacityBytes())
	group := cache.NewGroup()
	metrics.M.Reset()

	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics.NewCollector(metrics.M))
	promHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	deps := &httpx.Deps{
		DocRoot:     cfg.DocRoot,
		Cache:       lru,
		Group:       group,
		Metrics:     metrics.M,
		PromHandler: promHandler,
	}

	srv, err := httpx.Listen(&cfg, deps)
	if err != nil {
		log.Fatal(err)
	}
	srv.Serve()
	log.Info("http: listening on %s", srv.Addr())

	var rdmaSrv rdma.Server
	if cfg.RDMAEnable {
		rdmaSrv, err = rdma.Start(&cfg, rdma.Deps{
			DocRoot: cfg.DocRoot,
			Cache:   lru,
			Group:   group,
			Metrics: metrics.M,
		})
		if err != nil {
			log.Fatal(err)
		}
	}

	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel, syscall.SIGINT, syscall.SIGTERM)
	<-signalChannel

	log.Info("shutting down")
	if err := srv.Close(); err != nil {
		log.Error("http: close: %v", err)
	}
	if rdmaSrv != nil {
		rdmaSrv.Stop()
	}
}
