// Package config holds the process configuration, populated from the
// environment.
package config

import (
	"strconv"
	"strings"

	"github.com/AdguardTeam/golibs/log"
	"github.com/caarlos0/env/v11"
	"github.com/dustin/go-humanize"
)

// ByteSize decodes values like "128MB", "10GB", "512KB" into a byte count.
type ByteSize int64

// UnmarshalText implements encoding.TextUnmarshaler so ByteSize fields can be
// populated directly by env.Parse.
func (b *ByteSize) UnmarshalText(data []byte) error {
	value := strings.TrimSpace(strings.ToUpper(string(data)))
	multiplier := int64(1)
	switch {
	case strings.HasSuffix(value, "GB"):
		multiplier = 1 << 30
		value = strings.TrimSuffix(value, "GB")
	case strings.HasSuffix(value, "MB"):
		multiplier = 1 << 20
		value = strings.TrimSuffix(value, "MB")
	case strings.HasSuffix(value, "KB"):
		multiplier = 1 << 10
		value = strings.TrimSuffix(value, "KB")
	case strings.HasSuffix(value, "B"):
		value = strings.TrimSuffix(value, "B")
	}
	num, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return err
	}
	*b = ByteSize(num * float64(multiplier))
	return nil
}

// Config holds every option from the external-interface option table.
type Config struct {
	// HTTP transport
	Port    uint16 `env:"PORT" envDefault:"8080"`
	Threads uint   `env:"THREADS" envDefault:"0"` // 0 => hardware concurrency
	DocRoot string `env:"DOC_ROOT" envDefault:"./public"`

	CacheMemMB uint `env:"CACHE_MEM_MB" envDefault:"128"`

	MaxRequestLine int `env:"MAX_REQUEST_LINE" envDefault:"8192"`
	MaxHeaderBytes int `env:"MAX_HEADER_BYTES" envDefault:"32768"`

	ReadTimeoutMS      int `env:"READ_TIMEOUT_MS" envDefault:"5000"`
	WriteTimeoutMS     int `env:"WRITE_TIMEOUT_MS" envDefault:"5000"`
	KeepaliveTimeoutMS int `env:"KEEPALIVE_TIMEOUT_MS" envDefault:"10000"`

	// RDMA transport
	RDMAEnable  bool   `env:"RDMA_ENABLE" envDefault:"false"`
	RDMABind    string `env:"RDMA_BIND" envDefault:"0.0.0.0"`
	RDMAPort    uint16 `env:"RDMA_PORT" envDefault:"7471"`
	RDMAPollers int    `env:"RDMA_POLLERS" envDefault:"1"`

	RDMARecvBufsPerConn     int      `env:"RDMA_RECV_BUFS_PER_CONN" envDefault:"64"`
	RDMARecvBufSize         ByteSize `env:"RDMA_RECV_BUF_SIZE" envDefault:"4096"`
	RDMASendChunk           ByteSize `env:"RDMA_SEND_CHUNK" envDefault:"32KB"`
	RDMAMaxOutstandingSends int      `env:"RDMA_MAX_OUTSTANDING_SENDS" envDefault:"64"`

	RDMACQDepth int `env:"RDMA_CQ_DEPTH" envDefault:"512"`
}

// Load parses the environment into a Config, applying defaults for unset
// fields exactly as caarlos0/env documents.
func Load() (Config, error) {
	return env.ParseAs[Config]()
}

// Print logs the configuration at Info level, using humanize for the
// byte-valued fields. The RDMA fields are logged only when RDMAEnable
// is set, and RDMACQDepth is not logged.
func (c *Config) Print() {
	log.Info("Config:")
	log.Info("  Port: %d", c.Port)
	log.Info("  Threads: %d", c.Threads)
	log.Info("  DocRoot: %s", c.DocRoot)
	log.Info("  CacheMemMB: %s", humanize.IBytes(uint64(c.CacheMemMB)*1024*1024))
	log.Info("  MaxRequestLine: %d", c.MaxRequestLine)
	log.Info("  MaxHeaderBytes: %d", c.MaxHeaderBytes)
	log.Info("  ReadTimeoutMS: %d", c.ReadTimeoutMS)
	log.Info("  WriteTimeoutMS: %d", c.WriteTimeoutMS)
	log.Info("  KeepaliveTimeoutMS: %d", c.KeepaliveTimeoutMS)
	log.Info("  RDMAEnable: %t", c.RDMAEnable)
	if c.RDMAEnable {
		log.Info("  RDMABind: %s", c.RDMABind)
		log.Info("  RDMAPort: %d", c.RDMAPort)
		log.Info("  RDMAPollers: %d", c.RDMAPollers)
		log.Info("  RDMARecvBufsPerConn: %d", c.RDMARecvBufsPerConn)
		log.Info("  RDMARecvBufSize: %s", humanize.IBytes(uint64(c.RDMARecvBufSize)))
		log.Info("  RDMASendChunk: %s", humanize.IBytes(uint64(c.RDMASendChunk)))
		log.Info("  RDMAMaxOutstandingSends: %d", c.RDMAMaxOutstandingSends)
	}
}

// CacheCapacityBytes returns the LRU capacity in bytes.
func (c *Config) CacheCapacityBytes() int64 {
	return int64(c.CacheMemMB) * 1024 * 1024
}
