//go:build !(linux && rdma)

package rdma

import (
	"errors"

	"github.com/kodecache/webcached/internal/config"
)

// ErrNotBuilt is returned by Start when the binary wasn't built with
// the "rdma" tag. The transport needs cgo against libibverbs and
// librdmacm, which aren't available on every build host, so it is
// opt-in rather than compiled in by default.
var ErrNotBuilt = errors.New("rdma: support not compiled into this binary (build with -tags rdma on linux)")

// Start always fails in this build; see ErrNotBuilt.
func Start(cfg *config.Config, deps Deps) (Server, error) {
	return nil, ErrNotBuilt
}
