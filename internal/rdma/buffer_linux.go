//go:build linux && rdma

package rdma

/*
#cgo LDFLAGS: -libverbs -lrdmacm
#include <stdlib.h>
#include <infiniband/verbs.h>
*/
import "C"

import (
	"fmt"
	"unsafe"
)

const pageSize = 4096

// Buffer is a page-aligned byte region registered as a memory region
// with the HCA. It owns its backing memory and its registration
// together; Free releases both exactly once.
type Buffer struct {
	mem []byte
	mr  *C.struct_ibv_mr
	ptr unsafe.Pointer
}

// newBuffer allocates size bytes on a page boundary and registers
// them with pd under access.
func newBuffer(pd *C.struct_ibv_pd, size int, access C.int) (*Buffer, error) {
	aligned := ((size + pageSize - 1) / pageSize) * pageSize
	ptr := C.aligned_alloc(C.size_t(pageSize), C.size_t(aligned))
	if ptr == nil {
		return nil, fmt.Errorf("rdma: aligned_alloc(%d) failed", aligned)
	}

	mr := C.ibv_reg_mr(pd, ptr, C.size_t(aligned), access)
	if mr == nil {
		C.free(ptr)
		return nil, fmt.Errorf("rdma: ibv_reg_mr failed")
	}

	mem := unsafe.Slice((*byte)(ptr), aligned)
	return &Buffer{mem: mem[:size], mr: mr, ptr: ptr}, nil
}

// Free deregisters and releases the buffer. Safe to call at most once;
// callers must not touch mem afterward.
func (b *Buffer) Free() {
	if b.mr != nil {
		C.ibv_dereg_mr(b.mr)
		b.mr = nil
	}
	if b.ptr != nil {
		C.free(b.ptr)
		b.ptr = nil
	}
}
