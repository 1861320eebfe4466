package adapter

import (
	"unsafe"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/orcbridge/pkg/bridgeerrors"
	"github.com/ajitpratap0/orcbridge/pkg/handle"
)

// MemoryRegion describes one handed-off allocation: its registry handle,
// starting address, valid-data size, and allocated capacity. The address is
// only meaningful until the region is closed; closing triggers the release
// callback keyed by the handle.
//
// Regions are single-owner. Close is not guarded against double calls
// beyond what the release callback itself tolerates.
type MemoryRegion struct {
	id       handle.Handle
	address  uintptr
	size     int64
	capacity int64
	release  func(handle.Handle)
}

// NewMemoryRegion builds a region descriptor. Size must not exceed
// capacity.
func NewMemoryRegion(id handle.Handle, address uintptr, size, capacity int64, release func(handle.Handle)) (*MemoryRegion, error) {
	if size < 0 || size > capacity {
		return nil, bridgeerrors.Newf(bridgeerrors.ErrorTypeContract,
			"region size %d outside [0, %d]", size, capacity)
	}
	return &MemoryRegion{
		id:       id,
		address:  address,
		size:     size,
		capacity: capacity,
		release:  release,
	}, nil
}

// ID returns the registry handle of the region.
func (m *MemoryRegion) ID() handle.Handle { return m.id }

// Address returns the starting address of the region.
func (m *MemoryRegion) Address() uintptr { return m.address }

// Size returns the number of valid bytes.
func (m *MemoryRegion) Size() int64 { return m.size }

// Capacity returns the allocated size.
func (m *MemoryRegion) Capacity() int64 { return m.capacity }

// Close invokes the release callback with the region's handle.
func (m *MemoryRegion) Close() error {
	if m.release != nil {
		m.release(m.id)
	}
	return nil
}

// WrapBuffer registers buf and returns a region describing it. Closing the
// region releases the buffer and erases its handle; looking the handle up
// afterwards reports not-found.
func WrapBuffer(reg *handle.Registry[*memory.Buffer], buf *memory.Buffer) *MemoryRegion {
	h := reg.Insert(buf)

	var addr uintptr
	if data := buf.Bytes(); len(data) > 0 {
		addr = uintptr(unsafe.Pointer(&data[0]))
	}

	region, _ := NewMemoryRegion(h, addr, int64(buf.Len()), int64(buf.Cap()), func(id handle.Handle) {
		if b, ok := reg.Lookup(id); ok {
			reg.Erase(id)
			b.Release()
		}
	})
	return region
}
