package adapter

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/ajitpratap0/orcbridge/pkg/handle"
	"github.com/ajitpratap0/orcbridge/pkg/logger"
	"github.com/ajitpratap0/orcbridge/pkg/metrics"
)

// Bridge is the boundary surface of the adapter: every open reader, stripe
// reader, and handed-off buffer is referenced by an opaque handle from its
// own registry, so a caller on the far side of a language or process
// boundary never holds a pointer. Handle 0 is the end-of-stream sentinel
// (registries never issue values below handle.Reserved).
//
// Bridge methods are safe for concurrent use as far as the registries are
// concerned; the objects behind the handles follow their own rules. A
// stripe reader must not be driven from two goroutines at once.
type Bridge struct {
	readers *handle.Registry[*Reader]
	stripes *handle.Registry[*StripeReader]
	buffers *handle.Registry[*memory.Buffer]

	mem memory.Allocator
	log *zap.Logger
}

// NoHandle is returned where a handle would be, when there is nothing left
// to hand out.
const NoHandle handle.Handle = 0

// NewBridge creates a bridge with its own handle registries.
func NewBridge(mem memory.Allocator, log *zap.Logger) *Bridge {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	if log == nil {
		log = logger.Get()
	}
	return &Bridge{
		readers: handle.NewRegistry[*Reader](),
		stripes: handle.NewRegistry[*StripeReader](),
		buffers: handle.NewRegistry[*memory.Buffer](),
		mem:     mem,
		log:     log,
	}
}

// OpenReader opens path and registers the reader.
func (b *Bridge) OpenReader(path string) (handle.Handle, error) {
	r, err := Open(path, b.mem, WithLogger(b.log))
	if err != nil {
		return NoHandle, err
	}
	h := b.readers.Insert(r)
	metrics.LiveHandles.WithLabelValues("reader").Set(float64(b.readers.Len()))
	return h, nil
}

// ReaderSchema returns the translated schema of an open reader.
func (b *Bridge) ReaderSchema(reader handle.Handle) (*arrow.Schema, bool) {
	r, ok := b.readers.Lookup(reader)
	if !ok {
		return nil, false
	}
	return r.Schema(), true
}

// NextStripeReader advances the reader and registers the next stripe
// reader, returning NoHandle after the last stripe. Looking up an erased or
// unknown reader handle is reported via ok=false, not an error.
func (b *Bridge) NextStripeReader(reader handle.Handle, batchSize int) (h handle.Handle, ok bool, err error) {
	r, ok := b.readers.Lookup(reader)
	if !ok {
		return NoHandle, false, nil
	}
	sr, err := r.NextStripeReader(batchSize)
	if err != nil {
		return NoHandle, true, err
	}
	if sr == nil {
		return NoHandle, true, nil
	}
	h = b.stripes.Insert(sr)
	metrics.LiveHandles.WithLabelValues("stripe").Set(float64(b.stripes.Len()))
	return h, true, nil
}

// NextRecord materializes the next record of a stripe reader. It returns
// (nil, true, nil) when the stripe is exhausted and ok=false for an
// unknown handle.
func (b *Bridge) NextRecord(stripe handle.Handle) (rec arrow.Record, ok bool, err error) {
	sr, ok := b.stripes.Lookup(stripe)
	if !ok {
		return nil, false, nil
	}
	rec, err = sr.Next()
	return rec, true, err
}

// ExportBuffer registers buf and returns its region descriptor. Closing
// the region releases the buffer and erases the handle.
func (b *Bridge) ExportBuffer(buf *memory.Buffer) *MemoryRegion {
	region := WrapBuffer(b.buffers, buf)
	metrics.LiveHandles.WithLabelValues("buffer").Set(float64(b.buffers.Len()))
	return region
}

// LookupBuffer returns a registered buffer, or ok=false after it has been
// released.
func (b *Bridge) LookupBuffer(h handle.Handle) (*memory.Buffer, bool) {
	return b.buffers.Lookup(h)
}

// CloseStripeReader erases a stripe reader handle. Absent handles are a
// no-op.
func (b *Bridge) CloseStripeReader(stripe handle.Handle) {
	b.stripes.Erase(stripe)
	metrics.LiveHandles.WithLabelValues("stripe").Set(float64(b.stripes.Len()))
}

// CloseReader closes a reader and erases its handle. Absent handles are a
// no-op.
func (b *Bridge) CloseReader(reader handle.Handle) error {
	r, ok := b.readers.Lookup(reader)
	if !ok {
		return nil
	}
	b.readers.Erase(reader)
	metrics.LiveHandles.WithLabelValues("reader").Set(float64(b.readers.Len()))
	return r.Close()
}

// Shutdown drops every association in every registry without disposing the
// objects behind them. Callers that still hold readers or regions must
// close them through their own references, or accept the resources as
// abandoned at process exit.
func (b *Bridge) Shutdown() {
	b.readers.Clear()
	b.stripes.Clear()
	b.buffers.Clear()
	metrics.LiveHandles.WithLabelValues("reader").Set(0)
	metrics.LiveHandles.WithLabelValues("stripe").Set(0)
	metrics.LiveHandles.WithLabelValues("buffer").Set(0)
	b.log.Debug("bridge shut down")
}
