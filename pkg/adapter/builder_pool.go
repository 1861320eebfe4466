package adapter

import (
	"sync"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// BuilderPool reuses Arrow record builders for one translated schema so
// that every batch of a stripe does not pay builder allocation again. A
// reader owns one pool; its stripe readers share it.
type BuilderPool struct {
	schema    *arrow.Schema
	allocator memory.Allocator
	pool      sync.Pool

	hits   atomic.Int64
	misses atomic.Int64
}

// NewBuilderPool creates a pool producing builders for schema.
func NewBuilderPool(allocator memory.Allocator, schema *arrow.Schema) *BuilderPool {
	if allocator == nil {
		allocator = memory.NewGoAllocator()
	}
	return &BuilderPool{
		schema:    schema,
		allocator: allocator,
	}
}

// Get returns a record builder for the pool's schema, reusing a previously
// returned one when available.
func (p *BuilderPool) Get() *array.RecordBuilder {
	if item := p.pool.Get(); item != nil {
		p.hits.Add(1)
		return item.(*array.RecordBuilder)
	}
	p.misses.Add(1)
	return array.NewRecordBuilder(p.allocator, p.schema)
}

// Put returns a builder to the pool. The builder must already be reset;
// RecordBuilder.NewRecord leaves it in that state.
func (p *BuilderPool) Put(b *array.RecordBuilder) {
	if b == nil {
		return
	}
	p.pool.Put(b)
}

// Stats returns pool hit and miss counts.
func (p *BuilderPool) Stats() (hits, misses int64) {
	return p.hits.Load(), p.misses.Load()
}
