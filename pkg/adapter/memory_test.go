package adapter

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/orcbridge/pkg/handle"
)

func TestNewMemoryRegionValidatesSize(t *testing.T) {
	_, err := NewMemoryRegion(handle.Reserved, 0, 10, 5, nil)
	require.Error(t, err)

	_, err = NewMemoryRegion(handle.Reserved, 0, -1, 5, nil)
	require.Error(t, err)

	region, err := NewMemoryRegion(handle.Reserved, 0xdead, 5, 8, nil)
	require.NoError(t, err)
	assert.Equal(t, handle.Reserved, region.ID())
	assert.Equal(t, uintptr(0xdead), region.Address())
	assert.Equal(t, int64(5), region.Size())
	assert.Equal(t, int64(8), region.Capacity())
	require.NoError(t, region.Close())
}

func TestWrapBuffer(t *testing.T) {
	reg := handle.NewRegistry[*memory.Buffer]()

	buf := memory.NewResizableBuffer(memory.NewGoAllocator())
	buf.Resize(8)
	copy(buf.Bytes(), "adapters")

	region := WrapBuffer(reg, buf)
	assert.GreaterOrEqual(t, region.ID(), handle.Reserved)
	assert.NotZero(t, region.Address())
	assert.Equal(t, int64(8), region.Size())
	assert.GreaterOrEqual(t, region.Capacity(), region.Size())

	got, ok := reg.Lookup(region.ID())
	require.True(t, ok)
	assert.Equal(t, "adapters", string(got.Bytes()))

	require.NoError(t, region.Close())
	_, ok = reg.Lookup(region.ID())
	assert.False(t, ok)

	// A second close finds no registration and does nothing.
	require.NoError(t, region.Close())
}

func TestWrapEmptyBuffer(t *testing.T) {
	reg := handle.NewRegistry[*memory.Buffer]()

	buf := memory.NewResizableBuffer(memory.NewGoAllocator())
	region := WrapBuffer(reg, buf)
	assert.Zero(t, region.Address())
	assert.Zero(t, region.Size())
	require.NoError(t, region.Close())
}

func TestBridgeBufferHandoff(t *testing.T) {
	b := NewBridge(nil, zaptest.NewLogger(t))

	buf := memory.NewResizableBuffer(memory.NewGoAllocator())
	buf.Resize(4)
	copy(buf.Bytes(), "orcb")

	region := b.ExportBuffer(buf)
	got, ok := b.LookupBuffer(region.ID())
	require.True(t, ok)
	assert.Equal(t, "orcb", string(got.Bytes()))

	require.NoError(t, region.Close())
	_, ok = b.LookupBuffer(region.ID())
	assert.False(t, ok)
}
