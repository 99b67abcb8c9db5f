package memstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocatorAllocateCarvesFromSameChunk(t *testing.T) {
	a := NewAllocator(1024, 256)
	b1 := a.Allocate(100)
	b2 := a.Allocate(100)
	require.Len(t, b1, 100)
	require.Len(t, b2, 100)
	require.Equal(t, len(a.chunks), 1, "both allocations should fit in the first chunk")
}

func TestAllocatorRefusesOversizedAllocation(t *testing.T) {
	a := NewAllocator(1024, 256)
	require.Nil(t, a.Allocate(257))
}

func TestAllocatorRollsOverToNewChunkWhenFull(t *testing.T) {
	a := NewAllocator(100, 100)
	a.Allocate(90)
	a.Allocate(50)
	require.Len(t, a.chunks, 2)
}

func TestCloneIntoCopiesPayloadsAndPreservesKey(t *testing.T) {
	a := NewAllocator(DefaultChunkSize, DefaultMaxSlabSize)
	c := NewCell([]byte("row"), []byte("cf"), []byte("qual"), 5, TypePut, 1, []byte("value"))
	cloned := c.CloneInto(a)
	require.Equal(t, c.Row, cloned.Row)
	require.Equal(t, c.Value, cloned.Value)
	require.Equal(t, 0, Comparator(c, cloned))
	// mutating the source should not affect the clone once copied.
	c.Value[0] = 'X'
	require.NotEqual(t, c.Value[0], cloned.Value[0])
}

func TestCloneIntoFallsBackWhenOversized(t *testing.T) {
	a := NewAllocator(1024, 4)
	c := NewCell([]byte("row"), []byte("cf"), []byte("qual"), 5, TypePut, 1, []byte("value"))
	cloned := c.CloneInto(a)
	require.Same(t, c, cloned)
}

func TestAllocatorReleasesChunksOnceDetachedAndScannerless(t *testing.T) {
	a := NewAllocator(1024, 256)
	a.Allocate(10)
	a.IncScannerCount()
	a.Close()
	require.NotEmpty(t, a.chunks, "chunks must survive while a scanner is still open")
	a.DecScannerCount()
	require.Empty(t, a.chunks)
}
