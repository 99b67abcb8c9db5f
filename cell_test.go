package memstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComparatorRowFamilyQualifierOrdering(t *testing.T) {
	a := NewCell([]byte("r1"), []byte("cf"), []byte("q1"), 10, TypePut, 1, nil)
	b := NewCell([]byte("r2"), []byte("cf"), []byte("q1"), 10, TypePut, 1, nil)
	require.Negative(t, Comparator(a, b))
	require.Positive(t, Comparator(b, a))
}

func TestComparatorTimestampDescending(t *testing.T) {
	newer := NewCell([]byte("r"), []byte("cf"), []byte("q"), 20, TypePut, 1, nil)
	older := NewCell([]byte("r"), []byte("cf"), []byte("q"), 10, TypePut, 1, nil)
	assert.Negative(t, Comparator(newer, older), "newer timestamp should sort first")
}

func TestComparatorDeleteSortsBeforePutAtEqualTimestamp(t *testing.T) {
	del := NewCell([]byte("r"), []byte("cf"), []byte("q"), 10, TypeDelete, 1, nil)
	put := NewCell([]byte("r"), []byte("cf"), []byte("q"), 10, TypePut, 1, nil)
	assert.Negative(t, Comparator(del, put), "tombstone must sort before a put at the same timestamp")
}

func TestComparatorMvccAscendingTiebreak(t *testing.T) {
	low := NewCell([]byte("r"), []byte("cf"), []byte("q"), 10, TypePut, 1, nil)
	high := NewCell([]byte("r"), []byte("cf"), []byte("q"), 10, TypePut, 2, nil)
	assert.Negative(t, Comparator(low, high))
}

func TestFirstOnRowSortsBeforeAnyRealCell(t *testing.T) {
	row := []byte("r1")
	sentinel := FirstOnRow(row)
	real := NewCell(row, []byte("cf"), []byte("q"), 1, TypeDelete, 0, nil)
	assert.Negative(t, Comparator(sentinel, real))
}

func TestLastOnRowSortsAfterAnyRealCell(t *testing.T) {
	row := []byte("r1")
	sentinel := LastOnRow(row)
	real := NewCell(row, []byte("cf"), []byte("q"), OldestTimestamp+1, TypePut, ^uint64(0)-1, nil)
	assert.Positive(t, Comparator(sentinel, real))
}

func TestEqualConsidersValueButComparatorDoesNot(t *testing.T) {
	a := NewCell([]byte("r"), []byte("cf"), []byte("q"), 10, TypePut, 1, []byte("v1"))
	b := NewCell([]byte("r"), []byte("cf"), []byte("q"), 10, TypePut, 1, []byte("v2"))
	assert.Equal(t, 0, Comparator(a, b))
	assert.False(t, a.Equal(b))
}

func TestHeapSizeGrowsWithPayload(t *testing.T) {
	small := NewCell([]byte("r"), []byte("cf"), []byte("q"), 10, TypePut, 1, nil)
	big := NewCell([]byte("r"), []byte("cf"), []byte("q"), 10, TypePut, 1, make([]byte, 1024))
	assert.Greater(t, big.HeapSize(), small.HeapSize())
}
