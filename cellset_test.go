package memstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCellSetAddRejectsDuplicate(t *testing.T) {
	s := NewCellSet()
	c := NewCell([]byte("r"), []byte("cf"), []byte("q"), 10, TypePut, 1, []byte("v"))
	require.True(t, s.Add(c))
	dup := NewCell([]byte("r"), []byte("cf"), []byte("q"), 10, TypePut, 1, []byte("v-different"))
	require.False(t, s.Add(dup), "same key tuple and mvcc must be rejected regardless of value")
	require.Equal(t, 1, s.Len())
}

func TestCellSetRemove(t *testing.T) {
	s := NewCellSet()
	c := NewCell([]byte("r"), []byte("cf"), []byte("q"), 10, TypePut, 1, nil)
	s.Add(c)
	removed := s.Remove(c)
	require.NotNil(t, removed)
	require.Equal(t, 0, s.Len())
	require.Nil(t, s.Remove(c), "removing again is a no-op")
}

func TestCellSetTailIteratorOrdering(t *testing.T) {
	s := NewCellSet()
	r1 := NewCell([]byte("r1"), []byte("cf"), []byte("q"), 10, TypePut, 1, nil)
	r2 := NewCell([]byte("r2"), []byte("cf"), []byte("q"), 10, TypePut, 1, nil)
	r3 := NewCell([]byte("r3"), []byte("cf"), []byte("q"), 10, TypePut, 1, nil)
	s.Add(r2)
	s.Add(r3)
	s.Add(r1)

	it := s.TailIterator(FirstOnRow([]byte("r1")))
	var rows []string
	for it.HasNext() {
		rows = append(rows, string(it.Next().Row))
	}
	require.Equal(t, []string{"r1", "r2", "r3"}, rows)
}

func TestCellSetDescendingIterator(t *testing.T) {
	s := NewCellSet()
	for _, r := range []string{"a", "b", "c"} {
		s.Add(NewCell([]byte(r), []byte("cf"), []byte("q"), 10, TypePut, 1, nil))
	}
	it := s.DescendingIterator()
	var rows []string
	for it.HasNext() {
		rows = append(rows, string(it.Next().Row))
	}
	require.Equal(t, []string{"c", "b", "a"}, rows)
}

func TestCellSetLower(t *testing.T) {
	s := NewCellSet()
	s.Add(NewCell([]byte("r1"), []byte("cf"), []byte("q"), 10, TypePut, 1, nil))
	s.Add(NewCell([]byte("r3"), []byte("cf"), []byte("q"), 10, TypePut, 1, nil))
	before := s.Lower(FirstOnRow([]byte("r3")))
	require.NotNil(t, before)
	require.Equal(t, "r1", string(before.Row))
}

func TestCellIteratorRemoveDeletesFromSet(t *testing.T) {
	s := NewCellSet()
	c1 := NewCell([]byte("r1"), []byte("cf"), []byte("q"), 10, TypePut, 1, nil)
	c2 := NewCell([]byte("r2"), []byte("cf"), []byte("q"), 10, TypePut, 1, nil)
	s.Add(c1)
	s.Add(c2)

	it := s.TailIterator(FirstOnRow([]byte("r1")))
	it.Next()
	it.Remove()
	require.Equal(t, 1, s.Len())
	require.False(t, s.Contains(c1))
	require.True(t, s.Contains(c2))
}

func TestCellSetIteratorIsSnapshotted(t *testing.T) {
	s := NewCellSet()
	s.Add(NewCell([]byte("r1"), []byte("cf"), []byte("q"), 10, TypePut, 1, nil))
	it := s.TailIterator(FirstOnRow([]byte("r1")))
	s.Add(NewCell([]byte("r2"), []byte("cf"), []byte("q"), 10, TypePut, 1, nil))
	var count int
	for it.HasNext() {
		it.Next()
		count++
	}
	require.Equal(t, 1, count, "iterator must not observe inserts after it was constructed")
}
