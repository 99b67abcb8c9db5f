package memstore

import (
	"sync"

	"github.com/google/btree"
)

// btreeDegree mirrors the degree used by the teacher's own google/btree
// call sites: high enough to keep the tree shallow for the cell counts a
// single column family accumulates between flushes.
const btreeDegree = 32

// cellItem adapts *Cell to btree.Item using Comparator.
type cellItem struct{ cell *Cell }

func (i cellItem) Less(than btree.Item) bool {
	return Comparator(i.cell, than.(cellItem).cell) < 0
}

// CellSet is a concurrent, navigable, comparator-ordered set of cells.
// Iteration holds no lock: every iterator is handed a point-in-time
// slice snapshot taken under a brief read lock, then walks it lock-free.
// This gives scanners the weak-consistency guarantee the core requires
// (concurrent inserts may or may not be observed by an in-flight iterator)
// without requiring a lock-free tree implementation.
type CellSet struct {
	mu   sync.RWMutex
	tree *btree.BTree
}

// NewCellSet returns an empty CellSet.
func NewCellSet() *CellSet {
	return &CellSet{tree: btree.New(btreeDegree)}
}

// Add inserts c. Returns false without modifying the set if a cell that
// compares equal under Comparator is already present (duplicate byte
// content and mvcc).
func (s *CellSet) Add(c *Cell) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := cellItem{c}
	if s.tree.Has(item) {
		return false
	}
	s.tree.ReplaceOrInsert(item)
	return true
}

// Remove deletes any cell equal to key under Comparator. Returns the
// removed cell, or nil if no such cell was present.
func (s *CellSet) Remove(key *Cell) *Cell {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.tree.Delete(cellItem{key})
	if removed == nil {
		return nil
	}
	return removed.(cellItem).cell
}

// Get returns the stored cell equal to key under Comparator, or nil.
func (s *CellSet) Get(key *Cell) *Cell {
	s.mu.RLock()
	defer s.mu.RUnlock()
	got := s.tree.Get(cellItem{key})
	if got == nil {
		return nil
	}
	return got.(cellItem).cell
}

// Contains reports whether a cell equal to key under Comparator is present.
func (s *CellSet) Contains(key *Cell) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Has(cellItem{key})
}

// Len returns the number of cells currently stored.
func (s *CellSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Len()
}

// First returns the smallest cell under Comparator, or nil if empty.
func (s *CellSet) First() *Cell {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item := s.tree.Min()
	if item == nil {
		return nil
	}
	return item.(cellItem).cell
}

// Last returns the largest cell under Comparator, or nil if empty.
func (s *CellSet) Last() *Cell {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item := s.tree.Max()
	if item == nil {
		return nil
	}
	return item.(cellItem).cell
}

// TailIterator returns an ascending iterator over every cell >= key
// (inclusive), snapshotted at call time.
func (s *CellSet) TailIterator(key *Cell) *CellIterator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []*Cell
	s.tree.AscendGreaterOrEqual(cellItem{key}, func(i btree.Item) bool {
		items = append(items, i.(cellItem).cell)
		return true
	})
	return &CellIterator{set: s, items: items}
}

// HeadDescendingIterator returns a descending iterator (closest-to-key
// first) over every cell <= key, snapshotted at call time. When exclusive
// is true, a cell exactly equal to key under Comparator is skipped.
func (s *CellSet) HeadDescendingIterator(key *Cell, exclusive bool) *CellIterator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []*Cell
	s.tree.DescendLessOrEqual(cellItem{key}, func(i btree.Item) bool {
		c := i.(cellItem).cell
		if exclusive && Comparator(c, key) == 0 {
			return true
		}
		items = append(items, c)
		return true
	})
	return &CellIterator{set: s, items: items}
}

// DescendingIterator returns a descending iterator over every cell in the
// set, snapshotted at call time.
func (s *CellSet) DescendingIterator() *CellIterator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []*Cell
	s.tree.Descend(func(i btree.Item) bool {
		items = append(items, i.(cellItem).cell)
		return true
	})
	return &CellIterator{set: s, items: items}
}

// Lower returns the cell closest to, but strictly less than, key under
// Comparator, or nil if none exists.
func (s *CellSet) Lower(key *Cell) *Cell {
	it := s.HeadDescendingIterator(key, true)
	if it.HasNext() {
		return it.Next()
	}
	return nil
}

// CellIterator walks a point-in-time snapshot of a CellSet. Remove deletes
// the last cell returned by Next from the set the iterator was built from
// — this is how GetRowKeyAtOrBefore drops expired cells and Upsert drops
// collapsed versions during a walk.
type CellIterator struct {
	set   *CellSet
	items []*Cell
	pos   int
}

// HasNext reports whether another cell remains in the walk.
func (it *CellIterator) HasNext() bool { return it.pos < len(it.items) }

// Peek returns the next cell without consuming it, or nil if exhausted.
func (it *CellIterator) Peek() *Cell {
	if !it.HasNext() {
		return nil
	}
	return it.items[it.pos]
}

// Next returns and consumes the next cell, or nil if exhausted.
func (it *CellIterator) Next() *Cell {
	if !it.HasNext() {
		return nil
	}
	c := it.items[it.pos]
	it.pos++
	return c
}

// Remove deletes the cell most recently returned by Next from the
// underlying CellSet. A no-op if Next has not been called since
// construction or since the previous Remove.
func (it *CellIterator) Remove() {
	if it.pos == 0 {
		return
	}
	it.set.Remove(it.items[it.pos-1])
}
