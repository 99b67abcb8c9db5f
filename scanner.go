package memstore

import (
	"bytes"
	"math"
)

// scannerState is the lifecycle spec.md §4.4 describes: Fresh -> Seeked ->
// Exhausted -> Closed.
type scannerState int

const (
	stateFresh scannerState = iota
	stateSeeked
	stateExhausted
	stateClosed
)

// KeyValueScanner is the contract the merge layer above consumes. A
// MemStoreScanner always reports the maximum possible sequence id so
// merge layers order it above every on-disk scanner.
type KeyValueScanner interface {
	Seek(key *Cell) bool
	Reseek(key *Cell) bool
	Peek() *Cell
	Next() *Cell
	BackwardSeek(key *Cell) bool
	SeekToPreviousRow(key *Cell) bool
	SeekToLastRow() bool
	GetSequenceID() int64
	ShouldUseScanner(lo, hi, oldestUnexpiredTs int64) bool
	Close()
}

// MemStoreScanner iterates the merged (live ∪ snapshot) view of a
// MemStore at a frozen mvcc read point. It captures references to the
// current live and snapshot sets (and their allocators) at construction
// time; a later Snapshot() call on the MemStore does not affect an
// already-open scanner — see spec.md §4.4 and §9 ("long scanner + flush
// blind spot"). The enclosing store is expected to recreate scanners at
// flush boundaries if it wants to observe post-flush writes.
type MemStoreScanner struct {
	readPoint uint64

	live *CellSet
	snap *CellSet

	liveAlloc *Allocator
	snapAlloc *Allocator

	liveRange TimeRange
	snapRange TimeRange

	liveIt *CellIterator
	snapIt *CellIterator

	liveItRow *Cell // last cell emitted from the live side
	snapItRow *Cell // last cell emitted from the snapshot side

	liveNext *Cell // current live head, already mvcc-filtered
	snapNext *Cell // current snapshot head, already mvcc-filtered
	theNext  *Cell // cached merge of liveNext/snapNext

	stopIfNextRow   bool
	reverseStartRow []byte

	state  scannerState
	closed bool
}

// NewScanner opens a scanner against m's current live and snapshot
// generations at mvcc read point readPoint.
func NewScanner(m *MemStore, readPoint uint64) *MemStoreScanner {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &MemStoreScanner{
		readPoint: readPoint,
		live:      m.live,
		snap:      m.snapshot,
		liveAlloc: m.liveAlloc,
		snapAlloc: m.snapshotAlloc,
		liveRange: m.liveRange.Range(),
		snapRange: m.snapshotRange.Range(),
		state:     stateFresh,
	}
	if s.liveAlloc != nil {
		s.liveAlloc.IncScannerCount()
	}
	if s.snapAlloc != nil {
		s.snapAlloc.IncScannerCount()
	}
	return s
}

// getNext advances it past any cell whose mvcc exceeds the read point,
// returning the first surviving cell or nil if it is exhausted. When
// stopIfNextRow is set, it additionally stops (returning nil; the
// overshooting cell has already been taken from it) as soon as the next surviving
// cell's row sorts strictly after reverseStartRow — this is what keeps a
// reverse scan's mvcc filtering from overshooting into the previous row.
func (s *MemStoreScanner) getNext(it *CellIterator) *Cell {
	for it.HasNext() {
		c := it.Next()
		if c.Mvcc > s.readPoint {
			continue
		}
		if s.stopIfNextRow && bytes.Compare(c.Row, s.reverseStartRow) > 0 {
			return nil
		}
		return c
	}
	return nil
}

// Seek positions the scanner at the first cell >= key. Returns false (and
// closes the scanner) if key is nil; otherwise returns whether any cell
// was found.
func (s *MemStoreScanner) Seek(key *Cell) bool {
	if key == nil {
		s.Close()
		return false
	}
	s.liveIt = s.live.TailIterator(key)
	s.snapIt = s.snap.TailIterator(key)
	s.liveItRow = nil
	s.snapItRow = nil
	s.liveNext = s.getNext(s.liveIt)
	s.snapNext = s.getNext(s.snapIt)
	s.theNext = minCell(s.liveNext, s.snapNext)
	if s.theNext == nil {
		s.state = stateExhausted
		return false
	}
	s.state = stateSeeked
	return true
}

// Reseek tolerates concurrent mutation of the underlying sets: each
// iterator is rebuilt from tailSet(max(key, lastEmittedRow)) against the
// scanner's creation-time set reference, which never changes even if the
// MemStore has since taken a new snapshot. Resuming at the later of key
// and the last-emitted row, and skipping the last-emitted cell itself,
// guarantees monotone progress: no cell already emitted is returned again.
func (s *MemStoreScanner) Reseek(key *Cell) bool {
	if s.state != stateSeeked && s.state != stateExhausted {
		return false
	}
	liveKey := maxCell(key, s.liveItRow)
	snapKey := maxCell(key, s.snapItRow)
	s.liveIt = s.live.TailIterator(liveKey)
	s.snapIt = s.snap.TailIterator(snapKey)
	if s.liveItRow != nil && s.liveIt.HasNext() && Comparator(s.liveIt.Peek(), s.liveItRow) == 0 {
		s.liveIt.Next()
	}
	if s.snapItRow != nil && s.snapIt.HasNext() && Comparator(s.snapIt.Peek(), s.snapItRow) == 0 {
		s.snapIt.Next()
	}
	s.liveNext = s.getNext(s.liveIt)
	s.snapNext = s.getNext(s.snapIt)
	s.theNext = minCell(s.liveNext, s.snapNext)
	if s.theNext == nil {
		s.state = stateExhausted
		return false
	}
	s.state = stateSeeked
	return true
}

// Peek returns the cached next cell without advancing, or nil if
// exhausted.
func (s *MemStoreScanner) Peek() *Cell {
	return s.theNext
}

// Next returns the cached next cell, advances the side that produced it,
// and recomputes the cache.
func (s *MemStoreScanner) Next() *Cell {
	cur := s.theNext
	if cur == nil {
		return nil
	}
	if cur == s.liveNext {
		s.liveItRow = cur
		s.liveNext = s.getNext(s.liveIt)
	} else {
		s.snapItRow = cur
		s.snapNext = s.getNext(s.snapIt)
	}
	s.theNext = minCell(s.liveNext, s.snapNext)
	if s.theNext == nil {
		s.state = stateExhausted
	}
	return cur
}

// BackwardSeek forward-seeks to key; if nothing was found, or the result
// landed past key's row, it falls back to SeekToPreviousRow.
func (s *MemStoreScanner) BackwardSeek(key *Cell) bool {
	if s.Seek(key) && bytes.Equal(s.theNext.Row, key.Row) {
		return true
	}
	return s.SeekToPreviousRow(key)
}

// SeekToPreviousRow positions the scanner at the row immediately
// preceding key's row. It takes headSet(firstOnRow(key.Row)) on both
// sets, picks the closer (larger) last element across the two as
// beforeRow, then forward-seeks to firstOnRow(beforeRow.Row) with
// stopIfNextRow set so mvcc filtering cannot overshoot past it. If that
// forward seek finds no visible cell on beforeRow's row (it would have
// landed past it), it recurses using beforeRow as the new key.
func (s *MemStoreScanner) SeekToPreviousRow(key *Cell) bool {
	sentinel := FirstOnRow(key.Row)
	liveBefore := s.live.Lower(sentinel)
	snapBefore := s.snap.Lower(sentinel)
	beforeRow := maxCell(liveBefore, snapBefore)
	if beforeRow == nil {
		s.state = stateExhausted
		return false
	}
	return s.seekRowExact(beforeRow)
}

// SeekToLastRow positions the scanner at the very last row present across
// both sets.
func (s *MemStoreScanner) SeekToLastRow() bool {
	last := maxCell(s.live.Last(), s.snap.Last())
	if last == nil {
		s.state = stateExhausted
		return false
	}
	return s.seekRowExact(last)
}

// seekRowExact forward-seeks to the first cell of target's row, guarding
// against mvcc filtering overshooting into the next row; if no visible
// cell is found on target's row, it recurses via SeekToPreviousRow.
func (s *MemStoreScanner) seekRowExact(target *Cell) bool {
	rowSentinel := FirstOnRow(target.Row)
	s.reverseStartRow = target.Row
	s.stopIfNextRow = true
	found := s.Seek(rowSentinel)
	s.stopIfNextRow = false
	if !found || !bytes.Equal(s.theNext.Row, target.Row) {
		return s.SeekToPreviousRow(target)
	}
	return found
}

// GetSequenceID reports the maximum possible sequence id so that merge
// layers always order this scanner's data above every on-disk scanner.
func (s *MemStoreScanner) GetSequenceID() int64 {
	return math.MaxInt64
}

// ShouldUseScanner reports whether this scanner's creation-time live and
// snapshot time ranges could possibly overlap [lo,hi], given
// oldestUnexpiredTs.
func (s *MemStoreScanner) ShouldUseScanner(lo, hi, oldestUnexpiredTs int64) bool {
	return shouldUseScanner(s.liveRange, s.snapRange, lo, hi, oldestUnexpiredTs)
}

// Close releases this scanner's reference to its allocators. Safe to
// call more than once.
func (s *MemStoreScanner) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.liveIt = nil
	s.snapIt = nil
	s.liveNext = nil
	s.snapNext = nil
	s.theNext = nil
	if s.liveAlloc != nil {
		s.liveAlloc.DecScannerCount()
	}
	if s.snapAlloc != nil {
		s.snapAlloc.DecScannerCount()
	}
	s.state = stateClosed
}

var _ KeyValueScanner = (*MemStoreScanner)(nil)
