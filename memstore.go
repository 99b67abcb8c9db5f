// Package memstore implements the in-memory write buffer that sits in
// front of an on-disk sorted-string store in a log-structured
// column-family storage engine. One MemStore instance is owned by one
// column family: it absorbs every put and tombstone, serves reads by
// merging with on-disk files via its Scanner, and periodically hands off
// an immutable Snapshot to a flusher that persists it to disk.
//
// Every exported MemStore method holds the MemStore's internal mutex for
// its duration, so concurrent Add/Delete/Upsert/Rollback/Snapshot calls
// are serialised against each other. A Scanner does not hold that mutex
// while it iterates. See README-equivalent spec.md §5 for the full
// concurrency contract.
package memstore

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// DeepOverhead is the estimated heap footprint of an empty MemStore
// instance (the live CellSet, its TimeRangeTracker, bookkeeping fields).
// heapSize is seeded with this constant and never drops below it while
// the live set is empty.
const DeepOverhead = 512

// FixedOverhead is the estimated per-entry container overhead (btree node
// slot, map bucket, etc.) added on top of a cell's own HeapSize when it is
// newly inserted into the live set.
const FixedOverhead = 48

// maxTime is used as the sentinel value of timeOfOldestEdit when the live
// set is empty.
var maxTime = time.Unix(1<<62, 0)

// MemStore is the live write buffer for one column family.
type MemStore struct {
	cf     string
	cfg    Config
	clock  clock.Clock
	logger *zap.Logger
	track  *tracker

	mu sync.Mutex // guards every field below

	live          *CellSet
	snapshot      *CellSet
	liveAlloc     *Allocator
	snapshotAlloc *Allocator
	liveRange     *TimeRangeTracker
	snapshotRange *TimeRangeTracker

	heapSize         int64 // atomic; DEEP_OVERHEAD + live contents
	snapshotSize     uint64
	snapshotID       int64
	timeOfOldestEdit time.Time
}

// New returns an empty MemStore for column family cf. clk may be nil to
// use the real wall clock; logger may be nil to discard log output.
func New(cf string, cfg Config, clk clock.Clock, logger *zap.Logger) *MemStore {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &MemStore{
		cf:               cf,
		cfg:              cfg,
		clock:            clk,
		logger:           logger.With(zap.String("cf", cf)),
		track:            newTracker(cf, nil),
		live:             NewCellSet(),
		snapshot:         NewCellSet(),
		liveRange:        NewTimeRangeTracker(),
		snapshotRange:    NewTimeRangeTracker(),
		heapSize:         DeepOverhead,
		snapshotID:       -1,
		timeOfOldestEdit: maxTime,
	}
	if cfg.UseSlabAllocator {
		m.liveAlloc = NewAllocator(cfg.SlabChunkSize, cfg.SlabMaxSlabSize)
	}
	m.track.setHeapBytes(DeepOverhead)
	return m
}

// Add inserts cell into the live set, optionally cloning its payload into
// the live slab allocator. Returns the number of heap bytes the live set
// grew by; zero if a byte-identical cell (same key tuple and mvcc) was
// already present.
func (m *MemStore) Add(cell *Cell) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addLocked(cell, m.cfg.UseSlabAllocator)
}

// Delete inserts a tombstone cell into the live set. Identical to Add:
// the cell's Type already marks it as a tombstone; resolving tombstones
// against puts is the merge layer's job, not the MemStore's.
func (m *MemStore) Delete(cell *Cell) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	delta := m.addLocked(cell, m.cfg.UseSlabAllocator)
	if delta > 0 {
		m.track.incDeletes()
	}
	return delta
}

func (m *MemStore) addLocked(cell *Cell, useAlloc bool) int64 {
	stored := cell
	if useAlloc && m.liveAlloc != nil {
		stored = cell.CloneInto(m.liveAlloc)
	}
	if !m.live.Add(stored) {
		return 0
	}
	m.liveRange.Update(stored.Timestamp)
	if m.timeOfOldestEdit.Equal(maxTime) {
		m.timeOfOldestEdit = m.clock.Now()
	}
	delta := FixedOverhead + stored.HeapSize()
	newSize := atomic.AddInt64(&m.heapSize, delta)
	m.track.setHeapBytes(newSize)
	if stored.Type == TypePut {
		m.track.incAdds()
	}
	return delta
}

// Upsert collapses hot-counter-style writes. Each cell is inserted
// directly onto the heap (bypassing the slab allocator, which would
// thrash under this workload — see spec.md §9). Then, scanning forward
// from the first-on-column sentinel, the first pre-existing version at
// the same (row,family,qualifier) with mvcc<=readPoint and Type==Put is
// kept (a concurrent scanner may still need it); every further such
// version is removed and its size subtracted.
func (m *MemStore) Upsert(cells []*Cell, readPoint uint64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	var collapsed int
	for _, cell := range cells {
		total += m.addLocked(cell, false)

		sentinel := FirstOnRowColumn(cell.Row, cell.Family, cell.Qualifier)
		it := m.live.TailIterator(sentinel)
		seenVisible := false
		for it.HasNext() {
			cur := it.Next()
			if cur == cell {
				continue
			}
			if !sameColumn(cur, cell) {
				break
			}
			if cur.Type != TypePut || cur.Mvcc > readPoint {
				continue
			}
			if !seenVisible {
				seenVisible = true
				continue
			}
			it.Remove()
			removedBytes := FixedOverhead + cur.HeapSize()
			total -= removedBytes
			newSize := atomic.AddInt64(&m.heapSize, -removedBytes)
			m.track.setHeapBytes(newSize)
			collapsed++
		}
	}
	m.track.addUpsertCollapsed(collapsed)
	return total
}

// Rollback removes, from both the outstanding snapshot (if any) and the
// live set, any cell equal to cell under Comparator — which requires an
// exact mvcc match, since mvcc is part of Comparator's ordering key.
// Snapshot removal does not affect heapSize, which tracks only the live
// set. A cell not present anywhere is a silent no-op. Used for
// write-ahead-log replay error recovery.
func (m *MemStore) Rollback(cell *Cell) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshotID >= 0 {
		m.snapshot.Remove(cell)
	}
	if removed := m.live.Remove(cell); removed != nil {
		delta := FixedOverhead + removed.HeapSize()
		newSize := atomic.AddInt64(&m.heapSize, -delta)
		m.track.setHeapBytes(newSize)
		m.track.incRollbacks()
	}
}

// Snapshot describes the frozen cell set produced by Snapshot(), handed
// to the flusher. Scanner is a read-only ordered view over the frozen
// set; it does not apply any mvcc filtering (the flusher persists
// everything the snapshot holds).
type Snapshot struct {
	ID        int64
	CellCount int
	ByteSize  uint64
	TimeRange TimeRange
	Scanner   *CellIterator
}

// Snapshot atomically swaps the live set aside so it can be flushed to
// disk, and returns a descriptor for the frozen set. If a snapshot is
// already outstanding, this call is a no-op (besides logging a warning)
// and returns a descriptor reflecting the existing frozen set — the
// caller must clear it with ClearSnapshot before another can be taken.
func (m *MemStore) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.snapshotID >= 0 {
		m.logger.Warn("snapshot already outstanding; returning existing snapshot descriptor",
			zap.Int64("snapshotId", m.snapshotID))
		return m.describeSnapshotLocked()
	}

	m.snapshotID = m.clock.Now().UnixNano()
	m.snapshotSize = uint64(atomic.LoadInt64(&m.heapSize)) - DeepOverhead
	m.snapshot = m.live
	m.snapshotRange = m.liveRange
	m.snapshotAlloc = m.liveAlloc

	m.live = NewCellSet()
	m.liveRange = NewTimeRangeTracker()
	if m.cfg.UseSlabAllocator {
		m.liveAlloc = NewAllocator(m.cfg.SlabChunkSize, m.cfg.SlabMaxSlabSize)
	} else {
		m.liveAlloc = nil
	}
	atomic.StoreInt64(&m.heapSize, DeepOverhead)
	m.timeOfOldestEdit = maxTime

	m.track.setHeapBytes(DeepOverhead)
	m.track.setSnapshotBytes(m.snapshotSize)
	m.track.incSnapshots()
	m.logger.Info("snapshot taken",
		zap.Int64("snapshotId", m.snapshotID),
		zap.String("snapshotSize", humanize.Bytes(m.snapshotSize)),
		zap.Int("cellCount", m.snapshot.Len()))

	return m.describeSnapshotLocked()
}

func (m *MemStore) describeSnapshotLocked() Snapshot {
	return Snapshot{
		ID:        m.snapshotID,
		CellCount: m.snapshot.Len(),
		ByteSize:  m.snapshotSize,
		TimeRange: m.snapshotRange.Range(),
		Scanner:   m.snapshot.DescendingIterator(),
	}
}

// ClearSnapshot releases the frozen set once the flusher has durably
// persisted it. Fails with ErrSnapshotIDMismatch if id does not match the
// currently outstanding snapshot.
func (m *MemStore) ClearSnapshot(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id != m.snapshotID {
		return snapshotIDMismatch(m.snapshotID, id)
	}
	if m.snapshotAlloc != nil {
		m.snapshotAlloc.Close()
	}
	m.snapshot = NewCellSet()
	m.snapshotRange = NewTimeRangeTracker()
	m.snapshotSize = 0
	m.snapshotID = -1
	m.track.setSnapshotBytes(0)
	m.track.incSnapshotsCleared()
	return nil
}

// GetFlushableSize returns the byte size a flusher should account for:
// the frozen snapshot's size if one is outstanding, otherwise the live
// set's current size.
func (m *MemStore) GetFlushableSize() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshotID >= 0 {
		return m.snapshotSize
	}
	return uint64(atomic.LoadInt64(&m.heapSize))
}

// GetNextRow returns the smallest cell across live and snapshot whose row
// sorts strictly after cell's row, or the first cell overall if cell is
// nil. Returns nil if no such cell exists.
func (m *MemStore) GetNextRow(cell *Cell) *Cell {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cell == nil {
		return minCell(m.live.First(), m.snapshot.First())
	}
	sentinel := LastOnRow(cell.Row)
	return minCell(peekTail(m.live, sentinel), peekTail(m.snapshot, sentinel))
}

func peekTail(set *CellSet, sentinel *Cell) *Cell {
	it := set.TailIterator(sentinel)
	return it.Peek()
}

// ShouldUseScanner reports whether a scan over [lo,hi] could possibly see
// data in this MemStore, given oldestUnexpiredTs (the lowest timestamp
// any retention policy still permits returning). It is an inexpensive
// prune a caller performs before paying the cost of opening a Scanner.
func (m *MemStore) ShouldUseScanner(lo, hi, oldestUnexpiredTs int64) bool {
	m.mu.Lock()
	liveRange := m.liveRange.Range()
	snapRange := m.snapshotRange.Range()
	m.mu.Unlock()
	return shouldUseScanner(liveRange, snapRange, lo, hi, oldestUnexpiredTs)
}

func shouldUseScanner(liveRange, snapRange TimeRange, lo, hi, oldestUnexpiredTs int64) bool {
	if !liveRange.Overlaps(lo, hi) && !snapRange.Overlaps(lo, hi) {
		return false
	}
	maxTs := liveRange.Max
	if snapRange.Max > maxTs {
		maxTs = snapRange.Max
	}
	return maxTs >= oldestUnexpiredTs
}

// RowBeforeTracker drives GetRowKeyAtOrBefore, the legacy row-addressing
// helper. Row is the row to search at-or-before; Candidate is invoked for
// each cell under consideration and should report whether it improves on
// whatever the tracker has already seen; InTargetTable reports whether
// row still belongs to the table being searched (once false, the
// backward walk stops).
type RowBeforeTracker interface {
	Row() []byte
	Candidate(c *Cell) bool
	InTargetTable(row []byte) bool
}

// GetRowKeyAtOrBefore resolves tracker's target row against both the live
// and snapshot sets: first a forward probe at the target, then — if that
// finds nothing — a row-by-row backward walk using headSet/
// descendingIterator, for as long as the tracker reports the row is
// still within its target table and still an improvement. Cells found to
// be expired during the walk are removed from their set as a side effect.
// This is a legacy API kept for compatibility with older row-addressing
// callers; new code should prefer Scanner.
func (m *MemStore) GetRowKeyAtOrBefore(tracker RowBeforeTracker, now int64, isExpired func(*Cell, int64) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.walkAtOrBefore(m.live, tracker, now, isExpired)
	m.walkAtOrBefore(m.snapshot, tracker, now, isExpired)
}

func (m *MemStore) walkAtOrBefore(set *CellSet, tracker RowBeforeTracker, now int64, isExpired func(*Cell, int64) bool) {
	target := FirstOnRow(tracker.Row())
	found := false
	it := set.TailIterator(target)
	for it.HasNext() {
		c := it.Peek()
		if isExpired != nil && isExpired(c, now) {
			it.Next()
			it.Remove()
			continue
		}
		if sameRow(c.Row, tracker.Row()) {
			tracker.Candidate(c)
			found = true
		}
		break
	}
	if found {
		return
	}

	row := tracker.Row()
	for tracker.InTargetTable(row) {
		sentinel := FirstOnRow(row)
		hit := set.HeadDescendingIterator(sentinel, true)
		improved := false
		for hit.HasNext() {
			c := hit.Next()
			if isExpired != nil && isExpired(c, now) {
				hit.Remove()
				continue
			}
			if tracker.Candidate(c) {
				improved = true
			}
			row = c.Row
			break
		}
		if !improved {
			break
		}
	}
}

// TimeOfOldestEdit returns the wall-clock time the oldest unflushed edit
// in the live set was made, or the MemStore's MAX sentinel if the live
// set is empty.
func (m *MemStore) TimeOfOldestEdit() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timeOfOldestEdit
}

// UpdateAge refreshes the oldest-edit-age gauge. Mirrors the teacher's
// Cache.UpdateAge: a point-in-time sample meant to be called periodically
// by the enclosing store, not on every write.
func (m *MemStore) UpdateAge() {
	m.mu.Lock()
	oldest := m.timeOfOldestEdit
	m.mu.Unlock()
	if oldest.Equal(maxTime) {
		m.track.setOldestEditAge(0)
		return
	}
	m.track.setOldestEditAge(m.clock.Now().Sub(oldest).Seconds())
}

func sameRow(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Close releases the MemStore's live allocator. Intended for use once the
// column family itself is being torn down (not part of the per-flush
// snapshot/clearSnapshot cycle).
func (m *MemStore) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.liveAlloc != nil {
		m.liveAlloc.Close()
	}
}
