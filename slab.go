package memstore

import (
	"sync"
	"sync/atomic"
)

// DefaultChunkSize is the size of each arena chunk when a caller doesn't
// override it via Config.
const DefaultChunkSize = 2 << 20 // 2MB

// DefaultMaxSlabSize bounds how large a single allocation request may be
// before the allocator refuses it and the caller falls back to its own
// buffer.
const DefaultMaxSlabSize = 256 << 10 // 256KB

// chunk is one arena slab. bytes already handed out via Allocate are never
// moved; off marks the next free byte.
type chunk struct {
	buf []byte
	off int
}

// Allocator is a chunked arena that copies small-to-medium cell payloads
// into large shared chunks to reduce heap fragmentation. Chunks outlive
// the MemStore generation that created them for as long as a scanner
// opened against that generation is still alive; see Close and
// IncScannerCount/DecScannerCount.
type Allocator struct {
	chunkSize   int
	maxSlabSize int

	mu      sync.Mutex
	current *chunk
	chunks  []*chunk

	scannerCount int32
	detached     int32
}

// NewAllocator returns an allocator that carves chunkSize-byte chunks and
// refuses allocations larger than maxSlabSize.
func NewAllocator(chunkSize, maxSlabSize int) *Allocator {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if maxSlabSize <= 0 {
		maxSlabSize = DefaultMaxSlabSize
	}
	return &Allocator{chunkSize: chunkSize, maxSlabSize: maxSlabSize}
}

// Allocate returns a writable slice of exactly n bytes carved from the
// active chunk, or nil if n exceeds the configured maximum slab size (the
// caller then keeps the cell's own buffer). Already-issued bytes are never
// moved: when the active chunk cannot fit n more bytes, a fresh chunk
// replaces it and the old one is retained in full until it is reclaimable.
func (a *Allocator) Allocate(n int) []byte {
	if n <= 0 || n > a.maxSlabSize {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil || a.current.off+n > len(a.current.buf) {
		size := a.chunkSize
		if n > size {
			size = n
		}
		a.current = &chunk{buf: make([]byte, size)}
		a.chunks = append(a.chunks, a.current)
	}
	c := a.current
	b := c.buf[c.off : c.off+n : c.off+n]
	c.off += n
	return b
}

// IncScannerCount records that a scanner has been opened against this
// allocator's generation. Safe to call from any goroutine.
func (a *Allocator) IncScannerCount() {
	atomic.AddInt32(&a.scannerCount, 1)
}

// DecScannerCount records that a scanner opened against this allocator's
// generation has closed. Safe to call from any goroutine. If the
// allocator has already been detached (Close) and this was the last
// scanner, its chunks become reclaimable.
func (a *Allocator) DecScannerCount() {
	if atomic.AddInt32(&a.scannerCount, -1) == 0 {
		a.maybeRelease()
	}
}

// Close marks the allocator as detached from the live MemStore generation
// (called once the paired snapshot has been flushed). Chunks are released
// immediately if no scanner currently references this allocator, or
// deferred until the last one closes.
func (a *Allocator) Close() {
	atomic.StoreInt32(&a.detached, 1)
	a.maybeRelease()
}

func (a *Allocator) maybeRelease() {
	if atomic.LoadInt32(&a.detached) == 0 || atomic.LoadInt32(&a.scannerCount) != 0 {
		return
	}
	a.mu.Lock()
	a.chunks = nil
	a.current = nil
	a.mu.Unlock()
}

// CloneInto copies c's variable-length payloads into a single allocation
// from alloc and returns a new Cell whose Row/Family/Qualifier/Value are
// slices of that allocation. If the combined size exceeds alloc's maximum
// slab size, or alloc is nil, c is returned unchanged and keeps its own
// buffer — this is the expected, non-error path (§4.1).
func (c *Cell) CloneInto(alloc *Allocator) *Cell {
	if alloc == nil {
		return c
	}
	total := len(c.Row) + len(c.Family) + len(c.Qualifier) + len(c.Value)
	buf := alloc.Allocate(total)
	if buf == nil {
		return c
	}
	n := 0
	row := buf[n : n+len(c.Row)]
	copy(row, c.Row)
	n += len(c.Row)
	family := buf[n : n+len(c.Family)]
	copy(family, c.Family)
	n += len(c.Family)
	qualifier := buf[n : n+len(c.Qualifier)]
	copy(qualifier, c.Qualifier)
	n += len(c.Qualifier)
	value := buf[n : n+len(c.Value)]
	copy(value, c.Value)
	return &Cell{
		Row:       row,
		Family:    family,
		Qualifier: qualifier,
		Timestamp: c.Timestamp,
		Type:      c.Type,
		Mvcc:      c.Mvcc,
		Value:     value,
	}
}
