package memstore

import (
	"bytes"
	"math"
)

// CellType is the type tag carried by every Cell. Deletes and puts share a
// single ordered set; the type tag is what lets a merge layer above tell
// a tombstone from a value at the same timestamp.
type CellType uint8

const (
	// TypeMinimum never appears on a real cell. It is the smallest type
	// code and is used to build sentinels that must sort after every
	// real cell sharing the same row/family/qualifier/timestamp.
	TypeMinimum CellType = 0
	// TypePut marks a normal value.
	TypePut CellType = 4
	// TypeDelete marks a tombstone for a single (row,family,qualifier,ts).
	TypeDelete CellType = 8
	// TypeDeleteColumn marks a tombstone for every version of a column at
	// or before the tombstone's timestamp.
	TypeDeleteColumn CellType = 12
	// TypeDeleteFamily marks a tombstone for every column in a family at
	// or before the tombstone's timestamp.
	TypeDeleteFamily CellType = 14
	// TypeMaximum never appears on a real cell. It is the largest type
	// code and is used to build sentinels that must sort before every
	// real cell sharing the same row/family/qualifier/timestamp.
	TypeMaximum CellType = 255
)

// LatestTimestamp sorts before every real timestamp under the descending
// timestamp ordering rule (newer first).
const LatestTimestamp int64 = math.MaxInt64

// OldestTimestamp sorts after every real timestamp under the descending
// timestamp ordering rule.
const OldestTimestamp int64 = math.MinInt64

// CellFixedOverhead is the estimated per-cell struct overhead (slice
// headers, the int64/uint64 fields, the type byte) independent of the
// variable-length byte payloads it carries.
const CellFixedOverhead = 7*8 + 4*24 // scalar fields + four slice headers

// Cell is an immutable (row, family, qualifier, timestamp, type, mvcc)
// record carrying a value. Two cells with byte-identical Row/Family/
// Qualifier/Timestamp/Type/Mvcc compare equal under Comparator regardless
// of their Value; Value participates only in Equal.
type Cell struct {
	Row       []byte
	Family    []byte
	Qualifier []byte
	Timestamp int64
	Type      CellType
	Mvcc      uint64
	Value     []byte
}

// NewCell builds a Cell from its constituent bytes.
func NewCell(row, family, qualifier []byte, ts int64, typ CellType, mvcc uint64, value []byte) *Cell {
	return &Cell{Row: row, Family: family, Qualifier: qualifier, Timestamp: ts, Type: typ, Mvcc: mvcc, Value: value}
}

// HeapSize estimates the number of bytes this cell occupies on the heap,
// including its variable-length payloads.
func (c *Cell) HeapSize() int64 {
	return CellFixedOverhead + int64(len(c.Row)+len(c.Family)+len(c.Qualifier)+len(c.Value))
}

// Equal reports whether two cells carry identical bytes in every field,
// including Value. This is a stricter test than Comparator equality.
func (c *Cell) Equal(o *Cell) bool {
	if o == nil {
		return false
	}
	return c.Timestamp == o.Timestamp &&
		c.Type == o.Type &&
		c.Mvcc == o.Mvcc &&
		bytes.Equal(c.Row, o.Row) &&
		bytes.Equal(c.Family, o.Family) &&
		bytes.Equal(c.Qualifier, o.Qualifier) &&
		bytes.Equal(c.Value, o.Value)
}

// sameColumn reports whether a and b share the same row, family and
// qualifier, ignoring timestamp, type, mvcc and value.
func sameColumn(a, b *Cell) bool {
	return bytes.Equal(a.Row, b.Row) && bytes.Equal(a.Family, b.Family) && bytes.Equal(a.Qualifier, b.Qualifier)
}

// Comparator orders cells by (row, family, qualifier) ascending, then
// timestamp descending (newer first), then type code descending (deletes
// sort before puts at an equal timestamp), then mvcc ascending. It never
// inspects Value. A LastOnRow sentinel (empty family and qualifier,
// TypeMinimum) sorts after every other cell of its row.
func Comparator(a, b *Cell) int {
	if a == b {
		return 0
	}
	if c := bytes.Compare(a.Row, b.Row); c != 0 {
		return c
	}
	aLast := a.Type == TypeMinimum && len(a.Family) == 0 && len(a.Qualifier) == 0
	bLast := b.Type == TypeMinimum && len(b.Family) == 0 && len(b.Qualifier) == 0
	if aLast != bLast {
		if aLast {
			return 1
		}
		return -1
	}
	if c := bytes.Compare(a.Family, b.Family); c != 0 {
		return c
	}
	if c := bytes.Compare(a.Qualifier, b.Qualifier); c != 0 {
		return c
	}
	switch {
	case a.Timestamp > b.Timestamp:
		return -1
	case a.Timestamp < b.Timestamp:
		return 1
	}
	if c := int(b.Type) - int(a.Type); c != 0 {
		return c
	}
	switch {
	case a.Mvcc < b.Mvcc:
		return -1
	case a.Mvcc > b.Mvcc:
		return 1
	}
	return 0
}

// FirstOnRow builds the sentinel that sorts strictly before every real
// cell belonging to row, in any family/qualifier/timestamp/type/mvcc.
func FirstOnRow(row []byte) *Cell {
	return &Cell{Row: row, Timestamp: LatestTimestamp, Type: TypeMaximum}
}

// FirstOnRowColumn builds the sentinel that sorts strictly before every
// real cell belonging to the (row, family, qualifier) column, used to
// anchor the forward scan in Upsert.
func FirstOnRowColumn(row, family, qualifier []byte) *Cell {
	return &Cell{Row: row, Family: family, Qualifier: qualifier, Timestamp: LatestTimestamp, Type: TypeMaximum}
}

// LastOnRow builds the sentinel that sorts strictly after every real cell
// belonging to row. TailSet(LastOnRow(row)) yields the first cell of the
// next row (or nothing, if row is the last row present).
func LastOnRow(row []byte) *Cell {
	return &Cell{Row: row, Timestamp: OldestTimestamp, Type: TypeMinimum, Mvcc: math.MaxUint64}
}

func minCell(a, b *Cell) *Cell {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case Comparator(a, b) <= 0:
		return a
	default:
		return b
	}
}

func maxCell(a, b *Cell) *Cell {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case Comparator(a, b) >= 0:
		return a
	default:
		return b
	}
}
