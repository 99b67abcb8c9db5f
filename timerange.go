package memstore

import (
	"math"
	"sync"
)

// TimeRange is an inclusive [Min,Max] span of cell timestamps.
type TimeRange struct {
	Min int64
	Max int64
}

// Overlaps reports whether tr and [lo,hi] share at least one instant. An
// empty TimeRange never overlaps anything.
func (tr TimeRange) Overlaps(lo, hi int64) bool {
	if tr.Min > tr.Max {
		return false
	}
	return tr.Min <= hi && lo <= tr.Max
}

// TimeRangeTracker tracks the [min,max] timestamps of a CellSet's current
// contents and answers overlap queries cheaply, without scanning the set.
type TimeRangeTracker struct {
	mu    sync.Mutex
	min   int64
	max   int64
	empty bool
}

// NewTimeRangeTracker returns a tracker reporting an empty range.
func NewTimeRangeTracker() *TimeRangeTracker {
	return &TimeRangeTracker{min: math.MaxInt64, max: math.MinInt64, empty: true}
}

// Update folds ts into the tracked range.
func (t *TimeRangeTracker) Update(ts int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ts < t.min {
		t.min = ts
	}
	if ts > t.max {
		t.max = ts
	}
	t.empty = false
}

// Range returns a snapshot of the tracked range. An empty tracker reports
// Min > Max so that Overlaps never matches it.
func (t *TimeRangeTracker) Range() TimeRange {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.empty {
		return TimeRange{Min: math.MaxInt64, Max: math.MinInt64}
	}
	return TimeRange{Min: t.min, Max: t.max}
}
