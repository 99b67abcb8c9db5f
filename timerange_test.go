package memstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTimeRangeOverlaps(t *testing.T) {
	tr := TimeRange{Min: 10, Max: 20}
	require.True(t, tr.Overlaps(15, 25))
	require.True(t, tr.Overlaps(0, 10))
	require.False(t, tr.Overlaps(21, 30))
	require.False(t, tr.Overlaps(0, 9))
}

func TestEmptyTimeRangeNeverOverlaps(t *testing.T) {
	empty := TimeRange{Min: 1, Max: 0}
	require.False(t, empty.Overlaps(-1000, 1000))
}

func TestTimeRangeTrackerUpdate(t *testing.T) {
	tr := NewTimeRangeTracker()
	empty := tr.Range()
	require.False(t, empty.Overlaps(-1000, 1000))

	tr.Update(50)
	tr.Update(10)
	tr.Update(90)
	got := tr.Range()
	require.Equal(t, int64(10), got.Min)
	require.Equal(t, int64(90), got.Max)
}
