package memstore

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// memstoreMetrics are the process-wide vectors every MemStore's tracker
// reports into, labelled by column family. Modelled directly on
// storage/wal's walMetrics/walTracker split: one package-level metrics
// registry, one lightweight per-instance tracker that mirrors values into
// it.
type memstoreMetrics struct {
	HeapBytes        *prometheus.GaugeVec
	SnapshotBytes    *prometheus.GaugeVec
	OldestEditAgeSec *prometheus.GaugeVec
	Adds             *prometheus.CounterVec
	Deletes          *prometheus.CounterVec
	UpsertCollapsed  *prometheus.CounterVec
	Rollbacks        *prometheus.CounterVec
	Snapshots        *prometheus.CounterVec
	SnapshotsCleared *prometheus.CounterVec
}

var (
	metricsOnce   sync.Once
	sharedMetrics *memstoreMetrics
)

func defaultMetrics() *memstoreMetrics {
	metricsOnce.Do(func() {
		sharedMetrics = newMemstoreMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

func newMemstoreMetrics(reg prometheus.Registerer) *memstoreMetrics {
	m := &memstoreMetrics{
		HeapBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "memstore", Name: "heap_bytes", Help: "Estimated heap size of the live cell set.",
		}, []string{"cf"}),
		SnapshotBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "memstore", Name: "snapshot_bytes", Help: "Byte size frozen at the last snapshot() call.",
		}, []string{"cf"}),
		OldestEditAgeSec: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "memstore", Name: "oldest_edit_age_seconds", Help: "Age of the oldest unflushed edit in the live set.",
		}, []string{"cf"}),
		Adds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memstore", Name: "adds_total", Help: "Put cells newly inserted into the live set.",
		}, []string{"cf"}),
		Deletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memstore", Name: "deletes_total", Help: "Tombstones accepted by Delete.",
		}, []string{"cf"}),
		UpsertCollapsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memstore", Name: "upsert_collapsed_total", Help: "Older versions collapsed by Upsert.",
		}, []string{"cf"}),
		Rollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memstore", Name: "rollbacks_total", Help: "Cells removed by Rollback.",
		}, []string{"cf"}),
		Snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memstore", Name: "snapshots_total", Help: "Snapshot() calls that produced a new snapshot.",
		}, []string{"cf"}),
		SnapshotsCleared: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memstore", Name: "snapshots_cleared_total", Help: "ClearSnapshot() calls that succeeded.",
		}, []string{"cf"}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{
			m.HeapBytes, m.SnapshotBytes, m.OldestEditAgeSec,
			m.Adds, m.Deletes, m.UpsertCollapsed, m.Rollbacks, m.Snapshots, m.SnapshotsCleared,
		} {
			_ = reg.Register(c)
		}
	}
	return m
}

// tracker mirrors MemStore bookkeeping into the shared prometheus vectors,
// labelled by column family name. Fields should only ever be read through
// the MemStore that owns them; tracker itself holds no state beyond the
// label.
type tracker struct {
	metrics *memstoreMetrics
	cf      string
}

func newTracker(cf string, metrics *memstoreMetrics) *tracker {
	if metrics == nil {
		metrics = defaultMetrics()
	}
	return &tracker{metrics: metrics, cf: cf}
}

func (t *tracker) setHeapBytes(n int64)     { t.metrics.HeapBytes.WithLabelValues(t.cf).Set(float64(n)) }
func (t *tracker) setSnapshotBytes(n uint64) {
	t.metrics.SnapshotBytes.WithLabelValues(t.cf).Set(float64(n))
}
func (t *tracker) setOldestEditAge(seconds float64) {
	t.metrics.OldestEditAgeSec.WithLabelValues(t.cf).Set(seconds)
}
func (t *tracker) incAdds()             { t.metrics.Adds.WithLabelValues(t.cf).Inc() }
func (t *tracker) incDeletes()          { t.metrics.Deletes.WithLabelValues(t.cf).Inc() }
func (t *tracker) addUpsertCollapsed(n int) {
	if n > 0 {
		t.metrics.UpsertCollapsed.WithLabelValues(t.cf).Add(float64(n))
	}
}
func (t *tracker) incRollbacks()        { t.metrics.Rollbacks.WithLabelValues(t.cf).Inc() }
func (t *tracker) incSnapshots()        { t.metrics.Snapshots.WithLabelValues(t.cf).Inc() }
func (t *tracker) incSnapshotsCleared() { t.metrics.SnapshotsCleared.WithLabelValues(t.cf).Inc() }
