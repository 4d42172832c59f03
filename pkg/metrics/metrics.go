package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CollectionInsertsTotal counts documents inserted, per collection.
	CollectionInsertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nitrite_collection_inserts_total",
			Help: "Total number of documents inserted, by collection",
		},
		[]string{"collection"},
	)

	// CollectionUpdatesTotal counts documents updated, per collection.
	CollectionUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nitrite_collection_updates_total",
			Help: "Total number of documents updated, by collection",
		},
		[]string{"collection"},
	)

	// CollectionRemovesTotal counts documents removed, per collection.
	CollectionRemovesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nitrite_collection_removes_total",
			Help: "Total number of documents removed, by collection",
		},
		[]string{"collection"},
	)

	// CollectionRollbacksTotal counts write operations that aborted and
	// rolled back, per collection.
	CollectionRollbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nitrite_collection_rollbacks_total",
			Help: "Total number of write operations rolled back, by collection",
		},
		[]string{"collection"},
	)

	// CollectionOperationDuration times insert/update/remove calls.
	CollectionOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nitrite_collection_operation_duration_seconds",
			Help:    "Write pipeline operation duration in seconds, by collection and operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collection", "operation"},
	)

	// OpenMapsTotal tracks the number of maps cached in a Store's registry.
	OpenMapsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nitrite_store_open_maps",
			Help: "Number of maps currently open in the store registry",
		},
	)

	// CompactionDuration times kvstore.Store.Compact runs.
	CompactionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nitrite_store_compaction_duration_seconds",
			Help:    "Store compaction duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// MigrationStepsTotal counts executed migration steps, by instruction
	// type.
	MigrationStepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nitrite_migration_steps_total",
			Help: "Total number of migration steps executed, by instruction type",
		},
		[]string{"instruction_type"},
	)

	// MigrationDuration times a full migration run from the stored schema
	// version to the target version.
	MigrationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nitrite_migration_duration_seconds",
			Help:    "Full migration run duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(CollectionInsertsTotal)
	prometheus.MustRegister(CollectionUpdatesTotal)
	prometheus.MustRegister(CollectionRemovesTotal)
	prometheus.MustRegister(CollectionRollbacksTotal)
	prometheus.MustRegister(CollectionOperationDuration)
	prometheus.MustRegister(OpenMapsTotal)
	prometheus.MustRegister(CompactionDuration)
	prometheus.MustRegister(MigrationStepsTotal)
	prometheus.MustRegister(MigrationDuration)
}

// Handler returns the Prometheus HTTP scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer started at the current time.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
