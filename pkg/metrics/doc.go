/*
Package metrics provides Prometheus instrumentation for a nitrite Store and
its collections.

Metrics are registered at package init against the default Prometheus
registry and exposed over HTTP for scraping:

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Metric Categories                 │          │
	│  │                                              │          │
	│  │  Collection: insert/update/remove/rollback  │          │
	│  │  Store: map count, compaction duration      │          │
	│  │  Migration: applied steps, duration         │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Collection metrics

CollectionInsertsTotal, CollectionUpdatesTotal, CollectionRemovesTotal and
CollectionRollbacksTotal are CounterVecs labelled by collection name,
incremented by pkg/collection.WriteOperations on every completed (or, for
rollbacks, aborted) write. CollectionOperationDuration is a HistogramVec
labelled by collection name and operation ("insert", "update", "remove"),
recorded with a Timer started at the top of each WriteOperations method.

# Store metrics

OpenMapsTotal is a Gauge tracking the number of maps currently cached in a
Store's registry. CompactionDuration is a Histogram of kvstore.Store.Compact
runtimes.

# Migration metrics

MigrationStepsTotal is a CounterVec labelled by instruction type name,
incremented once per executed migration.Step.
MigrationDuration is a Histogram of full migration-run wall time.

Use NewTimer and its ObserveDuration/ObserveDurationVec methods to record
against any Histogram or HistogramVec declared here, and Handler to mount
the scrape endpoint on an HTTP server.
*/
package metrics
