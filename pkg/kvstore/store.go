package kvstore

import (
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/cuemby/nitrite/pkg/config"
	"github.com/cuemby/nitrite/pkg/document"
	"github.com/cuemby/nitrite/pkg/errs"
	"github.com/cuemby/nitrite/pkg/events"
	"github.com/cuemby/nitrite/pkg/metrics"
	"github.com/cuemby/nitrite/pkg/nlog"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/sync/errgroup"
)

// Reserved map names: well-known buckets a Store keeps for its own
// bookkeeping rather than handing out to a caller's collection or index.
const (
	MetaMapName    = "$nitrite_meta"
	CatalogMapName = "$nitrite_catalog"
)

// Store opens a single bbolt file as a keyspace and hands out one Map per
// bucket, lazily, caching open maps in a registry keyed by encoded name.
type Store struct {
	path   string
	db     *bolt.DB
	once   sync.Once
	openMu sync.Mutex

	registry sync.Map // encoded name -> *BoltMap
	closed   atomic.Bool

	broker     *events.Broker
	storageCfg config.Storage
	nitriteCfg config.Nitrite
}

// Open opens (creating if absent) the bbolt file at path and returns a
// Store holding storageCfg and nitriteCfg for the lifetime of the
// instance: storageCfg.CommitBeforeClose gates the best-effort commit
// Close performs, storageCfg.KVSeparated gates whether Compact expects a
// KV-separated tree to collect, and nitriteCfg.FieldSeparator is applied
// to the document package's boot-time dotted-path separator. The
// keyspace is opened exactly once per Store instance; Open performs that
// one-shot work itself rather than deferring it to a later call.
func Open(path string, storageCfg config.Storage, nitriteCfg config.Nitrite, broker *events.Broker) (*Store, error) {
	storageCfg.DBPath = path
	s := &Store{path: path, broker: broker, storageCfg: storageCfg, nitriteCfg: nitriteCfg}
	var openErr error
	s.once.Do(func() {
		db, err := bolt.Open(path, 0600, nil)
		if err != nil {
			openErr = errs.Wrap(errs.BackendError, "open keyspace", err)
			return
		}
		s.db = db
	})
	if openErr != nil {
		metrics.RegisterComponent("store", false, openErr.Error())
		return nil, openErr
	}
	if nitriteCfg.FieldSeparator != "" {
		document.SetFieldSeparator(nitriteCfg.FieldSeparator)
	}
	metrics.RegisterComponent("store", true, "keyspace opened at "+path)
	return s, nil
}

// OpenMap returns the cached Map for name if already open; if the cache
// holds a closed entry it is evicted and reopened; otherwise a new bucket
// is created (if absent) and cached.
func (s *Store) OpenMap(name string) (*BoltMap, error) {
	if s.closed.Load() {
		return nil, errs.New(errs.StoreAlreadyClosed, "store is closed")
	}
	encoded := encodeName(name)

	if v, ok := s.registry.Load(encoded); ok {
		m := v.(*BoltMap)
		if !m.IsClosed() {
			return m, nil
		}
		s.registry.Delete(encoded)
	}

	s.openMu.Lock()
	defer s.openMu.Unlock()
	if v, ok := s.registry.Load(encoded); ok {
		return v.(*BoltMap), nil
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(encoded))
		return err
	})
	if err != nil {
		return nil, errs.Wrap(errs.BackendError, "create bucket", err)
	}
	m := &BoltMap{name: name, encoded: encoded, store: s}
	s.registry.Store(encoded, m)
	return m, nil
}

// evict removes name from the registry; called by BoltMap.Close.
func (s *Store) evict(encoded string) {
	s.registry.Delete(encoded)
}

// OpenMapCount returns the number of maps currently cached in the
// registry, exposed for pkg/metrics.Collector's periodic gauge sample.
func (s *Store) OpenMapCount() int {
	n := 0
	s.registry.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// metaMap returns the well-known per-map attribute store.
func (s *Store) metaMap() (*BoltMap, error) {
	return s.OpenMap(MetaMapName)
}

// Commit issues a synchronous persist of the keyspace. bbolt fsyncs on
// every committed transaction already, so the persist itself is a no-op;
// Commit is kept for interface parity with NitriteMap's explicit commit
// operation (and is the hook Close calls when commit_before_close is
// configured, and Clear's async cleanup calls after clearing a bucket).
func (s *Store) Commit() error {
	if s.closed.Load() {
		return errs.New(errs.StoreAlreadyClosed, "store is closed")
	}
	return s.commit()
}

func (s *Store) commit() error {
	return nil
}

// bucketScan is one bucket's compaction-scan result: how many keys it
// holds, sampled through Bucket.Stats() rather than left unread.
type bucketScan struct {
	encoded string
	keys    int
}

// Compact iterates every open map's bucket and runs bbolt's only available
// maintenance primitive — a read-only key count via Bucket.Stats(), the
// closest bbolt analogue to an LSM "scan" phase — through a worker pool.
// bbolt has no KV-separated value log, so the space-amp and staleness GC
// phases a true LSM engine would run next are unavailable; which message
// Compact logs for that depends on storageCfg.KVSeparated, matching the
// "only if the partition is KV-separated" / "otherwise logs GC is
// unavailable" branch a real collect_garbage would take.
func (s *Store) Compact() error {
	if s.closed.Load() {
		return errs.New(errs.StoreAlreadyClosed, "store is closed")
	}
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.CompactionDuration)
	var names []string
	s.registry.Range(func(key, _ any) bool {
		names = append(names, key.(string))
		return true
	})

	g := new(errgroup.Group)
	g.SetLimit(maxCompactWorkers())
	for _, n := range names {
		n := n
		g.Go(func() error {
			scan, err := s.compactOne(n)
			if err != nil {
				return err
			}
			nlog.Debug(fmt.Sprintf("kvstore: compaction scan of %s found %d keys", scan.encoded, scan.keys))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errs.Wrap(errs.BackendError, "compact", err)
	}
	if s.storageCfg.KVSeparated {
		nlog.Debug("kvstore: space-amp/staleness GC skipped, bbolt has no KV-separated tree to collect")
	} else {
		nlog.Debug("kvstore: GC unavailable for this backend (kv_separated not configured)")
	}
	return nil
}

func (s *Store) compactOne(encoded string) (bucketScan, error) {
	scan := bucketScan{encoded: encoded}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(encoded))
		if b == nil {
			return nil
		}
		scan.keys = b.Stats().KeyN
		return nil
	})
	return scan, err
}

// closingEventMetadata snapshots the fields of the active configuration
// relevant to a shutdown hook: whether a commit is about to run, and the
// schema/field-separator settings a reopen would need to agree on.
func closingEventMetadata(storageCfg config.Storage, nitriteCfg config.Nitrite) map[string]string {
	return map[string]string{
		"db_path":             storageCfg.DBPath,
		"kv_separated":        strconv.FormatBool(storageCfg.KVSeparated),
		"commit_before_close": strconv.FormatBool(storageCfg.CommitBeforeClose),
		"schema_version":      strconv.Itoa(nitriteCfg.SchemaVersion),
		"field_separator":     nitriteCfg.FieldSeparator,
	}
}

// Close runs the pre-close hook (publishing a Closing event carrying the
// active configuration, if a broker is attached), performs a best-effort
// commit when storageCfg.CommitBeforeClose is set, then closes the bbolt
// file. Close never panics: any error closing the underlying file is
// logged and returned, never both silently swallowed and re-raised.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.broker != nil {
		s.broker.Publish(&events.Event{
			Type:     events.EventClosing,
			Message:  s.path,
			Metadata: closingEventMetadata(s.storageCfg, s.nitriteCfg),
		})
	}
	if s.storageCfg.CommitBeforeClose {
		if err := s.commit(); err != nil {
			nlog.Errorf("kvstore: best-effort commit before close failed: %v", err)
		}
	}
	if err := s.db.Close(); err != nil {
		nlog.Errorf("kvstore: error closing keyspace: %v", err)
		return errs.Wrap(errs.BackendError, "close keyspace", err)
	}
	return nil
}

func maxCompactWorkers() int {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		return 1
	}
	return n
}

// attributesFor reads the attribute document for the map with the given
// decoded name from the meta-map: attribute access always delegates to the
// store's meta-map, keyed by the map's decoded name. The meta-map itself
// has no attributes (bypasses the lookup).
func (s *Store) attributesFor(decodedName string) (*document.Document, error) {
	if decodedName == MetaMapName {
		return nil, nil
	}
	meta, err := s.metaMap()
	if err != nil {
		return nil, err
	}
	v, err := meta.Get(document.String(decodedName))
	if err != nil {
		return nil, err
	}
	if v.IsNull() {
		return nil, nil
	}
	doc, ok := v.AsDocument()
	if !ok {
		return nil, errs.New(errs.ObjectMappingError, fmt.Sprintf("attributes for %q are not a document", decodedName))
	}
	return doc, nil
}

func (s *Store) setAttributesFor(decodedName string, attrs *document.Document) error {
	if decodedName == MetaMapName {
		return errs.New(errs.InvalidOperation, "the meta-map has no attributes of its own")
	}
	meta, err := s.metaMap()
	if err != nil {
		return err
	}
	return meta.Put(document.String(decodedName), document.DocumentValue(attrs))
}
