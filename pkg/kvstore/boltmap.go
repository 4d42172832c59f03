package kvstore

import (
	"encoding/binary"
	"iter"
	"sync/atomic"

	"github.com/cuemby/nitrite/pkg/document"
	"github.com/cuemby/nitrite/pkg/errs"
	"github.com/cuemby/nitrite/pkg/nlog"
	bolt "go.etcd.io/bbolt"
)

// BoltMap is a single bbolt bucket exposed as an ordered Map. Every key is
// stored under its order-preserving document.Value.SortKey() bytes; the
// bucket value is an envelope holding both the exact key and the stored
// payload (see entryEnvelope), so navigable-key operations can return a
// faithful document.Value rather than a reconstruction from the sort key
// alone.
type BoltMap struct {
	name    string
	encoded string
	store   *Store

	closed  atomic.Bool
	dropped atomic.Bool
}

func (m *BoltMap) Name() string { return m.name }

func (m *BoltMap) checkOpen() error {
	if m.dropped.Load() {
		return errs.New(errs.InvalidOperation, "map is dropped")
	}
	if m.closed.Load() {
		return errs.New(errs.StoreAlreadyClosed, "map is closed")
	}
	return nil
}

// entryEnvelope is the exact-round-trip payload stored as a bbolt value:
// the caller's own key (so FirstKey/LastKey/... can return it without
// lossy reconstruction from sort bytes) paired with the stored value.
type entryEnvelope struct {
	key document.Value
	val document.Value
}

func encodeEnvelope(k, v document.Value) ([]byte, error) {
	kb, err := k.MarshalBinary()
	if err != nil {
		return nil, err
	}
	vb, err := v.MarshalBinary()
	if err != nil {
		return nil, err
	}
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(kb)))
	buf := make([]byte, 0, n+len(kb)+len(vb))
	buf = append(buf, lenBuf[:n]...)
	buf = append(buf, kb...)
	buf = append(buf, vb...)
	return buf, nil
}

func decodeEnvelope(data []byte) (entryEnvelope, error) {
	klen, n := binary.Uvarint(data)
	if n <= 0 {
		return entryEnvelope{}, errs.New(errs.BackendError, "corrupt entry envelope")
	}
	data = data[n:]
	if uint64(len(data)) < klen {
		return entryEnvelope{}, errs.New(errs.BackendError, "truncated entry envelope key")
	}
	var k, v document.Value
	if err := k.UnmarshalBinary(data[:klen]); err != nil {
		return entryEnvelope{}, errs.Wrap(errs.BackendError, "decode entry key", err)
	}
	if err := v.UnmarshalBinary(data[klen:]); err != nil {
		return entryEnvelope{}, errs.Wrap(errs.BackendError, "decode entry value", err)
	}
	return entryEnvelope{key: k, val: v}, nil
}

func (m *BoltMap) bucket(tx *bolt.Tx) *bolt.Bucket {
	return tx.Bucket([]byte(m.encoded))
}

func (m *BoltMap) ContainsKey(k document.Value) (bool, error) {
	if err := m.checkOpen(); err != nil {
		return false, err
	}
	var found bool
	err := m.store.db.View(func(tx *bolt.Tx) error {
		found = m.bucket(tx).Get(k.SortKey()) != nil
		return nil
	})
	if err != nil {
		return false, errs.Wrap(errs.BackendError, "contains_key", err)
	}
	return found, nil
}

func (m *BoltMap) Get(k document.Value) (document.Value, error) {
	if err := m.checkOpen(); err != nil {
		return document.Null, err
	}
	var result document.Value = document.Null
	err := m.store.db.View(func(tx *bolt.Tx) error {
		raw := m.bucket(tx).Get(k.SortKey())
		if raw == nil {
			return nil
		}
		env, err := decodeEnvelope(raw)
		if err != nil {
			return err
		}
		result = env.val
		return nil
	})
	if err != nil {
		if e, ok := err.(*errs.Error); ok {
			return document.Null, e
		}
		return document.Null, errs.Wrap(errs.BackendError, "get", err)
	}
	return result, nil
}

func (m *BoltMap) Put(k, v document.Value) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	env, err := encodeEnvelope(k, v)
	if err != nil {
		return errs.Wrap(errs.ObjectMappingError, "encode entry", err)
	}
	err = m.store.db.Update(func(tx *bolt.Tx) error {
		return m.bucket(tx).Put(k.SortKey(), env)
	})
	if err != nil {
		return errs.Wrap(errs.BackendError, "put", err)
	}
	return nil
}

func (m *BoltMap) Remove(k document.Value) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	err := m.store.db.Update(func(tx *bolt.Tx) error {
		return m.bucket(tx).Delete(k.SortKey())
	})
	if err != nil {
		return errs.Wrap(errs.BackendError, "remove", err)
	}
	return nil
}

func (m *BoltMap) PutIfAbsent(k, v document.Value) (document.Value, bool, error) {
	if err := m.checkOpen(); err != nil {
		return document.Null, false, err
	}
	var existed bool
	var prior document.Value = document.Null
	err := m.store.db.Update(func(tx *bolt.Tx) error {
		b := m.bucket(tx)
		raw := b.Get(k.SortKey())
		if raw != nil {
			existed = true
			env, err := decodeEnvelope(raw)
			if err != nil {
				return err
			}
			prior = env.val
			return nil
		}
		env, err := encodeEnvelope(k, v)
		if err != nil {
			return err
		}
		return b.Put(k.SortKey(), env)
	})
	if err != nil {
		if e, ok := err.(*errs.Error); ok {
			return document.Null, false, e
		}
		return document.Null, false, errs.Wrap(errs.BackendError, "put_if_absent", err)
	}
	return prior, existed, nil
}

// PutAll writes every entry atomically within a single bbolt transaction —
// the Go rendering of the Rust adapter's keyspace-batch commit.
func (m *BoltMap) PutAll(entries []Entry) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	err := m.store.db.Update(func(tx *bolt.Tx) error {
		b := m.bucket(tx)
		for _, e := range entries {
			env, err := encodeEnvelope(e.Key, e.Value)
			if err != nil {
				return err
			}
			if err := b.Put(e.Key.SortKey(), env); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errs.Wrap(errs.BackendError, "put_all", err)
	}
	return nil
}

func (m *BoltMap) Size() (int, error) {
	if err := m.checkOpen(); err != nil {
		return 0, err
	}
	var n int
	err := m.store.db.View(func(tx *bolt.Tx) error {
		n = m.bucket(tx).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, errs.Wrap(errs.BackendError, "size", err)
	}
	return n, nil
}

func (m *BoltMap) IsEmpty() (bool, error) {
	n, err := m.Size()
	return n == 0, err
}

// Clear iterates and removes every key, then starts a goroutine that
// commits the store and logs the post-clear GC outcome (bbolt has no GC
// to run). Errors from that goroutine are logged, never propagated.
func (m *BoltMap) Clear() error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	err := m.store.db.Update(func(tx *bolt.Tx) error {
		b := m.bucket(tx)
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errs.Wrap(errs.BackendError, "clear", err)
	}
	go func() {
		if err := m.store.Commit(); err != nil {
			nlog.Errorf("kvstore: commit after clear failed for map %s: %v", m.name, err)
			return
		}
		if m.store.storageCfg.KVSeparated {
			nlog.Debug("kvstore: space-amp/staleness GC skipped after clear, bbolt has no KV-separated tree to collect")
		} else {
			nlog.Debug("kvstore: GC unavailable for this backend, skipping collect_garbage after clear")
		}
	}()
	return nil
}

func (m *BoltMap) FirstKey() (document.Value, bool, error) {
	return m.boundaryKey(func(c *bolt.Cursor) ([]byte, []byte) { return c.First() })
}

func (m *BoltMap) LastKey() (document.Value, bool, error) {
	return m.boundaryKey(func(c *bolt.Cursor) ([]byte, []byte) { return c.Last() })
}

func (m *BoltMap) boundaryKey(seek func(*bolt.Cursor) ([]byte, []byte)) (document.Value, bool, error) {
	if err := m.checkOpen(); err != nil {
		return document.Null, false, err
	}
	var result document.Value
	var found bool
	err := m.store.db.View(func(tx *bolt.Tx) error {
		c := m.bucket(tx).Cursor()
		_, v := seek(c)
		if v == nil {
			return nil
		}
		env, err := decodeEnvelope(v)
		if err != nil {
			return err
		}
		result, found = env.key, true
		return nil
	})
	if err != nil {
		return document.Null, false, errs.Wrap(errs.BackendError, "boundary key", err)
	}
	return result, found, nil
}

func (m *BoltMap) HigherKey(k document.Value) (document.Value, bool, error) {
	return m.relativeKey(k, true, false)
}

func (m *BoltMap) CeilingKey(k document.Value) (document.Value, bool, error) {
	return m.relativeKey(k, true, true)
}

func (m *BoltMap) LowerKey(k document.Value) (document.Value, bool, error) {
	return m.relativeKey(k, false, false)
}

func (m *BoltMap) FloorKey(k document.Value) (document.Value, bool, error) {
	return m.relativeKey(k, false, true)
}

// relativeKey implements the four navigable-key operations with a single
// Seek-based cursor walk: higher/ceiling scan forward from Seek(k), lower/
// floor scan backward from the position just before Seek(k). inclusive
// controls whether an exact match at k qualifies.
func (m *BoltMap) relativeKey(k document.Value, forward, inclusive bool) (document.Value, bool, error) {
	if err := m.checkOpen(); err != nil {
		return document.Null, false, err
	}
	target := k.SortKey()
	var result document.Value
	var found bool
	err := m.store.db.View(func(tx *bolt.Tx) error {
		c := m.bucket(tx).Cursor()
		sk, sv := c.Seek(target)
		if forward {
			if sk == nil {
				return nil
			}
			if !inclusive && bytesEqual(sk, target) {
				sk, sv = c.Next()
				if sk == nil {
					return nil
				}
			}
			env, err := decodeEnvelope(sv)
			if err != nil {
				return err
			}
			result, found = env.key, true
			return nil
		}
		// backward: Seek lands at the first key >= target, or nil past the end.
		if sk == nil {
			// target is past every key; the last key is the floor/lower match.
			lk, lv := c.Last()
			if lk == nil {
				return nil
			}
			env, err := decodeEnvelope(lv)
			if err != nil {
				return err
			}
			result, found = env.key, true
			return nil
		}
		if inclusive && bytesEqual(sk, target) {
			env, err := decodeEnvelope(sv)
			if err != nil {
				return err
			}
			result, found = env.key, true
			return nil
		}
		pk, pv := c.Prev()
		if pk == nil {
			return nil
		}
		env, err := decodeEnvelope(pv)
		if err != nil {
			return err
		}
		result, found = env.key, true
		return nil
	})
	if err != nil {
		return document.Null, false, errs.Wrap(errs.BackendError, "relative key", err)
	}
	return result, found, nil
}

func (m *BoltMap) Keys() (iter.Seq[document.Value], error) {
	entries, err := m.snapshotEntries(false)
	if err != nil {
		return nil, err
	}
	return func(yield func(document.Value) bool) {
		for _, e := range entries {
			if !yield(e.Key) {
				return
			}
		}
	}, nil
}

func (m *BoltMap) Values() (iter.Seq[document.Value], error) {
	entries, err := m.snapshotEntries(false)
	if err != nil {
		return nil, err
	}
	return func(yield func(document.Value) bool) {
		for _, e := range entries {
			if !yield(e.Value) {
				return
			}
		}
	}, nil
}

func (m *BoltMap) Entries() (iter.Seq2[document.Value, document.Value], error) {
	entries, err := m.snapshotEntries(false)
	if err != nil {
		return nil, err
	}
	return func(yield func(document.Value, document.Value) bool) {
		for _, e := range entries {
			if !yield(e.Key, e.Value) {
				return
			}
		}
	}, nil
}

func (m *BoltMap) ReverseEntries() (iter.Seq2[document.Value, document.Value], error) {
	entries, err := m.snapshotEntries(true)
	if err != nil {
		return nil, err
	}
	return func(yield func(document.Value, document.Value) bool) {
		for _, e := range entries {
			if !yield(e.Key, e.Value) {
				return
			}
		}
	}, nil
}

// snapshotEntries materialises every entry within one read transaction, so
// the result is consistent with respect to concurrent writes on a
// best-effort basis: bbolt's MVCC snapshot guarantees the read itself never
// observes a torn write, but a write committed after the transaction opens
// is simply not reflected.
func (m *BoltMap) snapshotEntries(reverse bool) ([]Entry, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	var entries []Entry
	err := m.store.db.View(func(tx *bolt.Tx) error {
		c := m.bucket(tx).Cursor()
		step := func(k, v []byte) ([]byte, []byte) { return c.Next() }
		k, v := c.First()
		if reverse {
			step = func(k, v []byte) ([]byte, []byte) { return c.Prev() }
			k, v = c.Last()
		}
		for k != nil {
			env, err := decodeEnvelope(v)
			if err != nil {
				return err
			}
			entries = append(entries, Entry{Key: env.key, Value: env.val})
			k, v = step(k, v)
		}
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.BackendError, "iterate", err)
	}
	return entries, nil
}

// Close marks the map closed and evicts it from the store's registry;
// further operations fail with StoreAlreadyClosed.
func (m *BoltMap) Close() error {
	m.closed.Store(true)
	m.store.evict(m.encoded)
	return nil
}

// Dispose marks the map dropped and deletes its backing bucket.
func (m *BoltMap) Dispose() error {
	m.dropped.Store(true)
	m.closed.Store(true)
	m.store.evict(m.encoded)
	err := m.store.db.Update(func(tx *bolt.Tx) error {
		return tx.DeleteBucket([]byte(m.encoded))
	})
	if err != nil && err != bolt.ErrBucketNotFound {
		return errs.Wrap(errs.BackendError, "dispose", err)
	}
	return nil
}

func (m *BoltMap) IsClosed() bool  { return m.closed.Load() }
func (m *BoltMap) IsDropped() bool { return m.dropped.Load() }

func (m *BoltMap) Attributes() (*document.Document, error) {
	return m.store.attributesFor(m.name)
}

func (m *BoltMap) SetAttributes(attrs *document.Document) error {
	return m.store.setAttributesFor(m.name, attrs)
}

func bytesEqual(a, b []byte) bool {
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
