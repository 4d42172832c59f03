package document

import "strings"

// ValueMap is the ordered Value→Value mapping backing Value's Map kind,
// translated from the Rust `BTreeMap<Value, Value>` variant. Value is not a
// comparable Go type (it can embed slices), so a native Go map cannot be
// used as backing storage; entries are kept as a slice sorted by key under
// Value.Compare, giving the same iteration and comparison semantics as a
// BTreeMap.
type ValueMap struct {
	entries []mapEntry
}

type mapEntry struct {
	key Value
	val Value
}

// NewValueMap returns an empty ordered map.
func NewValueMap() *ValueMap {
	return &ValueMap{}
}

func (m *ValueMap) search(key Value) (int, bool) {
	lo, hi := 0, len(m.entries)
	for lo < hi {
		mid := (lo + hi) / 2
		c := m.entries[mid].key.Compare(key)
		switch {
		case c == 0:
			return mid, true
		case c < 0:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return lo, false
}

// Put inserts or overwrites the value at key, returning a new ValueMap that
// shares the unmodified tail with m (copy-on-write, matching Document's
// persistence strategy).
func (m *ValueMap) Put(key, val Value) *ValueMap {
	idx, found := m.search(key)
	entries := make([]mapEntry, len(m.entries), len(m.entries)+1)
	copy(entries, m.entries)
	if found {
		entries[idx] = mapEntry{key, val}
		return &ValueMap{entries: entries}
	}
	entries = append(entries, mapEntry{})
	copy(entries[idx+1:], entries[idx:])
	entries[idx] = mapEntry{key, val}
	return &ValueMap{entries: entries}
}

// Get looks up key, returning (value, true) if present.
func (m *ValueMap) Get(key Value) (Value, bool) {
	if m == nil {
		return Null, false
	}
	idx, found := m.search(key)
	if !found {
		return Null, false
	}
	return m.entries[idx].val, true
}

// Len returns the number of entries.
func (m *ValueMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Iter calls fn for every entry in key order.
func (m *ValueMap) Iter(fn func(key, val Value) bool) {
	if m == nil {
		return
	}
	for _, e := range m.entries {
		if !fn(e.key, e.val) {
			return
		}
	}
}

// Compare orders two ValueMaps lexicographically by their sorted
// (key, value) sequence, mirroring Rust's derived Ord for BTreeMap.
func (m *ValueMap) Compare(other *ValueMap) int {
	al, bl := m.Len(), other.Len()
	for i := 0; i < al && i < bl; i++ {
		if c := m.entries[i].key.Compare(other.entries[i].key); c != 0 {
			return c
		}
		if c := m.entries[i].val.Compare(other.entries[i].val); c != 0 {
			return c
		}
	}
	switch {
	case al < bl:
		return -1
	case al > bl:
		return 1
	default:
		return 0
	}
}

func (m *ValueMap) String() string {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	m.Iter(func(k, v Value) bool {
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteString(k.String())
		b.WriteByte(':')
		b.WriteString(v.String())
		return true
	})
	b.WriteByte('}')
	return b.String()
}
