package kvstore

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/cuemby/nitrite/internal/testutil"
	"github.com/cuemby/nitrite/pkg/config"
	"github.com/cuemby/nitrite/pkg/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	return testutil.OpenStore(t)
}

func TestNavigableKeys(t *testing.T) {
	store := openTestStore(t)
	m, err := store.OpenMap("nav")
	require.NoError(t, err)

	for _, k := range []int64{1, 3, 5} {
		require.NoError(t, m.Put(document.Int64(k), document.Int64(k)))
	}

	higher, ok, err := m.HigherKey(document.Int64(3))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, higher.Compare(document.Int64(5)))

	ceiling, ok, err := m.CeilingKey(document.Int64(3))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, ceiling.Compare(document.Int64(3)))

	lower, ok, err := m.LowerKey(document.Int64(3))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, lower.Compare(document.Int64(1)))

	floor, ok, err := m.FloorKey(document.Int64(3))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, floor.Compare(document.Int64(3)))

	first, ok, err := m.FirstKey()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, first.Compare(document.Int64(1)))

	last, ok, err := m.LastKey()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, last.Compare(document.Int64(5)))

	ceilingLow, ok, err := m.CeilingKey(document.Int64(0))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, ceilingLow.Compare(document.Int64(1)))

	_, ok, err = m.HigherKey(document.Int64(5))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIntegerKeyNormalisation(t *testing.T) {
	store := openTestStore(t)
	m, err := store.OpenMap("norm")
	require.NoError(t, err)

	require.NoError(t, m.Put(document.Int64(5), document.String("five")))

	for _, k := range []document.Value{document.Int32(5), document.Uint64(5), document.Uint32(5), document.Int8(5)} {
		v, err := m.Get(k)
		require.NoError(t, err)
		got, _ := v.AsString()
		assert.Equal(t, "five", got, "key %v did not address the same slot", k)
	}
}

func TestPutAllMatchesIndividualPuts(t *testing.T) {
	store := openTestStore(t)
	individual, err := store.OpenMap("individual")
	require.NoError(t, err)
	batched, err := store.OpenMap("batched")
	require.NoError(t, err)

	var entries []Entry
	for i := 0; i < 500; i++ {
		k := document.String(fmt.Sprintf("key_%04d", i))
		v := document.Int64(int64(i))
		require.NoError(t, individual.Put(k, v))
		entries = append(entries, Entry{Key: k, Value: v})
	}
	require.NoError(t, batched.Clear())
	require.NoError(t, batched.PutAll(entries))

	sizeA, err := individual.Size()
	require.NoError(t, err)
	sizeB, err := batched.Size()
	require.NoError(t, err)
	assert.Equal(t, 500, sizeA)
	assert.Equal(t, sizeA, sizeB)

	for i := 0; i < 500; i++ {
		k := document.String(fmt.Sprintf("key_%04d", i))
		va, err := individual.Get(k)
		require.NoError(t, err)
		vb, err := batched.Get(k)
		require.NoError(t, err)
		assert.Equal(t, 0, va.Compare(vb))
	}
}

func TestPutAllStoresEveryEntry(t *testing.T) {
	store := openTestStore(t)
	m, err := store.OpenMap("atomic")
	require.NoError(t, err)

	entries := []Entry{
		{Key: document.String("a"), Value: document.Int64(1)},
		{Key: document.String("b"), Value: document.Int64(2)},
	}
	require.NoError(t, m.PutAll(entries))
	size, err := m.Size()
	require.NoError(t, err)
	assert.Equal(t, 2, size)
}

func TestPutIfAbsent(t *testing.T) {
	store := openTestStore(t)
	m, err := store.OpenMap("absent")
	require.NoError(t, err)

	prior, existed, err := m.PutIfAbsent(document.String("k"), document.Int64(1))
	require.NoError(t, err)
	assert.False(t, existed)
	assert.True(t, prior.IsNull())

	prior, existed, err = m.PutIfAbsent(document.String("k"), document.Int64(2))
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, 0, prior.Compare(document.Int64(1)))
}

func TestEncodedNamesSurviveCloseAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s4.db")
	names := []string{
		"namespace|collection",
		"app|users|profiles",
		"$nitrite_index|User+admin|email|unique",
	}

	store, err := Open(path, config.Storage{}, config.Nitrite{}, nil)
	require.NoError(t, err)
	for _, n := range names {
		m, err := store.OpenMap(n)
		require.NoError(t, err)
		require.NoError(t, m.Put(document.String("k"), document.String("v")))
		assert.NotContains(t, m.encoded, "|")
		assert.NotContains(t, m.encoded, "+")
	}
	require.NoError(t, store.Close())

	store2, err := Open(path, config.Storage{}, config.Nitrite{}, nil)
	require.NoError(t, err)
	defer store2.Close()
	for _, n := range names {
		m, err := store2.OpenMap(n)
		require.NoError(t, err)
		assert.Equal(t, n, m.Name())
		v, err := m.Get(document.String("k"))
		require.NoError(t, err)
		got, _ := v.AsString()
		assert.Equal(t, "v", got)
	}
}

func TestClosedMapRejectsOperations(t *testing.T) {
	store := openTestStore(t)
	m, err := store.OpenMap("closeme")
	require.NoError(t, err)
	require.NoError(t, m.Close())
	assert.True(t, m.IsClosed())

	_, err = m.Get(document.String("x"))
	require.Error(t, err)
}

func TestDisposedMapDeletesBucket(t *testing.T) {
	store := openTestStore(t)
	m, err := store.OpenMap("dropme")
	require.NoError(t, err)
	require.NoError(t, m.Put(document.String("k"), document.String("v")))
	require.NoError(t, m.Dispose())
	assert.True(t, m.IsDropped())

	reopened, err := store.OpenMap("dropme")
	require.NoError(t, err)
	size, err := reopened.Size()
	require.NoError(t, err)
	assert.Equal(t, 0, size)
}

func TestAttributesDelegateToMetaMap(t *testing.T) {
	store := openTestStore(t)
	m, err := store.OpenMap("withattrs")
	require.NoError(t, err)

	attrs := document.NewDocument()
	attrs, err = attrs.Put("owner", document.String("alice"))
	require.NoError(t, err)
	require.NoError(t, m.SetAttributes(attrs))

	got, err := m.Attributes()
	require.NoError(t, err)
	v, err := got.Get("owner")
	require.NoError(t, err)
	s, _ := v.AsString()
	assert.Equal(t, "alice", s)
}

func TestMetaMapHasNoAttributesOfItsOwn(t *testing.T) {
	store := openTestStore(t)
	meta, err := store.OpenMap(MetaMapName)
	require.NoError(t, err)

	attrs, err := meta.Attributes()
	require.NoError(t, err)
	assert.Nil(t, attrs)
}
