package migration

import (
	"testing"

	"github.com/cuemby/nitrite/internal/testutil"
	"github.com/cuemby/nitrite/pkg/document"
	"github.com/cuemby/nitrite/pkg/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *kvstore.Store {
	t.Helper()
	return testutil.OpenStore(t)
}

func putDoc(t *testing.T, store *kvstore.Store, mapName string, fields map[string]document.Value) {
	t.Helper()
	m, err := store.OpenMap(mapName)
	require.NoError(t, err)
	d := document.NewDocument()
	var err2 error
	for k, v := range fields {
		d, err2 = d.Put(k, v)
		require.NoError(t, err2)
	}
	require.NoError(t, m.Put(document.NitriteIdValue(d.Id()), document.DocumentValue(d)))
}

func TestPathSameVersionIsNoop(t *testing.T) {
	e := NewEngine(newTestStore(t), 3)
	path, err := e.Path(3)
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestPathSelectsForwardChain(t *testing.T) {
	e := NewEngine(newTestStore(t), 3)
	e.Register(Migration{From: 1, To: 2})
	e.Register(Migration{From: 2, To: 3})
	path, err := e.Path(1)
	require.NoError(t, err)
	require.Len(t, path, 2)
	assert.Equal(t, 1, path[0].From)
	assert.Equal(t, 3, path[1].To)
}

func TestPathAllowsBackwardMigration(t *testing.T) {
	e := NewEngine(newTestStore(t), 1)
	e.Register(Migration{From: 2, To: 1})
	path, err := e.Path(2)
	require.NoError(t, err)
	require.Len(t, path, 1)
}

func TestPathReturnsErrorWhenUnreachable(t *testing.T) {
	e := NewEngine(newTestStore(t), 5)
	e.Register(Migration{From: 1, To: 2})
	_, err := e.Path(1)
	require.Error(t, err)
}

func TestRenameCollectionPreservesDocuments(t *testing.T) {
	store := newTestStore(t)
	putDoc(t, store, "legacy_users", map[string]document.Value{"name": document.String("alice")})

	e := NewEngine(store, 2)
	e.Register(Migration{From: 1, To: 2, Body: func(set *InstructionSet) error {
		set.ForCollection("legacy_users").Rename("users")
		return nil
	}})
	to, err := e.Migrate(1)
	require.NoError(t, err)
	assert.Equal(t, 2, to)

	users, err := store.OpenMap("users")
	require.NoError(t, err)
	size, err := users.Size()
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}

func TestAddFieldWithDefaultValue(t *testing.T) {
	store := newTestStore(t)
	putDoc(t, store, "books", map[string]document.Value{"title": document.String("Go")})

	e := NewEngine(store, 2)
	one := document.Int(1)
	e.Register(Migration{From: 1, To: 2, Body: func(set *InstructionSet) error {
		set.ForCollection("books").AddField("version", &one, nil)
		return nil
	}})
	_, err := e.Migrate(1)
	require.NoError(t, err)

	books, err := store.OpenMap("books")
	require.NoError(t, err)
	seq, err := books.Entries()
	require.NoError(t, err)
	var found bool
	seq(func(_, v document.Value) bool {
		doc, ok := v.AsDocument()
		require.True(t, ok)
		val, err := doc.Get("version")
		require.NoError(t, err)
		n, _ := val.AsInt64()
		assert.EqualValues(t, 1, n)
		found = true
		return true
	})
	assert.True(t, found)
}

func TestDeleteFieldFromCollection(t *testing.T) {
	store := newTestStore(t)
	putDoc(t, store, "books", map[string]document.Value{
		"title": document.String("Go"),
		"price": document.Int(10),
	})

	e := NewEngine(store, 2)
	e.Register(Migration{From: 1, To: 2, Body: func(set *InstructionSet) error {
		set.ForCollection("books").DeleteField("price")
		return nil
	}})
	_, err := e.Migrate(1)
	require.NoError(t, err)

	books, _ := store.OpenMap("books")
	seq, err := books.Entries()
	require.NoError(t, err)
	seq(func(_, v document.Value) bool {
		doc, _ := v.AsDocument()
		assert.False(t, doc.ContainsField("price"))
		return true
	})
}

func TestCustomInstructionReceivesStore(t *testing.T) {
	store := newTestStore(t)
	e := NewEngine(store, 2)
	ran := false
	e.Register(Migration{From: 1, To: 2, Body: func(set *InstructionSet) error {
		set.ForDatabase().CustomInstruction(func(s *kvstore.Store) error {
			ran = true
			assert.Same(t, store, s)
			return nil
		})
		return nil
	}})
	_, err := e.Migrate(1)
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestMultiStepMigrationScenario(t *testing.T) {
	store := newTestStore(t)
	putDoc(t, store, "users", map[string]document.Value{"name": document.String("a")})
	putDoc(t, store, "users", map[string]document.Value{"name": document.String("b")})
	putDoc(t, store, "test", map[string]document.Value{"n": document.Int(1)})
	putDoc(t, store, "books", map[string]document.Value{"title": document.String("x"), "price": document.Int(5)})
	putDoc(t, store, "books", map[string]document.Value{"title": document.String("y"), "price": document.Int(7)})

	e := NewEngine(store, 2)
	e.Register(Migration{From: 1, To: 2, Body: func(set *InstructionSet) error {
		set.ForDatabase().AddUser("admin", "pw").DropCollection("test")
		set.ForCollection("users").Rename("customers")
		set.ForCollection("books").DeleteField("price")
		return nil
	}})
	_, err := e.Migrate(1)
	require.NoError(t, err)

	customers, err := store.OpenMap("customers")
	require.NoError(t, err)
	size, err := customers.Size()
	require.NoError(t, err)
	assert.Equal(t, 2, size)

	books, err := store.OpenMap("books")
	require.NoError(t, err)
	seq, err := books.Entries()
	require.NoError(t, err)
	seq(func(_, v document.Value) bool {
		doc, _ := v.AsDocument()
		assert.False(t, doc.ContainsField("price"))
		return true
	})
}
