package collection

import (
	"testing"

	"github.com/cuemby/nitrite/internal/testutil"
	"github.com/cuemby/nitrite/pkg/document"
	"github.com/cuemby/nitrite/pkg/errs"
	"github.com/cuemby/nitrite/pkg/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWriteOperations(t *testing.T) (*WriteOperations, kvstore.Map) {
	t.Helper()
	store := testutil.OpenStore(t)

	m, err := store.OpenMap("test_collection")
	require.NoError(t, err)

	read := ScanReadOperations{Map: m}
	wo := NewWriteOperations("test_collection", m, NoopIndexWriter{}, read, nil, nil)
	return wo, m
}

func docWith(t *testing.T, fields map[string]document.Value) *document.Document {
	t.Helper()
	return testutil.BuildDocument(t, fields)
}

func TestInsertAssignsMetadata(t *testing.T) {
	wo, m := newTestWriteOperations(t)
	d := docWith(t, map[string]document.Value{"name": document.String("alice")})

	result, err := wo.Insert(d)
	require.NoError(t, err)
	require.Len(t, result.Ids, 1)

	size, err := m.Size()
	require.NoError(t, err)
	assert.Equal(t, 1, size)

	stored, err := m.Get(document.NitriteIdValue(result.Ids[0]))
	require.NoError(t, err)
	sd, ok := stored.AsDocument()
	require.True(t, ok)
	assert.EqualValues(t, 1, sd.Revision())
	assert.Greater(t, sd.LastModifiedSinceEpoch(), int64(0))
}

func TestInsertDuplicateIdRejected(t *testing.T) {
	wo, m := newTestWriteOperations(t)
	seed := document.NewDocument()
	id := seed.Id()

	first := docWith(t, map[string]document.Value{"_id": document.NitriteIdValue(id)})
	_, err := wo.Insert(first)
	require.NoError(t, err)

	second := docWith(t, map[string]document.Value{"_id": document.NitriteIdValue(id)})
	_, err = wo.Insert(second)
	require.Error(t, err)
	assert.Equal(t, errs.UniqueConstraintViolation, errs.KindOf(err))

	size, err := m.Size()
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}

func TestBatchInsertRollsBackOnDuplicate(t *testing.T) {
	wo, m := newTestWriteOperations(t)

	docs := make([]*document.Document, 0, 20)
	for i := 0; i < 20; i++ {
		docs = append(docs, docWith(t, map[string]document.Value{"n": document.Int(i)}))
	}
	// Force a duplicate by reusing the id assigned to doc 5.
	dupID := docs[5].Id()
	docs[15], _ = docs[15].Put(document.FieldID, document.NitriteIdValue(dupID))

	_, err := wo.InsertBatch(docs)
	require.Error(t, err)
	assert.Equal(t, errs.UniqueConstraintViolation, errs.KindOf(err))

	size, err := m.Size()
	require.NoError(t, err)
	assert.Equal(t, 0, size)
}

func TestUpdateBumpsRevision(t *testing.T) {
	wo, _ := newTestWriteOperations(t)
	d := docWith(t, map[string]document.Value{"name": document.String("alice")})
	result, err := wo.Insert(d)
	require.NoError(t, err)
	id := result.Ids[0]

	update := docWith(t, map[string]document.Value{"name": document.String("bob")})
	_, err = wo.UpdateById(id, update, false)
	require.NoError(t, err)

	v, err := wo.primary.Get(document.NitriteIdValue(id))
	require.NoError(t, err)
	sd, ok := v.AsDocument()
	require.True(t, ok)
	assert.EqualValues(t, 2, sd.Revision())
	name, err := sd.Get("name")
	require.NoError(t, err)
	s, _ := name.AsString()
	assert.Equal(t, "bob", s)
}

func TestRemoveDocument(t *testing.T) {
	wo, m := newTestWriteOperations(t)
	d := docWith(t, map[string]document.Value{"name": document.String("alice")})
	result, err := wo.Insert(d)
	require.NoError(t, err)

	stored, err := m.Get(document.NitriteIdValue(result.Ids[0]))
	require.NoError(t, err)
	sd, _ := stored.AsDocument()

	removeResult, err := wo.RemoveDocument(sd)
	require.NoError(t, err)
	assert.Len(t, removeResult.Ids, 1)

	size, err := m.Size()
	require.NoError(t, err)
	assert.Equal(t, 0, size)
}
