package collection

import (
	"testing"

	"github.com/cuemby/nitrite/pkg/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertOne(t *testing.T, wo *WriteOperations, fields map[string]document.Value) *document.Document {
	t.Helper()
	doc := docWith(t, fields)
	res, err := wo.Insert(doc)
	require.NoError(t, err)
	require.Len(t, res.Ids, 1)
	return doc
}

func TestUpdateBumpsRevisionAndMergesFields(t *testing.T) {
	wo, _ := newTestWriteOperations(t)
	insertOne(t, wo, map[string]document.Value{"name": document.String("a")})

	update := docWith(t, map[string]document.Value{"age": document.Int64(30)})
	res, err := wo.Update(All(), update, UpdateOptions{})
	require.NoError(t, err)
	assert.Len(t, res.Ids, 1)

	matches, err := wo.readOperations.Find(All())
	require.NoError(t, err)
	require.Len(t, matches, 1)
	got, err := matches[0].Get("age")
	require.NoError(t, err)
	n, _ := got.AsInt64()
	assert.EqualValues(t, 30, n)
	assert.EqualValues(t, 2, matches[0].Revision())
}

func TestUpdateStripsIdAndRevisionFromUpdateDoc(t *testing.T) {
	wo, _ := newTestWriteOperations(t)
	original := insertOne(t, wo, map[string]document.Value{"name": document.String("a")})
	originalID := original.Id()

	update := docWith(t, map[string]document.Value{
		"_id":       document.NitriteIdValue(originalID),
		"_revision": document.Int32(99),
		"name":      document.String("b"),
	})
	_, err := wo.Update(All(), update, UpdateOptions{})
	require.NoError(t, err)

	matches, err := wo.readOperations.Find(All())
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 0, matches[0].Id().Compare(originalID))
	assert.EqualValues(t, 2, matches[0].Revision())
}

func TestUpdateWithEmptyBodyIsNoop(t *testing.T) {
	wo, _ := newTestWriteOperations(t)
	insertOne(t, wo, map[string]document.Value{"name": document.String("a")})

	empty := document.NewDocument()
	res, err := wo.Update(All(), empty, UpdateOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.Ids)
}

func TestUpdateInsertsIfAbsentWhenNoMatches(t *testing.T) {
	wo, _ := newTestWriteOperations(t)

	update := docWith(t, map[string]document.Value{"name": document.String("new")})
	noMatch := func(*document.Document) bool { return false }
	res, err := wo.Update(noMatch, update, UpdateOptions{InsertIfAbsent: true})
	require.NoError(t, err)
	require.Len(t, res.Ids, 1)

	matches, err := wo.readOperations.Find(All())
	require.NoError(t, err)
	require.Len(t, matches, 1)
}

func TestUpdateJustOnceStopsAfterFirstMatch(t *testing.T) {
	wo, _ := newTestWriteOperations(t)
	insertOne(t, wo, map[string]document.Value{"name": document.String("a")})
	insertOne(t, wo, map[string]document.Value{"name": document.String("b")})

	update := docWith(t, map[string]document.Value{"touched": document.Bool(true)})
	res, err := wo.Update(All(), update, UpdateOptions{JustOnce: true})
	require.NoError(t, err)
	assert.Len(t, res.Ids, 1)
}

func TestUpdateByIdInsertsIfAbsent(t *testing.T) {
	wo, _ := newTestWriteOperations(t)
	newID := insertOne(t, wo, map[string]document.Value{"name": document.String("a")}).Id()
	_, err := wo.Remove(All(), false)
	require.NoError(t, err)

	update := docWith(t, map[string]document.Value{"name": document.String("reborn")})
	res, err := wo.UpdateById(newID, update, true)
	require.NoError(t, err)
	require.Len(t, res.Ids, 1)
}

func TestUpdateByIdNoInsertReturnsEmptyOnMiss(t *testing.T) {
	wo, _ := newTestWriteOperations(t)
	missingID := insertOne(t, wo, map[string]document.Value{"name": document.String("a")}).Id()
	_, err := wo.Remove(All(), false)
	require.NoError(t, err)

	update := docWith(t, map[string]document.Value{"name": document.String("x")})
	res, err := wo.UpdateById(missingID, update, false)
	require.NoError(t, err)
	assert.Empty(t, res.Ids)
}

func TestRemoveDeletesMatchingDocuments(t *testing.T) {
	wo, _ := newTestWriteOperations(t)
	insertOne(t, wo, map[string]document.Value{"name": document.String("a")})
	insertOne(t, wo, map[string]document.Value{"name": document.String("b")})

	res, err := wo.Remove(All(), false)
	require.NoError(t, err)
	assert.Len(t, res.Ids, 2)

	remaining, err := wo.readOperations.Find(All())
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestRemoveJustOnceStopsAfterFirstMatch(t *testing.T) {
	wo, _ := newTestWriteOperations(t)
	insertOne(t, wo, map[string]document.Value{"name": document.String("a")})
	insertOne(t, wo, map[string]document.Value{"name": document.String("b")})

	res, err := wo.Remove(All(), true)
	require.NoError(t, err)
	assert.Len(t, res.Ids, 1)

	remaining, err := wo.readOperations.Find(All())
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestRemoveDocumentReturnsRemovedId(t *testing.T) {
	wo, _ := newTestWriteOperations(t)
	doc := insertOne(t, wo, map[string]document.Value{"name": document.String("a")})

	matches, err := wo.readOperations.Find(All())
	require.NoError(t, err)
	require.Len(t, matches, 1)

	res, err := wo.RemoveDocument(matches[0])
	require.NoError(t, err)
	assert.Len(t, res.Ids, 1)
	assert.Equal(t, 0, res.Ids[0].Compare(doc.Id()))
}

func TestRemoveNonExistentDocumentIsNoop(t *testing.T) {
	wo, _ := newTestWriteOperations(t)
	doc := insertOne(t, wo, map[string]document.Value{"name": document.String("a")})
	_, err := wo.RemoveDocument(doc)
	require.NoError(t, err)

	res, err := wo.RemoveDocument(doc)
	require.NoError(t, err)
	assert.Empty(t, res.Ids)
}
