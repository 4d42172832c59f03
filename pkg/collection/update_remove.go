package collection

import (
	"github.com/cuemby/nitrite/pkg/document"
	"github.com/cuemby/nitrite/pkg/errs"
	"github.com/cuemby/nitrite/pkg/events"
	"github.com/cuemby/nitrite/pkg/kvstore"
	"github.com/cuemby/nitrite/pkg/metrics"
	"github.com/cuemby/nitrite/pkg/nlog"
	"github.com/cuemby/nitrite/pkg/value"
)

// Update evaluates filter through ReadOperations and merges update into
// every match, batching in growing windows (10, then 50, then 200) as the
// original set of matches is consumed — grounded on
// write_operations.rs's update/process_update_batch/process_update_batch_optimized.
func (w *WriteOperations) Update(filter Filter, update *document.Document, opts UpdateOptions) (WriteResult, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.CollectionOperationDuration, w.name, "update")

	matches, err := w.readOperations.Find(filter)
	if err != nil {
		return WriteResult{}, err
	}

	upd, err := update.Remove(document.FieldID)
	if err != nil {
		return WriteResult{}, err
	}
	if upd.Source() != ReplicatorSource {
		if upd, err = upd.Remove(document.FieldRevision); err != nil {
			return WriteResult{}, err
		}
	}
	if upd.IsEmpty() {
		return WriteResult{}, nil
	}

	var ids []value.NitriteId
	batchSize := 10
	var batch []*document.Document
	count := 0

	for _, doc := range matches {
		count++
		batch = append(batch, doc)

		if opts.JustOnce {
			break
		}

		if len(batch) >= batchSize {
			got, err := w.processUpdateBatch(upd, batch)
			if err != nil {
				return WriteResult{}, err
			}
			ids = append(ids, got...)
			batch = nil
			if count > 1000 {
				batchSize = 200
			} else if count > 100 {
				batchSize = 50
			}
		}
	}
	if len(batch) > 0 {
		got, err := w.processUpdateBatch(upd, batch)
		if err != nil {
			return WriteResult{}, err
		}
		ids = append(ids, got...)
	}

	if count == 0 && opts.InsertIfAbsent {
		return w.Insert(update)
	}
	if len(ids) > 0 {
		metrics.CollectionUpdatesTotal.WithLabelValues(w.name).Add(float64(len(ids)))
	}
	return WriteResult{Ids: ids}, nil
}

func (w *WriteOperations) processUpdateBatch(update *document.Document, docs []*document.Document) ([]value.NitriteId, error) {
	if len(docs) <= 10 {
		var ids []value.NitriteId
		for _, doc := range docs {
			id, err := w.processSingleUpdate(doc, update)
			if err != nil {
				return nil, err
			}
			if id != nil {
				ids = append(ids, *id)
			}
		}
		return ids, nil
	}
	return w.processUpdateBatchOptimized(update, docs)
}

type preparedUpdate struct {
	id        value.NitriteId
	oldDoc    *document.Document
	newDoc    *document.Document
	processed *document.Document
}

func (w *WriteOperations) processUpdateBatchOptimized(update *document.Document, docs []*document.Document) ([]value.NitriteId, error) {
	source := update.Source()
	now := nowMillis()

	prepared := make([]preparedUpdate, 0, len(docs))
	for _, doc := range docs {
		id := doc.Id()
		newDoc := doc.Merge(update)
		if source != ReplicatorSource {
			rev := newDoc.Revision()
			var err error
			if newDoc, err = newDoc.Put(document.FieldRevision, document.Int32(rev+1)); err != nil {
				return nil, err
			}
			if newDoc, err = newDoc.Put(document.FieldModified, document.Int64(now)); err != nil {
				return nil, err
			}
		}
		processed, err := w.processorChain.ProcessBeforeWrite(newDoc)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, preparedUpdate{id: id, oldDoc: doc, newDoc: newDoc, processed: processed})
	}

	entries := make([]kvstore.Entry, len(prepared))
	for i, p := range prepared {
		entries[i] = kvstore.Entry{Key: document.NitriteIdValue(p.id), Value: document.DocumentValue(p.processed)}
	}
	if err := w.primary.PutAll(entries); err != nil {
		return nil, errs.Wrap(errs.BackendError, "batch update documents", err)
	}

	var ids []value.NitriteId
	applied := make([]preparedUpdate, 0, len(prepared))
	for _, p := range prepared {
		if err := w.indexWriter.UpdateIndexEntry(p.oldDoc, p.processed, update); err != nil {
			w.rollbackBatchUpdate(applied, p, update)
			metrics.CollectionRollbacksTotal.WithLabelValues(w.name).Inc()
			return nil, errs.Wrap(errs.IndexingError, "update index entries during batch update", err)
		}
		applied = append(applied, p)
		w.publish(events.EventUpdate, p.newDoc, source)
		if update.Size() > 0 {
			ids = append(ids, p.id)
		}
	}
	return ids, nil
}

func (w *WriteOperations) rollbackBatchUpdate(applied []preparedUpdate, failed preparedUpdate, update *document.Document) {
	if err := w.primary.Put(document.NitriteIdValue(failed.id), document.DocumentValue(failed.oldDoc)); err != nil {
		nlog.Errorf("collection %s: failed to restore document %s during update rollback: %v", w.name, failed.id.String(), err)
	}
	restore := make([]kvstore.Entry, 0, len(applied))
	for _, p := range applied {
		restore = append(restore, kvstore.Entry{Key: document.NitriteIdValue(p.id), Value: document.DocumentValue(p.oldDoc)})
		if err := w.indexWriter.UpdateIndexEntry(p.processed, p.oldDoc, update); err != nil {
			nlog.Errorf("collection %s: failed to rollback index entry for %s: %v", w.name, p.id.String(), err)
		}
	}
	if len(restore) > 0 {
		if err := w.primary.PutAll(restore); err != nil {
			nlog.Errorf("collection %s: failed to batch restore documents during rollback: %v", w.name, err)
		}
	}
}

func (w *WriteOperations) processSingleUpdate(doc, update *document.Document) (*value.NitriteId, error) {
	oldDoc := doc
	newDoc := doc
	source := update.Source()
	now := nowMillis()
	id := newDoc.Id()

	newDoc = newDoc.Merge(update)
	if source != ReplicatorSource {
		rev := newDoc.Revision()
		var err error
		if newDoc, err = newDoc.Put(document.FieldRevision, document.Int32(rev+1)); err != nil {
			return nil, err
		}
		if newDoc, err = newDoc.Put(document.FieldModified, document.Int64(now)); err != nil {
			return nil, err
		}
	}

	processed, err := w.processorChain.ProcessBeforeWrite(newDoc)
	if err != nil {
		return nil, err
	}
	if err := w.primary.Put(document.NitriteIdValue(id), document.DocumentValue(processed)); err != nil {
		return nil, errs.Wrap(errs.BackendError, "store document during update", err)
	}

	if err := w.indexWriter.UpdateIndexEntry(oldDoc, processed, update); err != nil {
		if putErr := w.primary.Put(document.NitriteIdValue(id), document.DocumentValue(oldDoc)); putErr != nil {
			nlog.Errorf("collection %s: failed to restore document %s after index update failure: %v", w.name, id.String(), putErr)
		}
		return nil, errs.Wrap(errs.IndexingError, "update index entry", err)
	}

	w.publish(events.EventUpdate, newDoc, source)
	if update.Size() > 0 {
		return &id, nil
	}
	return nil, nil
}

// UpdateById performs an O(1) update by id, bypassing filter evaluation.
func (w *WriteOperations) UpdateById(id value.NitriteId, update *document.Document, insertIfAbsent bool) (WriteResult, error) {
	v, err := w.primary.Get(document.NitriteIdValue(id))
	if err != nil {
		return WriteResult{}, err
	}
	if v.IsNull() {
		if insertIfAbsent {
			newDoc, err := update.Put(document.FieldID, document.NitriteIdValue(id))
			if err != nil {
				return WriteResult{}, err
			}
			return w.Insert(newDoc)
		}
		return WriteResult{}, nil
	}
	doc, ok := v.AsDocument()
	if !ok {
		return WriteResult{}, errs.New(errs.ValidationError, "expected document value in collection store")
	}
	updatedID, err := w.processSingleUpdate(doc, update)
	if err != nil {
		return WriteResult{}, err
	}
	if updatedID == nil {
		return WriteResult{}, nil
	}
	metrics.CollectionUpdatesTotal.WithLabelValues(w.name).Inc()
	return WriteResult{Ids: []value.NitriteId{*updatedID}}, nil
}

// Remove deletes every document matching filter, stopping after the first
// on justOnce.
func (w *WriteOperations) Remove(filter Filter, justOnce bool) (WriteResult, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.CollectionOperationDuration, w.name, "remove")

	matches, err := w.readOperations.Find(filter)
	if err != nil {
		return WriteResult{}, err
	}
	var ids []value.NitriteId
	for _, doc := range matches {
		processed, err := w.processorChain.ProcessBeforeWrite(doc)
		if err != nil {
			return WriteResult{}, err
		}
		removedDoc, err := w.removeInternal(processed, &ids)
		if err != nil {
			return WriteResult{}, err
		}
		if removedDoc != nil {
			w.publish(events.EventRemove, removedDoc, removedDoc.Source())
		}
		if justOnce {
			break
		}
	}
	if len(ids) > 0 {
		metrics.CollectionRemovesTotal.WithLabelValues(w.name).Add(float64(len(ids)))
	}
	return WriteResult{Ids: ids}, nil
}

// RemoveDocument deletes exactly this document, publishing the event with
// its own source as originator.
func (w *WriteOperations) RemoveDocument(doc *document.Document) (WriteResult, error) {
	var ids []value.NitriteId
	removedDoc, err := w.removeInternal(doc, &ids)
	if err != nil {
		return WriteResult{}, err
	}
	if removedDoc != nil {
		w.publish(events.EventRemove, removedDoc, doc.Source())
		metrics.CollectionRemovesTotal.WithLabelValues(w.name).Inc()
	}
	return WriteResult{Ids: ids}, nil
}

func (w *WriteOperations) removeInternal(doc *document.Document, ids *[]value.NitriteId) (*document.Document, error) {
	id := doc.Id()
	v, err := w.primary.Get(document.NitriteIdValue(id))
	if err != nil {
		return nil, err
	}
	if v.IsNull() {
		return nil, nil
	}
	stored, ok := v.AsDocument()
	if !ok {
		return nil, errs.New(errs.IndexingError, "expected document value in collection store, found corrupted type")
	}
	if err := w.primary.Remove(document.NitriteIdValue(id)); err != nil {
		return nil, errs.Wrap(errs.BackendError, "remove document", err)
	}

	if err := w.indexWriter.RemoveIndexEntry(stored); err != nil {
		return nil, errs.Wrap(errs.IndexingError, "remove index entry", err)
	}
	*ids = append(*ids, id)

	rev := stored.Revision() + 1
	stored, err = stored.Put(document.FieldRevision, document.Int32(rev))
	if err != nil {
		return nil, err
	}
	stored, err = stored.Put(document.FieldModified, document.Int64(nowMillis()))
	if err != nil {
		return nil, err
	}
	return stored, nil
}
