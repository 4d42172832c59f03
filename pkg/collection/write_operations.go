package collection

import (
	"fmt"
	"runtime"
	"time"

	"github.com/cuemby/nitrite/pkg/document"
	"github.com/cuemby/nitrite/pkg/errs"
	"github.com/cuemby/nitrite/pkg/events"
	"github.com/cuemby/nitrite/pkg/kvstore"
	"github.com/cuemby/nitrite/pkg/metrics"
	"github.com/cuemby/nitrite/pkg/nlog"
	"github.com/cuemby/nitrite/pkg/value"
	"golang.org/x/sync/errgroup"
)

// WriteOperations is the write pipeline for a single collection: it owns
// an IndexWriter, a ReadOperations, an events.Broker, the backing
// kvstore.Map, and a ProcessorChain.
type WriteOperations struct {
	name           string
	primary        kvstore.Map
	indexWriter    IndexWriter
	readOperations ReadOperations
	broker         *events.Broker
	processorChain *ProcessorChain
}

// NewWriteOperations constructs a write pipeline for one collection. broker
// may be nil, in which case events are silently not published.
func NewWriteOperations(name string, primary kvstore.Map, indexWriter IndexWriter, readOperations ReadOperations, broker *events.Broker, chain *ProcessorChain) *WriteOperations {
	if indexWriter == nil {
		indexWriter = NoopIndexWriter{}
	}
	if chain == nil {
		chain = NewProcessorChain()
	}
	return &WriteOperations{
		name:           name,
		primary:        primary,
		indexWriter:    indexWriter,
		readOperations: readOperations,
		broker:         broker,
		processorChain: chain,
	}
}

func nowMillis() int64 { return time.Now().UnixMilli() }

// publish is best-effort: publication errors or an absent broker never
// fail the write that triggered the event.
func (w *WriteOperations) publish(eventType events.EventType, doc *document.Document, source string) {
	if w.broker == nil {
		return
	}
	w.broker.Publish(&events.Event{
		Type:    eventType,
		Message: source,
		Metadata: map[string]string{
			"collection": w.name,
			"document":   doc.String(),
		},
	})
}

// Insert stores a single document.
func (w *WriteOperations) Insert(doc *document.Document) (WriteResult, error) {
	return w.InsertBatch([]*document.Document{doc})
}

// InsertBatch stores many documents, choosing the sequential path for
// small batches or the optimised three-phase path above a 10-document
// threshold.
func (w *WriteOperations) InsertBatch(docs []*document.Document) (WriteResult, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.CollectionOperationDuration, w.name, "insert")

	if len(docs) == 0 {
		return WriteResult{}, nil
	}
	var (
		result WriteResult
		err    error
	)
	if len(docs) <= 10 {
		result, err = w.insertBatchSequential(docs)
	} else {
		result, err = w.insertBatchOptimized(docs)
	}
	if err == nil {
		metrics.CollectionInsertsTotal.WithLabelValues(w.name).Add(float64(len(result.Ids)))
	}
	return result, err
}

func (w *WriteOperations) insertBatchSequential(docs []*document.Document) (WriteResult, error) {
	ids := make([]value.NitriteId, 0, len(docs))
	for _, doc := range docs {
		id, err := w.processInsert(doc)
		if err != nil {
			return WriteResult{}, err
		}
		ids = append(ids, id)
	}
	return WriteResult{Ids: ids}, nil
}

type preparedInsert struct {
	id        value.NitriteId
	processed *document.Document
	original  *document.Document
	source    string
}

func (w *WriteOperations) insertBatchOptimized(docs []*document.Document) (WriteResult, error) {
	prepared := make([]preparedInsert, 0, len(docs))
	for _, doc := range docs {
		p, err := w.prepareDocumentForInsert(doc)
		if err != nil {
			return WriteResult{}, err
		}
		prepared = append(prepared, p)
	}

	keys := make([]document.Value, len(prepared))
	allIds := make([]value.NitriteId, len(prepared))
	for i, p := range prepared {
		keys[i] = document.NitriteIdValue(p.id)
		allIds[i] = p.id
	}

	if err := w.validateNoDuplicates(keys); err != nil {
		return WriteResult{}, err
	}

	entries := make([]kvstore.Entry, len(prepared))
	for i, p := range prepared {
		entries[i] = kvstore.Entry{Key: document.NitriteIdValue(p.id), Value: document.DocumentValue(p.processed)}
	}
	if err := w.primary.PutAll(entries); err != nil {
		return WriteResult{}, errs.Wrap(errs.BackendError, "batch insert documents", err)
	}

	ids := make([]value.NitriteId, 0, len(prepared))
	indexed := make([]*document.Document, 0, len(prepared))
	for _, p := range prepared {
		if err := w.indexWriter.WriteIndexEntry(p.processed); err != nil {
			w.rollbackBatchIndexes(indexed)
			w.rollbackBatchInsert(allIds)
			metrics.CollectionRollbacksTotal.WithLabelValues(w.name).Inc()
			return WriteResult{}, errs.Wrap(errs.IndexingError, "write index entries during batch insert", err)
		}
		indexed = append(indexed, p.processed)
		w.publish(events.EventInsert, p.original, p.source)
		ids = append(ids, p.id)
	}
	return WriteResult{Ids: ids}, nil
}

func (w *WriteOperations) prepareDocumentForInsert(doc *document.Document) (preparedInsert, error) {
	newDoc := doc
	id := newDoc.Id()
	source := newDoc.Source()
	now := nowMillis()

	var err error
	if source != ReplicatorSource {
		if newDoc, err = newDoc.Remove(document.FieldSource); err != nil {
			return preparedInsert{}, err
		}
		if newDoc, err = newDoc.Put(document.FieldRevision, document.Int32(1)); err != nil {
			return preparedInsert{}, err
		}
		if newDoc, err = newDoc.Put(document.FieldModified, document.Int64(now)); err != nil {
			return preparedInsert{}, err
		}
	} else {
		if newDoc, err = newDoc.Remove(document.FieldSource); err != nil {
			return preparedInsert{}, err
		}
	}

	processed, err := w.processorChain.ProcessBeforeWrite(newDoc)
	if err != nil {
		return preparedInsert{}, err
	}
	return preparedInsert{id: id, processed: processed, original: newDoc, source: source}, nil
}

// validateNoDuplicates mirrors validate_no_duplicates: it first rejects an
// id that appears twice within the batch itself, then checks every key
// against the primary map, sequentially for small batches and sharded
// across GOMAXPROCS goroutines via errgroup for batches over 50 keys.
func (w *WriteOperations) validateNoDuplicates(keys []document.Value) error {
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		sk := string(k.SortKey())
		if _, dup := seen[sk]; dup {
			return errs.New(errs.UniqueConstraintViolation, fmt.Sprintf("duplicate id %s within batch", k.String()))
		}
		seen[sk] = struct{}{}
	}

	if len(keys) <= 50 {
		for _, k := range keys {
			if err := w.checkDuplicate(k); err != nil {
				return err
			}
		}
		return nil
	}

	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}
	if workers > len(keys) {
		workers = len(keys)
	}
	chunkSize := (len(keys) + workers - 1) / workers

	g := new(errgroup.Group)
	for i := 0; i < len(keys); i += chunkSize {
		end := i + chunkSize
		if end > len(keys) {
			end = len(keys)
		}
		chunk := keys[i:end]
		g.Go(func() error {
			for _, k := range chunk {
				if err := w.checkDuplicate(k); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func (w *WriteOperations) checkDuplicate(k document.Value) error {
	exists, err := w.primary.ContainsKey(k)
	if err != nil {
		return errs.Wrap(errs.BackendError, "check duplicate key", err)
	}
	if exists {
		id, _ := k.AsNitriteId()
		nlog.Errorf("collection %s: document already exists with id %s", w.name, id.String())
		return errs.New(errs.UniqueConstraintViolation, fmt.Sprintf("document already exists with id %s", id.String()))
	}
	return nil
}

func (w *WriteOperations) rollbackBatchInsert(ids []value.NitriteId) {
	for _, id := range ids {
		if err := w.primary.Remove(document.NitriteIdValue(id)); err != nil {
			nlog.Errorf("collection %s: failed to rollback document %s during batch insert: %v", w.name, id.String(), err)
		}
	}
}

func (w *WriteOperations) rollbackBatchIndexes(indexed []*document.Document) {
	for _, doc := range indexed {
		if err := w.indexWriter.RemoveIndexEntry(doc); err != nil {
			nlog.Errorf("collection %s: failed to rollback index entries during batch insert: %v", w.name, err)
		}
	}
}

func (w *WriteOperations) processInsert(doc *document.Document) (value.NitriteId, error) {
	p, err := w.prepareDocumentForInsert(doc)
	if err != nil {
		return value.NitriteId{}, err
	}
	_, existed, err := w.primary.PutIfAbsent(document.NitriteIdValue(p.id), document.DocumentValue(p.processed))
	if err != nil {
		return value.NitriteId{}, errs.Wrap(errs.BackendError, "store document during insert", err)
	}
	if existed {
		nlog.Errorf("collection %s: document already exists with id %s", w.name, p.id.String())
		return value.NitriteId{}, errs.New(errs.UniqueConstraintViolation, fmt.Sprintf("document already exists with id %s", p.id.String()))
	}
	if err := w.indexWriter.WriteIndexEntry(p.processed); err != nil {
		if rmErr := w.primary.Remove(document.NitriteIdValue(p.id)); rmErr != nil {
			nlog.Errorf("collection %s: failed to rollback document storage after index write failure: %v", w.name, rmErr)
		}
		return value.NitriteId{}, errs.Wrap(errs.IndexingError, "write index entries during insert", err)
	}
	w.publish(events.EventInsert, p.original, p.source)
	return p.id, nil
}
