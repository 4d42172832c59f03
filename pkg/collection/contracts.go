package collection

import (
	"github.com/cuemby/nitrite/pkg/document"
	"github.com/cuemby/nitrite/pkg/kvstore"
	"github.com/cuemby/nitrite/pkg/value"
)

// ReplicatorSource is the sentinel _source value that tells the write
// pipeline to preserve a caller-supplied revision instead of stamping a
// fresh one.
const ReplicatorSource = "$$replicator"

// Filter selects documents for update/remove. The query optimizer and
// filter-expression language live outside this package; Filter is the
// consumed contract those layers would implement against.
type Filter func(*document.Document) bool

// All matches every document.
func All() Filter { return func(*document.Document) bool { return true } }

// IndexWriter is the consumed contract for secondary-index maintenance. A
// real implementation lives in the index module; WriteOperations only
// depends on this shape.
type IndexWriter interface {
	WriteIndexEntry(doc *document.Document) error
	RemoveIndexEntry(doc *document.Document) error
	UpdateIndexEntry(oldDoc, newDoc, update *document.Document) error
}

// NoopIndexWriter is an IndexWriter that performs no indexing, usable by
// collections that keep no secondary indexes.
type NoopIndexWriter struct{}

func (NoopIndexWriter) WriteIndexEntry(*document.Document) error           { return nil }
func (NoopIndexWriter) RemoveIndexEntry(*document.Document) error          { return nil }
func (NoopIndexWriter) UpdateIndexEntry(_, _, _ *document.Document) error { return nil }

// ReadOperations is the consumed contract for filter-based lookup.
// ScanReadOperations below is the only implementation in this repository: a
// full primary-map scan, since the query optimizer itself lives elsewhere.
type ReadOperations interface {
	Find(filter Filter) ([]*document.Document, error)
}

// ScanReadOperations answers Find with a full ordered scan of the backing
// NitriteMap, decoding each stored Value as a Document.
type ScanReadOperations struct {
	Map kvstore.Map
}

func (r ScanReadOperations) Find(filter Filter) ([]*document.Document, error) {
	seq, err := r.Map.Entries()
	if err != nil {
		return nil, err
	}
	var out []*document.Document
	seq(func(_ document.Value, v document.Value) bool {
		doc, ok := v.AsDocument()
		if ok && (filter == nil || filter(doc)) {
			out = append(out, doc)
		}
		return true
	})
	return out, nil
}

// Processor transforms a document immediately before persistence.
type Processor func(*document.Document) (*document.Document, error)

// ProcessorChain runs an ordered sequence of Processors immediately
// before a document is written.
type ProcessorChain struct {
	processors []Processor
}

func NewProcessorChain(processors ...Processor) *ProcessorChain {
	return &ProcessorChain{processors: processors}
}

func (c *ProcessorChain) ProcessBeforeWrite(doc *document.Document) (*document.Document, error) {
	if c == nil {
		return doc, nil
	}
	for _, p := range c.processors {
		var err error
		doc, err = p(doc)
		if err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// UpdateOptions controls WriteOperations.Update's matching behaviour.
type UpdateOptions struct {
	JustOnce       bool
	InsertIfAbsent bool
}

// WriteResult carries the ids affected by a write operation.
type WriteResult struct {
	Ids []value.NitriteId
}
