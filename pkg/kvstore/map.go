package kvstore

import (
	"iter"

	"github.com/cuemby/nitrite/pkg/document"
)

// Entry is a single (key, value) pair passed to PutAll.
type Entry struct {
	Key   document.Value
	Value document.Value
}

// Map is the ordered key-value contract every Nitrite collection and index
// is built on. BoltMap is the only implementation in this repository; the
// interface exists so pkg/collection and pkg/migration depend on the
// contract, not on bbolt directly.
type Map interface {
	ContainsKey(k document.Value) (bool, error)
	Get(k document.Value) (document.Value, error)
	Put(k, v document.Value) error
	Remove(k document.Value) error
	PutIfAbsent(k, v document.Value) (document.Value, bool, error)
	PutAll(entries []Entry) error
	Size() (int, error)
	IsEmpty() (bool, error)
	Clear() error

	FirstKey() (document.Value, bool, error)
	LastKey() (document.Value, bool, error)
	HigherKey(k document.Value) (document.Value, bool, error)
	CeilingKey(k document.Value) (document.Value, bool, error)
	LowerKey(k document.Value) (document.Value, bool, error)
	FloorKey(k document.Value) (document.Value, bool, error)

	Keys() (iter.Seq[document.Value], error)
	Values() (iter.Seq[document.Value], error)
	Entries() (iter.Seq2[document.Value, document.Value], error)
	ReverseEntries() (iter.Seq2[document.Value, document.Value], error)

	Close() error
	Dispose() error
	IsClosed() bool
	IsDropped() bool

	Attributes() (*document.Document, error)
	SetAttributes(*document.Document) error

	Name() string
}
