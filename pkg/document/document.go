package document

import (
	"strconv"
	"strings"

	"github.com/cuemby/nitrite/pkg/errs"
	"github.com/cuemby/nitrite/pkg/value"
)

// Reserved field names. _id is populated lazily by Id, _revision/_source/
// _modified are metadata stamped by the collection write pipeline rather
// than by Document itself.
const (
	FieldID       = "_id"
	FieldRevision = "_revision"
	FieldSource   = "_source"
	FieldModified = "_modified"
)

var reservedFields = map[string]bool{
	FieldID:       true,
	FieldRevision: true,
	FieldSource:   true,
	FieldModified: true,
}

// fieldSeparator is the dotted-path separator used by Put/Get/Remove to
// address embedded fields. It is a boot-time setting: changing it after
// documents have been written invalidates any path already stored, so it
// is configured once at startup (see config.Nitrite.FieldSeparator, applied
// by kvstore.Open) and never touched again during the process lifetime.
var fieldSeparator = "."

// SetFieldSeparator overrides the default "." separator. It must only be
// called during application startup, before any Document is constructed.
func SetFieldSeparator(sep string) {
	fieldSeparator = sep
}

type docEntry struct {
	key string
	val Value
}

// Document is a persistent, ordered key/value structure. Mutating methods
// never modify the receiver in place; they return a new *Document (or, for
// the handful of methods that must report a generated value alongside the
// mutation — Id — mutate the receiver's own entries slice only, leaving any
// other Document that happens to alias a nested copy untouched).
type Document struct {
	entries []docEntry
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{}
}

// IsEmpty reports whether the document has no top-level entries.
func (d *Document) IsEmpty() bool {
	return d == nil || len(d.entries) == 0
}

// Size returns the number of top-level entries (nested documents count as
// a single entry, regardless of their own field count).
func (d *Document) Size() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}

func (d *Document) indexOf(key string) int {
	for i, e := range d.entries {
		if e.key == key {
			return i
		}
	}
	return -1
}

func (d *Document) getTop(key string) (Value, bool) {
	if d == nil {
		return Null, false
	}
	if i := d.indexOf(key); i >= 0 {
		return d.entries[i].val, true
	}
	return Null, false
}

// clone returns a shallow copy of d's entry slice, safe to append/mutate
// without affecting d.
func (d *Document) clone() []docEntry {
	if d == nil {
		return nil
	}
	cp := make([]docEntry, len(d.entries))
	copy(cp, d.entries)
	return cp
}

// update returns a new *Document with key set to val, preserving insertion
// order of existing keys and appending new ones at the end.
func (d *Document) update(key string, val Value) *Document {
	entries := d.clone()
	if i := d.indexOf(key); i >= 0 {
		entries[i].val = val
		return &Document{entries: entries}
	}
	return &Document{entries: append(entries, docEntry{key: key, val: val})}
}

// without returns a new *Document with key removed, a no-op if absent.
func (d *Document) without(key string) *Document {
	if d == nil {
		return NewDocument()
	}
	i := d.indexOf(key)
	if i < 0 {
		return d
	}
	entries := make([]docEntry, 0, len(d.entries)-1)
	entries = append(entries, d.entries[:i]...)
	entries = append(entries, d.entries[i+1:]...)
	return &Document{entries: entries}
}

// Put associates value with key, creating intermediate nested documents for
// a dotted key as needed. The empty key and a non-NitriteId value for _id
// are rejected.
func (d *Document) Put(key string, val Value) (*Document, error) {
	if key == "" {
		return nil, errs.New(errs.InvalidOperation, "document does not support empty key")
	}
	if key == FieldID && !val.IsNitriteId() {
		return nil, errs.New(errs.InvalidOperation, "document id is an auto generated field and cannot be set manually")
	}
	if strings.Contains(key, fieldSeparator) {
		splits := strings.Split(key, fieldSeparator)
		return deepPut(d, splits, val)
	}
	return d.update(key, val), nil
}

// deepPut walks splits, creating nested documents on demand, and returns
// the new root document produced by applying val at the final segment.
func deepPut(d *Document, splits []string, val Value) (*Document, error) {
	if len(splits) == 0 {
		return nil, errs.New(errs.ValidationError, "empty embedded key")
	}
	key := splits[0]
	if key == "" {
		return nil, errs.New(errs.InvalidOperation, "document does not support empty key")
	}
	if len(splits) == 1 {
		return d.update(key, val), nil
	}
	remaining := splits[1:]
	if existing, ok := d.getTop(key); ok {
		if nested, isDoc := existing.AsDocument(); isDoc {
			newNested, err := deepPut(nested, remaining, val)
			if err != nil {
				return nil, err
			}
			return d.update(key, DocumentValue(newNested)), nil
		}
	}
	newNested, err := deepPut(NewDocument(), remaining, val)
	if err != nil {
		return nil, err
	}
	return d.update(key, DocumentValue(newNested)), nil
}

// Get returns the value at key, or Null if absent. A dotted key is resolved
// through nested documents and array indices (see recursiveGet/decompose).
func (d *Document) Get(key string) (Value, error) {
	if v, ok := d.getTop(key); ok {
		return v, nil
	}
	if strings.Contains(key, fieldSeparator) {
		return deepGet(d, key)
	}
	return Null, nil
}

func deepGet(d *Document, key string) (Value, error) {
	splits := strings.Split(key, fieldSeparator)
	if len(splits) == 0 {
		return Null, nil
	}
	first := splits[0]
	if first == "" {
		return Null, errs.New(errs.InvalidOperation, "document does not support empty key")
	}
	top, _ := d.getTop(first)
	var topPtr *Value
	if _, ok := d.getTop(first); ok {
		topPtr = &top
	}
	return recursiveGet(topPtr, splits[1:])
}

// recursiveGet walks value through the remaining path segments. A nil value
// (key absent at this level) yields Null. An array segment that parses as
// an integer indexes the array; a non-numeric segment against an array
// decomposes (maps the remaining path over every element and flattens).
func recursiveGet(val *Value, splits []string) (Value, error) {
	if val == nil {
		return Null, nil
	}
	if len(splits) == 0 {
		return *val, nil
	}
	key := splits[0]
	if key == "" {
		return Null, errs.New(errs.InvalidOperation, "document does not support empty key")
	}
	switch val.Kind() {
	case KindDocument:
		nested, _ := val.AsDocument()
		next, ok := nested.getTop(key)
		if !ok {
			return recursiveGet(nil, splits[1:])
		}
		return recursiveGet(&next, splits[1:])
	case KindArray:
		arr, _ := val.AsArray()
		idx, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return decompose(arr, splits)
		}
		if idx < 0 {
			return Null, errs.New(errs.ValidationError, "invalid array index "+key+" to access array inside a document")
		}
		if int(idx) >= len(arr) {
			return Null, errs.New(errs.ValidationError, "array index "+key+" out of bound")
		}
		item := arr[idx]
		return recursiveGet(&item, splits[1:])
	default:
		return Null, nil
	}
}

// decompose maps the remaining path over every array element, flattening
// one level of Array results, then dedupes via Value.Equal — the fan-out
// semantics for a non-numeric segment against an array (e.g. "items.name"
// over an array of documents).
func decompose(arr []Value, splits []string) (Value, error) {
	items := make([]Value, 0, len(arr))
	for i := range arr {
		item := arr[i]
		result, err := recursiveGet(&item, splits)
		if err != nil {
			return Null, err
		}
		if result.Kind() == KindArray {
			sub, _ := result.AsArray()
			items = append(items, sub...)
		} else {
			items = append(items, result)
		}
	}
	deduped := make([]Value, 0, len(items))
	for _, it := range items {
		found := false
		for _, kept := range deduped {
			if kept.Equal(it) {
				found = true
				break
			}
		}
		if !found {
			deduped = append(deduped, it)
		}
	}
	return Array(deduped), nil
}

// Remove deletes key (top-level or dotted), a no-op if the key is absent.
func (d *Document) Remove(key string) (*Document, error) {
	if strings.Contains(key, fieldSeparator) {
		splits := strings.Split(key, fieldSeparator)
		return deepRemove(d, splits)
	}
	return d.without(key), nil
}

func deepRemove(d *Document, splits []string) (*Document, error) {
	if len(splits) == 0 {
		return nil, errs.New(errs.ValidationError, "empty embedded key")
	}
	key := splits[0]
	if key == "" {
		return nil, errs.New(errs.InvalidOperation, "document does not support empty key")
	}
	if len(splits) == 1 {
		return d.without(key), nil
	}
	remaining := splits[1:]
	existing, ok := d.getTop(key)
	if !ok {
		return d, nil
	}
	switch existing.Kind() {
	case KindDocument:
		nested, _ := existing.AsDocument()
		newNested, err := deepRemove(nested, remaining)
		if err != nil {
			return nil, err
		}
		if newNested.IsEmpty() {
			return d.without(key), nil
		}
		return d.update(key, DocumentValue(newNested)), nil
	case KindArray:
		arr, _ := existing.AsArray()
		first := remaining[0]
		idx, err := strconv.ParseInt(first, 10, 64)
		if err != nil {
			return nil, errs.New(errs.ValidationError, "invalid array index "+first+" to access array inside a document")
		}
		if idx < 0 {
			return nil, errs.New(errs.ValidationError, "invalid array index "+first+" to access array inside a document")
		}
		if int(idx) >= len(arr) {
			return nil, errs.New(errs.ValidationError, "array index "+first+" out of bound")
		}
		item := arr[idx]
		if item.Kind() == KindDocument && len(remaining) > 1 {
			nested, _ := item.AsDocument()
			newNested, err := deepRemove(nested, remaining[1:])
			if err != nil {
				return nil, err
			}
			newArr := make([]Value, len(arr))
			copy(newArr, arr)
			if newNested.IsEmpty() {
				newArr = append(newArr[:idx], newArr[idx+1:]...)
			} else {
				newArr[idx] = DocumentValue(newNested)
			}
			return d.update(key, Array(newArr)), nil
		}
		newArr := make([]Value, len(arr))
		copy(newArr, arr)
		newArr = append(newArr[:idx], newArr[idx+1:]...)
		return d.update(key, Array(newArr)), nil
	default:
		return d.without(key), nil
	}
}

// Id returns the document's NitriteId, generating and installing one on the
// receiver if absent. This is the one mutating-in-place exception to the
// copy-on-write rule: a fresh id is assigned to the document itself the
// first time it is requested, and callers rely on that side effect to
// make Id idempotent thereafter.
func (d *Document) Id() value.NitriteId {
	if v, ok := d.getTop(FieldID); ok {
		if id, isID := v.AsNitriteId(); isID {
			return id
		}
	}
	id := value.NewNitriteId()
	*d = *d.update(FieldID, NitriteIdValue(id))
	return id
}

// HasId reports whether the document already carries an _id field.
func (d *Document) HasId() bool {
	_, ok := d.getTop(FieldID)
	return ok
}

// Revision returns the _revision field, or 0 if unset or not an int32.
func (d *Document) Revision() int32 {
	v, ok := d.getTop(FieldRevision)
	if !ok {
		return 0
	}
	if i, ok := v.AsInt64(); ok && v.Kind() == KindInt32 {
		return int32(i)
	}
	return 0
}

// Source returns the _source field, or "" if unset or not a string.
func (d *Document) Source() string {
	v, ok := d.getTop(FieldSource)
	if !ok {
		return ""
	}
	s, _ := v.AsString()
	return s
}

// LastModifiedSinceEpoch returns the _modified field in milliseconds since
// epoch, or 0 if unset or not an int64.
func (d *Document) LastModifiedSinceEpoch() int64 {
	v, ok := d.getTop(FieldModified)
	if !ok {
		return 0
	}
	if v.Kind() != KindInt64 {
		return 0
	}
	i, _ := v.AsInt64()
	return i
}

// ContainsKey reports whether key exists at the top level.
func (d *Document) ContainsKey(key string) bool {
	_, ok := d.getTop(key)
	return ok
}

// ContainsField reports whether field exists at the top level or as an
// embedded field anywhere in the document.
func (d *Document) ContainsField(field string) bool {
	if d.ContainsKey(field) {
		return true
	}
	for _, f := range d.Fields() {
		if f == field {
			return true
		}
	}
	return false
}

// Fields lists every field path in the document — top-level names and
// dotted paths into nested documents — excluding the four reserved fields.
func (d *Document) Fields() []string {
	return d.fieldsInternal("")
}

func (d *Document) fieldsInternal(prefix string) []string {
	var fields []string
	if d == nil {
		return fields
	}
	for _, e := range d.entries {
		if reservedFields[e.key] || e.key == "" {
			continue
		}
		field := e.key
		if prefix != "" {
			field = prefix + fieldSeparator + e.key
		}
		if nested, ok := e.val.AsDocument(); ok {
			fields = append(fields, nested.fieldsInternal(field)...)
		} else {
			fields = append(fields, field)
		}
	}
	return fields
}

// Merge folds other's entries into a clone of d: documents merge
// recursively field by field, everything else is overwritten.
func (d *Document) Merge(other *Document) *Document {
	result := d
	if result == nil {
		result = NewDocument()
	}
	for _, e := range other.entries {
		if otherNested, ok := e.val.AsDocument(); ok {
			if existing, found := result.getTop(e.key); found {
				if existingNested, isDoc := existing.AsDocument(); isDoc {
					merged := existingNested.Merge(otherNested)
					result = result.update(e.key, DocumentValue(merged))
					continue
				}
			}
			result = result.update(e.key, e.val)
		} else {
			result = result.update(e.key, e.val)
		}
	}
	return result
}

// Iter calls fn for every top-level (key, value) pair in insertion order,
// stopping early if fn returns false.
func (d *Document) Iter(fn func(key string, val Value) bool) {
	if d == nil {
		return
	}
	for _, e := range d.entries {
		if !fn(e.key, e.val) {
			return
		}
	}
}

// Compare implements a total order over documents: (key, value) pairs are
// compared lexicographically in insertion order, and only when one
// document's pairs are a prefix of the other's does the shorter sort first.
func (d *Document) Compare(other *Document) int {
	al, bl := d.Size(), other.Size()
	for i := 0; i < al && i < bl; i++ {
		if c := strings.Compare(d.entries[i].key, other.entries[i].key); c != 0 {
			return c
		}
		if c := d.entries[i].val.Compare(other.entries[i].val); c != 0 {
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

func (d *Document) String() string {
	if d.IsEmpty() {
		return "{}"
	}
	var b strings.Builder
	b.WriteByte('{')
	for i, e := range d.entries {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(e.key)
		b.WriteString(`":`)
		b.WriteString(e.val.String())
	}
	b.WriteByte('}')
	return b.String()
}
