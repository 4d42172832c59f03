package document

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/cuemby/nitrite/pkg/value"
)

// Value is the tagged sum type for every scalar, collection, and identifier
// a Document field can hold, widened where Go has no matching primitive
// (there is no native 128-bit integer, so 128-bit integers fold into
// KindBigInt backed by math/big).
//
// The zero Value is Null.
type Value struct {
	kind Kind

	i    int64
	u    uint64
	big  *big.Int
	f32  float32
	f64  float64
	ch   rune
	s    string
	bs   []byte
	doc  *Document
	arr  []Value
	m    *ValueMap
	id   value.NitriteId
	bl   bool
}

// Key is an alias of Value: map keys are ordered by the same rules as
// values, so that I64(5), I32(5), and U64(5) address the same slot.
type Key = Value

// Null is the canonical absent value.
var Null = Value{kind: KindNull}

func Bool(b bool) Value   { return Value{kind: KindBool, bl: b} }
func Int8(v int8) Value   { return Value{kind: KindInt8, i: int64(v)} }
func Int16(v int16) Value { return Value{kind: KindInt16, i: int64(v)} }
func Int32(v int32) Value { return Value{kind: KindInt32, i: int64(v)} }
func Int64(v int64) Value { return Value{kind: KindInt64, i: v} }
func Int(v int) Value     { return Value{kind: KindInt, i: int64(v)} }

func Uint8(v uint8) Value   { return Value{kind: KindUint8, u: uint64(v)} }
func Uint16(v uint16) Value { return Value{kind: KindUint16, u: uint64(v)} }
func Uint32(v uint32) Value { return Value{kind: KindUint32, u: uint64(v)} }
func Uint64(v uint64) Value { return Value{kind: KindUint64, u: v} }
func Uint(v uint) Value     { return Value{kind: KindUint, u: uint64(v)} }

// BigInt stores an arbitrary-precision signed integer, the Go analogue of
// the Rust I128/U128 variants.
func BigInt(v *big.Int) Value {
	return Value{kind: KindBigInt, big: new(big.Int).Set(v)}
}

func Float32(v float32) Value { return Value{kind: KindFloat32, f32: v} }
func Float64(v float64) Value { return Value{kind: KindFloat64, f64: v} }
func Char(v rune) Value       { return Value{kind: KindChar, ch: v} }
func String(v string) Value   { return Value{kind: KindString, s: v} }
func Bytes(v []byte) Value {
	cp := make([]byte, len(v))
	copy(cp, v)
	return Value{kind: KindBytes, bs: cp}
}
func DocumentValue(d *Document) Value { return Value{kind: KindDocument, doc: d} }
func Array(vs []Value) Value {
	cp := make([]Value, len(vs))
	copy(cp, vs)
	return Value{kind: KindArray, arr: cp}
}
func Map(m *ValueMap) Value          { return Value{kind: KindMap, m: m} }
func NitriteIdValue(id value.NitriteId) Value { return Value{kind: KindNitriteId, id: id} }
func Unknown() Value                 { return Value{kind: KindUnknown} }

// Kind returns the tag of this value.
func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

// IsInteger reports whether v holds one of the integer kinds.
func (v Value) IsInteger() bool {
	switch v.kind {
	case KindInt8, KindInt16, KindInt32, KindInt64, KindInt,
		KindUint8, KindUint16, KindUint32, KindUint64, KindUint, KindBigInt:
		return true
	default:
		return false
	}
}

// IsDecimal reports whether v holds a float kind.
func (v Value) IsDecimal() bool {
	return v.kind == KindFloat32 || v.kind == KindFloat64
}

func (v Value) IsNitriteId() bool { return v.kind == KindNitriteId }

// AsBool returns the boolean payload and whether v was a Bool.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.bl, true
}

// AsString returns the string payload and whether v was a String.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// AsDocument returns the nested Document and whether v was a Document.
func (v Value) AsDocument() (*Document, bool) {
	if v.kind != KindDocument {
		return nil, false
	}
	return v.doc, true
}

// AsArray returns the backing slice and whether v was an Array.
func (v Value) AsArray() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.arr, true
}

// AsNitriteId returns the identifier and whether v was a NitriteId.
func (v Value) AsNitriteId() (value.NitriteId, bool) {
	if v.kind != KindNitriteId {
		return value.NitriteId{}, false
	}
	return v.id, true
}

// AsInt64 returns v widened to int64 when v holds a signed or small enough
// integer kind, used by call sites that just want "a number".
func (v Value) AsInt64() (int64, bool) {
	switch v.kind {
	case KindInt8, KindInt16, KindInt32, KindInt64, KindInt:
		return v.i, true
	case KindUint8, KindUint16, KindUint32, KindUint64, KindUint:
		if v.u <= math.MaxInt64 {
			return int64(v.u), true
		}
		return 0, false
	default:
		return 0, false
	}
}

// AsFloat64 returns v widened to float64 when v holds a float kind.
func (v Value) AsFloat64() (float64, bool) {
	switch v.kind {
	case KindFloat32:
		return float64(v.f32), true
	case KindFloat64:
		return v.f64, true
	default:
		return 0, false
	}
}

// big128 widens any integer-kinded value to the 128-bit two's-complement
// pattern, reinterpreted as unsigned. Two's complement widening is why a
// negative signed value compares as very large rather than as negative —
// deliberate, so cross-width comparisons stay consistent regardless of
// which signed or unsigned integer kind a value happens to be stored as.
func (v Value) big128() *big.Int {
	mod := new(big.Int).Lsh(big.NewInt(1), 128)
	switch v.kind {
	case KindInt8, KindInt16, KindInt32, KindInt64, KindInt:
		b := big.NewInt(v.i)
		if v.i < 0 {
			b.Add(b, mod)
		}
		return b
	case KindUint8, KindUint16, KindUint32, KindUint64, KindUint:
		return new(big.Int).SetUint64(v.u)
	case KindBigInt:
		if v.big.Sign() < 0 {
			return new(big.Int).Add(v.big, mod)
		}
		return new(big.Int).Set(v.big)
	default:
		return big.NewInt(0)
	}
}

// floatBits returns v widened to float64, used by the float comparison
// rules (NaN-equal-to-NaN, NaN greater than everything finite, -0.0==0.0).
func (v Value) floatBits() float64 {
	switch v.kind {
	case KindFloat32:
		return float64(v.f32)
	case KindFloat64:
		return v.f64
	default:
		return 0
	}
}

// Compare implements a total ordering across every Value kind: integers
// widen to a common 128-bit unsigned domain; floats treat NaN as equal to
// NaN and greater than every finite/infinite value, and -0.0 == 0.0;
// cross-kind comparisons fall back to string-form ordering.
func (v Value) Compare(other Value) int {
	if v.IsInteger() && other.IsInteger() {
		a, b := v.big128(), other.big128()
		return a.Cmp(b)
	}
	if v.IsDecimal() && other.IsDecimal() {
		return cmpFloat(v.floatBits(), other.floatBits())
	}
	if v.kind == other.kind {
		switch v.kind {
		case KindNull, KindUnknown:
			return 0
		case KindBool:
			return cmpBool(v.bl, other.bl)
		case KindChar:
			return cmpRune(v.ch, other.ch)
		case KindString:
			return strings.Compare(v.s, other.s)
		case KindDocument:
			return v.doc.Compare(other.doc)
		case KindArray:
			return cmpArray(v.arr, other.arr)
		case KindMap:
			return v.m.Compare(other.m)
		case KindNitriteId:
			return v.id.Compare(other.id)
		case KindBytes:
			return cmpBytes(v.bs, other.bs)
		}
	}
	// cross-kind fallback: string-form ordering.
	return strings.Compare(v.String(), other.String())
}

// Equal reports whether v and other compare equal under Compare.
func (v Value) Equal(other Value) bool {
	return v.Compare(other) == 0
}

func cmpBool(a, b bool) int {
	if a == b {
		return 0
	}
	if !a && b {
		return -1
	}
	return 1
}

func cmpRune(a, b rune) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpBytes(a, b []byte) int {
	return strings.Compare(string(a), string(b))
}

func cmpArray(a, b []Value) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := a[i].Compare(b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// cmpFloat implements a NaN-as-equal, NaN-greater-than-everything,
// -0.0==0.0 total order over floats.
func cmpFloat(a, b float64) int {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return 1
	case bNaN:
		return -1
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// String renders v in the source's pretty-printed form, used both for
// Display and as the cross-kind ordering fallback.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		if v.bl {
			return "true"
		}
		return "false"
	case KindInt8, KindInt16, KindInt32, KindInt64, KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindUint8, KindUint16, KindUint32, KindUint64, KindUint:
		return fmt.Sprintf("%d", v.u)
	case KindBigInt:
		return v.big.String()
	case KindFloat32:
		return strconvFloat(float64(v.f32), 32)
	case KindFloat64:
		return strconvFloat(v.f64, 64)
	case KindChar:
		return string(v.ch)
	case KindString:
		return v.s
	case KindDocument:
		return v.doc.String()
	case KindArray:
		parts := make([]string, len(v.arr))
		for i, e := range v.arr {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ",") + "]"
	case KindMap:
		return v.m.String()
	case KindNitriteId:
		return v.id.String()
	case KindBytes:
		return fmt.Sprintf("bytes(%d)", len(v.bs))
	default:
		return "unknown"
	}
}

func strconvFloat(f float64, bits int) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	return fmt.Sprintf("%v", f)
}
