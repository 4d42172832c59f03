package document

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"

	"github.com/cuemby/nitrite/pkg/value"
)

// MarshalBinary serializes v losslessly, preserving its exact Kind (Int32
// round-trips as Int32, not Int64). This is what the storage layer persists
// as the bolt value bytes for both primary-map documents and index entries;
// it is not used for key ordering — see SortKey for that.
func (v Value) MarshalBinary() ([]byte, error) {
	var buf []byte
	buf = append(buf, byte(v.kind))
	switch v.kind {
	case KindNull, KindUnknown:
		// tag only
	case KindBool:
		if v.bl {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case KindInt8, KindInt16, KindInt32, KindInt64, KindInt:
		buf = appendUint64(buf, uint64(v.i))
	case KindUint8, KindUint16, KindUint32, KindUint64, KindUint:
		buf = appendUint64(buf, v.u)
	case KindBigInt:
		sign := byte(0)
		if v.big.Sign() < 0 {
			sign = 1
		}
		buf = append(buf, sign)
		mag := v.big.Bytes()
		buf = appendUvarint(buf, uint64(len(mag)))
		buf = append(buf, mag...)
	case KindFloat32:
		buf = appendUint32(buf, math.Float32bits(v.f32))
	case KindFloat64:
		buf = appendUint64(buf, math.Float64bits(v.f64))
	case KindChar:
		buf = appendUint32(buf, uint32(v.ch))
	case KindString:
		buf = appendUvarint(buf, uint64(len(v.s)))
		buf = append(buf, v.s...)
	case KindBytes:
		buf = appendUvarint(buf, uint64(len(v.bs)))
		buf = append(buf, v.bs...)
	case KindDocument:
		sub, err := v.doc.MarshalBinary()
		if err != nil {
			return nil, err
		}
		buf = append(buf, sub...)
	case KindArray:
		buf = appendUvarint(buf, uint64(len(v.arr)))
		for _, e := range v.arr {
			eb, err := e.MarshalBinary()
			if err != nil {
				return nil, err
			}
			buf = appendUvarint(buf, uint64(len(eb)))
			buf = append(buf, eb...)
		}
	case KindMap:
		n := v.m.Len()
		buf = appendUvarint(buf, uint64(n))
		var encErr error
		v.m.Iter(func(k, val Value) bool {
			kb, err := k.MarshalBinary()
			if err != nil {
				encErr = err
				return false
			}
			vb, err := val.MarshalBinary()
			if err != nil {
				encErr = err
				return false
			}
			buf = appendUvarint(buf, uint64(len(kb)))
			buf = append(buf, kb...)
			buf = appendUvarint(buf, uint64(len(vb)))
			buf = append(buf, vb...)
			return true
		})
		if encErr != nil {
			return nil, encErr
		}
	case KindNitriteId:
		hi, lo := v.id.Components()
		buf = appendUint64(buf, hi)
		buf = appendUint64(buf, lo)
	default:
		return nil, fmt.Errorf("document: unknown value kind %d", v.kind)
	}
	return buf, nil
}

// UnmarshalBinary is the exact inverse of MarshalBinary.
func (v *Value) UnmarshalBinary(data []byte) error {
	dec, _, err := decodeValue(data)
	if err != nil {
		return err
	}
	*v = dec
	return nil
}

func decodeValue(data []byte) (Value, int, error) {
	if len(data) == 0 {
		return Null, 0, fmt.Errorf("document: empty value payload")
	}
	kind := Kind(data[0])
	rest := data[1:]
	consumed := 1
	switch kind {
	case KindNull:
		return Null, consumed, nil
	case KindUnknown:
		return Unknown(), consumed, nil
	case KindBool:
		if len(rest) < 1 {
			return Null, 0, fmt.Errorf("document: truncated bool")
		}
		return Bool(rest[0] != 0), consumed + 1, nil
	case KindInt8, KindInt16, KindInt32, KindInt64, KindInt:
		u, n, err := readUint64(rest)
		if err != nil {
			return Null, 0, err
		}
		i := int64(u)
		consumed += n
		switch kind {
		case KindInt8:
			return Int8(int8(i)), consumed, nil
		case KindInt16:
			return Int16(int16(i)), consumed, nil
		case KindInt32:
			return Int32(int32(i)), consumed, nil
		case KindInt64:
			return Int64(i), consumed, nil
		default:
			return Int(int(i)), consumed, nil
		}
	case KindUint8, KindUint16, KindUint32, KindUint64, KindUint:
		u, n, err := readUint64(rest)
		if err != nil {
			return Null, 0, err
		}
		consumed += n
		switch kind {
		case KindUint8:
			return Uint8(uint8(u)), consumed, nil
		case KindUint16:
			return Uint16(uint16(u)), consumed, nil
		case KindUint32:
			return Uint32(uint32(u)), consumed, nil
		case KindUint64:
			return Uint64(u), consumed, nil
		default:
			return Uint(uint(u)), consumed, nil
		}
	case KindBigInt:
		if len(rest) < 1 {
			return Null, 0, fmt.Errorf("document: truncated bigint sign")
		}
		sign := rest[0]
		rest = rest[1:]
		consumed++
		ln, n, err := readUvarint(rest)
		if err != nil {
			return Null, 0, err
		}
		rest = rest[n:]
		consumed += n
		if uint64(len(rest)) < ln {
			return Null, 0, fmt.Errorf("document: truncated bigint magnitude")
		}
		mag := new(big.Int).SetBytes(rest[:ln])
		if sign == 1 {
			mag.Neg(mag)
		}
		consumed += int(ln)
		return BigInt(mag), consumed, nil
	case KindFloat32:
		u, n, err := readUint32(rest)
		if err != nil {
			return Null, 0, err
		}
		consumed += n
		return Float32(math.Float32frombits(u)), consumed, nil
	case KindFloat64:
		u, n, err := readUint64(rest)
		if err != nil {
			return Null, 0, err
		}
		consumed += n
		return Float64(math.Float64frombits(u)), consumed, nil
	case KindChar:
		u, n, err := readUint32(rest)
		if err != nil {
			return Null, 0, err
		}
		consumed += n
		return Char(rune(u)), consumed, nil
	case KindString:
		ln, n, err := readUvarint(rest)
		if err != nil {
			return Null, 0, err
		}
		rest = rest[n:]
		consumed += n
		if uint64(len(rest)) < ln {
			return Null, 0, fmt.Errorf("document: truncated string")
		}
		consumed += int(ln)
		return String(string(rest[:ln])), consumed, nil
	case KindBytes:
		ln, n, err := readUvarint(rest)
		if err != nil {
			return Null, 0, err
		}
		rest = rest[n:]
		consumed += n
		if uint64(len(rest)) < ln {
			return Null, 0, fmt.Errorf("document: truncated bytes")
		}
		consumed += int(ln)
		return Bytes(rest[:ln]), consumed, nil
	case KindDocument:
		doc, n, err := decodeDocument(data)
		if err != nil {
			return Null, 0, err
		}
		return DocumentValue(doc), n, nil
	case KindArray:
		ln, n, err := readUvarint(rest)
		if err != nil {
			return Null, 0, err
		}
		rest = rest[n:]
		consumed += n
		arr := make([]Value, 0, ln)
		for i := uint64(0); i < ln; i++ {
			elen, en, err := readUvarint(rest)
			if err != nil {
				return Null, 0, err
			}
			rest = rest[en:]
			consumed += en
			if uint64(len(rest)) < elen {
				return Null, 0, fmt.Errorf("document: truncated array element")
			}
			elemVal, _, err := decodeValue(rest[:elen])
			if err != nil {
				return Null, 0, err
			}
			arr = append(arr, elemVal)
			rest = rest[elen:]
			consumed += int(elen)
		}
		return Array(arr), consumed, nil
	case KindMap:
		ln, n, err := readUvarint(rest)
		if err != nil {
			return Null, 0, err
		}
		rest = rest[n:]
		consumed += n
		m := NewValueMap()
		for i := uint64(0); i < ln; i++ {
			klen, kn, err := readUvarint(rest)
			if err != nil {
				return Null, 0, err
			}
			rest = rest[kn:]
			consumed += kn
			if uint64(len(rest)) < klen {
				return Null, 0, fmt.Errorf("document: truncated map key")
			}
			k, _, err := decodeValue(rest[:klen])
			if err != nil {
				return Null, 0, err
			}
			rest = rest[klen:]
			consumed += int(klen)

			vlen, vn, err := readUvarint(rest)
			if err != nil {
				return Null, 0, err
			}
			rest = rest[vn:]
			consumed += vn
			if uint64(len(rest)) < vlen {
				return Null, 0, fmt.Errorf("document: truncated map value")
			}
			val, _, err := decodeValue(rest[:vlen])
			if err != nil {
				return Null, 0, err
			}
			rest = rest[vlen:]
			consumed += int(vlen)

			m = m.Put(k, val)
		}
		return Map(m), consumed, nil
	case KindNitriteId:
		hi, n1, err := readUint64(rest)
		if err != nil {
			return Null, 0, err
		}
		rest = rest[n1:]
		consumed += n1
		lo, n2, err := readUint64(rest)
		if err != nil {
			return Null, 0, err
		}
		consumed += n2
		return NitriteIdValue(value.NitriteIdFromUint64(hi, lo)), consumed, nil
	default:
		return Null, 0, fmt.Errorf("document: unknown value kind byte %d", kind)
	}
}

// MarshalBinary serializes d's entries in insertion order, using the same
// envelope Value uses for its Document kind (so a Document can appear
// either as a top-level map-stored payload or nested inside a Value).
func (d *Document) MarshalBinary() ([]byte, error) {
	buf := []byte{byte(KindDocument)}
	buf = appendUvarint(buf, uint64(d.Size()))
	var encErr error
	d.Iter(func(key string, val Value) bool {
		vb, err := val.MarshalBinary()
		if err != nil {
			encErr = err
			return false
		}
		buf = appendUvarint(buf, uint64(len(key)))
		buf = append(buf, key...)
		buf = appendUvarint(buf, uint64(len(vb)))
		buf = append(buf, vb...)
		return true
	})
	if encErr != nil {
		return nil, encErr
	}
	return buf, nil
}

// UnmarshalBinary is the exact inverse of MarshalBinary.
func (d *Document) UnmarshalBinary(data []byte) error {
	doc, _, err := decodeDocument(data)
	if err != nil {
		return err
	}
	*d = *doc
	return nil
}

func decodeDocument(data []byte) (*Document, int, error) {
	if len(data) == 0 || Kind(data[0]) != KindDocument {
		return nil, 0, fmt.Errorf("document: expected document envelope")
	}
	rest := data[1:]
	consumed := 1
	n, nn, err := readUvarint(rest)
	if err != nil {
		return nil, 0, err
	}
	rest = rest[nn:]
	consumed += nn
	doc := NewDocument()
	for i := uint64(0); i < n; i++ {
		klen, kn, err := readUvarint(rest)
		if err != nil {
			return nil, 0, err
		}
		rest = rest[kn:]
		consumed += kn
		if uint64(len(rest)) < klen {
			return nil, 0, fmt.Errorf("document: truncated field key")
		}
		key := string(rest[:klen])
		rest = rest[klen:]
		consumed += int(klen)

		vlen, vn, err := readUvarint(rest)
		if err != nil {
			return nil, 0, err
		}
		rest = rest[vn:]
		consumed += vn
		if uint64(len(rest)) < vlen {
			return nil, 0, fmt.Errorf("document: truncated field value")
		}
		val, _, err := decodeValue(rest[:vlen])
		if err != nil {
			return nil, 0, err
		}
		rest = rest[vlen:]
		consumed += int(vlen)

		doc = doc.update(key, val)
	}
	return doc, consumed, nil
}

// SortKey renders v into a byte sequence whose lexicographic order matches
// Value.Compare across homogeneous-class keys (all integer kinds regardless
// of width sort as integers, all float kinds as floats, etc.) — Key already
// treats I32(5)/I64(5)/U64(5) as the same slot, so collapsing width here is
// intentional rather than lossy. Cross-class keys (e.g. a String versus an
// Int64) are ordered by kind tag rather than by Value.Compare's string-form
// fallback: real index and primary keys are homogeneous in practice, and a
// byte-sortable encoding is what the backing B+tree needs for its cursor
// navigation (first/last/higher/ceiling/lower/floor).
func (v Value) SortKey() []byte {
	switch {
	case v.IsInteger():
		buf := make([]byte, 17)
		buf[0] = sortTagInteger
		v.big128().FillBytes(buf[1:])
		return buf
	case v.IsDecimal():
		buf := make([]byte, 9)
		buf[0] = sortTagFloat
		binary.BigEndian.PutUint64(buf[1:], sortableFloatBits(v.floatBits()))
		return buf
	}
	switch v.kind {
	case KindNull:
		return []byte{sortTagNull}
	case KindBool:
		b := byte(0)
		if v.bl {
			b = 1
		}
		return []byte{sortTagBool, b}
	case KindChar:
		buf := make([]byte, 5)
		buf[0] = sortTagChar
		binary.BigEndian.PutUint32(buf[1:], uint32(v.ch))
		return buf
	case KindString:
		return append([]byte{sortTagString}, v.s...)
	case KindBytes:
		return append([]byte{sortTagBytes}, v.bs...)
	case KindNitriteId:
		buf := make([]byte, 17)
		buf[0] = sortTagNitriteId
		hi, lo := v.id.Components()
		binary.BigEndian.PutUint64(buf[1:9], hi)
		binary.BigEndian.PutUint64(buf[9:], lo)
		return buf
	default:
		// Document/Array/Map/Unknown: rarely used as map keys; fall back to
		// the exact binary payload so equal values still collide.
		payload, _ := v.MarshalBinary()
		return append([]byte{sortTagOther}, payload...)
	}
}

const (
	sortTagNull = iota
	sortTagBool
	sortTagInteger
	sortTagFloat
	sortTagChar
	sortTagString
	sortTagBytes
	sortTagNitriteId
	sortTagOther
)

// sortableFloatBits maps f to a uint64 whose unsigned numeric order matches
// the NaN-greatest, -0.0==0.0 total order defined by cmpFloat.
func sortableFloatBits(f float64) uint64 {
	if math.IsNaN(f) {
		return math.MaxUint64
	}
	if f == 0 {
		return 1 << 63
	}
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		return ^bits
	}
	return bits | (1 << 63)
}

func appendUint64(buf []byte, u uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], u)
	return append(buf, tmp[:]...)
}

func appendUint32(buf []byte, u uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], u)
	return append(buf, tmp[:]...)
}

func appendUvarint(buf []byte, u uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], u)
	return append(buf, tmp[:n]...)
}

func readUint64(data []byte) (uint64, int, error) {
	if len(data) < 8 {
		return 0, 0, fmt.Errorf("document: truncated uint64")
	}
	return binary.BigEndian.Uint64(data[:8]), 8, nil
}

func readUint32(data []byte) (uint32, int, error) {
	if len(data) < 4 {
		return 0, 0, fmt.Errorf("document: truncated uint32")
	}
	return binary.BigEndian.Uint32(data[:4]), 4, nil
}

func readUvarint(data []byte) (uint64, int, error) {
	u, n := binary.Uvarint(data)
	if n <= 0 {
		return 0, 0, fmt.Errorf("document: invalid uvarint")
	}
	return u, n, nil
}
