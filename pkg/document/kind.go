package document

// Kind tags the payload carried by a Value. Value is a closed sum type over
// every scalar, collection, and identifier shape a Document field may hold,
// mirroring the Rust `enum Value` this package is translated from.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindInt
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindUint
	// KindBigInt backs the Rust I128/U128 variants; Go has no native
	// 128-bit integer so both widths are kept as one signed
	// arbitrary-precision math/big integer, with no separate signedness flag.
	KindBigInt
	KindFloat32
	KindFloat64
	KindChar
	KindString
	KindDocument
	KindArray
	KindMap
	KindNitriteId
	KindBytes
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindBool:
		return "Bool"
	case KindInt8:
		return "Int8"
	case KindInt16:
		return "Int16"
	case KindInt32:
		return "Int32"
	case KindInt64:
		return "Int64"
	case KindInt:
		return "Int"
	case KindUint8:
		return "Uint8"
	case KindUint16:
		return "Uint16"
	case KindUint32:
		return "Uint32"
	case KindUint64:
		return "Uint64"
	case KindUint:
		return "Uint"
	case KindBigInt:
		return "BigInt"
	case KindFloat32:
		return "Float32"
	case KindFloat64:
		return "Float64"
	case KindChar:
		return "Char"
	case KindString:
		return "String"
	case KindDocument:
		return "Document"
	case KindArray:
		return "Array"
	case KindMap:
		return "Map"
	case KindNitriteId:
		return "NitriteId"
	case KindBytes:
		return "Bytes"
	default:
		return "Unknown"
	}
}
