package value

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// idCounter mixes a monotonic tick into every generated NitriteId so that
// two ids created in the same process never collide even if the uuid
// entropy happened to repeat.
var idCounter uint64

// NitriteId is an opaque, ordered, hashable identifier assigned to a
// document's reserved _id field the first time it is requested.
type NitriteId struct {
	hi uint64
	lo uint64
}

// NewNitriteId generates a fresh identifier. The high word is a monotonic
// counter (guarantees intra-process ordering roughly follows creation
// order); the low word is entropy drawn from a random UUIDv4, reusing the
// uuid package rather than adding a second id-generation dependency.
func NewNitriteId() NitriteId {
	hi := atomic.AddUint64(&idCounter, 1)
	u := uuid.New()
	var lo uint64
	for i := 0; i < 8; i++ {
		lo = lo<<8 | uint64(u[i])
	}
	return NitriteId{hi: hi, lo: lo}
}

// NitriteIdFromUint64 reconstructs an id from its raw components, used when
// round-tripping ids stored as map keys.
func NitriteIdFromUint64(hi, lo uint64) NitriteId {
	return NitriteId{hi: hi, lo: lo}
}

// Components returns the raw (hi, lo) pair backing this id.
func (id NitriteId) Components() (uint64, uint64) {
	return id.hi, id.lo
}

func (id NitriteId) String() string {
	return fmt.Sprintf("%016x%016x", id.hi, id.lo)
}

// Compare returns -1, 0, or 1 comparing id to other, ordering first by the
// monotonic high word and then by the entropy low word.
func (id NitriteId) Compare(other NitriteId) int {
	switch {
	case id.hi < other.hi:
		return -1
	case id.hi > other.hi:
		return 1
	case id.lo < other.lo:
		return -1
	case id.lo > other.lo:
		return 1
	default:
		return 0
	}
}
