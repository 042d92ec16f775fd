package registers

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	"github.com/dmelani/godbg/ptrace"
)

// Byte-exact mirror of the tracee's kernel user area.  Value semantics;
// modified copies are produced by WithValue and pushed back to the tracee
// by the owning process.
type State struct {
	User ptrace.User
}

func (state *State) bytes() []byte {
	return unsafe.Slice(
		(*byte)(unsafe.Pointer(&state.User)),
		unsafe.Sizeof(state.User))
}

// Returns the variant dictated by the register's format and size.
func (state State) Value(reg Spec) Value {
	data := state.bytes()[reg.Offset : reg.Offset+reg.Size]

	switch reg.Format {
	case UnsignedInt:
		switch reg.Size {
		case 1:
			return U8(data[0])
		case 2:
			return U16(binary.LittleEndian.Uint16(data))
		case 4:
			return U32(binary.LittleEndian.Uint32(data))
		case 8:
			return U64(binary.LittleEndian.Uint64(data))
		}
	case DoubleFloat:
		return F64(math.Float64frombits(binary.LittleEndian.Uint64(data)))
	case LongDouble:
		result := Float80{}
		copy(result.Raw[:], data)
		return result
	case Vector:
		switch reg.Size {
		case 8:
			b := Bytes8{}
			copy(b[:], data)
			return b
		case 16:
			b := Bytes16{}
			copy(b[:], data)
			return b
		}
	}

	panic(fmt.Sprintf("invalid register: %#v", reg))
}

func toFloat64(value Value) float64 {
	switch f := value.(type) {
	case Float64:
		return float64(f)
	case Float80:
		return f.Float64()
	default:
		panic(fmt.Sprintf("not a float value: %#v", value))
	}
}

// Converts a value into a 16-byte register-width staging buffer.  Floats
// are converted to the register's float format, signed ints written to
// unsigned int registers are sign extended, everything else is zero
// extended.  The widening rules are centralized here; Value variants stay
// conversion-free.
func widen(reg Spec, value Value) []byte {
	staging := make([]byte, 16)

	switch {
	case value.IsFloat() && reg.Format == DoubleFloat:
		copy(staging, F64(toFloat64(value)).ToBytes())
	case value.IsFloat() && reg.Format == LongDouble:
		copy(staging, F80(toFloat64(value)).ToBytes())
	case value.IsSigned() && reg.Format == UnsignedInt:
		binary.LittleEndian.PutUint64(staging, value.ToUint64())
	default:
		copy(staging, value.ToBytes())
	}

	return staging
}

// Returns a copy of the state with the register's slot replaced by the
// widened value.  The tracee is unaffected until the new state is pushed
// through the owning process.
func (state State) WithValue(
	reg Spec,
	value Value,
) (
	State,
	error,
) {
	err := reg.CanAccept(value)
	if err != nil {
		return State{}, err
	}

	newState := state
	staging := widen(reg, value)
	copy(newState.bytes()[reg.Offset:reg.Offset+reg.Size], staging[:reg.Size])
	return newState, nil
}
