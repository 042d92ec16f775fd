package registers

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	. "github.com/dmelani/godbg/debugger/common"
	"github.com/dmelani/godbg/ptrace"
)

// The register category determines which kernel write primitive propagates
// a modified value:
// - Gpr / SubGpr -> user::regs (user_regs_struct), poked by user area word
// - Fpr -> user::i387 (user_fpregs_struct), pushed via PTRACE_SETFPREGS
// - Dr -> user::u_debugreg ([8]uint64), poked by user area word
type Category string

const (
	Gpr    = Category("gpr")
	SubGpr = Category("sub gpr")
	Fpr    = Category("fpr")
	Dr     = Category("dr")
)

// The display format determines which Value variant a read produces.
type Format string

const (
	UnsignedInt = Format("uint")
	DoubleFloat = Format("double")
	LongDouble  = Format("long double")
	Vector      = Format("vector")
)

type RegisterId int

type Spec struct {
	RegisterId

	Name string

	DwarfId int // -1 for invalid

	Size uintptr // register size in bytes

	// Byte offset into the kernel user area.  Computed from the ptrace.User
	// layout; single source of truth for user area peeks and pokes.
	Offset uintptr

	Category Category
	Format   Format
}

// Valid value variants:
//
// 8-bit register: Uint8, Int8
// 16-bit register: Uint16, Int16
// 32-bit register: Uint32, Int32
// 64-bit register: Uint64, Int64
// 8-byte vector register: Bytes8
// 16-byte floating point register: Float64, Float80, Bytes16
//
// Any variant whose size does not exceed the register size is accepted;
// uint and vector bytes are zero extended, int is sign extended, floats are
// converted to the register's float width.
//
// NOTE: mm0, ..., mm7 are in reality 8-byte registers, and st0, ..., st7 are
// in reality 10-byte registers, but both occupy 16-byte slots in linux's
// fpu save area.
func (reg Spec) CanAccept(value Value) error {
	// dr4 and dr5 are not real registers
	// https://en.wikipedia.org/wiki/X86_debug_register
	if reg.Category == Dr && (reg.Offset == drOffset(4) || reg.Offset == drOffset(5)) {
		return fmt.Errorf("cannot set %s.  register is read-only", reg.Name)
	}

	if value.Size() > reg.Size {
		return fmt.Errorf(
			"%w: register (%s) size (%d) smaller than value size (%d)",
			ErrSizeMismatch,
			reg.Name,
			reg.Size,
			value.Size())
	}

	return nil
}

func (reg Spec) ParseValue(value string) (Value, error) {
	switch reg.Format {
	case DoubleFloat:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse float64 (%s): %w", value, err)
		}
		return F64(floatValue), nil
	case LongDouble:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse float (%s): %w", value, err)
		}
		return F80(floatValue), nil
	case Vector:
		chunks := strings.Split(value, ":")
		if len(chunks) == 2 {
			high, err := strconv.ParseUint(chunks[0], 0, 64)
			if err != nil {
				return nil, fmt.Errorf(
					"failed to parse vector high word (%s): %w",
					chunks[0],
					err)
			}

			low, err := strconv.ParseUint(chunks[1], 0, 64)
			if err != nil {
				return nil, fmt.Errorf(
					"failed to parse vector low word (%s): %w",
					chunks[1],
					err)
			}

			return B16FromWords(high, low), nil
		}

		low, err := strconv.ParseUint(value, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse vector word (%s): %w", value, err)
		}

		if reg.Size == 8 {
			return B8FromWord(low), nil
		}
		return B16FromWords(0, low), nil
	}

	if strings.HasPrefix(value, "i:") {
		bitSize := int(reg.Size * 8)
		if bitSize > 64 {
			bitSize = 64
		}
		intValue, err := strconv.ParseInt(value[2:], 0, bitSize)
		if err != nil {
			return nil, fmt.Errorf("failed to parse int (%s): %w", value[2:], err)
		}

		switch reg.Size {
		case 1:
			return I8(int8(intValue)), nil
		case 2:
			return I16(int16(intValue)), nil
		case 4:
			return I32(int32(intValue)), nil
		case 8:
			return I64(intValue), nil
		default:
			panic(fmt.Sprintf("unhandled size %d", reg.Size))
		}
	}

	bitSize := int(reg.Size * 8)
	if bitSize > 64 {
		bitSize = 64
	}

	uintValue, err := strconv.ParseUint(value, 0, bitSize)
	if err != nil {
		return nil, fmt.Errorf("failed to parse uint (%s): %w", value, err)
	}

	switch reg.Size {
	case 1:
		return U8(uint8(uintValue)), nil
	case 2:
		return U16(uint16(uintValue)), nil
	case 4:
		return U32(uint32(uintValue)), nil
	case 8:
		return U64(uintValue), nil
	default:
		panic(fmt.Sprintf("unhandled size %d", reg.Size))
	}
}

var (
	OrderedSpecs []Spec
	nameSpecs    map[string]Spec     = map[string]Spec{}
	idSpecs      map[RegisterId]Spec = map[RegisterId]Spec{}
	dwarfSpecs   map[int]Spec        = map[int]Spec{}

	ProgramCounter Spec
	StackPointer   Spec
	FramePointer   Spec

	FpuStatus  Spec
	FpuTag     Spec
	DebugRegs  []Spec

	// Byte offsets of the three user area blocks, initialized alongside the
	// register table.
	regsOffset      uintptr
	i387Offset      uintptr
	uDebugRegOffset uintptr
)

func drOffset(idx int) uintptr {
	return uDebugRegOffset + uintptr(idx*8)
}

func ByName(name string) (Spec, error) {
	reg, ok := nameSpecs[name]
	if !ok {
		return Spec{}, fmt.Errorf("%w: no register named %s", ErrNotFound, name)
	}
	return reg, nil
}

func ById(id RegisterId) (Spec, error) {
	reg, ok := idSpecs[id]
	if !ok {
		return Spec{}, fmt.Errorf("%w: no register with id %d", ErrNotFound, id)
	}
	return reg, nil
}

func ByDwarfId(dwarfId int) (Spec, error) {
	reg, ok := dwarfSpecs[dwarfId]
	if !ok {
		return Spec{}, fmt.Errorf(
			"%w: no register with dwarf id %d",
			ErrNotFound,
			dwarfId)
	}
	return reg, nil
}

func fieldOffset(structType reflect.Type, name string) uintptr {
	field, ok := structType.FieldByName(name)
	if !ok {
		panic("no such field: " + name)
	}
	return field.Offset
}

func init() {
	userType := reflect.TypeOf(ptrace.User{})
	gprType := reflect.TypeOf(ptrace.UserRegs{})
	fprType := reflect.TypeOf(ptrace.UserFPRegs{})

	regsOffset = fieldOffset(userType, "Regs")
	i387Offset = fieldOffset(userType, "I387")
	uDebugRegOffset = fieldOffset(userType, "UDebugReg")

	stSpaceOffset := i387Offset + fieldOffset(fprType, "StSpace")
	xmmSpaceOffset := i387Offset + fieldOffset(fprType, "XmmSpace")

	nextId := RegisterId(0)

	addRegister := func(
		name string,
		dwarfId int,
		size uintptr,
		offset uintptr,
		category Category,
		format Format,
	) {
		entry := Spec{
			RegisterId: nextId,
			Name:       name,
			DwarfId:    dwarfId,
			Size:       size,
			Offset:     offset,
			Category:   category,
			Format:     format,
		}
		nextId += 1

		OrderedSpecs = append(OrderedSpecs, entry)

		_, ok := nameSpecs[name]
		if ok {
			panic("duplicate register info: " + name)
		}
		nameSpecs[name] = entry
		idSpecs[entry.RegisterId] = entry

		if dwarfId != -1 {
			_, ok := dwarfSpecs[dwarfId]
			if ok {
				panic("duplicate register info: " + name)
			}
			dwarfSpecs[dwarfId] = entry
		}
	}

	gprFieldOffset := func(field string) uintptr {
		return regsOffset + fieldOffset(gprType, field)
	}

	addGpr64 := func(name string, dwarfId int, field string) {
		addRegister(name, dwarfId, 8, gprFieldOffset(field), Gpr, UnsignedInt)
	}

	addSubGpr32 := func(name string, field string) {
		addRegister(name, -1, 4, gprFieldOffset(field), SubGpr, UnsignedInt)
	}

	addSubGpr16 := func(name string, field string) {
		addRegister(name, -1, 2, gprFieldOffset(field), SubGpr, UnsignedInt)
	}

	addSubGpr8 := func(name string, field string, isHigh bool) {
		offset := gprFieldOffset(field)
		if isHigh {
			offset += 1
		}
		addRegister(name, -1, 1, offset, SubGpr, UnsignedInt)
	}

	addFpr := func(name string, dwarfId int, size uintptr, field string) {
		addRegister(
			name,
			dwarfId,
			size,
			i387Offset+fieldOffset(fprType, field),
			Fpr,
			UnsignedInt)
	}

	addFprSlot := func(
		prefix string,
		dwarfIdStart int,
		size uintptr,
		spaceOffset uintptr,
		format Format,
		idx int,
	) {
		addRegister(
			fmt.Sprintf("%s%d", prefix, idx),
			dwarfIdStart+idx,
			size,
			spaceOffset+uintptr(idx*16),
			Fpr,
			format)
	}

	addDr64 := func(idx int) {
		addRegister(
			fmt.Sprintf("dr%d", idx),
			-1,
			8,
			drOffset(idx),
			Dr,
			UnsignedInt)
	}

	dwarfIds := map[string]int{
		"rip":    16,
		"eflags": 49,
		"cs":     51,
		"fs":     54,
		"gs":     55,
		"ss":     52,
		"ds":     53,
		"es":     50,
	}

	names := strings.Split(
		"rax rdx rcx rbx rsi rdi rbp rsp "+
			"r8 r9 r10 r11 r12 r13 r14 r15 "+
			"rip eflags cs fs gs ss ds es",
		" ")
	for idx, name := range names {
		dwarfId, ok := dwarfIds[name]
		if !ok {
			dwarfId = idx
		}

		field := strings.ToUpper(name[0:1]) + name[1:]

		addGpr64(name, dwarfId, field)

		if ok { // not general compute registers
			continue
		} else if strings.ContainsAny(name, "189") { // newer x64 registers
			addSubGpr32(name+"d", field)
			addSubGpr16(name+"w", field)
			addSubGpr8(name+"b", field, false)
		} else { // legacy x86 extended registers
			addSubGpr32("e"+name[1:], field)
			addSubGpr16(name[1:], field)

			if name[2] == 'x' {
				prefix := name[1:2]
				addSubGpr8(prefix+"h", field, true)
				addSubGpr8(prefix+"l", field, false)
			} else {
				addSubGpr8(name[1:]+"l", field, false)
			}
		}
	}

	addGpr64("orig_rax", -1, "Orig_rax")

	addFpr("fcw", 65, 2, "Cwd")
	addFpr("fsw", 66, 2, "Swd")
	addFpr("ftw", -1, 2, "Ftw")
	addFpr("fop", -1, 2, "Fop")
	addFpr("frip", -1, 8, "Rip")
	addFpr("frdp", -1, 8, "Rdp")
	addFpr("mxcsr", 64, 4, "Mxcsr")
	addFpr("mxcsrmask", -1, 4, "MxcrMask")

	for i := 0; i < 8; i++ { // st0, ..., st7
		addFprSlot("st", 33, 16, stSpaceOffset, LongDouble, i)
	}
	for i := 0; i < 8; i++ { // mm0, ..., mm7
		addFprSlot("mm", 41, 8, stSpaceOffset, Vector, i)
	}
	for i := 0; i < 16; i++ { // xmm0, ..., xmm15
		addFprSlot("xmm", 17, 16, xmmSpaceOffset, Vector, i)
	}

	for i := 0; i < 8; i++ {
		addDr64(i)
	}

	ProgramCounter, _ = ByName("rip")
	StackPointer, _ = ByName("rsp")
	FramePointer, _ = ByName("rbp")

	FpuStatus, _ = ByName("fsw")
	FpuTag, _ = ByName("ftw")

	for i := 0; i < 8; i++ {
		reg, _ := ByName(fmt.Sprintf("dr%d", i))
		DebugRegs = append(DebugRegs, reg)
	}
}
