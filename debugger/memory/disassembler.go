package memory

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"

	. "github.com/dmelani/godbg/debugger/common"
)

const (
	maxX64InstructionLength = 15
)

type DisassembledInstruction struct {
	Address VirtualAddress
	x86asm.Inst
}

func (inst DisassembledInstruction) String() string {
	return fmt.Sprintf(
		"0x%016x: %s",
		uint64(inst.Address),
		x86asm.GNUSyntax(inst.Inst, uint64(inst.Address), nil))
}

type TrapFreeReader interface {
	// Returns tracee bytes with enabled breakpoint sites' original data
	// bytes overlaid over the int3 patches.  Fails when the tracee is not
	// stopped.
	ReadMemoryWithoutTraps(addr VirtualAddress, length int) ([]byte, error)
}

// Decodes tracee memory into x86-64 instructions.  Enabled breakpoint
// bytes are replaced with the original instruction bytes before decoding.
type Disassembler struct {
	memory TrapFreeReader
}

func NewDisassembler(memory TrapFreeReader) *Disassembler {
	return &Disassembler{
		memory: memory,
	}
}

func (disassembler *Disassembler) Disassemble(
	startAddress VirtualAddress,
	numInstructions int,
) (
	[]DisassembledInstruction,
	error,
) {
	if numInstructions < 0 {
		return nil, fmt.Errorf(
			"Invalid number of instructions to disassemble: %d",
			numInstructions)
	} else if numInstructions == 0 {
		return nil, nil
	}

	data, err := disassembler.memory.ReadMemoryWithoutTraps(
		startAddress,
		numInstructions*maxX64InstructionLength)
	if err != nil {
		return nil, err
	}

	address := startAddress
	result := make([]DisassembledInstruction, 0, numInstructions)
	for len(data) > 0 && len(result) < numInstructions {
		inst, err := x86asm.Decode(data, 64)
		if err != nil {
			break
		}

		result = append(
			result,
			DisassembledInstruction{
				Address: address,
				Inst:    inst,
			})

		data = data[inst.Len:]
		address += VirtualAddress(inst.Len)
	}

	return result, nil
}
