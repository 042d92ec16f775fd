package memory

import (
	"testing"

	"github.com/pattyshack/gt/testing/expect"
	"github.com/pattyshack/gt/testing/suite"

	. "github.com/dmelani/godbg/debugger/common"
)

// Sparse byte-addressable memory.  Unwritten addresses read as zero.
type fakeTrapFreeMemory struct {
	bytes map[VirtualAddress]byte
	err   error
}

func (memory *fakeTrapFreeMemory) ReadMemoryWithoutTraps(
	addr VirtualAddress,
	length int,
) (
	[]byte,
	error,
) {
	if memory.err != nil {
		return nil, memory.err
	}

	out := make([]byte, length)
	for idx := range out {
		out[idx] = memory.bytes[addr.Add(int64(idx))]
	}
	return out, nil
}

type DisassemblerSuite struct{}

func TestDisassembler(t *testing.T) {
	suite.RunTests(t, &DisassemblerSuite{})
}

func (DisassemblerSuite) TestDisassemble(t *testing.T) {
	memory := &fakeTrapFreeMemory{
		bytes: map[VirtualAddress]byte{
			0x1000: 0x90, // nop
			0x1001: 0x48, // mov %rsp,%rbp
			0x1002: 0x89,
			0x1003: 0xe5,
			0x1004: 0xc3, // ret
		},
	}

	disassembler := NewDisassembler(memory)

	instructions, err := disassembler.Disassemble(0x1000, 3)
	expect.Nil(t, err)
	expect.Equal(t, 3, len(instructions))

	expect.Equal(t, VirtualAddress(0x1000), instructions[0].Address)
	expect.Equal(t, "0x0000000000001000: nop", instructions[0].String())

	expect.Equal(t, VirtualAddress(0x1001), instructions[1].Address)
	expect.Equal(t, 3, instructions[1].Len)

	expect.Equal(t, VirtualAddress(0x1004), instructions[2].Address)
	expect.Equal(t, "0x0000000000001004: retq", instructions[2].String())
}

func (DisassemblerSuite) TestDisassembleInstructionCount(t *testing.T) {
	disassembler := NewDisassembler(
		&fakeTrapFreeMemory{
			bytes: map[VirtualAddress]byte{},
		})

	instructions, err := disassembler.Disassemble(0x1000, 0)
	expect.Nil(t, err)
	expect.Equal(t, 0, len(instructions))

	_, err = disassembler.Disassemble(0x1000, -1)
	expect.Error(t, err, "Invalid number of instructions")
}

func (DisassemblerSuite) TestDisassembleReadFailure(t *testing.T) {
	disassembler := NewDisassembler(
		&fakeTrapFreeMemory{
			err: ErrProcessExited,
		})

	_, err := disassembler.Disassemble(0x1000, 3)
	expect.Error(t, err, "process exited")
}
