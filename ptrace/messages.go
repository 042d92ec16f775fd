package ptrace

import (
	"os/exec"
)

type opType string

const (
	launchOp     = opType("launch")
	attachOp     = opType("attach")
	detachOp     = opType("detach")
	resumeOp     = opType("resume")
	singleStepOp = opType("singleStep")
	getRegsOp    = opType("getRegs")
	setRegsOp    = opType("setRegs")
	getFPRegsOp  = opType("getFPRegs")
	setFPRegsOp  = opType("setFPRegs")
	peekUserOp   = opType("peekUser")
	pokeUserOp   = opType("pokeUser")
	pokeDataOp   = opType("pokeData")
	readMemoryOp = opType("readMemory")
)

type request struct {
	opType

	cmd *exec.Cmd // only used by launch

	pid int // used by all except launch

	signal int // resume

	regs *UserRegs // get/set regs

	fpRegs *UserFPRegs // get/set fp regs

	offset       uintptr // peek/poke user area
	registerData uintptr // poke user area

	addr uintptr // poke data / read memory
	data []byte  // poke data / read memory

	responseChan chan response
}

type response struct {
	registerData uintptr // peek user area

	count int // poke data / read memory

	err error
}
