package registers

import (
	"encoding/binary"
	"fmt"

	. "github.com/dmelani/godbg/debugger/common"
	"github.com/dmelani/godbg/ptrace"
)

// Typed register bank for one tracee.  The bank owns no process state; it
// translates between State mirrors and the tracer's kernel primitives.
type Registers struct {
	tracer *ptrace.Tracer
}

func New(tracer *ptrace.Tracer) *Registers {
	return &Registers{
		tracer: tracer,
	}
}

// Bulk refresh of the full user area mirror.
func (registers *Registers) GetState() (State, error) {
	gpr, err := registers.tracer.GetGeneralRegisters()
	if err != nil {
		return State{}, err
	}

	fpr, err := registers.tracer.GetFloatingPointRegisters()
	if err != nil {
		return State{}, err
	}

	state := State{}
	state.User.Regs = *gpr
	state.User.I387 = *fpr

	for idx := range state.User.UDebugReg {
		value, err := registers.tracer.PeekUserArea(drOffset(idx))
		if err != nil {
			return State{}, err
		}
		state.User.UDebugReg[idx] = uint64(value)
	}

	return state, nil
}

func (registers *Registers) SetState(state State) error {
	err := registers.tracer.SetGeneralRegisters(&state.User.Regs)
	if err != nil {
		return err
	}

	err = registers.tracer.SetFloatingPointRegisters(&state.User.I387)
	if err != nil {
		return err
	}

	for idx, value := range state.User.UDebugReg {
		// dr4 and dr5 are not real registers
		// https://en.wikipedia.org/wiki/X86_debug_register
		if idx == 4 || idx == 5 {
			continue
		}

		err := registers.tracer.PokeUserArea(drOffset(idx), uintptr(value))
		if err != nil {
			return fmt.Errorf("failed to set dr%d: %w", idx, err)
		}
	}

	return nil
}

// Writes a single register through to the tracee and returns the updated
// mirror.  Floating point registers are pushed as a whole fpu block; all
// others are poked into the user area one aligned word at a time.
func (registers *Registers) WriteValue(
	state State,
	reg Spec,
	value Value,
) (
	State,
	error,
) {
	newState, err := state.WithValue(reg, value)
	if err != nil {
		return State{}, err
	}

	if reg.Category == Fpr {
		err = registers.tracer.SetFloatingPointRegisters(&newState.User.I387)
		if err != nil {
			return State{}, fmt.Errorf("failed to write %s: %w", reg.Name, err)
		}
		return newState, nil
	}

	// PTRACE_POKEUSER requires an 8 byte aligned offset.  Poking the whole
	// containing word preserves neighbouring bytes that were already
	// refreshed from the tracee.
	aligned := reg.Offset &^ 7
	word := binary.LittleEndian.Uint64(newState.bytes()[aligned : aligned+8])

	err = registers.tracer.PokeUserArea(aligned, uintptr(word))
	if err != nil {
		return State{}, fmt.Errorf("failed to write %s: %w", reg.Name, err)
	}

	return newState, nil
}

func (registers *Registers) GetProgramCounter() (State, VirtualAddress, error) {
	state, err := registers.GetState()
	if err != nil {
		return State{}, 0, fmt.Errorf("failed to read program counter: %w", err)
	}

	return state, VirtualAddress(state.Value(ProgramCounter).ToUint64()), nil
}

func (registers *Registers) SetProgramCounter(address VirtualAddress) error {
	state, err := registers.GetState()
	if err != nil {
		return fmt.Errorf("failed to read program counter: %w", err)
	}

	newState, err := state.WithValue(ProgramCounter, U64(uint64(address)))
	if err != nil {
		return fmt.Errorf(
			"failed to update program counter state to %s: %w",
			address,
			err)
	}

	err = registers.SetState(newState)
	if err != nil {
		return fmt.Errorf("failed to set program counter to %s: %w", address, err)
	}

	return nil
}
