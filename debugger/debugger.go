package debugger

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	. "github.com/dmelani/godbg/debugger/common"
	"github.com/dmelani/godbg/debugger/memory"
	"github.com/dmelani/godbg/debugger/registers"
	"github.com/dmelani/godbg/debugger/stoppoint"
	"github.com/dmelani/godbg/ptrace"
)

// Controller for a single tracee process.  The debugger owns the tracee's
// lifecycle state machine, its register mirror, and its breakpoint site
// collection.  All operations are synchronous; resume must be followed by
// exactly one WaitOnSignal before any other control operation.
type Debugger struct {
	Pid            int
	terminateOnEnd bool
	attached       bool

	tracer *ptrace.Tracer
	signal *Signaler

	Registers     *registers.Registers
	VirtualMemory *memory.VirtualMemory
	*memory.Disassembler

	BreakpointSites *stoppoint.SiteSet

	state ProcessState

	// Mirror of the tracee's user area, refreshed on every observed stop.
	registerState registers.State

	closed bool
}

func newDebugger(
	tracer *ptrace.Tracer,
	ownsProcess bool,
) (
	*Debugger,
	error,
) {
	mem := memory.New(tracer)

	db := &Debugger{
		Pid:            tracer.Pid,
		terminateOnEnd: ownsProcess,
		attached:       true,
		tracer:         tracer,
		signal:         NewSignaler(tracer.Pid),
		Registers:      registers.New(tracer),
		VirtualMemory:  mem,
		state:          StateRunning,
	}

	db.BreakpointSites = stoppoint.NewSiteSet(mem)

	// Disassembly reads through the debugger so the stopped state check
	// applies to it like any other memory read.
	db.Disassembler = memory.NewDisassembler(db)

	// Consume the initial exec / attach stop.
	_, err := db.WaitOnSignal()
	if err != nil {
		_ = db.signal.Close()
		_ = tracer.Close()
		return nil, err
	}

	db.signal.ForwardInterruptToProcess()

	return db, nil
}

func AttachTo(pid int) (*Debugger, error) {
	if pid <= 0 {
		return nil, fmt.Errorf("%w: cannot attach to process %d", ErrInvalidPid, pid)
	}

	tracer, err := ptrace.AttachToProcess(pid)
	if err != nil {
		return nil, err
	}

	return newDebugger(tracer, false)
}

func StartAndAttachTo(cmd *exec.Cmd) (*Debugger, error) {
	tracer, err := ptrace.StartAndAttachToProcess(cmd)
	if err != nil {
		return nil, err
	}

	return newDebugger(tracer, true)
}

func StartCmdAndAttachTo(name string, args ...string) (*Debugger, error) {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return StartAndAttachTo(cmd)
}

// Stops the tracee if needed, detaches, and resumes it.  When the
// debugger launched the tracee, the tracee is killed instead of left
// running.  Safe to call multiple times.
func (db *Debugger) Close() error {
	if db.closed {
		return nil
	}
	db.closed = true

	defer func() {
		_ = db.signal.Close()
		_ = db.tracer.Close()
	}()

	if db.state == StateRunning {
		err := db.signal.StopToProcess()
		if err != nil {
			return err
		}

		waitStatus, err := db.signal.FromProcess()
		if err != nil {
			return err
		}

		db.state = newStopReason(db.Pid, waitStatus).State
	}

	if db.state == StateExited || db.state == StateTerminated {
		return nil
	}

	err := db.tracer.Detach()
	if err != nil {
		return err
	}

	err = db.signal.ContinueToProcess()
	if err != nil {
		return err
	}

	if db.terminateOnEnd {
		err = db.signal.KillToProcess()
		if err != nil {
			return err
		}

		_, err = db.signal.FromProcess()
		if err != nil {
			return err
		}
	}

	return nil
}

func (db *Debugger) State() ProcessState {
	return db.state
}

func (db *Debugger) Exited() bool {
	return db.state == StateExited || db.state == StateTerminated
}

func (db *Debugger) checkStopped(action string) error {
	if db.state == StateStopped {
		return nil
	}

	if db.Exited() {
		return fmt.Errorf(
			"%w: %w: cannot %s process %d",
			ErrInvalidState,
			ErrProcessExited,
			action,
			db.Pid)
	}

	return fmt.Errorf(
		"%w: cannot %s while process %d is %s",
		ErrInvalidState,
		action,
		db.Pid,
		db.state)
}

func (db *Debugger) programCounter() VirtualAddress {
	return VirtualAddress(
		db.registerState.Value(registers.ProgramCounter).ToUint64())
}

// Resumes the tracee.  If an enabled breakpoint site sits at the current
// program counter, the tracee first single steps over it with the site's
// original byte restored.
func (db *Debugger) Resume() error {
	err := db.checkStopped("resume")
	if err != nil {
		return err
	}

	pc := db.programCounter()
	if db.BreakpointSites.EnabledAt(pc) {
		site, err := db.BreakpointSites.GetByAddress(pc)
		if err != nil {
			return err
		}

		err = site.Disable()
		if err != nil {
			return fmt.Errorf("failed to resume process %d: %w", db.Pid, err)
		}

		err = db.tracer.SingleStep()
		if err != nil {
			return fmt.Errorf("failed to resume process %d: %w", db.Pid, err)
		}

		// Raw wait.  The step over is internal bookkeeping; the observable
		// state remains stopped until the cont below.
		_, err = db.signal.FromProcess()
		if err != nil {
			return fmt.Errorf("failed to resume process %d: %w", db.Pid, err)
		}

		err = site.Enable()
		if err != nil {
			return fmt.Errorf("failed to resume process %d: %w", db.Pid, err)
		}
	}

	err = db.tracer.Resume(0)
	if err != nil {
		return fmt.Errorf("failed to resume process %d: %w", db.Pid, err)
	}

	db.state = StateRunning
	return nil
}

// Blocks until the tracee changes state.  On a stop with the tracee
// ptrace attached, the register mirror is refreshed and the program
// counter is rewound by one byte when the stop is an int3 trap for an
// enabled breakpoint site.
func (db *Debugger) WaitOnSignal() (StopReason, error) {
	waitStatus, err := db.signal.FromProcess()
	if err != nil {
		return StopReason{}, err
	}

	reason := newStopReason(db.Pid, waitStatus)
	db.state = reason.State

	if db.attached && db.state == StateStopped {
		state, pc, err := db.Registers.GetProgramCounter()
		if err != nil {
			return StopReason{}, err
		}

		// int3 traps after executing; rip points one past the 0xcc byte.
		if reason.StopSignal == syscall.SIGTRAP &&
			db.BreakpointSites.EnabledAt(pc-1) {

			pc -= 1
			state, err = db.Registers.WriteValue(
				state,
				registers.ProgramCounter,
				registers.U64(uint64(pc)))
			if err != nil {
				return StopReason{}, err
			}
		}

		db.registerState = state
		reason.NextInstructionAddress = pc
	}

	return reason, nil
}

func (db *Debugger) ResumeUntilSignal() (StopReason, error) {
	err := db.Resume()
	if err != nil {
		return StopReason{}, err
	}

	return db.WaitOnSignal()
}

// Executes exactly one instruction.  An enabled breakpoint site at the
// current program counter is disabled for the duration of the step.  No
// program counter rewind fires since the resulting trap lands at rip, not
// rip - 1.
func (db *Debugger) StepInstruction() (StopReason, error) {
	err := db.checkStopped("single step")
	if err != nil {
		return StopReason{}, err
	}

	var toReenable *stoppoint.SoftwareBreakpointSite
	pc := db.programCounter()
	if db.BreakpointSites.EnabledAt(pc) {
		site, err := db.BreakpointSites.GetByAddress(pc)
		if err != nil {
			return StopReason{}, err
		}

		err = site.Disable()
		if err != nil {
			return StopReason{}, err
		}
		toReenable = site
	}

	err = db.tracer.SingleStep()
	if err != nil {
		return StopReason{}, fmt.Errorf(
			"failed to single step process %d: %w",
			db.Pid,
			err)
	}

	reason, err := db.WaitOnSignal()
	if err != nil {
		return StopReason{}, err
	}

	if toReenable != nil {
		err = toReenable.Enable()
		if err != nil {
			return StopReason{}, err
		}
	}

	return reason, nil
}

// Returns the raw tracee bytes, int3 patches included.
func (db *Debugger) ReadMemory(
	address VirtualAddress,
	length int,
) (
	[]byte,
	error,
) {
	err := db.checkStopped("read memory from")
	if err != nil {
		return nil, err
	}

	out := make([]byte, length)
	count, err := db.VirtualMemory.Read(address, out)
	if err != nil {
		return nil, err
	}

	return out[:count], nil
}

// Returns tracee bytes with enabled breakpoint sites' original data bytes
// overlaid over the int3 patches.
func (db *Debugger) ReadMemoryWithoutTraps(
	address VirtualAddress,
	length int,
) (
	[]byte,
	error,
) {
	data, err := db.ReadMemory(address, length)
	if err != nil {
		return nil, err
	}

	db.BreakpointSites.ReplaceBreakpointBytes(address, data)
	return data, nil
}

func (db *Debugger) WriteMemory(
	address VirtualAddress,
	data []byte,
) (
	int,
	error,
) {
	err := db.checkStopped("write memory to")
	if err != nil {
		return 0, err
	}

	return db.VirtualMemory.Write(address, data)
}

// Returns the register mirror captured at the last observed stop.
func (db *Debugger) GetRegisterState() (registers.State, error) {
	err := db.checkStopped("read registers from")
	if err != nil {
		return registers.State{}, err
	}

	return db.registerState, nil
}

func (db *Debugger) SetRegisterState(state registers.State) error {
	err := db.checkStopped("write registers to")
	if err != nil {
		return err
	}

	err = db.Registers.SetState(state)
	if err != nil {
		return err
	}

	db.registerState = state
	return nil
}

// Writes a single register through to the tracee and updates the mirror.
func (db *Debugger) WriteRegister(
	reg registers.Spec,
	value registers.Value,
) error {
	err := db.checkStopped("write register to")
	if err != nil {
		return err
	}

	newState, err := db.Registers.WriteValue(db.registerState, reg, value)
	if err != nil {
		return err
	}

	db.registerState = newState
	return nil
}

func (db *Debugger) ReadRegister(reg registers.Spec) (registers.Value, error) {
	err := db.checkStopped("read register from")
	if err != nil {
		return nil, err
	}

	return db.registerState.Value(reg), nil
}

func (db *Debugger) GetProgramCounter() (VirtualAddress, error) {
	err := db.checkStopped("read program counter from")
	if err != nil {
		return 0, err
	}

	return db.programCounter(), nil
}

func (db *Debugger) SetProgramCounter(address VirtualAddress) error {
	return db.WriteRegister(
		registers.ProgramCounter,
		registers.U64(uint64(address)))
}

// Registers a new disabled breakpoint site at the address.  The caller
// enables the site explicitly.
func (db *Debugger) CreateBreakpointSite(
	address VirtualAddress,
) (
	*stoppoint.SoftwareBreakpointSite,
	error,
) {
	return db.BreakpointSites.Add(address)
}
