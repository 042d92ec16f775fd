package debugger

import (
	"fmt"
	"syscall"

	. "github.com/dmelani/godbg/debugger/common"
)

type ProcessState int

const (
	StateStopped = ProcessState(iota)
	StateRunning
	StateExited
	StateTerminated
)

func (state ProcessState) String() string {
	switch state {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("ProcessState(%d)", int(state))
	}
}

// Decoded wait status for one stop of the tracee.
type StopReason struct {
	Pid int

	State ProcessState

	// Only populated when process is stopped.
	StopSignal syscall.Signal

	// Only populated when process is terminated by a signal.
	Signal syscall.Signal

	// Only populated when process has exited.
	ExitStatus int

	// Only populated when process is stopped and ptrace attached.
	NextInstructionAddress VirtualAddress
}

func newStopReason(pid int, waitStatus syscall.WaitStatus) StopReason {
	reason := StopReason{
		Pid: pid,
	}

	switch {
	case waitStatus.Exited():
		reason.State = StateExited
		reason.ExitStatus = waitStatus.ExitStatus()
	case waitStatus.Signaled():
		reason.State = StateTerminated
		reason.Signal = waitStatus.Signal()
	case waitStatus.Stopped():
		reason.State = StateStopped
		reason.StopSignal = waitStatus.StopSignal()
	default:
		reason.State = StateRunning
	}

	return reason
}

func (reason StopReason) String() string {
	switch reason.State {
	case StateStopped:
		return fmt.Sprintf(
			"process %d stopped\n  at: %s\n  with signal: %v",
			reason.Pid,
			reason.NextInstructionAddress,
			reason.StopSignal)
	case StateTerminated:
		return fmt.Sprintf(
			"process %d terminated with signal: %v",
			reason.Pid,
			reason.Signal)
	case StateExited:
		return fmt.Sprintf(
			"process %d exited with status: %d",
			reason.Pid,
			reason.ExitStatus)
	default:
		return fmt.Sprintf("process %d running", reason.Pid)
	}
}
