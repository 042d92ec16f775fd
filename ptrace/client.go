package ptrace

import (
	"fmt"
	"os/exec"
	"syscall"
)

// NOTE: ptrace is implemented as a single os-threaded server serving Tracer
// clients in arbitrary goroutines since all ptrace calls to a process,
// including PTRACE_TRACEME in os.StartProcess / exec.Cmd.Start, must
// originate from the same os thread.
//
// https://github.com/golang/go/issues/7699
// https://github.com/golang/go/issues/43685
type Tracer struct {
	Pid int

	server *traceServer
}

// Starts the command with PTRACE_TRACEME set and address space
// randomization disabled.  On return the child is stopped at its exec
// trap, waiting to be reaped by the caller.
func StartAndAttachToProcess(cmd *exec.Cmd) (*Tracer, error) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}

	// Child process invokes PTRACE_TRACEME on start.
	cmd.SysProcAttr.Ptrace = true

	// Set pgid to a different group to ensure signals sent to the tracer
	// process won't be forwarded to the child command process.
	cmd.SysProcAttr.Setpgid = true

	server := newTraceServer()

	tracer := &Tracer{
		server: server,
	}

	_, err := tracer.send(request{
		opType: launchOp,
		cmd:    cmd,
	})
	if err != nil {
		close(server.requestChan) // shutdown server
		return nil, err
	}

	tracer.Pid = cmd.Process.Pid
	return tracer, nil
}

func AttachToProcess(pid int) (*Tracer, error) {
	server := newTraceServer()

	tracer := &Tracer{
		Pid:    pid,
		server: server,
	}

	_, err := tracer.send(request{
		opType: attachOp,
		pid:    pid,
	})
	if err != nil {
		close(server.requestChan) // shutdown server
		return nil, err
	}

	return tracer, nil
}

func (tracer *Tracer) Close() error {
	select {
	case <-tracer.server.ctx.Done():
		return nil
	default:
		return tracer.Detach()
	}
}

func (tracer *Tracer) send(req request) (response, error) {
	respChan := make(chan response, 1)
	req.pid = tracer.Pid
	req.responseChan = respChan

	select {
	case <-tracer.server.ctx.Done():
		return response{}, fmt.Errorf(
			"invalid operation. tracer has detached from process %d",
			tracer.Pid)
	case tracer.server.requestChan <- req:
		resp := <-respChan
		return resp, resp.err
	}
}

func (tracer *Tracer) Detach() error {
	_, err := tracer.send(request{
		opType: detachOp,
	})
	return err
}

func (tracer *Tracer) Resume(signal int) error {
	_, err := tracer.send(request{
		opType: resumeOp,
		signal: signal,
	})
	return err
}

func (tracer *Tracer) SingleStep() error {
	_, err := tracer.send(request{
		opType: singleStepOp,
	})
	return err
}

func (tracer *Tracer) GetGeneralRegisters() (*UserRegs, error) {
	out := &UserRegs{}
	_, err := tracer.send(request{
		opType: getRegsOp,
		regs:   out,
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (tracer *Tracer) SetGeneralRegisters(in *UserRegs) error {
	_, err := tracer.send(request{
		opType: setRegsOp,
		regs:   in,
	})
	return err
}

func (tracer *Tracer) GetFloatingPointRegisters() (*UserFPRegs, error) {
	out := &UserFPRegs{}
	_, err := tracer.send(request{
		opType: getFPRegsOp,
		fpRegs: out,
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (tracer *Tracer) SetFloatingPointRegisters(in *UserFPRegs) error {
	_, err := tracer.send(request{
		opType: setFPRegsOp,
		fpRegs: in,
	})
	return err
}

func (tracer *Tracer) PeekUserArea(offset uintptr) (uintptr, error) {
	resp, err := tracer.send(request{
		opType: peekUserOp,
		offset: offset,
	})

	return resp.registerData, err
}

func (tracer *Tracer) PokeUserArea(offset uintptr, data uintptr) error {
	_, err := tracer.send(request{
		opType:       pokeUserOp,
		offset:       offset,
		registerData: data,
	})

	return err
}

// This is equivalent to PTRACE_PEEKDATA, but uses process_vm_readv for
// reading efficiency.  The read permission is still governed by ptrace.
func (tracer *Tracer) ReadFromVirtualMemory(
	addr uintptr,
	data []byte,
) (
	int,
	error,
) {
	resp, err := tracer.send(request{
		opType: readMemoryOp,
		addr:   addr,
		data:   data,
	})

	return resp.count, err
}

func (tracer *Tracer) PokeData(addr uintptr, data []byte) (int, error) {
	resp, err := tracer.send(request{
		opType: pokeDataOp,
		addr:   addr,
		data:   data,
	})

	return resp.count, err
}
