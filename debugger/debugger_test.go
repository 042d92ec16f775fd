package debugger

import (
	"encoding/binary"
	"io"
	"math"
	"os"
	"os/exec"
	"syscall"
	"testing"

	"github.com/pattyshack/gt/testing/expect"
	"github.com/pattyshack/gt/testing/suite"

	. "github.com/dmelani/godbg/debugger/common"
	"github.com/dmelani/godbg/debugger/registers"
	"github.com/dmelani/godbg/procfs"
)

type DebuggerSuite struct{}

func TestDebugger(t *testing.T) {
	suite.RunTests(t, &DebuggerSuite{})
}

func processExists(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err != syscall.ESRCH
}

func isSchedulable(state procfs.ProcessState) bool {
	return state == procfs.Running ||
		state == procfs.Sleeping ||
		state == procfs.TracingStop
}

func regByName(t *testing.T, name string) registers.Spec {
	reg, err := registers.ByName(name)
	expect.Nil(t, err)
	return reg
}

func readOutput(t *testing.T, reader *os.File) string {
	buffer := make([]byte, 1024)
	count, err := reader.Read(buffer)
	expect.Nil(t, err)
	return string(buffer[:count])
}

func (DebuggerSuite) TestLaunchProcess(t *testing.T) {
	db, err := StartCmdAndAttachTo("test_targets/run_endlessly")
	expect.Nil(t, err)
	defer func() {
		expect.Nil(t, db.Close())
	}()

	expect.True(t, processExists(db.Pid))
}

func (DebuggerSuite) TestLaunchNoSuchProgram(t *testing.T) {
	_, err := StartCmdAndAttachTo("test_targets/does_not_exist")
	expect.Error(t, err, "Exec failed")
}

func (DebuggerSuite) TestAttachSuccess(t *testing.T) {
	target := exec.Command("test_targets/run_endlessly")
	err := target.Start()
	expect.Nil(t, err)
	defer func() {
		_ = target.Process.Kill()
		_, _ = target.Process.Wait()
	}()

	db, err := AttachTo(target.Process.Pid)
	expect.Nil(t, err)
	defer func() {
		expect.Nil(t, db.Close())
	}()

	status, err := procfs.GetProcessStatus(db.Pid)
	expect.Nil(t, err)
	expect.Equal(t, procfs.TracingStop, status.State)
}

func (DebuggerSuite) TestAttachInvalidPid(t *testing.T) {
	_, err := AttachTo(0)
	expect.Error(t, err, "invalid pid")
}

func (DebuggerSuite) TestResumeFromStart(t *testing.T) {
	db, err := StartCmdAndAttachTo("test_targets/run_endlessly")
	expect.Nil(t, err)
	defer func() {
		expect.Nil(t, db.Close())
	}()

	err = db.Resume()
	expect.Nil(t, err)

	status, err := procfs.GetProcessStatus(db.Pid)
	expect.Nil(t, err)
	expect.True(t, isSchedulable(status.State))
}

func (DebuggerSuite) TestResumeFromAttach(t *testing.T) {
	target := exec.Command("test_targets/run_endlessly")
	err := target.Start()
	expect.Nil(t, err)
	defer func() {
		_ = target.Process.Kill()
		_, _ = target.Process.Wait()
	}()

	db, err := AttachTo(target.Process.Pid)
	expect.Nil(t, err)
	defer func() {
		expect.Nil(t, db.Close())
	}()

	err = db.Resume()
	expect.Nil(t, err)

	status, err := procfs.GetProcessStatus(db.Pid)
	expect.Nil(t, err)
	expect.True(t, isSchedulable(status.State))
}

func (DebuggerSuite) TestResumeAlreadyExited(t *testing.T) {
	db, err := StartCmdAndAttachTo("test_targets/end_immediately")
	expect.Nil(t, err)
	defer func() {
		expect.Nil(t, db.Close())
	}()

	reason, err := db.ResumeUntilSignal()
	expect.Nil(t, err)
	expect.Equal(t, StateExited, reason.State)
	expect.Equal(t, 0, reason.ExitStatus)

	err = db.Resume()
	expect.Error(t, err, "exited")
}

func (DebuggerSuite) TestDisassembleAlreadyExited(t *testing.T) {
	db, err := StartCmdAndAttachTo("test_targets/end_immediately")
	expect.Nil(t, err)
	defer func() {
		expect.Nil(t, db.Close())
	}()

	reason, err := db.ResumeUntilSignal()
	expect.Nil(t, err)
	expect.Equal(t, StateExited, reason.State)

	_, err = db.Disassemble(0x1000, 3)
	expect.Error(t, err, "process exited")
}

func (DebuggerSuite) TestWriteRegisters(t *testing.T) {
	reader, writer, err := os.Pipe()
	expect.Nil(t, err)
	defer reader.Close()

	cmd := exec.Command("test_targets/reg_write")
	cmd.Stdout = writer

	db, err := StartAndAttachTo(cmd)
	expect.Nil(t, err)
	defer func() {
		expect.Nil(t, db.Close())
	}()
	writer.Close()

	reason, err := db.ResumeUntilSignal()
	expect.Nil(t, err)
	expect.Equal(t, StateStopped, reason.State)

	err = db.WriteRegister(regByName(t, "rsi"), registers.U64(0xcafecafe))
	expect.Nil(t, err)

	reason, err = db.ResumeUntilSignal()
	expect.Nil(t, err)
	expect.Equal(t, StateStopped, reason.State)
	expect.Equal(t, "0xcafecafe", readOutput(t, reader))

	err = db.WriteRegister(regByName(t, "mm0"), registers.B8FromWord(0xba5eba11))
	expect.Nil(t, err)

	reason, err = db.ResumeUntilSignal()
	expect.Nil(t, err)
	expect.Equal(t, StateStopped, reason.State)
	expect.Equal(t, "0xba5eba11", readOutput(t, reader))

	err = db.WriteRegister(regByName(t, "xmm0"), registers.F64(42.24))
	expect.Nil(t, err)

	reason, err = db.ResumeUntilSignal()
	expect.Nil(t, err)
	expect.Equal(t, StateStopped, reason.State)
	expect.Equal(t, "42.24", readOutput(t, reader))

	err = db.WriteRegister(regByName(t, "st0"), registers.F80(42.24))
	expect.Nil(t, err)
	err = db.WriteRegister(registers.FpuStatus, registers.U16(0b0011100000000000))
	expect.Nil(t, err)
	err = db.WriteRegister(registers.FpuTag, registers.U16(0b0011111111111111))
	expect.Nil(t, err)

	reason, err = db.ResumeUntilSignal()
	expect.Nil(t, err)
	expect.Equal(t, StateStopped, reason.State)
	expect.Equal(t, "42.24", readOutput(t, reader))
}

func (DebuggerSuite) TestReadRegisters(t *testing.T) {
	db, err := StartCmdAndAttachTo("test_targets/reg_read")
	expect.Nil(t, err)
	defer func() {
		expect.Nil(t, db.Close())
	}()

	reason, err := db.ResumeUntilSignal()
	expect.Nil(t, err)
	expect.Equal(t, StateStopped, reason.State)

	value, err := db.ReadRegister(regByName(t, "r13"))
	expect.Nil(t, err)
	r13, err := registers.As[registers.Uint64](value)
	expect.Nil(t, err)
	expect.Equal(t, 0xcafecafe, r13.ToUint64())

	reason, err = db.ResumeUntilSignal()
	expect.Nil(t, err)
	expect.Equal(t, StateStopped, reason.State)

	value, err = db.ReadRegister(regByName(t, "r13b"))
	expect.Nil(t, err)
	r13b, err := registers.As[registers.Uint8](value)
	expect.Nil(t, err)
	expect.Equal(t, 42, r13b.ToUint64())

	reason, err = db.ResumeUntilSignal()
	expect.Nil(t, err)
	expect.Equal(t, StateStopped, reason.State)

	value, err = db.ReadRegister(regByName(t, "mm0"))
	expect.Nil(t, err)
	mm0, err := registers.As[registers.Bytes8](value)
	expect.Nil(t, err)
	expect.Equal(t, 0xba5eba11, mm0.ToUint64())

	reason, err = db.ResumeUntilSignal()
	expect.Nil(t, err)
	expect.Equal(t, StateStopped, reason.State)

	value, err = db.ReadRegister(regByName(t, "xmm0"))
	expect.Nil(t, err)
	xmm0, err := registers.As[registers.Bytes16](value)
	expect.Nil(t, err)
	high, low := xmm0.Words()
	expect.Equal(t, 0, high)
	expect.Equal(t, math.Float64bits(64.125), low)

	reason, err = db.ResumeUntilSignal()
	expect.Nil(t, err)
	expect.Equal(t, StateStopped, reason.State)

	value, err = db.ReadRegister(regByName(t, "st0"))
	expect.Nil(t, err)
	st0, err := registers.As[registers.Float80](value)
	expect.Nil(t, err)
	expect.Equal(t, 64.125, st0.Float64())
}

func (DebuggerSuite) TestCreateBreakpointSite(t *testing.T) {
	db, err := StartCmdAndAttachTo("test_targets/run_endlessly")
	expect.Nil(t, err)
	defer func() {
		expect.Nil(t, db.Close())
	}()

	site, err := db.CreateBreakpointSite(42)
	expect.Nil(t, err)
	expect.Equal(t, 42, int(site.Address()))

	previousId := site.Id()
	for _, address := range []VirtualAddress{43, 44, 45} {
		site, err := db.CreateBreakpointSite(address)
		expect.Nil(t, err)
		expect.Equal(t, address, site.Address())
		expect.True(t, site.Id() > previousId)
		previousId = site.Id()
	}

	_, err = db.CreateBreakpointSite(42)
	expect.Error(t, err, "already exists")
}

func (DebuggerSuite) TestBreakpointStopsProcess(t *testing.T) {
	db, err := StartCmdAndAttachTo("test_targets/run_endlessly")
	expect.Nil(t, err)
	defer func() {
		expect.Nil(t, db.Close())
	}()

	pc, err := db.GetProgramCounter()
	expect.Nil(t, err)

	instructions, err := db.Disassemble(pc, 3)
	expect.Nil(t, err)
	expect.Equal(t, 3, len(instructions))

	target := instructions[2].Address
	original, err := db.ReadMemory(target, 1)
	expect.Nil(t, err)

	site, err := db.CreateBreakpointSite(target)
	expect.Nil(t, err)
	err = site.Enable()
	expect.Nil(t, err)

	patched, err := db.ReadMemory(target, 1)
	expect.Nil(t, err)
	expect.Equal(t, byte(0xcc), patched[0])

	unpatched, err := db.ReadMemoryWithoutTraps(target, 1)
	expect.Nil(t, err)
	expect.Equal(t, original[0], unpatched[0])

	reason, err := db.ResumeUntilSignal()
	expect.Nil(t, err)
	expect.Equal(t, StateStopped, reason.State)
	expect.Equal(t, syscall.SIGTRAP, reason.StopSignal)
	expect.Equal(t, target, reason.NextInstructionAddress)

	pc, err = db.GetProgramCounter()
	expect.Nil(t, err)
	expect.Equal(t, target, pc)

	err = db.Resume()
	expect.Nil(t, err)

	status, err := procfs.GetProcessStatus(db.Pid)
	expect.Nil(t, err)
	expect.True(t, isSchedulable(status.State))
}

func (DebuggerSuite) TestStepInstruction(t *testing.T) {
	db, err := StartCmdAndAttachTo("test_targets/run_endlessly")
	expect.Nil(t, err)
	defer func() {
		expect.Nil(t, db.Close())
	}()

	before, err := db.GetProgramCounter()
	expect.Nil(t, err)

	reason, err := db.StepInstruction()
	expect.Nil(t, err)
	expect.Equal(t, StateStopped, reason.State)
	expect.Equal(t, syscall.SIGTRAP, reason.StopSignal)

	after, err := db.GetProgramCounter()
	expect.Nil(t, err)
	expect.True(t, after != before)
}

func (DebuggerSuite) TestStepOverBreakpoint(t *testing.T) {
	db, err := StartCmdAndAttachTo("test_targets/run_endlessly")
	expect.Nil(t, err)
	defer func() {
		expect.Nil(t, db.Close())
	}()

	pc, err := db.GetProgramCounter()
	expect.Nil(t, err)

	site, err := db.CreateBreakpointSite(pc)
	expect.Nil(t, err)
	err = site.Enable()
	expect.Nil(t, err)

	reason, err := db.StepInstruction()
	expect.Nil(t, err)
	expect.Equal(t, StateStopped, reason.State)

	after, err := db.GetProgramCounter()
	expect.Nil(t, err)
	expect.True(t, after != pc)
	expect.True(t, site.IsEnabled())
}

func (DebuggerSuite) TestReadWriteMemory(t *testing.T) {
	reader, writer, err := os.Pipe()
	expect.Nil(t, err)
	defer reader.Close()

	cmd := exec.Command("test_targets/memory")
	cmd.Stdout = writer

	db, err := StartAndAttachTo(cmd)
	expect.Nil(t, err)
	defer func() {
		expect.Nil(t, db.Close())
	}()
	writer.Close()

	reason, err := db.ResumeUntilSignal()
	expect.Nil(t, err)
	expect.Equal(t, StateStopped, reason.State)

	buffer := make([]byte, 8)
	_, err = io.ReadFull(reader, buffer)
	expect.Nil(t, err)
	dataAddress := VirtualAddress(binary.LittleEndian.Uint64(buffer))

	data, err := db.ReadMemory(dataAddress, 8)
	expect.Nil(t, err)
	expect.Equal(t, 0xcafecafe, binary.LittleEndian.Uint64(data))

	reason, err = db.ResumeUntilSignal()
	expect.Nil(t, err)
	expect.Equal(t, StateStopped, reason.State)

	_, err = io.ReadFull(reader, buffer)
	expect.Nil(t, err)
	strAddress := VirtualAddress(binary.LittleEndian.Uint64(buffer))

	_, err = db.WriteMemory(strAddress, []byte("hello godbg\x00"))
	expect.Nil(t, err)

	reason, err = db.ResumeUntilSignal()
	expect.Nil(t, err)
	expect.Equal(t, StateExited, reason.State)

	output, err := io.ReadAll(reader)
	expect.Nil(t, err)
	expect.Equal(t, "hello godbg", string(output))
}
