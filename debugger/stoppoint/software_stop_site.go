package stoppoint

import (
	"fmt"

	. "github.com/dmelani/godbg/debugger/common"
)

const (
	int3Instruction = byte(0xcc)
)

// Narrow capability for patching tracee bytes.  Implemented by
// memory.VirtualMemory; sites never talk to ptrace directly.
type SiteMemory interface {
	Read(addr VirtualAddress, out []byte) (int, error)
	Write(addr VirtualAddress, data []byte) (int, error)
}

// A software breakpoint location.  While enabled, the byte at the site's
// address holds an int3 instruction and originalData holds the replaced
// byte.  Sites are owned by a SiteSet and addressed by stable pointers.
type SoftwareBreakpointSite struct {
	memory SiteMemory

	id           int32
	address      VirtualAddress
	isEnabled    bool
	originalData byte
}

func (site *SoftwareBreakpointSite) Id() int32 {
	return site.id
}

func (site *SoftwareBreakpointSite) Address() VirtualAddress {
	return site.address
}

func (site *SoftwareBreakpointSite) IsEnabled() bool {
	return site.isEnabled
}

func (site *SoftwareBreakpointSite) Enable() error {
	if site.isEnabled {
		return nil
	}

	originalData, err := site.swapData(int3Instruction)
	if err != nil {
		return fmt.Errorf("failed to enable breakpoint site: %w", err)
	}

	site.isEnabled = true
	site.originalData = originalData
	return nil
}

func (site *SoftwareBreakpointSite) Disable() error {
	if !site.isEnabled {
		return nil
	}

	_, err := site.swapData(site.originalData)
	if err != nil {
		return fmt.Errorf("failed to disable breakpoint site: %w", err)
	}

	site.isEnabled = false
	return nil
}

func (site *SoftwareBreakpointSite) swapData(newData byte) (byte, error) {
	buffer := make([]byte, 1)

	count, err := site.memory.Read(site.address, buffer)
	if err != nil {
		return 0, err
	} else if count != 1 {
		return 0, fmt.Errorf(
			"failed to read from memory at %s. "+
				"incorrect number of bytes read (%d != 1)",
			site.address,
			count)
	}

	originalData := buffer[0]
	buffer[0] = newData

	count, err = site.memory.Write(site.address, buffer)
	if err != nil {
		return 0, err
	} else if count != 1 {
		return 0, fmt.Errorf(
			"failed to write to memory at %s. "+
				"incorrect number of bytes written (%d != 1)",
			site.address,
			count)
	}

	return originalData, nil
}

// If the enabled site falls in the range
//
//	[startAddr, startAddr + len(memorySlice))
//
// replace the int3 byte in the memorySlice with the original data byte.
func (site *SoftwareBreakpointSite) ReplaceBreakpointBytes(
	startAddr VirtualAddress,
	memorySlice []byte,
) {
	if !site.isEnabled {
		return
	}

	endAddr := startAddr + VirtualAddress(len(memorySlice))
	if startAddr <= site.address && site.address < endAddr {
		memorySlice[int(site.address-startAddr)] = site.originalData
	}
}
