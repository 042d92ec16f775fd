package procfs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type ProcessState string

const (
	Running        = ProcessState("running")
	Sleeping       = ProcessState("sleeping")
	WaitingForDisk = ProcessState("waiting for disk")
	Zombie         = ProcessState("zombie")
	TracingStop    = ProcessState("tracing stop")
	Dead           = ProcessState("dead")
	Idle           = ProcessState("idle")
)

type ProcessStatus struct {
	Pid   int
	Comm  string
	State ProcessState
	Ppid  int
	Pgrp  int

	// NOTE: See man page for the full list of (52) fields.
}

func GetProcessStatus(pid int) (ProcessStatus, error) {
	contentBytes, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return ProcessStatus{}, fmt.Errorf(
			"failed to read process %d status: %w",
			pid,
			err)
	}

	content := string(contentBytes)

	// comm may contain spaces and parentheses; everything between the first
	// "(" and the last ")" belongs to it.
	commStart := strings.Index(content, "(")
	commEnd := strings.LastIndex(content, ")")

	chunks := strings.Split(content[commEnd+2:], " ")

	pid, err = strconv.Atoi(strings.TrimSpace(content[:commStart]))
	if err != nil {
		panic("should never happen: " + err.Error())
	}

	var state ProcessState
	switch chunks[0] {
	case "R":
		state = Running
	case "S":
		state = Sleeping
	case "D":
		state = WaitingForDisk
	case "Z":
		state = Zombie
	case "t":
		state = TracingStop
	case "X":
		state = Dead
	case "I":
		state = Idle
	}

	ppid, err := strconv.Atoi(chunks[1])
	if err != nil {
		panic("should never happen: " + err.Error())
	}

	pgrp, err := strconv.Atoi(chunks[2])
	if err != nil {
		panic("should never happen: " + err.Error())
	}

	return ProcessStatus{
		Pid:   pid,
		Comm:  content[commStart+1 : commEnd],
		State: state,
		Ppid:  ppid,
		Pgrp:  pgrp,
	}, nil
}

type MappedMemoryRegion struct {
	LowAddress  uint64
	HighAddress uint64

	Read    bool
	Write   bool
	Execute bool
	Private bool // (copy on write)

	Offset uint64

	Pathname string
}

func (region MappedMemoryRegion) String() string {
	perms := []byte("----")
	if region.Read {
		perms[0] = 'r'
	}
	if region.Write {
		perms[1] = 'w'
	}
	if region.Execute {
		perms[2] = 'x'
	}
	if region.Private {
		perms[3] = 'p'
	}

	return fmt.Sprintf(
		"0x%016x-0x%016x %s %s",
		region.LowAddress,
		region.HighAddress,
		perms,
		region.Pathname)
}

func GetMappedMemoryRegions(pid int) ([]MappedMemoryRegion, error) {
	path := fmt.Sprintf("/proc/%d/maps", pid)
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	result := []MappedMemoryRegion{}
	for _, line := range strings.Split(string(content), "\n") {
		if line == "" {
			break
		}

		entry := MappedMemoryRegion{}
		chunks := strings.SplitN(line, " ", 6)

		addresses := strings.SplitN(chunks[0], "-", 2)

		lowAddr, err := strconv.ParseUint(addresses[0], 16, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse low address: %w", err)
		}
		entry.LowAddress = lowAddr

		highAddr, err := strconv.ParseUint(addresses[1], 16, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse high address: %w", err)
		}
		entry.HighAddress = highAddr

		for idx, b := range []byte(chunks[1]) {
			switch idx {
			case 0:
				entry.Read = b == 'r'
			case 1:
				entry.Write = b == 'w'
			case 2:
				entry.Execute = b == 'x'
			case 3:
				entry.Private = b == 'p'
			}
		}

		offset, err := strconv.ParseUint(chunks[2], 16, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse offset: %w", err)
		}
		entry.Offset = offset

		if len(chunks) == 6 {
			entry.Pathname = strings.TrimSpace(chunks[5])
		}

		result = append(result, entry)
	}

	return result, nil
}

func GetExecutableSymlinkPath(pid int) string {
	return fmt.Sprintf("/proc/%d/exe", pid)
}
