package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dmelani/godbg/config"
	"github.com/dmelani/godbg/debugger"
	. "github.com/dmelani/godbg/debugger/common"
	"github.com/dmelani/godbg/procfs"
)

func memoryCmd(
	db *debugger.Debugger,
	cfg *config.Config,
	args []string,
) error {
	if len(args) == 0 {
		fmt.Println("Expected a sub command: read / write / regions")
		return nil
	}

	switch {
	case strings.HasPrefix("read", args[0]):
		return readMemory(db, cfg, args[1:])
	case strings.HasPrefix("write", args[0]):
		return writeMemory(db, args[1:])
	case strings.HasPrefix("regions", args[0]):
		return listMemoryRegions(db)
	default:
		fmt.Println("invalid memory sub command:", args[0])
		return nil
	}
}

func parseAddress(value string) (VirtualAddress, error) {
	addr, err := strconv.ParseUint(value, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse address (%s): %w", value, err)
	}

	return VirtualAddress(addr), nil
}

func readMemory(
	db *debugger.Debugger,
	cfg *config.Config,
	args []string,
) error {
	if len(args) == 0 {
		fmt.Println("Expected an address to read from")
		return nil
	}

	address, err := parseAddress(args[0])
	if err != nil {
		fmt.Println("Invalid address:", err)
		return nil
	}

	numBytes := cfg.MemoryReadByteCount
	if len(args) > 1 {
		numBytes, err = strconv.Atoi(args[1])
		if err != nil || numBytes < 0 {
			fmt.Println("Invalid byte count:", args[1])
			return nil
		}
	}

	data, err := db.ReadMemory(address, numBytes)
	if err != nil {
		return err
	}

	for idx := 0; idx < len(data); idx += 8 {
		end := idx + 8
		if end > len(data) {
			end = len(data)
		}

		line := fmt.Sprintf("%s:", address.Add(int64(idx)))
		for _, b := range data[idx:end] {
			line += fmt.Sprintf(" 0x%02x", b)
		}
		fmt.Println(line)
	}

	return nil
}

func writeMemory(db *debugger.Debugger, args []string) error {
	if len(args) < 2 {
		fmt.Println("Expected an address and bytes to write")
		return nil
	}

	address, err := parseAddress(args[0])
	if err != nil {
		fmt.Println("Invalid address:", err)
		return nil
	}

	data := make([]byte, 0, len(args)-1)
	for _, arg := range args[1:] {
		b, err := strconv.ParseUint(arg, 0, 8)
		if err != nil {
			fmt.Println("Invalid byte:", arg)
			return nil
		}
		data = append(data, byte(b))
	}

	_, err = db.WriteMemory(address, data)
	return err
}

func listMemoryRegions(db *debugger.Debugger) error {
	regions, err := procfs.GetMappedMemoryRegions(db.Pid)
	if err != nil {
		return err
	}

	for _, region := range regions {
		fmt.Println(region)
	}

	return nil
}
