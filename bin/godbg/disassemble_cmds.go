package main

import (
	"fmt"
	"strconv"

	"github.com/dmelani/godbg/config"
	"github.com/dmelani/godbg/debugger"
)

func disassembleCmd(
	db *debugger.Debugger,
	cfg *config.Config,
	args []string,
) error {
	address, err := db.GetProgramCounter()
	if err != nil {
		return err
	}

	if len(args) > 0 {
		address, err = parseAddress(args[0])
		if err != nil {
			fmt.Println("Invalid address:", err)
			return nil
		}
	}

	numInstructions := cfg.DisassembleInstructionCount
	if len(args) > 1 {
		numInstructions, err = strconv.Atoi(args[1])
		if err != nil || numInstructions < 0 {
			fmt.Println("Invalid instruction count:", args[1])
			return nil
		}
	}

	instructions, err := db.Disassemble(address, numInstructions)
	if err != nil {
		return err
	}

	for _, instruction := range instructions {
		fmt.Println(instruction)
	}

	return nil
}
