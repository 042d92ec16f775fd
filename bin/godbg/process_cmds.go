package main

import (
	"fmt"

	"github.com/dmelani/godbg/config"
	"github.com/dmelani/godbg/debugger"
)

func resumeProcess(
	db *debugger.Debugger,
	cfg *config.Config,
	args []string,
) error {
	reason, err := db.ResumeUntilSignal()
	if err != nil {
		return err
	}

	fmt.Println(reason)
	return nil
}

func stepInstruction(
	db *debugger.Debugger,
	cfg *config.Config,
	args []string,
) error {
	reason, err := db.StepInstruction()
	if err != nil {
		return err
	}

	fmt.Println(reason)
	return nil
}
