package main

import (
	"fmt"
	"strings"

	"github.com/dmelani/godbg/config"
	"github.com/dmelani/godbg/debugger"
	"github.com/dmelani/godbg/debugger/registers"
)

func registerCmd(
	db *debugger.Debugger,
	cfg *config.Config,
	args []string,
) error {
	if len(args) == 0 {
		fmt.Println("Expected a sub command: read / write")
		return nil
	}

	switch {
	case strings.HasPrefix("read", args[0]):
		return readRegisters(db, args[1:])
	case strings.HasPrefix("write", args[0]):
		return writeRegister(db, args[1:])
	default:
		fmt.Println("invalid register sub command:", args[0])
		return nil
	}
}

func readRegisters(db *debugger.Debugger, args []string) error {
	if len(args) > 0 && args[0] != "all" {
		reg, err := registers.ByName(args[0])
		if err != nil {
			fmt.Println("Invalid register:", args[0])
			return nil
		}

		value, err := db.ReadRegister(reg)
		if err != nil {
			return err
		}

		fmt.Printf("%s: %s\n", reg.Name, value)
		return nil
	}

	state, err := db.GetRegisterState()
	if err != nil {
		return err
	}

	printAll := len(args) > 0
	for _, reg := range registers.OrderedSpecs {
		// Skip printing general sub registers
		if reg.Category == registers.SubGpr {
			continue
		}

		if !printAll && reg.Category != registers.Gpr {
			continue
		}

		name := reg.Name
		if reg.Category == registers.Fpr {
			if strings.HasPrefix(name, "st") {
				name = fmt.Sprintf("st%s/mm%s", name[2:], name[2:])
			} else if strings.HasPrefix(name, "mm") {
				continue
			}
		}

		format := "%s:\t\t%s\n"
		if len(name) >= 7 {
			format = "%s:\t%s\n"
		}
		fmt.Printf(format, name, state.Value(reg))
	}

	return nil
}

func writeRegister(db *debugger.Debugger, args []string) error {
	if len(args) != 2 {
		fmt.Println("Expected two arguments: <register> <value>")
		return nil
	}

	reg, err := registers.ByName(args[0])
	if err != nil {
		fmt.Println("Invalid register:", args[0])
		return nil
	}

	value, err := reg.ParseValue(args[1])
	if err != nil {
		fmt.Println("Invalid value:", err)
		return nil
	}

	err = db.WriteRegister(reg, value)
	if err != nil {
		fmt.Println("Invalid value:", err)
		return nil
	}

	return nil
}
