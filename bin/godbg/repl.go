package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/sirupsen/logrus"

	"github.com/dmelani/godbg/config"
	"github.com/dmelani/godbg/debugger"
	"github.com/dmelani/godbg/procfs"
)

type command struct {
	name        string
	description string
	run         func(*debugger.Debugger, *config.Config, []string) error
}

var commands []command

func init() {
	commands = []command{
		{
			name:        "continue",
			description: "resume the process until the next signal",
			run:         resumeProcess,
		},
		{
			name:        "step",
			description: "execute a single instruction",
			run:         stepInstruction,
		},
		{
			name:        "register",
			description: "read [<name>|all] / write <name> <value>",
			run:         registerCmd,
		},
		{
			name:        "memory",
			description: "read <addr> [bytes] / write <addr> <byte>... / regions",
			run:         memoryCmd,
		},
		{
			name:        "breakpoint",
			description: "set <addr> / list / enable <id> / disable <id> / delete <id>",
			run:         breakpointCmd,
		},
		{
			name:        "disassemble",
			description: "disassemble [<addr>] [count]",
			run:         disassembleCmd,
		},
		{
			name:        "help",
			description: "print this message",
			run:         helpCmd,
		},
	}
}

func runRepl(db *debugger.Debugger, cfg *config.Config) error {
	exePath, err := os.Readlink(procfs.GetExecutableSymlinkPath(db.Pid))
	if err != nil {
		exePath = "(unknown)"
	}
	fmt.Printf("attached to process %d (%s)\n", db.Pid, exePath)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "godbg > ",
		HistoryFile: cfg.HistoryFile,
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	lastLine := ""
	for {
		line, err := rl.Readline()
		if err != nil {
			if err == io.EOF || err == readline.ErrInterrupt {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			line = lastLine
		}
		lastLine = line

		if line == "" {
			continue
		}

		args := cfg.ExpandAlias(strings.Split(line, " "))
		if args[0] == "quit" || args[0] == "exit" {
			return nil
		}

		err = dispatch(db, cfg, args)
		if err != nil {
			fmt.Println("error:", err)
			logrus.WithError(err).Debug("command failed")
		}

		if db.Exited() && args[0] != "" {
			logrus.Debug("process is gone")
		}
	}
}

func dispatch(
	db *debugger.Debugger,
	cfg *config.Config,
	args []string,
) error {
	if args[0] == "" {
		fmt.Println("invalid command: (empty string)")
		return nil
	}

	for _, cmd := range commands {
		if strings.HasPrefix(cmd.name, args[0]) {
			return cmd.run(db, cfg, args[1:])
		}
	}

	fmt.Println("invalid command:", args[0])
	return nil
}

func helpCmd(db *debugger.Debugger, cfg *config.Config, args []string) error {
	for _, cmd := range commands {
		fmt.Printf("  %-12s %s\n", cmd.name, cmd.description)
	}
	fmt.Printf("  %-12s %s\n", "quit", "detach and exit")
	return nil
}
