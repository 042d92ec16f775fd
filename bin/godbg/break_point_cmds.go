package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dmelani/godbg/config"
	"github.com/dmelani/godbg/debugger"
)

func breakpointCmd(
	db *debugger.Debugger,
	cfg *config.Config,
	args []string,
) error {
	if len(args) == 0 {
		fmt.Println(
			"Expected a sub command: set / list / enable / disable / delete")
		return nil
	}

	switch {
	case strings.HasPrefix("set", args[0]):
		return setBreakpoint(db, args[1:])
	case strings.HasPrefix("list", args[0]):
		return listBreakpoints(db)
	case strings.HasPrefix("enable", args[0]):
		return enableBreakpoint(db, args[1:], true)
	case strings.HasPrefix("disable", args[0]):
		return enableBreakpoint(db, args[1:], false)
	case strings.HasPrefix("delete", args[0]):
		return deleteBreakpoint(db, args[1:])
	default:
		fmt.Println("invalid breakpoint sub command:", args[0])
		return nil
	}
}

func setBreakpoint(db *debugger.Debugger, args []string) error {
	if len(args) == 0 {
		fmt.Println("Expected a breakpoint address")
		return nil
	}

	address, err := parseAddress(args[0])
	if err != nil {
		fmt.Println("Invalid address:", err)
		return nil
	}

	site, err := db.CreateBreakpointSite(address)
	if err != nil {
		return err
	}

	err = site.Enable()
	if err != nil {
		return err
	}

	fmt.Printf("set breakpoint %d at %s\n", site.Id(), site.Address())
	return nil
}

func listBreakpoints(db *debugger.Debugger) error {
	if db.BreakpointSites.IsEmpty() {
		fmt.Println("no breakpoints set")
		return nil
	}

	for _, site := range db.BreakpointSites.List() {
		enabled := "disabled"
		if site.IsEnabled() {
			enabled = "enabled"
		}
		fmt.Printf("%d: address = %s, %s\n", site.Id(), site.Address(), enabled)
	}

	return nil
}

func parseBreakpointId(args []string) (int32, bool) {
	if len(args) == 0 {
		fmt.Println("Expected a breakpoint id")
		return 0, false
	}

	id, err := strconv.ParseInt(args[0], 10, 32)
	if err != nil {
		fmt.Println("Invalid breakpoint id:", args[0])
		return 0, false
	}

	return int32(id), true
}

func enableBreakpoint(
	db *debugger.Debugger,
	args []string,
	enable bool,
) error {
	id, ok := parseBreakpointId(args)
	if !ok {
		return nil
	}

	site, err := db.BreakpointSites.GetById(id)
	if err != nil {
		return err
	}

	if enable {
		return site.Enable()
	}
	return site.Disable()
}

func deleteBreakpoint(db *debugger.Debugger, args []string) error {
	id, ok := parseBreakpointId(args)
	if !ok {
		return nil
	}

	return db.BreakpointSites.RemoveById(id)
}
