package common

import (
	"fmt"
)

var (
	ErrNotFound         = fmt.Errorf("not found")
	ErrDuplicateAddress = fmt.Errorf("duplicate address")
	ErrTypeMismatch     = fmt.Errorf("type mismatch")
	ErrSizeMismatch     = fmt.Errorf("size mismatch")
	ErrInvalidPid       = fmt.Errorf("invalid pid")
	ErrInvalidState     = fmt.Errorf("invalid process state")
	ErrProcessExited    = fmt.Errorf("process exited")
)

type VirtualAddress uint64

func (addr VirtualAddress) String() string {
	return fmt.Sprintf("0x%016x", uint64(addr))
}

// Signed offset arithmetic.  Wraps on overflow.
func (addr VirtualAddress) Add(offset int64) VirtualAddress {
	return VirtualAddress(uint64(addr) + uint64(offset))
}

type VirtualAddresses []VirtualAddress

func (s VirtualAddresses) Len() int {
	return len(s)
}

func (s VirtualAddresses) Less(i int, j int) bool {
	return uint64(s[i]) < uint64(s[j])
}

func (s VirtualAddresses) Swap(i int, j int) {
	s[i], s[j] = s[j], s[i]
}

type AddressRange struct {
	Low  VirtualAddress
	High VirtualAddress
}

func (ar AddressRange) Contains(addr VirtualAddress) bool {
	return ar.Low <= addr && addr < ar.High
}
