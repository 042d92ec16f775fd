package procfs

import (
	"os"
	"testing"

	"github.com/pattyshack/gt/testing/expect"
	"github.com/pattyshack/gt/testing/suite"
)

type ProcFSSuite struct{}

func TestProcFS(t *testing.T) {
	suite.RunTests(t, &ProcFSSuite{})
}

func (ProcFSSuite) TestGetProcessStatus(t *testing.T) {
	status, err := GetProcessStatus(os.Getpid())
	expect.Nil(t, err)

	expect.Equal(t, os.Getpid(), status.Pid)
	expect.True(t, status.Comm != "")
	expect.True(t, status.State == Running || status.State == Sleeping)
	expect.Equal(t, os.Getppid(), status.Ppid)
	expect.True(t, status.Pgrp > 0)
}

func (ProcFSSuite) TestGetProcessStatusNoSuchProcess(t *testing.T) {
	_, err := GetProcessStatus(-1)
	expect.Error(t, err, "failed to read process")
}

func (ProcFSSuite) TestGetMappedMemoryRegions(t *testing.T) {
	regions, err := GetMappedMemoryRegions(os.Getpid())
	expect.Nil(t, err)
	expect.True(t, len(regions) > 0)

	foundExecutable := false
	for _, region := range regions {
		expect.True(t, region.LowAddress < region.HighAddress)
		if region.Execute {
			foundExecutable = true
		}
	}
	expect.True(t, foundExecutable)
}

func (ProcFSSuite) TestMappedMemoryRegionString(t *testing.T) {
	region := MappedMemoryRegion{
		LowAddress:  0x1000,
		HighAddress: 0x2000,
		Read:        true,
		Execute:     true,
		Private:     true,
		Pathname:    "/bin/true",
	}

	expect.Equal(
		t,
		"0x0000000000001000-0x0000000000002000 r-xp /bin/true",
		region.String())
}

func (ProcFSSuite) TestGetExecutableSymlinkPath(t *testing.T) {
	path, err := os.Readlink(GetExecutableSymlinkPath(os.Getpid()))
	expect.Nil(t, err)
	expect.True(t, path != "")
}
