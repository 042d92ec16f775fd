package stoppoint

import (
	"testing"

	"github.com/pattyshack/gt/testing/expect"
	"github.com/pattyshack/gt/testing/suite"

	. "github.com/dmelani/godbg/debugger/common"
)

// Sparse byte-addressable memory.  Unwritten addresses read as zero.
type fakeMemory struct {
	bytes map[VirtualAddress]byte
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{
		bytes: map[VirtualAddress]byte{},
	}
}

func (memory *fakeMemory) Read(
	addr VirtualAddress,
	out []byte,
) (
	int,
	error,
) {
	for idx := range out {
		out[idx] = memory.bytes[addr.Add(int64(idx))]
	}
	return len(out), nil
}

func (memory *fakeMemory) Write(
	addr VirtualAddress,
	data []byte,
) (
	int,
	error,
) {
	for idx, b := range data {
		memory.bytes[addr.Add(int64(idx))] = b
	}
	return len(data), nil
}

type SiteSetSuite struct{}

func TestSiteSet(t *testing.T) {
	suite.RunTests(t, &SiteSetSuite{})
}

func (SiteSetSuite) TestAdd(t *testing.T) {
	set := NewSiteSet(newFakeMemory())
	expect.True(t, set.IsEmpty())

	site, err := set.Add(0x1000)
	expect.Nil(t, err)
	expect.Equal(t, VirtualAddress(0x1000), site.Address())
	expect.True(t, site.Id() > 0)
	expect.False(t, site.IsEnabled())

	expect.False(t, set.IsEmpty())
	expect.Equal(t, 1, set.Size())
	expect.True(t, set.ContainsId(site.Id()))
	expect.True(t, set.ContainsAddress(0x1000))

	_, err = set.Add(0x1000)
	expect.Error(t, err, "already exists")
	expect.Equal(t, 1, set.Size())
}

func (SiteSetSuite) TestIdsNeverReused(t *testing.T) {
	set := NewSiteSet(newFakeMemory())

	first, err := set.Add(0x1000)
	expect.Nil(t, err)

	second, err := set.Add(0x2000)
	expect.Nil(t, err)
	expect.True(t, second.Id() > first.Id())

	err = set.RemoveById(second.Id())
	expect.Nil(t, err)

	third, err := set.Add(0x2000)
	expect.Nil(t, err)
	expect.True(t, third.Id() > second.Id())
}

func (SiteSetSuite) TestGet(t *testing.T) {
	set := NewSiteSet(newFakeMemory())

	site, err := set.Add(0x1000)
	expect.Nil(t, err)

	byId, err := set.GetById(site.Id())
	expect.Nil(t, err)
	expect.True(t, byId == site)

	byAddress, err := set.GetByAddress(0x1000)
	expect.Nil(t, err)
	expect.True(t, byAddress == site)

	_, err = set.GetById(site.Id() + 1)
	expect.Error(t, err, "not found")

	_, err = set.GetByAddress(0x2000)
	expect.Error(t, err, "not found")
}

func (SiteSetSuite) TestEnableDisable(t *testing.T) {
	memory := newFakeMemory()
	_, err := memory.Write(0x1000, []byte{0x55})
	expect.Nil(t, err)

	set := NewSiteSet(memory)

	site, err := set.Add(0x1000)
	expect.Nil(t, err)
	expect.False(t, set.EnabledAt(0x1000))

	err = site.Enable()
	expect.Nil(t, err)
	expect.True(t, site.IsEnabled())
	expect.True(t, set.EnabledAt(0x1000))
	expect.Equal(t, byte(0xcc), memory.bytes[0x1000])

	// Enabling twice must not capture the int3 byte as original data.
	err = site.Enable()
	expect.Nil(t, err)

	err = site.Disable()
	expect.Nil(t, err)
	expect.False(t, site.IsEnabled())
	expect.False(t, set.EnabledAt(0x1000))
	expect.Equal(t, byte(0x55), memory.bytes[0x1000])

	err = site.Disable()
	expect.Nil(t, err)
	expect.Equal(t, byte(0x55), memory.bytes[0x1000])
}

func (SiteSetSuite) TestRemoveRestoresOriginalByte(t *testing.T) {
	memory := newFakeMemory()
	_, err := memory.Write(0x1000, []byte{0x55})
	expect.Nil(t, err)

	set := NewSiteSet(memory)

	site, err := set.Add(0x1000)
	expect.Nil(t, err)

	err = site.Enable()
	expect.Nil(t, err)
	expect.Equal(t, byte(0xcc), memory.bytes[0x1000])

	err = set.RemoveById(site.Id())
	expect.Nil(t, err)
	expect.Equal(t, byte(0x55), memory.bytes[0x1000])
	expect.False(t, set.ContainsId(site.Id()))
	expect.False(t, set.ContainsAddress(0x1000))

	err = set.RemoveById(site.Id())
	expect.Error(t, err, "not found")
}

func (SiteSetSuite) TestRemoveByAddress(t *testing.T) {
	set := NewSiteSet(newFakeMemory())

	site, err := set.Add(0x1000)
	expect.Nil(t, err)

	err = set.RemoveByAddress(0x1000)
	expect.Nil(t, err)
	expect.False(t, set.ContainsId(site.Id()))

	err = set.RemoveByAddress(0x1000)
	expect.Error(t, err, "not found")
}

func (SiteSetSuite) TestInRange(t *testing.T) {
	set := NewSiteSet(newFakeMemory())

	for _, address := range []VirtualAddress{0x3000, 0x1000, 0x2000} {
		_, err := set.Add(address)
		expect.Nil(t, err)
	}

	sites := set.InRange(0x1000, 0x3000)
	expect.Equal(t, 2, len(sites))
	expect.Equal(t, VirtualAddress(0x1000), sites[0].Address())
	expect.Equal(t, VirtualAddress(0x2000), sites[1].Address())

	sites = set.InRange(0, 0x10000)
	expect.Equal(t, 3, len(sites))
	expect.Equal(t, VirtualAddress(0x3000), sites[2].Address())

	sites = set.InRange(0x4000, 0x5000)
	expect.Equal(t, 0, len(sites))
}

func (SiteSetSuite) TestListOrderedById(t *testing.T) {
	set := NewSiteSet(newFakeMemory())

	for _, address := range []VirtualAddress{0x3000, 0x1000, 0x2000} {
		_, err := set.Add(address)
		expect.Nil(t, err)
	}

	sites := set.List()
	expect.Equal(t, 3, len(sites))
	expect.Equal(t, VirtualAddress(0x3000), sites[0].Address())
	expect.Equal(t, VirtualAddress(0x1000), sites[1].Address())
	expect.Equal(t, VirtualAddress(0x2000), sites[2].Address())
	expect.True(t, sites[0].Id() < sites[1].Id())
	expect.True(t, sites[1].Id() < sites[2].Id())
}

func (SiteSetSuite) TestReplaceBreakpointBytes(t *testing.T) {
	memory := newFakeMemory()
	_, err := memory.Write(0x1000, []byte{0x11, 0x22, 0x33, 0x44})
	expect.Nil(t, err)

	set := NewSiteSet(memory)

	enabled, err := set.Add(0x1001)
	expect.Nil(t, err)
	err = enabled.Enable()
	expect.Nil(t, err)

	_, err = set.Add(0x1003) // never enabled
	expect.Nil(t, err)

	outside, err := set.Add(0x2000)
	expect.Nil(t, err)
	err = outside.Enable()
	expect.Nil(t, err)

	slice := make([]byte, 4)
	_, err = memory.Read(0x1000, slice)
	expect.Nil(t, err)
	expect.Equal(t, byte(0xcc), slice[1])

	set.ReplaceBreakpointBytes(0x1000, slice)
	expect.Equal(t, byte(0x11), slice[0])
	expect.Equal(t, byte(0x22), slice[1])
	expect.Equal(t, byte(0x33), slice[2])
	expect.Equal(t, byte(0x44), slice[3])
}
