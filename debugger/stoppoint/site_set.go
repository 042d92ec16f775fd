package stoppoint

import (
	"fmt"
	"sort"

	. "github.com/dmelani/godbg/debugger/common"
)

// Collection of software breakpoint sites belonging to one process.  Sites
// are indexed by id and by address; at most one site may exist per address.
// Ids are strictly positive, monotonically increasing, and never reused.
type SiteSet struct {
	memory SiteMemory

	nextId int32

	byId      map[int32]*SoftwareBreakpointSite
	byAddress map[VirtualAddress]*SoftwareBreakpointSite
}

func NewSiteSet(memory SiteMemory) *SiteSet {
	return &SiteSet{
		memory:    memory,
		nextId:    1,
		byId:      map[int32]*SoftwareBreakpointSite{},
		byAddress: map[VirtualAddress]*SoftwareBreakpointSite{},
	}
}

// Creates a disabled site at the address.  The caller enables the site
// explicitly.
func (set *SiteSet) Add(
	address VirtualAddress,
) (
	*SoftwareBreakpointSite,
	error,
) {
	_, ok := set.byAddress[address]
	if ok {
		return nil, fmt.Errorf(
			"%w: breakpoint site already exists at %s",
			ErrDuplicateAddress,
			address)
	}

	site := &SoftwareBreakpointSite{
		memory:  set.memory,
		id:      set.nextId,
		address: address,
	}
	set.nextId++

	set.byId[site.id] = site
	set.byAddress[address] = site
	return site, nil
}

func (set *SiteSet) ContainsId(id int32) bool {
	_, ok := set.byId[id]
	return ok
}

func (set *SiteSet) ContainsAddress(address VirtualAddress) bool {
	_, ok := set.byAddress[address]
	return ok
}

// Returns true if the set holds an enabled site at the address.
func (set *SiteSet) EnabledAt(address VirtualAddress) bool {
	site, ok := set.byAddress[address]
	return ok && site.IsEnabled()
}

func (set *SiteSet) GetById(id int32) (*SoftwareBreakpointSite, error) {
	site, ok := set.byId[id]
	if !ok {
		return nil, fmt.Errorf(
			"%w: no breakpoint site with id %d",
			ErrNotFound,
			id)
	}
	return site, nil
}

func (set *SiteSet) GetByAddress(
	address VirtualAddress,
) (
	*SoftwareBreakpointSite,
	error,
) {
	site, ok := set.byAddress[address]
	if !ok {
		return nil, fmt.Errorf(
			"%w: no breakpoint site at %s",
			ErrNotFound,
			address)
	}
	return site, nil
}

// Disables the site before removing it so the tracee's original byte is
// restored.
func (set *SiteSet) RemoveById(id int32) error {
	site, err := set.GetById(id)
	if err != nil {
		return err
	}

	return set.remove(site)
}

func (set *SiteSet) RemoveByAddress(address VirtualAddress) error {
	site, err := set.GetByAddress(address)
	if err != nil {
		return err
	}

	return set.remove(site)
}

func (set *SiteSet) remove(site *SoftwareBreakpointSite) error {
	err := site.Disable()
	if err != nil {
		return err
	}

	delete(set.byId, site.id)
	delete(set.byAddress, site.address)
	return nil
}

// Returns the sites whose addresses fall in [start, end), ordered by
// address.
func (set *SiteSet) InRange(
	start VirtualAddress,
	end VirtualAddress,
) []*SoftwareBreakpointSite {
	sites := []*SoftwareBreakpointSite{}
	for address, site := range set.byAddress {
		if start <= address && address < end {
			sites = append(sites, site)
		}
	}

	sort.Slice(
		sites,
		func(i int, j int) bool {
			return sites[i].address < sites[j].address
		})
	return sites
}

// Returns all sites ordered by id.
func (set *SiteSet) List() []*SoftwareBreakpointSite {
	sites := []*SoftwareBreakpointSite{}
	for _, site := range set.byId {
		sites = append(sites, site)
	}

	sort.Slice(
		sites,
		func(i int, j int) bool {
			return sites[i].id < sites[j].id
		})
	return sites
}

func (set *SiteSet) Size() int {
	return len(set.byId)
}

func (set *SiteSet) IsEmpty() bool {
	return len(set.byId) == 0
}

// Replaces int3 bytes in the memory slice with each enabled site's original
// data byte.
func (set *SiteSet) ReplaceBreakpointBytes(
	startAddr VirtualAddress,
	memorySlice []byte,
) {
	endAddr := startAddr + VirtualAddress(len(memorySlice))
	for _, site := range set.InRange(startAddr, endAddr) {
		site.ReplaceBreakpointBytes(startAddr, memorySlice)
	}
}
