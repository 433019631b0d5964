package platform

import (
	"fmt"
	"net"

	"github.com/netcfgd/netcfgd/internal/middleware/logger"
	perrors "github.com/netcfgd/netcfgd/pkg/errors"
)

// Links returns every visible link ordered by ifindex
func (p *Platform) Links() []Link {
	return ListOf(p.cache, p.gate.visible)
}

// Link returns the visible link with ifindex
func (p *Platform) Link(ifindex int) (Link, bool) {
	obj, ok := p.cache.Get(LinkKey(ifindex))
	if !ok {
		return Link{}, false
	}
	link := obj.(Link)
	return link, p.gate.visible(link)
}

func (p *Platform) LinkByName(name string) (Link, bool) {
	links := ListOf(p.cache, func(l Link) bool { return l.Name == name && p.gate.visible(l) })
	if len(links) == 0 {
		return Link{}, false
	}
	return links[0], true
}

// IP4Addresses returns the addresses on ifindex, or all of them for ifindex 0
func (p *Platform) IP4Addresses(ifindex int) []IP4Address {
	return ListOf(p.cache, onIfindex[IP4Address](ifindex))
}

func (p *Platform) IP6Addresses(ifindex int) []IP6Address {
	return ListOf(p.cache, onIfindex[IP6Address](ifindex))
}

func (p *Platform) IP4Routes(ifindex int) []IP4Route {
	return ListOf(p.cache, onIfindex[IP4Route](ifindex))
}

func (p *Platform) IP6Routes(ifindex int) []IP6Route {
	return ListOf(p.cache, onIfindex[IP6Route](ifindex))
}

// Get returns the cached object for key, regardless of visibility
func (p *Platform) Get(key Key) (Object, bool) {
	return p.cache.Get(key)
}

func onIfindex[V Object](ifindex int) func(V) bool {
	return func(v V) bool { return ifindex == 0 || v.Ifindex() == ifindex }
}

// AddLink creates a link, or accepts an existing one of the same name and
// type, and returns it as read back from the kernel
func (p *Platform) AddLink(name string, linkType LinkType, hwaddr net.HardwareAddr) (Link, error) {
	ifindex, err := p.backend.AddLink(name, linkType, hwaddr)
	return p.linkAdded(name, linkType, ifindex, err)
}

func (p *Platform) AddVlan(name string, parent, id int) (Link, error) {
	ifindex, err := p.backend.AddVlan(name, parent, id)
	return p.linkAdded(name, LinkTypeVlan, ifindex, err)
}

// AddVeth creates the pair name/peer and returns name
func (p *Platform) AddVeth(name, peer string) (Link, error) {
	ifindex, err := p.backend.AddVeth(name, peer)
	if err == nil {
		if peerIndex, perr := p.backend.VethPeer(ifindex); perr == nil {
			p.refresh(LinkKey(peerIndex), OriginInternal)
		}
	}
	return p.linkAdded(name, LinkTypeVeth, ifindex, err)
}

// AddInfinibandPartition creates the IPoIB child of parent for pkey, named
// after the parent and the pkey in hex
func (p *Platform) AddInfinibandPartition(parent, pkey int) (Link, error) {
	key := LinkKey(parent).String()
	if pkey <= 0 || pkey > 0xffff || pkey&0x7fff == 0 {
		return Link{}, perrors.NewGenericError(perrors.OpLinkAdd, key, fmt.Errorf("invalid pkey %#x", pkey))
	}
	parentLink, ok := p.Link(parent)
	if !ok {
		return Link{}, perrors.NewNotFoundError(perrors.OpLinkAdd, key, fmt.Errorf("no such link"))
	}
	name := InfinibandPartitionName(parentLink.Name, pkey)
	ifindex, err := p.backend.AddInfinibandPartition(name, parent, pkey)
	return p.linkAdded(name, LinkTypeInfiniband, ifindex, err)
}

func (p *Platform) linkAdded(name string, linkType LinkType, ifindex int, err error) (Link, error) {
	if err != nil && !perrors.IsAlreadyExists(err) {
		p.backendError(err)
		return Link{}, err
	}
	exists := err
	if ifindex == 0 {
		return Link{}, perrors.NewNotFoundError(perrors.OpLinkAdd, name, exists)
	}

	p.refresh(LinkKey(ifindex), OriginInternal)
	obj, ok := p.cache.Get(LinkKey(ifindex))
	if !ok {
		// deleted again before it could be read back
		return Link{}, perrors.NewNotFoundError(perrors.OpLinkAdd, name, exists)
	}
	link := obj.(Link)
	if exists != nil && link.Type != linkType {
		return Link{}, exists
	}
	return link, nil
}

// DeleteLink removes ifindex. A link that is already gone is not an error.
func (p *Platform) DeleteLink(ifindex int) error {
	return p.mutate(p.backend.DeleteLink(ifindex), perrors.IsNotFound, LinkKey(ifindex))
}

func (p *Platform) SetLinkUp(ifindex int) error {
	return p.mutate(p.backend.SetLinkUp(ifindex), nil, LinkKey(ifindex))
}

func (p *Platform) SetLinkDown(ifindex int) error {
	return p.mutate(p.backend.SetLinkDown(ifindex), nil, LinkKey(ifindex))
}

func (p *Platform) SetLinkARP(ifindex int) error {
	return p.mutate(p.backend.SetLinkARP(ifindex), nil, LinkKey(ifindex))
}

func (p *Platform) SetLinkNoARP(ifindex int) error {
	return p.mutate(p.backend.SetLinkNoARP(ifindex), nil, LinkKey(ifindex))
}

func (p *Platform) SetLinkAddress(ifindex int, hwaddr net.HardwareAddr) error {
	return p.mutate(p.backend.SetLinkAddress(ifindex, hwaddr), nil, LinkKey(ifindex))
}

func (p *Platform) SetLinkMTU(ifindex int, mtu int) error {
	return p.mutate(p.backend.SetLinkMTU(ifindex, mtu), nil, LinkKey(ifindex))
}

// maxVlanPriority is the largest value of the 3 bit PCP field
const maxVlanPriority = 7

// SetVlanIngressMap maps the VLAN priority from onto the skb priority to
func (p *Platform) SetVlanIngressMap(ifindex int, from, to uint32) error {
	if from > maxVlanPriority {
		return perrors.NewGenericError(perrors.OpLinkSetVlanMap, LinkKey(ifindex).String(),
			fmt.Errorf("vlan priority %d out of range", from))
	}
	return p.mutate(p.backend.SetVlanIngressMap(ifindex, from, to), nil, LinkKey(ifindex))
}

// SetVlanEgressMap maps the skb priority from onto the VLAN priority to
func (p *Platform) SetVlanEgressMap(ifindex int, from, to uint32) error {
	if to > maxVlanPriority {
		return perrors.NewGenericError(perrors.OpLinkSetVlanMap, LinkKey(ifindex).String(),
			fmt.Errorf("vlan priority %d out of range", to))
	}
	return p.mutate(p.backend.SetVlanEgressMap(ifindex, from, to), nil, LinkKey(ifindex))
}

// Enslave attaches slave to master. The master is re-verified through the
// slave's master change.
func (p *Platform) Enslave(master, slave int) error {
	return p.mutate(p.backend.Enslave(master, slave), nil, LinkKey(slave))
}

func (p *Platform) Release(master, slave int) error {
	return p.mutate(p.backend.Release(master, slave), nil, LinkKey(slave))
}

func (p *Platform) AddIP4Address(addr IP4Address) (IP4Address, error) {
	key := addr.Key()
	if err := p.mutate(p.backend.AddIP4Address(addr), perrors.IsAlreadyExists, key); err != nil {
		return IP4Address{}, err
	}
	return readBack[IP4Address](p, key, perrors.OpAddressAdd)
}

func (p *Platform) AddIP6Address(addr IP6Address) (IP6Address, error) {
	key := addr.Key()
	if err := p.mutate(p.backend.AddIP6Address(addr), perrors.IsAlreadyExists, key); err != nil {
		return IP6Address{}, err
	}
	return readBack[IP6Address](p, key, perrors.OpAddressAdd)
}

func (p *Platform) DeleteIP4Address(key IP4AddressKey) error {
	return p.mutate(p.backend.DeleteIP4Address(key), perrors.IsNotFound, key)
}

func (p *Platform) DeleteIP6Address(key IP6AddressKey) error {
	return p.mutate(p.backend.DeleteIP6Address(key), perrors.IsNotFound, key)
}

func (p *Platform) AddIP4Route(route IP4Route) (IP4Route, error) {
	key := route.Key()
	if err := p.mutate(p.backend.AddIP4Route(route), perrors.IsAlreadyExists, key); err != nil {
		return IP4Route{}, err
	}
	return readBack[IP4Route](p, key, perrors.OpRouteAdd)
}

func (p *Platform) AddIP6Route(route IP6Route) (IP6Route, error) {
	key := route.Key()
	if err := p.mutate(p.backend.AddIP6Route(route), perrors.IsAlreadyExists, key); err != nil {
		return IP6Route{}, err
	}
	return readBack[IP6Route](p, key, perrors.OpRouteAdd)
}

func (p *Platform) DeleteIP4Route(key IP4RouteKey) error {
	return p.mutate(p.backend.DeleteIP4Route(key), perrors.IsNotFound, key)
}

func (p *Platform) DeleteIP6Route(key IP6RouteKey) error {
	return p.mutate(p.backend.DeleteIP6Route(key), perrors.IsNotFound, key)
}

// mutate reconciles keys after a mutating backend call. Errors accepted by
// tolerate count as success; any other error leaves the cache untouched.
func (p *Platform) mutate(err error, tolerate func(error) bool, keys ...Key) error {
	if err != nil && (tolerate == nil || !tolerate(err)) {
		p.backendError(err)
		return err
	}
	for _, key := range keys {
		p.refresh(key, OriginInternal)
	}
	return nil
}

func readBack[V Object](p *Platform, key Key, op string) (V, error) {
	var zero V
	obj, ok := p.cache.Get(key)
	if !ok {
		return zero, perrors.NewNotFoundError(op, key.String(), fmt.Errorf("not present after read-back"))
	}
	return obj.(V), nil
}

func (p *Platform) VlanProperties(ifindex int) (VlanProperties, error) {
	props, err := p.backend.VlanProperties(ifindex)
	return props, p.checked(err)
}

func (p *Platform) VxlanProperties(ifindex int) (VxlanProperties, error) {
	props, err := p.backend.VxlanProperties(ifindex)
	return props, p.checked(err)
}

func (p *Platform) TunProperties(ifindex int) (TunProperties, error) {
	props, err := p.backend.TunProperties(ifindex)
	return props, p.checked(err)
}

func (p *Platform) MacvlanProperties(ifindex int) (MacvlanProperties, error) {
	props, err := p.backend.MacvlanProperties(ifindex)
	return props, p.checked(err)
}

func (p *Platform) GreProperties(ifindex int) (GreProperties, error) {
	props, err := p.backend.GreProperties(ifindex)
	return props, p.checked(err)
}

func (p *Platform) VethPeer(ifindex int) (int, error) {
	peer, err := p.backend.VethPeer(ifindex)
	return peer, p.checked(err)
}

func (p *Platform) PermanentAddress(ifindex int) (net.HardwareAddr, error) {
	addr, err := p.backend.PermanentAddress(ifindex)
	return addr, p.checked(err)
}

// PhysicalPortID identifies the physical port of ifindex, shared by links
// of a multi-port NIC that reach the network through the same port
func (p *Platform) PhysicalPortID(ifindex int) (string, error) {
	id, err := p.backend.PhysicalPortID(ifindex)
	if perrors.IsNotFound(err) {
		return "", err
	}
	return id, p.checked(err)
}

func (p *Platform) SupportsCarrierDetect(ifindex int) (bool, error) {
	supported, err := p.backend.SupportsCarrierDetect(ifindex)
	return supported, p.checked(err)
}

// SupportsVlans reports whether vlan links can be stacked on ifindex
func (p *Platform) SupportsVlans(ifindex int) (bool, error) {
	supported, err := p.backend.SupportsVlans(ifindex)
	return supported, p.checked(err)
}

// MasterOption reads a bridge or bond option from sysfs
func (p *Platform) MasterOption(ifindex int, option string) (string, error) {
	path, err := p.masterOptionPath(ifindex, option)
	if err != nil {
		return "", err
	}
	return p.SysctlGet(path)
}

func (p *Platform) SetMasterOption(ifindex int, option, value string) error {
	path, err := p.masterOptionPath(ifindex, option)
	if err != nil {
		return err
	}
	return p.SysctlSet(path, value)
}

// SlaveOption reads a bridge port option of ifindex from sysfs
func (p *Platform) SlaveOption(ifindex int, option string) (string, error) {
	path, err := p.slaveOptionPath(ifindex, option)
	if err != nil {
		return "", err
	}
	return p.SysctlGet(path)
}

func (p *Platform) SetSlaveOption(ifindex int, option, value string) error {
	path, err := p.slaveOptionPath(ifindex, option)
	if err != nil {
		return err
	}
	return p.SysctlSet(path, value)
}

func (p *Platform) masterOptionPath(ifindex int, option string) (string, error) {
	master, ok := p.Link(ifindex)
	if !ok {
		return "", perrors.NewNotFoundError(perrors.OpLinkOption, LinkKey(ifindex).String(), nil)
	}
	path, err := masterOptionPath(master, option)
	if err != nil {
		return "", perrors.NewGenericError(perrors.OpLinkOption, master.Name, err)
	}
	return path, nil
}

func (p *Platform) slaveOptionPath(ifindex int, option string) (string, error) {
	slave, ok := p.Link(ifindex)
	if !ok {
		return "", perrors.NewNotFoundError(perrors.OpLinkOption, LinkKey(ifindex).String(), nil)
	}
	master, ok := p.Link(slave.Master)
	if !ok {
		return "", perrors.NewNotFoundError(perrors.OpLinkOption, slave.Name, fmt.Errorf("link has no master"))
	}
	path, err := slaveOptionPath(slave, master, option)
	if err != nil {
		return "", perrors.NewGenericError(perrors.OpLinkOption, slave.Name, err)
	}
	return path, nil
}

func (p *Platform) SysctlGet(path string) (string, error) {
	value, err := p.backend.SysctlGet(path)
	return value, p.checked(err)
}

// SysctlSet writes value to path, logging the value it replaces
func (p *Platform) SysctlSet(path, value string) error {
	log := logger.FromContext(p.ctx).WithField("path", path)
	old, err := p.backend.SysctlGet(path)
	if err != nil {
		// a missing entry is expected for options that are write-only or not created yet
		log.Tracef("Unable to read sysctl before writing it: %v", err)
	}
	if err := p.checked(p.backend.SysctlSet(path, value)); err != nil {
		return err
	}
	log.Debugf("sysctl set %q (was %q)", value, old)
	return nil
}

// checked logs and counts err unless it is nil
func (p *Platform) checked(err error) error {
	if err != nil {
		p.backendError(err)
	}
	return err
}
