package fake

import (
	"fmt"
	"maps"
	"net"
	"slices"

	"golang.org/x/sys/unix"

	"github.com/netcfgd/netcfgd/pkg/platform"
	perrors "github.com/netcfgd/netcfgd/pkg/errors"
)

const defaultMTU = 1500

type link struct {
	platform.Link

	permAddr net.HardwareAddr
	peer     int
	vlan     *platform.VlanProperties
	vxlan    *platform.VxlanProperties
	tun      *platform.TunProperties
	macvlan  *platform.MacvlanProperties
	gre      *platform.GreProperties

	physPortID      string
	noCarrierDetect bool
	vlanChallenged  bool
}

func (b *Backend) Links() ([]platform.Link, error) {
	indexes := make([]int, 0, len(b.links))
	for idx := range b.links {
		indexes = append(indexes, idx)
	}
	slices.Sort(indexes)

	out := make([]platform.Link, 0, len(indexes))
	for _, idx := range indexes {
		out = append(out, b.snapshot(b.links[idx]))
	}
	return out, nil
}

func (b *Backend) Link(ifindex int) (platform.Link, error) {
	l, ok := b.links[ifindex]
	if !ok {
		return platform.Link{}, b.linkNotFound(perrors.OpLinkGet, ifindex)
	}
	return b.snapshot(l), nil
}

func (b *Backend) snapshot(l *link) platform.Link {
	out := l.Link
	out.HardwareAddr = slices.Clone(l.HardwareAddr)
	return out
}

func (b *Backend) byName(name string) *link {
	for _, l := range b.links {
		if l.Name == name {
			return l
		}
	}
	return nil
}

func (b *Backend) AddLink(name string, linkType platform.LinkType, hwaddr net.HardwareAddr) (int, error) {
	l, err := b.newLink(name, linkType, hwaddr)
	if err != nil {
		return ifindexOf(l), err
	}
	b.register(l)
	return l.Index, nil
}

func (b *Backend) AddVlan(name string, parent, id int) (int, error) {
	p, ok := b.links[parent]
	if !ok {
		return 0, b.linkNotFound(perrors.OpLinkAdd, parent)
	}
	l, err := b.newLink(name, platform.LinkTypeVlan, p.HardwareAddr)
	if err != nil {
		return ifindexOf(l), err
	}
	l.Parent = parent
	l.MTU = p.MTU
	l.vlan = &platform.VlanProperties{Parent: parent, ID: id}
	b.register(l)
	return l.Index, nil
}

func (b *Backend) AddVeth(name, peer string) (int, error) {
	if existing := b.byName(peer); existing != nil {
		return 0, perrors.Classify(perrors.OpLinkAdd, peer, unix.EEXIST)
	}
	l, err := b.newLink(name, platform.LinkTypeVeth, nil)
	if err != nil {
		return ifindexOf(l), err
	}
	b.register(l)
	p, _ := b.newLink(peer, platform.LinkTypeVeth, nil)
	b.register(p)
	l.peer, p.peer = p.Index, l.Index
	return l.Index, nil
}

// AddVxlan creates a vxlan link described by props
func (b *Backend) AddVxlan(name string, props platform.VxlanProperties) (int, error) {
	l, err := b.newLink(name, platform.LinkTypeVxlan, nil)
	if err != nil {
		return ifindexOf(l), err
	}
	l.Parent = props.Parent
	l.vxlan = &props
	b.register(l)
	return l.Index, nil
}

// AddTun creates a tun or tap link depending on props.Mode
func (b *Backend) AddTun(name string, props platform.TunProperties) (int, error) {
	linkType := platform.LinkTypeTun
	if props.Mode == "tap" {
		linkType = platform.LinkTypeTap
	}
	l, err := b.newLink(name, linkType, nil)
	if err != nil {
		return ifindexOf(l), err
	}
	l.tun = &props
	b.register(l)
	return l.Index, nil
}

func (b *Backend) AddMacvlan(name string, parent int, props platform.MacvlanProperties) (int, error) {
	if _, ok := b.links[parent]; !ok {
		return 0, b.linkNotFound(perrors.OpLinkAdd, parent)
	}
	l, err := b.newLink(name, platform.LinkTypeMacvlan, nil)
	if err != nil {
		return ifindexOf(l), err
	}
	l.Parent = parent
	l.macvlan = &props
	b.register(l)
	return l.Index, nil
}

// AddGre creates a gre tunnel, or a gretap one when tap is set
func (b *Backend) AddGre(name string, tap bool, props platform.GreProperties) (int, error) {
	linkType := platform.LinkTypeGre
	if tap {
		linkType = platform.LinkTypeGretap
	}
	l, err := b.newLink(name, linkType, nil)
	if err != nil {
		return ifindexOf(l), err
	}
	l.Parent = props.Parent
	l.gre = &props
	b.register(l)
	return l.Index, nil
}

// AddInfinibandPartition fails with EOPNOTSUPP unless parent is an
// infiniband link
func (b *Backend) AddInfinibandPartition(name string, parent, pkey int) (int, error) {
	p, ok := b.links[parent]
	if !ok {
		return 0, b.linkNotFound(perrors.OpLinkAdd, parent)
	}
	if p.Type != platform.LinkTypeInfiniband {
		return 0, perrors.Classify(perrors.OpLinkAdd, name, unix.EOPNOTSUPP)
	}
	l, err := b.newLink(name, platform.LinkTypeInfiniband, p.HardwareAddr)
	if err != nil {
		return ifindexOf(l), err
	}
	l.Parent = parent
	l.MTU = p.MTU
	b.register(l)
	return l.Index, nil
}

// newLink allocates the next ifindex. An existing link of the same name is
// returned together with an AlreadyExistsError.
func (b *Backend) newLink(name string, linkType platform.LinkType, hwaddr net.HardwareAddr) (*link, error) {
	if existing := b.byName(name); existing != nil {
		return existing, perrors.Classify(perrors.OpLinkAdd, name, unix.EEXIST)
	}

	idx := b.nextIndex
	b.nextIndex++

	if hwaddr == nil && hasLinkAddress(linkType) {
		hwaddr = net.HardwareAddr{0x02, 0xfa, 0x1e, 0x00, byte(idx >> 8), byte(idx)}
	}
	mtu := defaultMTU
	if linkType == platform.LinkTypeLoopback {
		mtu = 65536
	}

	l := &link{
		Link: platform.Link{
			Index:        idx,
			Name:         name,
			Type:         linkType,
			Kind:         linkType.String(),
			ARP:          linkType != platform.LinkTypeDummy && linkType != platform.LinkTypeLoopback,
			MTU:          mtu,
			HardwareAddr: slices.Clone(hwaddr),
			Driver:       linkType.String(),
			UDI:          fmt.Sprintf("fake:%d", idx),
		},
	}
	if linkType == platform.LinkTypeEthernet {
		l.permAddr = slices.Clone(l.HardwareAddr)
	}
	return l, nil
}

func (b *Backend) register(l *link) {
	b.links[l.Index] = l
	if !l.IsSoftware() && !b.manualDevices {
		b.devices[l.Index] = deviceInfo(l.Link)
	}
	b.notify(l.Key())
}

func ifindexOf(l *link) int {
	if l == nil {
		return 0
	}
	return l.Index
}

func hasLinkAddress(t platform.LinkType) bool {
	switch t {
	case platform.LinkTypeLoopback, platform.LinkTypeTun, platform.LinkTypeGre, platform.LinkTypeNone:
		return false
	}
	return true
}

// DeleteLink removes the link with everything that depends on it: addresses,
// routes, stacked children, a veth peer and slave membership
func (b *Backend) DeleteLink(ifindex int) error {
	l, ok := b.links[ifindex]
	if !ok {
		return b.linkNotFound(perrors.OpLinkDelete, ifindex)
	}
	delete(b.links, ifindex)
	delete(b.devices, ifindex)
	b.notify(l.Key())

	b.dropObjectsOf(ifindex)

	for _, other := range b.sortedLinks() {
		switch {
		case other.Master == ifindex:
			other.Master = 0
			b.notify(other.Key())
		case other.Parent == ifindex && isStacked(other.Type):
			_ = b.DeleteLink(other.Index)
		}
	}
	if l.peer != 0 {
		if _, ok := b.links[l.peer]; ok {
			_ = b.DeleteLink(l.peer)
		}
	}
	if l.Master != 0 {
		b.linkChanged(l.Master)
	}
	return nil
}

// isStacked reports whether links of type t go away with their parent
func isStacked(t platform.LinkType) bool {
	switch t {
	case platform.LinkTypeVlan, platform.LinkTypeMacvlan, platform.LinkTypeMacvtap, platform.LinkTypeInfiniband:
		return true
	}
	return false
}

func (b *Backend) sortedLinks() []*link {
	out := make([]*link, 0, len(b.links))
	for _, l := range b.links {
		out = append(out, l)
	}
	slices.SortFunc(out, func(a, b *link) int { return a.Index - b.Index })
	return out
}

// SetFirmwareMissing makes bringing ifindex up fail like a driver whose
// firmware cannot be loaded
func (b *Backend) SetFirmwareMissing(ifindex int, missing bool) {
	b.noFirmware[ifindex] = missing
}

func (b *Backend) SetLinkUp(ifindex int) error {
	l, ok := b.links[ifindex]
	if !ok {
		return b.linkNotFound(perrors.OpLinkSetUp, ifindex)
	}
	if b.noFirmware[ifindex] {
		return perrors.Classify(perrors.OpLinkSetUp, l.Name, unix.ENOENT)
	}
	if l.Up {
		return nil
	}
	l.Up = true
	// masters get their carrier from their slaves
	l.Connected = !l.Type.SupportsSlaves()
	b.notify(l.Key())
	b.linkChanged(ifindex)
	if l.Connected {
		b.addLinkLocal(l)
	}
	return nil
}

func (b *Backend) SetLinkDown(ifindex int) error {
	l, ok := b.links[ifindex]
	if !ok {
		return b.linkNotFound(perrors.OpLinkSetDown, ifindex)
	}
	if !l.Up {
		return nil
	}
	l.Up = false
	l.Connected = false
	b.notify(l.Key())
	// routes through a link without carrier are flushed without notification
	b.flushRoutes(ifindex)
	b.linkChanged(ifindex)
	return nil
}

// SetCarrier changes the carrier of an up link, as plugging a cable would
func (b *Backend) SetCarrier(ifindex int, connected bool) error {
	l, ok := b.links[ifindex]
	if !ok {
		return b.linkNotFound(perrors.OpLinkGet, ifindex)
	}
	if !l.Up || l.Connected == connected || l.Type.SupportsSlaves() {
		return nil
	}
	l.Connected = connected
	b.notify(l.Key())
	if !connected {
		b.flushRoutes(ifindex)
	}
	b.linkChanged(ifindex)
	return nil
}

func (b *Backend) SetLinkARP(ifindex int) error {
	return b.modify(perrors.OpLinkSetARP, ifindex, func(l *link) { l.ARP = true })
}

func (b *Backend) SetLinkNoARP(ifindex int) error {
	return b.modify(perrors.OpLinkSetARP, ifindex, func(l *link) { l.ARP = false })
}

func (b *Backend) SetLinkAddress(ifindex int, hwaddr net.HardwareAddr) error {
	return b.modify(perrors.OpLinkSetAddress, ifindex, func(l *link) { l.HardwareAddr = slices.Clone(hwaddr) })
}

func (b *Backend) SetLinkMTU(ifindex int, mtu int) error {
	if mtu < 68 {
		return perrors.Classify(perrors.OpLinkSetMTU, platform.LinkKey(ifindex).String(), unix.EINVAL)
	}
	return b.modify(perrors.OpLinkSetMTU, ifindex, func(l *link) { l.MTU = mtu })
}

func (b *Backend) SetVlanIngressMap(ifindex int, from, to uint32) error {
	return b.setVlanQos(ifindex, func(v *platform.VlanProperties) *map[uint32]uint32 { return &v.IngressMap }, from, to)
}

func (b *Backend) SetVlanEgressMap(ifindex int, from, to uint32) error {
	return b.setVlanQos(ifindex, func(v *platform.VlanProperties) *map[uint32]uint32 { return &v.EgressMap }, from, to)
}

func (b *Backend) setVlanQos(ifindex int, which func(*platform.VlanProperties) *map[uint32]uint32, from, to uint32) error {
	l, ok := b.links[ifindex]
	if !ok {
		return b.linkNotFound(perrors.OpLinkSetVlanMap, ifindex)
	}
	if l.vlan == nil {
		return perrors.Classify(perrors.OpLinkSetVlanMap, l.Name, unix.EOPNOTSUPP)
	}
	m := which(l.vlan)
	if *m == nil {
		*m = map[uint32]uint32{}
	}
	(*m)[from] = to
	b.notify(l.Key())
	return nil
}

func (b *Backend) modify(op string, ifindex int, fn func(*link)) error {
	l, ok := b.links[ifindex]
	if !ok {
		return b.linkNotFound(op, ifindex)
	}
	fn(l)
	b.notify(l.Key())
	return nil
}

// Enslave attaches slave to master. Bond and team slaves are forced up and
// connected.
func (b *Backend) Enslave(master, slave int) error {
	m, ok := b.links[master]
	if !ok {
		return b.linkNotFound(perrors.OpLinkEnslave, master)
	}
	s, ok := b.links[slave]
	if !ok {
		return b.linkNotFound(perrors.OpLinkEnslave, slave)
	}
	if !m.Type.SupportsSlaves() {
		return perrors.Classify(perrors.OpLinkEnslave, m.Name, unix.EOPNOTSUPP)
	}

	previous := s.Master
	s.Master = master
	if m.Type == platform.LinkTypeBond || m.Type == platform.LinkTypeTeam {
		s.Up = true
		s.Connected = true
	}
	b.notify(s.Key())
	if previous != 0 && previous != master {
		b.linkChanged(previous)
	}
	b.linkChanged(slave)
	return nil
}

func (b *Backend) Release(master, slave int) error {
	if _, ok := b.links[master]; !ok {
		return b.linkNotFound(perrors.OpLinkRelease, master)
	}
	s, ok := b.links[slave]
	if !ok {
		return b.linkNotFound(perrors.OpLinkRelease, slave)
	}
	if s.Master != master {
		return perrors.Classify(perrors.OpLinkRelease, s.Name, unix.EINVAL)
	}
	s.Master = 0
	b.notify(s.Key())
	b.linkChanged(master)
	return nil
}

// linkChanged recomputes the carrier of ifindex's master, or of ifindex
// itself when it is a master
func (b *Backend) linkChanged(ifindex int) {
	l, ok := b.links[ifindex]
	if !ok {
		return
	}
	if l.Master != 0 {
		b.linkChanged(l.Master)
	}
	if !l.Type.SupportsSlaves() {
		return
	}

	connected := false
	for _, s := range b.links {
		if s.Master == ifindex && s.Connected {
			connected = true
			break
		}
	}
	if connected != l.Connected {
		l.Connected = connected
		b.notify(l.Key())
		if connected {
			b.addLinkLocal(l)
		}
	}
}

func (b *Backend) VlanProperties(ifindex int) (platform.VlanProperties, error) {
	l, err := b.typed(ifindex, func(l *link) bool { return l.vlan != nil })
	if err != nil {
		return platform.VlanProperties{}, err
	}
	props := *l.vlan
	props.IngressMap = maps.Clone(props.IngressMap)
	props.EgressMap = maps.Clone(props.EgressMap)
	return props, nil
}

func (b *Backend) VxlanProperties(ifindex int) (platform.VxlanProperties, error) {
	l, err := b.typed(ifindex, func(l *link) bool { return l.vxlan != nil })
	if err != nil {
		return platform.VxlanProperties{}, err
	}
	return *l.vxlan, nil
}

func (b *Backend) TunProperties(ifindex int) (platform.TunProperties, error) {
	l, err := b.typed(ifindex, func(l *link) bool { return l.tun != nil })
	if err != nil {
		return platform.TunProperties{}, err
	}
	return *l.tun, nil
}

func (b *Backend) MacvlanProperties(ifindex int) (platform.MacvlanProperties, error) {
	l, err := b.typed(ifindex, func(l *link) bool { return l.macvlan != nil })
	if err != nil {
		return platform.MacvlanProperties{}, err
	}
	return *l.macvlan, nil
}

func (b *Backend) GreProperties(ifindex int) (platform.GreProperties, error) {
	l, err := b.typed(ifindex, func(l *link) bool { return l.gre != nil })
	if err != nil {
		return platform.GreProperties{}, err
	}
	return *l.gre, nil
}

func (b *Backend) VethPeer(ifindex int) (int, error) {
	l, err := b.typed(ifindex, func(l *link) bool { return l.Type == platform.LinkTypeVeth })
	if err != nil {
		return 0, err
	}
	return l.peer, nil
}

func (b *Backend) PermanentAddress(ifindex int) (net.HardwareAddr, error) {
	l, ok := b.links[ifindex]
	if !ok {
		return nil, b.linkNotFound(perrors.OpLinkProperties, ifindex)
	}
	if l.permAddr == nil {
		return nil, perrors.Classify(perrors.OpLinkProperties, l.Name, unix.EOPNOTSUPP)
	}
	return slices.Clone(l.permAddr), nil
}

// SetPhysicalPortID makes ifindex report id, as a multi-port NIC would
func (b *Backend) SetPhysicalPortID(ifindex int, id string) {
	if l, ok := b.links[ifindex]; ok {
		l.physPortID = id
	}
}

// SetCarrierDetect controls whether the driver of ifindex answers link
// state queries. Every link supports it by default.
func (b *Backend) SetCarrierDetect(ifindex int, supported bool) {
	if l, ok := b.links[ifindex]; ok {
		l.noCarrierDetect = !supported
	}
}

// SetVlanChallenged marks ifindex as a link that cannot carry vlans
func (b *Backend) SetVlanChallenged(ifindex int, challenged bool) {
	if l, ok := b.links[ifindex]; ok {
		l.vlanChallenged = challenged
	}
}

func (b *Backend) PhysicalPortID(ifindex int) (string, error) {
	l, ok := b.links[ifindex]
	if !ok {
		return "", b.linkNotFound(perrors.OpLinkProperties, ifindex)
	}
	if l.physPortID == "" {
		return "", perrors.Classify(perrors.OpLinkProperties, l.Name, unix.ENOENT)
	}
	return l.physPortID, nil
}

func (b *Backend) SupportsCarrierDetect(ifindex int) (bool, error) {
	l, ok := b.links[ifindex]
	if !ok {
		return false, b.linkNotFound(perrors.OpLinkProperties, ifindex)
	}
	return !l.noCarrierDetect, nil
}

func (b *Backend) SupportsVlans(ifindex int) (bool, error) {
	l, ok := b.links[ifindex]
	if !ok {
		return false, b.linkNotFound(perrors.OpLinkProperties, ifindex)
	}
	return etherFramed(l.Type) && !l.vlanChallenged, nil
}

// etherFramed reports whether links of type t carry ethernet headers
func etherFramed(t platform.LinkType) bool {
	switch t {
	case platform.LinkTypeInfiniband, platform.LinkTypeGeneric, platform.LinkTypeUnknown:
		return false
	}
	return hasLinkAddress(t)
}

func (b *Backend) typed(ifindex int, match func(*link) bool) (*link, error) {
	l, ok := b.links[ifindex]
	if !ok {
		return nil, b.linkNotFound(perrors.OpLinkProperties, ifindex)
	}
	if !match(l) {
		return nil, perrors.NewGenericError(perrors.OpLinkProperties, l.Name,
			fmt.Errorf("link of type %s has no such properties", l.Type))
	}
	return l, nil
}
