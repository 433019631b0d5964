package kernel

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"sort"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/netcfgd/netcfgd/internal/middleware/logger"
	perrors "github.com/netcfgd/netcfgd/pkg/errors"
	"github.com/netcfgd/netcfgd/pkg/platform"
)

var macvlanModes = map[netlink.MacvlanMode]string{
	netlink.MACVLAN_MODE_DEFAULT:  "default",
	netlink.MACVLAN_MODE_PRIVATE:  "private",
	netlink.MACVLAN_MODE_VEPA:     "vepa",
	netlink.MACVLAN_MODE_BRIDGE:   "bridge",
	netlink.MACVLAN_MODE_PASSTHRU: "passthru",
	netlink.MACVLAN_MODE_SOURCE:   "source",
}

func (b *Backend) Links() ([]platform.Link, error) {
	links, err := b.handle.LinkList()
	if err != nil {
		return nil, classify(perrors.OpDump, "links", err)
	}
	result := make([]platform.Link, 0, len(links))
	for _, l := range links {
		result = append(result, b.toLink(l))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Index < result[j].Index })
	return result, nil
}

func (b *Backend) Link(ifindex int) (platform.Link, error) {
	l, err := b.linkByIndex(perrors.OpLinkGet, ifindex)
	if err != nil {
		return platform.Link{}, err
	}
	return b.toLink(l), nil
}

func (b *Backend) linkByIndex(op string, ifindex int) (netlink.Link, error) {
	l, err := b.handle.LinkByIndex(ifindex)
	if err != nil {
		return nil, classify(op, platform.LinkKey(ifindex).String(), err)
	}
	return l, nil
}

func (b *Backend) toLink(nl netlink.Link) platform.Link {
	attrs := nl.Attrs()
	l := platform.Link{
		Index:        attrs.Index,
		Name:         attrs.Name,
		Type:         b.linkType(nl),
		Kind:         nl.Type(),
		Up:           attrs.Flags&net.FlagUp != 0,
		Connected:    attrs.RawFlags&unix.IFF_LOWER_UP != 0,
		ARP:          attrs.RawFlags&unix.IFF_NOARP == 0,
		Master:       attrs.MasterIndex,
		MTU:          attrs.MTU,
		HardwareAddr: attrs.HardwareAddr,
	}
	// IFLA_LINK of a veth names its peer, which is not a parent
	if l.Type != platform.LinkTypeVeth {
		l.Parent = attrs.ParentIndex
	}
	if driver, err := b.ethtool.DriverName(attrs.Name); err == nil {
		l.Driver = driver
	} else {
		logger.FromContext(b.ctx).Tracef("No driver reported for %s: %v", attrs.Name, err)
	}
	return l
}

func (b *Backend) linkType(nl netlink.Link) platform.LinkType {
	switch l := nl.(type) {
	case *netlink.Device:
		switch l.EncapType {
		case "loopback":
			return platform.LinkTypeLoopback
		case "infiniband":
			return platform.LinkTypeInfiniband
		case "ether":
			if b.sysfs.isWireless(l.Name) {
				return platform.LinkTypeWifi
			}
			return platform.LinkTypeEthernet
		case "none":
			return platform.LinkTypeGeneric
		}
		return platform.LinkTypeUnknown
	case *netlink.Dummy:
		return platform.LinkTypeDummy
	case *netlink.Bridge:
		return platform.LinkTypeBridge
	case *netlink.Bond:
		return platform.LinkTypeBond
	case *netlink.Vlan:
		return platform.LinkTypeVlan
	case *netlink.Vxlan:
		return platform.LinkTypeVxlan
	case *netlink.Veth:
		return platform.LinkTypeVeth
	case *netlink.Macvtap:
		return platform.LinkTypeMacvtap
	case *netlink.Macvlan:
		return platform.LinkTypeMacvlan
	case *netlink.Tuntap:
		if l.Mode == netlink.TUNTAP_MODE_TAP {
			return platform.LinkTypeTap
		}
		return platform.LinkTypeTun
	case *netlink.Gretap:
		return platform.LinkTypeGretap
	case *netlink.Gretun:
		return platform.LinkTypeGre
	case *netlink.IPoIB:
		return platform.LinkTypeInfiniband
	case *netlink.GenericLink:
		if l.LinkType == "team" {
			return platform.LinkTypeTeam
		}
		return platform.LinkTypeGeneric
	default:
		return platform.LinkTypeUnknown
	}
}

// AddLink creates a link without type specific attributes
func (b *Backend) AddLink(name string, linkType platform.LinkType, hwaddr net.HardwareAddr) (int, error) {
	attrs := netlink.NewLinkAttrs()
	attrs.Name = name
	attrs.HardwareAddr = hwaddr

	var link netlink.Link
	switch linkType {
	case platform.LinkTypeDummy:
		link = &netlink.Dummy{LinkAttrs: attrs}
	case platform.LinkTypeBridge:
		link = &netlink.Bridge{LinkAttrs: attrs}
	case platform.LinkTypeBond:
		link = netlink.NewLinkBond(attrs)
	case platform.LinkTypeTeam:
		link = &netlink.GenericLink{LinkAttrs: attrs, LinkType: "team"}
	case platform.LinkTypeTun:
		link = &netlink.Tuntap{LinkAttrs: attrs, Mode: netlink.TUNTAP_MODE_TUN, Flags: netlink.TUNTAP_DEFAULTS}
	case platform.LinkTypeTap:
		link = &netlink.Tuntap{LinkAttrs: attrs, Mode: netlink.TUNTAP_MODE_TAP, Flags: netlink.TUNTAP_DEFAULTS}
	default:
		return 0, perrors.NewGenericError(perrors.OpLinkAdd, name,
			fmt.Errorf("links of type %s cannot be created", linkType))
	}
	return b.addLink(link)
}

func (b *Backend) AddVlan(name string, parent, id int) (int, error) {
	attrs := netlink.NewLinkAttrs()
	attrs.Name = name
	attrs.ParentIndex = parent
	return b.addLink(&netlink.Vlan{LinkAttrs: attrs, VlanId: id})
}

func (b *Backend) AddVeth(name, peer string) (int, error) {
	attrs := netlink.NewLinkAttrs()
	attrs.Name = name
	return b.addLink(&netlink.Veth{LinkAttrs: attrs, PeerName: peer})
}

// AddInfinibandPartition creates an IPoIB child over rtnetlink, the
// equivalent of writing pkey to the parent's create_child sysfs file
func (b *Backend) AddInfinibandPartition(name string, parent, pkey int) (int, error) {
	attrs := netlink.NewLinkAttrs()
	attrs.Name = name
	attrs.ParentIndex = parent
	return b.addLink(&netlink.IPoIB{LinkAttrs: attrs, Pkey: uint16(pkey), Mode: netlink.IPOIB_MODE_DATAGRAM})
}

// addLink creates link and resolves the ifindex the kernel assigned. When
// the name is taken the existing ifindex comes with the AlreadyExistsError.
func (b *Backend) addLink(link netlink.Link) (int, error) {
	name := link.Attrs().Name
	addErr := classify(perrors.OpLinkAdd, name, b.handle.LinkAdd(link))
	if addErr != nil && !perrors.IsAlreadyExists(addErr) {
		return 0, addErr
	}

	created, err := b.handle.LinkByName(name)
	if err != nil {
		if addErr != nil {
			return 0, addErr
		}
		return 0, classify(perrors.OpLinkAdd, name, err)
	}
	return created.Attrs().Index, addErr
}

func (b *Backend) DeleteLink(ifindex int) error {
	return b.withLink(perrors.OpLinkDelete, ifindex, b.handle.LinkDel)
}

func (b *Backend) SetLinkUp(ifindex int) error {
	return b.withLink(perrors.OpLinkSetUp, ifindex, b.handle.LinkSetUp)
}

func (b *Backend) SetLinkDown(ifindex int) error {
	return b.withLink(perrors.OpLinkSetDown, ifindex, b.handle.LinkSetDown)
}

func (b *Backend) SetLinkARP(ifindex int) error {
	return b.withLink(perrors.OpLinkSetARP, ifindex, b.handle.LinkSetARPOn)
}

func (b *Backend) SetLinkNoARP(ifindex int) error {
	return b.withLink(perrors.OpLinkSetARP, ifindex, b.handle.LinkSetARPOff)
}

func (b *Backend) SetLinkAddress(ifindex int, hwaddr net.HardwareAddr) error {
	return b.withLink(perrors.OpLinkSetAddress, ifindex, func(l netlink.Link) error {
		return b.handle.LinkSetHardwareAddr(l, hwaddr)
	})
}

func (b *Backend) SetLinkMTU(ifindex int, mtu int) error {
	return b.withLink(perrors.OpLinkSetMTU, ifindex, func(l netlink.Link) error {
		return b.handle.LinkSetMTU(l, mtu)
	})
}

func (b *Backend) Enslave(master, slave int) error {
	return b.withLink(perrors.OpLinkEnslave, slave, func(l netlink.Link) error {
		return b.handle.LinkSetMasterByIndex(l, master)
	})
}

// Release detaches slave, which must currently be enslaved to master
func (b *Backend) Release(master, slave int) error {
	return b.withLink(perrors.OpLinkRelease, slave, func(l netlink.Link) error {
		if l.Attrs().MasterIndex != master {
			return fmt.Errorf("%w: master is %d, not %d", unix.EINVAL, l.Attrs().MasterIndex, master)
		}
		return b.handle.LinkSetNoMaster(l)
	})
}

// withLink resolves ifindex and applies fn, classifying failures under op
func (b *Backend) withLink(op string, ifindex int, fn func(netlink.Link) error) error {
	l, err := b.linkByIndex(op, ifindex)
	if err != nil {
		return err
	}
	return classify(op, platform.LinkKey(ifindex).String(), fn(l))
}

func (b *Backend) VlanProperties(ifindex int) (platform.VlanProperties, error) {
	vlan, err := typedLink[*netlink.Vlan](b, ifindex)
	if err != nil {
		return platform.VlanProperties{}, err
	}
	return platform.VlanProperties{
		Parent:     vlan.ParentIndex,
		ID:         vlan.VlanId,
		IngressMap: vlan.IngressQosMap,
		EgressMap:  vlan.EgressQosMap,
	}, nil
}

func (b *Backend) SetVlanIngressMap(ifindex int, from, to uint32) error {
	return b.setVlanQos(ifindex, func(v *netlink.Vlan) { v.IngressQosMap = map[uint32]uint32{from: to} })
}

func (b *Backend) SetVlanEgressMap(ifindex int, from, to uint32) error {
	return b.setVlanQos(ifindex, func(v *netlink.Vlan) { v.EgressQosMap = map[uint32]uint32{from: to} })
}

// setVlanQos sends an RTM_NEWLINK for an existing vlan that only carries
// the mapping set by fn. The kernel merges it into the current maps.
func (b *Backend) setVlanQos(ifindex int, fn func(*netlink.Vlan)) error {
	key := platform.LinkKey(ifindex).String()
	l, err := b.linkByIndex(perrors.OpLinkSetVlanMap, ifindex)
	if err != nil {
		return err
	}
	vlan, ok := l.(*netlink.Vlan)
	if !ok {
		return perrors.NewGenericError(perrors.OpLinkSetVlanMap, key, fmt.Errorf("link is of kind %s", l.Type()))
	}

	change := &netlink.Vlan{
		LinkAttrs: netlink.LinkAttrs{
			Index:       vlan.Index,
			Name:        vlan.Name,
			ParentIndex: vlan.ParentIndex,
			TxQLen:      -1,
		},
		VlanId: vlan.VlanId,
	}
	fn(change)
	return classify(perrors.OpLinkSetVlanMap, key, b.handle.LinkModify(change))
}

func (b *Backend) VxlanProperties(ifindex int) (platform.VxlanProperties, error) {
	vxlan, err := typedLink[*netlink.Vxlan](b, ifindex)
	if err != nil {
		return platform.VxlanProperties{}, err
	}
	return platform.VxlanProperties{
		Parent:   vxlan.VtepDevIndex,
		ID:       vxlan.VxlanId,
		Group:    vxlan.Group,
		Local:    vxlan.SrcAddr,
		TOS:      vxlan.TOS,
		TTL:      vxlan.TTL,
		Learning: vxlan.Learning,
		Proxy:    vxlan.Proxy,
		RSC:      vxlan.RSC,
		L2Miss:   vxlan.L2miss,
		L3Miss:   vxlan.L3miss,
		DstPort:  vxlan.Port,
		SrcMin:   vxlan.PortLow,
		SrcMax:   vxlan.PortHigh,
	}, nil
}

func (b *Backend) TunProperties(ifindex int) (platform.TunProperties, error) {
	tun, err := typedLink[*netlink.Tuntap](b, ifindex)
	if err != nil {
		return platform.TunProperties{}, err
	}
	mode := "tun"
	if tun.Mode == netlink.TUNTAP_MODE_TAP {
		mode = "tap"
	}
	return platform.TunProperties{
		Mode:       mode,
		Owner:      int(tun.Owner),
		Group:      int(tun.Group),
		NoPI:       tun.Flags&netlink.TUNTAP_NO_PI != 0,
		VnetHdr:    tun.Flags&netlink.TUNTAP_VNET_HDR != 0,
		MultiQueue: tun.Flags&netlink.TUNTAP_MULTI_QUEUE != 0,
	}, nil
}

func (b *Backend) MacvlanProperties(ifindex int) (platform.MacvlanProperties, error) {
	l, err := b.linkByIndex(perrors.OpLinkProperties, ifindex)
	if err != nil {
		return platform.MacvlanProperties{}, err
	}
	var mode netlink.MacvlanMode
	switch m := l.(type) {
	case *netlink.Macvlan:
		mode = m.Mode
	case *netlink.Macvtap:
		mode = m.Mode
	default:
		return platform.MacvlanProperties{}, wrongType(ifindex, l)
	}
	return platform.MacvlanProperties{Mode: macvlanModes[mode]}, nil
}

func (b *Backend) GreProperties(ifindex int) (platform.GreProperties, error) {
	l, err := b.linkByIndex(perrors.OpLinkProperties, ifindex)
	if err != nil {
		return platform.GreProperties{}, err
	}
	switch gre := l.(type) {
	case *netlink.Gretun:
		return platform.GreProperties{
			Parent:   int(gre.Link),
			Local:    gre.Local,
			Remote:   gre.Remote,
			IKey:     gre.IKey,
			OKey:     gre.OKey,
			TTL:      int(gre.Ttl),
			TOS:      int(gre.Tos),
			PMtuDisc: gre.PMtuDisc != 0,
		}, nil
	case *netlink.Gretap:
		return platform.GreProperties{
			Parent:   int(gre.Link),
			Local:    gre.Local,
			Remote:   gre.Remote,
			IKey:     gre.IKey,
			OKey:     gre.OKey,
			TTL:      int(gre.Ttl),
			TOS:      int(gre.Tos),
			PMtuDisc: gre.PMtuDisc != 0,
		}, nil
	}
	return platform.GreProperties{}, wrongType(ifindex, l)
}

// VethPeer reads the peer ifindex from the veth driver statistics, falling
// back to IFLA_LINK when ethtool is unavailable
func (b *Backend) VethPeer(ifindex int) (int, error) {
	veth, err := typedLink[*netlink.Veth](b, ifindex)
	if err != nil {
		return 0, err
	}
	stats, err := b.ethtool.Stats(veth.Name)
	if err == nil {
		if peer, ok := stats["peer_ifindex"]; ok && peer != 0 {
			return int(peer), nil
		}
	}
	if veth.ParentIndex != 0 {
		return veth.ParentIndex, nil
	}
	return 0, perrors.NewNotFoundError(perrors.OpLinkProperties, platform.LinkKey(ifindex).String(),
		fmt.Errorf("peer of %s unknown", veth.Name))
}

func (b *Backend) PermanentAddress(ifindex int) (net.HardwareAddr, error) {
	l, err := b.linkByIndex(perrors.OpLinkProperties, ifindex)
	if err != nil {
		return nil, err
	}
	key := platform.LinkKey(ifindex).String()
	if addr := l.Attrs().PermHWAddr; len(addr) > 0 && !isZero(addr) {
		return addr, nil
	}

	raw, err := b.ethtool.PermAddr(l.Attrs().Name)
	if err != nil {
		return nil, classify(perrors.OpLinkProperties, key, err)
	}
	addr, err := net.ParseMAC(raw)
	if err != nil || isZero(addr) {
		return nil, perrors.NewNotFoundError(perrors.OpLinkProperties, key,
			fmt.Errorf("%s has no permanent address", l.Attrs().Name))
	}
	return addr, nil
}

func (b *Backend) PhysicalPortID(ifindex int) (string, error) {
	l, err := b.linkByIndex(perrors.OpLinkProperties, ifindex)
	if err != nil {
		return "", err
	}
	return b.sysfs.physPortID(ifindex, l.Attrs().Name)
}

// SupportsCarrierDetect reports whether the driver answers ETHTOOL_GLINK
func (b *Backend) SupportsCarrierDetect(ifindex int) (bool, error) {
	l, err := b.linkByIndex(perrors.OpLinkProperties, ifindex)
	if err != nil {
		return false, err
	}
	_, err = b.ethtool.LinkState(l.Attrs().Name)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, unix.EOPNOTSUPP), errors.Is(err, unix.EINVAL):
		return false, nil
	}
	return false, classify(perrors.OpLinkProperties, platform.LinkKey(ifindex).String(), err)
}

// SupportsVlans requires an ethernet framed link whose driver does not
// declare itself vlan-challenged
func (b *Backend) SupportsVlans(ifindex int) (bool, error) {
	l, err := b.linkByIndex(perrors.OpLinkProperties, ifindex)
	if err != nil {
		return false, err
	}
	attrs := l.Attrs()
	if attrs.EncapType != "ether" {
		return false, nil
	}
	features, err := b.ethtool.Features(attrs.Name)
	if err != nil {
		logger.FromContext(b.ctx).Tracef("No ethtool features for %s: %v", attrs.Name, err)
		return false, nil
	}
	return !features["vlan-challenged"], nil
}

func typedLink[T netlink.Link](b *Backend, ifindex int) (T, error) {
	var zero T
	l, err := b.linkByIndex(perrors.OpLinkProperties, ifindex)
	if err != nil {
		return zero, err
	}
	typed, ok := l.(T)
	if !ok {
		return zero, wrongType(ifindex, l)
	}
	return typed, nil
}

func wrongType(ifindex int, l netlink.Link) error {
	return perrors.NewGenericError(perrors.OpLinkProperties, platform.LinkKey(ifindex).String(),
		fmt.Errorf("link is of kind %s", l.Type()))
}

func isZero(addr []byte) bool {
	return len(bytes.Trim(addr, "\x00")) == 0
}
