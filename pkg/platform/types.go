package platform

import (
	"fmt"
	"net"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"
)

type LinkType int

const (
	LinkTypeNone LinkType = iota
	LinkTypeUnknown
	LinkTypeGeneric
	LinkTypeLoopback
	LinkTypeEthernet
	LinkTypeInfiniband
	LinkTypeWifi
	LinkTypeDummy
	LinkTypeBridge
	LinkTypeBond
	LinkTypeTeam
	LinkTypeVlan
	LinkTypeVxlan
	LinkTypeVeth
	LinkTypeTun
	LinkTypeTap
	LinkTypeMacvlan
	LinkTypeMacvtap
	LinkTypeGre
	LinkTypeGretap
)

var linkTypeNames = map[LinkType]string{
	LinkTypeNone:       "none",
	LinkTypeUnknown:    "unknown",
	LinkTypeGeneric:    "generic",
	LinkTypeLoopback:   "loopback",
	LinkTypeEthernet:   "ethernet",
	LinkTypeInfiniband: "infiniband",
	LinkTypeWifi:       "wifi",
	LinkTypeDummy:      "dummy",
	LinkTypeBridge:     "bridge",
	LinkTypeBond:       "bond",
	LinkTypeTeam:       "team",
	LinkTypeVlan:       "vlan",
	LinkTypeVxlan:      "vxlan",
	LinkTypeVeth:       "veth",
	LinkTypeTun:        "tun",
	LinkTypeTap:        "tap",
	LinkTypeMacvlan:    "macvlan",
	LinkTypeMacvtap:    "macvtap",
	LinkTypeGre:        "gre",
	LinkTypeGretap:     "gretap",
}

// softwareLinkTypes never wait for device enumeration before they are exposed
var softwareLinkTypes = sets.New(
	LinkTypeLoopback,
	LinkTypeDummy,
	LinkTypeBridge,
	LinkTypeBond,
	LinkTypeTeam,
	LinkTypeVlan,
	LinkTypeVxlan,
	LinkTypeVeth,
	LinkTypeTun,
	LinkTypeTap,
	LinkTypeMacvlan,
	LinkTypeMacvtap,
	LinkTypeGre,
	LinkTypeGretap,
)

func (t LinkType) String() string {
	if name, ok := linkTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("linktype(%d)", int(t))
}

// ParseLinkType is the inverse of LinkType.String
func ParseLinkType(name string) (LinkType, error) {
	for t, n := range linkTypeNames {
		if n == name {
			return t, nil
		}
	}
	return LinkTypeNone, fmt.Errorf("unknown link type %q", name)
}

// SupportsSlaves reports whether links of this type can be a master
func (t LinkType) SupportsSlaves() bool {
	return t == LinkTypeBridge || t == LinkTypeBond || t == LinkTypeTeam
}

type (
	// Link is a network interface. Index is its only identity; Name may change.
	Link struct {
		Index        int
		Name         string
		Type         LinkType
		Kind         string
		Up           bool
		Connected    bool
		ARP          bool
		Master       int
		Parent       int
		MTU          int
		HardwareAddr net.HardwareAddr
		Driver       string
		UDI          string
	}

	// IP4Address lifetimes are seconds relative to Timestamp, which is on the
	// platform's monotonic scale. Timestamp is 0 only for permanent addresses.
	IP4Address struct {
		Index     int
		Address   net.IP
		Peer      net.IP
		Plen      int
		Timestamp uint32
		Lifetime  uint32
		Preferred uint32
		Flags     uint32
		Label     string
	}

	IP6Address struct {
		Index     int
		Address   net.IP
		Plen      int
		Timestamp uint32
		Lifetime  uint32
		Preferred uint32
		Flags     uint32
	}

	IP4Route struct {
		Index   int
		Network net.IP
		Plen    int
		Gateway net.IP
		Metric  uint32
		MSS     uint32
		Source  RouteSource
	}

	IP6Route struct {
		Index   int
		Network net.IP
		Plen    int
		Gateway net.IP
		Metric  uint32
		MSS     uint32
		Source  RouteSource
	}
)

// IsSoftware reports whether the link exists without backing hardware.
// Infiniband partitions ("ib0.8001") are software children of a hardware port.
func (l Link) IsSoftware() bool {
	if softwareLinkTypes.Has(l.Type) {
		return true
	}
	return l.Type == LinkTypeInfiniband && strings.Contains(l.Name, ".")
}

func (l Link) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d: %s: %s", l.Index, l.Name, l.Type)
	switch {
	case !l.Up:
		b.WriteString(" DOWN")
	case l.Connected:
		b.WriteString(" CONNECTED")
	default:
		b.WriteString(" DISCONNECTED")
	}
	if !l.ARP {
		b.WriteString(" noarp")
	}
	if l.Master != 0 {
		fmt.Fprintf(&b, " master %d", l.Master)
	}
	if l.Parent != 0 {
		fmt.Fprintf(&b, " parent %d", l.Parent)
	}
	fmt.Fprintf(&b, " mtu %d", l.MTU)
	if len(l.HardwareAddr) > 0 {
		fmt.Fprintf(&b, " link-address %s", l.HardwareAddr)
	}
	if l.Driver != "" {
		fmt.Fprintf(&b, " driver %s", l.Driver)
	}
	return b.String()
}

func (a IP4Address) String() string {
	s := fmt.Sprintf("%s/%d", a.Address, a.Plen)
	if a.Peer != nil && !a.Peer.Equal(a.Address) {
		s += " ptp " + a.Peer.String()
	}
	s += " " + formatLifetimes(a.Timestamp, a.Lifetime, a.Preferred)
	if a.Label != "" {
		s += " label " + a.Label
	}
	return fmt.Sprintf("%s dev %d", s, a.Index)
}

func (a IP6Address) String() string {
	return fmt.Sprintf("%s/%d %s flags 0x%x dev %d", a.Address, a.Plen,
		formatLifetimes(a.Timestamp, a.Lifetime, a.Preferred), a.Flags, a.Index)
}

func (r IP4Route) String() string {
	return formatRoute(r.Network, r.Plen, r.Gateway, r.Metric, r.MSS, r.Source, r.Index)
}

func (r IP6Route) String() string {
	return formatRoute(r.Network, r.Plen, r.Gateway, r.Metric, r.MSS, r.Source, r.Index)
}

func formatRoute(network net.IP, plen int, gw net.IP, metric, mss uint32, src RouteSource, ifindex int) string {
	s := fmt.Sprintf("%s/%d", network, plen)
	if gw != nil && !gw.IsUnspecified() {
		s += " via " + gw.String()
	}
	s += fmt.Sprintf(" dev %d metric %d", ifindex, metric)
	if mss != 0 {
		s += fmt.Sprintf(" mss %d", mss)
	}
	return s + " src " + src.String()
}

// RouteSource records who installed a route (the rtnetlink protocol tag)
type RouteSource int

const (
	RouteSourceUnknown RouteSource = iota
	RouteSourceKernel
	RouteSourceRedirect
	RouteSourceRA
	RouteSourceDHCP
	RouteSourceStatic
	RouteSourceUser
)

func (s RouteSource) String() string {
	switch s {
	case RouteSourceKernel:
		return "kernel"
	case RouteSourceRedirect:
		return "redirect"
	case RouteSourceRA:
		return "ra"
	case RouteSourceDHCP:
		return "dhcp"
	case RouteSourceStatic:
		return "static"
	case RouteSourceUser:
		return "user"
	default:
		return "unknown"
	}
}

// Address flags, as carried in IFA_FLAGS
const (
	AddressFlagSecondary      uint32 = 0x01
	AddressFlagNoDAD          uint32 = 0x02
	AddressFlagDeprecated     uint32 = 0x20
	AddressFlagTentative      uint32 = 0x40
	AddressFlagPermanent      uint32 = 0x80
	AddressFlagManageTempAddr uint32 = 0x100
	AddressFlagNoPrefixRoute  uint32 = 0x200
)

type (
	// VlanProperties carries the priority mappings as from -> to. Ingress
	// maps a VLAN header priority onto skb priorities, egress the reverse.
	VlanProperties struct {
		Parent     int
		ID         int
		IngressMap map[uint32]uint32
		EgressMap  map[uint32]uint32
	}

	VxlanProperties struct {
		Parent   int
		ID       int
		Group    net.IP
		Local    net.IP
		TOS      int
		TTL      int
		Learning bool
		Proxy    bool
		RSC      bool
		L2Miss   bool
		L3Miss   bool
		DstPort  int
		SrcMin   int
		SrcMax   int
	}

	TunProperties struct {
		Mode       string
		Owner      int
		Group      int
		NoPI       bool
		VnetHdr    bool
		MultiQueue bool
	}

	MacvlanProperties struct {
		Mode string
	}

	// GreProperties describes gre and gretap tunnels. Parent is the
	// underlying link the tunnel is bound to, or 0.
	GreProperties struct {
		Parent   int
		Local    net.IP
		Remote   net.IP
		IKey     uint32
		OKey     uint32
		TTL      int
		TOS      int
		PMtuDisc bool
	}
)

// InfinibandPartitionName is the name the kernel gives the IPoIB child of
// parent for pkey
func InfinibandPartitionName(parent string, pkey int) string {
	return fmt.Sprintf("%s.%04x", parent, pkey)
}
