package platform

import (
	"fmt"
	"net"
	"net/netip"
)

type ObjectType int

const (
	ObjectTypeLink ObjectType = iota + 1
	ObjectTypeIP4Address
	ObjectTypeIP6Address
	ObjectTypeIP4Route
	ObjectTypeIP6Route
)

func (t ObjectType) String() string {
	switch t {
	case ObjectTypeLink:
		return "link"
	case ObjectTypeIP4Address:
		return "ip4-address"
	case ObjectTypeIP6Address:
		return "ip6-address"
	case ObjectTypeIP4Route:
		return "ip4-route"
	case ObjectTypeIP6Route:
		return "ip6-route"
	default:
		return fmt.Sprintf("object(%d)", int(t))
	}
}

type (
	// Object is one of Link, IP4Address, IP6Address, IP4Route or IP6Route
	Object interface {
		ObjectType() ObjectType
		Ifindex() int
		Key() Key
		object()
	}

	// Key identifies an Object within its cache
	Key interface {
		ObjectType() ObjectType
		Ifindex() int
		String() string
	}

	LinkKey int

	IP4AddressKey struct {
		Index   int
		Address netip.Addr
		Plen    int
	}

	IP6AddressKey struct {
		Index   int
		Address netip.Addr
		Plen    int
	}

	IP4RouteKey struct {
		Index   int
		Network netip.Addr
		Plen    int
		Metric  uint32
	}

	IP6RouteKey struct {
		Index   int
		Network netip.Addr
		Plen    int
		Metric  uint32
	}
)

func (Link) ObjectType() ObjectType       { return ObjectTypeLink }
func (IP4Address) ObjectType() ObjectType { return ObjectTypeIP4Address }
func (IP6Address) ObjectType() ObjectType { return ObjectTypeIP6Address }
func (IP4Route) ObjectType() ObjectType   { return ObjectTypeIP4Route }
func (IP6Route) ObjectType() ObjectType   { return ObjectTypeIP6Route }

func (l Link) Ifindex() int       { return l.Index }
func (a IP4Address) Ifindex() int { return a.Index }
func (a IP6Address) Ifindex() int { return a.Index }
func (r IP4Route) Ifindex() int   { return r.Index }
func (r IP6Route) Ifindex() int   { return r.Index }

func (Link) object()       {}
func (IP4Address) object() {}
func (IP6Address) object() {}
func (IP4Route) object()   {}
func (IP6Route) object()   {}

func (l Link) Key() Key { return LinkKey(l.Index) }

func (a IP4Address) Key() Key {
	return IP4AddressKey{Index: a.Index, Address: addrOf(a.Address), Plen: a.Plen}
}

func (a IP6Address) Key() Key {
	return IP6AddressKey{Index: a.Index, Address: addrOf(a.Address), Plen: a.Plen}
}

func (r IP4Route) Key() Key {
	return NewIP4RouteKey(r.Index, r.Network, r.Plen, r.Metric)
}

func (r IP6Route) Key() Key {
	return NewIP6RouteKey(r.Index, r.Network, r.Plen, r.Metric)
}

func (LinkKey) ObjectType() ObjectType       { return ObjectTypeLink }
func (IP4AddressKey) ObjectType() ObjectType { return ObjectTypeIP4Address }
func (IP6AddressKey) ObjectType() ObjectType { return ObjectTypeIP6Address }
func (IP4RouteKey) ObjectType() ObjectType   { return ObjectTypeIP4Route }
func (IP6RouteKey) ObjectType() ObjectType   { return ObjectTypeIP6Route }

func (k LinkKey) Ifindex() int       { return int(k) }
func (k IP4AddressKey) Ifindex() int { return k.Index }
func (k IP6AddressKey) Ifindex() int { return k.Index }
func (k IP4RouteKey) Ifindex() int   { return k.Index }
func (k IP6RouteKey) Ifindex() int   { return k.Index }

func (k LinkKey) String() string { return fmt.Sprintf("ifindex %d", int(k)) }

func (k IP4AddressKey) String() string {
	return fmt.Sprintf("%s/%d dev %d", k.Address, k.Plen, k.Index)
}

func (k IP6AddressKey) String() string {
	return fmt.Sprintf("%s/%d dev %d", k.Address, k.Plen, k.Index)
}

func (k IP4RouteKey) String() string {
	return fmt.Sprintf("%s/%d dev %d metric %d", k.Network, k.Plen, k.Index, k.Metric)
}

func (k IP6RouteKey) String() string {
	return fmt.Sprintf("%s/%d dev %d metric %d", k.Network, k.Plen, k.Index, k.Metric)
}

// IP returns the key address in the net.IP form used by backends
func (k IP4AddressKey) IP() net.IP { return net.IP(k.Address.AsSlice()) }
func (k IP6AddressKey) IP() net.IP { return net.IP(k.Address.AsSlice()) }
func (k IP4RouteKey) IP() net.IP   { return net.IP(k.Network.AsSlice()) }
func (k IP6RouteKey) IP() net.IP   { return net.IP(k.Network.AsSlice()) }

// NewIP4AddressKey builds the key for address/plen on ifindex
func NewIP4AddressKey(ifindex int, address net.IP, plen int) IP4AddressKey {
	return IP4AddressKey{Index: ifindex, Address: addrOf(address), Plen: plen}
}

func NewIP6AddressKey(ifindex int, address net.IP, plen int) IP6AddressKey {
	return IP6AddressKey{Index: ifindex, Address: addrOf(address), Plen: plen}
}

// NewIP4RouteKey masks network down to plen. A nil network is the default route.
func NewIP4RouteKey(ifindex int, network net.IP, plen int, metric uint32) IP4RouteKey {
	if network == nil {
		network = net.IPv4zero
	}
	return IP4RouteKey{Index: ifindex, Network: addrOf(ClearHostBits(network, plen)), Plen: plen, Metric: metric}
}

func NewIP6RouteKey(ifindex int, network net.IP, plen int, metric uint32) IP6RouteKey {
	if network == nil {
		network = net.IPv6zero
	}
	return IP6RouteKey{Index: ifindex, Network: addrOf(ClearHostBits(network, plen)), Plen: plen, Metric: NormalizeIP6Metric(metric)}
}

// NormalizeIP6Metric maps metric 0 to the value the kernel substitutes for it
func NormalizeIP6Metric(metric uint32) uint32 {
	if metric == 0 {
		return 1024
	}
	return metric
}

// ClearHostBits returns ip with every bit past plen zeroed
func ClearHostBits(ip net.IP, plen int) net.IP {
	if v4 := ip.To4(); v4 != nil {
		return v4.Mask(net.CIDRMask(plen, 32))
	}
	return ip.To16().Mask(net.CIDRMask(plen, 128))
}

func addrOf(ip net.IP) netip.Addr {
	if v4 := ip.To4(); v4 != nil {
		return netip.AddrFrom4([4]byte(v4))
	}
	addr, _ := netip.AddrFromSlice(ip)
	return addr
}
