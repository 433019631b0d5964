package kernel

import (
	"errors"
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netlink/nl"
	"golang.org/x/sys/unix"

	perrors "github.com/netcfgd/netcfgd/pkg/errors"
	"github.com/netcfgd/netcfgd/pkg/platform"
)

// dumpAttempts bounds the retries of a dump the kernel reported as
// interrupted by a concurrent change
const dumpAttempts = 3

type addressDumper struct{}

func (addressDumper) DumpAddresses(family int) ([][]byte, error) {
	var err error
	for range dumpAttempts {
		req := nl.NewNetlinkRequest(unix.RTM_GETADDR, unix.NLM_F_DUMP)
		req.AddData(nl.NewIfAddrmsg(family))

		var msgs [][]byte
		msgs, err = req.Execute(unix.NETLINK_ROUTE, unix.RTM_NEWADDR)
		if err == nil {
			return msgs, nil
		}
		if !errors.Is(err, netlink.ErrDumpInterrupted) {
			return nil, err
		}
	}
	return nil, err
}

// rawAddress is an RTM_NEWADDR message with the attributes the platform needs
type rawAddress struct {
	family    int
	index     int
	prefixlen int
	flags     uint32
	local     net.IP
	address   net.IP
	label     string
	lifetime  platform.RawLifetime
}

func parseAddressMessage(m []byte) (rawAddress, error) {
	if len(m) < unix.SizeofIfAddrmsg {
		return rawAddress{}, fmt.Errorf("address message too short: %d bytes", len(m))
	}
	msg := nl.DeserializeIfAddrmsg(m)
	attrs, err := nl.ParseRouteAttr(m[msg.Len():])
	if err != nil {
		return rawAddress{}, err
	}

	raw := rawAddress{
		family:    int(msg.Family),
		index:     int(msg.Index),
		prefixlen: int(msg.Prefixlen),
		flags:     uint32(msg.Flags),
		lifetime: platform.RawLifetime{
			Valid:     platform.LifetimePermanent,
			Preferred: platform.LifetimePermanent,
		},
	}
	for _, attr := range attrs {
		switch attr.Attr.Type {
		case unix.IFA_ADDRESS:
			raw.address = net.IP(attr.Value)
		case unix.IFA_LOCAL:
			raw.local = net.IP(attr.Value)
		case unix.IFA_LABEL:
			raw.label = string(attr.Value[:max(len(attr.Value)-1, 0)])
		case unix.IFA_FLAGS:
			if len(attr.Value) >= 4 {
				raw.flags = nl.NativeEndian().Uint32(attr.Value[0:4])
			}
		case unix.IFA_CACHEINFO:
			if len(attr.Value) >= unix.SizeofIfaCacheinfo {
				ci := nl.DeserializeIfaCacheInfo(attr.Value)
				raw.lifetime = platform.RawLifetime{
					Valid:     ci.Valid,
					Preferred: ci.Prefered,
					Updated:   ci.Tstamp,
				}
			}
		}
	}
	if raw.local == nil && raw.address == nil {
		return rawAddress{}, fmt.Errorf("address message for ifindex %d carries no address", raw.index)
	}
	return raw, nil
}

// ip is the address assigned to the interface: IFA_LOCAL when present,
// IFA_ADDRESS carrying the peer in that case
func (r rawAddress) ip() net.IP {
	if r.local != nil {
		return r.local
	}
	return r.address
}

func (r rawAddress) peer() net.IP {
	if r.local != nil && r.address != nil && !r.local.Equal(r.address) {
		return r.address
	}
	return nil
}

func (b *Backend) toIP4Address(r rawAddress) platform.IP4Address {
	addr := platform.IP4Address{
		Index:   r.index,
		Address: r.ip().To4(),
		Plen:    r.prefixlen,
		Flags:   r.flags,
		Label:   r.label,
	}
	if peer := r.peer(); peer != nil {
		addr.Peer = peer.To4()
	}
	return addr.WithLifetime(b.translator.Translate(r.lifetime))
}

func (b *Backend) toIP6Address(r rawAddress) platform.IP6Address {
	addr := platform.IP6Address{
		Index:   r.index,
		Address: r.ip().To16(),
		Plen:    r.prefixlen,
		Flags:   r.flags,
	}
	return addr.WithLifetime(b.translator.Translate(r.lifetime))
}

func (b *Backend) dumpAddresses(family int) ([]rawAddress, error) {
	msgs, err := b.dumper.DumpAddresses(family)
	if err != nil {
		return nil, classify(perrors.OpDump, "addresses", err)
	}
	result := make([]rawAddress, 0, len(msgs))
	for _, m := range msgs {
		raw, err := parseAddressMessage(m)
		if err != nil {
			return nil, perrors.NewGenericError(perrors.OpDump, "addresses", err)
		}
		if raw.family != family {
			continue
		}
		result = append(result, raw)
	}
	return result, nil
}

func (b *Backend) IP4Addresses() ([]platform.IP4Address, error) {
	raws, err := b.dumpAddresses(unix.AF_INET)
	if err != nil {
		return nil, err
	}
	result := make([]platform.IP4Address, 0, len(raws))
	for _, r := range raws {
		result = append(result, b.toIP4Address(r))
	}
	return result, nil
}

func (b *Backend) IP6Addresses() ([]platform.IP6Address, error) {
	raws, err := b.dumpAddresses(unix.AF_INET6)
	if err != nil {
		return nil, err
	}
	result := make([]platform.IP6Address, 0, len(raws))
	for _, r := range raws {
		result = append(result, b.toIP6Address(r))
	}
	return result, nil
}

func (b *Backend) IP4Address(key platform.IP4AddressKey) (platform.IP4Address, error) {
	addrs, err := b.IP4Addresses()
	if err != nil {
		return platform.IP4Address{}, err
	}
	for _, a := range addrs {
		if a.Key() == key {
			return a, nil
		}
	}
	return platform.IP4Address{}, perrors.Classify(perrors.OpAddressGet, key.String(), unix.EADDRNOTAVAIL)
}

func (b *Backend) IP6Address(key platform.IP6AddressKey) (platform.IP6Address, error) {
	addrs, err := b.IP6Addresses()
	if err != nil {
		return platform.IP6Address{}, err
	}
	for _, a := range addrs {
		if a.Key() == key {
			return a, nil
		}
	}
	return platform.IP6Address{}, perrors.Classify(perrors.OpAddressGet, key.String(), unix.EADDRNOTAVAIL)
}

// AddIP4Address installs or replaces addr. Lifetime and Preferred count
// seconds from now; a zero Lifetime is permanent.
func (b *Backend) AddIP4Address(addr platform.IP4Address) error {
	key := addr.Key().(platform.IP4AddressKey)
	if addr.Address.To4() == nil {
		return perrors.Classify(perrors.OpAddressAdd, key.String(), unix.EAFNOSUPPORT)
	}
	req := &netlink.Addr{
		IPNet:     &net.IPNet{IP: addr.Address.To4(), Mask: net.CIDRMask(addr.Plen, 32)},
		LinkIndex: addr.Index,
		Label:     addr.Label,
		Flags:     int(addr.Flags),
	}
	if addr.Peer != nil && !addr.Peer.Equal(addr.Address) {
		req.IPNet.Mask = net.CIDRMask(32, 32)
		req.Peer = &net.IPNet{IP: addr.Peer.To4(), Mask: net.CIDRMask(addr.Plen, 32)}
	}
	setLifetimes(req, addr.Lifetime, addr.Preferred)
	return classify(perrors.OpAddressAdd, key.String(), b.handle.AddrReplace(nil, req))
}

func (b *Backend) AddIP6Address(addr platform.IP6Address) error {
	key := addr.Key().(platform.IP6AddressKey)
	if addr.Address.To4() != nil || addr.Address.To16() == nil {
		return perrors.Classify(perrors.OpAddressAdd, key.String(), unix.EAFNOSUPPORT)
	}
	req := &netlink.Addr{
		IPNet:     &net.IPNet{IP: addr.Address.To16(), Mask: net.CIDRMask(addr.Plen, 128)},
		LinkIndex: addr.Index,
		Flags:     int(addr.Flags),
	}
	setLifetimes(req, addr.Lifetime, addr.Preferred)
	return classify(perrors.OpAddressAdd, key.String(), b.handle.AddrReplace(nil, req))
}

func setLifetimes(req *netlink.Addr, lifetime, preferred uint32) {
	valid, pref := platform.RequestLifetimes(lifetime, preferred)
	req.ValidLft = int(valid)
	req.PreferedLft = int(pref)
}

// DeleteIP4Address looks the address up first: a point-to-point address is
// only matched by the kernel when its peer is given too
func (b *Backend) DeleteIP4Address(key platform.IP4AddressKey) error {
	current, err := b.IP4Address(key)
	if err != nil {
		return err
	}
	req := &netlink.Addr{
		IPNet:     &net.IPNet{IP: key.IP(), Mask: net.CIDRMask(key.Plen, 32)},
		LinkIndex: key.Index,
	}
	if current.Peer != nil {
		req.IPNet.Mask = net.CIDRMask(32, 32)
		req.Peer = &net.IPNet{IP: current.Peer, Mask: net.CIDRMask(key.Plen, 32)}
	}
	return classify(perrors.OpAddressDelete, key.String(), b.handle.AddrDel(nil, req))
}

func (b *Backend) DeleteIP6Address(key platform.IP6AddressKey) error {
	req := &netlink.Addr{
		IPNet:     &net.IPNet{IP: key.IP(), Mask: net.CIDRMask(key.Plen, 128)},
		LinkIndex: key.Index,
	}
	return classify(perrors.OpAddressDelete, key.String(), b.handle.AddrDel(nil, req))
}
