package fake

import (
	"cmp"
	"fmt"
	"net"
	"slices"

	"golang.org/x/sys/unix"

	"github.com/netcfgd/netcfgd/pkg/platform"
	perrors "github.com/netcfgd/netcfgd/pkg/errors"
)

type (
	addressObject[V any] interface {
		platform.Object
		WithLifetime(platform.Lifetime) V
	}

	// address is stored the way the kernel keeps it: lifetimes relative to
	// the moment of the last update, which is recorded in kernel time
	address[V addressObject[V]] struct {
		addr      V
		valid     uint32
		preferred uint32
		addedMs   int64
		updated   uint32
	}
)

func (b *Backend) newAddress(lifetime, preferred uint32) (valid, pref uint32, addedMs int64, updated uint32) {
	valid, pref = platform.RequestLifetimes(lifetime, preferred)
	return valid, pref, b.translator.KernelMillis(), b.translator.KernelCounter()
}

// materialize reports a as the kernel would right now. Expired addresses are gone.
func materialize[V addressObject[V]](b *Backend, a *address[V]) (V, bool) {
	elapsed := (b.translator.KernelMillis() - a.addedMs) / 1000
	raw := platform.RawLifetime{Valid: a.valid, Preferred: a.preferred, Updated: a.updated}
	if a.valid != platform.LifetimePermanent {
		if elapsed >= int64(a.valid) {
			var zero V
			return zero, false
		}
		raw.Valid = a.valid - uint32(elapsed)
	}
	if a.preferred != platform.LifetimePermanent {
		raw.Preferred = uint32(max(int64(a.preferred)-elapsed, 0))
	}
	return a.addr.WithLifetime(b.translator.Translate(raw)), true
}

func listAddresses[K comparable, V addressObject[V]](b *Backend, m map[K]*address[V]) []V {
	out := make([]V, 0, len(m))
	for _, a := range m {
		if v, ok := materialize(b, a); ok {
			out = append(out, v)
		}
	}
	sortObjects(out)
	return out
}

func sortObjects[V platform.Object](objs []V) {
	slices.SortFunc(objs, func(a, b V) int {
		return cmp.Or(cmp.Compare(a.Ifindex(), b.Ifindex()), cmp.Compare(a.Key().String(), b.Key().String()))
	})
}

func (b *Backend) IP4Addresses() ([]platform.IP4Address, error) {
	return listAddresses(b, b.ip4Addresses), nil
}

func (b *Backend) IP6Addresses() ([]platform.IP6Address, error) {
	return listAddresses(b, b.ip6Addresses), nil
}

func (b *Backend) IP4Address(key platform.IP4AddressKey) (platform.IP4Address, error) {
	if a, ok := b.ip4Addresses[key]; ok {
		if v, ok := materialize(b, a); ok {
			return v, nil
		}
	}
	return platform.IP4Address{}, perrors.Classify(perrors.OpAddressGet, key.String(), unix.EADDRNOTAVAIL)
}

func (b *Backend) IP6Address(key platform.IP6AddressKey) (platform.IP6Address, error) {
	if a, ok := b.ip6Addresses[key]; ok {
		if v, ok := materialize(b, a); ok {
			return v, nil
		}
	}
	return platform.IP6Address{}, perrors.Classify(perrors.OpAddressGet, key.String(), unix.EADDRNOTAVAIL)
}

// AddIP4Address adds or replaces addr. Unless IFA_F_NOPREFIXROUTE is set a
// prefix route is added along with it.
func (b *Backend) AddIP4Address(addr platform.IP4Address) error {
	key := addr.Key().(platform.IP4AddressKey)
	if _, ok := b.links[addr.Index]; !ok {
		return b.linkNotFound(perrors.OpAddressAdd, addr.Index)
	}
	if addr.Address.To4() == nil {
		return perrors.Classify(perrors.OpAddressAdd, key.String(), unix.EAFNOSUPPORT)
	}

	stored := addr.WithLifetime(platform.Lifetime{})
	stored.Address = key.IP()
	if stored.Peer != nil {
		stored.Peer = stored.Peer.To4()
	}
	a := &address[platform.IP4Address]{addr: stored}
	a.valid, a.preferred, a.addedMs, a.updated = b.newAddress(addr.Lifetime, addr.Preferred)
	b.ip4Addresses[key] = a
	b.notify(key)

	if addr.Plen < 32 && addr.Flags&platform.AddressFlagNoPrefixRoute == 0 {
		b.addPrefixRoute4(addr.Index, stored.Address, addr.Plen)
	}
	return nil
}

func (b *Backend) AddIP6Address(addr platform.IP6Address) error {
	key := addr.Key().(platform.IP6AddressKey)
	if _, ok := b.links[addr.Index]; !ok {
		return b.linkNotFound(perrors.OpAddressAdd, addr.Index)
	}
	if addr.Address.To4() != nil || addr.Address.To16() == nil {
		return perrors.Classify(perrors.OpAddressAdd, key.String(), unix.EAFNOSUPPORT)
	}

	stored := addr.WithLifetime(platform.Lifetime{})
	stored.Address = key.IP()
	a := &address[platform.IP6Address]{addr: stored}
	a.valid, a.preferred, a.addedMs, a.updated = b.newAddress(addr.Lifetime, addr.Preferred)
	b.ip6Addresses[key] = a
	b.notify(key)

	if addr.Plen < 128 && addr.Flags&platform.AddressFlagNoPrefixRoute == 0 {
		b.addPrefixRoute6(addr.Index, stored.Address, addr.Plen)
	}
	return nil
}

// DeleteIP4Address removes the address. Its prefix route disappears without
// a notification, as it does in the kernel.
func (b *Backend) DeleteIP4Address(key platform.IP4AddressKey) error {
	if _, ok := b.ip4Addresses[key]; !ok {
		return perrors.Classify(perrors.OpAddressDelete, key.String(), unix.EADDRNOTAVAIL)
	}
	delete(b.ip4Addresses, key)
	b.notify(key)

	prefix := platform.NewIP4RouteKey(key.Index, key.IP(), key.Plen, 0)
	for k := range b.ip4Addresses {
		if k.Index == key.Index && platform.NewIP4RouteKey(k.Index, k.IP(), k.Plen, 0) == prefix {
			return nil
		}
	}
	delete(b.ip4Routes, prefix)
	return nil
}

func (b *Backend) DeleteIP6Address(key platform.IP6AddressKey) error {
	if _, ok := b.ip6Addresses[key]; !ok {
		return perrors.Classify(perrors.OpAddressDelete, key.String(), unix.EADDRNOTAVAIL)
	}
	delete(b.ip6Addresses, key)
	b.notify(key)
	return nil
}

func (b *Backend) addPrefixRoute4(ifindex int, ip net.IP, plen int) {
	route := platform.IP4Route{
		Index:   ifindex,
		Network: platform.ClearHostBits(ip, plen),
		Plen:    plen,
		Source:  platform.RouteSourceKernel,
	}
	key := route.Key().(platform.IP4RouteKey)
	if _, ok := b.ip4Routes[key]; !ok {
		b.ip4Routes[key] = route
		b.notify(key)
	}
}

func (b *Backend) addPrefixRoute6(ifindex int, ip net.IP, plen int) {
	route := platform.IP6Route{
		Index:   ifindex,
		Network: platform.ClearHostBits(ip, plen),
		Plen:    plen,
		Metric:  256,
		Source:  platform.RouteSourceKernel,
	}
	key := route.Key().(platform.IP6RouteKey)
	if _, ok := b.ip6Routes[key]; !ok {
		b.ip6Routes[key] = route
		b.notify(key)
	}
}

// addLinkLocal gives a link that just got carrier its IPv6 link-local address
func (b *Backend) addLinkLocal(l *link) {
	if !b.linkLocal {
		return
	}
	ip := net.ParseIP(fmt.Sprintf("fe80::fa1e:%x:%x", l.Index>>16, l.Index&0xffff))
	key := platform.NewIP6AddressKey(l.Index, ip, 64)
	if _, ok := b.ip6Addresses[key]; ok {
		return
	}
	_ = b.AddIP6Address(platform.IP6Address{Index: l.Index, Address: ip, Plen: 64})
}

// dropObjectsOf removes everything on a deleted link. Address removals are
// announced, route removals are not.
func (b *Backend) dropObjectsOf(ifindex int) {
	for key := range b.ip4Addresses {
		if key.Index == ifindex {
			delete(b.ip4Addresses, key)
			b.notify(key)
		}
	}
	for key := range b.ip6Addresses {
		if key.Index == ifindex {
			delete(b.ip6Addresses, key)
			b.notify(key)
		}
	}
	for key := range b.ip4Routes {
		if key.Index == ifindex {
			delete(b.ip4Routes, key)
		}
	}
	for key := range b.ip6Routes {
		if key.Index == ifindex {
			delete(b.ip6Routes, key)
		}
	}
}
