package fake

import (
	"net"

	"golang.org/x/sys/unix"

	"github.com/netcfgd/netcfgd/pkg/platform"
	perrors "github.com/netcfgd/netcfgd/pkg/errors"
)

func (b *Backend) IP4Routes() ([]platform.IP4Route, error) {
	return listRoutes(b.ip4Routes), nil
}

func (b *Backend) IP6Routes() ([]platform.IP6Route, error) {
	return listRoutes(b.ip6Routes), nil
}

func listRoutes[K comparable, V platform.Object](m map[K]V) []V {
	out := make([]V, 0, len(m))
	for _, r := range m {
		out = append(out, r)
	}
	sortObjects(out)
	return out
}

func (b *Backend) IP4Route(key platform.IP4RouteKey) (platform.IP4Route, error) {
	if r, ok := b.ip4Routes[key]; ok {
		return r, nil
	}
	return platform.IP4Route{}, perrors.Classify(perrors.OpRouteGet, key.String(), unix.ESRCH)
}

func (b *Backend) IP6Route(key platform.IP6RouteKey) (platform.IP6Route, error) {
	if r, ok := b.ip6Routes[key]; ok {
		return r, nil
	}
	return platform.IP6Route{}, perrors.Classify(perrors.OpRouteGet, key.String(), unix.ESRCH)
}

// AddIP4Route adds or replaces route. A gateway must be reachable through a
// direct route on the same link; a route to the same destination and metric
// on another link is replaced.
func (b *Backend) AddIP4Route(route platform.IP4Route) error {
	key := route.Key().(platform.IP4RouteKey)
	if _, ok := b.links[route.Index]; !ok {
		return b.linkNotFound(perrors.OpRouteAdd, route.Index)
	}
	route.Network = key.IP()
	if hasGateway(route.Gateway) && !b.onLink4(route.Index, route.Gateway) {
		return perrors.Classify(perrors.OpRouteAdd, key.String(), unix.ENETUNREACH)
	}

	for k := range b.ip4Routes {
		if k.Index != key.Index && k.Network == key.Network && k.Plen == key.Plen && k.Metric == key.Metric {
			delete(b.ip4Routes, k)
			b.notify(k)
		}
	}
	b.ip4Routes[key] = route
	b.notify(key)
	return nil
}

func (b *Backend) AddIP6Route(route platform.IP6Route) error {
	key := route.Key().(platform.IP6RouteKey)
	if _, ok := b.links[route.Index]; !ok {
		return b.linkNotFound(perrors.OpRouteAdd, route.Index)
	}
	route.Network = key.IP()
	route.Metric = key.Metric
	if hasGateway(route.Gateway) && !route.Gateway.IsLinkLocalUnicast() && !b.onLink6(route.Index, route.Gateway) {
		return perrors.Classify(perrors.OpRouteAdd, key.String(), unix.ENETUNREACH)
	}

	for k := range b.ip6Routes {
		if k.Index != key.Index && k.Network == key.Network && k.Plen == key.Plen && k.Metric == key.Metric {
			delete(b.ip6Routes, k)
			b.notify(k)
		}
	}
	b.ip6Routes[key] = route
	b.notify(key)
	return nil
}

func (b *Backend) DeleteIP4Route(key platform.IP4RouteKey) error {
	if _, ok := b.ip4Routes[key]; !ok {
		return perrors.Classify(perrors.OpRouteDelete, key.String(), unix.ESRCH)
	}
	delete(b.ip4Routes, key)
	b.notify(key)
	return nil
}

func (b *Backend) DeleteIP6Route(key platform.IP6RouteKey) error {
	if _, ok := b.ip6Routes[key]; !ok {
		return perrors.Classify(perrors.OpRouteDelete, key.String(), unix.ESRCH)
	}
	delete(b.ip6Routes, key)
	b.notify(key)
	return nil
}

func (b *Backend) onLink4(ifindex int, gw net.IP) bool {
	for _, r := range b.ip4Routes {
		if r.Index == ifindex && !hasGateway(r.Gateway) && contains(r.Network, r.Plen, 32, gw) {
			return true
		}
	}
	return false
}

func (b *Backend) onLink6(ifindex int, gw net.IP) bool {
	for _, r := range b.ip6Routes {
		if r.Index == ifindex && !hasGateway(r.Gateway) && contains(r.Network, r.Plen, 128, gw) {
			return true
		}
	}
	return false
}

// flushRoutes drops the IPv4 routes of a link that lost carrier without
// notifying, like the kernel
func (b *Backend) flushRoutes(ifindex int) {
	for key := range b.ip4Routes {
		if key.Index == ifindex {
			delete(b.ip4Routes, key)
		}
	}
}

func hasGateway(gw net.IP) bool {
	return gw != nil && !gw.IsUnspecified()
}

func contains(network net.IP, plen, bits int, ip net.IP) bool {
	n := net.IPNet{IP: network, Mask: net.CIDRMask(plen, bits)}
	return n.Contains(ip)
}
