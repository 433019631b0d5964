package kernel

import (
	"errors"
	"net"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	perrors "github.com/netcfgd/netcfgd/pkg/errors"
	"github.com/netcfgd/netcfgd/pkg/platform"
)

var (
	routeSources = map[netlink.RouteProtocol]platform.RouteSource{
		unix.RTPROT_KERNEL:   platform.RouteSourceKernel,
		unix.RTPROT_REDIRECT: platform.RouteSourceRedirect,
		unix.RTPROT_RA:       platform.RouteSourceRA,
		unix.RTPROT_DHCP:     platform.RouteSourceDHCP,
		unix.RTPROT_STATIC:   platform.RouteSourceStatic,
		unix.RTPROT_BOOT:     platform.RouteSourceUser,
	}

	mainTable = netlink.Route{Table: unix.RT_TABLE_MAIN}
)

func routeSource(proto netlink.RouteProtocol) platform.RouteSource {
	if src, ok := routeSources[proto]; ok {
		return src
	}
	return platform.RouteSourceUnknown
}

func routeProtocol(src platform.RouteSource) netlink.RouteProtocol {
	for proto, s := range routeSources {
		if s == src {
			return proto
		}
	}
	return unix.RTPROT_BOOT
}

// listRoutes dumps the main table of family, retrying interrupted dumps
func (b *Backend) listRoutes(family int, filter *netlink.Route, mask uint64) ([]netlink.Route, error) {
	var err error
	for range dumpAttempts {
		var routes []netlink.Route
		routes, err = b.handle.RouteListFiltered(family, filter, mask|netlink.RT_FILTER_TABLE)
		if err == nil {
			return routes, nil
		}
		if !errors.Is(err, netlink.ErrDumpInterrupted) {
			break
		}
	}
	return nil, classify(perrors.OpDump, "routes", err)
}

func toIP4Route(r netlink.Route) platform.IP4Route {
	network, plen := routeDestination(r)
	return platform.IP4Route{
		Index:   r.LinkIndex,
		Network: network.To4(),
		Plen:    plen,
		Gateway: gateway(r.Gw.To4()),
		Metric:  uint32(r.Priority),
		MSS:     uint32(r.AdvMSS),
		Source:  routeSource(r.Protocol),
	}
}

func toIP6Route(r netlink.Route) platform.IP6Route {
	network, plen := routeDestination(r)
	return platform.IP6Route{
		Index:   r.LinkIndex,
		Network: network.To16(),
		Plen:    plen,
		Gateway: gateway(r.Gw),
		Metric:  uint32(r.Priority),
		MSS:     uint32(r.AdvMSS),
		Source:  routeSource(r.Protocol),
	}
}

func gateway(ip net.IP) net.IP {
	if ip == nil || ip.IsUnspecified() {
		return nil
	}
	return ip
}

func (b *Backend) IP4Routes() ([]platform.IP4Route, error) {
	routes, err := b.listRoutes(netlink.FAMILY_V4, &mainTable, 0)
	if err != nil {
		return nil, err
	}
	result := make([]platform.IP4Route, 0, len(routes))
	for _, r := range routes {
		r.Family = unix.AF_INET
		if trackedRoute(r) {
			result = append(result, toIP4Route(r))
		}
	}
	return result, nil
}

func (b *Backend) IP6Routes() ([]platform.IP6Route, error) {
	routes, err := b.listRoutes(netlink.FAMILY_V6, &mainTable, 0)
	if err != nil {
		return nil, err
	}
	result := make([]platform.IP6Route, 0, len(routes))
	for _, r := range routes {
		r.Family = unix.AF_INET6
		if trackedRoute(r) {
			result = append(result, toIP6Route(r))
		}
	}
	return result, nil
}

func (b *Backend) IP4Route(key platform.IP4RouteKey) (platform.IP4Route, error) {
	routes, err := b.listRoutes(netlink.FAMILY_V4, keyFilter(key.Index, key.IP(), key.Plen, 32, key.Metric), keyFilterMask)
	if err != nil {
		return platform.IP4Route{}, err
	}
	for _, r := range routes {
		r.Family = unix.AF_INET
		if trackedRoute(r) {
			return toIP4Route(r), nil
		}
	}
	return platform.IP4Route{}, perrors.Classify(perrors.OpRouteGet, key.String(), unix.ESRCH)
}

func (b *Backend) IP6Route(key platform.IP6RouteKey) (platform.IP6Route, error) {
	routes, err := b.listRoutes(netlink.FAMILY_V6, keyFilter(key.Index, key.IP(), key.Plen, 128, key.Metric), keyFilterMask)
	if err != nil {
		return platform.IP6Route{}, err
	}
	for _, r := range routes {
		r.Family = unix.AF_INET6
		if trackedRoute(r) {
			return toIP6Route(r), nil
		}
	}
	return platform.IP6Route{}, perrors.Classify(perrors.OpRouteGet, key.String(), unix.ESRCH)
}

const keyFilterMask = netlink.RT_FILTER_OIF | netlink.RT_FILTER_DST | netlink.RT_FILTER_PRIORITY

func keyFilter(ifindex int, network net.IP, plen, bits int, metric uint32) *netlink.Route {
	return &netlink.Route{
		Table:     unix.RT_TABLE_MAIN,
		LinkIndex: ifindex,
		Dst:       &net.IPNet{IP: network, Mask: net.CIDRMask(plen, bits)},
		Priority:  int(metric),
	}
}

// AddIP4Route installs route, replacing a route to the same destination
// with the same metric
func (b *Backend) AddIP4Route(route platform.IP4Route) error {
	key := route.Key().(platform.IP4RouteKey)
	req := b.routeRequest(key.Index, key.IP(), key.Plen, 32, key.Metric, route.Gateway.To4(), route.MSS, route.Source)
	req.Family = netlink.FAMILY_V4
	return classify(perrors.OpRouteAdd, key.String(), b.handle.RouteReplace(req))
}

func (b *Backend) AddIP6Route(route platform.IP6Route) error {
	key := route.Key().(platform.IP6RouteKey)
	req := b.routeRequest(key.Index, key.IP(), key.Plen, 128, key.Metric, route.Gateway, route.MSS, route.Source)
	req.Family = netlink.FAMILY_V6
	return classify(perrors.OpRouteAdd, key.String(), b.handle.RouteReplace(req))
}

func (b *Backend) routeRequest(ifindex int, network net.IP, plen, bits int, metric uint32, gw net.IP, mss uint32,
	src platform.RouteSource) *netlink.Route {
	req := keyFilter(ifindex, network, plen, bits, metric)
	req.Protocol = routeProtocol(src)
	req.AdvMSS = int(mss)
	req.Scope = netlink.SCOPE_LINK
	if gw := gateway(gw); gw != nil {
		req.Gw = gw
		req.Scope = netlink.SCOPE_UNIVERSE
	}
	return req
}

func (b *Backend) DeleteIP4Route(key platform.IP4RouteKey) error {
	req := keyFilter(key.Index, key.IP(), key.Plen, 32, key.Metric)
	req.Family = netlink.FAMILY_V4
	return classify(perrors.OpRouteDelete, key.String(), b.handle.RouteDel(req))
}

func (b *Backend) DeleteIP6Route(key platform.IP6RouteKey) error {
	req := keyFilter(key.Index, key.IP(), key.Plen, 128, key.Metric)
	req.Family = netlink.FAMILY_V6
	return classify(perrors.OpRouteDelete, key.String(), b.handle.RouteDel(req))
}
