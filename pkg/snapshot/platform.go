package snapshot

import (
	"context"
	"errors"
	"net"

	perrors "github.com/netcfgd/netcfgd/pkg/errors"
	"github.com/netcfgd/netcfgd/pkg/platform"
)

var _ Source = (*PlatformSource)(nil)

// PlatformSource reads the cache of a Platform from its event loop, so a
// snapshot never observes a half applied reconciliation
type PlatformSource struct {
	platform *platform.Platform
}

func NewPlatformSource(p *platform.Platform) *PlatformSource {
	return &PlatformSource{platform: p}
}

func (s *PlatformSource) Links(ctx context.Context, ifindex int) ([]Link, error) {
	var out []Link
	err := s.platform.Do(ctx, func(p *platform.Platform) error {
		if ifindex != 0 {
			l, ok := p.Link(ifindex)
			if !ok {
				return linkNotFound(ifindex)
			}
			out = []Link{FromLink(l)}
			return nil
		}
		for _, l := range p.Links() {
			out = append(out, FromLink(l))
		}
		return nil
	})
	return out, err
}

func (s *PlatformSource) Addresses(ctx context.Context, ifindex int) ([]Address, error) {
	var out []Address
	err := s.platform.Do(ctx, func(p *platform.Platform) error {
		if err := requireLink(p, ifindex); err != nil {
			return err
		}
		for _, a := range p.IP4Addresses(ifindex) {
			out = append(out, FromIP4Address(a))
		}
		for _, a := range p.IP6Addresses(ifindex) {
			out = append(out, FromIP6Address(a))
		}
		return nil
	})
	return out, err
}

func (s *PlatformSource) Routes(ctx context.Context, ifindex int) ([]Route, error) {
	var out []Route
	err := s.platform.Do(ctx, func(p *platform.Platform) error {
		if err := requireLink(p, ifindex); err != nil {
			return err
		}
		for _, r := range p.IP4Routes(ifindex) {
			out = append(out, FromIP4Route(r))
		}
		for _, r := range p.IP6Routes(ifindex) {
			out = append(out, FromIP6Route(r))
		}
		return nil
	})
	return out, err
}

func requireLink(p *platform.Platform, ifindex int) error {
	if ifindex == 0 {
		return nil
	}
	if _, ok := p.Link(ifindex); !ok {
		return linkNotFound(ifindex)
	}
	return nil
}

func linkNotFound(ifindex int) error {
	return perrors.NewNotFoundError(perrors.OpLinkGet, platform.LinkKey(ifindex).String(),
		errors.New("no such link"))
}

func FromLink(l platform.Link) Link {
	return Link{
		Index:        l.Index,
		Name:         l.Name,
		Type:         l.Type.String(),
		Kind:         l.Kind,
		Up:           l.Up,
		Connected:    l.Connected,
		ARP:          l.ARP,
		Master:       l.Master,
		Parent:       l.Parent,
		MTU:          l.MTU,
		HardwareAddr: HardwareAddr(l.HardwareAddr),
		Driver:       l.Driver,
		UDI:          l.UDI,
	}
}

func FromIP4Address(a platform.IP4Address) Address {
	out := Address{
		Index:   a.Index,
		Family:  FamilyIPv4,
		Address: a.Address.String(),
		Peer:    ipString(a.Peer),
		Plen:    a.Plen,
		Flags:   a.Flags,
		Label:   a.Label,
	}
	if a.Timestamp != 0 {
		out.ValidUntil, out.PreferredUntil = a.ValidUntil(), a.PreferredUntil()
	}
	return out
}

func FromIP6Address(a platform.IP6Address) Address {
	out := Address{
		Index:   a.Index,
		Family:  FamilyIPv6,
		Address: a.Address.String(),
		Plen:    a.Plen,
		Flags:   a.Flags,
	}
	if a.Timestamp != 0 {
		out.ValidUntil, out.PreferredUntil = a.ValidUntil(), a.PreferredUntil()
	}
	return out
}

func FromIP4Route(r platform.IP4Route) Route {
	return Route{
		Index:   r.Index,
		Family:  FamilyIPv4,
		Network: ipString(r.Network),
		Plen:    r.Plen,
		Gateway: ipString(r.Gateway),
		Metric:  r.Metric,
		MSS:     r.MSS,
		Source:  r.Source.String(),
	}
}

func FromIP6Route(r platform.IP6Route) Route {
	return Route{
		Index:   r.Index,
		Family:  FamilyIPv6,
		Network: ipString(r.Network),
		Plen:    r.Plen,
		Gateway: ipString(r.Gateway),
		Metric:  r.Metric,
		MSS:     r.MSS,
		Source:  r.Source.String(),
	}
}

func ipString(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}
