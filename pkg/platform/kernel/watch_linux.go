package kernel

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/netcfgd/netcfgd/configuration"
	"github.com/netcfgd/netcfgd/internal/middleware/logger"
	"github.com/netcfgd/netcfgd/pkg/platform"
)

// netlinkFuncs are the subscription entry points, replaceable for
// testing of the error handling paths
type netlinkFuncs struct {
	LinkSubscribe   func(ch chan<- netlink.LinkUpdate, done <-chan struct{}, errorCallback func(error)) error
	AddrSubscribe   func(ch chan<- netlink.AddrUpdate, done <-chan struct{}, errorCallback func(error)) error
	RouteSubscribe  func(ch chan<- netlink.RouteUpdate, done <-chan struct{}, errorCallback func(error)) error
	UeventSubscribe func(ch chan<- uevent, done <-chan struct{}, errorCallback func(error)) error
}

func makeNetlinkFuncs(cfg configuration.PlatformConfig) netlinkFuncs {
	funcs := netlinkFuncs{
		LinkSubscribe: func(ch chan<- netlink.LinkUpdate, done <-chan struct{}, errorCallback func(error)) error {
			return netlink.LinkSubscribeWithOptions(ch, done, netlink.LinkSubscribeOptions{
				ErrorCallback:     errorCallback,
				ReceiveBufferSize: cfg.ReceiveBufferSize,
			})
		},
		AddrSubscribe: func(ch chan<- netlink.AddrUpdate, done <-chan struct{}, errorCallback func(error)) error {
			return netlink.AddrSubscribeWithOptions(ch, done, netlink.AddrSubscribeOptions{
				ErrorCallback:     errorCallback,
				ReceiveBufferSize: cfg.ReceiveBufferSize,
			})
		},
		RouteSubscribe: func(ch chan<- netlink.RouteUpdate, done <-chan struct{}, errorCallback func(error)) error {
			return netlink.RouteSubscribeWithOptions(ch, done, netlink.RouteSubscribeOptions{
				ErrorCallback:     errorCallback,
				ReceiveBufferSize: cfg.ReceiveBufferSize,
			})
		},
	}
	if cfg.UdevGroup != UdevGroupNone {
		funcs.UeventSubscribe = func(ch chan<- uevent, done <-chan struct{}, errorCallback func(error)) error {
			return subscribeUevents(cfg.UdevGroup, ch, done, errorCallback)
		}
	}
	return funcs
}

// subscription is one generation of kernel subscriptions. Any error ends
// it: netlink is unreliable and drops messages when the socket buffer fills.
// Channels stay nil until their subscription succeeded.
type subscription struct {
	ctx    context.Context
	cancel context.CancelFunc

	links   chan netlink.LinkUpdate
	addrs   chan netlink.AddrUpdate
	routes  chan netlink.RouteUpdate
	uevents chan uevent
}

func (b *Backend) subscribe(parent context.Context) (*subscription, error) {
	ctx, cancel := context.WithCancel(parent)
	log := logger.FromContext(b.ctx)

	errorCallback := func(err error) {
		// unsubscribing reports "receive called on closed socket"
		if ctx.Err() != nil {
			return
		}
		log.Warnf("Netlink error received, restarting: %v", err)
		cancel()
	}

	sub := &subscription{ctx: ctx, cancel: cancel}
	links := make(chan netlink.LinkUpdate)
	if err := b.funcs.LinkSubscribe(links, ctx.Done(), errorCallback); err != nil {
		sub.stop()
		return nil, fmt.Errorf("unable to subscribe to link updates: %w", err)
	}
	sub.links = links
	addrs := make(chan netlink.AddrUpdate)
	if err := b.funcs.AddrSubscribe(addrs, ctx.Done(), errorCallback); err != nil {
		sub.stop()
		return nil, fmt.Errorf("unable to subscribe to address updates: %w", err)
	}
	sub.addrs = addrs
	routes := make(chan netlink.RouteUpdate)
	if err := b.funcs.RouteSubscribe(routes, ctx.Done(), errorCallback); err != nil {
		sub.stop()
		return nil, fmt.Errorf("unable to subscribe to route updates: %w", err)
	}
	sub.routes = routes
	if b.funcs.UeventSubscribe != nil {
		uevents := make(chan uevent)
		if err := b.funcs.UeventSubscribe(uevents, ctx.Done(), errorCallback); err != nil {
			sub.stop()
			return nil, fmt.Errorf("unable to subscribe to device uevents: %w", err)
		}
		sub.uevents = uevents
	}
	return sub, nil
}

// stop cancels the subscription and drains the channels that were
// subscribed so the receiving goroutines observe the closed sockets and exit
func (s *subscription) stop() {
	s.cancel()
	drain(s.links)
	drain(s.addrs)
	drain(s.routes)
	drain(s.uevents)
}

func drain[T any](ch chan T) {
	if ch == nil {
		return
	}
	go func() {
		for range ch {
		}
	}()
}

// watch turns updates into notifications, subscribing again after every
// failure until ctx ends
func (b *Backend) watch(ctx context.Context, sub *subscription) {
	log := logger.FromContext(b.ctx)
	for {
		b.process(sub)
		sub.stop()
		if ctx.Err() != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(b.restartWait):
			}
			next, err := b.subscribe(ctx)
			if err != nil {
				log.Warnf("Resubscribing failed, retrying: %v", err)
				continue
			}
			sub = next
			break
		}
		// anything that happened while unsubscribed is unknown
		b.enqueue(platform.Notification{Kind: platform.NotifyResync})
	}
}

func (b *Backend) process(sub *subscription) {
	for {
		select {
		case <-sub.ctx.Done():
			return
		case u, ok := <-sub.links:
			if !ok {
				return
			}
			b.notify(platform.LinkKey(u.Attrs().Index))
		case u, ok := <-sub.addrs:
			if !ok {
				return
			}
			if key, ok := addressKey(u); ok {
				b.notify(key)
			}
		case u, ok := <-sub.routes:
			if !ok {
				return
			}
			if key, ok := routeKey(u.Route); ok {
				b.notify(key)
			}
		case ev, ok := <-sub.uevents:
			if !ok {
				return
			}
			if ev.isNetDevice() {
				b.enqueue(platform.Notification{Kind: platform.NotifyDevice, Key: platform.LinkKey(ev.Ifindex)})
			}
		}
	}
}

// addressKey names the address an update is about. Updates carry the local
// address only, so an IPv4 peer prefix shorter than /32 is not recovered
// until the next resync.
func addressKey(u netlink.AddrUpdate) (platform.Key, bool) {
	plen, _ := u.LinkAddress.Mask.Size()
	if v4 := u.LinkAddress.IP.To4(); v4 != nil {
		return platform.NewIP4AddressKey(u.LinkIndex, v4, plen), true
	}
	if u.LinkAddress.IP.To16() == nil {
		return nil, false
	}
	return platform.NewIP6AddressKey(u.LinkIndex, u.LinkAddress.IP, plen), true
}

// routeKey names the route an update is about; routes outside the main
// table, cloned and multipath routes are not tracked
func routeKey(r netlink.Route) (platform.Key, bool) {
	if !trackedRoute(r) {
		return nil, false
	}
	network, plen := routeDestination(r)
	if r.Family == unix.AF_INET6 {
		return platform.NewIP6RouteKey(r.LinkIndex, network, plen, uint32(r.Priority)), true
	}
	return platform.NewIP4RouteKey(r.LinkIndex, network, plen, uint32(r.Priority)), true
}

func trackedRoute(r netlink.Route) bool {
	return r.Table == unix.RT_TABLE_MAIN &&
		r.Flags&unix.RTM_F_CLONED == 0 &&
		r.Type == unix.RTN_UNICAST &&
		r.LinkIndex > 0
}

func routeDestination(r netlink.Route) (net.IP, int) {
	if r.Dst == nil {
		if r.Family == unix.AF_INET6 {
			return net.IPv6zero, 0
		}
		return net.IPv4zero, 0
	}
	plen, _ := r.Dst.Mask.Size()
	return r.Dst.IP, plen
}
