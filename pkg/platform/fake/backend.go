// Package fake implements platform.Backend in memory. It follows the kernel
// rules the Platform depends on (master carrier, cascading deletes, silent
// route flushes) deterministically, and is not safe for concurrent use.
package fake

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
	"k8s.io/utils/clock"

	"github.com/netcfgd/netcfgd/pkg/platform"
	perrors "github.com/netcfgd/netcfgd/pkg/errors"
)

const notificationQueueSize = 1024

var _ platform.Backend = (*Backend)(nil)

type (
	Backend struct {
		clock      clock.PassiveClock
		sinceBoot  time.Duration
		translator *platform.LifetimeTranslator
		prefixes   []string

		manualDevices bool
		linkLocal     bool

		nextIndex    int
		links        map[int]*link
		ip4Addresses map[platform.IP4AddressKey]*address[platform.IP4Address]
		ip6Addresses map[platform.IP6AddressKey]*address[platform.IP6Address]
		ip4Routes    map[platform.IP4RouteKey]platform.IP4Route
		ip6Routes    map[platform.IP6RouteKey]platform.IP6Route
		sysctl       map[string]string
		devices      map[int]platform.DeviceInfo
		noFirmware   map[int]bool

		notifications chan platform.Notification
		// overflowed is set when a notification was dropped, the next one
		// delivered is a resync request
		overflowed bool
	}

	Option func(*Backend)
)

// WithManualDeviceConfirmation leaves hardware links unconfirmed by device
// enumeration until ConfirmDevice is called
func WithManualDeviceConfirmation() Option {
	return func(b *Backend) { b.manualDevices = true }
}

// WithLinkLocalAddresses adds an IPv6 link-local address to links when they
// get carrier
func WithLinkLocalAddresses() Option {
	return func(b *Backend) { b.linkLocal = true }
}

// WithClock drives address lifetimes from clk. sinceBoot is the simulated
// CLOCK_MONOTONIC reading at construction.
func WithClock(clk clock.PassiveClock, sinceBoot time.Duration) Option {
	return func(b *Backend) {
		b.clock = clk
		b.sinceBoot = sinceBoot
	}
}

func WithSysctlPrefixes(prefixes []string) Option {
	return func(b *Backend) { b.prefixes = prefixes }
}

func New(opts ...Option) *Backend {
	b := &Backend{
		clock:         clock.RealClock{},
		prefixes:      platform.DefaultSysctlPrefixes,
		nextIndex:     1,
		links:         map[int]*link{},
		ip4Addresses:  map[platform.IP4AddressKey]*address[platform.IP4Address]{},
		ip6Addresses:  map[platform.IP6AddressKey]*address[platform.IP6Address]{},
		ip4Routes:     map[platform.IP4RouteKey]platform.IP4Route{},
		ip6Routes:     map[platform.IP6RouteKey]platform.IP6Route{},
		sysctl:        map[string]string{},
		devices:       map[int]platform.DeviceInfo{},
		noFirmware:    map[int]bool{},
		notifications: make(chan platform.Notification, notificationQueueSize),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.translator = platform.NewLifetimeTranslator(b.clock, b.sinceBoot)
	return b
}

func (b *Backend) Start(ctx context.Context) error { return nil }

func (b *Backend) Notifications() <-chan platform.Notification { return b.notifications }

func (b *Backend) Close() error { return nil }

// Translator exposes the lifetime scale addresses are reported on
func (b *Backend) Translator() *platform.LifetimeTranslator { return b.translator }

func (b *Backend) notify(key platform.Key) {
	b.enqueue(platform.Notification{Kind: platform.NotifyObject, Key: key})
}

func (b *Backend) enqueue(n platform.Notification) {
	if b.overflowed {
		select {
		case b.notifications <- platform.Notification{Kind: platform.NotifyResync}:
			b.overflowed = false
		default:
			return
		}
	}
	select {
	case b.notifications <- n:
	default:
		b.overflowed = true
	}
}

// SimulateOverflow reports lost notifications the way the kernel backend does
// when its socket buffer overruns
func (b *Backend) SimulateOverflow() {
	b.enqueue(platform.Notification{Kind: platform.NotifyResync})
}

// Device reports hardware links once device enumeration confirmed them
func (b *Backend) Device(ifindex int) (platform.DeviceInfo, error) {
	if info, ok := b.devices[ifindex]; ok {
		return info, nil
	}
	return platform.DeviceInfo{}, perrors.NewNotFoundError(perrors.OpLinkGet, platform.LinkKey(ifindex).String(),
		fmt.Errorf("device not enumerated"))
}

// ConfirmDevice makes device enumeration report ifindex
func (b *Backend) ConfirmDevice(ifindex int) error {
	l, ok := b.links[ifindex]
	if !ok {
		return b.linkNotFound(perrors.OpLinkGet, ifindex)
	}
	b.devices[ifindex] = deviceInfo(l.Link)
	b.enqueue(platform.Notification{Kind: platform.NotifyDevice, Key: platform.LinkKey(ifindex)})
	return nil
}

// WithdrawDevice makes device enumeration forget ifindex
func (b *Backend) WithdrawDevice(ifindex int) {
	delete(b.devices, ifindex)
	b.enqueue(platform.Notification{Kind: platform.NotifyDevice, Key: platform.LinkKey(ifindex)})
}

func deviceInfo(l platform.Link) platform.DeviceInfo {
	return platform.DeviceInfo{
		Driver: l.Type.String(),
		UDI:    fmt.Sprintf("/sys/devices/fake/net/%s", l.Name),
	}
}

func (b *Backend) SysctlGet(path string) (string, error) {
	if err := platform.ValidateSysctlPath(perrors.OpSysctlGet, path, b.prefixes); err != nil {
		return "", err
	}
	value, ok := b.sysctl[path]
	if !ok {
		return "", perrors.Classify(perrors.OpSysctlGet, path, unix.ENOENT)
	}
	return value, nil
}

func (b *Backend) SysctlSet(path, value string) error {
	if err := platform.ValidateSysctlPath(perrors.OpSysctlSet, path, b.prefixes); err != nil {
		return err
	}
	b.sysctl[path] = value
	return nil
}

func (b *Backend) linkNotFound(op string, ifindex int) error {
	return perrors.Classify(op, platform.LinkKey(ifindex).String(), unix.ENODEV)
}
