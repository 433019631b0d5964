package kernel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/safchain/ethtool"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/netcfgd/netcfgd/configuration"
	"github.com/netcfgd/netcfgd/internal/middleware/logger"
	perrors "github.com/netcfgd/netcfgd/pkg/errors"
	"github.com/netcfgd/netcfgd/pkg/platform"
)

var _ platform.Backend = (*Backend)(nil)

type Backend struct {
	ctx        context.Context
	handle     NetlinkHandle
	dumper     AddressDumper
	ethtool    EthtoolHandle
	sysfs      sysfs
	translator *platform.LifetimeTranslator
	funcs      netlinkFuncs

	notifications chan platform.Notification
	// overflowed is only touched by the watch goroutine
	overflowed  bool
	restartWait time.Duration

	closers []func()
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New opens the netlink and ethtool handles used for queries. Notifications
// only flow after Start.
func New(ctx context.Context, cfg configuration.PlatformConfig, opts ...Option) (*Backend, error) {
	o := newOptions(opts)
	b := &Backend{
		ctx:    logger.WithComponent(ctx, "kernel"),
		dumper: o.dumper,
		sysfs: sysfs{
			fs:        o.fs,
			prefixes:  cfg.SysctlPrefixes,
			udevDir:   cfg.UdevDataDir,
			udevGroup: cfg.UdevGroup,
		},
		funcs:         makeNetlinkFuncs(cfg),
		notifications: make(chan platform.Notification, notificationQueueSize),
		restartWait:   restartWaitDuration,
	}
	if len(b.sysfs.prefixes) == 0 {
		b.sysfs.prefixes = platform.DefaultSysctlPrefixes
	}

	b.handle = o.handle
	if b.handle == nil {
		handle, err := netlink.NewHandle(unix.NETLINK_ROUTE)
		if err != nil {
			return nil, fmt.Errorf("unable to open netlink handle: %w", err)
		}
		b.handle = handle
		b.closers = append(b.closers, handle.Close)
	}
	if b.dumper == nil {
		b.dumper = addressDumper{}
	}
	b.ethtool = o.ethtool
	if b.ethtool == nil {
		e, err := ethtool.NewEthtool()
		if err != nil {
			b.closeAll()
			return nil, fmt.Errorf("unable to open ethtool socket: %w", err)
		}
		b.ethtool = e
	}
	b.closers = append(b.closers, b.ethtool.Close)

	sinceBoot, err := monotonicNow()
	if err != nil {
		b.closeAll()
		return nil, err
	}
	b.translator = platform.NewLifetimeTranslator(o.clock, sinceBoot)
	return b, nil
}

// monotonicNow reads CLOCK_MONOTONIC, the clock IFA_CACHEINFO stamps follow
func monotonicNow() (time.Duration, error) {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0, fmt.Errorf("unable to read CLOCK_MONOTONIC: %w", err)
	}
	return time.Duration(ts.Nano()), nil
}

// Start subscribes to link, address and route changes and, when enabled,
// device uevents. It fails if the first subscription cannot be established;
// later failures are retried in the background and followed by a resync
// request.
func (b *Backend) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	sub, err := b.subscribe(ctx)
	if err != nil {
		cancel()
		return err
	}
	b.cancel = cancel
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.watch(ctx, sub)
	}()
	return nil
}

func (b *Backend) Notifications() <-chan platform.Notification { return b.notifications }

func (b *Backend) Close() error {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
	b.closeAll()
	return nil
}

func (b *Backend) closeAll() {
	for _, closer := range b.closers {
		closer()
	}
	b.closers = nil
}

func (b *Backend) Device(ifindex int) (platform.DeviceInfo, error) {
	l, err := b.linkByIndex(perrors.OpLinkGet, ifindex)
	if err != nil {
		return platform.DeviceInfo{}, err
	}
	return b.sysfs.device(ifindex, l.Attrs().Name)
}

func (b *Backend) SysctlGet(path string) (string, error) {
	return b.sysfs.get(path)
}

func (b *Backend) SysctlSet(path, value string) error {
	return b.sysfs.set(path, value)
}

// enqueue hands n to the Platform. A full queue drops n and turns the next
// successful delivery into a resync request.
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
		logger.FromContext(b.ctx).Debug("Notification queue full, dropping updates until the next resync")
	}
}

func (b *Backend) notify(key platform.Key) {
	b.enqueue(platform.Notification{Kind: platform.NotifyObject, Key: key})
}
