// Package kernel implements platform.Backend on top of rtnetlink, ethtool,
// sysfs and the kobject uevent socket.
package kernel

import (
	"errors"
	"time"

	"github.com/spf13/afero"
	"github.com/vishvananda/netlink"
	"k8s.io/utils/clock"

	perrors "github.com/netcfgd/netcfgd/pkg/errors"
)

const (
	// notificationQueueSize bounds the hints waiting for the Platform. When
	// it is full the next delivered notification is a resync request.
	notificationQueueSize = 4096

	// restartWaitDuration is how long to wait after a netlink failure before
	// subscribing again
	restartWaitDuration = time.Second
)

type (
	options struct {
		handle  NetlinkHandle
		dumper  AddressDumper
		ethtool EthtoolHandle
		fs      afero.Fs
		clock   clock.PassiveClock
	}

	Option func(*options)
)

func WithNetlinkHandle(handle NetlinkHandle) Option {
	return func(o *options) { o.handle = handle }
}

func WithAddressDumper(dumper AddressDumper) Option {
	return func(o *options) { o.dumper = dumper }
}

func WithEthtool(handle EthtoolHandle) Option {
	return func(o *options) { o.ethtool = handle }
}

// WithFs replaces the filesystem sysctl, sysfs and udev data are read from
func WithFs(fs afero.Fs) Option {
	return func(o *options) { o.fs = fs }
}

func WithClock(clk clock.PassiveClock) Option {
	return func(o *options) { o.clock = clk }
}

func newOptions(opts []Option) options {
	o := options{
		fs:    afero.NewOsFs(),
		clock: clock.RealClock{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// classify maps netlink failures onto the platform error taxonomy
func classify(op, key string, err error) error {
	if err == nil {
		return nil
	}
	var lnf netlink.LinkNotFoundError
	if errors.As(err, &lnf) {
		return perrors.NewNotFoundError(op, key, err)
	}
	return perrors.Classify(op, key, err)
}
