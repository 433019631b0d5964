//go:build !linux

package kernel

import (
	"context"

	"github.com/vishvananda/netlink"

	"github.com/netcfgd/netcfgd/configuration"
	"github.com/netcfgd/netcfgd/pkg/platform"
)

// Backend is only implemented on Linux
type Backend struct {
	platform.Backend
}

func New(ctx context.Context, cfg configuration.PlatformConfig, opts ...Option) (*Backend, error) {
	return nil, netlink.ErrNotImplemented
}
