package configuration

import (
	_ "embed"
	"strings"
)

const (
	DefaultConfigPath = "/etc/netcfgd/netcfgd.toml"

	// DefaultReceiveBufferSize is the SO_RCVBUF requested for the netlink
	// event sockets. Overflowing it drops notifications and forces a resync.
	DefaultReceiveBufferSize = 8 * 1024 * 1024

	DefaultUdevDataDir = "/run/udev/data"
	// DefaultUdevGroup is the multicast group udevd broadcasts processed events on.
	DefaultUdevGroup = 2

	DefaultStatusAddress = "127.0.0.1"
	DefaultStatusPort    = 2780
)

// RequestRate indicates the number of status requests allowed per second
const RequestRate = 100

// SysctlPrefixes lists the only filesystem locations sysctl access may touch
var SysctlPrefixes = []string{"/proc/sys/", "/sys/"}

//go:embed "version.txt"
var agentVersion string

func GetVersion() string {
	return strings.ReplaceAll(agentVersion, "\n", "")
}
