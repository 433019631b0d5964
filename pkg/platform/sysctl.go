package platform

import (
	"fmt"
	"path"
	"strings"

	"github.com/netcfgd/netcfgd/configuration"
	perrors "github.com/netcfgd/netcfgd/pkg/errors"
)

// DefaultSysctlPrefixes is the allow-list used when a backend is not given one
var DefaultSysctlPrefixes = configuration.SysctlPrefixes

const (
	sysClassNet     = "/sys/class/net"
	bridgeCategory  = "bridge"
	bondingCategory = "bonding"
	brportCategory  = "brport"
)

// ValidateSysctlPath fails with a PermissionDeniedError for op unless p
// starts with one of prefixes and never climbs out of it
func ValidateSysctlPath(op, p string, prefixes []string) error {
	if strings.Contains(p, "/../") || strings.HasSuffix(p, "/..") {
		return perrors.NewPermissionDeniedError(op, p, fmt.Errorf("path must not contain /../"))
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(p, prefix) && len(p) > len(prefix) {
			return nil
		}
	}
	return perrors.NewPermissionDeniedError(op, p,
		fmt.Errorf("path must start with one of %s", strings.Join(prefixes, ", ")))
}

// IP6ConfPath is the per-interface IPv6 sysctl file for option
func IP6ConfPath(ifname, option string) string {
	return path.Join("/proc/sys/net/ipv6/conf", ifname, option)
}

// masterOptionPath locates option of a bridge or bond in sysfs
func masterOptionPath(master Link, option string) (string, error) {
	var category string
	switch master.Type {
	case LinkTypeBridge:
		category = bridgeCategory
	case LinkTypeBond:
		category = bondingCategory
	default:
		return "", fmt.Errorf("link %s of type %s has no master options", master.Name, master.Type)
	}
	return linkOptionPath(master.Name, category, option)
}

// slaveOptionPath locates option of a bridge port in sysfs
func slaveOptionPath(slave, master Link, option string) (string, error) {
	if master.Type != LinkTypeBridge {
		return "", fmt.Errorf("link %s is not a bridge port", slave.Name)
	}
	return linkOptionPath(slave.Name, brportCategory, option)
}

func linkOptionPath(ifname, category, option string) (string, error) {
	if option == "" || strings.ContainsRune(option, '/') || option == ".." {
		return "", fmt.Errorf("invalid option name %q", option)
	}
	return path.Join(sysClassNet, ifname, category, option), nil
}
