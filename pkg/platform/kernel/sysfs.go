package kernel

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/sys/unix"

	perrors "github.com/netcfgd/netcfgd/pkg/errors"
	"github.com/netcfgd/netcfgd/pkg/platform"
)

const sysClassNet = "/sys/class/net"

// sysfs reads kernel tunables and device enumeration data through fs
type sysfs struct {
	fs        afero.Fs
	prefixes  []string
	udevDir   string
	udevGroup uint32
}

func (s sysfs) get(path string) (string, error) {
	if err := platform.ValidateSysctlPath(perrors.OpSysctlGet, path, s.prefixes); err != nil {
		return "", err
	}
	content, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return "", fsError(perrors.OpSysctlGet, path, err)
	}
	return strings.TrimRight(string(content), "\n"), nil
}

// set writes value to an existing file; sysctl entries are never created
func (s sysfs) set(path, value string) error {
	if err := platform.ValidateSysctlPath(perrors.OpSysctlSet, path, s.prefixes); err != nil {
		return err
	}
	f, err := s.fs.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return fsError(perrors.OpSysctlSet, path, err)
	}
	_, err = f.WriteString(value)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fsError(perrors.OpSysctlSet, path, err)
	}
	return nil
}

// device reports what enumeration knows about the link ifindex called name.
// Without udev every link the kernel has registered in sysfs is confirmed.
func (s sysfs) device(ifindex int, name string) (platform.DeviceInfo, error) {
	key := platform.LinkKey(ifindex).String()
	info := platform.DeviceInfo{UDI: s.udi(name)}

	if s.udevGroup == UdevGroupNone {
		return info, nil
	}

	if s.udevGroup == UdevGroupUdev {
		if ok, _ := afero.DirExists(s.fs, s.udevDir); ok {
			db := filepath.Join(s.udevDir, "n"+strconv.Itoa(ifindex))
			content, err := afero.ReadFile(s.fs, db)
			if err != nil {
				return platform.DeviceInfo{}, fsError(perrors.OpLinkGet, key, err)
			}
			info.Driver = udevProperty(content, "ID_NET_DRIVER")
			return info, nil
		}
	}

	if ok, _ := afero.Exists(s.fs, filepath.Join(sysClassNet, name)); !ok {
		return platform.DeviceInfo{}, perrors.NewNotFoundError(perrors.OpLinkGet, key,
			fmt.Errorf("%s not registered in sysfs", name))
	}
	return info, nil
}

// udi resolves the sysfs device path of name, falling back to its class path
func (s sysfs) udi(name string) string {
	classPath := filepath.Join(sysClassNet, name)
	reader, ok := s.fs.(afero.LinkReader)
	if !ok {
		return classPath
	}
	target, err := reader.ReadlinkIfPossible(classPath)
	if err != nil {
		return classPath
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(sysClassNet, target)
	}
	return filepath.Clean(target)
}

func (s sysfs) isWireless(name string) bool {
	for _, entry := range []string{"wireless", "phy80211"} {
		if ok, _ := afero.Exists(s.fs, filepath.Join(sysClassNet, name, entry)); ok {
			return true
		}
	}
	return false
}

// physPortID reads the port identifier a multi-port NIC driver exposes for name
func (s sysfs) physPortID(ifindex int, name string) (string, error) {
	key := platform.LinkKey(ifindex).String()
	content, err := afero.ReadFile(s.fs, filepath.Join(sysClassNet, name, "phys_port_id"))
	if errors.Is(err, unix.EOPNOTSUPP) {
		return "", perrors.NewNotFoundError(perrors.OpLinkProperties, key, err)
	}
	if err != nil {
		return "", fsError(perrors.OpLinkProperties, key, err)
	}
	id := strings.TrimSpace(string(content))
	if id == "" {
		return "", perrors.NewNotFoundError(perrors.OpLinkProperties, key,
			fmt.Errorf("%s reports no physical port id", name))
	}
	return id, nil
}

// udevProperty extracts an "E:KEY=value" line from a udev database entry
func udevProperty(content []byte, key string) string {
	scanner := bufio.NewScanner(bytes.NewReader(content))
	prefix := "E:" + key + "="
	for scanner.Scan() {
		if value, ok := strings.CutPrefix(scanner.Text(), prefix); ok {
			return value
		}
	}
	return ""
}

func fsError(op, key string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return perrors.NewNotFoundError(op, key, err)
	case errors.Is(err, fs.ErrPermission):
		return perrors.NewPermissionDeniedError(op, key, err)
	default:
		return perrors.Classify(op, key, err)
	}
}
