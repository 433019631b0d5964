package kernel

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

const (
	// UdevGroupNone disables device enumeration: every link is confirmed
	UdevGroupNone uint32 = 0
	// UdevGroupKernel receives raw kernel uevents
	UdevGroupKernel uint32 = 1
	// UdevGroupUdev receives events after udevd processed them
	UdevGroupUdev uint32 = 2

	libudevPrefix = "libudev\x00"
	libudevMagic  = 0xfeedcafe
	// the libudev header up to and including properties_len
	libudevHeaderLen = 24
)

type uevent struct {
	Action     string
	Subsystem  string
	Interface  string
	Ifindex    int
	Properties map[string]string
}

// parseUevent decodes a kernel ("action@devpath" followed by KEY=VALUE
// strings) or a libudev monitor message
func parseUevent(msg []byte) (uevent, error) {
	var props []byte
	if bytes.HasPrefix(msg, []byte(libudevPrefix)) {
		if len(msg) < libudevHeaderLen {
			return uevent{}, fmt.Errorf("truncated libudev header")
		}
		if magic := binary.BigEndian.Uint32(msg[8:12]); magic != libudevMagic {
			return uevent{}, fmt.Errorf("bad libudev magic 0x%x", magic)
		}
		off := binary.NativeEndian.Uint32(msg[16:20])
		length := binary.NativeEndian.Uint32(msg[20:24])
		if uint64(off)+uint64(length) > uint64(len(msg)) {
			return uevent{}, fmt.Errorf("libudev properties out of bounds")
		}
		props = msg[off : off+length]
	} else {
		header, rest, ok := bytes.Cut(msg, []byte{0})
		if !ok || !bytes.Contains(header, []byte("@")) {
			return uevent{}, fmt.Errorf("malformed uevent header %q", header)
		}
		props = rest
	}

	ev := uevent{Properties: map[string]string{}}
	for _, field := range bytes.Split(props, []byte{0}) {
		key, value, ok := strings.Cut(string(field), "=")
		if !ok {
			continue
		}
		ev.Properties[key] = value
	}
	ev.Action = ev.Properties["ACTION"]
	ev.Subsystem = ev.Properties["SUBSYSTEM"]
	ev.Interface = ev.Properties["INTERFACE"]
	if idx, ok := ev.Properties["IFINDEX"]; ok {
		n, err := strconv.Atoi(idx)
		if err != nil {
			return uevent{}, fmt.Errorf("invalid IFINDEX %q: %w", idx, err)
		}
		ev.Ifindex = n
	}
	return ev, nil
}

// isNetDevice reports whether ev concerns a network interface
func (ev uevent) isNetDevice() bool {
	return ev.Subsystem == "net" && ev.Ifindex > 0
}
