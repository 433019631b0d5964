package snapshot

import (
	"context"
	"net"
)

//go:generate mockgen.sh snapshot $GOFILE

type (
	// A Source answers queries about the cached platform state. An ifindex of
	// 0 selects every link; a non-zero ifindex that names no visible link
	// fails with a NotFoundError.
	Source interface {
		Links(ctx context.Context, ifindex int) ([]Link, error)
		Addresses(ctx context.Context, ifindex int) ([]Address, error)
		Routes(ctx context.Context, ifindex int) ([]Route, error)
	}

	Link struct {
		Index        int          `json:"ifindex"`
		Name         string       `json:"name"`
		Type         string       `json:"type"`
		Kind         string       `json:"kind,omitempty"`
		Up           bool         `json:"up"`
		Connected    bool         `json:"connected"`
		ARP          bool         `json:"arp"`
		Master       int          `json:"master,omitempty"`
		Parent       int          `json:"parent,omitempty"`
		MTU          int          `json:"mtu"`
		HardwareAddr HardwareAddr `json:"address,omitempty"`
		Driver       string       `json:"driver,omitempty"`
		UDI          string       `json:"udi,omitempty"`
	}

	// Address is an IPv4 or IPv6 address. ValidUntil and PreferredUntil are
	// seconds on the platform monotonic scale and omitted for permanent
	// addresses.
	Address struct {
		Index          int    `json:"ifindex"`
		Family         string `json:"family"`
		Address        string `json:"address"`
		Peer           string `json:"peer,omitempty"`
		Plen           int    `json:"plen"`
		ValidUntil     uint32 `json:"valid_until,omitempty"`
		PreferredUntil uint32 `json:"preferred_until,omitempty"`
		Flags          uint32 `json:"flags,omitempty"`
		Label          string `json:"label,omitempty"`
	}

	Route struct {
		Index   int    `json:"ifindex"`
		Family  string `json:"family"`
		Network string `json:"network"`
		Plen    int    `json:"plen"`
		Gateway string `json:"gateway,omitempty"`
		Metric  uint32 `json:"metric"`
		MSS     uint32 `json:"mss,omitempty"`
		Source  string `json:"source"`
	}
)

const (
	FamilyIPv4 = "inet"
	FamilyIPv6 = "inet6"
)

// HardwareAddr serializes as colon separated hex instead of base64
type HardwareAddr net.HardwareAddr

func (a HardwareAddr) MarshalText() ([]byte, error) {
	return []byte(net.HardwareAddr(a).String()), nil
}

func (a *HardwareAddr) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*a = nil
		return nil
	}
	addr, err := net.ParseMAC(string(text))
	if err != nil {
		return err
	}
	*a = HardwareAddr(addr)
	return nil
}
