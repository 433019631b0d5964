package platform

import (
	"context"
	"net"
)

type (
	// LinkBackend reads and mutates network interfaces. Link returns a
	// NotFoundError when ifindex does not exist.
	LinkBackend interface {
		Links() ([]Link, error)
		Link(ifindex int) (Link, error)
		// AddLink returns the ifindex of the new link. When an AlreadyExistsError
		// is returned the ifindex is the one of the existing link, if known.
		AddLink(name string, linkType LinkType, hwaddr net.HardwareAddr) (int, error)
		AddVlan(name string, parent, id int) (int, error)
		AddVeth(name, peer string) (int, error)
		AddInfinibandPartition(name string, parent, pkey int) (int, error)
		DeleteLink(ifindex int) error

		SetLinkUp(ifindex int) error
		SetLinkDown(ifindex int) error
		SetLinkARP(ifindex int) error
		SetLinkNoARP(ifindex int) error
		SetLinkAddress(ifindex int, hwaddr net.HardwareAddr) error
		SetLinkMTU(ifindex int, mtu int) error
		// SetVlanIngressMap and SetVlanEgressMap change a single priority
		// mapping of a vlan link, leaving the others in place
		SetVlanIngressMap(ifindex int, from, to uint32) error
		SetVlanEgressMap(ifindex int, from, to uint32) error

		Enslave(master, slave int) error
		Release(master, slave int) error
	}

	// PropertyBackend answers link type specific queries
	PropertyBackend interface {
		VlanProperties(ifindex int) (VlanProperties, error)
		VxlanProperties(ifindex int) (VxlanProperties, error)
		TunProperties(ifindex int) (TunProperties, error)
		MacvlanProperties(ifindex int) (MacvlanProperties, error)
		GreProperties(ifindex int) (GreProperties, error)
		VethPeer(ifindex int) (int, error)
		PermanentAddress(ifindex int) (net.HardwareAddr, error)
		// PhysicalPortID returns a NotFoundError when the driver does not
		// report one
		PhysicalPortID(ifindex int) (string, error)
		SupportsCarrierDetect(ifindex int) (bool, error)
		SupportsVlans(ifindex int) (bool, error)
	}

	// AddressBackend reads and mutates addresses. Lifetimes of addresses
	// returned are anchored on the platform monotonic scale; lifetimes of
	// addresses passed to Add are seconds from now.
	AddressBackend interface {
		IP4Addresses() ([]IP4Address, error)
		IP6Addresses() ([]IP6Address, error)
		IP4Address(key IP4AddressKey) (IP4Address, error)
		IP6Address(key IP6AddressKey) (IP6Address, error)
		AddIP4Address(addr IP4Address) error
		AddIP6Address(addr IP6Address) error
		DeleteIP4Address(key IP4AddressKey) error
		DeleteIP6Address(key IP6AddressKey) error
	}

	RouteBackend interface {
		IP4Routes() ([]IP4Route, error)
		IP6Routes() ([]IP6Route, error)
		IP4Route(key IP4RouteKey) (IP4Route, error)
		IP6Route(key IP6RouteKey) (IP6Route, error)
		AddIP4Route(route IP4Route) error
		AddIP6Route(route IP6Route) error
		DeleteIP4Route(key IP4RouteKey) error
		DeleteIP6Route(key IP6RouteKey) error
	}

	// SysctlBackend reads and writes files below an allow-listed prefix.
	// Any other path fails with a PermissionDeniedError before the filesystem
	// is touched.
	SysctlBackend interface {
		SysctlGet(path string) (string, error)
		SysctlSet(path, value string) error
	}

	// Backend is the contract shared by the kernel and the in-memory
	// backends. Mutating calls never report the resulting object: the
	// Platform reads it back.
	Backend interface {
		LinkBackend
		PropertyBackend
		AddressBackend
		RouteBackend
		SysctlBackend

		// Start begins delivering Notifications
		Start(ctx context.Context) error
		// Notifications are hints that something may have changed. Their
		// content is never trusted as the state of an object.
		Notifications() <-chan Notification
		// Device returns what device enumeration knows about ifindex, or a
		// NotFoundError while it has not seen it
		Device(ifindex int) (DeviceInfo, error)
		Close() error
	}
)

type NotificationKind int

const (
	// NotifyObject asks to re-verify Key
	NotifyObject NotificationKind = iota + 1
	// NotifyDevice reports a device enumeration change for the LinkKey in Key
	NotifyDevice
	// NotifyResync reports that notifications were lost
	NotifyResync
)

type Notification struct {
	Kind NotificationKind
	Key  Key
}
