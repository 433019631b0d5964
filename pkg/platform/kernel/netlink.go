package kernel

import (
	"net"

	"github.com/vishvananda/netlink"
)

//go:generate mockgen.sh kernel $GOFILE

type (
	// NetlinkHandle abstracts the rtnetlink requests issued by the Backend,
	// useful for test purposes
	NetlinkHandle interface {
		LinkList() ([]netlink.Link, error)
		LinkByIndex(index int) (netlink.Link, error)
		LinkByName(name string) (netlink.Link, error)
		LinkAdd(link netlink.Link) error
		LinkDel(link netlink.Link) error
		LinkSetUp(link netlink.Link) error
		LinkSetDown(link netlink.Link) error
		LinkSetARPOn(link netlink.Link) error
		LinkSetARPOff(link netlink.Link) error
		LinkSetHardwareAddr(link netlink.Link, hwaddr net.HardwareAddr) error
		LinkSetMTU(link netlink.Link, mtu int) error
		LinkSetMasterByIndex(link netlink.Link, masterIndex int) error
		LinkSetNoMaster(link netlink.Link) error
		LinkModify(link netlink.Link) error

		AddrReplace(link netlink.Link, addr *netlink.Addr) error
		AddrDel(link netlink.Link, addr *netlink.Addr) error

		RouteListFiltered(family int, filter *netlink.Route, filterMask uint64) ([]netlink.Route, error)
		RouteReplace(route *netlink.Route) error
		RouteDel(route *netlink.Route) error
	}

	// AddressDumper returns the raw RTM_NEWADDR messages of an address dump.
	// netlink.Addr drops the IFA_CACHEINFO update timestamp that lifetimes
	// are anchored on.
	AddressDumper interface {
		DumpAddresses(family int) ([][]byte, error)
	}

	// EthtoolHandle is the subset of ethtool queries used to describe links
	EthtoolHandle interface {
		DriverName(intf string) (string, error)
		PermAddr(intf string) (string, error)
		Stats(intf string) (map[string]uint64, error)
		LinkState(intf string) (uint32, error)
		Features(intf string) (map[string]bool, error)
		Close()
	}
)
