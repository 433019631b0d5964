package fake

import (
	"net"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	testingclock "k8s.io/utils/clock/testing"

	_ "github.com/netcfgd/netcfgd/internal/test"
	perrors "github.com/netcfgd/netcfgd/pkg/errors"
	"github.com/netcfgd/netcfgd/pkg/platform"
)

func drainNotifications(b *Backend) []platform.Notification {
	var out []platform.Notification
	for {
		select {
		case n := <-b.Notifications():
			out = append(out, n)
		default:
			return out
		}
	}
}

// mustAdd unwraps the (ifindex, error) result of an Add call
func mustAdd(g *WithT) func(int, error) int {
	return func(ifindex int, err error) int {
		g.Expect(err).ToNot(HaveOccurred())
		return ifindex
	}
}

func TestBackend_AddLinkNameTaken(t *testing.T) {
	g := NewWithT(t)
	b := New()

	first := mustAdd(g)(b.AddLink("dummy0", platform.LinkTypeDummy, nil))
	again, err := b.AddLink("dummy0", platform.LinkTypeBridge, nil)
	g.Expect(perrors.IsAlreadyExists(err)).To(BeTrue())
	g.Expect(again).To(Equal(first))

	l, err := b.Link(first)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(l.Type).To(Equal(platform.LinkTypeDummy))
	g.Expect(l.ARP).To(BeFalse())
}

func TestBackend_DeleteLinkCascades(t *testing.T) {
	g := NewWithT(t)
	b := New()

	eth := mustAdd(g)(b.AddLink("eth0", platform.LinkTypeEthernet, nil))
	vlan := mustAdd(g)(b.AddVlan("eth0.10", eth, 10))
	veth := mustAdd(g)(b.AddVeth("veth0", "veth1"))
	peer, err := b.VethPeer(veth)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(b.AddIP4Address(platform.IP4Address{Index: vlan, Address: net.ParseIP("192.0.2.1"), Plen: 24})).To(Succeed())
	drainNotifications(b)

	g.Expect(b.DeleteLink(eth)).To(Succeed())
	_, err = b.Link(vlan)
	g.Expect(perrors.IsNotFound(err)).To(BeTrue())
	g.Expect(b.IP4Addresses()).To(BeEmpty())
	// the prefix route vanished with its link, silently
	g.Expect(b.IP4Routes()).To(BeEmpty())
	g.Expect(drainNotifications(b)).To(ConsistOf(
		platform.Notification{Kind: platform.NotifyObject, Key: platform.LinkKey(eth)},
		platform.Notification{Kind: platform.NotifyObject, Key: platform.LinkKey(vlan)},
		platform.Notification{Kind: platform.NotifyObject, Key: platform.NewIP4AddressKey(vlan, net.ParseIP("192.0.2.1"), 24)},
	))

	g.Expect(b.DeleteLink(peer)).To(Succeed())
	_, err = b.Link(veth)
	g.Expect(perrors.IsNotFound(err)).To(BeTrue())
}

func TestBackend_MasterCarrierFollowsSlaves(t *testing.T) {
	g := NewWithT(t)
	b := New()

	br := mustAdd(g)(b.AddLink("br0", platform.LinkTypeBridge, nil))
	port := mustAdd(g)(b.AddLink("dummy0", platform.LinkTypeDummy, nil))
	g.Expect(b.SetLinkUp(br)).To(Succeed())
	g.Expect(b.SetLinkUp(port)).To(Succeed())

	l, _ := b.Link(br)
	g.Expect(l.Up).To(BeTrue())
	g.Expect(l.Connected).To(BeFalse())

	g.Expect(b.Enslave(br, port)).To(Succeed())
	l, _ = b.Link(br)
	g.Expect(l.Connected).To(BeTrue())

	g.Expect(b.Release(br+1, port)).ToNot(Succeed())
	g.Expect(b.Release(br, port)).To(Succeed())
	l, _ = b.Link(br)
	g.Expect(l.Connected).To(BeFalse())
}

func TestBackend_EnslaveRequiresMaster(t *testing.T) {
	g := NewWithT(t)
	b := New()

	d0 := mustAdd(g)(b.AddLink("dummy0", platform.LinkTypeDummy, nil))
	d1 := mustAdd(g)(b.AddLink("dummy1", platform.LinkTypeDummy, nil))
	g.Expect(b.Enslave(d0, d1)).ToNot(Succeed())
	g.Expect(perrors.IsNotFound(b.Enslave(d0, 99))).To(BeTrue())
}

func TestBackend_MissingFirmware(t *testing.T) {
	g := NewWithT(t)
	b := New()

	eth := mustAdd(g)(b.AddLink("eth0", platform.LinkTypeEthernet, nil))
	b.SetFirmwareMissing(eth, true)
	g.Expect(perrors.IsNoFirmware(b.SetLinkUp(eth))).To(BeTrue())

	b.SetFirmwareMissing(eth, false)
	g.Expect(b.SetLinkUp(eth)).To(Succeed())
}

func TestBackend_CarrierLossFlushesRoutesSilently(t *testing.T) {
	g := NewWithT(t)
	b := New()

	eth := mustAdd(g)(b.AddLink("eth0", platform.LinkTypeEthernet, nil))
	g.Expect(b.SetLinkUp(eth)).To(Succeed())
	g.Expect(b.AddIP4Address(platform.IP4Address{Index: eth, Address: net.ParseIP("192.0.2.10"), Plen: 24})).To(Succeed())
	g.Expect(b.AddIP4Route(platform.IP4Route{Index: eth, Gateway: net.ParseIP("192.0.2.1"), Metric: 100})).To(Succeed())
	g.Expect(b.IP4Routes()).To(HaveLen(2))
	drainNotifications(b)

	g.Expect(b.SetCarrier(eth, false)).To(Succeed())
	g.Expect(b.IP4Routes()).To(BeEmpty())
	g.Expect(drainNotifications(b)).To(Equal([]platform.Notification{
		{Kind: platform.NotifyObject, Key: platform.LinkKey(eth)},
	}))
}

func TestBackend_GatewayMustBeOnLink(t *testing.T) {
	g := NewWithT(t)
	b := New()

	eth := mustAdd(g)(b.AddLink("eth0", platform.LinkTypeEthernet, nil))
	err := b.AddIP4Route(platform.IP4Route{Index: eth, Gateway: net.ParseIP("198.51.100.1")})
	g.Expect(err).To(HaveOccurred())
	g.Expect(perrors.OpOf(err)).To(Equal(perrors.OpRouteAdd))

	// IPv6 link-local gateways are always reachable
	g.Expect(b.AddIP6Route(platform.IP6Route{Index: eth, Gateway: net.ParseIP("fe80::1")})).To(Succeed())
	r, err := b.IP6Route(platform.NewIP6RouteKey(eth, nil, 0, 0))
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(r.Metric).To(BeEquivalentTo(1024))
}

func TestBackend_AddressLifetimes(t *testing.T) {
	g := NewWithT(t)
	clk := testingclock.NewFakeClock(time.Unix(1700000000, 0))
	b := New(WithClock(clk, time.Hour))

	eth := mustAdd(g)(b.AddLink("eth0", platform.LinkTypeEthernet, nil))
	key := platform.NewIP6AddressKey(eth, net.ParseIP("2001:db8::5"), 64)
	g.Expect(b.AddIP6Address(platform.IP6Address{
		Index: eth, Address: net.ParseIP("2001:db8::5"), Plen: 64, Lifetime: 60, Preferred: 30,
	})).To(Succeed())

	first, err := b.IP6Address(key)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(first.Lifetime).To(BeEquivalentTo(60))
	g.Expect(first.Preferred).To(BeEquivalentTo(30))

	clk.Step(20 * time.Second)
	later, err := b.IP6Address(key)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(later.ValidUntil()).To(Equal(first.ValidUntil()))

	clk.Step(41 * time.Second)
	_, err = b.IP6Address(key)
	g.Expect(perrors.IsNotFound(err)).To(BeTrue())
	g.Expect(b.IP6Addresses()).To(BeEmpty())
}

func TestBackend_ZeroLifetimeIsPermanent(t *testing.T) {
	g := NewWithT(t)
	b := New()

	eth := mustAdd(g)(b.AddLink("eth0", platform.LinkTypeEthernet, nil))
	g.Expect(b.AddIP4Address(platform.IP4Address{Index: eth, Address: net.ParseIP("192.0.2.1"), Plen: 32})).To(Succeed())

	addrs, err := b.IP4Addresses()
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(addrs).To(HaveLen(1))
	g.Expect(addrs[0].Timestamp).To(BeZero())
	g.Expect(addrs[0].Lifetime).To(Equal(platform.LifetimePermanent))
	// no prefix route for a host address
	g.Expect(b.IP4Routes()).To(BeEmpty())
}

func TestBackend_LinkLocalOnCarrier(t *testing.T) {
	g := NewWithT(t)
	b := New(WithLinkLocalAddresses())

	eth := mustAdd(g)(b.AddLink("eth0", platform.LinkTypeEthernet, nil))
	g.Expect(b.IP6Addresses()).To(BeEmpty())
	g.Expect(b.SetLinkUp(eth)).To(Succeed())

	addrs, err := b.IP6Addresses()
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(addrs).To(HaveLen(1))
	g.Expect(addrs[0].Address.IsLinkLocalUnicast()).To(BeTrue())
}

func TestBackend_DeviceConfirmation(t *testing.T) {
	g := NewWithT(t)
	b := New(WithManualDeviceConfirmation())

	eth := mustAdd(g)(b.AddLink("eth0", platform.LinkTypeEthernet, nil))
	_, err := b.Device(eth)
	g.Expect(perrors.IsNotFound(err)).To(BeTrue())
	drainNotifications(b)

	g.Expect(b.ConfirmDevice(eth)).To(Succeed())
	info, err := b.Device(eth)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(info.UDI).To(Equal("/sys/devices/fake/net/eth0"))

	b.WithdrawDevice(eth)
	_, err = b.Device(eth)
	g.Expect(perrors.IsNotFound(err)).To(BeTrue())
	g.Expect(drainNotifications(b)).To(Equal([]platform.Notification{
		{Kind: platform.NotifyDevice, Key: platform.LinkKey(eth)},
		{Kind: platform.NotifyDevice, Key: platform.LinkKey(eth)},
	}))

	g.Expect(perrors.IsNotFound(b.ConfirmDevice(42))).To(BeTrue())
}

func TestBackend_NotificationOverflow(t *testing.T) {
	g := NewWithT(t)
	b := New()

	for i := range notificationQueueSize + 5 {
		b.notify(platform.LinkKey(i + 1))
	}
	g.Expect(b.overflowed).To(BeTrue())
	g.Expect(drainNotifications(b)).To(HaveLen(notificationQueueSize))

	b.notify(platform.LinkKey(1))
	g.Expect(drainNotifications(b)).To(Equal([]platform.Notification{
		{Kind: platform.NotifyResync},
		{Kind: platform.NotifyObject, Key: platform.LinkKey(1)},
	}))
}

func TestBackend_Sysctl(t *testing.T) {
	g := NewWithT(t)
	b := New()
	path := "/proc/sys/net/ipv6/conf/eth0/disable_ipv6"

	_, err := b.SysctlGet(path)
	g.Expect(perrors.IsNotFound(err)).To(BeTrue())

	g.Expect(b.SysctlSet(path, "1")).To(Succeed())
	g.Expect(b.SysctlGet(path)).To(Equal("1"))

	g.Expect(perrors.IsPermissionDenied(b.SysctlSet("/etc/passwd", "x"))).To(BeTrue())
}

func TestBackend_Properties(t *testing.T) {
	g := NewWithT(t)
	b := New()

	eth := mustAdd(g)(b.AddLink("eth0", platform.LinkTypeEthernet, nil))
	tap := mustAdd(g)(b.AddTun("tap0", platform.TunProperties{Mode: "tap", VnetHdr: true}))
	mv := mustAdd(g)(b.AddMacvlan("mv0", eth, platform.MacvlanProperties{Mode: "bridge"}))

	l, _ := b.Link(tap)
	g.Expect(l.Type).To(Equal(platform.LinkTypeTap))
	props, err := b.TunProperties(tap)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(props.VnetHdr).To(BeTrue())

	mvProps, err := b.MacvlanProperties(mv)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(mvProps.Mode).To(Equal("bridge"))

	_, err = b.VlanProperties(eth)
	g.Expect(err).To(HaveOccurred())

	perm, err := b.PermanentAddress(eth)
	g.Expect(err).ToNot(HaveOccurred())
	ethLink, _ := b.Link(eth)
	g.Expect(perm).To(Equal(ethLink.HardwareAddr))
	_, err = b.PermanentAddress(tap)
	g.Expect(err).To(HaveOccurred())
}

func TestBackend_GreProperties(t *testing.T) {
	g := NewWithT(t)
	b := New()

	eth := mustAdd(g)(b.AddLink("eth0", platform.LinkTypeEthernet, nil))
	props := platform.GreProperties{
		Parent: eth, Local: net.ParseIP("192.0.2.1"), Remote: net.ParseIP("198.51.100.7"), IKey: 7, TTL: 64,
	}
	gre := mustAdd(g)(b.AddGre("gre1", false, props))
	gretap := mustAdd(g)(b.AddGre("gretap1", true, props))

	l, _ := b.Link(gre)
	g.Expect(l.Type).To(Equal(platform.LinkTypeGre))
	g.Expect(l.HardwareAddr).To(BeEmpty())
	l, _ = b.Link(gretap)
	g.Expect(l.Type).To(Equal(platform.LinkTypeGretap))

	got, err := b.GreProperties(gretap)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(got).To(Equal(props))
	_, err = b.GreProperties(eth)
	g.Expect(err).To(HaveOccurred())
}

func TestBackend_VlanMaps(t *testing.T) {
	g := NewWithT(t)
	b := New()

	eth := mustAdd(g)(b.AddLink("eth0", platform.LinkTypeEthernet, nil))
	vlan := mustAdd(g)(b.AddVlan("eth0.10", eth, 10))
	drainNotifications(b)

	g.Expect(b.SetVlanIngressMap(vlan, 3, 5)).To(Succeed())
	g.Expect(b.SetVlanIngressMap(vlan, 4, 4)).To(Succeed())
	g.Expect(b.SetVlanEgressMap(vlan, 6, 2)).To(Succeed())
	g.Expect(drainNotifications(b)).To(HaveLen(3))

	props, err := b.VlanProperties(vlan)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(props.IngressMap).To(Equal(map[uint32]uint32{3: 5, 4: 4}))
	g.Expect(props.EgressMap).To(Equal(map[uint32]uint32{6: 2}))

	// callers get a copy
	props.IngressMap[3] = 0
	props, _ = b.VlanProperties(vlan)
	g.Expect(props.IngressMap).To(HaveKeyWithValue(uint32(3), uint32(5)))

	g.Expect(b.SetVlanEgressMap(eth, 1, 1)).ToNot(Succeed())
	g.Expect(perrors.IsNotFound(b.SetVlanIngressMap(99, 1, 1))).To(BeTrue())
}

func TestBackend_InfinibandPartition(t *testing.T) {
	g := NewWithT(t)
	b := New()

	ib := mustAdd(g)(b.AddLink("ib0", platform.LinkTypeInfiniband, nil))
	eth := mustAdd(g)(b.AddLink("eth0", platform.LinkTypeEthernet, nil))

	child := mustAdd(g)(b.AddInfinibandPartition("ib0.8001", ib, 0x8001))
	l, err := b.Link(child)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(l.Type).To(Equal(platform.LinkTypeInfiniband))
	g.Expect(l.Parent).To(Equal(ib))

	again, err := b.AddInfinibandPartition("ib0.8001", ib, 0x8001)
	g.Expect(perrors.IsAlreadyExists(err)).To(BeTrue())
	g.Expect(again).To(Equal(child))

	_, err = b.AddInfinibandPartition("eth0.8001", eth, 0x8001)
	g.Expect(err).To(HaveOccurred())

	g.Expect(b.DeleteLink(ib)).To(Succeed())
	_, err = b.Link(child)
	g.Expect(perrors.IsNotFound(err)).To(BeTrue())
}

func TestBackend_LinkCapabilities(t *testing.T) {
	g := NewWithT(t)
	b := New()

	eth := mustAdd(g)(b.AddLink("eth0", platform.LinkTypeEthernet, nil))
	tun := mustAdd(g)(b.AddTun("tun0", platform.TunProperties{Mode: "tun"}))
	ib := mustAdd(g)(b.AddLink("ib0", platform.LinkTypeInfiniband, nil))

	supported, err := b.SupportsVlans(eth)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(supported).To(BeTrue())
	for _, ifindex := range []int{tun, ib} {
		supported, err = b.SupportsVlans(ifindex)
		g.Expect(err).ToNot(HaveOccurred())
		g.Expect(supported).To(BeFalse())
	}
	b.SetVlanChallenged(eth, true)
	g.Expect(b.SupportsVlans(eth)).To(BeFalse())

	g.Expect(b.SupportsCarrierDetect(eth)).To(BeTrue())
	b.SetCarrierDetect(eth, false)
	g.Expect(b.SupportsCarrierDetect(eth)).To(BeFalse())

	_, err = b.PhysicalPortID(eth)
	g.Expect(perrors.IsNotFound(err)).To(BeTrue())
	b.SetPhysicalPortID(eth, "0123abcd")
	g.Expect(b.PhysicalPortID(eth)).To(Equal("0123abcd"))

	_, err = b.SupportsCarrierDetect(99)
	g.Expect(perrors.IsNotFound(err)).To(BeTrue())
}
