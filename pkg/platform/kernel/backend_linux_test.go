package kernel

import (
	"context"
	"net"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/spf13/afero"
	"github.com/vishvananda/netlink"
	"go.uber.org/mock/gomock"
	"golang.org/x/sys/unix"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/netcfgd/netcfgd/configuration"
	_ "github.com/netcfgd/netcfgd/internal/test"
	"github.com/netcfgd/netcfgd/pkg/platform"
)

type testEnv struct {
	backend *Backend
	handle  *MockNetlinkHandle
	dumper  *MockAddressDumper
	ethtool *MockEthtoolHandle
	fs      afero.Fs
	clock   *testingclock.FakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctrl := gomock.NewController(t)
	env := &testEnv{
		handle:  NewMockNetlinkHandle(ctrl),
		dumper:  NewMockAddressDumper(ctrl),
		ethtool: NewMockEthtoolHandle(ctrl),
		fs:      afero.NewMemMapFs(),
		clock:   testingclock.NewFakeClock(time.Unix(1700000000, 0)),
	}

	cfg := configuration.Default().Platform
	cfg.UdevGroup = UdevGroupNone
	b, err := New(context.Background(), cfg,
		WithNetlinkHandle(env.handle),
		WithAddressDumper(env.dumper),
		WithEthtool(env.ethtool),
		WithFs(env.fs),
		WithClock(env.clock))
	NewWithT(t).Expect(err).ToNot(HaveOccurred())
	b.restartWait = time.Millisecond
	env.backend = b
	return env
}

// fakeSubscriptions stands in for the kernel sockets. Every subscribe call
// hands out fresh channels and remembers the error callback.
type fakeSubscriptions struct {
	links   chan chan<- netlink.LinkUpdate
	addrs   chan chan<- netlink.AddrUpdate
	routes  chan chan<- netlink.RouteUpdate
	uevents chan chan<- uevent
	failure chan func(error)
}

func newFakeSubscriptions() *fakeSubscriptions {
	return &fakeSubscriptions{
		links:   make(chan chan<- netlink.LinkUpdate, 4),
		addrs:   make(chan chan<- netlink.AddrUpdate, 4),
		routes:  make(chan chan<- netlink.RouteUpdate, 4),
		uevents: make(chan chan<- uevent, 4),
		failure: make(chan func(error), 4),
	}
}

func (f *fakeSubscriptions) funcs() netlinkFuncs {
	return netlinkFuncs{
		LinkSubscribe: func(ch chan<- netlink.LinkUpdate, done <-chan struct{}, errorCallback func(error)) error {
			f.links <- ch
			f.failure <- errorCallback
			return nil
		},
		AddrSubscribe: func(ch chan<- netlink.AddrUpdate, done <-chan struct{}, errorCallback func(error)) error {
			f.addrs <- ch
			return nil
		},
		RouteSubscribe: func(ch chan<- netlink.RouteUpdate, done <-chan struct{}, errorCallback func(error)) error {
			f.routes <- ch
			return nil
		},
		UeventSubscribe: func(ch chan<- uevent, done <-chan struct{}, errorCallback func(error)) error {
			f.uevents <- ch
			return nil
		},
	}
}

func receive[T any](g *WithT, ch chan T) T {
	var v T
	g.Eventually(ch).Should(Receive(&v))
	return v
}

func TestBackend_NotificationsFromSubscriptions(t *testing.T) {
	g := NewWithT(t)
	env := newTestEnv(t)
	subs := newFakeSubscriptions()
	env.backend.funcs = subs.funcs()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g.Expect(env.backend.Start(ctx)).To(Succeed())
	defer env.backend.wg.Wait()
	defer cancel()

	links := receive(g, subs.links)
	addrs := receive(g, subs.addrs)
	routes := receive(g, subs.routes)
	uevents := receive(g, subs.uevents)
	notifications := env.backend.Notifications()

	links <- netlink.LinkUpdate{Link: &netlink.Dummy{LinkAttrs: netlink.LinkAttrs{Index: 4, Name: "dummy0"}}}
	g.Eventually(notifications).Should(Receive(Equal(platform.Notification{
		Kind: platform.NotifyObject,
		Key:  platform.LinkKey(4),
	})))

	addrs <- netlink.AddrUpdate{
		LinkIndex:   4,
		LinkAddress: net.IPNet{IP: net.ParseIP("192.0.2.1"), Mask: net.CIDRMask(24, 32)},
		NewAddr:     true,
	}
	g.Eventually(notifications).Should(Receive(Equal(platform.Notification{
		Kind: platform.NotifyObject,
		Key:  platform.NewIP4AddressKey(4, net.ParseIP("192.0.2.1"), 24),
	})))

	// a cloned route is not tracked; the default route that follows is
	routes <- netlink.RouteUpdate{Route: netlink.Route{
		LinkIndex: 4, Table: unix.RT_TABLE_MAIN, Type: unix.RTN_UNICAST, Family: netlink.FAMILY_V4,
		Flags: unix.RTM_F_CLONED,
	}}
	routes <- netlink.RouteUpdate{Route: netlink.Route{
		LinkIndex: 4, Table: unix.RT_TABLE_MAIN, Type: unix.RTN_UNICAST, Family: netlink.FAMILY_V4, Priority: 100,
		Gw: net.ParseIP("192.0.2.254"),
	}}
	g.Eventually(notifications).Should(Receive(Equal(platform.Notification{
		Kind: platform.NotifyObject,
		Key:  platform.NewIP4RouteKey(4, net.IPv4zero, 0, 100),
	})))

	uevents <- uevent{Subsystem: "block", Ifindex: 0}
	uevents <- uevent{Subsystem: "net", Ifindex: 4, Action: "move"}
	g.Eventually(notifications).Should(Receive(Equal(platform.Notification{
		Kind: platform.NotifyDevice,
		Key:  platform.LinkKey(4),
	})))
	g.Consistently(notifications, 50*time.Millisecond).ShouldNot(Receive())
}

func TestBackend_ResubscribesAfterFailure(t *testing.T) {
	g := NewWithT(t)
	env := newTestEnv(t)
	subs := newFakeSubscriptions()
	env.backend.funcs = subs.funcs()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g.Expect(env.backend.Start(ctx)).To(Succeed())
	defer env.backend.wg.Wait()
	defer cancel()

	receive(g, subs.links)
	fail := receive(g, subs.failure)

	// the kernel dropped messages because the socket buffer overran
	fail(netlink.ErrDumpInterrupted)

	links := receive(g, subs.links)
	receive(g, subs.addrs)
	receive(g, subs.routes)
	g.Eventually(env.backend.Notifications()).Should(Receive(Equal(platform.Notification{Kind: platform.NotifyResync})))

	links <- netlink.LinkUpdate{Link: &netlink.Dummy{LinkAttrs: netlink.LinkAttrs{Index: 9}}}
	g.Eventually(env.backend.Notifications()).Should(Receive(Equal(platform.Notification{
		Kind: platform.NotifyObject,
		Key:  platform.LinkKey(9),
	})))
}

func TestBackend_EnqueueOverflow(t *testing.T) {
	g := NewWithT(t)
	env := newTestEnv(t)
	b := env.backend

	for i := 1; i <= notificationQueueSize+10; i++ {
		b.notify(platform.LinkKey(i))
	}
	g.Expect(b.overflowed).To(BeTrue())
	g.Expect(b.Notifications()).To(HaveLen(notificationQueueSize))

	// the Platform catches up, the next notification turns into a resync request
	for range notificationQueueSize {
		<-b.notifications
	}
	b.notify(platform.LinkKey(1))
	g.Expect(b.overflowed).To(BeFalse())
	g.Expect(b.Notifications()).To(Receive(Equal(platform.Notification{Kind: platform.NotifyResync})))
	g.Expect(b.Notifications()).To(Receive(Equal(platform.Notification{Kind: platform.NotifyObject, Key: platform.LinkKey(1)})))
}

func TestBackend_Device(t *testing.T) {
	g := NewWithT(t)
	env := newTestEnv(t)
	env.backend.sysfs.udevGroup = UdevGroupUdev
	g.Expect(afero.WriteFile(env.fs, "/run/udev/data/n2", []byte("E:ID_NET_DRIVER=igb\n"), 0o644)).To(Succeed())

	gomock.InOrder(
		env.handle.EXPECT().LinkByIndex(2).
			Return(&netlink.Device{LinkAttrs: netlink.LinkAttrs{Index: 2, Name: "eth0"}}, nil),
		env.handle.EXPECT().LinkByIndex(3).
			Return(&netlink.Device{LinkAttrs: netlink.LinkAttrs{Index: 3, Name: "eth1"}}, nil),
	)

	info, err := env.backend.Device(2)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(info.Driver).To(Equal("igb"))

	_, err = env.backend.Device(3)
	g.Expect(err).To(HaveOccurred())
}
