package snapshot_test

import (
	"context"
	"net"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	_ "github.com/netcfgd/netcfgd/internal/test"
	perrors "github.com/netcfgd/netcfgd/pkg/errors"
	"github.com/netcfgd/netcfgd/pkg/platform"
	"github.com/netcfgd/netcfgd/pkg/platform/fake"
	"github.com/netcfgd/netcfgd/pkg/snapshot"
)

func newRunningPlatform(t *testing.T) (*platform.Platform, *snapshot.PlatformSource) {
	t.Helper()
	g := NewWithT(t)

	p := platform.New(context.Background(), fake.New(fake.WithManualDeviceConfirmation()))
	g.Expect(p.Start(context.Background())).To(Succeed())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return p, snapshot.NewPlatformSource(p)
}

func TestPlatformSource(t *testing.T) {
	g := NewWithT(t)
	p, source := newRunningPlatform(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var dummy platform.Link
	g.Expect(p.Do(ctx, func(p *platform.Platform) error {
		var err error
		dummy, err = p.AddLink("dummy0", platform.LinkTypeDummy, nil)
		if err != nil {
			return err
		}
		if err := p.SetLinkUp(dummy.Index); err != nil {
			return err
		}
		if _, err := p.AddIP4Address(platform.IP4Address{
			Index: dummy.Index, Address: net.ParseIP("192.0.2.1"), Plen: 24,
		}); err != nil {
			return err
		}
		// hidden until device enumeration confirms it
		if _, err := p.AddLink("eth0", platform.LinkTypeEthernet, nil); err != nil {
			return err
		}
		// the prefix route only arrives as a notification
		p.ProcessEvents()
		return nil
	})).To(Succeed())

	links, err := source.Links(ctx, 0)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(links).To(HaveLen(1))
	g.Expect(links[0].Name).To(Equal("dummy0"))
	g.Expect(links[0].Type).To(Equal("dummy"))
	g.Expect(links[0].Up).To(BeTrue())

	addrs, err := source.Addresses(ctx, dummy.Index)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(addrs).To(Equal([]snapshot.Address{{
		Index: dummy.Index, Family: snapshot.FamilyIPv4, Address: "192.0.2.1", Plen: 24,
	}}))

	routes, err := source.Routes(ctx, dummy.Index)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(routes).To(ContainElement(snapshot.Route{
		Index: dummy.Index, Family: snapshot.FamilyIPv4, Network: "192.0.2.0", Plen: 24, Source: "kernel",
	}))

	for _, query := range []func(context.Context, int) error{
		func(ctx context.Context, ifindex int) error { _, err := source.Links(ctx, ifindex); return err },
		func(ctx context.Context, ifindex int) error { _, err := source.Addresses(ctx, ifindex); return err },
		func(ctx context.Context, ifindex int) error { _, err := source.Routes(ctx, ifindex); return err },
	} {
		g.Expect(perrors.IsNotFound(query(ctx, 999))).To(BeTrue())
	}
}

func TestPlatformSource_EventLoopNotRunning(t *testing.T) {
	g := NewWithT(t)
	p := platform.New(context.Background(), fake.New())
	source := snapshot.NewPlatformSource(p)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := source.Links(ctx, 0)
	g.Expect(err).To(MatchError(context.DeadlineExceeded))
}
