package kernel

import (
	"net"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/assert"
	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netlink/nl"
	"go.uber.org/mock/gomock"
	"golang.org/x/sys/unix"

	_ "github.com/netcfgd/netcfgd/internal/test"
	perrors "github.com/netcfgd/netcfgd/pkg/errors"
	"github.com/netcfgd/netcfgd/pkg/platform"
)

func addrMessage(family, index, plen int, attrs ...*nl.RtAttr) []byte {
	msg := nl.NewIfAddrmsg(family)
	msg.Index = uint32(index)
	msg.Prefixlen = uint8(plen)
	b := msg.Serialize()
	for _, attr := range attrs {
		b = append(b, attr.Serialize()...)
	}
	return b
}

func cacheInfo(valid, preferred, updated uint32) *nl.RtAttr {
	ci := &nl.IfaCacheInfo{IfaCacheinfo: unix.IfaCacheinfo{
		Prefered: preferred,
		Valid:    valid,
		Cstamp:   updated,
		Tstamp:   updated,
	}}
	return nl.NewRtAttr(unix.IFA_CACHEINFO, ci.Serialize())
}

func TestParseAddressMessage(t *testing.T) {
	local := net.ParseIP("10.0.0.1").To4()
	peer := net.ParseIP("10.0.0.2").To4()

	testCases := []struct {
		name     string
		msg      []byte
		expected rawAddress
		error    bool
	}{
		{
			name: "address without cacheinfo is permanent",
			msg: addrMessage(unix.AF_INET, 2, 24,
				nl.NewRtAttr(unix.IFA_ADDRESS, local),
				nl.NewRtAttr(unix.IFA_LOCAL, local),
				nl.NewRtAttr(unix.IFA_LABEL, nl.ZeroTerminated("eth0:1"))),
			expected: rawAddress{
				family: unix.AF_INET, index: 2, prefixlen: 24,
				local: local, address: local, label: "eth0:1",
				lifetime: platform.RawLifetime{Valid: platform.LifetimePermanent, Preferred: platform.LifetimePermanent},
			},
		},
		{
			name: "point to point",
			msg: addrMessage(unix.AF_INET, 3, 24,
				nl.NewRtAttr(unix.IFA_ADDRESS, peer),
				nl.NewRtAttr(unix.IFA_LOCAL, local)),
			expected: rawAddress{
				family: unix.AF_INET, index: 3, prefixlen: 24,
				local: local, address: peer,
				lifetime: platform.RawLifetime{Valid: platform.LifetimePermanent, Preferred: platform.LifetimePermanent},
			},
		},
		{
			name: "extended flags and cacheinfo",
			msg: addrMessage(unix.AF_INET6, 2, 64,
				nl.NewRtAttr(unix.IFA_ADDRESS, net.ParseIP("2001:db8::1")),
				nl.NewRtAttr(unix.IFA_FLAGS, nl.Uint32Attr(unix.IFA_F_MANAGETEMPADDR)),
				cacheInfo(3600, 1800, 4242)),
			expected: rawAddress{
				family: unix.AF_INET6, index: 2, prefixlen: 64,
				address:  net.ParseIP("2001:db8::1"),
				flags:    unix.IFA_F_MANAGETEMPADDR,
				lifetime: platform.RawLifetime{Valid: 3600, Preferred: 1800, Updated: 4242},
			},
		},
		{
			name:  "no address",
			msg:   addrMessage(unix.AF_INET, 2, 24),
			error: true,
		},
		{
			name:  "truncated",
			msg:   []byte{unix.AF_INET, 24},
			error: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			g := NewWithT(t)

			raw, err := parseAddressMessage(tc.msg)
			if tc.error {
				g.Expect(err).To(HaveOccurred())
				return
			}
			g.Expect(err).ToNot(HaveOccurred())
			g.Expect(raw).To(Equal(tc.expected))
		})
	}
}

func TestBackend_IP4Addresses(t *testing.T) {
	g := NewWithT(t)
	env := newTestEnv(t)
	local := net.ParseIP("10.0.0.1").To4()

	env.dumper.EXPECT().DumpAddresses(unix.AF_INET).Return([][]byte{
		addrMessage(unix.AF_INET, 1, 8,
			nl.NewRtAttr(unix.IFA_ADDRESS, net.ParseIP("127.0.0.1").To4()),
			nl.NewRtAttr(unix.IFA_LOCAL, net.ParseIP("127.0.0.1").To4()),
			cacheInfo(platform.LifetimePermanent, platform.LifetimePermanent, 0)),
		addrMessage(unix.AF_INET, 3, 24,
			nl.NewRtAttr(unix.IFA_ADDRESS, net.ParseIP("10.0.0.2").To4()),
			nl.NewRtAttr(unix.IFA_LOCAL, local)),
		// a dump of the wrong family is skipped
		addrMessage(unix.AF_INET6, 1, 128, nl.NewRtAttr(unix.IFA_ADDRESS, net.IPv6loopback)),
	}, nil)

	addrs, err := env.backend.IP4Addresses()
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(addrs).To(HaveLen(2))
	g.Expect(addrs[0].Timestamp).To(BeZero())
	g.Expect(addrs[0].Lifetime).To(Equal(platform.LifetimePermanent))
	g.Expect(addrs[0].Peer).To(BeNil())
	g.Expect(addrs[1].Address).To(Equal(local))
	g.Expect(addrs[1].Peer).To(Equal(net.ParseIP("10.0.0.2").To4()))
	g.Expect(addrs[1].Key()).To(Equal(platform.NewIP4AddressKey(3, local, 24)))
}

func TestBackend_IP6AddressLifetimesAreStable(t *testing.T) {
	g := NewWithT(t)
	env := newTestEnv(t)
	addr := net.ParseIP("2001:db8::1")
	updated := env.backend.translator.KernelCounter()

	messages := func(valid, preferred uint32) [][]byte {
		return [][]byte{addrMessage(unix.AF_INET6, 2, 64,
			nl.NewRtAttr(unix.IFA_ADDRESS, addr),
			cacheInfo(valid, preferred, updated))}
	}
	env.dumper.EXPECT().DumpAddresses(unix.AF_INET6).Return(messages(3600, 1800), nil)
	env.dumper.EXPECT().DumpAddresses(unix.AF_INET6).Return(messages(3590, 1790), nil)

	key := platform.NewIP6AddressKey(2, addr, 64)
	first, err := env.backend.IP6Address(key)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(first.Timestamp).To(BeEquivalentTo(1))
	g.Expect(first.Lifetime).To(BeEquivalentTo(3600))
	g.Expect(first.Preferred).To(BeEquivalentTo(1800))
	g.Expect(first.ValidUntil()).To(Equal(env.backend.translator.NowSeconds() + 3600))

	// the kernel counts the remaining lifetime down; the expiry stays put
	env.clock.Step(10 * time.Second)
	second, err := env.backend.IP6Address(key)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(second.ValidUntil()).To(Equal(first.ValidUntil()))
	g.Expect(second.PreferredUntil()).To(Equal(first.PreferredUntil()))
}

func TestBackend_IP4AddressMissing(t *testing.T) {
	g := NewWithT(t)
	env := newTestEnv(t)
	env.dumper.EXPECT().DumpAddresses(unix.AF_INET).Return(nil, nil)

	_, err := env.backend.IP4Address(platform.NewIP4AddressKey(2, net.ParseIP("192.0.2.1"), 24))
	g.Expect(perrors.IsNotFound(err)).To(BeTrue())
}

func TestBackend_DumpFailure(t *testing.T) {
	g := NewWithT(t)
	env := newTestEnv(t)
	env.dumper.EXPECT().DumpAddresses(unix.AF_INET6).Return(nil, assert.AnError)

	_, err := env.backend.IP6Addresses()
	g.Expect(err).To(MatchError(assert.AnError))
	g.Expect(perrors.OpOf(err)).To(Equal(perrors.OpDump))
}

func TestBackend_AddIP4Address(t *testing.T) {
	testCases := []struct {
		name     string
		addr     platform.IP4Address
		validate func(g *WithT, req *netlink.Addr)
		addErr   error
		errCheck func(error) bool
	}{
		{
			name: "permanent address",
			addr: platform.IP4Address{Index: 2, Address: net.ParseIP("192.0.2.1"), Plen: 24, Label: "eth0:web"},
			validate: func(g *WithT, req *netlink.Addr) {
				g.Expect(req.LinkIndex).To(Equal(2))
				g.Expect(req.IPNet.String()).To(Equal("192.0.2.1/24"))
				g.Expect(req.Peer).To(BeNil())
				g.Expect(req.Label).To(Equal("eth0:web"))
				g.Expect(uint32(req.ValidLft)).To(Equal(platform.LifetimePermanent))
				g.Expect(uint32(req.PreferedLft)).To(Equal(platform.LifetimePermanent))
			},
		},
		{
			name: "preferred is capped by valid",
			addr: platform.IP4Address{Index: 2, Address: net.ParseIP("192.0.2.1"), Plen: 24, Lifetime: 600, Preferred: 900},
			validate: func(g *WithT, req *netlink.Addr) {
				g.Expect(req.ValidLft).To(Equal(600))
				g.Expect(req.PreferedLft).To(Equal(600))
			},
		},
		{
			name: "point to point",
			addr: platform.IP4Address{Index: 3, Address: net.ParseIP("10.0.0.1"), Peer: net.ParseIP("10.0.0.2"), Plen: 24},
			validate: func(g *WithT, req *netlink.Addr) {
				g.Expect(req.IPNet.String()).To(Equal("10.0.0.1/32"))
				g.Expect(req.Peer.String()).To(Equal("10.0.0.2/24"))
			},
		},
		{
			name:     "missing link",
			addr:     platform.IP4Address{Index: 9, Address: net.ParseIP("192.0.2.1"), Plen: 24},
			validate: func(g *WithT, req *netlink.Addr) {},
			addErr:   unix.ENODEV,
			errCheck: perrors.IsNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			g := NewWithT(t)
			env := newTestEnv(t)
			env.handle.EXPECT().AddrReplace(nil, gomock.Any()).DoAndReturn(func(_ netlink.Link, req *netlink.Addr) error {
				tc.validate(g, req)
				return tc.addErr
			})

			err := env.backend.AddIP4Address(tc.addr)
			if tc.errCheck != nil {
				g.Expect(tc.errCheck(err)).To(BeTrue(), "unexpected error %v", err)
				return
			}
			g.Expect(err).ToNot(HaveOccurred())
		})
	}
}

func TestBackend_AddIP6AddressRejectsIPv4(t *testing.T) {
	g := NewWithT(t)
	env := newTestEnv(t)

	err := env.backend.AddIP6Address(platform.IP6Address{Index: 2, Address: net.ParseIP("192.0.2.1"), Plen: 24})
	g.Expect(err).To(HaveOccurred())
}

func TestBackend_DeleteIP4AddressWithPeer(t *testing.T) {
	g := NewWithT(t)
	env := newTestEnv(t)
	local := net.ParseIP("10.0.0.1").To4()

	env.dumper.EXPECT().DumpAddresses(unix.AF_INET).Return([][]byte{
		addrMessage(unix.AF_INET, 3, 24,
			nl.NewRtAttr(unix.IFA_ADDRESS, net.ParseIP("10.0.0.2").To4()),
			nl.NewRtAttr(unix.IFA_LOCAL, local)),
	}, nil)
	env.handle.EXPECT().AddrDel(nil, gomock.Any()).DoAndReturn(func(_ netlink.Link, req *netlink.Addr) error {
		g.Expect(req.LinkIndex).To(Equal(3))
		g.Expect(req.IPNet.String()).To(Equal("10.0.0.1/32"))
		g.Expect(req.Peer.String()).To(Equal("10.0.0.2/24"))
		return nil
	})

	g.Expect(env.backend.DeleteIP4Address(platform.NewIP4AddressKey(3, local, 24))).To(Succeed())
}
