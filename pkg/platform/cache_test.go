package platform

import (
	"net"
	"testing"

	. "github.com/onsi/gomega"

	_ "github.com/netcfgd/netcfgd/internal/test"
)

func TestCache_ReturnsCopies(t *testing.T) {
	g := NewWithT(t)
	cache := NewCache()
	cache.Upsert(Link{Index: 3, Name: "eth0", Type: LinkTypeEthernet, HardwareAddr: net.HardwareAddr{0, 1, 2, 3, 4, 5}})

	obj, ok := cache.Get(LinkKey(3))
	g.Expect(ok).To(BeTrue())
	link := obj.(Link)
	link.HardwareAddr[0] = 0xff
	link.Name = "renamed"

	again, _ := cache.Get(LinkKey(3))
	g.Expect(again.(Link).Name).To(Equal("eth0"))
	g.Expect(again.(Link).HardwareAddr).To(Equal(net.HardwareAddr{0, 1, 2, 3, 4, 5}))
}

func TestCache_UpsertReplacesByKey(t *testing.T) {
	g := NewWithT(t)
	cache := NewCache()

	cache.Upsert(IP4Address{Index: 2, Address: net.ParseIP("192.0.2.1"), Plen: 24, Label: "eth0"})
	cache.Upsert(IP4Address{Index: 2, Address: net.IPv4(192, 0, 2, 1).To4(), Plen: 24, Label: "eth0:1"})

	addrs := ListOf[IP4Address](cache, nil)
	g.Expect(addrs).To(HaveLen(1))
	g.Expect(addrs[0].Label).To(Equal("eth0:1"))
}

func TestCache_ListIsOrdered(t *testing.T) {
	g := NewWithT(t)
	cache := NewCache()
	for _, r := range []IP4Route{
		{Index: 2, Network: net.ParseIP("10.0.0.0"), Plen: 8, Metric: 100},
		{Index: 1, Network: net.ParseIP("192.168.0.0"), Plen: 16},
		{Index: 2, Network: net.ParseIP("10.0.0.0"), Plen: 8, Metric: 20},
		{Index: 1, Network: net.ParseIP("172.16.0.0"), Plen: 12},
	} {
		cache.Upsert(r)
	}

	var keys []string
	for _, obj := range cache.List(ObjectTypeIP4Route, nil) {
		keys = append(keys, obj.Key().String())
	}
	g.Expect(keys).To(Equal([]string{
		"172.16.0.0/12 dev 1 metric 0",
		"192.168.0.0/16 dev 1 metric 0",
		"10.0.0.0/8 dev 2 metric 20",
		"10.0.0.0/8 dev 2 metric 100",
	}))

	g.Expect(cache.Keys(ObjectTypeIP4Route, 1)).To(HaveLen(2))
	g.Expect(cache.Len(ObjectTypeIP4Route)).To(Equal(4))
}

func TestCache_Remove(t *testing.T) {
	g := NewWithT(t)
	cache := NewCache()
	route := IP6Route{Index: 4, Network: net.ParseIP("2001:db8::"), Plen: 64}
	cache.Upsert(route)

	// metric 0 is stored as the kernel default
	_, ok := cache.Get(NewIP6RouteKey(4, net.ParseIP("2001:db8::"), 64, 1024))
	g.Expect(ok).To(BeTrue())

	g.Expect(cache.Remove(route.Key())).To(BeTrue())
	g.Expect(cache.Remove(route.Key())).To(BeFalse())
	g.Expect(cache.Len(ObjectTypeIP6Route)).To(BeZero())
}

func TestRouteKeys(t *testing.T) {
	testCases := []struct {
		name     string
		key      Key
		expected string
	}{
		{
			name:     "host bits are cleared",
			key:      NewIP4RouteKey(1, net.ParseIP("10.1.2.3"), 16, 5),
			expected: "10.1.0.0/16 dev 1 metric 5",
		},
		{
			name:     "ipv6 metric 0 becomes 1024",
			key:      NewIP6RouteKey(1, net.ParseIP("2001:db8::1"), 64, 0),
			expected: "2001:db8::/64 dev 1 metric 1024",
		},
		{
			name:     "default route",
			key:      IP4Route{Index: 7, Network: net.IPv4zero, Plen: 0, Metric: 600}.Key(),
			expected: "0.0.0.0/0 dev 7 metric 600",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			g := NewWithT(t)
			g.Expect(tc.key.String()).To(Equal(tc.expected))
		})
	}
}
