package platform

import "k8s.io/apimachinery/pkg/util/sets"

// DeviceInfo is what device enumeration knows about a network interface
type DeviceInfo struct {
	Driver string
	// UDI is the sysfs device path
	UDI string
}

// visibilityGate hides hardware links until device enumeration has
// confirmed them as well as the kernel
type visibilityGate struct {
	confirmed sets.Set[int]
	devices   map[int]DeviceInfo
}

func newVisibilityGate() *visibilityGate {
	return &visibilityGate{
		confirmed: sets.New[int](),
		devices:   map[int]DeviceInfo{},
	}
}

func (g *visibilityGate) visible(l Link) bool {
	return l.IsSoftware() || g.confirmed.Has(l.Index)
}

func (g *visibilityGate) confirm(ifindex int, info DeviceInfo) {
	g.confirmed.Insert(ifindex)
	g.devices[ifindex] = info
}

func (g *visibilityGate) withdraw(ifindex int) {
	g.confirmed.Delete(ifindex)
	delete(g.devices, ifindex)
}

// decorate merges device enumeration data into l
func (g *visibilityGate) decorate(l *Link) {
	info, ok := g.devices[l.Index]
	if !ok {
		return
	}
	if info.Driver != "" {
		l.Driver = info.Driver
	}
	if info.UDI != "" {
		l.UDI = info.UDI
	}
}
