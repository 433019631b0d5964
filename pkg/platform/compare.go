package platform

import (
	"bytes"
	"net"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// entityOptions make cmp treat equivalent IP encodings as equal and leave
// address lifetimes to lifetimesEqualFuzzy
var entityOptions = cmp.Options{
	cmp.Comparer(func(a, b net.IP) bool {
		if len(a) == 0 || len(b) == 0 {
			return len(a) == len(b)
		}
		return a.Equal(b)
	}),
	cmp.Comparer(func(a, b net.HardwareAddr) bool { return bytes.Equal(a, b) }),
	cmpopts.IgnoreFields(IP4Address{}, "Timestamp", "Lifetime", "Preferred"),
	cmpopts.IgnoreFields(IP6Address{}, "Timestamp", "Lifetime", "Preferred"),
}

// objectsEqual reports whether replacing a with b would be a meaningful change
func objectsEqual(a, b Object) bool {
	if a.ObjectType() != b.ObjectType() {
		return false
	}
	if !cmp.Equal(a, b, entityOptions) {
		return false
	}

	switch a := a.(type) {
	case IP4Address:
		b := b.(IP4Address)
		return lifetimesEqualFuzzy(a.ValidUntil(), b.ValidUntil()) &&
			lifetimesEqualFuzzy(a.PreferredUntil(), b.PreferredUntil())
	case IP6Address:
		b := b.(IP6Address)
		return lifetimesEqualFuzzy(a.ValidUntil(), b.ValidUntil()) &&
			lifetimesEqualFuzzy(a.PreferredUntil(), b.PreferredUntil())
	}
	return true
}

// objectDiff renders what changed between a and b for debug logs
func objectDiff(a, b Object) string {
	return cmp.Diff(a, b, cmp.Comparer(func(a, b net.IP) bool { return a.Equal(b) }))
}
