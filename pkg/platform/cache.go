package platform

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/mitchellh/copystructure"
)

// Cache holds the last kernel-confirmed state of every object. It is owned by
// the Platform event loop and is not safe for concurrent use. Everything it
// hands out is a deep copy.
type Cache struct {
	links        map[LinkKey]Link
	ip4Addresses map[IP4AddressKey]IP4Address
	ip6Addresses map[IP6AddressKey]IP6Address
	ip4Routes    map[IP4RouteKey]IP4Route
	ip6Routes    map[IP6RouteKey]IP6Route
}

func NewCache() *Cache {
	return &Cache{
		links:        map[LinkKey]Link{},
		ip4Addresses: map[IP4AddressKey]IP4Address{},
		ip6Addresses: map[IP6AddressKey]IP6Address{},
		ip4Routes:    map[IP4RouteKey]IP4Route{},
		ip6Routes:    map[IP6RouteKey]IP6Route{},
	}
}

// Upsert stores a copy of obj under obj.Key()
func (c *Cache) Upsert(obj Object) {
	switch o := clone(obj).(type) {
	case Link:
		c.links[LinkKey(o.Index)] = o
	case IP4Address:
		c.ip4Addresses[o.Key().(IP4AddressKey)] = o
	case IP6Address:
		c.ip6Addresses[o.Key().(IP6AddressKey)] = o
	case IP4Route:
		c.ip4Routes[o.Key().(IP4RouteKey)] = o
	case IP6Route:
		c.ip6Routes[o.Key().(IP6RouteKey)] = o
	default:
		panic(fmt.Sprintf("cache: unsupported object %T", obj))
	}
}

// Remove drops key and reports whether it was present
func (c *Cache) Remove(key Key) bool {
	switch k := key.(type) {
	case LinkKey:
		return remove(c.links, k)
	case IP4AddressKey:
		return remove(c.ip4Addresses, k)
	case IP6AddressKey:
		return remove(c.ip6Addresses, k)
	case IP4RouteKey:
		return remove(c.ip4Routes, k)
	case IP6RouteKey:
		return remove(c.ip6Routes, k)
	}
	return false
}

// Get returns a copy of the object stored under key
func (c *Cache) Get(key Key) (Object, bool) {
	obj, ok := c.peek(key)
	if !ok {
		return nil, false
	}
	return clone(obj), true
}

// peek is Get without the copy, for read-only use inside the package
func (c *Cache) peek(key Key) (Object, bool) {
	var (
		obj Object
		ok  bool
	)
	switch k := key.(type) {
	case LinkKey:
		obj, ok = lookup(c.links, k)
	case IP4AddressKey:
		obj, ok = lookup(c.ip4Addresses, k)
	case IP6AddressKey:
		obj, ok = lookup(c.ip6Addresses, k)
	case IP4RouteKey:
		obj, ok = lookup(c.ip4Routes, k)
	case IP6RouteKey:
		obj, ok = lookup(c.ip6Routes, k)
	}
	return obj, ok
}

// List returns copies of every object of type t accepted by filter, ordered
// by key. A nil filter accepts everything.
func (c *Cache) List(t ObjectType, filter func(Object) bool) []Object {
	var out []Object
	collect := func(obj Object) {
		if filter == nil || filter(obj) {
			out = append(out, clone(obj))
		}
	}
	switch t {
	case ObjectTypeLink:
		each(c.links, collect)
	case ObjectTypeIP4Address:
		each(c.ip4Addresses, collect)
	case ObjectTypeIP6Address:
		each(c.ip6Addresses, collect)
	case ObjectTypeIP4Route:
		each(c.ip4Routes, collect)
	case ObjectTypeIP6Route:
		each(c.ip6Routes, collect)
	}
	slices.SortFunc(out, func(a, b Object) int { return compareKeys(a.Key(), b.Key()) })
	return out
}

// Keys returns the keys of type t whose ifindex is ifindex, or all keys of
// type t when ifindex is 0
func (c *Cache) Keys(t ObjectType, ifindex int) []Key {
	var out []Key
	for _, obj := range c.List(t, nil) {
		if ifindex == 0 || obj.Ifindex() == ifindex {
			out = append(out, obj.Key())
		}
	}
	return out
}

// Len is the number of cached objects of type t
func (c *Cache) Len(t ObjectType) int {
	switch t {
	case ObjectTypeLink:
		return len(c.links)
	case ObjectTypeIP4Address:
		return len(c.ip4Addresses)
	case ObjectTypeIP6Address:
		return len(c.ip6Addresses)
	case ObjectTypeIP4Route:
		return len(c.ip4Routes)
	case ObjectTypeIP6Route:
		return len(c.ip6Routes)
	}
	return 0
}

// ListOf is the typed form of Cache.List
func ListOf[V Object](c *Cache, filter func(V) bool) []V {
	var zero V
	objs := c.List(zero.ObjectType(), func(obj Object) bool {
		return filter == nil || filter(obj.(V))
	})
	out := make([]V, 0, len(objs))
	for _, obj := range objs {
		out = append(out, obj.(V))
	}
	return out
}

func lookup[K comparable, V Object](m map[K]V, k K) (Object, bool) {
	v, ok := m[k]
	if !ok {
		return nil, false
	}
	return v, true
}

func remove[K comparable, V Object](m map[K]V, k K) bool {
	if _, ok := m[k]; !ok {
		return false
	}
	delete(m, k)
	return true
}

func each[K comparable, V Object](m map[K]V, fn func(Object)) {
	for _, v := range m {
		fn(v)
	}
}

func clone(obj Object) Object {
	c, err := copystructure.Copy(obj)
	if err != nil {
		// only plain value types are stored
		panic(fmt.Sprintf("cache: copying %T: %v", obj, err))
	}
	return c.(Object)
}

func compareKeys(a, b Key) int {
	if c := cmp.Compare(a.ObjectType(), b.ObjectType()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Ifindex(), b.Ifindex()); c != 0 {
		return c
	}
	switch a := a.(type) {
	case IP4AddressKey:
		b := b.(IP4AddressKey)
		return cmp.Or(a.Address.Compare(b.Address), cmp.Compare(a.Plen, b.Plen))
	case IP6AddressKey:
		b := b.(IP6AddressKey)
		return cmp.Or(a.Address.Compare(b.Address), cmp.Compare(a.Plen, b.Plen))
	case IP4RouteKey:
		b := b.(IP4RouteKey)
		return cmp.Or(a.Network.Compare(b.Network), cmp.Compare(a.Plen, b.Plen), cmp.Compare(a.Metric, b.Metric))
	case IP6RouteKey:
		b := b.(IP6RouteKey)
		return cmp.Or(a.Network.Compare(b.Network), cmp.Compare(a.Plen, b.Plen), cmp.Compare(a.Metric, b.Metric))
	}
	return 0
}
