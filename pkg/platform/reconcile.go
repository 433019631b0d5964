package platform

import (
	"github.com/sirupsen/logrus"

	"github.com/netcfgd/netcfgd/internal/middleware/logger"
	perrors "github.com/netcfgd/netcfgd/pkg/errors"
)

var dependentTypes = []ObjectType{
	ObjectTypeIP4Address,
	ObjectTypeIP6Address,
	ObjectTypeIP4Route,
	ObjectTypeIP6Route,
}

// refresh re-verifies key against the backend and applies the outcome. The
// notification or request that triggered it is never trusted as state.
func (p *Platform) refresh(key Key, origin Origin) {
	fresh, err := p.query(key)
	if err != nil {
		if !perrors.IsNotFound(err) {
			p.backendError(err)
			return
		}
		fresh = nil
	}
	p.reconcile(key, fresh, origin)
}

// query fetches the kernel's current view of key. Absence is a NotFoundError.
func (p *Platform) query(key Key) (Object, error) {
	var (
		obj Object
		err error
	)
	switch k := key.(type) {
	case LinkKey:
		obj, err = wrap(p.backend.Link(int(k)))
	case IP4AddressKey:
		obj, err = wrap(p.backend.IP4Address(k))
	case IP6AddressKey:
		obj, err = wrap(p.backend.IP6Address(k))
	case IP4RouteKey:
		obj, err = wrap(p.backend.IP4Route(k))
	case IP6RouteKey:
		obj, err = wrap(p.backend.IP6Route(k))
	default:
		return nil, perrors.NewGenericError(perrors.OpDump, key.String(), nil)
	}
	return obj, err
}

func wrap[V Object](v V, err error) (Object, error) {
	if err != nil {
		return nil, err
	}
	return v, nil
}

// reconcile applies ground truth fresh (nil when absent) for key
func (p *Platform) reconcile(key Key, fresh Object, origin Origin) {
	if k, ok := key.(LinkKey); ok {
		p.reconcileLink(k, fresh, origin)
		return
	}

	cached, had := p.cache.peek(key)
	switch {
	case !had && fresh == nil:
		return
	case fresh == nil:
		p.cache.Remove(key)
		p.announce(cached, ChangeRemoved, origin)
		// the kernel drops routes whose preferred source went away without telling anyone
		if key.ObjectType() == ObjectTypeIP4Address {
			p.recheck(key.Ifindex(), ObjectTypeIP4Route)
		}
	case !had:
		p.cache.Upsert(fresh)
		p.announce(fresh, ChangeAdded, origin)
	case objectsEqual(cached, fresh):
		return
	default:
		p.traceDiff(cached, fresh)
		p.cache.Upsert(fresh)
		p.announce(fresh, ChangeChanged, origin)
	}
}

func (p *Platform) reconcileLink(key LinkKey, fresh Object, origin Origin) {
	ifindex := int(key)

	var cached Link
	cachedObj, had := p.cache.peek(key)
	if had {
		cached = cachedObj.(Link)
	}
	wasVisible := had && p.gate.visible(cached)

	if fresh == nil {
		p.gate.withdraw(ifindex)
		if !had {
			return
		}
		p.cache.Remove(key)
		if wasVisible {
			p.announce(cached, ChangeRemoved, origin)
		}
		p.recheck(ifindex, dependentTypes...)
		if cached.Master != 0 {
			p.refresh(LinkKey(cached.Master), OriginCacheCheck)
		}
		return
	}

	link := fresh.(Link)
	p.probeDevice(&link)
	p.deriveCarrier(&link)
	nowVisible := p.gate.visible(link)

	changed := had && !objectsEqual(cached, link)
	if !had || changed {
		p.cache.Upsert(link)
	}

	switch {
	case wasVisible && !nowVisible:
		p.announce(cached, ChangeRemoved, origin)
	case !wasVisible && nowVisible:
		p.announce(link, ChangeAdded, origin)
	case nowVisible && changed:
		p.traceDiff(cached, link)
		p.announce(link, ChangeChanged, origin)
		if !link.Connected {
			// the kernel flushes routes of a link that lost carrier silently
			p.recheck(ifindex, ObjectTypeIP4Route, ObjectTypeIP6Route)
		}
	}

	// masters derive their carrier from their slaves
	switch {
	case had && cached.Master != link.Master:
		if cached.Master != 0 {
			p.refresh(LinkKey(cached.Master), OriginCacheCheck)
		}
		if link.Master != 0 {
			p.refresh(LinkKey(link.Master), OriginCacheCheck)
		}
	case !had && link.Master != 0:
		p.refresh(LinkKey(link.Master), OriginCacheCheck)
	case changed && link.Master != 0 && cached.Connected != link.Connected:
		p.refresh(LinkKey(link.Master), OriginCacheCheck)
	}
}

// probeDevice asks device enumeration about a hardware link, updating the
// gate and merging what it knows into link
func (p *Platform) probeDevice(link *Link) {
	if link.IsSoftware() {
		return
	}
	info, err := p.backend.Device(link.Index)
	switch {
	case err == nil:
		p.gate.confirm(link.Index, info)
		p.gate.decorate(link)
	case perrors.IsNotFound(err):
		p.gate.withdraw(link.Index)
	default:
		p.backendError(err)
	}
}

// deriveCarrier clears Connected on a master none of whose slaves is connected
func (p *Platform) deriveCarrier(link *Link) {
	if !link.Type.SupportsSlaves() || !link.Connected {
		return
	}
	for _, l := range p.cache.links {
		if l.Master == link.Index && l.Index != link.Index && l.Connected {
			return
		}
	}
	link.Connected = false
}

// recheck re-verifies every cached object of types on ifindex
func (p *Platform) recheck(ifindex int, types ...ObjectType) {
	for _, t := range types {
		for _, key := range p.cache.Keys(t, ifindex) {
			p.refresh(key, OriginCacheCheck)
		}
	}
}

// Resync reconciles the whole cache against a full enumeration
func (p *Platform) Resync(origin Origin) error {
	promResyncs.Inc()

	links, err := p.backend.Links()
	if err != nil {
		p.backendError(err)
		return err
	}
	p.resyncType(ObjectTypeLink, objects(links), origin)
	// masters may have been reconciled before their slaves
	for _, l := range links {
		if l.Type.SupportsSlaves() {
			p.reconcile(l.Key(), l, origin)
		}
	}

	dumps := []struct {
		objectType ObjectType
		dump       func() ([]Object, error)
	}{
		{ObjectTypeIP4Address, func() ([]Object, error) { return objectsOrError(p.backend.IP4Addresses()) }},
		{ObjectTypeIP6Address, func() ([]Object, error) { return objectsOrError(p.backend.IP6Addresses()) }},
		{ObjectTypeIP4Route, func() ([]Object, error) { return objectsOrError(p.backend.IP4Routes()) }},
		{ObjectTypeIP6Route, func() ([]Object, error) { return objectsOrError(p.backend.IP6Routes()) }},
	}
	for _, d := range dumps {
		objs, err := d.dump()
		if err != nil {
			p.backendError(err)
			return err
		}
		p.resyncType(d.objectType, objs, origin)
	}
	return nil
}

func (p *Platform) resyncType(t ObjectType, dumped []Object, origin Origin) {
	present := make(map[Key]struct{}, len(dumped))
	for _, obj := range dumped {
		present[obj.Key()] = struct{}{}
	}
	for _, key := range p.cache.Keys(t, 0) {
		if _, ok := present[key]; !ok {
			p.reconcile(key, nil, origin)
		}
	}
	for _, obj := range dumped {
		p.reconcile(obj.Key(), obj, origin)
	}
}

func objects[V Object](vs []V) []Object {
	out := make([]Object, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}

func objectsOrError[V Object](vs []V, err error) ([]Object, error) {
	if err != nil {
		return nil, err
	}
	return objects(vs), nil
}

func (p *Platform) announce(obj Object, change ChangeType, origin Origin) {
	logger.FromContext(p.ctx).WithFields(logrus.Fields{
		"type":   obj.ObjectType().String(),
		"key":    obj.Key().String(),
		"change": change.String(),
		"origin": origin.String(),
	}).Debugf("%v", obj)

	promEvents.WithLabelValues(obj.ObjectType().String(), change.String(), origin.String()).Inc()
	p.announcer.emit(Event{
		ObjectType: obj.ObjectType(),
		Index:      obj.Ifindex(),
		Object:     obj,
		Change:     change,
		Origin:     origin,
	})
}

func (p *Platform) traceDiff(before, after Object) {
	log := logger.FromContext(p.ctx)
	if log.Logger.IsLevelEnabled(logrus.TraceLevel) {
		log.WithField("key", after.Key().String()).Tracef("Object changed (-cached +kernel):\n%s", objectDiff(before, after))
	}
}
