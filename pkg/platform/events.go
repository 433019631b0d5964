package platform

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
)

type ChangeType int

const (
	ChangeAdded ChangeType = iota + 1
	ChangeChanged
	ChangeRemoved
)

func (c ChangeType) String() string {
	switch c {
	case ChangeAdded:
		return "added"
	case ChangeChanged:
		return "changed"
	case ChangeRemoved:
		return "removed"
	default:
		return fmt.Sprintf("change(%d)", int(c))
	}
}

// Origin tells observers what caused a change
type Origin int

const (
	// OriginInternal changes follow a mutation requested through the Platform
	OriginInternal Origin = iota + 1
	// OriginExternal changes were announced by the kernel
	OriginExternal
	// OriginCacheCheck changes were found while re-verifying dependents or
	// resynchronizing
	OriginCacheCheck
)

func (o Origin) String() string {
	switch o {
	case OriginInternal:
		return "internal"
	case OriginExternal:
		return "external"
	case OriginCacheCheck:
		return "cache-check"
	default:
		return fmt.Sprintf("origin(%d)", int(o))
	}
}

// Event announces one cache transition. Object is a snapshot: the new value
// for added and changed objects, the last cached value for removed ones.
type Event struct {
	ObjectType ObjectType
	Index      int
	Object     Object
	Change     ChangeType
	Origin     Origin
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s (%s): %v", e.ObjectType, e.Change, e.Origin, e.Object)
}

type observer struct {
	id int
	fn func(Event)
}

// announcer delivers events to observers in subscription order. The
// observer list is copy-on-write: subscribe and unsubscribe may run on any
// goroutine while the event loop emits from its own snapshot.
type announcer struct {
	mu        sync.Mutex
	nextID    int
	observers atomic.Pointer[[]observer]
}

func (a *announcer) subscribe(fn func(Event)) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextID++
	id := a.nextID
	a.store(append(slices.Clip(a.load()), observer{id: id, fn: fn}))
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		current := a.load()
		for i, o := range current {
			if o.id == id {
				a.store(append(current[:i:i], current[i+1:]...))
				return
			}
		}
	}
}

func (a *announcer) load() []observer {
	if list := a.observers.Load(); list != nil {
		return *list
	}
	return nil
}

// store publishes list; callers hold mu and never mutate a published slice
func (a *announcer) store(list []observer) {
	a.observers.Store(&list)
}

func (a *announcer) emit(e Event) {
	// an observer unsubscribed during this loop may still see e
	for _, o := range a.load() {
		o.fn(Event{
			ObjectType: e.ObjectType,
			Index:      e.Index,
			Object:     clone(e.Object),
			Change:     e.Change,
			Origin:     e.Origin,
		})
	}
}
