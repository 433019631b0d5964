package platform

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/netcfgd/netcfgd/internal/middleware/logger"
	perrors "github.com/netcfgd/netcfgd/pkg/errors"
)

type (
	// Platform keeps the Cache consistent with a Backend. It is
	// single-threaded: call it from the goroutine running Run, or submit work
	// with Do. One Platform is created at daemon start and lives until exit.
	Platform struct {
		ctx       context.Context
		backend   Backend
		cache     *Cache
		gate      *visibilityGate
		announcer announcer

		tasks chan task

		// overflowLog throttles the warning printed when notifications are lost
		overflowLog *rate.Limiter
		synced      atomic.Bool
	}

	task struct {
		fn   func(*Platform) error
		done chan error
	}
)

func New(ctx context.Context, backend Backend) *Platform {
	return &Platform{
		ctx:         logger.WithComponent(ctx, "platform"),
		backend:     backend,
		cache:       NewCache(),
		gate:        newVisibilityGate(),
		tasks:       make(chan task),
		overflowLog: rate.NewLimiter(rate.Every(time.Minute), 1),
	}
}

// Start subscribes to backend notifications and fills the cache from a full
// enumeration
func (p *Platform) Start(ctx context.Context) error {
	if err := p.backend.Start(ctx); err != nil {
		return fmt.Errorf("unable to start backend: %w", err)
	}
	if err := p.Resync(OriginExternal); err != nil {
		return err
	}
	p.synced.Store(true)
	logger.FromContext(p.ctx).Infof("Platform cache populated with %d links", p.cache.Len(ObjectTypeLink))
	return nil
}

// Synced reports whether the initial enumeration finished. Safe from any goroutine.
func (p *Platform) Synced() bool {
	return p.synced.Load()
}

// Run is the event loop: it reconciles backend notifications and executes
// work submitted with Do until ctx is cancelled
func (p *Platform) Run(ctx context.Context) error {
	log := logger.FromContext(p.ctx)
	notifications := p.backend.Notifications()

	for {
		select {
		case <-ctx.Done():
			log.Debug("Platform event loop stopped")
			return nil
		case n, ok := <-notifications:
			if !ok {
				return fmt.Errorf("backend closed its notification channel")
			}
			p.handleNotification(n)
			p.ProcessEvents()
		case t := <-p.tasks:
			t.done <- t.fn(p)
		}
	}
}

// Do runs fn on the event loop goroutine and waits for it. It returns
// ctx.Err() if ctx ends first; fn may still run afterwards.
func (p *Platform) Do(ctx context.Context, fn func(*Platform) error) error {
	t := task{fn: fn, done: make(chan error, 1)}
	select {
	case p.tasks <- t:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ProcessEvents reconciles every pending notification without blocking and
// returns how many were handled
func (p *Platform) ProcessEvents() int {
	notifications := p.backend.Notifications()
	handled := 0
	for {
		select {
		case n, ok := <-notifications:
			if !ok {
				return handled
			}
			p.handleNotification(n)
			handled++
		default:
			return handled
		}
	}
}

// Subscribe registers fn for every Event. fn runs on the event loop and must
// not block. The returned func unregisters it.
func (p *Platform) Subscribe(fn func(Event)) (cancel func()) {
	return p.announcer.subscribe(fn)
}

func (p *Platform) Close() error {
	return p.backend.Close()
}

func (p *Platform) handleNotification(n Notification) {
	switch n.Kind {
	case NotifyObject:
		p.refresh(n.Key, OriginExternal)
	case NotifyDevice:
		p.refresh(n.Key, OriginExternal)
	case NotifyResync:
		log := logger.FromContext(p.ctx)
		if p.overflowLog.Allow() {
			log.Warn("Notifications were lost, resynchronizing the cache")
		} else {
			log.Debug("Notifications were lost, resynchronizing the cache")
		}
		if err := p.Resync(OriginCacheCheck); err != nil {
			log.Errorf("Resynchronization failed: %v", err)
		}
	default:
		logger.FromContext(p.ctx).Warnf("Ignoring notification of unknown kind %d", n.Kind)
	}
}

// backendError logs and counts an unexpected backend failure
func (p *Platform) backendError(err error) {
	perrors.LogError(p.ctx, err)
	promBackendErrors.WithLabelValues(perrors.OpOf(err), perrors.Kind(err)).Inc()
}
