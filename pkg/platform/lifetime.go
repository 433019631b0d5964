package platform

import (
	"fmt"
	"math"
	"time"

	"k8s.io/utils/clock"
)

const (
	// LifetimePermanent marks an address that never expires
	LifetimePermanent uint32 = math.MaxUint32

	// CounterWrapInterval is how long the 32 bit, 1/100 s IFA_CACHEINFO
	// timestamp counts before it wraps (about 497 days), in milliseconds.
	CounterWrapInterval int64 = (int64(math.MaxUint32) + 1) * 10

	// lifetimeJitter is how far two readings of the same absolute expiry may
	// drift apart while still describing the same kernel state
	lifetimeJitter = 2
)

type (
	// RawLifetime is the lifetime information of an address as the kernel
	// reports it
	RawLifetime struct {
		// Valid and Preferred count seconds from the moment the message was built
		Valid     uint32
		Preferred uint32
		// Updated is the CLOCK_MONOTONIC time of the last address change in
		// 1/100 s; it wraps every CounterWrapInterval
		Updated uint32
	}

	// Lifetime anchors relative Lifetime and Preferred seconds at Timestamp,
	// a platform monotonic second. Timestamp+Lifetime is the absolute expiry.
	Lifetime struct {
		Timestamp uint32
		Lifetime  uint32
		Preferred uint32
	}

	// LifetimeTranslator turns kernel lifetimes into absolute expiries that
	// stay the same however often the same kernel state is read back
	LifetimeTranslator struct {
		clock clock.PassiveClock
		// start is second 1 of the platform monotonic scale
		start time.Time
		// boot is zero on the kernel CLOCK_MONOTONIC scale
		boot time.Time
	}
)

// NewLifetimeTranslator starts the platform monotonic scale at clk.Now().
// sinceBoot is the current CLOCK_MONOTONIC reading.
func NewLifetimeTranslator(clk clock.PassiveClock, sinceBoot time.Duration) *LifetimeTranslator {
	now := clk.Now()
	return &LifetimeTranslator{
		clock: clk,
		start: now,
		boot:  now.Add(-sinceBoot),
	}
}

// NowMillis is the platform monotonic time. It never goes below 1000.
func (t *LifetimeTranslator) NowMillis() int64 {
	return t.clock.Since(t.start).Milliseconds() + 1000
}

func (t *LifetimeTranslator) NowSeconds() uint32 {
	return uint32(t.NowMillis() / 1000)
}

// KernelMillis is the current CLOCK_MONOTONIC time in milliseconds
func (t *LifetimeTranslator) KernelMillis() int64 {
	return t.clock.Since(t.boot).Milliseconds()
}

// KernelCounter is the current CLOCK_MONOTONIC time in the wrapping
// 1/100 s units of RawLifetime.Updated
func (t *LifetimeTranslator) KernelCounter() uint32 {
	return uint32((t.KernelMillis() / 10) % (int64(math.MaxUint32) + 1))
}

// Translate converts raw into an anchored Lifetime. Permanent addresses get
// Timestamp 0. A reading that cannot be anchored causally is clamped to an
// already expiring sentinel instead of a negative duration.
func (t *LifetimeTranslator) Translate(raw RawLifetime) Lifetime {
	if raw.Valid == LifetimePermanent && raw.Preferred == LifetimePermanent {
		return Lifetime{Lifetime: LifetimePermanent, Preferred: LifetimePermanent}
	}

	now := t.NowSeconds()
	preferred := min(raw.Preferred, raw.Valid)

	validUntil := LifetimePermanent
	if raw.Valid != LifetimePermanent {
		validUntil = expiry(now, raw.Valid)
	}
	preferredUntil := expiry(now, preferred)

	if validUntil <= 1 {
		return Lifetime{Timestamp: 1, Lifetime: 1, Preferred: 0}
	}

	timestamp := min(t.anchor(raw.Updated), validUntil-1)
	return Lifetime{
		Timestamp: timestamp,
		Lifetime:  remaining(timestamp, validUntil),
		Preferred: remaining(timestamp, preferredUntil),
	}
}

// Relative converts lifetimes relative to now into what the kernel expects
// in a request: the seconds still left of timestamp+lifetime
func (t *LifetimeTranslator) Relative(l Lifetime) (valid, preferred uint32) {
	if l.Timestamp == 0 {
		return l.Lifetime, l.Preferred
	}
	now := t.NowSeconds()
	return remaining(now, absolute(l.Timestamp, l.Lifetime)), remaining(now, absolute(l.Timestamp, l.Preferred))
}

// anchor maps the kernel's last update counter onto the platform scale, in seconds
func (t *LifetimeTranslator) anchor(updated uint32) uint32 {
	if updated == 0 {
		return 1
	}

	nowPlatform := t.NowMillis()
	nowKernel := t.KernelMillis()
	result := nowPlatform - (nowKernel - CounterToMillis(updated, nowKernel))

	// the address predates the process, or suspend made the clocks drift
	if result <= 1000 {
		return 1
	}
	if result > nowPlatform {
		return uint32(nowPlatform / 1000)
	}
	return uint32(result / 1000)
}

// CounterToMillis converts a wrapping 1/100 s counter into milliseconds on
// the scale of now, the current CLOCK_MONOTONIC time in milliseconds. A
// counter that would lie in the future is truncated to now.
func CounterToMillis(counter uint32, now int64) int64 {
	ms := int64(counter) * 10

	if ms > now {
		return now
	}
	if now >= CounterWrapInterval {
		ms += (now / CounterWrapInterval) * CounterWrapInterval
		if ms > now {
			ms -= CounterWrapInterval
		}
	}
	return ms
}

func expiry(now, lifetime uint32) uint32 {
	t := int64(now) + int64(lifetime)
	return uint32(min(t, int64(LifetimePermanent)-1))
}

func remaining(start, end uint32) uint32 {
	if end == LifetimePermanent {
		return LifetimePermanent
	}
	if start >= end {
		return 0
	}
	return end - start
}

// absolute is the platform second at which a lifetime anchored at timestamp ends
func absolute(timestamp, lifetime uint32) uint32 {
	if lifetime == LifetimePermanent {
		return LifetimePermanent
	}
	return expiry(timestamp, lifetime)
}

// lifetimesEqualFuzzy compares two absolute expiries allowing for the jitter
// of kernel timestamps. Permanent only equals permanent.
func lifetimesEqualFuzzy(a, b uint32) bool {
	if a == b {
		return true
	}
	if a == LifetimePermanent || b == LifetimePermanent {
		return false
	}
	if a > b {
		return a-b <= lifetimeJitter
	}
	return b-a <= lifetimeJitter
}

func formatLifetimes(timestamp, lifetime, preferred uint32) string {
	format := func(v uint32) string {
		if v == LifetimePermanent {
			return "forever"
		}
		return fmt.Sprintf("%d", v)
	}
	return fmt.Sprintf("lft %s pref %s time %d", format(lifetime), format(preferred), timestamp)
}

// ValidUntil is the absolute platform second the address expires at
func (a IP4Address) ValidUntil() uint32     { return absolute(a.Timestamp, a.Lifetime) }
func (a IP4Address) PreferredUntil() uint32 { return absolute(a.Timestamp, a.Preferred) }
func (a IP6Address) ValidUntil() uint32     { return absolute(a.Timestamp, a.Lifetime) }
func (a IP6Address) PreferredUntil() uint32 { return absolute(a.Timestamp, a.Preferred) }

func (a IP4Address) lifetime() Lifetime {
	return Lifetime{Timestamp: a.Timestamp, Lifetime: a.Lifetime, Preferred: a.Preferred}
}

func (a IP6Address) lifetime() Lifetime {
	return Lifetime{Timestamp: a.Timestamp, Lifetime: a.Lifetime, Preferred: a.Preferred}
}

// WithLifetime returns a copy of a anchored at l
func (a IP4Address) WithLifetime(l Lifetime) IP4Address {
	a.Timestamp, a.Lifetime, a.Preferred = l.Timestamp, l.Lifetime, l.Preferred
	return a
}

func (a IP6Address) WithLifetime(l Lifetime) IP6Address {
	a.Timestamp, a.Lifetime, a.Preferred = l.Timestamp, l.Lifetime, l.Preferred
	return a
}

// RequestLifetimes normalizes the relative lifetimes of an address about to
// be added: lifetime 0 asks for a permanent address and preferred never
// exceeds valid
func RequestLifetimes(lifetime, preferred uint32) (valid, pref uint32) {
	if lifetime == 0 {
		return LifetimePermanent, LifetimePermanent
	}
	return lifetime, min(preferred, lifetime)
}
