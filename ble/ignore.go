package ble

import (
	"time"

	"github.com/cenkalti/backoff"

	"proxsense/datatype"
)

const (
	// IgnoreBackoffBase is the first ignore window after a failed detection.
	IgnoreBackoffBase = time.Minute
	// IgnoreBackoffCeiling caps the ignore window.
	IgnoreBackoffCeiling = 3 * time.Minute
	// IgnoreBackoffGrowth multiplies the window on each consecutive failure.
	IgnoreBackoffGrowth = 1.2
)

func newIgnoreBackoff(clock Clock) *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     IgnoreBackoffBase,
		RandomizationFactor: 0,
		Multiplier:          IgnoreBackoffGrowth,
		MaxInterval:         IgnoreBackoffCeiling,
		MaxElapsedTime:      0,
		Clock:               clock,
	}
	b.Reset()
	return b
}

// nextIgnoreWindow rounds away sub-millisecond jitter from the float
// multiplication and holds the window at the ceiling.
func nextIgnoreWindow(b *backoff.ExponentialBackOff) time.Duration {
	window := b.NextBackOff().Round(time.Millisecond)
	if window > IgnoreBackoffCeiling {
		window = IgnoreBackoffCeiling
	}
	return window
}

// Platform returns the detected platform.
func (d *Device) Platform() Platform {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.platform
}

// SetPlatform records a detection outcome.
//
// PlatformIgnore opens an ignore window that starts at IgnoreBackoffBase and
// grows by IgnoreBackoffGrowth on each consecutive ignore, held at
// IgnoreBackoffCeiling. A confirmed platform resets the growth; any
// non-ignore platform closes the window. The delegate is only told when the
// platform value itself changes.
func (d *Device) SetPlatform(platform Platform) {
	d.mu.Lock()
	now := d.clock.Now()
	d.lastUpdatedAt = now
	if platform == PlatformIgnore {
		if d.ignoreBackoff == nil {
			d.ignoreBackoff = newIgnoreBackoff(d.clock)
		}
		d.ignoreForDuration = nextIgnoreWindow(d.ignoreBackoff)
		d.ignoreUntil = now.Add(d.ignoreForDuration)
		d.ignoreForever = false
	} else {
		d.ignoreUntil = time.Time{}
		d.ignoreForever = false
	}
	if platform.Confirmed() {
		d.ignoreBackoff = nil
		d.ignoreForDuration = 0
	}
	changed := d.platform != platform
	d.platform = platform
	d.mu.Unlock()

	if changed {
		d.delegate.DeviceDidUpdate(d, AttributePlatform)
	}
}

// IgnoreIndefinitely opens an unbounded ignore window, for peers that can
// never be served (e.g. an incompatible protocol). A later SetPlatform
// closes it.
func (d *Device) IgnoreIndefinitely() {
	d.mu.Lock()
	d.lastUpdatedAt = d.clock.Now()
	d.ignoreForever = true
	d.ignoreUntil = time.Time{}
	changed := d.platform != PlatformIgnore
	d.platform = PlatformIgnore
	d.mu.Unlock()

	if changed {
		d.delegate.DeviceDidUpdate(d, AttributePlatform)
	}
}

// IgnoreBackoff returns the current ignore window length; ok is false once
// a confirmed platform has reset it or before the first ignore.
func (d *Device) IgnoreBackoff() (time.Duration, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.ignoreBackoff == nil {
		return 0, false
	}
	return d.ignoreForDuration, true
}

// ShouldIgnore reports whether now is strictly before the end of the ignore
// window.
func (d *Device) ShouldIgnore() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.ignoreForever {
		return true
	}
	if d.ignoreUntil.IsZero() {
		return false
	}
	return d.clock.Now().Before(d.ignoreUntil)
}

// TimeUntilIgnoreExpires is zero when not ignoring and Never for an
// unbounded window.
func (d *Device) TimeUntilIgnoreExpires() datatype.TimeInterval {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.ignoreForever {
		return datatype.Never()
	}
	if d.ignoreUntil.IsZero() {
		return datatype.Zero
	}
	remaining := d.ignoreUntil.Sub(d.clock.Now())
	if remaining <= 0 {
		return datatype.Zero
	}
	return datatype.Interval(remaining)
}
