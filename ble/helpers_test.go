package ble

import (
	"sync"
	"time"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingDelegate captures notifications in order.
type recordingDelegate struct {
	mu         sync.Mutex
	attributes []Attribute
}

func (r *recordingDelegate) DeviceDidUpdate(_ *Device, attribute Attribute) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attributes = append(r.attributes, attribute)
}

func (r *recordingDelegate) snapshot() []Attribute {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Attribute(nil), r.attributes...)
}
