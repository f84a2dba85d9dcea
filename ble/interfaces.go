package ble

//go:generate mockgen -destination=mock_ble.go -package=ble proxsense/ble Delegate

import "time"

// Clock abstracts time so device bookkeeping can be driven by tests.
type Clock interface {
	Now() time.Time
}

// Delegate observes attribute changes. It is called synchronously from the
// mutating goroutine after the change is applied, once per change.
type Delegate interface {
	DeviceDidUpdate(device *Device, attribute Attribute)
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

type nopDelegate struct{}

func (nopDelegate) DeviceDidUpdate(*Device, Attribute) {}
