package datatype

import "time"

// TimeInterval is an elapsed or remaining duration that may be unbounded.
// The zero value is a finite zero interval.
type TimeInterval struct {
	value time.Duration
	never bool
}

// Zero is the finite zero interval.
var Zero = TimeInterval{}

// Never returns the unbounded interval.
func Never() TimeInterval {
	return TimeInterval{never: true}
}

// Interval wraps a finite duration.
func Interval(d time.Duration) TimeInterval {
	return TimeInterval{value: d}
}

// IsNever reports whether the interval is unbounded.
func (t TimeInterval) IsNever() bool {
	return t.never
}

// Duration returns the finite value; ok is false for Never.
func (t TimeInterval) Duration() (time.Duration, bool) {
	if t.never {
		return 0, false
	}
	return t.value, true
}

// Exceeds reports whether the interval is longer than d. Never exceeds every
// finite duration.
func (t TimeInterval) Exceeds(d time.Duration) bool {
	return t.never || t.value > d
}

func (t TimeInterval) String() string {
	if t.never {
		return "never"
	}
	return t.value.String()
}
