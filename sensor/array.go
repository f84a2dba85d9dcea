package sensor

import (
	"sync"
	"sync/atomic"

	"proxsense/datatype"
)

// EventKind names a Delegate callback.
type EventKind string

const (
	EventDetect  EventKind = "detect"
	EventRead    EventKind = "read"
	EventShare   EventKind = "share"
	EventMeasure EventKind = "measure"
	EventReceive EventKind = "receive"
	EventVisit   EventKind = "visit"
	EventState   EventKind = "state"
)

// Counts is a snapshot of delivered events per kind.
type Counts struct {
	Detect, Read, Share, Measure, Receive, Visit, State int64
}

// Array fans events out to every added delegate, in the order they were
// added, and counts them. It is itself a Delegate.
type Array struct {
	mu        sync.RWMutex
	delegates []Delegate

	detect, read, share, measure, receive, visit, state atomic.Int64
}

// NewArray creates an array delivering to delegates.
func NewArray(delegates ...Delegate) *Array {
	a := &Array{}
	for _, d := range delegates {
		a.Add(d)
	}
	return a
}

// Add registers a delegate. Nil is ignored.
func (a *Array) Add(delegate Delegate) {
	if delegate == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.delegates = append(a.delegates, delegate)
}

func (a *Array) each(fn func(Delegate)) {
	a.mu.RLock()
	delegates := a.delegates
	a.mu.RUnlock()
	for _, d := range delegates {
		fn(d)
	}
}

// Counts returns the number of events delivered so far.
func (a *Array) Counts() Counts {
	return Counts{
		Detect:  a.detect.Load(),
		Read:    a.read.Load(),
		Share:   a.share.Load(),
		Measure: a.measure.Load(),
		Receive: a.receive.Load(),
		Visit:   a.visit.Load(),
		State:   a.state.Load(),
	}
}

func (a *Array) DidDetect(identifier datatype.TargetIdentifier) {
	a.detect.Add(1)
	recordEvent(EventDetect, 1)
	a.each(func(d Delegate) { d.DidDetect(identifier) })
}

func (a *Array) DidRead(payload datatype.PayloadData, from datatype.TargetIdentifier) {
	a.read.Add(1)
	recordEvent(EventRead, 1)
	a.each(func(d Delegate) { d.DidRead(payload, from) })
}

// DidShare counts one event per shared payload.
func (a *Array) DidShare(payloads []datatype.PayloadData, from datatype.TargetIdentifier) {
	a.share.Add(int64(len(payloads)))
	recordEvent(EventShare, len(payloads))
	a.each(func(d Delegate) { d.DidShare(payloads, from) })
}

func (a *Array) DidMeasure(proximity datatype.Proximity, from datatype.TargetIdentifier) {
	a.measure.Add(1)
	recordEvent(EventMeasure, 1)
	a.each(func(d Delegate) { d.DidMeasure(proximity, from) })
}

func (a *Array) DidReceive(data datatype.ImmediateSendData, from datatype.TargetIdentifier) {
	a.receive.Add(1)
	recordEvent(EventReceive, 1)
	a.each(func(d Delegate) { d.DidReceive(data, from) })
}

func (a *Array) DidVisit(location datatype.Location) {
	a.visit.Add(1)
	recordEvent(EventVisit, 1)
	a.each(func(d Delegate) { d.DidVisit(location) })
}

func (a *Array) DidUpdateState(state State) {
	a.state.Add(1)
	recordEvent(EventState, 1)
	a.each(func(d Delegate) { d.DidUpdateState(state) })
}
