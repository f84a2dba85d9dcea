// Package sensor is the event boundary between the discovery layer and the
// consumers of what it learns.
package sensor

//go:generate mockgen -destination=mock_sensor.go -package=sensor proxsense/sensor Delegate

import "proxsense/datatype"

// Delegate receives discovery events. Each call is delivered synchronously
// and in order; there is no batching across calls.
type Delegate interface {
	// DidDetect reports that a peer was seen.
	DidDetect(identifier datatype.TargetIdentifier)
	// DidRead reports the payload identity read from a peer.
	DidRead(payload datatype.PayloadData, from datatype.TargetIdentifier)
	// DidShare reports payload identities a peer relayed on behalf of others.
	DidShare(payloads []datatype.PayloadData, from datatype.TargetIdentifier)
	// DidMeasure reports a proximity measurement of a peer.
	DidMeasure(proximity datatype.Proximity, from datatype.TargetIdentifier)
	// DidReceive reports data pushed by a peer.
	DidReceive(data datatype.ImmediateSendData, from datatype.TargetIdentifier)
	// DidVisit reports time spent at a location.
	DidVisit(location datatype.Location)
	// DidUpdateState reports a change of sensor availability.
	DidUpdateState(state State)
}

// State is the availability of the sensor.
type State string

const (
	StateOn          State = "on"
	StateOff         State = "off"
	StateUnavailable State = "unavailable"
)

// NopDelegate ignores every event. Embed it to implement a subset.
type NopDelegate struct{}

func (NopDelegate) DidDetect(datatype.TargetIdentifier)                              {}
func (NopDelegate) DidRead(datatype.PayloadData, datatype.TargetIdentifier)          {}
func (NopDelegate) DidShare([]datatype.PayloadData, datatype.TargetIdentifier)       {}
func (NopDelegate) DidMeasure(datatype.Proximity, datatype.TargetIdentifier)         {}
func (NopDelegate) DidReceive(datatype.ImmediateSendData, datatype.TargetIdentifier) {}
func (NopDelegate) DidVisit(datatype.Location)                                       {}
func (NopDelegate) DidUpdateState(State)                                             {}
