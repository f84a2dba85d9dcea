package sensor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"proxsense/datatype"
)

func TestArrayFansOutInOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	first := NewMockDelegate(ctrl)
	second := NewMockDelegate(ctrl)
	array := NewArray(first, nil, second)

	payload := datatype.PayloadData{0, 0, 0, 1}
	proximity := datatype.Proximity{Unit: datatype.ProximityUnitRSSI, Value: -60}
	received := datatype.ImmediateSendData{Data: datatype.Data{1}}
	location := datatype.Location{Reference: datatype.PlacenameLocationReference{Name: "office"}, Start: time.Unix(0, 0), End: time.Unix(60, 0)}

	gomock.InOrder(
		first.EXPECT().DidDetect(datatype.TargetIdentifier("id-1")),
		second.EXPECT().DidDetect(datatype.TargetIdentifier("id-1")),
		first.EXPECT().DidRead(payload, datatype.TargetIdentifier("id-1")),
		second.EXPECT().DidRead(payload, datatype.TargetIdentifier("id-1")),
		first.EXPECT().DidShare([]datatype.PayloadData{payload, payload}, datatype.TargetIdentifier("id-1")),
		second.EXPECT().DidShare([]datatype.PayloadData{payload, payload}, datatype.TargetIdentifier("id-1")),
		first.EXPECT().DidMeasure(proximity, datatype.TargetIdentifier("id-1")),
		second.EXPECT().DidMeasure(proximity, datatype.TargetIdentifier("id-1")),
		first.EXPECT().DidReceive(received, datatype.TargetIdentifier("id-1")),
		second.EXPECT().DidReceive(received, datatype.TargetIdentifier("id-1")),
		first.EXPECT().DidVisit(location),
		second.EXPECT().DidVisit(location),
		first.EXPECT().DidUpdateState(StateOn),
		second.EXPECT().DidUpdateState(StateOn),
	)

	array.DidDetect("id-1")
	array.DidRead(payload, "id-1")
	array.DidShare([]datatype.PayloadData{payload, payload}, "id-1")
	array.DidMeasure(proximity, "id-1")
	array.DidReceive(received, "id-1")
	array.DidVisit(location)
	array.DidUpdateState(StateOn)

	assert.Equal(t, Counts{Detect: 1, Read: 1, Share: 2, Measure: 1, Receive: 1, Visit: 1, State: 1}, array.Counts())
}

func TestArrayWithoutDelegatesStillCounts(t *testing.T) {
	array := NewArray()
	array.DidDetect("id-1")
	array.DidDetect("id-2")
	array.DidShare(nil, "id-1")

	counts := array.Counts()
	assert.Equal(t, int64(2), counts.Detect)
	assert.Zero(t, counts.Share)
}

func TestNopDelegateSatisfiesInterface(t *testing.T) {
	var d Delegate = NopDelegate{}
	d.DidDetect("id")
	d.DidUpdateState(StateOff)
}
