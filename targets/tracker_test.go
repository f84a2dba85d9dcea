package targets

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proxsense/datatype"
	"proxsense/payload"
	"proxsense/sensor"
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

func newTestTracker() (*Tracker, *manualClock) {
	clock := newManualClock()
	return NewTracker(zerolog.Nop(), WithClock(clock)), clock
}

func sonar(identifier int32) datatype.PayloadData {
	return payload.NewSonarSupplier(identifier).Payload(time.Time{})
}

// collidingPair returns two distinct payloads that share a short name.
func collidingPair() (datatype.PayloadData, datatype.PayloadData) {
	first := sonar(1)
	second := first.Clone()
	second[100] = 9
	return first, second
}

func TestTrackerReadCreatesTarget(t *testing.T) {
	tracker, _ := newTestTracker()
	payloadX := sonar(1)

	tracker.DidRead(payloadX, "id1")

	require.Equal(t, 1, tracker.Len())
	list := tracker.Refresh()
	require.Len(t, list, 1)
	assert.Equal(t, "AAAAAQ", list[0].ShortName)
	assert.Equal(t, datatype.TargetIdentifier("id1"), list[0].Identifier)
	assert.Equal(t, 1, list[0].Reads)

	bound, ok := tracker.PayloadFor("id1")
	require.True(t, ok)
	assert.True(t, bound.Equal(payloadX))
}

func TestTrackerReadFollowsRotation(t *testing.T) {
	tracker, clock := newTestTracker()
	payloadX := sonar(1)

	tracker.DidRead(payloadX, "id1")
	first, _ := tracker.Lookup(payloadX)
	clock.Advance(time.Second)
	tracker.DidRead(payloadX, "id2")

	assert.Equal(t, 1, tracker.Len())
	snapshot, ok := tracker.Lookup(payloadX)
	require.True(t, ok)
	assert.Equal(t, datatype.TargetIdentifier("id2"), snapshot.Identifier)
	assert.Equal(t, 2, snapshot.Reads)
	assert.True(t, snapshot.LastUpdatedAt.After(first.LastUpdatedAt))
	assert.Equal(t, first.CreatedAt, snapshot.CreatedAt)
}

func TestTrackerMeasureWithoutReadIsDropped(t *testing.T) {
	tracker, _ := newTestTracker()

	tracker.DidMeasure(datatype.Proximity{Unit: datatype.ProximityUnitRSSI, Value: -70}, "id3")

	assert.Zero(t, tracker.Len())
	assert.Empty(t, tracker.Refresh())
}

func TestTrackerMeasureUpdatesResolvedTarget(t *testing.T) {
	tracker, clock := newTestTracker()
	payloadX := sonar(1)
	tracker.DidRead(payloadX, "id1")
	clock.Advance(2 * time.Second)

	proximity := datatype.Proximity{
		Unit:        datatype.ProximityUnitRSSI,
		Value:       -55,
		Calibration: &datatype.Calibration{Unit: datatype.CalibrationUnitTxPower, Value: 12},
	}
	tracker.DidMeasure(proximity, "id1")

	snapshot, ok := tracker.Lookup(payloadX)
	require.True(t, ok)
	require.NotNil(t, snapshot.Proximity)
	assert.Equal(t, proximity, *snapshot.Proximity)
	assert.Equal(t, clock.Now(), snapshot.MeasuredAt)
	assert.Equal(t, clock.Now(), snapshot.LastUpdatedAt)
	assert.Equal(t, 1, snapshot.Measures)
}

func TestTrackerReceive(t *testing.T) {
	tracker, _ := newTestTracker()
	payloadX := sonar(1)

	tracker.DidReceive(datatype.ImmediateSendData{Data: datatype.Data(payloadX)}, "id1")
	assert.Zero(t, tracker.Len(), "receive must not create targets")
	_, ok := tracker.PayloadFor("id1")
	assert.False(t, ok)

	tracker.DidRead(payloadX, "id1")
	tracker.DidReceive(datatype.ImmediateSendData{Data: datatype.Data(payloadX)}, "id9")

	snapshot, ok := tracker.Lookup(payloadX)
	require.True(t, ok)
	assert.Equal(t, datatype.TargetIdentifier("id9"), snapshot.Identifier)
	assert.Equal(t, 1, snapshot.Receives)
	require.NotNil(t, snapshot.Received)
	assert.True(t, snapshot.Received.Data.Equal(datatype.Data(payloadX)))

	bound, ok := tracker.PayloadFor("id9")
	require.True(t, ok)
	assert.True(t, bound.Equal(payloadX))
}

func TestTrackerShare(t *testing.T) {
	tracker, _ := newTestTracker()
	own := sonar(1)
	tracker.DidRead(own, "relay")

	tracker.DidShare([]datatype.PayloadData{sonar(2), own, nil}, "relay")

	assert.Equal(t, 2, tracker.Len())
	snapshot, ok := tracker.Lookup(own)
	require.True(t, ok)
	assert.Equal(t, datatype.TargetIdentifier("relay"), snapshot.Identifier)
	assert.Equal(t, 2, snapshot.Reads)
}

func TestRefreshKeepsMostRecentPerShortName(t *testing.T) {
	tracker, clock := newTestTracker()
	older, newer := collidingPair()
	require.Equal(t, older.ShortName(), newer.ShortName())
	require.False(t, older.Equal(newer))

	tracker.DidRead(older, "a")
	clock.Advance(time.Second)
	tracker.DidRead(newer, "b")

	list := tracker.Refresh()
	require.Len(t, list, 1)
	assert.True(t, list[0].Payload.Equal(newer))
	assert.Equal(t, 2, tracker.Len())

	clock.Advance(time.Second)
	tracker.DidMeasure(datatype.Proximity{Unit: datatype.ProximityUnitRSSI, Value: -40}, "a")

	list = tracker.Refresh()
	require.Len(t, list, 1)
	assert.True(t, list[0].Payload.Equal(older))
}

func TestRefreshTieGoesToEarliestCreated(t *testing.T) {
	tracker, _ := newTestTracker()
	first, second := collidingPair()

	tracker.DidRead(first, "a")
	tracker.DidRead(second, "b")

	list := tracker.Refresh()
	require.Len(t, list, 1)
	assert.True(t, list[0].Payload.Equal(first))
}

func TestRefreshOrdersByShortName(t *testing.T) {
	tracker, _ := newTestTracker()
	tracker.DidRead(sonar(2), "b")
	tracker.DidRead(sonar(1), "a")
	tracker.DidRead(sonar(256), "c")

	list := tracker.Refresh()
	names := make([]string, 0, len(list))
	for _, snapshot := range list {
		names = append(names, snapshot.ShortName)
	}
	assert.Equal(t, []string{"AAAAAQ", "AAAAAg", "AAABAA"}, names)
}

func TestRefreshIsIdempotent(t *testing.T) {
	tracker, clock := newTestTracker()
	older, newer := collidingPair()
	tracker.DidRead(older, "a")
	clock.Advance(time.Second)
	tracker.DidRead(newer, "b")
	tracker.DidRead(sonar(7), "c")

	first := tracker.Refresh()
	second := tracker.Refresh()
	assert.Equal(t, first, second)
	assert.Equal(t, second, tracker.Targets())
}

func TestTargetsBeforeRefreshAndAfterReset(t *testing.T) {
	tracker, _ := newTestTracker()
	assert.Nil(t, tracker.Targets())

	tracker.DidRead(sonar(1), "a")
	assert.Nil(t, tracker.Targets(), "targets only change on refresh")
	require.Len(t, tracker.Refresh(), 1)

	tracker.Reset()
	assert.Empty(t, tracker.Targets())
	assert.Zero(t, tracker.Len())
	_, ok := tracker.PayloadFor("a")
	assert.False(t, ok)
}

func TestSnapshotIsDetached(t *testing.T) {
	tracker, _ := newTestTracker()
	payloadX := sonar(1)
	tracker.DidRead(payloadX, "a")
	tracker.DidMeasure(datatype.Proximity{Unit: datatype.ProximityUnitRSSI, Value: -80}, "a")

	tracker.DidReceive(datatype.ImmediateSendData{Data: datatype.Data(payloadX)}, "a")

	snapshot, _ := tracker.Lookup(payloadX)
	snapshot.Proximity.Value = 0
	snapshot.Payload[100] = 9
	snapshot.Received.Data[0] = 9

	again, _ := tracker.Lookup(payloadX)
	assert.Equal(t, -80.0, again.Proximity.Value)
	assert.True(t, again.Payload.Equal(payloadX))
	assert.True(t, again.Received.Data.Equal(datatype.Data(payloadX)))

	published := tracker.Refresh()
	require.Len(t, published, 1)
	published[0].Payload[100] = 7
	assert.True(t, tracker.Refresh()[0].Payload.Equal(payloadX))
}

func TestTrackerConcurrentReads(t *testing.T) {
	tracker, _ := newTestTracker()
	payloadX := sonar(42)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from := datatype.TargetIdentifier(fmt.Sprintf("id-%d", i))
			tracker.DidRead(payloadX, from)
			tracker.DidMeasure(datatype.Proximity{Unit: datatype.ProximityUnitRSSI, Value: float64(-i)}, from)
			tracker.Refresh()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, tracker.Len())
	snapshot, ok := tracker.Lookup(payloadX)
	require.True(t, ok)
	assert.Equal(t, 32, snapshot.Reads)
	assert.Equal(t, 32, snapshot.Measures)
	assert.Len(t, tracker.Refresh(), 1)
}

func TestTrackerBehindArray(t *testing.T) {
	tracker, _ := newTestTracker()
	array := sensor.NewArray(tracker)

	array.DidDetect("id1")
	array.DidRead(sonar(5), "id1")
	array.DidMeasure(datatype.Proximity{Unit: datatype.ProximityUnitRSSI, Value: -61}, "id1")
	array.DidUpdateState(sensor.StateOn)

	list := tracker.Refresh()
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Proximity)
	assert.Equal(t, -61.0, list[0].Proximity.Value)
}
