package discovery

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"proxsense/ble"
	"proxsense/datatype"
	"proxsense/logger"
	"proxsense/payload"
	"proxsense/sensor"
	"proxsense/targets"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func idleBrowse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	<-ctx.Done()
	return nil
}

func newTestBridge(t *testing.T, sink sensor.Delegate, clock ble.Clock) *Bridge {
	t.Helper()
	bridge, err := NewBridge(Config{SelfDeviceID: "self", browseFn: idleBrowse}, sink, logger.NewTestLogger(), ble.WithClock(clock))
	require.NoError(t, err)
	return bridge
}

func testAdvertisement(identifier string, pseudo int64, identity int32) Advertisement {
	return Advertisement{
		Identifier:    datatype.TargetIdentifier(identifier),
		PseudoAddress: datatype.PseudoDeviceAddress(pseudo),
		HasPseudo:     true,
		Platform:      ble.PlatformIOS,
		Version:       DefaultVersion,
		TxPower:       8,
		HasTxPower:    true,
		Name:          "peer-" + identifier,
		Payload:       payload.NewSonarSupplier(identity).Payload(time.Time{}),
	}
}

func testServiceEntry(ad Advertisement, ip string) *zeroconf.ServiceEntry {
	return &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{
			Instance: instanceName(ad.Identifier),
			Service:  DefaultService,
			Domain:   DefaultDomain,
		},
		HostName: ad.Identifier.String() + ".local",
		Port:     DefaultPort,
		Text:     ad.TXT(),
		AddrIPv4: []net.IP{net.ParseIP(ip)},
	}
}

func drainEvents(events <-chan Event) []Event {
	var out []Event
	for {
		select {
		case event := <-events:
			out = append(out, event)
		default:
			return out
		}
	}
}

func TestParseEntryDecodesAdvertisement(t *testing.T) {
	ad := testAdvertisement("eid-1", 99, 5)

	parsed, ok := parseEntry(testServiceEntry(ad, "10.0.0.2"))
	require.True(t, ok)
	assert.Equal(t, ad.Identifier, parsed.Identifier)
	assert.Equal(t, ad.PseudoAddress, parsed.PseudoAddress)
	assert.True(t, parsed.HasPseudo)
	assert.Equal(t, ble.PlatformIOS, parsed.Platform)
	assert.Equal(t, datatype.TxPower(8), parsed.TxPower)
	assert.True(t, parsed.Payload.Equal(ad.Payload))
	assert.Equal(t, []string{"10.0.0.2"}, parsed.Endpoint.Addresses)
}

func TestParseEntryToleratesMalformedFields(t *testing.T) {
	entry := &zeroconf.ServiceEntry{Text: []string{"eid=x", "pseudo=abc", "txpower=", "payload=***", "garbage"}}

	parsed, ok := parseEntry(entry)
	require.True(t, ok)
	assert.False(t, parsed.HasPseudo)
	assert.False(t, parsed.HasTxPower)
	assert.Nil(t, parsed.Payload)
	assert.Equal(t, ble.PlatformUnknown, parsed.Platform)

	_, ok = parseEntry(&zeroconf.ServiceEntry{Text: []string{"os=ios"}})
	assert.False(t, ok)
}

func TestApplyForwardsDetectAndRead(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := sensor.NewMockDelegate(ctrl)
	bridge := newTestBridge(t, sink, newStepClock())
	ad := testAdvertisement("eid-1", 99, 5)

	gomock.InOrder(
		sink.EXPECT().DidDetect(datatype.TargetIdentifier("eid-1")),
		sink.EXPECT().DidRead(ad.Payload, datatype.TargetIdentifier("eid-1")),
	)

	device := bridge.Apply(ad)

	assert.Equal(t, ble.PlatformIOS, device.Platform())
	assert.Equal(t, "peer-eid-1", device.DeviceName())
	txPower, ok := device.TxPower()
	require.True(t, ok)
	assert.Equal(t, datatype.TxPower(8), txPower)
	assert.Equal(t, Endpoint{}, device.Peripheral())

	events := drainEvents(bridge.Events())
	require.Len(t, events, 1)
	assert.Equal(t, EventPeerUpserted, events[0].Type)
}

func TestDeviceDidUpdateForwardsCalibratedMeasurement(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := sensor.NewMockDelegate(ctrl)
	bridge := newTestBridge(t, sink, newStepClock())

	device, _ := bridge.Registry().GetOrCreate("eid-2")
	device.SetTxPower(12)

	sink.EXPECT().DidMeasure(datatype.Proximity{
		Unit:        datatype.ProximityUnitRSSI,
		Value:       -61,
		Calibration: &datatype.Calibration{Unit: datatype.CalibrationUnitTxPower, Value: 12},
	}, datatype.TargetIdentifier("eid-2"))

	device.SetRSSI(-61)
}

func TestApplyRekeysRotatedPeer(t *testing.T) {
	clock := newStepClock()
	tracker := targets.NewTracker(logger.NewTestLogger(), targets.WithClock(clock))
	bridge := newTestBridge(t, tracker, clock)

	first := bridge.Apply(testAdvertisement("eid-old", 42, 9))
	clock.Advance(time.Second)
	second := bridge.Apply(testAdvertisement("eid-new", 42, 9))

	assert.Equal(t, 1, bridge.Registry().Len())
	_, ok := bridge.Registry().Get("eid-old")
	assert.False(t, ok)
	assert.Equal(t, datatype.TargetIdentifier("eid-new"), second.Identifier())
	assert.Equal(t, first.CreatedAt(), second.CreatedAt())

	events := drainEvents(bridge.Events())
	require.Len(t, events, 2)
	assert.Equal(t, EventPeerUpserted, events[0].Type)
	assert.Equal(t, Event{Type: EventPeerRekeyed, Identifier: "eid-new", Previous: "eid-old"}, events[1])

	list := tracker.Refresh()
	require.Len(t, list, 1)
	assert.Equal(t, datatype.TargetIdentifier("eid-new"), list[0].Identifier)
	assert.Equal(t, 2, list[0].Reads)
}

func TestApplyIgnoresIncompatibleVersionIndefinitely(t *testing.T) {
	clock := newStepClock()
	bridge := newTestBridge(t, nil, clock)

	ad := testAdvertisement("eid-3", 7, 1)
	ad.Version = DefaultVersion + 1
	device := bridge.Apply(ad)

	assert.Equal(t, ble.PlatformIgnore, device.Platform())
	assert.True(t, device.ShouldIgnore())
	assert.Equal(t, datatype.Never(), device.TimeUntilIgnoreExpires())
	assert.Nil(t, device.Payload())

	clock.Advance(time.Hour)
	device = bridge.Apply(testAdvertisement("eid-3", 7, 1))
	assert.True(t, device.ShouldIgnore())
	assert.Nil(t, device.Payload())
}

func TestApplyBacksOffUnrecognizedPlatform(t *testing.T) {
	clock := newStepClock()
	bridge := newTestBridge(t, nil, clock)

	ad := testAdvertisement("eid-4", 11, 2)
	ad.Platform = ble.PlatformUnknown

	device := bridge.Apply(ad)
	window, ok := device.IgnoreBackoff()
	require.True(t, ok)
	assert.Equal(t, ble.IgnoreBackoffBase, window)

	clock.Advance(30 * time.Second)
	bridge.Apply(ad)
	window, _ = device.IgnoreBackoff()
	assert.Equal(t, ble.IgnoreBackoffBase, window, "ignored peers are not re-evaluated")

	clock.Advance(31 * time.Second)
	bridge.Apply(ad)
	window, _ = device.IgnoreBackoff()
	assert.Equal(t, 72*time.Second, window)

	clock.Advance(73 * time.Second)
	ad.Platform = ble.PlatformAndroid
	bridge.Apply(ad)
	assert.Equal(t, ble.PlatformAndroid, device.Platform())
	_, ok = device.IgnoreBackoff()
	assert.False(t, ok)
	assert.False(t, device.ShouldIgnore())
}

func TestBridgeFiltersSelfAndManualRefresh(t *testing.T) {
	var browseCalls int32
	self := testAdvertisement("self-eid", int64(PseudoAddressFor("self-device")), 1)
	peer := testAdvertisement("peer-1", 100, 2)
	late := testAdvertisement("peer-2", 200, 3)

	bridge, err := NewBridge(Config{
		SelfDeviceID: "self-device",
		ScanInterval: time.Hour,
		ScanTimeout:  35 * time.Millisecond,
		browseFn: func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
			call := atomic.AddInt32(&browseCalls, 1)
			entries <- testServiceEntry(self, "10.0.0.1")
			entries <- testServiceEntry(peer, "10.0.0.2")
			if call >= 2 {
				entries <- testServiceEntry(late, "10.0.0.3")
			}
			<-ctx.Done()
			return nil
		},
	}, nil, logger.NewTestLogger())
	require.NoError(t, err)

	assert.ErrorIs(t, bridge.Refresh(context.Background()), errNotStarted)
	require.NoError(t, bridge.Start())
	defer bridge.Stop()

	waitForCondition(t, time.Second, func() bool {
		devices := bridge.Registry().Devices()
		return len(devices) == 1 && devices[0].Identifier() == "peer-1"
	})

	require.NoError(t, bridge.Refresh(context.Background()))
	assert.Equal(t, 2, bridge.Registry().Len())
}

func TestBridgeEvictsSilentPeers(t *testing.T) {
	var browseCalls int32
	bridge, err := NewBridge(Config{
		SelfDeviceID:   "self-device",
		ScanInterval:   40 * time.Millisecond,
		ScanTimeout:    25 * time.Millisecond,
		PeerStaleAfter: 80 * time.Millisecond,
		browseFn: func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
			call := atomic.AddInt32(&browseCalls, 1)
			if call == 1 {
				entries <- testServiceEntry(testAdvertisement("peer-1", 100, 2), "10.0.0.2")
			}
			entries <- testServiceEntry(testAdvertisement("peer-2", 200, 3), "10.0.0.3")
			<-ctx.Done()
			return nil
		},
	}, nil, logger.NewTestLogger())
	require.NoError(t, err)
	require.NoError(t, bridge.Start())
	defer bridge.Stop()

	if !waitForEvent(bridge.Events(), EventPeerRemoved, "peer-1", 2*time.Second) {
		t.Fatalf("expected removal event for peer-1")
	}
	_, ok := bridge.Registry().Get("peer-2")
	assert.True(t, ok)
}

func TestParseEntryDecodesSharesAndSend(t *testing.T) {
	ad := testAdvertisement("eid-1", 99, 5)
	ad.Shared = []datatype.PayloadData{sonarPayload(20), sonarPayload(21), sonarPayload(22), sonarPayload(23)}
	ad.Send = datatype.Data(sonarPayload(5))
	ad.SendTo = "eid-me"

	parsed, ok := parseEntry(testServiceEntry(ad, "10.0.0.2"))
	require.True(t, ok)
	require.Len(t, parsed.Shared, maxSharedPayloads)
	assert.True(t, parsed.Shared[0].Equal(sonarPayload(20)))
	assert.True(t, parsed.Shared[2].Equal(sonarPayload(22)))
	assert.True(t, parsed.Send.Equal(ad.Send))
	assert.Equal(t, datatype.TargetIdentifier("eid-me"), parsed.SendTo)
	assert.False(t, parsed.HasRSSI)

	orphan, ok := parseEntry(&zeroconf.ServiceEntry{Text: []string{"eid=x", "send=AQI="}})
	require.True(t, ok)
	assert.Nil(t, orphan.Send, "send data without an addressee is dropped")
}

func TestApplyMeasurementReachesTarget(t *testing.T) {
	clock := newStepClock()
	tracker := targets.NewTracker(logger.NewTestLogger(), targets.WithClock(clock))
	bridge := newTestBridge(t, tracker, clock)

	ad := testAdvertisement("eid-1", 7, 11)
	ad.RSSI, ad.HasRSSI = -58, true
	bridge.Apply(ad)

	list := tracker.Refresh()
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Proximity)
	assert.Equal(t, datatype.Proximity{
		Unit:        datatype.ProximityUnitRSSI,
		Value:       -58,
		Calibration: &datatype.Calibration{Unit: datatype.CalibrationUnitTxPower, Value: 8},
	}, *list[0].Proximity)
	assert.Equal(t, 1, list[0].Measures)
}

func TestApplyForwardsRelayedPayloads(t *testing.T) {
	clock := newStepClock()
	tracker := targets.NewTracker(logger.NewTestLogger(), targets.WithClock(clock))
	bridge := newTestBridge(t, tracker, clock)

	ad := testAdvertisement("eid-relay", 7, 11)
	ad.Shared = []datatype.PayloadData{sonarPayload(20)}
	bridge.Apply(ad)

	assert.Equal(t, 2, tracker.Len())
	relayed, ok := tracker.Lookup(sonarPayload(20))
	require.True(t, ok)
	assert.Equal(t, datatype.TargetIdentifier("eid-relay"), relayed.Identifier)
}

func TestApplyDeliversImmediateSendOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := sensor.NewMockDelegate(ctrl)
	bridge := newTestBridge(t, sink, newStepClock())
	bridge.self = func() datatype.TargetIdentifier { return "eid-me" }

	ad := testAdvertisement("eid-1", 7, 11)
	ad.Send = datatype.Data(ad.Payload)
	ad.SendTo = "eid-me"

	sink.EXPECT().DidDetect(gomock.Any()).AnyTimes()
	sink.EXPECT().DidRead(gomock.Any(), gomock.Any()).AnyTimes()
	sink.EXPECT().DidReceive(datatype.ImmediateSendData{Data: ad.Send}, datatype.TargetIdentifier("eid-1")).Times(1)

	bridge.Apply(ad)
	bridge.Apply(ad)

	other := testAdvertisement("eid-2", 8, 12)
	other.Send = datatype.Data(other.Payload)
	other.SendTo = "eid-someone-else"
	bridge.Apply(other)
}

func TestBridgeScanMeasuresPeers(t *testing.T) {
	tracker := targets.NewTracker(logger.NewTestLogger())
	peer := testAdvertisement("peer-1", 100, 2)

	bridge, err := NewBridge(Config{
		SelfDeviceID: "self-device",
		ScanInterval: time.Hour,
		ScanTimeout:  30 * time.Millisecond,
		browseFn: func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
			entries <- testServiceEntry(peer, "10.0.0.2")
			<-ctx.Done()
			return nil
		},
	}, tracker, logger.NewTestLogger())
	require.NoError(t, err)
	require.NoError(t, bridge.Start())
	defer bridge.Stop()

	waitForCondition(t, time.Second, func() bool {
		list := tracker.Refresh()
		return len(list) == 1 && list[0].Proximity != nil
	})
	proximity := tracker.Targets()[0].Proximity
	assert.Equal(t, datatype.ProximityUnitRSSI, proximity.Unit)
	assert.LessOrEqual(t, proximity.Value, float64(strongestRSSI))
	assert.GreaterOrEqual(t, proximity.Value, float64(weakestRSSI))
}

func TestEstimateRSSI(t *testing.T) {
	assert.Equal(t, strongestRSSI, estimateRSSI(0))
	assert.Equal(t, datatype.RSSI(-40), estimateRSSI(50*time.Millisecond))
	assert.Equal(t, weakestRSSI, estimateRSSI(10*time.Second))
}

func sonarPayload(identifier int32) datatype.PayloadData {
	return payload.NewSonarSupplier(identifier).Payload(time.Time{})
}

func waitForCondition(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met before timeout %s", timeout)
}

func waitForEvent(events <-chan Event, eventType EventType, identifier datatype.TargetIdentifier, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			if event.Type == eventType && event.Identifier == identifier {
				return true
			}
		case <-deadline:
			return false
		}
	}
}
