// Package ble models radio peers whose hardware address rotates, keeping a
// stable record of everything learned about each peer.
package ble

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"

	"proxsense/datatype"
)

// Device is the state of one tracked peer.
//
// All methods are safe for concurrent use. Mutators notify the delegate
// after releasing the device lock, so delegates may read the device.
type Device struct {
	clock      Clock
	delegate   Delegate
	createdAt  time.Time
	identifier datatype.TargetIdentifier

	mu            sync.RWMutex
	lastUpdatedAt time.Time

	pseudoAddress    *datatype.PseudoDeviceAddress
	peripheral       any
	state            State
	platform         Platform
	payload          datatype.PayloadData
	lastPayloadAt    time.Time
	immediateSend    *datatype.ImmediateSendData
	rssi             *datatype.RSSI
	txPower          *datatype.TxPower
	receiveOnly      bool
	scanRecord       []byte
	model            string
	deviceName       string
	sharedPayloads   []datatype.PayloadData
	sharedPayloadSet map[string]struct{}

	ignoreBackoff     *backoff.ExponentialBackOff
	ignoreForDuration time.Duration
	ignoreUntil       time.Time
	ignoreForever     bool

	signalCharacteristic        *Characteristic
	payloadCharacteristic       *Characteristic
	legacyPayloadCharacteristic *Characteristic
	modelCharacteristic         *Characteristic
	deviceNameCharacteristic    *Characteristic

	lastDiscoveredAt          time.Time
	lastConnectedAt           time.Time
	lastWritePayloadAt        time.Time
	lastWriteRSSIAt           time.Time
	lastWritePayloadSharingAt time.Time
}

// NewDevice creates a device for identifier. A nil delegate discards
// notifications; a nil clock uses wall time.
func NewDevice(identifier datatype.TargetIdentifier, delegate Delegate, clock Clock) *Device {
	if delegate == nil {
		delegate = nopDelegate{}
	}
	if clock == nil {
		clock = realClock{}
	}
	now := clock.Now()
	return &Device{
		clock:            clock,
		delegate:         delegate,
		createdAt:        now,
		identifier:       identifier,
		lastUpdatedAt:    now,
		sharedPayloadSet: make(map[string]struct{}),
	}
}

// Reidentify returns a copy of the device bound to a rotated identifier.
// Accumulated state is carried over, createdAt is kept and lastUpdatedAt is
// refreshed. The caller is responsible for matching the peer (normally by
// pseudo address) and for swapping registry keys.
func (d *Device) Reidentify(identifier datatype.TargetIdentifier, peripheral any) *Device {
	d.mu.RLock()
	defer d.mu.RUnlock()

	clone := &Device{
		clock:            d.clock,
		delegate:         d.delegate,
		createdAt:        d.createdAt,
		identifier:       identifier,
		lastUpdatedAt:    d.clock.Now(),
		pseudoAddress:    d.pseudoAddress,
		peripheral:       peripheral,
		state:            d.state,
		platform:         d.platform,
		payload:          d.payload,
		lastPayloadAt:    d.lastPayloadAt,
		immediateSend:    d.immediateSend,
		rssi:             d.rssi,
		txPower:          d.txPower,
		receiveOnly:      d.receiveOnly,
		scanRecord:       d.scanRecord,
		model:            d.model,
		deviceName:       d.deviceName,
		sharedPayloads:   append([]datatype.PayloadData(nil), d.sharedPayloads...),
		sharedPayloadSet: make(map[string]struct{}, len(d.sharedPayloadSet)),

		ignoreForDuration: d.ignoreForDuration,
		ignoreUntil:       d.ignoreUntil,
		ignoreForever:     d.ignoreForever,

		signalCharacteristic:        d.signalCharacteristic,
		payloadCharacteristic:       d.payloadCharacteristic,
		legacyPayloadCharacteristic: d.legacyPayloadCharacteristic,
		modelCharacteristic:         d.modelCharacteristic,
		deviceNameCharacteristic:    d.deviceNameCharacteristic,

		lastDiscoveredAt:          d.lastDiscoveredAt,
		lastConnectedAt:           d.lastConnectedAt,
		lastWritePayloadAt:        d.lastWritePayloadAt,
		lastWriteRSSIAt:           d.lastWriteRSSIAt,
		lastWritePayloadSharingAt: d.lastWritePayloadSharingAt,
	}
	if peripheral == nil {
		clone.peripheral = d.peripheral
	}
	for key := range d.sharedPayloadSet {
		clone.sharedPayloadSet[key] = struct{}{}
	}
	if d.ignoreBackoff != nil {
		b := *d.ignoreBackoff
		clone.ignoreBackoff = &b
	}
	return clone
}

// Identifier returns the ephemeral identifier the device is bound to.
func (d *Device) Identifier() datatype.TargetIdentifier {
	return d.identifier
}

// CreatedAt returns the registration time. It survives re-identification.
func (d *Device) CreatedAt() time.Time {
	return d.createdAt
}

// LastUpdatedAt returns the time of the last attribute mutation.
func (d *Device) LastUpdatedAt() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastUpdatedAt
}

// mutate applies fn under the write lock, stamps lastUpdatedAt and then
// notifies the delegate. fn returns false to skip both.
func (d *Device) mutate(attribute Attribute, fn func(now time.Time) bool) {
	d.mu.Lock()
	now := d.clock.Now()
	if !fn(now) {
		d.mu.Unlock()
		return
	}
	d.lastUpdatedAt = now
	d.mu.Unlock()

	d.delegate.DeviceDidUpdate(d, attribute)
}

// PseudoAddress returns the continuity token, if one has been observed.
func (d *Device) PseudoAddress() (datatype.PseudoDeviceAddress, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.pseudoAddress == nil {
		return 0, false
	}
	return *d.pseudoAddress, true
}

// SetPseudoAddress records the continuity token. Repeating the current value
// is a no-op.
func (d *Device) SetPseudoAddress(address datatype.PseudoDeviceAddress) {
	d.mutate(AttributePseudoAddress, func(time.Time) bool {
		if d.pseudoAddress != nil && *d.pseudoAddress == address {
			return false
		}
		d.pseudoAddress = &address
		return true
	})
}

// Peripheral returns the transport's native handle for the peer.
func (d *Device) Peripheral() any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.peripheral
}

// SetPeripheral replaces the transport's native handle.
func (d *Device) SetPeripheral(peripheral any) {
	d.mutate(AttributePeripheral, func(time.Time) bool {
		d.peripheral = peripheral
		return true
	})
}

// State returns the connection state.
func (d *Device) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// SetState records a connection state transition. Only StateConnected
// advances the connection timestamp.
func (d *Device) SetState(state State) {
	d.mutate(AttributeState, func(now time.Time) bool {
		d.state = state
		if state == StateConnected {
			d.lastConnectedAt = now
		}
		return true
	})
}

// Payload returns the peer's payload identity, nil until read.
func (d *Device) Payload() datatype.PayloadData {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.payload
}

// SetPayload records the payload identity read from the peer.
func (d *Device) SetPayload(payload datatype.PayloadData) {
	d.mutate(AttributePayload, func(now time.Time) bool {
		d.payload = payload
		d.lastPayloadAt = now
		return true
	})
}

// ImmediateSendData returns the queued outbound payload, if any.
func (d *Device) ImmediateSendData() (datatype.ImmediateSendData, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.immediateSend == nil {
		return datatype.ImmediateSendData{}, false
	}
	return *d.immediateSend, true
}

// SetImmediateSendData queues data for delivery on the next opportunity.
// This is transport bookkeeping and does not notify.
func (d *Device) SetImmediateSendData(data datatype.ImmediateSendData) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.immediateSend = &data
}

// ClearImmediateSendData drops the queued outbound payload.
func (d *Device) ClearImmediateSendData() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.immediateSend = nil
}

// RSSI returns the latest signal strength reading.
func (d *Device) RSSI() (datatype.RSSI, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.rssi == nil {
		return 0, false
	}
	return *d.rssi, true
}

// SetRSSI records a signal strength reading.
func (d *Device) SetRSSI(rssi datatype.RSSI) {
	d.mutate(AttributeRSSI, func(time.Time) bool {
		d.rssi = &rssi
		return true
	})
}

// TxPower returns the advertised transmit power.
func (d *Device) TxPower() (datatype.TxPower, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.txPower == nil {
		return 0, false
	}
	return *d.txPower, true
}

// SetTxPower records the advertised transmit power.
func (d *Device) SetTxPower(txPower datatype.TxPower) {
	d.mutate(AttributeTxPower, func(time.Time) bool {
		d.txPower = &txPower
		return true
	})
}

// Calibration is derived from transmit power and is absent without it.
func (d *Device) Calibration() *datatype.Calibration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.txPower == nil {
		return nil
	}
	return &datatype.Calibration{
		Unit:  datatype.CalibrationUnitTxPower,
		Value: float64(*d.txPower),
	}
}

// ReceiveOnly reports whether the peer must never be written to.
func (d *Device) ReceiveOnly() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.receiveOnly
}

// SetReceiveOnly marks the peer as read-only.
func (d *Device) SetReceiveOnly(receiveOnly bool) {
	d.mutate(AttributeReceiveOnly, func(time.Time) bool {
		d.receiveOnly = receiveOnly
		return true
	})
}

// ScanRecord returns the raw advertisement of the last scan.
func (d *Device) ScanRecord() []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.scanRecord
}

// SetScanRecord keeps the raw advertisement. Bookkeeping only.
func (d *Device) SetScanRecord(record []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scanRecord = record
}

// Model returns the model string read from the peer.
func (d *Device) Model() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.model
}

// SetModel records the peer's model string.
func (d *Device) SetModel(model string) {
	d.mutate(AttributeModel, func(time.Time) bool {
		d.model = model
		return true
	})
}

// DeviceName returns the name read from the peer.
func (d *Device) DeviceName() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.deviceName
}

// SetDeviceName records the peer's name.
func (d *Device) SetDeviceName(name string) {
	d.mutate(AttributeDeviceName, func(time.Time) bool {
		d.deviceName = name
		return true
	})
}

// SharedPayloads lists, in order, the payloads already shared with the peer.
func (d *Device) SharedPayloads() []datatype.PayloadData {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]datatype.PayloadData(nil), d.sharedPayloads...)
}

// HasSharedPayload reports whether payload was already shared with the peer.
func (d *Device) HasSharedPayload(payload datatype.PayloadData) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.sharedPayloadSet[payload.Key()]
	return ok
}

// AddSharedPayloads appends payloads not yet shared with the peer and returns
// how many were new. Bookkeeping only.
func (d *Device) AddSharedPayloads(payloads ...datatype.PayloadData) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	added := 0
	for _, payload := range payloads {
		key := payload.Key()
		if _, ok := d.sharedPayloadSet[key]; ok {
			continue
		}
		d.sharedPayloadSet[key] = struct{}{}
		d.sharedPayloads = append(d.sharedPayloads, payload)
		added++
	}
	return added
}

// RegisterDiscovery records that the peer was seen by a scan.
func (d *Device) RegisterDiscovery() {
	d.mutate(AttributeDiscovery, func(now time.Time) bool {
		d.lastDiscoveredAt = now
		return true
	})
}

// RegisterWritePayload records a successful payload write.
func (d *Device) RegisterWritePayload() {
	d.mutate(AttributeWritePayload, func(now time.Time) bool {
		d.lastWritePayloadAt = now
		return true
	})
}

// RegisterWriteRSSI records a successful signal strength write.
func (d *Device) RegisterWriteRSSI() {
	d.mutate(AttributeWriteRSSI, func(now time.Time) bool {
		d.lastWriteRSSIAt = now
		return true
	})
}

// RegisterWritePayloadSharing records a successful payload sharing write.
func (d *Device) RegisterWritePayloadSharing() {
	d.mutate(AttributeWritePayloadSharing, func(now time.Time) bool {
		d.lastWritePayloadSharingAt = now
		return true
	})
}

func (d *Device) since(t time.Time) datatype.TimeInterval {
	if t.IsZero() {
		return datatype.Never()
	}
	return datatype.Interval(d.clock.Now().Sub(t))
}

// TimeSinceConnected is zero unless the peer is connected.
func (d *Device) TimeSinceConnected() datatype.TimeInterval {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.state != StateConnected || d.lastConnectedAt.IsZero() {
		return datatype.Zero
	}
	return d.since(d.lastConnectedAt)
}

// TimeSinceLastUpdate is used by registry owners to evict silent peers.
func (d *Device) TimeSinceLastUpdate() datatype.TimeInterval {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.since(d.lastUpdatedAt)
}

// TimeSinceLastPayloadUpdate is never until a payload has been read.
func (d *Device) TimeSinceLastPayloadUpdate() datatype.TimeInterval {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.since(d.lastPayloadAt)
}

// TimeSinceLastDiscovery measures from the last scan that saw the peer.
func (d *Device) TimeSinceLastDiscovery() datatype.TimeInterval {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.since(d.lastDiscoveredAt)
}

// TimeSinceLastWritePayload measures from the last payload write.
func (d *Device) TimeSinceLastWritePayload() datatype.TimeInterval {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.since(d.lastWritePayloadAt)
}

// TimeSinceLastWriteRSSI measures from the last signal strength write.
func (d *Device) TimeSinceLastWriteRSSI() datatype.TimeInterval {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.since(d.lastWriteRSSIAt)
}

// TimeSinceLastWritePayloadSharing measures from the last payload sharing write.
func (d *Device) TimeSinceLastWritePayloadSharing() datatype.TimeInterval {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.since(d.lastWritePayloadSharingAt)
}

// String describes the device for logs.
func (d *Device) String() string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var b strings.Builder
	fmt.Fprintf(&b, "Device[id=%s,os=%s,payload=%s", d.identifier, d.platform, d.payload.ShortName())
	if d.pseudoAddress != nil {
		fmt.Fprintf(&b, ",address=%d", *d.pseudoAddress)
	}
	if d.deviceName != "" {
		fmt.Fprintf(&b, ",name=%s", d.deviceName)
	}
	if d.model != "" {
		fmt.Fprintf(&b, ",model=%s", d.model)
	}
	b.WriteString("]")
	return b.String()
}
