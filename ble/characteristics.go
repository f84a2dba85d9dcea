package ble

import "time"

func (d *Device) setCharacteristic(slot **Characteristic, characteristic *Characteristic) {
	d.mutate(AttributeCharacteristics, func(time.Time) bool {
		*slot = characteristic
		return true
	})
}

func (d *Device) characteristic(slot **Characteristic) *Characteristic {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return *slot
}

// InvalidateCharacteristics drops every cached handle. Called on disconnect,
// handles are not valid across connections.
func (d *Device) InvalidateCharacteristics() {
	d.mutate(AttributeCharacteristics, func(time.Time) bool {
		d.signalCharacteristic = nil
		d.payloadCharacteristic = nil
		d.legacyPayloadCharacteristic = nil
		d.modelCharacteristic = nil
		d.deviceNameCharacteristic = nil
		return true
	})
}

// SignalCharacteristic returns the cached signal handle, nil if absent.
func (d *Device) SignalCharacteristic() *Characteristic {
	return d.characteristic(&d.signalCharacteristic)
}

// SetSignalCharacteristic caches the signal handle.
func (d *Device) SetSignalCharacteristic(c *Characteristic) {
	d.setCharacteristic(&d.signalCharacteristic, c)
}

// PayloadCharacteristic returns the cached payload handle, nil if absent.
func (d *Device) PayloadCharacteristic() *Characteristic {
	return d.characteristic(&d.payloadCharacteristic)
}

// SetPayloadCharacteristic caches the payload handle.
func (d *Device) SetPayloadCharacteristic(c *Characteristic) {
	d.setCharacteristic(&d.payloadCharacteristic, c)
}

// LegacyPayloadCharacteristic returns the cached legacy payload handle, nil if absent.
func (d *Device) LegacyPayloadCharacteristic() *Characteristic {
	return d.characteristic(&d.legacyPayloadCharacteristic)
}

// SetLegacyPayloadCharacteristic caches the legacy payload handle.
func (d *Device) SetLegacyPayloadCharacteristic(c *Characteristic) {
	d.setCharacteristic(&d.legacyPayloadCharacteristic, c)
}

// ModelCharacteristic returns the cached model handle, nil if absent.
func (d *Device) ModelCharacteristic() *Characteristic {
	return d.characteristic(&d.modelCharacteristic)
}

// SetModelCharacteristic caches the model handle.
func (d *Device) SetModelCharacteristic(c *Characteristic) {
	d.setCharacteristic(&d.modelCharacteristic, c)
}

// SupportsModelCharacteristic reports whether a model handle is cached.
func (d *Device) SupportsModelCharacteristic() bool {
	return d.ModelCharacteristic() != nil
}

// DeviceNameCharacteristic returns the cached name handle, nil if absent.
func (d *Device) DeviceNameCharacteristic() *Characteristic {
	return d.characteristic(&d.deviceNameCharacteristic)
}

// SetDeviceNameCharacteristic caches the name handle.
func (d *Device) SetDeviceNameCharacteristic(c *Characteristic) {
	d.setCharacteristic(&d.deviceNameCharacteristic, c)
}

// SupportsDeviceNameCharacteristic reports whether a name handle is cached.
func (d *Device) SupportsDeviceNameCharacteristic() bool {
	return d.DeviceNameCharacteristic() != nil
}
