package datatype

import "fmt"

// RSSI is a received signal strength reading in dBm.
type RSSI int

// TxPower is the transmit power advertised by a peer.
type TxPower int

// CalibrationUnit names what a calibration value measures.
type CalibrationUnit string

const (
	// CalibrationUnitTxPower calibrates against advertised transmit power.
	CalibrationUnitTxPower CalibrationUnit = "ble_transmit_power"
)

// Calibration pairs a value with its unit.
type Calibration struct {
	Unit  CalibrationUnit
	Value float64
}

// ProximityUnit names what a proximity value measures.
type ProximityUnit string

const (
	// ProximityUnitRSSI is a raw signal strength measurement.
	ProximityUnitRSSI ProximityUnit = "rssi"
)

// Proximity is a single proximity measurement, optionally calibrated.
type Proximity struct {
	Unit        ProximityUnit
	Value       float64
	Calibration *Calibration
}

func (p Proximity) String() string {
	if p.Calibration == nil {
		return fmt.Sprintf("%s:%g", p.Unit, p.Value)
	}
	return fmt.Sprintf("%s:%g[%s:%g]", p.Unit, p.Value, p.Calibration.Unit, p.Calibration.Value)
}
