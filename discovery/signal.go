package discovery

import (
	"time"

	"proxsense/datatype"
)

const (
	strongestRSSI datatype.RSSI = -30
	weakestRSSI   datatype.RSSI = -100
	// rssiStep is the response delay that costs one dBm.
	rssiStep = 5 * time.Millisecond
)

// estimateRSSI turns the delay between starting a browse and a peer's answer
// into a signal strength reading. Peers answering promptly read as near.
func estimateRSSI(elapsed time.Duration) datatype.RSSI {
	if elapsed <= 0 {
		return strongestRSSI
	}
	rssi := strongestRSSI - datatype.RSSI(elapsed/rssiStep)
	if rssi < weakestRSSI {
		return weakestRSSI
	}
	return rssi
}
