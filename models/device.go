package models

// Device represents a tracked peer device.
type Device struct {
	Identifier        string `json:"identifier"`
	Platform          string `json:"platform"`
	DeviceName        string `json:"device_name,omitempty"`
	PseudoAddress     *int64 `json:"pseudo_address,omitempty"`
	TxPower           *int   `json:"tx_power,omitempty"`
	Ignored           bool   `json:"ignored"`
	CreatedTimestamp  int64  `json:"created_timestamp"`
	LastSeenTimestamp int64  `json:"last_seen_timestamp"`
}
