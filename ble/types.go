package ble

import "github.com/google/uuid"

// State is the connection state of a peer.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateDisconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return "invalid"
	}
}

// Platform selects the interaction procedure used against a peer.
type Platform int

const (
	PlatformUnknown Platform = iota
	PlatformIOS
	PlatformAndroid
	// PlatformIgnore marks a peer that failed detection and is backed off.
	PlatformIgnore
)

func (p Platform) String() string {
	switch p {
	case PlatformUnknown:
		return "unknown"
	case PlatformIOS:
		return "ios"
	case PlatformAndroid:
		return "android"
	case PlatformIgnore:
		return "ignore"
	default:
		return "invalid"
	}
}

// ParsePlatform maps a platform name back to its value. Unrecognized names
// are unknown.
func ParsePlatform(name string) Platform {
	switch name {
	case "ios":
		return PlatformIOS
	case "android":
		return PlatformAndroid
	case "ignore":
		return PlatformIgnore
	default:
		return PlatformUnknown
	}
}

// Confirmed reports whether the platform has been positively detected.
func (p Platform) Confirmed() bool {
	return p == PlatformIOS || p == PlatformAndroid
}

// Attribute names the part of a Device that changed.
type Attribute int

const (
	AttributeState Attribute = iota
	AttributePlatform
	AttributePayload
	AttributeRSSI
	AttributeTxPower
	AttributePseudoAddress
	AttributePeripheral
	AttributeReceiveOnly
	AttributeCharacteristics
	AttributeModel
	AttributeDeviceName
	AttributeDiscovery
	AttributeWritePayload
	AttributeWriteRSSI
	AttributeWritePayloadSharing
)

var attributeNames = map[Attribute]string{
	AttributeState:               "state",
	AttributePlatform:            "platform",
	AttributePayload:             "payload",
	AttributeRSSI:                "rssi",
	AttributeTxPower:             "tx_power",
	AttributePseudoAddress:       "pseudo_address",
	AttributePeripheral:          "peripheral",
	AttributeReceiveOnly:         "receive_only",
	AttributeCharacteristics:     "characteristics",
	AttributeModel:               "model",
	AttributeDeviceName:          "device_name",
	AttributeDiscovery:           "discovery",
	AttributeWritePayload:        "write_payload",
	AttributeWriteRSSI:           "write_rssi",
	AttributeWritePayloadSharing: "write_payload_sharing",
}

func (a Attribute) String() string {
	if name, ok := attributeNames[a]; ok {
		return name
	}
	return "invalid"
}

// Characteristic is a cached protocol handle discovered on a peer.
// Native carries the transport's own handle.
type Characteristic struct {
	Service uuid.UUID
	UUID    uuid.UUID
	Native  any
}
