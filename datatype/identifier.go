package datatype

import "github.com/google/uuid"

// TargetIdentifier is the connection-scoped handle of a peer. It changes
// whenever the peer's radio address rotates.
type TargetIdentifier string

// NewTargetIdentifier mints a random identifier.
func NewTargetIdentifier() TargetIdentifier {
	return TargetIdentifier(uuid.NewString())
}

func (t TargetIdentifier) String() string {
	return string(t)
}

// PseudoDeviceAddress is a continuity token for recognizing one physical
// peer across address rotation.
type PseudoDeviceAddress int64

// PseudoDeviceAddressFromBytes decodes up to the first 6 bytes of advertised
// data, big-endian. Shorter input yields ok=false.
func PseudoDeviceAddressFromBytes(raw []byte) (PseudoDeviceAddress, bool) {
	if len(raw) < 6 {
		return 0, false
	}
	var value int64
	for _, b := range raw[:6] {
		value = value<<8 | int64(b)
	}
	return PseudoDeviceAddress(value), true
}
