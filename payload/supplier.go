// Package payload mints the identity payload this device hands to peers.
package payload

import (
	"encoding/binary"
	"time"

	"proxsense/datatype"
)

const (
	// Length is the fixed size of a sonar identity frame.
	Length = 129
	// ReservedLength is the zero-filled header preceding the identifier.
	ReservedLength = 3
)

// Supplier produces the outbound identity payload for a point in time.
type Supplier interface {
	Payload(timestamp time.Time) datatype.PayloadData
}

// SonarSupplier frames a fixed 32-bit identifier. The frame does not vary
// with the timestamp.
type SonarSupplier struct {
	identifier int32
}

// NewSonarSupplier creates a supplier for identifier.
func NewSonarSupplier(identifier int32) *SonarSupplier {
	return &SonarSupplier{identifier: identifier}
}

// Identifier returns the framed identifier.
func (s *SonarSupplier) Identifier() int32 {
	return s.identifier
}

// Payload returns the 129-byte frame:
//
//	+----------+---------------+-----------+
//	| Reserved | Identifier BE | Zero fill |
//	+----------+---------------+-----------+
//	| 3 bytes  | 4 bytes       | 122 bytes |
//	+----------+---------------+-----------+
func (s *SonarSupplier) Payload(_ time.Time) datatype.PayloadData {
	frame := make([]byte, Length)
	binary.BigEndian.PutUint32(frame[ReservedLength:ReservedLength+4], uint32(s.identifier))
	return datatype.PayloadData(frame)
}
