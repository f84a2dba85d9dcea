package datatype

import "encoding/base64"

const (
	payloadReservedLength = 3
	shortNameLength       = 6
)

// PayloadData is the application-level identity read from a peer.
//
// Key is the structural identity used for map lookups; ShortName is a
// display key that may collide between distinct payloads.
type PayloadData Data

// Key returns a comparable form of the payload suitable for map keys.
func (p PayloadData) Key() string {
	return string(p)
}

// Equal reports structural equality.
func (p PayloadData) Equal(other PayloadData) bool {
	return Data(p).Equal(Data(other))
}

// ShortName derives the display key: base64 of the bytes following the
// reserved header, truncated to six characters.
func (p PayloadData) ShortName() string {
	if len(p) == 0 {
		return ""
	}
	body := []byte(p)
	if len(body) > payloadReservedLength {
		body = body[payloadReservedLength:]
	}
	encoded := base64.StdEncoding.EncodeToString(body)
	if len(encoded) > shortNameLength {
		encoded = encoded[:shortNameLength]
	}
	return encoded
}

// Clone returns a copy that does not share the backing array.
func (p PayloadData) Clone() PayloadData {
	return PayloadData(Data(p).Clone())
}

func (p PayloadData) String() string {
	return p.ShortName()
}
