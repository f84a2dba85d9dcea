// Package datatype holds the value types shared by the device model, the
// sensor event boundary and target resolution.
package datatype

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
)

// Data is an opaque byte sequence.
type Data []byte

// Equal reports whether both values carry the same bytes.
func (d Data) Equal(other Data) bool {
	return bytes.Equal(d, other)
}

// Clone returns a copy that does not share the backing array.
func (d Data) Clone() Data {
	if d == nil {
		return nil
	}
	return append(Data(nil), d...)
}

// Hex renders the bytes as lowercase hex.
func (d Data) Hex() string {
	return hex.EncodeToString(d)
}

// Base64 renders the bytes with standard padded base64.
func (d Data) Base64() string {
	return base64.StdEncoding.EncodeToString(d)
}

// ImmediateSendData is an opaque payload pushed to a peer outside the regular
// payload exchange.
type ImmediateSendData struct {
	Data Data
}
