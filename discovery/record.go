package discovery

import (
	"encoding/base64"
	"sort"
	"strconv"
	"strings"

	"github.com/grandcat/zeroconf"

	"proxsense/ble"
	"proxsense/datatype"
)

const (
	txtIdentifier = "eid"
	txtPseudo     = "pseudo"
	txtPlatform   = "os"
	txtVersion    = "version"
	txtTxPower    = "txpower"
	txtName       = "name"
	txtPayload    = "payload"
	txtShare      = "share."
	txtSend       = "send"
	txtSendTo     = "sendto"

	// maxSharedPayloads bounds how many relayed payloads one record carries.
	maxSharedPayloads = 3
)

// Advertisement is the decoded TXT record of one peer.
type Advertisement struct {
	Identifier    datatype.TargetIdentifier
	PseudoAddress datatype.PseudoDeviceAddress
	HasPseudo     bool
	Platform      ble.Platform
	Version       int
	TxPower       datatype.TxPower
	HasTxPower    bool
	Name          string
	Payload       datatype.PayloadData
	// Shared are payloads of third parties the peer relays.
	Shared []datatype.PayloadData
	// Send is immediate-send data the peer addresses to SendTo.
	Send   datatype.Data
	SendTo datatype.TargetIdentifier
	// RSSI is measured by the browsing side and is never encoded.
	RSSI     datatype.RSSI
	HasRSSI  bool
	Endpoint Endpoint
}

// Endpoint is where a peer was seen. It is stored as the device peripheral.
type Endpoint struct {
	HostName  string
	Port      int
	Addresses []string
}

// TXT encodes the advertisement as mDNS TXT strings.
func (a Advertisement) TXT() []string {
	txt := []string{
		txtIdentifier + "=" + a.Identifier.String(),
		txtPlatform + "=" + a.Platform.String(),
		txtVersion + "=" + strconv.Itoa(a.Version),
	}
	if a.HasPseudo {
		txt = append(txt, txtPseudo+"="+strconv.FormatInt(int64(a.PseudoAddress), 10))
	}
	if a.HasTxPower {
		txt = append(txt, txtTxPower+"="+strconv.Itoa(int(a.TxPower)))
	}
	if a.Name != "" {
		txt = append(txt, txtName+"="+a.Name)
	}
	if len(a.Payload) > 0 {
		txt = append(txt, txtPayload+"="+datatype.Data(a.Payload).Base64())
	}
	for i, shared := range a.Shared {
		if i == maxSharedPayloads {
			break
		}
		txt = append(txt, txtShare+strconv.Itoa(i)+"="+datatype.Data(shared).Base64())
	}
	if len(a.Send) > 0 && a.SendTo != "" {
		txt = append(txt,
			txtSend+"="+a.Send.Base64(),
			txtSendTo+"="+a.SendTo.String(),
		)
	}
	return txt
}

// parseEntry decodes a browse result. Entries without an identifier are
// rejected; malformed optional fields are dropped individually.
func parseEntry(entry *zeroconf.ServiceEntry) (Advertisement, bool) {
	txt := txtToMap(entry.Text)

	identifier := strings.TrimSpace(txt[txtIdentifier])
	if identifier == "" {
		return Advertisement{}, false
	}

	ad := Advertisement{
		Identifier: datatype.TargetIdentifier(identifier),
		Platform:   ble.ParsePlatform(txt[txtPlatform]),
		Name:       txt[txtName],
		Endpoint:   endpointOf(entry),
	}
	if raw := txt[txtVersion]; raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			ad.Version = parsed
		}
	}
	if raw := txt[txtPseudo]; raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
			ad.PseudoAddress = datatype.PseudoDeviceAddress(parsed)
			ad.HasPseudo = true
		}
	}
	if raw := txt[txtTxPower]; raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			ad.TxPower = datatype.TxPower(parsed)
			ad.HasTxPower = true
		}
	}
	if raw := txt[txtPayload]; raw != "" {
		if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil {
			ad.Payload = datatype.PayloadData(decoded)
		}
	}
	for i := 0; i < maxSharedPayloads; i++ {
		raw := txt[txtShare+strconv.Itoa(i)]
		if raw == "" {
			continue
		}
		if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil && len(decoded) > 0 {
			ad.Shared = append(ad.Shared, datatype.PayloadData(decoded))
		}
	}
	if raw, to := txt[txtSend], strings.TrimSpace(txt[txtSendTo]); raw != "" && to != "" {
		if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil && len(decoded) > 0 {
			ad.Send = datatype.Data(decoded)
			ad.SendTo = datatype.TargetIdentifier(to)
		}
	}
	return ad, true
}

func endpointOf(entry *zeroconf.ServiceEntry) Endpoint {
	addresses := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	seen := make(map[string]struct{})
	for _, ip := range append(entry.AddrIPv4, entry.AddrIPv6...) {
		if ip == nil {
			continue
		}
		raw := ip.String()
		if _, exists := seen[raw]; exists {
			continue
		}
		seen[raw] = struct{}{}
		addresses = append(addresses, raw)
	}
	sort.Strings(addresses)

	return Endpoint{
		HostName:  entry.HostName,
		Port:      entry.Port,
		Addresses: addresses,
	}
}

func txtToMap(text []string) map[string]string {
	out := make(map[string]string, len(text))
	for _, entry := range text {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		if key == "" {
			continue
		}
		out[key] = strings.TrimSpace(parts[1])
	}
	return out
}
