package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"proxsense/ble"
	"proxsense/datatype"
	"proxsense/models"
	"proxsense/targets"
)

const timestampLayout = time.RFC3339

func targetModel(s targets.Snapshot) models.Target {
	out := models.Target{
		ShortName:         s.ShortName,
		Identifier:        s.Identifier.String(),
		Payload:           datatype.Data(s.Payload).Hex(),
		Reads:             s.Reads,
		Measures:          s.Measures,
		Receives:          s.Receives,
		CreatedTimestamp:  s.CreatedAt.UnixMilli(),
		LastSeenTimestamp: s.LastUpdatedAt.UnixMilli(),
	}
	if s.Proximity != nil {
		out.Proximity = &models.Proximity{
			Unit:  string(s.Proximity.Unit),
			Value: s.Proximity.Value,
		}
		if s.Proximity.Calibration != nil {
			value := s.Proximity.Calibration.Value
			out.Proximity.Calibration = &value
		}
	}
	return out
}

func targetModels(snapshots []targets.Snapshot) []models.Target {
	out := make([]models.Target, 0, len(snapshots))
	for _, s := range snapshots {
		out = append(out, targetModel(s))
	}
	return out
}

func deviceModel(d *ble.Device) models.Device {
	out := models.Device{
		Identifier:        d.Identifier().String(),
		Platform:          d.Platform().String(),
		DeviceName:        d.DeviceName(),
		Ignored:           d.ShouldIgnore(),
		CreatedTimestamp:  d.CreatedAt().UnixMilli(),
		LastSeenTimestamp: d.LastUpdatedAt().UnixMilli(),
	}
	if address, ok := d.PseudoAddress(); ok {
		value := int64(address)
		out.PseudoAddress = &value
	}
	if txPower, ok := d.TxPower(); ok {
		value := int(txPower)
		out.TxPower = &value
	}
	return out
}

func deviceModels(devices []*ble.Device) []models.Device {
	out := make([]models.Device, 0, len(devices))
	for _, d := range devices {
		out = append(out, deviceModel(d))
	}
	return out
}

func formatTimestamp(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(timestampLayout)
}

func writeTargets(w io.Writer, list []models.Target) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "no targets")
		return err
	}
	if _, err := fmt.Fprintf(w, "%-8s%-38s%-12s%-7s%s\n", "TARGET", "IDENTIFIER", "PROXIMITY", "READS", "LAST SEEN"); err != nil {
		return err
	}
	for _, t := range list {
		proximity := "-"
		if t.Proximity != nil {
			proximity = strconv.FormatFloat(t.Proximity.Value, 'g', -1, 64) + " " + t.Proximity.Unit
		}
		if _, err := fmt.Fprintf(w, "%-8s%-38s%-12s%-7d%s\n", t.ShortName, t.Identifier, proximity, t.Reads, formatTimestamp(t.LastSeenTimestamp)); err != nil {
			return err
		}
	}
	return nil
}

func writeDevices(w io.Writer, list []models.Device) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "no devices")
		return err
	}
	if _, err := fmt.Fprintf(w, "%-38s%-9s%-8s%-20s%s\n", "IDENTIFIER", "OS", "IGNORED", "NAME", "LAST SEEN"); err != nil {
		return err
	}
	for _, d := range list {
		name := d.DeviceName
		if name == "" {
			name = "-"
		}
		if _, err := fmt.Fprintf(w, "%-38s%-9s%-8t%-20s%s\n", d.Identifier, d.Platform, d.Ignored, name, formatTimestamp(d.LastSeenTimestamp)); err != nil {
			return err
		}
	}
	return nil
}
