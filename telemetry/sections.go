package telemetry

import (
	"github.com/ruteri/telemetry-envelope/interfaces"
)

// NotAvailableField marks a section whose collaborator had no data.
const NotAvailableField = "na"

// unavailable is the placeholder body of a section without data.
func unavailable() map[string]any {
	return map[string]any{NotAvailableField: true}
}

// BatterySection renders a battery reading. pct is level/scale as a
// percentage, or -1 when either is unknown.
func BatterySection(record *interfaces.BatteryRecord) map[string]any {
	if record == nil {
		return unavailable()
	}

	section := map[string]any{
		"health": record.Health,
		"status": record.Status,
		"plug":   record.Plug,
		"volt":   record.Voltage,
		"temp":   record.Temperature,
		"tech":   record.Technology,
	}

	if record.Level >= 0 && record.Scale > 0 {
		section["pct"] = RoundValue(float64(record.Level)/float64(record.Scale)*100, PercentScale)
	} else {
		section["pct"] = -1
	}

	return section
}

// ConnectivitySection renders the active connection state.
func ConnectivitySection(record *interfaces.ConnectivityRecord) map[string]any {
	if record == nil {
		return unavailable()
	}

	return map[string]any{
		"type":      record.Type,
		"subtype":   record.Subtype,
		"connected": record.Connected,
		"available": record.Available,
		"roaming":   record.Roaming,
		"failover":  record.Failover,
		"extra":     record.Extra,
		"reason":    record.Reason,
	}
}

// LocationSection renders a location fix. Optional measurements are only
// present when the provider reported them.
func LocationSection(record *interfaces.LocationRecord) map[string]any {
	if record == nil {
		return unavailable()
	}

	section := map[string]any{
		"ts":  record.Time,
		"lat": record.Latitude,
		"lon": record.Longitude,
	}

	optional := []struct {
		key   string
		value *float64
	}{
		{"alt", record.Altitude},
		{"acc", record.Accuracy},
		{"speed", record.Speed},
		{"bearing", record.Bearing},
	}
	for _, field := range optional {
		if field.value != nil {
			section[field.key] = RoundValue(*field.value, GeoScale)
		}
	}

	return section
}

// WifiSection renders scan results as a list. No scan renders as an empty
// list.
func WifiSection(results []interfaces.AccessPoint) []map[string]any {
	section := make([]map[string]any, 0, len(results))

	for _, ap := range results {
		entry := make(map[string]any, 6+len(ap.Extended))
		for key, value := range ap.Extended {
			entry[key] = value
		}
		entry["BSSID"] = ap.BSSID
		entry["SSID"] = ap.SSID
		entry["freq"] = ap.Frequency
		entry["level"] = ap.Level
		entry["width"] = ap.ChannelWidth
		entry["caps"] = ap.Capabilities

		section = append(section, entry)
	}

	return section
}
