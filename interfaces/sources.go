package interfaces

import (
	"context"

	"gopkg.in/yaml.v3"
)

// NotReported marks an integer battery field the platform did not report.
const NotReported = -1

// BatteryRecord is a raw battery reading. Integer fields use NotReported
// for "not reported"; keys missing from a YAML document decode as such.
type BatteryRecord struct {
	Health      int    `yaml:"health"`
	Status      int    `yaml:"status"`
	Plug        int    `yaml:"plug"`
	Voltage     int    `yaml:"voltage"`
	Temperature int    `yaml:"temperature"`
	Technology  string `yaml:"technology"`
	Level       int    `yaml:"level"`
	Scale       int    `yaml:"scale"`
}

// NewBatteryRecord returns a record with every integer field NotReported.
func NewBatteryRecord() BatteryRecord {
	return BatteryRecord{
		Health:      NotReported,
		Status:      NotReported,
		Plug:        NotReported,
		Voltage:     NotReported,
		Temperature: NotReported,
		Level:       NotReported,
		Scale:       NotReported,
	}
}

func (r *BatteryRecord) UnmarshalYAML(value *yaml.Node) error {
	type plain BatteryRecord
	record := plain(NewBatteryRecord())
	if err := value.Decode(&record); err != nil {
		return err
	}
	*r = BatteryRecord(record)
	return nil
}

// ConnectivityRecord describes the active network connection.
type ConnectivityRecord struct {
	Type      string `yaml:"type"`
	Subtype   string `yaml:"subtype"`
	Connected bool   `yaml:"connected"`
	Available bool   `yaml:"available"`
	Roaming   bool   `yaml:"roaming"`
	Failover  bool   `yaml:"failover"`
	Extra     string `yaml:"extra"`
	Reason    string `yaml:"reason"`
}

// LocationRecord is a cached location fix. Optional measurements are nil
// when the provider did not report them.
type LocationRecord struct {
	// Time of the fix in milliseconds since the Unix epoch.
	Time      int64    `yaml:"time"`
	Latitude  float64  `yaml:"lat"`
	Longitude float64  `yaml:"lon"`
	Altitude  *float64 `yaml:"alt,omitempty"`
	Accuracy  *float64 `yaml:"acc,omitempty"`
	Speed     *float64 `yaml:"speed,omitempty"`
	Bearing   *float64 `yaml:"bearing,omitempty"`
}

// AccessPoint is one wireless scan observation.
type AccessPoint struct {
	BSSID        string `yaml:"bssid"`
	SSID         string `yaml:"ssid"`
	Frequency    int    `yaml:"freq"`
	Level        int    `yaml:"level"`
	ChannelWidth int    `yaml:"width"`
	Capabilities string `yaml:"caps"`
	// Extended holds optional provider-specific fields (venue name, center
	// frequencies). Sent verbatim when present.
	Extended map[string]any `yaml:"extended,omitempty"`
}

// LocationProvider selects which location source to query.
type LocationProvider string

const (
	// ProviderGPS is the satellite-based provider.
	ProviderGPS LocationProvider = "gps"
	// ProviderNetwork is the cell/wifi-based provider.
	ProviderNetwork LocationProvider = "network"
)

// The telemetry sources below return a nil record (and nil error) when no
// data is available. Only genuine failures are errors.

// BatterySource reads the battery state.
type BatterySource interface {
	Battery(ctx context.Context) (*BatteryRecord, error)
}

// ConnectivitySource reads the active connection state.
type ConnectivitySource interface {
	ActiveConnection(ctx context.Context) (*ConnectivityRecord, error)
}

// LocationSource returns the last known fix of a provider.
type LocationSource interface {
	LastKnownLocation(ctx context.Context, provider LocationProvider) (*LocationRecord, error)
}

// WifiSource returns the cached scan results. A nil slice means no scan is
// available.
type WifiSource interface {
	ScanResults(ctx context.Context) ([]AccessPoint, error)
}
