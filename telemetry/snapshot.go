package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/ruteri/telemetry-envelope/interfaces"
	"gopkg.in/yaml.v3"
)

// Snapshot is the document layout read by SnapshotSource:
//
//	battery: {health: 2, status: 3, level: 57, scale: 100, ...}
//	connectivity: {type: WIFI, connected: true, ...}
//	location:
//	  gps: {time: 1700000000000, lat: 52.52, lon: 13.405, alt: 34.5}
//	  network: {...}
//	wifi:
//	  - {bssid: "aa:bb:cc:dd:ee:ff", ssid: home, freq: 2412, level: -40}
type Snapshot struct {
	Battery      *interfaces.BatteryRecord      `yaml:"battery,omitempty"`
	Connectivity *interfaces.ConnectivityRecord `yaml:"connectivity,omitempty"`
	Location     struct {
		GPS     *interfaces.LocationRecord `yaml:"gps,omitempty"`
		Network *interfaces.LocationRecord `yaml:"network,omitempty"`
	} `yaml:"location"`
	Wifi []interfaces.AccessPoint `yaml:"wifi,omitempty"`
}

// SnapshotSource serves all four telemetry sources from a YAML file written
// by an external sampler. The file is re-read on every call so a long-running
// agent always reports the latest snapshot. A missing file means no data.
type SnapshotSource struct {
	Path string
}

// NewSnapshotSource returns a source reading path.
func NewSnapshotSource(path string) *SnapshotSource {
	return &SnapshotSource{Path: path}
}

// Sources wires the snapshot into every slot of a Sources bundle.
func (s *SnapshotSource) Sources() Sources {
	return Sources{
		Battery:      s,
		Connectivity: s,
		Location:     s,
		Wifi:         s,
	}
}

// Load reads and parses the snapshot file.
func (s *SnapshotSource) Load() (*Snapshot, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := yaml.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot %s: %w", s.Path, err)
	}
	return &snapshot, nil
}

func (s *SnapshotSource) Battery(ctx context.Context) (*interfaces.BatteryRecord, error) {
	snapshot, err := s.Load()
	if err != nil {
		return nil, err
	}
	return snapshot.Battery, nil
}

func (s *SnapshotSource) ActiveConnection(ctx context.Context) (*interfaces.ConnectivityRecord, error) {
	snapshot, err := s.Load()
	if err != nil {
		return nil, err
	}
	return snapshot.Connectivity, nil
}

func (s *SnapshotSource) LastKnownLocation(ctx context.Context, provider interfaces.LocationProvider) (*interfaces.LocationRecord, error) {
	snapshot, err := s.Load()
	if err != nil {
		return nil, err
	}

	switch provider {
	case interfaces.ProviderGPS:
		return snapshot.Location.GPS, nil
	case interfaces.ProviderNetwork:
		return snapshot.Location.Network, nil
	default:
		return nil, fmt.Errorf("unknown location provider %q", provider)
	}
}

func (s *SnapshotSource) ScanResults(ctx context.Context) ([]interfaces.AccessPoint, error) {
	snapshot, err := s.Load()
	if err != nil {
		return nil, err
	}
	return snapshot.Wifi, nil
}
