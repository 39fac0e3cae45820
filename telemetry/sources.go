package telemetry

import (
	"context"
	"fmt"

	"github.com/ruteri/telemetry-envelope/interfaces"
)

// Sources bundles the platform collaborators. A nil source behaves like a
// provider without data.
type Sources struct {
	Battery      interfaces.BatterySource
	Connectivity interfaces.ConnectivitySource
	Location     interfaces.LocationSource
	Wifi         interfaces.WifiSource
}

// Collect reads one section from its collaborator and renders it.
func (s Sources) Collect(ctx context.Context, section interfaces.Section) (any, error) {
	switch section {
	case interfaces.SectionBattery:
		if s.Battery == nil {
			return BatterySection(nil), nil
		}
		record, err := s.Battery.Battery(ctx)
		if err != nil {
			return nil, err
		}
		return BatterySection(record), nil

	case interfaces.SectionConn:
		if s.Connectivity == nil {
			return ConnectivitySection(nil), nil
		}
		record, err := s.Connectivity.ActiveConnection(ctx)
		if err != nil {
			return nil, err
		}
		return ConnectivitySection(record), nil

	case interfaces.SectionLocGPS:
		return s.location(ctx, interfaces.ProviderGPS)

	case interfaces.SectionLocNet:
		return s.location(ctx, interfaces.ProviderNetwork)

	case interfaces.SectionWifi:
		if s.Wifi == nil {
			return WifiSection(nil), nil
		}
		results, err := s.Wifi.ScanResults(ctx)
		if err != nil {
			return nil, err
		}
		return WifiSection(results), nil

	default:
		return nil, fmt.Errorf("unknown section %q", section)
	}
}

func (s Sources) location(ctx context.Context, provider interfaces.LocationProvider) (any, error) {
	if s.Location == nil {
		return LocationSection(nil), nil
	}
	record, err := s.Location.LastKnownLocation(ctx, provider)
	if err != nil {
		return nil, err
	}
	return LocationSection(record), nil
}
