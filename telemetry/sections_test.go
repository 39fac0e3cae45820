package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ruteri/telemetry-envelope/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestBatterySection(t *testing.T) {
	t.Run("percentage", func(t *testing.T) {
		section := BatterySection(&interfaces.BatteryRecord{
			Health: 2, Status: 3, Plug: 1, Voltage: 4123, Temperature: 291,
			Technology: "Li-ion", Level: 1, Scale: 3,
		})
		assert.Equal(t, 33.33, section["pct"])
		assert.Equal(t, 4123, section["volt"])
		assert.Equal(t, "Li-ion", section["tech"])
	})

	t.Run("unknown scale", func(t *testing.T) {
		section := BatterySection(&interfaces.BatteryRecord{Level: 50, Scale: -1})
		assert.Equal(t, -1, section["pct"])
	})

	t.Run("no data", func(t *testing.T) {
		assert.Equal(t, map[string]any{"na": true}, BatterySection(nil))
	})
}

func TestConnectivitySection(t *testing.T) {
	section := ConnectivitySection(&interfaces.ConnectivityRecord{
		Type: "WIFI", Connected: true, Available: true, Reason: "",
	})

	data, err := json.Marshal(section)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"WIFI","subtype":"","connected":true,"available":true,
		"roaming":false,"failover":false,"extra":"","reason":""}`, string(data))

	assert.Equal(t, map[string]any{"na": true}, ConnectivitySection(nil))
}

func TestLocationSection(t *testing.T) {
	section := LocationSection(&interfaces.LocationRecord{
		Time:      1700000000000,
		Latitude:  52.520008,
		Longitude: 13.404954,
		Altitude:  ptr(34.123456),
		Bearing:   ptr(359.99995),
	})

	assert.Equal(t, int64(1700000000000), section["ts"])
	assert.Equal(t, 52.520008, section["lat"])
	assert.Equal(t, 34.1235, section["alt"])
	assert.Equal(t, 360.0, section["bearing"])
	assert.NotContains(t, section, "acc")
	assert.NotContains(t, section, "speed")

	assert.Equal(t, map[string]any{"na": true}, LocationSection(nil))
}

func TestWifiSection(t *testing.T) {
	assert.Equal(t, []map[string]any{}, WifiSection(nil))

	data, err := json.Marshal(WifiSection(nil))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	section := WifiSection([]interfaces.AccessPoint{
		{
			BSSID: "aa:bb:cc:dd:ee:ff", SSID: "home", Frequency: 2412, Level: -40,
			ChannelWidth: 0, Capabilities: "[WPA2-PSK-CCMP]",
			Extended: map[string]any{"venue": "cafe", "SSID": "spoofed"},
		},
		{BSSID: "11:22:33:44:55:66", SSID: "office", Frequency: 5180, Level: -71},
	})
	require.Len(t, section, 2)
	assert.Equal(t, "home", section[0]["SSID"])
	assert.Equal(t, "cafe", section[0]["venue"])
	assert.Equal(t, 5180, section[1]["freq"])
	assert.NotContains(t, section[1], "venue")
}

type failingWifi struct{}

func (failingWifi) ScanResults(context.Context) ([]interfaces.AccessPoint, error) {
	return nil, errors.New("scan unavailable")
}

func TestSourcesCollect(t *testing.T) {
	ctx := context.Background()

	t.Run("nil sources report no data", func(t *testing.T) {
		var sources Sources
		for _, section := range interfaces.OptionalSections {
			value, err := sources.Collect(ctx, section)
			require.NoError(t, err, section)
			require.NotNil(t, value, section)
		}
	})

	t.Run("source error", func(t *testing.T) {
		sources := Sources{Wifi: failingWifi{}}
		_, err := sources.Collect(ctx, interfaces.SectionWifi)
		require.Error(t, err)
	})

	t.Run("unknown section", func(t *testing.T) {
		_, err := Sources{}.Collect(ctx, interfaces.Section("gyro"))
		require.Error(t, err)
	})
}

const snapshotYAML = `
battery:
  health: 2
  status: 3
  plug: 1
  voltage: 4123
  temperature: 291
  technology: Li-ion
  level: 57
  scale: 100
connectivity:
  type: WIFI
  connected: true
  available: true
location:
  gps:
    time: 1700000000000
    lat: 52.52
    lon: 13.405
    acc: 3.25
wifi:
  - bssid: "aa:bb:cc:dd:ee:ff"
    ssid: home
    freq: 2412
    level: -40
`

func TestSnapshotSource(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snapshot.yaml")
	source := NewSnapshotSource(path)
	sources := source.Sources()

	t.Run("missing file", func(t *testing.T) {
		battery, err := source.Battery(ctx)
		require.NoError(t, err)
		assert.Nil(t, battery)

		value, err := sources.Collect(ctx, interfaces.SectionWifi)
		require.NoError(t, err)
		assert.Equal(t, []map[string]any{}, value)
	})

	require.NoError(t, os.WriteFile(path, []byte(snapshotYAML), 0o600))

	t.Run("populated", func(t *testing.T) {
		battery, err := sources.Collect(ctx, interfaces.SectionBattery)
		require.NoError(t, err)
		assert.Equal(t, 57.0, battery.(map[string]any)["pct"])

		gps, err := source.LastKnownLocation(ctx, interfaces.ProviderGPS)
		require.NoError(t, err)
		require.NotNil(t, gps)
		require.NotNil(t, gps.Accuracy)
		assert.Nil(t, gps.Altitude)
		assert.Equal(t, 3.25, *gps.Accuracy)

		network, err := sources.Collect(ctx, interfaces.SectionLocNet)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"na": true}, network)

		wifi, err := source.ScanResults(ctx)
		require.NoError(t, err)
		require.Len(t, wifi, 1)
		assert.Equal(t, "home", wifi[0].SSID)
	})

	t.Run("battery keys not reported", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("battery:\n  voltage: 3900\n  technology: Li-poly\n"), 0o600))

		record, err := source.Battery(ctx)
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.Equal(t, 3900, record.Voltage)
		assert.Equal(t, interfaces.NotReported, record.Health)
		assert.Equal(t, interfaces.NotReported, record.Plug)

		battery, err := sources.Collect(ctx, interfaces.SectionBattery)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{
			"health": -1,
			"status": -1,
			"plug":   -1,
			"volt":   3900,
			"temp":   -1,
			"tech":   "Li-poly",
			"pct":    -1,
		}, battery)
	})

	t.Run("malformed file", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("battery: [unclosed"), 0o600))
		_, err := source.ActiveConnection(ctx)
		require.Error(t, err)
	})
}
