package reporter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ruteri/telemetry-envelope/cryptoutils"
	"github.com/ruteri/telemetry-envelope/envelope"
	"github.com/ruteri/telemetry-envelope/interfaces"
	"github.com/ruteri/telemetry-envelope/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("correct horse battery staple")

type staticConfig struct {
	cfg interfaces.CycleConfig
	err error
}

func (s *staticConfig) CycleConfig(context.Context) (*interfaces.CycleConfig, error) {
	if s.err != nil {
		return nil, s.err
	}
	cfg := s.cfg
	cfg.Secret = append([]byte(nil), s.cfg.Secret...)
	return &cfg, nil
}

func allSections() interfaces.CycleConfig {
	return interfaces.CycleConfig{
		Secret:        testSecret,
		Host:          "collector.example",
		Port:          "9999",
		ActionBattery: true,
		ActionConn:    true,
		ActionLocGPS:  true,
		ActionLocNet:  true,
		ActionWifi:    true,
	}
}

// recordingSession keeps every datagram and fails sends whose index is in
// failOn.
type recordingSession struct {
	sent   [][]byte
	sends  int
	failOn map[int]bool
	closed int
}

func (s *recordingSession) Send(envelope []byte) error {
	idx := s.sends
	s.sends++
	if s.failOn[idx] {
		return interfaces.ErrSend
	}
	s.sent = append(s.sent, append([]byte(nil), envelope...))
	return nil
}

func (s *recordingSession) Close() error {
	s.closed++
	return nil
}

type MockDialer struct {
	mock.Mock
}

func (m *MockDialer) Dial(ctx context.Context, host string, port int) (interfaces.DatagramSession, error) {
	args := m.Called(ctx, host, port)
	session, _ := args.Get(0).(interfaces.DatagramSession)
	return session, args.Error(1)
}

type failingWifi struct{}

func (failingWifi) ScanResults(context.Context) ([]interfaces.AccessPoint, error) {
	return nil, errors.New("scanner busy")
}

type stubBattery struct{ record interfaces.BatteryRecord }

func (s stubBattery) Battery(context.Context) (*interfaces.BatteryRecord, error) {
	return &s.record, nil
}

type stubConnectivity struct{ record interfaces.ConnectivityRecord }

func (s stubConnectivity) ActiveConnection(context.Context) (*interfaces.ConnectivityRecord, error) {
	return &s.record, nil
}

type stubLocation map[interfaces.LocationProvider]interfaces.LocationRecord

func (s stubLocation) LastKnownLocation(_ context.Context, provider interfaces.LocationProvider) (*interfaces.LocationRecord, error) {
	record, ok := s[provider]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func float(v float64) *float64 { return &v }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestReporter(cfg interfaces.CycleConfig, sources telemetry.Sources, dialer interfaces.SessionDialer) *Reporter {
	r := NewReporter(&staticConfig{cfg: cfg}, sources, dialer, quietLogger())
	r.now = func() time.Time { return time.UnixMilli(1700000000123) }
	return r
}

func decodeAll(t *testing.T, datagrams [][]byte) []interfaces.Report {
	t.Helper()
	keys, err := cryptoutils.DeriveKeys(testSecret)
	require.NoError(t, err)

	reports := make([]interfaces.Report, 0, len(datagrams))
	for _, d := range datagrams {
		report, err := envelope.Decode(d, keys)
		require.NoError(t, err)
		reports = append(reports, report)
	}
	return reports
}

func TestRunCycleSuccess(t *testing.T) {
	session := &recordingSession{}
	dialer := new(MockDialer)
	dialer.On("Dial", mock.Anything, "collector.example", 9999).Return(session, nil).Once()

	result := newTestReporter(allSections(), telemetry.Sources{}, dialer).RunCycle(context.Background())

	require.NoError(t, result.Err)
	assert.Equal(t, interfaces.Success, result.Outcome)
	assert.Equal(t, int64(1700000000123), result.Timestamp)
	assert.Equal(t, interfaces.OptionalSections, result.Sent)
	assert.Empty(t, result.Failed)
	assert.Equal(t, 1, session.closed)
	dialer.AssertExpectations(t)

	reports := decodeAll(t, session.sent)
	require.Len(t, reports, 6)
	assert.Equal(t, "ping", reports[0].Kind())
	for i, section := range interfaces.OptionalSections {
		assert.Equal(t, section.String(), reports[i+1].Kind())
	}
	for _, report := range reports {
		ts, err := report.Timestamp()
		require.NoError(t, err)
		assert.Equal(t, int64(1700000000123), ts)
	}
}

func TestRunCyclePingOnly(t *testing.T) {
	session := &recordingSession{}
	dialer := new(MockDialer)
	dialer.On("Dial", mock.Anything, "collector.example", 9999).Return(session, nil)

	cfg := interfaces.CycleConfig{Secret: testSecret, Host: "collector.example", Port: "9999"}
	result := newTestReporter(cfg, telemetry.Sources{}, dialer).RunCycle(context.Background())

	assert.Equal(t, interfaces.Success, result.Outcome)
	assert.Empty(t, result.Sent)
	require.Len(t, session.sent, 1)
	assert.Equal(t, "ping", decodeAll(t, session.sent)[0].Kind())
}

func TestRunCycleConfigGating(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *interfaces.CycleConfig)
	}{
		{"port zero", func(c *interfaces.CycleConfig) { c.Port = "0" }},
		{"port too large", func(c *interfaces.CycleConfig) { c.Port = "65536" }},
		{"port not numeric", func(c *interfaces.CycleConfig) { c.Port = "abc" }},
		{"empty host", func(c *interfaces.CycleConfig) { c.Host = "" }},
		{"empty secret", func(c *interfaces.CycleConfig) { c.Secret = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := allSections()
			tt.mutate(&cfg)
			dialer := new(MockDialer)

			result := newTestReporter(cfg, telemetry.Sources{}, dialer).RunCycle(context.Background())

			assert.Equal(t, interfaces.FatalFailure, result.Outcome)
			require.ErrorIs(t, result.Err, interfaces.ErrConfig)
			dialer.AssertNotCalled(t, "Dial", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestRunCycleConfigSourceError(t *testing.T) {
	dialer := new(MockDialer)
	r := NewReporter(&staticConfig{err: errors.New("vault sealed")}, telemetry.Sources{}, dialer, quietLogger())

	result := r.RunCycle(context.Background())
	assert.Equal(t, interfaces.FatalFailure, result.Outcome)
	require.ErrorIs(t, result.Err, interfaces.ErrConfig)
	dialer.AssertNotCalled(t, "Dial", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunCycleConnectionFailure(t *testing.T) {
	dialer := new(MockDialer)
	dialer.On("Dial", mock.Anything, "collector.example", 9999).Return(nil, errors.New("no route to host"))

	result := newTestReporter(allSections(), telemetry.Sources{}, dialer).RunCycle(context.Background())

	assert.Equal(t, interfaces.FatalFailure, result.Outcome)
	require.ErrorIs(t, result.Err, interfaces.ErrConnection)
}

func TestRunCyclePingCircuitBreaker(t *testing.T) {
	session := &recordingSession{failOn: map[int]bool{0: true}}
	dialer := new(MockDialer)
	dialer.On("Dial", mock.Anything, "collector.example", 9999).Return(session, nil)

	result := newTestReporter(allSections(), telemetry.Sources{}, dialer).RunCycle(context.Background())

	assert.Equal(t, interfaces.RetryableFailure, result.Outcome)
	require.ErrorIs(t, result.Err, interfaces.ErrPingSend)
	assert.Equal(t, 1, session.sends)
	assert.Empty(t, session.sent)
	assert.Empty(t, result.Sent)
	assert.Equal(t, 1, session.closed)
}

func TestRunCyclePartialFailure(t *testing.T) {
	t.Run("collector error", func(t *testing.T) {
		session := &recordingSession{}
		dialer := new(MockDialer)
		dialer.On("Dial", mock.Anything, "collector.example", 9999).Return(session, nil)

		sources := telemetry.Sources{
			Battery: stubBattery{interfaces.BatteryRecord{
				Health: 2, Status: 3, Plug: 1, Voltage: 4200, Temperature: 250,
				Technology: "Li-ion", Level: 57, Scale: 100,
			}},
			Connectivity: stubConnectivity{interfaces.ConnectivityRecord{
				Type: "WIFI", Connected: true, Available: true,
			}},
			Location: stubLocation{
				interfaces.ProviderGPS: {
					Time: 1700000000000, Latitude: 52.52, Longitude: 13.405, Altitude: float(34.56789),
				},
				interfaces.ProviderNetwork: {
					Time: 1699999990000, Latitude: 52.5, Longitude: 13.4, Accuracy: float(1200),
				},
			},
			Wifi: failingWifi{},
		}
		result := newTestReporter(allSections(), sources, dialer).RunCycle(context.Background())

		assert.Equal(t, interfaces.Success, result.Outcome)
		require.NoError(t, result.Err)
		assert.Equal(t, []interfaces.Section{
			interfaces.SectionBattery,
			interfaces.SectionConn,
			interfaces.SectionLocGPS,
			interfaces.SectionLocNet,
		}, result.Sent)
		assert.Equal(t, []interfaces.Section{interfaces.SectionWifi}, result.Failed)

		reports := decodeAll(t, session.sent)
		require.Len(t, reports, 5)
		assert.Equal(t, "ping", reports[0].Kind())

		expected := []struct {
			section interfaces.Section
			body    string
		}{
			{interfaces.SectionBattery, `{"health":2,"status":3,"plug":1,"volt":4200,"temp":250,"tech":"Li-ion","pct":57}`},
			{interfaces.SectionConn, `{"type":"WIFI","subtype":"","connected":true,"available":true,"roaming":false,"failover":false,"extra":"","reason":""}`},
			{interfaces.SectionLocGPS, `{"ts":1700000000000,"lat":52.52,"lon":13.405,"alt":34.5679}`},
			{interfaces.SectionLocNet, `{"ts":1699999990000,"lat":52.5,"lon":13.4,"acc":1200}`},
		}
		for i, want := range expected {
			report := reports[i+1]
			assert.Equal(t, want.section.String(), report.Kind())

			body, err := json.Marshal(report[want.section.String()])
			require.NoError(t, err)
			assert.JSONEq(t, want.body, string(body), want.section.String())
		}
	})

	t.Run("send error in the middle", func(t *testing.T) {
		// index 0 is the ping, 2 is conn_active
		session := &recordingSession{failOn: map[int]bool{2: true}}
		dialer := new(MockDialer)
		dialer.On("Dial", mock.Anything, "collector.example", 9999).Return(session, nil)

		result := newTestReporter(allSections(), telemetry.Sources{}, dialer).RunCycle(context.Background())

		assert.Equal(t, interfaces.Success, result.Outcome)
		assert.Equal(t, []interfaces.Section{interfaces.SectionConn}, result.Failed)
		assert.Len(t, result.Sent, 4)
		assert.Equal(t, 6, session.sends)
	})
}

func TestRunCycleCancelledAfterDial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	session := &recordingSession{}
	dialer := new(MockDialer)
	dialer.On("Dial", mock.Anything, "collector.example", 9999).
		Run(func(mock.Arguments) { cancel() }).
		Return(session, nil)

	result := newTestReporter(allSections(), telemetry.Sources{}, dialer).RunCycle(ctx)

	assert.Equal(t, interfaces.RetryableFailure, result.Outcome)
	require.ErrorIs(t, result.Err, context.Canceled)
	assert.Zero(t, session.sends)
	assert.Equal(t, 1, session.closed)
}

func TestRunCycleResolveTimeout(t *testing.T) {
	cfg := allSections()
	cfg.ResolveTimeout = time.Minute

	session := &recordingSession{}
	dialer := new(MockDialer)
	dialer.On("Dial", mock.MatchedBy(func(ctx context.Context) bool {
		_, ok := ctx.Deadline()
		return ok
	}), "collector.example", 9999).Return(session, nil)

	result := newTestReporter(cfg, telemetry.Sources{}, dialer).RunCycle(context.Background())
	assert.Equal(t, interfaces.Success, result.Outcome)
	dialer.AssertExpectations(t)
}

func TestRunCycleScrubsSecret(t *testing.T) {
	source := &scrubCheckConfig{}
	session := &recordingSession{}
	dialer := new(MockDialer)
	dialer.On("Dial", mock.Anything, "collector.example", 9999).Return(session, nil)

	NewReporter(source, telemetry.Sources{}, dialer, quietLogger()).RunCycle(context.Background())

	require.NotNil(t, source.handedOut)
	assert.Equal(t, make([]byte, len(testSecret)), source.handedOut)
}

type scrubCheckConfig struct {
	handedOut []byte
}

func (s *scrubCheckConfig) CycleConfig(context.Context) (*interfaces.CycleConfig, error) {
	cfg := allSections()
	cfg.Secret = append([]byte(nil), testSecret...)
	s.handedOut = cfg.Secret
	return &cfg, nil
}
