package config

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/ruteri/telemetry-envelope/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const agentYAML = `
collector:
  host: collector.example
  port: "9999"
secret: env:TELEMETRY_TEST_SECRET
sections:
  battery: true
  wifi: true
schedule:
  interval: 5m
  retry_max_retries: 2
transport:
  max_datagram_size: 1200
  nameserver: 1.1.1.1:53
snapshot_path: /var/lib/telemetry/snapshot.yaml
status:
  listen_addr: 127.0.0.1:8080
  metrics_addr: 127.0.0.1:8090
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(agentYAML))
	require.NoError(t, err)

	assert.Equal(t, "collector.example", cfg.Collector.Host)
	assert.Equal(t, "9999", cfg.Collector.Port)
	assert.True(t, cfg.Sections.Battery)
	assert.False(t, cfg.Sections.Conn)
	assert.True(t, cfg.Sections.Wifi)
	assert.Equal(t, 5*time.Minute, cfg.Schedule.Interval)
	assert.Equal(t, uint64(2), cfg.Schedule.RetryMaxRetries)
	assert.Equal(t, 1200, cfg.Transport.MaxDatagramSize)
	assert.Equal(t, "127.0.0.1:8080", cfg.Status.ListenAddr)
	assert.Equal(t, "127.0.0.1:8090", cfg.Status.MetricsAddr)
	assert.False(t, cfg.SingleCycle())

	// defaults survive for absent keys
	assert.Equal(t, 2*time.Second, cfg.Schedule.RetryInitial)
	assert.Equal(t, 10*time.Second, cfg.Transport.ResolveTimeout)
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"malformed", "collector: [unterminated"},
		{"negative interval", "schedule:\n  interval: -1m\n"},
		{"bad duration", "schedule:\n  interval: often\n"},
		{"datagram too large", "transport:\n  max_datagram_size: 70000\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.ErrorIs(t, err, interfaces.ErrConfig)
		})
	}
}

func TestParseKeepsCollectorErrorsForCycle(t *testing.T) {
	cfg, err := Parse([]byte("collector:\n  port: \"70000\"\n"))
	require.NoError(t, err)

	provider, err := NewProvider(cfg)
	require.NoError(t, err)

	cycle, err := provider.CycleConfig(context.Background())
	require.NoError(t, err)
	_, err = cycle.Validate()
	require.ErrorIs(t, err, interfaces.ErrConfig)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(agentYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/telemetry/snapshot.yaml", cfg.SnapshotPath)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, interfaces.ErrConfig)
}

func TestSingleCycle(t *testing.T) {
	cfg := Default()
	assert.False(t, cfg.SingleCycle())
	cfg.Schedule.Once = true
	assert.True(t, cfg.SingleCycle())
	cfg = Default()
	cfg.Schedule.Interval = 0
	assert.True(t, cfg.SingleCycle())
}

func TestSecretSources(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	secretPath := filepath.Join(dir, "secret")
	require.NoError(t, os.WriteFile(secretPath, []byte("from-file\n"), 0o600))
	t.Setenv("TELEMETRY_TEST_SECRET", "from-env")

	tests := []struct {
		ref     string
		want    string
		wantErr bool
	}{
		{ref: "plain-secret", want: "plain-secret"},
		{ref: "", want: ""},
		{ref: "file:" + secretPath, want: "from-file"},
		{ref: "file:" + filepath.Join(dir, "absent"), wantErr: true},
		{ref: "env:TELEMETRY_TEST_SECRET", want: "from-env"},
		{ref: "env:TELEMETRY_TEST_UNSET", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			source, err := ParseSecretSource(tt.ref)
			require.NoError(t, err)

			secret, err := source.Secret(ctx)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(secret))
		})
	}
}

func newVaultClient(t *testing.T, handler http.HandlerFunc) *api.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := api.DefaultConfig()
	cfg.Address = srv.URL
	cfg.MaxRetries = 0
	client, err := api.NewClient(cfg)
	require.NoError(t, err)
	client.SetToken("test-token")
	return client
}

func TestVaultSecret(t *testing.T) {
	client := newVaultClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Vault-Token") != "test-token" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if r.URL.Path != "/v1/secret/data/telemetry/agent" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"data":{"shared":"from-vault"},"metadata":{"version":3}}}`))
	})
	ctx := context.Background()

	source, err := NewVaultSecret("secret/telemetry/agent#shared", client)
	require.NoError(t, err)
	secret, err := source.Secret(ctx)
	require.NoError(t, err)
	assert.Equal(t, "from-vault", string(secret))

	missingField, err := NewVaultSecret("secret/telemetry/agent#other", client)
	require.NoError(t, err)
	_, err = missingField.Secret(ctx)
	require.ErrorIs(t, err, errVaultSecretMissing)

	missingPath, err := NewVaultSecret("secret/telemetry/none#shared", client)
	require.NoError(t, err)
	_, err = missingPath.Secret(ctx)
	require.ErrorIs(t, err, errVaultSecretMissing)
}

func TestVaultSecretReference(t *testing.T) {
	for _, ref := range []string{"secret/telemetry", "secret#field", "/telemetry#field", "secret/path#"} {
		_, err := NewVaultSecret(ref, &api.Client{})
		require.ErrorIs(t, err, interfaces.ErrConfig, ref)
	}
}

func TestProviderCycleConfig(t *testing.T) {
	cfg, err := Parse([]byte(agentYAML))
	require.NoError(t, err)
	t.Setenv("TELEMETRY_TEST_SECRET", "rotating")

	provider, err := NewProvider(cfg)
	require.NoError(t, err)

	first, err := provider.CycleConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("rotating"), first.Secret)
	assert.Equal(t, []interfaces.Section{interfaces.SectionBattery, interfaces.SectionWifi}, first.EnabledSections())
	assert.Equal(t, 10*time.Second, first.ResolveTimeout)

	clear(first.Secret)
	t.Setenv("TELEMETRY_TEST_SECRET", "rotated")

	second, err := provider.CycleConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("rotated"), second.Secret)

	os.Unsetenv("TELEMETRY_TEST_SECRET")
	_, err = provider.CycleConfig(context.Background())
	require.ErrorIs(t, err, interfaces.ErrConfig)
}
