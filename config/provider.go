package config

import (
	"context"
	"fmt"

	"github.com/ruteri/telemetry-envelope/interfaces"
)

// Provider hands the reporter a configuration snapshot per cycle,
// resolving the secret each time.
type Provider struct {
	cfg    *Config
	secret SecretSource
}

// NewProvider builds a provider for cfg.
func NewProvider(cfg *Config) (*Provider, error) {
	secret, err := ParseSecretSource(cfg.Secret)
	if err != nil {
		return nil, err
	}
	return &Provider{cfg: cfg, secret: secret}, nil
}

// CycleConfig implements interfaces.ConfigSource.
func (p *Provider) CycleConfig(ctx context.Context) (*interfaces.CycleConfig, error) {
	secret, err := p.secret.Secret(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", interfaces.ErrConfig, err)
	}

	return &interfaces.CycleConfig{
		Secret:         secret,
		Host:           p.cfg.Collector.Host,
		Port:           p.cfg.Collector.Port,
		ActionBattery:  p.cfg.Sections.Battery,
		ActionConn:     p.cfg.Sections.Conn,
		ActionLocGPS:   p.cfg.Sections.LocGPS,
		ActionLocNet:   p.cfg.Sections.LocNet,
		ActionWifi:     p.cfg.Sections.Wifi,
		ResolveTimeout: p.cfg.Transport.ResolveTimeout,
	}, nil
}
