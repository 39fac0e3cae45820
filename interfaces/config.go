package interfaces

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CycleConfig is the configuration snapshot one reporting cycle runs with.
// Port stays a string here; it is parsed and range-checked by Validate.
type CycleConfig struct {
	Secret []byte
	Host   string
	Port   string

	ActionBattery bool
	ActionConn    bool
	ActionLocGPS  bool
	ActionLocNet  bool
	ActionWifi    bool

	// ResolveTimeout bounds session setup. Zero means no bound.
	ResolveTimeout time.Duration
}

// Enabled reports whether the optional section is switched on.
func (c *CycleConfig) Enabled(section Section) bool {
	switch section {
	case SectionBattery:
		return c.ActionBattery
	case SectionConn:
		return c.ActionConn
	case SectionLocGPS:
		return c.ActionLocGPS
	case SectionLocNet:
		return c.ActionLocNet
	case SectionWifi:
		return c.ActionWifi
	default:
		return false
	}
}

// EnabledSections returns the switched-on sections in send order.
func (c *CycleConfig) EnabledSections() []Section {
	var enabled []Section
	for _, section := range OptionalSections {
		if c.Enabled(section) {
			enabled = append(enabled, section)
		}
	}
	return enabled
}

// Validate checks secret, host and port, and returns the parsed port.
// Every violation wraps ErrConfig.
func (c *CycleConfig) Validate() (int, error) {
	if len(c.Secret) == 0 {
		return 0, fmt.Errorf("%w: secret is empty", ErrConfig)
	}
	if strings.TrimSpace(c.Host) == "" {
		return 0, fmt.Errorf("%w: host is empty", ErrConfig)
	}
	return ParsePort(c.Port)
}

// ParsePort parses a decimal port in [1, 65535].
func ParsePort(raw string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: port %q is not a number", ErrConfig, raw)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("%w: port %d out of range [1, 65535]", ErrConfig, port)
	}
	return port, nil
}

// ConfigSource supplies a fresh configuration snapshot for every cycle. The
// returned Secret is owned by the caller, which scrubs it after use.
type ConfigSource interface {
	CycleConfig(ctx context.Context) (*CycleConfig, error)
}
