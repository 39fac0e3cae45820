package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ruteri/telemetry-envelope/interfaces"
	"gopkg.in/yaml.v3"
)

// Config is the agent configuration file.
//
// Collector address and secret are deliberately not validated here: an
// agent with a broken collector configuration still starts, and each cycle
// reports FatalFailure until the file is fixed.
type Config struct {
	Collector CollectorConfig `yaml:"collector"`

	// Secret is a secret reference, see ParseSecretSource.
	Secret string `yaml:"secret"`

	Sections  SectionsConfig  `yaml:"sections"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Transport TransportConfig `yaml:"transport"`

	// SnapshotPath is the YAML telemetry snapshot read by the agent.
	SnapshotPath string `yaml:"snapshot_path"`

	Status StatusConfig `yaml:"status"`
}

// CollectorConfig addresses the collector.
type CollectorConfig struct {
	Host string `yaml:"host"`
	// Port is kept as text and parsed at the start of every cycle.
	Port string `yaml:"port"`
}

// SectionsConfig switches optional sections on.
type SectionsConfig struct {
	Battery bool `yaml:"battery"`
	Conn    bool `yaml:"conn_active"`
	LocGPS  bool `yaml:"loc_gps"`
	LocNet  bool `yaml:"loc_net"`
	Wifi    bool `yaml:"wifi"`
}

// ScheduleConfig controls when cycles run.
type ScheduleConfig struct {
	// Interval between cycles; zero or Once runs a single cycle.
	Interval time.Duration `yaml:"interval"`
	Once     bool          `yaml:"once"`

	RetryInitial    time.Duration `yaml:"retry_initial"`
	RetryMax        time.Duration `yaml:"retry_max"`
	RetryMaxRetries uint64        `yaml:"retry_max_retries"`
}

// TransportConfig tunes the datagram session.
type TransportConfig struct {
	// MaxDatagramSize lowers the envelope size limit. Zero keeps 65507.
	MaxDatagramSize int `yaml:"max_datagram_size"`
	// Nameserver, when set, resolves the collector through this DNS server
	// instead of the system resolver.
	Nameserver     string        `yaml:"nameserver"`
	ResolveTimeout time.Duration `yaml:"resolve_timeout"`
}

// StatusConfig configures the optional status HTTP server.
type StatusConfig struct {
	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	EnablePprof bool   `yaml:"pprof"`
}

// Default returns the configuration used for fields absent from the file.
func Default() *Config {
	return &Config{
		Schedule: ScheduleConfig{
			Interval:        15 * time.Minute,
			RetryInitial:    2 * time.Second,
			RetryMax:        30 * time.Second,
			RetryMaxRetries: 4,
		},
		Transport: TransportConfig{
			ResolveTimeout: 10 * time.Second,
		},
	}
}

// Load reads path over the defaults. A missing file is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config file: %v", interfaces.ErrConfig, err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", interfaces.ErrConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the scheduling and transport knobs.
func (c *Config) Validate() error {
	var errs []error

	if c.Schedule.Interval < 0 {
		errs = append(errs, errors.New("schedule.interval must not be negative"))
	}
	if c.Schedule.RetryInitial < 0 || c.Schedule.RetryMax < 0 {
		errs = append(errs, errors.New("schedule retry intervals must not be negative"))
	}
	if c.Transport.MaxDatagramSize < 0 || c.Transport.MaxDatagramSize > 65507 {
		errs = append(errs, fmt.Errorf("transport.max_datagram_size %d outside [0, 65507]", c.Transport.MaxDatagramSize))
	}
	if c.Transport.ResolveTimeout < 0 {
		errs = append(errs, errors.New("transport.resolve_timeout must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", interfaces.ErrConfig, errors.Join(errs...))
	}
	return nil
}

// SingleCycle reports whether the agent runs one cycle and exits.
func (c *Config) SingleCycle() bool {
	return c.Schedule.Once || c.Schedule.Interval == 0
}
