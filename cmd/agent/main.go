package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruteri/telemetry-envelope/cmd/flags"
	"github.com/ruteri/telemetry-envelope/common"
	"github.com/ruteri/telemetry-envelope/config"
	"github.com/ruteri/telemetry-envelope/httpserver"
	"github.com/ruteri/telemetry-envelope/interfaces"
	"github.com/ruteri/telemetry-envelope/metrics"
	"github.com/ruteri/telemetry-envelope/reporter"
	"github.com/ruteri/telemetry-envelope/scheduler"
	"github.com/ruteri/telemetry-envelope/telemetry"
	"github.com/ruteri/telemetry-envelope/transport"
	"github.com/urfave/cli/v2"
)

// Exit codes of the once command.
const (
	exitFatal     = 1
	exitRetryable = 75 // EX_TEMPFAIL
)

var AgentServiceLogFlag = flags.LogServiceFlagFn("telemetry-agent")

var ConfigFileFlag = &cli.StringFlag{
	Name:    "config",
	EnvVars: []string{"TELEMETRY_CONFIG"},
	Usage:   "YAML configuration file; flags override its values",
}
var HostFlag = &cli.StringFlag{
	Name:    "host",
	EnvVars: []string{"TELEMETRY_HOST"},
	Usage:   "collector host name or address",
}
var PortFlag = &cli.StringFlag{
	Name:    "port",
	EnvVars: []string{"TELEMETRY_PORT"},
	Usage:   "collector UDP port",
}
var SectionsFlag = &cli.StringSliceFlag{
	Name:    "sections",
	EnvVars: []string{"TELEMETRY_SECTIONS"},
	Usage:   "optional sections to send: battery, conn_active, loc_gps, loc_net, wifi",
}
var IntervalFlag = &cli.DurationFlag{
	Name:    "interval",
	EnvVars: []string{"TELEMETRY_INTERVAL"},
	Usage:   "time between reporting cycles",
}
var SnapshotFlag = &cli.StringFlag{
	Name:    "snapshot",
	EnvVars: []string{"TELEMETRY_SNAPSHOT"},
	Usage:   "YAML telemetry snapshot written by the platform sampler",
}
var NameserverFlag = &cli.StringFlag{
	Name:    "nameserver",
	EnvVars: []string{"TELEMETRY_NAMESERVER"},
	Usage:   "resolve the collector through this DNS server instead of the system resolver",
}
var MaxDatagramSizeFlag = &cli.IntFlag{
	Name:    "max-datagram-size",
	EnvVars: []string{"TELEMETRY_MAX_DATAGRAM_SIZE"},
	Usage:   "largest envelope to send, at most 65507",
}

var agentFlags = append([]cli.Flag{
	ConfigFileFlag,
	HostFlag,
	PortFlag,
	flags.SecretFlag,
	SectionsFlag,
	IntervalFlag,
	SnapshotFlag,
	NameserverFlag,
	MaxDatagramSizeFlag,
	flags.StatusAddrFlag,
	AgentServiceLogFlag,
}, flags.CommonFlags...)

func main() {
	app := &cli.App{
		Name:  "telemetry-agent",
		Usage: "Send encrypted telemetry reports to a collector",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "report periodically until interrupted",
				Flags:  agentFlags,
				Action: runAction,
			},
			{
				Name:   "once",
				Usage:  "run a single reporting cycle; exit code 0 success, 1 fatal, 75 retryable",
				Flags:  agentFlags,
				Action: onceAction,
			},
		},
		DefaultCommand: "run",
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runAction(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	cfg, err := loadConfig(cCtx)
	if err != nil {
		logger.Error("Failed to load configuration", "err", err)
		return err
	}

	r, err := buildReporter(cfg, logger)
	if err != nil {
		logger.Error("Failed to set up reporter", "err", err)
		return err
	}

	schedCfg := schedulerConfig(cfg, logger)

	cycleMetrics := metrics.NewCycleMetrics(common.PackageName)

	var (
		sched *scheduler.Scheduler
		srv   *httpserver.Server
	)
	if cfg.Status.ListenAddr != "" || cfg.Status.MetricsAddr != "" {
		status := func() (any, bool) {
			return sched.Last()
		}
		srvCfg := flags.ConfigureServer(cCtx, logger, cfg.Status.ListenAddr, status)
		srvCfg.MetricsAddr = cfg.Status.MetricsAddr
		srvCfg.EnablePprof = cfg.Status.EnablePprof
		srvCfg.Collectors = append(srvCfg.Collectors, cycleMetrics)
		srvCfg.Idle = func() bool {
			return !sched.Running()
		}
		srv, err = httpserver.New(srvCfg)
		if err != nil {
			logger.Error("Failed to create status server", "err", err)
			return err
		}
		schedCfg.Paused = srv.Draining
	}
	sched = scheduler.New(schedCfg, cycleMetrics.Instrument(r))

	if srv != nil {
		srv.RunInBackground()
		defer srv.Shutdown()
	}

	ctx, stop := signal.NotifyContext(cCtx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Telemetry agent started",
		slog.String("collector", cfg.Collector.Host),
		slog.Duration("interval", schedCfg.Interval))

	if err := sched.Run(ctx); err != nil {
		logger.Error("Schedule stopped", "err", err)
		return err
	}

	logger.Info("Telemetry agent stopped")
	return nil
}

func onceAction(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	cfg, err := loadConfig(cCtx)
	if err != nil {
		logger.Error("Failed to load configuration", "err", err)
		return cli.Exit(err.Error(), exitFatal)
	}

	r, err := buildReporter(cfg, logger)
	if err != nil {
		logger.Error("Failed to set up reporter", "err", err)
		return cli.Exit(err.Error(), exitFatal)
	}

	ctx, stop := signal.NotifyContext(cCtx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	run, err := scheduler.New(scheduler.Config{Log: logger}, r).Execute(ctx)
	if err != nil {
		return cli.Exit(err.Error(), exitFatal)
	}

	switch run.Result.Outcome {
	case interfaces.Success:
		return nil
	case interfaces.RetryableFailure:
		return cli.Exit(run.Result.Err.Error(), exitRetryable)
	default:
		return cli.Exit(run.Result.Err.Error(), exitFatal)
	}
}

// loadConfig reads the configuration file, if any, and applies flag
// overrides.
// schedulerConfig maps the schedule section onto the scheduler. A single
// cycle config runs once even when an interval is set.
func schedulerConfig(cfg *config.Config, logger *slog.Logger) scheduler.Config {
	schedCfg := scheduler.Config{
		Interval: cfg.Schedule.Interval,
		Retry: scheduler.RetryPolicy{
			InitialInterval: cfg.Schedule.RetryInitial,
			MaxInterval:     cfg.Schedule.RetryMax,
			MaxRetries:      cfg.Schedule.RetryMaxRetries,
		},
		Log: logger,
	}
	if cfg.SingleCycle() {
		schedCfg.Interval = 0
	}
	return schedCfg
}

func loadConfig(cCtx *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := cCtx.String(ConfigFileFlag.Name); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if cCtx.IsSet(HostFlag.Name) {
		cfg.Collector.Host = cCtx.String(HostFlag.Name)
	}
	if cCtx.IsSet(PortFlag.Name) {
		cfg.Collector.Port = cCtx.String(PortFlag.Name)
	}
	if cCtx.IsSet(flags.SecretFlag.Name) {
		cfg.Secret = cCtx.String(flags.SecretFlag.Name)
	}
	if cCtx.IsSet(SectionsFlag.Name) {
		sections, err := parseSections(cCtx.StringSlice(SectionsFlag.Name))
		if err != nil {
			return nil, err
		}
		cfg.Sections = sections
	}
	if cCtx.IsSet(IntervalFlag.Name) {
		cfg.Schedule.Interval = cCtx.Duration(IntervalFlag.Name)
	}
	if cCtx.IsSet(SnapshotFlag.Name) {
		cfg.SnapshotPath = cCtx.String(SnapshotFlag.Name)
	}
	if cCtx.IsSet(NameserverFlag.Name) {
		cfg.Transport.Nameserver = cCtx.String(NameserverFlag.Name)
	}
	if cCtx.IsSet(MaxDatagramSizeFlag.Name) {
		cfg.Transport.MaxDatagramSize = cCtx.Int(MaxDatagramSizeFlag.Name)
	}
	if cCtx.IsSet(flags.StatusAddrFlag.Name) {
		cfg.Status.ListenAddr = cCtx.String(flags.StatusAddrFlag.Name)
	}
	if cCtx.IsSet(flags.MetricsAddrFlag.Name) {
		cfg.Status.MetricsAddr = cCtx.String(flags.MetricsAddrFlag.Name)
	}
	if cCtx.IsSet(flags.PprofFlag.Name) {
		cfg.Status.EnablePprof = cCtx.Bool(flags.PprofFlag.Name)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseSections(names []string) (config.SectionsConfig, error) {
	var sections config.SectionsConfig
	for _, name := range names {
		switch interfaces.Section(name) {
		case interfaces.SectionBattery:
			sections.Battery = true
		case interfaces.SectionConn:
			sections.Conn = true
		case interfaces.SectionLocGPS:
			sections.LocGPS = true
		case interfaces.SectionLocNet:
			sections.LocNet = true
		case interfaces.SectionWifi:
			sections.Wifi = true
		default:
			return sections, fmt.Errorf("%w: unknown section %q", interfaces.ErrConfig, name)
		}
	}
	return sections, nil
}

func buildReporter(cfg *config.Config, logger *slog.Logger) (*reporter.Reporter, error) {
	provider, err := config.NewProvider(cfg)
	if err != nil {
		return nil, err
	}

	var sources telemetry.Sources
	if cfg.SnapshotPath != "" {
		sources = telemetry.NewSnapshotSource(cfg.SnapshotPath).Sources()
	} else {
		logger.Warn("No telemetry snapshot configured, optional sections will report no data")
	}

	var opts []transport.Option
	if cfg.Transport.Nameserver != "" {
		resolver := transport.NewDNSResolver(cfg.Transport.Nameserver)
		if cfg.Transport.ResolveTimeout > 0 {
			resolver.Timeout = min(cfg.Transport.ResolveTimeout, transport.DefaultDNSTimeout)
		}
		opts = append(opts, transport.WithResolver(resolver))
	}
	if cfg.Transport.MaxDatagramSize > 0 {
		opts = append(opts, transport.WithMaxDatagramSize(cfg.Transport.MaxDatagramSize))
	}

	return reporter.NewReporter(provider, sources, transport.Dialer{Options: opts}, logger), nil
}
