package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/telemetry-envelope/common"
	"github.com/ruteri/telemetry-envelope/httpserver"
	"github.com/urfave/cli/v2"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String("log-service")

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

// ConfigureServer builds the status and metrics server configuration. An
// empty listenAddr means no status server, an empty --metrics-addr no
// metrics server.
func ConfigureServer(cCtx *cli.Context, logger *slog.Logger, listenAddr string, status httpserver.StatusFunc) *httpserver.HTTPServerConfig {
	metricsAddr := cCtx.String(MetricsAddrFlag.Name)
	enablePprof := cCtx.Bool(PprofFlag.Name)
	drainDuration := time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second

	return &httpserver.HTTPServerConfig{
		ListenAddr:               listenAddr,
		MetricsAddr:              metricsAddr,
		Log:                      logger,
		EnablePprof:              enablePprof,
		Status:                   status,
		DrainDuration:            drainDuration,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}
}

var SecretFlag = &cli.StringFlag{
	Name:    "secret",
	EnvVars: []string{"TELEMETRY_SECRET"},
	Usage:   "shared secret reference: literal, file:<path>, env:<NAME> or vault:<mount>/<path>#<field>",
}

var StatusAddrFlag = &cli.StringFlag{
	Name:    "status-addr",
	EnvVars: []string{"TELEMETRY_STATUS_ADDR"},
	Usage:   "address for the status HTTP server (livez, readyz, status, drain); empty disables it",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:    "log-json",
	Value:   false,
	EnvVars: []string{"LOG_JSON"},
	Usage:   "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:    "log-debug",
	Value:   false,
	EnvVars: []string{"LOG_DEBUG"},
	Usage:   "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}

var LogServiceFlagFn = func(service string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "log-service",
		Value: service,
		Usage: "add 'service' tag to logs",
	}
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint on the status server",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "longest wait for the in-flight cycle after a drain request",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:    "metrics-addr",
	EnvVars: []string{"TELEMETRY_METRICS_ADDR"},
	Usage:   "address to listen on for Prometheus metrics; empty disables it",
}

var CommonFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
}
