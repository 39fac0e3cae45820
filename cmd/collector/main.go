package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruteri/telemetry-envelope/cmd/flags"
	"github.com/ruteri/telemetry-envelope/collector"
	"github.com/ruteri/telemetry-envelope/common"
	"github.com/ruteri/telemetry-envelope/config"
	"github.com/ruteri/telemetry-envelope/cryptoutils"
	"github.com/ruteri/telemetry-envelope/envelope"
	"github.com/ruteri/telemetry-envelope/httpserver"
	"github.com/ruteri/telemetry-envelope/interfaces"
	"github.com/ruteri/telemetry-envelope/metrics"
	"github.com/ruteri/telemetry-envelope/storage"
	"github.com/ruteri/telemetry-envelope/transport"
	"github.com/urfave/cli/v2"
)

var CollectorServiceLogFlag = flags.LogServiceFlagFn("telemetry-collector")

var ListenAddrFlag = &cli.StringFlag{
	Name:    "listen-addr",
	Value:   "0.0.0.0:8125",
	EnvVars: []string{"TELEMETRY_LISTEN_ADDR"},
	Usage:   "UDP address to receive envelopes on",
}
var ArchiveFlag = &cli.StringSliceFlag{
	Name:    "archive",
	EnvVars: []string{"TELEMETRY_ARCHIVE"},
	Usage:   "archive backend URI (file:///path, s3://bucket/prefix, ipfs://host:port/root), repeatable",
}
var ArchiveRejectedFlag = &cli.BoolFlag{
	Name:  "archive-rejected",
	Value: false,
	Usage: "also archive the raw bytes of rejected datagrams",
}
var DatagramFileFlag = &cli.StringFlag{
	Name:  "file",
	Usage: "captured datagram to decode",
}
var ContentIDFlag = &cli.StringFlag{
	Name:  "id",
	Usage: "content id of an archived rejected datagram to verify again; needs --archive",
}

func main() {
	app := &cli.App{
		Name:  "telemetry-collector",
		Usage: "Receive and verify encrypted telemetry reports",
		Commands: []*cli.Command{
			{
				Name:   "listen",
				Usage:  "receive envelopes until interrupted",
				Flags:  append([]cli.Flag{ListenAddrFlag, ArchiveFlag, ArchiveRejectedFlag, flags.StatusAddrFlag, flags.SecretFlag, CollectorServiceLogFlag}, flags.CommonFlags...),
				Action: listenAction,
			},
			{
				Name:   "decode",
				Usage:  "verify and decode one datagram (--file, or --id from --archive), printing the report as JSON",
				Flags:  append([]cli.Flag{DatagramFileFlag, ContentIDFlag, ArchiveFlag, flags.SecretFlag, CollectorServiceLogFlag}, flags.CommonFlags...),
				Action: decodeAction,
			},
		},
		DefaultCommand: "listen",
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// deriveKeys resolves the secret reference once. The collector keeps the
// keys for its lifetime; restart it to rotate the secret.
func deriveKeys(ctx context.Context, cCtx *cli.Context) (interfaces.KeyPair, error) {
	ref := cCtx.String(flags.SecretFlag.Name)
	if ref == "" {
		return interfaces.KeyPair{}, fmt.Errorf("%w: --secret is required", interfaces.ErrConfig)
	}

	source, err := config.ParseSecretSource(ref)
	if err != nil {
		return interfaces.KeyPair{}, err
	}
	secret, err := source.Secret(ctx)
	if err != nil {
		return interfaces.KeyPair{}, fmt.Errorf("%w: %w", interfaces.ErrConfig, err)
	}
	defer clear(secret)

	return cryptoutils.DeriveKeys(secret)
}

func listenAction(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	ctx, stop := signal.NotifyContext(cCtx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	keys, err := deriveKeys(ctx, cCtx)
	if err != nil {
		logger.Error("Failed to derive keys", "err", err)
		return err
	}
	defer keys.Zero()

	archive, err := openArchive(cCtx, logger)
	if err != nil {
		logger.Error("Failed to create archive", "err", err)
		return err
	}
	if archive != nil {
		logger.Info("Archiving reports", slog.String("backend", archive.Name()))
	}

	listener, err := transport.Listen(cCtx.String(ListenAddrFlag.Name))
	if err != nil {
		logger.Error("Failed to listen", "err", err)
		return err
	}
	defer listener.Close()

	c := collector.New(collector.Config{
		Keys:            keys,
		Archive:         archive,
		ArchiveRejected: cCtx.Bool(ArchiveRejectedFlag.Name),
		Log:             logger,
	})

	statusAddr := cCtx.String(flags.StatusAddrFlag.Name)
	if statusAddr != "" || cCtx.String(flags.MetricsAddrFlag.Name) != "" {
		status := func() (any, bool) {
			return c.Stats(), true
		}
		srvCfg := flags.ConfigureServer(cCtx, logger, statusAddr, status)
		srvCfg.Collectors = append(srvCfg.Collectors, metrics.NewCollectorStats(common.PackageName, c.Stats))
		srv, err := httpserver.New(srvCfg)
		if err != nil {
			logger.Error("Failed to create status server", "err", err)
			return err
		}
		srv.RunInBackground()
		defer srv.Shutdown()
	}

	logger.Info("Telemetry collector listening", slog.String("addr", listener.LocalAddr().String()))

	if err := c.Serve(ctx, listener); err != nil {
		logger.Error("Collector stopped", "err", err)
		return err
	}

	stats := c.Stats()
	logger.Info("Telemetry collector stopped",
		slog.Uint64("received", stats.Received),
		slog.Uint64("accepted", stats.Accepted))
	return nil
}

func decodeAction(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	keys, err := deriveKeys(cCtx.Context, cCtx)
	if err != nil {
		logger.Error("Failed to derive keys", "err", err)
		return err
	}
	defer keys.Zero()

	var report interfaces.Report
	switch idHex := cCtx.String(ContentIDFlag.Name); {
	case idHex != "":
		report, err = reverify(cCtx, logger, idHex, keys)
	case cCtx.String(DatagramFileFlag.Name) != "":
		report, err = decodeFile(cCtx.String(DatagramFileFlag.Name), keys)
	default:
		err = errors.New("one of --file and --id is required")
	}
	if err != nil {
		switch {
		case errors.Is(err, interfaces.ErrAuthentication):
			logger.Error("Datagram failed authentication", "err", err)
		default:
			logger.Error("Failed to decode datagram", "err", err)
		}
		return err
	}

	out := json.NewEncoder(cCtx.App.Writer)
	out.SetIndent("", "  ")
	return out.Encode(report)
}

func decodeFile(path string, keys interfaces.KeyPair) (interfaces.Report, error) {
	datagram, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read datagram: %w", err)
	}
	return envelope.Decode(datagram, keys)
}

func reverify(cCtx *cli.Context, logger *slog.Logger, idHex string, keys interfaces.KeyPair) (interfaces.Report, error) {
	id, err := interfaces.NewContentIDFromHex(idHex)
	if err != nil {
		return nil, err
	}

	archive, err := openArchive(cCtx, logger)
	if err != nil {
		return nil, err
	}
	if archive == nil {
		return nil, errors.New("--id needs at least one --archive")
	}

	return collector.Reverify(cCtx.Context, archive, id, keys)
}

// openArchive builds the archive from the --archive URIs. No URIs means no
// archive and a nil backend.
func openArchive(cCtx *cli.Context, logger *slog.Logger) (interfaces.StorageBackend, error) {
	uris := cCtx.StringSlice(ArchiveFlag.Name)
	if len(uris) == 0 {
		return nil, nil
	}

	locations := make([]interfaces.StorageBackendLocation, 0, len(uris))
	for _, uri := range uris {
		location, err := interfaces.NewStorageBackendLocation(uri)
		if err != nil {
			return nil, err
		}
		locations = append(locations, location)
	}

	return storage.NewStorageBackendFactory(logger).CreateMultiBackend(locations)
}
