package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/ruteri/telemetry-envelope/envelope"
	"github.com/ruteri/telemetry-envelope/interfaces"
	"go.uber.org/atomic"
)

// Receiver yields one envelope per call. transport.Listener implements it.
type Receiver interface {
	Receive(ctx context.Context) ([]byte, net.Addr, error)
}

// Record is the archived form of an accepted report.
type Record struct {
	ReceivedAt time.Time         `json:"received_at"`
	From       string            `json:"from"`
	Kind       string            `json:"kind"`
	Report     interfaces.Report `json:"report"`
}

// Stats are the collector counters since start.
type Stats struct {
	Received       uint64 `json:"received"`
	Accepted       uint64 `json:"accepted"`
	RejectedAuth   uint64 `json:"rejected_auth"`
	RejectedFormat uint64 `json:"rejected_format"`
	ArchiveErrors  uint64 `json:"archive_errors"`
}

type Config struct {
	Keys interfaces.KeyPair
	// Archive stores accepted reports. Nil disables archiving.
	Archive interfaces.StorageBackend
	// ArchiveRejected also stores the raw bytes of rejected datagrams.
	ArchiveRejected bool
	// OnRecord, when set, observes every accepted report.
	OnRecord func(Record)
	Log      *slog.Logger
}

// Collector receives envelopes, verifies and decodes them, and archives
// the accepted reports.
type Collector struct {
	cfg Config
	log *slog.Logger

	received       atomic.Uint64
	accepted       atomic.Uint64
	rejectedAuth   atomic.Uint64
	rejectedFormat atomic.Uint64
	archiveErrors  atomic.Uint64
}

func New(cfg Config) *Collector {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Collector{cfg: cfg, log: log}
}

// Serve handles datagrams from receiver until ctx is done. Rejected
// datagrams are counted and logged; they never stop the loop.
func (c *Collector) Serve(ctx context.Context, receiver Receiver) error {
	for {
		datagram, from, err := receiver.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to receive datagram: %w", err)
		}

		_, _ = c.Handle(ctx, datagram, from)
	}
}

// Handle verifies and decodes one datagram and archives the result.
// Authentication and format failures are returned after being counted.
func (c *Collector) Handle(ctx context.Context, datagram []byte, from net.Addr) (interfaces.Report, error) {
	c.received.Inc()
	source := "unknown"
	if from != nil {
		source = from.String()
	}

	report, err := envelope.Decode(datagram, c.cfg.Keys)
	if err == nil {
		if verr := report.Validate(); verr != nil {
			err = fmt.Errorf("%w: %v", interfaces.ErrFormat, verr)
		}
	}
	if err != nil {
		switch {
		case errors.Is(err, interfaces.ErrAuthentication):
			c.rejectedAuth.Inc()
		default:
			c.rejectedFormat.Inc()
		}
		c.log.Warn("Rejected datagram",
			slog.String("from", source),
			slog.Int("size", len(datagram)),
			"err", err)
		c.archiveRejected(ctx, datagram)
		return nil, err
	}

	c.accepted.Inc()
	record := Record{
		ReceivedAt: time.Now().UTC(),
		From:       source,
		Kind:       report.Kind(),
		Report:     report,
	}
	c.log.Info("Report received",
		slog.String("from", source),
		slog.String("kind", record.Kind))

	c.archive(ctx, record)
	if c.cfg.OnRecord != nil {
		c.cfg.OnRecord(record)
	}
	return report, nil
}

func (c *Collector) archive(ctx context.Context, record Record) {
	if c.cfg.Archive == nil {
		return
	}

	data, err := json.Marshal(record)
	if err != nil {
		c.archiveErrors.Inc()
		c.log.Error("Failed to encode record", "err", err)
		return
	}

	id, err := c.cfg.Archive.Store(ctx, data, interfaces.ReportType)
	if err != nil {
		c.archiveErrors.Inc()
		c.log.Error("Failed to archive report", slog.String("backend", c.cfg.Archive.Name()), "err", err)
		return
	}
	c.log.Debug("Report archived", slog.String("content_id", id.Short()))
}

func (c *Collector) archiveRejected(ctx context.Context, datagram []byte) {
	if c.cfg.Archive == nil || !c.cfg.ArchiveRejected {
		return
	}
	if _, err := c.cfg.Archive.Store(ctx, datagram, interfaces.RejectedType); err != nil {
		c.archiveErrors.Inc()
		c.log.Error("Failed to archive rejected datagram", "err", err)
	}
}

// Stats returns a snapshot of the counters.
func (c *Collector) Stats() Stats {
	return Stats{
		Received:       c.received.Load(),
		Accepted:       c.accepted.Load(),
		RejectedAuth:   c.rejectedAuth.Load(),
		RejectedFormat: c.rejectedFormat.Load(),
		ArchiveErrors:  c.archiveErrors.Load(),
	}
}

// Reverify fetches a rejected datagram from archive and decodes it again
// with keys, typically after the shared secret was fixed or rotated.
func Reverify(ctx context.Context, archive interfaces.StorageBackend, id interfaces.ContentID, keys interfaces.KeyPair) (interfaces.Report, error) {
	datagram, err := archive.Fetch(ctx, id, interfaces.RejectedType)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rejected datagram %s: %w", id.Short(), err)
	}

	report, err := envelope.Decode(datagram, keys)
	if err != nil {
		return nil, err
	}
	if err := report.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrFormat, err)
	}
	return report, nil
}
