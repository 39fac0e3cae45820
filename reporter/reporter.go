package reporter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ruteri/telemetry-envelope/cryptoutils"
	"github.com/ruteri/telemetry-envelope/envelope"
	"github.com/ruteri/telemetry-envelope/interfaces"
)

// SectionCollector produces the value of one optional section.
// telemetry.Sources implements it.
type SectionCollector interface {
	Collect(ctx context.Context, section interfaces.Section) (any, error)
}

// Reporter runs reporting cycles. It holds collaborators only; keys and
// the session live on the stack of a single RunCycle call.
type Reporter struct {
	config    interfaces.ConfigSource
	collector SectionCollector
	dialer    interfaces.SessionDialer
	log       *slog.Logger

	now func() time.Time
}

// NewReporter creates a reporter.
//
// Parameters:
//   - config: supplies host, port, secret and section switches every cycle
//   - collector: reads optional sections from the platform
//   - dialer: opens the per-cycle datagram session
//   - log: structured logger; never receives key material
func NewReporter(config interfaces.ConfigSource, collector SectionCollector, dialer interfaces.SessionDialer, log *slog.Logger) *Reporter {
	return &Reporter{
		config:    config,
		collector: collector,
		dialer:    dialer,
		log:       log,
		now:       time.Now,
	}
}

// RunCycle performs one reporting cycle:
//
//	ValidateConfig -> DeriveKeys -> OpenSession -> SendPing -> SendOptionalSections -> Close
//
// Configuration and session errors end the cycle with FatalFailure before
// any datagram is sent. A failed ping ends it with RetryableFailure and no
// optional section is attempted. Once the ping is out the outcome is
// Success; each optional section then succeeds or fails on its own.
func (r *Reporter) RunCycle(ctx context.Context) interfaces.CycleResult {
	result := interfaces.CycleResult{Timestamp: r.now().UnixMilli()}

	cfg, err := r.config.CycleConfig(ctx)
	if err != nil {
		return r.finish(fatal(result, interfaces.ErrConfig, err))
	}
	defer clear(cfg.Secret)

	port, err := cfg.Validate()
	if err != nil {
		return r.finish(fatal(result, interfaces.ErrConfig, err))
	}

	keys, err := cryptoutils.DeriveKeys(cfg.Secret)
	if err != nil {
		return r.finish(fatal(result, interfaces.ErrConfig, err))
	}
	defer keys.Zero()

	session, err := r.openSession(ctx, cfg, port)
	if err != nil {
		if errors.Is(err, interfaces.ErrConfig) {
			return r.finish(fatal(result, interfaces.ErrConfig, err))
		}
		return r.finish(fatal(result, interfaces.ErrConnection, err))
	}
	defer func() {
		if err := session.Close(); err != nil {
			r.log.Warn("Failed to close session", "err", err)
		}
	}()

	if err := r.sendPing(ctx, session, keys, result.Timestamp); err != nil {
		result.Outcome = interfaces.RetryableFailure
		result.Err = err
		return r.finish(result)
	}

	result.Outcome = interfaces.Success
	for _, section := range cfg.EnabledSections() {
		if err := r.sendSection(ctx, session, keys, result.Timestamp, section); err != nil {
			r.log.Warn("Failed to send section", slog.String("section", section.String()), "err", err)
			result.Failed = append(result.Failed, section)
			continue
		}
		result.Sent = append(result.Sent, section)
	}

	return r.finish(result)
}

func (r *Reporter) openSession(ctx context.Context, cfg *interfaces.CycleConfig, port int) (interfaces.DatagramSession, error) {
	if cfg.ResolveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ResolveTimeout)
		defer cancel()
	}
	return r.dialer.Dial(ctx, cfg.Host, port)
}

func (r *Reporter) sendPing(ctx context.Context, session interfaces.DatagramSession, keys interfaces.KeyPair, ts int64) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", interfaces.ErrPingSend, err)
	}

	data, err := envelope.Encode(interfaces.NewPingReport(ts), keys)
	if err != nil {
		return fmt.Errorf("%w: %w", interfaces.ErrPingSend, err)
	}
	if err := session.Send(data); err != nil {
		return fmt.Errorf("%w: %w", interfaces.ErrPingSend, err)
	}

	r.log.Debug("Ping sent", slog.Int("bytes", len(data)))
	return nil
}

func (r *Reporter) sendSection(ctx context.Context, session interfaces.DatagramSession, keys interfaces.KeyPair, ts int64, section interfaces.Section) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s: %w", interfaces.ErrSection, section, err)
	}

	value, err := r.collector.Collect(ctx, section)
	if err != nil {
		return fmt.Errorf("%w: %s: collect: %w", interfaces.ErrSection, section, err)
	}

	data, err := envelope.Encode(interfaces.NewSectionReport(ts, section, value), keys)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", interfaces.ErrSection, section, err)
	}
	if err := session.Send(data); err != nil {
		return fmt.Errorf("%w: %s: %w", interfaces.ErrSection, section, err)
	}

	r.log.Debug("Section sent", slog.String("section", section.String()), slog.Int("bytes", len(data)))
	return nil
}

func (r *Reporter) finish(result interfaces.CycleResult) interfaces.CycleResult {
	attrs := []any{
		slog.String("outcome", result.Outcome.String()),
		slog.Int64("ts", result.Timestamp),
		slog.Any("sent", result.Sent),
	}
	if len(result.Failed) > 0 {
		attrs = append(attrs, slog.Any("failed", result.Failed))
	}

	switch result.Outcome {
	case interfaces.Success:
		r.log.Info("Reporting cycle finished", attrs...)
	default:
		r.log.Error("Reporting cycle failed", append(attrs, "err", result.Err)...)
	}
	return result
}

// fatal marks the result as FatalFailure, wrapping err in kind unless it
// already carries it.
func fatal(result interfaces.CycleResult, kind error, err error) interfaces.CycleResult {
	if !errors.Is(err, kind) {
		err = fmt.Errorf("%w: %w", kind, err)
	}
	result.Outcome = interfaces.FatalFailure
	result.Err = err
	return result
}
