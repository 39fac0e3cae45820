package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/ruteri/telemetry-envelope/interfaces"
	"go.uber.org/atomic"
)

var (
	// ErrAlreadyRunning is returned when a cycle is requested while another
	// one is still in flight.
	ErrAlreadyRunning = errors.New("a reporting cycle is already running")

	// ErrFatalOutcome stops a periodic schedule after a FatalFailure.
	ErrFatalOutcome = errors.New("reporting cycle failed fatally")
)

// CycleRunner runs one reporting cycle. reporter.Reporter implements it.
type CycleRunner interface {
	RunCycle(ctx context.Context) interfaces.CycleResult
}

// RetryPolicy controls retries after a RetryableFailure.
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// MaxRetries caps the retries of one work item. Zero disables retries.
	MaxRetries uint64
}

// DefaultRetryPolicy retries a failed ping a few times within a minute.
var DefaultRetryPolicy = RetryPolicy{
	InitialInterval: 2 * time.Second,
	MaxInterval:     30 * time.Second,
	MaxRetries:      4,
}

// Run is one unit of scheduled work: a cycle and its retries, under a
// single work identity.
type Run struct {
	WorkID   uuid.UUID              `json:"work_id"`
	Attempts int                    `json:"attempts"`
	Started  time.Time              `json:"started"`
	Finished time.Time              `json:"finished"`
	Result   interfaces.CycleResult `json:"result"`
}

// Config configures a Scheduler.
type Config struct {
	// Interval between work items. Zero runs a single work item.
	Interval time.Duration
	Retry    RetryPolicy
	Log      *slog.Logger
	// OnRun, when set, observes every finished work item.
	OnRun func(Run)
	// Paused, when set and true, skips periodic work items.
	Paused func() bool
}

// Scheduler runs reporting cycles one at a time, either once or
// periodically.
type Scheduler struct {
	cfg     Config
	runner  CycleRunner
	log     *slog.Logger
	running atomic.Bool
	last    atomic.Pointer[Run]
}

// New creates a scheduler for runner.
func New(cfg Config, runner CycleRunner) *Scheduler {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{cfg: cfg, runner: runner, log: log}
}

// Last returns the most recent finished work item.
func (s *Scheduler) Last() (Run, bool) {
	run := s.last.Load()
	if run == nil {
		return Run{}, false
	}
	return *run, true
}

// Running reports whether a cycle is in flight.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Execute runs one work item: a cycle, retried with exponential backoff
// while it ends in RetryableFailure and the retry policy allows. Fatal
// outcomes are never retried.
func (s *Scheduler) Execute(ctx context.Context) (Run, error) {
	if !s.running.CompareAndSwap(false, true) {
		return Run{}, ErrAlreadyRunning
	}
	defer s.running.Store(false)

	run := Run{WorkID: uuid.New(), Started: time.Now()}
	log := s.log.With(slog.String("work_id", run.WorkID.String()))

	operation := func() error {
		run.Attempts++
		run.Result = s.runner.RunCycle(ctx)

		switch run.Result.Outcome {
		case interfaces.Success:
			return nil
		case interfaces.RetryableFailure:
			return run.Result.Err
		default:
			return backoff.Permanent(run.Result.Err)
		}
	}

	notify := func(err error, wait time.Duration) {
		log.Warn("Retrying reporting cycle", slog.Int("attempt", run.Attempts), slog.Duration("wait", wait), "err", err)
	}

	_ = backoff.RetryNotify(operation, s.backoff(ctx), notify)

	run.Finished = time.Now()
	s.last.Store(&run)
	if s.cfg.OnRun != nil {
		s.cfg.OnRun(run)
	}

	log.Info("Work item finished",
		slog.String("outcome", run.Result.Outcome.String()),
		slog.Int("attempts", run.Attempts),
		slog.Duration("duration", run.Finished.Sub(run.Started)))

	return run, nil
}

func (s *Scheduler) backoff(ctx context.Context) backoff.BackOff {
	policy := s.cfg.Retry
	if policy.MaxRetries == 0 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}

	b := backoff.NewExponentialBackOff()
	if policy.InitialInterval > 0 {
		b.InitialInterval = policy.InitialInterval
	}
	if policy.MaxInterval > 0 {
		b.MaxInterval = policy.MaxInterval
	}
	// Retries never spill into the next period.
	b.MaxElapsedTime = s.cfg.Interval
	b.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(b, policy.MaxRetries), ctx)
}

// Run executes work items every Interval until ctx is done or a cycle
// ends in FatalFailure. With a zero Interval it executes exactly once.
// Cancellation is not an error. While Paused reports true, periods pass
// without a cycle.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if s.cfg.Interval > 0 && s.cfg.Paused != nil && s.cfg.Paused() {
			s.log.Debug("Schedule paused, skipping cycle")
		} else {
			run, err := s.Execute(ctx)
			if err != nil {
				return err
			}
			if run.Result.Outcome == interfaces.FatalFailure {
				return fmt.Errorf("%w: %w", ErrFatalOutcome, run.Result.Err)
			}
		}
		if s.cfg.Interval <= 0 {
			return nil
		}

		timer := time.NewTimer(s.cfg.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}
