package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked once per aligned interval.
type TickFunc func(ctx context.Context) error

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	StartupDelay time.Duration
}

// Scheduler drives a repeating tick aligned to interval boundaries measured
// from the moment Run is entered. Aligning to absolute boundaries instead of
// re-arming a fixed delay keeps slow ticks from creeping the cadence: a tick
// that takes 300ms still leaves the next one 700ms away.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking the tick function at each interval boundary until ctx
// is cancelled. A failing tick is logged and the loop re-arms for the next
// boundary; it never halts the cadence.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	start := time.Now()
	for {
		delay := s.NextDelay(start, time.Now())
		timer := time.NewTimer(delay)
		s.logger.Debug().Dur("delay", delay).Msg("waiting for next tick")

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if err := tick(ctx); err != nil {
			s.logger.Error().Err(err).Msg("tick execution failed")
		}
	}
}

// NextDelay computes how long to wait until the next interval boundary
// relative to start. A tick that overran one or more boundaries collapses to
// zero, firing immediately instead of compounding the delay.
func (s *Scheduler) NextDelay(start, now time.Time) time.Duration {
	elapsed := now.Sub(start)
	if elapsed <= 0 {
		return s.opts.Interval
	}
	boundary := elapsed / s.opts.Interval * s.opts.Interval
	if boundary < elapsed {
		boundary += s.opts.Interval
	}
	return boundary - elapsed
}
